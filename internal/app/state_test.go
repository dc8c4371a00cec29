package app

import (
	"context"
	"testing"
	"time"

	"github.com/rescp17/remotePlay/pkg/pairing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startSession(t *testing.T, script string) *pairing.Session {
	t.Helper()
	c := pairing.NewController(pairing.Config{Command: []string{"sh", "-c", script, "client"}})
	return c.Start(context.Background(), "10.0.0.9")
}

func TestStateManager_SingleActiveSession(t *testing.T) {
	m := NewStateManager()
	select {
	case <-m.WaitForDone():
	default:
		t.Fatal("no session means nothing to wait for")
	}

	first := startSession(t, "sleep 1")
	require.NoError(t, m.Begin(first))
	current, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, first.ID, current.ID)

	second := startSession(t, "exit 0")
	assert.ErrorIs(t, m.Begin(second), ErrSessionActive)

	select {
	case <-m.WaitForDone():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
	_, ok = m.Current()
	assert.False(t, ok)

	require.NoError(t, m.Begin(second), "a finished session no longer blocks")
	second.Wait()
}

func TestStateManager_End(t *testing.T) {
	m := NewStateManager()
	s := startSession(t, "exit 0")
	require.NoError(t, m.Begin(s))

	m.End("someone-else")
	s.Wait()
	m.End(s.ID)
	_, ok := m.Current()
	assert.False(t, ok)
}
