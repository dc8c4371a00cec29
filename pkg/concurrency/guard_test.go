package concurrency

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_RejectsWhileBusy(t *testing.T) {
	g := NewConcurrencyGuard()
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- g.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.True(t, g.Busy())
	assert.ErrorIs(t, g.Execute(func() error { return nil }), ErrBusy)
	assert.ErrorIs(t, g.ExecuteWithContext(context.Background(), func(context.Context) error { return nil }), ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, g.Busy())
}

func TestExecute_ReturnsTaskError(t *testing.T) {
	g := NewConcurrencyGuard()
	want := errors.New("boom")
	assert.ErrorIs(t, g.Execute(func() error { return want }), want)
	assert.False(t, g.Busy(), "released after an error")
}

func TestExecuteWithContext(t *testing.T) {
	g := NewConcurrencyGuard()
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	err := g.ExecuteWithContext(ctx, func(taskCtx context.Context) error {
		assert.Equal(t, "v", taskCtx.Value(key{}))
		return nil
	})
	assert.NoError(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err = g.ExecuteWithContext(cancelled, func(context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}
