package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(0, "admin", "secret", "guest-box")
	c.SetBaseURL(srv.URL)
	return c
}

func TestSubmitPIN(t *testing.T) {
	var got pinRequest
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, pinPath, r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "secret", pass)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":true}`))
	})

	require.NoError(t, c.SubmitPIN(context.Background(), "1234"))
	assert.Equal(t, pinRequest{PIN: "1234", Name: "guest-box"}, got)
}

func TestSubmitPIN_Rejected(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"false"}`))
	})
	assert.ErrorIs(t, c.SubmitPIN(context.Background(), "1234"), ErrRejected)
}

func TestSubmitPIN_HTTPError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
	err := c.SubmitPIN(context.Background(), "1234")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSubmitPIN_Unreachable(t *testing.T) {
	c := NewClient(1, "", "", "guest")
	assert.Error(t, c.SubmitPIN(context.Background(), "1234"))
}

func TestTruthy(t *testing.T) {
	assert.True(t, truthy(nil))
	assert.True(t, truthy(true))
	assert.True(t, truthy("true"))
	assert.False(t, truthy(false))
	assert.False(t, truthy("nope"))
	assert.False(t, truthy(1.0))
}
