// Package api is a client for the streaming server's local web API.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"
)

const (
	DefaultWebPort = 47990
	pinPath        = "/api/pin"
)

var ErrRejected = errors.New("server rejected the pin")

// basicAuthInjector adds the server's admin credentials to every request.
type basicAuthInjector struct {
	user, password string
	next           http.RoundTripper
}

func (t *basicAuthInjector) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.user != "" {
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.user, t.password)
	}
	return t.next.RoundTrip(req)
}

// Client talks to the server's web API on this machine. The server serves a
// self-signed certificate, so verification is disabled; the client only ever
// dials loopback.
type Client struct {
	HttpClient *http.Client
	baseURL    string
	clientName string
}

// NewClient builds a client for https://localhost:<port>. clientName is how
// the paired client is labelled in the server's device list.
func NewClient(port int, user, password, clientName string) *Client {
	if port <= 0 {
		port = DefaultWebPort
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	return &Client{
		HttpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &basicAuthInjector{
				user:     user,
				password: password,
				next:     transport,
			},
		},
		baseURL:    "https://" + net.JoinHostPort("localhost", strconv.Itoa(port)),
		clientName: clientName,
	}
}

// SetBaseURL points the client elsewhere, e.g. at a test server.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

type pinRequest struct {
	PIN  string `json:"pin"`
	Name string `json:"name"`
}

type pinResponse struct {
	Status any `json:"status"`
}

// SubmitPIN completes a pending pairing request on the server.
func (c *Client) SubmitPIN(ctx context.Context, pin string) error {
	body, err := json.Marshal(pinRequest{PIN: pin, Name: c.clientName})
	if err != nil {
		return fmt.Errorf("failed to marshal pin payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pinPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create pin request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send pin request: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pin request responded with non-OK status: %s", resp.Status)
	}
	var parsed pinResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		slog.Debug("unparsed pin response", "body", string(data))
		return nil
	}
	if !truthy(parsed.Status) {
		return ErrRejected
	}
	return nil
}

// truthy accepts the server's status as a boolean or a "true" string.
func truthy(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case bool:
		return s
	case string:
		b, err := strconv.ParseBool(s)
		return err == nil && b
	default:
		return false
	}
}
