package starfish

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// mockServer serves /api/auth/ itself and hands every other path to handler.
type mockServer struct {
	*httptest.Server
	authCalls atomic.Int32
	authDelay time.Duration
	authCode  int
}

// mockOption tweaks the auth endpoint before the server starts.
type mockOption func(*mockServer)

func withAuthDelay(d time.Duration) mockOption {
	return func(m *mockServer) { m.authDelay = d }
}

func withAuthStatus(code int) mockOption {
	return func(m *mockServer) { m.authCode = code }
}

func newMockServer(t *testing.T, handler http.HandlerFunc, opts ...mockOption) *mockServer {
	t.Helper()
	m := &mockServer{authCode: http.StatusOK}
	for _, opt := range opts {
		opt(m)
	}
	if handler == nil {
		handler = http.NotFound
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/" {
			n := m.authCalls.Add(1)
			if m.authDelay > 0 {
				time.Sleep(m.authDelay)
			}
			if m.authCode != http.StatusOK {
				w.WriteHeader(m.authCode)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"token": fmt.Sprintf("tok-%d", n)})
			return
		}
		handler(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *mockServer) apiURL() string {
	return m.URL + "/api/"
}

// newTestClient builds a client with fast, deterministic backoff.
func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	defaults := []Option{
		WithBackoff(5*time.Millisecond, 200*time.Millisecond),
		WithJitter(0),
	}
	client, err := NewClient(baseURL, Credentials{Username: "svc", Password: "secret"}, zerolog.Nop(), append(defaults, opts...)...)
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var bothModes = []struct {
	name string
	mode Mode
}{
	{"blocking", ModeBlocking},
	{"non-blocking", ModeNonBlocking},
}
