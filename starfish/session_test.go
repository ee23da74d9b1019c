package starfish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionSingleFlight(t *testing.T) {
	for _, m := range bothModes {
		t.Run(m.name, func(t *testing.T) {
			server := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{})
			}, withAuthDelay(100*time.Millisecond))
			client := newTestClient(t, server.apiURL(), WithMode(m.mode))

			const callers = 20
			var wg sync.WaitGroup
			errs := make([]error, callers)
			for i := range callers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs[i] = client.Send(context.Background(), Get("storage/"), nil)
				}()
			}
			wg.Wait()

			for _, err := range errs {
				assert.NoError(t, err)
			}
			assert.Equal(t, int32(1), server.authCalls.Load())
			assert.Equal(t, "tok-1", client.Session().Token())
		})
	}
}

func TestSessionAuthHeaders(t *testing.T) {
	server := newMockServer(t, nil)
	client := newTestClient(t, server.apiURL(), WithHeader("X-Tenant", "crc"), WithUserAgent("crc-bot/1.0"))

	headers, err := client.Session().AuthHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", headers["Authorization"])
	assert.Equal(t, "application/json", headers["Accept"])
	assert.Equal(t, "crc-bot/1.0", headers["User-Agent"])
	assert.Equal(t, "crc", headers["X-Tenant"])

	_, err = client.Session().AuthHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), server.authCalls.Load(), "token is reused")
}

func TestSessionInvalidate(t *testing.T) {
	server := newMockServer(t, nil)
	client := newTestClient(t, server.apiURL())
	session := client.Session()

	_, err := session.AuthHeaders(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", session.Token())

	session.Invalidate("stale")
	assert.Equal(t, "tok-1", session.Token(), "an older token must not evict the current one")

	session.Invalidate("tok-1")
	assert.Empty(t, session.Token())

	headers, err := session.AuthHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-2", headers["Authorization"])
}

func TestSessionAPIKey(t *testing.T) {
	server := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer static-key", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	client, err := NewClient(server.apiURL(), Credentials{APIKey: "static-key"}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, client.Send(context.Background(), Get("storage/"), nil))
	assert.Equal(t, int32(0), server.authCalls.Load())
}

func TestSessionRejectedExchange(t *testing.T) {
	tests := []struct {
		name string
		code int
		want Kind
	}{
		{"bad request", http.StatusBadRequest, KindAuth},
		{"unauthorized", http.StatusUnauthorized, KindAuth},
		{"forbidden", http.StatusForbidden, KindAuth},
		{"server fault", http.StatusInternalServerError, KindServerFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newMockServer(t, nil, withAuthStatus(tt.code))
			client := newTestClient(t, server.apiURL())

			_, err := client.Session().AuthHeaders(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, DefaultAuthPath, apiErr.Path)
			assert.Empty(t, client.Session().Token())
		})
	}
}

func TestSessionRejectedExchangeIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}, withAuthStatus(http.StatusUnauthorized))
	client := newTestClient(t, server.apiURL())

	err := client.Send(context.Background(), Get("storage/"), nil)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, int32(1), server.authCalls.Load())
	assert.Zero(t, calls.Load())
}

func TestSessionExchangeWithoutToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v2/login", r.URL.Path)

		var creds map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "svc", creds["username"])
		assert.Equal(t, "secret", creds["password"])

		writeJSON(w, http.StatusOK, map[string]any{"expires": 3600})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/api", WithAuthPath("v2/login"))
	_, err := client.Session().AuthHeaders(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
}

func TestSessionWaiterCancellation(t *testing.T) {
	server := newMockServer(t, nil, withAuthDelay(300*time.Millisecond))
	client := newTestClient(t, server.apiURL())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Session().AuthHeaders(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 250*time.Millisecond, "waiter leaves before the exchange ends")

	// the abandoned exchange still completes and is shared with later callers
	headers, err := client.Session().AuthHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", headers["Authorization"])
	assert.Equal(t, int32(1), server.authCalls.Load())
}
