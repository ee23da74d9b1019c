package starfish

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoRunsCallsConcurrently(t *testing.T) {
	release := make(chan struct{})
	server := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		writeJSON(w, http.StatusOK, map[string]any{"name": r.URL.Query().Get("v")})
	})
	client := newTestClient(t, server.apiURL(), WithMode(ModeNonBlocking))
	ctx := context.Background()

	outs := make([]Volume, 3)
	calls := make([]*Call, 3)
	for i, name := range []string{"a", "b", "c"} {
		calls[i] = client.Go(ctx, Get("storage/", Param{"v", name}), &outs[i])
	}

	for _, call := range calls {
		select {
		case <-call.Done():
			t.Fatal("call completed before the server answered")
		default:
		}
		assert.NoError(t, call.Err(), "Err is nil while the call is in flight")
	}

	close(release)
	for i, call := range calls {
		resp, err := call.Wait()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, []string{"a", "b", "c"}[i], outs[i].Name)
	}
}

func TestGoReportsFailure(t *testing.T) {
	server := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	client := newTestClient(t, server.apiURL())

	call := client.Go(context.Background(), Post("async/query/", nil), nil)
	select {
	case <-call.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("call did not complete")
	}
	assert.ErrorIs(t, call.Err(), ErrClientFault)
	assert.Equal(t, "async/query/", call.Request.Path)
}

func TestGoCancellation(t *testing.T) {
	server := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	client := newTestClient(t, server.apiURL(), WithMode(ModeNonBlocking))

	ctx, cancel := context.WithCancel(context.Background())
	call := client.Go(ctx, Get("storage/"), nil)
	cancel()

	_, err := call.Wait()
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, context.Canceled)
}
