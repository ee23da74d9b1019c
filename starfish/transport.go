package starfish

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Mode selects the Transport variant a Client is built with.
type Mode int

const (
	// ModeBlocking performs each exchange on the calling goroutine.
	ModeBlocking Mode = iota
	// ModeNonBlocking dispatches each exchange and only waits on its completion
	// or on cancellation.
	ModeNonBlocking
)

// String returns the configuration spelling of the mode
func (m Mode) String() string {
	if m == ModeNonBlocking {
		return "non-blocking"
	}
	return "blocking"
}

// ParseMode parses "blocking" or "non-blocking". An empty string means blocking.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "blocking", "sync":
		return ModeBlocking, nil
	case "non-blocking", "nonblocking", "async":
		return ModeNonBlocking, nil
	default:
		return ModeBlocking, fmt.Errorf("%w: unknown execution mode %q", ErrInvalidConfig, s)
	}
}

// RawResponse is one attempt's response. It is never mutated after creation.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport performs exactly one network exchange. Any HTTP status is a
// successful exchange; only failures below HTTP are returned as errors,
// always as a KindTransport *Error.
type Transport interface {
	Execute(req *http.Request) (*RawResponse, error)
}

// BlockingTransport runs the exchange on the caller's goroutine.
type BlockingTransport struct {
	client *http.Client
}

// NewBlockingTransport wraps an *http.Client.
func NewBlockingTransport(client *http.Client) *BlockingTransport {
	return &BlockingTransport{client: client}
}

// Execute implements Transport.
func (t *BlockingTransport) Execute(req *http.Request) (*RawResponse, error) {
	return exchange(t.client, req)
}

// NonBlockingTransport hands the exchange to its own goroutine. The caller is
// parked only while waiting for that goroutine or for the request context.
type NonBlockingTransport struct {
	client *http.Client
}

// NewNonBlockingTransport wraps an *http.Client.
func NewNonBlockingTransport(client *http.Client) *NonBlockingTransport {
	return &NonBlockingTransport{client: client}
}

type exchangeResult struct {
	resp *RawResponse
	err  error
}

// Execute implements Transport.
func (t *NonBlockingTransport) Execute(req *http.Request) (*RawResponse, error) {
	ctx := req.Context()
	done := make(chan exchangeResult, 1)

	go func() {
		resp, err := exchange(t.client, req)
		done <- exchangeResult{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		// the dispatched exchange sees the same context and unwinds on its own
		return nil, classifyFault(ctx, ctx.Err())
	}
}

func newTransport(mode Mode, client *http.Client) Transport {
	if mode == ModeNonBlocking {
		return NewNonBlockingTransport(client)
	}
	return NewBlockingTransport(client)
}

// exchange is shared by both variants so their outcomes cannot diverge.
func exchange(client *http.Client, req *http.Request) (*RawResponse, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyFault(req.Context(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyFault(req.Context(), fmt.Errorf("failed to read response body: %w", err))
	}

	return &RawResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}
