package starfish

import "context"

// Call is an in-flight request started with Client.Go.
type Call struct {
	Request Request

	resp *RawResponse
	err  error
	done chan struct{}
}

// Go starts req on its own goroutine and returns immediately. When the call
// completes, the JSON response has been decoded into out (if non-nil) and
// Done is closed. Cancelling ctx aborts the call.
func (c *Client) Go(ctx context.Context, req Request, out any) *Call {
	call := &Call{Request: req, done: make(chan struct{})}
	go func() {
		defer close(call.done)
		resp, err := c.SendRaw(ctx, req)
		if err == nil {
			err = decodeRecord(&req, resp, out)
		}
		call.resp, call.err = resp, err
	}()
	return call
}

// Done is closed once the call has completed.
func (call *Call) Done() <-chan struct{} {
	return call.done
}

// Wait blocks until the call completes and returns its outcome.
func (call *Call) Wait() (*RawResponse, error) {
	<-call.done
	return call.resp, call.err
}

// Err returns the call's error. It is only meaningful after Done is closed.
func (call *Call) Err() error {
	select {
	case <-call.done:
		return call.err
	default:
		return nil
	}
}
