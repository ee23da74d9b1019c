package starfish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

// SendRaw executes req with authentication, retries and backoff, and returns
// the successful response. Every failure is an *Error.
//
// The client timeout bounds all attempts together, backoff waits included.
func (c *Client) SendRaw(ctx context.Context, req Request) (*RawResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.timeout)
	defer cancel()

	var body []byte
	if req.Body != nil {
		var err error
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, &Error{
				Kind:    KindClientFault,
				Method:  req.Method,
				Path:    req.Path,
				Message: "failed to encode request body",
				Err:     err,
			}
		}
	}

	idempotent := c.opts.isIdempotent(&req)
	refreshed := false

	resp, err := retry.DoWithData(
		func() (*RawResponse, error) {
			return c.attempt(ctx, &req, body, &refreshed)
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.opts.maxRetries)+1),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return shouldRetry(ctx, err, idempotent)
		}),
		// retry-go numbers the wait before the first retry as 1
		retry.DelayType(func(n uint, err error, _ *retry.Config) time.Duration {
			return c.backoff.delay(n-1, err)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug().
				Str("method", req.Method).
				Str("path", req.Path).
				Uint("attempt", n+1).
				Err(err).
				Msg("Starfish request attempt failed")
		}),
	)
	if err != nil {
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			// retry-go reports a context that ended during a backoff wait as the bare context error
			apiErr = classifyFault(ctx, err)
			apiErr.Method, apiErr.Path = req.Method, req.Path
		}
		return nil, apiErr
	}
	return resp, nil
}

// Send executes req and decodes the JSON response into out. out may be nil.
func (c *Client) Send(ctx context.Context, req Request, out any) error {
	resp, err := c.SendRaw(ctx, req)
	if err != nil {
		return err
	}
	return decodeRecord(&req, resp, out)
}

func decodeRecord(req *Request, resp *RawResponse, out any) error {
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &Error{
			Kind:       KindServerFault,
			StatusCode: resp.StatusCode,
			Method:     req.Method,
			Path:       req.Path,
			Message:    "failed to parse response",
			Body:       resp.Body,
			Err:        err,
		}
	}
	return nil
}

// attempt performs one try, plus the single re-authenticated try allowed
// per call after a 401/403.
func (c *Client) attempt(ctx context.Context, req *Request, body []byte, refreshed *bool) (*RawResponse, error) {
	for {
		token, err := c.session.ensureToken(ctx)
		if err != nil {
			return nil, annotate(err, req)
		}

		httpReq, err := c.buildRequest(ctx, req, body, token)
		if err != nil {
			return nil, err
		}

		c.logger.Debug().
			Str("method", req.Method).
			Str("path", req.Path).
			Msg("Making Starfish API request")

		resp, err := c.transport.Execute(httpReq)
		if err != nil {
			return nil, annotate(err, req)
		}

		if err := Classify(resp); err != nil {
			annotate(err, req)
			if KindOf(err) == KindAuth && !*refreshed {
				*refreshed = true
				c.session.Invalidate(token)
				c.logger.Debug().
					Int("status", resp.StatusCode).
					Str("path", req.Path).
					Msg("Token rejected, re-authenticating")
				continue
			}
			return nil, err
		}

		return resp, nil
	}
}

func (c *Client) buildRequest(ctx context.Context, req *Request, body []byte, token string) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.session.resolve(req.Path, req.Query), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range c.session.headersFor(token) {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	return httpReq, nil
}

func shouldRetry(ctx context.Context, err error, idempotent bool) bool {
	if ctx.Err() != nil {
		return false
	}
	switch KindOf(err) {
	case KindRateLimited:
		return true
	case KindServerFault, KindTransport:
		return idempotent
	default:
		return false
	}
}

func annotate(err error, req *Request) error {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Path == "" {
		apiErr.Method = req.Method
		apiErr.Path = req.Path
	}
	return err
}
