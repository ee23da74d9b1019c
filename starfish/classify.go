package starfish

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxMessageLen bounds how much of a response body ends up in Error.Message.
const maxMessageLen = 256

// Classify maps a raw response onto the error taxonomy. It returns nil
// for 2xx responses and an *Error for everything else.
func Classify(resp *RawResponse) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	e := &Error{
		StatusCode: resp.StatusCode,
		Message:    message(resp),
		Body:       resp.Body,
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		e.Kind = KindAuth
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		e.Kind = KindClientFault
	default:
		// 5xx and anything unrecognized is treated as transient
		e.Kind = KindServerFault
	}
	return e
}

// classifyFault wraps an error raised below HTTP. ctx decides whether the
// failure is reported as a timeout or a plain connection failure.
func classifyFault(ctx context.Context, err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &Error{Kind: KindTransport, Message: "request aborted: " + ctxErr.Error(), Err: ctxErr}
	}
	return &Error{Kind: KindTransport, Message: err.Error(), Err: err}
}

func malformedPage(reason string, body []byte, cause error) *Error {
	return &Error{
		Kind:       KindPagination,
		StatusCode: http.StatusOK,
		Message:    reason,
		Body:       body,
		Err:        cause,
	}
}

func message(resp *RawResponse) string {
	msg := strings.TrimSpace(string(resp.Body))
	if msg == "" {
		return http.StatusText(resp.StatusCode)
	}
	if len(msg) > maxMessageLen {
		msg = msg[:maxMessageLen] + "..."
	}
	return msg
}

// parseRetryAfter accepts both delay-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
