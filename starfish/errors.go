package starfish

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors
var (
	// ErrInvalidConfig indicates invalid client configuration
	ErrInvalidConfig = errors.New("invalid starfish configuration")
	// ErrAuth indicates the server rejected the credentials or token
	ErrAuth = errors.New("starfish: authentication failed")
	// ErrRateLimited indicates the server kept answering 429
	ErrRateLimited = errors.New("starfish: rate limited")
	// ErrClientFault indicates a non-retryable 4xx response
	ErrClientFault = errors.New("starfish: client fault")
	// ErrServerFault indicates a 5xx or unrecognized response
	ErrServerFault = errors.New("starfish: server fault")
	// ErrTransport indicates a connection, DNS, TLS or timeout failure
	ErrTransport = errors.New("starfish: transport failure")
	// ErrPagination indicates a page response without the expected structure
	ErrPagination = errors.New("starfish: malformed page")
)

// Kind classifies an Error.
type Kind int

const (
	// KindAuth covers 401 and 403 responses and rejected credential exchanges.
	KindAuth Kind = iota + 1
	// KindRateLimited covers 429 responses.
	KindRateLimited
	// KindClientFault covers every other 4xx response.
	KindClientFault
	// KindServerFault covers 5xx and any status outside 2xx/4xx.
	KindServerFault
	// KindTransport covers failures below HTTP, including deadline expiry.
	KindTransport
	// KindPagination covers collection bodies missing the items array.
	KindPagination
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindClientFault:
		return "client_fault"
	case KindServerFault:
		return "server_fault"
	case KindTransport:
		return "transport"
	case KindPagination:
		return "pagination"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindAuth:
		return ErrAuth
	case KindRateLimited:
		return ErrRateLimited
	case KindClientFault:
		return ErrClientFault
	case KindServerFault:
		return ErrServerFault
	case KindTransport:
		return ErrTransport
	case KindPagination:
		return ErrPagination
	default:
		return nil
	}
}

// Error represents a classified Starfish API failure
type Error struct {
	Kind       Kind
	StatusCode int // 0 when no response was received
	Method     string
	Path       string
	Message    string
	Body       []byte
	// RetryAfter is the server's Retry-After hint, zero when absent.
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface
func (e *Error) Error() string {
	where := ""
	if e.Method != "" || e.Path != "" {
		where = fmt.Sprintf(" %s %s", e.Method, e.Path)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("starfish API error%s: %s (HTTP %d): %s", where, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("starfish API error%s: %s: %s", where, e.Kind, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrRateLimited) and friends match on Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}

// Retryable reports whether the kind is transient.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindServerFault, KindTransport:
		return true
	default:
		return false
	}
}

// IsNotFound checks if the error indicates a not found response
func (e *Error) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsUnauthorized checks if the error indicates an authentication failure
func (e *Error) IsUnauthorized() bool {
	return e.Kind == KindAuth
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}
