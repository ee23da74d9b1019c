package starfish

import (
	"net/http"
	"time"
)

// Defaults applied when the matching option is not given.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 500 * time.Millisecond
	DefaultBackoffMax  = 30 * time.Second
	DefaultJitter      = 0.2
	DefaultPageSize    = 100
	DefaultAuthPath    = "auth/"
)

// Option configures a Client.
type Option func(*clientOptions)

// clientOptions holds configuration options for the Client.
type clientOptions struct {
	timeout      time.Duration
	maxRetries   int
	backoffBase  time.Duration
	backoffMax   time.Duration
	jitter       float64
	mode         Mode
	httpClient   *http.Client
	verifyCert   bool
	userAgent    string
	headers      map[string]string
	authPath     string
	isIdempotent func(*Request) bool

	pageSize        int
	pageSizeParam   string
	cursorParam     string
	itemsField      string
	nextCursorField string
}

func defaultOptions() clientOptions {
	return clientOptions{
		timeout:         DefaultTimeout,
		maxRetries:      DefaultMaxRetries,
		backoffBase:     DefaultBackoffBase,
		backoffMax:      DefaultBackoffMax,
		jitter:          DefaultJitter,
		mode:            ModeBlocking,
		verifyCert:      true,
		userAgent:       "starfish-api-client",
		headers:         map[string]string{},
		authPath:        DefaultAuthPath,
		isIdempotent:    DefaultIdempotencyPolicy,
		pageSize:        DefaultPageSize,
		pageSizeParam:   "limit",
		cursorParam:     "cursor",
		itemsField:      "items",
		nextCursorField: "next_cursor",
	}
}

// WithTimeout sets the wall-clock budget of one call, shared by all of its attempts.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(retries int) Option {
	return func(o *clientOptions) {
		if retries >= 0 {
			o.maxRetries = retries
		}
	}
}

// WithBackoff sets the base delay and the cap of the exponential backoff.
func WithBackoff(base, max time.Duration) Option {
	return func(o *clientOptions) {
		if base > 0 {
			o.backoffBase = base
		}
		if max > 0 {
			o.backoffMax = max
		}
	}
}

// WithJitter sets the random extra delay as a fraction of the computed delay.
// Zero disables jitter. Values are clamped to [0, 1).
func WithJitter(fraction float64) Option {
	return func(o *clientOptions) {
		switch {
		case fraction < 0:
			o.jitter = 0
		case fraction >= 1:
			o.jitter = 0.99
		default:
			o.jitter = fraction
		}
	}
}

// WithMode selects the blocking or non-blocking transport.
func WithMode(mode Mode) Option {
	return func(o *clientOptions) {
		o.mode = mode
	}
}

// WithHTTPClient uses a custom *http.Client for all exchanges.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithInsecureSkipVerify disables certificate verification.
// Use with caution and only for development/testing.
func WithInsecureSkipVerify() Option {
	return func(o *clientOptions) {
		o.verifyCert = false
	}
}

// WithUserAgent sets a custom user agent string.
func WithUserAgent(userAgent string) Option {
	return func(o *clientOptions) {
		o.userAgent = userAgent
	}
}

// WithHeader adds a default header sent with every request.
func WithHeader(key, value string) Option {
	return func(o *clientOptions) {
		o.headers[key] = value
	}
}

// WithAuthPath overrides the token exchange endpoint.
func WithAuthPath(path string) Option {
	return func(o *clientOptions) {
		if path != "" {
			o.authPath = path
		}
	}
}

// WithIdempotencyPolicy replaces the rule deciding whether a request may be
// retried after a server or transport fault.
func WithIdempotencyPolicy(policy func(*Request) bool) Option {
	return func(o *clientOptions) {
		if policy != nil {
			o.isIdempotent = policy
		}
	}
}

// WithPageSize sets the number of items requested per page.
func WithPageSize(size int) Option {
	return func(o *clientOptions) {
		if size > 0 {
			o.pageSize = size
		}
	}
}

// WithPageParams renames the page-size and cursor query parameters.
func WithPageParams(sizeParam, cursorParam string) Option {
	return func(o *clientOptions) {
		if sizeParam != "" {
			o.pageSizeParam = sizeParam
		}
		if cursorParam != "" {
			o.cursorParam = cursorParam
		}
	}
}

// WithPageFields renames the items and next-cursor fields of a page body.
func WithPageFields(itemsField, nextCursorField string) Option {
	return func(o *clientOptions) {
		if itemsField != "" {
			o.itemsField = itemsField
		}
		if nextCursorField != "" {
			o.nextCursorField = nextCursorField
		}
	}
}
