package starfish

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Param is one query parameter. Request keeps parameters as a slice so the
// order given by the caller is the order sent on the wire.
type Param struct {
	Key   string
	Value string
}

// Request describes one logical API call. Path is relative to the client's
// base URL. Body, when non-nil, is sent JSON-encoded.
//
// A Request is treated as immutable: the executor and the cursor work on copies.
type Request struct {
	Method string
	Path   string
	Query  []Param
	Header map[string]string
	Body   any

	// Idempotent marks a non-read request as safe to retry after a server
	// or transport fault.
	Idempotent bool
	// IdempotencyKey is sent as the Idempotency-Key header and also marks
	// the request as retryable.
	IdempotencyKey string
}

// Get builds a GET request.
func Get(path string, query ...Param) Request {
	return Request{Method: http.MethodGet, Path: path, Query: query}
}

// Post builds a POST request with an optional JSON body.
func Post(path string, body any, query ...Param) Request {
	return Request{Method: http.MethodPost, Path: path, Body: body, Query: query}
}

// WithParam returns a copy of r with one more query parameter appended.
func (r Request) WithParam(key, value string) Request {
	r.Query = append(slices.Clone(r.Query), Param{Key: key, Value: value})
	return r
}

// WithIdempotencyKey returns a copy of r carrying the given key.
func (r Request) WithIdempotencyKey(key string) Request {
	r.IdempotencyKey = key
	return r
}

// NewIdempotencyKey returns a fresh random key.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// DefaultIdempotencyPolicy treats read methods as idempotent, plus any request
// the caller explicitly marked.
func DefaultIdempotencyPolicy(r *Request) bool {
	if r.Idempotent || r.IdempotencyKey != "" {
		return true
	}
	switch strings.ToUpper(r.Method) {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// encodeQuery encodes params in order. url.Values would sort them by key.
func encodeQuery(params []Param) string {
	if len(params) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}
