package starfish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

// Credentials are the long-lived secrets a Session is built from. Either an
// API key, used directly as the bearer token, or a username and password,
// exchanged for a token on first use.
type Credentials struct {
	APIKey   string
	Username string
	Password string
}

func (c Credentials) validate() error {
	if c.APIKey != "" {
		return nil
	}
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("%w: an API key or a username and password is required", ErrInvalidConfig)
	}
	return nil
}

// Session holds the connection state shared by every call of one Client.
// The current token is the only field that changes after construction.
type Session struct {
	baseURL   *url.URL
	creds     Credentials
	headers   map[string]string
	userAgent string
	authPath  string
	timeout   time.Duration
	transport Transport
	logger    zerolog.Logger

	mu     sync.RWMutex
	token  string
	flight singleflight.Group
}

func newSession(baseURL *url.URL, creds Credentials, transport Transport, opts clientOptions, logger zerolog.Logger) *Session {
	headers := make(map[string]string, len(opts.headers))
	for k, v := range opts.headers {
		headers[k] = v
	}
	return &Session{
		baseURL:   baseURL,
		creds:     creds,
		headers:   headers,
		userAgent: opts.userAgent,
		authPath:  opts.authPath,
		timeout:   opts.timeout,
		transport: transport,
		logger:    logger,
	}
}

// Token returns the current token, or "" when none is held.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Invalidate drops token if it is still the current one. A rejection that
// arrives for an older token leaves a newer one in place.
func (s *Session) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == token {
		s.token = ""
	}
}

// AuthHeaders returns the headers every authenticated request carries,
// acquiring a token first if none is held.
func (s *Session) AuthHeaders(ctx context.Context) (map[string]string, error) {
	token, err := s.ensureToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.headersFor(token), nil
}

func (s *Session) headersFor(token string) map[string]string {
	h := make(map[string]string, len(s.headers)+3)
	for k, v := range s.headers {
		h[k] = v
	}
	h["Accept"] = "application/json"
	h["Authorization"] = "Bearer " + token
	if s.userAgent != "" {
		h["User-Agent"] = s.userAgent
	}
	return h
}

// ensureToken returns the held token or joins the single in-flight exchange.
// A caller whose context ends stops waiting; the exchange itself keeps going
// for the others.
func (s *Session) ensureToken(ctx context.Context) (string, error) {
	if token := s.Token(); token != "" {
		return token, nil
	}

	ch := s.flight.DoChan("token", func() (any, error) {
		// a previous flight may have finished between our check and now
		if token := s.Token(); token != "" {
			return token, nil
		}
		return s.acquire(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", classifyFault(ctx, ctx.Err())
	}
}

func (s *Session) acquire(ctx context.Context) (string, error) {
	if s.creds.APIKey != "" {
		s.setToken(s.creds.APIKey)
		return s.creds.APIKey, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	authURL := s.resolve(s.authPath, nil)
	s.logger.Debug().Str("url", authURL).Msg("Authenticating against Starfish")

	payload, err := json.Marshal(map[string]string{
		"username": s.creds.Username,
		"password": s.creds.Password,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode auth payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.transport.Execute(req)
	if err != nil {
		// the error is shared by every waiter, so it is annotated here and never after
		var apiErr *Error
		if errors.As(err, &apiErr) {
			apiErr.Method = http.MethodPost
			apiErr.Path = s.authPath
		}
		return "", err
	}

	if err := Classify(resp); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			apiErr.Method = http.MethodPost
			apiErr.Path = s.authPath
			// a rejected exchange is an auth failure whatever 4xx it came with
			if apiErr.Kind == KindClientFault {
				apiErr.Kind = KindAuth
			}
		}
		return "", err
	}

	token := gjson.GetBytes(resp.Body, "token")
	if token.Type != gjson.String || token.Str == "" {
		return "", &Error{
			Kind:       KindAuth,
			StatusCode: resp.StatusCode,
			Method:     http.MethodPost,
			Path:       s.authPath,
			Message:    "auth response carries no token",
			Body:       resp.Body,
		}
	}

	s.setToken(token.Str)
	s.logger.Debug().Msg("Authentication successful")
	return token.Str, nil
}

func (s *Session) setToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// resolve joins path onto the base URL the way a relative link would be,
// so "storage/" under "https://host/api/" becomes "https://host/api/storage/".
func (s *Session) resolve(path string, query []Param) string {
	ref := &url.URL{Path: strings.TrimLeft(path, "/")}
	u := s.baseURL.ResolveReference(ref)
	u.RawQuery = encodeQuery(query)
	return u.String()
}
