package starfish

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// Client represents a Starfish API client
type Client struct {
	session   *Session
	transport Transport
	backoff   backoff
	opts      clientOptions
	logger    zerolog.Logger
}

// NewClient creates a new Starfish client. baseURL is the API root, typically
// ending in /api/. No request is made until the first call.
func NewClient(baseURL string, creds Credentials, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("%w: starfish URL is required", ErrInvalidConfig)
	}
	if err := creds.validate(); err != nil {
		return nil, err
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid starfish URL: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: starfish URL must be http or https, got %q", ErrInvalidConfig, baseURL)
	}
	// relative paths resolve under the API root only if it ends with a slash
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	httpClient := options.httpClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if !options.verifyCert {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in
		}
		// no client-level Timeout: the per-call context carries the budget
		httpClient = &http.Client{Transport: transport}
	}

	transport := newTransport(options.mode, httpClient)
	logger = logger.With().Str("component", "starfish").Logger()

	return &Client{
		session:   newSession(u, creds, transport, options, logger),
		transport: transport,
		backoff:   newBackoff(options),
		opts:      options,
		logger:    logger,
	}, nil
}

// Session returns the client's session.
func (c *Client) Session() *Session {
	return c.session
}

// Mode returns the execution mode the client was built with.
func (c *Client) Mode() Mode {
	return c.opts.mode
}

// TestConnection authenticates and lists storage to verify the server is reachable
func (c *Client) TestConnection(ctx context.Context) error {
	if _, err := c.session.AuthHeaders(ctx); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	if err := c.Send(ctx, Get("storage/", Param{Key: c.opts.pageSizeParam, Value: "1"}), nil); err != nil {
		return fmt.Errorf("failed to query storage: %w", err)
	}
	return nil
}
