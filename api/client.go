// Package api is the authenticated HTTP client for the verval backend. It
// attaches the session's bearer token, refreshes it through a single shared
// refresh call when the server answers 401, and retries the original request
// once.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/verval/verval-cli/credstore"
	"github.com/verval/verval-cli/session"
)

// Defaults for Config fields left zero.
const (
	DefaultRefreshPath    = "/api/usuarios/refresh"
	DefaultRequestTimeout = 15 * time.Second
	DefaultRefreshTimeout = 10 * time.Second
	DefaultExpirySkew     = 10 * time.Second
)

// Config describes how to reach the backend.
type Config struct {
	BaseURL        string
	RefreshPath    string
	RequestTimeout time.Duration
	RefreshTimeout time.Duration
	// ExpirySkew is how close to its exp claim a JWT access token may get
	// before the client refreshes it ahead of sending.
	ExpirySkew time.Duration
	// MaxRetries is passed to the retrying transport for 5xx and network
	// errors. Zero keeps transport failures unretried.
	MaxRetries int
	// HTTPClient overrides the tuned default *http.Client.
	HTTPClient *http.Client
}

// Request describes one call. The zero value of the flags means "attach the
// token" and "allow one retry after a refresh".
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
	// SkipAuth sends the request without a bearer token and never refreshes
	// (login, refresh, password change).
	SkipAuth bool
	// NoRetry surfaces a 401 as a *RequestError instead of refreshing.
	NoRetry bool
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the diagnostics logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithEvents sets the progress receiver.
func WithEvents(e Events) Option {
	return func(c *Client) {
		if e != nil {
			c.events = e
		}
	}
}

// WithMeterProvider sets where request and refresh counters are recorded.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) {
		if mp != nil {
			c.meterProvider = mp
		}
	}
}

// Client is the authenticated request executor.
type Client struct {
	cfg     Config
	http    *retry.Client
	session *session.State
	store   credstore.Store
	coord   *Coordinator

	log           zerolog.Logger
	events        Events
	meterProvider metric.MeterProvider
	metrics       *instruments
	now           func() time.Time
}

// NewClient builds a Client over sess and store.
func NewClient(
	cfg Config,
	sess *session.State,
	store credstore.Store,
	opts ...Option,
) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL cannot be empty")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = DefaultRefreshPath
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultRefreshTimeout
	}
	if cfg.ExpirySkew <= 0 {
		cfg.ExpirySkew = DefaultExpirySkew
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	c := &Client{
		cfg:           cfg,
		session:       sess,
		store:         store,
		log:           zerolog.Nop(),
		events:        NoopEvents{},
		meterProvider: noop.NewMeterProvider(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	var err error
	c.http, err = retry.NewClient(
		retry.WithHTTPClient(httpClient),
		retry.WithMaxRetries(cfg.MaxRetries),
		retry.WithNoLogging(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}

	c.metrics, err = newInstruments(c.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	c.coord = &Coordinator{
		client:  c,
		path:    cfg.RefreshPath,
		timeout: cfg.RefreshTimeout,
	}
	return c, nil
}

// Coordinator returns the client's refresh coordinator.
func (c *Client) Coordinator() *Coordinator {
	return c.coord
}

// Session returns the session the client reads tokens from.
func (c *Client) Session() *session.State {
	return c.session
}

// Events returns the receiver the client reports progress to.
func (c *Client) Events() Events {
	return c.events
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// Do executes r and decodes a 2xx JSON body into out (which may be nil).
//
// A 401 on an authenticated request triggers one shared refresh and exactly
// one resend. If the refresh fails, or the resend is refused again, the
// session and stored credentials are cleared and an *AuthError is returned.
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	if r.Method == "" {
		r.Method = http.MethodGet
	}
	auth := !r.SkipAuth

	var (
		token            string
		refreshAttempted bool
		refreshErr       error
		coalesced        bool
	)
	if auth {
		token = c.session.Token()
		if c.expiringSoon(token) {
			refreshAttempted = true
			coalesced, refreshErr = c.coord.refresh(ctx, token, true)
			if refreshErr == nil {
				token = c.session.Token()
			} else if ctx.Err() != nil {
				return &TransportError{Op: "refresh", Err: ctx.Err()}
			} else {
				c.log.Debug().Err(refreshErr).Msg("proactive refresh failed")
			}
		}
	}

	resp, err := c.send(ctx, r, token)
	if err != nil {
		return err
	}

	if resp.status == http.StatusUnauthorized && auth && !r.NoRetry {
		if refreshAttempted {
			// this request already spent its one refresh
			if refreshErr == nil {
				refreshErr = ErrTokenRejected
			}
			return c.authFailure(ctx, refreshErr, coalesced)
		}

		c.events.AccessTokenRejected()
		coalesced, err = c.coord.refresh(ctx, token, true)
		if err != nil {
			if ctx.Err() != nil {
				return &TransportError{Op: "refresh", Err: ctx.Err()}
			}
			return c.authFailure(ctx, err, coalesced)
		}

		c.events.TokenRefreshedRetrying()
		r.NoRetry = true
		resp, err = c.send(ctx, r, c.session.Token())
		if err != nil {
			return err
		}
		if resp.status == http.StatusUnauthorized {
			return c.authFailure(ctx, ErrTokenRejected, false)
		}
	}

	return decodeResponse(r, resp, out)
}

// response is a fully read HTTP answer.
type response struct {
	status int
	body   []byte
}

// send performs one HTTP exchange with token as bearer (none when empty).
func (c *Client) send(ctx context.Context, r Request, token string) (*response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	op := r.Method + " " + r.Path

	var body io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(reqCtx, r.Method, c.url(r.Path, r.Query), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.log.Debug().
		Str("method", r.Method).
		Str("path", r.Path).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Bool("auth", token != "").
		Msg("http request")

	resp, err := c.http.DoWithContext(reqCtx, req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		// a status answer that exhausted the retries is still an answer
		var retryErr *retry.RetryError
		if resp == nil || !errors.As(err, &retryErr) {
			c.log.Debug().Err(err).Str("method", r.Method).Str("path", r.Path).Msg("http request failed")
			return nil, &TransportError{Op: op, Err: err}
		}
		c.log.Debug().Err(err).Str("method", r.Method).Str("path", r.Path).Msg("retries exhausted")
	}

	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		if err == nil {
			return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", readErr)}
		}
		data = nil
	}

	c.metrics.request(ctx, r.Method, resp.StatusCode)
	c.log.Debug().Str("method", r.Method).Str("path", r.Path).Int("status", resp.StatusCode).Msg("http response")

	return &response{status: resp.StatusCode, body: data}, nil
}

// url joins the base URL, path and query. Absolute URLs are used as is.
func (c *Client) url(path string, query url.Values) string {
	u := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		u = c.cfg.BaseURL + path
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + query.Encode()
	}
	return u
}

// authFailure drops the session and stored credentials and wraps cause.
func (c *Client) authFailure(ctx context.Context, cause error, coalesced bool) error {
	// clearing must finish even if the caller is giving up
	clearCtx := context.WithoutCancel(ctx)

	c.coord.commitMu.Lock()
	c.session.Clear()
	err := credstore.DeleteAll(clearCtx, c.store, credstore.SessionKeys...)
	c.coord.commitMu.Unlock()
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to delete stored credentials")
		c.events.CredentialSaveFailed(err)
	}
	c.events.SessionCleared()
	c.metrics.authFailures.Add(clearCtx, 1)

	c.log.Info().Err(cause).Bool("coalesced", coalesced).Msg("session cleared after authentication failure")
	return &AuthError{Err: cause, Coalesced: coalesced}
}

func decodeResponse(r Request, resp *response, out any) error {
	if resp.status < 200 || resp.status > 299 {
		return newRequestError(resp.status, resp.body)
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &TransportError{
			Op:  r.Method + " " + r.Path,
			Err: fmt.Errorf("failed to parse response: %w", err),
		}
	}
	return nil
}
