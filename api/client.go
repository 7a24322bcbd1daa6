// Package api is the HTTP client for the arena platform. It owns outbound
// request plumbing (bearer attachment, transparent refresh-and-retry on 401,
// error-body normalization) and exposes one typed wrapper per server endpoint.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-arena-client/apierr"
	"github.com/jrsteele09/go-arena-client/tokenstore"
)

const defaultTimeout = 30 * time.Second

// Client performs authenticated requests against the platform API. Tokens are
// re-read from the store on every call so rotation by the keep-alive loop or by
// another process is always picked up; the client never caches a pair beyond a
// single logical request.
type Client struct {
	baseURL string
	httpc   *http.Client
	store   tokenstore.Store
	log     zerolog.Logger

	// refreshes collapses concurrent 401 victims onto one in-flight refresh
	// call; the flight key is released when it settles, success or not, so a
	// later 401 can start a fresh attempt.
	refreshes singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (primarily for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpc = hc }
}

// WithLogger sets the client's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a Client rooted at baseURL, reading credentials from store.
func New(baseURL string, store tokenstore.Store, options ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: defaultTimeout},
		store:   store,
		log:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Do performs one authenticated request. On a 401 with a refresh token on
// hand it runs the deduplicated refresh and retries exactly once with the new
// access token; a second 401 falls through to normal error handling. The
// response body is decoded into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	pair, err := c.store.Tokens()
	if err != nil {
		return fmt.Errorf("api: read tokens: %w", err)
	}

	access := ""
	if pair != nil {
		access = pair.AccessToken
	}

	status, respBody, err := c.send(ctx, method, path, body, access)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && pair != nil {
		fresh, refreshErr := c.refreshFor(ctx, pair.AccessToken)
		if refreshErr != nil {
			return refreshErr
		}
		status, respBody, err = c.send(ctx, method, path, body, fresh.AccessToken)
		if err != nil {
			return err
		}
	}

	if status < 200 || status > 299 {
		return normalizeError(status, respBody)
	}
	return decode(respBody, out)
}

// DoUnauthenticated performs a request without a bearer token and without the
// 401 retry path. Login-family calls use it: a 401 on a credentials request
// means the credentials are wrong, not that a token went stale.
func (c *Client) DoUnauthenticated(ctx context.Context, method, path string, body, out any) error {
	status, respBody, err := c.send(ctx, method, path, body, "")
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return normalizeError(status, respBody)
	}
	return decode(respBody, out)
}

// Refresh exchanges the stored refresh token for a new pair. At most one
// refresh network call is in flight process-wide at any instant; concurrent
// callers await the same outcome. On any failure (missing refresh token,
// network error, non-success response) all stored tokens are cleared and
// ErrSessionExpired is returned. Callers must treat that as a hard logout,
// not a retryable error.
func (c *Client) Refresh(ctx context.Context) (*tokenstore.TokenPair, error) {
	v, err, _ := c.refreshes.Do("refresh", func() (any, error) {
		pair, err := c.store.Tokens()
		if err != nil {
			return nil, fmt.Errorf("api: read tokens: %w", err)
		}
		return c.exchangeRefresh(ctx, pair)
	})
	if err != nil {
		return nil, err
	}
	return v.(*tokenstore.TokenPair), nil
}

// refreshFor is the 401-recovery variant of Refresh. staleAccess is the token
// the failed request used: when the stored pair has already moved past it a
// concurrent refresh settled first, and its result is reused instead of
// spending the (single-use) refresh token a second time.
func (c *Client) refreshFor(ctx context.Context, staleAccess string) (*tokenstore.TokenPair, error) {
	v, err, _ := c.refreshes.Do("refresh", func() (any, error) {
		current, err := c.store.Tokens()
		if err != nil {
			return nil, fmt.Errorf("api: read tokens: %w", err)
		}
		if current != nil && current.AccessToken != staleAccess {
			return current, nil
		}
		return c.exchangeRefresh(ctx, current)
	})
	if err != nil {
		return nil, err
	}
	return v.(*tokenstore.TokenPair), nil
}

func (c *Client) exchangeRefresh(ctx context.Context, pair *tokenstore.TokenPair) (*tokenstore.TokenPair, error) {
	if pair == nil {
		return nil, apierr.New(apierr.ErrSessionExpired, 0, "no refresh token held")
	}

	status, body, err := c.send(ctx, http.MethodPost, PathAuthRefresh, refreshRequest{RefreshToken: pair.RefreshToken}, "")
	if err != nil || status < 200 || status > 299 {
		// The session is unrecoverable either way: drop the stale pair so no
		// later call retries with it.
		if clearErr := c.store.Clear(); clearErr != nil {
			c.log.Error().Err(clearErr).Msg("clear tokens after failed refresh")
		}
		if err != nil {
			c.log.Debug().Err(err).Msg("token refresh failed")
		} else {
			c.log.Debug().Int("status", status).Msg("token refresh rejected")
		}
		return nil, apierr.New(apierr.ErrSessionExpired, status, "token refresh failed")
	}

	var tokens AuthTokens
	if err := decode(body, &tokens); err != nil {
		_ = c.store.Clear()
		return nil, apierr.New(apierr.ErrSessionExpired, status, "malformed refresh response")
	}

	fresh := tokenstore.TokenPair{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}
	if err := c.store.Save(fresh); err != nil {
		return nil, fmt.Errorf("api: save refreshed tokens: %w", err)
	}
	c.log.Debug().Msg("token pair refreshed")
	return &fresh, nil
}

// send issues one HTTP call and returns the status and the fully-read body.
func (c *Client) send(ctx context.Context, method, path string, body any, access string) (int, []byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("api: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("api: read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func decode(body []byte, out any) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apierr.New(apierr.ErrServerError, 0, "malformed response body")
	}
	return nil
}

// errorBody is the union of the error shapes the server emits. Older endpoints
// use `error`, a few use `reason`, validation failures nest `details`.
type errorBody struct {
	Error   string              `json:"error"`
	Details map[string][]string `json:"details"`
	Debug   string              `json:"debug"`
	Reason  string              `json:"reason"`
}

const bannedMarker = "BANNED"

// normalizeError adapts whatever the server sent into the apierr taxonomy.
// This is the only place the wire shapes are interpreted; nothing inward of
// the client ever sees them.
func normalizeError(status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	message := eb.Error
	if message == "" {
		message = http.StatusText(status)
	}

	switch {
	case eb.Error == bannedMarker || (eb.Reason != "" && status == http.StatusForbidden):
		e := apierr.New(apierr.ErrBanned, status, message)
		e.Reason = eb.Reason
		return e
	case len(eb.Details) > 0:
		e := apierr.New(apierr.ErrValidationFailed, status, message)
		e.Details = eb.Details
		return e
	case status == http.StatusUnauthorized:
		return apierr.New(apierr.ErrUnauthenticated, status, message)
	case status == http.StatusNotFound:
		return apierr.New(apierr.ErrNotFound, status, message)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return apierr.New(apierr.ErrValidationFailed, status, message)
	default:
		return apierr.New(apierr.ErrServerError, status, message)
	}
}

// asInvalidCredentials remaps the generic unauthenticated kind onto
// ErrInvalidCredentials. Login and register wrappers apply it: they run
// unauthenticated, so a 401/403 there can only mean the credentials were bad.
func asInvalidCredentials(err error) error {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) && errors.Is(err, apierr.ErrUnauthenticated) {
		remapped := apierr.New(apierr.ErrInvalidCredentials, apiErr.Status, apiErr.Message)
		return remapped
	}
	return err
}
