// Package apiclient is the Go client for the ShieldOps API. Its main job,
// beyond plain request plumbing, is keeping a fleet of concurrent callers
// consistent across access-token expiry: when a request comes back 401,
// exactly one refresh runs, every other caller waits for its outcome, and
// each original request is retried at most once with the new token. A failed
// refresh rejects every waiter and drops the stored credentials, so the
// process never loops on a dead session.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shieldops/backend/internal/models"
)

var (
	// ErrAuthRequired means the client holds no credentials at all; the
	// caller has to log in before retrying.
	ErrAuthRequired = errors.New("authentication required")

	// ErrSessionExpired means a refresh was attempted and rejected; the
	// stored credentials have been cleared.
	ErrSessionExpired = errors.New("session expired")
)

const defaultRefreshTimeout = 15 * time.Minute

// refreshResult is what a waiting request receives when the in-flight
// refresh settles.
type refreshResult struct {
	accessToken string
	err         error
}

type Client struct {
	baseURL   string
	http      *http.Client
	log       *zap.SugaredLogger
	store     *MemoryStore
	providers []CredentialProvider

	// refreshTimeout bounds one refresh round-trip. It defaults to the
	// access-token lifetime: a refresh that takes longer than the token it
	// mints is worthless.
	refreshTimeout time.Duration

	// onSessionExpired fires once per failed refresh, after credentials are
	// cleared. UIs hook their login redirect here.
	onSessionExpired func()

	mu         sync.Mutex
	refreshing bool
	pending    []chan refreshResult
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) { c.refreshTimeout = d }
}

func WithOnSessionExpired(fn func()) Option {
	return func(c *Client) { c.onSessionExpired = fn }
}

// WithCredentialProvider appends a fallback credential source. The in-memory
// store is always consulted first.
func WithCredentialProvider(p CredentialProvider) Option {
	return func(c *Client) { c.providers = append(c.providers, p) }
}

func NewClient(baseURL string, log *zap.SugaredLogger, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{Timeout: 30 * time.Second},
		log:            log,
		store:          NewMemoryStore(),
		refreshTimeout: defaultRefreshTimeout,
	}
	c.providers = []CredentialProvider{c.store}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// credentials walks the provider chain in order.
func (c *Client) credentials() (Credentials, bool) {
	for _, p := range c.providers {
		if creds, ok := p.Load(); ok {
			return creds, true
		}
	}
	return Credentials{}, false
}

// authExempt paths never trigger the refresh-retry machinery: a 401 from
// them is a definitive answer, not a stale-token symptom.
func authExempt(path string) bool {
	switch path {
	case "/api/v1/auth/login", "/api/v1/auth/signup", "/api/v1/auth/refresh", "/api/v1/landing-page-data", "/api/v1/ping":
		return true
	}
	return false
}

// Do performs one authenticated request. On a 401 from a non-exempt endpoint
// it joins (or starts) the shared refresh, then retries the request exactly
// once with the new access token. Any non-401 failure is returned untouched.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	creds, ok := c.credentials()
	if !ok && !authExempt(path) {
		return nil, ErrAuthRequired
	}

	resp, err := c.send(ctx, method, path, body, creds.AccessToken)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || authExempt(path) {
		return resp, nil
	}
	drainBody(resp)

	token, err := c.refreshAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	// Retry once. A second 401 means the fresh token was itself rejected
	// (e.g. the session was superseded between refresh and retry); treat it
	// as a dead session rather than refreshing again.
	resp, err = c.send(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drainBody(resp)
		c.expireSession()
		return nil, ErrSessionExpired
	}
	return resp, nil
}

// refreshAccessToken is the single-flight coordinator. The first caller to
// arrive performs the refresh; everyone else parks on a channel and receives
// the same outcome. All waiters share one result: one success revalidates
// every queued request, one failure rejects them all.
func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.refreshing {
		ch := make(chan refreshResult, 1)
		c.pending = append(c.pending, ch)
		c.mu.Unlock()

		select {
		case res := <-ch:
			return res.accessToken, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c.refreshing = true
	c.mu.Unlock()

	token, err := c.doRefresh(ctx)
	if err != nil {
		c.expireSession()
		err = fmt.Errorf("%w: %w", ErrSessionExpired, err)
	} else {
		c.store.SaveAccessToken(token)
	}

	c.mu.Lock()
	waiters := c.pending
	c.pending = nil
	c.refreshing = false
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- refreshResult{accessToken: token, err: err}
	}
	return token, err
}

func (c *Client) doRefresh(ctx context.Context) (string, error) {
	creds, ok := c.credentials()
	if !ok || creds.RefreshToken == "" {
		return "", errors.New("no refresh token")
	}

	ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	defer cancel()

	resp, err := c.send(ctx, http.MethodPost, "/api/v1/auth/refresh", models.RefreshRequest{RefreshToken: creds.RefreshToken}, "")
	if err != nil {
		return "", fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refresh rejected: %s", readReason(resp))
	}

	var out models.RefreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if out.AccessToken == "" {
		return "", errors.New("empty access token in refresh response")
	}

	c.log.Debugw("access token refreshed")
	return out.AccessToken, nil
}

// expireSession clears credentials and fires the expiry hook. Fail closed:
// after this the client demands a fresh login.
func (c *Client) expireSession() {
	c.store.Clear()
	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}, accessToken string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	return c.http.Do(req)
}

// Login authenticates and stores the returned token pair.
func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	resp, err := c.send(ctx, http.MethodPost, "/api/v1/auth/login", models.LoginRequest{Email: email, Password: password}, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrAuthRequired, readReason(resp))
	}

	var out models.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}

	c.store.Save(Credentials{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken})
	return &out, nil
}

// Logout deactivates the server-side session and drops local credentials.
// Local credentials are cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.Do(ctx, http.MethodPost, "/api/v1/auth/logout", nil)
	c.store.Clear()
	if err != nil {
		return err
	}
	drainBody(resp)
	return nil
}

// Refresh forces a token refresh through the same single-flight path the
// retry machinery uses.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.refreshAccessToken(ctx)
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/api/v1/auth/me", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("me: %s", readReason(resp))
	}

	var out models.User
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &out, nil
}

func readReason(resp *http.Response) string {
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Reason == "" {
		return resp.Status
	}
	return payload.Reason
}

func drainBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
