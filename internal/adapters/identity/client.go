package identity

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"

	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
	autherrors "github.com/campusworks/campus-ui-api/internal/errors"
	"github.com/campusworks/campus-ui-api/internal/ports"
)

// Backend endpoint paths, relative to the API base URL.
const (
	loginPath          = "users/token/"
	registerPath       = "users/auth/register/"
	verifyEmailPath    = "users/auth/verify-email/"
	forgotPasswordPath = "users/auth/forgot-password/"
	resetPasswordPath  = "users/auth/reset-password/"
	logoutPath         = "users/auth/logout/"
	profilePath        = "users/profile/"
	refreshPath        = "token/refresh/"
)

const maxErrorBody = 64 << 10

// Config holds construction parameters for the identity Client.
type Config struct {
	// BaseURL is the backend API root, e.g. "http://127.0.0.1:8000/api".
	BaseURL string
	// Timeout bounds each backend round trip. Defaults to 30s.
	Timeout time.Duration
	// ProactiveRefreshWindow refreshes access tokens expiring within
	// the window instead of waiting for a 401. Defaults to 30s; set
	// negative to disable.
	ProactiveRefreshWindow time.Duration
	// Audit, when set, receives refresh_failed events from the
	// authenticated transport.
	Audit ports.AuditSink
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Client talks to the upstream identity backend. It owns two HTTP clients:
// a bare one for credential exchanges (login, refresh) that must never be
// intercepted, and an authenticated one whose transport attaches bearer
// tokens and refreshes them on 401.
type Client struct {
	baseURL string
	base    *http.Client
	authed  *http.Client
	log     *slog.Logger

	// refreshGroup collapses concurrent refresh attempts for the same
	// refresh token into a single upstream call.
	refreshGroup singleflight.Group
}

var (
	_ ports.TokenClient    = (*Client)(nil)
	_ ports.TokenRefresher = (*Client)(nil)
)

// NewClient builds a Client for the given backend.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("identity: base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	proactive := cfg.ProactiveRefreshWindow
	if proactive == 0 {
		proactive = 30 * time.Second
	}
	if proactive < 0 {
		proactive = 0
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("identity: cookie jar: %w", err)
	}

	c := &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		base: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		log: log.With("component", "identity"),
	}
	c.authed = &http.Client{
		Timeout: timeout,
		Jar:     jar,
		Transport: &AuthTransport{
			Base:            http.DefaultTransport,
			Refresher:       c,
			ProactiveWindow: proactive,
			Audit:           cfg.Audit,
			Logger:          c.log,
		},
	}
	return c, nil
}

// Transport returns the authenticated round tripper. Callers proxying
// arbitrary requests to the backend reuse it so bearer attach and
// refresh-and-replay apply uniformly; the credential store must be carried
// in the request context via WithStore.
func (c *Client) Transport() http.RoundTripper {
	return c.authed.Transport
}

// Login exchanges credentials for a token pair and user snapshot.
func (c *Client) Login(ctx context.Context, creds domainauth.LoginCredentials) (domainauth.Session, error) {
	var payload struct {
		Access  string           `json:"access"`
		Refresh string           `json:"refresh"`
		User    *domainauth.User `json:"user"`
	}
	err := c.post(ctx, c.base, loginPath, creds, &payload, func(resp *http.Response, body []byte) error {
		if resp.StatusCode == http.StatusUnauthorized {
			return autherrors.InvalidCredentials()
		}
		return c.failure(resp, body)
	})
	if err != nil {
		return domainauth.Session{}, err
	}
	if payload.Access == "" || payload.Refresh == "" {
		return domainauth.Session{}, autherrors.Server("login response missing token pair")
	}
	return domainauth.Session{
		Credentials: domainauth.Credentials{
			AccessToken:  payload.Access,
			RefreshToken: payload.Refresh,
		},
		User: payload.User,
	}, nil
}

// Register creates a new account. Verification happens out of band.
func (c *Client) Register(ctx context.Context, data domainauth.RegisterData) error {
	return c.post(ctx, c.base, registerPath, data, nil, c.failure)
}

// VerifyEmail redeems an email verification token.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	body := map[string]string{"token": token}
	return c.post(ctx, c.base, verifyEmailPath, body, nil, c.failure)
}

// ForgotPassword asks the backend to send a reset email. The backend
// answers 200 whether or not the address exists.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.post(ctx, c.base, forgotPasswordPath, body, nil, c.failure)
}

// ResetPassword redeems a reset token for a new password.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	body := map[string]string{"token": token, "password": password}
	return c.post(ctx, c.base, resetPasswordPath, body, nil, c.failure)
}

// Profile fetches the authenticated user's profile through the
// refreshing transport.
func (c *Client) Profile(ctx context.Context, store ports.CredentialStore) (domainauth.User, error) {
	var user domainauth.User
	req, err := c.newRequest(WithStore(ctx, store), http.MethodGet, profilePath, nil)
	if err != nil {
		return domainauth.User{}, err
	}
	if err := c.do(c.authed, req, &user, c.failure); err != nil {
		return domainauth.User{}, err
	}
	return user, nil
}

// UpdateProfile applies a partial profile update and returns the
// resulting snapshot.
func (c *Client) UpdateProfile(ctx context.Context, store ports.CredentialStore, patch domainauth.ProfilePatch) (domainauth.User, error) {
	var user domainauth.User
	req, err := c.newRequest(WithStore(ctx, store), http.MethodPut, profilePath, patch)
	if err != nil {
		return domainauth.User{}, err
	}
	if err := c.do(c.authed, req, &user, c.failure); err != nil {
		return domainauth.User{}, err
	}
	return user, nil
}

// Logout revokes the refresh token upstream. Callers treat failures as
// best effort; local credentials are cleared regardless.
func (c *Client) Logout(ctx context.Context, store ports.CredentialStore) error {
	refresh := store.RefreshToken()
	if refresh == "" {
		return nil
	}
	body := map[string]string{"refresh": refresh}
	return c.post(ctx, c.base, logoutPath, body, nil, c.failure)
}

// Refresh exchanges a refresh token for a new access token. Concurrent
// calls with the same token share one upstream exchange.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", autherrors.RefreshInvalid(nil)
	}
	v, err, _ := c.refreshGroup.Do(refreshToken, func() (any, error) {
		return c.refreshOnce(ctx, refreshToken)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) refreshOnce(ctx context.Context, refreshToken string) (string, error) {
	var payload struct {
		Access string `json:"access"`
	}
	body := map[string]string{"refresh": refreshToken}
	err := c.post(ctx, c.base, refreshPath, body, &payload, func(resp *http.Response, raw []byte) error {
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			_, msg := parseErrorBody(raw)
			return autherrors.RefreshInvalid(fmt.Errorf("backend rejected refresh: %s", nonEmpty(msg, resp.Status)))
		default:
			return c.failure(resp, raw)
		}
	})
	if err != nil {
		return "", err
	}
	if payload.Access == "" {
		return "", autherrors.Server("refresh response missing access token")
	}
	return payload.Access, nil
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, autherrors.Wrap(err, autherrors.KindValidation, "encode request")
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, autherrors.Network(err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// post issues a JSON POST and decodes a 2xx response into out when out is
// non-nil. onError maps a non-2xx response to a normalized error.
func (c *Client) post(ctx context.Context, httpc *http.Client, path string, payload, out any, onError func(*http.Response, []byte) error) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	return c.do(httpc, req, out, onError)
}

func (c *Client) do(httpc *http.Client, req *http.Request, out any, onError func(*http.Response, []byte) error) error {
	resp, err := httpc.Do(req)
	if err != nil {
		// The refreshing transport reports terminal refresh failures as
		// AuthError wrapped in *url.Error; surface those unchanged.
		var authErr *autherrors.AuthError
		if stderrors.As(err, &authErr) {
			return authErr
		}
		return autherrors.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return onError(resp, raw)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return autherrors.Wrap(err, autherrors.KindServer, "decode backend response")
	}
	return nil
}

// failure is the default mapping from a non-2xx backend response to the
// error taxonomy.
func (c *Client) failure(resp *http.Response, body []byte) error {
	field, msg := parseErrorBody(body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return autherrors.Unauthorized(nonEmpty(msg, "not authorized"))
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		if field != "" {
			return autherrors.ValidationField(field, msg)
		}
		return autherrors.Validation(nonEmpty(msg, "request rejected"))
	case resp.StatusCode >= 500:
		return autherrors.Serverf("backend returned %s", resp.Status)
	default:
		return autherrors.Serverf("unexpected backend status %s", resp.Status)
	}
}

// parseErrorBody extracts a human-readable message from a backend error
// payload. The backend answers either {"detail": "..."} or a field error
// map like {"email": ["already taken"]}.
func parseErrorBody(body []byte) (field, msg string) {
	if len(body) == 0 {
		return "", ""
	}
	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != "" {
		return "", detail.Detail
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) == 0 {
		return "", strings.TrimSpace(string(body))
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			return k, v
		case []any:
			if len(v) > 0 {
				if s, ok := v[0].(string); ok {
					return k, s
				}
			}
		}
	}
	return "", strings.TrimSpace(string(body))
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
