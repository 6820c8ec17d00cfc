package identity

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"

	autherrors "github.com/campusworks/campus-ui-api/internal/errors"
	"github.com/campusworks/campus-ui-api/internal/ports"
)

// AuthTransport is an http.RoundTripper that attaches the bearer token
// from the request's credential store and transparently refreshes it.
//
// On a 401 the transport performs one shared refresh, persists the new
// access token, and replays the request exactly once. The retry is
// structural, not counted: the replayed response is returned as-is even
// when it is another 401. Requests without a bound store pass through
// untouched, so the refresh exchange itself can never recurse.
type AuthTransport struct {
	// Base performs the actual round trips. Defaults to
	// http.DefaultTransport.
	Base http.RoundTripper
	// Refresher exchanges refresh tokens for access tokens. Concurrent
	// refreshes for one session are expected to be collapsed by the
	// implementation.
	Refresher ports.TokenRefresher
	// ProactiveWindow, when positive, refreshes before sending if the
	// access token's exp claim falls inside the window. A failed
	// proactive refresh falls back to the reactive 401 path.
	ProactiveWindow time.Duration
	// Audit, when set, receives a refresh_failed event whenever a
	// refresh token is rejected and the session force-ends.
	Audit ports.AuditSink
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *AuthTransport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// RoundTrip implements http.RoundTripper.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	store := StoreFrom(req.Context())
	if store == nil {
		return t.base().RoundTrip(req)
	}

	buffered, err := replayable(req)
	if err != nil {
		return nil, err
	}

	token := store.AccessToken()
	if t.ProactiveWindow > 0 && token != "" && store.RefreshToken() != "" && ExpiresWithin(token, t.ProactiveWindow) {
		if fresh, err := t.refresh(buffered, store); err == nil {
			token = fresh
		} else {
			t.logger().DebugContext(req.Context(), "proactive refresh failed, deferring to 401 path", "error", err)
		}
	}

	resp, err := t.send(buffered, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	refreshToken := store.RefreshToken()
	if refreshToken == "" {
		// Nothing to refresh with; the caller sees the original 401.
		return resp, nil
	}
	drain(resp)

	fresh, err := t.refresh(buffered, store)
	if err != nil {
		return nil, err
	}
	return t.send(buffered, fresh)
}

// refresh performs one shared refresh exchange and persists the result.
// A terminal refresh failure clears the store so the client is fully
// logged out.
func (t *AuthTransport) refresh(req *http.Request, store ports.CredentialStore) (string, error) {
	access, err := t.Refresher.Refresh(req.Context(), store.RefreshToken())
	if err != nil {
		if autherrors.IsRefreshInvalid(err) {
			t.logger().InfoContext(req.Context(), "refresh token rejected, clearing credentials")
			if t.Audit != nil {
				event := ports.AuditEvent{Action: "refresh_failed", Detail: err.Error()}
				if user, ok, _ := store.User(); ok {
					event.Email = user.Email
					event.UserID = user.ID
				}
				t.Audit.Record(req.Context(), event)
			}
			store.Clear()
		}
		return "", err
	}
	if err := store.SetAccessToken(access); err != nil {
		t.logger().WarnContext(req.Context(), "persisting refreshed access token failed", "error", err)
	}
	return access, nil
}

// send issues one attempt. The original request is never mutated; each
// attempt gets its own clone with a fresh body.
func (t *AuthTransport) send(req *http.Request, token string) (*http.Response, error) {
	attempt := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		attempt.Body = body
	}
	if token != "" {
		attempt.Header.Set("Authorization", "Bearer "+token)
	}
	return t.base().RoundTrip(attempt)
}

// replayable returns a clone whose body can be re-read for the retry.
func replayable(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return out, nil
	}
	raw, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}
	out.Body = io.NopCloser(bytes.NewReader(raw))
	out.ContentLength = int64(len(raw))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}
	return out, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}
