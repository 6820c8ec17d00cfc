package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/campusworks/campus-ui-api/internal/adapters/cookie"
	"github.com/campusworks/campus-ui-api/internal/adapters/identity"
	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
	"github.com/campusworks/campus-ui-api/internal/ports"
)

// SessionServiceInterface defines the interface for session service operations.
type SessionServiceInterface interface {
	Login(ctx context.Context, store ports.CredentialStore, creds domainauth.LoginCredentials, remoteAddr string) (domainauth.Session, error)
	Register(ctx context.Context, data domainauth.RegisterData, remoteAddr string) error
	VerifyEmail(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	Logout(ctx context.Context, store ports.CredentialStore, remoteAddr string)
	Profile(ctx context.Context, store ports.CredentialStore, force bool) (domainauth.User, error)
	UpdateProfile(ctx context.Context, store ports.CredentialStore, patch domainauth.ProfilePatch) (domainauth.User, error)
	BeginSSO(ctx context.Context) (authURL, state, nonce string, err error)
	CompleteSSO(ctx context.Context, store ports.CredentialStore, code, nonce, remoteAddr string) (domainauth.Session, error)
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc     SessionServiceInterface
	Cookies cookie.Options
	Logger  *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// store returns the request-bound credential store. The Session middleware
// normally provides it; fall back to a fresh binding so the handlers also
// work on routes mounted without it.
func (h *AuthHandlers) store(w http.ResponseWriter, r *http.Request) ports.CredentialStore {
	if store := identity.StoreFrom(r.Context()); store != nil {
		return store
	}
	return cookie.NewStore(w, r, h.Cookies)
}

// Login handles a password login.
// POST /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var creds domainauth.LoginCredentials
	if !DecodeJSON(w, r, &creds) {
		return
	}

	session, err := h.Svc.Login(r.Context(), h.store(w, r), creds, remoteAddr(r))
	if err != nil {
		RenderError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, sessionPayload(session))
}

// Register handles account registration.
// POST /auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var data domainauth.RegisterData
	if !DecodeJSON(w, r, &data) {
		return
	}

	if err := h.Svc.Register(r.Context(), data, remoteAddr(r)); err != nil {
		RenderError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]string{
		"detail": "registration accepted; check your email to verify the account",
	})
}

// VerifyEmail consumes an email verification token.
// POST /auth/verify-email.
func (h *AuthHandlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if !DecodeJSON(w, r, &body) {
		return
	}

	if err := h.Svc.VerifyEmail(r.Context(), body.Token); err != nil {
		RenderError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"detail": "email verified"})
}

// ForgotPassword requests a password reset email.
// POST /auth/forgot-password.
func (h *AuthHandlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !DecodeJSON(w, r, &body) {
		return
	}

	if err := h.Svc.ForgotPassword(r.Context(), body.Email); err != nil {
		RenderError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"detail": "password reset email sent"})
}

// ResetPassword consumes a reset token and sets a new password.
// POST /auth/reset-password.
func (h *AuthHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !DecodeJSON(w, r, &body) {
		return
	}

	if err := h.Svc.ResetPassword(r.Context(), body.Token, body.Password); err != nil {
		RenderError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"detail": "password updated"})
}

// Logout ends the session. Always succeeds from the client's perspective.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.Svc.Logout(r.Context(), h.store(w, r), remoteAddr(r))

	// AJAX requests get a JSON payload; regular requests redirect
	isAJAX := strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
	if isAJAX {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":      "success",
			"redirect_to": "/login",
		})
		return
	}

	http.Redirect(w, r, "/login", http.StatusFound)
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	if !session.IsAuthenticated() {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          session.User,
		"permissions":   session.EffectivePermissions(),
	})
}

// Profile returns the user profile, from cache unless ?refresh=true.
// GET /auth/profile.
func (h *AuthHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("refresh") == "true"
	user, err := h.Svc.Profile(r.Context(), h.store(w, r), force)
	if err != nil {
		RenderError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

// UpdateProfile applies a partial profile update.
// PUT /auth/profile.
func (h *AuthHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch domainauth.ProfilePatch
	if !DecodeJSON(w, r, &patch) {
		return
	}

	user, err := h.Svc.UpdateProfile(r.Context(), h.store(w, r), patch)
	if err != nil {
		RenderError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

// SSOLogin starts an OIDC login flow.
// GET /auth/sso/login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) SSOLogin(w http.ResponseWriter, r *http.Request) {
	redirectURI := safeRedirectPath(r.URL.Query().Get("redirect_uri"))

	authURL, state, nonce, err := h.Svc.BeginSSO(r.Context())
	if err != nil {
		RenderError(w, r, err)
		return
	}

	h.setOAuthCookies(w, r, oauthCookieParams{State: state, Nonce: nonce, RedirectURI: redirectURI})
	http.Redirect(w, r, authURL, http.StatusFound)
}

// SSOCallback completes an OIDC login flow.
// GET /auth/sso/callback?code=<code>&state=<state>.
func (h *AuthHandlers) SSOCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_code",
			Err:     errors.New("authorization code is required"),
		})
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_state",
			Err:     errors.New("invalid or missing state parameter"),
		})
		return
	}
	nonceCookie, err := r.Cookie("oauth_nonce")
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_nonce",
			Err:     errors.New("missing nonce parameter"),
		})
		return
	}

	if _, err := h.Svc.CompleteSSO(r.Context(), h.store(w, r), code, nonceCookie.Value, remoteAddr(r)); err != nil {
		h.logger().WarnContext(r.Context(), "sso login failed", "error", err)
		RenderError(w, r, err)
		return
	}

	h.clearCookie(w, r, "oauth_state")
	h.clearCookie(w, r, "oauth_nonce")

	redirectURI := h.getPostLoginRedirect(w, r)
	http.Redirect(w, r, redirectURI, http.StatusFound)
}

// sessionPayload shapes the login response body. Tokens are never echoed;
// they travel only via cookies.
func sessionPayload(session domainauth.Session) map[string]any {
	return map[string]any{
		"user":        session.User,
		"permissions": session.EffectivePermissions(),
	}
}

// remoteAddr resolves the client address, preferring the first entry of an
// upstream X-Forwarded-For.
func remoteAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	return r.RemoteAddr
}

// oauthCookieParams groups values needed to set OAuth cookies.
type oauthCookieParams struct {
	State       string
	Nonce       string
	RedirectURI string
}

// setOAuthCookies stores OAuth state, nonce, and the post-login redirect in secure cookies.
func (h *AuthHandlers) setOAuthCookies(w http.ResponseWriter, r *http.Request, p oauthCookieParams) {
	isSecure := h.Cookies.Secure || r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	cd := h.Cookies.Domain

	const oauthCookieMaxAge = 600 // 10 minutes

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    p.State,
		Path:     "/",
		Domain:   cd,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   oauthCookieMaxAge,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_nonce",
		Value:    p.Nonce,
		Path:     "/",
		Domain:   cd,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   oauthCookieMaxAge,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "post_login_redirect",
		Value:    p.RedirectURI,
		Path:     "/",
		Domain:   cd,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   oauthCookieMaxAge,
	})
}

// clearCookie clears a cookie by setting it to expire immediately.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	isSecure := h.Cookies.Secure || r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.Cookies.Domain,
		HttpOnly: true,
		Secure:   isSecure,
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
	})
}

// getPostLoginRedirect returns the post-login redirect URL and clears the cookie.
func (h *AuthHandlers) getPostLoginRedirect(w http.ResponseWriter, r *http.Request) string {
	redirectURI := "/"
	if redirectCookie, err := r.Cookie("post_login_redirect"); err == nil {
		redirectURI = safeRedirectPath(redirectCookie.Value)
		h.clearCookie(w, r, "post_login_redirect")
	}
	return redirectURI
}

// safeRedirectPath ensures the provided redirect is a same-origin relative
// path starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	return candidate
}
