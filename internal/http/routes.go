package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/campusworks/campus-ui-api/internal/adapters/cookie"
	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
	"github.com/campusworks/campus-ui-api/internal/ports"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Sessions SessionServiceInterface
	// Hydrator resolves the session for the middleware chain. Usually the
	// same *service.SessionService as Sessions.
	Hydrator SessionHydrator
	// Proxy forwards /api/* traffic to the academic backend. Optional.
	Proxy http.Handler
	// Audit exposes the audit trail on an admin-gated route. Optional;
	// nil leaves the route unmounted.
	Audit AuditReader
	// SSOEnabled mounts the /auth/sso/* routes.
	SSOEnabled bool
	Cookies    cookie.Options
	Logger     *slog.Logger
}

// PermissionAuditView gates read access to the auth audit trail.
const PermissionAuditView = "AUDIT_VIEW"

// guestHydrator is the fallback when no hydrator is configured; every
// request is treated as unauthenticated.
type guestHydrator struct{}

func (guestHydrator) Current(context.Context, ports.CredentialStore) domainauth.Session {
	return domainauth.Session{}
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	if services.Hydrator == nil {
		services.Hydrator = guestHydrator{}
	}
	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Svc:     services.Sessions,
		Cookies: services.Cookies,
		Logger:  services.Logger,
	}
	registerAuthRoutes(mux, authHandlers, services.SSOEnabled)

	if services.Audit != nil {
		auditHandlers := &AuditHandlers{Svc: services.Audit}
		recent := RequirePermission(PermissionAuditView)(http.HandlerFunc(auditHandlers.Recent))
		mux.Handle("GET /auth/audit", recent)
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	if services.Proxy != nil {
		proxy := RequireSession()(services.Proxy)
		mux.Handle("/api/", proxy)
	}

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var handler http.Handler = mux
	handler = Session(services.Hydrator, services.Cookies)(handler)
	handler = BrowserDetection()(handler)
	handler = Logging(logger)(handler)
	handler = RequestID()(handler)
	handler = Recover(logger)(handler)
	return handler
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, sso bool) {
	mux.Handle("POST /auth/login", http.HandlerFunc(h.Login))
	mux.Handle("POST /auth/register", http.HandlerFunc(h.Register))
	mux.Handle("POST /auth/verify-email", http.HandlerFunc(h.VerifyEmail))
	mux.Handle("POST /auth/forgot-password", http.HandlerFunc(h.ForgotPassword))
	mux.Handle("POST /auth/reset-password", http.HandlerFunc(h.ResetPassword))
	mux.Handle("POST /auth/logout", http.HandlerFunc(h.Logout))
	mux.Handle("GET /auth/status", http.HandlerFunc(h.Status))
	mux.Handle("GET /auth/profile", RequireSession()(http.HandlerFunc(h.Profile)))
	mux.Handle("PUT /auth/profile", RequireSession()(http.HandlerFunc(h.UpdateProfile)))
	if sso {
		mux.Handle("GET /auth/sso/login", http.HandlerFunc(h.SSOLogin))
		mux.Handle("GET /auth/sso/callback", http.HandlerFunc(h.SSOCallback))
	}
}
