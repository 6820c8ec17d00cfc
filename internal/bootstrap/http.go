package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/campusworks/campus-ui-api/config"
	"github.com/campusworks/campus-ui-api/internal/adapters/cookie"
	httpx "github.com/campusworks/campus-ui-api/internal/http"
)

// HTTPServerOptions contains everything needed to start the HTTP server.
type HTTPServerOptions struct {
	Config  config.AppConfig
	Session SessionResult
	Logger  *slog.Logger
}

// StartHTTPServer builds the router and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(opts HTTPServerOptions) (*http.Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cookies := cookie.Options{
		Domain: opts.Config.HTTP.CookieDomain,
		Secure: opts.Config.HTTP.CookieSecure,
		MaxAge: opts.Config.HTTP.CookieMaxAge,
	}

	var proxy http.Handler
	if opts.Session.Backend != nil {
		p, err := httpx.NewBackendProxy(httpx.BackendProxyOptions{
			BackendURL:  opts.Config.Backend.BaseURL,
			Transport:   opts.Session.Backend.Transport(),
			StripPrefix: "/api",
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		proxy = p
	}

	// A typed-nil *data.AuditRepo must not reach the router as a
	// non-nil interface, so only assign when the repo exists.
	var auditReader httpx.AuditReader
	if opts.Session.AuditLog != nil {
		auditReader = opts.Session.AuditLog
	}

	handler := httpx.NewRouter(httpx.RouterServices{
		Sessions:   opts.Session.Sessions,
		Audit:      auditReader,
		Hydrator:   opts.Session.Sessions,
		Proxy:      proxy,
		SSOEnabled: opts.Session.SSOEnabled,
		Cookies:    cookies,
		Logger:     logger,
	})

	server := &http.Server{
		Addr:         opts.Config.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server, nil
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	if logger != nil {
		logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if logger != nil {
		logger.Info("HTTP server stopped")
	}
	return nil
}
