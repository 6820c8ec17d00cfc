package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/campusworks/campus-ui-api/config"
	"github.com/campusworks/campus-ui-api/internal/adapters/authroles"
	"github.com/campusworks/campus-ui-api/internal/adapters/devauth"
	"github.com/campusworks/campus-ui-api/internal/adapters/identity"
	"github.com/campusworks/campus-ui-api/internal/adapters/oidc"
	redisadapter "github.com/campusworks/campus-ui-api/internal/adapters/redis"
	"github.com/campusworks/campus-ui-api/internal/data"
	"github.com/campusworks/campus-ui-api/internal/ports"
	"github.com/campusworks/campus-ui-api/internal/service"
)

// SessionOptions carries the dependencies for BuildSessionService.
type SessionOptions struct {
	Config      config.AppConfig
	RedisClient redis.UniversalClient
	DB          *sql.DB
	Logger      *slog.Logger
}

// SessionResult is the built session service with the backend client it
// wraps. The client is exposed separately so the HTTP proxy can reuse its
// authenticated transport.
type SessionResult struct {
	Sessions *service.SessionService
	Backend  *identity.Client
	// AuditLog is the queryable audit store, set when the audit database
	// is configured. Backs the admin audit route.
	AuditLog *data.AuditRepo
	// SSOEnabled reports whether the SSO login routes should be mounted.
	SSOEnabled bool
}

// BuildSessionService wires the token client, profile cache, audit sink,
// and optional SSO provider per the configured auth mode.
func BuildSessionService(opts SessionOptions) (SessionResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var cache ports.ProfileCache
	if opts.RedisClient != nil {
		cache = redisadapter.NewProfileCache(opts.RedisClient)
	}

	var audit ports.AuditSink
	var auditLog *data.AuditRepo
	if opts.DB != nil {
		auditLog = data.NewAuditRepo(opts.DB, logger)
		audit = auditLog
	} else {
		audit = &data.SlogAuditSink{Log: logger}
	}

	result, err := buildByMode(opts, cache, audit, logger)
	if err != nil {
		return SessionResult{}, err
	}
	result.AuditLog = auditLog
	return result, nil
}

func buildByMode(opts SessionOptions, cache ports.ProfileCache, audit ports.AuditSink, logger *slog.Logger) (SessionResult, error) {
	switch opts.Config.Auth.Mode {
	case config.AuthModeDev:
		return buildDevSession(opts, cache, audit, logger)
	case config.AuthModeOIDC:
		return buildOIDCSession(opts, cache, audit, logger)
	default:
		return buildPasswordSession(opts, cache, audit, logger)
	}
}

func buildPasswordSession(opts SessionOptions, cache ports.ProfileCache, audit ports.AuditSink, logger *slog.Logger) (SessionResult, error) {
	backend, err := newBackendClient(opts.Config.Backend, audit, logger)
	if err != nil {
		return SessionResult{}, err
	}

	sessions := service.NewSessionService(service.SessionServiceOptions{
		Client:     backend,
		Cache:      cache,
		Audit:      audit,
		Logger:     logger,
		ProfileTTL: opts.Config.Backend.ProfileCacheTTL,
	})
	return SessionResult{Sessions: sessions, Backend: backend}, nil
}

func buildOIDCSession(opts SessionOptions, cache ports.ProfileCache, audit ports.AuditSink, logger *slog.Logger) (SessionResult, error) {
	oc := opts.Config.Auth.OIDC
	if oc.DiscoveryURL == "" || oc.ClientID == "" || oc.ClientSecret == "" {
		return SessionResult{}, fmt.Errorf("auth mode oidc requires OIDC_DISCOVERY_URL, OIDC_CLIENT_ID, and OIDC_CLIENT_SECRET")
	}

	backend, err := newBackendClient(opts.Config.Backend, audit, logger)
	if err != nil {
		return SessionResult{}, err
	}

	mapper := authroles.NewStaticMapper(opts.Config.Auth.RoleRules, opts.Config.Auth.FallbackRole)
	sso, err := oidc.NewProvider(oidc.ProviderConfig{
		ClientID:     oc.ClientID,
		ClientSecret: oc.ClientSecret,
		RedirectURL:  oc.RedirectURL,
		Scope:        oc.Scope,
		DiscoveryURL: oc.DiscoveryURL,
		GroupsQuery:  oc.GroupsQuery,
		Mapper:       mapper,
	})
	if err != nil {
		return SessionResult{}, fmt.Errorf("create OIDC provider: %w", err)
	}

	sessions := service.NewSessionService(service.SessionServiceOptions{
		Client:     backend,
		Cache:      cache,
		Audit:      audit,
		SSO:        sso,
		Logger:     logger,
		ProfileTTL: opts.Config.Backend.ProfileCacheTTL,
	})
	return SessionResult{Sessions: sessions, Backend: backend, SSOEnabled: true}, nil
}

func buildDevSession(opts SessionOptions, cache ports.ProfileCache, audit ports.AuditSink, logger *slog.Logger) (SessionResult, error) {
	dc := opts.Config.Auth.DevAuth
	client, err := devauth.NewClient(devauth.Config{
		Email:       dc.Email,
		Username:    dc.Username,
		Role:        dc.Role,
		Permissions: dc.Permissions,
		Password:    dc.Password,
	})
	if err != nil {
		return SessionResult{}, fmt.Errorf("create dev auth client: %w", err)
	}

	logger.Warn("dev auth mode enabled; do not use in production", "email", dc.Email)

	sessions := service.NewSessionService(service.SessionServiceOptions{
		Client:     client,
		Cache:      cache,
		Audit:      audit,
		Logger:     logger,
		ProfileTTL: opts.Config.Backend.ProfileCacheTTL,
	})
	return SessionResult{Sessions: sessions}, nil
}

func newBackendClient(cfg config.BackendConfig, audit ports.AuditSink, logger *slog.Logger) (*identity.Client, error) {
	client, err := identity.NewClient(identity.Config{
		BaseURL:                cfg.BaseURL,
		Timeout:                cfg.Timeout,
		ProactiveRefreshWindow: cfg.ProactiveRefreshWindow,
		Audit:                  audit,
		Logger:                 logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}
	return client, nil
}
