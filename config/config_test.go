package config

import (
	"log/slog"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.Mode != AuthModePassword {
		t.Errorf("default auth mode = %q, want %q", cfg.Auth.Mode, AuthModePassword)
	}
	if cfg.Backend.BaseURL != "http://localhost:8000/api" {
		t.Errorf("default backend base URL = %q", cfg.Backend.BaseURL)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("default HTTP addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Auth.FallbackRole != "STUDENT" {
		t.Errorf("default fallback role = %q", cfg.Auth.FallbackRole)
	}
	if cfg.Postgres.Enabled {
		t.Error("audit database should be disabled by default")
	}
	if cfg.Redis.Enabled {
		t.Error("redis cache should be disabled by default")
	}
}

func TestAppConfig_EnvOverrides(t *testing.T) {
	t.Setenv("AUTH_MODE", "oidc")
	t.Setenv("OIDC_CLIENT_ID", "campus-ui")
	t.Setenv("AUTH_ROLE_RULES", "faculty=TEACHER;registrar=STAFF")
	t.Setenv("BACKEND_BASE_URL", "https://api.campus.edu/v1")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "cache:6379")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.Mode != AuthModeOIDC {
		t.Errorf("auth mode = %q, want oidc", cfg.Auth.Mode)
	}
	if cfg.Auth.OIDC.ClientID != "campus-ui" {
		t.Errorf("OIDC client ID = %q", cfg.Auth.OIDC.ClientID)
	}
	if len(cfg.Auth.RoleRules) != 2 || cfg.Auth.RoleRules[0] != "faculty=TEACHER" {
		t.Errorf("role rules = %v", cfg.Auth.RoleRules)
	}
	if cfg.Backend.BaseURL != "https://api.campus.edu/v1" {
		t.Errorf("backend base URL = %q", cfg.Backend.BaseURL)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "cache:6379" {
		t.Errorf("redis config = %+v", cfg.Redis)
	}
}

func TestAuthMode_UnmarshalText(t *testing.T) {
	tests := []struct {
		input   string
		want    AuthMode
		wantErr bool
	}{
		{input: "password", want: AuthModePassword},
		{input: "OIDC", want: AuthModeOIDC},
		{input: "dev", want: AuthModeDev},
		{input: "oauth", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		var mode AuthMode
		err := mode.UnmarshalText([]byte(tt.input))
		if tt.wantErr {
			if err == nil {
				t.Errorf("UnmarshalText(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("UnmarshalText(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if mode != tt.want {
			t.Errorf("UnmarshalText(%q) = %q, want %q", tt.input, mode, tt.want)
		}
	}
}

func TestSanitize_DevModeRelaxesCookies(t *testing.T) {
	cfg := AppConfig{IsDev: true}
	cfg.HTTP.CookieSecure = true
	cfg.Sanitize()

	if cfg.HTTP.CookieSecure {
		t.Error("dev mode should relax the secure cookie flag")
	}
}

func TestSanitize_ClampsDurations(t *testing.T) {
	cfg := AppConfig{}
	cfg.Backend.Timeout = -1
	cfg.HTTP.CookieMaxAge = 0
	cfg.Sanitize()

	if cfg.Backend.Timeout != 30*time.Second {
		t.Errorf("backend timeout = %v", cfg.Backend.Timeout)
	}
	if cfg.HTTP.CookieMaxAge != 720*time.Hour {
		t.Errorf("cookie max age = %v", cfg.HTTP.CookieMaxAge)
	}
}

func TestObservability_SlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{level: "debug", want: slog.LevelDebug},
		{level: "info", want: slog.LevelInfo},
		{level: "warn", want: slog.LevelWarn},
		{level: "error", want: slog.LevelError},
		{level: "bogus", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		c := ObservabilityConfig{LogLevel: tt.level}
		c.Sanitize()
		if got := c.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
