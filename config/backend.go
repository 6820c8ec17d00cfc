package config

import "time"

// BackendConfig contains the academic backend API connection settings.
type BackendConfig struct {
	// BaseURL is the backend API root, e.g. "http://localhost:8000/api".
	BaseURL string `env:"BACKEND_BASE_URL" envDefault:"http://localhost:8000/api"`

	// Timeout bounds each backend round trip.
	Timeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"30s"`

	// ProactiveRefreshWindow refreshes access tokens expiring within the
	// window instead of waiting for a 401. Zero uses the client default;
	// negative disables proactive refresh.
	ProactiveRefreshWindow time.Duration `env:"BACKEND_PROACTIVE_REFRESH_WINDOW" envDefault:"30s"`

	// ProfileCacheTTL bounds cached profile staleness.
	ProfileCacheTTL time.Duration `env:"BACKEND_PROFILE_CACHE_TTL" envDefault:"5m"`
}

// Sanitize applies guardrails to backend configuration values.
func (b *BackendConfig) Sanitize() {
	if b.Timeout <= 0 {
		b.Timeout = 30 * time.Second
	}
	if b.ProfileCacheTTL <= 0 {
		b.ProfileCacheTTL = 5 * time.Minute
	}
}
