package config

import (
	"fmt"
	"strings"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModePassword authenticates against the academic backend's
	// email/password token endpoint.
	AuthModePassword AuthMode = "password"
	// AuthModeOIDC uses an external OIDC identity provider.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeDev uses an in-memory identity (for development only).
	AuthModeDev AuthMode = "dev"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "password", "oidc", "dev":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: password, oidc, dev)", v)
	}
}

// OIDCConfig contains OIDC identity provider configuration.
type OIDCConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/sso/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email groups"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	// GroupsQuery is a JMESPath expression over ID token claims yielding
	// the group list, e.g. "groups" or "realm_access.roles".
	GroupsQuery string `env:"GROUPS_QUERY" envDefault:"groups"`
}

// DevAuthConfig controls the in-memory development identity.
// Used when AUTH_MODE=dev.
type DevAuthConfig struct {
	Email       string   `env:"EMAIL"       envDefault:"dev@campus.test"`
	Username    string   `env:"USERNAME"    envDefault:"dev"`
	Role        string   `env:"ROLE"        envDefault:"TEACHER"`
	Permissions []string `env:"PERMISSIONS" envDefault:"COURSE_VIEW;GRADE_VIEW" envSeparator:";"`
	// Password, when set, is the only accepted password. Empty accepts any.
	Password string `env:"PASSWORD"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"password"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// DevAuth configuration (used when Mode=dev).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// RoleRules maps identity provider groups to application roles,
	// ordered first-match, e.g. "faculty=TEACHER;registrar=STAFF".
	RoleRules []string `env:"AUTH_ROLE_RULES" envSeparator:";"`

	// FallbackRole is assigned when no role rule matches.
	FallbackRole string `env:"AUTH_FALLBACK_ROLE" envDefault:"STUDENT"`
}
