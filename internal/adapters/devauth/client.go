package devauth

// Package devauth provides a config-driven, in-memory TokenClient for
// local development. It lets the whole session flow run without an
// identity backend.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"time"

	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
	autherrors "github.com/campusworks/campus-ui-api/internal/errors"
	"github.com/campusworks/campus-ui-api/internal/ports"
)

// Config controls the dev client. Email is required; the rest default to
// a verified teacher account accepting any password.
type Config struct {
	Email       string
	Username    string
	Role        string
	Permissions []string
	// Password, when set, is the only accepted password. Empty accepts
	// anything.
	Password string
}

// Client implements the token ports against in-memory state. Issued
// refresh tokens live until Logout or process restart.
type Client struct {
	cfg  Config
	user domainauth.User

	mu      sync.Mutex
	refresh map[string]struct{}
}

var (
	_ ports.TokenClient    = (*Client)(nil)
	_ ports.TokenRefresher = (*Client)(nil)
)

// NewClient constructs a dev client from Config.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	if cfg.Username == "" {
		cfg.Username = strings.SplitN(cfg.Email, "@", 2)[0]
	}
	if cfg.Role == "" {
		cfg.Role = string(domainauth.RoleTeacher)
	}
	role := domainauth.ParseRole(cfg.Role)
	for i, p := range cfg.Permissions {
		role.Permissions = append(role.Permissions, domainauth.Permission{ID: i + 1, Name: p})
	}
	return &Client{
		cfg: cfg,
		user: domainauth.User{
			ID:              1,
			Email:           cfg.Email,
			Username:        cfg.Username,
			Role:            role,
			IsEmailVerified: true,
		},
		refresh: make(map[string]struct{}),
	}, nil
}

// Login accepts the configured account and issues a fresh token pair.
func (c *Client) Login(_ context.Context, creds domainauth.LoginCredentials) (domainauth.Session, error) {
	if !strings.EqualFold(creds.Email, c.cfg.Email) {
		return domainauth.Session{}, autherrors.InvalidCredentials()
	}
	if c.cfg.Password != "" && creds.Password != c.cfg.Password {
		return domainauth.Session{}, autherrors.InvalidCredentials()
	}

	access, err := randomToken("dev-access")
	if err != nil {
		return domainauth.Session{}, autherrors.Wrap(err, autherrors.KindServer, "issue token")
	}
	refresh, err := randomToken("dev-refresh")
	if err != nil {
		return domainauth.Session{}, autherrors.Wrap(err, autherrors.KindServer, "issue token")
	}

	c.mu.Lock()
	c.refresh[refresh] = struct{}{}
	c.mu.Unlock()

	u := c.user
	return domainauth.Session{
		Credentials: domainauth.Credentials{
			AccessToken:  access,
			RefreshToken: refresh,
		},
		User: &u,
	}, nil
}

// Register pretends to create the account.
func (c *Client) Register(context.Context, domainauth.RegisterData) error { return nil }

// VerifyEmail accepts any token.
func (c *Client) VerifyEmail(context.Context, string) error { return nil }

// ForgotPassword does nothing; dev mode has no mailbox.
func (c *Client) ForgotPassword(context.Context, string) error { return nil }

// ResetPassword accepts any token.
func (c *Client) ResetPassword(context.Context, string, string) error { return nil }

// Profile returns the configured user as long as a token is present.
func (c *Client) Profile(_ context.Context, store ports.CredentialStore) (domainauth.User, error) {
	if store.AccessToken() == "" {
		return domainauth.User{}, autherrors.Unauthorized("no access token")
	}
	return c.user, nil
}

// UpdateProfile applies the patch to the in-memory user.
func (c *Client) UpdateProfile(_ context.Context, store ports.CredentialStore, patch domainauth.ProfilePatch) (domainauth.User, error) {
	if store.AccessToken() == "" {
		return domainauth.User{}, autherrors.Unauthorized("no access token")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if patch.Username != nil {
		c.user.Username = *patch.Username
	}
	if patch.Phone != nil {
		c.user.Phone = *patch.Phone
	}
	if patch.Address != nil {
		c.user.Address = *patch.Address
	}
	if patch.ProfilePhoto != nil {
		c.user.ProfilePhoto = *patch.ProfilePhoto
	}
	if patch.NotificationPreferences != nil {
		c.user.NotificationPreferences = patch.NotificationPreferences
	}
	return c.user, nil
}

// Logout revokes the stored refresh token.
func (c *Client) Logout(_ context.Context, store ports.CredentialStore) error {
	refresh := store.RefreshToken()
	if refresh == "" {
		return nil
	}
	c.mu.Lock()
	delete(c.refresh, refresh)
	c.mu.Unlock()
	return nil
}

// Refresh issues a new access token for a live refresh token.
func (c *Client) Refresh(_ context.Context, refreshToken string) (string, error) {
	c.mu.Lock()
	_, ok := c.refresh[refreshToken]
	c.mu.Unlock()
	if !ok {
		return "", autherrors.RefreshInvalid(errors.New("unknown refresh token"))
	}
	access, err := randomToken("dev-access")
	if err != nil {
		return "", autherrors.Wrap(err, autherrors.KindServer, "issue token")
	}
	return access, nil
}

func randomToken(prefix string) (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + "-" + base64.RawURLEncoding.EncodeToString(b), nil
}

// SessionDuration is how long dev sessions notionally last; only used to
// size cookie lifetimes in dev bootstrap.
const SessionDuration = 8 * time.Hour
