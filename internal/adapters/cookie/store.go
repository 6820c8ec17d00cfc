package cookie

// Package cookie implements the credential store over browser cookies.
// Each store instance is bound to one request/response exchange.

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
	"github.com/campusworks/campus-ui-api/internal/ports"
)

// Cookie names for the three persisted credential values.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	UserCookie         = "user"
)

// DefaultMaxAge is the fixed credential cookie lifetime, independent of
// token expiry.
const DefaultMaxAge = 30 * 24 * time.Hour

// Options control cookie attributes shared by all three credential cookies.
type Options struct {
	// Domain for the cookies. Empty uses the request domain.
	Domain string
	// Secure marks cookies for HTTPS-only transmission. Enabled in
	// production deployments.
	Secure bool
	// MaxAge overrides DefaultMaxAge when positive.
	MaxAge time.Duration
}

// Store reads credential cookies from the bound request and writes them to
// the bound response. Writes also update an in-memory overlay so a value
// set earlier in the same exchange is immediately visible to readers —
// Clear is atomic from the caller's point of view.
type Store struct {
	w    http.ResponseWriter
	r    *http.Request
	opts Options

	// overlay holds values written during this exchange; a nil pointer
	// entry marks a deletion.
	overlay map[string]*string
}

var _ ports.CredentialStore = (*Store)(nil)

// NewStore binds a credential store to one request/response pair.
func NewStore(w http.ResponseWriter, r *http.Request, opts Options) *Store {
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	return &Store{
		w:       w,
		r:       r,
		opts:    opts,
		overlay: make(map[string]*string),
	}
}

// SetAccessToken persists the bearer credential with the strictest
// transmission policy: HttpOnly, SameSite=Strict.
func (s *Store) SetAccessToken(token string) error {
	return s.set(AccessTokenCookie, token, true)
}

// SetRefreshToken persists the refresh credential with the same policy as
// the access token.
func (s *Store) SetRefreshToken(token string) error {
	return s.set(RefreshTokenCookie, token, true)
}

// SetUser persists the identity snapshot. Unlike the token cookies it is
// readable by client script, so the UI can render the cached profile
// without a round trip.
func (s *Store) SetUser(user domainauth.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	// Cookie values cannot carry JSON punctuation; base64url keeps the
	// payload a single token.
	return s.set(UserCookie, base64.RawURLEncoding.EncodeToString(data), false)
}

// AccessToken returns the persisted access token, or "" when absent.
func (s *Store) AccessToken() string {
	return s.get(AccessTokenCookie)
}

// RefreshToken returns the persisted refresh token, or "" when absent.
func (s *Store) RefreshToken() string {
	return s.get(RefreshTokenCookie)
}

// User returns the persisted user snapshot. A malformed value yields an
// error; the caller treats the client as logged out and clears the store.
func (s *Store) User() (domainauth.User, bool, error) {
	raw := s.get(UserCookie)
	if raw == "" {
		return domainauth.User{}, false, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		// Older deployments stored the JSON unencoded; accept it.
		data = []byte(raw)
	}

	var user domainauth.User
	if err := json.Unmarshal(data, &user); err != nil {
		return domainauth.User{}, false, fmt.Errorf("unmarshal persisted user: %w", err)
	}
	return user, true, nil
}

// Clear deletes all three credential cookies. Deleting an absent cookie is
// not an error, so Clear is idempotent.
func (s *Store) Clear() {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie, UserCookie} {
		s.delete(name)
	}
}

func (s *Store) set(name, value string, httpOnly bool) error {
	if strings.ContainsAny(value, ";,\n\r ") {
		return fmt.Errorf("cookie %s: value contains invalid characters", name)
	}
	http.SetCookie(s.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.opts.Domain,
		HttpOnly: httpOnly,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.opts.MaxAge.Seconds()),
	})
	v := value
	s.overlay[name] = &v
	return nil
}

func (s *Store) get(name string) string {
	if v, ok := s.overlay[name]; ok {
		if v == nil {
			return ""
		}
		return *v
	}
	c, err := s.r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// delete expires a cookie, mirroring the attributes used when setting it
// to maximize compatibility across browsers during deletion.
func (s *Store) delete(name string) {
	http.SetCookie(s.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   s.opts.Domain,
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
	})
	s.overlay[name] = nil
}
