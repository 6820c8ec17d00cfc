package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
)

// CredentialStore persists the three credential values for one browser
// client: access token, refresh token, and the serialized user snapshot.
// Implementations are scoped to a single request/response exchange (cookies)
// or to process memory (tests, storage-disabled fallback).
type CredentialStore interface {
	// SetAccessToken persists the short-lived bearer credential.
	SetAccessToken(token string) error
	// SetRefreshToken persists the long-lived refresh credential.
	SetRefreshToken(token string) error
	// SetUser persists the cached identity snapshot in client-readable form.
	SetUser(user domainauth.User) error

	// AccessToken returns the persisted access token, or "" when absent.
	AccessToken() string
	// RefreshToken returns the persisted refresh token, or "" when absent.
	RefreshToken() string
	// User returns the persisted user. A malformed persisted value yields
	// an error so the caller can treat the client as logged out.
	User() (domainauth.User, bool, error)

	// Clear removes all three values. Absent keys are not an error.
	Clear()
}

// TokenClient performs every network exchange with the identity backend.
// All failures are normalized into *errors.AuthError; transport errors
// never leak through this interface.
type TokenClient interface {
	Login(ctx context.Context, creds domainauth.LoginCredentials) (domainauth.Session, error)
	Register(ctx context.Context, data domainauth.RegisterData) error
	VerifyEmail(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	Profile(ctx context.Context, store CredentialStore) (domainauth.User, error)
	UpdateProfile(ctx context.Context, store CredentialStore, patch domainauth.ProfilePatch) (domainauth.User, error)
	// Logout revokes server-side session artifacts. Best effort: local
	// logout proceeds even when this fails.
	Logout(ctx context.Context, store CredentialStore) error
}

// TokenRefresher exchanges a refresh token for a new access token.
// A missing, expired, or revoked refresh token yields KindRefreshInvalid,
// the terminal failure that forces full logout.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (accessToken string, err error)
}

// SSOProvider initiates and completes an enterprise SSO login flow against
// an OIDC identity provider, yielding the same session shape as a password
// login.
type SSOProvider interface {
	// Begin starts the flow and returns the provider auth URL, an opaque
	// state, and a nonce.
	Begin(ctx context.Context) (authURL, state, nonce string, err error)
	// Exchange completes the flow, verifying state and nonce.
	Exchange(ctx context.Context, code, nonce string) (domainauth.Session, error)
}

// RoleMapper maps identity-provider groups to an application role.
type RoleMapper interface {
	Map(groups []string) domainauth.Role
}

// ProfileCache holds the server-fetched profile snapshot between requests.
// It never stores tokens; the CredentialStore remains the single
// authoritative credential store.
type ProfileCache interface {
	Get(ctx context.Context, userID int) (domainauth.User, bool, error)
	Set(ctx context.Context, user domainauth.User, ttl time.Duration) error
	Invalidate(ctx context.Context, userID int) error
}

// AuditEvent is a structured record of an auth lifecycle transition.
type AuditEvent struct {
	ID         string
	Action     string // login, login_failed, logout, register, refresh_failed
	Email      string
	UserID     int
	RemoteAddr string
	Detail     string
	OccurredAt time.Time
}

// AuditSink receives auth audit events. Recording is best effort and must
// never fail the user-visible flow.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent)
}
