package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
	autherrors "github.com/campusworks/campus-ui-api/internal/errors"
	"github.com/campusworks/campus-ui-api/internal/ports"
)

// Audit action names recorded by the session service.
const (
	auditLogin       = "login"
	auditLoginFailed = "login_failed"
	auditLogout      = "logout"
	auditRegister    = "register"
)

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	Client ports.TokenClient
	// Cache is optional; without it every profile read hits the backend.
	Cache ports.ProfileCache
	// Audit is optional; events are dropped when nil.
	Audit ports.AuditSink
	// SSO is optional; when nil the SSO endpoints report validation
	// errors.
	SSO    ports.SSOProvider
	Logger *slog.Logger
	// ProfileTTL bounds cached profile staleness. Defaults to 5 minutes.
	ProfileTTL time.Duration
}

// SessionService owns the session lifecycle: login, hydration from
// persisted credentials, profile reads, and logout. Credentials live only
// in the per-request store; the cache holds profile snapshots keyed by
// user ID.
type SessionService struct {
	client ports.TokenClient
	cache  ports.ProfileCache
	audit  ports.AuditSink
	sso    ports.SSOProvider
	log    *slog.Logger
	ttl    time.Duration

	// logins coalesces duplicate concurrent submissions of the same
	// credentials (double-clicked login forms) into one backend call.
	logins singleflight.Group
}

// NewSessionService constructs a new SessionService.
func NewSessionService(opts SessionServiceOptions) *SessionService {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	ttl := opts.ProfileTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SessionService{
		client: opts.Client,
		cache:  opts.Cache,
		audit:  opts.Audit,
		sso:    opts.SSO,
		log:    log.With("component", "session"),
		ttl:    ttl,
	}
}

// Login authenticates against the backend and persists the resulting
// credentials in the store. Persistence failures degrade to a warning:
// the caller still gets a live session for this exchange.
func (s *SessionService) Login(ctx context.Context, store ports.CredentialStore, creds domainauth.LoginCredentials, remoteAddr string) (domainauth.Session, error) {
	if err := ctx.Err(); err != nil {
		return domainauth.Session{}, autherrors.Wrap(err, autherrors.KindNetwork, "request aborted")
	}
	if creds.Email == "" {
		return domainauth.Session{}, autherrors.ValidationField("email", "email is required")
	}
	if creds.Password == "" {
		return domainauth.Session{}, autherrors.ValidationField("password", "password is required")
	}

	key := strings.ToLower(creds.Email) + "\x00" + creds.Password
	v, err, _ := s.logins.Do(key, func() (any, error) {
		return s.client.Login(ctx, creds)
	})
	if err != nil {
		s.record(ctx, ports.AuditEvent{
			Action:     auditLoginFailed,
			Email:      creds.Email,
			RemoteAddr: remoteAddr,
			Detail:     string(autherrors.KindOf(err)),
		})
		return domainauth.Session{}, err
	}
	session := v.(domainauth.Session)

	s.persist(ctx, store, session)
	if session.User != nil {
		s.primeCache(ctx, *session.User)
	}

	event := ports.AuditEvent{Action: auditLogin, Email: creds.Email, RemoteAddr: remoteAddr}
	if session.User != nil {
		event.UserID = session.User.ID
	}
	s.record(ctx, event)
	return session, nil
}

// Register creates a new account. The user still logs in separately after
// verifying their email.
func (s *SessionService) Register(ctx context.Context, data domainauth.RegisterData, remoteAddr string) error {
	if data.Email == "" {
		return autherrors.ValidationField("email", "email is required")
	}
	if data.Password == "" {
		return autherrors.ValidationField("password", "password is required")
	}
	if data.Password != data.Password2 {
		return autherrors.ValidationField("password2", "passwords do not match")
	}
	if err := s.client.Register(ctx, data); err != nil {
		return err
	}
	s.record(ctx, ports.AuditEvent{Action: auditRegister, Email: data.Email, RemoteAddr: remoteAddr})
	return nil
}

// VerifyEmail redeems an email verification token.
func (s *SessionService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return autherrors.ValidationField("token", "verification token is required")
	}
	return s.client.VerifyEmail(ctx, token)
}

// ForgotPassword requests a password reset email.
func (s *SessionService) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return autherrors.ValidationField("email", "email is required")
	}
	return s.client.ForgotPassword(ctx, email)
}

// ResetPassword redeems a reset token for a new password.
func (s *SessionService) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return autherrors.ValidationField("token", "reset token is required")
	}
	if password == "" {
		return autherrors.ValidationField("password", "password is required")
	}
	return s.client.ResetPassword(ctx, token, password)
}

// Current hydrates the session from persisted credentials. A malformed
// user snapshot clears the store and yields a logged-out session rather
// than an error.
func (s *SessionService) Current(ctx context.Context, store ports.CredentialStore) domainauth.Session {
	session := domainauth.Session{
		Credentials: domainauth.Credentials{
			AccessToken:  store.AccessToken(),
			RefreshToken: store.RefreshToken(),
		},
	}
	user, ok, err := store.User()
	if err != nil {
		s.log.WarnContext(ctx, "persisted user snapshot unreadable, logging client out", "error", err)
		store.Clear()
		return domainauth.Session{}
	}
	if ok {
		session.User = &user
	}
	return session
}

// Logout ends the session. It is idempotent and always succeeds locally;
// server-side revocation is best effort.
func (s *SessionService) Logout(ctx context.Context, store ports.CredentialStore, remoteAddr string) {
	user, hadUser, _ := store.User()

	if store.RefreshToken() != "" {
		if err := s.client.Logout(ctx, store); err != nil {
			s.log.WarnContext(ctx, "server-side logout failed, clearing locally anyway", "error", err)
		}
	}
	if hadUser {
		s.dropCache(ctx, user.ID)
	}
	store.Clear()

	event := ports.AuditEvent{Action: auditLogout, RemoteAddr: remoteAddr}
	if hadUser {
		event.Email = user.Email
		event.UserID = user.ID
	}
	s.record(ctx, event)
}

// Profile returns the user's profile, preferring the cache unless force
// is set. A fresh fetch re-primes both the cache and the persisted
// snapshot.
func (s *SessionService) Profile(ctx context.Context, store ports.CredentialStore, force bool) (domainauth.User, error) {
	if !force {
		if user, ok := s.cachedProfile(ctx, store); ok {
			return user, nil
		}
	}

	user, err := s.client.Profile(ctx, store)
	if err != nil {
		return domainauth.User{}, err
	}
	s.refreshSnapshot(ctx, store, user)
	return user, nil
}

// UpdateProfile applies a partial update and re-primes cache and snapshot
// with the backend's view of the result.
func (s *SessionService) UpdateProfile(ctx context.Context, store ports.CredentialStore, patch domainauth.ProfilePatch) (domainauth.User, error) {
	user, err := s.client.UpdateProfile(ctx, store, patch)
	if err != nil {
		return domainauth.User{}, err
	}
	s.refreshSnapshot(ctx, store, user)
	return user, nil
}

// BeginSSO starts the enterprise SSO flow. The returned state and nonce
// must be round-tripped by the caller (short-lived cookies).
func (s *SessionService) BeginSSO(ctx context.Context) (authURL, state, nonce string, err error) {
	if s.sso == nil {
		return "", "", "", autherrors.Validation("SSO login is not configured")
	}
	return s.sso.Begin(ctx)
}

// CompleteSSO finishes the SSO flow and persists the resulting session,
// mirroring the password login path.
func (s *SessionService) CompleteSSO(ctx context.Context, store ports.CredentialStore, code, nonce, remoteAddr string) (domainauth.Session, error) {
	if s.sso == nil {
		return domainauth.Session{}, autherrors.Validation("SSO login is not configured")
	}
	session, err := s.sso.Exchange(ctx, code, nonce)
	if err != nil {
		s.record(ctx, ports.AuditEvent{Action: auditLoginFailed, RemoteAddr: remoteAddr, Detail: "sso"})
		return domainauth.Session{}, err
	}

	s.persist(ctx, store, session)
	if session.User != nil {
		s.primeCache(ctx, *session.User)
	}

	event := ports.AuditEvent{Action: auditLogin, RemoteAddr: remoteAddr, Detail: "sso"}
	if session.User != nil {
		event.Email = session.User.Email
		event.UserID = session.User.ID
	}
	s.record(ctx, event)
	return session, nil
}

func (s *SessionService) cachedProfile(ctx context.Context, store ports.CredentialStore) (domainauth.User, bool) {
	if s.cache == nil {
		return domainauth.User{}, false
	}
	persisted, ok, err := store.User()
	if err != nil || !ok {
		return domainauth.User{}, false
	}
	user, hit, err := s.cache.Get(ctx, persisted.ID)
	if err != nil {
		s.log.WarnContext(ctx, "profile cache read failed", "error", err)
		return domainauth.User{}, false
	}
	return user, hit
}

func (s *SessionService) refreshSnapshot(ctx context.Context, store ports.CredentialStore, user domainauth.User) {
	if err := store.SetUser(user); err != nil {
		s.log.WarnContext(ctx, "persisting user snapshot failed", "error", err)
	}
	s.primeCache(ctx, user)
}

// persist writes all three credential values. The store is the single
// owner of credentials; failures are warnings because the in-memory
// session remains valid for this exchange.
func (s *SessionService) persist(ctx context.Context, store ports.CredentialStore, session domainauth.Session) {
	if err := store.SetAccessToken(session.Credentials.AccessToken); err != nil {
		s.log.WarnContext(ctx, "persisting access token failed", "error", err)
	}
	if err := store.SetRefreshToken(session.Credentials.RefreshToken); err != nil {
		s.log.WarnContext(ctx, "persisting refresh token failed", "error", err)
	}
	if session.User != nil {
		if err := store.SetUser(*session.User); err != nil {
			s.log.WarnContext(ctx, "persisting user snapshot failed", "error", err)
		}
	}
}

func (s *SessionService) primeCache(ctx context.Context, user domainauth.User) {
	if s.cache == nil || user.ID <= 0 {
		return
	}
	if err := s.cache.Set(ctx, user, s.ttl); err != nil {
		s.log.WarnContext(ctx, "profile cache write failed", "error", err)
	}
}

func (s *SessionService) dropCache(ctx context.Context, userID int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.WarnContext(ctx, "profile cache invalidation failed", "error", err)
	}
}

func (s *SessionService) record(ctx context.Context, event ports.AuditEvent) {
	if s.audit == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = time.Now().UTC()
	s.audit.Record(ctx, event)
}
