package httpx

import (
	"context"

	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
)

// sessionKey is the context key for the hydrated session.
type sessionKey struct{}

// SetSessionInContext stores the session in the context.
func SetSessionInContext(ctx context.Context, session domainauth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext retrieves the session from the context. The zero
// Session (not authenticated) is returned when no middleware hydrated one.
func SessionFromContext(ctx context.Context) domainauth.Session {
	if session, ok := ctx.Value(sessionKey{}).(domainauth.Session); ok {
		return session
	}
	return domainauth.Session{}
}

// IsGuest reports whether the context carries no authenticated session.
func IsGuest(ctx context.Context) bool {
	return !SessionFromContext(ctx).IsAuthenticated()
}
