package identity

// Package identity is the HTTP adapter for the upstream identity backend.
// It implements ports.TokenClient and ports.TokenRefresher, and provides
// the AuthTransport round tripper that attaches bearer credentials and
// transparently refreshes them on 401.

import (
	"context"

	"github.com/campusworks/campus-ui-api/internal/ports"
)

type contextKey string

const storeContextKey contextKey = "identity.credentialStore"

// WithStore binds the per-exchange credential store into a context so that
// AuthTransport can read and update credentials for requests issued under it.
func WithStore(ctx context.Context, store ports.CredentialStore) context.Context {
	return context.WithValue(ctx, storeContextKey, store)
}

// StoreFrom extracts the credential store bound by WithStore, or nil.
func StoreFrom(ctx context.Context) ports.CredentialStore {
	store, _ := ctx.Value(storeContextKey).(ports.CredentialStore)
	return store
}
