package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(10 * time.Minute).Truncate(time.Second)
	got, ok := TokenExpiry(expiringJWT(t, exp))
	require.True(t, ok)
	assert.True(t, got.Equal(exp))
}

func TestTokenExpiry_OpaqueToken(t *testing.T) {
	_, ok := TokenExpiry("not-a-jwt")
	assert.False(t, ok)
}

func TestExpiresWithin(t *testing.T) {
	soon := expiringJWT(t, time.Now().Add(10*time.Second))
	later := expiringJWT(t, time.Now().Add(time.Hour))

	assert.True(t, ExpiresWithin(soon, 30*time.Second))
	assert.False(t, ExpiresWithin(later, 30*time.Second))
	// Unreadable tokens defer to the reactive 401 path.
	assert.False(t, ExpiresWithin("opaque", 30*time.Second))
}
