package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry reads the exp claim from an access token without verifying
// its signature. Verification belongs to the backend; the gateway only
// needs the timestamp to decide whether a refresh is worth attempting
// before proxying. Returns false for opaque or malformed tokens.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// ExpiresWithin reports whether the token's exp claim falls inside the
// given window from now. Tokens without a readable exp claim report false
// so they fall back to the reactive 401 path.
func ExpiresWithin(token string, window time.Duration) bool {
	exp, ok := TokenExpiry(token)
	if !ok {
		return false
	}
	return time.Until(exp) < window
}
