// Package testutil provides shared helpers for tests: an embedded Redis
// and builders for common domain values.
package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// SetupTestRedis starts an embedded Redis and returns a client connected
// to it. Both are torn down with the test. The miniredis handle is
// returned so tests can advance its clock to exercise TTL expiry.
func SetupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Logf("warning: failed to close redis client: %v", err)
		}
	})
	return client, mr
}
