package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
	autherrors "github.com/campusworks/campus-ui-api/internal/errors"
	mocksauth "github.com/campusworks/campus-ui-api/internal/mocks/auth"
)

// backend is a scriptable fake identity backend.
type backend struct {
	t *testing.T

	mu           sync.Mutex
	refreshCalls int32
	profileHits  []string // bearer token seen per profile hit
	refreshDelay time.Duration
	refreshDead  bool // backend treats every refresh token as revoked

	// validToken is the only bearer the profile endpoint accepts.
	validToken string
	// issueToken is what a refresh hands out; defaults to validToken.
	issueToken string
}

func (b *backend) issued() string {
	if b.issueToken != "" {
		return b.issueToken
	}
	return b.validToken
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.refreshCalls, 1)
		if b.refreshDelay > 0 {
			time.Sleep(b.refreshDelay)
		}
		if b.refreshDead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Token is invalid or expired"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access": b.issued()})
	})
	mux.HandleFunc("/users/profile/", func(w http.ResponseWriter, r *http.Request) {
		token := bearerOf(r)
		b.mu.Lock()
		b.profileHits = append(b.profileHits, token)
		b.mu.Unlock()
		if token != b.validToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 7, "email": "amina@campus.test", "username": "amina", "role": "TEACHER"})
	})
	return mux
}

func (b *backend) hits() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.profileHits))
	copy(out, b.profileHits)
	return out
}

func bearerOf(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

func newTestClient(t *testing.T, ts *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL: ts.URL,
		// Opaque test tokens have no exp claim, so the proactive path
		// stays quiet unless a test crafts a real JWT.
		ProactiveRefreshWindow: 30 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestAuthTransport_RefreshesOn401AndReplaysOnce(t *testing.T) {
	b := &backend{t: t, validToken: "fresh-token"}
	ts := httptest.NewServer(b.handler())
	defer ts.Close()

	c := newTestClient(t, ts)
	store := &mocksauth.MemoryCredentialStore{}
	require.NoError(t, store.SetAccessToken("stale-token"))
	require.NoError(t, store.SetRefreshToken("refresh-1"))

	user, err := c.Profile(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, "amina", user.Username)

	assert.Equal(t, []string{"stale-token", "fresh-token"}, b.hits())
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.refreshCalls))
	// The refreshed token was persisted for subsequent requests.
	assert.Equal(t, "fresh-token", store.AccessToken())
}

func TestAuthTransport_SecondUnauthorizedIsNotRetried(t *testing.T) {
	// The backend refreshes fine but still rejects the new token; the
	// replay must happen exactly once.
	b := &backend{t: t, validToken: "never-issued", issueToken: "still-stale"}
	ts := httptest.NewServer(b.handler())
	defer ts.Close()

	c := newTestClient(t, ts)
	store := &mocksauth.MemoryCredentialStore{}
	require.NoError(t, store.SetAccessToken("stale"))
	require.NoError(t, store.SetRefreshToken("refresh-1"))

	_, err := c.Profile(context.Background(), store)
	require.Error(t, err)
	assert.True(t, autherrors.IsUnauthorized(err))
	assert.Len(t, b.hits(), 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.refreshCalls))
}

func TestAuthTransport_NoRefreshTokenPropagatesOriginal401(t *testing.T) {
	b := &backend{t: t, validToken: "valid"}
	ts := httptest.NewServer(b.handler())
	defer ts.Close()

	c := newTestClient(t, ts)
	store := &mocksauth.MemoryCredentialStore{}
	require.NoError(t, store.SetAccessToken("stale"))

	_, err := c.Profile(context.Background(), store)
	require.Error(t, err)
	assert.True(t, autherrors.IsUnauthorized(err))
	assert.Len(t, b.hits(), 1)
	assert.Zero(t, atomic.LoadInt32(&b.refreshCalls))
}

func TestAuthTransport_DeadRefreshClearsCredentials(t *testing.T) {
	b := &backend{t: t, validToken: "valid", refreshDead: true}
	ts := httptest.NewServer(b.handler())
	defer ts.Close()

	c := newTestClient(t, ts)
	store := &mocksauth.MemoryCredentialStore{}
	require.NoError(t, store.SetAccessToken("stale"))
	require.NoError(t, store.SetRefreshToken("revoked"))

	_, err := c.Profile(context.Background(), store)
	require.Error(t, err)
	assert.True(t, autherrors.IsRefreshInvalid(err))

	assert.Empty(t, store.AccessToken())
	assert.Empty(t, store.RefreshToken())
	_, ok, userErr := store.User()
	require.NoError(t, userErr)
	assert.False(t, ok)
}

func TestAuthTransport_DeadRefreshRecordsAuditEvent(t *testing.T) {
	b := &backend{t: t, validToken: "valid", refreshDead: true}
	ts := httptest.NewServer(b.handler())
	defer ts.Close()

	sink := &mocksauth.RecordingAuditSink{}
	c, err := NewClient(Config{BaseURL: ts.URL, Audit: sink})
	require.NoError(t, err)

	store := &mocksauth.MemoryCredentialStore{}
	require.NoError(t, store.SetAccessToken("stale"))
	require.NoError(t, store.SetRefreshToken("revoked"))
	require.NoError(t, store.SetUser(domainauth.User{ID: 7, Email: "amina@campus.test"}))

	_, err = c.Profile(context.Background(), store)
	require.Error(t, err)

	require.Equal(t, []string{"refresh_failed"}, sink.Actions())
	events := sink.Events()
	assert.Equal(t, "amina@campus.test", events[0].Email)
	assert.Equal(t, 7, events[0].UserID)
}

func TestAuthTransport_ConcurrentRequestsShareOneRefresh(t *testing.T) {
	b := &backend{t: t, validToken: "fresh", refreshDelay: 150 * time.Millisecond}
	ts := httptest.NewServer(b.handler())
	defer ts.Close()

	c := newTestClient(t, ts)
	store := &mocksauth.MemoryCredentialStore{}
	require.NoError(t, store.SetAccessToken("stale"))
	require.NoError(t, store.SetRefreshToken("refresh-1"))

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Profile(context.Background(), store)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.refreshCalls))
}

func TestAuthTransport_ReplaysRequestBody(t *testing.T) {
	var bodies []string
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"access": "fresh"})
	})
	mux.HandleFunc("/users/profile/", func(w http.ResponseWriter, r *http.Request) {
		var patch map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
		mu.Lock()
		bodies = append(bodies, patch["username"].(string))
		mu.Unlock()
		if bearerOf(r) != "fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 7, "email": "amina@campus.test", "username": patch["username"], "role": "TEACHER"})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := newTestClient(t, ts)
	store := &mocksauth.MemoryCredentialStore{}
	require.NoError(t, store.SetAccessToken("stale"))
	require.NoError(t, store.SetRefreshToken("refresh-1"))

	newName := "amina.k"
	user, err := c.UpdateProfile(context.Background(), store, profilePatchWithUsername(newName))
	require.NoError(t, err)
	assert.Equal(t, newName, user.Username)

	mu.Lock()
	defer mu.Unlock()
	// Both the rejected attempt and the replay carried the full body.
	assert.Equal(t, []string{newName, newName}, bodies)
}

func TestAuthTransport_PassthroughWithoutStore(t *testing.T) {
	var sawAuth bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization") != ""
	}))
	defer ts.Close()

	tr := &AuthTransport{}
	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.False(t, sawAuth)
}

func TestAuthTransport_ProactiveRefreshSkips401RoundTrip(t *testing.T) {
	b := &backend{t: t, validToken: "fresh"}
	ts := httptest.NewServer(b.handler())
	defer ts.Close()

	c := newTestClient(t, ts)
	store := &mocksauth.MemoryCredentialStore{}
	require.NoError(t, store.SetAccessToken(expiringJWT(t, time.Now().Add(5*time.Second))))
	require.NoError(t, store.SetRefreshToken("refresh-1"))

	_, err := c.Profile(context.Background(), store)
	require.NoError(t, err)

	// The expiring token never reached the profile endpoint.
	assert.Equal(t, []string{"fresh"}, b.hits())
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.refreshCalls))
}

func profilePatchWithUsername(name string) domainauth.ProfilePatch {
	return domainauth.ProfilePatch{Username: &name}
}

func expiringJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
		"sub": "7",
	})
	signed, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return signed
}
