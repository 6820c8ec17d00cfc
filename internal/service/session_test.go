package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
	autherrors "github.com/campusworks/campus-ui-api/internal/errors"
	"github.com/campusworks/campus-ui-api/internal/mocks"
	mocksauth "github.com/campusworks/campus-ui-api/internal/mocks/auth"
	"github.com/campusworks/campus-ui-api/internal/testutil"
)

type sessionFixture struct {
	svc    *SessionService
	client *mocks.MockTokenClient
	cache  *mocksauth.MemoryProfileCache
	audit  *mocksauth.RecordingAuditSink
	store  *mocksauth.MemoryCredentialStore
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mocks.NewMockTokenClient(ctrl)
	cache := &mocksauth.MemoryProfileCache{}
	audit := &mocksauth.RecordingAuditSink{}
	return &sessionFixture{
		svc: NewSessionService(SessionServiceOptions{
			Client: client,
			Cache:  cache,
			Audit:  audit,
		}),
		client: client,
		cache:  cache,
		audit:  audit,
		store:  &mocksauth.MemoryCredentialStore{},
	}
}

func TestSessionService_Login_PersistsAndAudits(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	session := testutil.NewSession(testutil.NewUser(7))
	f.client.EXPECT().
		Login(gomock.Any(), domainauth.LoginCredentials{Email: "amina@campus.test", Password: "pw"}).
		Return(session, nil)

	got, err := f.svc.Login(ctx, f.store, domainauth.LoginCredentials{Email: "amina@campus.test", Password: "pw"}, "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, got.IsAuthenticated())

	// All three values landed in the store.
	assert.Equal(t, "access-token", f.store.AccessToken())
	assert.Equal(t, "refresh-token", f.store.RefreshToken())
	persisted, ok, err := f.store.User()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, persisted.ID)

	// Cache primed with the service TTL.
	cached, hit, err := f.cache.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "amina@campus.test", cached.Email)
	assert.Equal(t, 5*time.Minute, f.cache.LastTTL)

	events := f.audit.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "login", events[0].Action)
	assert.Equal(t, 7, events[0].UserID)
	assert.Equal(t, "203.0.113.9", events[0].RemoteAddr)
	assert.NotEmpty(t, events[0].ID)
}

func TestSessionService_Login_FailureAuditsAndLeavesStoreEmpty(t *testing.T) {
	f := newSessionFixture(t)
	f.client.EXPECT().
		Login(gomock.Any(), gomock.Any()).
		Return(domainauth.Session{}, autherrors.InvalidCredentials())

	_, err := f.svc.Login(context.Background(), f.store, domainauth.LoginCredentials{Email: "amina@campus.test", Password: "bad"}, "")
	require.Error(t, err)
	assert.True(t, autherrors.IsInvalidCredentials(err))

	assert.Empty(t, f.store.AccessToken())
	assert.Equal(t, []string{"login_failed"}, f.audit.Actions())
}

func TestSessionService_Login_ValidatesBeforeNetwork(t *testing.T) {
	f := newSessionFixture(t)
	// No Login expectation: the client must not be called.

	_, err := f.svc.Login(context.Background(), f.store, domainauth.LoginCredentials{Password: "pw"}, "")
	assert.True(t, autherrors.IsValidation(err))
	assert.Equal(t, "email", autherrors.FieldOf(err))

	_, err = f.svc.Login(context.Background(), f.store, domainauth.LoginCredentials{Email: "a@b.c"}, "")
	assert.True(t, autherrors.IsValidation(err))
	assert.Equal(t, "password", autherrors.FieldOf(err))
}

func TestSessionService_Login_StorageFailureIsAWarning(t *testing.T) {
	f := newSessionFixture(t)
	f.store.SetErr = errors.New("cookies disabled")
	f.client.EXPECT().
		Login(gomock.Any(), gomock.Any()).
		Return(testutil.NewSession(testutil.NewUser(7)), nil)

	got, err := f.svc.Login(context.Background(), f.store, domainauth.LoginCredentials{Email: "amina@campus.test", Password: "pw"}, "")
	require.NoError(t, err)
	assert.True(t, got.IsAuthenticated())
}

func TestSessionService_Login_DuplicateSubmissionsCoalesce(t *testing.T) {
	f := newSessionFixture(t)
	creds := domainauth.LoginCredentials{Email: "amina@campus.test", Password: "pw"}
	f.client.EXPECT().
		Login(gomock.Any(), creds).
		DoAndReturn(func(context.Context, domainauth.LoginCredentials) (domainauth.Session, error) {
			time.Sleep(100 * time.Millisecond)
			return testutil.NewSession(testutil.NewUser(7)), nil
		}).
		Times(1)

	storeA := &mocksauth.MemoryCredentialStore{}
	storeB := &mocksauth.MemoryCredentialStore{}
	var wg sync.WaitGroup
	var errA, errB error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errA = f.svc.Login(context.Background(), storeA, creds, "")
	}()
	go func() {
		defer wg.Done()
		_, errB = f.svc.Login(context.Background(), storeB, creds, "")
	}()
	wg.Wait()

	require.NoError(t, errA)
	require.NoError(t, errB)
	// Both exchanges got the credentials persisted.
	assert.Equal(t, "access-token", storeA.AccessToken())
	assert.Equal(t, "access-token", storeB.AccessToken())
}

func TestSessionService_Register_PasswordsMustMatch(t *testing.T) {
	f := newSessionFixture(t)

	err := f.svc.Register(context.Background(), domainauth.RegisterData{
		Email:     "new@campus.test",
		Password:  "pw-one",
		Password2: "pw-two",
	}, "")
	require.Error(t, err)
	assert.True(t, autherrors.IsValidation(err))
	assert.Equal(t, "password2", autherrors.FieldOf(err))
}

func TestSessionService_Register_Audits(t *testing.T) {
	f := newSessionFixture(t)
	f.client.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil)

	err := f.svc.Register(context.Background(), domainauth.RegisterData{
		Email:     "new@campus.test",
		Password:  "pw",
		Password2: "pw",
	}, "198.51.100.4")
	require.NoError(t, err)
	assert.Equal(t, []string{"register"}, f.audit.Actions())
}

func TestSessionService_Current_HydratesFromStore(t *testing.T) {
	f := newSessionFixture(t)
	require.NoError(t, f.store.SetAccessToken("acc"))
	require.NoError(t, f.store.SetRefreshToken("ref"))
	require.NoError(t, f.store.SetUser(testutil.NewUser(7)))

	session := f.svc.Current(context.Background(), f.store)
	assert.True(t, session.IsAuthenticated())
	assert.Equal(t, 7, session.User.ID)
}

func TestSessionService_Current_MalformedSnapshotLogsOut(t *testing.T) {
	f := newSessionFixture(t)
	require.NoError(t, f.store.SetAccessToken("acc"))
	require.NoError(t, f.store.SetRefreshToken("ref"))
	f.store.UserErr = errors.New("corrupt cookie")

	session := f.svc.Current(context.Background(), f.store)
	assert.False(t, session.IsAuthenticated())
	assert.Nil(t, session.User)

	// The store was cleared so the broken snapshot does not linger.
	f.store.UserErr = nil
	assert.Empty(t, f.store.AccessToken())
	assert.Empty(t, f.store.RefreshToken())
}

func TestSessionService_Logout_FullCleanup(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	user := testutil.NewUser(7)
	require.NoError(t, f.store.SetAccessToken("acc"))
	require.NoError(t, f.store.SetRefreshToken("ref"))
	require.NoError(t, f.store.SetUser(user))
	require.NoError(t, f.cache.Set(ctx, user, time.Minute))
	f.client.EXPECT().Logout(gomock.Any(), f.store).Return(nil)

	f.svc.Logout(ctx, f.store, "")

	assert.Empty(t, f.store.AccessToken())
	assert.Empty(t, f.store.RefreshToken())
	_, hit, err := f.cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"logout"}, f.audit.Actions())
}

func TestSessionService_Logout_ServerFailureStillClearsLocally(t *testing.T) {
	f := newSessionFixture(t)
	require.NoError(t, f.store.SetRefreshToken("ref"))
	f.client.EXPECT().Logout(gomock.Any(), f.store).Return(autherrors.Network(errors.New("backend down")))

	f.svc.Logout(context.Background(), f.store, "")
	assert.Empty(t, f.store.RefreshToken())
}

func TestSessionService_Logout_IdempotentOnEmptyStore(t *testing.T) {
	f := newSessionFixture(t)
	// No refresh token, so the backend is never called.

	f.svc.Logout(context.Background(), f.store, "")
	f.svc.Logout(context.Background(), f.store, "")
	assert.Equal(t, []string{"logout", "logout"}, f.audit.Actions())
}

func TestSessionService_Profile_CacheHitSkipsBackend(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	user := testutil.NewUser(7)
	require.NoError(t, f.store.SetUser(user))
	require.NoError(t, f.cache.Set(ctx, user, time.Minute))
	// No Profile expectation: the backend must not be called.

	got, err := f.svc.Profile(ctx, f.store, false)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)
}

func TestSessionService_Profile_ForceBypassesCache(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	stale := testutil.NewUser(7)
	require.NoError(t, f.store.SetUser(stale))
	require.NoError(t, f.cache.Set(ctx, stale, time.Minute))

	fresh := testutil.NewUser(7)
	fresh.Username = "renamed"
	f.client.EXPECT().Profile(gomock.Any(), f.store).Return(fresh, nil)

	got, err := f.svc.Profile(ctx, f.store, true)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Username)

	// Cache and snapshot were re-primed with the fresh view.
	cached, hit, err := f.cache.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "renamed", cached.Username)
	persisted, ok, err := f.store.User()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "renamed", persisted.Username)
}

func TestSessionService_Profile_CacheMissFetches(t *testing.T) {
	f := newSessionFixture(t)
	user := testutil.NewUser(7)
	require.NoError(t, f.store.SetUser(user))
	f.client.EXPECT().Profile(gomock.Any(), f.store).Return(user, nil)

	got, err := f.svc.Profile(context.Background(), f.store, false)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)
}

func TestSessionService_Profile_CacheReadFailureFallsThrough(t *testing.T) {
	f := newSessionFixture(t)
	user := testutil.NewUser(7)
	require.NoError(t, f.store.SetUser(user))
	f.cache.GetErr = errors.New("redis down")
	f.client.EXPECT().Profile(gomock.Any(), f.store).Return(user, nil)

	_, err := f.svc.Profile(context.Background(), f.store, false)
	require.NoError(t, err)
}

type stubSSO struct {
	session domainauth.Session
	err     error
}

func (s *stubSSO) Begin(context.Context) (string, string, string, error) {
	return "https://idp.example/auth", "state-1", "nonce-1", nil
}

func (s *stubSSO) Exchange(context.Context, string, string) (domainauth.Session, error) {
	return s.session, s.err
}

func TestSessionService_CompleteSSO_PersistsLikePasswordLogin(t *testing.T) {
	f := newSessionFixture(t)
	session := testutil.NewSession(testutil.NewUser(9))
	f.svc.sso = &stubSSO{session: session}

	got, err := f.svc.CompleteSSO(context.Background(), f.store, "code", "nonce-1", "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, got.IsAuthenticated())
	assert.Equal(t, "access-token", f.store.AccessToken())

	events := f.audit.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "login", events[0].Action)
	assert.Equal(t, "sso", events[0].Detail)
}

func TestSessionService_SSO_Unconfigured(t *testing.T) {
	f := newSessionFixture(t)

	_, _, _, err := f.svc.BeginSSO(context.Background())
	assert.True(t, autherrors.IsValidation(err))

	_, err = f.svc.CompleteSSO(context.Background(), f.store, "code", "nonce", "")
	assert.True(t, autherrors.IsValidation(err))
}

func TestSessionService_UpdateProfile_RePrimesSnapshot(t *testing.T) {
	f := newSessionFixture(t)
	updated := testutil.NewUser(7)
	updated.Phone = "+212600000000"
	f.client.EXPECT().UpdateProfile(gomock.Any(), f.store, gomock.Any()).Return(updated, nil)

	phone := "+212600000000"
	got, err := f.svc.UpdateProfile(context.Background(), f.store, domainauth.ProfilePatch{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, got.Phone)

	persisted, ok, err := f.store.User()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, phone, persisted.Phone)
}
