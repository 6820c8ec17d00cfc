package oidc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
	autherrors "github.com/campusworks/campus-ui-api/internal/errors"
	mocksauth "github.com/campusworks/campus-ui-api/internal/mocks/auth"
)

func testProvider(t *testing.T, groupsQuery string, role domainauth.Role) *Provider {
	t.Helper()
	_, err := jmespath.Compile(groupsQuery)
	require.NoError(t, err)
	return &Provider{
		mapper:      &mocksauth.StaticRoleMapper{Role: role},
		groupsQuery: groupsQuery,
	}
}

func TestUserFromClaims(t *testing.T) {
	p := testProvider(t, "groups", domainauth.ParseRole("TEACHER"))

	user := p.userFromClaims(map[string]any{
		"sub":                "idp-subject-1",
		"email":              "amina@campus.test",
		"preferred_username": "amina",
		"email_verified":     true,
		"groups":             []any{"teachers"},
	})

	assert.Equal(t, "amina@campus.test", user.Email)
	assert.Equal(t, "amina", user.Username)
	assert.Equal(t, domainauth.RoleTeacher, user.Role.Name)
	assert.True(t, user.IsEmailVerified)
	assert.Positive(t, user.ID)
}

func TestUserFromClaims_UsernameFallsBackToEmail(t *testing.T) {
	p := testProvider(t, "groups", domainauth.ParseRole("STUDENT"))

	user := p.userFromClaims(map[string]any{
		"sub":   "idp-subject-2",
		"email": "omar@campus.test",
	})
	assert.Equal(t, "omar@campus.test", user.Username)
}

func TestGroups_QueryShapes(t *testing.T) {
	claims := map[string]any{
		"groups": []any{"teachers", "staff"},
		"realm_access": map[string]any{
			"roles": []any{"campus-teacher"},
		},
		"department": "science",
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"groups", []string{"teachers", "staff"}},
		{"realm_access.roles", []string{"campus-teacher"}},
		{"department", []string{"science"}},
		{"missing", nil},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			p := testProvider(t, tc.query, domainauth.Role{})
			assert.Equal(t, tc.want, p.groups(claims))
		})
	}
}

func TestSyntheticID_StableAndPositive(t *testing.T) {
	a := syntheticID("idp-subject-1")
	b := syntheticID("idp-subject-1")
	c := syntheticID("idp-subject-2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Positive(t, a)
	assert.Zero(t, syntheticID(""))
}

func TestRefresh_InvalidGrantIsTerminal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer ts.Close()

	p := &Provider{
		httpClient: ts.Client(),
		config: &oauth2.Config{
			ClientID: "client",
			Endpoint: oauth2.Endpoint{TokenURL: ts.URL + "/token"},
		},
	}

	_, err := p.Refresh(context.Background(), "dead-token")
	require.Error(t, err)
	assert.True(t, autherrors.IsRefreshInvalid(err))
}

func TestRefresh_EmptyTokenIsTerminal(t *testing.T) {
	p := &Provider{config: &oauth2.Config{}}
	_, err := p.Refresh(context.Background(), "")
	require.Error(t, err)
	assert.True(t, autherrors.IsRefreshInvalid(err))
}

func TestRefresh_BackendUnreachableIsNetwork(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	p := &Provider{
		httpClient: &http.Client{},
		config: &oauth2.Config{
			ClientID: "client",
			Endpoint: oauth2.Endpoint{TokenURL: ts.URL + "/token"},
		},
	}

	_, err := p.Refresh(context.Background(), "some-token")
	require.Error(t, err)
	assert.True(t, autherrors.IsNetwork(err))
}

func TestGenerateRandomString(t *testing.T) {
	a, err := generateRandomString(32)
	require.NoError(t, err)
	b, err := generateRandomString(32)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.Len(t, b, 32)
	assert.NotEqual(t, a, b)

	empty, err := generateRandomString(0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
