package auth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole_SuperuserSentinel(t *testing.T) {
	for _, name := range []string{"superuser", "SUPERUSER", "SuperUser", " superuser "} {
		role := ParseRole(name)
		assert.True(t, role.Privileged, "expected privileged for %q", name)
		assert.Equal(t, RoleSuperuser, role.Name)
	}
}

func TestParseRole_RegularRoles(t *testing.T) {
	role := ParseRole("teacher")
	assert.Equal(t, RoleTeacher, role.Name)
	assert.False(t, role.Privileged)

	// Unknown backend roles are kept rather than rejected.
	unknown := ParseRole("registrar")
	assert.Equal(t, RoleName("REGISTRAR"), unknown.Name)
	assert.False(t, unknown.Privileged)
}

func TestRole_PermissionNames(t *testing.T) {
	role := Role{
		Name: RoleTeacher,
		Permissions: []Permission{
			{ID: 1, Name: "COURSE_VIEW"},
			{ID: 2, Name: "COURSE_EDIT"},
		},
	}
	assert.Equal(t, []string{"COURSE_VIEW", "COURSE_EDIT"}, role.PermissionNames())
	assert.Nil(t, Role{Name: RoleStudent}.PermissionNames())
}

func TestSession_IsAuthenticated(t *testing.T) {
	user := &User{ID: 7, Email: "t@example.com"}

	assert.False(t, Session{}.IsAuthenticated())
	// A token without a cached user is a ghost state and must not count.
	assert.False(t, Session{Credentials: Credentials{AccessToken: "tok"}}.IsAuthenticated())
	// A user without a token likewise.
	assert.False(t, Session{User: user}.IsAuthenticated())
	assert.True(t, Session{Credentials: Credentials{AccessToken: "tok"}, User: user}.IsAuthenticated())
}

func TestSession_EffectivePermissions(t *testing.T) {
	sess := Session{
		Credentials: Credentials{AccessToken: "tok"},
		User: &User{
			Role: Role{
				Name:        RoleAdmin,
				Permissions: []Permission{{Name: "SYSTEM_USERS"}},
			},
		},
	}
	assert.Equal(t, []string{"SYSTEM_USERS"}, sess.EffectivePermissions())
	assert.Nil(t, Session{}.EffectivePermissions())
}

func TestRole_UnmarshalJSON_BothShapes(t *testing.T) {
	var fromString Role
	require.NoError(t, json.Unmarshal([]byte(`"Superuser"`), &fromString))
	assert.Equal(t, RoleSuperuser, fromString.Name)
	assert.True(t, fromString.Privileged)

	var fromObject Role
	require.NoError(t, json.Unmarshal([]byte(`{"name":"teacher","permissions":[{"id":1,"name":"COURSE_VIEW"}]}`), &fromObject))
	assert.Equal(t, RoleTeacher, fromObject.Name)
	assert.False(t, fromObject.Privileged)
	assert.Equal(t, []string{"COURSE_VIEW"}, fromObject.PermissionNames())
}

func TestRole_UnmarshalJSON_ForgedPrivilegedFlag(t *testing.T) {
	// The flag is re-derived from the name; a forged snapshot cannot
	// grant the super-role.
	var role Role
	require.NoError(t, json.Unmarshal([]byte(`{"name":"student","privileged":true}`), &role))
	assert.False(t, role.Privileged)
}

func TestUser_JSONRoundTrip(t *testing.T) {
	u := User{
		ID:              3,
		Email:           "jane@example.com",
		Username:        "jane",
		Role:            Role{Name: RoleDirector, Permissions: []Permission{{ID: 9, Name: "HR_MODULE_SHOW"}}},
		IsEmailVerified: true,
		NotificationPreferences: map[string]bool{
			"email_digest": true,
		},
	}

	data, err := json.Marshal(u)
	require.NoError(t, err)

	var got User
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, u, got)
}
