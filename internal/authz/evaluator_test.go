package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
)

func TestHasPermission(t *testing.T) {
	granted := []string{"COURSE_VIEW", "COURSE_EDIT"}

	assert.True(t, HasPermission("COURSE_EDIT", granted))
	assert.False(t, HasPermission("COURSE_DELETE", granted))
	assert.False(t, HasPermission("course_edit", granted), "matching is exact, not case-folded")
	assert.False(t, HasPermission("", granted))
	assert.False(t, HasPermission("COURSE_VIEW", nil))
}

func TestIsSuperUser(t *testing.T) {
	assert.True(t, IsSuperUser(domainauth.ParseRole("superuser")))
	assert.True(t, IsSuperUser(domainauth.ParseRole("SuperUser")))
	assert.False(t, IsSuperUser(domainauth.ParseRole("admin")))
	assert.False(t, IsSuperUser(domainauth.ParseRole("")))
}

func TestCanAccess(t *testing.T) {
	superuser := domainauth.ParseRole("superuser")
	teacher := domainauth.ParseRole("teacher")

	// Super-role bypasses the permission set entirely.
	assert.True(t, CanAccess(superuser, nil, "ANY_PERMISSION"))

	assert.False(t, CanAccess(teacher, []string{"COURSE_VIEW"}, "COURSE_EDIT"))
	assert.True(t, CanAccess(teacher, []string{"COURSE_EDIT"}, "COURSE_EDIT"))

	// Any of the required permissions suffices.
	assert.True(t, CanAccess(teacher, []string{"COURSE_SHOW"}, "SYSTEM_ADMIN", "COURSE_SHOW"))

	// Empty required list means authenticated-only.
	assert.True(t, CanAccess(teacher, nil))
}

func TestCanAccess_Deterministic(t *testing.T) {
	role := domainauth.ParseRole("staff")
	granted := []string{"HR_MODULE_SHOW"}

	first := CanAccess(role, granted, "HR_MODULE_SHOW")
	for range 10 {
		assert.Equal(t, first, CanAccess(role, granted, "HR_MODULE_SHOW"))
	}
}

func TestCanAccessSession(t *testing.T) {
	assert.False(t, CanAccessSession(domainauth.Session{}, "COURSE_VIEW"),
		"unauthenticated session is never granted access")

	sess := domainauth.Session{
		Credentials: domainauth.Credentials{AccessToken: "tok"},
		User: &domainauth.User{
			Role: domainauth.Role{
				Name:        domainauth.RoleTeacher,
				Permissions: []domainauth.Permission{{Name: "COURSE_VIEW"}},
			},
		},
	}
	assert.True(t, CanAccessSession(sess, "COURSE_VIEW"))
	assert.False(t, CanAccessSession(sess, "COURSE_DELETE"))
}
