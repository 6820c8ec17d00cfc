package testutil

import (
	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
)

// NewUser builds a verified teacher-role user with sensible defaults.
// Mutate the result for scenario-specific fields.
func NewUser(id int) domainauth.User {
	return domainauth.User{
		ID:              id,
		Email:           "amina@campus.test",
		Username:        "amina",
		Role:            NewRole(domainauth.RoleTeacher, "COURSE_VIEW"),
		IsEmailVerified: true,
	}
}

// NewRole builds a role carrying the named permissions.
func NewRole(name domainauth.RoleName, permissions ...string) domainauth.Role {
	role := domainauth.ParseRole(string(name))
	for i, p := range permissions {
		role.Permissions = append(role.Permissions, domainauth.Permission{
			ID:   i + 1,
			Name: p,
		})
	}
	return role
}

// NewSession builds an authenticated session for the given user.
func NewSession(user domainauth.User) domainauth.Session {
	u := user
	return domainauth.Session{
		Credentials: domainauth.Credentials{
			AccessToken:  "access-token",
			RefreshToken: "refresh-token",
		},
		User: &u,
	}
}
