package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"encoding/json"
	"strings"
)

// RoleName is a closed enumeration of the application's authorization roles.
// Values arriving from the identity backend are normalized through ParseRole;
// unknown names are kept (upper-cased) so a newly introduced backend role
// degrades to "no permissions" rather than an error.
type RoleName string

const (
	RoleSuperuser  RoleName = "SUPERUSER"
	RoleAdmin      RoleName = "ADMIN"
	RoleDirector   RoleName = "DIRECTOR"
	RoleStaff      RoleName = "STAFF"
	RoleTeacher    RoleName = "TEACHER"
	RoleStudent    RoleName = "STUDENT"
	RoleParent     RoleName = "PARENT"
	RoleLibrarian  RoleName = "LIBRARIAN"
	RoleAccountant RoleName = "ACCOUNTANT"
)

// superRoleSentinel is the reserved role name that bypasses permission checks.
// Comparison is case-insensitive.
const superRoleSentinel = "superuser"

// Permission is an atomic named capability, e.g. "COURSE_CREATE".
type Permission struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Role is a named authorization bucket. Privileged marks the reserved
// super-role that bypasses all permission checks; it is derived once at
// parse time instead of re-comparing the raw name at every gate.
type Role struct {
	Name        RoleName     `json:"name"`
	Privileged  bool         `json:"privileged"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// ParseRole normalizes a backend role name into a Role, setting the
// Privileged flag when the name matches the reserved super-role sentinel.
func ParseRole(name string) Role {
	trimmed := strings.TrimSpace(name)
	return Role{
		Name:       RoleName(strings.ToUpper(trimmed)),
		Privileged: strings.EqualFold(trimmed, superRoleSentinel),
	}
}

// UnmarshalJSON accepts both shapes the backend emits for a role: a bare
// name string (login payloads) and a full object (role-management payloads).
// The Privileged flag is re-derived from the name so clients cannot grant
// themselves the super-role by forging the persisted snapshot.
func (r *Role) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*r = ParseRole(name)
		return nil
	}

	type roleAlias Role
	var a roleAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	parsed := ParseRole(string(a.Name))
	parsed.Permissions = a.Permissions
	*r = parsed
	return nil
}

// PermissionNames returns the flat list of permission names carried by the
// role, in declaration order.
func (r Role) PermissionNames() []string {
	if len(r.Permissions) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		names = append(names, p.Name)
	}
	return names
}

// User is the identity and authorization profile cached for the current
// browser client. It is owned by the session layer; handlers read it from
// the request context and never mutate it directly.
type User struct {
	ID                      int             `json:"id"`
	Email                   string          `json:"email"`
	Username                string          `json:"username"`
	Role                    Role            `json:"role"`
	Phone                   string          `json:"phone,omitempty"`
	Address                 string          `json:"address,omitempty"`
	ProfilePhoto            string          `json:"profile_photo,omitempty"`
	IsEmailVerified         bool            `json:"is_email_verified"`
	NotificationPreferences map[string]bool `json:"notification_preferences,omitempty"`
}

// Credentials is the token pair minted by the identity backend. The access
// token is the short-lived bearer credential; the refresh token is used
// solely to mint new access tokens.
type Credentials struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

// Session is the authenticated context for the current browser client.
// Invariant: AccessToken and User are set together or both absent — there
// is no authenticated-looking state without a token, and vice versa.
type Session struct {
	Credentials
	User *User `json:"user,omitempty"`
}

// IsAuthenticated reports whether the session carries both a cached user
// and an access token.
func (s Session) IsAuthenticated() bool {
	return s.User != nil && s.AccessToken != ""
}

// EffectivePermissions is the flat permission-name set the backend delivered
// for the session's role at login/profile-fetch time.
func (s Session) EffectivePermissions() []string {
	if s.User == nil {
		return nil
	}
	return s.User.Role.PermissionNames()
}

// LoginCredentials is the input for a password login.
type LoginCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterData is the input for account registration. Registration never
// authenticates the new user; the caller is directed to email verification.
type RegisterData struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	Role      string `json:"role"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
}

// ProfilePatch is a partial User update. Nil fields are left unchanged.
type ProfilePatch struct {
	Username                *string         `json:"username,omitempty"`
	Phone                   *string         `json:"phone,omitempty"`
	Address                 *string         `json:"address,omitempty"`
	ProfilePhoto            *string         `json:"profile_photo,omitempty"`
	NotificationPreferences map[string]bool `json:"notification_preferences,omitempty"`
}
