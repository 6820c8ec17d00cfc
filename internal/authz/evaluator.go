package authz

// Package authz decides whether a session may access a protected view.
// It is pure: no I/O, no clock, no globals — the same inputs always
// produce the same decision.

import (
	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
)

// HasPermission reports whether required is a member of granted.
// Matching is exact; there are no wildcard or hierarchy semantics.
func HasPermission(required string, granted []string) bool {
	if required == "" {
		return false
	}
	for _, g := range granted {
		if g == required {
			return true
		}
	}
	return false
}

// IsSuperUser reports whether the role bypasses all permission checks.
// The reserved super-role is identified at parse time via Role.Privileged;
// a raw backend name is accepted too for callers that never parsed one.
func IsSuperUser(role domainauth.Role) bool {
	return role.Privileged
}

// CanAccess is the single gate every protected view must pass. It grants
// access when the role is the privileged super-role, or when any of the
// required permissions is present in the granted set. Callers with an
// empty required list are asking for an authenticated-only view.
func CanAccess(role domainauth.Role, granted []string, required ...string) bool {
	if IsSuperUser(role) {
		return true
	}
	for _, req := range required {
		if HasPermission(req, granted) {
			return true
		}
	}
	return len(required) == 0
}

// CanAccessSession applies CanAccess to a session's role and effective
// permission set. An unauthenticated session is never granted access.
func CanAccessSession(sess domainauth.Session, required ...string) bool {
	if !sess.IsAuthenticated() {
		return false
	}
	return CanAccess(sess.User.Role, sess.EffectivePermissions(), required...)
}
