package authroles

// Package authroles maps identity-provider groups onto application roles
// for the SSO login mode.

import (
	"strings"

	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
	"github.com/campusworks/campus-ui-api/internal/ports"
)

// StaticMapper maps groups to roles by configured membership rules.
// Rules are ordered; the first matching group wins, so privileged roles
// should come first.
type StaticMapper struct {
	rules    []rule
	fallback domainauth.Role
}

type rule struct {
	group string
	role  domainauth.Role
}

var _ ports.RoleMapper = (*StaticMapper)(nil)

// NewStaticMapper builds a mapper from ordered "group=ROLE" rules, e.g.
// "campus-admins=ADMIN". Unmatched users get the fallback role.
func NewStaticMapper(rules []string, fallback string) *StaticMapper {
	m := &StaticMapper{fallback: domainauth.ParseRole(fallback)}
	for _, r := range rules {
		group, roleName, ok := strings.Cut(r, "=")
		group = strings.TrimSpace(group)
		if !ok || group == "" {
			continue
		}
		m.rules = append(m.rules, rule{
			group: group,
			role:  domainauth.ParseRole(strings.TrimSpace(roleName)),
		})
	}
	return m
}

// Map returns the role of the first rule whose group appears in groups.
func (m *StaticMapper) Map(groups []string) domainauth.Role {
	for _, r := range m.rules {
		for _, g := range groups {
			if strings.EqualFold(g, r.group) {
				return r.role
			}
		}
	}
	return m.fallback
}
