package authroles

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
)

func TestStaticMapper_FirstRuleWins(t *testing.T) {
	m := NewStaticMapper([]string{
		"campus-admins=ADMIN",
		"campus-teachers=TEACHER",
	}, "STUDENT")

	role := m.Map([]string{"campus-teachers", "campus-admins"})
	assert.Equal(t, domainauth.RoleAdmin, role.Name)
}

func TestStaticMapper_FallbackRole(t *testing.T) {
	m := NewStaticMapper([]string{"campus-admins=ADMIN"}, "STUDENT")

	role := m.Map([]string{"unrelated-group"})
	assert.Equal(t, domainauth.RoleStudent, role.Name)

	role = m.Map(nil)
	assert.Equal(t, domainauth.RoleStudent, role.Name)
}

func TestStaticMapper_GroupMatchIsCaseInsensitive(t *testing.T) {
	m := NewStaticMapper([]string{"Campus-Staff=STAFF"}, "STUDENT")

	role := m.Map([]string{"campus-staff"})
	assert.Equal(t, domainauth.RoleStaff, role.Name)
}

func TestStaticMapper_MalformedRulesIgnored(t *testing.T) {
	m := NewStaticMapper([]string{"no-separator", "=ADMIN", "ok=LIBRARIAN"}, "STUDENT")

	role := m.Map([]string{"ok"})
	assert.Equal(t, domainauth.RoleLibrarian, role.Name)
}

func TestStaticMapper_SuperuserRuleCarriesPrivilege(t *testing.T) {
	m := NewStaticMapper([]string{"platform-ops=superuser"}, "STUDENT")

	role := m.Map([]string{"platform-ops"})
	assert.True(t, role.Privileged)
}
