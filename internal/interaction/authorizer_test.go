package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

type staticSettings domain.Settings

func (s staticSettings) Settings() domain.Settings { return domain.Settings(s) }

func TestAuthorizer(t *testing.T) {
	settings := domain.DefaultSettings()
	settings.Roles[domain.RoleModerator] = "role-mod"
	settings.Roles[domain.RoleHelper] = "role-helper"
	auth := NewAuthorizer(staticSettings(settings), "role-owner")

	ticket := domain.Ticket{ID: 1, UserID: "u1"}

	tests := []struct {
		name                    string
		member                  Member
		admin, staff, canManage bool
	}{
		{"administrator permission", Member{ID: "x", Administrator: true}, true, true, true},
		{"process admin role", Member{ID: "x", RoleIDs: []string{"role-owner"}}, true, true, true},
		{"moderator", Member{ID: "x", RoleIDs: []string{"role-mod"}}, false, true, true},
		{"helper", Member{ID: "x", RoleIDs: []string{"role-helper"}}, false, true, true},
		{"owner", Member{ID: "u1"}, false, false, true},
		{"stranger", Member{ID: "x", RoleIDs: []string{"role-other"}}, false, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.admin, auth.IsAdmin(tc.member))
			assert.Equal(t, tc.staff, auth.IsStaff(tc.member))
			assert.Equal(t, tc.canManage, auth.CanManage(tc.member, ticket))
		})
	}
}

func TestAuthorizerIgnoresUnsetRoles(t *testing.T) {
	auth := NewAuthorizer(staticSettings(domain.DefaultSettings()), "")
	assert.False(t, auth.IsStaff(Member{ID: "x", RoleIDs: []string{""}}))
	assert.False(t, auth.IsAdmin(Member{ID: "x", RoleIDs: []string{""}}))
}
