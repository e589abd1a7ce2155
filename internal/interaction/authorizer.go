package interaction

import "github.com/spec-kit/ticket-bot/internal/domain"

// SettingsSource exposes the configuration document.
type SettingsSource interface {
	Settings() domain.Settings
}

// Authorizer answers permission questions about guild members.
type Authorizer struct {
	settings    SettingsSource
	adminRoleID string
}

// NewAuthorizer builds an authorizer. adminRoleID is the process-level
// administrator role; it may be empty.
func NewAuthorizer(settings SettingsSource, adminRoleID string) *Authorizer {
	return &Authorizer{settings: settings, adminRoleID: adminRoleID}
}

// IsAdmin reports whether m may run the administrative commands.
func (a *Authorizer) IsAdmin(m Member) bool {
	return m.Administrator || (a.adminRoleID != "" && m.HasRole(a.adminRoleID))
}

// IsStaff reports whether m may moderate tickets.
func (a *Authorizer) IsStaff(m Member) bool {
	if a.IsAdmin(m) {
		return true
	}
	for _, id := range a.settings.Settings().RoleIDs(domain.StaffRoles) {
		if m.HasRole(id) {
			return true
		}
	}
	return false
}

// CanManage reports whether m may act on t as its owner or as staff.
func (a *Authorizer) CanManage(m Member, t domain.Ticket) bool {
	return m.ID == t.UserID || a.IsStaff(m)
}
