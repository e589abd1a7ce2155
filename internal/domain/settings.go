package domain

// RoleKey names a staff role slot in the configuration document.
type RoleKey string

const (
	RoleAdmin           RoleKey = "admin"
	RoleSeniorModerator RoleKey = "seniorModerator"
	RoleModerator       RoleKey = "moderator"
	RoleHelper          RoleKey = "helper"
	RoleBuilder         RoleKey = "builder"
	RoleEventManager    RoleKey = "eventManager"
)

// CategoryKey names a channel-category slot in the configuration document.
type CategoryKey string

const (
	CategoryCheaters         CategoryKey = "cheaters"
	CategoryStaffComplaints  CategoryKey = "staffComplaints"
	CategoryPlayerComplaints CategoryKey = "playerComplaints"
	CategoryGameQuestions    CategoryKey = "gameQuestions"
	CategoryTechSupport      CategoryKey = "techSupport"
	CategoryApplications     CategoryKey = "applications"
)

// ChannelKey names a well-known channel slot in the configuration document.
type ChannelKey string

const (
	ChannelTicketLogs   ChannelKey = "ticketLogs"
	ChannelTicketPanel  ChannelKey = "ticketPanel"
	ChannelFeedbackLogs ChannelKey = "feedbackLogs"
)

var (
	RoleKeys     = []RoleKey{RoleAdmin, RoleSeniorModerator, RoleModerator, RoleHelper, RoleBuilder, RoleEventManager}
	CategoryKeys = []CategoryKey{CategoryCheaters, CategoryStaffComplaints, CategoryPlayerComplaints, CategoryGameQuestions, CategoryTechSupport, CategoryApplications}
	ChannelKeys  = []ChannelKey{ChannelTicketLogs, ChannelTicketPanel, ChannelFeedbackLogs}

	// StaffRoles may claim, close and moderate tickets.
	StaffRoles = []RoleKey{RoleAdmin, RoleSeniorModerator, RoleModerator, RoleHelper}
	// SeniorRoles are pinged by "call senior".
	SeniorRoles = []RoleKey{RoleSeniorModerator, RoleAdmin}
)

// Limits holds the numeric settings. Delays are milliseconds.
type Limits struct {
	MaxTicketsPerUser int `json:"maxTicketsPerUser"`
	TicketDeleteDelay int `json:"ticketDeleteDelay"`
	PingDeleteDelay   int `json:"pingDeleteDelay"`
}

// Settings is the bot's configuration document.
type Settings struct {
	Roles      map[RoleKey]string     `json:"roles"`
	Categories map[CategoryKey]string `json:"categories"`
	Channels   map[ChannelKey]string  `json:"channels"`
	Limits     Limits                 `json:"settings"`
}

// DefaultSettings returns the first-run configuration document.
func DefaultSettings() Settings {
	s := Settings{
		Roles:      make(map[RoleKey]string, len(RoleKeys)),
		Categories: make(map[CategoryKey]string, len(CategoryKeys)),
		Channels:   make(map[ChannelKey]string, len(ChannelKeys)),
		Limits: Limits{
			MaxTicketsPerUser: 2,
			TicketDeleteDelay: 10000,
			PingDeleteDelay:   5000,
		},
	}
	for _, k := range RoleKeys {
		s.Roles[k] = ""
	}
	for _, k := range CategoryKeys {
		s.Categories[k] = ""
	}
	for _, k := range ChannelKeys {
		s.Channels[k] = ""
	}
	return s
}

// Clone returns a deep copy of the document.
func (s Settings) Clone() Settings {
	out := Settings{
		Roles:      make(map[RoleKey]string, len(s.Roles)),
		Categories: make(map[CategoryKey]string, len(s.Categories)),
		Channels:   make(map[ChannelKey]string, len(s.Channels)),
		Limits:     s.Limits,
	}
	for k, v := range s.Roles {
		out.Roles[k] = v
	}
	for k, v := range s.Categories {
		out.Categories[k] = v
	}
	for k, v := range s.Channels {
		out.Channels[k] = v
	}
	return out
}

// Role returns the configured role id, or "" when unset.
func (s Settings) Role(key RoleKey) string { return s.Roles[key] }

// Category returns the configured channel-category id, or "" when unset.
func (s Settings) Category(key CategoryKey) string { return s.Categories[key] }

// Channel returns the configured well-known channel id, or "" when unset.
func (s Settings) Channel(key ChannelKey) string { return s.Channels[key] }

// RoleIDs resolves role keys to configured ids, skipping unset slots.
func (s Settings) RoleIDs(keys []RoleKey) []string {
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if id := s.Roles[k]; id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func ValidRoleKey(k string) bool {
	for _, v := range RoleKeys {
		if string(v) == k {
			return true
		}
	}
	return false
}

func ValidCategoryKey(k string) bool {
	for _, v := range CategoryKeys {
		if string(v) == k {
			return true
		}
	}
	return false
}

func ValidChannelKey(k string) bool {
	for _, v := range ChannelKeys {
		if string(v) == k {
			return true
		}
	}
	return false
}
