package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/catalog"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/gateway"
	"github.com/spec-kit/ticket-bot/internal/observability"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// Setup outcome of one channel.
const (
	SetupCreated = "created"
	SetupExists  = "exists"
	SetupFailed  = "failed"
)

// panelScanLimit is how many panel messages setup inspects for an existing panel.
const panelScanLimit = 50

// AdminStore is the part of the store the administrative operations touch.
type AdminStore interface {
	Settings() domain.Settings
	UpdateSettings(fn func(*domain.Settings) error) (domain.Settings, error)
	ResetTickets(ctx context.Context) error
	Counter() int
}

// AdminService bootstraps and tears down the bot's channels and categories
// and edits the configuration document.
type AdminService struct {
	store      AdminStore
	catalog    *catalog.Catalog
	gateway    gateway.Gateway
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// AdminDependencies bundles collaborators for the admin service.
type AdminDependencies struct {
	Store      AdminStore
	Catalog    *catalog.Catalog
	Gateway    gateway.Gateway
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewAdminService constructs the service.
func NewAdminService(deps AdminDependencies) *AdminService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &AdminService{
		store:      deps.Store,
		catalog:    deps.Catalog,
		gateway:    deps.Gateway,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// SetupReport summarizes a setup run.
type SetupReport struct {
	Channels          map[domain.ChannelKey]string `json:"channels"`
	PanelPosted       bool                         `json:"panel_posted"`
	CategoriesCreated int                          `json:"categories_created"`
	CategoriesFailed  int                          `json:"categories_failed"`
}

type wellKnownChannel struct {
	key    domain.ChannelKey
	name   string
	public bool
}

var wellKnownChannels = []wellKnownChannel{
	{key: domain.ChannelTicketPanel, name: "ticket-panel", public: true},
	{key: domain.ChannelTicketLogs, name: "ticket-logs"},
	{key: domain.ChannelFeedbackLogs, name: "feedback-logs"},
}

// Setup creates or reuses the panel, log and feedback channels and the ticket
// categories, and posts the panel unless one is already there. Gateway
// failures are reported per item; storage failures abort.
func (s *AdminService) Setup(ctx context.Context, guildID string) (report SetupReport, err error) {
	defer func(start time.Time) { observe(s.metrics, "admin.setup", start, err) }(time.Now())

	report = SetupReport{Channels: make(map[domain.ChannelKey]string, len(wellKnownChannels))}
	existing, err := s.gateway.GuildChannels(ctx, guildID)
	if err != nil {
		return report, apperrors.NewGatewayFailure("list channels", err)
	}
	settings := s.store.Settings()
	staff := settings.RoleIDs(domain.StaffRoles)

	for _, wk := range wellKnownChannels {
		id, status := s.ensureChannel(ctx, existing, settings.Channel(wk.key), gateway.ChannelSpec{
			GuildID:    guildID,
			Name:       wk.name,
			Kind:       gateway.ChannelText,
			Overwrites: wellKnownOverwrites(guildID, staff, wk.public),
		})
		report.Channels[wk.key] = status
		if id == "" {
			continue
		}
		if err := s.setChannel(wk.key, id); err != nil {
			return report, err
		}
		if wk.key == domain.ChannelTicketPanel {
			report.PanelPosted = s.ensurePanel(ctx, id)
		}
	}

	for _, group := range s.catalog.Categories {
		id, status := s.ensureChannel(ctx, existing, settings.Category(group.Key), gateway.ChannelSpec{
			GuildID:    guildID,
			Name:       group.Name,
			Kind:       gateway.ChannelCategory,
			Position:   group.Position,
			Overwrites: categoryOverwrites(guildID, staff),
		})
		switch status {
		case SetupCreated:
			report.CategoriesCreated++
		case SetupFailed:
			report.CategoriesFailed++
			continue
		}
		key := group.Key
		if _, err := s.store.UpdateSettings(func(st *domain.Settings) error {
			st.Categories[key] = id
			return nil
		}); err != nil {
			return report, err
		}
	}

	s.logger.Info("setup completed",
		zap.String("guild_id", guildID),
		zap.Any("channels", report.Channels),
		zap.Bool("panel_posted", report.PanelPosted),
		zap.Int("categories_created", report.CategoriesCreated))
	return report, nil
}

// ensureChannel reuses the configured channel, then one with the same name
// and kind, and creates it otherwise.
func (s *AdminService) ensureChannel(ctx context.Context, existing []gateway.Channel, configuredID string, spec gateway.ChannelSpec) (string, string) {
	if configuredID != "" {
		ok, err := gateway.ChannelExists(ctx, s.gateway, configuredID)
		if err != nil {
			s.logger.Warn("channel check failed", zap.String("channel_id", configuredID), zap.Error(err))
		}
		if ok {
			return configuredID, SetupExists
		}
	}
	for _, ch := range existing {
		if ch.Name == spec.Name && ch.Kind == spec.Kind {
			return ch.ID, SetupExists
		}
	}
	ch, err := s.gateway.CreateChannel(ctx, spec)
	if err != nil {
		s.logger.Error("create channel failed", zap.String("name", spec.Name), zap.Error(err))
		return "", SetupFailed
	}
	return ch.ID, SetupCreated
}

// ensurePanel posts the panel unless a bot message with controls is already
// among the channel's recent messages.
func (s *AdminService) ensurePanel(ctx context.Context, channelID string) bool {
	msgs, err := s.gateway.FetchMessages(ctx, channelID, "", panelScanLimit)
	if err != nil {
		s.logger.Warn("read panel channel failed", zap.String("channel_id", channelID), zap.Error(err))
		return false
	}
	botID := s.gateway.BotUserID()
	for _, m := range msgs {
		if m.AuthorID == botID && len(m.Embeds) > 0 && m.HasButtons {
			return false
		}
	}
	if _, err := s.gateway.SendMessage(ctx, channelID, PanelMessage(s.catalog)); err != nil {
		s.logger.Error("post panel failed", zap.String("channel_id", channelID), zap.Error(err))
		return false
	}
	return true
}

func (s *AdminService) setChannel(key domain.ChannelKey, id string) error {
	_, err := s.store.UpdateSettings(func(st *domain.Settings) error {
		st.Channels[key] = id
		return nil
	})
	return err
}

func wellKnownOverwrites(guildID string, staffRoleIDs []string, public bool) []gateway.Overwrite {
	if public {
		return []gateway.Overwrite{{
			TargetID: guildID,
			Kind:     gateway.TargetRole,
			Allow:    gateway.PermViewChannel | gateway.PermReadHistory,
			Deny:     gateway.PermSendMessages,
		}}
	}
	ows := []gateway.Overwrite{{TargetID: guildID, Kind: gateway.TargetRole, Deny: gateway.PermViewChannel}}
	for _, id := range staffRoleIDs {
		ows = append(ows, gateway.Overwrite{TargetID: id, Kind: gateway.TargetRole, Allow: gateway.ParticipantPermissions})
	}
	return ows
}

func categoryOverwrites(guildID string, staffRoleIDs []string) []gateway.Overwrite {
	ows := []gateway.Overwrite{{TargetID: guildID, Kind: gateway.TargetRole, Deny: gateway.PermViewChannel}}
	allow := gateway.PermViewChannel | gateway.PermManageChannels | gateway.PermSendMessages |
		gateway.PermReadHistory | gateway.PermManageMessages
	for _, id := range staffRoleIDs {
		ows = append(ows, gateway.Overwrite{TargetID: id, Kind: gateway.TargetRole, Allow: allow})
	}
	return ows
}

// Reset deletes every ticket record; the next ticket gets id 1.
func (s *AdminService) Reset(ctx context.Context) (err error) {
	defer func(start time.Time) { observe(s.metrics, "admin.reset", start, err) }(time.Now())

	if err := s.store.ResetTickets(ctx); err != nil {
		return err
	}
	s.logger.Info("tickets reset")
	publishEvent(ctx, s.dispatcher, events.Event{Type: events.EventTicketsReset, Actor: systemActor()})
	return nil
}

// TeardownReport summarizes a teardown run.
type TeardownReport struct {
	ChannelsDeleted   int `json:"channels_deleted"`
	CategoriesDeleted int `json:"categories_deleted"`
}

// Teardown deletes the bot's channels, its categories and every channel in
// them, then clears the category and channel slots and all ticket records.
func (s *AdminService) Teardown(ctx context.Context, guildID string) (report TeardownReport, err error) {
	defer func(start time.Time) { observe(s.metrics, "admin.teardown", start, err) }(time.Now())

	settings := s.store.Settings()
	for _, wk := range wellKnownChannels {
		id := settings.Channel(wk.key)
		if id == "" {
			continue
		}
		if s.deleteChannel(ctx, id) {
			report.ChannelsDeleted++
		}
	}

	all, err := s.gateway.GuildChannels(ctx, guildID)
	if err != nil {
		s.logger.Warn("list channels failed; category children kept", zap.Error(err))
	}
	for _, key := range domain.CategoryKeys {
		id := settings.Category(key)
		if id == "" {
			continue
		}
		ch, err := s.gateway.FetchChannel(ctx, id)
		if err != nil || ch.Kind != gateway.ChannelCategory {
			continue
		}
		for _, child := range all {
			if child.ParentID == id && s.deleteChannel(ctx, child.ID) {
				report.ChannelsDeleted++
			}
		}
		if s.deleteChannel(ctx, id) {
			report.CategoriesDeleted++
		}
	}

	if _, err := s.store.UpdateSettings(func(st *domain.Settings) error {
		for _, k := range domain.CategoryKeys {
			st.Categories[k] = ""
		}
		for _, k := range domain.ChannelKeys {
			st.Channels[k] = ""
		}
		return nil
	}); err != nil {
		return report, err
	}
	if err := s.Reset(ctx); err != nil {
		return report, err
	}

	s.logger.Info("teardown completed",
		zap.String("guild_id", guildID),
		zap.Int("channels_deleted", report.ChannelsDeleted),
		zap.Int("categories_deleted", report.CategoriesDeleted))
	return report, nil
}

func (s *AdminService) deleteChannel(ctx context.Context, id string) bool {
	err := s.gateway.DeleteChannel(ctx, id)
	if err != nil && !errors.Is(err, gateway.ErrChannelNotFound) {
		s.logger.Warn("delete channel failed", zap.String("channel_id", id), zap.Error(err))
	}
	return err == nil
}

// Settings returns the configuration document.
func (s *AdminService) Settings() domain.Settings {
	return s.store.Settings()
}

// Counter returns the highest ticket id allocated so far.
func (s *AdminService) Counter() int {
	return s.store.Counter()
}

// LimitsPatch changes individual numeric settings.
type LimitsPatch struct {
	MaxTicketsPerUser *int `json:"maxTicketsPerUser,omitempty"`
	TicketDeleteDelay *int `json:"ticketDeleteDelay,omitempty"`
	PingDeleteDelay   *int `json:"pingDeleteDelay,omitempty"`
}

// SettingsPatch changes individual slots of the configuration document. An
// empty value clears a slot.
type SettingsPatch struct {
	Roles      map[string]string `json:"roles,omitempty"`
	Categories map[string]string `json:"categories,omitempty"`
	Channels   map[string]string `json:"channels,omitempty"`
	Limits     *LimitsPatch      `json:"settings,omitempty"`
}

// UpdateSettings validates and applies patch as one write.
func (s *AdminService) UpdateSettings(ctx context.Context, patch SettingsPatch) (settings domain.Settings, err error) {
	defer func(start time.Time) { observe(s.metrics, "admin.update_settings", start, err) }(time.Now())

	settings, err = s.store.UpdateSettings(func(st *domain.Settings) error {
		for k, v := range patch.Roles {
			if !domain.ValidRoleKey(k) {
				return apperrors.NewValidationError("unknown role key", map[string]any{"key": k})
			}
			st.Roles[domain.RoleKey(k)] = v
		}
		for k, v := range patch.Categories {
			if !domain.ValidCategoryKey(k) {
				return apperrors.NewValidationError("unknown category key", map[string]any{"key": k})
			}
			st.Categories[domain.CategoryKey(k)] = v
		}
		for k, v := range patch.Channels {
			if !domain.ValidChannelKey(k) {
				return apperrors.NewValidationError("unknown channel key", map[string]any{"key": k})
			}
			st.Channels[domain.ChannelKey(k)] = v
		}
		if l := patch.Limits; l != nil {
			if l.MaxTicketsPerUser != nil {
				if *l.MaxTicketsPerUser < 1 {
					return apperrors.NewValidationError("maxTicketsPerUser must be at least 1", nil)
				}
				st.Limits.MaxTicketsPerUser = *l.MaxTicketsPerUser
			}
			if l.TicketDeleteDelay != nil {
				if *l.TicketDeleteDelay < 0 {
					return apperrors.NewValidationError("ticketDeleteDelay must not be negative", nil)
				}
				st.Limits.TicketDeleteDelay = *l.TicketDeleteDelay
			}
			if l.PingDeleteDelay != nil {
				if *l.PingDeleteDelay < 0 {
					return apperrors.NewValidationError("pingDeleteDelay must not be negative", nil)
				}
				st.Limits.PingDeleteDelay = *l.PingDeleteDelay
			}
		}
		return nil
	})
	if err != nil {
		return domain.Settings{}, err
	}
	s.logger.Info("settings updated")
	return settings, nil
}
