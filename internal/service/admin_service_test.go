package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/gateway"
	"github.com/spec-kit/ticket-bot/internal/gateway/gatewaytest"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

func configureRoles(t *testing.T, h *harness) {
	t.Helper()
	_, err := h.store.UpdateSettings(func(s *domain.Settings) error {
		for k, v := range testRoles {
			s.Roles[k] = v
		}
		return nil
	})
	require.NoError(t, err)
}

func TestSetupCreatesChannelsCategoriesAndPanel(t *testing.T) {
	h := newHarness(t)
	configureRoles(t, h)
	ctx := context.Background()

	report, err := h.admin.Setup(ctx, testGuild)
	require.NoError(t, err)
	for _, key := range domain.ChannelKeys {
		assert.Equal(t, SetupCreated, report.Channels[key], key)
	}
	assert.True(t, report.PanelPosted)
	assert.Equal(t, len(h.catalog.Categories), report.CategoriesCreated)
	assert.Zero(t, report.CategoriesFailed)

	settings := h.admin.Settings()
	panel, ok := h.gw.Channel(settings.Channel(domain.ChannelTicketPanel))
	require.True(t, ok)
	assert.Equal(t, "ticket-panel", panel.Name)
	assert.Equal(t, gateway.PermSendMessages, panel.Overwrites[testGuild].Deny)
	assert.True(t, panel.Overwrites[testGuild].Allow.Has(gateway.PermViewChannel))
	require.Len(t, panel.Messages, 1)
	assert.Len(t, panel.Messages[0].Message.Buttons, 1)

	logs, ok := h.gw.Channel(settings.Channel(domain.ChannelTicketLogs))
	require.True(t, ok)
	assert.Equal(t, gateway.PermViewChannel, logs.Overwrites[testGuild].Deny)
	assert.Equal(t, gateway.ParticipantPermissions, logs.Overwrites["role-helper"].Allow)

	for _, group := range h.catalog.Categories {
		ch, ok := h.gw.Channel(settings.Category(group.Key))
		require.True(t, ok, group.Key)
		assert.Equal(t, gateway.ChannelCategory, ch.Kind)
		assert.True(t, ch.Overwrites["role-mod"].Allow.Has(gateway.PermManageChannels))
	}

	// tickets can now be created
	h.create(t, "u1", "tech_support")
}

func TestSetupIsIdempotent(t *testing.T) {
	h := newHarness(t)
	configureRoles(t, h)
	ctx := context.Background()

	_, err := h.admin.Setup(ctx, testGuild)
	require.NoError(t, err)
	before := h.gw.ChannelIDs()

	report, err := h.admin.Setup(ctx, testGuild)
	require.NoError(t, err)
	for _, key := range domain.ChannelKeys {
		assert.Equal(t, SetupExists, report.Channels[key])
	}
	assert.False(t, report.PanelPosted)
	assert.Zero(t, report.CategoriesCreated)
	assert.Equal(t, before, h.gw.ChannelIDs())

	panel, _ := h.gw.Channel(h.admin.Settings().Channel(domain.ChannelTicketPanel))
	assert.Len(t, panel.Messages, 1)
}

func TestSetupReusesChannelsByName(t *testing.T) {
	h := newHarness(t)
	existing := h.gw.AddChannel(testGuild, "", "ticket-logs", gateway.ChannelText)

	report, err := h.admin.Setup(context.Background(), testGuild)
	require.NoError(t, err)
	assert.Equal(t, SetupExists, report.Channels[domain.ChannelTicketLogs])
	assert.Equal(t, existing, h.admin.Settings().Channel(domain.ChannelTicketLogs))
}

func TestSetupRecordsPerItemFailures(t *testing.T) {
	h := newHarness(t)
	h.gw.Fail(gatewaytest.OpCreateChannel, errors.New("missing permissions"))

	report, err := h.admin.Setup(context.Background(), testGuild)
	require.NoError(t, err)
	assert.Equal(t, SetupFailed, report.Channels[domain.ChannelTicketPanel])
	assert.False(t, report.PanelPosted)
	assert.Equal(t, len(h.catalog.Categories), report.CategoriesFailed)
	assert.Empty(t, h.admin.Settings().Channel(domain.ChannelTicketPanel))
}

func TestTeardownRemovesEverythingTheBotOwns(t *testing.T) {
	h := newHarness(t)
	configureRoles(t, h)
	ctx := context.Background()
	general := h.gw.AddChannel(testGuild, "", "general", gateway.ChannelText)

	_, err := h.admin.Setup(ctx, testGuild)
	require.NoError(t, err)
	h.create(t, "u1", "cheater_report")

	report, err := h.admin.Teardown(ctx, testGuild)
	require.NoError(t, err)
	assert.Equal(t, 4, report.ChannelsDeleted)
	assert.Equal(t, len(h.catalog.Categories), report.CategoriesDeleted)

	assert.Equal(t, []string{general}, h.gw.ChannelIDs())
	settings := h.admin.Settings()
	for _, key := range domain.CategoryKeys {
		assert.Empty(t, settings.Category(key))
	}
	for _, key := range domain.ChannelKeys {
		assert.Empty(t, settings.Channel(key))
	}
	assert.Equal(t, "role-mod", settings.Role(domain.RoleModerator))
	assert.Empty(t, h.tickets.Tickets(""))
	assert.Zero(t, h.admin.Counter())
	assert.Contains(t, h.recorder.types(), events.EventTicketsReset)
}

func TestResetRestartsIDs(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	h.create(t, "u1", "cheater_report")
	h.create(t, "u2", "cheater_report")

	require.NoError(t, h.admin.Reset(ctx))
	assert.Empty(t, h.tickets.Tickets(""))
	assert.Equal(t, 1, h.create(t, "u1", "cheater_report").ID)
}

func TestUpdateSettings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	three := 3

	settings, err := h.admin.UpdateSettings(ctx, SettingsPatch{
		Roles:  map[string]string{"moderator": "r-1"},
		Limits: &LimitsPatch{MaxTicketsPerUser: &three},
	})
	require.NoError(t, err)
	assert.Equal(t, "r-1", settings.Role(domain.RoleModerator))
	assert.Equal(t, 3, settings.Limits.MaxTicketsPerUser)

	zero := 0
	_, err = h.admin.UpdateSettings(ctx, SettingsPatch{
		Roles:  map[string]string{"admin": "r-2"},
		Limits: &LimitsPatch{MaxTicketsPerUser: &zero},
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = h.admin.UpdateSettings(ctx, SettingsPatch{Channels: map[string]string{"general": "c"}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	current := h.admin.Settings()
	assert.Empty(t, current.Role(domain.RoleAdmin))
	assert.Equal(t, 3, current.Limits.MaxTicketsPerUser)
}
