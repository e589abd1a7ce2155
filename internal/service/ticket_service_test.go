package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/gateway"
	"github.com/spec-kit/ticket-bot/internal/gateway/gatewaytest"
	"github.com/spec-kit/ticket-bot/internal/observability"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

func TestCreateAllocatesSequentialIDsAndEnforcesLimit(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()

	first := h.create(t, "u1", "cheater_report")
	second := h.create(t, "u1", "cheater_report")
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)

	_, err := h.tickets.Create(ctx, draftFor("u1", "cheater_report"))
	require.Error(t, err)
	count, max, ok := apperrors.LimitFrom(err)
	require.True(t, ok)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, max)
	assert.Equal(t, 2, h.store.Counter())

	other := h.create(t, "u2", "player_complaint")
	assert.Equal(t, 3, other.ID)

	assert.EqualValues(t, 3, h.metrics.Operation("ticket.create", observability.OutcomeOK))
	assert.EqualValues(t, 1, h.metrics.Operation("ticket.create", observability.OutcomeRejected))
}

func TestCreateProvisionsPrivateChannel(t *testing.T) {
	h := newHarness(t)
	h.configure(t)

	ticket := h.create(t, "u1", "cheater_report")
	require.NotNil(t, ticket.ChannelID)
	assert.Equal(t, "en", ticket.Language)

	ch, ok := h.gw.Channel(*ticket.ChannelID)
	require.True(t, ok)
	assert.Equal(t, "report-1", ch.Name)
	assert.Equal(t, h.store.Settings().Category(domain.CategoryCheaters), ch.ParentID)
	assert.Contains(t, ch.Topic, "<@u1>")

	assert.Equal(t, gateway.PermViewChannel, ch.Overwrites[testGuild].Deny)
	assert.Equal(t, gateway.ParticipantPermissions, ch.Overwrites["u1"].Allow)
	for _, role := range []string{"role-mod", "role-senior", "role-admin"} {
		assert.Equal(t, gateway.StaffPermissions, ch.Overwrites[role].Allow, role)
	}
	_, helperSees := ch.Overwrites["role-helper"]
	assert.False(t, helperSees)

	byChannel, err := h.tickets.TicketByChannel(*ticket.ChannelID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, byChannel.ID)
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, h.recorder.types())
}

func TestCreatePostsIntroAndTransientPing(t *testing.T) {
	h := newHarness(t)
	h.configure(t)

	ticket := h.create(t, "u1", "cheater_report")
	msgs := h.gw.LiveMessages(ticket.Channel())
	require.Len(t, msgs, 2)
	assert.Equal(t, "<@u1>", msgs[0].Message.Content)
	assert.Len(t, msgs[0].Message.Buttons, 4)
	assert.Equal(t, "<@&role-mod> <@&role-senior>", msgs[1].Message.Content)

	assert.Equal(t, []time.Duration{5 * time.Second}, h.scheduler.delays())
	h.scheduler.runAll()
	assert.Len(t, h.gw.LiveMessages(ticket.Channel()), 1)
}

func TestCreateRejectsUnknownTypeAndMissingCategory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.tickets.Create(ctx, draftFor("u1", "nope"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = h.tickets.Create(ctx, draftFor("u1", "cheater_report"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCategoryNotConfigured))
	assert.Equal(t, 0, h.store.Counter())
}

func TestProvisioningFailureLeavesOrphanUntilPrune(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()

	h.gw.Fail(gatewaytest.OpCreateChannel, errors.New("rate limited"))
	_, err := h.tickets.Create(ctx, draftFor("u1", "cheater_report"))
	require.True(t, apperrors.HasCode(err, apperrors.CodeGatewayFailure))

	orphan, err := h.tickets.Ticket(1)
	require.NoError(t, err)
	assert.Nil(t, orphan.ChannelID)
	assert.Len(t, h.store.OpenTickets("u1"), 1)

	h.gw.Fail(gatewaytest.OpCreateChannel, nil)
	removed, err := h.tickets.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Empty(t, h.store.OpenTickets("u1"))

	next := h.create(t, "u1", "cheater_report")
	assert.Equal(t, 2, next.ID)
}

func TestClaimFirstWins(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	ticket := h.create(t, "u1", "cheater_report")

	claimed, err := h.tickets.Claim(ctx, ticket.Channel(), "staff-1")
	require.NoError(t, err)
	require.NotNil(t, claimed.ClaimedBy)
	assert.Equal(t, "staff-1", *claimed.ClaimedBy)

	ch, _ := h.gw.Channel(ticket.Channel())
	assert.Equal(t, "claimed-report-1", ch.Name)

	_, err = h.tickets.Claim(ctx, ticket.Channel(), "staff-2")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyClaimed))

	current, err := h.tickets.Ticket(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", *current.ClaimedBy)
}

func TestClaimUnknownChannel(t *testing.T) {
	h := newHarness(t)
	_, err := h.tickets.Claim(context.Background(), "nowhere", "staff-1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTicketNotFound))
}

func TestCloseAndReopen(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	ticket := h.create(t, "u1", "cheater_report")

	closed, err := h.tickets.Close(ctx, ticket.Channel(), "staff-1", "  spam  ")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	assert.Equal(t, "spam", *closed.CloseReason)
	assert.Empty(t, h.store.OpenTickets("u1"))

	ch, _ := h.gw.Channel(ticket.Channel())
	assert.Equal(t, "closed-report-1", ch.Name)

	msgs := h.gw.LiveMessages(ticket.Channel())
	controls := msgs[len(msgs)-1]
	require.Len(t, controls.Message.Buttons, 3)
	assert.Equal(t, ReopenToken(ticket.ID), controls.Message.Buttons[0].Token)

	_, err = h.tickets.Claim(ctx, ticket.Channel(), "staff-2")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTicketNotOpen))

	reopened, err := h.tickets.Reopen(ctx, ticket.Channel(), "staff-1", controls.ID)
	require.NoError(t, err)
	assert.True(t, reopened.IsOpen())
	assert.Nil(t, reopened.CloseReason)
	assert.Nil(t, reopened.ClosedBy)

	ch, _ = h.gw.Channel(ticket.Channel())
	assert.Equal(t, "report-1", ch.Name)
	assert.Len(t, h.gw.LiveMessages(ticket.Channel()), len(msgs)-1)
	assert.Len(t, h.store.OpenTickets("u1"), 1)

	assert.Equal(t, []events.EventType{
		events.EventTicketCreated,
		events.EventTicketClosed,
		events.EventTicketReopened,
	}, h.recorder.types())
}

func TestScheduleDeleteRemovesChannelAfterDelay(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	ticket := h.create(t, "u1", "cheater_report")
	_, err := h.tickets.Close(ctx, ticket.Channel(), "u1", "")
	require.NoError(t, err)
	h.scheduler.runAll()

	_, delay, err := h.tickets.ScheduleDelete(ctx, ticket.Channel(), "staff-1")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, delay)
	_, exists := h.gw.Channel(ticket.Channel())
	assert.True(t, exists)

	h.scheduler.runAll()
	_, exists = h.gw.Channel(ticket.Channel())
	assert.False(t, exists)

	record, err := h.tickets.Ticket(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, record.Status)
	assert.Contains(t, h.recorder.types(), events.EventTicketDeleted)
}

func TestRenameSanitizes(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	ticket := h.create(t, "u1", "cheater_report")

	name, err := h.tickets.Rename(ctx, ticket.Channel(), "staff-1", "Hello World!")
	require.NoError(t, err)
	assert.Equal(t, "hello-world-", name)
	ch, _ := h.gw.Channel(ticket.Channel())
	assert.Equal(t, "hello-world-", ch.Name)

	_, err = h.tickets.Rename(ctx, ticket.Channel(), "staff-1", "!!!")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestParticipants(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	ticket := h.create(t, "u1", "cheater_report")

	require.NoError(t, h.tickets.AddParticipant(ctx, ticket.Channel(), "staff-1", "u9"))
	ch, _ := h.gw.Channel(ticket.Channel())
	assert.Equal(t, gateway.ParticipantPermissions, ch.Overwrites["u9"].Allow)
	assert.Equal(t, gateway.TargetMember, ch.Overwrites["u9"].Kind)

	require.NoError(t, h.tickets.RemoveParticipant(ctx, ticket.Channel(), "staff-1", "u9"))
	ch, _ = h.gw.Channel(ticket.Channel())
	_, present := ch.Overwrites["u9"]
	assert.False(t, present)

	h.gw.Fail(gatewaytest.OpSetPermission, errors.New("missing access"))
	err := h.tickets.AddParticipant(ctx, ticket.Channel(), "staff-1", "u9")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeGatewayFailure))
}

func TestTranscriptAndArchive(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	ticket := h.create(t, "u1", "cheater_report")
	h.gw.AddUserMessage(ticket.Channel(), "u1", "**help** please")

	artifact, err := h.tickets.Transcript(ctx, ticket.Channel())
	require.NoError(t, err)
	assert.Equal(t, 3, artifact.MessageCount)
	assert.Contains(t, string(artifact.Data), "<strong>help</strong>")

	_, err = h.tickets.ArchiveTranscript(ctx, ticket.Channel())
	require.NoError(t, err)

	logs := h.gw.AddChannel(testGuild, "", "ticket-logs", gateway.ChannelText)
	_, err = h.store.UpdateSettings(func(s *domain.Settings) error {
		s.Channels[domain.ChannelTicketLogs] = logs
		return nil
	})
	require.NoError(t, err)

	_, err = h.tickets.ArchiveTranscript(ctx, ticket.Channel())
	require.NoError(t, err)
	posted := h.gw.LiveMessages(logs)
	require.Len(t, posted, 1)
	assert.Len(t, posted[0].Message.Files, 1)
}

func TestTranscriptOfEmptyChannel(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	h.gw.Fail(gatewaytest.OpSendMessage, errors.New("down"))
	ticket := h.create(t, "u1", "cheater_report")

	_, err := h.tickets.Transcript(context.Background(), ticket.Channel())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestCallSeniorMentionsSeniorRoles(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ticket := h.create(t, "u1", "player_complaint")

	require.NoError(t, h.tickets.CallSenior(context.Background(), ticket.Channel()))
	msgs := h.gw.LiveMessages(ticket.Channel())
	assert.Contains(t, msgs[len(msgs)-1].Message.Content, "<@&role-senior> <@&role-admin>")
}

func TestRate(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	ticket := h.create(t, "u1", "cheater_report")

	_, err := h.tickets.Rate(ctx, ticket.ID, 6)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	rated, err := h.tickets.Rate(ctx, ticket.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, *rated.Rating)

	_, err = h.tickets.Rate(ctx, 99, 4)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestPruneKeepsClosedTickets(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()

	gone := h.create(t, "u1", "cheater_report")
	closed := h.create(t, "u2", "cheater_report")
	alive := h.create(t, "u3", "cheater_report")
	_, err := h.tickets.Close(ctx, closed.Channel(), "u2", "")
	require.NoError(t, err)
	require.NoError(t, h.gw.DeleteChannel(ctx, gone.Channel()))
	require.NoError(t, h.gw.DeleteChannel(ctx, closed.Channel()))

	removed, err := h.tickets.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	ids := []int{}
	for _, tk := range h.tickets.Tickets("") {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, []int{closed.ID, alive.ID}, ids)
	assert.Contains(t, h.recorder.types(), events.EventTicketsPruned)
}

func TestPruneKeepsTicketsWhenChannelCheckFails(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	h.create(t, "u1", "cheater_report")

	h.gw.Fail(gatewaytest.OpFetchChannel, errors.New("timeout"))
	removed, err := h.tickets.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestPurge(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	ticket := h.create(t, "u1", "cheater_report")

	require.NoError(t, h.tickets.Purge(ctx, ticket.ID))
	_, err := h.tickets.Ticket(ticket.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	err = h.tickets.Purge(ctx, ticket.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	assert.Equal(t, 2, h.create(t, "u1", "cheater_report").ID)
}

func TestTicketsFiltersByStatus(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	a := h.create(t, "u1", "cheater_report")
	h.create(t, "u2", "cheater_report")
	_, err := h.tickets.Close(context.Background(), a.Channel(), "u1", "")
	require.NoError(t, err)

	assert.Len(t, h.tickets.Tickets(""), 2)
	assert.Len(t, h.tickets.Tickets(domain.TicketStatusOpen), 1)
	assert.Len(t, h.tickets.Tickets(domain.TicketStatusClosed), 1)
}

func TestSanitizeChannelName(t *testing.T) {
	assert.Equal(t, "my-ticket-1", SanitizeChannelName("My Ticket_1"))
	assert.Equal(t, "------", SanitizeChannelName("привет"))
	long := SanitizeChannelName(string(make([]byte, 150)))
	assert.Len(t, long, gateway.MaxChannelNameLength)
}
