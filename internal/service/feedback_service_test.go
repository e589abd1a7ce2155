package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/gateway"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

func TestRequestFeedbackDisablesPromptAfterWindow(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	ticket := h.create(t, "u1", "cheater_report")
	h.scheduler.runAll()

	msgID, err := h.feedback.RequestFeedback(ctx, ticket.Channel(), "staff-1", "u1")
	require.NoError(t, err)

	prompt := lastMessage(t, h, ticket.Channel())
	assert.Equal(t, msgID, prompt.ID)
	assert.Equal(t, "<@u1>", prompt.Message.Content)
	require.Len(t, prompt.Message.Buttons, 2)
	assert.Equal(t, FeedbackToken(domain.FeedbackPositive, "staff-1", ticket.ID), prompt.Message.Buttons[0].Token)
	assert.Equal(t, []time.Duration{10 * time.Minute}, h.scheduler.delays())

	h.scheduler.runAll()
	prompt = lastMessage(t, h, ticket.Channel())
	for _, b := range prompt.Message.Buttons {
		assert.True(t, b.Disabled)
	}
}

func TestRequestFeedbackRequiresCreator(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ticket := h.create(t, "u1", "cheater_report")

	_, err := h.feedback.RequestFeedback(context.Background(), ticket.Channel(), "staff-1", "u2")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotTicketCreator))

	_, err = h.feedback.RequestFeedback(context.Background(), "nowhere", "staff-1", "u1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTicketNotFound))
}

func TestSubmitFeedback(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	ticket := h.create(t, "u1", "cheater_report")
	logs := h.gw.AddChannel(testGuild, "", "feedback-logs", gateway.ChannelText)
	_, err := h.store.UpdateSettings(func(s *domain.Settings) error {
		s.Channels[domain.ChannelFeedbackLogs] = logs
		return nil
	})
	require.NoError(t, err)
	promptID, err := h.feedback.RequestFeedback(ctx, ticket.Channel(), "staff-1", "u1")
	require.NoError(t, err)

	fb, err := h.feedback.SubmitFeedback(ctx, FeedbackInput{
		TicketID:        ticket.ID,
		ModeratorID:     "staff-1",
		Rating:          domain.FeedbackPositive,
		Comment:         "  quick and kind  ",
		RaterID:         "u1",
		RaterName:       "User One",
		ChannelID:       ticket.Channel(),
		PromptMessageID: promptID,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fb.ID)
	assert.Equal(t, "quick and kind", fb.Comment)

	prompt := lastMessage(t, h, ticket.Channel())
	assert.True(t, prompt.Message.Buttons[0].Disabled)
	require.Len(t, h.gw.LiveMessages(logs), 1)

	_, err = h.feedback.SubmitFeedback(ctx, FeedbackInput{
		TicketID: ticket.ID, ModeratorID: "staff-1", Rating: domain.FeedbackNegative, RaterID: "u1",
	})
	require.NoError(t, err)

	stats := h.feedback.Stats("staff-1")
	assert.Equal(t, 1, stats.Positive)
	assert.Equal(t, 1, stats.Negative)
	assert.Len(t, h.feedback.List("staff-1"), 2)
	assert.Contains(t, h.recorder.types(), events.EventFeedbackSubmitted)
}

func TestSubmitFeedbackRejects(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	ticket := h.create(t, "u1", "cheater_report")

	_, err := h.feedback.SubmitFeedback(ctx, FeedbackInput{TicketID: ticket.ID, ModeratorID: "s", Rating: "meh", RaterID: "u1"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = h.feedback.SubmitFeedback(ctx, FeedbackInput{
		TicketID: ticket.ID, ModeratorID: "s", Rating: domain.FeedbackPositive, RaterID: "u1",
		Comment: strings.Repeat("x", MaxFeedbackComment+1),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = h.feedback.SubmitFeedback(ctx, FeedbackInput{TicketID: ticket.ID, ModeratorID: "s", Rating: domain.FeedbackPositive, RaterID: "u2"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = h.feedback.SubmitFeedback(ctx, FeedbackInput{TicketID: 42, ModeratorID: "s", Rating: domain.FeedbackPositive, RaterID: "u1"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	assert.Empty(t, h.feedback.List("s"))
}
