package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/catalog"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/gateway"
	"github.com/spec-kit/ticket-bot/internal/observability"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// MaxFeedbackComment bounds the free-text comment of a rating.
const MaxFeedbackComment = 500

// FeedbackStore persists feedback records.
type FeedbackStore interface {
	Settings() domain.Settings
	TicketByID(id int) (domain.Ticket, bool)
	TicketByChannel(channelID string) (domain.Ticket, bool)
	CreateFeedback(ctx context.Context, fb domain.Feedback) (domain.Feedback, error)
	FeedbackByModerator(moderatorID string) []domain.Feedback
	ModeratorStats(moderatorID string) domain.ModeratorStats
}

// FeedbackService collects requester ratings of staff members.
type FeedbackService struct {
	store      FeedbackStore
	catalog    *catalog.Catalog
	gateway    gateway.Gateway
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	schedule   Scheduler
	window     time.Duration
}

// FeedbackDependencies bundles collaborators for the feedback service.
type FeedbackDependencies struct {
	Store      FeedbackStore
	Catalog    *catalog.Catalog
	Gateway    gateway.Gateway
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Schedule   Scheduler
	// Window is how long a prompt stays clickable; defaults to ten minutes.
	Window time.Duration
}

// NewFeedbackService constructs the service.
func NewFeedbackService(deps FeedbackDependencies) *FeedbackService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Schedule == nil {
		deps.Schedule = AfterFunc
	}
	if deps.Window <= 0 {
		deps.Window = 10 * time.Minute
	}
	return &FeedbackService{
		store:      deps.Store,
		catalog:    deps.Catalog,
		gateway:    deps.Gateway,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		schedule:   deps.Schedule,
		window:     deps.Window,
	}
}

// RequestFeedback posts a rating prompt for staffID into the ticket channel,
// addressed to the ticket's requester. The prompt's controls are disabled in
// place once the window elapses. Returns the prompt message id.
func (s *FeedbackService) RequestFeedback(ctx context.Context, channelID, staffID, targetUserID string) (messageID string, err error) {
	defer func(start time.Time) { observe(s.metrics, "feedback.request", start, err) }(time.Now())

	ticket, ok := s.store.TicketByChannel(channelID)
	if !ok {
		return "", apperrors.NewTicketNotFound(channelID)
	}
	if targetUserID != ticket.UserID {
		return "", apperrors.NewNotTicketCreator(ticket.ID, targetUserID)
	}

	minutes := int(s.window / time.Minute)
	msg := feedbackPrompt(s.catalog, ticket.Language, targetUserID, staffID, ticket.ID, minutes)
	messageID, err = s.gateway.SendMessage(ctx, channelID, msg)
	if err != nil {
		return "", apperrors.NewGatewayFailure("send message", err)
	}

	log := s.logger.With(zap.Int("ticket_id", ticket.ID), zap.String("channel_id", channelID))
	s.schedule(s.window, func() {
		msg.Buttons = FeedbackButtons(staffID, ticket.ID, true)
		bestEffort(log, "disable feedback prompt", s.gateway.EditMessage(context.Background(), channelID, messageID, msg))
	})
	log.Info("feedback requested", zap.String("staff_id", staffID))
	return messageID, nil
}

// FeedbackInput is a submitted rating.
type FeedbackInput struct {
	TicketID    int
	ModeratorID string
	Rating      domain.FeedbackRating
	Comment     string
	RaterID     string
	RaterName   string
	// ChannelID and PromptMessageID locate the prompt to disable; both optional.
	ChannelID       string
	PromptMessageID string
}

// SubmitFeedback records a rating. Only the ticket's requester may rate.
func (s *FeedbackService) SubmitFeedback(ctx context.Context, in FeedbackInput) (fb domain.Feedback, err error) {
	defer func(start time.Time) { observe(s.metrics, "feedback.submit", start, err) }(time.Now())

	if in.Rating != domain.FeedbackPositive && in.Rating != domain.FeedbackNegative {
		return domain.Feedback{}, apperrors.NewValidationError("unknown rating", map[string]any{"rating": in.Rating})
	}
	comment := strings.TrimSpace(in.Comment)
	if utf8.RuneCountInString(comment) > MaxFeedbackComment {
		return domain.Feedback{}, apperrors.NewValidationError("comment too long", map[string]any{"max": MaxFeedbackComment})
	}
	ticket, ok := s.store.TicketByID(in.TicketID)
	if !ok {
		return domain.Feedback{}, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": in.TicketID})
	}
	if in.RaterID != ticket.UserID {
		return domain.Feedback{}, apperrors.NewForbidden("only the ticket creator may rate")
	}

	fb, err = s.store.CreateFeedback(ctx, domain.Feedback{
		TicketID:    ticket.ID,
		ModeratorID: in.ModeratorID,
		UserID:      in.RaterID,
		UserName:    in.RaterName,
		Rating:      in.Rating,
		Comment:     comment,
	})
	if err != nil {
		return domain.Feedback{}, err
	}
	log := s.logger.With(zap.Int("ticket_id", ticket.ID), zap.Int("feedback_id", fb.ID))

	if in.ChannelID != "" && in.PromptMessageID != "" {
		prompt := feedbackPrompt(s.catalog, ticket.Language, ticket.UserID, in.ModeratorID, ticket.ID, int(s.window/time.Minute))
		prompt.Buttons = FeedbackButtons(in.ModeratorID, ticket.ID, true)
		bestEffort(log, "disable feedback prompt", s.gateway.EditMessage(ctx, in.ChannelID, in.PromptMessageID, prompt))
	}
	if logChannel := s.store.Settings().Channel(domain.ChannelFeedbackLogs); logChannel != "" {
		_, sendErr := s.gateway.SendMessage(ctx, logChannel, feedbackLogMessage(s.catalog, ticket.Language, fb))
		bestEffort(log, "feedback log", sendErr, zap.String("log_channel_id", logChannel))
	}

	log.Info("feedback submitted", zap.String("moderator_id", fb.ModeratorID), zap.String("rating", string(fb.Rating)))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:      events.EventFeedbackSubmitted,
		TicketID:  ticket.ID,
		ChannelID: ticket.Channel(),
		Actor:     userActor(in.RaterID),
		Payload: events.FeedbackSubmittedPayload{
			FeedbackID:  fb.ID,
			ModeratorID: fb.ModeratorID,
			Rating:      fb.Rating,
		},
	})
	return fb, nil
}

// Stats counts positive and negative ratings of a staff member.
func (s *FeedbackService) Stats(moderatorID string) domain.ModeratorStats {
	return s.store.ModeratorStats(moderatorID)
}

// List returns every rating left for a staff member.
func (s *FeedbackService) List(moderatorID string) []domain.Feedback {
	return s.store.FeedbackByModerator(moderatorID)
}
