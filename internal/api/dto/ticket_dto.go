package dto

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// TicketResponse is the API view of a ticket.
type TicketResponse struct {
	ID          int                 `json:"id"`
	Type        string              `json:"type"`
	UserID      string              `json:"user_id"`
	GuildID     string              `json:"guild_id"`
	ChannelID   *string             `json:"channel_id"`
	Language    string              `json:"language"`
	Server      string              `json:"server,omitempty"`
	FormData    map[string]string   `json:"form_data"`
	Status      domain.TicketStatus `json:"status"`
	ClaimedBy   *string             `json:"claimed_by"`
	ClaimedAt   *time.Time          `json:"claimed_at"`
	Rating      *int                `json:"rating"`
	CreatedAt   time.Time           `json:"created_at"`
	ClosedBy    *string             `json:"closed_by,omitempty"`
	CloseReason *string             `json:"close_reason,omitempty"`
	ClosedAt    *time.Time          `json:"closed_at,omitempty"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID            int64                   `json:"id"`
	EventID       string                  `json:"event_id"`
	ChangeType    domain.TicketChangeType `json:"change_type"`
	ChangedByType string                  `json:"changed_by_type"`
	ChangedByID   *string                 `json:"changed_by_id"`
	NewValue      map[string]any          `json:"new_value,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

// FeedbackResponse is one rating of a staff member.
type FeedbackResponse struct {
	ID        int                   `json:"id"`
	TicketID  int                   `json:"ticket_id"`
	UserID    string                `json:"user_id"`
	UserName  string                `json:"user_name"`
	Rating    domain.FeedbackRating `json:"rating"`
	Comment   string                `json:"comment"`
	CreatedAt time.Time             `json:"created_at"`
}

// ModeratorFeedbackResponse aggregates a staff member's ratings.
type ModeratorFeedbackResponse struct {
	ModeratorID string             `json:"moderator_id"`
	Positive    int                `json:"positive"`
	Negative    int                `json:"negative"`
	Feedback    []FeedbackResponse `json:"feedback"`
}

// NewTicketResponse converts a ticket.
func NewTicketResponse(t domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		Type:        t.Type,
		UserID:      t.UserID,
		GuildID:     t.GuildID,
		ChannelID:   t.ChannelID,
		Language:    t.Language,
		Server:      t.Server,
		FormData:    t.FormData,
		Status:      t.Status,
		ClaimedBy:   t.ClaimedBy,
		ClaimedAt:   t.ClaimedAt,
		Rating:      t.Rating,
		CreatedAt:   t.CreatedAt,
		ClosedBy:    t.ClosedBy,
		CloseReason: t.CloseReason,
		ClosedAt:    t.ClosedAt,
	}
}

// NewTicketHistoryResponses converts audit entries.
func NewTicketHistoryResponses(entries []domain.TicketHistory) []TicketHistoryResponse {
	out := make([]TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, TicketHistoryResponse{
			ID:            e.ID,
			EventID:       e.EventID,
			ChangeType:    e.ChangeType,
			ChangedByType: e.ChangedByType,
			ChangedByID:   e.ChangedByID,
			NewValue:      e.NewValue,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out
}

// NewModeratorFeedbackResponse combines stats and ratings.
func NewModeratorFeedbackResponse(stats domain.ModeratorStats, feedback []domain.Feedback) ModeratorFeedbackResponse {
	out := ModeratorFeedbackResponse{
		ModeratorID: stats.ModeratorID,
		Positive:    stats.Positive,
		Negative:    stats.Negative,
		Feedback:    make([]FeedbackResponse, 0, len(feedback)),
	}
	for _, fb := range feedback {
		out.Feedback = append(out.Feedback, FeedbackResponse{
			ID:        fb.ID,
			TicketID:  fb.TicketID,
			UserID:    fb.UserID,
			UserName:  fb.UserName,
			Rating:    fb.Rating,
			Comment:   fb.Comment,
			CreatedAt: fb.CreatedAt,
		})
	}
	return out
}
