package domain

import "time"

// FeedbackRating is the polarity of a requester's rating of staff.
type FeedbackRating string

const (
	FeedbackPositive FeedbackRating = "positive"
	FeedbackNegative FeedbackRating = "negative"
)

// Feedback is an immutable rating of a staff member left by a ticket requester.
type Feedback struct {
	ID            int            `json:"id"`
	TicketID      int            `json:"ticketId"`
	ModeratorID   string         `json:"moderatorId"`
	ModeratorName string         `json:"moderatorName"`
	UserID        string         `json:"userId"`
	UserName      string         `json:"userName"`
	Rating        FeedbackRating `json:"rating"`
	Comment       string         `json:"comment"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// ModeratorStats aggregates feedback polarity for one staff member.
type ModeratorStats struct {
	ModeratorID string `json:"moderator_id"`
	Positive    int    `json:"positive"`
	Negative    int    `json:"negative"`
}
