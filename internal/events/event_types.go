package events

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketClaimed      EventType = "ticket_claimed"
	EventTicketClosed       EventType = "ticket_closed"
	EventTicketReopened     EventType = "ticket_reopened"
	EventTicketDeleted      EventType = "ticket_deleted"
	EventTicketRenamed      EventType = "ticket_renamed"
	EventTicketRated        EventType = "ticket_rated"
	EventFeedbackSubmitted  EventType = "feedback_submitted"
	EventTicketsReset       EventType = "tickets_reset"
	EventTicketsPruned      EventType = "tickets_pruned"
	EventTicketParticipants EventType = "ticket_participants_changed"
)

// AllTypes lists every event type, in declaration order.
var AllTypes = []EventType{
	EventTicketCreated,
	EventTicketClaimed,
	EventTicketClosed,
	EventTicketReopened,
	EventTicketDeleted,
	EventTicketRenamed,
	EventTicketRated,
	EventFeedbackSubmitted,
	EventTicketsReset,
	EventTicketsPruned,
	EventTicketParticipants,
}

// ActorType tells who triggered an event.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorStaff  ActorType = "staff"
	ActorSystem ActorType = "system"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type ActorType `json:"type"`
	ID   string    `json:"id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  int       `json:"ticket_id,omitempty"`
	ChannelID string    `json:"channel_id,omitempty"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Type     string `json:"type"`
	Language string `json:"language"`
	Server   string `json:"server,omitempty"`
}

// TicketClaimedPayload payload.
type TicketClaimedPayload struct {
	ClaimedBy string `json:"claimed_by"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	ClosedBy string `json:"closed_by"`
	Reason   string `json:"reason,omitempty"`
}

// TicketRenamedPayload payload.
type TicketRenamedPayload struct {
	Name string `json:"name"`
}

// TicketRatedPayload payload.
type TicketRatedPayload struct {
	Rating int `json:"rating"`
}

// ParticipantsChangedPayload payload.
type ParticipantsChangedPayload struct {
	UserID string `json:"user_id"`
	Added  bool   `json:"added"`
}

// FeedbackSubmittedPayload payload.
type FeedbackSubmittedPayload struct {
	FeedbackID  int                   `json:"feedback_id"`
	ModeratorID string                `json:"moderator_id"`
	Rating      domain.FeedbackRating `json:"rating"`
}

// TicketsPrunedPayload payload.
type TicketsPrunedPayload struct {
	Removed int `json:"removed"`
}
