package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeCreated      TicketChangeType = "CREATED"
	ChangeTypeClaimed      TicketChangeType = "CLAIMED"
	ChangeTypeClosed       TicketChangeType = "CLOSED"
	ChangeTypeReopened     TicketChangeType = "REOPENED"
	ChangeTypeDeleted      TicketChangeType = "DELETED"
	ChangeTypeRenamed      TicketChangeType = "RENAMED"
	ChangeTypeRated        TicketChangeType = "RATED"
	ChangeTypeParticipants TicketChangeType = "PARTICIPANTS"
	ChangeTypeFeedback     TicketChangeType = "FEEDBACK"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID            int64            `json:"id"`
	EventID       string           `json:"event_id"`
	TicketID      int              `json:"ticket_id"`
	ChannelID     *string          `json:"channel_id,omitempty"`
	ChangedByType string           `json:"changed_by_type"`
	ChangedByID   *string          `json:"changed_by_id,omitempty"`
	ChangeType    TicketChangeType `json:"change_type"`
	NewValue      map[string]any   `json:"new_value,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}
