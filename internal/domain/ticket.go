package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

// FormData holds the answers a requester gave in the ticket form, keyed by field id.
type FormData map[string]string

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          int          `json:"id"`
	Type        string       `json:"type"`
	UserID      string       `json:"userId"`
	GuildID     string       `json:"guildId"`
	ChannelID   *string      `json:"channelId"`
	Language    string       `json:"language"`
	Server      string       `json:"server,omitempty"`
	FormData    FormData     `json:"formData"`
	Status      TicketStatus `json:"status"`
	ClaimedBy   *string      `json:"claimedBy"`
	ClaimedAt   *time.Time   `json:"claimedAt"`
	Rating      *int         `json:"rating"`
	CreatedAt   time.Time    `json:"createdAt"`
	ClosedBy    *string      `json:"closedBy,omitempty"`
	CloseReason *string      `json:"closeReason,omitempty"`
	ClosedAt    *time.Time   `json:"closedAt,omitempty"`
}

// IsOpen reports whether the ticket is in the open state.
func (t *Ticket) IsOpen() bool {
	return t.Status == TicketStatusOpen
}

// Channel returns the bound channel id or "" before provisioning completes.
func (t *Ticket) Channel() string {
	if t.ChannelID == nil {
		return ""
	}
	return *t.ChannelID
}

// Clone returns a deep copy so callers never alias store-owned memory.
func (t Ticket) Clone() Ticket {
	out := t
	out.ChannelID = cloneString(t.ChannelID)
	out.ClaimedBy = cloneString(t.ClaimedBy)
	out.ClaimedAt = cloneTime(t.ClaimedAt)
	out.ClosedBy = cloneString(t.ClosedBy)
	out.CloseReason = cloneString(t.CloseReason)
	out.ClosedAt = cloneTime(t.ClosedAt)
	if t.Rating != nil {
		r := *t.Rating
		out.Rating = &r
	}
	if t.FormData != nil {
		out.FormData = make(FormData, len(t.FormData))
		for k, v := range t.FormData {
			out.FormData[k] = v
		}
	}
	return out
}

// TicketDraft is the input for creating a ticket record.
type TicketDraft struct {
	Type     string
	UserID   string
	GuildID  string
	Language string
	Server   string
	FormData FormData
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
