package service

import (
	"strconv"
	"strings"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// Tokens of the ticket controls. Controls that act on a closed ticket or a
// feedback prompt carry the ids they act on.
const (
	TokenClose      = "ticket_close"
	TokenClaim      = "ticket_claim"
	TokenTranscript = "ticket_transcript"
	TokenCallSenior = "ticket_call_senior"
	TokenCloseModal = "ticket_close_modal"

	TokenFeedbackDisabledPositive = "feedback_disabled_pos"
	TokenFeedbackDisabledNegative = "feedback_disabled_neg"

	// FieldCloseReason is the reason input of the close form.
	FieldCloseReason = "close_reason"
	// FieldFeedbackComment is the comment input of the feedback form.
	FieldFeedbackComment = "feedback_comment"

	prefixReopen         = "ticket_reopen_"
	prefixTranscriptSave = "ticket_transcript_save_"
	prefixDelete         = "ticket_delete_"
	prefixFeedbackModal  = "feedback_modal_"
	prefixFeedback       = "feedback_"
	prefixFeedbackOff    = "feedback_disabled"
)

// ControlKind identifies a decoded control token.
type ControlKind int

const (
	ControlUnknown ControlKind = iota
	ControlClose
	ControlCloseSubmit
	ControlClaim
	ControlTranscript
	ControlCallSenior
	ControlReopen
	ControlTranscriptSave
	ControlDelete
	ControlFeedback
	ControlFeedbackSubmit
	ControlFeedbackDisabled
)

// Control is a decoded control token.
type Control struct {
	Kind     ControlKind
	TicketID int
	StaffID  string
	Rating   domain.FeedbackRating
}

func ReopenToken(ticketID int) string { return prefixReopen + strconv.Itoa(ticketID) }

func TranscriptSaveToken(ticketID int) string {
	return prefixTranscriptSave + strconv.Itoa(ticketID)
}

func DeleteToken(ticketID int) string { return prefixDelete + strconv.Itoa(ticketID) }

// FeedbackToken is the token of a rating button on a feedback prompt.
func FeedbackToken(rating domain.FeedbackRating, staffID string, ticketID int) string {
	return prefixFeedback + string(rating) + "_" + staffID + "_" + strconv.Itoa(ticketID)
}

// FeedbackModalToken is the token of the comment form opened by a rating button.
func FeedbackModalToken(rating domain.FeedbackRating, staffID string, ticketID int) string {
	return prefixFeedbackModal + string(rating) + "_" + staffID + "_" + strconv.Itoa(ticketID)
}

// ParseControl decodes a control token. ok is false for tokens that are not
// ticket controls, wizard tokens included.
func ParseControl(token string) (Control, bool) {
	switch token {
	case TokenClose:
		return Control{Kind: ControlClose}, true
	case TokenCloseModal:
		return Control{Kind: ControlCloseSubmit}, true
	case TokenClaim:
		return Control{Kind: ControlClaim}, true
	case TokenTranscript:
		return Control{Kind: ControlTranscript}, true
	case TokenCallSenior:
		return Control{Kind: ControlCallSenior}, true
	}

	switch {
	case strings.HasPrefix(token, prefixTranscriptSave):
		return ticketControl(ControlTranscriptSave, strings.TrimPrefix(token, prefixTranscriptSave))
	case strings.HasPrefix(token, prefixReopen):
		return ticketControl(ControlReopen, strings.TrimPrefix(token, prefixReopen))
	case strings.HasPrefix(token, prefixDelete):
		return ticketControl(ControlDelete, strings.TrimPrefix(token, prefixDelete))
	case strings.HasPrefix(token, prefixFeedbackOff):
		return Control{Kind: ControlFeedbackDisabled}, true
	case strings.HasPrefix(token, prefixFeedbackModal):
		return feedbackControl(ControlFeedbackSubmit, strings.TrimPrefix(token, prefixFeedbackModal))
	case strings.HasPrefix(token, prefixFeedback):
		return feedbackControl(ControlFeedback, strings.TrimPrefix(token, prefixFeedback))
	}
	return Control{}, false
}

func ticketControl(kind ControlKind, rest string) (Control, bool) {
	id, err := strconv.Atoi(rest)
	if err != nil || id <= 0 {
		return Control{}, false
	}
	return Control{Kind: kind, TicketID: id}, true
}

// feedbackControl parses "<rating>_<staff>_<ticket>".
func feedbackControl(kind ControlKind, rest string) (Control, bool) {
	parts := strings.Split(rest, "_")
	if len(parts) != 3 || parts[1] == "" {
		return Control{}, false
	}
	rating := domain.FeedbackRating(parts[0])
	if rating != domain.FeedbackPositive && rating != domain.FeedbackNegative {
		return Control{}, false
	}
	id, err := strconv.Atoi(parts[2])
	if err != nil || id <= 0 {
		return Control{}, false
	}
	return Control{Kind: kind, TicketID: id, StaffID: parts[1], Rating: rating}, true
}
