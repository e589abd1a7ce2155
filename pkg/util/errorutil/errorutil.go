package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the lifecycle, wizard and admin surfaces.
const (
	CodeTicketNotFound        = "TICKET_NOT_FOUND"
	CodeNotFound              = "NOT_FOUND"
	CodeForbidden             = "FORBIDDEN"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeValidation            = "VALIDATION_FAILED"
	CodeLimitReached          = "LIMIT_REACHED"
	CodeAlreadyClaimed        = "ALREADY_CLAIMED"
	CodeTicketNotOpen         = "TICKET_NOT_OPEN"
	CodeCategoryNotConfigured = "CATEGORY_NOT_CONFIGURED"
	CodeNotTicketCreator      = "NOT_TICKET_CREATOR"
	CodeStorageFailure        = "STORAGE_FAILURE"
	CodeGatewayFailure        = "GATEWAY_FAILURE"
	CodeInternal              = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewTicketNotFound reports that no ticket is indexed for the channel.
func NewTicketNotFound(channelID string) error {
	return NewDomainError(CodeTicketNotFound, "ticket not found", http.StatusNotFound,
		map[string]any{"channel_id": channelID})
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(code, message string, details map[string]any) error {
	return NewDomainError(code, message, http.StatusConflict, details)
}

// NewLimitReached carries the requester's open-ticket count and the configured maximum.
func NewLimitReached(count, max int) error {
	return NewDomainError(CodeLimitReached, "open ticket limit reached", http.StatusConflict,
		map[string]any{"count": count, "max": max})
}

func NewAlreadyClaimed(ticketID int, claimedBy string) error {
	return NewConflict(CodeAlreadyClaimed, "ticket already claimed",
		map[string]any{"ticket_id": ticketID, "claimed_by": claimedBy})
}

func NewTicketNotOpen(ticketID int) error {
	return NewConflict(CodeTicketNotOpen, "ticket is not open", map[string]any{"ticket_id": ticketID})
}

func NewCategoryNotConfigured(categoryKey string) error {
	return NewDomainError(CodeCategoryNotConfigured, "ticket category not configured",
		http.StatusUnprocessableEntity, map[string]any{"category": categoryKey})
}

// NewNotTicketCreator reports that userID did not open the ticket.
func NewNotTicketCreator(ticketID int, userID string) error {
	return NewDomainError(CodeNotTicketCreator, "user is not the ticket creator", http.StatusForbidden,
		map[string]any{"ticket_id": ticketID, "user_id": userID})
}

// NewStorageFailure wraps a durable-write or read problem of the document store.
func NewStorageFailure(err error) error {
	return &DomainError{
		Code:       CodeStorageFailure,
		Message:    "storage failure",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewGatewayFailure wraps a failed chat-platform call.
func NewGatewayFailure(op string, err error) error {
	return &DomainError{
		Code:       CodeGatewayFailure,
		Message:    fmt.Sprintf("gateway %s failed", op),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"operation": op},
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries the given domain code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}

// IsFatal reports whether err should interrupt the surrounding request.
// Only storage and unclassified failures qualify.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	de := ToDomainError(err)
	return de.Code == CodeStorageFailure || de.Code == CodeInternal
}

// LimitFrom extracts the count and max carried by a LIMIT_REACHED error.
func LimitFrom(err error) (count, max int, ok bool) {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != CodeLimitReached {
		return 0, 0, false
	}
	count, _ = domainErr.Details["count"].(int)
	max, _ = domainErr.Details["max"].(int)
	return count, max, true
}
