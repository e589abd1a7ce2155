package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// TicketReader is the lifecycle surface exposed over HTTP.
type TicketReader interface {
	Ticket(id int) (domain.Ticket, error)
	Tickets(status domain.TicketStatus) []domain.Ticket
	Prune(ctx context.Context) (int, error)
	Purge(ctx context.Context, ticketID int) error
}

// HistoryReader lists a ticket's audit trail.
type HistoryReader interface {
	ListByTicket(ctx context.Context, ticketID int) ([]domain.TicketHistory, error)
}

// TicketsHandler serves ticket inspection and maintenance endpoints.
type TicketsHandler struct {
	tickets TicketReader
	history HistoryReader
}

// NewTicketsHandler constructs handler. history may be nil when no database
// is configured.
func NewTicketsHandler(tickets TicketReader, history HistoryReader) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, history: history}
}

// ListTickets GET /tickets?status=open|closed.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	status := domain.TicketStatus(c.Query("status"))
	switch status {
	case "", domain.TicketStatusOpen, domain.TicketStatusClosed:
	default:
		return apperrors.NewValidationError("unknown status", map[string]any{"status": status})
	}
	tickets := h.tickets.Tickets(status)
	items := make([]dto.TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, dto.NewTicketResponse(t))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Ticket(id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// GetHistory GET /tickets/:id/history.
func (h *TicketsHandler) GetHistory(c *fiber.Ctx) error {
	if h.history == nil {
		return apperrors.NewDomainError("HISTORY_UNAVAILABLE", "ticket history requires a database", fiber.StatusServiceUnavailable, nil)
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	entries, err := h.history.ListByTicket(c.UserContext(), id)
	if err != nil {
		return apperrors.NewStorageFailure(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketHistoryResponses(entries)})
}

// Prune POST /tickets/prune.
func (h *TicketsHandler) Prune(c *fiber.Ctx) error {
	removed, err := h.tickets.Prune(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.PruneResponse{Removed: removed}})
}

// Purge DELETE /tickets/:id.
func (h *TicketsHandler) Purge(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	if err := h.tickets.Purge(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func ticketID(c *fiber.Ctx) (int, error) {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", map[string]any{"id": c.Params("id")})
	}
	return id, nil
}
