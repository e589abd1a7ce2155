package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/domain"
)

// FeedbackReader exposes ratings per staff member.
type FeedbackReader interface {
	Stats(moderatorID string) domain.ModeratorStats
	List(moderatorID string) []domain.Feedback
}

// FeedbackHandler serves staff rating reports.
type FeedbackHandler struct {
	feedback FeedbackReader
}

func NewFeedbackHandler(feedback FeedbackReader) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback}
}

// ModeratorFeedback GET /moderators/:id/feedback.
func (h *FeedbackHandler) ModeratorFeedback(c *fiber.Ctx) error {
	id := c.Params("id")
	return c.JSON(fiber.Map{"data": dto.NewModeratorFeedbackResponse(h.feedback.Stats(id), h.feedback.List(id))})
}
