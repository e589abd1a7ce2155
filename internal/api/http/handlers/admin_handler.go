package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// AdminOperations is the administrative surface exposed over HTTP.
type AdminOperations interface {
	Setup(ctx context.Context, guildID string) (service.SetupReport, error)
	Reset(ctx context.Context) error
	Teardown(ctx context.Context, guildID string) (service.TeardownReport, error)
	Settings() domain.Settings
	Counter() int
	UpdateSettings(ctx context.Context, patch service.SettingsPatch) (domain.Settings, error)
}

// AdminHandler serves guild administration endpoints.
type AdminHandler struct {
	admin   AdminOperations
	guildID string
	metrics *observability.Metrics
}

// NewAdminHandler constructs handler. guildID is the guild the bot serves.
func NewAdminHandler(admin AdminOperations, guildID string, metrics *observability.Metrics) *AdminHandler {
	return &AdminHandler{admin: admin, guildID: guildID, metrics: metrics}
}

func (h *AdminHandler) requireGuild() error {
	if h.guildID == "" {
		return apperrors.NewValidationError("DISCORD_GUILD_ID is not configured", nil)
	}
	return nil
}

// Setup POST /admin/setup.
func (h *AdminHandler) Setup(c *fiber.Ctx) error {
	if err := h.requireGuild(); err != nil {
		return err
	}
	report, err := h.admin.Setup(c.UserContext(), h.guildID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// Reset POST /admin/reset.
func (h *AdminHandler) Reset(c *fiber.Ctx) error {
	if err := h.admin.Reset(c.UserContext()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Teardown POST /admin/teardown.
func (h *AdminHandler) Teardown(c *fiber.Ctx) error {
	if err := h.requireGuild(); err != nil {
		return err
	}
	report, err := h.admin.Teardown(c.UserContext(), h.guildID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// GetSettings GET /admin/settings.
func (h *AdminHandler) GetSettings(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.SettingsResponse{Settings: h.admin.Settings(), TicketCounter: h.admin.Counter()}})
}

// PatchSettings PATCH /admin/settings.
func (h *AdminHandler) PatchSettings(c *fiber.Ctx) error {
	var patch service.SettingsPatch
	if err := c.BodyParser(&patch); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	settings, err := h.admin.UpdateSettings(c.UserContext(), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SettingsResponse{Settings: settings, TicketCounter: h.admin.Counter()}})
}

// Metrics GET /metrics.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}
