// Package apiclient talks to the bot's admin HTTP API.
package apiclient

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client is a thin wrapper over fiber's HTTP agent.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
}

// New builds a client for the API rooted at baseURL, e.g. http://127.0.0.1:8080.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/") + "/api/v1", token: token, timeout: timeout}
}

type envelope[T any] struct {
	Data  T `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

// do sends one request and decodes the data member into out. API failures
// come back as *errorutil.DomainError.
func do[T any](c *Client, agent *fiber.Agent, body any) (T, error) {
	var zero T
	agent.Timeout(c.timeout)
	if c.token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}
	if body != nil {
		agent.JSON(body)
	}

	status, raw, errs := agent.Bytes()
	if len(errs) > 0 {
		return zero, fmt.Errorf("request failed: %w", errs[0])
	}
	if status == fiber.StatusNoContent {
		return zero, nil
	}

	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return zero, fmt.Errorf("decode response (status %d): %w", status, err)
	}
	if env.Error != nil {
		return zero, apperrors.NewDomainError(env.Error.Code, env.Error.Message, status, env.Error.Details)
	}
	if status >= fiber.StatusBadRequest {
		return zero, apperrors.NewDomainError(apperrors.CodeInternal, fmt.Sprintf("unexpected status %d", status), status, nil)
	}
	return env.Data, nil
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

// Login trades the operator password for a bearer token.
func (c *Client) Login(password, scope string) (dto.AuthResponse, error) {
	return do[dto.AuthResponse](c, fiber.Post(c.url("/auth/login")), dto.LoginRequest{Password: password, Scope: scope})
}

// Tickets lists tickets, optionally filtered by status.
func (c *Client) Tickets(status string) ([]dto.TicketResponse, error) {
	path := "/tickets"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	return do[[]dto.TicketResponse](c, fiber.Get(c.url(path)), nil)
}

// Ticket fetches one ticket.
func (c *Client) Ticket(id int) (dto.TicketResponse, error) {
	return do[dto.TicketResponse](c, fiber.Get(c.url(fmt.Sprintf("/tickets/%d", id))), nil)
}

// History fetches a ticket's audit trail.
func (c *Client) History(id int) ([]dto.TicketHistoryResponse, error) {
	return do[[]dto.TicketHistoryResponse](c, fiber.Get(c.url(fmt.Sprintf("/tickets/%d/history", id))), nil)
}

// Prune drops records whose channel is gone.
func (c *Client) Prune() (int, error) {
	resp, err := do[dto.PruneResponse](c, fiber.Post(c.url("/tickets/prune")), nil)
	return resp.Removed, err
}

// Purge removes a ticket record.
func (c *Client) Purge(id int) error {
	_, err := do[struct{}](c, fiber.Delete(c.url(fmt.Sprintf("/tickets/%d", id))), nil)
	return err
}

// ModeratorFeedback fetches a staff member's ratings.
func (c *Client) ModeratorFeedback(moderatorID string) (dto.ModeratorFeedbackResponse, error) {
	return do[dto.ModeratorFeedbackResponse](c, fiber.Get(c.url("/moderators/"+url.PathEscape(moderatorID)+"/feedback")), nil)
}

// Settings fetches the configuration document.
func (c *Client) Settings() (dto.SettingsResponse, error) {
	return do[dto.SettingsResponse](c, fiber.Get(c.url("/admin/settings")), nil)
}

// PatchSettings applies a partial settings update.
func (c *Client) PatchSettings(patch service.SettingsPatch) (dto.SettingsResponse, error) {
	return do[dto.SettingsResponse](c, fiber.Patch(c.url("/admin/settings")), patch)
}

// Setup provisions the guild.
func (c *Client) Setup() (service.SetupReport, error) {
	return do[service.SetupReport](c, fiber.Post(c.url("/admin/setup")), nil)
}

// Reset clears ticket records and the counter.
func (c *Client) Reset() error {
	_, err := do[struct{}](c, fiber.Post(c.url("/admin/reset")), nil)
	return err
}

// Teardown deletes the bot's channels and categories.
func (c *Client) Teardown() (service.TeardownReport, error) {
	return do[service.TeardownReport](c, fiber.Post(c.url("/admin/teardown")), nil)
}
