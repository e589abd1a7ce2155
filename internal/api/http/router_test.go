package http

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/catalog"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/gateway"
	"github.com/spec-kit/ticket-bot/internal/gateway/gatewaytest"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	testGuild    = "guild-1"
	testPassword = "s3cret"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type historyStub []domain.TicketHistory

func (h historyStub) ListByTicket(_ context.Context, ticketID int) ([]domain.TicketHistory, error) {
	var out []domain.TicketHistory
	for _, e := range h {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

type apiFixture struct {
	app     *fiber.App
	tokens  *auth.TokenManager
	tickets *service.TicketService
	gw      *gatewaytest.Fake
}

type fixtureOptions struct {
	deps    map[string]handlers.Pinger
	history handlers.HistoryReader
}

func newAPI(t *testing.T, opts fixtureOptions) *apiFixture {
	t.Helper()
	backend, err := store.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	st, err := store.Open(backend, zap.NewNop())
	require.NoError(t, err)

	cat := catalog.MustDefault()
	gw := gatewaytest.New()
	_, err = st.UpdateSettings(func(s *domain.Settings) error {
		for _, group := range cat.Categories {
			s.Categories[group.Key] = gw.AddChannel(testGuild, "", group.Name, gateway.ChannelCategory)
		}
		return nil
	})
	require.NoError(t, err)

	metrics := observability.NewMetrics()
	noDelay := func(_ time.Duration, _ func()) {}
	tickets := service.NewTicketService(service.TicketDependencies{
		Store: st, Catalog: cat, Gateway: gw, Metrics: metrics, Schedule: noDelay,
	})
	feedback := service.NewFeedbackService(service.FeedbackDependencies{
		Store: st, Catalog: cat, Gateway: gw, Metrics: metrics, Schedule: noDelay,
	})
	admin := service.NewAdminService(service.AdminDependencies{
		Store: st, Catalog: cat, Gateway: gw, Metrics: metrics,
	})

	hash, err := auth.HashPassword(testPassword, 4)
	require.NoError(t, err)
	tokens := auth.NewTokenManager("test-secret", 60)
	authSvc := service.NewAuthService(config.AuthConfig{AdminPasswordHash: hash}, tokens, nil)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("ticket-bot", "test", st, opts.deps),
		Auth:           handlers.NewAuthHandler(authSvc),
		Tickets:        handlers.NewTicketsHandler(tickets, opts.history),
		Feedback:       handlers.NewFeedbackHandler(feedback),
		Admin:          handlers.NewAdminHandler(admin, testGuild, metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return &apiFixture{app: app, tokens: tokens, tickets: tickets, gw: gw}
}

func (f *apiFixture) token(t *testing.T, scope auth.Scope) string {
	t.Helper()
	tok, _, err := f.tokens.GenerateToken(service.OperatorSubject, scope)
	require.NoError(t, err)
	return tok
}

func (f *apiFixture) createTicket(t *testing.T, userID string) domain.Ticket {
	t.Helper()
	tk, err := f.tickets.Create(context.Background(), domain.TicketDraft{
		Type: "tech_support", UserID: userID, GuildID: testGuild, Language: "en",
		FormData: domain.FormData{"issue_type": "crash"},
	})
	require.NoError(t, err)
	return tk
}

type result struct {
	status int
	body   map[string]any
}

func (f *apiFixture) do(t *testing.T, method, path, token, body string) result {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := result{status: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.body), string(raw))
	}
	return out
}

func errorCode(r result) string {
	e, _ := r.body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealth(t *testing.T) {
	f := newAPI(t, fixtureOptions{})
	assert.Equal(t, fiber.StatusOK, f.do(t, fiber.MethodGet, "/health/live", "", "").status)

	r := f.do(t, fiber.MethodGet, "/health/ready", "", "")
	assert.Equal(t, fiber.StatusOK, r.status)
	assert.Equal(t, "ready", r.body["status"])

	down := newAPI(t, fixtureOptions{deps: map[string]handlers.Pinger{
		"redis": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}})
	r = down.do(t, fiber.MethodGet, "/health/ready", "", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, r.status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errorCode(r))
}

func TestLogin(t *testing.T) {
	f := newAPI(t, fixtureOptions{})

	r := f.do(t, fiber.MethodPost, "/api/v1/auth/login", "", `{"password":"wrong"}`)
	assert.Equal(t, fiber.StatusUnauthorized, r.status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(r))

	r = f.do(t, fiber.MethodPost, "/api/v1/auth/login", "", `{"password":"s3cret","scope":"root"}`)
	assert.Equal(t, fiber.StatusBadRequest, r.status)

	r = f.do(t, fiber.MethodPost, "/api/v1/auth/login", "", `{"password":"s3cret","scope":"read"}`)
	require.Equal(t, fiber.StatusOK, r.status)
	data := r.body["data"].(map[string]any)
	assert.Equal(t, "read", data["scope"])

	token := data["token"].(string)
	assert.Equal(t, fiber.StatusOK, f.do(t, fiber.MethodGet, "/api/v1/tickets", token, "").status)
	assert.Equal(t, fiber.StatusForbidden, f.do(t, fiber.MethodPost, "/api/v1/tickets/prune", token, "").status)
}

func TestTicketEndpoints(t *testing.T) {
	f := newAPI(t, fixtureOptions{})
	tk := f.createTicket(t, "u1")
	read := f.token(t, auth.ScopeRead)

	assert.Equal(t, fiber.StatusUnauthorized, f.do(t, fiber.MethodGet, "/api/v1/tickets", "", "").status)

	r := f.do(t, fiber.MethodGet, "/api/v1/tickets?status=open", read, "")
	require.Equal(t, fiber.StatusOK, r.status)
	assert.Len(t, r.body["data"], 1)

	r = f.do(t, fiber.MethodGet, "/api/v1/tickets?status=closed", read, "")
	assert.Len(t, r.body["data"], 0)

	r = f.do(t, fiber.MethodGet, "/api/v1/tickets?status=weird", read, "")
	assert.Equal(t, fiber.StatusBadRequest, r.status)

	r = f.do(t, fiber.MethodGet, "/api/v1/tickets/1", read, "")
	require.Equal(t, fiber.StatusOK, r.status)
	data := r.body["data"].(map[string]any)
	assert.Equal(t, float64(tk.ID), data["id"])
	assert.Equal(t, tk.Channel(), data["channel_id"])

	assert.Equal(t, fiber.StatusNotFound, f.do(t, fiber.MethodGet, "/api/v1/tickets/99", read, "").status)
	assert.Equal(t, fiber.StatusBadRequest, f.do(t, fiber.MethodGet, "/api/v1/tickets/abc", read, "").status)
	assert.Equal(t, fiber.StatusServiceUnavailable, f.do(t, fiber.MethodGet, "/api/v1/tickets/1/history", read, "").status)
}

func TestTicketHistory(t *testing.T) {
	f := newAPI(t, fixtureOptions{history: historyStub{
		{ID: 1, EventID: "e1", TicketID: 1, ChangeType: domain.ChangeTypeCreated, ChangedByType: "user"},
		{ID: 2, EventID: "e2", TicketID: 2, ChangeType: domain.ChangeTypeClosed, ChangedByType: "staff"},
	}})
	r := f.do(t, fiber.MethodGet, "/api/v1/tickets/1/history", f.token(t, auth.ScopeRead), "")
	require.Equal(t, fiber.StatusOK, r.status)
	entries := r.body["data"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "CREATED", entries[0].(map[string]any)["change_type"])
}

func TestMaintenanceEndpoints(t *testing.T) {
	f := newAPI(t, fixtureOptions{})
	tk := f.createTicket(t, "u1")
	admin := f.token(t, auth.ScopeAdmin)

	// a ticket whose channel vanished is pruned
	require.NoError(t, f.gw.DeleteChannel(context.Background(), tk.Channel()))
	r := f.do(t, fiber.MethodPost, "/api/v1/tickets/prune", admin, "")
	require.Equal(t, fiber.StatusOK, r.status)
	assert.Equal(t, float64(1), r.body["data"].(map[string]any)["removed"])

	second := f.createTicket(t, "u2")
	r = f.do(t, fiber.MethodDelete, "/api/v1/tickets/"+strconv.Itoa(second.ID), admin, "")
	assert.Equal(t, fiber.StatusNoContent, r.status)
	assert.Equal(t, fiber.StatusNotFound, f.do(t, fiber.MethodGet, "/api/v1/tickets/"+strconv.Itoa(second.ID), admin, "").status)
}

func TestSettingsEndpoints(t *testing.T) {
	f := newAPI(t, fixtureOptions{})
	admin := f.token(t, auth.ScopeAdmin)

	r := f.do(t, fiber.MethodGet, "/api/v1/admin/settings", admin, "")
	require.Equal(t, fiber.StatusOK, r.status)
	data := r.body["data"].(map[string]any)
	assert.Equal(t, float64(0), data["ticket_counter"])
	assert.Equal(t, float64(2), data["settings"].(map[string]any)["maxTicketsPerUser"])

	r = f.do(t, fiber.MethodPatch, "/api/v1/admin/settings", admin, `{"roles":{"nobody":"1"}}`)
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(r))

	r = f.do(t, fiber.MethodPatch, "/api/v1/admin/settings", admin, `{"roles":{"moderator":"role-mod"},"settings":{"maxTicketsPerUser":3}}`)
	require.Equal(t, fiber.StatusOK, r.status)
	data = r.body["data"].(map[string]any)
	assert.Equal(t, "role-mod", data["roles"].(map[string]any)["moderator"])
	assert.Equal(t, float64(3), data["settings"].(map[string]any)["maxTicketsPerUser"])
}

func TestAdminOperations(t *testing.T) {
	f := newAPI(t, fixtureOptions{})
	admin := f.token(t, auth.ScopeAdmin)

	r := f.do(t, fiber.MethodPost, "/api/v1/admin/setup", admin, "")
	require.Equal(t, fiber.StatusOK, r.status)
	data := r.body["data"].(map[string]any)
	assert.Equal(t, true, data["panel_posted"])
	assert.Len(t, data["channels"], 3)

	assert.Equal(t, fiber.StatusNoContent, f.do(t, fiber.MethodPost, "/api/v1/admin/reset", admin, "").status)

	r = f.do(t, fiber.MethodPost, "/api/v1/admin/teardown", admin, "")
	require.Equal(t, fiber.StatusOK, r.status)
	assert.Equal(t, float64(3), r.body["data"].(map[string]any)["channels_deleted"])

	r = f.do(t, fiber.MethodGet, "/api/v1/metrics", f.token(t, auth.ScopeRead), "")
	require.Equal(t, fiber.StatusOK, r.status)
	ops := r.body["data"].(map[string]any)["operations"].(map[string]any)
	assert.NotEmpty(t, ops)
}
