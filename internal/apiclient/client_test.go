package apiclient

import (
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

func serve(t *testing.T, register func(app *fiber.App)) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	register(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String()
}

func TestLoginSendsPasswordAndDecodesToken(t *testing.T) {
	base := serve(t, func(app *fiber.App) {
		app.Post("/api/v1/auth/login", func(c *fiber.Ctx) error {
			var body map[string]string
			if err := c.BodyParser(&body); err != nil {
				return err
			}
			if body["password"] != "secret" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": fiber.Map{"code": "UNAUTHORIZED", "message": "bad password"}})
			}
			return c.JSON(fiber.Map{"data": fiber.Map{"token": "tok", "scope": body["scope"]}})
		})
	})

	client := New(base, "", time.Second)
	resp, err := client.Login("secret", "read")
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.Token)
	assert.Equal(t, "read", resp.Scope)

	_, err = client.Login("wrong", "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	assert.Equal(t, fiber.StatusUnauthorized, apperrors.ToDomainError(err).HTTPStatus)
}

func TestAuthorizedCalls(t *testing.T) {
	var seenAuth, seenStatus string
	base := serve(t, func(app *fiber.App) {
		app.Get("/api/v1/tickets", func(c *fiber.Ctx) error {
			seenAuth = c.Get(fiber.HeaderAuthorization)
			seenStatus = c.Query("status")
			return c.JSON(fiber.Map{"data": []fiber.Map{{"id": 7, "status": "open"}}})
		})
		app.Post("/api/v1/tickets/prune", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"data": fiber.Map{"removed": 2}})
		})
		app.Delete("/api/v1/tickets/:id", func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusNoContent)
		})
	})

	client := New(base+"/", "tok", time.Second)
	tickets, err := client.Tickets("open")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, 7, tickets[0].ID)
	assert.Equal(t, "Bearer tok", seenAuth)
	assert.Equal(t, "open", seenStatus)

	removed, err := client.Prune()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.NoError(t, client.Purge(7))
}

func TestUnreachableServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = New("http://"+addr, "", 200*time.Millisecond).Settings()
	assert.Error(t, err)
}
