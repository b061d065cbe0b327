package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func traceTestApp() (*fiber.App, *string) {
	app := fiber.New()
	app.Use(Tracing())
	var seen string
	app.Get("/", func(c *fiber.Ctx) error {
		seen = GetTraceID(c)
		return c.SendString("ok")
	})
	return app, &seen
}

func TestTracing_ReusesIncomingTraceID(t *testing.T) {
	app, seen := traceTestApp()

	incoming := uuid.New().String()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(traceIDHeader, incoming)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, incoming, *seen)
	assert.Equal(t, incoming, resp.Header.Get(traceIDHeader))
}

func TestTracing_ReplacesNonUUIDTraceID(t *testing.T) {
	app, seen := traceTestApp()

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(traceIDHeader, "not-a-uuid")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	echoed := resp.Header.Get(traceIDHeader)
	_, parseErr := uuid.Parse(echoed)
	assert.NoError(t, parseErr)
	assert.NotEqual(t, "not-a-uuid", echoed)
	assert.Equal(t, echoed, *seen)
}
