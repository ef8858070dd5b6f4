package server

import (
	"log/slog"
	"strings"
	"time"

	"peakshare/internal/models"
	"peakshare/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// UserIDHeader names the acting user. There is no authentication: callers
// are trusted to identify themselves.
const UserIDHeader = "X-User-ID"

const actingUserKey = "actingUserID"

// ContextMiddleware propagates the request id into the request context as
// the correlation id, so store and persistence logs can be joined to it.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			ctx = observability.WithCorrelationID(ctx, rid)
		} else {
			ctx = observability.WithCorrelationID(ctx, observability.GenerateCorrelationID())
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// StructuredLogger logs one line per request through log.
func StructuredLogger(log *observability.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		fields := []any{
			slog.Int("status", c.Response().StatusCode()),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
		}
		if uid, ok := c.Locals(actingUserKey).(string); ok {
			fields = append(fields, slog.String("user_id", uid))
		}

		if err != nil {
			fields = append(fields, slog.String("error", err.Error()))
			log.ErrorContext(c.UserContext(), "request failed", fields...)
		} else {
			log.InfoContext(c.UserContext(), "request processed", fields...)
		}
		return err
	}
}

// ActingUserRequired rejects requests without an X-User-ID header.
func ActingUserRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid := strings.TrimSpace(utils.CopyString(c.Get(UserIDHeader)))
		if uid == "" {
			return RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(UserIDHeader+" header is required"))
		}
		c.Locals(actingUserKey, uid)
		return c.Next()
	}
}

// actingUser returns the id set by ActingUserRequired.
func actingUser(c *fiber.Ctx) string {
	uid, _ := c.Locals(actingUserKey).(string)
	return uid
}
