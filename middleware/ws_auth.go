// darts-match-system/middleware/ws_auth.go
package middleware

import (
	"log"
	"strings"

	"darts-match-system/services"

	"github.com/gofiber/fiber/v2"
)

// WSAuthMiddleware validates `token` and `device_id` query params via the
// auth service before a websocket upgrade. Browsers cannot set headers on
// the upgrade request, so identity has to ride the query string.
//
// Usage:
//
//	app.Use("/ws/matches/:id", middleware.WSAuthMiddleware(authClient), websocket.New(hub.Serve))
func WSAuthMiddleware(authClient *services.AuthServiceClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		deviceID := strings.TrimSpace(c.Query("device_id"))

		if accessToken == "" || deviceID == "" {
			log.Printf("[WSAuth] ❌ Missing query params on %s: token(len=%d), device_id='%s'",
				c.Path(), len(accessToken), deviceID)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token or device_id in query",
			})
		}

		resp, err := authClient.ValidateToken(accessToken, deviceID)
		if err != nil {
			log.Printf("[WSAuth] ❌ Validation failed for device %s: %v", deviceID, err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals("user_id", resp.UserID)
		c.Locals("device_id", resp.DeviceID)

		log.Printf("[WSAuth] ✅ Authenticated user %s (device %s)", resp.UserID, resp.DeviceID)
		return c.Next()
	}
}
