// handlers/match_routes.go
package handlers

import (
	"darts-match-system/middleware"
	"darts-match-system/realtime"
	"darts-match-system/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func SetupMatchRoutes(app *fiber.App, matchService *services.MatchService, gameModeService *services.GameModeService) {
	// 🔓 Public reads — no user context, but still behind Gateway auth
	app.Get("/game-modes", gameModeService.ListGameModes)
	app.Get("/matches", matchService.ListMatches)
	app.Get("/matches/:id", matchService.GetMatch)
	app.Get("/matches/:id/turns", matchService.GetTurns)

	// 🔐 Secured actions — require user context from the Gateway
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/matches", matchService.CreateMatch)
	secured.Post("/matches/:id/join", matchService.JoinMatch)
	secured.Post("/matches/:id/start", matchService.StartMatch)
	secured.Post("/matches/:id/turns", matchService.SubmitTurn)
	secured.Post("/matches/:id/leave", matchService.LeaveMatch)
}

func SetupRealtimeRoutes(app *fiber.App, hub *realtime.Hub, authClient *services.AuthServiceClient) {
	app.Use("/ws/matches/:id", middleware.WSAuthMiddleware(authClient), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/matches/:id", websocket.New(hub.Serve))
}
