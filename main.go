package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"darts-match-system/engine"
	"darts-match-system/handlers"
	"darts-match-system/middleware"
	"darts-match-system/models"
	"darts-match-system/realtime"
	"darts-match-system/services"
	"darts-match-system/utils"
	"darts-match-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		ReadTimeout: 30 * time.Second,
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed (websocket upgrades excepted)
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-Device-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.GameMode{},
		&models.Match{},
		&models.MatchPlayer{},
		&models.MatchTurn{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := services.SeedGameModes(db); err != nil {
		log.Fatal("failed to seed game modes:", err)
	}

	authServiceURL := os.Getenv("AUTH_SERVICE_URL")
	if authServiceURL == "" {
		log.Fatal("AUTH_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("MATCH_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("MATCH_SERVICE_TOKEN environment variable not set")
	}
	authClient := services.NewAuthServiceClient(authServiceURL, serviceToken)

	// Engine wiring: store -> registry -> projector -> gateway -> hub.
	// The hub is the projector's sink; BindGateway closes the loop so
	// disconnects can submit leave actions.
	matchStore := services.NewMatchStore(db)
	registry := engine.NewRegistry(matchStore, matchStore)
	projector := engine.NewProjector(registry, nil)
	gateway := engine.NewGateway(registry, matchStore, projector)
	hub := realtime.NewHub(projector, gateway)
	projector.SetSink(hub)

	matchService := services.NewMatchService(db, matchStore, gateway)
	gameModeService := services.NewGameModeService(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	archiver := workers.NewMatchArchiver(db)
	go workers.PollFinishedMatches(ctx, archiver, 1*time.Minute)

	sweeper := services.NewSweeper(db, registry, gateway)
	sweeper.Start()

	handlers.SetupMatchRoutes(app, matchService, gameModeService)
	handlers.SetupRealtimeRoutes(app, hub, authClient)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Match archiver running (every 1m)")
	log.Println("✅ Session sweeper running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.ShutdownWithTimeout(10 * time.Second)
}
