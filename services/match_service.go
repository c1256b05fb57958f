package services

import (
	"errors"
	"log"

	"darts-match-system/engine"
	"darts-match-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MatchService is the synchronous action path: thin fiber handlers that
// normalize each request into an engine.Action and hand it to the gateway.
// No scoring or turn logic lives here.
type MatchService struct {
	DB      *gorm.DB
	Store   *MatchStore
	Gateway *engine.Gateway
}

func NewMatchService(db *gorm.DB, store *MatchStore, gateway *engine.Gateway) *MatchService {
	return &MatchService{DB: db, Store: store, Gateway: gateway}
}

// MatchSummary is the lightweight row returned by the listing endpoint.
type MatchSummary struct {
	ID           string `json:"id"`
	GameModeID   string `json:"game_mode_id"`
	GameModeName string `json:"game_mode_name"`
	Status       string `json:"status"`
	CreatedBy    string `json:"created_by"`
	PlayerCount  int64  `json:"player_count"`
	MaxPlayers   int    `json:"max_players"`
}

type createMatchRequest struct {
	GameModeID string `json:"game_mode_id"`
}

type submitTurnRequest struct {
	Darts []engine.Dart `json:"darts"`
}

// CreateMatch opens a new waiting match; the creator joins as play order 1.
func (s *MatchService) CreateMatch(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req createMatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.GameModeID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "game_mode_id is required"})
	}

	mode, err := s.Store.LoadGameMode(c.Context(), req.GameModeID)
	if err != nil {
		return s.renderError(c, err)
	}

	match := &models.Match{
		ID:         uuid.NewString(),
		GameModeID: mode.ID,
		Status:     models.MatchWaiting,
		CreatedBy:  userID,
		Players: []models.MatchPlayer{
			{ID: uuid.NewString(), UserID: userID, PlayOrder: 1, Score: mode.StartingScore},
		},
	}
	match.Players[0].MatchID = match.ID

	if err := s.Store.SaveMatch(c.Context(), match); err != nil {
		log.Printf("[MATCH] create by %s failed: %v", userID, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "could not persist match"})
	}

	log.Printf("[MATCH] %s created by %s (mode %s)", match.ID, userID, mode.ID)
	return c.Status(fiber.StatusCreated).JSON(match)
}

// ListMatches returns matches filtered by status (default: joinable ones).
func (s *MatchService) ListMatches(c *fiber.Ctx) error {
	status := c.Query("status", models.MatchWaiting)

	var rows []MatchSummary
	err := s.DB.WithContext(c.Context()).
		Table("matches").
		Select(`matches.id, matches.game_mode_id, game_modes.name AS game_mode_name,
			matches.status, matches.created_by, game_modes.max_players,
			(SELECT COUNT(*) FROM match_players WHERE match_players.match_id = matches.id) AS player_count`).
		Joins("JOIN game_modes ON game_modes.id = matches.game_mode_id").
		Where("matches.status = ? AND matches.deleted_at IS NULL", status).
		Order("matches.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		log.Printf("[MATCH] list failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"matches": rows})
}

// GetMatch returns the latest committed snapshot (live view when a session
// exists, hydrated from the durable record otherwise).
func (s *MatchService) GetMatch(c *fiber.Ctx) error {
	snap, err := s.Gateway.Snapshot(c.Context(), c.Params("id"))
	if err != nil {
		return s.renderError(c, err)
	}
	return c.JSON(snap)
}

// GetTurns returns a match's full turn ledger.
func (s *MatchService) GetTurns(c *fiber.Ctx) error {
	matchID := c.Params("id")
	turns, err := s.Store.ListTurns(c.Context(), matchID)
	if err != nil {
		log.Printf("[MATCH] %s: ledger read failed: %v", matchID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"match_id": matchID, "turns": turns})
}

// JoinMatch, StartMatch, LeaveMatch, SubmitTurn: one gateway submission each.

func (s *MatchService) JoinMatch(c *fiber.Ctx) error {
	return s.submit(c, engine.Action{Kind: engine.ActionJoin, UserID: c.Locals("user_id").(string)})
}

func (s *MatchService) StartMatch(c *fiber.Ctx) error {
	return s.submit(c, engine.Action{Kind: engine.ActionStart, UserID: c.Locals("user_id").(string)})
}

func (s *MatchService) LeaveMatch(c *fiber.Ctx) error {
	return s.submit(c, engine.Action{Kind: engine.ActionLeave, UserID: c.Locals("user_id").(string)})
}

func (s *MatchService) SubmitTurn(c *fiber.Ctx) error {
	var req submitTurnRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if len(req.Darts) != 3 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "a turn is exactly 3 darts"})
	}
	act := engine.Action{Kind: engine.ActionThrow, UserID: c.Locals("user_id").(string)}
	copy(act.Darts[:], req.Darts)
	return s.submit(c, act)
}

func (s *MatchService) submit(c *fiber.Ctx, act engine.Action) error {
	snap, err := s.Gateway.Submit(c.Context(), c.Params("id"), act)
	if err != nil {
		return s.renderError(c, err)
	}
	return c.JSON(snap)
}

// renderError maps the engine taxonomy onto HTTP statuses.
func (s *MatchService) renderError(c *fiber.Ctx, err error) error {
	if errors.Is(err, engine.ErrStoreUnavailable) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "store unavailable, retry later"})
	}
	var e *engine.Error
	if !errors.As(err, &e) {
		log.Printf("[MATCH] unexpected error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	status := fiber.StatusInternalServerError
	switch e.Code {
	case engine.CodeValidation:
		status = fiber.StatusBadRequest
	case engine.CodeForbidden:
		status = fiber.StatusForbidden
	case engine.CodeConflict:
		status = fiber.StatusConflict
	case engine.CodeInvalidState:
		status = fiber.StatusUnprocessableEntity
	case engine.CodeNotFound:
		status = fiber.StatusNotFound
	}
	return c.Status(status).JSON(fiber.Map{"error": e.Message, "code": string(e.Code)})
}
