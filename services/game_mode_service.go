package services

import (
	"log"

	"darts-match-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GameModeService struct {
	DB *gorm.DB
}

func NewGameModeService(db *gorm.DB) *GameModeService {
	return &GameModeService{DB: db}
}

// ListGameModes returns the active rule sets a match can be created with.
func (s *GameModeService) ListGameModes(c *fiber.Ctx) error {
	var modes []models.GameMode
	if err := s.DB.WithContext(c.Context()).
		Where("is_active = ?", true).
		Order("starting_score ASC, id ASC").
		Find(&modes).Error; err != nil {
		log.Printf("[MODES] list failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"game_modes": modes})
}

// SeedGameModes upserts the built-in rule sets at boot. Mode IDs are slugs of
// their display names so clients can hardcode them.
func SeedGameModes(db *gorm.DB) error {
	defaults := []models.GameMode{
		{Name: "301", StartingScore: 301, CheckoutRule: models.CheckoutAny, MaxPlayers: 4, IsActive: true},
		{Name: "301 Double Out", StartingScore: 301, CheckoutRule: models.CheckoutDoubleOut, MaxPlayers: 4, IsActive: true},
		{Name: "501", StartingScore: 501, CheckoutRule: models.CheckoutAny, MaxPlayers: 8, IsActive: true},
		{Name: "501 Double Out", StartingScore: 501, CheckoutRule: models.CheckoutDoubleOut, MaxPlayers: 8, IsActive: true},
		{Name: "701 Exact", StartingScore: 701, CheckoutRule: models.CheckoutExact, MaxPlayers: 8, IsActive: true},
	}

	for i := range defaults {
		defaults[i].ID = slug.Make(defaults[i].Name)
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "starting_score", "checkout_rule", "max_players", "is_active"}),
	}).Create(&defaults).Error
	if err != nil {
		return err
	}

	log.Printf("[MODES] seeded %d game modes", len(defaults))
	return nil
}
