// services/store.go
package services

import (
	"context"
	"errors"

	"darts-match-system/engine"
	"darts-match-system/models"

	"gorm.io/gorm"
)

// MatchStore is the gorm-backed record store the engine consumes. It keeps to
// the engine's narrow contract: single-record atomicity, no cross-record
// guarantees (those come from the gateway's commit ordering).
type MatchStore struct {
	DB *gorm.DB
}

func NewMatchStore(db *gorm.DB) *MatchStore {
	return &MatchStore{DB: db}
}

func (s *MatchStore) LoadMatch(ctx context.Context, id string) (*models.Match, error) {
	var match models.Match
	err := s.DB.WithContext(ctx).
		Preload("Players", func(db *gorm.DB) *gorm.DB { return db.Order("play_order ASC") }).
		First(&match, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engine.NewError(engine.CodeNotFound, "match %s not found", id)
		}
		return nil, err
	}
	return &match, nil
}

// SaveMatch upserts the match row and its player rows in one transaction, and
// drops player rows removed by a waiting-phase leave.
func (s *MatchStore) SaveMatch(ctx context.Context, match *models.Match) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Players").Save(match).Error; err != nil {
			return err
		}
		keep := make([]string, 0, len(match.Players))
		for i := range match.Players {
			if err := tx.Save(&match.Players[i]).Error; err != nil {
				return err
			}
			keep = append(keep, match.Players[i].UserID)
		}
		del := tx.Where("match_id = ?", match.ID)
		if len(keep) > 0 {
			del = del.Where("user_id NOT IN ?", keep)
		}
		return del.Delete(&models.MatchPlayer{}).Error
	})
}

func (s *MatchStore) AppendTurn(ctx context.Context, turn *models.MatchTurn) error {
	return s.DB.WithContext(ctx).Create(turn).Error
}

// DeleteTurn compensates an append whose match-row commit failed, so the turn
// number stays free for the resubmission.
func (s *MatchStore) DeleteTurn(ctx context.Context, matchID string, turnNumber int) error {
	return s.DB.WithContext(ctx).
		Where("match_id = ? AND turn_number = ?", matchID, turnNumber).
		Delete(&models.MatchTurn{}).Error
}

func (s *MatchStore) ListTurns(ctx context.Context, matchID string) ([]models.MatchTurn, error) {
	var turns []models.MatchTurn
	err := s.DB.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("turn_number ASC").
		Find(&turns).Error
	return turns, err
}

func (s *MatchStore) LoadGameMode(ctx context.Context, id string) (*models.GameMode, error) {
	var mode models.GameMode
	err := s.DB.WithContext(ctx).First(&mode, "id = ? AND is_active = true", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engine.NewError(engine.CodeValidation, "unknown game mode %s", id)
		}
		return nil, err
	}
	return &mode, nil
}
