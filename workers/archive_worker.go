package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"darts-match-system/models"
	"darts-match-system/utils"

	"gorm.io/gorm"
)

// MatchArchiver ships finished matches to R2 as self-contained JSON
// documents. The durable rows stay; archived_at marks what already shipped.
type MatchArchiver struct {
	DB *gorm.DB
}

func NewMatchArchiver(db *gorm.DB) *MatchArchiver {
	return &MatchArchiver{DB: db}
}

type matchArchive struct {
	Match   models.Match       `json:"match"`
	Turns   []models.MatchTurn `json:"turns"`
	Version int                `json:"version"`
}

// PollFinishedMatches archives terminal matches in small batches until the
// context is cancelled.
func PollFinishedMatches(ctx context.Context, archiver *MatchArchiver, pollInterval time.Duration) {
	log.Println("Starting match archive polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Match archive polling stopped.")
			return
		case <-ticker.C:
			count, err := archiver.archiveBatch(ctx, 20)
			if err != nil {
				log.Printf("❌ Archive batch failed: %v", err)
				continue
			}
			if count > 0 {
				log.Printf("✅ Archived %d finished match(es) to R2.", count)
			}
		}
	}
}

func (a *MatchArchiver) archiveBatch(ctx context.Context, limit int) (int, error) {
	var matches []models.Match
	err := a.DB.WithContext(ctx).
		Preload("Players").
		Where("status IN ? AND archived_at IS NULL", []string{models.MatchCompleted, models.MatchAbandoned}).
		Limit(limit).
		Find(&matches).Error
	if err != nil {
		return 0, err
	}

	archived := 0
	for i := range matches {
		if err := a.archiveOne(ctx, &matches[i]); err != nil {
			log.Printf("❌ Failed to archive match %s: %v", matches[i].ID, err)
			continue
		}
		archived++
	}
	return archived, nil
}

func (a *MatchArchiver) archiveOne(ctx context.Context, m *models.Match) error {
	var turns []models.MatchTurn
	err := a.DB.WithContext(ctx).
		Where("match_id = ?", m.ID).
		Order("turn_number ASC").
		Find(&turns).Error
	if err != nil {
		return err
	}

	doc, err := json.Marshal(matchArchive{Match: *m, Turns: turns, Version: 1})
	if err != nil {
		return err
	}

	ended := time.Now().UTC()
	if m.EndedAt != nil {
		ended = m.EndedAt.UTC()
	}
	key := fmt.Sprintf("archives/%04d/%02d/%s.json", ended.Year(), ended.Month(), m.ID)

	if err := utils.UploadBytesToR2(ctx, key, "application/json", doc); err != nil {
		return err
	}

	now := time.Now().UTC()
	return a.DB.WithContext(ctx).Model(m).Update("archived_at", &now).Error
}
