// services/sweeper.go
package services

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"darts-match-system/engine"
	"darts-match-system/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// Sweeper evicts idle sessions and abandons matches nobody is playing anymore.
type Sweeper struct {
	DB       *gorm.DB
	Registry *engine.Registry
	Gateway  *engine.Gateway

	IdleTimeout  time.Duration
	StaleTimeout time.Duration
}

func NewSweeper(db *gorm.DB, registry *engine.Registry, gateway *engine.Gateway) *Sweeper {
	return &Sweeper{
		DB:           db,
		Registry:     registry,
		Gateway:      gateway,
		IdleTimeout:  envDuration("SESSION_IDLE_TIMEOUT_MIN", 10),
		StaleTimeout: envDuration("MATCH_STALE_TIMEOUT_MIN", 30),
	}
}

func envDuration(key string, defaultMinutes int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Minute
		}
	}
	return time.Duration(defaultMinutes) * time.Minute
}

func (s *Sweeper) Start() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: drop live sessions nobody is connected to
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(s.sweepIdleSessions),
	)

	// Every 5 minutes: abandon in-progress matches that went quiet
	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(s.sweepStaleMatches),
	)
}

func (s *Sweeper) sweepIdleSessions() {
	cutoff := time.Now().Add(-s.IdleTimeout)
	for _, sess := range s.Registry.Sessions() {
		if sess.ConnCount() > 0 {
			continue
		}
		idle := sess.IdleSince()
		if idle.IsZero() || idle.After(cutoff) {
			continue
		}
		s.Registry.Remove(sess.MatchID)
		log.Printf("[SWEEPER] evicted idle session for match %s (idle since %s)", sess.MatchID, idle.Format(time.RFC3339))
	}
}

func (s *Sweeper) sweepStaleMatches() {
	ctx := context.Background()
	cutoff := time.Now().Add(-s.StaleTimeout)

	var matches []models.Match
	err := s.DB.Where("status = ? AND updated_at < ?", models.MatchInProgress, cutoff).
		Limit(50).
		Find(&matches).Error
	if err != nil {
		log.Printf("[SWEEPER] DB error: %v", err)
		return
	}

	for _, m := range matches {
		// Confirm against the live session; the durable row can lag a commit.
		if sess, ok := s.Registry.Get(m.ID); ok {
			last := sess.LastTurnAt()
			if !last.IsZero() && last.After(cutoff) {
				continue
			}
		}
		_, err := s.Gateway.Submit(ctx, m.ID, engine.Action{Kind: engine.ActionAbandon, UserID: m.CreatedBy})
		if err != nil {
			log.Printf("[SWEEPER] failed to abandon stale match %s: %v", m.ID, err)
			continue
		}
		log.Printf("✅ Abandoned stale match %s (no turns since %s)", m.ID, m.UpdatedAt.Format(time.RFC3339))
	}
}
