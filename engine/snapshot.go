package engine

import (
	"time"

	"darts-match-system/models"
)

// PlayerView is one participant inside a snapshot.
type PlayerView struct {
	UserID    string `json:"user_id"`
	PlayOrder int    `json:"play_order"`
	Score     int    `json:"score"`
	IsWinner  bool   `json:"is_winner"`
	Departed  bool   `json:"departed"`
}

// Snapshot is an immutable copy of the committed match state, safe to hand to
// any caller without holding the session lock.
type Snapshot struct {
	MatchID      string       `json:"match_id"`
	GameModeID   string       `json:"game_mode_id"`
	Status       string       `json:"status"`
	CreatedBy    string       `json:"created_by"`
	ActiveUserID string       `json:"active_user_id,omitempty"` // holder of the turn pointer
	TurnCount    int          `json:"turn_count"`
	WinnerID     string       `json:"winner_id,omitempty"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	EndedAt      *time.Time   `json:"ended_at,omitempty"`
	Players      []PlayerView `json:"players"`
}

// TurnView describes the turn that triggered a notification.
type TurnView struct {
	UserID     string  `json:"user_id"`
	TurnNumber int     `json:"turn_number"`
	Darts      [3]Dart `json:"darts"`
	Total      int     `json:"total"`
	Resulting  int     `json:"resulting_score"`
	Outcome    string  `json:"outcome"`
}

func buildSnapshot(m *models.Match) *Snapshot {
	snap := &Snapshot{
		MatchID:    m.ID,
		GameModeID: m.GameModeID,
		Status:     m.Status,
		CreatedBy:  m.CreatedBy,
		TurnCount:  m.TurnCount,
		StartedAt:  m.StartedAt,
		EndedAt:    m.EndedAt,
		Players:    make([]PlayerView, 0, len(m.Players)),
	}
	if m.WinnerID != nil {
		snap.WinnerID = *m.WinnerID
	}
	for _, p := range m.Players {
		if m.Status == models.MatchInProgress && p.PlayOrder == m.ActiveOrder {
			snap.ActiveUserID = p.UserID
		}
		snap.Players = append(snap.Players, PlayerView{
			UserID:    p.UserID,
			PlayOrder: p.PlayOrder,
			Score:     p.Score,
			IsWinner:  p.IsWinner,
			Departed:  p.Departed,
		})
	}
	return snap
}
