package models

import "time"

// Match lifecycle statuses. Transitions are monotonic:
// waiting -> in_progress -> {completed, abandoned}.
const (
	MatchWaiting    = "waiting"
	MatchInProgress = "in_progress"
	MatchCompleted  = "completed"
	MatchAbandoned  = "abandoned"
)

// Match is the durable record of one game. It is mutated exclusively by the
// session engine; the row outlives the in-memory session indefinitely.
type Match struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	GameModeID string `gorm:"index;not null" json:"game_mode_id"`
	Status     string `gorm:"type:varchar(16);default:'waiting';index" json:"status"`
	CreatedBy  string `gorm:"index;not null" json:"created_by"`

	// ActiveOrder is the play_order of the participant holding the turn
	// pointer (0 while not in progress). TurnCount is the last accepted
	// turn number; both are persisted so a live session can be rebuilt.
	ActiveOrder int `json:"active_order" gorm:"default:0"`
	TurnCount   int `json:"turn_count" gorm:"default:0"`

	WinnerID   *string    `json:"winner_id,omitempty" gorm:"index"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	ArchivedAt *time.Time `json:"archived_at,omitempty" gorm:"index"` // set by the archive worker

	Players []MatchPlayer `json:"players" gorm:"foreignKey:MatchID"`

	Timestamps
}

// IsTerminal reports whether no further mutation is legal.
func (m *Match) IsTerminal() bool {
	return m.Status == MatchCompleted || m.Status == MatchAbandoned
}
