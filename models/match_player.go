package models

import "time"

// MatchPlayer is one participant row, owned by exactly one match.
// PlayOrder is assigned at join time and never renumbered, even when other
// players leave; turn rotation follows PlayOrder and skips departed players.
// No soft delete: a waiting-phase leave removes the row outright, so the
// (match_id, user_id) unique key is free again when that user rejoins.
type MatchPlayer struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	MatchID string `gorm:"index:idx_match_user,unique;index:idx_match_order,unique;not null" json:"match_id"`
	UserID  string `gorm:"index:idx_match_user,unique;not null" json:"user_id"`

	PlayOrder int `gorm:"index:idx_match_order,unique;not null" json:"play_order"` // 1-based join order

	// Score is a derived cache: starting score minus the sum of accepted
	// normal/checkout deltas. The turn ledger is the authority; the cache is
	// updated in the same commit as each accepted turn and verified on
	// session hydration.
	Score    int  `json:"score"`
	IsWinner bool `json:"is_winner" gorm:"default:false"`
	Departed bool `json:"departed" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
