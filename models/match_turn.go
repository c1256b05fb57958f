package models

import "time"

// Turn outcomes recorded in the ledger.
const (
	OutcomeNormal   = "normal"
	OutcomeBust     = "bust"     // recorded but contributes 0 to the score
	OutcomeCheckout = "checkout" // brought the score to exactly 0 and won
)

// MatchTurn is one accepted scoring action: three darts thrown by one player.
// The sequence per match is append-only; rows are never updated or deleted.
// TurnNumber is global per match (not per player) and strictly increasing.
type MatchTurn struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	MatchID string `gorm:"index:idx_turn_seq,unique;not null" json:"match_id"`
	UserID  string `gorm:"index;not null" json:"user_id"`

	TurnNumber int `gorm:"index:idx_turn_seq,unique;not null" json:"turn_number"`

	Dart1Value      int `json:"dart1_value"`
	Dart1Multiplier int `json:"dart1_multiplier"`
	Dart2Value      int `json:"dart2_value"`
	Dart2Multiplier int `json:"dart2_multiplier"`
	Dart3Value      int `json:"dart3_value"`
	Dart3Multiplier int `json:"dart3_multiplier"`

	Total          int    `json:"total"` // sum of the three dart contributions
	ResultingScore int    `json:"resulting_score"`
	Outcome        string `json:"outcome" gorm:"type:varchar(16);check:outcome IN ('normal','bust','checkout')"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
