// models/game_mode.go
package models

// Checkout rules supported by the scoring engine.
const (
	CheckoutAny       = "any"        // any dart may bring the score to exactly 0
	CheckoutDoubleOut = "double_out" // final dart must be a double (incl. bull 25x2)
	CheckoutExact     = "exact"      // score must land on exactly 0 (negative = bust)
)

// GameMode is an immutable rule set for a match. Rows are seeded/managed
// out-of-band; the engine only ever reads them.
type GameMode struct {
	ID            string `json:"id" gorm:"primaryKey"` // slug, e.g. "501-double-out"
	Name          string `json:"name" gorm:"not null"`
	StartingScore int    `json:"starting_score" gorm:"not null"`
	CheckoutRule  string `json:"checkout_rule" gorm:"type:varchar(16);default:'any';check:checkout_rule IN ('any','double_out','exact')"`
	MaxPlayers    int    `json:"max_players" gorm:"default:4"`
	IsActive      bool   `json:"is_active" gorm:"default:true"`

	Timestamps
}
