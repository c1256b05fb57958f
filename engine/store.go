package engine

import (
	"context"

	"darts-match-system/models"
)

// Store is the narrow durable interface the engine consumes. Each operation is
// atomic at single-record granularity; multi-record consistency (match row +
// player rows + turn rows) comes from the gateway's commit ordering, never
// from the store.
//
// Implementations must return an *Error with CodeNotFound for unknown ids and
// may return any other error for transport/storage failures (surfaced to
// callers as ErrStoreUnavailable).
type Store interface {
	// LoadMatch returns the match with its players, ordered by play_order.
	LoadMatch(ctx context.Context, id string) (*models.Match, error)
	// SaveMatch upserts the match row and all player rows.
	SaveMatch(ctx context.Context, match *models.Match) error
	// AppendTurn inserts one ledger row.
	AppendTurn(ctx context.Context, turn *models.MatchTurn) error
	// DeleteTurn removes one ledger row. Only the gateway calls it, to
	// compensate an AppendTurn whose match-row commit failed.
	DeleteTurn(ctx context.Context, matchID string, turnNumber int) error
	// ListTurns returns the full ledger of a match ordered by turn_number.
	ListTurns(ctx context.Context, matchID string) ([]models.MatchTurn, error)
}

// Catalog supplies immutable game-mode rule parameters.
type Catalog interface {
	LoadGameMode(ctx context.Context, id string) (*models.GameMode, error)
}
