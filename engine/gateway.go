// engine/gateway.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"darts-match-system/models"
)

// timeNow is swapped out by tests.
var timeNow = time.Now

// Gateway is the single entry point for every mutation, regardless of whether
// it arrived over the HTTP path or the websocket path. It guarantees at most
// one in-flight mutation per match: submissions for the same match serialize
// on the session lock in arrival order, submissions for different matches run
// in parallel.
type Gateway struct {
	registry  *Registry
	store     Store
	projector *Projector
}

func NewGateway(registry *Registry, store Store, projector *Projector) *Gateway {
	gw := &Gateway{registry: registry, store: store, projector: projector}
	if projector != nil {
		projector.BindGateway(gw)
	}
	return gw
}

// Submit validates, applies, persists, and broadcasts one action. The staged
// mutation is only committed to the live session after the store accepted it;
// a persistence failure leaves the committed state untouched and surfaces
// ErrStoreUnavailable. Broadcast fan-out happens after the per-match lock is
// released.
func (gw *Gateway) Submit(ctx context.Context, matchID string, act Action) (*Snapshot, error) {
	s, err := gw.registry.GetOrCreate(ctx, matchID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	work := cloneMatch(s.match)
	turn, kind, err := applyAction(work, s.mode, act, timeNow())
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if kind == "" {
		// Accepted no-op (Abandon on an already-terminal match).
		snap := s.Snapshot()
		s.mu.Unlock()
		return snap, nil
	}

	// Ledger first, match row second: if the process dies in between, the
	// extra ledger row wins at the next hydration and the cache heals.
	if turn != nil {
		if err := gw.store.AppendTurn(ctx, turn); err != nil {
			s.mu.Unlock()
			return nil, storeFailure(matchID, act, err)
		}
	}
	if err := gw.store.SaveMatch(ctx, work); err != nil {
		// The appended ledger row must not outlive the failed commit: left in
		// place it would hold this turn number and collide with every
		// resubmission. Delete it; if the store is too broken even for that,
		// evict the session so the next access rehydrates ledger-wins instead
		// of resubmitting against a stale cache.
		if turn != nil {
			if derr := gw.store.DeleteTurn(ctx, matchID, turn.TurnNumber); derr != nil {
				log.Printf("[GATEWAY] match %s: could not compensate turn %d after failed save (%v), evicting session",
					matchID, turn.TurnNumber, derr)
				gw.registry.Remove(matchID)
			}
		}
		s.mu.Unlock()
		return nil, storeFailure(matchID, act, err)
	}

	s.commit(work)
	if turn != nil {
		s.lastTurnAt.Store(timeNow().UnixNano())
	}
	snap := s.Snapshot()
	s.mu.Unlock()

	gw.projector.Notify(matchID, kind, snap, turnView(turn, act))
	return snap, nil
}

// Snapshot returns the latest committed state of a match without taking the
// mutation lock, hydrating the session if needed.
func (gw *Gateway) Snapshot(ctx context.Context, matchID string) (*Snapshot, error) {
	s, err := gw.registry.GetOrCreate(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return s.Snapshot(), nil
}

func storeFailure(matchID string, act Action, err error) error {
	// Taxonomy errors from the store (e.g. the match row vanished) pass
	// through; anything else is a transient store failure.
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	log.Printf("[GATEWAY] match %s: %s by %s aborted, store error: %v", matchID, act.Kind, act.UserID, err)
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func turnView(turn *models.MatchTurn, act Action) *TurnView {
	if turn == nil {
		return nil
	}
	return &TurnView{
		UserID:     turn.UserID,
		TurnNumber: turn.TurnNumber,
		Darts:      act.Darts,
		Total:      turn.Total,
		Resulting:  turn.ResultingScore,
		Outcome:    turn.Outcome,
	}
}
