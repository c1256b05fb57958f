// engine/registry.go
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"darts-match-system/models"
)

// Registry owns every live session, keyed by match id. Creation is serialized
// so two callers can never race duplicate sessions for the same match; the
// registry lock itself only guards the map (O(1) work), hydration happens on
// the session's own ready latch.
type Registry struct {
	store   Store
	catalog Catalog

	mu       sync.Mutex // guards only the session map; O(1) critical sections
	sessions map[string]*Session
}

func NewRegistry(store Store, catalog Catalog) *Registry {
	return &Registry{
		store:    store,
		catalog:  catalog,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the single live session for a match, hydrating it from
// the durable store on first access. Fails with CodeNotFound when no such
// match exists durably.
func (r *Registry) GetOrCreate(ctx context.Context, matchID string) (*Session, error) {
	r.mu.Lock()
	if s, ok := r.sessions[matchID]; ok {
		r.mu.Unlock()
		select {
		case <-s.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if s.loadErr != nil {
			return nil, s.loadErr
		}
		return s, nil
	}

	s := newSession(matchID, time.Now())
	r.sessions[matchID] = s
	r.mu.Unlock()

	s.loadErr = r.hydrate(ctx, s)
	close(s.ready)
	if s.loadErr != nil {
		r.Remove(matchID)
		return nil, s.loadErr
	}
	return s, nil
}

// hydrate rebuilds the live state from the durable record: match + players,
// rule parameters, and a ledger replay to verify the cached scores.
func (s *Session) hydrateFrom(match *models.Match, mode *models.GameMode, turns []models.MatchTurn) {
	if n := reconcile(match, mode.StartingScore, turns); n > 0 {
		log.Printf("[REGISTRY] match %s: healed %d stale score cache(s) from ledger", match.ID, n)
	}
	s.mode = mode
	s.commit(match)
	if len(turns) > 0 {
		s.lastTurnAt.Store(turns[len(turns)-1].CreatedAt.UnixNano())
	}
}

func (r *Registry) hydrate(ctx context.Context, s *Session) error {
	match, err := r.store.LoadMatch(ctx, s.MatchID)
	if err != nil {
		return err
	}
	mode, err := r.catalog.LoadGameMode(ctx, match.GameModeID)
	if err != nil {
		return err
	}
	turns, err := r.store.ListTurns(ctx, s.MatchID)
	if err != nil {
		return err
	}
	s.hydrateFrom(match, mode, turns)
	return nil
}

// Get returns the live session if one exists, without creating it.
func (r *Registry) Get(matchID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[matchID]
	if !ok {
		return nil, false
	}
	select {
	case <-s.ready:
		if s.loadErr != nil {
			return nil, false
		}
		return s, true
	default:
		return nil, false
	}
}

// Remove evicts the live session. The durable record is unaffected.
func (r *Registry) Remove(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, matchID)
}

// Sessions returns the current live sessions (for the sweeper).
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		select {
		case <-s.ready:
			if s.loadErr == nil {
				out = append(out, s)
			}
		default:
		}
	}
	return out
}
