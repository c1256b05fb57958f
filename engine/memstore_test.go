package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"darts-match-system/models"

	"github.com/google/uuid"
)

// memStore is an in-memory Store + Catalog used by the engine tests. It hands
// out deep copies so the engine can never share memory with "durable" state,
// and it can be told to fail on demand to exercise rollback paths.
type memStore struct {
	mu      sync.Mutex
	matches map[string]*models.Match
	turns   map[string][]models.MatchTurn
	modes   map[string]*models.GameMode

	failSave   bool
	failAppend bool
	failDelete bool
}

func newMemStore() *memStore {
	return &memStore{
		matches: make(map[string]*models.Match),
		turns:   make(map[string][]models.MatchTurn),
		modes:   make(map[string]*models.GameMode),
	}
}

func (st *memStore) LoadMatch(_ context.Context, id string) (*models.Match, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	m, ok := st.matches[id]
	if !ok {
		return nil, reject(CodeNotFound, "match %s not found", id)
	}
	return cloneMatch(m), nil
}

func (st *memStore) SaveMatch(_ context.Context, m *models.Match) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.failSave {
		return errors.New("simulated save failure")
	}
	st.matches[m.ID] = cloneMatch(m)
	return nil
}

func (st *memStore) AppendTurn(_ context.Context, t *models.MatchTurn) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.failAppend {
		return errors.New("simulated append failure")
	}
	// Same uniqueness the real store gets from its (match_id, turn_number)
	// index.
	for _, existing := range st.turns[t.MatchID] {
		if existing.TurnNumber == t.TurnNumber {
			return errors.New("duplicate turn number")
		}
	}
	st.turns[t.MatchID] = append(st.turns[t.MatchID], *t)
	return nil
}

func (st *memStore) DeleteTurn(_ context.Context, matchID string, turnNumber int) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.failDelete {
		return errors.New("simulated delete failure")
	}
	kept := st.turns[matchID][:0]
	for _, t := range st.turns[matchID] {
		if t.TurnNumber != turnNumber {
			kept = append(kept, t)
		}
	}
	st.turns[matchID] = kept
	return nil
}

func (st *memStore) ListTurns(_ context.Context, matchID string) ([]models.MatchTurn, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]models.MatchTurn, len(st.turns[matchID]))
	copy(out, st.turns[matchID])
	return out, nil
}

func (st *memStore) LoadGameMode(_ context.Context, id string) (*models.GameMode, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	mode, ok := st.modes[id]
	if !ok {
		return nil, reject(CodeValidation, "unknown game mode %s", id)
	}
	cp := *mode
	return &cp, nil
}

func mode301Any() *models.GameMode {
	return &models.GameMode{ID: "301-any", Name: "301", StartingScore: 301, CheckoutRule: models.CheckoutAny, MaxPlayers: 4, IsActive: true}
}

func mode301DoubleOut() *models.GameMode {
	return &models.GameMode{ID: "301-double-out", Name: "301 Double Out", StartingScore: 301, CheckoutRule: models.CheckoutDoubleOut, MaxPlayers: 2, IsActive: true}
}

// seedMatch inserts a waiting match with the creator already joined as the
// first player, mirroring what the match creation endpoint persists.
func seedMatch(st *memStore, mode *models.GameMode, creator string) string {
	id := uuid.NewString()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.modes[mode.ID] = mode
	st.matches[id] = &models.Match{
		ID:         id,
		GameModeID: mode.ID,
		Status:     models.MatchWaiting,
		CreatedBy:  creator,
		Players: []models.MatchPlayer{
			{ID: uuid.NewString(), MatchID: id, UserID: creator, PlayOrder: 1, Score: mode.StartingScore},
		},
	}
	return id
}

// recordingSink captures every published notification.
type recordingSink struct {
	mu   sync.Mutex
	sent []Notification
}

func (rs *recordingSink) Publish(_ string, n Notification) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.sent = append(rs.sent, n)
}

func (rs *recordingSink) kinds() []TransitionKind {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make([]TransitionKind, len(rs.sent))
	for i, n := range rs.sent {
		out[i] = n.Kind
	}
	return out
}

func newTestGateway(st *memStore) (*Gateway, *Registry, *recordingSink) {
	reg := NewRegistry(st, st)
	sink := &recordingSink{}
	proj := NewProjector(reg, sink)
	return NewGateway(reg, st, proj), reg, sink
}

func mustSubmit(t *testing.T, gw *Gateway, matchID string, act Action) *Snapshot {
	t.Helper()
	snap, err := gw.Submit(context.Background(), matchID, act)
	if err != nil {
		t.Fatalf("submit %s by %s: %v", act.Kind, act.UserID, err)
	}
	return snap
}

func throw(userID string, darts ...Dart) Action {
	act := Action{Kind: ActionThrow, UserID: userID}
	copy(act.Darts[:], darts)
	return act
}
