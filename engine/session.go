// engine/session.go
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"darts-match-system/models"

	"github.com/google/uuid"
)

// Session is the live, in-memory projection of one match: the committed state,
// the per-match mutation lock, and the transport identities currently
// connected. A single Session exists per match id (enforced by the Registry);
// the durable row outlives it.
type Session struct {
	MatchID string

	// mu serializes validate -> mutate -> persist -> commit for this match.
	// The gateway holds it for the duration of one action and releases it
	// before broadcast fan-out.
	mu    sync.Mutex
	match *models.Match
	mode  *models.GameMode
	snap  atomic.Pointer[Snapshot]

	lastTurnAt atomic.Int64 // unix nano of the last accepted turn

	connMu    sync.Mutex
	conns     map[string]string // transport identity -> user id
	idleSince time.Time         // time of last disconnect; zero while anyone is connected

	ready   chan struct{} // closed once hydration finished
	loadErr error
}

func newSession(matchID string, now time.Time) *Session {
	return &Session{
		MatchID:   matchID,
		conns:     make(map[string]string),
		idleSince: now,
		ready:     make(chan struct{}),
	}
}

// Snapshot returns the latest committed state without taking the match lock.
func (s *Session) Snapshot() *Snapshot {
	return s.snap.Load()
}

func (s *Session) commit(m *models.Match) {
	s.match = m
	s.snap.Store(buildSnapshot(m))
}

// LastTurnAt reports when the last turn was accepted (zero time if none since
// hydration).
func (s *Session) LastTurnAt() time.Time {
	n := s.lastTurnAt.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Attach maps a transport identity to a user for this session.
func (s *Session) Attach(connID, userID string) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conns[connID] = userID
	s.idleSince = time.Time{}
}

// Detach removes a transport identity and returns the user it belonged to and
// how many identities remain connected.
func (s *Session) Detach(connID string, now time.Time) (userID string, remaining int) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	userID = s.conns[connID]
	delete(s.conns, connID)
	remaining = len(s.conns)
	if remaining == 0 {
		s.idleSince = now
	}
	return userID, remaining
}

// ConnCount returns the number of connected transport identities.
func (s *Session) ConnCount() int {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return len(s.conns)
}

// IdleSince returns when the last transport disconnected, or zero while any
// identity is connected.
func (s *Session) IdleSince() time.Time {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if len(s.conns) > 0 {
		return time.Time{}
	}
	return s.idleSince
}

// cloneMatch deep-copies the mutable parts of a match so an action can be
// staged and thrown away if persistence fails.
func cloneMatch(m *models.Match) *models.Match {
	cp := *m
	cp.Players = make([]models.MatchPlayer, len(m.Players))
	copy(cp.Players, m.Players)
	if m.WinnerID != nil {
		w := *m.WinnerID
		cp.WinnerID = &w
	}
	if m.StartedAt != nil {
		t := *m.StartedAt
		cp.StartedAt = &t
	}
	if m.EndedAt != nil {
		t := *m.EndedAt
		cp.EndedAt = &t
	}
	return &cp
}

// applyAction runs the state machine on a staged copy of the match. It returns
// the ledger row for accepted throws and the transition kind for broadcast.
// A zero kind with nil error means the action was an accepted no-op
// (idempotent Abandon on a terminal match) and nothing needs persisting.
func applyAction(m *models.Match, mode *models.GameMode, act Action, now time.Time) (*models.MatchTurn, TransitionKind, error) {
	switch act.Kind {
	case ActionJoin:
		if err := applyJoin(m, mode, act.UserID); err != nil {
			return nil, "", err
		}
		return nil, TransitionPlayerJoined, nil
	case ActionStart:
		kind, err := applyStart(m, act.UserID, now)
		return nil, kind, err
	case ActionThrow:
		return applyThrow(m, mode, act, now)
	case ActionLeave:
		kind, err := applyLeave(m, act.UserID, now)
		return nil, kind, err
	case ActionAbandon:
		if m.IsTerminal() {
			return nil, "", nil
		}
		m.Status = models.MatchAbandoned
		m.ActiveOrder = 0
		m.EndedAt = &now
		return nil, TransitionMatchAbandoned, nil
	default:
		return nil, "", reject(CodeValidation, "unknown action kind %q", act.Kind)
	}
}

func applyJoin(m *models.Match, mode *models.GameMode, userID string) error {
	if m.Status != models.MatchWaiting {
		return reject(CodeInvalidState, "match %s is %s, joining is only possible while waiting", m.ID, m.Status)
	}
	maxOrder := 0
	for _, p := range m.Players {
		if p.UserID == userID {
			return reject(CodeConflict, "user %s already joined match %s", userID, m.ID)
		}
		if p.PlayOrder > maxOrder {
			maxOrder = p.PlayOrder
		}
	}
	if len(m.Players) >= mode.MaxPlayers {
		return reject(CodeConflict, "match %s is full (%d players)", m.ID, mode.MaxPlayers)
	}
	m.Players = append(m.Players, models.MatchPlayer{
		ID:        uuid.NewString(),
		MatchID:   m.ID,
		UserID:    userID,
		PlayOrder: maxOrder + 1,
		Score:     mode.StartingScore,
	})
	return nil
}

func applyStart(m *models.Match, userID string, now time.Time) (TransitionKind, error) {
	if m.Status != models.MatchWaiting {
		return "", reject(CodeInvalidState, "match %s is %s, cannot start", m.ID, m.Status)
	}
	if userID != m.CreatedBy {
		return "", reject(CodeForbidden, "only the creator may start match %s", m.ID)
	}
	if len(m.Players) < 2 {
		return "", reject(CodeInvalidState, "match %s needs at least 2 players to start", m.ID)
	}
	m.Status = models.MatchInProgress
	m.StartedAt = &now
	m.ActiveOrder = lowestOrder(m)
	return TransitionMatchStarted, nil
}

func applyThrow(m *models.Match, mode *models.GameMode, act Action, now time.Time) (*models.MatchTurn, TransitionKind, error) {
	if m.Status != models.MatchInProgress {
		return nil, "", reject(CodeInvalidState, "match %s is %s, cannot submit a turn", m.ID, m.Status)
	}
	player := findPlayer(m, act.UserID)
	if player == nil {
		return nil, "", reject(CodeNotFound, "user %s is not a participant of match %s", act.UserID, m.ID)
	}
	if player.Departed || player.PlayOrder != m.ActiveOrder {
		return nil, "", reject(CodeForbidden, "it is not %s's turn in match %s", act.UserID, m.ID)
	}

	delta, outcome, resulting, verr := evaluateTurn(player.Score, mode.CheckoutRule, act.Darts)
	if verr != nil {
		return nil, "", verr
	}

	m.TurnCount++
	turn := &models.MatchTurn{
		ID:              uuid.NewString(),
		MatchID:         m.ID,
		UserID:          act.UserID,
		TurnNumber:      m.TurnCount,
		Dart1Value:      act.Darts[0].Value,
		Dart1Multiplier: act.Darts[0].Multiplier,
		Dart2Value:      act.Darts[1].Value,
		Dart2Multiplier: act.Darts[1].Multiplier,
		Dart3Value:      act.Darts[2].Value,
		Dart3Multiplier: act.Darts[2].Multiplier,
		Total:           delta,
		ResultingScore:  resulting,
		Outcome:         outcome,
	}

	kind := TransitionTurnScored
	switch outcome {
	case models.OutcomeCheckout:
		player.Score = 0
		player.IsWinner = true
		winner := player.UserID
		m.WinnerID = &winner
		m.Status = models.MatchCompleted
		m.ActiveOrder = 0
		m.EndedAt = &now
		kind = TransitionMatchCompleted
	case models.OutcomeNormal:
		player.Score = resulting
		m.ActiveOrder = nextOrder(m, player.PlayOrder)
	case models.OutcomeBust:
		// Score untouched; the bust is still recorded and the turn passes.
		m.ActiveOrder = nextOrder(m, player.PlayOrder)
	}
	return turn, kind, nil
}

func applyLeave(m *models.Match, userID string, now time.Time) (TransitionKind, error) {
	switch m.Status {
	case models.MatchWaiting:
		for i, p := range m.Players {
			if p.UserID == userID {
				m.Players = append(m.Players[:i], m.Players[i+1:]...)
				return TransitionPlayerLeft, nil
			}
		}
		return "", reject(CodeNotFound, "user %s is not a participant of match %s", userID, m.ID)
	case models.MatchInProgress:
		player := findPlayer(m, userID)
		if player == nil {
			return "", reject(CodeNotFound, "user %s is not a participant of match %s", userID, m.ID)
		}
		if player.Departed {
			return "", reject(CodeConflict, "user %s already left match %s", userID, m.ID)
		}
		player.Departed = true
		if m.ActiveOrder == player.PlayOrder {
			m.ActiveOrder = nextOrder(m, player.PlayOrder)
		}
		if activeCount(m) < 2 {
			m.Status = models.MatchAbandoned
			m.ActiveOrder = 0
			m.EndedAt = &now
			return TransitionMatchAbandoned, nil
		}
		return TransitionPlayerLeft, nil
	default:
		return "", reject(CodeInvalidState, "match %s is %s, cannot leave", m.ID, m.Status)
	}
}

func findPlayer(m *models.Match, userID string) *models.MatchPlayer {
	for i := range m.Players {
		if m.Players[i].UserID == userID {
			return &m.Players[i]
		}
	}
	return nil
}

func lowestOrder(m *models.Match) int {
	low := 0
	for _, p := range m.Players {
		if p.Departed {
			continue
		}
		if low == 0 || p.PlayOrder < low {
			low = p.PlayOrder
		}
	}
	return low
}

// nextOrder advances the turn pointer to the next non-departed player in join
// order, wrapping to the first after the last. Orders are never renumbered, so
// gaps left by departed players are simply skipped.
func nextOrder(m *models.Match, current int) int {
	bestAfter, first := 0, 0
	for _, p := range m.Players {
		if p.Departed {
			continue
		}
		if first == 0 || p.PlayOrder < first {
			first = p.PlayOrder
		}
		if p.PlayOrder > current && (bestAfter == 0 || p.PlayOrder < bestAfter) {
			bestAfter = p.PlayOrder
		}
	}
	if bestAfter != 0 {
		return bestAfter
	}
	return first
}

func activeCount(m *models.Match) int {
	n := 0
	for _, p := range m.Players {
		if !p.Departed {
			n++
		}
	}
	return n
}
