package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"darts-match-system/models"
)

// Full 301/any match driven end to end through the gateway, following the
// rulebook walkthrough: creator starts with two players, scores alternate,
// and an exact zero finishes the match.
func TestGatewayFullMatchAnyCheckout(t *testing.T) {
	st := newMemStore()
	gw, _, sink := newTestGateway(st)
	matchID := seedMatch(st, mode301Any(), "p1")
	ctx := context.Background()

	mustSubmit(t, gw, matchID, Action{Kind: ActionJoin, UserID: "p2"})
	snap := mustSubmit(t, gw, matchID, Action{Kind: ActionStart, UserID: "p1"})
	if snap.ActiveUserID != "p1" {
		t.Fatalf("first turn should belong to p1, got %s", snap.ActiveUserID)
	}

	// p1: triple 20 -> 241.
	snap = mustSubmit(t, gw, matchID, throw("p1", Dart{20, 3}))
	if got := playerScore(snap, "p1"); got != 241 {
		t.Fatalf("p1 score = %d, want 241", got)
	}
	if snap.ActiveUserID != "p2" {
		t.Fatalf("turn should pass to p2, got %s", snap.ActiveUserID)
	}

	// p2: double bull -> 251.
	snap = mustSubmit(t, gw, matchID, throw("p2", Dart{25, 2}))
	if got := playerScore(snap, "p2"); got != 251 {
		t.Fatalf("p2 score = %d, want 251", got)
	}

	// p1 works 241 down: 180 leaves 61, then 61 exactly.
	snap = mustSubmit(t, gw, matchID, throw("p1", Dart{20, 3}, Dart{20, 3}, Dart{20, 3}))
	if got := playerScore(snap, "p1"); got != 61 {
		t.Fatalf("p1 score = %d, want 61", got)
	}
	mustSubmit(t, gw, matchID, throw("p2", Dart{1, 1}))
	snap = mustSubmit(t, gw, matchID, throw("p1", Dart{17, 3}, Dart{10, 1}))

	if snap.Status != models.MatchCompleted {
		t.Fatalf("status = %s, want completed", snap.Status)
	}
	if snap.WinnerID != "p1" || playerScore(snap, "p1") != 0 {
		t.Fatalf("p1 should win with score 0, got winner=%s score=%d", snap.WinnerID, playerScore(snap, "p1"))
	}
	if snap.EndedAt == nil {
		t.Fatal("ended_at not set")
	}

	// One notification per accepted transition, completion last.
	kinds := sink.kinds()
	if len(kinds) == 0 || kinds[len(kinds)-1] != TransitionMatchCompleted {
		t.Fatalf("expected trailing match_completed notification, got %v", kinds)
	}

	// Ledger/cache consistency: folding the durable ledger reproduces every
	// cached score.
	turns, _ := st.ListTurns(ctx, matchID)
	for _, p := range snap.Players {
		if folded := FoldScore(301, turns, p.UserID); folded != p.Score {
			t.Fatalf("ledger fold for %s = %d, cache = %d", p.UserID, folded, p.Score)
		}
	}
}

func TestGatewayDoubleOutBustKeepsScore(t *testing.T) {
	st := newMemStore()
	gw, _, _ := newTestGateway(st)
	matchID := seedMatch(st, mode301DoubleOut(), "p1")

	mustSubmit(t, gw, matchID, Action{Kind: ActionJoin, UserID: "p2"})
	mustSubmit(t, gw, matchID, Action{Kind: ActionStart, UserID: "p1"})

	// Bring p1 to 32: 301 - 180 - 89.
	mustSubmit(t, gw, matchID, throw("p1", Dart{20, 3}, Dart{20, 3}, Dart{20, 3}))
	mustSubmit(t, gw, matchID, throw("p2", Dart{5, 1}))
	snap := mustSubmit(t, gw, matchID, throw("p1", Dart{19, 3}, Dart{16, 2}, Dart{0, 0}))
	if got := playerScore(snap, "p1"); got != 32 {
		t.Fatalf("p1 score = %d, want 32", got)
	}
	mustSubmit(t, gw, matchID, throw("p2", Dart{5, 1}))

	// 16+16+miss sums to 32 but the last thrown dart is not a double: bust.
	snap = mustSubmit(t, gw, matchID, throw("p1", Dart{16, 1}, Dart{16, 1}, Dart{0, 0}))
	if got := playerScore(snap, "p1"); got != 32 {
		t.Fatalf("bust must not change score, got %d", got)
	}
	if snap.Status != models.MatchInProgress || snap.ActiveUserID != "p2" {
		t.Fatalf("bust should pass the turn, got status=%s active=%s", snap.Status, snap.ActiveUserID)
	}

	// The bust is still on the ledger.
	turns, _ := st.ListTurns(context.Background(), matchID)
	last := turns[len(turns)-1]
	if last.Outcome != models.OutcomeBust || last.ResultingScore != 32 {
		t.Fatalf("ledger tail = %+v, want recorded bust at 32", last)
	}

	mustSubmit(t, gw, matchID, throw("p2", Dart{5, 1}))

	// Double 16 finishes it.
	snap = mustSubmit(t, gw, matchID, throw("p1", Dart{16, 2}))
	if snap.Status != models.MatchCompleted || snap.WinnerID != "p1" {
		t.Fatalf("double finish should complete the match, got %s winner=%s", snap.Status, snap.WinnerID)
	}
}

func TestGatewayThirdJoinConflicts(t *testing.T) {
	st := newMemStore()
	gw, _, _ := newTestGateway(st)
	matchID := seedMatch(st, mode301DoubleOut(), "p1") // max 2 players

	mustSubmit(t, gw, matchID, Action{Kind: ActionJoin, UserID: "p2"})
	_, err := gw.Submit(context.Background(), matchID, Action{Kind: ActionJoin, UserID: "p3"})
	wantCode(t, err, CodeConflict)
}

func TestGatewayUnknownMatch(t *testing.T) {
	st := newMemStore()
	gw, _, _ := newTestGateway(st)
	_, err := gw.Submit(context.Background(), "nope", Action{Kind: ActionJoin, UserID: "p1"})
	wantCode(t, err, CodeNotFound)
}

// Persistence failure aborts the action and leaves both the committed session
// state and the durable record untouched.
func TestGatewayStoreFailureRollsBack(t *testing.T) {
	st := newMemStore()
	gw, _, _ := newTestGateway(st)
	matchID := seedMatch(st, mode301Any(), "p1")

	mustSubmit(t, gw, matchID, Action{Kind: ActionJoin, UserID: "p2"})
	mustSubmit(t, gw, matchID, Action{Kind: ActionStart, UserID: "p1"})

	st.mu.Lock()
	st.failAppend = true
	st.mu.Unlock()

	_, err := gw.Submit(context.Background(), matchID, throw("p1", Dart{20, 3}))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	st.mu.Lock()
	st.failAppend = false
	st.mu.Unlock()

	// The action was rolled back: p1 still active at 301 and may resubmit.
	snap, err := gw.Snapshot(context.Background(), matchID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.ActiveUserID != "p1" || playerScore(snap, "p1") != 301 || snap.TurnCount != 0 {
		t.Fatalf("state leaked past failed commit: %+v", snap)
	}
	snap = mustSubmit(t, gw, matchID, throw("p1", Dart{20, 3}))
	if snap.TurnCount != 1 || playerScore(snap, "p1") != 241 {
		t.Fatalf("resubmission after store recovery failed: %+v", snap)
	}
}

// Two racing submissions for the same actor: exactly one is accepted, the
// other observes the post-state and is rejected, and only one turn number is
// ever written.
func TestGatewayConcurrentSubmitsSerialize(t *testing.T) {
	st := newMemStore()
	gw, _, _ := newTestGateway(st)
	matchID := seedMatch(st, mode301Any(), "p1")

	mustSubmit(t, gw, matchID, Action{Kind: ActionJoin, UserID: "p2"})
	mustSubmit(t, gw, matchID, Action{Kind: ActionStart, UserID: "p1"})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = gw.Submit(context.Background(), matchID, throw("p1", Dart{20, 1}))
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		} else {
			wantCode(t, err, CodeForbidden)
		}
	}
	if accepted != 1 {
		t.Fatalf("accepted = %d, want exactly 1", accepted)
	}

	turns, _ := st.ListTurns(context.Background(), matchID)
	if len(turns) != 1 || turns[0].TurnNumber != 1 {
		t.Fatalf("exactly one turn number must be written, got %+v", turns)
	}
}

// Matches on different ids never contend: run several full matches in
// parallel through one gateway.
func TestGatewayCrossMatchParallelism(t *testing.T) {
	st := newMemStore()
	gw, _, _ := newTestGateway(st)
	mode := mode301Any()

	ids := make([]string, 8)
	for i := range ids {
		ids[i] = seedMatch(st, mode, "p1")
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			ctx := context.Background()
			for _, act := range []Action{
				{Kind: ActionJoin, UserID: "p2"},
				{Kind: ActionStart, UserID: "p1"},
				throw("p1", Dart{20, 3}),
			} {
				if _, err := gw.Submit(ctx, id, act); err != nil {
					t.Errorf("match %s: %s failed: %v", id, act.Kind, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		snap, err := gw.Snapshot(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if snap.TurnCount != 1 || playerScore(snap, "p1") != 241 {
			t.Fatalf("match %s ended up in unexpected state: %+v", id, snap)
		}
	}
}

func TestGatewayJoinPersistsAndBroadcasts(t *testing.T) {
	st := newMemStore()
	gw, _, sink := newTestGateway(st)
	matchID := seedMatch(st, mode301Any(), "p1")

	snap := mustSubmit(t, gw, matchID, Action{Kind: ActionJoin, UserID: "p2"})
	if len(snap.Players) != 2 {
		t.Fatalf("snapshot players = %d, want 2", len(snap.Players))
	}

	kinds := sink.kinds()
	if len(kinds) != 1 || kinds[0] != TransitionPlayerJoined {
		t.Fatalf("broadcast kinds = %v, want [player_joined]", kinds)
	}

	durable, err := st.LoadMatch(context.Background(), matchID)
	if err != nil {
		t.Fatal(err)
	}
	if len(durable.Players) != 2 {
		t.Fatalf("durable players = %d, join was not persisted", len(durable.Players))
	}
}

func TestGatewaySaveFailureFreesTurnNumber(t *testing.T) {
	st := newMemStore()
	gw, _, _ := newTestGateway(st)
	matchID := seedMatch(st, mode301Any(), "p1")

	mustSubmit(t, gw, matchID, Action{Kind: ActionJoin, UserID: "p2"})
	mustSubmit(t, gw, matchID, Action{Kind: ActionStart, UserID: "p1"})

	st.mu.Lock()
	st.failSave = true
	st.mu.Unlock()

	_, err := gw.Submit(context.Background(), matchID, throw("p1", Dart{20, 3}))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	// The appended ledger row was compensated away, so turn number 1 is free.
	turns, err := st.ListTurns(context.Background(), matchID)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 0 {
		t.Fatalf("orphan ledger rows after failed save: %+v", turns)
	}

	st.mu.Lock()
	st.failSave = false
	st.mu.Unlock()

	snap := mustSubmit(t, gw, matchID, throw("p1", Dart{20, 3}))
	if snap.TurnCount != 1 || playerScore(snap, "p1") != 241 {
		t.Fatalf("resubmission after store recovery failed: %+v", snap)
	}
}

func TestGatewaySaveAndCompensationFailureRehydrates(t *testing.T) {
	st := newMemStore()
	gw, reg, _ := newTestGateway(st)
	matchID := seedMatch(st, mode301Any(), "p1")

	mustSubmit(t, gw, matchID, Action{Kind: ActionJoin, UserID: "p2"})
	mustSubmit(t, gw, matchID, Action{Kind: ActionStart, UserID: "p1"})

	st.mu.Lock()
	st.failSave = true
	st.failDelete = true
	st.mu.Unlock()

	_, err := gw.Submit(context.Background(), matchID, throw("p1", Dart{20, 3}))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, ok := reg.Get(matchID); ok {
		t.Fatal("session with an uncompensated ledger row was not evicted")
	}

	st.mu.Lock()
	st.failSave = false
	st.failDelete = false
	st.mu.Unlock()

	// Rehydration replays the orphan row, so p1's throw stands and the next
	// submission gets a fresh turn number instead of colliding forever.
	snap, err := gw.Snapshot(context.Background(), matchID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.TurnCount != 1 || playerScore(snap, "p1") != 241 {
		t.Fatalf("ledger did not win at rehydration: %+v", snap)
	}
	snap = mustSubmit(t, gw, matchID, throw("p1", Dart{19, 1}))
	if snap.TurnCount != 2 || playerScore(snap, "p1") != 222 {
		t.Fatalf("submission after rehydration failed: %+v", snap)
	}
}

func TestGatewayRejoinAfterWaitingLeave(t *testing.T) {
	st := newMemStore()
	gw, _, _ := newTestGateway(st)
	matchID := seedMatch(st, mode301Any(), "p1")

	mustSubmit(t, gw, matchID, Action{Kind: ActionJoin, UserID: "p2"})
	mustSubmit(t, gw, matchID, Action{Kind: ActionLeave, UserID: "p2"})

	durable, err := st.LoadMatch(context.Background(), matchID)
	if err != nil {
		t.Fatal(err)
	}
	if len(durable.Players) != 1 {
		t.Fatalf("durable players after leave = %d, the row must be gone", len(durable.Players))
	}

	snap := mustSubmit(t, gw, matchID, Action{Kind: ActionJoin, UserID: "p2"})
	if len(snap.Players) != 2 || playerScore(snap, "p2") != 301 {
		t.Fatalf("rejoin after waiting-phase leave failed: %+v", snap)
	}
}

func playerScore(snap *Snapshot, userID string) int {
	for _, p := range snap.Players {
		if p.UserID == userID {
			return p.Score
		}
	}
	return -1
}
