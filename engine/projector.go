// engine/projector.go
package engine

import (
	"context"
	"log"

	"darts-match-system/models"
)

// TransitionKind labels the state-machine transition a notification describes.
type TransitionKind string

const (
	TransitionPlayerJoined   TransitionKind = "player_joined"
	TransitionMatchStarted   TransitionKind = "match_started"
	TransitionTurnScored     TransitionKind = "turn_scored"
	TransitionPlayerLeft     TransitionKind = "player_left"
	TransitionMatchCompleted TransitionKind = "match_completed"
	TransitionMatchAbandoned TransitionKind = "match_abandoned"
)

// Notification is the outbound projection of one accepted transition: what
// happened plus the full resulting snapshot. Every connected identity of the
// match receives the same notification.
type Notification struct {
	Kind  TransitionKind `json:"kind"`
	Match *Snapshot      `json:"match"`
	Turn  *TurnView      `json:"turn,omitempty"` // present for turn_scored / match_completed
}

// Sink delivers notifications to all transport identities of a match. The
// realtime hub implements it; delivery failures to individual identities are
// the sink's problem (logged, never propagated back into the action).
type Sink interface {
	Publish(matchID string, n Notification)
}

// Projector converts accepted transitions into notifications and tears down a
// participant's presence when its transport disconnects.
type Projector struct {
	registry *Registry
	sink     Sink
	gateway  *Gateway // set after construction; gateway and projector reference each other
}

func NewProjector(registry *Registry, sink Sink) *Projector {
	return &Projector{registry: registry, sink: sink}
}

// BindGateway wires the gateway used for Leave-on-disconnect.
func (p *Projector) BindGateway(gw *Gateway) {
	p.gateway = gw
}

// SetSink wires the delivery fan-out. The hub needs the projector to exist
// before it can be built, so the sink arrives after construction.
func (p *Projector) SetSink(sink Sink) {
	p.sink = sink
}

// Notify fans one transition out to the session's connected identities.
// Called by the gateway after the per-match lock has been released, so a slow
// consumer can never stall the match.
func (p *Projector) Notify(matchID string, kind TransitionKind, snap *Snapshot, turn *TurnView) {
	if p.sink == nil {
		return
	}
	p.sink.Publish(matchID, Notification{Kind: kind, Match: snap, Turn: turn})
}

// Connected maps a transport identity onto the match's live session, creating
// or hydrating the session if needed, and returns the current snapshot for the
// initial state push.
func (p *Projector) Connected(ctx context.Context, matchID, connID, userID string) (*Snapshot, error) {
	s, err := p.registry.GetOrCreate(ctx, matchID)
	if err != nil {
		return nil, err
	}
	s.Attach(connID, userID)
	return s.Snapshot(), nil
}

// Disconnected removes the identity mapping. A participant dropping out of an
// in-progress match leaves on its behalf; the last identity leaving a
// terminal match tears the live session down. A waiting match keeps its
// durable record and may be rejoined later, only the in-memory session goes
// away.
func (p *Projector) Disconnected(ctx context.Context, matchID, connID string) {
	s, ok := p.registry.Get(matchID)
	if !ok {
		return
	}
	userID, remaining := s.Detach(connID, timeNow())

	snap := s.Snapshot()
	if snap != nil && snap.Status == models.MatchInProgress && userID != "" && p.gateway != nil {
		if isParticipant(snap, userID) {
			if _, err := p.gateway.Submit(ctx, matchID, Action{Kind: ActionLeave, UserID: userID}); err != nil {
				log.Printf("[PROJECTOR] match %s: leave on disconnect for %s failed: %v", matchID, userID, err)
			}
			snap = s.Snapshot()
		}
	}

	if remaining == 0 && snap != nil && (snap.Status == models.MatchCompleted || snap.Status == models.MatchAbandoned) {
		p.registry.Remove(matchID)
	}
}

func isParticipant(snap *Snapshot, userID string) bool {
	for _, pl := range snap.Players {
		if pl.UserID == userID && !pl.Departed {
			return true
		}
	}
	return false
}
