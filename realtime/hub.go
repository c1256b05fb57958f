package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"darts-match-system/engine"

	"github.com/gofiber/contrib/websocket"
)

// Msg is the wire envelope, both directions.
type Msg struct {
	T string          `json:"t"`           // type
	M json.RawMessage `json:"m,omitempty"` // payload
}

type throwPayload struct {
	Darts []engine.Dart `json:"darts"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Hub tracks which websockets belong to which match and fans accepted
// transitions out to them. It is the projector's Sink; delivery is
// best-effort, a slow client's backlogged message is dropped rather than
// stalling the rest of the match.
type Hub struct {
	projector *engine.Projector
	gateway   *engine.Gateway

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{} // match id -> attached clients
}

func NewHub(projector *engine.Projector, gateway *engine.Gateway) *Hub {
	return &Hub{
		projector: projector,
		gateway:   gateway,
		rooms:     make(map[string]map[*Client]struct{}),
	}
}

// Publish implements engine.Sink.
func (h *Hub) Publish(matchID string, n engine.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		log.Printf("[HUB] marshal notification for %s: %v", matchID, err)
		return
	}
	b, _ := json.Marshal(Msg{T: string(n.Kind), M: payload})

	h.mu.RLock()
	for c := range h.rooms[matchID] {
		select {
		case c.send <- b:
		default:
			log.Printf("[HUB] dropping %s message to slow client %s", n.Kind, c.id)
		}
	}
	h.mu.RUnlock()
}

// Serve runs one websocket for its lifetime. Mounted behind WSAuthMiddleware,
// so user identity is already on Locals.
func (h *Hub) Serve(conn *websocket.Conn) {
	matchID := conn.Params("id")
	userID, _ := conn.Locals("user_id").(string)

	client := newClient(conn, matchID, userID)
	go client.writePump()

	snap, err := h.projector.Connected(context.Background(), matchID, client.id, userID)
	if err != nil {
		h.sendError(client, err)
		close(client.send)
		return
	}

	h.register(client)
	log.Printf("[HUB] client %s (user %s) attached to match %s", client.id, userID, matchID)

	h.sendTo(client, "snapshot", snap)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var m Msg
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		h.dispatch(client, m)
	}

	h.unregister(client)
	close(client.send)
	h.projector.Disconnected(context.Background(), matchID, client.id)
	log.Printf("[HUB] client %s detached from match %s", client.id, matchID)
}

// dispatch turns one inbound envelope into a gateway submission. Rejections
// go back to the sender only; accepted transitions return to everyone via
// Publish.
func (h *Hub) dispatch(c *Client, m Msg) {
	act := engine.Action{UserID: c.userID}

	switch m.T {
	case "join":
		act.Kind = engine.ActionJoin
	case "start":
		act.Kind = engine.ActionStart
	case "leave":
		act.Kind = engine.ActionLeave
	case "throw":
		var p throwPayload
		if err := json.Unmarshal(m.M, &p); err != nil || len(p.Darts) != 3 {
			h.sendTo(c, "error", errorPayload{Code: "validation", Message: "a turn is exactly 3 darts"})
			return
		}
		act.Kind = engine.ActionThrow
		copy(act.Darts[:], p.Darts)
	case "ping":
		h.sendTo(c, "pong", nil)
		return
	default:
		return
	}

	if _, err := h.gateway.Submit(context.Background(), c.matchID, act); err != nil {
		h.sendError(c, err)
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	room := h.rooms[c.matchID]
	if room == nil {
		room = make(map[*Client]struct{})
		h.rooms[c.matchID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if room, ok := h.rooms[c.matchID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.matchID)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) sendTo(c *Client, t string, payload interface{}) {
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	b, _ := json.Marshal(Msg{T: t, M: raw})
	select {
	case c.send <- b:
	default:
	}
}

func (h *Hub) sendError(c *Client, err error) {
	p := errorPayload{Code: "internal", Message: "internal error"}
	var e *engine.Error
	if errors.Is(err, engine.ErrStoreUnavailable) {
		p = errorPayload{Code: "store_unavailable", Message: "store unavailable, retry later"}
	} else if errors.As(err, &e) {
		p = errorPayload{Code: string(e.Code), Message: e.Message}
	}
	h.sendTo(c, "error", p)
}
