package engine

// ActionKind identifies the five mutations the state machine accepts.
type ActionKind string

const (
	ActionJoin    ActionKind = "join"
	ActionStart   ActionKind = "start"
	ActionThrow   ActionKind = "throw"
	ActionLeave   ActionKind = "leave"
	ActionAbandon ActionKind = "abandon" // administrative / timeout trigger
)

// Dart is a single thrown dart: face value and multiplier.
// Valid combinations: value 0..20 with multiplier 1..3, bull as value 25 with
// multiplier 1 or 2, and a miss as value 0 (multiplier ignored).
type Dart struct {
	Value      int `json:"value"`
	Multiplier int `json:"multiplier"`
}

// Action is the normalized form every inbound mutation takes, regardless of
// whether it arrived over the HTTP path or the websocket path. UserID is a
// verified identity supplied by the caller's auth layer.
type Action struct {
	Kind   ActionKind `json:"kind"`
	UserID string     `json:"user_id"`
	Darts  [3]Dart    `json:"darts"` // only meaningful for ActionThrow
}
