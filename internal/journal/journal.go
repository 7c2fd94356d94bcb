// Package journal appends one JSONL record per significant trading state
// transition, for post-session review and replay.
package journal

import "time"

// Record kinds.
const (
	KindGoal          = "goal"
	KindDuplicate     = "duplicate"
	KindArmed         = "armed"
	KindAuthorizeDeny = "authorize_deny"
	KindOrder         = "order"
	KindOpen          = "open"
	KindClose         = "close"
	KindExpired       = "expired"
	KindHalt          = "halt"
)

// Record is one journal line.
type Record struct {
	Time     time.Time      `json:"ts"`
	Kind     string         `json:"kind"`
	Strategy string         `json:"strategy,omitempty"`
	Match    uint32         `json:"match,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// Sink accepts journal records. Implementations must not block the caller.
type Sink interface {
	Append(rec Record)
}

// Nop discards every record.
type Nop struct{}

func (Nop) Append(Record) {}
