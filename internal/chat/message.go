package chat

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation. Messages are never modified once
// appended.
type Message struct {
	ID        string
	Content   string
	Role      Role
	CreatedAt time.Time
}

type Status int

const (
	StatusIdle Status = iota
	StatusAwaitingReply
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusAwaitingReply:
		return "awaiting-reply"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a snapshot of the conversation. The Messages slice is owned by the
// snapshot and may be kept by the caller.
type State struct {
	Messages  []Message
	SessionID string
	Loading   bool
	Err       error
	// Model is the model that produced the latest reply.
	Model string
	// Version increases with every transition.
	Version uint64
}

func (s State) Status() Status {
	switch {
	case s.Loading:
		return StatusAwaitingReply
	case s.Err != nil:
		return StatusError
	default:
		return StatusIdle
	}
}

func (s State) Empty() bool {
	return len(s.Messages) == 0
}
