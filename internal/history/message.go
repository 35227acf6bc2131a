package history

import "time"

// Role tags a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one role-tagged message. Turns are never modified once appended.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is the chronological sequence of turns of one conversation.
type History []Turn

// Append returns a history with t added at the end. h itself is not modified.
func (h History) Append(t Turn) History {
	out := make(History, len(h), len(h)+1)
	copy(out, h)
	return append(out, t)
}

// Conversational returns the user and assistant turns, in order.
func (h History) Conversational() History {
	out := make(History, 0, len(h))
	for _, t := range h {
		if t.Role == RoleUser || t.Role == RoleAssistant {
			out = append(out, t)
		}
	}
	return out
}

// LastAssistant returns the most recent assistant turn.
func (h History) LastAssistant() (Turn, bool) {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Role == RoleAssistant {
			return h[i], true
		}
	}
	return Turn{}, false
}

// Record is a stored turn.
type Record struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
