package store

import "time"

const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
)

// Turn is one immutable entry of a thread log
type Turn struct {
	Role      string    `json:"role"` // "human" | "assistant"
	Content   string    `json:"content"`
	Position  int       `json:"position"` // 0-based order within the thread
	CreatedAt time.Time `json:"created_at"`
}

// HumanTurn builds a turn for the asking side
func HumanTurn(content string) Turn {
	return Turn{Role: RoleHuman, Content: content, CreatedAt: time.Now()}
}

// AssistantTurn builds a turn for the answering side
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content, CreatedAt: time.Now()}
}

// LastHumanTurns returns up to n human turns, newest first
func LastHumanTurns(turns []Turn, n int) []Turn {
	out := make([]Turn, 0, n)
	for i := len(turns) - 1; i >= 0 && len(out) < n; i-- {
		if turns[i].Role == RoleHuman {
			out = append(out, turns[i])
		}
	}
	return out
}

// RecentWindow returns the last n turns, newest first
func RecentWindow(turns []Turn, n int) []Turn {
	if n <= 0 || len(turns) == 0 {
		return nil
	}
	if n > len(turns) {
		n = len(turns)
	}
	out := make([]Turn, 0, n)
	for i := len(turns) - 1; i >= len(turns)-n; i-- {
		out = append(out, turns[i])
	}
	return out
}
