package session

import "github.com/google/uuid"

// Role identifies who produced a chat turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// TurnStatus is the confirmation state of a chat turn.
type TurnStatus string

const (
	StatusPending    TurnStatus = "pending"
	StatusCommitted  TurnStatus = "committed"
	StatusRolledBack TurnStatus = "rolled_back"
)

// ChatTurn is one entry of the conversation transcript.
type ChatTurn struct {
	ID     string
	Role   Role
	Text   string
	Status TurnStatus
}

// NewTurn builds a turn with a fresh ID.
func NewTurn(role Role, text string, status TurnStatus) ChatTurn {
	return ChatTurn{ID: uuid.NewString(), Role: role, Text: text, Status: status}
}

// Transcript is an append-only ordered log of chat turns. The zero value is
// an empty transcript. Methods never modify the receiver's backing array, so
// snapshots taken earlier remain stable.
type Transcript struct {
	turns []ChatTurn
}

// Len returns the number of turns.
func (t Transcript) Len() int { return len(t.turns) }

// Turns returns a copy of the turns in order.
func (t Transcript) Turns() []ChatTurn {
	out := make([]ChatTurn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Last returns the final turn, if any.
func (t Transcript) Last() (ChatTurn, bool) {
	if len(t.turns) == 0 {
		return ChatTurn{}, false
	}
	return t.turns[len(t.turns)-1], true
}

// Append returns a transcript with turn added at the end.
func (t Transcript) Append(turn ChatTurn) Transcript {
	turns := make([]ChatTurn, len(t.turns), len(t.turns)+1)
	copy(turns, t.turns)
	return Transcript{turns: append(turns, turn)}
}

// RemoveLast removes the most recent turn matching match. Matching is by
// content rather than position because turns of other action classes may
// have been appended after the one being removed. The removed turn is
// returned with status rolled_back.
func (t Transcript) RemoveLast(match func(ChatTurn) bool) (Transcript, ChatTurn, bool) {
	for i := len(t.turns) - 1; i >= 0; i-- {
		if !match(t.turns[i]) {
			continue
		}
		removed := t.turns[i]
		removed.Status = StatusRolledBack
		turns := make([]ChatTurn, 0, len(t.turns)-1)
		turns = append(turns, t.turns[:i]...)
		turns = append(turns, t.turns[i+1:]...)
		return Transcript{turns: turns}, removed, true
	}
	return t, ChatTurn{}, false
}

// CommitLast moves the most recent pending turn matching match to committed.
func (t Transcript) CommitLast(match func(ChatTurn) bool) (Transcript, bool) {
	for i := len(t.turns) - 1; i >= 0; i-- {
		if t.turns[i].Status != StatusPending || !match(t.turns[i]) {
			continue
		}
		turns := t.Turns()
		turns[i].Status = StatusCommitted
		return Transcript{turns: turns}, true
	}
	return t, false
}

// Clear returns an empty transcript.
func (t Transcript) Clear() Transcript {
	return Transcript{}
}

// pendingTurn matches the optimistic turn appended for text by role.
func pendingTurn(role Role, text string) func(ChatTurn) bool {
	return func(c ChatTurn) bool {
		return c.Role == role && c.Text == text && c.Status == StatusPending
	}
}
