// Package db archives analysis conversations in SQLite.
package db

import "time"

// Conversation is one analysis session: the region that was analysed, the
// model settings and the initial prompt.
type Conversation struct {
	ID             string
	SessionID      string
	AudioPath      string
	StartSec       float64
	EndSec         float64
	ModelID        string
	Temperature    float64
	ThinkingBudget int
	Prompt         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	// TurnCount is filled by ListConversations.
	TurnCount int
}

// Turn is a committed message of a conversation.
type Turn struct {
	ID             string
	ConversationID string
	Seq            int
	Role           string
	Text           string
	CreatedAt      time.Time
}
