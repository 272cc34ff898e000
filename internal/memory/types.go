// Package memory implements per-session conversation history with a
// sliding context window, importance scoring, hashed-embedding
// similarity search, lossy compression of old turns, and JSON
// snapshotting.
package memory

import (
	"time"

	"github.com/frejasky/coda/internal/llm"
)

// Urgency grades how pressing a session's current goal is.
type Urgency string

// Urgency levels.
const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// SessionContext is free-form conversational state attached to a
// session.
type SessionContext struct {
	Topic     string   `json:"topic,omitempty"`
	Sentiment string   `json:"sentiment,omitempty"`
	Urgency   Urgency  `json:"urgency,omitempty"`
	Goals     []string `json:"goals,omitempty"`
}

// merge shallow-merges non-zero fields of other into c.
func (c *SessionContext) merge(other SessionContext) {
	if other.Topic != "" {
		c.Topic = other.Topic
	}
	if other.Sentiment != "" {
		c.Sentiment = other.Sentiment
	}
	if other.Urgency != "" {
		c.Urgency = other.Urgency
	}
	if other.Goals != nil {
		c.Goals = other.Goals
	}
}

// ChatTurn is one message in a conversation. Turns are immutable once
// created; compression replaces a contiguous prefix of turns with a
// single synthetic summary turn.
type ChatTurn struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Role       llm.Role  `json:"role"`
	Content    string    `json:"content"`
	Tokens     int       `json:"tokens"`
	Importance int       `json:"importance"`
	Tags       []string  `json:"tags,omitempty"`
	Related    []string  `json:"related,omitempty"`
}

// TurnMeta carries caller overrides for a new turn's computed fields.
type TurnMeta struct {
	// Importance overrides the computed importance when non-nil.
	Importance *int

	// Tags and Related are attached to the turn as given.
	Tags    []string
	Related []string
}

// Session is one conversation thread. Sessions are mutated only by the
// Manager.
type Session struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Started      time.Time      `json:"started"`
	LastUpdate   time.Time      `json:"last_update"`
	MessageCount int            `json:"message_count"`
	Turns        []ChatTurn     `json:"turns"`
	Context      SessionContext `json:"context"`
}

// clone returns a deep enough copy for handing out of the manager.
func (s *Session) clone() Session {
	out := *s
	out.Turns = make([]ChatTurn, len(s.Turns))
	copy(out.Turns, s.Turns)
	return out
}
