// Package agent composes the LLM gateway, skill registry, memory
// manager, and error/recovery engine into a single process-one-message
// entry point. Process never returns an error to its caller; every
// failure path resolves to a usable, possibly degraded, response.
package agent

import (
	"time"
)

// breakerService is the circuit breaker service name the orchestrator
// records its outcomes under.
const breakerService = "agent_processing"

// Request is one inbound user message with routing hints.
type Request struct {
	// UserID identifies the requesting user.
	UserID string `json:"user_id"`

	// SessionID selects the conversation; empty creates a new session.
	SessionID string `json:"session_id,omitempty"`

	// Message is the free-text user message.
	Message string `json:"message"`

	// Context is optional extra context supplied by the front-end.
	Context string `json:"context,omitempty"`

	// ForceSkill bypasses routing and executes the named skill.
	ForceSkill string `json:"force_skill,omitempty"`

	// AllowChaining permits executing a routed skill's chain
	// suggestions.
	AllowChaining bool `json:"allow_chaining,omitempty"`
}

// Response is the result returned to the front-end.
type Response struct {
	ID         string        `json:"id"`
	Time       time.Time     `json:"time"`
	SessionID  string        `json:"session_id"`
	Content    string        `json:"content"`
	SkillsUsed []string      `json:"skills_used,omitempty"`
	Duration   time.Duration `json:"duration"`
	Confidence float64       `json:"confidence"`

	// FollowUp suggests skills worth running next.
	FollowUp []string `json:"follow_up,omitempty"`

	// DemoMode marks the content as canned degraded-mode text.
	DemoMode bool `json:"demo_mode,omitempty"`
}

// Confidence heuristic constants.
const (
	confidenceBase         = 0.7
	confidenceSkillSuccess = 0.15
	confidenceSkillFailure = -0.2
	confidenceLongResponse = 0.05
	longResponseChars      = 200

	// offlineConfidence is reported with the fixed offline fallback.
	offlineConfidence = 0.3
)

// confidence computes the heuristic response confidence: the base,
// raised when a skill produced the answer, lowered when the response
// came from a fallback, with a small bonus for substantial responses.
// Clamped to [0, 1].
func confidence(skillSucceeded bool, responseLen int) float64 {
	c := confidenceBase
	if skillSucceeded {
		c += confidenceSkillSuccess
	} else {
		c += confidenceSkillFailure
	}
	if responseLen > longResponseChars {
		c += confidenceLongResponse
	}
	return min(1, max(0, c))
}
