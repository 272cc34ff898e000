// Package skill implements a registry of named skills, adaptive
// priority-weighted routing of free-text tasks, timed execution with
// failure isolation, and sequential skill chaining.
package skill

import (
	"context"
	"time"

	"github.com/frejasky/coda/internal/llm"
)

// Priority ranks how strongly a skill should be preferred at
// registration time.
type Priority string

// Skill priorities.
const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// initialWeight maps a priority to the skill's starting routing weight.
func (p Priority) initialWeight() float64 {
	switch p {
	case PriorityCritical:
		return 10
	case PriorityHigh:
		return 7
	case PriorityLow:
		return 2
	default:
		return 5
	}
}

// Definition describes a registered skill.
type Definition struct {
	// ID uniquely identifies the skill.
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Description explains what the skill does.
	Description string `json:"description"`

	// Category groups related skills.
	Category string `json:"category"`

	// Priority determines the initial routing weight.
	Priority Priority `json:"priority"`

	// Enabled gates routing and execution.
	Enabled bool `json:"enabled"`

	// Version is a semantic version string.
	Version string `json:"version"`

	// Requires lists skill ids that must be registered before this
	// skill can execute. Required skills are existence-checked only,
	// never invoked.
	Requires []string `json:"requires,omitempty"`

	// MaxDuration bounds executor runtime. Default: 30s.
	MaxDuration time.Duration `json:"max_duration,omitempty"`

	// Retryable marks the skill safe to re-execute on failure.
	Retryable bool `json:"retryable"`

	// Keywords drive routing: a task description matching more of a
	// skill's keywords ranks that skill higher.
	Keywords []string `json:"keywords,omitempty"`
}

// Input carries the task into an executor.
type Input struct {
	// Task is the free-text task description.
	Task string

	// Context is accumulated free-form context, e.g. a previous
	// skill's output when chaining.
	Context string

	// History is the conversation window for LLM-backed skills.
	History []llm.ChatMessage
}

// Metrics captures per-execution measurements.
type Metrics struct {
	Duration time.Duration `json:"duration"`
	Tokens   int           `json:"tokens,omitempty"`
	CacheHit bool          `json:"cache_hit,omitempty"`
}

// Output is the result of one skill execution.
type Output struct {
	SkillID string  `json:"skill_id"`
	Success bool    `json:"success"`
	Result  string  `json:"result,omitempty"`
	Error   string  `json:"error,omitempty"`
	Metrics Metrics `json:"metrics"`

	// Chained suggests follow-up skills whose input should be this
	// output.
	Chained []string `json:"chained,omitempty"`
}

// Executor runs a skill. Implementations must honor ctx cancellation;
// the registry abandons executors that overrun their deadline, so an
// executor that ignores ctx leaks its goroutine until it returns.
type Executor func(ctx context.Context, in Input) (Output, error)
