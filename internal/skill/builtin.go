package skill

import (
	"context"
	"fmt"

	"github.com/frejasky/coda/internal/llm"
)

// builtin describes one of the stock LLM-backed skills.
type builtin struct {
	def     Definition
	prompt  string
	chained []string
}

// builtins are thin prompt wrappers around the LLM client. Chained
// suggestions are static: code generation suggests validating its own
// output with the testing and analysis skills.
var builtins = []builtin{
	{
		def: Definition{
			ID:          "skill_code",
			Name:        "Code Generation",
			Description: "Writes or modifies code for a described task",
			Category:    "coding",
			Priority:    PriorityHigh,
			Enabled:     true,
			Version:     "1.0.0",
			Retryable:   true,
			Keywords:    []string{"code", "implement", "write", "function", "class", "refactor", "build"},
		},
		prompt:  "You are an expert software engineer. Produce clean, working code for the user's task. Include brief usage notes.",
		chained: []string{"skill_test", "skill_analyze"},
	},
	{
		def: Definition{
			ID:          "skill_analyze",
			Name:        "Code Analysis",
			Description: "Reviews code or designs and explains structure and issues",
			Category:    "analysis",
			Priority:    PriorityNormal,
			Enabled:     true,
			Version:     "1.0.0",
			Retryable:   true,
			Keywords:    []string{"analyze", "review", "explain", "understand", "architecture"},
		},
		prompt: "You are a code reviewer. Analyze the given code or design, point out problems, and suggest concrete improvements.",
	},
	{
		def: Definition{
			ID:          "skill_test",
			Name:        "Test Generation",
			Description: "Writes tests for existing code",
			Category:    "testing",
			Priority:    PriorityNormal,
			Enabled:     true,
			Version:     "1.0.0",
			Retryable:   true,
			Keywords:    []string{"test", "verify", "coverage", "assert"},
		},
		prompt: "You are a testing specialist. Write thorough, readable tests for the given code, covering edge cases.",
	},
	{
		def: Definition{
			ID:          "skill_debug",
			Name:        "Debugging",
			Description: "Diagnoses errors and proposes fixes",
			Category:    "debugging",
			Priority:    PriorityHigh,
			Enabled:     true,
			Version:     "1.0.0",
			Retryable:   true,
			Keywords:    []string{"debug", "error", "fix", "broken", "crash", "bug"},
		},
		prompt:  "You are a debugging expert. Identify the root cause of the described problem and propose a minimal fix.",
		chained: []string{"skill_test"},
	},
	{
		def: Definition{
			ID:          "skill_learn",
			Name:        "Learning",
			Description: "Explains concepts and teaches techniques",
			Category:    "learning",
			Priority:    PriorityLow,
			Enabled:     true,
			Version:     "1.0.0",
			Retryable:   true,
			Keywords:    []string{"learn", "teach", "what is", "how does", "tutorial"},
		},
		prompt: "You are a patient teacher. Explain the asked concept clearly with a small example.",
	},
}

// RegisterBuiltins registers the stock skills backed by the given LLM
// client.
func RegisterBuiltins(r *Registry, client llm.Client) {
	for _, b := range builtins {
		r.Register(b.def, promptExecutor(client, b.prompt, b.chained))
	}
}

// promptExecutor builds an executor that sends the skill's system
// prompt plus the task to the LLM client.
func promptExecutor(client llm.Client, systemPrompt string, chained []string) Executor {
	return func(ctx context.Context, in Input) (Output, error) {
		messages := make([]llm.ChatMessage, 0, len(in.History)+2)
		messages = append(messages, llm.ChatMessage{Role: llm.RoleSystem, Content: systemPrompt})
		messages = append(messages, in.History...)

		task := in.Task
		if in.Context != "" {
			task = fmt.Sprintf("%s\n\nContext from previous step:\n%s", in.Task, in.Context)
		}
		messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: task})

		resp, err := client.Chat(ctx, messages, llm.Options{})
		if err != nil {
			return Output{Success: false, Error: err.Error()}, nil
		}
		return Output{
			Success: true,
			Result:  resp.Message.Content,
			Metrics: Metrics{Tokens: resp.TotalTokens()},
			Chained: chained,
		}, nil
	}
}
