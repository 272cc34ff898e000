package skill

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func enabledDef(id string, keywords ...string) Definition {
	return Definition{
		ID:       id,
		Name:     id,
		Priority: PriorityNormal,
		Enabled:  true,
		Version:  "1.0.0",
		Keywords: keywords,
	}
}

func okExecutor(result string) Executor {
	return func(ctx context.Context, in Input) (Output, error) {
		return Output{Success: true, Result: result}, nil
	}
}

func TestRegister_InitialWeightFromPriority(t *testing.T) {
	tests := []struct {
		priority Priority
		want     float64
	}{
		{PriorityCritical, 10},
		{PriorityHigh, 7},
		{PriorityNormal, 5},
		{PriorityLow, 2},
		{Priority("bogus"), 5},
	}

	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			r := NewRegistry()
			r.Register(Definition{ID: "s", Priority: tt.priority, Enabled: true}, okExecutor(""))
			if got := r.Weight("s"); got != tt.want {
				t.Errorf("weight = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExecute_ContractViolations(t *testing.T) {
	r := NewRegistry()
	r.Register(enabledDef("known"), okExecutor("ok"))

	disabled := enabledDef("off")
	disabled.Enabled = false
	r.Register(disabled, okExecutor("ok"))

	needy := enabledDef("needy")
	needy.Requires = []string{"missing"}
	r.Register(needy, okExecutor("ok"))

	ctx := context.Background()

	if _, err := r.Execute(ctx, "nope", Input{}); !errors.Is(err, ErrUnknownSkill) {
		t.Errorf("unknown skill error = %v", err)
	}
	if _, err := r.Execute(ctx, "off", Input{}); !errors.Is(err, ErrSkillDisabled) {
		t.Errorf("disabled skill error = %v", err)
	}
	if _, err := r.Execute(ctx, "needy", Input{}); !errors.Is(err, ErrMissingRequirement) {
		t.Errorf("missing requirement error = %v", err)
	}

	// Requirements are existence-checked only, never executed.
	r.Register(enabledDef("missing"), func(ctx context.Context, in Input) (Output, error) {
		t.Error("required skill must not be invoked")
		return Output{}, nil
	})
	out, err := r.Execute(ctx, "needy", Input{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !out.Success {
		t.Errorf("output = %+v, want success", out)
	}
}

func TestExecute_FailureIsolation(t *testing.T) {
	tests := []struct {
		name string
		exec Executor
		def  func(Definition) Definition
	}{
		{
			name: "executor error",
			exec: func(ctx context.Context, in Input) (Output, error) {
				return Output{}, errors.New("executor blew up")
			},
		},
		{
			name: "executor panic",
			exec: func(ctx context.Context, in Input) (Output, error) {
				panic("boom")
			},
		},
		{
			name: "timeout",
			exec: func(ctx context.Context, in Input) (Output, error) {
				<-ctx.Done()
				return Output{}, ctx.Err()
			},
			def: func(d Definition) Definition {
				d.MaxDuration = 10 * time.Millisecond
				return d
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			def := enabledDef("s")
			if tt.def != nil {
				def = tt.def(def)
			}
			r.Register(def, tt.exec)

			out, err := r.Execute(context.Background(), "s", Input{})
			if err != nil {
				t.Fatalf("Execute() must not return executor failures, got %v", err)
			}
			if out.Success {
				t.Error("output should be failed")
			}
			if out.Error == "" {
				t.Error("failed output must carry a non-empty error")
			}
			if out.SkillID != "s" {
				t.Errorf("skill id = %q, want s", out.SkillID)
			}
		})
	}
}

func TestExecute_WeightAdjustment(t *testing.T) {
	t.Run("penalty with floor", func(t *testing.T) {
		r := NewRegistry()
		def := enabledDef("s")
		def.Priority = PriorityLow // weight 2
		r.Register(def, func(ctx context.Context, in Input) (Output, error) {
			return Output{}, errors.New("fail")
		})

		for i := 0; i < 20; i++ {
			r.Execute(context.Background(), "s", Input{})
		}
		if got := r.Weight("s"); got != weightFloor {
			t.Errorf("weight = %v, want floor %v", got, weightFloor)
		}
	})

	t.Run("reward capped", func(t *testing.T) {
		r := NewRegistry()
		now := time.Now()
		r.now = func() time.Time { return now } // zero-duration executions
		def := enabledDef("s")
		def.Priority = PriorityCritical // weight 10, already at cap
		r.Register(def, okExecutor("ok"))

		r.Execute(context.Background(), "s", Input{})
		if got := r.Weight("s"); got != weightCap {
			t.Errorf("weight = %v, want cap %v", got, weightCap)
		}
	})

	t.Run("reward scales with speed", func(t *testing.T) {
		r := NewRegistry()
		now := time.Now()
		calls := 0
		r.now = func() time.Time {
			calls++
			if calls == 2 { // second reading is the execution end
				return now.Add(100 * time.Millisecond)
			}
			return now
		}
		r.Register(enabledDef("s"), okExecutor("ok"))

		r.Execute(context.Background(), "s", Input{})
		// 5 + 0.1*(1000/100) = 6
		if got := r.Weight("s"); got != 6 {
			t.Errorf("weight = %v, want 6", got)
		}
	})
}

func TestExecute_History(t *testing.T) {
	r := NewRegistry()
	r.Register(enabledDef("s"), okExecutor("ok"))

	for i := 0; i < maxHistory+10; i++ {
		r.Execute(context.Background(), "s", Input{})
	}
	if got := len(r.History()); got != maxHistory {
		t.Errorf("history length = %d, want %d", got, maxHistory)
	}
}

func TestRoute_KeywordDeterminism(t *testing.T) {
	r := NewRegistry()
	r.Register(enabledDef("skill_code", "code"), okExecutor("code out"))
	r.Register(enabledDef("skill_test", "test"), okExecutor("test out"))
	r.Register(enabledDef("skill_learn", "learn"), okExecutor("learn out"))

	out := r.Route(context.Background(), "write code for a calculator", Input{})
	if out.SkillID != "skill_code" {
		t.Errorf("routed to %q, want skill_code", out.SkillID)
	}
	if !out.Success || out.Result != "code out" {
		t.Errorf("output = %+v", out)
	}
}

func TestRoute_NoMatch(t *testing.T) {
	r := NewRegistry()
	r.Register(enabledDef("skill_code", "code"), okExecutor("ok"))

	out := r.Route(context.Background(), "order a pizza", Input{})
	if out.SkillID != "none" || out.Success {
		t.Errorf("output = %+v, want failed output with skill id none", out)
	}
	if out.Error == "" {
		t.Error("failed routing must carry an error")
	}
}

func TestRoute_FallsToNextCandidate(t *testing.T) {
	r := NewRegistry()

	broken := enabledDef("broken", "task")
	broken.Priority = PriorityCritical // wins the ranking
	r.Register(broken, func(ctx context.Context, in Input) (Output, error) {
		return Output{}, errors.New("always fails")
	})
	r.Register(enabledDef("backup", "task"), okExecutor("saved"))

	out := r.Route(context.Background(), "handle this task", Input{})
	if out.SkillID != "backup" || !out.Success {
		t.Errorf("output = %+v, want backup to succeed", out)
	}
}

func TestRoute_SkipsDisabled(t *testing.T) {
	r := NewRegistry()
	r.Register(enabledDef("on", "task"), okExecutor("on"))
	off := enabledDef("off", "task")
	off.Priority = PriorityCritical
	r.Register(off, okExecutor("off"))
	r.SetEnabled("off", false)

	out := r.Route(context.Background(), "do the task", Input{})
	if out.SkillID != "on" {
		t.Errorf("routed to %q, want on", out.SkillID)
	}
}

func TestChain_SequentialWithEarlyStop(t *testing.T) {
	r := NewRegistry()
	r.Register(enabledDef("first"), func(ctx context.Context, in Input) (Output, error) {
		return Output{Success: true, Result: "first out"}, nil
	})
	r.Register(enabledDef("second"), func(ctx context.Context, in Input) (Output, error) {
		if in.Context != "first out" {
			t.Errorf("context = %q, want previous result", in.Context)
		}
		return Output{}, errors.New("second fails")
	})
	r.Register(enabledDef("third"), func(ctx context.Context, in Input) (Output, error) {
		t.Error("chain must stop at the first failure")
		return Output{}, nil
	})

	outputs := r.Chain(context.Background(), []string{"first", "second", "third"}, Input{Task: "go"})
	if len(outputs) != 2 {
		t.Fatalf("outputs = %d, want 2 (partial results)", len(outputs))
	}
	if !outputs[0].Success || outputs[1].Success {
		t.Errorf("outputs = %+v", outputs)
	}
}

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r, stubClient{reply: "generated"})

	defs := r.Definitions()
	if len(defs) != 5 {
		t.Fatalf("builtin count = %d, want 5", len(defs))
	}

	out := r.Route(context.Background(), "write code for a calculator", Input{})
	if out.SkillID != "skill_code" || !out.Success {
		t.Fatalf("output = %+v", out)
	}
	if out.Result != "generated" {
		t.Errorf("result = %q", out.Result)
	}
	if len(out.Chained) == 0 || out.Chained[0] != "skill_test" {
		t.Errorf("chained = %v, want test generation suggested", out.Chained)
	}
}

func TestPromptExecutor_IncludesContext(t *testing.T) {
	var captured []string
	client := stubClient{reply: "ok", onChat: func(messages []string) {
		captured = messages
	}}

	exec := promptExecutor(client, "system prompt", nil)
	_, err := exec(context.Background(), Input{Task: "do it", Context: "prior output"})
	if err != nil {
		t.Fatalf("executor error = %v", err)
	}
	if len(captured) != 2 {
		t.Fatalf("messages = %v", captured)
	}
	if captured[0] != "system prompt" {
		t.Errorf("system message = %q", captured[0])
	}
	if !strings.Contains(captured[1], "do it") || !strings.Contains(captured[1], "prior output") {
		t.Errorf("user message = %q, want task and context", captured[1])
	}
}
