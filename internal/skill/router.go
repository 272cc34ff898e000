package skill

import (
	"cmp"
	"context"
	"slices"
	"strings"
)

// candidate is one skill considered for routing, with its computed rank.
type candidate struct {
	id    string
	score float64
}

// rankCandidates scores every enabled skill against the task
// description: each keyword hit counts double, plus the skill's current
// adaptive weight. Skills with no keyword hit are excluded. Caller must
// hold r.mu.
func (r *Registry) rankCandidates(description string) []candidate {
	desc := strings.ToLower(description)

	var out []candidate
	for id, s := range r.skills {
		if !s.def.Enabled {
			continue
		}
		hits := 0
		for _, kw := range s.def.Keywords {
			if strings.Contains(desc, strings.ToLower(kw)) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		out = append(out, candidate{id: id, score: float64(hits)*2 + s.weight})
	}

	slices.SortFunc(out, func(a, b candidate) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	return out
}

// Route picks the best skill for a free-text task description and
// executes it. Candidates are tried in descending rank order; the
// first successful execution wins. When no skill matches, or every
// candidate fails, Route returns a synthetic failed output with skill
// id "none" rather than an error.
func (r *Registry) Route(ctx context.Context, description string, in Input) Output {
	r.mu.Lock()
	candidates := r.rankCandidates(description)
	r.mu.Unlock()

	if in.Task == "" {
		in.Task = description
	}

	var lastErr string
	for _, c := range candidates {
		out, err := r.Execute(ctx, c.id, in)
		if err != nil {
			// Contract violations (disabled mid-flight, requirement
			// gone) just skip the candidate.
			lastErr = err.Error()
			continue
		}
		if out.Success {
			return out
		}
		lastErr = out.Error
	}

	if lastErr == "" {
		lastErr = "no skill matched the task description"
	}
	return Output{SkillID: "none", Success: false, Error: lastErr}
}

// Chain executes skills sequentially, feeding each output's result (or
// error text) into the next skill's context. It stops at the first
// failed execution and returns the partial results gathered so far.
func (r *Registry) Chain(ctx context.Context, ids []string, in Input) []Output {
	outputs := make([]Output, 0, len(ids))

	for _, id := range ids {
		out, err := r.Execute(ctx, id, in)
		if err != nil {
			out = Output{SkillID: id, Success: false, Error: err.Error()}
		}
		outputs = append(outputs, out)
		if !out.Success {
			break
		}
		in.Context = out.Result
	}
	return outputs
}
