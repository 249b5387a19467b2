package rules

import (
	"context"
	"sync/atomic"

	"github.com/solatis/tagrules/internal/types"
)

// Engine publishes the current RuleSet to concurrent evaluators.
// A reload compiles a new RuleSet and swaps it in; evaluations already
// running keep the set they loaded.
type Engine struct {
	current atomic.Pointer[RuleSet]
	workers int
}

// NewEngine creates an engine with no rule set loaded.
// workers bounds EvaluateBatch fan-out; <= 0 means DefaultWorkers.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Engine{workers: workers}
}

// Current returns the published rule set, or nil before the first Swap.
func (e *Engine) Current() *RuleSet {
	return e.current.Load()
}

// Swap publishes rs and returns the set it replaced.
func (e *Engine) Swap(rs *RuleSet) *RuleSet {
	return e.current.Swap(rs)
}

// Evaluate matches obj against the current rule set.
func (e *Engine) Evaluate(obj types.ObjectRecord) (MatchResult, error) {
	rs := e.current.Load()
	if rs == nil {
		return MatchResult{}, types.ErrNoRuleSet
	}
	return Evaluate(rs, obj), nil
}

// EvaluateBatch matches objs against one snapshot of the current rule set.
func (e *Engine) EvaluateBatch(ctx context.Context, objs []types.ObjectRecord) ([]MatchResult, error) {
	rs := e.current.Load()
	if rs == nil {
		return nil, types.ErrNoRuleSet
	}
	return EvaluateBatch(ctx, rs, objs, e.workers)
}
