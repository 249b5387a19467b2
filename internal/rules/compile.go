// internal/rules/compile.go
package rules

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/solatis/tagrules/internal/types"
)

/*
 * Rule set compilation.
 *
 * Compiles raw rule lines into one immutable RuleSet:
 *   1. Parse each line against the vocabulary (syntax, unknown tag/value)
 *   2. Expand to DNF, bounded by the per-rule subrule limit
 *   3. Number subrules globally in rule order, then expansion order
 *   4. Build the per-tag inverted index over all subrules
 *
 * Subrule ids are dense indexes into RuleSet.Subrules. Because they are
 * assigned rule by rule, sorting ids also sorts by (rule position,
 * ordinal), which evaluation relies on to report matches in rule order.
 *
 * Compile stops at the first bad rule. CompileLenient skips bad rules and
 * returns their errors, except invariant violations, which always abort:
 * those mean the compiler itself is wrong and any RuleSet it produced
 * could match incorrectly.
 *
 * Nothing in a RuleSet is written after Compile returns; evaluators share
 * it freely. The counter pool is the only mutable member and is safe for
 * concurrent use.
 */

// SubruleID is the dense index of a subrule in RuleSet.Subrules.
type SubruleID int32

// Subrule is one AND-group of a rule. It is satisfied when all
// ExpectedCount clauses hold.
type Subrule struct {
	ID            SubruleID
	Rule          int // index into RuleSet.Rules
	Ordinal       int // 1-based position within the rule
	Clauses       []types.Clause
	ExpectedCount int
}

// Name returns the per-rule label of the subrule, SR1, SR2, ...
func (s Subrule) Name() string {
	return fmt.Sprintf("SR%d", s.Ordinal)
}

// Rule is one compiled source line.
type Rule struct {
	ID       string
	File     string
	Line     int
	Source   string
	Subrules []SubruleID
}

// RuleSet is the immutable result of compiling a set of rule lines.
type RuleSet struct {
	ID         types.RuleSetID
	CompiledAt time.Time
	Rules      []Rule
	Subrules   []Subrule
	Index      *Index

	byID map[string]int
	pool sync.Pool
}

// Stats summarises a RuleSet.
type Stats struct {
	Rules      int
	Subrules   int
	Tags       int
	EqKeys     int
	NeqEntries int
	Prefilter  bool
}

type compileConfig struct {
	maxSubrules int
	indexOpts   []IndexOption
}

// CompileOption configures Compile and CompileLenient.
type CompileOption func(*compileConfig)

// WithMaxSubrules overrides the per-rule DNF expansion limit.
func WithMaxSubrules(n int) CompileOption {
	return func(c *compileConfig) {
		c.maxSubrules = n
	}
}

// WithIndexOptions passes options through to BuildIndex.
func WithIndexOptions(opts ...IndexOption) CompileOption {
	return func(c *compileConfig) {
		c.indexOpts = append(c.indexOpts, opts...)
	}
}

// Compile builds a RuleSet from lines, failing on the first invalid rule.
// The returned error is a *types.RuleError naming the rule, file and line.
// A nil vocab disables tag and value validation.
func Compile(lines []types.RuleLine, vocab *types.Vocabulary, opts ...CompileOption) (*RuleSet, error) {
	rs, rejected, err := compile(lines, vocab, false, opts)
	if err != nil {
		return nil, err
	}
	if len(rejected) > 0 {
		return nil, rejected[0]
	}
	return rs, nil
}

// CompileLenient builds a RuleSet from the valid lines and returns one error
// per rejected line. The final error is non-nil only for invariant
// violations, in which case no RuleSet is returned.
func CompileLenient(lines []types.RuleLine, vocab *types.Vocabulary, opts ...CompileOption) (*RuleSet, []error, error) {
	return compile(lines, vocab, true, opts)
}

func compile(lines []types.RuleLine, vocab *types.Vocabulary, lenient bool, opts []CompileOption) (*RuleSet, []error, error) {
	cfg := compileConfig{maxSubrules: types.MaxSubrulesPerRule}
	for _, opt := range opts {
		opt(&cfg)
	}

	rs := &RuleSet{
		ID:         types.NewRuleSetID(),
		CompiledAt: time.Now().UTC(),
		Rules:      make([]Rule, 0, len(lines)),
		byID:       make(map[string]int, len(lines)),
	}

	var rejected []error
	for i, line := range lines {
		if line.ID == "" {
			line.ID = types.DefaultRuleID(i + 1)
		}

		conjs, err := compileLine(line, vocab, cfg.maxSubrules, rs.byID)
		if err != nil {
			if errors.Is(err, types.ErrInvariant) {
				return nil, nil, err
			}
			rejected = append(rejected, err)
			if !lenient {
				return nil, rejected, nil
			}
			continue
		}

		ruleIdx := len(rs.Rules)
		rule := Rule{
			ID:       line.ID,
			File:     line.File,
			Line:     line.Line,
			Source:   line.Source,
			Subrules: make([]SubruleID, 0, len(conjs)),
		}
		for ord, conj := range conjs {
			id := SubruleID(len(rs.Subrules))
			rs.Subrules = append(rs.Subrules, Subrule{
				ID:            id,
				Rule:          ruleIdx,
				Ordinal:       ord + 1,
				Clauses:       conj,
				ExpectedCount: len(conj),
			})
			rule.Subrules = append(rule.Subrules, id)
		}
		rs.Rules = append(rs.Rules, rule)
		rs.byID[line.ID] = ruleIdx
	}

	rs.Index = BuildIndex(rs.Subrules, cfg.indexOpts...)
	n := len(rs.Subrules)
	rs.pool.New = func() any {
		return &counters{counts: make([]uint16, n)}
	}
	return rs, rejected, nil
}

func compileLine(line types.RuleLine, vocab *types.Vocabulary, limit int, seen map[string]int) ([]Conjunction, error) {
	if _, dup := seen[line.ID]; dup {
		return nil, types.Locate(&types.RuleError{
			Kind: types.ErrDuplicateRule,
			Msg:  fmt.Sprintf("rule id %q is already defined", line.ID),
		}, line)
	}

	tree, err := Parse(line.Source, vocab)
	if err != nil {
		return nil, types.Locate(err, line)
	}

	conjs, err := ToDNF(tree, limit)
	if err != nil {
		return nil, types.Locate(err, line)
	}
	for _, c := range conjs {
		if len(c) == 0 {
			return nil, types.Locate(invariant("empty conjunction"), line)
		}
	}
	return conjs, nil
}

// Rule returns the compiled rule with the given id.
func (rs *RuleSet) Rule(id string) (*Rule, bool) {
	i, ok := rs.byID[id]
	if !ok {
		return nil, false
	}
	return &rs.Rules[i], true
}

// SubruleCount returns the total number of subrules across all rules.
func (rs *RuleSet) SubruleCount() int {
	return len(rs.Subrules)
}

// Stats reports the size of the rule set and its index.
func (rs *RuleSet) Stats() Stats {
	return Stats{
		Rules:      len(rs.Rules),
		Subrules:   len(rs.Subrules),
		Tags:       len(rs.Index.Tags),
		EqKeys:     rs.Index.EqKeys(),
		NeqEntries: rs.Index.NeqEntries(),
		Prefilter:  rs.Index.HasPrefilter(),
	}
}
