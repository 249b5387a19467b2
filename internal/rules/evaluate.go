// internal/rules/evaluate.go
package rules

import (
	"sort"

	"github.com/solatis/tagrules/internal/types"
)

/*
 * Counting evaluation of one object against a RuleSet.
 *
 * For every tag the object carries:
 *   - each held value v bumps every subrule listed under Eq[v]
 *   - each Neq entry (forbidden, sr) bumps sr once if forbidden is not
 *     among the held values
 * A subrule is satisfied when its count equals ExpectedCount; a rule
 * matches when any of its subrules is satisfied.
 *
 * Multi-valued attributes: EQ holds if any value equals the clause value,
 * NEQ holds if the tag is present and every value differs. Values are
 * de-duplicated by ObjectRecord.Normalize and clauses inside a subrule by
 * ToDNF, so no clause adds more than one to its subrule's count.
 *
 * Tags absent from the object add nothing; subrules needing them stay
 * below ExpectedCount. There is no evaluation-time error.
 *
 * Counts live in a pooled slice owned by one call. Only touched slots are
 * reset on release, so the cost of a call follows the object's attributes
 * and the clauses on those tags, not the size of the rule set.
 */

// RuleMatch names a satisfied rule and the subrules that satisfied it.
type RuleMatch struct {
	RuleID   string
	Subrules []string // SR1, SR2, ... in ascending order
}

// MatchResult is the outcome of evaluating one object.
type MatchResult struct {
	RuleSetID  types.RuleSetID
	ObjectID   string
	ObjectType string
	Rules      []RuleMatch // in rule order
}

// Matched reports whether any rule matched.
func (m MatchResult) Matched() bool {
	return len(m.Rules) > 0
}

// RuleIDs returns the ids of the matched rules in rule order.
func (m MatchResult) RuleIDs() []string {
	ids := make([]string, len(m.Rules))
	for i, r := range m.Rules {
		ids[i] = r.RuleID
	}
	return ids
}

// SubruleTrace is the per-subrule count reported by Explain.
type SubruleTrace struct {
	RuleID    string
	Subrule   string
	Clauses   []types.Clause
	Actual    int
	Expected  int
	Satisfied bool
}

type counters struct {
	counts  []uint16
	touched []SubruleID
}

func (c *counters) inc(id SubruleID) {
	if c.counts[id] == 0 {
		c.touched = append(c.touched, id)
	}
	c.counts[id]++
}

func (c *counters) reset() {
	for _, id := range c.touched {
		c.counts[id] = 0
	}
	c.touched = c.touched[:0]
}

func (rs *RuleSet) acquire() *counters {
	return rs.pool.Get().(*counters)
}

func (rs *RuleSet) release(c *counters) {
	c.reset()
	rs.pool.Put(c)
}

// count accumulates clause hits for obj, which must already be normalised.
func (rs *RuleSet) count(obj types.ObjectRecord, c *counters) {
	for tag, values := range obj.Attributes {
		ti := rs.Index.Tags[tag]
		if ti == nil || len(values) == 0 {
			continue
		}
		for _, v := range values {
			for _, id := range rs.Index.lookupEq(ti, tag, v) {
				c.inc(id)
			}
		}
		for _, e := range ti.Neq {
			if !holds(values, e.Value) {
				c.inc(e.Subrule)
			}
		}
	}
}

// Evaluate reports which rules of rs the object satisfies.
// Tag names and values are normalised before matching.
func Evaluate(rs *RuleSet, obj types.ObjectRecord) MatchResult {
	obj = obj.Normalize()
	result := MatchResult{
		RuleSetID:  rs.ID,
		ObjectID:   obj.ID,
		ObjectType: obj.Type,
	}
	if len(rs.Subrules) == 0 {
		return result
	}

	c := rs.acquire()
	defer rs.release(c)
	rs.count(obj, c)

	var satisfied []SubruleID
	for _, id := range c.touched {
		if int(c.counts[id]) == rs.Subrules[id].ExpectedCount {
			satisfied = append(satisfied, id)
		}
	}
	if len(satisfied) == 0 {
		return result
	}
	sort.Slice(satisfied, func(i, j int) bool { return satisfied[i] < satisfied[j] })

	for _, id := range satisfied {
		sr := rs.Subrules[id]
		rule := rs.Rules[sr.Rule]
		n := len(result.Rules)
		if n == 0 || result.Rules[n-1].RuleID != rule.ID {
			result.Rules = append(result.Rules, RuleMatch{RuleID: rule.ID})
			n++
		}
		result.Rules[n-1].Subrules = append(result.Rules[n-1].Subrules, sr.Name())
	}
	return result
}

// Explain returns the count of every subrule for obj, in subrule order.
func Explain(rs *RuleSet, obj types.ObjectRecord) []SubruleTrace {
	obj = obj.Normalize()
	if len(rs.Subrules) == 0 {
		return nil
	}

	c := rs.acquire()
	defer rs.release(c)
	rs.count(obj, c)

	traces := make([]SubruleTrace, len(rs.Subrules))
	for i, sr := range rs.Subrules {
		actual := int(c.counts[sr.ID])
		traces[i] = SubruleTrace{
			RuleID:    rs.Rules[sr.Rule].ID,
			Subrule:   sr.Name(),
			Clauses:   sr.Clauses,
			Actual:    actual,
			Expected:  sr.ExpectedCount,
			Satisfied: actual == sr.ExpectedCount,
		}
	}
	return traces
}

func holds(values []string, v string) bool {
	for _, have := range values {
		if have == v {
			return true
		}
	}
	return false
}
