// internal/rules/dnf.go
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/solatis/tagrules/internal/types"
)

/*
 * Disjunctive normal form by structural distribution.
 *
 *   Atom(c)       -> [[c]]
 *   Or(x, y, ...) -> dnf(x) ++ dnf(y) ++ ...
 *   And(x, y,...) -> cartesian product, each combination concatenated
 *
 * The product is enumerated with the leftmost child varying slowest, so
 * (a|b) & (c|d) yields ac, ad, bc, bd. Subrule ids follow this order.
 *
 * Two reductions keep counting exact:
 *   - a clause repeated inside one conjunction is kept once (A & A = A),
 *     so expected_count is the number of distinct clauses;
 *   - a conjunction whose clause set equals an earlier one is dropped.
 * Neither changes which objects match.
 *
 * The expansion size is computed from the tree before any slice is built;
 * a rule over the limit fails without allocating its product.
 */

// Conjunction is one AND-group of clauses produced by ToDNF.
type Conjunction []types.Clause

// ToDNF expands n into an ordered list of conjunctions.
// limit bounds the number of conjunctions before de-duplication; limit <= 0
// means types.MaxSubrulesPerRule.
func ToDNF(n Node, limit int) ([]Conjunction, error) {
	if limit <= 0 {
		limit = types.MaxSubrulesPerRule
	}

	size, err := dnfSize(n, limit)
	if err != nil {
		return nil, err
	}
	if size > limit {
		return nil, &types.RuleError{
			Kind: types.ErrTooManySubrules,
			Msg:  fmt.Sprintf("expansion exceeds limit of %d", limit),
		}
	}

	conjs, err := distribute(n)
	if err != nil {
		return nil, err
	}

	out := make([]Conjunction, 0, len(conjs))
	seen := make(map[string]struct{}, len(conjs))
	for _, c := range conjs {
		c = dedupeClauses(c)
		key := conjunctionKey(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

// dnfSize returns the expansion size of n, saturating at limit+1.
func dnfSize(n Node, limit int) (int, error) {
	switch v := n.(type) {
	case *Atom:
		if v == nil {
			return 0, invariant("nil atom")
		}
		return 1, nil
	case *Or:
		if v == nil || len(v.Children) == 0 {
			return 0, invariant("empty or node")
		}
		total := 0
		for _, c := range v.Children {
			s, err := dnfSize(c, limit)
			if err != nil {
				return 0, err
			}
			total += s
			if total > limit {
				return limit + 1, nil
			}
		}
		return total, nil
	case *And:
		if v == nil || len(v.Children) == 0 {
			return 0, invariant("empty and node")
		}
		total := 1
		for _, c := range v.Children {
			s, err := dnfSize(c, limit)
			if err != nil {
				return 0, err
			}
			total *= s
			if total > limit {
				return limit + 1, nil
			}
		}
		return total, nil
	default:
		return 0, invariant(fmt.Sprintf("unexpected node %T", n))
	}
}

func distribute(n Node) ([]Conjunction, error) {
	switch v := n.(type) {
	case *Atom:
		return []Conjunction{{v.Clause}}, nil
	case *Or:
		var out []Conjunction
		for _, c := range v.Children {
			sub, err := distribute(c)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	case *And:
		acc := []Conjunction{{}}
		for _, c := range v.Children {
			sub, err := distribute(c)
			if err != nil {
				return nil, err
			}
			next := make([]Conjunction, 0, len(acc)*len(sub))
			for _, left := range acc {
				for _, right := range sub {
					joined := make(Conjunction, 0, len(left)+len(right))
					joined = append(joined, left...)
					joined = append(joined, right...)
					next = append(next, joined)
				}
			}
			acc = next
		}
		return acc, nil
	default:
		return nil, invariant(fmt.Sprintf("unexpected node %T", n))
	}
}

func dedupeClauses(c Conjunction) Conjunction {
	out := c[:0:0]
	seen := make(map[types.Clause]struct{}, len(c))
	for _, clause := range c {
		if _, dup := seen[clause]; dup {
			continue
		}
		seen[clause] = struct{}{}
		out = append(out, clause)
	}
	return out
}

// conjunctionKey is order-insensitive: equal clause sets share a key.
func conjunctionKey(c Conjunction) string {
	parts := make([]string, len(c))
	for i, clause := range c {
		parts[i] = clause.Tag + "\x00" + clause.Op.Symbol() + "\x00" + clause.Value
	}
	sort.Strings(parts)
	return strings.Join(parts, "\x01")
}

func invariant(msg string) error {
	return &types.RuleError{Kind: types.ErrInvariant, Msg: msg}
}
