// internal/types/rules.go
package types

/*
 * Domain types for rule compilation.
 *
 * A Clause is the atom of the rule DSL: one tag compared against one value
 * with either equality or inequality. Clauses are produced by the parser in
 * internal/rules and are immutable afterwards; tag and value are already
 * case-normalised when a Clause exists.
 *
 * Key types:
 *   - Operator: EQ ('=') or NEQ ('!')
 *   - Clause: (tag, operator, value)
 */

// Operator is the comparison applied by a clause.
type Operator int

const (
	OpEq Operator = iota
	OpNeq
)

// Symbol returns the DSL spelling of the operator.
func (op Operator) Symbol() string {
	if op == OpNeq {
		return "!"
	}
	return "="
}

func (op Operator) String() string {
	switch op {
	case OpEq:
		return "EQ"
	case OpNeq:
		return "NEQ"
	default:
		return "UNKNOWN"
	}
}

// Clause is one atomic tag comparison.
type Clause struct {
	Tag   string
	Op    Operator
	Value string
}

// String renders the clause in DSL form, e.g. colour=red or shape!circle.
func (c Clause) String() string {
	return c.Tag + c.Op.Symbol() + c.Value
}
