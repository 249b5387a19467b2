// internal/rules/ast.go
package rules

import (
	"strings"

	"github.com/solatis/tagrules/internal/types"
)

// Node is an expression tree node: *Atom, *And or *Or.
// The set is closed; ToDNF rejects anything else as an invariant violation.
type Node interface {
	node()
	String() string
}

// Atom wraps a single clause.
type Atom struct {
	Clause types.Clause
}

// And requires every child to hold.
type And struct {
	Children []Node
}

// Or requires at least one child to hold.
type Or struct {
	Children []Node
}

func (*Atom) node() {}
func (*And) node()  {}
func (*Or) node()   {}

func (a *Atom) String() string { return a.Clause.String() }
func (a *And) String() string  { return join(a.Children, " & ") }
func (o *Or) String() string   { return join(o.Children, " | ") }

func join(children []Node, sep string) string {
	parts := make([]string, len(children))
	for i, c := range children {
		switch c.(type) {
		case *Atom:
			parts[i] = c.String()
		default:
			parts[i] = "(" + c.String() + ")"
		}
	}
	return strings.Join(parts, sep)
}
