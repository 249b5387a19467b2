// Package types provides domain models shared across tagrules components.
//
// The compiler, loaders, store and gRPC layers all speak in these types so
// that none of them needs to import another. Everything here is plain data:
// case normalisation helpers live next to the types they normalise, but no
// type in this package knows how rules are compiled or evaluated.
package types

import (
	"fmt"
	"strings"
)

// RuleLine is one raw DSL rule as handed to the compiler.
// File and Line locate the rule for error reporting; both are optional.
type RuleLine struct {
	ID     string // stable rule identifier, defaults to R<n>
	File   string // source file, empty for ad-hoc rules
	Line   int    // 1-based line in File, 0 when unknown
	Source string // DSL text without the leading '-' marker
}

// DefaultRuleID names the rule at 1-based position n.
func DefaultRuleID(n int) string {
	return fmt.Sprintf("R%d", n)
}

// ObjectRecord is one tagged object evaluated against a rule set.
// An attribute may carry several values for the same tag.
type ObjectRecord struct {
	ID         string
	Type       string
	Attributes map[string][]string
}

// Normalize returns a copy with lower-cased, trimmed tag names and values.
// Empty values are dropped and duplicate values collapse to their first
// occurrence; tags left without values are removed.
func (o ObjectRecord) Normalize() ObjectRecord {
	out := ObjectRecord{
		ID:         o.ID,
		Type:       o.Type,
		Attributes: make(map[string][]string, len(o.Attributes)),
	}
	for tag, values := range o.Attributes {
		name := Normalize(tag)
		if name == "" {
			continue
		}
		existing := out.Attributes[name]
		for _, v := range values {
			nv := Normalize(v)
			if nv == "" || contains(existing, nv) {
				continue
			}
			existing = append(existing, nv)
		}
		if len(existing) > 0 {
			out.Attributes[name] = existing
		}
	}
	return out
}

// Normalize is the case normalisation applied to every tag name and value.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func contains(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}

// Resource limits enforced by the compiler and loaders.
const (
	// MaxRuleLength bounds a single rule line in bytes.
	MaxRuleLength = 4096

	// MaxSubrulesPerRule caps DNF expansion of one rule.
	// (a,b) & (c,d) & ... grows multiplicatively; 4096 disjuncts keeps the
	// index for one rule within a few hundred KB.
	MaxSubrulesPerRule = 4096

	// MaxAttributeValues bounds the values one object may hold for a tag.
	MaxAttributeValues = 256
)
