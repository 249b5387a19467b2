package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for tagrules operations.
var (
	// ErrSyntax indicates malformed DSL text: unbalanced parentheses, empty
	// clause, dangling operator, empty rule or unrecognised character.
	ErrSyntax = errors.New("syntax error")

	// ErrUnknownTag indicates a clause names a tag absent from the vocabulary.
	ErrUnknownTag = errors.New("unknown tag")

	// ErrUnknownValue indicates a clause uses a value not declared for its tag.
	ErrUnknownValue = errors.New("unknown value")

	// ErrTooManySubrules indicates DNF expansion exceeds MaxSubrulesPerRule.
	ErrTooManySubrules = errors.New("rule expands to too many subrules")

	// ErrRuleTooLong indicates a rule line exceeds MaxRuleLength.
	ErrRuleTooLong = errors.New("rule exceeds maximum length")

	// ErrInvariant indicates a compiler defect, never a user error.
	ErrInvariant = errors.New("internal invariant violated")

	// ErrTagSyntax indicates a malformed tag definition line.
	ErrTagSyntax = errors.New("tag definition error")

	// ErrObjectSyntax indicates a malformed object document.
	ErrObjectSyntax = errors.New("object definition error")

	// ErrDuplicateRule indicates an identical rule already exists in the file.
	ErrDuplicateRule = errors.New("rule already exists")

	// ErrNoRuleSet indicates evaluation was requested before any rule set was published.
	ErrNoRuleSet = errors.New("no rule set loaded")
)

// RuleError locates a compile-time failure in a rule.
// Kind is one of the sentinels above; errors.Is matches against it.
type RuleError struct {
	Kind        error
	RuleID      string
	File        string
	Line        int
	Pos         int    // 1-based byte column in the rule text, 0 when unknown
	Token       string // offending token, if any
	Msg         string
	Suggestions []string
}

func (e *RuleError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		b.WriteByte(':')
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, "%d:", e.Line)
	}
	if e.Pos > 0 {
		fmt.Fprintf(&b, "%d:", e.Pos)
	}
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	if e.RuleID != "" {
		fmt.Fprintf(&b, "rule %s: ", e.RuleID)
	}
	b.WriteString(e.Kind.Error())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, " (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return b.String()
}

func (e *RuleError) Unwrap() error {
	return e.Kind
}

// Locate fills in rule identity on a RuleError produced without it.
// Non-RuleError values are wrapped so the rule is still named.
func Locate(err error, line RuleLine) error {
	var re *RuleError
	if errors.As(err, &re) {
		re.RuleID = line.ID
		re.File = line.File
		re.Line = line.Line
		return re
	}
	return &RuleError{
		Kind:   err,
		RuleID: line.ID,
		File:   line.File,
		Line:   line.Line,
	}
}

var kindNames = []struct {
	err  error
	name string
}{
	{ErrSyntax, "syntax"},
	{ErrUnknownTag, "unknown_tag"},
	{ErrUnknownValue, "unknown_value"},
	{ErrTooManySubrules, "too_many_subrules"},
	{ErrRuleTooLong, "rule_too_long"},
	{ErrInvariant, "invariant"},
	{ErrTagSyntax, "tag_syntax"},
	{ErrObjectSyntax, "object_syntax"},
	{ErrDuplicateRule, "duplicate_rule"},
	{ErrNoRuleSet, "no_rule_set"},
}

// KindName returns a stable snake_case label for the sentinel err wraps,
// or "other". Used as a metric label and in API responses.
func KindName(err error) string {
	for _, k := range kindNames {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "other"
}
