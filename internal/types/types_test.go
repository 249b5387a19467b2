package types

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestObjectRecord_Normalize(t *testing.T) {
	obj := ObjectRecord{
		ID:   "o1",
		Type: "shapes",
		Attributes: map[string][]string{
			"Colour": {" Red", "red", "BLUE", ""},
			"colour": {"green", "blue"},
			"  ":     {"x"},
			"shape":  {"", " "},
		},
	}
	got := obj.Normalize()

	if len(got.Attributes) != 1 {
		t.Fatalf("Normalize() attributes = %v, want only colour", got.Attributes)
	}
	values := got.Attributes["colour"]
	seen := make(map[string]int)
	for _, v := range values {
		seen[v]++
	}
	if len(values) != 3 || seen["red"] != 1 || seen["blue"] != 1 || seen["green"] != 1 {
		t.Errorf("Normalize() colour = %v, want red, blue, green once each", values)
	}
	if obj.Attributes["Colour"][0] != " Red" {
		t.Errorf("Normalize() mutated its receiver")
	}
}

func TestVocabulary(t *testing.T) {
	v := NewVocabulary()
	v.Add("Colour", "Red", "blue")
	v.Add("colour", "green", "RED")
	v.Add("shape")
	v.Add("", "ignored")

	if v.Len() != 2 {
		t.Errorf("Len() = %d, want 2", v.Len())
	}
	if !v.HasTag("COLOUR") || !v.HasTag("shape") || v.HasTag("size") {
		t.Errorf("HasTag() results wrong for %v", v.Tags())
	}
	if !v.HasValue("colour", "Green") || v.HasValue("colour", "purple") || v.HasValue("size", "red") {
		t.Errorf("HasValue() results wrong for %v", v.Values("colour"))
	}
	if got := fmt.Sprint(v.Tags()); got != "[colour shape]" {
		t.Errorf("Tags() = %s, want [colour shape]", got)
	}
	if got := fmt.Sprint(v.Values("colour")); got != "[blue green red]" {
		t.Errorf("Values(colour) = %s, want [blue green red]", got)
	}
	if got := v.Values("shape"); len(got) != 0 {
		t.Errorf("Values(shape) = %v, want empty", got)
	}
}

func TestVocabulary_Suggestions(t *testing.T) {
	v := NewVocabulary()
	v.Add("colour", "red", "green", "grey", "gold", "garnet")
	v.Add("cost", "low")

	tests := []struct {
		name string
		got  []string
		want string
	}{
		{"tag typo", v.SuggestTags("color"), "[colour]"},
		{"tag shared first letter", v.SuggestTags("cxyz"), "[colour cost]"},
		{"tag never values", v.SuggestTags("colour=r"), "[colour]"},
		{"no tag match", v.SuggestTags("zzz"), "[]"},
		{"value typo", v.SuggestValues("colour", "rde"), "[red]"},
		{"value capped", v.SuggestValues("colour", "gz"), "[garnet gold green]"},
		{"unknown tag values", v.SuggestValues("size", "big"), "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fmt.Sprint(tt.got); got != tt.want {
				t.Errorf("suggestions = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRuleError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *RuleError
		want string
	}{
		{
			name: "fully located",
			err: &RuleError{
				Kind: ErrUnknownTag, RuleID: "R3", File: "a.rules", Line: 4, Pos: 2,
				Msg: `tag "color" is not defined`, Suggestions: []string{"colour"},
			},
			want: `a.rules:4:2: rule R3: unknown tag: tag "color" is not defined (did you mean colour?)`,
		},
		{
			name: "position only",
			err:  &RuleError{Kind: ErrSyntax, Pos: 7, Msg: "empty rule"},
			want: "7: syntax error: empty rule",
		},
		{
			name: "bare",
			err:  &RuleError{Kind: ErrInvariant},
			want: "internal invariant violated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocate(t *testing.T) {
	line := RuleLine{ID: "R2", File: "x.rules", Line: 9}

	err := Locate(&RuleError{Kind: ErrSyntax, Pos: 3}, line)
	var re *RuleError
	if !errors.As(err, &re) {
		t.Fatalf("Locate() = %T, want *RuleError", err)
	}
	if re.RuleID != "R2" || re.File != "x.rules" || re.Line != 9 || re.Pos != 3 {
		t.Errorf("Locate() = %+v, want R2 x.rules:9:3", re)
	}
	if !errors.Is(err, ErrSyntax) {
		t.Errorf("errors.Is(Locate(), ErrSyntax) = false, want true")
	}

	plain := errors.New("boom")
	if err := Locate(plain, line); !errors.Is(err, plain) {
		t.Errorf("Locate(plain) = %v, want wrapping boom", err)
	}
}

func TestRuleSetID(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := NewRuleSetID()

	parsed, err := ParseRuleSetID(string(id))
	if err != nil {
		t.Fatalf("ParseRuleSetID() error = %v, want nil", err)
	}
	if parsed != id {
		t.Errorf("ParseRuleSetID() = %s, want %s", parsed, id)
	}
	if ts := RuleSetIDTime(id); ts.Before(before) {
		t.Errorf("RuleSetIDTime() = %v, want after %v", ts, before)
	}
	if _, err := ParseRuleSetID("not-a-uuid"); err == nil {
		t.Errorf("ParseRuleSetID(invalid) error = nil, want error")
	}
	if !RuleSetIDTime("bogus").IsZero() {
		t.Errorf("RuleSetIDTime(bogus) not zero")
	}
	if NewReportID() == NewReportID() {
		t.Errorf("NewReportID() returned duplicates")
	}
}

func TestDefaultRuleID(t *testing.T) {
	if got := DefaultRuleID(12); got != "R12" {
		t.Errorf("DefaultRuleID(12) = %s, want R12", got)
	}
}

func TestOperator(t *testing.T) {
	c := Clause{Tag: "shape", Op: OpNeq, Value: "circle"}
	if c.String() != "shape!circle" || c.Op.String() != "NEQ" {
		t.Errorf("Clause = %s %s, want shape!circle NEQ", c.String(), c.Op.String())
	}
	if OpEq.Symbol() != "=" || Operator(9).String() != "UNKNOWN" {
		t.Errorf("Operator symbols wrong")
	}
}

func TestKindName(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&RuleError{Kind: ErrUnknownTag, Msg: "x"}, "unknown_tag"},
		{fmt.Errorf("load: %w", ErrTagSyntax), "tag_syntax"},
		{ErrNoRuleSet, "no_rule_set"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		if got := KindName(tt.err); got != tt.want {
			t.Errorf("KindName(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
