// internal/rules/evaluate_test.go
package rules

import (
	"fmt"
	"testing"

	"github.com/solatis/tagrules/internal/types"
)

func object(id string, attrs map[string][]string) types.ObjectRecord {
	return types.ObjectRecord{ID: id, Type: "shapes", Attributes: attrs}
}

func TestEvaluate_Scenarios(t *testing.T) {
	tests := []struct {
		name  string
		rule  string
		attrs map[string][]string
		want  []RuleMatch
	}{
		{
			name:  "comma shorthand first value",
			rule:  "colour=red,blue",
			attrs: map[string][]string{"colour": {"red"}},
			want:  []RuleMatch{{RuleID: "R1", Subrules: []string{"SR1"}}},
		},
		{
			name:  "neq satisfied by different value",
			rule:  "(colour=blue,red) & shape!circle",
			attrs: map[string][]string{"colour": {"blue"}, "shape": {"square"}},
			want:  []RuleMatch{{RuleID: "R1", Subrules: []string{"SR1"}}},
		},
		{
			name:  "neq and eq both fail",
			rule:  "(colour=blue,red) & shape!circle",
			attrs: map[string][]string{"colour": {"green"}, "shape": {"circle"}},
			want:  nil,
		},
		{
			name:  "second disjunct satisfied",
			rule:  "status=active & (priority=high | type=urgent)",
			attrs: map[string][]string{"status": {"active"}, "type": {"urgent"}},
			want:  []RuleMatch{{RuleID: "R1", Subrules: []string{"SR2"}}},
		},
		{
			name:  "missing tag fails clause",
			rule:  "colour=red & shape=circle",
			attrs: map[string][]string{"colour": {"red"}},
			want:  nil,
		},
		{
			name:  "missing tag fails neq",
			rule:  "shape!circle",
			attrs: map[string][]string{"colour": {"red"}},
			want:  nil,
		},
		{
			name:  "extra attributes ignored",
			rule:  "colour=red",
			attrs: map[string][]string{"colour": {"red"}, "owner": {"alice"}},
			want:  []RuleMatch{{RuleID: "R1", Subrules: []string{"SR1"}}},
		},
		{
			name:  "case insensitive object",
			rule:  "colour=red",
			attrs: map[string][]string{"Colour": {" RED "}},
			want:  []RuleMatch{{RuleID: "R1", Subrules: []string{"SR1"}}},
		},
		{
			name:  "all satisfied subrules reported",
			rule:  "colour=red | shape=circle",
			attrs: map[string][]string{"colour": {"red"}, "shape": {"circle"}},
			want:  []RuleMatch{{RuleID: "R1", Subrules: []string{"SR1", "SR2"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := mustCompile(t, tt.rule)
			got := Evaluate(rs, object("o1", tt.attrs))
			assertMatches(t, got, tt.want)
		})
	}
}

func assertMatches(t *testing.T, got MatchResult, want []RuleMatch) {
	t.Helper()
	if len(got.Rules) != len(want) {
		t.Fatalf("Evaluate() rules = %+v, want %+v", got.Rules, want)
	}
	for i := range want {
		if got.Rules[i].RuleID != want[i].RuleID || !equalStrings(got.Rules[i].Subrules, want[i].Subrules) {
			t.Errorf("Evaluate() rule %d = %+v, want %+v", i, got.Rules[i], want[i])
		}
	}
}

func TestEvaluate_MultiValuedPolicy(t *testing.T) {
	tests := []struct {
		name   string
		rule   string
		values []string
		match  bool
	}{
		{"eq any value matches", "colour=red", []string{"green", "red"}, true},
		{"eq no value matches", "colour=red", []string{"green", "blue"}, false},
		{"neq all differ", "colour!red", []string{"green", "blue"}, true},
		{"neq one equal fails", "colour!red", []string{"green", "red"}, false},
		{"two eq clauses on one tag", "colour=red & colour=blue", []string{"red", "blue"}, true},
		{"eq and neq on one tag", "colour=red & colour!blue", []string{"red", "green"}, true},
		{"eq and neq contradicted", "colour=red & colour!blue", []string{"red", "blue"}, false},
		{"duplicate values count once", "colour=red & shape=circle", []string{"red", "red", "RED"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := mustCompile(t, tt.rule)
			got := Evaluate(rs, object("o1", map[string][]string{"colour": tt.values}))
			if got.Matched() != tt.match {
				t.Errorf("Evaluate(%v).Matched() = %v, want %v", tt.values, got.Matched(), tt.match)
			}
		})
	}
}

func TestEvaluate_RuleOrder(t *testing.T) {
	rs := mustCompile(t, "shape=circle", "colour=red", "status=active", "colour=red,blue")
	got := Evaluate(rs, object("o1", map[string][]string{
		"colour": {"red"},
		"shape":  {"circle"},
	}))

	want := []string{"R1", "R2", "R4"}
	if !equalStrings(got.RuleIDs(), want) {
		t.Errorf("Evaluate().RuleIDs() = %v, want %v", got.RuleIDs(), want)
	}
	if got.ObjectID != "o1" || got.ObjectType != "shapes" || got.RuleSetID != rs.ID {
		t.Errorf("Evaluate() identity = %q, %q, %q", got.ObjectID, got.ObjectType, got.RuleSetID)
	}
}

func TestEvaluate_CountersResetBetweenCalls(t *testing.T) {
	rs := mustCompile(t, "colour=red & shape=circle")

	half := object("o1", map[string][]string{"colour": {"red"}})
	other := object("o2", map[string][]string{"shape": {"circle"}})

	for i := 0; i < 10; i++ {
		if Evaluate(rs, half).Matched() {
			t.Fatalf("Evaluate(half) matched on iteration %d", i)
		}
		if Evaluate(rs, other).Matched() {
			t.Fatalf("Evaluate(other) matched on iteration %d", i)
		}
	}
}

func TestExplain(t *testing.T) {
	rs := mustCompile(t, "status=active & (priority=high | type=urgent)")
	traces := Explain(rs, object("o1", map[string][]string{"status": {"active"}, "type": {"urgent"}}))

	if len(traces) != 2 {
		t.Fatalf("len(Explain()) = %d, want 2", len(traces))
	}
	want := []struct {
		name      string
		actual    int
		expected  int
		satisfied bool
	}{
		{"SR1", 1, 2, false},
		{"SR2", 2, 2, true},
	}
	for i, w := range want {
		tr := traces[i]
		if tr.RuleID != "R1" || tr.Subrule != w.name || tr.Actual != w.actual || tr.Expected != w.expected || tr.Satisfied != w.satisfied {
			t.Errorf("Explain()[%d] = %+v, want %s %d/%d satisfied=%v", i, tr, w.name, w.actual, w.expected, w.satisfied)
		}
	}
}

func TestEvaluate_BloomPrefilter(t *testing.T) {
	var srcs []string
	vocab := types.NewVocabulary()
	for i := 0; i < 50; i++ {
		v := fmt.Sprintf("v%d", i)
		vocab.Add("code", v)
		srcs = append(srcs, "code="+v)
	}

	lines := ruleLines(srcs...)
	filtered, err := Compile(lines, vocab, WithIndexOptions(WithBloomThreshold(10)))
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	plain, err := Compile(lines, vocab, WithIndexOptions(WithBloomThreshold(0)))
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	if !filtered.Stats().Prefilter || plain.Stats().Prefilter {
		t.Fatalf("Prefilter = %v, %v, want true, false", filtered.Stats().Prefilter, plain.Stats().Prefilter)
	}

	for _, v := range []string{"v0", "v17", "v49", "v50", "nope"} {
		obj := object(v, map[string][]string{"code": {v}})
		a, b := Evaluate(filtered, obj), Evaluate(plain, obj)
		if !equalStrings(a.RuleIDs(), b.RuleIDs()) {
			t.Errorf("Evaluate(%s) with prefilter = %v, without = %v", v, a.RuleIDs(), b.RuleIDs())
		}
	}
}
