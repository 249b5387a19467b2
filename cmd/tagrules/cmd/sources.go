package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/solatis/tagrules/internal/loader"
	"github.com/solatis/tagrules/internal/rules"
	"github.com/solatis/tagrules/internal/types"
)

func loadSources() (*loader.Sources, error) {
	src, err := loader.Load(cfg.Rules.Dir, cfg.Rules.TagsGlob, cfg.Rules.RulesGlob)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", cfg.Rules.Dir, err)
	}
	return src, nil
}

// compileSources compiles leniently so every invalid rule is reported,
// not only the first.
func compileSources(src *loader.Sources) (*rules.RuleSet, []error, error) {
	rs, rejected, err := rules.CompileLenient(src.Rules, src.Vocabulary)
	if err != nil {
		return nil, nil, err
	}
	return rs, rejected, nil
}

// printRuleErrors writes each error, with a caret under the offending
// column when the rule text is among lines.
func printRuleErrors(w io.Writer, errs []error, lines []types.RuleLine) {
	text := make(map[string]string, len(lines))
	for _, l := range lines {
		text[l.ID] = l.Source
	}
	for _, err := range errs {
		fmt.Fprintf(w, "error: %v\n", err)
		var re *types.RuleError
		if errors.As(err, &re) && re.Pos > 0 {
			if src, ok := text[re.RuleID]; ok {
				fmt.Fprintf(w, "    %s\n    %s^\n", src, strings.Repeat(" ", re.Pos-1))
			}
		}
	}
}

func summarize(rs *rules.RuleSet, rejected int) string {
	st := rs.Stats()
	s := fmt.Sprintf("%s rules, %s subrules, %s indexed tags",
		humanize.Comma(int64(st.Rules)), humanize.Comma(int64(st.Subrules)), humanize.Comma(int64(st.Tags)))
	if st.Prefilter {
		s += ", prefilter on"
	}
	if rejected > 0 {
		s += fmt.Sprintf(" (%s rejected)", humanize.Comma(int64(rejected)))
	}
	return s
}
