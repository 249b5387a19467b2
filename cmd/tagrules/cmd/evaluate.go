package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/solatis/tagrules/internal/loader"
	"github.com/solatis/tagrules/internal/metrics"
	"github.com/solatis/tagrules/internal/rules"
	"github.com/solatis/tagrules/internal/types"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate OBJECTS.yaml...",
	Short: "Match objects from YAML files against the rule files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	addSourceFlags(evaluateCmd.Flags())
	evaluateCmd.Flags().Bool("skip-invalid", false, "skip invalid rules instead of failing")
	evaluateCmd.Flags().Int("workers", 4, "concurrent evaluations")
	evaluateCmd.Flags().Bool("explain", false, "print per-subrule clause counts")
	evaluateCmd.Flags().Bool("record", false, "store match reports in --db-url")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	explain, _ := cmd.Flags().GetBool("explain")
	record, _ := cmd.Flags().GetBool("record")
	out := cmd.OutOrStdout()

	src, err := loadSources()
	if err != nil {
		return err
	}
	rs, rejected, err := compileSources(src)
	if err != nil {
		return err
	}
	if len(rejected) > 0 {
		printRuleErrors(cmd.ErrOrStderr(), rejected, src.Rules)
		if !cfg.Rules.SkipInvalid {
			return fmt.Errorf("%d of %d rules invalid (use --skip-invalid to evaluate the rest)", len(rejected), len(src.Rules))
		}
	}

	var objs []types.ObjectRecord
	for _, path := range args {
		batch, err := loader.LoadObjectFile(path)
		if err != nil {
			return err
		}
		objs = append(objs, batch...)
	}

	start := time.Now()
	results, err := rules.EvaluateBatch(cmd.Context(), rs, objs, cfg.Eval.Workers)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	metrics.ObjectsEvaluated.WithLabelValues(metrics.SourceCLI).Add(float64(len(results)))

	matched := 0
	for i, res := range results {
		if res.Matched() {
			matched++
		}
		printResult(out, res)
		if explain {
			printTrace(out, rules.Explain(rs, objs[i]))
		}
	}

	fmt.Fprintf(out, "\n%s of %s objects matched against %s (%v)\n",
		humanize.Comma(int64(matched)), humanize.Comma(int64(len(results))), summarize(rs, len(rejected)), elapsed.Round(time.Microsecond))

	if !record {
		return nil
	}
	database, store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	n, err := store.RecordMatches(cmd.Context(), results)
	if err != nil {
		return err
	}
	log.Info().Int("reports", n).Str("ruleset_id", string(rs.ID)).Msg("Recorded match reports")
	fmt.Fprintf(out, "recorded %s match reports\n", humanize.Comma(int64(n)))
	return nil
}

func printResult(w io.Writer, res rules.MatchResult) {
	name := res.ObjectID
	if res.ObjectType != "" {
		name = fmt.Sprintf("%s (%s)", res.ObjectID, res.ObjectType)
	}
	if !res.Matched() {
		fmt.Fprintf(w, "%s: no match\n", name)
		return
	}
	parts := make([]string, len(res.Rules))
	for i, m := range res.Rules {
		parts[i] = fmt.Sprintf("%s [%s]", m.RuleID, strings.Join(m.Subrules, " "))
	}
	fmt.Fprintf(w, "%s: %s\n", name, strings.Join(parts, ", "))
}

func printTrace(w io.Writer, traces []rules.SubruleTrace) {
	for _, tr := range traces {
		clauses := make([]string, len(tr.Clauses))
		for i, c := range tr.Clauses {
			clauses[i] = c.String()
		}
		mark := " "
		if tr.Satisfied {
			mark = "*"
		}
		fmt.Fprintf(w, "  %s %s/%s %d/%d  %s\n", mark, tr.RuleID, tr.Subrule, tr.Actual, tr.Expected, strings.Join(clauses, " & "))
	}
}
