package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solatis/tagrules/internal/loader"
	"github.com/solatis/tagrules/internal/types"
)

var validateCmd = &cobra.Command{
	Use:   "validate [rule]",
	Short: "Check rule files, or a single rule, against the tag vocabulary",
	Long: `Without arguments, compiles every rule file in --rules-dir and reports each
invalid rule. With arguments, checks the joined arguments as one rule.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addSourceFlags(validateCmd.Flags())
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		vocab, _, err := loader.LoadTagFiles(cfg.Rules.Dir, cfg.Rules.TagsGlob)
		if err != nil {
			return err
		}
		line := types.RuleLine{ID: "R1", Source: strings.TrimSpace(strings.TrimPrefix(strings.Join(args, " "), "-"))}
		src := &loader.Sources{Vocabulary: vocab, Rules: []types.RuleLine{line}}
		rs, rejected, err := compileSources(src)
		if err != nil {
			return err
		}
		if len(rejected) > 0 {
			printRuleErrors(cmd.ErrOrStderr(), rejected, src.Rules)
			return fmt.Errorf("rule is invalid")
		}
		fmt.Fprintf(out, "ok: %s\n", summarize(rs, 0))
		return nil
	}

	src, err := loadSources()
	if err != nil {
		return err
	}
	rs, rejected, err := compileSources(src)
	if err != nil {
		return err
	}
	printRuleErrors(cmd.ErrOrStderr(), rejected, src.Rules)
	fmt.Fprintf(out, "%d tag files, %d rule files: %s\n", len(src.TagFiles), len(src.RuleFiles), summarize(rs, len(rejected)))
	if len(rejected) > 0 {
		return fmt.Errorf("%d of %d rules invalid", len(rejected), len(src.Rules))
	}
	return nil
}
