package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/solatis/tagrules/internal/types"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy the tag vocabulary and rules from files into the database",
	Long: `Compiles the files in --rules-dir and replaces the stored vocabulary and
rules with them. With --skip-invalid only the valid rules are stored.`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	addSourceFlags(importCmd.Flags())
	importCmd.Flags().Bool("skip-invalid", false, "store valid rules when some are invalid")
}

func runImport(cmd *cobra.Command, args []string) error {
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
			return fmt.Errorf("%d of %d rules invalid, nothing imported", len(rejected), len(src.Rules))
		}
	}

	// Store exactly the rules that compiled, keeping their ids
	lines := make([]types.RuleLine, len(rs.Rules))
	for i, r := range rs.Rules {
		lines[i] = types.RuleLine{ID: r.ID, File: r.File, Line: r.Line, Source: r.Source}
	}

	database, store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := cmd.Context()
	if err := store.SaveVocabulary(ctx, src.Vocabulary); err != nil {
		return err
	}
	if err := store.SaveRules(ctx, lines); err != nil {
		return err
	}

	log.Info().
		Int("tags", src.Vocabulary.Len()).
		Int("rules", len(lines)).
		Int("rejected", len(rejected)).
		Msg("Imported rule sources")
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d tags and %s\n", src.Vocabulary.Len(), summarize(rs, len(rejected)))
	return nil
}
