package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reportsCmd = &cobra.Command{
	Use:   "reports OBJECT_ID",
	Short: "List stored match reports for an object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer database.Close()

		reports, err := store.ListMatches(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(reports) == 0 {
			fmt.Fprintf(out, "no match reports for %s\n", args[0])
			return nil
		}
		for _, r := range reports {
			fmt.Fprintf(out, "%s  %s  %s  %v  ruleset=%s\n", r.CreatedAt, r.ObjectID, r.RuleID, r.SubruleNames(), r.RuleSetID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportsCmd)
}
