package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/solatis/tagrules/internal/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer database.Close()

		n, err := db.MigrateUp(cmd.Context(), database)
		if err != nil {
			return err
		}
		log.Info().Str("driver", database.DriverName()).Int("applied", n).Msg("Migrations applied")
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer database.Close()

		statuses, err := db.MigrateStatus(cmd.Context(), database)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied"
				if s.AppliedAt != nil {
					state = fmt.Sprintf("applied %s (%dms)", s.AppliedAt.Format(time.RFC3339), s.ExecutionMs)
				}
				if s.Modified {
					state += ", file modified since"
				}
			}
			fmt.Fprintf(out, "%-32s %s  %s\n", s.ID, s.Checksum[:12], state)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
}
