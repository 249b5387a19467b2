package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/solatis/tagrules/internal/core/config"
	"github.com/solatis/tagrules/internal/logging"
)

// Version is the tagrules release.
const Version = "0.1.0"

var (
	configFile string

	// cfg is loaded before every subcommand runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "tagrules",
	Short:         "Tag rule compiler and matcher",
	Long:          `tagrules compiles boolean tag rules into an inverted index and matches tagged objects against them.`,
	Version:       Version,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configFile, cmd.Flags())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return logging.Setup(cfg.Log.Level, cfg.Log.Format)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().String("db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
}

// addSourceFlags registers the flags locating tag and rule files.
func addSourceFlags(fs *pflag.FlagSet) {
	fs.String("rules-dir", "./config", "directory holding .tags and .rules files")
	fs.String("tags-glob", "*.tags", "tag file pattern within rules-dir")
	fs.String("rules-glob", "*.rules", "rule file pattern within rules-dir")
}

func Execute() error {
	return rootCmd.Execute()
}
