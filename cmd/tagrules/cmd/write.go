package cmd

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/solatis/tagrules/internal/loader"
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Add rules, tags or objects to files in --rules-dir",
}

var writeRuleCmd = &cobra.Command{
	Use:   "rule FILE EXPR...",
	Short: "Validate a rule and append it to a .rules file",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		vocab, _, err := loader.LoadTagFiles(cfg.Rules.Dir, cfg.Rules.TagsGlob)
		if err != nil {
			return err
		}
		path, err := loader.WriteRule(cfg.Rules.Dir, args[0], strings.Join(args[1:], " "), vocab)
		if err != nil {
			return err
		}
		log.Debug().Str("file", path).Msg("Rule written")
		fmt.Fprintf(cmd.OutOrStdout(), "wrote rule to %s\n", path)
		return nil
	},
}

var writeTagCmd = &cobra.Command{
	Use:   "tag FILE NAME VALUE...",
	Short: "Declare a tag or add values to it in a .tags file",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := loader.WriteTag(cfg.Rules.Dir, args[0], args[1], splitValues(args[2:]))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote tag %s to %s\n", args[1], path)
		return nil
	},
}

var writeObjectCmd = &cobra.Command{
	Use:   "object FILE TYPE ID TAG=V1,V2...",
	Short: "Add an object, or attributes of an existing one, to a YAML file",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		attrs := make(map[string][]string)
		for _, kv := range args[3:] {
			tag, values, ok := strings.Cut(kv, "=")
			if !ok || tag == "" {
				return fmt.Errorf("attribute %q: expected tag=value[,value...]", kv)
			}
			attrs[tag] = append(attrs[tag], splitValues([]string{values})...)
		}
		path, err := loader.WriteObject(cfg.Rules.Dir, args[0], args[1], args[2], attrs)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s %s to %s\n", args[1], args[2], path)
		return nil
	},
}

// splitValues accepts both "a b" and "a,b" spellings.
func splitValues(args []string) []string {
	var out []string
	for _, a := range args {
		for _, v := range strings.Split(a, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(writeCmd)
	addSourceFlags(writeCmd.PersistentFlags())
	writeCmd.AddCommand(writeRuleCmd, writeTagCmd, writeObjectCmd)
}
