package cli

import (
	"fmt"

	"github.com/avi1989/ask/internal/config"
	"github.com/avi1989/ask/internal/paths"
	"github.com/spf13/cobra"
)

func (a *app) newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize ~/.ask/config with default MCP servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := paths.ConfigFile()
			if config.Exists() && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}
			if err := config.Save(config.Scaffold()); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Fprintf(rootStdout, "✓ Created %s with a filesystem MCP server\n", path)
			fmt.Fprintln(rootStdout, "Set ASK_API_KEY (or OPENAI_API_KEY) and run: ask \"what's in this directory?\"")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}
