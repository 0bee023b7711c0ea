package cli

import (
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/avi1989/ask/internal/config"
	"github.com/avi1989/ask/internal/paths"
	"github.com/spf13/cobra"
)

func (a *app) newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Show or change the default model and model aliases",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the default model",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.LoadForEdit()
				if err != nil {
					fmt.Fprintln(rootStdout, "Unable to load default model")
					return nil
				}
				model := cfg.DefaultModel
				if model == "" {
					model = config.DefaultModel
				}
				fmt.Fprintln(rootStdout, model)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <model>",
			Short: "Set the default model",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return setDefaultModel(args[0])
			},
		},
		&cobra.Command{
			Use:   "aliases",
			Short: "List model aliases",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.LoadForEdit()
				if err != nil {
					return fmt.Errorf("Failed to load config: %w", err)
				}
				if len(cfg.ModelAliases) == 0 {
					fmt.Fprintln(rootStdout, "No model aliases configured")
					return nil
				}
				aliases := make([]string, 0, len(cfg.ModelAliases))
				for alias := range cfg.ModelAliases {
					aliases = append(aliases, alias)
				}
				sort.Strings(aliases)
				for _, alias := range aliases {
					fmt.Fprintf(rootStdout, "%s: %s\n", alias, cfg.ModelAliases[alias])
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "alias <alias> <model>",
			Short: "Define a short name for a model",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				alias, model := args[0], args[1]
				if err := config.Update(func(cfg *config.Config) error {
					cfg.SetAlias(alias, model)
					return nil
				}); err != nil {
					return fmt.Errorf("Failed to save config: %w", err)
				}
				fmt.Fprintf(rootStdout, "Model alias %s set to %s\n", alias, model)
				return nil
			},
		},
		&cobra.Command{
			Use:   "unalias <alias>",
			Short: "Remove a model alias",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				alias := args[0]
				err := config.Update(func(cfg *config.Config) error {
					return cfg.RemoveAlias(alias)
				})
				switch {
				case errors.Is(err, config.ErrAliasNotFound):
					fmt.Fprintf(rootStdout, "Model alias %s not found\n", alias)
					return nil
				case err != nil:
					return fmt.Errorf("Failed to save config: %w", err)
				}
				fmt.Fprintln(rootStdout, "Model alias removed")
				return nil
			},
		},
	)
	return cmd
}

func (a *app) newSetDefaultModelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-default-model <model>",
		Short: "Set the default model to use for the LLM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setDefaultModel(args[0])
		},
	}
}

func setDefaultModel(model string) error {
	if err := config.Update(func(cfg *config.Config) error {
		cfg.DefaultModel = model
		return nil
	}); err != nil {
		return fmt.Errorf("Failed to save config: %w", err)
	}
	fmt.Fprintf(rootStdout, "Default model set to %s\n", model)
	return nil
}

func (a *app) newSetBaseURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-base-url <url>",
		Short: "Set the OpenAI compatible URL for the LLM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL := args[0]
			if _, err := url.ParseRequestURI(baseURL); err != nil {
				return fmt.Errorf("invalid URL %q: %w", baseURL, err)
			}
			if err := config.Update(func(cfg *config.Config) error {
				cfg.BaseURL = baseURL
				return nil
			}); err != nil {
				return fmt.Errorf("Failed to save config: %w", err)
			}
			fmt.Fprintf(rootStdout, "Base URL set to %s in %s\n", baseURL, paths.ConfigFile())
			return nil
		},
	}
}
