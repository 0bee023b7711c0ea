package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/avi1989/ask/internal/bootstrap"
	"github.com/avi1989/ask/internal/config"
	"github.com/avi1989/ask/internal/httpheaders"
	"github.com/avi1989/ask/internal/paths"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "MCP server and tool management",
	}
	cmd.AddCommand(
		a.newMCPListCmd(),
		a.newMCPAddCmd(),
		a.newMCPRemoveCmd(),
		a.newMCPImportCmd(),
	)
	return cmd
}

func (a *app) newMCPListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured MCP servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Placeholders are shown as written, never expanded.
			cfg, err := config.LoadForEdit()
			if err != nil {
				fmt.Fprintf(rootStderr, "Error loading config: %v\n", err)
				fmt.Fprintln(rootStderr, "Run 'ask mcp add' to create your first MCP server.")
				return errSilent
			}
			printServers(cfg)
			return nil
		},
	}
}

func printServers(cfg *config.Config) {
	out := rootStdout
	if len(cfg.MCPServers) == 0 {
		fmt.Fprintln(out, "No MCP servers configured.")
		fmt.Fprintln(out, "Add one with: ask mcp add <name> <command> --args <args>")
		return
	}

	fmt.Fprintln(out, "Configured MCP servers:")
	fmt.Fprintln(out)
	for _, name := range cfg.ServerNames() {
		srv := cfg.MCPServers[name]
		fmt.Fprintf(out, "  %s\n", name)
		if srv.IsHTTP() {
			fmt.Fprintf(out, "    URL: %s\n", srv.URL)
		} else {
			fmt.Fprintf(out, "    Command: %s\n", srv.Command)
		}
		if len(srv.Args) > 0 {
			fmt.Fprintf(out, "    Args: %s\n", strings.Join(srv.Args, " "))
		}
		printPairs(out, "Env", "=", srv.Env)
		printPairs(out, "Headers", ": ", srv.Headers)
		fmt.Fprintln(out)
	}
}

func printPairs(out io.Writer, label, sep string, pairs map[string]string) {
	if len(pairs) == 0 {
		return
	}
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(out, "    %s:\n", label)
	for _, k := range keys {
		fmt.Fprintf(out, "      %s%s%s\n", k, sep, pairs[k])
	}
}

type addOptions struct {
	args    []string
	env     []string
	url     string
	headers []string
	from    string
}

func (a *app) newMCPAddCmd() *cobra.Command {
	var opts addOptions
	cmd := &cobra.Command{
		Use:   "add <name> [command]",
		Short: "Add a new MCP server",
		Long: `Add a new MCP server. The name is used as the prefix of its tools.

A stdio server is given as a command with --args and --env; an HTTP server
with --url and --header. --from reads the definition from a manifest file,
an https URL or an install link instead.`,
		Example: `  ask mcp add git uvx --args mcp-server-git
  ask mcp add github npx -a -y,@modelcontextprotocol/server-github -e GITHUB_TOKEN='${GITHUB_TOKEN}'
  ask mcp add docs --url https://example.com/mcp -H "Authorization: Bearer \${DOCS_TOKEN}"
  ask mcp add --from ./server.json`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, srv, err := a.serverFromFlags(cmd, args, opts)
			if err != nil {
				return err
			}
			if err := config.Validate(&config.Config{MCPServers: map[string]config.ServerConfig{name: srv}}); err != nil {
				return fmt.Errorf("invalid server: %w", err)
			}
			if err := config.CheckCommand(srv); err != nil {
				return err
			}
			if err := config.Update(func(cfg *config.Config) error {
				return cfg.AddServer(name, srv)
			}); err != nil {
				return fmt.Errorf("adding server: %w", err)
			}
			fmt.Fprintf(rootStdout, "✓ Added MCP server '%s' to %s\n", name, paths.ConfigFile())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&opts.args, "args", "a", nil, "arguments for the command (comma separated)")
	flags.StringSliceVarP(&opts.env, "env", "e", nil, "environment variables in KEY=VALUE format (comma separated)")
	flags.StringVar(&opts.url, "url", "", "URL of an HTTP server")
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, `HTTP header as "Name: value" (repeatable)`)
	flags.StringVar(&opts.from, "from", "", "manifest file, https URL or install link to read the server from")
	cmd.MarkFlagsMutuallyExclusive("from", "url")
	cmd.MarkFlagsMutuallyExclusive("from", "args")
	cmd.MarkFlagsMutuallyExclusive("from", "env")
	cmd.MarkFlagsMutuallyExclusive("from", "header")
	return cmd
}

func (a *app) serverFromFlags(cmd *cobra.Command, args []string, opts addOptions) (string, config.ServerConfig, error) {
	if opts.from != "" {
		if len(args) > 1 {
			return "", config.ServerConfig{}, errors.New("--from takes at most a server name")
		}
		var name string
		if len(args) == 1 {
			name = args[0]
		}
		resolved, err := bootstrap.Resolve(cmd.Context(), opts.from, bootstrap.Options{Name: name})
		if err != nil {
			return "", config.ServerConfig{}, err
		}
		return resolved.Name, resolved.Server, nil
	}

	if len(args) == 0 {
		return "", config.ServerConfig{}, errors.New("missing server name")
	}
	name := args[0]

	var srv config.ServerConfig
	switch {
	case opts.url != "" && len(args) == 2:
		return "", config.ServerConfig{}, errors.New("give either a command or --url, not both")
	case opts.url != "":
		if len(opts.args) > 0 || len(opts.env) > 0 {
			return "", config.ServerConfig{}, errors.New("--args and --env apply to stdio servers only")
		}
		headers, err := httpheaders.Parse(opts.headers)
		if err != nil {
			return "", config.ServerConfig{}, err
		}
		srv = config.ServerConfig{URL: opts.url, Headers: headers}
	case len(args) == 2:
		if len(opts.headers) > 0 {
			return "", config.ServerConfig{}, errors.New("--header applies to HTTP servers only")
		}
		env, err := parseEnvFlag(opts.env)
		if err != nil {
			return "", config.ServerConfig{}, err
		}
		srv = config.ServerConfig{Command: args[1], Args: opts.args, Env: env}
	default:
		return "", config.ServerConfig{}, errors.New("missing command (or --url)")
	}
	return name, srv, nil
}

// parseEnvFlag keeps the valid KEY=VALUE pairs and warns about the rest.
func parseEnvFlag(pairs []string) (map[string]string, error) {
	valid := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if key, _, ok := strings.Cut(pair, "="); !ok || strings.TrimSpace(key) == "" {
			fmt.Fprintf(rootStderr, "Warning: Invalid env format '%s', expected KEY=VALUE\n", pair)
			continue
		}
		valid = append(valid, pair)
	}
	return config.ParseEnvPairs(valid)
}

func (a *app) newMCPRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove an MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := config.Update(func(cfg *config.Config) error {
				return cfg.RemoveServer(name)
			}); err != nil {
				return fmt.Errorf("removing server: %w", err)
			}
			fmt.Fprintf(rootStdout, "✓ Removed MCP server '%s' from %s\n", name, paths.ConfigFile())
			return nil
		},
	}
}

func (a *app) newMCPImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file...]",
		Short: "Import MCP servers configured for other clients",
		Long: `Import MCP servers from the configuration of other MCP clients (Cursor,
Claude, Cline, Codex, Kiro and project .mcp.json files). Servers whose name
is already configured are skipped. Files may also be given explicitly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := args
			if len(sources) == 0 {
				sources = config.ImportSources("")
			}
			a.logger.Debug("importing servers", zap.Strings("sources", sources))

			found, err := config.LoadImportable(sources, "")
			if err != nil {
				fmt.Fprintf(rootStderr, "Warning: %v\n", err)
			}
			if len(found) == 0 {
				fmt.Fprintln(rootStdout, "No MCP servers found to import.")
				return nil
			}

			var res config.ImportResult
			if err := config.Update(func(cfg *config.Config) error {
				res = cfg.MergeImported(found)
				return nil
			}); err != nil {
				return fmt.Errorf("importing servers: %w", err)
			}

			if len(res.Added) > 0 {
				fmt.Fprintf(rootStdout, "✓ Imported %d MCP server(s): %s\n", len(res.Added), strings.Join(res.Added, ", "))
			} else {
				fmt.Fprintln(rootStdout, "No new MCP servers imported.")
			}
			if len(res.Skipped) > 0 {
				fmt.Fprintf(rootStdout, "Skipped (already configured or invalid name): %s\n", strings.Join(res.Skipped, ", "))
			}
			return nil
		},
	}
}
