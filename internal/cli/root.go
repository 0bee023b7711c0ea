// Package cli implements the ask command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/avi1989/ask/internal/agent"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	exitOK    = 0
	exitError = 1
)

var (
	rootStdin  io.Reader = os.Stdin
	rootStdout io.Writer = os.Stdout
	rootStderr io.Writer = os.Stderr

	// newAgent builds the agent for a question. Tests replace it.
	newAgent = func(deps agent.Deps) asker {
		return agent.New(deps)
	}
)

type asker interface {
	Ask(ctx context.Context, opts agent.Options) (string, error)
}

// errSilent marks an error whose message has already been printed.
var errSilent = errors.New("silent")

// app carries state shared by every command of one invocation.
type app struct {
	logger  *zap.Logger
	verbose bool
}

// Run is the main CLI entry point. Returns an exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{logger: zap.NewNop()}
	root := a.newRootCmd()
	// cobra falls back to os.Args for nil args.
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetIn(rootStdin)
	root.SetOut(rootStdout)
	root.SetErr(rootStderr)

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintf(rootStderr, "Error: %v\n", err)
		}
		return exitError
	}
	return exitOK
}

func (a *app) newRootCmd() *cobra.Command {
	var opts askOptions

	root := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask questions from the terminal, with shell and MCP tools",
		Long: `ask sends a question to an OpenAI-compatible model. The model may run
shell commands and call tools on configured MCP servers; every call is shown
and needs approval unless the tool was approved with "A" before.

The question is read from standard input when no words are given and input
is not a terminal.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.logger = newLogger(rootStderr, a.verbose)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAsk(cmd, args, opts)
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose logging and tool previews")

	flags := root.Flags()
	flags.StringVarP(&opts.model, "model", "m", "", "model to use (aliases are resolved)")
	flags.StringVarP(&opts.session, "session", "s", "", "session to continue and save into")
	flags.BoolVarP(&opts.cont, "continue", "c", false, "continue the last written session")
	flags.IntVar(&opts.maxTurns, "max-turns", agent.DefaultMaxTurns, "maximum number of model requests")
	flags.BoolVarP(&opts.plain, "plain", "p", false, "print the answer without markdown rendering")
	root.MarkFlagsMutuallyExclusive("session", "continue")

	// Leading words are the question; only flags before it are parsed.
	root.Flags().SetInterspersed(false)

	root.AddCommand(
		a.newMCPCmd(),
		a.newSessionCmd(),
		a.newModelCmd(),
		a.newInitCmd(),
		a.newSetBaseURLCmd(),
		a.newSetDefaultModelCmd(),
	)
	return root
}
