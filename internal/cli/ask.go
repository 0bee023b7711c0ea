package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/avi1989/ask/internal/agent"
	"github.com/avi1989/ask/internal/mcppool"
	"github.com/avi1989/ask/internal/paths"
	"github.com/avi1989/ask/internal/session"
	"github.com/spf13/cobra"
)

type askOptions struct {
	model    string
	session  string
	cont     bool
	maxTurns int
	plain    bool
}

func (a *app) runAsk(cmd *cobra.Command, args []string, opts askOptions) error {
	question, err := readQuestion(args)
	if err != nil {
		return err
	}
	if question == "" {
		return cmd.Help()
	}
	if opts.maxTurns <= 0 {
		return fmt.Errorf("--max-turns must be positive, got %d", opts.maxTurns)
	}

	name := opts.session
	if opts.cont {
		name = session.DefaultName
		if last, ok := session.NewStore(paths.SessionsDir(), a.logger).LastName(); ok {
			name = last
		}
	}

	// Server stderr is only interesting while debugging.
	serverStderr := io.Discard
	if a.verbose {
		serverStderr = rootStderr
	}

	ag := newAgent(agent.Deps{
		Connect: mcppool.NewConnector(serverStderr, a.logger),
		In:      rootStdin,
		Out:     rootStdout,
		Err:     rootStderr,
		Logger:  a.logger,
	})
	answer, err := ag.Ask(cmd.Context(), agent.Options{
		Question: question,
		Model:    opts.model,
		Session:  name,
		MaxTurns: opts.maxTurns,
		Verbose:  a.verbose,
	})
	if err != nil {
		return err
	}
	return renderAnswer(rootStdout, answer, opts.plain)
}

// readQuestion joins the question words, or reads the question from
// standard input when there are none and input is piped.
func readQuestion(args []string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	if inputIsTerminal(rootStdin) {
		return "", nil
	}
	data, err := io.ReadAll(rootStdin)
	if err != nil {
		return "", fmt.Errorf("reading question from stdin: %w", err)
	}
	question := strings.TrimSpace(string(data))
	if question == "" {
		return "", errors.New("no question given")
	}
	return question, nil
}
