// Package approval asks the user before a tool runs and remembers tools
// the user chose to always allow.
package approval

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Decision is the user's answer to an approval prompt.
type Decision int

const (
	Deny Decision = iota
	Allow
	AllowAlways
)

// ParseDecision interprets one line of user input. Anything other than
// y/yes or a/all denies.
func ParseDecision(line string) Decision {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return Allow
	case "a", "all":
		return AllowAlways
	default:
		return Deny
	}
}

// Gate holds the set of always-approved tools and prompts for the rest.
type Gate struct {
	mu       sync.Mutex
	approved map[string]struct{}

	promptMu sync.Mutex
	in       *bufio.Reader
	out      io.Writer
	persist  func(tool string) error
	logger   *zap.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithPersist sets the hook that records an always-approve decision.
func WithPersist(fn func(tool string) error) Option {
	return func(g *Gate) {
		g.persist = fn
	}
}

// WithLogger sets the gate's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGate returns a gate seeded with tools. Prompts are written to out and
// answers read from in.
func NewGate(tools []string, in io.Reader, out io.Writer, opts ...Option) *Gate {
	g := &Gate{
		approved: make(map[string]struct{}, len(tools)),
		in:       bufio.NewReader(in),
		out:      out,
		logger:   zap.NewNop(),
	}
	for _, tool := range tools {
		g.approved[tool] = struct{}{}
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Approved reports whether tool is in the always-approve set.
func (g *Gate) Approved(tool string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.approved[tool]
	return ok
}

// Approve adds tool to the always-approve set for the rest of the run.
func (g *Gate) Approve(tool string) {
	g.mu.Lock()
	g.approved[tool] = struct{}{}
	g.mu.Unlock()
}

// Check shows preview and decides whether tool may run. Tools in the
// always-approve set run without a prompt. A failed read denies.
func (g *Gate) Check(tool, preview string, verbose bool) bool {
	if g.Approved(tool) {
		if verbose {
			g.printf("%s\n[Auto-approved]\n", preview)
		} else {
			g.printf("%s\n", preview)
		}
		return true
	}

	g.promptMu.Lock()
	g.printf("%s\nExecute '%s'? [y/N/A]: ", preview, tool)
	line, err := g.in.ReadString('\n')
	g.promptMu.Unlock()
	if err != nil && line == "" {
		if err != io.EOF {
			g.logger.Warn("reading approval input", zap.Error(err))
		}
		return false
	}

	switch ParseDecision(line) {
	case Allow:
		return true
	case AllowAlways:
		g.Approve(tool)
		g.remember(tool, verbose)
		return true
	default:
		return false
	}
}

func (g *Gate) remember(tool string, verbose bool) {
	if g.persist == nil {
		return
	}
	if err := g.persist(tool); err != nil {
		g.logger.Warn("failed to save auto-approval to config", zap.String("tool", tool), zap.Error(err))
		if verbose {
			g.printf("All future '%s' calls will be auto-approved for this session only.\n", tool)
		}
		return
	}
	if verbose {
		g.printf("All future '%s' calls will be auto-approved (saved to config).\n", tool)
	}
}

func (g *Gate) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(g.out, format, args...); err != nil {
		g.logger.Debug("writing approval output", zap.Error(err))
	}
}
