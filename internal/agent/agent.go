// Package agent runs the question/answer loop: it describes the available
// tools to the model, dispatches the tool calls it makes behind the
// approval gate and persists the finished conversation.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/avi1989/ask/internal/approval"
	"github.com/avi1989/ask/internal/cache"
	"github.com/avi1989/ask/internal/config"
	"github.com/avi1989/ask/internal/llm"
	"github.com/avi1989/ask/internal/mcppool"
	"github.com/avi1989/ask/internal/paths"
	"github.com/avi1989/ask/internal/session"
	"github.com/avi1989/ask/internal/shell"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// DefaultMaxTurns bounds the number of model requests per question.
const DefaultMaxTurns = 21

// ErrResponseTooLong is returned when the model stops for a reason other
// than a final answer or tool calls.
var ErrResponseTooLong = errors.New("Response too long")

// Options describe one question.
type Options struct {
	Question string
	// Model overrides the configured default. Aliases are resolved.
	Model string
	// Session names the conversation to continue and save into. Empty means
	// a fresh conversation saved under "last".
	Session  string
	MaxTurns int
	Verbose  bool
}

// CommandRunner executes execute_command requests.
type CommandRunner interface {
	Run(ctx context.Context, command, dir string) string
}

// Deps are the collaborators of an Agent. Zero fields are filled with the
// production implementations by New.
type Deps struct {
	LoadConfig func() (*config.Config, error)
	NewClient  func(cfg *config.Config) (llm.Client, error)
	Connect    mcppool.ConnectFunc
	Cache      *cache.Store
	Sessions   *session.Store
	Runner     CommandRunner
	Shell      shell.Kind
	// Persist records an always-approve answer.
	Persist func(tool string) error
	Now     func() time.Time

	// In supplies approval answers, Out receives previews and prompts and
	// Err receives progress and warnings.
	In  io.Reader
	Out io.Writer
	Err io.Writer

	Logger *zap.Logger
}

// Agent answers questions.
type Agent struct {
	deps Deps
}

// New returns an Agent, filling unset dependencies with defaults.
func New(deps Deps) *Agent {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.LoadConfig == nil {
		deps.LoadConfig = config.Load
	}
	if deps.NewClient == nil {
		logger := deps.Logger
		deps.NewClient = func(cfg *config.Config) (llm.Client, error) {
			return NewOpenAIClient(cfg, os.Getenv, logger)
		}
	}
	if deps.Connect == nil {
		deps.Connect = mcppool.NewConnector(io.Discard, deps.Logger)
	}
	if deps.Cache == nil {
		deps.Cache = cache.Open(paths.CacheFile(), deps.Logger)
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewStore(paths.SessionsDir(), deps.Logger)
	}
	if deps.Shell == "" {
		deps.Shell = shell.DetectKind()
	}
	if deps.Runner == nil {
		deps.Runner = shell.NewRunner(deps.Shell)
	}
	if deps.Persist == nil {
		deps.Persist = config.PersistAutoApproval
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.In == nil {
		deps.In = os.Stdin
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.Err == nil {
		deps.Err = os.Stderr
	}
	return &Agent{deps: deps}
}

// NewOpenAIClient builds the chat-completions client for cfg, reading the
// API key from the environment.
func NewOpenAIClient(cfg *config.Config, getenv func(string) string, logger *zap.Logger) (llm.Client, error) {
	key, err := llm.ResolveAPIKey(cfg.BaseURL, getenv)
	if err != nil {
		return nil, err
	}
	opts := []llm.Option{llm.WithLogger(logger)}
	if cfg.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.BaseURL))
	}
	return llm.NewOpenAI(key, opts...), nil
}

// run is the state of a single Ask call.
type run struct {
	*Agent
	opts  Options
	pool  *mcppool.Pool
	gate  *approval.Gate
	model string
}

// Ask answers opts.Question and returns the model's final message.
func (a *Agent) Ask(ctx context.Context, opts Options) (string, error) {
	logger := a.deps.Logger

	cfg, err := a.deps.LoadConfig()
	if err != nil {
		fmt.Fprintf(a.deps.Err, "Warning: Failed to load MCP config: %v\n", err)
		fmt.Fprintln(a.deps.Err, "Continuing without MCP tools. Create ~/.ask/config to enable MCP servers.")
		cfg = &config.Config{}
	}

	model := cfg.Model()
	if opts.Model != "" {
		model = cfg.ResolveModel(opts.Model)
	}
	logger.Debug("configuration loaded",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", model),
		zap.Int("servers", len(cfg.MCPServers)),
		zap.Int("auto_approved", len(cfg.AutoApprovedTools)),
	)

	client, err := a.deps.NewClient(cfg)
	if err != nil {
		return "", err
	}

	servers := mcppool.ServersFromConfig(cfg)
	pool := mcppool.New(servers,
		mcppool.WithLogger(logger),
		mcppool.WithConnectFunc(a.deps.Connect),
		mcppool.WithOnInitialized(func(srv mcppool.Server, tools []mcp.Tool) {
			a.deps.Cache.Update(srv, tools)
		}),
	)
	defer pool.CloseAll()

	r := &run{
		Agent: a,
		opts:  opts,
		pool:  pool,
		gate: approval.NewGate(cfg.AutoApprovedTools, a.deps.In, a.deps.Out,
			approval.WithPersist(a.deps.Persist),
			approval.WithLogger(logger),
		),
		model: model,
	}

	r.populateCache(ctx, servers)
	tools := append([]cache.Tool{shell.Descriptor()}, r.cachedTools(servers)...)

	messages := r.initialMessages()
	messages = append(messages, session.User(opts.Question))

	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	for turn := 0; turn < maxTurns; turn++ {
		logger.Debug("requesting completion",
			zap.Int("turn", turn+1),
			zap.String("model", model),
			zap.Int("messages", len(messages)),
			zap.Int("tools", len(tools)),
		)
		resp, err := client.Complete(ctx, llm.Request{Model: model, Messages: messages, Tools: tools})
		if err != nil {
			return "", err
		}

		switch resp.FinishReason {
		case llm.FinishStop, "":
			reply := resp.Message()
			r.saveSession(messages, &reply)
			return resp.Content, nil
		case llm.FinishToolCalls:
			messages = append(messages, session.Assistant("", resp.ToolCalls...))
			for _, call := range resp.ToolCalls {
				result := r.dispatch(ctx, call)
				messages = append(messages, session.ToolResult(call.ID, result))
			}
		default:
			return "", ErrResponseTooLong
		}
	}
	return "", fmt.Errorf("No response after %d attempts", maxTurns)
}

func (r *run) populateCache(ctx context.Context, servers []mcppool.Server) {
	stale := r.deps.Cache.Stale(servers)
	if len(stale) == 0 {
		return
	}
	if r.opts.Verbose {
		fmt.Fprintf(r.deps.Err, "Building tool cache for %d server(s)...\n", len(stale))
	} else {
		fmt.Fprintln(r.deps.Err, "First run: initializing MCP servers to build cache...")
	}

	failed := r.deps.Cache.Populate(ctx, stale, r.deps.Connect)
	for _, srv := range stale {
		if err, ok := failed[srv.Name]; ok {
			fmt.Fprintf(r.deps.Err, "Warning: Failed to initialize MCP server '%s': %v\n", srv.Name, err)
		} else if r.opts.Verbose {
			fmt.Fprintf(r.deps.Err, "  Cached tools for '%s'\n", srv.Name)
		}
	}

	if !r.opts.Verbose {
		fmt.Fprintln(r.deps.Err, "Cache built. Future runs will be faster!")
	}
}

func (r *run) cachedTools(servers []mcppool.Server) []cache.Tool {
	var (
		all    []cache.Tool
		loaded int
	)
	for _, srv := range servers {
		tools, ok := r.deps.Cache.Lookup(srv)
		if !ok {
			if r.opts.Verbose {
				fmt.Fprintf(r.deps.Err, "No cache for '%s', will initialize on first use\n", srv.Name)
			}
			continue
		}
		if r.opts.Verbose {
			fmt.Fprintf(r.deps.Err, "Loaded %d tools from cache for '%s'\n", len(tools), srv.Name)
		}
		all = append(all, tools...)
		loaded++
	}
	if loaded > 0 && !r.opts.Verbose {
		fmt.Fprintf(r.deps.Err, "Loaded %d MCP server(s) from cache\n", loaded)
	}
	return all
}

func (r *run) initialMessages() []session.Message {
	if r.opts.Session != "" {
		if messages, ok := r.deps.Sessions.Load(r.opts.Session); ok {
			return messages
		}
		if r.opts.Verbose {
			fmt.Fprintln(r.deps.Err, "Session not loaded")
		}
	}
	return []session.Message{session.System(SystemPrompt(r.deps.Shell, r.deps.Now()))}
}

func (r *run) saveSession(messages []session.Message, reply *session.Message) {
	name := r.opts.Session
	if name == "" {
		name = session.DefaultName
	}
	if err := r.deps.Sessions.Save(name, messages, reply); err != nil {
		fmt.Fprintf(r.deps.Err, "Warning: Failed to save session: %v\n", err)
		return
	}
	r.deps.Logger.Debug("session saved", zap.String("session", name))
}
