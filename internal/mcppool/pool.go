package mcppool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// Handle is a live session with one tool server.
type Handle interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
	Close() error
}

// ConnectFunc spawns (or dials) a server and performs the handshake.
type ConnectFunc func(ctx context.Context, srv Server) (Handle, error)

// connection wraps an MCP client with its transport.
type connection struct {
	listTools func(ctx context.Context) ([]mcp.Tool, error)
	callTool  func(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
	close     func() error
}

func (c *connection) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return c.listTools(ctx)
}

func (c *connection) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, args)
}

func (c *connection) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// Pool is the registry of configured servers and the handles of the ones
// started so far. Handles are created on first use and kept until CloseAll.
type Pool struct {
	servers map[string]Server
	order   []string

	connect ConnectFunc
	onInit  func(Server, []mcp.Tool)
	logger  *zap.Logger

	mu    sync.Mutex
	conns map[string]Handle
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithConnectFunc replaces the transport used to start servers.
func WithConnectFunc(fn ConnectFunc) Option {
	return func(p *Pool) {
		if fn != nil {
			p.connect = fn
		}
	}
}

// WithOnInitialized registers a hook run with the freshly listed tools each
// time a server is started.
func WithOnInitialized(fn func(Server, []mcp.Tool)) Option {
	return func(p *Pool) {
		p.onInit = fn
	}
}

// New creates a registry for servers. Nothing is spawned until a tool on a
// server is needed.
func New(servers []Server, opts ...Option) *Pool {
	p := &Pool{
		servers: make(map[string]Server, len(servers)),
		conns:   make(map[string]Handle),
		logger:  zap.NewNop(),
	}
	for _, srv := range servers {
		if _, dup := p.servers[srv.Name]; !dup {
			p.order = append(p.order, srv.Name)
		}
		p.servers[srv.Name] = srv
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.connect == nil {
		p.connect = NewConnector(io.Discard, p.logger)
	}
	return p
}

// Resolve finds the server owning an exposed tool name. When several
// prefixes match, the longest one wins.
func (p *Pool) Resolve(tool string) (Server, bool) {
	var best Server
	found := false
	for _, name := range p.order {
		srv := p.servers[name]
		if !strings.HasPrefix(tool, srv.ToolPrefix+"_") {
			continue
		}
		if !found || len(srv.ToolPrefix) > len(best.ToolPrefix) {
			best = srv
			found = true
		}
	}
	return best, found
}

// EnsureInitialized starts the named server unless it is already running.
func (p *Pool) EnsureInitialized(ctx context.Context, name string) error {
	_, err := p.getOrCreate(ctx, name)
	return err
}

// Handle returns the live handle for a server, if it has been started.
func (p *Pool) Handle(name string) (Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.conns[name]
	return h, ok
}

func (p *Pool) getOrCreate(ctx context.Context, name string) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[name]; ok {
		return conn, nil
	}

	srv, ok := p.servers[name]
	if !ok {
		return nil, fmt.Errorf("unknown server: %s", name)
	}

	conn, err := p.connect(ctx, srv)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", name, err)
	}
	p.conns[name] = conn
	p.logger.Debug("started tool server", zap.String("server", name))

	if p.onInit != nil {
		tools, err := conn.ListTools(ctx)
		if err != nil {
			p.logger.Warn("listing tools after start failed", zap.String("server", name), zap.Error(err))
		} else {
			p.onInit(srv, tools)
		}
	}
	return conn, nil
}

// invalidate drops a handle after a transport failure so the next call
// re-spawns the server.
func (p *Pool) invalidate(name string, conn Handle) {
	p.mu.Lock()
	if current, ok := p.conns[name]; ok && current == conn {
		delete(p.conns, name)
	}
	p.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			p.logger.Debug("closing failed handle", zap.String("server", name), zap.Error(err))
		}
	}
}

// CallTool invokes an exposed tool. argsJSON is the model-supplied argument
// object; empty input means no arguments.
func (p *Pool) CallTool(ctx context.Context, tool string, argsJSON string) (*mcp.CallToolResult, error) {
	srv, ok := p.Resolve(tool)
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", tool)
	}

	args := map[string]any{}
	if strings.TrimSpace(argsJSON) != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return nil, fmt.Errorf("invalid args: %w", err)
		}
		if args == nil {
			args = map[string]any{}
		}
	}

	conn, err := p.getOrCreate(ctx, srv.Name)
	if err != nil {
		return nil, err
	}

	inner := strings.TrimPrefix(tool, srv.ToolPrefix+"_")
	result, err := conn.CallTool(ctx, inner, args)
	if err != nil {
		p.invalidate(srv.Name, conn)
		return nil, err
	}
	return result, nil
}

// CloseAll disconnects all servers.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]Handle)
	p.mu.Unlock()

	for name, conn := range conns {
		if err := conn.Close(); err != nil {
			p.logger.Debug("closing tool server", zap.String("server", name), zap.Error(err))
		}
	}
}
