package mcppool

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/avi1989/ask/internal/config"
	"github.com/mark3labs/mcp-go/mcp"
)

func fakePool(t *testing.T, servers []Server, conns map[string]Handle) *Pool {
	t.Helper()
	p := New(servers, WithConnectFunc(func(context.Context, Server) (Handle, error) {
		return nil, errors.New("connect not expected")
	}))
	for name, h := range conns {
		p.conns[name] = h
	}
	return p
}

func TestResolvePrefersLongestPrefix(t *testing.T) {
	p := New([]Server{
		{Name: "git", ToolPrefix: "git"},
		{Name: "git_hub", ToolPrefix: "git_hub"},
		{Name: "fs", ToolPrefix: "fs"},
	})

	tests := []struct {
		tool string
		want string
		ok   bool
	}{
		{"git_status", "git", true},
		{"git_hub_search", "git_hub", true},
		{"fs_read_file", "fs", true},
		{"fsread", "", false},
		{"execute_command", "", false},
		{"unknown_tool", "", false},
	}
	for _, tt := range tests {
		srv, ok := p.Resolve(tt.tool)
		if ok != tt.ok || srv.Name != tt.want {
			t.Fatalf("Resolve(%q) = (%q, %v), want (%q, %v)", tt.tool, srv.Name, ok, tt.want, tt.ok)
		}
	}
}

func TestEnsureInitializedIsIdempotent(t *testing.T) {
	var spawns atomic.Int32
	var listed []string
	p := New([]Server{{Name: "fs", ToolPrefix: "fs", Command: "fake"}},
		WithConnectFunc(func(context.Context, Server) (Handle, error) {
			spawns.Add(1)
			return &connection{
				listTools: func(context.Context) ([]mcp.Tool, error) {
					return []mcp.Tool{{Name: "read_file"}}, nil
				},
			}, nil
		}),
		WithOnInitialized(func(srv Server, tools []mcp.Tool) {
			for _, tool := range tools {
				listed = append(listed, srv.Exposed(tool.Name))
			}
		}),
	)

	for i := 0; i < 3; i++ {
		if err := p.EnsureInitialized(context.Background(), "fs"); err != nil {
			t.Fatalf("EnsureInitialized() error = %v", err)
		}
	}
	if got := spawns.Load(); got != 1 {
		t.Fatalf("spawns = %d, want 1", got)
	}
	if len(listed) != 1 || listed[0] != "fs_read_file" {
		t.Fatalf("OnInitialized tools = %v, want [fs_read_file]", listed)
	}
	if _, ok := p.Handle("fs"); !ok {
		t.Fatal("Handle(fs) missing after EnsureInitialized")
	}
}

func TestEnsureInitializedFailureLeavesNoHandle(t *testing.T) {
	p := New([]Server{{Name: "fs", ToolPrefix: "fs", Command: "fake"}},
		WithConnectFunc(func(context.Context, Server) (Handle, error) {
			return nil, errors.New("spawn failed")
		}),
	)

	if err := p.EnsureInitialized(context.Background(), "fs"); err == nil {
		t.Fatal("EnsureInitialized() error = nil, want non-nil")
	}
	if _, ok := p.Handle("fs"); ok {
		t.Fatal("Handle(fs) present after failed start")
	}
	if err := p.EnsureInitialized(context.Background(), "missing"); err == nil {
		t.Fatal("EnsureInitialized(missing) error = nil, want non-nil")
	}
}

func TestListToolsErrorInvalidatesConnection(t *testing.T) {
	var closed bool
	conn := &connection{
		listTools: func(context.Context) ([]mcp.Tool, error) {
			return nil, errors.New("boom")
		},
		close: func() error {
			closed = true
			return nil
		},
	}
	p := fakePool(t, []Server{{Name: "github", ToolPrefix: "github"}}, map[string]Handle{"github": conn})

	if _, err := p.ListTools(context.Background(), "github"); err == nil {
		t.Fatal("ListTools() error = nil, want non-nil")
	}
	if _, ok := p.Handle("github"); ok {
		t.Fatal("connection was not evicted after list error")
	}
	if !closed {
		t.Fatal("connection close was not called after list error")
	}
}

func TestCallToolErrorInvalidatesConnection(t *testing.T) {
	var closed bool
	conn := &connection{
		callTool: func(context.Context, string, map[string]any) (*mcp.CallToolResult, error) {
			return nil, errors.New("broken pipe")
		},
		close: func() error {
			closed = true
			return nil
		},
	}
	p := fakePool(t, []Server{{Name: "github", ToolPrefix: "github"}}, map[string]Handle{"github": conn})

	if _, err := p.CallTool(context.Background(), "github_search", `{"q":"mcp"}`); err == nil {
		t.Fatal("CallTool() error = nil, want non-nil")
	}
	if _, ok := p.Handle("github"); ok {
		t.Fatal("connection was not evicted after call error")
	}
	if !closed {
		t.Fatal("connection close was not called after call error")
	}
}

func TestCallToolStripsPrefixAndParsesArgs(t *testing.T) {
	var calledWith string
	var calledArgs map[string]any
	conn := &connection{
		callTool: func(_ context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
			calledWith = name
			calledArgs = args
			return mcp.NewToolResultText("ok"), nil
		},
	}
	p := fakePool(t, []Server{{Name: "github", ToolPrefix: "github"}}, map[string]Handle{"github": conn})

	if _, err := p.CallTool(context.Background(), "github_search_repositories", `{"q":"mcp"}`); err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if calledWith != "search_repositories" {
		t.Fatalf("CallTool() invoked %q, want %q", calledWith, "search_repositories")
	}
	if calledArgs["q"] != "mcp" {
		t.Fatalf("CallTool() args = %v, want q=mcp", calledArgs)
	}

	if _, err := p.CallTool(context.Background(), "github_list", ""); err != nil {
		t.Fatalf("CallTool(empty args) error = %v", err)
	}
	if calledArgs == nil || len(calledArgs) != 0 {
		t.Fatalf("CallTool(empty args) args = %#v, want empty map", calledArgs)
	}
}

func TestCallToolRejectsBadArgsAndUnknownTools(t *testing.T) {
	conn := &connection{
		callTool: func(context.Context, string, map[string]any) (*mcp.CallToolResult, error) {
			t.Fatal("callTool should not be reached")
			return nil, nil
		},
	}
	p := fakePool(t, []Server{{Name: "github", ToolPrefix: "github"}}, map[string]Handle{"github": conn})

	if _, err := p.CallTool(context.Background(), "github_search", `{not json`); err == nil {
		t.Fatal("CallTool(bad json) error = nil, want non-nil")
	}
	if _, err := p.CallTool(context.Background(), "other_search", `{}`); err == nil {
		t.Fatal("CallTool(unknown) error = nil, want non-nil")
	}
	if _, ok := p.Handle("github"); !ok {
		t.Fatal("argument errors must not evict the handle")
	}
}

func TestCloseAllClosesEveryHandle(t *testing.T) {
	var closed atomic.Int32
	mk := func() Handle {
		return &connection{close: func() error {
			closed.Add(1)
			return nil
		}}
	}
	p := fakePool(t, []Server{{Name: "a", ToolPrefix: "a"}, {Name: "b", ToolPrefix: "b"}},
		map[string]Handle{"a": mk(), "b": mk()})

	p.CloseAll()
	if got := closed.Load(); got != 2 {
		t.Fatalf("closed = %d, want 2", got)
	}
	if _, ok := p.Handle("a"); ok {
		t.Fatal("Handle(a) present after CloseAll")
	}
}

func TestFingerprint(t *testing.T) {
	base := Server{
		Name:       "fs",
		Command:    "npx",
		Args:       []string{"-y", "server-filesystem"},
		Env:        map[string]string{"A": "1", "B": "2"},
		ToolPrefix: "fs",
	}
	same := base
	same.Env = map[string]string{"B": "2", "A": "1"}
	if base.Fingerprint() != same.Fingerprint() {
		t.Fatal("Fingerprint() depends on env map order")
	}

	changes := map[string]Server{
		"command": {Name: "fs", Command: "uvx", Args: base.Args, Env: base.Env, ToolPrefix: "fs"},
		"args":    {Name: "fs", Command: "npx", Args: []string{"server-filesystem", "-y"}, Env: base.Env, ToolPrefix: "fs"},
		"env":     {Name: "fs", Command: "npx", Args: base.Args, Env: map[string]string{"A": "1"}, ToolPrefix: "fs"},
		"prefix":  {Name: "fs", Command: "npx", Args: base.Args, Env: base.Env, ToolPrefix: "files"},
		"joined":  {Name: "fs", Command: "npx", Args: []string{"-yserver-filesystem"}, Env: base.Env, ToolPrefix: "fs"},
	}
	for field, srv := range changes {
		if srv.Fingerprint() == base.Fingerprint() {
			t.Fatalf("Fingerprint() unchanged after %s change", field)
		}
	}
}

func TestServersFromConfigCopiesAndSorts(t *testing.T) {
	cfg := &config.Config{MCPServers: map[string]config.ServerConfig{
		"zeta": {Command: "z"},
		"fs":   {Command: "npx", Args: []string{"/srv"}},
	}}

	servers := ServersFromConfig(cfg)
	if len(servers) != 2 || servers[0].Name != "fs" || servers[1].Name != "zeta" {
		t.Fatalf("ServersFromConfig() = %#v, want [fs zeta]", servers)
	}
	if servers[0].ToolPrefix != "fs" {
		t.Fatalf("ToolPrefix = %q, want %q", servers[0].ToolPrefix, "fs")
	}
	servers[0].Args[0] = "/other"
	if cfg.MCPServers["fs"].Args[0] != "/srv" {
		t.Fatal("ServersFromConfig() shares args with config")
	}
}

func TestServersFromConfigExpandsPlaceholdersOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	t.Setenv("ASK_TEST_SECRET", "p${HOME}x")
	data := `{"mcpServers":{"api":{"command":"srv","env":{"TOKEN":"${ASK_TEST_SECRET}"}}}}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	servers := ServersFromConfig(cfg)
	if len(servers) != 1 {
		t.Fatalf("len(servers) = %d, want 1", len(servers))
	}
	if got := servers[0].Env["TOKEN"]; got != "p${HOME}x" {
		t.Fatalf("Env[TOKEN] = %q, want %q", got, "p${HOME}x")
	}
}
