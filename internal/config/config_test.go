package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, raw string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFromMissingFileReturnsEmptyConfig(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.MCPServers == nil || len(cfg.MCPServers) != 0 {
		t.Fatalf("MCPServers = %#v, want empty map", cfg.MCPServers)
	}
	if cfg.AutoApprovedTools == nil {
		t.Fatal("AutoApprovedTools = nil, want empty slice")
	}
	if got := cfg.Model(); got != DefaultModel {
		t.Fatalf("Model() = %q, want %q", got, DefaultModel)
	}
}

func TestLoadFromParsesDocument(t *testing.T) {
	path := writeConfig(t, `{
  "mcpServers": {
    "fs": {"command": "npx", "args": ["-y", "server-filesystem", "."]}
  },
  "autoApprovedTools": ["fs_read_file"],
  "baseUrl": "https://openrouter.ai/api/v1",
  "defaultModel": "fast",
  "modelAliases": {"fast": "openai/gpt-4.1-mini"}
}`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if got := cfg.MCPServers["fs"].Command; got != "npx" {
		t.Fatalf("fs command = %q, want %q", got, "npx")
	}
	if !cfg.IsAutoApproved("fs_read_file") {
		t.Fatal("IsAutoApproved(fs_read_file) = false, want true")
	}
	if got := cfg.BaseURL; got != "https://openrouter.ai/api/v1" {
		t.Fatalf("BaseURL = %q", got)
	}
	if got := cfg.Model(); got != "openai/gpt-4.1-mini" {
		t.Fatalf("Model() = %q, want alias target", got)
	}
	if got := cfg.ResolveModel("other"); got != "other" {
		t.Fatalf("ResolveModel(other) = %q, want passthrough", got)
	}
}

func TestLoadFromRejectsMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"mcpServers": [`)
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("LoadFrom() error = nil, want parse error")
	}
}

func TestLoadFromExpandsEnvValues(t *testing.T) {
	t.Setenv("API_TOKEN", `abc"def`)
	t.Setenv("MISSING_WITH_DEFAULT", "")
	os.Unsetenv("MISSING_WITH_DEFAULT")

	path := writeConfig(t, `{
  "mcpServers": {
    "gh": {
      "command": "${GH_BIN:-npx}",
      "args": ["--token", "${API_TOKEN}", "${NOT_SET_ANYWHERE}"],
      "env": {"TOKEN": "Bearer ${API_TOKEN}", "MODE": "${MISSING_WITH_DEFAULT:-prod}"}
    }
  }
}`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	srv := cfg.MCPServers["gh"]
	if srv.Command != "npx" {
		t.Fatalf("Command = %q, want default %q", srv.Command, "npx")
	}
	if srv.Args[1] != `abc"def` {
		t.Fatalf("Args[1] = %q, want %q", srv.Args[1], `abc"def`)
	}
	if srv.Args[2] != "${NOT_SET_ANYWHERE}" {
		t.Fatalf("Args[2] = %q, want unresolved placeholder kept", srv.Args[2])
	}
	if srv.Env["TOKEN"] != `Bearer abc"def` {
		t.Fatalf("Env[TOKEN] = %q", srv.Env["TOKEN"])
	}
	if srv.Env["MODE"] != "prod" {
		t.Fatalf("Env[MODE] = %q, want %q", srv.Env["MODE"], "prod")
	}
}

func TestExpandEnvPrefersSetValueOverDefault(t *testing.T) {
	t.Setenv("ASK_TEST_VALUE", "set")
	t.Setenv("ASK_TEST_NESTED", "p${ASK_TEST_VALUE}x")

	tests := []struct {
		in   string
		want string
	}{
		{"${ASK_TEST_VALUE:-fallback}", "set"},
		{"${ASK_TEST_UNSET_VALUE:-fallback}", "fallback"},
		{"${ASK_TEST_UNSET_VALUE:-}", ""},
		{"pre-${ASK_TEST_VALUE}-post", "pre-set-post"},
		{"no placeholders", "no placeholders"},
		{"${ASK_TEST_NESTED}", "p${ASK_TEST_VALUE}x"},
	}
	for _, tt := range tests {
		if got := ExpandEnv(tt.in); got != tt.want {
			t.Fatalf("ExpandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCloneServerDoesNotShareState(t *testing.T) {
	in := ServerConfig{
		Command: "run",
		Args:    []string{"a"},
		Env:     map[string]string{"K": "v"},
		Headers: map[string]string{"H": "h"},
	}

	out := CloneServer(in)
	out.Args[0] = "changed"
	out.Env["K"] = "changed"
	out.Headers["H"] = "changed"
	if in.Args[0] != "a" || in.Env["K"] != "v" || in.Headers["H"] != "h" {
		t.Fatalf("input mutated: %#v", in)
	}
}
