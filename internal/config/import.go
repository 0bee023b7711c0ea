package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/avi1989/ask/internal/httpheaders"
	"github.com/avi1989/ask/internal/paths"
)

type mcpServersDocument struct {
	MCPServers map[string]mcpServerEntry `json:"mcpServers"`
	Projects   map[string]projectEntry   `json:"projects"`
}

type projectEntry struct {
	MCPServers map[string]mcpServerEntry `json:"mcpServers"`
}

type mcpServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

type codexConfigDocument struct {
	MCPServers map[string]codexServerEntry `toml:"mcp_servers"`
}

type codexServerEntry struct {
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
	EnvVars []string          `toml:"env_vars"`

	URL               string            `toml:"url"`
	BearerTokenEnvVar string            `toml:"bearer_token_env_var"`
	HTTPHeaders       map[string]string `toml:"http_headers"`
	EnvHTTPHeaders    map[string]string `toml:"env_http_headers"`

	Enabled *bool `toml:"enabled"`
}

// ImportResult describes the outcome of MergeImported.
type ImportResult struct {
	Added   []string
	Skipped []string
}

// ImportSources returns the documents other MCP clients keep their server
// lists in, for the current platform. Project files are searched upward
// from cwd (the process working directory when empty).
func ImportSources(cwd string) []string {
	home := paths.Home()
	if home == "" {
		return nil
	}

	var appConfig []string
	switch runtime.GOOS {
	case "darwin":
		support := filepath.Join(home, "Library", "Application Support")
		appConfig = []string{
			filepath.Join(support, "Claude", "claude_desktop_config.json"),
			filepath.Join(support, "Code", "User", "globalStorage", "saoudrizwan.claude-dev", "settings", "cline_mcp_settings.json"),
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			appConfig = []string{
				filepath.Join(appData, "Claude", "claude_desktop_config.json"),
				filepath.Join(appData, "Code", "User", "globalStorage", "saoudrizwan.claude-dev", "settings", "cline_mcp_settings.json"),
			}
		}
	default:
		appConfig = []string{
			filepath.Join(home, ".config", "Claude", "claude_desktop_config.json"),
			filepath.Join(home, ".config", "Code", "User", "globalStorage", "saoudrizwan.claude-dev", "settings", "cline_mcp_settings.json"),
		}
	}

	sources := []string{filepath.Join(home, ".cursor", "mcp.json")}
	sources = append(sources, appConfig...)
	sources = append(sources,
		filepath.Join(home, ".claude.json"),
		filepath.Join(home, ".codex", "config.toml"),
		nearestUpwardPath(".mcp.json", cwd),
		filepath.Join(home, ".kiro", "settings", "mcp.json"),
	)
	return compactPaths(sources)
}

// LoadImportable reads server definitions from the given documents.
// Missing files are skipped; the first document to define a name wins.
// Placeholders are kept unexpanded so imported entries never bake secrets.
func LoadImportable(sources []string, cwd string) (map[string]ServerConfig, error) {
	servers := make(map[string]ServerConfig)
	var errs []error

	for _, path := range sources {
		found, err := loadImportSource(path, cwd)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		for name, srv := range found {
			if _, exists := servers[name]; !exists {
				servers[name] = srv
			}
		}
	}
	return servers, errors.Join(errs...)
}

// MergeImported copies servers into cfg. Names already configured, or that
// cannot serve as a tool prefix, are skipped.
func (c *Config) MergeImported(servers map[string]ServerConfig) ImportResult {
	c.normalize()
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	var res ImportResult
	for _, name := range names {
		if _, exists := c.MCPServers[name]; exists || ValidateServerName(name) != nil {
			res.Skipped = append(res.Skipped, name)
			continue
		}
		c.MCPServers[name] = servers[name]
		res.Added = append(res.Added, name)
	}
	return res
}

func loadImportSource(path, cwd string) (map[string]ServerConfig, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return loadCodexConfigFile(path)
	}
	return loadMCPServersFile(path, cwd)
}

func loadMCPServersFile(path, cwd string) (map[string]ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc mcpServersDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing mcpServers JSON: %w", err)
	}

	servers := make(map[string]ServerConfig, len(doc.MCPServers))
	mergeServerEntries(servers, matchProjectServers(doc.Projects, cwd))
	mergeServerEntries(servers, doc.MCPServers)
	return servers, nil
}

func mergeServerEntries(dst map[string]ServerConfig, src map[string]mcpServerEntry) {
	for name, srv := range src {
		if _, exists := dst[name]; exists {
			continue
		}
		dst[name] = ServerConfig{
			Command: srv.Command,
			Args:    srv.Args,
			Env:     srv.Env,
			URL:     srv.URL,
			Headers: srv.Headers,
		}
	}
}

func loadCodexConfigFile(path string) (map[string]ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc codexConfigDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing codex config TOML: %w", err)
	}

	servers := make(map[string]ServerConfig, len(doc.MCPServers))
	for name, entry := range doc.MCPServers {
		if entry.Enabled != nil && !*entry.Enabled {
			continue
		}

		// env_vars forward variables from the caller's environment; keep
		// them as placeholders resolved at load time.
		env := cloneStringMap(entry.Env)
		for _, key := range entry.EnvVars {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if env == nil {
				env = make(map[string]string)
			}
			if _, exists := env[key]; !exists {
				env[key] = "${" + key + "}"
			}
		}

		headers := cloneStringMap(entry.HTTPHeaders)
		for header, envVar := range entry.EnvHTTPHeaders {
			header = strings.TrimSpace(header)
			envVar = strings.TrimSpace(envVar)
			if header == "" || envVar == "" {
				continue
			}
			headers = httpheaders.SetDefault(headers, header, "${"+envVar+"}")
		}
		if tokenEnv := strings.TrimSpace(entry.BearerTokenEnvVar); tokenEnv != "" {
			headers = httpheaders.SetDefault(headers, "Authorization", "Bearer ${"+tokenEnv+"}")
		}

		servers[name] = ServerConfig{
			Command: entry.Command,
			Args:    entry.Args,
			Env:     env,
			URL:     entry.URL,
			Headers: headers,
		}
	}
	return servers, nil
}

// matchProjectServers picks the servers of the deepest project entry that
// contains cwd (Claude's ~/.claude.json keeps per-project lists).
func matchProjectServers(projects map[string]projectEntry, cwd string) map[string]mcpServerEntry {
	if len(projects) == 0 {
		return nil
	}
	base := resolveWorkingDirectory(cwd)
	if base == "" {
		return nil
	}

	bestLen := -1
	var best map[string]mcpServerEntry
	for projectPath, entry := range projects {
		if len(entry.MCPServers) == 0 {
			continue
		}
		root := filepath.Clean(projectPath)
		if isWithinPath(base, root) && len(root) > bestLen {
			bestLen = len(root)
			best = entry.MCPServers
		}
	}
	return best
}

func isWithinPath(path, root string) bool {
	if path == root {
		return true
	}
	if root == string(os.PathSeparator) {
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(os.PathSeparator))
}

func nearestUpwardPath(relPath, cwd string) string {
	dir := resolveWorkingDirectory(cwd)
	if dir == "" {
		return ""
	}
	for {
		candidate := filepath.Join(dir, relPath)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func resolveWorkingDirectory(cwd string) string {
	if cwd = strings.TrimSpace(cwd); cwd != "" {
		return filepath.Clean(cwd)
	}
	wd, err := os.Getwd()
	if err != nil || wd == "" {
		return ""
	}
	return filepath.Clean(wd)
}

func compactPaths(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
