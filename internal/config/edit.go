package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrServerExists is returned when adding a server whose name is taken.
	ErrServerExists = errors.New("server already exists")
	// ErrServerNotFound is returned when removing an unknown server.
	ErrServerNotFound = errors.New("server not found")
	// ErrAliasNotFound is returned when removing an unknown model alias.
	ErrAliasNotFound = errors.New("model alias not found")
)

// Update loads the config for editing, applies fn, validates the entries fn
// added or changed and saves it back. Entries fn left alone are neither
// validated nor rewritten, so placeholders in them are preserved.
func Update(fn func(*Config) error) error {
	cfg, err := LoadForEdit()
	if err != nil {
		return err
	}
	before := snapshot(cfg)
	if err := fn(cfg); err != nil {
		return err
	}
	if err := validateChanged(before, cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return Save(cfg)
}

func snapshot(cfg *Config) *Config {
	snap := &Config{
		MCPServers:   make(map[string]ServerConfig, len(cfg.MCPServers)),
		ModelAliases: cloneStringMap(cfg.ModelAliases),
	}
	for name, srv := range cfg.MCPServers {
		snap.MCPServers[name] = cloneServerConfig(srv)
	}
	return snap
}

// AddServer registers a server under name.
func (c *Config) AddServer(name string, srv ServerConfig) error {
	c.normalize()
	if _, ok := c.MCPServers[name]; ok {
		return fmt.Errorf("%w: %s (remove it first with: ask mcp remove %s)", ErrServerExists, name, name)
	}
	c.MCPServers[name] = srv
	return nil
}

// RemoveServer deletes the server registered under name.
func (c *Config) RemoveServer(name string) error {
	if _, ok := c.MCPServers[name]; !ok {
		return fmt.Errorf("%w: %s", ErrServerNotFound, name)
	}
	delete(c.MCPServers, name)
	return nil
}

// ServerNames returns configured server names in sorted order.
func (c *Config) ServerNames() []string {
	names := make([]string, 0, len(c.MCPServers))
	for name := range c.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddAutoApprovedTool appends tool to autoApprovedTools unless present.
// It reports whether the list changed.
func (c *Config) AddAutoApprovedTool(tool string) bool {
	c.normalize()
	if c.IsAutoApproved(tool) {
		return false
	}
	c.AutoApprovedTools = append(c.AutoApprovedTools, tool)
	return true
}

// SetAlias maps alias to model.
func (c *Config) SetAlias(alias, model string) {
	if c.ModelAliases == nil {
		c.ModelAliases = make(map[string]string)
	}
	c.ModelAliases[alias] = model
}

// RemoveAlias deletes alias.
func (c *Config) RemoveAlias(alias string) error {
	if _, ok := c.ModelAliases[alias]; !ok {
		return fmt.Errorf("%w: %s", ErrAliasNotFound, alias)
	}
	delete(c.ModelAliases, alias)
	return nil
}

// PersistAutoApproval records tool as always approved in the config file.
func PersistAutoApproval(tool string) error {
	return Update(func(cfg *Config) error {
		cfg.AddAutoApprovedTool(tool)
		return nil
	})
}

// ParseEnvPairs converts KEY=VALUE strings into a map.
func ParseEnvPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid env %q: expected KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}

// Scaffold returns the document written by ask init: a filesystem server
// rooted at the directory ask is run from.
func Scaffold() *Config {
	cfg := &Config{
		MCPServers: map[string]ServerConfig{
			"filesystem": {
				Command: "npx",
				Args:    []string{"-y", "@modelcontextprotocol/server-filesystem", "${PWD:-.}"},
			},
		},
	}
	cfg.normalize()
	return cfg
}
