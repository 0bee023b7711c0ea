package config

// DefaultModel is used when neither a flag nor the config names a model.
const DefaultModel = "gpt-4.1-mini"

// Config is the top-level ask configuration stored at ~/.ask/config.
type Config struct {
	MCPServers        map[string]ServerConfig `json:"mcpServers"`
	AutoApprovedTools []string                `json:"autoApprovedTools"`
	BaseURL           string                  `json:"baseUrl,omitempty"`
	DefaultModel      string                  `json:"defaultModel,omitempty"`
	ModelAliases      map[string]string       `json:"modelAliases,omitempty"`
}

// ServerConfig describes how to launch or reach a single MCP server.
// The map key it is stored under doubles as the tool prefix.
type ServerConfig struct {
	// Stdio transport
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// HTTP transport
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// IsHTTP returns true if the server uses HTTP transport.
func (s ServerConfig) IsHTTP() bool {
	return s.URL != ""
}

// Model returns the configured default model, resolved through aliases.
func (c *Config) Model() string {
	if c == nil || c.DefaultModel == "" {
		return DefaultModel
	}
	return c.ResolveModel(c.DefaultModel)
}

// ResolveModel maps an alias to its model id. Unknown names pass through.
func (c *Config) ResolveModel(name string) string {
	if c == nil {
		return name
	}
	if model, ok := c.ModelAliases[name]; ok && model != "" {
		return model
	}
	return name
}

// IsAutoApproved reports whether tool is listed in autoApprovedTools.
func (c *Config) IsAutoApproved(tool string) bool {
	if c == nil {
		return false
	}
	for _, t := range c.AutoApprovedTools {
		if t == tool {
			return true
		}
	}
	return false
}

func (c *Config) normalize() {
	if c.MCPServers == nil {
		c.MCPServers = make(map[string]ServerConfig)
	}
	if c.AutoApprovedTools == nil {
		c.AutoApprovedTools = []string{}
	}
}
