package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/avi1989/ask/internal/paths"
)

// ${VAR} or ${VAR:-default}; group 2 is set only with a default.
var envVarRe = regexp.MustCompile(`\$\{([^:}]+)(:-[^}]*)?\}`)

// Load reads the config file and returns the parsed Config.
// If the config file does not exist, it returns an empty Config (no error).
func Load() (*Config, error) {
	return LoadFrom(paths.ConfigFile())
}

// LoadForEdit reads the config file for in-place edits.
// Unlike Load, it preserves raw ${ENV_VAR} placeholders.
func LoadForEdit() (*Config, error) {
	return LoadForEditFrom(paths.ConfigFile())
}

// LoadFrom reads and parses a config file at the given path.
func LoadFrom(path string) (*Config, error) {
	return loadFrom(path, true)
}

// LoadForEditFrom reads and parses a config file at the given path for edits.
// It skips env expansion so writes do not bake secrets.
func LoadForEditFrom(path string) (*Config, error) {
	return loadFrom(path, false)
}

// Exists reports whether a config document is present at the default path.
func Exists() bool {
	_, err := os.Stat(paths.ConfigFile())
	return err == nil
}

func loadFrom(path string, expand bool) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.normalize()
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.normalize()
	if expand {
		for name, srv := range cfg.MCPServers {
			cfg.MCPServers[name] = expandServerEnvVars(srv)
		}
	}
	return cfg, nil
}

// CloneServer returns a deep copy of server.
func CloneServer(server ServerConfig) ServerConfig {
	return cloneServerConfig(server)
}

func expandServerEnvVars(srv ServerConfig) ServerConfig {
	srv.Command = ExpandEnv(srv.Command)
	srv.URL = ExpandEnv(srv.URL)

	for i := range srv.Args {
		srv.Args[i] = ExpandEnv(srv.Args[i])
	}
	for k, v := range srv.Env {
		srv.Env[k] = ExpandEnv(v)
	}
	for k, v := range srv.Headers {
		srv.Headers[k] = ExpandEnv(v)
	}
	return srv
}

// ExpandEnv replaces ${VAR:-default} with the variable's value or the
// default, and ${VAR} with the variable's value. Unset ${VAR} references
// are left as-is. Substituted text is not expanded again.
func ExpandEnv(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		m := envVarRe.FindStringSubmatch(match)
		if val, ok := os.LookupEnv(m[1]); ok {
			return val
		}
		if def, ok := strings.CutPrefix(m[2], ":-"); ok {
			return def
		}
		return match
	})
}

func cloneServerConfig(srv ServerConfig) ServerConfig {
	cloned := srv
	cloned.Args = slices.Clone(srv.Args)
	cloned.Env = cloneStringMap(srv.Env)
	cloned.Headers = cloneStringMap(srv.Headers)
	return cloned
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
