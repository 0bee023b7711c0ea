package mcppool

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/avi1989/ask/internal/config"
)

// Server is the immutable launch description of one tool server. Tools it
// exposes are published as <ToolPrefix>_<inner name>.
type Server struct {
	Name       string
	Command    string
	Args       []string
	Env        map[string]string
	URL        string
	Headers    map[string]string
	ToolPrefix string
}

// ServersFromConfig returns copies of the configured servers sorted by
// name. cfg is expected to come from config.Load, which has already
// expanded placeholders. The config key is used as the tool prefix.
func ServersFromConfig(cfg *config.Config) []Server {
	if cfg == nil {
		return nil
	}
	servers := make([]Server, 0, len(cfg.MCPServers))
	for _, name := range cfg.ServerNames() {
		scfg := config.CloneServer(cfg.MCPServers[name])
		servers = append(servers, Server{
			Name:       name,
			Command:    scfg.Command,
			Args:       scfg.Args,
			Env:        scfg.Env,
			URL:        scfg.URL,
			Headers:    scfg.Headers,
			ToolPrefix: name,
		})
	}
	return servers
}

// Fingerprint hashes every field that influences which tools the server
// exposes. Map entries are hashed in key order.
func (s Server) Fingerprint() string {
	h := sha256.New()
	write := func(v string) {
		h.Write([]byte(v))
		h.Write([]byte{0})
	}

	write(s.Command)
	for _, arg := range s.Args {
		write(arg)
	}
	write("")
	for _, k := range sortedKeys(s.Env) {
		write(k + "=" + s.Env[k])
	}
	write("")
	write(s.ToolPrefix)
	write(s.URL)
	for _, k := range sortedKeys(s.Headers) {
		write(k + ":" + s.Headers[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Exposed returns the name under which inner is published to the model.
func (s Server) Exposed(inner string) string {
	return s.ToolPrefix + "_" + inner
}

func (s Server) isStdio() bool {
	return s.Command != ""
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
