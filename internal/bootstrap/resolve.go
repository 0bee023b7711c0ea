// Package bootstrap turns shareable server descriptions (install links,
// manifest files and manifest URLs) into config entries for `ask mcp add`.
package bootstrap

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/avi1989/ask/internal/config"
)

// Options tune Resolve. Zero values use the network and the filesystem.
type Options struct {
	// Name selects (or names) the server when the source defines several
	// or none.
	Name     string
	Fetch    func(ctx context.Context, source string) ([]byte, error)
	ReadFile func(path string) ([]byte, error)
}

// Resolved is a named server ready to be added to the config.
type Resolved struct {
	Name   string
	Server config.ServerConfig
}

// SourceError reports that a source could not be read or fetched, as
// opposed to being read and found invalid.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("reading %q: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// entry is one server definition in any of the accepted manifest shapes.
type entry struct {
	Command   string            `json:"command" toml:"command"`
	Args      []string          `json:"args" toml:"args"`
	Env       map[string]string `json:"env" toml:"env"`
	URL       string            `json:"url" toml:"url"`
	Headers   map[string]string `json:"headers" toml:"headers"`
	Transport string            `json:"transport" toml:"transport"`
	Type      string            `json:"type" toml:"type"`
	Install   *entry            `json:"install" toml:"install"`
}

func (e entry) empty() bool {
	return e.Command == "" && e.URL == "" && e.Install == nil
}

type manifest struct {
	MCPServers map[string]entry `json:"mcpServers" toml:"mcpServers"`
	Servers    map[string]entry `json:"servers" toml:"servers"`
}

// Resolve reads source and returns the server it describes.
func Resolve(ctx context.Context, source string, opts Options) (Resolved, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Resolved{}, errors.New("missing source")
	}

	var (
		payload []byte
		name    = strings.TrimSpace(opts.Name)
		err     error
	)
	switch {
	case isInstallLink(source):
		u, _ := url.Parse(source)
		if name == "" {
			name = strings.TrimSpace(u.Query().Get("name"))
		}
		payload, err = decodeConfigParam(u.Query().Get("config"))
		if err != nil {
			return Resolved{}, fmt.Errorf("invalid install-link config payload: %w", err)
		}
	case isHTTPURL(source):
		fetch := opts.Fetch
		if fetch == nil {
			fetch = fetchURL
		}
		if payload, err = fetch(ctx, source); err != nil {
			return Resolved{}, &SourceError{Source: source, Err: err}
		}
	default:
		readFile := opts.ReadFile
		if readFile == nil {
			readFile = os.ReadFile
		}
		if payload, err = readFile(source); err != nil {
			return Resolved{}, &SourceError{Source: source, Err: err}
		}
	}

	named, single, err := parsePayload(payload)
	if err != nil {
		return Resolved{}, fmt.Errorf("parsing %q: %w", source, err)
	}
	name, raw, err := selectServer(named, single, name)
	if err != nil {
		return Resolved{}, err
	}
	srv, err := raw.toServer()
	if err != nil {
		return Resolved{}, fmt.Errorf("server %q: %w", name, err)
	}

	cfg := &config.Config{MCPServers: map[string]config.ServerConfig{name: srv}}
	if err := config.Validate(cfg); err != nil {
		return Resolved{}, err
	}
	return Resolved{Name: name, Server: srv}, nil
}

func isInstallLink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || strings.TrimSpace(u.Query().Get("config")) == "" {
		return false
	}
	return strings.EqualFold(u.Scheme, "cursor") ||
		strings.Contains(strings.ToLower(u.Path), "/mcp/install")
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, "http") || strings.EqualFold(u.Scheme, "https")
}

// decodeConfigParam accepts base64 in any of its alphabets, including a
// standard payload whose '+' became ' ' in a query string, or raw JSON.
func decodeConfigParam(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed), nil
	}
	candidates := []string{trimmed, strings.ReplaceAll(trimmed, " ", "+")}
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, candidate := range candidates {
		for _, enc := range encodings {
			decoded, err := enc.DecodeString(candidate)
			if err == nil {
				return decoded, nil
			}
			lastErr = err
		}
	}
	return nil, lastErr
}

func fetchURL(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// parsePayload decodes a JSON or TOML manifest. It returns either a set of
// named servers or a single unnamed one.
func parsePayload(payload []byte) (map[string]entry, *entry, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return parseJSON(trimmed)
	}

	var m manifest
	if _, err := toml.Decode(string(payload), &m); err != nil {
		return nil, nil, errors.New("payload is not a JSON or TOML server manifest")
	}
	if named := m.servers(); len(named) > 0 {
		return named, nil, nil
	}
	var single entry
	if _, err := toml.Decode(string(payload), &single); err == nil && !single.empty() {
		return nil, &single, nil
	}
	return nil, nil, errors.New("manifest does not contain server definitions")
}

func parseJSON(payload []byte) (map[string]entry, *entry, error) {
	var m manifest
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, nil, err
	}
	if named := m.servers(); len(named) > 0 {
		return named, nil, nil
	}

	var single entry
	if err := json.Unmarshal(payload, &single); err == nil && !single.empty() {
		return nil, &single, nil
	}

	// A bare {"name": {...}} map.
	var bare map[string]entry
	if err := json.Unmarshal(payload, &bare); err == nil {
		for name, e := range bare {
			if e.empty() {
				delete(bare, name)
			}
		}
		if len(bare) > 0 {
			return bare, nil, nil
		}
	}
	return nil, nil, errors.New("manifest does not contain server definitions")
}

func (m manifest) servers() map[string]entry {
	if len(m.MCPServers) > 0 {
		return m.MCPServers
	}
	return m.Servers
}

func (e entry) toServer() (config.ServerConfig, error) {
	if e.Install != nil {
		return e.Install.toServer()
	}

	srv := config.ServerConfig{
		Command: strings.TrimSpace(e.Command),
		Args:    e.Args,
		Env:     e.Env,
		URL:     strings.TrimSpace(e.URL),
		Headers: e.Headers,
	}

	transport := e.Transport
	if transport == "" {
		transport = e.Type
	}
	switch normalizeTransport(transport) {
	case "":
	case "stdio":
		if srv.Command == "" {
			return config.ServerConfig{}, fmt.Errorf("transport %q requires command", transport)
		}
	case "http", "https", "streamablehttp":
		if srv.URL == "" {
			return config.ServerConfig{}, fmt.Errorf("transport %q requires url", transport)
		}
	default:
		return config.ServerConfig{}, fmt.Errorf("unsupported transport %q", transport)
	}
	return srv, nil
}

func normalizeTransport(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "_", "")
	return strings.ReplaceAll(normalized, "-", "")
}

func selectServer(named map[string]entry, single *entry, requested string) (string, entry, error) {
	if len(named) > 0 {
		if requested != "" {
			if e, ok := named[requested]; ok {
				return requested, e, nil
			}
			if len(named) == 1 {
				for _, e := range named {
					return requested, e, nil
				}
			}
			return "", entry{}, fmt.Errorf("server %q not found in manifest (available: %s)", requested, strings.Join(sortedNames(named), ", "))
		}
		if len(named) == 1 {
			for name, e := range named {
				return name, e, nil
			}
		}
		return "", entry{}, fmt.Errorf("manifest includes multiple servers (%s); give a server name to select one", strings.Join(sortedNames(named), ", "))
	}

	if single != nil {
		if requested == "" {
			return "", entry{}, errors.New("manifest defines an unnamed server; give a server name")
		}
		return requested, *single, nil
	}
	return "", entry{}, errors.New("manifest does not include any servers")
}

func sortedNames(named map[string]entry) []string {
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
