package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

// Validate checks configuration invariants and returns actionable errors.
func Validate(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var errs []error
	for _, name := range cfg.ServerNames() {
		errs = append(errs, validateServer(name, cfg.MCPServers[name])...)
	}
	for alias, model := range cfg.ModelAliases {
		if strings.TrimSpace(model) == "" {
			errs = append(errs, fmt.Errorf("modelAliases.%s: empty model", alias))
		}
	}
	return errors.Join(errs...)
}

// validateChanged checks only the servers and aliases of after that are new
// or differ from before. Broken entries an edit did not touch stay as they
// are.
func validateChanged(before, after *Config) error {
	var errs []error
	for _, name := range after.ServerNames() {
		srv := after.MCPServers[name]
		if old, ok := before.MCPServers[name]; ok && reflect.DeepEqual(old, srv) {
			continue
		}
		errs = append(errs, validateServer(name, srv)...)
	}
	for alias, model := range after.ModelAliases {
		if old, ok := before.ModelAliases[alias]; ok && old == model {
			continue
		}
		if strings.TrimSpace(model) == "" {
			errs = append(errs, fmt.Errorf("modelAliases.%s: empty model", alias))
		}
	}
	return errors.Join(errs...)
}

// ValidateServerName rejects names that cannot serve as a tool prefix.
func ValidateServerName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New("server name must not be empty")
	case strings.Contains(name, "."):
		return fmt.Errorf("server name %q must not contain '.'", name)
	case strings.ContainsAny(name, " \t\r\n/\\"):
		return fmt.Errorf("server name %q must not contain whitespace or path separators", name)
	}
	return nil
}

func validateServer(name string, srv ServerConfig) []error {
	var errs []error

	if err := ValidateServerName(name); err != nil {
		errs = append(errs, fmt.Errorf("mcpServers.%s: %w", name, err))
	}

	hasCommand := strings.TrimSpace(srv.Command) != ""
	hasURL := strings.TrimSpace(srv.URL) != ""

	switch {
	case hasCommand && hasURL:
		errs = append(errs, fmt.Errorf("mcpServers.%s: configure either command (stdio) or url (http), not both", name))
	case !hasCommand && !hasURL:
		errs = append(errs, fmt.Errorf("mcpServers.%s: missing transport, set command (stdio) or url (http)", name))
	}

	if hasURL && !strings.Contains(srv.URL, "${") {
		if _, err := url.ParseRequestURI(srv.URL); err != nil {
			errs = append(errs, fmt.Errorf("mcpServers.%s.url: invalid URL %q: %w", name, srv.URL, err))
		}
	}

	return errs
}
