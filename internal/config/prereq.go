package config

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

type lookupPathFunc func(file string) (string, error)

// CheckCommand verifies that a stdio server's launcher is on PATH. For
// `env`-wrapped commands the wrapped program is checked as well.
func CheckCommand(srv ServerConfig) error {
	return checkCommandWithLookup(srv, exec.LookPath)
}

func checkCommandWithLookup(srv ServerConfig, lookup lookupPathFunc) error {
	command := strings.TrimSpace(srv.Command)
	if command == "" || strings.Contains(command, "${") {
		return nil
	}
	if _, err := lookup(command); err != nil {
		return fmt.Errorf("required runtime %q not found in PATH", command)
	}

	if filepath.Base(command) != "env" {
		return nil
	}
	wrapped := envWrappedCommand(srv.Args)
	if wrapped == "" {
		return nil
	}
	if _, err := lookup(wrapped); err != nil {
		return fmt.Errorf("required runtime %q not found in PATH", wrapped)
	}
	return nil
}

// envWrappedCommand returns the program an `env [OPTION]... [NAME=VALUE]...
// COMMAND` invocation runs.
func envWrappedCommand(args []string) string {
	for i := 0; i < len(args); i++ {
		token := strings.TrimSpace(args[i])
		switch {
		case token == "":
			continue
		case token == "--":
			return firstCommandToken(args[i+1:])
		case token == "-S" || token == "--split-string":
			if i+1 >= len(args) {
				return ""
			}
			i++
			if cmd := envWrappedCommand(strings.Fields(args[i])); cmd != "" {
				return cmd
			}
		case strings.HasPrefix(token, "-S="), strings.HasPrefix(token, "--split-string="):
			_, value, _ := strings.Cut(token, "=")
			if cmd := envWrappedCommand(strings.Fields(value)); cmd != "" {
				return cmd
			}
		case token == "-u" || token == "--unset" || token == "-C" || token == "--chdir":
			i++
		case strings.HasPrefix(token, "-"):
			continue
		case strings.Index(token, "=") > 0:
			continue
		default:
			return trimQuotes(token)
		}
	}
	return ""
}

func firstCommandToken(args []string) string {
	for _, raw := range args {
		token := trimQuotes(strings.TrimSpace(raw))
		if token == "" || strings.Index(token, "=") > 0 {
			continue
		}
		return token
	}
	return ""
}

func trimQuotes(token string) string {
	if len(token) >= 2 {
		first, last := token[0], token[len(token)-1]
		if (first == '\'' || first == '"') && first == last {
			return token[1 : len(token)-1]
		}
	}
	return token
}
