package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/avi1989/ask/internal/cache"
)

// ToolName is the name the model uses to request a shell command.
const ToolName = "execute_command"

// Args are the arguments of an execute_command call.
type Args struct {
	Command          string `json:"command"`
	WorkingDirectory string `json:"working_directory"`
}

// ParseArgs decodes the model-supplied argument object.
func ParseArgs(raw string) (Args, error) {
	var fields struct {
		Command          *string `json:"command"`
		WorkingDirectory *string `json:"working_directory"`
	}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Args{}, err
	}
	if fields.Command == nil {
		return Args{}, errors.New("missing field `command`")
	}
	args := Args{Command: *fields.Command}
	if fields.WorkingDirectory != nil {
		args.WorkingDirectory = *fields.WorkingDirectory
	}
	return args, nil
}

// Descriptor describes execute_command to the model.
func Descriptor() cache.Tool {
	return cache.Tool{
		Name:        ToolName,
		Description: "Execute a command on the Operating System",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The command to be executed",
				},
				"working_directory": map[string]any{
					"type":        "string",
					"description": "The working directory for the command execution (optional)",
				},
			},
			"required": []string{"command", "working_directory"},
		},
	}
}

// Runner executes shell commands for a given shell kind.
type Runner struct {
	Kind Kind
	GOOS string
}

// NewRunner returns a Runner for the current host.
func NewRunner(kind Kind) *Runner {
	return &Runner{Kind: kind, GOOS: runtime.GOOS}
}

// Invocation returns the interpreter and flag a command string is passed to.
func (r *Runner) Invocation() (string, string) {
	switch {
	case r.GOOS == "windows" && r.Kind == PowerShell:
		return "powershell", "-Command"
	case r.GOOS == "windows":
		return "cmd", "/C"
	default:
		return "sh", "-c"
	}
}

// Run executes command in dir (the current directory when empty) and
// returns its stdout, or stdout and stderr together when stderr is not
// empty. The exit status is not reported.
func (r *Runner) Run(ctx context.Context, command, dir string) string {
	shell, flag := r.Invocation()
	cmd := exec.CommandContext(ctx, shell, flag, command)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Sprintf("Failed to execute command '%s': %v", command, err)
		}
	}

	out := strings.ToValidUTF8(stdout.String(), "\uFFFD")
	errOut := strings.ToValidUTF8(stderr.String(), "\uFFFD")
	if errOut == "" {
		return out
	}
	return fmt.Sprintf("stdout:\n%s\n---\nstderr:\n%s", out, errOut)
}
