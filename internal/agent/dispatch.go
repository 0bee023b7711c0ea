package agent

import (
	"context"
	"fmt"

	"github.com/avi1989/ask/internal/response"
	"github.com/avi1989/ask/internal/session"
	"github.com/avi1989/ask/internal/shell"
	"go.uber.org/zap"
)

// dispatch runs one tool call and returns the text handed back to the
// model. Failures are reported in the text, never as errors.
func (r *run) dispatch(ctx context.Context, call session.ToolCall) string {
	name := call.Function.Name
	r.deps.Logger.Debug("dispatching tool call", zap.String("tool", name), zap.String("id", call.ID))
	if name == shell.ToolName {
		return r.executeCommand(ctx, call.Function.Arguments)
	}
	return r.executeMCPTool(ctx, name, call.Function.Arguments)
}

func (r *run) executeCommand(ctx context.Context, arguments string) string {
	args, err := shell.ParseArgs(arguments)
	if err != nil {
		return fmt.Sprintf("Error: Failed to parse command arguments: %v", err)
	}
	if !r.gate.Check(shell.ToolName, args.Command, r.opts.Verbose) {
		return "Command execution canceled by user."
	}
	out := r.deps.Runner.Run(ctx, args.Command, args.WorkingDirectory)
	if out == "" {
		return "Executed"
	}
	return out
}

func (r *run) executeMCPTool(ctx context.Context, name, arguments string) string {
	srv, ok := r.pool.Resolve(name)
	if !ok {
		return "Unknown tool: " + name
	}

	if !r.gate.Check(name, preview(name, arguments, r.opts.Verbose), r.opts.Verbose) {
		return "MCP tool execution canceled by user."
	}

	if _, running := r.pool.Handle(srv.Name); !running && r.opts.Verbose {
		fmt.Fprintf(r.deps.Err, "Initializing MCP server '%s'...\n", srv.Name)
	}
	if err := r.pool.EnsureInitialized(ctx, srv.Name); err != nil {
		return fmt.Sprintf("Error: Failed to initialize MCP server '%s': %v", srv.Name, err)
	}

	result, err := r.pool.CallTool(ctx, name, arguments)
	if err != nil {
		return fmt.Sprintf("Error executing MCP tool %s: %v", name, err)
	}
	out := response.Render(result)
	if r.opts.Verbose {
		fmt.Fprintf(r.deps.Err, "\n[MCP Tool Response]\n%s\n[End MCP Tool Response]\n\n", out)
	}
	return out
}
