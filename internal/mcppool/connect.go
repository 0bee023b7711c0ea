package mcppool

import (
	"context"
	"errors"
	"fmt"
	"io"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

const (
	clientName    = "ask"
	clientVersion = "0.1.0"
)

// ErrServerExited is returned for requests that fail because a stdio
// server's stdout closed, which happens when its process goes away.
var ErrServerExited = errors.New("server process exited")

// NewConnector returns the default ConnectFunc. Child stderr is copied to
// stderr; pass io.Discard to silence it.
func NewConnector(stderr io.Writer, logger *zap.Logger) ConnectFunc {
	if stderr == nil {
		stderr = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, srv Server) (Handle, error) {
		if srv.isStdio() {
			return connectStdio(ctx, srv, stderr, logger)
		}
		if srv.URL != "" {
			return connectHTTP(ctx, srv)
		}
		return nil, fmt.Errorf("server %s: no command or url configured", srv.Name)
	}
}

func connectStdio(ctx context.Context, srv Server, stderr io.Writer, logger *zap.Logger) (Handle, error) {
	env := make([]string, 0, len(srv.Env))
	for _, k := range sortedKeys(srv.Env) {
		env = append(env, k+"="+srv.Env[k])
	}

	c, err := mcpclient.NewStdioMCPClientWithOptions(srv.Command, env, srv.Args,
		transport.WithCommandLogger(logger.Sugar().Named(srv.Name)),
	)
	if err != nil {
		return nil, fmt.Errorf("spawning %s: %w", srv.Command, err)
	}

	// Child stderr is diagnostics only. Its EOF says nothing about the
	// server, which may close it and keep serving.
	if r, ok := mcpclient.GetStderr(c); ok && r != nil {
		go func() {
			_, _ = io.Copy(stderr, r)
		}()
	}

	return initialize(ctx, c)
}

func connectHTTP(ctx context.Context, srv Server) (Handle, error) {
	var opts []transport.StreamableHTTPCOption
	if len(srv.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(srv.Headers))
	}

	c, err := mcpclient.NewStreamableHttpClient(srv.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("starting HTTP client: %w", err)
	}
	return initialize(ctx, c)
}

func initialize(ctx context.Context, c *mcpclient.Client) (Handle, error) {
	_, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    clientName,
				Version: clientVersion,
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initializing: %w", serverExited(err))
	}

	return &connection{
		listTools: func(ctx context.Context) ([]mcp.Tool, error) {
			result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
			if err != nil {
				return nil, serverExited(err)
			}
			return result.Tools, nil
		},
		callTool: func(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
			result, err := c.CallTool(ctx, mcp.CallToolRequest{
				Params: mcp.CallToolParams{
					Name:      name,
					Arguments: args,
				},
			})
			if err != nil {
				return nil, serverExited(err)
			}
			return result, nil
		},
		close: c.Close,
	}, nil
}

// serverExited reports a closed stdio transport as ErrServerExited. The
// transport closes once the child's stdout reaches EOF.
func serverExited(err error) error {
	if errors.Is(err, transport.ErrTransportClosed) {
		return fmt.Errorf("%w: %w", ErrServerExited, err)
	}
	return err
}
