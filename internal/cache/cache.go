// Package cache persists the tool list of each configured server, keyed by
// the server's launch fingerprint, so that a run can describe every tool to
// the model without starting any server.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/avi1989/ask/internal/config"
	"github.com/avi1989/ask/internal/mcppool"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Tool is a tool description in the shape the model API expects.
// Parameters always carries "type": "object" and a "properties" object.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type storedTool struct {
	Type     string `json:"type"`
	Function Tool   `json:"function"`
}

type entry struct {
	ConfigHash string       `json:"config_hash"`
	Tools      []storedTool `json:"tools"`
}

type document struct {
	Entries map[string]entry `json:"entries"`
}

// Store is the on-disk tool schema cache.
type Store struct {
	path   string
	logger *zap.Logger

	mu  sync.Mutex
	doc document
}

// Open loads the cache at path. A missing or unreadable document yields an
// empty cache.
func Open(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		path:   path,
		logger: logger,
		doc:    document{Entries: make(map[string]entry)},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("reading tool cache", zap.String("path", path), zap.Error(err))
		}
		return s
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Warn("ignoring corrupt tool cache", zap.String("path", path), zap.Error(err))
		return s
	}
	if doc.Entries != nil {
		s.doc = doc
	}
	return s
}

// Lookup returns the cached tools of srv if its entry matches the current
// fingerprint.
func (s *Store) Lookup(srv mcppool.Server) ([]Tool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.doc.Entries[srv.Name]
	if !ok || e.ConfigHash != srv.Fingerprint() {
		return nil, false
	}
	tools := make([]Tool, 0, len(e.Tools))
	for _, st := range e.Tools {
		tools = append(tools, st.Function)
	}
	return tools, true
}

// Stale returns the servers with no entry or with an entry recorded under
// a different fingerprint.
func (s *Store) Stale(servers []mcppool.Server) []mcppool.Server {
	var stale []mcppool.Server
	for _, srv := range servers {
		if _, ok := s.Lookup(srv); !ok {
			stale = append(stale, srv)
		}
	}
	return stale
}

// Tools returns the cached descriptors of every server with a valid entry,
// in the order servers are given.
func (s *Store) Tools(servers []mcppool.Server) []Tool {
	var all []Tool
	for _, srv := range servers {
		tools, ok := s.Lookup(srv)
		if !ok {
			continue
		}
		all = append(all, tools...)
	}
	return all
}

// Populate starts every stale server in parallel, lists its tools, records
// them and shuts the server down again. A server that fails is logged and
// left out; the returned map holds the error of each such server.
func (s *Store) Populate(ctx context.Context, servers []mcppool.Server, connect mcppool.ConnectFunc) map[string]error {
	stale := s.Stale(servers)
	if len(stale) == 0 {
		return nil
	}

	var (
		g        errgroup.Group
		failedMu sync.Mutex
		failed   map[string]error
	)
	for _, srv := range stale {
		srv := srv
		g.Go(func() error {
			if err := s.populateOne(ctx, srv, connect); err != nil {
				s.logger.Debug("failed to list tools", zap.String("server", srv.Name), zap.Error(err))
				failedMu.Lock()
				if failed == nil {
					failed = make(map[string]error)
				}
				failed[srv.Name] = err
				failedMu.Unlock()
			}
			// One server failing must not cancel the others.
			return nil
		})
	}
	_ = g.Wait()
	return failed
}

func (s *Store) populateOne(ctx context.Context, srv mcppool.Server, connect mcppool.ConnectFunc) error {
	h, err := connect(ctx, srv)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Close(); err != nil {
			s.logger.Debug("closing tool server", zap.String("server", srv.Name), zap.Error(err))
		}
	}()

	tools, err := h.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("listing tools: %w", err)
	}
	s.Update(srv, tools)
	return nil
}

// Update replaces the entry of srv with tools under the current
// fingerprint and rewrites the cache file. Write failures are logged only.
func (s *Store) Update(srv mcppool.Server, tools []mcp.Tool) {
	stored := make([]storedTool, 0, len(tools))
	for _, t := range tools {
		stored = append(stored, storedTool{Type: "function", Function: FromMCP(srv, t)})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Entries[srv.Name] = entry{ConfigHash: srv.Fingerprint(), Tools: stored}
	if err := s.saveLocked(); err != nil {
		s.logger.Warn("writing tool cache", zap.String("path", s.path), zap.Error(err))
	}
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding tool cache: %w", err)
	}
	return config.WriteFileAtomic(s.path, data)
}

// FromMCP converts a server-reported tool into the prefixed descriptor
// sent to the model.
func FromMCP(srv mcppool.Server, t mcp.Tool) Tool {
	return Tool{
		Name:        srv.Exposed(t.Name),
		Description: t.Description,
		Parameters:  normalizeSchema(t),
	}
}

func normalizeSchema(t mcp.Tool) map[string]any {
	var raw []byte
	if len(t.RawInputSchema) > 0 {
		raw = t.RawInputSchema
	} else if b, err := json.Marshal(t.InputSchema); err == nil {
		raw = b
	}

	params := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil || params == nil {
			params = map[string]any{}
		}
	}
	params["type"] = "object"
	if _, ok := params["properties"].(map[string]any); !ok {
		params["properties"] = map[string]any{}
	}
	return params
}
