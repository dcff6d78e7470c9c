// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPConfig configures a subprocess MCP server to connect to over stdio.
type MCPConfig struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	// Filter, if non-empty, restricts ListTools to these tool names.
	Filter []string
}

// MCPService is an ExternalService backed by an MCP server reached over
// stdio. The connection is established lazily on first use and reused
// for the lifetime of the service.
type MCPService struct {
	cfg MCPConfig

	mu        sync.Mutex
	client    *client.Client
	connected bool
	filterSet map[string]bool
}

// NewMCPService constructs a service for cfg. No subprocess is started
// until the first ListTools or CallTool.
func NewMCPService(cfg MCPConfig) *MCPService {
	var filterSet map[string]bool
	if len(cfg.Filter) > 0 {
		filterSet = make(map[string]bool, len(cfg.Filter))
		for _, name := range cfg.Filter {
			filterSet[name] = true
		}
	}
	return &MCPService{cfg: cfg, filterSet: filterSet}
}

func (s *MCPService) convertEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// connect starts the subprocess and initializes the MCP session. Callers
// must hold s.mu.
func (s *MCPService) connect(ctx context.Context) error {
	if s.connected {
		return nil
	}

	mcpClient, err := client.NewStdioMCPClient(s.cfg.Command, s.convertEnv(s.cfg.Env), s.cfg.Args...)
	if err != nil {
		return fmt.Errorf("tool: create MCP client for %s: %w", s.cfg.Name, err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("tool: start MCP client for %s: %w", s.cfg.Name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "orin",
		Version: "0.1.0",
	}
	initReq.Params.ProtocolVersion = "2024-11-05"

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("tool: initialize MCP session for %s: %w", s.cfg.Name, err)
	}

	s.client = mcpClient
	s.connected = true
	return nil
}

// ListTools returns the tools exposed by the MCP server, narrowed by
// MCPConfig.Filter if set.
func (s *MCPService) ListTools(ctx context.Context) ([]Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	listResp, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("tool: list MCP tools for %s: %w", s.cfg.Name, err)
	}

	tools := make([]Tool, 0, len(listResp.Tools))
	for _, mcpTool := range listResp.Tools {
		if s.filterSet != nil && !s.filterSet[mcpTool.Name] {
			continue
		}
		tools = append(tools, &mcpToolInfo{
			name:   mcpTool.Name,
			desc:   mcpTool.Description,
			schema: convertMCPSchema(mcpTool.InputSchema),
		})
	}
	return tools, nil
}

// CallTool invokes name on the MCP server with args and normalizes the
// response into a Result.
func (s *MCPService) CallTool(ctx context.Context, name string, args map[string]any) (Result, error) {
	s.mu.Lock()
	if err := s.connect(ctx); err != nil {
		s.mu.Unlock()
		return Result{}, err
	}
	mcpClient := s.client
	s.mu.Unlock()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("tool: call MCP tool %q: %w", name, err)
	}
	return parseMCPResult(resp), nil
}

// Close shuts down the underlying subprocess, if connected.
func (s *MCPService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	s.connected = false
	return s.client.Close()
}

func parseMCPResult(resp *mcp.CallToolResult) Result {
	var texts []string
	for _, content := range resp.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			texts = append(texts, textContent.Text)
		}
	}

	text := ""
	switch len(texts) {
	case 0:
	case 1:
		text = texts[0]
	default:
		data, err := json.Marshal(texts)
		if err == nil {
			text = string(data)
		} else {
			text = texts[0]
		}
	}

	return Result{Text: text, IsError: resp.IsError}
}

// convertMCPSchema re-marshals an MCP input schema into the flat
// map[string]any shape Tool.Schema returns elsewhere in this package.
func convertMCPSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// mcpToolInfo wraps a single MCP tool definition as a plain Tool; calls
// are routed back through MCPService.CallTool rather than held per-tool,
// so this package's Dispatcher always goes through
// ExternalService.CallTool and never calls a Tool from ListTools
// directly.
type mcpToolInfo struct {
	name   string
	desc   string
	schema map[string]any
}

func (t *mcpToolInfo) Name() string           { return t.name }
func (t *mcpToolInfo) Description() string    { return t.desc }
func (t *mcpToolInfo) Schema() map[string]any { return t.schema }
func (t *mcpToolInfo) RequiresApproval() bool  { return false }

var _ ExternalService = (*MCPService)(nil)
