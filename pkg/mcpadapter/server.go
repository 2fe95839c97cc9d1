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

package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent"
)

const instructions = `Tools of the insurance claim processing pipeline.
parse_claim validates a raw claim, retrieve_policy_context finds policy clauses,
recommend_settlement computes coverage and settlement, detect_fraud scores risk,
make_decision combines a recommendation and a fraud assessment, and
analyze_document extracts fields from a claim document.`

// NewMCPServer publishes every adapter tool on an MCP server.
func NewMCPServer(a *Adapter, name, version string) *server.MCPServer {
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(false),
		server.WithInstructions(instructions),
		server.WithRecovery(),
	)
	for _, t := range a.ListTools() {
		s.AddTool(mcp.NewToolWithRawSchema(t.Name, t.Description, t.InputSchema), a.handler(t.Name))
	}
	return s
}

func (a *Adapter) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(req.GetRawArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("arguments are not JSON: %v", err)), nil
		}
		if string(args) == "null" {
			args = nil
		}

		res, err := a.CallTool(ctx, name, args)
		if err != nil {
			if errors.Is(err, agent.ErrUnknownTool) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return nil, err
		}
		if res.Error != "" {
			slog.Debug("MCP tool call failed", "tool", name, "error", res.Error)
			return mcp.NewToolResultError(res.Error), nil
		}
		return mcp.NewToolResultStructured(res.Result, string(res.Result)), nil
	}
}

// HTTPHandler serves the MCP server over streamable HTTP at endpoint.
func HTTPHandler(s *server.MCPServer, endpoint string) http.Handler {
	return server.NewStreamableHTTPServer(s,
		server.WithEndpointPath(endpoint),
		server.WithStateLess(true),
	)
}

// ServeStdio runs the MCP server on standard input and output until EOF.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
