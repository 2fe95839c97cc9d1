// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel

// Package server exposes a runtime over HTTP.
//
// Routes:
//
//	GET  /health
//	GET  /agents                                   capability cards
//	GET  /agents/{id}/.well-known/agent-card.json  A2A discovery
//	POST /a2a                                      one A2A message
//	GET  /tools, POST /tools/call                  MCP tool surface as JSON
//	     /mcp                                      streamable MCP endpoint
//	POST /claims/process
//	POST /documents/index, POST /documents/analyze
//	GET  /runs/{id}/tasks                          task tree of a run
//	GET  /metrics
package server
