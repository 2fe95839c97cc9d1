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

// Package mcpadapter exposes the agents' primary actions as MCP tools.
//
// It is the only package that knows the tool-call shape. Every call is
// turned into an A2A message from the orchestrator and sent through the
// router, so tools get the same validation and telemetry as internal
// traffic.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/protocol"
)

// toolNames is the stable tool name of each agent kind's primary action.
var toolNames = map[agent.Kind]string{
	agent.KindClaimParser:          "parse_claim",
	agent.KindPolicyRetriever:      "retrieve_policy_context",
	agent.KindRecommendationEngine: "recommend_settlement",
	agent.KindFraudDetector:        "detect_fraud",
	agent.KindDecisionMaker:        "make_decision",
	agent.KindDocumentAnalyzer:     "analyze_document",
}

// ToolName returns the tool name for an agent kind.
func ToolName(kind agent.Kind) (string, bool) {
	name, ok := toolNames[kind]
	return name, ok
}

// Tool is one published tool.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`

	AgentID string `json:"-"`
	Action  string `json:"-"`
}

// CallResult is the tool-call response: exactly one of Result and Error is set.
type CallResult struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`

	// Err keeps the typed dispatch error for Go callers.
	Err error `json:"-"`
}

type Adapter struct {
	sender protocol.Sender
	tools  []Tool
	byName map[string]Tool
}

// New derives the tool list from the registry's capability cards, one tool
// per card.
func New(sender protocol.Sender, reg *agent.Registry) (*Adapter, error) {
	a := &Adapter{sender: sender, byName: make(map[string]Tool)}
	for _, card := range reg.CapabilityCards() {
		name, ok := toolNames[card.Kind]
		if !ok {
			return nil, fmt.Errorf("no tool name for agent kind %q", card.Kind)
		}
		if _, dup := a.byName[name]; dup {
			return nil, fmt.Errorf("tool %s would map to more than one agent (second: %s)", name, card.AgentID)
		}
		action := card.Primary()
		t := Tool{
			Name:        name,
			Description: action.Description,
			InputSchema: action.InputSchema,
			AgentID:     card.AgentID,
			Action:      action.Name,
		}
		a.tools = append(a.tools, t)
		a.byName[name] = t
	}
	return a, nil
}

// ListTools returns the tools in capability card order.
func (a *Adapter) ListTools() []Tool {
	out := make([]Tool, len(a.tools))
	copy(out, a.tools)
	return out
}

// Lookup returns the tool registered under name.
func (a *Adapter) Lookup(name string) (Tool, bool) {
	t, ok := a.byName[name]
	return t, ok
}

// CallTool dispatches a tool call. An unknown name fails with
// agent.ErrUnknownTool before anything is sent; dispatch failures are
// reported in the result.
func (a *Adapter) CallTool(ctx context.Context, name string, arguments json.RawMessage) (*CallResult, error) {
	t, ok := a.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", agent.ErrUnknownTool, name)
	}
	if len(arguments) == 0 {
		arguments = json.RawMessage(`{}`)
	}

	msg, err := protocol.NewMessage(agent.OrchestratorID, t.AgentID, t.Action, arguments, "")
	if err != nil {
		return nil, err
	}
	reply, err := a.sender.Send(ctx, msg)
	if err != nil {
		return &CallResult{Error: err.Error(), Err: err}, nil
	}
	return &CallResult{Result: reply.Payload}, nil
}
