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

// Package protocol implements the agent-to-agent message envelope and the
// router that dispatches it. Dispatch is local and synchronous: the router
// resolves the receiver, validates the action and payload against the
// receiver's capability card, invokes it and wraps the result in a reply
// on the same correlation chain.
package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/observability"
)

// Sender is anything that can dispatch a message and return the reply.
type Sender interface {
	Send(ctx context.Context, msg *Message) (*Message, error)
}

// Router dispatches messages to registered agents. It never retries.
type Router struct {
	registry *agent.Registry
	schemas  map[string]*jsonschema.Schema
	recorder observability.Recorder
}

var _ Sender = (*Router)(nil)

// Option configures a Router.
type Option func(*Router)

// WithRecorder sets the metrics recorder.
func WithRecorder(rec observability.Recorder) Option {
	return func(r *Router) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// NewRouter compiles the input schema of every action on every card in reg.
func NewRouter(reg *agent.Registry, opts ...Option) (*Router, error) {
	if reg == nil {
		return nil, fmt.Errorf("router requires a registry")
	}
	r := &Router{
		registry: reg,
		schemas:  make(map[string]*jsonschema.Schema),
		recorder: observability.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, card := range reg.CapabilityCards() {
		for _, action := range card.Actions {
			if len(action.InputSchema) == 0 {
				continue
			}
			compiled, err := compileSchema(card.AgentID, action)
			if err != nil {
				return nil, err
			}
			r.schemas[schemaKey(card.AgentID, action.Name)] = compiled
		}
	}
	return r, nil
}

func compileSchema(agentID string, action agent.ActionSpec) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://claimflow.schemas.local/%s/%s.schema.json", agentID, action.Name)
	if err := c.AddResource(url, bytes.NewReader(action.InputSchema)); err != nil {
		return nil, fmt.Errorf("schema load failed for %s.%s: %w", agentID, action.Name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema compile failed for %s.%s: %w", agentID, action.Name, err)
	}
	return compiled, nil
}

func schemaKey(agentID, action string) string { return agentID + "/" + action }

// Send dispatches msg and returns the receiver's reply.
//
// Errors: ErrUnknownAgent when the receiver is not registered,
// *ValidationError when the action is not on the receiver's card or the
// payload violates its schema, *AgentExecutionError when the agent fails.
func (r *Router) Send(ctx context.Context, msg *Message) (*Message, error) {
	if msg == nil {
		return nil, &agent.ValidationError{Message: "nil message"}
	}
	if msg.ToAgent == "" || msg.Action == "" {
		return nil, &agent.ValidationError{Agent: msg.ToAgent, Action: msg.Action, Message: "to_agent and action are required"}
	}
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	if msg.CorrelationID == "" {
		msg.CorrelationID = msg.MessageID
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	target, err := r.registry.Resolve(msg.ToAgent)
	if err != nil {
		return nil, err
	}
	if _, ok := target.Card().Action(msg.Action); !ok {
		return nil, &agent.ValidationError{Agent: target.ID(), Action: msg.Action, Message: "action not supported by agent"}
	}
	if err := r.validatePayload(target.ID(), msg.Action, msg.Payload); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "a2a "+target.ID()+"."+msg.Action,
		observability.AttrAgent, target.ID(),
		observability.AttrAction, msg.Action,
		observability.AttrCorrelationID, msg.CorrelationID,
		observability.AttrMessageID, msg.MessageID,
	)
	start := time.Now()
	out, err := target.Invoke(ctx, msg.Action, msg.Payload)
	duration := time.Since(start)
	r.recorder.RecordAgentCall(ctx, target.ID(), msg.Action, duration, err)

	if err != nil {
		observability.EndSpan(span, err)
		slog.Debug("A2A dispatch failed", "agent", target.ID(), "action", msg.Action,
			"correlation_id", msg.CorrelationID, "duration", duration, "error", err)

		var ve *agent.ValidationError
		if errors.As(err, &ve) {
			return nil, err
		}
		return nil, &agent.AgentExecutionError{Agent: target.ID(), Action: msg.Action, Err: err}
	}

	reply, err := msg.Reply(out)
	if err != nil {
		observability.EndSpan(span, err)
		return nil, &agent.AgentExecutionError{Agent: target.ID(), Action: msg.Action, Err: err}
	}
	observability.EndSpan(span, nil)

	slog.Debug("A2A dispatch", "agent", target.ID(), "action", msg.Action,
		"correlation_id", msg.CorrelationID, "duration", duration)
	return reply, nil
}

func (r *Router) validatePayload(agentID, action string, payload json.RawMessage) error {
	schema, ok := r.schemas[schemaKey(agentID, action)]
	if !ok {
		return nil
	}

	var doc any = map[string]any{}
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, &doc); err != nil {
			return &agent.ValidationError{Agent: agentID, Action: action, Message: "payload is not valid JSON", Err: err}
		}
	}
	if err := schema.Validate(doc); err != nil {
		return &agent.ValidationError{Agent: agentID, Action: action, Message: "payload violates input schema", Err: err}
	}
	return nil
}

// Registry exposes the registry the router dispatches over.
func (r *Router) Registry() *agent.Registry { return r.registry }
