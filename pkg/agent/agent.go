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

// Package agent defines the agent abstraction shared by the six claim
// processing agents: capability cards, typed actions, the registry and
// the error taxonomy used across the pipeline.
//
// An agent is built from typed actions:
//
//	a, err := agent.New(agent.Config{
//	    Kind:  agent.KindFraudDetector,
//	    Label: "Fraud Detector",
//	    Actions: []agent.Action{
//	        agent.NewAction("assess", "Score fraud risk", detector.Assess),
//	    },
//	})
//
// Actions decode their JSON payload into the handler's input type, so the
// router and the tool adapter only ever deal with raw JSON.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Agent is a single pipeline participant addressed by id.
type Agent interface {
	ID() string
	Kind() Kind
	Card() CapabilityCard
	Invoke(ctx context.Context, action string, payload json.RawMessage) (any, error)
}

// Handler executes an action on a raw JSON payload.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Action binds an ActionSpec to its handler.
type Action struct {
	Spec    ActionSpec
	Handler Handler
}

// NewAction builds an action whose schemas are generated from In and Out.
func NewAction[In, Out any](name, description string, fn func(context.Context, In) (Out, error)) Action {
	return Action{
		Spec: ActionSpec{
			Name:         name,
			Description:  description,
			InputSchema:  SchemaFor[In](),
			OutputSchema: SchemaFor[Out](),
		},
		Handler: func(ctx context.Context, payload json.RawMessage) (any, error) {
			var in In
			if len(bytes.TrimSpace(payload)) > 0 {
				if err := json.Unmarshal(payload, &in); err != nil {
					return nil, &ValidationError{Action: name, Message: "payload does not decode", Err: err}
				}
			}
			return fn(ctx, in)
		},
	}
}

// Config describes an agent assembled from actions.
type Config struct {
	// ID defaults to the kind.
	ID          string
	Kind        Kind
	Label       string
	Description string
	Version     string
	Tags        []string
	Actions     []Action
}

// Base is the standard Agent implementation.
type Base struct {
	id      string
	kind    Kind
	card    CapabilityCard
	actions map[string]Handler
}

var _ Agent = (*Base)(nil)

// New validates cfg and builds the agent.
func New(cfg Config) (*Base, error) {
	if !cfg.Kind.Valid() {
		return nil, fmt.Errorf("agent kind %q is not a pipeline kind", cfg.Kind)
	}
	if len(cfg.Actions) == 0 {
		return nil, fmt.Errorf("agent %s declares no actions", cfg.Kind)
	}

	id := cfg.ID
	if id == "" {
		id = string(cfg.Kind)
	}
	label := cfg.Label
	if label == "" {
		label = id
	}

	b := &Base{
		id:      id,
		kind:    cfg.Kind,
		actions: make(map[string]Handler, len(cfg.Actions)),
		card: CapabilityCard{
			AgentID:     id,
			Kind:        cfg.Kind,
			Label:       label,
			Description: cfg.Description,
			Version:     cfg.Version,
			Tags:        cfg.Tags,
		},
	}
	for _, a := range cfg.Actions {
		if a.Spec.Name == "" || a.Handler == nil {
			return nil, fmt.Errorf("agent %s: action must have a name and a handler", id)
		}
		if _, dup := b.actions[a.Spec.Name]; dup {
			return nil, fmt.Errorf("agent %s: duplicate action %q", id, a.Spec.Name)
		}
		b.actions[a.Spec.Name] = a.Handler
		b.card.Actions = append(b.card.Actions, a.Spec)
	}
	return b, nil
}

func (b *Base) ID() string           { return b.id }
func (b *Base) Kind() Kind           { return b.kind }
func (b *Base) Card() CapabilityCard { return b.card }

// Invoke runs the named action. Unknown actions are a ValidationError.
func (b *Base) Invoke(ctx context.Context, action string, payload json.RawMessage) (any, error) {
	h, ok := b.actions[action]
	if !ok {
		return nil, &ValidationError{Agent: b.id, Action: action, Message: "action not supported"}
	}
	out, err := h(ctx, payload)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) && ve.Agent == "" {
			ve.Agent = b.id
		}
		return nil, err
	}
	return out, nil
}
