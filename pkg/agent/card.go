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

package agent

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/invopop/jsonschema"
)

// Kind is the closed set of pipeline agent variants.
type Kind string

const (
	KindClaimParser          Kind = "claim_parser"
	KindPolicyRetriever      Kind = "policy_retriever"
	KindRecommendationEngine Kind = "recommendation_engine"
	KindFraudDetector        Kind = "fraud_detector"
	KindDecisionMaker        Kind = "decision_maker"
	KindDocumentAnalyzer     Kind = "document_analyzer"
)

// OrchestratorID is the sender id used for messages originating from a run.
const OrchestratorID = "orchestrator"

// Kinds returns all agent kinds in pipeline order.
func Kinds() []Kind {
	return []Kind{
		KindClaimParser,
		KindPolicyRetriever,
		KindRecommendationEngine,
		KindFraudDetector,
		KindDecisionMaker,
		KindDocumentAnalyzer,
	}
}

// Valid reports whether k is one of the six pipeline kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// ActionSpec is the published contract of one action.
type ActionSpec struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"input_schema"`
	OutputSchema json.RawMessage `json:"output_schema"`
}

// CapabilityCard is the self-description an agent publishes for discovery.
type CapabilityCard struct {
	AgentID     string       `json:"agent_id"`
	Kind        Kind         `json:"kind"`
	Label       string       `json:"label"`
	Description string       `json:"description"`
	Version     string       `json:"version,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Actions     []ActionSpec `json:"actions"`
}

// Action looks up an action by name.
func (c CapabilityCard) Action(name string) (ActionSpec, bool) {
	for _, a := range c.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return ActionSpec{}, false
}

// Primary returns the first declared action.
func (c CapabilityCard) Primary() ActionSpec {
	if len(c.Actions) == 0 {
		return ActionSpec{}
	}
	return c.Actions[0]
}

// AgentCard renders the card as an A2A discovery document served at url.
func (c CapabilityCard) AgentCard(url string) *a2a.AgentCard {
	skills := make([]a2a.AgentSkill, 0, len(c.Actions))
	for _, action := range c.Actions {
		skills = append(skills, a2a.AgentSkill{
			ID:          c.AgentID + "." + action.Name,
			Name:        action.Name,
			Description: action.Description,
			Tags:        append([]string{string(c.Kind)}, c.Tags...),
		})
	}

	version := c.Version
	if version == "" {
		version = "1.0.0"
	}

	return &a2a.AgentCard{
		Name:               c.Label,
		Description:        c.Description,
		URL:                url,
		Version:            version,
		ProtocolVersion:    "1.0",
		DefaultInputModes:  []string{"application/json"},
		DefaultOutputModes: []string{"application/json"},
		Skills:             skills,
		Capabilities: a2a.AgentCapabilities{
			Streaming: false,
		},
		PreferredTransport: a2a.TransportProtocolJSONRPC,
		Provider: &a2a.AgentProvider{
			Org: "AI Insurance Claim Assistant",
			URL: "https://github.com/hassanmzia/AI-Insurance-Claim-Assistant",
		},
	}
}

var reflector = &jsonschema.Reflector{
	Anonymous:                 true,
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

// SchemaFor generates the JSON schema of T. Fields without omitempty are required.
func SchemaFor[T any]() json.RawMessage {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return json.RawMessage(`{}`)
	}
	schema := reflector.ReflectFromType(t)
	raw, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("agent: schema for %s: %v", t, err))
	}
	return raw
}
