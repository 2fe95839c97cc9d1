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

package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent"
)

// Message is the A2A envelope exchanged between agents.
type Message struct {
	MessageID     string          `json:"message_id"`
	FromAgent     string          `json:"from_agent"`
	ToAgent       string          `json:"to_agent"`
	Action        string          `json:"action"`
	Payload       json.RawMessage `json:"payload"`
	CorrelationID string          `json:"correlation_id"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewMessage builds a request. An empty correlationID starts a new chain
// keyed by the message id.
func NewMessage(from, to, action string, payload any, correlationID string) (*Message, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload for %s.%s: %w", to, action, err)
	}
	id := uuid.NewString()
	if correlationID == "" {
		correlationID = id
	}
	return &Message{
		MessageID:     id,
		FromAgent:     from,
		ToAgent:       to,
		Action:        action,
		Payload:       raw,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// Reply builds the response to m: sender and receiver swap, the action
// and correlation id stay.
func (m *Message) Reply(payload any) (*Message, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("encode reply for %s.%s: %w", m.ToAgent, m.Action, err)
	}
	return &Message{
		MessageID:     uuid.NewString(),
		FromAgent:     m.ToAgent,
		ToAgent:       m.FromAgent,
		Action:        m.Action,
		Payload:       raw,
		CorrelationID: m.CorrelationID,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// Forward builds a follow-up request on the same correlation chain, sent
// by whoever received m.
func (m *Message) Forward(to, action string, payload any) (*Message, error) {
	return NewMessage(m.ToAgent, to, action, payload, m.CorrelationID)
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("message %s has no payload", m.MessageID)
	}
	return json.Unmarshal(m.Payload, v)
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return json.RawMessage(p), nil
	default:
		return json.Marshal(p)
	}
}

const (
	metaMessageID     = "message_id"
	metaFromAgent     = "from_agent"
	metaToAgent       = "to_agent"
	metaCorrelationID = "correlation_id"
	metaTimestamp     = "timestamp"
)

// ToA2A renders m as an a2a-go message carrying the action and payload in
// a data part and the routing fields in metadata.
func (m *Message) ToA2A() (*a2a.Message, error) {
	var payload any
	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode payload of %s: %w", m.MessageID, err)
		}
	}

	role := a2a.MessageRoleUser
	if m.FromAgent != agent.OrchestratorID {
		role = a2a.MessageRoleAgent
	}
	msg := a2a.NewMessage(role, a2a.DataPart{
		Data: map[string]any{
			"action":  m.Action,
			"payload": payload,
		},
	})
	msg.Metadata = map[string]any{
		metaMessageID:     m.MessageID,
		metaFromAgent:     m.FromAgent,
		metaToAgent:       m.ToAgent,
		metaCorrelationID: m.CorrelationID,
		metaTimestamp:     m.Timestamp.Format(time.RFC3339Nano),
	}
	return msg, nil
}

// FromA2A is the inverse of ToA2A.
func FromA2A(msg *a2a.Message) (*Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("nil a2a message")
	}

	out := &Message{}
	str := func(key string) string {
		v, _ := msg.Metadata[key].(string)
		return v
	}
	out.MessageID = str(metaMessageID)
	out.FromAgent = str(metaFromAgent)
	out.ToAgent = str(metaToAgent)
	out.CorrelationID = str(metaCorrelationID)
	if ts := str(metaTimestamp); ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("a2a message timestamp: %w", err)
		}
		out.Timestamp = parsed
	}

	for _, part := range msg.Parts {
		var dp a2a.DataPart
		switch p := part.(type) {
		case a2a.DataPart:
			dp = p
		case *a2a.DataPart:
			dp = *p
		default:
			continue
		}
		action, _ := dp.Data["action"].(string)
		out.Action = action
		raw, err := json.Marshal(dp.Data["payload"])
		if err != nil {
			return nil, fmt.Errorf("a2a message payload: %w", err)
		}
		out.Payload = raw
		break
	}
	if out.Action == "" {
		return nil, fmt.Errorf("a2a message carries no action data part")
	}
	return out, nil
}
