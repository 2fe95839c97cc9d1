package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent"
)

type scoreIn struct {
	ClaimNumber string  `json:"claim_number"`
	Amount      float64 `json:"amount"`
}

type scoreOut struct {
	ClaimNumber string  `json:"claim_number"`
	Score       float64 `json:"score"`
}

var errBackend = errors.New("ring index unavailable")

func newTestRouter(t *testing.T, calls *atomic.Int32) *Router {
	t.Helper()

	fraud, err := agent.New(agent.Config{
		Kind:  agent.KindFraudDetector,
		Label: "Fraud Detector",
		Actions: []agent.Action{
			agent.NewAction("assess", "score", func(_ context.Context, in scoreIn) (scoreOut, error) {
				calls.Add(1)
				if in.ClaimNumber == "CLM-FAIL" {
					return scoreOut{}, errBackend
				}
				return scoreOut{ClaimNumber: in.ClaimNumber, Score: in.Amount / 100000}, nil
			}),
		},
	})
	require.NoError(t, err)

	reg, err := agent.NewRegistry(fraud)
	require.NoError(t, err)
	router, err := NewRouter(reg)
	require.NoError(t, err)
	return router
}

func TestRouterSend(t *testing.T) {
	var calls atomic.Int32
	router := newTestRouter(t, &calls)

	msg, err := NewMessage(agent.OrchestratorID, "fraud_detector", "assess",
		scoreIn{ClaimNumber: "CLM-2024-0001", Amount: 25000}, "run-42")
	require.NoError(t, err)

	reply, err := router.Send(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, "run-42", reply.CorrelationID)
	assert.Equal(t, "fraud_detector", reply.FromAgent)
	assert.Equal(t, agent.OrchestratorID, reply.ToAgent)
	assert.Equal(t, "assess", reply.Action)
	assert.NotEqual(t, msg.MessageID, reply.MessageID)

	var out scoreOut
	require.NoError(t, reply.Decode(&out))
	assert.Equal(t, "CLM-2024-0001", out.ClaimNumber)
	assert.InDelta(t, 0.25, out.Score, 1e-9)
}

func TestRouterErrors(t *testing.T) {
	tests := []struct {
		name      string
		to        string
		action    string
		payload   any
		check     func(t *testing.T, err error)
		wantCalls int32
	}{
		{
			name:    "unknown agent",
			to:      "underwriter",
			action:  "assess",
			payload: scoreIn{ClaimNumber: "CLM-1", Amount: 1},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, agent.ErrUnknownAgent)
			},
		},
		{
			name:    "unsupported action is rejected locally",
			to:      "fraud_detector",
			action:  "approve",
			payload: scoreIn{ClaimNumber: "CLM-1", Amount: 1},
			check: func(t *testing.T, err error) {
				var ve *agent.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "approve", ve.Action)
			},
		},
		{
			name:    "payload missing required field",
			to:      "fraud_detector",
			action:  "assess",
			payload: map[string]any{"claim_number": "CLM-1"},
			check: func(t *testing.T, err error) {
				var ve *agent.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Contains(t, ve.Message, "schema")
			},
		},
		{
			name:    "payload with wrong type",
			to:      "fraud_detector",
			action:  "assess",
			payload: map[string]any{"claim_number": "CLM-1", "amount": "lots"},
			check: func(t *testing.T, err error) {
				var ve *agent.ValidationError
				require.ErrorAs(t, err, &ve)
			},
		},
		{
			name:    "agent failure is wrapped",
			to:      "fraud_detector",
			action:  "assess",
			payload: scoreIn{ClaimNumber: "CLM-FAIL", Amount: 1},
			check: func(t *testing.T, err error) {
				var exec *agent.AgentExecutionError
				require.ErrorAs(t, err, &exec)
				assert.Equal(t, "fraud_detector", exec.Agent)
				assert.ErrorIs(t, err, errBackend)
			},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			router := newTestRouter(t, &calls)

			msg, err := NewMessage(agent.OrchestratorID, tt.to, tt.action, tt.payload, "")
			require.NoError(t, err)

			reply, err := router.Send(context.Background(), msg)
			require.Error(t, err)
			assert.Nil(t, reply)
			tt.check(t, err)
			assert.Equal(t, tt.wantCalls, calls.Load(), "agent invocations")
		})
	}
}

func TestRouterFillsEnvelope(t *testing.T) {
	var calls atomic.Int32
	router := newTestRouter(t, &calls)

	msg := &Message{
		FromAgent: agent.OrchestratorID,
		ToAgent:   "fraud_detector",
		Action:    "assess",
		Payload:   json.RawMessage(`{"claim_number":"CLM-9","amount":100}`),
	}
	reply, err := router.Send(context.Background(), msg)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.MessageID)
	assert.Equal(t, msg.MessageID, msg.CorrelationID, "an empty correlation id starts a new chain")
	assert.Equal(t, msg.CorrelationID, reply.CorrelationID)
}

func TestMessageForwardKeepsCorrelation(t *testing.T) {
	first, err := NewMessage(agent.OrchestratorID, "policy_retriever", "retrieve", map[string]any{"q": 1}, "")
	require.NoError(t, err)

	next, err := first.Forward("recommendation_engine", "recommend", map[string]any{"items": []any{}})
	require.NoError(t, err)
	assert.Equal(t, first.CorrelationID, next.CorrelationID)
	assert.Equal(t, "policy_retriever", next.FromAgent)
	assert.Equal(t, "recommendation_engine", next.ToAgent)
}

func TestMessageWireFormat(t *testing.T) {
	msg, err := NewMessage(agent.OrchestratorID, "decision_maker", "decide", map[string]any{"x": 1}, "corr-1")
	require.NoError(t, err)

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{"message_id", "from_agent", "to_agent", "action", "payload", "correlation_id", "timestamp"} {
		assert.Contains(t, fields, key)
	}
	assert.Len(t, fields, 7)
}

func TestA2AConversion(t *testing.T) {
	msg, err := NewMessage(agent.OrchestratorID, "fraud_detector", "assess",
		scoreIn{ClaimNumber: "CLM-2024-0001", Amount: 10}, "corr-7")
	require.NoError(t, err)

	a2aMsg, err := msg.ToA2A()
	require.NoError(t, err)
	require.Len(t, a2aMsg.Parts, 1)

	back, err := FromA2A(a2aMsg)
	require.NoError(t, err)
	assert.Equal(t, msg.MessageID, back.MessageID)
	assert.Equal(t, msg.CorrelationID, back.CorrelationID)
	assert.Equal(t, msg.Action, back.Action)
	assert.True(t, msg.Timestamp.Equal(back.Timestamp))
	assert.JSONEq(t, string(msg.Payload), string(back.Payload))

	_, err = FromA2A(nil)
	assert.Error(t, err)
}
