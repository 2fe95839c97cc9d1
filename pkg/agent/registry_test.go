package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoIn struct {
	Value string `json:"value"`
}

type echoOut struct {
	Echo string `json:"echo"`
}

func newEcho(t *testing.T, kind Kind, id string) *Base {
	t.Helper()
	a, err := New(Config{
		ID:    id,
		Kind:  kind,
		Label: "Echo " + string(kind),
		Actions: []Action{
			NewAction("echo_"+string(kind), "echo the value", func(_ context.Context, in echoIn) (echoOut, error) {
				return echoOut{Echo: in.Value}, nil
			}),
		},
	})
	require.NoError(t, err)
	return a
}

func TestNewRegistry(t *testing.T) {
	parser := newEcho(t, KindClaimParser, "")
	fraud := newEcho(t, KindFraudDetector, "")

	reg, err := NewRegistry(fraud, parser)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	got, err := reg.Resolve("claim_parser")
	require.NoError(t, err)
	assert.Equal(t, KindClaimParser, got.Kind())

	cards := reg.CapabilityCards()
	require.Len(t, cards, 2)
	assert.Equal(t, "claim_parser", cards[0].AgentID, "cards follow pipeline order")
	assert.Equal(t, "fraud_detector", cards[1].AgentID)

	kind, ok := reg.KindForAction("echo_fraud_detector")
	assert.True(t, ok)
	assert.Equal(t, KindFraudDetector, kind)
}

func TestRegistryRejects(t *testing.T) {
	t.Run("duplicate id", func(t *testing.T) {
		_, err := NewRegistry(newEcho(t, KindClaimParser, ""), newEcho(t, KindClaimParser, ""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("register after seal", func(t *testing.T) {
		reg, err := NewRegistry(newEcho(t, KindClaimParser, ""))
		require.NoError(t, err)
		err = reg.Register(newEcho(t, KindDecisionMaker, ""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sealed")
	})

	t.Run("action bound to another kind", func(t *testing.T) {
		a := newEcho(t, KindClaimParser, "")
		b, err := New(Config{
			Kind: KindDecisionMaker,
			Actions: []Action{
				NewAction("echo_claim_parser", "clash", func(_ context.Context, in echoIn) (echoOut, error) {
					return echoOut{}, nil
				}),
			},
		})
		require.NoError(t, err)
		_, err = NewRegistry(a, b)
		assert.Error(t, err)
	})
}

func TestResolveUnknownAgent(t *testing.T) {
	reg, err := NewRegistry(newEcho(t, KindClaimParser, ""))
	require.NoError(t, err)

	_, err = reg.Resolve("underwriter")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownAgent))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{Kind: "underwriter", Actions: []Action{{Spec: ActionSpec{Name: "x"}, Handler: func(context.Context, json.RawMessage) (any, error) { return nil, nil }}}})
	assert.Error(t, err)

	_, err = New(Config{Kind: KindFraudDetector})
	assert.Error(t, err)
}

func TestBaseInvoke(t *testing.T) {
	a := newEcho(t, KindFraudDetector, "")

	out, err := a.Invoke(context.Background(), "echo_fraud_detector", json.RawMessage(`{"value":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, echoOut{Echo: "hi"}, out)

	_, err = a.Invoke(context.Background(), "missing", nil)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "fraud_detector", ve.Agent)

	_, err = a.Invoke(context.Background(), "echo_fraud_detector", json.RawMessage(`{"value":42}`))
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "fraud_detector", ve.Agent)
}

func TestCapabilityCard(t *testing.T) {
	a := newEcho(t, KindPolicyRetriever, "")
	card := a.Card()

	spec, ok := card.Action("echo_policy_retriever")
	require.True(t, ok)
	assert.Equal(t, spec, card.Primary())

	var schema map[string]any
	require.NoError(t, json.Unmarshal(spec.InputSchema, &schema))
	assert.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "value")
	assert.Equal(t, []any{"value"}, schema["required"])

	ac := card.AgentCard("http://localhost:8080/agents/policy_retriever")
	assert.Equal(t, card.Label, ac.Name)
	require.Len(t, ac.Skills, 1)
	assert.Equal(t, "policy_retriever.echo_policy_retriever", ac.Skills[0].ID)
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("vector index down")
	exec := &AgentExecutionError{Agent: "policy_retriever", Action: "retrieve", Err: cause}
	assert.True(t, errors.Is(exec, cause))
	assert.True(t, IsExecutionFailure(exec))

	timeout := &StepTimeoutError{Step: "fraud", Agent: "fraud_detector", Err: context.DeadlineExceeded}
	assert.True(t, IsExecutionFailure(timeout))
	assert.True(t, errors.Is(timeout, context.DeadlineExceeded))

	malformed := &MalformedClaimError{Violations: []FieldViolation{
		{Field: "claim_number", Reason: "missing"},
		{Field: "claimed_amount", Reason: "must be greater than zero"},
	}}
	assert.Equal(t, []string{"claim_number", "claimed_amount"}, malformed.Fields())
	assert.Contains(t, malformed.Error(), "claim_number: missing")
	assert.Contains(t, malformed.Error(), "claimed_amount")
	assert.False(t, IsExecutionFailure(malformed))
}
