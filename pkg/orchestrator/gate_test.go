package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
)

func TestNewGate(t *testing.T) {
	g, err := NewGate("   ")
	require.NoError(t, err)
	assert.Nil(t, g)
	assert.Equal(t, "", g.String())

	_, err = NewGate("settlement <")
	assert.ErrorContains(t, err, "compile auto_approve_rule")

	_, err = NewGate("settlement * 2.0")
	assert.ErrorContains(t, err, "must be a boolean expression")

	_, err = NewGate(`unknown_var == "x"`)
	assert.Error(t, err)

	g, err = NewGate(" fraud_score < 0.2 ")
	require.NoError(t, err)
	assert.Equal(t, "fraud_score < 0.2", g.String())
}

func TestGateAllow(t *testing.T) {
	c := claim.ClaimInfo{ClaimedAmount: 12000, LossType: claim.LossWaterDamage}
	d := claim.Decision{Verdict: claim.VerdictApprove, BoundAmount: 11500}
	fa := claim.FraudAssessment{Score: 0.1, Severity: claim.SeverityLow}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"settlement under threshold", "settlement < 20000.0", true},
		{"settlement over threshold", "settlement < 10000.0", false},
		{"severity", `severity in ["none", "low"]`, true},
		{"loss type", `loss_type != "water_damage"`, false},
		{"combined", `decision == "approve" && claimed_amount - settlement == 500.0 && fraud_score < 0.25`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGate(tt.expr)
			require.NoError(t, err)
			got, err := g.Allow(c, d, fa)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	var nilGate *Gate
	ok, err := nilGate.Allow(c, d, fa)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGateEvalError(t *testing.T) {
	g, err := NewGate("int(settlement) / 0 > 1")
	require.NoError(t, err)
	ok, err := g.Allow(claim.ClaimInfo{}, claim.Decision{BoundAmount: 10}, claim.FraudAssessment{})
	assert.Error(t, err)
	assert.False(t, ok)
}
