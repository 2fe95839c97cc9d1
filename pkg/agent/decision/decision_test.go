package decision

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
)

func rec(coverage claim.Coverage, settlement float64, exceeds bool) claim.Recommendation {
	return claim.Recommendation{
		Coverage:      coverage,
		Covered:       coverage == claim.CoverageCovered,
		Settlement:    settlement,
		CoverageLimit: 50000,
		ExceedsLimit:  exceeds,
	}
}

func fraud(sev claim.Severity) claim.FraudAssessment {
	return claim.FraudAssessment{Severity: sev, Indicators: []claim.Indicator{}}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		rec     claim.Recommendation
		fraud   claim.FraudAssessment
		verdict claim.Verdict
		rule    string
		bound   float64
	}{
		{"approve", rec(claim.CoverageCovered, 11500, false), fraud(claim.SeverityNone), claim.VerdictApprove, RuleCoveredWithinLimit, 11500},
		{"approve with medium fraud", rec(claim.CoverageCovered, 100, false), fraud(claim.SeverityMedium), claim.VerdictApprove, RuleCoveredWithinLimit, 100},
		{"partial", rec(claim.CoverageCovered, 50000, true), fraud(claim.SeverityLow), claim.VerdictPartial, RuleClampedByLimit, 50000},
		{"deny", rec(claim.CoverageNotCovered, 11500, false), fraud(claim.SeverityNone), claim.VerdictDeny, RuleNotCovered, 0},
		{"undetermined", rec(claim.CoverageUndetermined, 11500, false), fraud(claim.SeverityNone), claim.VerdictManualReview, RuleCoverageUndetermined, 0},
		{"high fraud", rec(claim.CoverageCovered, 11500, false), fraud(claim.SeverityHigh), claim.VerdictManualReview, RuleFraudOverride, 0},
		{"critical fraud beats deny", rec(claim.CoverageNotCovered, 0, false), fraud(claim.SeverityCritical), claim.VerdictManualReview, RuleFraudOverride, 0},
		{"covered but nothing to pay", rec(claim.CoverageCovered, 0, false), fraud(claim.SeverityNone), claim.VerdictManualReview, RuleConservativeDefault, 0},
		{"unknown coverage", rec("", 500, false), fraud(claim.SeverityNone), claim.VerdictManualReview, RuleConservativeDefault, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.rec, tt.fraud)
			assert.Equal(t, tt.verdict, d.Verdict)
			assert.Equal(t, tt.rule, d.Rule)
			assert.Equal(t, tt.bound, d.BoundAmount)
			assert.NotEmpty(t, d.Rationale)
		})
	}
}

func TestDecideRejectsUnknownSeverity(t *testing.T) {
	_, err := New().Decide(context.Background(), Request{
		Recommendation: rec(claim.CoverageCovered, 1, false),
		Fraud:          fraud("extreme"),
	})
	assert.Error(t, err)
}

func TestHighSeverityAlwaysManualReviewProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	coverages := gen.OneConstOf(claim.CoverageCovered, claim.CoverageNotCovered, claim.CoverageUndetermined)
	severities := gen.OneConstOf(claim.SeverityHigh, claim.SeverityCritical)

	properties.Property("high or critical severity forces manual review", prop.ForAll(
		func(coverage claim.Coverage, settlement float64, exceeds bool, sev claim.Severity, score float64) bool {
			r := rec(coverage, settlement, exceeds)
			d := Decide(r, claim.FraudAssessment{Score: score, Severity: sev})
			return d.Verdict == claim.VerdictManualReview && d.BoundAmount == 0
		},
		coverages,
		gen.Float64Range(0, 1e6),
		gen.Bool(),
		severities,
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

func TestAgentInvoke(t *testing.T) {
	a, err := New().Agent()
	require.NoError(t, err)
	out, err := a.Invoke(context.Background(), ActionDecide,
		[]byte(`{"recommendation":{"coverage":"covered","covered":true,"settlement":11500,"claimed_amount":12000,"deductible":500,"coverage_limit":50000,"exceeds_limit":false},"fraud":{"score":0,"indicators":[],"severity":"none"}}`))
	require.NoError(t, err)
	d, ok := out.(claim.Decision)
	require.True(t, ok)
	assert.Equal(t, claim.VerdictApprove, d.Verdict)
}
