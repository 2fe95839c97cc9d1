package claim

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlement(t *testing.T) {
	tests := []struct {
		name                     string
		claimed, deductible, lim float64
		want                     float64
		clamped                  bool
	}{
		{"within limit", 12000, 500, 50000, 11500, false},
		{"clamped by limit", 80000, 500, 50000, 50000, true},
		{"below deductible", 300, 500, 50000, 0, false},
		{"exactly at limit", 50500, 500, 50000, 50000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped := Settlement(tt.claimed, tt.deductible, tt.lim)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, tt.clamped, clamped)
		})
	}
}

func TestSettlementProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("settlement is never negative and never above the limit", prop.ForAll(
		func(claimed, deductible, limit float64) bool {
			got, _ := Settlement(claimed, deductible, limit)
			return got >= 0 && got <= limit
		},
		gen.Float64Range(0.01, 1e7),
		gen.Float64Range(0, 1e5),
		gen.Float64Range(1, 1e7),
	))

	properties.Property("settlement equals min(max(claimed-deductible, 0), limit)", prop.ForAll(
		func(claimed, deductible, limit float64) bool {
			got, _ := Settlement(claimed, deductible, limit)
			want := claimed - deductible
			if want < 0 {
				want = 0
			}
			if want > limit {
				want = limit
			}
			return got == want
		},
		gen.Float64Range(0.01, 1e7),
		gen.Float64Range(0, 1e5),
		gen.Float64Range(1, 1e7),
	))

	properties.TestingRun(t)
}

func TestSeverityBands(t *testing.T) {
	bands := DefaultSeverityBands()
	require.NoError(t, bands.Validate())

	tests := []struct {
		score float64
		want  Severity
	}{
		{0, SeverityNone},
		{0.05, SeverityNone},
		{0.1, SeverityLow},
		{0.25, SeverityLow},
		{0.3, SeverityMedium},
		{0.59, SeverityMedium},
		{0.6, SeverityHigh},
		{0.72, SeverityHigh},
		{0.8499, SeverityHigh},
		{0.85, SeverityCritical},
		{1, SeverityCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bands.Classify(tt.score), "score %v", tt.score)
	}

	custom := SeverityBands{Low: 0.2, Medium: 0.4, High: 0.8, Critical: 0.95}
	require.NoError(t, custom.Validate())
	assert.Equal(t, SeverityMedium, custom.Classify(0.72))

	assert.Error(t, SeverityBands{Low: 0.5, Medium: 0.4, High: 0.8, Critical: 0.9}.Validate())
	assert.Error(t, SeverityBands{Low: 0.1, Medium: 0.4, High: 0.8, Critical: 1.5}.Validate())
}

func TestSeverityAtLeast(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityMedium.AtLeast(SeverityHigh))
	assert.False(t, Severity("bogus").Valid())
}

func TestClampScore(t *testing.T) {
	assert.InDelta(t, 0.72, ClampScore([]Indicator{{Weight: 0.4}, {Weight: 0.32}}), 1e-9)
	assert.Equal(t, 1.0, ClampScore([]Indicator{{Weight: 0.7}, {Weight: 0.7}}))
	assert.Equal(t, 0.0, ClampScore(nil))
}

func TestParseLossType(t *testing.T) {
	lt, ok := ParseLossType("Water Damage")
	require.True(t, ok)
	assert.Equal(t, LossWaterDamage, lt)
	assert.Equal(t, "water damage", lt.Label())
	assert.Contains(t, lt.Keywords(), "pipe")

	_, ok = ParseLossType("meteor")
	assert.False(t, ok)
}

func TestPolicyTermsCovers(t *testing.T) {
	p := PolicyTerms{CoveredLossTypes: []LossType{LossFire, LossWaterDamage}}
	covered, listed := p.Covers(LossFire)
	assert.True(t, covered)
	assert.True(t, listed)

	covered, listed = p.Covers(LossTheft)
	assert.False(t, covered)
	assert.True(t, listed)

	_, listed = PolicyTerms{}.Covers(LossFire)
	assert.False(t, listed)
}

func TestStatusTransitions(t *testing.T) {
	require.NoError(t, Transition(StatusSubmitted, StatusAIProcessing))
	require.NoError(t, Transition(StatusAIProcessing, StatusManualReview))
	require.NoError(t, Transition(StatusDenied, StatusAppealed))
	assert.Error(t, Transition(StatusClosed, StatusApproved))
	assert.Error(t, Transition(StatusApproved, StatusDenied))
	assert.Error(t, Transition(Status("limbo"), StatusApproved))
}

func TestStatusForVerdict(t *testing.T) {
	assert.Equal(t, StatusApproved, StatusForVerdict(VerdictApprove, true))
	assert.Equal(t, StatusManualReview, StatusForVerdict(VerdictApprove, false))
	assert.Equal(t, StatusPartiallyApproved, StatusForVerdict(VerdictPartial, true))
	assert.Equal(t, StatusDenied, StatusForVerdict(VerdictDeny, true))
	assert.Equal(t, StatusManualReview, StatusForVerdict(VerdictManualReview, true))
	for _, v := range []Verdict{VerdictApprove, VerdictPartial, VerdictDeny, VerdictManualReview} {
		assert.True(t, CanTransition(StatusAIProcessing, StatusForVerdict(v, true)))
	}
}
