package fraud

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
)

var (
	now      = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	lossDate = time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
)

type fakeHistory struct {
	entries []claim.LedgerEntry
	err     error
	since   time.Time
}

func (f *fakeHistory) RecentClaims(_ context.Context, claimantID string, since time.Time) ([]claim.LedgerEntry, error) {
	f.since = since
	var out []claim.LedgerEntry
	for _, e := range f.entries {
		if e.ClaimantID == claimantID {
			out = append(out, e)
		}
	}
	return out, f.err
}

func cleanClaim() claim.ClaimInfo {
	effective := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return claim.ClaimInfo{
		ClaimNumber:    "CLM-2025-0100",
		PolicyNumber:   "POL-100",
		LossType:       claim.LossWaterDamage,
		LossDate:       lossDate,
		SubmissionDate: lossDate.Add(2 * day),
		ClaimedAmount:  12000,
		ClaimantID:     "C-1",
		AdjusterID:     "ADJ-9",
		Policy:         claim.PolicyTerms{PolicyNumber: "POL-100", Deductible: 500, CoverageLimit: 50000, EffectiveDate: &effective},
	}
}

// suspiciousClaim fires every indicator.
func suspiciousClaim() claim.ClaimInfo {
	c := cleanClaim()
	effective := lossDate.Add(-10 * day)
	c.Policy.EffectiveDate = &effective
	c.ClaimedAmount = 30000
	c.SubmissionDate = lossDate.Add(90 * day)
	c.ClaimantID = "C-RING"
	return c
}

func priorClaim(claimant string, amount float64, loss time.Time) claim.LedgerEntry {
	return claim.LedgerEntry{
		ClaimNumber:   "CLM-2025-0001",
		ClaimantID:    claimant,
		LossType:      claim.LossWaterDamage,
		LossDate:      loss,
		ClaimedAmount: amount,
		RecordedAt:    now.Add(-5 * day),
	}
}

func newDetector(t *testing.T, cfg config.FraudConfig, h History) *Detector {
	t.Helper()
	d, err := New(cfg, WithHistory(h), WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return d
}

func names(a claim.FraudAssessment) []string {
	out := make([]string, 0, len(a.Indicators))
	for _, ind := range a.Indicators {
		out = append(out, ind.Name)
	}
	return out
}

func TestAssessCleanClaim(t *testing.T) {
	d := newDetector(t, config.FraudConfig{}, &fakeHistory{})
	a, err := d.Assess(context.Background(), Request{Claim: cleanClaim()})
	require.NoError(t, err)
	assert.Empty(t, a.Indicators)
	assert.NotNil(t, a.Indicators)
	assert.Equal(t, 0.0, a.Score)
	assert.Equal(t, claim.SeverityNone, a.Severity)
}

func TestAssessDuplicateAndTiming(t *testing.T) {
	c := cleanClaim()
	effective := lossDate.Add(-10 * day)
	c.Policy.EffectiveDate = &effective
	h := &fakeHistory{entries: []claim.LedgerEntry{priorClaim("C-1", 11500, lossDate.Add(-40*day))}}

	a, err := newDetector(t, config.FraudConfig{}, h).Assess(context.Background(), Request{Claim: c})
	require.NoError(t, err)
	assert.Equal(t, []string{config.IndicatorDuplicateClaim, config.IndicatorTimingAnomaly}, names(a))
	assert.InDelta(t, 0.72, a.Score, 1e-9)
	assert.Equal(t, claim.SeverityHigh, a.Severity)
	assert.Equal(t, now.Add(-90*day), h.since)
}

func TestAssessIndicators(t *testing.T) {
	rings := []config.RingConfig{{Name: "harbor", Members: []string{"c-ring", "ADJ-RING"}}}
	tests := []struct {
		name    string
		mutate  func(*claim.ClaimInfo)
		history []claim.LedgerEntry
		want    []string
	}{
		{"cost inflation", func(c *claim.ClaimInfo) { c.ClaimedAmount = 24001 }, nil, []string{config.IndicatorCostInflation}},
		{"at inflation ratio", func(c *claim.ClaimInfo) { c.ClaimedAmount = 24000 }, nil, nil},
		{"unknown baseline", func(c *claim.ClaimInfo) { c.LossType = claim.LossOther; c.ClaimedAmount = 1e6 }, nil, nil},
		{"duplicate by loss date", nil, []claim.LedgerEntry{priorClaim("C-1", 1, lossDate)}, []string{config.IndicatorDuplicateClaim}},
		{"duplicate by amount", nil, []claim.LedgerEntry{priorClaim("C-1", 12900, lossDate.Add(-3*day))}, []string{config.IndicatorDuplicateClaim}},
		{"amount outside tolerance", nil, []claim.LedgerEntry{priorClaim("C-1", 14000, lossDate.Add(-3*day))}, nil},
		{"same claim number ignored", nil, []claim.LedgerEntry{func() claim.LedgerEntry {
			e := priorClaim("C-1", 12000, lossDate)
			e.ClaimNumber = "CLM-2025-0100"
			return e
		}()}, nil},
		{"other loss type ignored", nil, []claim.LedgerEntry{func() claim.LedgerEntry {
			e := priorClaim("C-1", 12000, lossDate)
			e.LossType = claim.LossFire
			return e
		}()}, nil},
		{"loss before effective", func(c *claim.ClaimInfo) {
			e := lossDate.Add(day)
			c.Policy.EffectiveDate = &e
		}, nil, []string{config.IndicatorTimingAnomaly}},
		{"loss after expiration", func(c *claim.ClaimInfo) {
			e := lossDate.Add(-day)
			c.Policy.ExpirationDate = &e
		}, nil, []string{config.IndicatorTimingAnomaly}},
		{"ring claimant", func(c *claim.ClaimInfo) { c.ClaimantID = "C-RING" }, nil, []string{config.IndicatorFraudRing}},
		{"ring adjuster", func(c *claim.ClaimInfo) { c.AdjusterID = "adj-ring" }, nil, []string{config.IndicatorFraudRing}},
		{"late reporting", func(c *claim.ClaimInfo) { c.SubmissionDate = lossDate.Add(61 * day) }, nil, []string{config.IndicatorLateReporting}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cleanClaim()
			if tt.mutate != nil {
				tt.mutate(&c)
			}
			d := newDetector(t, config.FraudConfig{Rings: rings}, &fakeHistory{entries: tt.history})
			a, err := d.Assess(context.Background(), Request{Claim: c})
			require.NoError(t, err)
			want := tt.want
			if want == nil {
				want = []string{}
			}
			assert.Equal(t, want, names(a))
		})
	}
}

func TestAssessAllIndicatorsClamped(t *testing.T) {
	rings := []config.RingConfig{{Name: "harbor", Members: []string{"C-RING"}}}
	h := &fakeHistory{entries: []claim.LedgerEntry{priorClaim("C-RING", 100, lossDate)}}
	a, err := newDetector(t, config.FraudConfig{Rings: rings}, h).Assess(context.Background(), Request{Claim: suspiciousClaim()})
	require.NoError(t, err)
	assert.Equal(t, []string{
		config.IndicatorCostInflation,
		config.IndicatorDuplicateClaim,
		config.IndicatorTimingAnomaly,
		config.IndicatorFraudRing,
		config.IndicatorLateReporting,
	}, names(a))
	assert.Equal(t, 1.0, a.Score)
	assert.Equal(t, claim.SeverityCritical, a.Severity)
}

func TestAssessHistoryError(t *testing.T) {
	boom := errors.New("ledger offline")
	d := newDetector(t, config.FraudConfig{}, &fakeHistory{err: boom})
	_, err := d.Assess(context.Background(), Request{Claim: cleanClaim()})
	assert.ErrorIs(t, err, boom)
}

func TestAssessWithoutHistory(t *testing.T) {
	d, err := New(config.FraudConfig{})
	require.NoError(t, err)
	a, err := d.Assess(context.Background(), Request{Claim: cleanClaim()})
	require.NoError(t, err)
	assert.Empty(t, a.Indicators)
}

func TestSetPolicy(t *testing.T) {
	c := cleanClaim()
	c.ClaimedAmount = 30000
	d := newDetector(t, config.FraudConfig{}, nil)

	a, err := d.Assess(context.Background(), Request{Claim: c})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, a.Score, 1e-9)
	assert.Equal(t, claim.SeverityLow, a.Severity)

	require.NoError(t, d.SetPolicy(config.FraudConfig{
		Weights:  config.FraudWeights{CostInflation: 0.9},
		Severity: claim.SeverityBands{Low: 0.2, Medium: 0.4, High: 0.6, Critical: 0.95},
	}))
	a, err = d.Assess(context.Background(), Request{Claim: c})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, a.Score, 1e-9)
	assert.Equal(t, claim.SeverityHigh, a.Severity)

	require.NoError(t, d.SetPolicy(config.FraudConfig{Disabled: []string{config.IndicatorCostInflation}}))
	a, err = d.Assess(context.Background(), Request{Claim: c})
	require.NoError(t, err)
	assert.Empty(t, a.Indicators)

	assert.Error(t, d.SetPolicy(config.FraudConfig{Disabled: []string{"telepathy"}}))
	assert.Equal(t, []string{config.IndicatorCostInflation}, d.Policy().Disabled, "invalid policy is not installed")
}

func TestSetPolicyConcurrentWithAssess(t *testing.T) {
	d := newDetector(t, config.FraudConfig{}, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := d.Assess(context.Background(), Request{Claim: suspiciousClaim()})
			assert.NoError(t, err)
		}()
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, d.SetPolicy(config.FraudConfig{LateReportDays: 30 + i}))
		}(i)
	}
	wg.Wait()
}

func TestRingIndex(t *testing.T) {
	idx := NewRingIndex([]config.RingConfig{{Name: "north", Members: []string{" A-1 ", ""}}})
	ring, ok := idx.Ring("a-1")
	assert.True(t, ok)
	assert.Equal(t, "north", ring)
	_, ok = idx.Ring("")
	assert.False(t, ok)
}

// Enabling one more indicator never lowers the score, whatever the
// weights and whichever indicators were already enabled.
func TestScoreMonotonicProperty(t *testing.T) {
	all := []string{
		config.IndicatorCostInflation,
		config.IndicatorDuplicateClaim,
		config.IndicatorTimingAnomaly,
		config.IndicatorFraudRing,
		config.IndicatorLateReporting,
	}
	rings := []config.RingConfig{{Name: "harbor", Members: []string{"C-RING"}}}
	h := &fakeHistory{entries: []claim.LedgerEntry{priorClaim("C-RING", 100, lossDate)}}

	score := func(weights []float64, disabled []string) float64 {
		d, err := New(config.FraudConfig{
			Weights: config.FraudWeights{
				CostInflation:  weights[0],
				DuplicateClaim: weights[1],
				TimingAnomaly:  weights[2],
				FraudRing:      weights[3],
				LateReporting:  weights[4],
			},
			Disabled: disabled,
			Rings:    rings,
		}, WithHistory(h), WithClock(func() time.Time { return now }))
		if err != nil {
			return -1
		}
		a, err := d.Assess(context.Background(), Request{Claim: suspiciousClaim()})
		if err != nil {
			return -1
		}
		return a.Score
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("adding an indicator never decreases the score", prop.ForAll(
		func(weights []float64, off []bool, extra int) bool {
			var base, more []string
			for i, name := range all {
				if off[i] {
					base = append(base, name)
					if i != extra {
						more = append(more, name)
					}
				}
			}
			before := score(weights, base)
			after := score(weights, more)
			return before >= 0 && after >= before
		},
		gen.SliceOfN(5, gen.Float64Range(0.01, 1)),
		gen.SliceOfN(5, gen.Bool()),
		gen.IntRange(0, 4),
	))

	properties.TestingRun(t)
}
