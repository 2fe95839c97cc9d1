package recommender

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
)

func baseClaim(claimed float64) claim.ClaimInfo {
	return claim.ClaimInfo{
		ClaimNumber:   "CLM-2025-0001",
		PolicyNumber:  "POL-100",
		LossType:      claim.LossWaterDamage,
		ClaimedAmount: claimed,
		Policy:        claim.PolicyTerms{PolicyNumber: "POL-100", Deductible: 500, CoverageLimit: 50000},
	}
}

func contextOf(texts ...string) claim.PolicyContext {
	pc := claim.PolicyContext{Items: []claim.PolicyClause{}}
	for i, text := range texts {
		id := string(rune('a' + i))
		pc.Items = append(pc.Items, claim.PolicyClause{DocumentID: "doc-" + id, ChunkID: "chunk-" + id, Text: text, Similarity: 0.8})
	}
	return pc
}

func TestAssess(t *testing.T) {
	listed := func(types ...claim.LossType) claim.ClaimInfo {
		c := baseClaim(1000)
		c.Policy.CoveredLossTypes = types
		return c
	}

	tests := []struct {
		name  string
		claim claim.ClaimInfo
		ctx   claim.PolicyContext
		want  claim.Coverage
		docs  []string
	}{
		{"empty context", listed(claim.LossWaterDamage), contextOf(), claim.CoverageUndetermined, []string{}},
		{"affirming clause", baseClaim(1000), contextOf("Sudden water damage from a burst pipe is covered."), claim.CoverageCovered, []string{"doc-a"}},
		{"excluding clause", baseClaim(1000), contextOf("Gradual water damage is excluded."), claim.CoverageNotCovered, []string{"doc-a"}},
		{"exclusion beats list", listed(claim.LossWaterDamage), contextOf("Fire is covered.", "Water damage is not covered."), claim.CoverageNotCovered, []string{"doc-b"}},
		{"listed", listed(claim.LossWaterDamage), contextOf("General conditions apply."), claim.CoverageCovered, []string{"doc-a"}},
		{"omitted from list", listed(claim.LossFire), contextOf("Water damage is covered."), claim.CoverageNotCovered, []string{"doc-a"}},
		{"neutral text", baseClaim(1000), contextOf("Premiums are due monthly."), claim.CoverageUndetermined, []string{"doc-a"}},
		{"other loss type sentence ignored", baseClaim(1000), contextOf("Flood from surface water is excluded. Water damage from pipes is covered."), claim.CoverageCovered, []string{"doc-a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, why, docs := Assess(tt.claim, tt.ctx)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, why)
			assert.Equal(t, tt.docs, docs)
		})
	}
}

func TestRecommendWithinLimit(t *testing.T) {
	rec, err := New().Recommend(context.Background(), Request{
		Claim:   baseClaim(12000),
		Context: contextOf("Water damage caused by a burst pipe is covered."),
	})
	require.NoError(t, err)
	assert.Equal(t, claim.CoverageCovered, rec.Coverage)
	assert.True(t, rec.Covered)
	assert.Equal(t, 11500.0, rec.Settlement)
	assert.False(t, rec.ExceedsLimit)
	assert.Len(t, rec.Rationale, 2)
}

func TestRecommendClampedByLimit(t *testing.T) {
	rec, err := New().Recommend(context.Background(), Request{
		Claim:   baseClaim(80000),
		Context: contextOf("Water damage caused by a burst pipe is covered."),
	})
	require.NoError(t, err)
	assert.Equal(t, 50000.0, rec.Settlement)
	assert.True(t, rec.ExceedsLimit)
	assert.Len(t, rec.Rationale, 3)
}

func TestRecommendBelowDeductible(t *testing.T) {
	rec, err := New().Recommend(context.Background(), Request{Claim: baseClaim(300), Context: contextOf()})
	require.NoError(t, err)
	assert.Equal(t, 0.0, rec.Settlement)
	assert.Equal(t, claim.CoverageUndetermined, rec.Coverage)
	assert.False(t, rec.Covered)
}

func TestAgent(t *testing.T) {
	a, err := New().Agent()
	require.NoError(t, err)
	assert.Equal(t, "recommendation_engine", a.ID())
	assert.Equal(t, ActionRecommend, a.Card().Primary().Name)
}
