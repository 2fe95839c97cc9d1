package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/embedder"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/rag"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/vector"
)

type fakeSearcher struct {
	hits    []rag.Hit
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]rag.Hit, error) {
	f.queries = append(f.queries, query)
	return f.hits, f.err
}

func waterClaim() claim.ClaimInfo {
	return claim.ClaimInfo{
		ClaimNumber:   "CLM-2025-0001",
		PolicyNumber:  "POL-100",
		LossType:      claim.LossWaterDamage,
		ClaimedAmount: 12000,
		Narrative:     "A pipe burst under the kitchen sink and flooded the floor",
	}
}

func TestQueries(t *testing.T) {
	q := Queries(waterClaim(), 5)
	assert.Equal(t, []string{
		"water damage coverage",
		"water damage exclusions limitations",
		"water pipe leak flood",
		"pipe burst kitchen sink flooded floor",
		"deductible coverage limit water damage",
	}, q)

	assert.Len(t, Queries(waterClaim(), 3), 3)
	assert.Len(t, Queries(waterClaim(), 1), 2, "at least two queries")
	assert.Len(t, Queries(waterClaim(), 9), 5, "at most five queries")

	noNarrative := waterClaim()
	noNarrative.Narrative = ""
	assert.Equal(t, "deductible coverage limit water damage", Queries(noNarrative, 5)[3])
}

func TestRetrieveFiltersDedupesAndRanks(t *testing.T) {
	s := &fakeSearcher{hits: []rag.Hit{
		{ChunkID: "c1", DocumentID: "doc-a", PolicyNumber: "POL-100", Content: "a1", Similarity: 0.50},
		{ChunkID: "c2", DocumentID: "doc-a", PolicyNumber: "POL-100", Content: "a2", Similarity: 0.80},
		{ChunkID: "c3", DocumentID: "doc-b", Content: "shared wording", Similarity: 0.60},
		{ChunkID: "c4", DocumentID: "doc-c", PolicyNumber: "POL-999", Content: "other policy", Similarity: 0.95},
		{ChunkID: "c5", DocumentID: "doc-d", Content: "weak", Similarity: 0.10},
	}}
	r := New(s, config.RAGConfig{SimilarityFloor: 0.35, MaxQueries: 2})

	pc, err := r.Retrieve(context.Background(), Request{Claim: waterClaim()})
	require.NoError(t, err)
	assert.Len(t, s.queries, 2)
	assert.Equal(t, s.queries, pc.Queries)

	require.Len(t, pc.Items, 2)
	assert.Equal(t, "doc-a", pc.Items[0].DocumentID)
	assert.Equal(t, "c2", pc.Items[0].ChunkID, "best chunk per document wins")
	assert.Equal(t, "doc-b", pc.Items[1].DocumentID)
}

func TestRetrieveCapsItems(t *testing.T) {
	var hits []rag.Hit
	for i, id := range []string{"d1", "d2", "d3", "d4"} {
		hits = append(hits, rag.Hit{ChunkID: id + "-0", DocumentID: id, Similarity: 0.9 - float64(i)*0.1})
	}
	r := New(&fakeSearcher{hits: hits}, config.RAGConfig{MaxItems: 2})
	pc, err := r.Retrieve(context.Background(), Request{Claim: waterClaim()})
	require.NoError(t, err)
	require.Len(t, pc.Items, 2)
	assert.Equal(t, "d1", pc.Items[0].DocumentID)
	assert.Equal(t, "d2", pc.Items[1].DocumentID)
}

func TestRetrieveEmptyIsNotAnError(t *testing.T) {
	r := New(&fakeSearcher{hits: []rag.Hit{{ChunkID: "c", DocumentID: "d", Similarity: 0.05}}}, config.RAGConfig{})
	pc, err := r.Retrieve(context.Background(), Request{Claim: waterClaim()})
	require.NoError(t, err)
	assert.True(t, pc.Empty())
	assert.NotNil(t, pc.Items)
}

func TestRetrieveSearchError(t *testing.T) {
	boom := errors.New("index unavailable")
	r := New(&fakeSearcher{err: boom}, config.RAGConfig{})
	_, err := r.Retrieve(context.Background(), Request{Claim: waterClaim()})
	assert.ErrorIs(t, err, boom)
}

func TestRetrieveAgainstIndex(t *testing.T) {
	ctx := context.Background()
	store, err := vector.NewChromemProvider(vector.ChromemConfig{})
	require.NoError(t, err)
	emb := embedder.NewHashEmbedder(256)
	chunker := rag.NewLineChunker(400, 0)
	ix := rag.NewIndexer(chunker, emb, store, "policies")

	_, err = ix.IndexText(ctx, "water.txt", "water.txt",
		"Water damage caused by a sudden pipe burst or leak is covered.", "POL-100")
	require.NoError(t, err)
	_, err = ix.IndexText(ctx, "other.txt", "other.txt",
		"Water damage caused by a sudden pipe burst or leak is covered.", "POL-200")
	require.NoError(t, err)

	r := New(rag.NewSearcher(emb, store, "policies"), config.RAGConfig{SimilarityFloor: 0.2})
	pc, err := r.Retrieve(ctx, Request{Claim: waterClaim()})
	require.NoError(t, err)
	require.Len(t, pc.Items, 1)
	assert.Equal(t, rag.DocumentID("water.txt"), pc.Items[0].DocumentID)
	assert.Contains(t, pc.Items[0].Text, "pipe burst")
}

func TestAgentCard(t *testing.T) {
	a, err := New(&fakeSearcher{}, config.RAGConfig{}).Agent()
	require.NoError(t, err)
	assert.Equal(t, "policy_retriever", a.ID())
	_, ok := a.Card().Action(ActionRetrieve)
	assert.True(t, ok)
}
