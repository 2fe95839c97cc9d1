package vector

import (
	"context"
	"testing"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
)

func TestChromemSearch(t *testing.T) {
	ctx := context.Background()
	p, err := New(config.VectorConfig{Type: "chromem"})
	require.NoError(t, err)
	defer p.Close()

	// Searching a collection that has nothing in it is not an error.
	hits, err := p.Search(ctx, "policies", []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, p.Upsert(ctx, "policies", []Document{
		{ID: "a", Vector: []float32{1, 0, 0}, Content: "water damage is covered", Metadata: map[string]string{"document_id": "doc-1"}},
		{ID: "b", Vector: []float32{0, 1, 0}, Content: "fire is covered", Metadata: map[string]string{"document_id": "doc-2"}},
		{ID: "c", Vector: []float32{0.9, 0.1, 0}, Content: "flood exclusion", Metadata: map[string]string{"document_id": "doc-1"}},
	}))

	// topK above the collection size is clamped.
	hits, err = p.Search(ctx, "policies", []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "a", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	assert.Equal(t, "doc-1", hits[0].Metadata["document_id"])
	assert.Equal(t, "water damage is covered", hits[0].Content)

	hits, err = p.Search(ctx, "policies", []float32{1, 0, 0}, 5, map[string]string{"document_id": "doc-2"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)

	require.NoError(t, p.DeleteByFilter(ctx, "policies", map[string]string{"document_id": "doc-1"}))
	assert.Equal(t, 1, p.(*ChromemProvider).Count("policies"))

	assert.Error(t, p.DeleteByFilter(ctx, "policies", nil))
}

func TestChromemPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	p, err := NewChromemProvider(ChromemConfig{PersistPath: dir})
	require.NoError(t, err)
	require.NoError(t, p.Upsert(ctx, "policies", []Document{
		{ID: "a", Vector: []float32{0, 0, 1}, Content: "theft covered"},
	}))
	require.NoError(t, p.Close())

	reopened, err := NewChromemProvider(ChromemConfig{PersistPath: dir})
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Count("policies"))
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(config.VectorConfig{Type: "weaviate"})
	assert.Error(t, err)
}

func TestPineconeProvider(t *testing.T) {
	_, err := NewPineconeProvider(PineconeConfig{IndexName: "policies"})
	assert.ErrorContains(t, err, "API key")
	_, err = NewPineconeProvider(PineconeConfig{APIKey: "key"})
	assert.ErrorContains(t, err, "index name")

	p, err := New(config.VectorConfig{Type: "pinecone", APIKey: "key", IndexName: "policies"})
	require.NoError(t, err)
	assert.Equal(t, "pinecone", p.Name())

	// No round trip to the service for an empty request.
	hits, err := p.Search(context.Background(), "claims", []float32{1}, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
	require.NoError(t, p.Upsert(context.Background(), "claims", nil))
	assert.Error(t, p.DeleteByFilter(context.Background(), "claims", nil))
}

func TestConvertPineconeMatches(t *testing.T) {
	meta, err := metadataStruct(map[string]string{"document_id": "doc-1", "policy_number": "POL-1"}, "flood is excluded")
	require.NoError(t, err)

	got := convertPineconeMatches([]*pinecone.ScoredVector{
		{Vector: &pinecone.Vector{Id: "a", Metadata: meta}, Score: 0.9},
		{Vector: nil, Score: 0.5},
		{Vector: &pinecone.Vector{Id: "b"}, Score: 0.4},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "flood is excluded", got[0].Content)
	assert.Equal(t, map[string]string{"document_id": "doc-1", "policy_number": "POL-1"}, got[0].Metadata)
	assert.InDelta(t, 0.9, got[0].Score, 1e-6)
	assert.Empty(t, got[1].Metadata)
}
