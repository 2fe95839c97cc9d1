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

package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/embedder"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/observability"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/vector"
)

// Metadata keys stored with every chunk.
const (
	MetaDocumentID   = "document_id"
	MetaPolicyNumber = "policy_number"
	MetaSource       = "source"
	MetaTitle        = "title"
	MetaChunkIndex   = "chunk_index"
)

// ErrEmptyDocument is returned when extraction yields no indexable text.
var ErrEmptyDocument = errors.New("document has no indexable text")

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/hassanmzia/AI-Insurance-Claim-Assistant/policy-documents"))

// DocumentID is stable for a source, so reindexing a file replaces its
// chunks instead of adding new ones.
func DocumentID(source string) string {
	return uuid.NewSHA1(idNamespace, []byte(source)).String()
}

// ChunkID is a UUID because qdrant only accepts UUID or integer point ids.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(idNamespace, []byte(documentID+"#"+strconv.Itoa(index))).String()
}

// IndexResult reports what one indexing call stored.
type IndexResult struct {
	DocumentID   string `json:"document_id"`
	Source       string `json:"source"`
	Title        string `json:"title,omitempty"`
	Format       string `json:"format,omitempty"`
	PolicyNumber string `json:"policy_number,omitempty"`
	ChunkCount   int    `json:"chunk_count"`
}

// Indexer chunks, embeds and upserts policy documents into one collection.
type Indexer struct {
	chunker    Chunker
	embedder   embedder.Embedder
	store      vector.Provider
	collection string
	root       string
	recorder   observability.Recorder
}

type IndexerOption func(*Indexer)

func WithRecorder(rec observability.Recorder) IndexerOption {
	return func(ix *Indexer) {
		if rec != nil {
			ix.recorder = rec
		}
	}
}

// WithDocumentRoot confines IndexFile to documents under root.
func WithDocumentRoot(root string) IndexerOption {
	return func(ix *Indexer) { ix.root = root }
}

func NewIndexer(chunker Chunker, emb embedder.Embedder, store vector.Provider, collection string, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		chunker:    chunker,
		embedder:   emb,
		store:      store,
		collection: collection,
		recorder:   observability.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// IndexFile extracts the document behind ref and indexes it. Chunks are
// tagged with policyNumber when it is non-empty, which scopes them to that
// policy during retrieval.
func (ix *Indexer) IndexFile(ctx context.Context, ref, policyNumber string) (*IndexResult, error) {
	doc, err := Extract(ctx, ref, ix.root)
	if err != nil {
		ix.recorder.RecordIndex(ctx, 0, 0, err)
		return nil, err
	}
	res, err := ix.IndexText(ctx, doc.Path, doc.Title, doc.Content, policyNumber)
	if err != nil {
		return nil, err
	}
	res.Format = doc.Format
	return res, nil
}

// IndexText indexes already extracted text under source.
func (ix *Indexer) IndexText(ctx context.Context, source, title, text, policyNumber string) (res *IndexResult, err error) {
	start := time.Now()
	defer func() {
		chunks := 0
		if res != nil {
			chunks = res.ChunkCount
		}
		ix.recorder.RecordIndex(ctx, chunks, time.Since(start), err)
	}()

	chunks := ix.chunker.Chunk(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("index %s: %w", source, ErrEmptyDocument)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("index %s: embed chunks: %w", source, err)
	}

	docID := DocumentID(source)
	docs := make([]vector.Document, len(chunks))
	for i, c := range chunks {
		meta := map[string]string{
			MetaDocumentID: docID,
			MetaSource:     source,
			MetaTitle:      title,
			MetaChunkIndex: strconv.Itoa(c.Index),
		}
		if policyNumber != "" {
			meta[MetaPolicyNumber] = policyNumber
		}
		docs[i] = vector.Document{
			ID:       ChunkID(docID, c.Index),
			Vector:   vecs[i],
			Content:  c.Content,
			Metadata: meta,
		}
	}

	if err := ix.store.DeleteByFilter(ctx, ix.collection, map[string]string{MetaDocumentID: docID}); err != nil {
		return nil, fmt.Errorf("index %s: remove previous chunks: %w", source, err)
	}
	if err := ix.store.Upsert(ctx, ix.collection, docs); err != nil {
		return nil, fmt.Errorf("index %s: %w", source, err)
	}

	slog.Info("Indexed policy document", "source", source, "document_id", docID,
		"chunks", len(docs), "strategy", ix.chunker.Strategy(), "policy_number", policyNumber)
	return &IndexResult{
		DocumentID:   docID,
		Source:       source,
		Title:        title,
		PolicyNumber: policyNumber,
		ChunkCount:   len(docs),
	}, nil
}

// Hit is one search result with its chunk metadata.
type Hit struct {
	ChunkID      string
	DocumentID   string
	PolicyNumber string
	Content      string
	Similarity   float64
}

// Searcher embeds a query and runs it against the collection.
type Searcher struct {
	embedder   embedder.Embedder
	store      vector.Provider
	collection string
}

func NewSearcher(emb embedder.Embedder, store vector.Provider, collection string) *Searcher {
	return &Searcher{embedder: emb, store: store, collection: collection}
}

func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := s.store.Search(ctx, s.collection, vec, topK, nil)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ChunkID:      r.ID,
			DocumentID:   r.Metadata[MetaDocumentID],
			PolicyNumber: r.Metadata[MetaPolicyNumber],
			Content:      r.Content,
			Similarity:   float64(r.Score),
		})
	}
	return hits, nil
}
