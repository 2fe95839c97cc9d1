// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package runtime

import (
	"fmt"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent/decision"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent/docanalyzer"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent/fraud"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent/parser"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent/recommender"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent/retriever"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/embedder"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/llm"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/observability"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/rag"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/vector"
)

// VectorFactory creates the policy vector index.
type VectorFactory func(cfg config.VectorConfig) (vector.Provider, error)

// EmbedderFactory creates the embedding model.
type EmbedderFactory func(cfg config.EmbedderConfig) (embedder.Embedder, error)

// LLMFactory creates the optional generator. A nil Generator with a nil
// error means no model is configured.
type LLMFactory func(cfg config.LLMConfig) (llm.Generator, error)

// DefaultVectorFactory dispatches on the configured vector type.
func DefaultVectorFactory(cfg config.VectorConfig) (vector.Provider, error) {
	return vector.New(cfg)
}

// DefaultEmbedderFactory dispatches on the configured embedder provider.
func DefaultEmbedderFactory(cfg config.EmbedderConfig) (embedder.Embedder, error) {
	return embedder.New(cfg)
}

// DefaultLLMFactory dispatches on the configured llm provider.
func DefaultLLMFactory(cfg config.LLMConfig) (llm.Generator, error) {
	return llm.New(cfg)
}

// agentSet holds the built agents. The fraud detector is kept for policy
// hot reload.
type agentSet struct {
	agents []agent.Agent
	fraud  *fraud.Detector
}

// buildAgents creates the six agents in pipeline order.
func buildAgents(cfg *config.Config, searcher retriever.Searcher, history claim.Ledger, generator llm.Generator) (*agentSet, error) {
	p, err := parser.New(cfg.Parser)
	if err != nil {
		return nil, fmt.Errorf("claim parser: %w", err)
	}

	var fraudOpts []fraud.Option
	if history != nil {
		fraudOpts = append(fraudOpts, fraud.WithHistory(history))
	}
	det, err := fraud.New(cfg.Fraud, fraudOpts...)
	if err != nil {
		return nil, fmt.Errorf("fraud detector: %w", err)
	}

	builders := []struct {
		name  string
		build func() (*agent.Base, error)
	}{
		{"claim parser", p.Agent},
		{"policy retriever", retriever.New(searcher, cfg.RAG).Agent},
		{"recommendation engine", recommender.New().Agent},
		{"fraud detector", det.Agent},
		{"decision maker", decision.New().Agent},
		{"document analyzer", docanalyzer.New(generator, docanalyzer.WithDocumentRoot(cfg.RAG.DocumentRoot)).Agent},
	}

	set := &agentSet{fraud: det}
	for _, b := range builders {
		a, err := b.build()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.name, err)
		}
		set.agents = append(set.agents, a)
	}
	return set, nil
}

// buildRAG wires the chunker, indexer and searcher over one collection.
func buildRAG(cfg *config.Config, emb embedder.Embedder, store vector.Provider, rec observability.Recorder) (*rag.Indexer, *rag.Searcher, error) {
	chunker, err := rag.NewChunker(cfg.RAG)
	if err != nil {
		return nil, nil, fmt.Errorf("chunker: %w", err)
	}
	coll := cfg.Vector.Collection
	indexer := rag.NewIndexer(chunker, emb, store, coll, rag.WithRecorder(rec), rag.WithDocumentRoot(cfg.RAG.DocumentRoot))
	return indexer, rag.NewSearcher(emb, store, coll), nil
}
