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

// Package retriever implements the policy retriever agent. It turns a
// parsed claim into a handful of similarity queries and returns the best
// matching policy clauses, one per source document.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/embedder"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/rag"
)

const ActionRetrieve = "retrieve"

const maxNarrativeTerms = 8

// Searcher runs one similarity query against the policy index.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]rag.Hit, error)
}

type Request struct {
	Claim claim.ClaimInfo `json:"claim"`
}

type Retriever struct {
	searcher Searcher
	cfg      config.RAGConfig
}

func New(searcher Searcher, cfg config.RAGConfig) *Retriever {
	cfg.SetDefaults()
	return &Retriever{searcher: searcher, cfg: cfg}
}

func (r *Retriever) Agent() (*agent.Base, error) {
	return agent.New(agent.Config{
		Kind:        agent.KindPolicyRetriever,
		Label:       "Policy Retriever",
		Description: "Finds the policy clauses most relevant to a claim in the policy document index.",
		Tags:        []string{"retrieval", "policy"},
		Actions: []agent.Action{
			agent.NewAction(ActionRetrieve, "Retrieve policy clauses relevant to a parsed claim", r.Retrieve),
		},
	})
}

// Retrieve searches the index with every derived query and merges the
// results. Nothing clearing the similarity floor is an empty context, not
// an error.
func (r *Retriever) Retrieve(ctx context.Context, req Request) (claim.PolicyContext, error) {
	queries := Queries(req.Claim, r.cfg.MaxQueries)
	best := make(map[string]claim.PolicyClause)

	for _, q := range queries {
		hits, err := r.searcher.Search(ctx, q, r.cfg.TopK)
		if err != nil {
			return claim.PolicyContext{}, fmt.Errorf("search %q: %w", q, err)
		}
		for _, h := range hits {
			if h.Similarity < r.cfg.SimilarityFloor {
				continue
			}
			if h.PolicyNumber != "" && h.PolicyNumber != req.Claim.PolicyNumber {
				continue
			}
			key := h.DocumentID
			if key == "" {
				key = h.ChunkID
			}
			if cur, ok := best[key]; ok && cur.Similarity >= h.Similarity {
				continue
			}
			best[key] = claim.PolicyClause{
				DocumentID: key,
				ChunkID:    h.ChunkID,
				Text:       h.Content,
				Similarity: h.Similarity,
			}
		}
	}

	items := make([]claim.PolicyClause, 0, len(best))
	for _, c := range best {
		items = append(items, c)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Similarity != items[j].Similarity {
			return items[i].Similarity > items[j].Similarity
		}
		return items[i].ChunkID < items[j].ChunkID
	})
	if len(items) > r.cfg.MaxItems {
		items = items[:r.cfg.MaxItems]
	}

	slog.Debug("Retrieved policy context", "claim_number", req.Claim.ClaimNumber,
		"queries", len(queries), "items", len(items))
	return claim.PolicyContext{Items: items, Queries: queries}, nil
}

// Queries derives between two and limit search queries from a claim:
// loss type coverage, loss type exclusions, loss type keywords, narrative
// terms and deductible/limit terms, in that order.
func Queries(c claim.ClaimInfo, limit int) []string {
	limit = max(2, min(limit, 5))
	label := c.LossType.Label()

	candidates := []string{
		label + " coverage",
		label + " exclusions limitations",
		strings.Join(c.LossType.Keywords(), " "),
	}
	terms := embedder.Tokenize(c.Narrative)
	if len(terms) > maxNarrativeTerms {
		terms = terms[:maxNarrativeTerms]
	}
	candidates = append(candidates, strings.Join(terms, " "))
	candidates = append(candidates, "deductible coverage limit "+label)

	seen := make(map[string]bool, len(candidates))
	queries := make([]string, 0, limit)
	for _, q := range candidates {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		queries = append(queries, q)
		if len(queries) == limit {
			break
		}
	}
	return queries
}
