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

// Package recommender implements the recommendation engine agent: coverage
// applicability from retrieved policy text plus the settlement amount.
package recommender

import (
	"context"
	"fmt"
	"strings"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
)

const ActionRecommend = "recommend"

var (
	exclusionMarkers = []string{"not covered", "does not cover", "excluded", "exclusion", "exclude", "no coverage"}
	affirmMarkers    = []string{"covered", "covers", "coverage for", "we will pay", "insured against"}
)

type Request struct {
	Claim   claim.ClaimInfo     `json:"claim"`
	Context claim.PolicyContext `json:"context"`
}

type Engine struct{}

func New() *Engine { return &Engine{} }

func (e *Engine) Agent() (*agent.Base, error) {
	return agent.New(agent.Config{
		Kind:        agent.KindRecommendationEngine,
		Label:       "Recommendation Engine",
		Description: "Determines coverage applicability and computes the proposed settlement.",
		Tags:        []string{"coverage", "settlement"},
		Actions: []agent.Action{
			agent.NewAction(ActionRecommend, "Recommend coverage and settlement for a claim", e.Recommend),
		},
	})
}

func (e *Engine) Recommend(_ context.Context, req Request) (claim.Recommendation, error) {
	c := req.Claim
	terms := c.Policy
	amount, clamped := claim.Settlement(c.ClaimedAmount, terms.Deductible, terms.CoverageLimit)

	coverage, why, docs := Assess(c, req.Context)
	rationale := []string{why}
	rationale = append(rationale, fmt.Sprintf("settlement = min(max(%.2f - %.2f, 0), %.2f) = %.2f",
		c.ClaimedAmount, terms.Deductible, terms.CoverageLimit, amount))
	if clamped {
		rationale = append(rationale, fmt.Sprintf("claimed amount net of deductible exceeds the coverage limit of %.2f", terms.CoverageLimit))
	}

	return claim.Recommendation{
		Coverage:            coverage,
		Covered:             coverage == claim.CoverageCovered,
		Settlement:          amount,
		ClaimedAmount:       c.ClaimedAmount,
		Deductible:          terms.Deductible,
		CoverageLimit:       terms.CoverageLimit,
		ExceedsLimit:        clamped,
		Rationale:           rationale,
		SupportingDocuments: docs,
	}, nil
}

// Assess decides coverage applicability. Rules, first match wins: no
// policy text is undetermined; a clause excluding the loss type is not
// covered; an explicit covered-loss list decides by membership; a clause
// affirming the loss type is covered; anything else is undetermined.
func Assess(c claim.ClaimInfo, pc claim.PolicyContext) (claim.Coverage, string, []string) {
	label := c.LossType.Label()
	if pc.Empty() {
		return claim.CoverageUndetermined, "no policy text cleared the similarity floor", []string{}
	}

	var excluding, affirming []string
	for _, item := range pc.Items {
		switch clauseStance(item.Text, label) {
		case stanceExcludes:
			excluding = appendUnique(excluding, item.DocumentID)
		case stanceAffirms:
			affirming = appendUnique(affirming, item.DocumentID)
		}
	}

	if len(excluding) > 0 {
		return claim.CoverageNotCovered, fmt.Sprintf("a retrieved policy clause excludes %s", label), excluding
	}
	if covered, listed := c.Policy.Covers(c.LossType); listed {
		docs := documentIDs(pc)
		if covered {
			return claim.CoverageCovered, fmt.Sprintf("%s is a covered loss type under the policy", label), docs
		}
		return claim.CoverageNotCovered, fmt.Sprintf("%s is not among the policy's covered loss types", label), docs
	}
	if len(affirming) > 0 {
		return claim.CoverageCovered, fmt.Sprintf("a retrieved policy clause affirms coverage for %s", label), affirming
	}
	return claim.CoverageUndetermined, fmt.Sprintf("retrieved policy text neither affirms nor excludes %s", label), documentIDs(pc)
}

type stance int

const (
	stanceNeutral stance = iota
	stanceExcludes
	stanceAffirms
)

// clauseStance reads a clause sentence by sentence. Only sentences that
// name the loss type count.
func clauseStance(text, label string) stance {
	result := stanceNeutral
	for _, sentence := range splitSentences(strings.ToLower(text)) {
		if !strings.Contains(sentence, label) {
			continue
		}
		if containsAny(sentence, exclusionMarkers) {
			return stanceExcludes
		}
		if containsAny(sentence, affirmMarkers) {
			result = stanceAffirms
		}
	}
	return result
}

func splitSentences(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == ';' || r == '\n' || r == '!' || r == '?'
	})
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func documentIDs(pc claim.PolicyContext) []string {
	ids := []string{}
	for _, item := range pc.Items {
		ids = appendUnique(ids, item.DocumentID)
	}
	return ids
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
