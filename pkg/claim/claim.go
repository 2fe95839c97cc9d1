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

// Package claim holds the domain types exchanged between the claim
// processing agents: the normalized claim, retrieved policy context,
// fraud assessment, settlement recommendation and final decision.
package claim

import (
	"strings"
	"time"
)

// LossType classifies the event behind a claim.
type LossType string

const (
	LossAutoCollision   LossType = "auto_collision"
	LossAutoTheft       LossType = "auto_theft"
	LossPropertyDamage  LossType = "property_damage"
	LossWaterDamage     LossType = "water_damage"
	LossFire            LossType = "fire"
	LossTheft           LossType = "theft"
	LossLiability       LossType = "liability"
	LossMedical         LossType = "medical"
	LossNaturalDisaster LossType = "natural_disaster"
	LossOther           LossType = "other"
)

var lossKeywords = map[LossType][]string{
	LossAutoCollision:   {"collision", "vehicle", "accident", "auto"},
	LossAutoTheft:       {"vehicle", "theft", "stolen", "auto"},
	LossPropertyDamage:  {"property", "damage", "dwelling", "structure"},
	LossWaterDamage:     {"water", "pipe", "leak", "flood"},
	LossFire:            {"fire", "smoke", "burn"},
	LossTheft:           {"theft", "burglary", "stolen", "robbery"},
	LossLiability:       {"liability", "injury", "third party"},
	LossMedical:         {"medical", "hospital", "treatment"},
	LossNaturalDisaster: {"storm", "hurricane", "earthquake", "flood", "disaster"},
	LossOther:           {"loss"},
}

// LossTypes returns every known loss type in declaration order.
func LossTypes() []LossType {
	return []LossType{
		LossAutoCollision, LossAutoTheft, LossPropertyDamage, LossWaterDamage, LossFire,
		LossTheft, LossLiability, LossMedical, LossNaturalDisaster, LossOther,
	}
}

// ParseLossType normalizes s ("Water Damage", "water-damage") to a LossType.
func ParseLossType(s string) (LossType, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	lt := LossType(norm)
	_, ok := lossKeywords[lt]
	return lt, ok
}

// Label is the human readable form used in search queries.
func (l LossType) Label() string {
	return strings.ReplaceAll(string(l), "_", " ")
}

// Keywords are the terms policy clauses use for this loss type.
func (l LossType) Keywords() []string {
	return lossKeywords[l]
}

// PolicyTerms are the policy attributes the claims backend attaches to a claim.
type PolicyTerms struct {
	PolicyNumber     string     `json:"policy_number,omitempty"`
	Deductible       float64    `json:"deductible"`
	CoverageLimit    float64    `json:"coverage_limit"`
	EffectiveDate    *time.Time `json:"effective_date,omitempty"`
	ExpirationDate   *time.Time `json:"expiration_date,omitempty"`
	CoveredLossTypes []LossType `json:"covered_loss_types,omitempty"`
}

// Covers reports whether the loss type is explicitly listed. The second
// result is false when the policy carries no explicit list.
func (p PolicyTerms) Covers(lt LossType) (covered bool, listed bool) {
	if len(p.CoveredLossTypes) == 0 {
		return false, false
	}
	for _, c := range p.CoveredLossTypes {
		if c == lt {
			return true, true
		}
	}
	return false, true
}

// ClaimInfo is the normalized claim. It is produced once per run by the
// claim parser and never mutated afterwards.
type ClaimInfo struct {
	ClaimNumber    string      `json:"claim_number"`
	PolicyNumber   string      `json:"policy_number"`
	LossType       LossType    `json:"loss_type"`
	LossDate       time.Time   `json:"loss_date"`
	SubmissionDate time.Time   `json:"submission_date"`
	ClaimedAmount  float64     `json:"claimed_amount"`
	Narrative      string      `json:"narrative,omitempty"`
	ClaimantID     string      `json:"claimant_id,omitempty"`
	AdjusterID     string      `json:"adjuster_id,omitempty"`
	Location       string      `json:"location,omitempty"`
	Policy         PolicyTerms `json:"policy"`
}

// PolicyClause is one retrieved policy passage.
type PolicyClause struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// PolicyContext is the ranked set of clauses relevant to a claim.
type PolicyContext struct {
	Items   []PolicyClause `json:"items"`
	Queries []string       `json:"queries,omitempty"`
}

// Empty reports whether no clause cleared the similarity floor.
func (c PolicyContext) Empty() bool {
	return len(c.Items) == 0
}

// Coverage is the tri-state applicability of a policy to a claim.
type Coverage string

const (
	CoverageCovered      Coverage = "covered"
	CoverageNotCovered   Coverage = "not_covered"
	CoverageUndetermined Coverage = "undetermined"
)

// Recommendation is the settlement proposal for a claim.
type Recommendation struct {
	Coverage            Coverage `json:"coverage"`
	Covered             bool     `json:"covered"`
	Settlement          float64  `json:"settlement"`
	ClaimedAmount       float64  `json:"claimed_amount"`
	Deductible          float64  `json:"deductible"`
	CoverageLimit       float64  `json:"coverage_limit"`
	ExceedsLimit        bool     `json:"exceeds_limit"`
	Rationale           []string `json:"rationale,omitempty"`
	SupportingDocuments []string `json:"supporting_documents,omitempty"`
}

// Settlement returns min(max(claimed-deductible, 0), limit) and whether the
// limit clamped the amount.
func Settlement(claimed, deductible, limit float64) (amount float64, clamped bool) {
	amount = claimed - deductible
	if amount < 0 {
		amount = 0
	}
	if amount > limit {
		return limit, true
	}
	return amount, false
}
