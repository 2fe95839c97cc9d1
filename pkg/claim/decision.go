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

package claim

import "time"

// Verdict is the final outcome proposed for a claim.
type Verdict string

const (
	VerdictApprove      Verdict = "approve"
	VerdictDeny         Verdict = "deny"
	VerdictPartial      Verdict = "partial"
	VerdictManualReview Verdict = "manual_review"
)

// Decision names the rule that produced the verdict so it can be audited.
type Decision struct {
	Verdict     Verdict `json:"verdict"`
	BoundAmount float64 `json:"bound_amount"`
	Rule        string  `json:"rule"`
	Rationale   string  `json:"rationale"`
}

// Amount is a monetary value found in a document.
type Amount struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency,omitempty"`
	Context  string  `json:"context,omitempty"`
}

// DateMention is a calendar date found in a document.
type DateMention struct {
	Value   time.Time `json:"value"`
	Context string    `json:"context,omitempty"`
}

// Party is a person or organization named in a document.
type Party struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// ExtractedFields is what the document analyzer pulls out of a supporting
// document.
type ExtractedFields struct {
	DocumentRef  string        `json:"document_ref"`
	DocumentType string        `json:"document_type"`
	Amounts      []Amount      `json:"amounts"`
	Dates        []DateMention `json:"dates"`
	Parties      []Party       `json:"parties"`
	Summary      string        `json:"summary,omitempty"`
	Extractor    string        `json:"extractor"`
	TextLength   int           `json:"text_length"`
}
