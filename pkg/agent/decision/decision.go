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

// Package decision implements the decision maker agent, which combines a
// recommendation and a fraud assessment into a verdict.
package decision

import (
	"context"
	"fmt"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
)

const ActionDecide = "decide"

// Rule names, in evaluation order.
const (
	RuleFraudOverride        = "fraud_severity_override"
	RuleCoverageUndetermined = "coverage_undetermined"
	RuleNotCovered           = "not_covered"
	RuleClampedByLimit       = "clamped_by_limit"
	RuleCoveredWithinLimit   = "covered_within_limit"
	RuleConservativeDefault  = "conservative_default"
)

type Request struct {
	Recommendation claim.Recommendation  `json:"recommendation"`
	Fraud          claim.FraudAssessment `json:"fraud"`
}

type Maker struct{}

func New() *Maker { return &Maker{} }

func (m *Maker) Agent() (*agent.Base, error) {
	return agent.New(agent.Config{
		Kind:        agent.KindDecisionMaker,
		Label:       "Decision Maker",
		Description: "Combines the recommendation and the fraud assessment into a final verdict.",
		Tags:        []string{"decision"},
		Actions: []agent.Action{
			agent.NewAction(ActionDecide, "Decide a claim from its recommendation and fraud assessment", m.Decide),
		},
	})
}

func (m *Maker) Decide(_ context.Context, req Request) (claim.Decision, error) {
	if !req.Fraud.Severity.Valid() {
		return claim.Decision{}, fmt.Errorf("unknown fraud severity %q", req.Fraud.Severity)
	}
	return Decide(req.Recommendation, req.Fraud), nil
}

// Decide applies the first matching rule. High or critical fraud severity
// always forces manual review, and anything the rules do not cover falls
// through to manual review too.
func Decide(rec claim.Recommendation, fa claim.FraudAssessment) claim.Decision {
	switch {
	case fa.Severity.AtLeast(claim.SeverityHigh):
		return claim.Decision{
			Verdict:   claim.VerdictManualReview,
			Rule:      RuleFraudOverride,
			Rationale: fmt.Sprintf("fraud severity %s (score %.2f) requires manual review", fa.Severity, fa.Score),
		}
	case rec.Coverage == claim.CoverageUndetermined:
		return claim.Decision{
			Verdict:   claim.VerdictManualReview,
			Rule:      RuleCoverageUndetermined,
			Rationale: "coverage could not be determined from the policy text",
		}
	case rec.Coverage == claim.CoverageNotCovered:
		return claim.Decision{
			Verdict:   claim.VerdictDeny,
			Rule:      RuleNotCovered,
			Rationale: "the loss is not covered by the policy",
		}
	case rec.Coverage == claim.CoverageCovered && rec.ExceedsLimit && rec.Settlement > 0:
		return claim.Decision{
			Verdict:     claim.VerdictPartial,
			BoundAmount: rec.Settlement,
			Rule:        RuleClampedByLimit,
			Rationale:   fmt.Sprintf("covered, settlement capped at the coverage limit of %.2f", rec.CoverageLimit),
		}
	case rec.Coverage == claim.CoverageCovered && rec.Settlement > 0:
		return claim.Decision{
			Verdict:     claim.VerdictApprove,
			BoundAmount: rec.Settlement,
			Rule:        RuleCoveredWithinLimit,
			Rationale:   fmt.Sprintf("covered within limit, settlement %.2f", rec.Settlement),
		}
	}
	return claim.Decision{
		Verdict:   claim.VerdictManualReview,
		Rule:      RuleConservativeDefault,
		Rationale: "no approval rule applies",
	}
}
