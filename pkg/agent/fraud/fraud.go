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

// Package fraud implements the fraud detector agent.
//
// The detector walks a fixed checklist of indicators. Each indicator that
// fires adds its configured weight, the score is the clamped sum and the
// severity comes from configurable score bands. The scoring policy lives
// behind an atomic pointer so a config reload can swap it while claims are
// being assessed.
package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
)

const ActionAssess = "assess"

const day = 24 * time.Hour

// History is the slice of the claim ledger the duplicate check needs.
type History interface {
	RecentClaims(ctx context.Context, claimantID string, since time.Time) ([]claim.LedgerEntry, error)
}

// RingIndex maps a normalized party id to the fraud ring it belongs to.
type RingIndex map[string]string

func NewRingIndex(rings []config.RingConfig) RingIndex {
	idx := make(RingIndex)
	for _, r := range rings {
		for _, m := range r.Members {
			if key := normalizeID(m); key != "" {
				idx[key] = r.Name
			}
		}
	}
	return idx
}

// Ring returns the ring id belongs to.
func (idx RingIndex) Ring(id string) (string, bool) {
	name, ok := idx[normalizeID(id)]
	return name, ok
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Policy is one immutable scoring configuration.
type Policy struct {
	cfg   config.FraudConfig
	rings RingIndex
}

// NewPolicy applies defaults, validates and indexes cfg.
func NewPolicy(cfg config.FraudConfig) (*Policy, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fraud policy: %w", err)
	}
	return &Policy{cfg: cfg, rings: NewRingIndex(cfg.Rings)}, nil
}

type Request struct {
	Claim claim.ClaimInfo `json:"claim"`
}

type Detector struct {
	policy  atomic.Pointer[Policy]
	history History
	now     func() time.Time
}

type Option func(*Detector)

// WithHistory enables the duplicate-claim check against h.
func WithHistory(h History) Option {
	return func(d *Detector) { d.history = h }
}

func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

func New(cfg config.FraudConfig, opts ...Option) (*Detector, error) {
	p, err := NewPolicy(cfg)
	if err != nil {
		return nil, err
	}
	d := &Detector{now: time.Now}
	d.policy.Store(p)
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// SetPolicy swaps the scoring policy. Assessments already running finish
// with the policy they started with.
func (d *Detector) SetPolicy(cfg config.FraudConfig) error {
	p, err := NewPolicy(cfg)
	if err != nil {
		return err
	}
	d.policy.Store(p)
	slog.Info("Fraud scoring policy updated", "disabled", cfg.Disabled, "rings", len(p.rings))
	return nil
}

// Policy returns the active scoring configuration.
func (d *Detector) Policy() config.FraudConfig {
	return d.policy.Load().cfg
}

func (d *Detector) Agent() (*agent.Base, error) {
	return agent.New(agent.Config{
		Kind:        agent.KindFraudDetector,
		Label:       "Fraud Detector",
		Description: "Scores a claim against the fraud indicator checklist and assigns a severity tier.",
		Tags:        []string{"fraud", "risk"},
		Actions: []agent.Action{
			agent.NewAction(ActionAssess, "Assess fraud risk of a parsed claim", d.Assess),
		},
	})
}

// Assess evaluates the checklist in order: cost inflation, duplicate
// claim, timing anomaly, fraud ring, late reporting.
func (d *Detector) Assess(ctx context.Context, req Request) (claim.FraudAssessment, error) {
	p := d.policy.Load()
	c := req.Claim
	w := p.cfg.Weights

	indicators := []claim.Indicator{}
	add := func(name string, weight float64, reason string) {
		indicators = append(indicators, claim.Indicator{Name: name, Weight: weight, Reason: reason})
	}

	if !p.cfg.IsDisabled(config.IndicatorCostInflation) {
		if reason, ok := p.costInflation(c); ok {
			add(config.IndicatorCostInflation, w.CostInflation, reason)
		}
	}
	if !p.cfg.IsDisabled(config.IndicatorDuplicateClaim) && d.history != nil {
		reason, ok, err := d.duplicate(ctx, p, c)
		if err != nil {
			return claim.FraudAssessment{}, err
		}
		if ok {
			add(config.IndicatorDuplicateClaim, w.DuplicateClaim, reason)
		}
	}
	if !p.cfg.IsDisabled(config.IndicatorTimingAnomaly) {
		if reason, ok := p.timingAnomaly(c); ok {
			add(config.IndicatorTimingAnomaly, w.TimingAnomaly, reason)
		}
	}
	if !p.cfg.IsDisabled(config.IndicatorFraudRing) {
		if reason, ok := p.ringAssociation(c); ok {
			add(config.IndicatorFraudRing, w.FraudRing, reason)
		}
	}
	if !p.cfg.IsDisabled(config.IndicatorLateReporting) {
		if reason, ok := p.lateReporting(c); ok {
			add(config.IndicatorLateReporting, w.LateReporting, reason)
		}
	}

	score := claim.ClampScore(indicators)
	severity := p.cfg.Severity.Classify(score)
	if len(indicators) > 0 {
		slog.Debug("Fraud indicators fired", "claim_number", c.ClaimNumber,
			"count", len(indicators), "score", score, "severity", severity)
	}
	return claim.FraudAssessment{Score: score, Indicators: indicators, Severity: severity}, nil
}

func (p *Policy) costInflation(c claim.ClaimInfo) (string, bool) {
	baseline := p.cfg.Baselines[string(c.LossType)]
	if baseline <= 0 {
		return "", false
	}
	ratio := c.ClaimedAmount / baseline
	if ratio <= p.cfg.InflationRatio {
		return "", false
	}
	return fmt.Sprintf("claimed %.2f is %.1fx the %s baseline of %.2f", c.ClaimedAmount, ratio, c.LossType.Label(), baseline), true
}

func (d *Detector) duplicate(ctx context.Context, p *Policy, c claim.ClaimInfo) (string, bool, error) {
	if c.ClaimantID == "" {
		return "", false, nil
	}
	since := d.now().Add(-time.Duration(p.cfg.LookbackDays) * day)
	entries, err := d.history.RecentClaims(ctx, c.ClaimantID, since)
	if err != nil {
		return "", false, fmt.Errorf("load claim history: %w", err)
	}
	for _, e := range entries {
		if e.ClaimNumber == c.ClaimNumber || e.LossType != c.LossType {
			continue
		}
		if sameDay(e.LossDate, c.LossDate) {
			return fmt.Sprintf("claim %s by the same claimant reports the same %s loss date", e.ClaimNumber, c.LossType.Label()), true, nil
		}
		if math.Abs(e.ClaimedAmount-c.ClaimedAmount) <= p.cfg.DuplicateAmountTolerance*c.ClaimedAmount {
			return fmt.Sprintf("claim %s by the same claimant is a %s loss of %.2f, within %.0f%% of this amount",
				e.ClaimNumber, c.LossType.Label(), e.ClaimedAmount, p.cfg.DuplicateAmountTolerance*100), true, nil
		}
	}
	return "", false, nil
}

func (p *Policy) timingAnomaly(c claim.ClaimInfo) (string, bool) {
	terms := c.Policy
	if terms.EffectiveDate != nil && c.LossDate.Before(*terms.EffectiveDate) {
		return "loss occurred before the policy effective date", true
	}
	if terms.ExpirationDate != nil && c.LossDate.After(*terms.ExpirationDate) {
		return "loss occurred after the policy expiration date", true
	}
	if terms.EffectiveDate != nil {
		days := int(c.LossDate.Sub(*terms.EffectiveDate) / day)
		if days <= p.cfg.TimingWindowDays {
			return fmt.Sprintf("loss occurred %d days after policy inception", days), true
		}
	}
	return "", false
}

func (p *Policy) ringAssociation(c claim.ClaimInfo) (string, bool) {
	claimantRing, claimantIn := p.rings.Ring(c.ClaimantID)
	adjusterRing, adjusterIn := p.rings.Ring(c.AdjusterID)
	switch {
	case claimantIn && adjusterIn && claimantRing == adjusterRing:
		return fmt.Sprintf("claimant and adjuster are both linked to ring %s", claimantRing), true
	case claimantIn:
		return fmt.Sprintf("claimant is linked to ring %s", claimantRing), true
	case adjusterIn:
		return fmt.Sprintf("adjuster is linked to ring %s", adjusterRing), true
	}
	return "", false
}

func (p *Policy) lateReporting(c claim.ClaimInfo) (string, bool) {
	if c.SubmissionDate.IsZero() || c.LossDate.IsZero() {
		return "", false
	}
	days := int(c.SubmissionDate.Sub(c.LossDate) / day)
	if days <= p.cfg.LateReportDays {
		return "", false
	}
	return fmt.Sprintf("reported %d days after the loss", days), true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
