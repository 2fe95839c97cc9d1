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

// Package parser implements the claim parser agent, which normalizes a
// loosely typed claim record into claim.ClaimInfo.
package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
)

const ActionParse = "parse"

// RawPolicy carries the policy terms as the claims backend sends them.
type RawPolicy struct {
	PolicyNumber     string   `json:"policy_number,omitempty"`
	Deductible       any      `json:"deductible,omitempty" jsonschema:"description=Deductible as a number or numeric string"`
	CoverageLimit    any      `json:"coverage_limit,omitempty" jsonschema:"description=Coverage limit as a number or numeric string"`
	EffectiveDate    string   `json:"effective_date,omitempty"`
	ExpirationDate   string   `json:"expiration_date,omitempty"`
	CoveredLossTypes []string `json:"covered_loss_types,omitempty"`
}

// RawClaim is the loose claim payload. Every field is optional and
// untyped at the schema level so the parser can report all violations at
// once, wrong JSON types included.
type RawClaim struct {
	ClaimNumber    string     `json:"claim_number,omitempty"`
	PolicyNumber   string     `json:"policy_number,omitempty"`
	LossType       string     `json:"loss_type,omitempty"`
	LossDate       string     `json:"loss_date,omitempty" jsonschema:"description=RFC 3339 timestamp or YYYY-MM-DD"`
	SubmissionDate string     `json:"submission_date,omitempty" jsonschema:"description=Defaults to the time of parsing"`
	ClaimedAmount  any        `json:"claimed_amount,omitempty" jsonschema:"description=Claimed amount as a number or numeric string"`
	Narrative      string     `json:"narrative,omitempty"`
	ClaimantID     string     `json:"claimant_id,omitempty"`
	AdjusterID     string     `json:"adjuster_id,omitempty"`
	Location       string     `json:"location,omitempty"`
	Policy         *RawPolicy `json:"policy,omitempty"`

	// fields whose JSON value had the wrong type
	typeErrs violations
}

// JSONSchemaExtend drops the property types so type checks happen in Parse.
func (RawClaim) JSONSchemaExtend(s *jsonschema.Schema) {
	untype(s)
}

func untype(s *jsonschema.Schema) {
	if s == nil || s.Properties == nil {
		return
	}
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		pair.Value.Type = ""
		pair.Value.Items = nil
		untype(pair.Value)
	}
}

// UnmarshalJSON decodes field by field. A value of the wrong type leaves
// the field empty and is recorded as a violation instead of failing the
// whole decode.
func (r *RawClaim) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = RawClaim{}
	d := looseDecoder{fields: fields, errs: &r.typeErrs}
	d.string("claim_number", &r.ClaimNumber)
	d.string("policy_number", &r.PolicyNumber)
	d.string("loss_type", &r.LossType)
	d.string("loss_date", &r.LossDate)
	d.string("submission_date", &r.SubmissionDate)
	d.value("claimed_amount", &r.ClaimedAmount)
	d.string("narrative", &r.Narrative)
	d.string("claimant_id", &r.ClaimantID)
	d.string("adjuster_id", &r.AdjusterID)
	d.string("location", &r.Location)

	raw, ok := d.present("policy")
	if !ok {
		return nil
	}
	var policyFields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &policyFields); err != nil {
		r.typeErrs.add("policy", "must be an object")
		return nil
	}
	r.Policy = &RawPolicy{}
	pd := looseDecoder{fields: policyFields, prefix: "policy.", errs: &r.typeErrs}
	pd.string("policy_number", &r.Policy.PolicyNumber)
	pd.value("deductible", &r.Policy.Deductible)
	pd.value("coverage_limit", &r.Policy.CoverageLimit)
	pd.string("effective_date", &r.Policy.EffectiveDate)
	pd.string("expiration_date", &r.Policy.ExpirationDate)
	if raw, ok := pd.present("covered_loss_types"); ok {
		if err := json.Unmarshal(raw, &r.Policy.CoveredLossTypes); err != nil {
			r.Policy.CoveredLossTypes = nil
			r.typeErrs.add("policy.covered_loss_types", "must be a list of strings")
		}
	}
	return nil
}

type looseDecoder struct {
	fields map[string]json.RawMessage
	prefix string
	errs   *violations
}

// present returns the raw value of name unless it is absent or null.
func (d looseDecoder) present(name string) (json.RawMessage, bool) {
	raw, ok := d.fields[name]
	if !ok || string(raw) == "null" {
		return nil, false
	}
	return raw, true
}

func (d looseDecoder) string(name string, dst *string) {
	raw, ok := d.present(name)
	if !ok {
		return
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		*dst = ""
		d.errs.add(d.prefix+name, "must be a string")
	}
}

func (d looseDecoder) value(name string, dst *any) {
	if raw, ok := d.present(name); ok {
		_ = json.Unmarshal(raw, dst)
	}
}

type Parser struct {
	claimNumber *regexp.Regexp
	now         func() time.Time
}

type Option func(*Parser)

// WithClock overrides the time used for a missing submission date.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

func New(cfg config.ParserConfig, opts ...Option) (*Parser, error) {
	cfg.SetDefaults()
	re, err := regexp.Compile(cfg.ClaimNumberPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid claim number pattern: %w", err)
	}
	p := &Parser{claimNumber: re, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Agent wraps the parser as the claim_parser pipeline agent.
func (p *Parser) Agent() (*agent.Base, error) {
	return agent.New(agent.Config{
		Kind:        agent.KindClaimParser,
		Label:       "Claim Parser",
		Description: "Validates a raw claim record and normalizes it into structured claim information.",
		Tags:        []string{"intake", "validation"},
		Actions: []agent.Action{
			agent.NewAction(ActionParse, "Validate and normalize a raw claim record", p.Parse),
		},
	})
}

// Parse validates raw and returns the normalized claim. Every violated
// field is reported in a single *agent.MalformedClaimError.
func (p *Parser) Parse(_ context.Context, raw RawClaim) (claim.ClaimInfo, error) {
	var v violations
	info := claim.ClaimInfo{
		ClaimNumber:  strings.TrimSpace(raw.ClaimNumber),
		PolicyNumber: strings.TrimSpace(raw.PolicyNumber),
		Narrative:    strings.TrimSpace(raw.Narrative),
		ClaimantID:   strings.TrimSpace(raw.ClaimantID),
		AdjusterID:   strings.TrimSpace(raw.AdjusterID),
		Location:     strings.TrimSpace(raw.Location),
	}

	switch {
	case info.ClaimNumber == "":
		v.add("claim_number", "missing")
	case !p.claimNumber.MatchString(info.ClaimNumber):
		v.add("claim_number", fmt.Sprintf("%q does not match %s", info.ClaimNumber, p.claimNumber))
	}

	if info.PolicyNumber == "" {
		v.add("policy_number", "missing")
	}

	if strings.TrimSpace(raw.LossType) == "" {
		v.add("loss_type", "missing")
	} else if lt, ok := claim.ParseLossType(raw.LossType); ok {
		info.LossType = lt
	} else {
		v.add("loss_type", fmt.Sprintf("unknown loss type %q", raw.LossType))
	}

	lossOK := false
	if strings.TrimSpace(raw.LossDate) == "" {
		v.add("loss_date", "missing")
	} else if t, err := ParseDate(raw.LossDate); err != nil {
		v.add("loss_date", err.Error())
	} else {
		info.LossDate = t
		lossOK = true
	}

	submissionOK := true
	if strings.TrimSpace(raw.SubmissionDate) == "" {
		info.SubmissionDate = p.now().UTC()
	} else if t, err := ParseDate(raw.SubmissionDate); err != nil {
		v.add("submission_date", err.Error())
		submissionOK = false
	} else {
		info.SubmissionDate = t
	}
	if lossOK && submissionOK && info.LossDate.After(info.SubmissionDate) {
		v.add("loss_date", "must not be after submission_date")
	}

	if raw.ClaimedAmount == nil {
		v.add("claimed_amount", "missing")
	} else if amount, err := ParseAmount(raw.ClaimedAmount); err != nil {
		v.add("claimed_amount", err.Error())
	} else if amount <= 0 {
		v.add("claimed_amount", "must be greater than zero")
	} else {
		info.ClaimedAmount = amount
	}

	if raw.Policy == nil {
		v.add("policy", "missing")
	} else {
		info.Policy = p.parsePolicy(*raw.Policy, info.PolicyNumber, &v)
	}

	if v = raw.typeErrs.merge(v); len(v) > 0 {
		return claim.ClaimInfo{}, &agent.MalformedClaimError{Violations: v}
	}
	return info, nil
}

func (p *Parser) parsePolicy(raw RawPolicy, policyNumber string, v *violations) claim.PolicyTerms {
	terms := claim.PolicyTerms{PolicyNumber: strings.TrimSpace(raw.PolicyNumber)}
	if terms.PolicyNumber == "" {
		terms.PolicyNumber = policyNumber
	} else if policyNumber != "" && terms.PolicyNumber != policyNumber {
		v.add("policy.policy_number", fmt.Sprintf("%q does not match claim policy_number %q", terms.PolicyNumber, policyNumber))
	}

	if raw.Deductible != nil {
		d, err := ParseAmount(raw.Deductible)
		switch {
		case err != nil:
			v.add("policy.deductible", err.Error())
		case d < 0:
			v.add("policy.deductible", "must not be negative")
		default:
			terms.Deductible = d
		}
	}

	if raw.CoverageLimit == nil {
		v.add("policy.coverage_limit", "missing")
	} else if limit, err := ParseAmount(raw.CoverageLimit); err != nil {
		v.add("policy.coverage_limit", err.Error())
	} else if limit <= 0 {
		v.add("policy.coverage_limit", "must be greater than zero")
	} else {
		terms.CoverageLimit = limit
	}

	if raw.EffectiveDate != "" {
		if t, err := ParseDate(raw.EffectiveDate); err != nil {
			v.add("policy.effective_date", err.Error())
		} else {
			terms.EffectiveDate = &t
		}
	}
	if raw.ExpirationDate != "" {
		if t, err := ParseDate(raw.ExpirationDate); err != nil {
			v.add("policy.expiration_date", err.Error())
		} else {
			terms.ExpirationDate = &t
		}
	}
	if terms.EffectiveDate != nil && terms.ExpirationDate != nil && terms.ExpirationDate.Before(*terms.EffectiveDate) {
		v.add("policy.expiration_date", "must not be before effective_date")
	}

	for _, s := range raw.CoveredLossTypes {
		lt, ok := claim.ParseLossType(s)
		if !ok {
			v.add("policy.covered_loss_types", fmt.Sprintf("unknown loss type %q", s))
			continue
		}
		terms.CoveredLossTypes = append(terms.CoveredLossTypes, lt)
	}
	return terms
}

type violations []agent.FieldViolation

func (v *violations) add(field, reason string) {
	*v = append(*v, agent.FieldViolation{Field: field, Reason: reason})
}

// merge returns v followed by the checks on fields v does not already
// name. A field zeroed for its JSON type is reported once, for the type.
func (v violations) merge(checks violations) violations {
	if len(v) == 0 {
		return checks
	}
	named := make(map[string]bool, len(v))
	for _, fv := range v {
		named[fv.Field] = true
	}
	out := append(violations(nil), v...)
	for _, fv := range checks {
		if !named[fv.Field] {
			out = append(out, fv)
		}
	}
	return out
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// ParseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates. Dates
// without a zone are taken as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not an RFC 3339 timestamp or YYYY-MM-DD date", s)
}

// ParseAmount accepts JSON numbers and numeric strings such as "$12,000.50".
// NaN and infinities are rejected.
func ParseAmount(v any) (float64, error) {
	f, err := parseAmount(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not a finite number", v)
	}
	return f, nil
}

func parseAmount(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(n))
		if cleaned == "" {
			return 0, fmt.Errorf("empty amount")
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported amount type %T", v)
	}
}
