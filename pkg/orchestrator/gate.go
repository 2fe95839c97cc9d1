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

package orchestrator

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
)

// Gate is the auto-approval policy: a CEL expression that must hold before
// an approve verdict moves a claim to approved without a human. A nil Gate
// lets every approval through.
//
// Variables: decision, settlement, claimed_amount, fraud_score, severity,
// loss_type.
type Gate struct {
	expr string
	prg  cel.Program
}

// NewGate compiles expr. An empty expression yields a nil Gate.
func NewGate(expr string) (*Gate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("decision", cel.StringType),
		cel.Variable("settlement", cel.DoubleType),
		cel.Variable("claimed_amount", cel.DoubleType),
		cel.Variable("fraud_score", cel.DoubleType),
		cel.Variable("severity", cel.StringType),
		cel.Variable("loss_type", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile auto_approve_rule: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("auto_approve_rule must be a boolean expression, got %s", ast.OutputType())
	}
	prg, err := env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program auto_approve_rule: %w", err)
	}
	return &Gate{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (g *Gate) String() string {
	if g == nil {
		return ""
	}
	return g.expr
}

// Allow evaluates the gate for one decided claim.
func (g *Gate) Allow(c claim.ClaimInfo, d claim.Decision, fa claim.FraudAssessment) (bool, error) {
	if g == nil {
		return true, nil
	}
	out, _, err := g.prg.Eval(map[string]any{
		"decision":       string(d.Verdict),
		"settlement":     d.BoundAmount,
		"claimed_amount": c.ClaimedAmount,
		"fraud_score":    fa.Score,
		"severity":       string(fa.Severity),
		"loss_type":      string(c.LossType),
	})
	if err != nil {
		return false, fmt.Errorf("eval auto_approve_rule: %w", err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("auto_approve_rule produced %T, want bool", out.Value())
	}
	return allowed, nil
}
