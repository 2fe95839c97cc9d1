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

import "fmt"

// Severity is the discrete fraud risk tier derived from a score.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityNone:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Valid reports whether s is one of the five tiers.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s is the same tier as other or above it.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// SeverityBands are the inclusive lower bounds of each tier above none.
type SeverityBands struct {
	Low      float64 `yaml:"low" json:"low" mapstructure:"low"`
	Medium   float64 `yaml:"medium" json:"medium" mapstructure:"medium"`
	High     float64 `yaml:"high" json:"high" mapstructure:"high"`
	Critical float64 `yaml:"critical" json:"critical" mapstructure:"critical"`
}

// DefaultSeverityBands returns the stock thresholds.
func DefaultSeverityBands() SeverityBands {
	return SeverityBands{Low: 0.1, Medium: 0.3, High: 0.6, Critical: 0.85}
}

// Validate requires strictly increasing bounds inside (0, 1].
func (b SeverityBands) Validate() error {
	bounds := []float64{b.Low, b.Medium, b.High, b.Critical}
	prev := 0.0
	for i, v := range bounds {
		if v <= prev || v > 1 {
			return fmt.Errorf("severity bands must be strictly increasing within (0, 1], got %v at position %d", v, i)
		}
		prev = v
	}
	return nil
}

// Classify maps a score in [0, 1] to a tier. A score equal to a bound
// belongs to the higher tier, so 0.85 is critical with the stock bands.
func (b SeverityBands) Classify(score float64) Severity {
	switch {
	case score >= b.Critical:
		return SeverityCritical
	case score >= b.High:
		return SeverityHigh
	case score >= b.Medium:
		return SeverityMedium
	case score >= b.Low:
		return SeverityLow
	default:
		return SeverityNone
	}
}

// Indicator is one fired entry of the fraud checklist.
type Indicator struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Reason string  `json:"reason"`
}

// FraudAssessment is the fraud detector's verdict on a claim.
type FraudAssessment struct {
	Score      float64     `json:"score"`
	Indicators []Indicator `json:"indicators"`
	Severity   Severity    `json:"severity"`
}

// ClampScore sums indicator weights and clamps the result to [0, 1].
func ClampScore(indicators []Indicator) float64 {
	sum := 0.0
	for _, ind := range indicators {
		sum += ind.Weight
	}
	switch {
	case sum < 0:
		return 0
	case sum > 1:
		return 1
	}
	return sum
}
