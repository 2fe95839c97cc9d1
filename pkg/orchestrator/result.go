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
	"errors"
	"fmt"
	"time"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
)

// ProcessingType selects which part of the pipeline a run enters.
type ProcessingType string

const (
	ProcessingFull           ProcessingType = "full"
	ProcessingFraudCheck     ProcessingType = "fraud_check"
	ProcessingPolicyLookup   ProcessingType = "policy_lookup"
	ProcessingRecommendation ProcessingType = "recommendation"
)

// ErrUnknownProcessingType is returned before a run starts.
var ErrUnknownProcessingType = errors.New("unknown processing type")

// ParseProcessingType maps s to a ProcessingType. Empty means full.
func ParseProcessingType(s string) (ProcessingType, error) {
	switch p := ProcessingType(s); p {
	case "":
		return ProcessingFull, nil
	case ProcessingFull, ProcessingFraudCheck, ProcessingPolicyLookup, ProcessingRecommendation:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProcessingType, s)
	}
}

func (p ProcessingType) retrieval() bool { return p != ProcessingFraudCheck }

func (p ProcessingType) recommendation() bool {
	return p == ProcessingFull || p == ProcessingRecommendation
}

func (p ProcessingType) fraud() bool { return p == ProcessingFull || p == ProcessingFraudCheck }

func (p ProcessingType) decision() bool { return p == ProcessingFull }

// State is the run-level state.
type State string

const (
	StateCreated      State = "created"
	StateParsing      State = "parsing"
	StateBranching    State = "branching"
	StateRecommending State = "recommending"
	StateDeciding     State = "deciding"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// BranchState is the sub-state of one concurrent branch.
type BranchState string

const (
	BranchPending BranchState = "pending"
	BranchRunning BranchState = "running"
	BranchDone    BranchState = "done"
	BranchFailed  BranchState = "failed"
	BranchSkipped BranchState = "skipped"
)

// Branch names.
const (
	BranchRetrieval = "retrieval"
	BranchFraud     = "fraud"
)

// Step names used in the processing log.
const (
	StepParse          = "parse"
	StepRetrieval      = "retrieval"
	StepRecommendation = "recommendation"
	StepFraud          = "fraud"
	StepDecision       = "decision"
	StepAnalyze        = "analyze"
)

// Step statuses in the processing log.
const (
	LogCompleted = "completed"
	LogFailed    = "failed"
)

// LogEntry is one processing log line, appended when a step attempt ends.
type LogEntry struct {
	Step       string `json:"step"`
	Agent      string `json:"agent"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Attempt    int    `json:"attempt,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Result is the aggregate of one run. Fields of steps that did not run or
// failed are nil.
type Result struct {
	RunID          string                 `json:"run_id"`
	RootTaskID     string                 `json:"root_task_id"`
	ProcessingType ProcessingType         `json:"processing_type"`
	State          State                  `json:"state"`
	Trail          []State                `json:"trail"`
	Branches       map[string]BranchState `json:"branches"`

	Claim          *claim.ClaimInfo       `json:"claim,omitempty"`
	PolicyContext  *claim.PolicyContext   `json:"policy_context,omitempty"`
	Recommendation *claim.Recommendation  `json:"recommendation,omitempty"`
	Fraud          *claim.FraudAssessment `json:"fraud_assessment,omitempty"`
	Decision       *claim.Decision        `json:"decision,omitempty"`

	ClaimStatus  claim.Status `json:"claim_status,omitempty"`
	AutoApproved bool         `json:"auto_approved,omitempty"`

	ProcessingLog []LogEntry `json:"processing_log"`
	Error         string     `json:"error,omitempty"`

	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration_ns"`
}

// Failed reports whether the run ended in the failed state.
func (r *Result) Failed() bool { return r.State == StateFailed }
