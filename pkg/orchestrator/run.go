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
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
)

// run is the mutable state of one run. The two branch goroutines write
// to it concurrently, so every access goes through mu.
type run struct {
	id     string
	rootID string
	ptype  ProcessingType
	start  time.Time

	mu       sync.Mutex
	state    State
	trail    []State
	branches map[string]BranchState
	log      []LogEntry

	claim          *claim.ClaimInfo
	policyContext  *claim.PolicyContext
	recommendation *claim.Recommendation
	fraud          *claim.FraudAssessment
	decision       *claim.Decision

	// status is the claim status as of the last transition this run saw.
	status        claim.Status
	statusTracked bool
	autoApproved  bool
}

func newRun(ptype ProcessingType, start time.Time) *run {
	r := &run{
		id:       uuid.NewString(),
		ptype:    ptype,
		start:    start,
		state:    StateCreated,
		trail:    []State{StateCreated},
		branches: map[string]BranchState{},
	}
	if ptype != "" {
		r.branches[BranchRetrieval] = BranchSkipped
		r.branches[BranchFraud] = BranchSkipped
		if ptype.retrieval() {
			r.branches[BranchRetrieval] = BranchPending
		}
		if ptype.fraud() {
			r.branches[BranchFraud] = BranchPending
		}
	}
	return r
}

// boundary moves the run to next unless ctx is done, in which case the run
// stops here.
func (r *run) boundary(ctx context.Context, next State) error {
	if err := ctx.Err(); err != nil {
		return &agent.RunCancelledError{RunID: r.id, State: string(next), Cause: err}
	}
	r.enter(next)
	return nil
}

func (r *run) enter(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
	r.trail = append(r.trail, s)
}

func (r *run) setBranch(name string, s BranchState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.branches[name] = s
}

func (r *run) record(e LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, e)
}

func (r *run) set(fn func(*run)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

// snapshot builds the caller-facing aggregate.
func (r *run) snapshot() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := &Result{
		RunID:          r.id,
		RootTaskID:     r.rootID,
		ProcessingType: r.ptype,
		State:          r.state,
		Trail:          slices.Clone(r.trail),
		Branches:       maps.Clone(r.branches),
		Claim:          r.claim,
		PolicyContext:  r.policyContext,
		Recommendation: r.recommendation,
		Fraud:          r.fraud,
		Decision:       r.decision,
		ClaimStatus:    r.status,
		AutoApproved:   r.autoApproved,
		ProcessingLog:  slices.Clone(r.log),
		StartedAt:      r.start,
	}
	if res.ProcessingLog == nil {
		res.ProcessingLog = []LogEntry{}
	}
	return res
}
