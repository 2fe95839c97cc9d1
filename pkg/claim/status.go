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

// Status is the lifecycle state of a claim in the claims backend.
type Status string

const (
	StatusSubmitted         Status = "submitted"
	StatusAIProcessing      Status = "ai_processing"
	StatusUnderReview       Status = "under_review"
	StatusManualReview      Status = "manual_review"
	StatusApproved          Status = "approved"
	StatusPartiallyApproved Status = "partially_approved"
	StatusDenied            Status = "denied"
	StatusAppealed          Status = "appealed"
	StatusSettled           Status = "settled"
	StatusClosed            Status = "closed"
)

var statusTransitions = map[Status][]Status{
	StatusSubmitted:         {StatusAIProcessing, StatusUnderReview},
	StatusAIProcessing:      {StatusApproved, StatusPartiallyApproved, StatusDenied, StatusManualReview, StatusUnderReview},
	StatusUnderReview:       {StatusAIProcessing, StatusApproved, StatusPartiallyApproved, StatusDenied},
	StatusManualReview:      {StatusApproved, StatusPartiallyApproved, StatusDenied, StatusUnderReview},
	StatusApproved:          {StatusSettled},
	StatusPartiallyApproved: {StatusSettled, StatusAppealed},
	StatusDenied:            {StatusAppealed, StatusClosed},
	StatusAppealed:          {StatusUnderReview},
	StatusSettled:           {StatusClosed},
	StatusClosed:            nil,
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to.
func Transition(from, to Status) error {
	if _, ok := statusTransitions[from]; !ok {
		return fmt.Errorf("unknown claim status %q", from)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal claim status transition %s -> %s", from, to)
	}
	return nil
}

// StatusForVerdict maps a decision to the status it moves an
// ai_processing claim to. approve only lands on approved when the
// auto-approval gate let it through.
func StatusForVerdict(v Verdict, autoApproved bool) Status {
	switch v {
	case VerdictApprove:
		if autoApproved {
			return StatusApproved
		}
		return StatusManualReview
	case VerdictPartial:
		return StatusPartiallyApproved
	case VerdictDeny:
		return StatusDenied
	default:
		return StatusManualReview
	}
}
