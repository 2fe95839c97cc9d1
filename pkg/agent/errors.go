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

package agent

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnknownAgent is returned when a message targets an id the registry does not hold.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrUnknownTool is returned by the tool adapter before any dispatch.
	ErrUnknownTool = errors.New("unknown tool")
)

// FieldViolation is one problem found in a raw claim.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// MalformedClaimError lists every violation found in a raw claim, not just the first.
type MalformedClaimError struct {
	Violations []FieldViolation
}

func (e *MalformedClaimError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Reason)
	}
	return "malformed claim: " + strings.Join(parts, "; ")
}

// Fields returns the names of the violated fields in report order.
func (e *MalformedClaimError) Fields() []string {
	fields := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		fields = append(fields, v.Field)
	}
	return fields
}

// ValidationError reports a message or payload rejected before invocation.
// It is raised locally and never forwarded to an agent.
type ValidationError struct {
	Agent   string
	Action  string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("validation failed for %s.%s: %s", e.Agent, e.Action, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// AgentExecutionError wraps whatever an agent returned from its action.
type AgentExecutionError struct {
	Agent  string
	Action string
	Err    error
}

func (e *AgentExecutionError) Error() string {
	return fmt.Sprintf("agent %s failed executing %s: %v", e.Agent, e.Action, e.Err)
}

func (e *AgentExecutionError) Unwrap() error { return e.Err }

// StepTimeoutError is an agent execution failure caused by the per-step deadline.
type StepTimeoutError struct {
	Step    string
	Agent   string
	Timeout time.Duration
	Err     error
}

func (e *StepTimeoutError) Error() string {
	return fmt.Sprintf("step %s (%s) exceeded timeout of %s", e.Step, e.Agent, e.Timeout)
}

func (e *StepTimeoutError) Unwrap() error { return e.Err }

// RunCancelledError marks a run stopped at a state boundary.
type RunCancelledError struct {
	RunID string
	State string
	Cause error
}

func (e *RunCancelledError) Error() string {
	msg := fmt.Sprintf("run %s cancelled before %s", e.RunID, e.State)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *RunCancelledError) Unwrap() error { return e.Cause }

// IsExecutionFailure reports whether err is an agent-side failure, which
// includes step timeouts.
func IsExecutionFailure(err error) bool {
	var execErr *AgentExecutionError
	var timeoutErr *StepTimeoutError
	return errors.As(err, &execErr) || errors.As(err, &timeoutErr)
}
