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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/protocol"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/rag"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/task"
)

// invoke sends one step to the agent of kind and decodes the reply into
// out. Each attempt gets its own task node when ownNode is set; the parser
// is accounted to the root task instead.
//
// Calls run detached from ctx cancellation so an in-flight call drains;
// the step timeout still applies.
func (o *Orchestrator) invoke(ctx context.Context, r *run, step string, kind agent.Kind, action string, payload, out any, ownNode bool) error {
	agentID := o.agents[kind]
	attempts := 1 + o.cfg.Retries[agentID]

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && !o.backoff(ctx) {
			break
		}
		err = o.attempt(ctx, r, step, agentID, action, payload, out, ownNode, attempt)
		if err == nil || !retryable(err) {
			return err
		}
		if attempt < attempts {
			slog.Warn("Step failed, retrying", "run", r.id, "step", step, "agent", agentID,
				"attempt", attempt, "of", attempts, "error", err)
		}
	}
	return err
}

func (o *Orchestrator) attempt(ctx context.Context, r *run, step, agentID, action string, payload, out any, ownNode bool, attempt int) error {
	bg := context.WithoutCancel(ctx)
	timeout := o.cfg.StepTimeout(agentID)

	var nodeID string
	if ownNode {
		id, err := o.tracker.Create(bg, task.Spec{ParentID: r.rootID, Agent: agentID, Action: action, Attempt: attempt, Input: payload})
		if err != nil {
			return fmt.Errorf("create task for %s: %w", step, err)
		}
		if err := o.tracker.Start(bg, id); err != nil {
			return fmt.Errorf("start task for %s: %w", step, err)
		}
		nodeID = id
	}

	start := time.Now()
	err := o.send(bg, r.id, step, agentID, action, payload, out, timeout)
	elapsed := time.Since(start)

	entry := LogEntry{Step: step, Agent: agentID, Status: LogCompleted, DurationMS: elapsed.Milliseconds(), Attempt: attempt}
	if err != nil {
		entry.Status = LogFailed
		entry.Error = err.Error()
	}
	r.record(entry)

	if ownNode {
		var terr error
		if err != nil {
			terr = o.tracker.Fail(bg, nodeID, err, nil)
		} else {
			terr = o.tracker.Complete(bg, nodeID, out)
		}
		if terr != nil {
			slog.Warn("Failed to close step task", "run", r.id, "task", nodeID, "error", terr)
		}
	}
	return err
}

func (o *Orchestrator) send(ctx context.Context, runID, step, agentID, action string, payload, out any, timeout time.Duration) error {
	msg, err := protocol.NewMessage(agent.OrchestratorID, agentID, action, payload, runID)
	if err != nil {
		return err
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The agent may ignore stepCtx, so the deadline is enforced here. A call
	// still running at the deadline finishes in the background and its
	// result is dropped.
	done := make(chan sendResult, 1)
	go func() {
		reply, err := o.sender.Send(stepCtx, msg)
		done <- sendResult{reply: reply, err: err}
	}()

	var res sendResult
	select {
	case res = <-done:
	case <-stepCtx.Done():
		go func() {
			late := <-done
			slog.Warn("Step returned after its timeout, result discarded", "run", runID, "step", step,
				"agent", agentID, "error", late.err)
		}()
		return &agent.StepTimeoutError{Step: step, Agent: agentID, Timeout: timeout, Err: stepCtx.Err()}
	}

	reply, err := res.reply, res.err
	if err != nil {
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			return &agent.StepTimeoutError{Step: step, Agent: agentID, Timeout: timeout, Err: err}
		}
		return err
	}
	if err := reply.Decode(out); err != nil {
		return &agent.AgentExecutionError{Agent: agentID, Action: action, Err: fmt.Errorf("decode reply: %w", err)}
	}
	return nil
}

type sendResult struct {
	reply *protocol.Message
	err   error
}

// retryable reports whether a retry could help. Timeouts, protocol
// rejections, malformed claims and confined document refs fail the same
// way every time.
func retryable(err error) bool {
	var (
		timeout   *agent.StepTimeoutError
		invalid   *agent.ValidationError
		malformed *agent.MalformedClaimError
		execErr   *agent.AgentExecutionError
	)
	if errors.As(err, &timeout) || errors.As(err, &invalid) || errors.As(err, &malformed) ||
		errors.Is(err, rag.ErrOutsideRoot) {
		return false
	}
	return errors.As(err, &execErr)
}

func (o *Orchestrator) backoff(ctx context.Context) bool {
	t := time.NewTimer(o.cfg.RetryBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// beginStatus moves the claim to ai_processing. A claim whose status does
// not allow that keeps it, and the run leaves the status alone.
func (o *Orchestrator) beginStatus(ctx context.Context, r *run, c claim.ClaimInfo) {
	if o.status == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	current, ok, err := o.status.CurrentStatus(bg, c.ClaimNumber)
	if err != nil {
		slog.Warn("Failed to read claim status", "claim_number", c.ClaimNumber, "error", err)
		return
	}
	if !ok {
		current = claim.StatusSubmitted
	}
	r.set(func(r *run) { r.status = current })

	if !claim.CanTransition(current, claim.StatusAIProcessing) {
		slog.Warn("Claim status does not allow AI processing, leaving it unchanged",
			"claim_number", c.ClaimNumber, "status", current)
		return
	}
	if o.recordStatus(bg, r.id, c.ClaimNumber, current, claim.StatusAIProcessing, "ai processing started") {
		r.set(func(r *run) {
			r.status = claim.StatusAIProcessing
			r.statusTracked = true
		})
	}
}

// settleStatus applies the run outcome to a claim this run moved to
// ai_processing.
func (o *Orchestrator) settleStatus(ctx context.Context, r *run, runErr error) {
	var (
		tracked bool
		c       *claim.ClaimInfo
		d       *claim.Decision
		fa      *claim.FraudAssessment
	)
	r.set(func(r *run) { tracked, c, d, fa = r.statusTracked, r.claim, r.decision, r.fraud })
	if !tracked || c == nil {
		return
	}

	target := claim.StatusUnderReview
	reason := "run failed"
	autoApproved := false
	if runErr == nil && d != nil {
		if d.Verdict == claim.VerdictApprove {
			allowed, err := o.gate.Allow(*c, *d, *fa)
			if err != nil {
				slog.Warn("Auto-approval rule failed, routing to manual review", "claim_number", c.ClaimNumber, "error", err)
			}
			autoApproved = allowed && err == nil
		}
		target = claim.StatusForVerdict(d.Verdict, autoApproved)
		reason = fmt.Sprintf("%s by rule %s", d.Verdict, d.Rule)
		if d.Verdict == claim.VerdictApprove && !autoApproved {
			reason += ", held by auto-approval rule"
		}
	}

	if o.recordStatus(ctx, r.id, c.ClaimNumber, claim.StatusAIProcessing, target, reason) {
		r.set(func(r *run) {
			r.status = target
			r.autoApproved = autoApproved
		})
	}
}

func (o *Orchestrator) recordStatus(ctx context.Context, runID, claimNumber string, from, to claim.Status, reason string) bool {
	if err := claim.Transition(from, to); err != nil {
		slog.Warn("Rejected claim status transition", "claim_number", claimNumber, "error", err)
		return false
	}
	err := o.status.RecordStatus(ctx, claim.StatusChange{
		ClaimNumber: claimNumber,
		From:        from,
		To:          to,
		RunID:       runID,
		Reason:      reason,
		At:          o.now().UTC(),
	})
	if err != nil {
		slog.Warn("Failed to record claim status", "claim_number", claimNumber, "to", to, "error", err)
		return false
	}
	return true
}
