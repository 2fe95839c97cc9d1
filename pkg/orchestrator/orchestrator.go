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

// Package orchestrator drives claim runs through the agent pipeline.
//
// A full run parses the claim, fans out into two branches (policy
// retrieval followed by the recommendation, and fraud detection), joins
// them and asks the decision maker for a verdict:
//
//	created -> parsing -> branching -> recommending -> deciding -> completed
//	                                                             \-> failed
//
// Every agent call goes through the A2A router and is recorded as a node
// under the run's root task. Parser failures end the run with no output;
// a failed branch lets its sibling finish and the run fails with the
// sibling's results kept. A run never falls back to a default decision.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent/decision"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent/docanalyzer"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent/fraud"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent/parser"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent/recommender"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent/retriever"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/observability"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/protocol"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/rag"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/task"
)

// ErrIndexingDisabled is returned by IndexPolicyDocument without an indexer.
var ErrIndexingDisabled = errors.New("policy indexing is not configured")

// pipelineKinds must all be registered; the document analyzer is optional.
var pipelineKinds = []agent.Kind{
	agent.KindClaimParser,
	agent.KindPolicyRetriever,
	agent.KindRecommendationEngine,
	agent.KindFraudDetector,
	agent.KindDecisionMaker,
}

// Subscriber is notified once per finished claim run. It runs on the
// caller's goroutine and must not modify the result.
type Subscriber func(ctx context.Context, res *Result)

// Options wires an Orchestrator. Sender and Registry are required; a nil
// Ledger or Status disables claim history or status tracking.
type Options struct {
	Sender   protocol.Sender
	Registry *agent.Registry
	Tracker  *task.Tracker
	Ledger   claim.Ledger
	Status   claim.StatusLog
	Indexer  *rag.Indexer
	Config   config.OrchestratorConfig
	Decision config.DecisionConfig
	Recorder observability.Recorder
	Now      func() time.Time
}

type Orchestrator struct {
	sender   protocol.Sender
	agents   map[agent.Kind]string
	tracker  *task.Tracker
	ledger   claim.Ledger
	status   claim.StatusLog
	indexer  *rag.Indexer
	cfg      config.OrchestratorConfig
	gate     *Gate
	recorder observability.Recorder
	now      func() time.Time

	mu          sync.RWMutex
	subscribers []Subscriber

	// finished run ids still held by the tracker, oldest first
	retainMu sync.Mutex
	retained []string
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Sender == nil {
		return nil, fmt.Errorf("orchestrator: sender is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("orchestrator: registry is required")
	}

	agents := make(map[agent.Kind]string)
	for _, card := range opts.Registry.CapabilityCards() {
		if _, ok := agents[card.Kind]; !ok {
			agents[card.Kind] = card.AgentID
		}
	}
	for _, k := range pipelineKinds {
		if _, ok := agents[k]; !ok {
			return nil, fmt.Errorf("orchestrator: no %s agent registered", k)
		}
	}

	cfg := opts.Config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	gate, err := NewGate(opts.Decision.AutoApproveRule)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	o := &Orchestrator{
		sender:   opts.Sender,
		agents:   agents,
		tracker:  opts.Tracker,
		ledger:   opts.Ledger,
		status:   opts.Status,
		indexer:  opts.Indexer,
		cfg:      cfg,
		gate:     gate,
		recorder: opts.Recorder,
		now:      opts.Now,
	}
	if o.tracker == nil {
		o.tracker = task.NewTracker()
	}
	if o.recorder == nil {
		o.recorder = observability.NoopRecorder{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// Subscribe registers s for run completion notifications.
func (o *Orchestrator) Subscribe(s Subscriber) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subscribers = append(o.subscribers, s)
}

// Tracker exposes the task tracker runs are recorded in.
func (o *Orchestrator) Tracker() *task.Tracker { return o.tracker }

// RunTree returns the task tree of a run.
func (o *Orchestrator) RunTree(ctx context.Context, runID string) (*task.TreeNode, error) {
	return o.tracker.RunTree(ctx, runID)
}

// ProcessClaim runs payload, a raw claim, through the pipeline variant
// ptype. The result is returned for failed runs too, together with the
// error that failed them, so the processing log is always available.
func (o *Orchestrator) ProcessClaim(ctx context.Context, payload json.RawMessage, ptype ProcessingType) (*Result, error) {
	ptype, err := ParseProcessingType(string(ptype))
	if err != nil {
		return nil, err
	}

	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	r := newRun(ptype, o.now().UTC())
	ctx, span := observability.StartSpan(ctx, "claim run "+string(ptype),
		observability.AttrRunID, r.id,
		observability.AttrProcessingType, string(ptype),
	)

	if err := o.openRoot(ctx, r, string(ptype), rootInput(payload)); err != nil {
		observability.EndSpan(span, err)
		return nil, err
	}

	runErr := o.execute(ctx, r, payload)
	res := o.finish(ctx, r, runErr)
	observability.EndSpan(span, runErr)
	return res, runErr
}

func rootInput(payload json.RawMessage) any {
	if !json.Valid(payload) {
		return nil
	}
	return payload
}

func (o *Orchestrator) openRoot(ctx context.Context, r *run, action string, input any) error {
	rootID, err := o.tracker.Create(ctx, task.Spec{RunID: r.id, Agent: agent.OrchestratorID, Action: action, Input: input})
	if err != nil {
		return fmt.Errorf("create root task: %w", err)
	}
	if err := o.tracker.Start(ctx, rootID); err != nil {
		return fmt.Errorf("start root task: %w", err)
	}
	r.rootID = rootID
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run, payload json.RawMessage) error {
	if err := r.boundary(ctx, StateParsing); err != nil {
		return err
	}
	var c claim.ClaimInfo
	if err := o.invoke(ctx, r, StepParse, agent.KindClaimParser, parser.ActionParse, payload, &c, false); err != nil {
		return err
	}
	r.set(func(r *run) { r.claim = &c })
	if r.ptype.decision() {
		o.beginStatus(ctx, r, c)
	}

	if err := r.boundary(ctx, StateBranching); err != nil {
		return err
	}
	if err := o.branch(ctx, r, c); err != nil {
		return err
	}
	if !r.ptype.decision() {
		return nil
	}

	if err := r.boundary(ctx, StateDeciding); err != nil {
		return err
	}
	var req decision.Request
	r.set(func(r *run) {
		req = decision.Request{Recommendation: *r.recommendation, Fraud: *r.fraud}
	})
	var d claim.Decision
	if err := o.invoke(ctx, r, StepDecision, agent.KindDecisionMaker, decision.ActionDecide, req, &d, true); err != nil {
		return err
	}
	r.set(func(r *run) { r.decision = &d })
	return nil
}

// branch runs the enabled branches concurrently and waits for both. A
// failed branch does not stop its sibling.
func (o *Orchestrator) branch(ctx context.Context, r *run, c claim.ClaimInfo) error {
	var g errgroup.Group
	var retrievalErr, fraudErr error
	if r.ptype.retrieval() {
		r.setBranch(BranchRetrieval, BranchRunning)
		g.Go(func() error {
			retrievalErr = o.retrievalBranch(ctx, r, c)
			return nil
		})
	}
	if r.ptype.fraud() {
		r.setBranch(BranchFraud, BranchRunning)
		g.Go(func() error {
			fraudErr = o.fraudBranch(ctx, r, c)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(retrievalErr, fraudErr)
}

func (o *Orchestrator) retrievalBranch(ctx context.Context, r *run, c claim.ClaimInfo) error {
	var pc claim.PolicyContext
	err := o.invoke(ctx, r, StepRetrieval, agent.KindPolicyRetriever, retriever.ActionRetrieve,
		retriever.Request{Claim: c}, &pc, true)
	if err != nil {
		r.setBranch(BranchRetrieval, BranchFailed)
		return err
	}
	r.set(func(r *run) {
		r.policyContext = &pc
		r.branches[BranchRetrieval] = BranchDone
	})
	if !r.ptype.recommendation() {
		return nil
	}

	// The recommendation only needs retrieval, so it does not wait for fraud.
	if err := r.boundary(ctx, StateRecommending); err != nil {
		return err
	}
	var rec claim.Recommendation
	err = o.invoke(ctx, r, StepRecommendation, agent.KindRecommendationEngine, recommender.ActionRecommend,
		recommender.Request{Claim: c, Context: pc}, &rec, true)
	if err != nil {
		r.setBranch(BranchRetrieval, BranchFailed)
		return err
	}
	r.set(func(r *run) { r.recommendation = &rec })
	return nil
}

func (o *Orchestrator) fraudBranch(ctx context.Context, r *run, c claim.ClaimInfo) error {
	var fa claim.FraudAssessment
	if err := o.invoke(ctx, r, StepFraud, agent.KindFraudDetector, fraud.ActionAssess, fraud.Request{Claim: c}, &fa, true); err != nil {
		r.setBranch(BranchFraud, BranchFailed)
		return err
	}
	r.set(func(r *run) {
		r.fraud = &fa
		r.branches[BranchFraud] = BranchDone
	})
	return nil
}

// finish closes the root task, applies claim bookkeeping and builds the
// result. It runs after every agent call of the run has returned.
func (o *Orchestrator) finish(ctx context.Context, r *run, runErr error) *Result {
	bg := context.WithoutCancel(ctx)

	final := StateCompleted
	if runErr != nil {
		final = StateFailed
	}
	r.enter(final)

	if r.ptype.decision() {
		o.settleStatus(bg, r, runErr)
	}

	if !o.tracker.DescendantsTerminal(r.rootID) {
		slog.Error("Run finished with open tasks", "run", r.id)
	}
	summary := r.snapshot()
	if runErr != nil {
		if err := o.tracker.Fail(bg, r.rootID, runErr, rootSummary(summary)); err != nil {
			slog.Warn("Failed to close root task", "run", r.id, "error", err)
		}
	} else if err := o.tracker.Complete(bg, r.rootID, rootSummary(summary)); err != nil {
		slog.Warn("Failed to close root task", "run", r.id, "error", err)
	}

	if runErr == nil && o.ledger != nil && summary.Claim != nil {
		if err := o.ledger.Record(bg, claim.EntryFor(*summary.Claim, o.now().UTC())); err != nil {
			slog.Warn("Failed to record claim in ledger", "claim_number", summary.Claim.ClaimNumber, "error", err)
		}
	}

	res := r.snapshot()
	res.FinishedAt = o.now().UTC()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)
	if runErr != nil {
		res.Error = runErr.Error()
	}
	o.recorder.RecordRun(bg, string(r.ptype), string(res.State), res.Duration)

	attrs := []any{"run", r.id, "processing_type", r.ptype, "state", res.State, "duration", res.Duration}
	if res.Claim != nil {
		attrs = append(attrs, "claim_number", res.Claim.ClaimNumber)
	}
	if res.Decision != nil {
		attrs = append(attrs, "verdict", res.Decision.Verdict)
	}
	if runErr != nil {
		slog.Warn("Claim run failed", append(attrs, "error", runErr)...)
	} else {
		slog.Info("Claim run completed", attrs...)
	}

	o.mu.RLock()
	subs := append([]Subscriber(nil), o.subscribers...)
	o.mu.RUnlock()
	for _, s := range subs {
		s(bg, res)
	}
	o.retain(r.id)
	return res
}

// retain records a finished run and drops the oldest finished runs from
// the tracker past the retention limit.
func (o *Orchestrator) retain(runID string) {
	limit := o.cfg.RetainedRuns
	if limit < 0 {
		return
	}
	o.retainMu.Lock()
	o.retained = append(o.retained, runID)
	var evict []string
	if n := len(o.retained) - limit; n > 0 {
		evict = append(evict, o.retained[:n]...)
		o.retained = append([]string(nil), o.retained[n:]...)
	}
	o.retainMu.Unlock()

	for _, id := range evict {
		o.tracker.Forget(id)
	}
}

type runSummary struct {
	State    State           `json:"state"`
	Claim    string          `json:"claim_number,omitempty"`
	Decision *claim.Decision `json:"decision,omitempty"`
	Severity claim.Severity  `json:"severity,omitempty"`
}

func rootSummary(res *Result) runSummary {
	s := runSummary{State: res.State, Decision: res.Decision}
	if res.Claim != nil {
		s.Claim = res.Claim.ClaimNumber
	}
	if res.Fraud != nil {
		s.Severity = res.Fraud.Severity
	}
	return s
}

// AnalyzeDocument runs the document analyzer under a root task of its own.
func (o *Orchestrator) AnalyzeDocument(ctx context.Context, ref, documentType string) (*claim.ExtractedFields, error) {
	if _, ok := o.agents[agent.KindDocumentAnalyzer]; !ok {
		return nil, fmt.Errorf("%w: no %s registered", agent.ErrUnknownAgent, agent.KindDocumentAnalyzer)
	}

	req := docanalyzer.Request{DocumentRef: ref, DocumentType: documentType}
	r := newRun("", o.now().UTC())
	if err := o.openRoot(ctx, r, "analyze_document", req); err != nil {
		return nil, err
	}

	var fields claim.ExtractedFields
	err := o.invoke(ctx, r, StepAnalyze, agent.KindDocumentAnalyzer, docanalyzer.ActionAnalyze, req, &fields, true)

	bg := context.WithoutCancel(ctx)
	defer o.retain(r.id)
	if err != nil {
		if ferr := o.tracker.Fail(bg, r.rootID, err, nil); ferr != nil {
			slog.Warn("Failed to close root task", "run", r.id, "error", ferr)
		}
		return nil, err
	}
	if cerr := o.tracker.Complete(bg, r.rootID, fields); cerr != nil {
		slog.Warn("Failed to close root task", "run", r.id, "error", cerr)
	}
	slog.Info("Document analyzed", "run", r.id, "document", ref, "extractor", fields.Extractor,
		"amounts", len(fields.Amounts), "dates", len(fields.Dates), "parties", len(fields.Parties))
	return &fields, nil
}

// IndexPolicyDocument chunks and indexes a policy document for retrieval.
func (o *Orchestrator) IndexPolicyDocument(ctx context.Context, ref, policyNumber string) (*rag.IndexResult, error) {
	if o.indexer == nil {
		return nil, ErrIndexingDisabled
	}
	ctx, span := observability.StartSpan(ctx, "index policy document")
	res, err := o.indexer.IndexFile(ctx, ref, policyNumber)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", ref, err)
	}
	slog.Info("Policy document indexed", "document", res.Source, "policy_number", policyNumber, "chunks", res.ChunkCount)
	return res, nil
}
