// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists nodes. Implementations receive a full snapshot on every
// transition and must upsert by id.
type Store interface {
	SaveTask(ctx context.Context, n Node) error
	LoadRun(ctx context.Context, runID string) ([]Node, error)
}

// Spec describes a node to create.
type Spec struct {
	ParentID string
	RunID    string
	Agent    string
	Action   string
	Attempt  int
	Input    any
}

type entry struct {
	mu     sync.Mutex
	node   Node
	parent int
}

// Tracker is the in-memory arena of task nodes. It is safe for concurrent
// use: the arena is guarded by one lock, each node by its own.
type Tracker struct {
	mu       sync.RWMutex
	arena    []*entry
	index    map[string]int
	children map[int][]int
	runs     map[string]int

	store Store
	now   func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithStore mirrors every transition into s.
func WithStore(s Store) TrackerOption {
	return func(t *Tracker) { t.store = s }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		index:    make(map[string]int),
		children: make(map[int][]int),
		runs:     make(map[string]int),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Create adds a queued node. A child is only created under an existing
// parent that has not failed; a root (empty ParentID) also registers its
// run id.
func (t *Tracker) Create(ctx context.Context, spec Spec) (string, error) {
	input, err := snapshot(spec.Input)
	if err != nil {
		return "", fmt.Errorf("snapshot input for %s: %w", spec.Agent, err)
	}

	t.mu.Lock()
	parent := -1
	runID := spec.RunID
	if spec.ParentID != "" {
		idx, ok := t.index[spec.ParentID]
		if !ok {
			t.mu.Unlock()
			return "", fmt.Errorf("%w: parent %s", ErrNotFound, spec.ParentID)
		}
		p := t.arena[idx]
		p.mu.Lock()
		failed := p.node.Status == StatusFailed
		if runID == "" {
			runID = p.node.RunID
		}
		p.mu.Unlock()
		if failed {
			t.mu.Unlock()
			return "", fmt.Errorf("%w: %s", ErrParentFailed, spec.ParentID)
		}
		parent = idx
	}

	attempt := spec.Attempt
	if attempt == 0 {
		attempt = 1
	}
	e := &entry{
		parent: parent,
		node: Node{
			ID:        uuid.NewString(),
			ParentID:  spec.ParentID,
			RunID:     runID,
			Agent:     spec.Agent,
			Action:    spec.Action,
			Status:    StatusQueued,
			Attempt:   attempt,
			Input:     input,
			CreatedAt: t.now().UTC(),
		},
	}
	idx := len(t.arena)
	t.arena = append(t.arena, e)
	t.index[e.node.ID] = idx
	if parent >= 0 {
		t.children[parent] = append(t.children[parent], idx)
	} else if runID != "" {
		t.runs[runID] = idx
	}
	n := e.node
	t.mu.Unlock()

	t.persist(ctx, n)
	return n.ID, nil
}

// Start moves a queued node to running.
func (t *Tracker) Start(ctx context.Context, id string) error {
	return t.update(ctx, id, func(n *Node) error {
		if n.Status != StatusQueued {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, n.Status, StatusRunning)
		}
		n.Status = StatusRunning
		n.StartedAt = t.now().UTC()
		return nil
	})
}

// Complete records the output snapshot and marks the node completed.
func (t *Tracker) Complete(ctx context.Context, id string, output any) error {
	out, err := snapshot(output)
	if err != nil {
		return fmt.Errorf("snapshot output for task %s: %w", id, err)
	}
	return t.update(ctx, id, func(n *Node) error {
		if n.Status != StatusRunning {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, n.Status, StatusCompleted)
		}
		n.Output = out
		t.finish(n, StatusCompleted)
		return nil
	})
}

// Fail marks the node failed with cause. An optional partial output is
// kept for inspection.
func (t *Tracker) Fail(ctx context.Context, id string, cause error, partial any) error {
	out, err := snapshot(partial)
	if err != nil {
		return fmt.Errorf("snapshot output for task %s: %w", id, err)
	}
	return t.update(ctx, id, func(n *Node) error {
		if cause != nil {
			n.Error = cause.Error()
		}
		if len(out) > 0 {
			n.Output = out
		}
		t.finish(n, StatusFailed)
		return nil
	})
}

func (t *Tracker) finish(n *Node, status Status) {
	now := t.now().UTC()
	n.Status = status
	n.FinishedAt = now
	if !n.StartedAt.IsZero() {
		n.Duration = now.Sub(n.StartedAt)
	}
}

func (t *Tracker) update(ctx context.Context, id string, fn func(*Node) error) error {
	t.mu.RLock()
	idx, ok := t.index[id]
	var e *entry
	if ok {
		e = t.arena[idx]
	}
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.mu.Lock()
	if e.node.Status.IsTerminal() {
		status := e.node.Status
		e.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrTerminal, id, status)
	}
	if err := fn(&e.node); err != nil {
		e.mu.Unlock()
		return err
	}
	n := e.node
	e.mu.Unlock()

	t.persist(ctx, n)
	return nil
}

func (t *Tracker) persist(ctx context.Context, n Node) {
	if t.store == nil {
		return
	}
	// The in-memory tree stays authoritative for a live run.
	if err := t.store.SaveTask(ctx, n); err != nil {
		slog.Warn("Failed to persist task", "task", n.ID, "run", n.RunID, "status", n.Status, "error", err)
	}
}

// Get returns a snapshot of one node.
func (t *Tracker) Get(id string) (Node, bool) {
	t.mu.RLock()
	idx, ok := t.index[id]
	var e *entry
	if ok {
		e = t.arena[idx]
	}
	t.mu.RUnlock()
	if !ok {
		return Node{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.node, true
}

// Children returns the direct children of id in creation order.
func (t *Tracker) Children(id string) []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, ok := t.index[id]
	if !ok {
		return nil
	}
	out := make([]Node, 0, len(t.children[idx]))
	for _, c := range t.children[idx] {
		e := t.arena[c]
		e.mu.Lock()
		out = append(out, e.node)
		e.mu.Unlock()
	}
	return out
}

// Tree returns the nested tree under rootID.
func (t *Tracker) Tree(rootID string) (*TreeNode, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, ok := t.index[rootID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rootID)
	}
	return t.build(idx), nil
}

func (t *Tracker) build(idx int) *TreeNode {
	e := t.arena[idx]
	e.mu.Lock()
	tn := &TreeNode{Node: e.node}
	e.mu.Unlock()
	for _, c := range t.children[idx] {
		tn.Children = append(tn.Children, t.build(c))
	}
	return tn
}

// AllTerminal reports whether every node under rootID, root included, is
// completed or failed.
func (t *Tracker) AllTerminal(rootID string) bool {
	tree, err := t.Tree(rootID)
	if err != nil {
		return false
	}
	done := true
	tree.Walk(func(n *TreeNode) {
		if !n.Status.IsTerminal() {
			done = false
		}
	})
	return done
}

// DescendantsTerminal is AllTerminal without the root, used before a run
// closes its own root node.
func (t *Tracker) DescendantsTerminal(rootID string) bool {
	tree, err := t.Tree(rootID)
	if err != nil {
		return false
	}
	done := true
	for _, c := range tree.Children {
		c.Walk(func(n *TreeNode) {
			if !n.Status.IsTerminal() {
				done = false
			}
		})
	}
	return done
}

// RunTree returns the tree of a run, falling back to the store for runs
// this process no longer holds.
func (t *Tracker) RunTree(ctx context.Context, runID string) (*TreeNode, error) {
	t.mu.RLock()
	if idx, ok := t.runs[runID]; ok {
		defer t.mu.RUnlock()
		return t.build(idx), nil
	}
	t.mu.RUnlock()
	if t.store == nil {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	nodes, err := t.store.LoadRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return Assemble(nodes)
}

// Forget drops a run from memory. Persisted nodes are kept.
func (t *Tracker) Forget(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	root, ok := t.runs[runID]
	if !ok {
		return
	}
	var drop func(int)
	drop = func(idx int) {
		for _, c := range t.children[idx] {
			drop(c)
		}
		delete(t.children, idx)
		delete(t.index, t.arena[idx].node.ID)
		// The slot stays so other indexes remain valid.
		t.arena[idx] = &entry{parent: -1, node: Node{Status: StatusFailed}}
	}
	drop(root)
	delete(t.runs, runID)
}

// Assemble nests a flat node list. It requires exactly one root.
func Assemble(nodes []Node) (*TreeNode, error) {
	if len(nodes) == 0 {
		return nil, ErrNotFound
	}
	byID := make(map[string]*TreeNode, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = &TreeNode{Node: nodes[i]}
	}
	var root *TreeNode
	for i := range nodes {
		tn := byID[nodes[i].ID]
		if tn.IsRoot() {
			if root != nil {
				return nil, fmt.Errorf("run has more than one root: %s, %s", root.ID, tn.ID)
			}
			root = tn
			continue
		}
		parent, ok := byID[tn.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: parent %s of %s", ErrNotFound, tn.ParentID, tn.ID)
		}
		parent.Children = append(parent.Children, tn)
	}
	if root == nil {
		return nil, fmt.Errorf("run has no root task")
	}
	return root, nil
}

func snapshot(v any) (json.RawMessage, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return append(json.RawMessage(nil), x...), nil
	default:
		return json.Marshal(x)
	}
}
