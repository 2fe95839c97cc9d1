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

// Package task records the hierarchical task tree of every orchestrator run.
//
// Nodes live in an arena keyed by id; each node stores its parent's arena
// index, so trees are built without pointer cycles. A run owns one root
// node and one child per agent invocation. A node is written only by the
// invocation that owns it and becomes immutable once terminal:
//
//	queued -> running -> completed
//	   \         \-----> failed
//	    \--------------> failed
package task

import (
	"encoding/json"
	"errors"
	"time"
)

// Status is the lifecycle state of a node.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	ErrNotFound      = errors.New("task not found")
	ErrParentFailed  = errors.New("parent task has failed")
	ErrTerminal      = errors.New("task is already terminal")
	ErrInvalidStatus = errors.New("invalid task status transition")
)

// Node is one AgentTask.
type Node struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	RunID    string `json:"run_id"`
	Agent    string `json:"agent"`
	Action   string `json:"action,omitempty"`
	Status   Status `json:"status"`
	// Attempt numbers retries of the same step, starting at 1.
	Attempt int             `json:"attempt,omitempty"`
	Input   json.RawMessage `json:"input,omitempty"`
	Output  json.RawMessage `json:"output,omitempty"`
	Error   string          `json:"error,omitempty"`

	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  time.Time     `json:"started_at,omitempty"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
	Duration   time.Duration `json:"duration_ns,omitempty"`
}

// IsRoot reports whether n has no parent.
func (n Node) IsRoot() bool { return n.ParentID == "" }

// TreeNode is a nested view of a task tree, for display and APIs.
type TreeNode struct {
	Node
	Children []*TreeNode `json:"children,omitempty"`
}

// Walk visits t and its descendants depth-first, parents first.
func (t *TreeNode) Walk(fn func(*TreeNode)) {
	if t == nil {
		return
	}
	fn(t)
	for _, c := range t.Children {
		c.Walk(fn)
	}
}

// Count returns the number of nodes in the tree.
func (t *TreeNode) Count() int {
	n := 0
	t.Walk(func(*TreeNode) { n++ })
	return n
}
