package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu    sync.Mutex
	saved map[string]Node
	order []string
}

func newMemStore() *memStore { return &memStore{saved: map[string]Node{}} }

func (m *memStore) SaveTask(_ context.Context, n Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.saved[n.ID]; !ok {
		m.order = append(m.order, n.ID)
	}
	m.saved[n.ID] = n
	return nil
}

func (m *memStore) LoadRun(_ context.Context, runID string) ([]Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Node
	for _, id := range m.order {
		if n := m.saved[id]; n.RunID == runID {
			out = append(out, n)
		}
	}
	return out, nil
}

func TestTrackerLifecycle(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))

	root, err := tr.Create(ctx, Spec{RunID: "run-1", Agent: "orchestrator", Action: "full"})
	require.NoError(t, err)
	require.NoError(t, tr.Start(ctx, root))

	child, err := tr.Create(ctx, Spec{ParentID: root, Agent: "fraud_detector", Action: "assess", Input: map[string]any{"claim_number": "CLM-2024-0001"}})
	require.NoError(t, err)

	n, ok := tr.Get(child)
	require.True(t, ok)
	assert.Equal(t, StatusQueued, n.Status)
	assert.Equal(t, "run-1", n.RunID, "children inherit the run id")
	assert.Equal(t, 1, n.Attempt)
	assert.JSONEq(t, `{"claim_number":"CLM-2024-0001"}`, string(n.Input))

	require.NoError(t, tr.Start(ctx, child))
	require.NoError(t, tr.Complete(ctx, child, map[string]any{"score": 0.1}))

	n, _ = tr.Get(child)
	assert.Equal(t, StatusCompleted, n.Status)
	assert.Equal(t, time.Second, n.Duration)
	assert.True(t, tr.DescendantsTerminal(root))
	assert.False(t, tr.AllTerminal(root))

	err = tr.Complete(ctx, child, nil)
	assert.ErrorIs(t, err, ErrTerminal, "terminal nodes are immutable")
	err = tr.Fail(ctx, child, errors.New("late"), nil)
	assert.ErrorIs(t, err, ErrTerminal)

	require.NoError(t, tr.Complete(ctx, root, nil))
	assert.True(t, tr.AllTerminal(root))

	tree, err := tr.RunTree(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, tree.Count())
	assert.Equal(t, root, tree.ID)
}

func TestTrackerRejectsChildOfFailedParent(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker()

	root, err := tr.Create(ctx, Spec{RunID: "run-2", Agent: "orchestrator"})
	require.NoError(t, err)
	require.NoError(t, tr.Start(ctx, root))
	require.NoError(t, tr.Fail(ctx, root, errors.New("cancelled"), nil))

	_, err = tr.Create(ctx, Spec{ParentID: root, Agent: "decision_maker"})
	assert.ErrorIs(t, err, ErrParentFailed)

	_, err = tr.Create(ctx, Spec{ParentID: "nope", Agent: "decision_maker"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTrackerInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker()
	id, err := tr.Create(ctx, Spec{RunID: "r", Agent: "orchestrator"})
	require.NoError(t, err)

	assert.ErrorIs(t, tr.Complete(ctx, id, nil), ErrInvalidStatus, "queued cannot complete")
	require.NoError(t, tr.Start(ctx, id))
	assert.ErrorIs(t, tr.Start(ctx, id), ErrInvalidStatus)
	assert.ErrorIs(t, tr.Start(ctx, "missing"), ErrNotFound)
}

func TestTrackerConcurrentBranches(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker()
	root, err := tr.Create(ctx, Spec{RunID: "run-3", Agent: "orchestrator"})
	require.NoError(t, err)
	require.NoError(t, tr.Start(ctx, root))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := tr.Create(ctx, Spec{ParentID: root, Agent: "policy_retriever"})
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, tr.Start(ctx, id))
			if i%2 == 0 {
				assert.NoError(t, tr.Complete(ctx, id, i))
			} else {
				assert.NoError(t, tr.Fail(ctx, id, errors.New("boom"), nil))
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, tr.Children(root), 32)
	assert.True(t, tr.DescendantsTerminal(root))
}

func TestTrackerStoreFallback(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	tr := NewTracker(WithStore(store))

	root, err := tr.Create(ctx, Spec{RunID: "run-4", Agent: "orchestrator"})
	require.NoError(t, err)
	require.NoError(t, tr.Start(ctx, root))
	child, err := tr.Create(ctx, Spec{ParentID: root, Agent: "claim_parser", Action: "parse"})
	require.NoError(t, err)
	require.NoError(t, tr.Start(ctx, child))
	require.NoError(t, tr.Fail(ctx, child, errors.New("malformed claim"), nil))
	require.NoError(t, tr.Fail(ctx, root, errors.New("malformed claim"), nil))

	tr.Forget("run-4")
	_, ok := tr.Get(root)
	assert.False(t, ok)

	tree, err := tr.RunTree(ctx, "run-4")
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, StatusFailed, tree.Children[0].Status)
	assert.Equal(t, "malformed claim", tree.Children[0].Error)
}

func TestAssembleRejectsBrokenTrees(t *testing.T) {
	_, err := Assemble(nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Assemble([]Node{{ID: "a"}, {ID: "b"}})
	assert.Error(t, err)

	_, err = Assemble([]Node{{ID: "a", ParentID: "x"}})
	assert.Error(t, err)
}
