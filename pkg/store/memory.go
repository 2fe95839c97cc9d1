// Package store persists what the orchestrator must remember across runs:
// task trees, the claim ledger used for duplicate detection and claim
// status history. Memory backs zero-config runs; SQL backs postgres,
// mysql and sqlite.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
)

// Memory is an in-process Ledger and StatusLog.
type Memory struct {
	mu      sync.RWMutex
	claims  map[string]claim.LedgerEntry
	history map[string][]claim.StatusChange
}

var (
	_ claim.Ledger    = (*Memory)(nil)
	_ claim.StatusLog = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		claims:  make(map[string]claim.LedgerEntry),
		history: make(map[string][]claim.StatusChange),
	}
}

func (m *Memory) Record(_ context.Context, e claim.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[e.ClaimNumber] = e
	return nil
}

// RecentClaims returns the claimant's entries recorded at or after since,
// oldest first.
func (m *Memory) RecentClaims(_ context.Context, claimantID string, since time.Time) ([]claim.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []claim.LedgerEntry
	for _, e := range m.claims {
		if e.ClaimantID == claimantID && !e.RecordedAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].ClaimNumber < out[j].ClaimNumber
		}
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out, nil
}

func (m *Memory) RecordStatus(_ context.Context, ch claim.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[ch.ClaimNumber] = append(m.history[ch.ClaimNumber], ch)
	return nil
}

func (m *Memory) CurrentStatus(_ context.Context, claimNumber string) (claim.Status, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := m.history[claimNumber]
	if len(h) == 0 {
		return "", false, nil
	}
	return h[len(h)-1].To, true, nil
}

func (m *Memory) StatusHistory(_ context.Context, claimNumber string) ([]claim.StatusChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]claim.StatusChange(nil), m.history[claimNumber]...), nil
}

func (m *Memory) Close() error { return nil }
