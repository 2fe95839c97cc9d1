package claim

import (
	"context"
	"time"
)

// LedgerEntry is a processed claim as remembered for later duplicate and
// history checks.
type LedgerEntry struct {
	ClaimNumber   string    `json:"claim_number"`
	PolicyNumber  string    `json:"policy_number"`
	ClaimantID    string    `json:"claimant_id"`
	AdjusterID    string    `json:"adjuster_id,omitempty"`
	LossType      LossType  `json:"loss_type"`
	LossDate      time.Time `json:"loss_date"`
	ClaimedAmount float64   `json:"claimed_amount"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// EntryFor builds the ledger entry of a parsed claim.
func EntryFor(c ClaimInfo, at time.Time) LedgerEntry {
	return LedgerEntry{
		ClaimNumber:   c.ClaimNumber,
		PolicyNumber:  c.PolicyNumber,
		ClaimantID:    c.ClaimantID,
		AdjusterID:    c.AdjusterID,
		LossType:      c.LossType,
		LossDate:      c.LossDate,
		ClaimedAmount: c.ClaimedAmount,
		RecordedAt:    at,
	}
}

// Ledger stores processed claims. Record upserts by claim number.
type Ledger interface {
	Record(ctx context.Context, e LedgerEntry) error
	RecentClaims(ctx context.Context, claimantID string, since time.Time) ([]LedgerEntry, error)
}

// StatusChange is one row of a claim's status history.
type StatusChange struct {
	ClaimNumber string    `json:"claim_number"`
	From        Status    `json:"from"`
	To          Status    `json:"to"`
	RunID       string    `json:"run_id,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// StatusLog records claim status transitions.
type StatusLog interface {
	RecordStatus(ctx context.Context, ch StatusChange) error
	// CurrentStatus returns the latest status, or false for an unseen claim.
	CurrentStatus(ctx context.Context, claimNumber string) (Status, bool, error)
	StatusHistory(ctx context.Context, claimNumber string) ([]StatusChange, error)
}
