package store

import (
	"context"
	"fmt"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/task"
)

// Set is the persistence the orchestrator is wired with. Tasks is nil
// for the in-memory backend, where the tracker alone holds task trees.
type Set struct {
	Tasks  task.Store
	Ledger claim.Ledger
	Status claim.StatusLog
}

// Open builds the configured backend. A disabled database yields Memory.
func Open(ctx context.Context, cfg *config.DatabaseConfig, pool *config.DBPool) (Set, error) {
	if cfg == nil || !cfg.Enabled() {
		mem := NewMemory()
		return Set{Ledger: mem, Status: mem}, nil
	}
	if pool == nil {
		return Set{}, fmt.Errorf("DBPool is required for the %s backend", cfg.Driver)
	}
	db, err := pool.Get(ctx, cfg)
	if err != nil {
		return Set{}, err
	}
	s, err := NewSQL(ctx, db, cfg.Dialect())
	if err != nil {
		return Set{}, err
	}
	return Set{Tasks: s, Ledger: s, Status: s}, nil
}
