// Package runtime assembles a claim processing system from configuration:
// stores, vector index, embedder, agents, router, MCP tools and the
// orchestrator.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent/fraud"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/embedder"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/mcpadapter"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/observability"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/orchestrator"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/protocol"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/rag"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/store"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/task"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/vector"
)

type Runtime struct {
	config        *config.Config
	observability *observability.Manager
	pool          *config.DBPool
	vectors       vector.Provider
	embedder      embedder.Embedder

	registry     *agent.Registry
	router       *protocol.Router
	tools        *mcpadapter.Adapter
	orchestrator *orchestrator.Orchestrator
	indexer      *rag.Indexer
	fraud        *fraud.Detector
}

// Options overrides the component factories. Zero values use the defaults.
type Options struct {
	Vector   VectorFactory
	Embedder EmbedderFactory
	LLM      LLMFactory

	// Observability replaces the manager built from config. It must
	// already be initialized.
	Observability *observability.Manager
}

func (r *Runtime) Config() *config.Config { return r.config }

func (r *Runtime) Registry() *agent.Registry { return r.registry }

func (r *Runtime) Router() *protocol.Router { return r.router }

func (r *Runtime) Tools() *mcpadapter.Adapter { return r.tools }

func (r *Runtime) Orchestrator() *orchestrator.Orchestrator { return r.orchestrator }

func (r *Runtime) Indexer() *rag.Indexer { return r.indexer }

func (r *Runtime) Observability() *observability.Manager { return r.observability }

// MCPServer builds an MCP server publishing the runtime's tools.
func (r *Runtime) MCPServer(version string) *server.MCPServer {
	return mcpadapter.NewMCPServer(r.tools, "claimflow", version)
}

// NewWithConfig builds a runtime with the default factories.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	return New(ctx, cfg, Options{})
}

// New builds every component cfg describes. On error, whatever was
// already opened is closed again.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Vector == nil {
		opts.Vector = DefaultVectorFactory
	}
	if opts.Embedder == nil {
		opts.Embedder = DefaultEmbedderFactory
	}
	if opts.LLM == nil {
		opts.LLM = DefaultLLMFactory
	}

	r := &Runtime{config: cfg, pool: config.NewDBPool()}
	ok := false
	defer func() {
		if !ok {
			if err := r.Close(); err != nil {
				slog.Warn("Failed to clean up runtime after init error", "error", err)
			}
		}
	}()

	r.observability = opts.Observability
	if r.observability == nil {
		r.observability = observability.NewManager(cfg.Observability)
		if err := r.observability.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize observability: %w", err)
		}
	}
	rec := r.observability.Recorder()

	stores, err := store.Open(ctx, &cfg.Database, r.pool)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	var trackerOpts []task.TrackerOption
	if stores.Tasks != nil {
		trackerOpts = append(trackerOpts, task.WithStore(stores.Tasks))
	}

	r.vectors, err = opts.Vector(cfg.Vector)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}
	r.embedder, err = opts.Embedder(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	generator, err := opts.LLM(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm: %w", err)
	}

	indexer, searcher, err := buildRAG(cfg, r.embedder, r.vectors, rec)
	if err != nil {
		return nil, err
	}
	r.indexer = indexer

	agents, err := buildAgents(cfg, searcher, stores.Ledger, generator)
	if err != nil {
		return nil, err
	}
	r.fraud = agents.fraud

	r.registry, err = agent.NewRegistry(agents.agents...)
	if err != nil {
		return nil, fmt.Errorf("failed to register agents: %w", err)
	}
	r.router, err = protocol.NewRouter(r.registry, protocol.WithRecorder(rec))
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}
	r.tools, err = mcpadapter.New(r.router, r.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool adapter: %w", err)
	}

	r.orchestrator, err = orchestrator.New(orchestrator.Options{
		Sender:   r.router,
		Registry: r.registry,
		Tracker:  task.NewTracker(trackerOpts...),
		Ledger:   stores.Ledger,
		Status:   stores.Status,
		Indexer:  r.indexer,
		Config:   cfg.Orchestrator,
		Decision: cfg.Decision,
		Recorder: rec,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Runtime ready",
		"agents", r.registry.Len(),
		"vector", r.vectors.Name(),
		"embedder", cfg.Embedder.Provider,
		"llm", cfg.LLM.Provider,
		"database", databaseLabel(cfg.Database))
	ok = true
	return r, nil
}

func databaseLabel(cfg config.DatabaseConfig) string {
	if !cfg.Enabled() {
		return "memory"
	}
	return cfg.Driver
}

// ApplyConfig takes the parts of a reloaded config that can change while
// running. Today that is the fraud scoring policy; other sections need a
// restart.
func (r *Runtime) ApplyConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := r.fraud.SetPolicy(cfg.Fraud); err != nil {
		return fmt.Errorf("apply fraud policy: %w", err)
	}
	return nil
}

func (r *Runtime) Close() error {
	var errs []error

	if r.vectors != nil {
		if err := r.vectors.Close(); err != nil {
			errs = append(errs, fmt.Errorf("vector store cleanup: %w", err))
		}
	}
	if r.embedder != nil {
		if err := r.embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("embedder cleanup: %w", err))
		}
	}
	if r.pool != nil {
		if err := r.pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database pool cleanup: %w", err))
		}
	}
	if r.observability != nil {
		if err := r.observability.Shutdown(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("observability shutdown: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		slog.Warn("Runtime cleanup error", "error", err)
	}
	return err
}
