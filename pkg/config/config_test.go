package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config/provider"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "chromem", cfg.Vector.Type)
	assert.Equal(t, "hash", cfg.Embedder.Provider)
	assert.Equal(t, "none", cfg.LLM.Provider)
	assert.False(t, cfg.Database.Enabled())
	assert.Equal(t, `^CLM-\d{4}-\d{3,10}$`, cfg.Parser.ClaimNumberPattern)
	assert.Equal(t, 30*time.Second, cfg.Orchestrator.DefaultStepTimeout)
	assert.Equal(t, DefaultRetainedRuns, cfg.Orchestrator.RetainedRuns)
	assert.InDelta(t, 0.35, cfg.RAG.SimilarityFloor, 1e-9)
	assert.InDelta(t, 0.6, cfg.Fraud.Severity.High, 1e-9)
	assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
}

func TestLoadConfigBytes(t *testing.T) {
	t.Setenv("CLAIMFLOW_TEST_PORT", "9191")
	t.Setenv("CLAIMFLOW_TEST_KEY", "secret")

	cfg, err := LoadConfigBytes([]byte(`
server:
  port: ${CLAIMFLOW_TEST_PORT}
embedder:
  provider: gemini
  api_key: ${CLAIMFLOW_TEST_KEY}
vector:
  collection: ${CLAIMFLOW_MISSING:-fallback}
orchestrator:
  default_step_timeout: 5s
  step_timeouts:
    policy_retriever: 2s
  retries:
    policy_retriever: 2
fraud:
  severity:
    high: 0.7
  disabled: late_reporting
  rings:
    - name: north
      members: [CL-1, CL-2]
decision:
  auto_approve_rule: "fraud_score < 0.2"
`))
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Embedder.APIKey)
	assert.Equal(t, "text-embedding-004", cfg.Embedder.Model)
	assert.Equal(t, "fallback", cfg.Vector.Collection)
	assert.Equal(t, 2*time.Second, cfg.Orchestrator.StepTimeout("policy_retriever"))
	assert.Equal(t, 5*time.Second, cfg.Orchestrator.StepTimeout("decision_maker"))
	assert.Equal(t, 2, cfg.Orchestrator.Retries["policy_retriever"])
	assert.InDelta(t, 0.7, cfg.Fraud.Severity.High, 1e-9)
	assert.InDelta(t, 0.3, cfg.Fraud.Severity.Medium, 1e-9, "unset bands keep defaults")
	assert.True(t, cfg.Fraud.IsDisabled(IndicatorLateReporting))
	assert.False(t, cfg.Fraud.IsDisabled(IndicatorFraudRing))
	require.Len(t, cfg.Fraud.Rings, 1)
	assert.Equal(t, []string{"CL-1", "CL-2"}, cfg.Fraud.Rings[0].Members)
	assert.Equal(t, "fraud_score < 0.2", cfg.Decision.AutoApproveRule)
}

func TestLoadConfigBytesEmpty(t *testing.T) {
	cfg, err := LoadConfigBytes(nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad vector type", "vector:\n  type: weaviate\n", "vector"},
		{"gemini embedder without key", "embedder:\n  provider: gemini\n", "api_key"},
		{"bad claim pattern", "parser:\n  claim_number_pattern: \"([\"\n", "claim_number_pattern"},
		{"bands out of order", "fraud:\n  severity:\n    low: 0.5\n    medium: 0.4\n", "severity"},
		{"unknown indicator", "fraud:\n  disabled: [astrology]\n", "astrology"},
		{"unknown baseline", "fraud:\n  baselines:\n    spaceship: 10\n", "spaceship"},
		{"negative retries", "orchestrator:\n  retries:\n    claim_parser: -1\n", "retries"},
		{"bad run retention", "orchestrator:\n  retained_runs: -5\n", "retained_runs"},
		{"database without name", "database:\n  driver: sqlite\n", "database"},
		{"too many queries", "rag:\n  max_queries: 9\n", "max_queries"},
		{"bad log level", "logging:\n  level: loud\n", "level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	tests := []struct {
		cfg  DatabaseConfig
		want string
	}{
		{DatabaseConfig{Driver: "sqlite", Database: "claims.db"}, "claims.db"},
		{DatabaseConfig{Driver: "postgres", Host: "db", Database: "claims", Username: "u"},
			"host=db port=5432 dbname=claims user=u sslmode=disable"},
		{DatabaseConfig{Driver: "mysql", Host: "db", Database: "claims", Username: "u", Password: "p"},
			"u:p@tcp(db:3306)/claims?parseTime=true"},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.Driver, func(t *testing.T) {
			tt.cfg.SetDefaults()
			require.NoError(t, tt.cfg.Validate())
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
	assert.Equal(t, "sqlite3", (&DatabaseConfig{Driver: "sqlite"}).DriverName())
	assert.Equal(t, "sqlite", (&DatabaseConfig{Driver: "sqlite3"}).Dialect())
}

func TestDBPoolSharesConnections(t *testing.T) {
	pool := NewDBPool()
	defer pool.Close()

	cfg := &DatabaseConfig{Driver: "sqlite", Database: ":memory:"}
	a, err := pool.Get(context.Background(), cfg)
	require.NoError(t, err)
	b, err := pool.Get(context.Background(), cfg)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestLoaderWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claimflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rag:\n  top_k: 3\n"), 0o600))

	reloaded := make(chan *Config, 4)
	cfg, loader, err := LoadConfigFile(context.Background(), path, WithOnChange(func(c *Config) {
		reloaded <- c
	}))
	require.NoError(t, err)
	defer loader.Close()
	assert.Equal(t, 3, cfg.RAG.TopK)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loader.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("rag:\n  top_k: 7\n"), 0o600))

	select {
	case next := <-reloaded:
		assert.Equal(t, 7, next.RAG.TopK)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestStaticProviderDoesNotWatch(t *testing.T) {
	loader := NewLoader(provider.NewStaticProvider([]byte("server:\n  port: 9000\n")))
	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, loader.Watch(ctx), context.DeadlineExceeded)
}
