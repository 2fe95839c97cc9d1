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

// Package config loads the claimflow configuration.
//
// Configuration is read from YAML through a provider, environment
// references (${VAR} and ${VAR:-default}) are expanded, the result is
// decoded into Config, defaults are applied and the whole tree validated.
// Every section has working defaults, so an empty file is a valid config.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/observability"
)

// Config is the root configuration.
type Config struct {
	Version       string               `yaml:"version,omitempty"`
	Logging       LoggingConfig        `yaml:"logging,omitempty"`
	Server        ServerConfig         `yaml:"server,omitempty"`
	Database      DatabaseConfig       `yaml:"database,omitempty"`
	Vector        VectorConfig         `yaml:"vector,omitempty"`
	Embedder      EmbedderConfig       `yaml:"embedder,omitempty"`
	LLM           LLMConfig            `yaml:"llm,omitempty"`
	RAG           RAGConfig            `yaml:"rag,omitempty"`
	Parser        ParserConfig         `yaml:"parser,omitempty"`
	Fraud         FraudConfig          `yaml:"fraud,omitempty"`
	Orchestrator  OrchestratorConfig   `yaml:"orchestrator,omitempty"`
	Decision      DecisionConfig       `yaml:"decision,omitempty"`
	Observability observability.Config `yaml:"observability,omitempty"`
}

// Default returns a fully defaulted zero-config setup: in-memory stores,
// chromem vector index and the local hash embedder.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills every unset value.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	c.Logging.SetDefaults()
	c.Server.SetDefaults()
	c.Database.SetDefaults()
	c.Vector.SetDefaults()
	c.Embedder.SetDefaults()
	c.LLM.SetDefaults()
	c.RAG.SetDefaults()
	c.Parser.SetDefaults()
	c.Fraud.SetDefaults()
	c.Orchestrator.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks every section and reports all failures together.
func (c *Config) Validate() error {
	var errs []error
	check := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}
	check("logging", c.Logging.Validate())
	check("server", c.Server.Validate())
	if c.Database.Enabled() {
		check("database", c.Database.Validate())
	}
	check("vector", c.Vector.Validate())
	check("embedder", c.Embedder.Validate())
	check("llm", c.LLM.Validate())
	check("rag", c.RAG.Validate())
	check("parser", c.Parser.Validate())
	check("fraud", c.Fraud.Validate())
	check("orchestrator", c.Orchestrator.Validate())
	check("observability", c.Observability.Validate())
	return errors.Join(errs...)
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
	File   string `yaml:"file,omitempty"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid level %q", c.Level)
	}
	switch c.Format {
	case "simple", "verbose", "json":
	default:
		return fmt.Errorf("invalid format %q (valid: simple, verbose, json)", c.Format)
	}
	return nil
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
	// BaseURL is advertised in agent cards. Defaults to http://host:port.
	BaseURL         string        `yaml:"base_url,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.BaseURL == "" {
		host := c.Host
		if host == "0.0.0.0" {
			host = "localhost"
		}
		c.BaseURL = fmt.Sprintf("http://%s:%d", host, c.Port)
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}

// Address returns host:port.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// VectorConfig selects the vector index backing policy retrieval.
type VectorConfig struct {
	// Type is "chromem" (embedded, default), "qdrant" or "pinecone".
	Type       string `yaml:"type,omitempty"`
	Collection string `yaml:"collection,omitempty"`

	// chromem
	PersistPath string `yaml:"persist_path,omitempty"`
	Compress    bool   `yaml:"compress,omitempty"`

	// qdrant
	Host   string `yaml:"host,omitempty"`
	Port   int    `yaml:"port,omitempty"`
	UseTLS bool   `yaml:"use_tls,omitempty"`

	// qdrant and pinecone
	APIKey string `yaml:"api_key,omitempty"`

	// pinecone: collections are namespaces of IndexName. Endpoint
	// overrides the control plane URL.
	IndexName string `yaml:"index_name,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
}

func (c *VectorConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "chromem"
	}
	if c.Collection == "" {
		c.Collection = "policy_documents"
	}
	if c.Type == "qdrant" {
		if c.Host == "" {
			c.Host = "localhost"
		}
		if c.Port == 0 {
			c.Port = 6334
		}
	}
}

func (c *VectorConfig) Validate() error {
	switch c.Type {
	case "chromem", "qdrant":
	case "pinecone":
		if c.APIKey == "" || c.IndexName == "" {
			return fmt.Errorf("pinecone requires api_key and index_name")
		}
	default:
		return fmt.Errorf("invalid type %q (valid: chromem, qdrant, pinecone)", c.Type)
	}
	return nil
}

// EmbedderConfig selects the embedding model.
type EmbedderConfig struct {
	// Provider is "hash" (local, deterministic), "ollama" or "gemini".
	Provider  string        `yaml:"provider,omitempty"`
	Model     string        `yaml:"model,omitempty"`
	BaseURL   string        `yaml:"base_url,omitempty"`
	APIKey    string        `yaml:"api_key,omitempty"`
	Dimension int           `yaml:"dimension,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
}

func (c *EmbedderConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "hash"
	}
	switch c.Provider {
	case "hash":
		if c.Dimension == 0 {
			c.Dimension = 512
		}
	case "ollama":
		if c.Model == "" {
			c.Model = "nomic-embed-text"
		}
		if c.BaseURL == "" {
			c.BaseURL = "http://localhost:11434"
		}
		if c.Dimension == 0 {
			c.Dimension = 768
		}
	case "gemini":
		if c.Model == "" {
			c.Model = "text-embedding-004"
		}
		if c.Dimension == 0 {
			c.Dimension = 768
		}
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

func (c *EmbedderConfig) Validate() error {
	switch c.Provider {
	case "hash", "ollama":
	case "gemini":
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for gemini")
		}
	default:
		return fmt.Errorf("invalid provider %q (valid: hash, ollama, gemini)", c.Provider)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive")
	}
	return nil
}

// LLMConfig configures the optional generation backend used for document
// field extraction.
type LLMConfig struct {
	// Provider is "none" (rule-based extraction) or "gemini".
	Provider    string  `yaml:"provider,omitempty"`
	Model       string  `yaml:"model,omitempty"`
	APIKey      string  `yaml:"api_key,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
}

func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "none"
	}
	if c.Provider == "gemini" && c.Model == "" {
		c.Model = "gemini-2.0-flash"
	}
}

func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case "none":
	case "gemini":
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for gemini")
		}
	default:
		return fmt.Errorf("invalid provider %q (valid: none, gemini)", c.Provider)
	}
	return nil
}

// RAGConfig tunes policy chunking and retrieval.
type RAGConfig struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize    int `yaml:"chunk_size,omitempty"`
	ChunkOverlap int `yaml:"chunk_overlap,omitempty"`
	// ChunkTokens switches to token-based chunking when positive.
	ChunkTokens     int     `yaml:"chunk_tokens,omitempty"`
	TokenModel      string  `yaml:"token_model,omitempty"`
	SimilarityFloor float64 `yaml:"similarity_floor,omitempty"`
	TopK            int     `yaml:"top_k,omitempty"`
	MaxQueries      int     `yaml:"max_queries,omitempty"`
	MaxItems        int     `yaml:"max_items,omitempty"`
	// DocumentRoot confines indexed and analyzed documents to one
	// directory tree. Empty allows any local path.
	DocumentRoot string `yaml:"document_root,omitempty"`
}

func (c *RAGConfig) SetDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = 800
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 100
	}
	if c.TokenModel == "" {
		c.TokenModel = "gpt-4o"
	}
	if c.SimilarityFloor == 0 {
		c.SimilarityFloor = 0.35
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.MaxQueries == 0 {
		c.MaxQueries = 5
	}
	if c.MaxItems == 0 {
		c.MaxItems = 5
	}
}

func (c *RAGConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap must be within [0, chunk_size)")
	}
	if c.SimilarityFloor < 0 || c.SimilarityFloor > 1 {
		return fmt.Errorf("similarity_floor must be within [0, 1]")
	}
	if c.MaxQueries < 2 || c.MaxQueries > 5 {
		return fmt.Errorf("max_queries must be within [2, 5]")
	}
	if c.TopK <= 0 || c.MaxItems <= 0 {
		return fmt.Errorf("top_k and max_items must be positive")
	}
	return nil
}

// ParserConfig tunes raw claim validation.
type ParserConfig struct {
	ClaimNumberPattern string `yaml:"claim_number_pattern,omitempty"`
}

func (c *ParserConfig) SetDefaults() {
	if c.ClaimNumberPattern == "" {
		c.ClaimNumberPattern = `^CLM-\d{4}-\d{3,10}$`
	}
}

func (c *ParserConfig) Validate() error {
	if _, err := regexp.Compile(c.ClaimNumberPattern); err != nil {
		return fmt.Errorf("claim_number_pattern: %w", err)
	}
	return nil
}

// Fraud indicator names, in checklist order.
const (
	IndicatorCostInflation  = "cost_inflation"
	IndicatorDuplicateClaim = "duplicate_claim"
	IndicatorTimingAnomaly  = "timing_anomaly"
	IndicatorFraudRing      = "fraud_ring"
	IndicatorLateReporting  = "late_reporting"
)

// FraudWeights holds the contribution of each indicator to the score.
type FraudWeights struct {
	CostInflation  float64 `yaml:"cost_inflation,omitempty"`
	DuplicateClaim float64 `yaml:"duplicate_claim,omitempty"`
	TimingAnomaly  float64 `yaml:"timing_anomaly,omitempty"`
	FraudRing      float64 `yaml:"fraud_ring,omitempty"`
	LateReporting  float64 `yaml:"late_reporting,omitempty"`
}

// RingConfig lists the known members of one fraud ring.
type RingConfig struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

// FraudConfig is the scoring policy of the fraud detector. It can be
// swapped at runtime when the config file changes.
type FraudConfig struct {
	Weights  FraudWeights        `yaml:"weights,omitempty"`
	Severity claim.SeverityBands `yaml:"severity,omitempty"`
	// Disabled lists indicator names to skip.
	Disabled []string `yaml:"disabled,omitempty"`

	LookbackDays             int                `yaml:"lookback_days,omitempty"`
	DuplicateAmountTolerance float64            `yaml:"duplicate_amount_tolerance,omitempty"`
	InflationRatio           float64            `yaml:"inflation_ratio,omitempty"`
	Baselines                map[string]float64 `yaml:"baselines,omitempty"`
	TimingWindowDays         int                `yaml:"timing_window_days,omitempty"`
	LateReportDays           int                `yaml:"late_report_days,omitempty"`
	Rings                    []RingConfig       `yaml:"rings,omitempty"`
}

func (c *FraudConfig) SetDefaults() {
	// A zero weight means unset; use Disabled to switch an indicator off.
	setWeight(&c.Weights.CostInflation, 0.25)
	setWeight(&c.Weights.DuplicateClaim, 0.40)
	setWeight(&c.Weights.TimingAnomaly, 0.32)
	setWeight(&c.Weights.FraudRing, 0.50)
	setWeight(&c.Weights.LateReporting, 0.10)
	def := claim.DefaultSeverityBands()
	if c.Severity.Low == 0 {
		c.Severity.Low = def.Low
	}
	if c.Severity.Medium == 0 {
		c.Severity.Medium = def.Medium
	}
	if c.Severity.High == 0 {
		c.Severity.High = def.High
	}
	if c.Severity.Critical == 0 {
		c.Severity.Critical = def.Critical
	}
	if c.LookbackDays == 0 {
		c.LookbackDays = 90
	}
	if c.DuplicateAmountTolerance == 0 {
		c.DuplicateAmountTolerance = 0.10
	}
	if c.InflationRatio == 0 {
		c.InflationRatio = 2.0
	}
	if c.Baselines == nil {
		c.Baselines = map[string]float64{
			string(claim.LossAutoCollision):   8000,
			string(claim.LossAutoTheft):       15000,
			string(claim.LossPropertyDamage):  10000,
			string(claim.LossWaterDamage):     12000,
			string(claim.LossFire):            30000,
			string(claim.LossTheft):           5000,
			string(claim.LossLiability):       20000,
			string(claim.LossMedical):         15000,
			string(claim.LossNaturalDisaster): 40000,
		}
	}
	if c.TimingWindowDays == 0 {
		c.TimingWindowDays = 30
	}
	if c.LateReportDays == 0 {
		c.LateReportDays = 60
	}
}

func setWeight(w *float64, def float64) {
	if *w == 0 {
		*w = def
	}
}

// IsDisabled reports whether an indicator is switched off.
func (c *FraudConfig) IsDisabled(indicator string) bool {
	for _, d := range c.Disabled {
		if d == indicator {
			return true
		}
	}
	return false
}

func (c *FraudConfig) Validate() error {
	w := c.Weights
	for name, v := range map[string]float64{
		IndicatorCostInflation:  w.CostInflation,
		IndicatorDuplicateClaim: w.DuplicateClaim,
		IndicatorTimingAnomaly:  w.TimingAnomaly,
		IndicatorFraudRing:      w.FraudRing,
		IndicatorLateReporting:  w.LateReporting,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must be non-negative, got %v", name, v)
		}
	}
	if err := c.Severity.Validate(); err != nil {
		return err
	}
	if c.LookbackDays < 0 || c.TimingWindowDays < 0 || c.LateReportDays < 0 {
		return fmt.Errorf("day windows must be non-negative")
	}
	if c.InflationRatio <= 1 {
		return fmt.Errorf("inflation_ratio must be greater than 1")
	}
	for lt, v := range c.Baselines {
		if _, ok := claim.ParseLossType(lt); !ok {
			return fmt.Errorf("baseline for unknown loss type %q", lt)
		}
		if v <= 0 {
			return fmt.Errorf("baseline for %s must be positive", lt)
		}
	}
	known := map[string]bool{
		IndicatorCostInflation: true, IndicatorDuplicateClaim: true, IndicatorTimingAnomaly: true,
		IndicatorFraudRing: true, IndicatorLateReporting: true,
	}
	for _, d := range c.Disabled {
		if !known[d] {
			return fmt.Errorf("cannot disable unknown indicator %q", d)
		}
	}
	return nil
}

// OrchestratorConfig holds per-step execution policy. Map keys are agent
// ids (claim_parser, policy_retriever, ...).
type OrchestratorConfig struct {
	DefaultStepTimeout time.Duration            `yaml:"default_step_timeout,omitempty"`
	StepTimeouts       map[string]time.Duration `yaml:"step_timeouts,omitempty"`
	Retries            map[string]int           `yaml:"retries,omitempty"`
	RetryBackoff       time.Duration            `yaml:"retry_backoff,omitempty"`

	// RetainedRuns is how many finished runs keep their task tree in
	// memory. Older trees are still served from the task store. -1 keeps
	// every run.
	RetainedRuns int `yaml:"retained_runs,omitempty"`
}

// DefaultRetainedRuns is the in-memory run retention when none is set.
const DefaultRetainedRuns = 256

func (c *OrchestratorConfig) SetDefaults() {
	if c.DefaultStepTimeout == 0 {
		c.DefaultStepTimeout = 30 * time.Second
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 200 * time.Millisecond
	}
	if c.RetainedRuns == 0 {
		c.RetainedRuns = DefaultRetainedRuns
	}
}

func (c *OrchestratorConfig) Validate() error {
	if c.DefaultStepTimeout < 0 {
		return fmt.Errorf("default_step_timeout must be non-negative")
	}
	for step, d := range c.StepTimeouts {
		if d <= 0 {
			return fmt.Errorf("step_timeouts.%s must be positive", step)
		}
	}
	for step, n := range c.Retries {
		if n < 0 {
			return fmt.Errorf("retries.%s must be non-negative", step)
		}
	}
	if c.RetainedRuns < -1 {
		return fmt.Errorf("retained_runs must be -1 (keep all) or positive")
	}
	return nil
}

// StepTimeout returns the timeout for an agent id.
func (c *OrchestratorConfig) StepTimeout(agentID string) time.Duration {
	if d, ok := c.StepTimeouts[agentID]; ok {
		return d
	}
	return c.DefaultStepTimeout
}

// DecisionConfig holds the auto-approval gate. AutoApproveRule is a CEL
// expression over decision, settlement, claimed_amount, fraud_score,
// severity and loss_type; empty means approvals need no extra gate.
type DecisionConfig struct {
	AutoApproveRule string `yaml:"auto_approve_rule,omitempty"`
}
