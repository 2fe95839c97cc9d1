package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/mcpadapter"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/orchestrator"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/rag"
)

const claimFile = `{
	"claim_number": "CLM-2025-0200",
	"policy_number": "POL-200",
	"loss_type": "fire",
	"loss_date": "2025-05-10",
	"submission_date": "2025-05-11",
	"claimed_amount": 8000,
	"narrative": "Kitchen fire damaged the cabinets",
	"claimant_id": "CUST-20",
	"policy": {"deductible": 1000, "coverage_limit": 100000, "covered_loss_types": ["fire"]}
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cli := CLI{out: &buf}
	parser, err := newParser(&cli, kong.Exit(func(int) {}))
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	if err != nil {
		return buf.String(), err
	}
	err = ctx.Run(&cli)
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "claimflow version ")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", "server:\n  port: 9090\n")
	bad := writeFile(t, dir, "bad.yaml", "vector:\n  type: weaviate\n")

	out, err := run(t, "validate", good)
	require.NoError(t, err)
	assert.Equal(t, good+": valid\n", out)

	out, err = run(t, "validate", bad)
	assert.Error(t, err)
	assert.Contains(t, out, "weaviate")

	out, err = run(t, "validate", "--format", "json", bad)
	assert.Error(t, err)
	var res validationOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Error)

	out, err = run(t, "validate", "--print-config", good)
	require.NoError(t, err)
	assert.Contains(t, out, "port: 9090")
	assert.Contains(t, out, "type: chromem", "defaults are applied")
}

func TestProcess(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "claimflow.yaml", "rag:\n  similarity_floor: 0.2\n")
	claimPath := writeFile(t, dir, "claim.json", claimFile)
	policy := writeFile(t, dir, "policy.txt", "Fire damage to the kitchen and dwelling is covered up to the limit.")

	out, err := run(t, "--config", cfgPath, "process", claimPath, "--index", policy, "--policy", "POL-200")
	require.NoError(t, err)

	var res orchestrator.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, orchestrator.StateCompleted, res.State)
	require.NotNil(t, res.Decision)
	require.NotNil(t, res.Recommendation)
	assert.Equal(t, 7000.0, res.Recommendation.Settlement)
}

func TestProcessFailures(t *testing.T) {
	dir := t.TempDir()
	claimPath := writeFile(t, dir, "claim.json", `{"claim_number":"CLM-1"}`)

	out, err := run(t, "process", claimPath)
	assert.Error(t, err)
	var res orchestrator.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, orchestrator.StateFailed, res.State)

	_, err = run(t, "process", "--type", "express", claimPath)
	assert.ErrorIs(t, err, orchestrator.ErrUnknownProcessingType)

	_, err = run(t, "process", filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestIndexAndAnalyze(t *testing.T) {
	dir := t.TempDir()
	policy := writeFile(t, dir, "policy.txt", "Water damage from a burst pipe is covered.")
	invoice := writeFile(t, dir, "invoice.txt", "Contractor: Acme Plumbing\nTotal: $900.00")

	out, err := run(t, "index", "--policy", "POL-1", policy)
	require.NoError(t, err)
	var idx rag.IndexResult
	require.NoError(t, json.Unmarshal([]byte(out), &idx), out)
	assert.Equal(t, "POL-1", idx.PolicyNumber)
	assert.Equal(t, 1, idx.ChunkCount)

	out, err = run(t, "analyze", "--type", "invoice", invoice)
	require.NoError(t, err)
	var fields claim.ExtractedFields
	require.NoError(t, json.Unmarshal([]byte(out), &fields), out)
	require.Len(t, fields.Amounts, 1)
	assert.Equal(t, 900.0, fields.Amounts[0].Value)
}

func TestTools(t *testing.T) {
	out, err := run(t, "tools")
	require.NoError(t, err)
	for _, name := range []string{"parse_claim", "retrieve_policy_context", "recommend_settlement", "detect_fraud", "make_decision", "analyze_document"} {
		assert.Contains(t, out, name)
	}

	args := `{"recommendation":{"coverage":"covered","covered":true,"settlement":2500,"claimed_amount":3000,"deductible":500,"coverage_limit":10000,"exceeds_limit":false},"fraud":{"score":0,"indicators":[],"severity":"none"}}`
	out, err = run(t, "tools", "--call", "make_decision", "--args", args)
	require.NoError(t, err)
	var res mcpadapter.CallResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	var d claim.Decision
	require.NoError(t, json.Unmarshal(res.Result, &d))
	assert.Equal(t, claim.VerdictApprove, d.Verdict)

	_, err = run(t, "tools", "--call", "make_decision", "--args", "{nope")
	assert.Error(t, err)

	_, err = run(t, "tools", "--call", "approve_everything")
	assert.Error(t, err)
}

func TestSchema(t *testing.T) {
	out, err := run(t, "schema")
	require.NoError(t, err)
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "server")
	assert.Contains(t, props, "fraud")
}

func TestInitLoggerPriority(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")
	_, err := initLogger("bogus", "", "", nil)
	assert.Error(t, err, "flag wins over env")

	closeFn, err := initLogger("", "", "", &config.LoggingConfig{Level: "bogus"})
	require.NoError(t, err, "env wins over config")
	closeFn()

	t.Setenv(LogLevelEnvVar, "")
	_, err = initLogger("", "", "", &config.LoggingConfig{Level: "bogus"})
	assert.Error(t, err)

	logFile := filepath.Join(t.TempDir(), "claimflow.log")
	closeFn, err = initLogger("", "", "", &config.LoggingConfig{Level: "info", Format: "json", File: logFile})
	require.NoError(t, err)
	t.Cleanup(closeFn)
	assert.FileExists(t, logFile)
}
