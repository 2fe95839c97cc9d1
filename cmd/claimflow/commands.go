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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/mcpadapter"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/orchestrator"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/runtime"
)

// ProcessCmd runs one claim through the pipeline.
type ProcessCmd struct {
	Claim  string   `arg:"" help:"Claim JSON file ('-' reads stdin)." placeholder:"PATH"`
	Type   string   `short:"t" help:"Processing type (full, fraud_check, policy_lookup, recommendation)." default:"full"`
	Index  []string `help:"Policy documents to index before processing." type:"path" placeholder:"PATH"`
	Policy string   `help:"Policy number attached to --index documents." placeholder:"NUMBER"`
	Tasks  bool     `help:"Print the run's task tree after the result."`
}

func (c *ProcessCmd) Run(cli *CLI) error {
	payload, err := readInput(c.Claim)
	if err != nil {
		return err
	}
	ptype, err := orchestrator.ParseProcessingType(c.Type)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return cli.withRuntime(ctx, func(rt *runtime.Runtime) error {
		if err := indexDocuments(ctx, rt, c.Index, c.Policy, nil); err != nil {
			return err
		}

		res, runErr := rt.Orchestrator().ProcessClaim(ctx, payload, ptype)
		if res != nil {
			if err := printJSON(cli.stdout(), res); err != nil {
				return err
			}
			if c.Tasks {
				tree, err := rt.Orchestrator().RunTree(ctx, res.RunID)
				if err != nil {
					return err
				}
				if err := printJSON(cli.stdout(), tree); err != nil {
					return err
				}
			}
		}
		return runErr
	})
}

// IndexCmd indexes policy documents. Only useful with a persistent vector
// store (chromem persist_path or qdrant).
type IndexCmd struct {
	Documents []string `arg:"" help:"Document paths or file:// URLs." placeholder:"PATH"`
	Policy    string   `help:"Policy number attached to every document." placeholder:"NUMBER"`
}

func (c *IndexCmd) Run(cli *CLI) error {
	ctx := context.Background()
	return cli.withRuntime(ctx, func(rt *runtime.Runtime) error {
		if rt.Config().Vector.Type == "chromem" && rt.Config().Vector.PersistPath == "" {
			slog.Warn("Vector store is in-memory; the index is discarded on exit")
		}
		return indexDocuments(ctx, rt, c.Documents, c.Policy, cli.stdout())
	})
}

// indexDocuments indexes refs in order and stops at the first failure.
// Results are printed to out when it is non-nil.
func indexDocuments(ctx context.Context, rt *runtime.Runtime, refs []string, policyNumber string, out io.Writer) error {
	for _, ref := range refs {
		res, err := rt.Orchestrator().IndexPolicyDocument(ctx, ref, policyNumber)
		if err != nil {
			return fmt.Errorf("index %s: %w", ref, err)
		}
		slog.Info("Indexed policy document", "source", res.Source, "chunks", res.ChunkCount)
		if out != nil {
			if err := printJSON(out, res); err != nil {
				return err
			}
		}
	}
	return nil
}

// AnalyzeCmd extracts structured fields from one document.
type AnalyzeCmd struct {
	Document string `arg:"" help:"Document path or file:// URL." placeholder:"PATH"`
	Type     string `short:"t" help:"Document type hint (invoice, estimate, police_report, ...)."`
}

func (c *AnalyzeCmd) Run(cli *CLI) error {
	ctx := context.Background()
	return cli.withRuntime(ctx, func(rt *runtime.Runtime) error {
		fields, err := rt.Orchestrator().AnalyzeDocument(ctx, c.Document, c.Type)
		if err != nil {
			return err
		}
		return printJSON(cli.stdout(), fields)
	})
}

// ToolsCmd lists the agent tools, or calls one with --call.
type ToolsCmd struct {
	Call string `help:"Tool to call instead of listing." placeholder:"NAME"`
	Args string `help:"Tool arguments as JSON ('-' reads stdin, '@file' reads a file)." placeholder:"JSON"`
}

func (c *ToolsCmd) Run(cli *CLI) error {
	ctx := context.Background()
	return cli.withRuntime(ctx, func(rt *runtime.Runtime) error {
		if c.Call == "" {
			return printTools(cli.stdout(), rt.Tools().ListTools())
		}

		var args json.RawMessage
		if c.Args != "" {
			raw, err := readArgs(c.Args)
			if err != nil {
				return err
			}
			args = raw
		}
		res, err := rt.Tools().CallTool(ctx, c.Call, args)
		if err != nil {
			return err
		}
		if err := printJSON(cli.stdout(), res); err != nil {
			return err
		}
		return res.Err
	})
}

func printTools(out io.Writer, tools []mcpadapter.Tool) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDESCRIPTION")
	for _, t := range tools {
		fmt.Fprintf(tw, "%s\t%s\n", t.Name, t.Description)
	}
	return tw.Flush()
}

// MCPCmd serves the tools over stdio. Logs go to stderr or --log-file so
// stdout stays a clean protocol stream.
type MCPCmd struct{}

func (c *MCPCmd) Run(cli *CLI) error {
	return cli.withRuntime(context.Background(), func(rt *runtime.Runtime) error {
		slog.Info("Serving MCP on stdio", "tools", len(rt.Tools().ListTools()))
		return mcpadapter.ServeStdio(rt.MCPServer(version()))
	})
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func readArgs(arg string) (json.RawMessage, error) {
	var data []byte
	switch {
	case arg == "-":
		d, err := readInput("-")
		if err != nil {
			return nil, err
		}
		data = d
	case len(arg) > 1 && arg[0] == '@':
		d, err := readInput(arg[1:])
		if err != nil {
			return nil, err
		}
		data = d
	default:
		data = []byte(arg)
	}
	if !json.Valid(data) {
		return nil, errors.New("tool arguments are not valid JSON")
	}
	return data, nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
