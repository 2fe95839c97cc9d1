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
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/runtime"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/server"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Port    int      `help:"Port to listen on (overrides config)."`
	Watch   bool     `help:"Reload the fraud policy when the config file changes."`
	Index   []string `help:"Policy documents to index before serving (must be under the document root)." type:"path" placeholder:"PATH"`
	Policy  string   `help:"Policy number attached to --index documents." placeholder:"NUMBER"`
	Observe bool     `help:"Enable Prometheus metrics at /metrics."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The runtime does not exist yet when the loader is built, so reloads
	// go through this indirection.
	var rt *runtime.Runtime
	onChange := func(next *config.Config) {
		if rt == nil {
			return
		}
		if err := rt.ApplyConfig(next); err != nil {
			slog.Error("Config change rejected", "error", err)
		}
	}

	cfg, loader, cleanup, err := cli.setup(ctx, config.WithOnChange(onChange))
	if err != nil {
		return err
	}
	defer cleanup()

	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.Observe {
		cfg.Observability.Metrics.Enabled = true
	}
	// Document refs arrive over HTTP, so the server never runs unconfined.
	if cfg.RAG.DocumentRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to resolve document root: %w", err)
		}
		cfg.RAG.DocumentRoot = wd
	}

	rt, err = runtime.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}
	defer rt.Close()

	if err := indexDocuments(ctx, rt, c.Index, c.Policy, nil); err != nil {
		return err
	}

	if c.Watch && loader != nil {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Config watch error", "error", err)
			}
		}()
	}

	srv := server.NewHTTPServer(&cfg.Server, rt, version())

	out := cli.stdout()
	fmt.Fprintf(out, "\nclaimflow server ready\n")
	fmt.Fprintf(out, "   Health:      http://%s/health\n", srv.Address())
	fmt.Fprintf(out, "   Agents:      http://%s/agents\n", srv.Address())
	fmt.Fprintf(out, "   Tools (MCP): http://%s/mcp\n", srv.Address())
	fmt.Fprintf(out, "   Vector:      %s (%s)\n", cfg.Vector.Type, cfg.Vector.Collection)
	fmt.Fprintf(out, "   Documents:   %s\n", cfg.RAG.DocumentRoot)
	if cfg.Database.Enabled() {
		fmt.Fprintf(out, "   Storage:     %s\n", cfg.Database.Driver)
	} else {
		fmt.Fprintf(out, "   Storage:     in-memory (not persisted)\n")
	}
	if cfg.Observability.Metrics.Enabled {
		fmt.Fprintf(out, "   Metrics:     http://%s/metrics\n", srv.Address())
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	return srv.Start(ctx)
}
