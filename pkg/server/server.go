// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/mcpadapter"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/observability"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/runtime"
)

const (
	mcpEndpoint = "/mcp"

	// maxBodyBytes caps request bodies; claims and A2A messages are small.
	maxBodyBytes = 4 << 20
)

// HTTPServer serves one runtime.
type HTTPServer struct {
	cfg     *config.ServerConfig
	rt      *runtime.Runtime
	version string
	handler http.Handler
	server  *http.Server

	// agent-card handlers per agent id, built once from the sealed registry
	cardHandlers map[string]http.Handler
}

// NewHTTPServer builds the router for rt. cfg defaults are applied in place.
func NewHTTPServer(cfg *config.ServerConfig, rt *runtime.Runtime, version string) *HTTPServer {
	cfg.SetDefaults()
	s := &HTTPServer{
		cfg:          cfg,
		rt:           rt,
		version:      version,
		cardHandlers: make(map[string]http.Handler),
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	for _, card := range rt.Registry().CapabilityCards() {
		url := base + "/agents/" + card.AgentID
		s.cardHandlers[card.AgentID] = a2asrv.NewStaticAgentCardHandler(card.AgentCard(url))
	}

	s.handler = s.routes()
	return s
}

func (s *HTTPServer) routes() http.Handler {
	obs := s.rt.Observability()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(observability.HTTPMiddleware(obs.Recorder()))

	r.Get("/health", s.handleHealth)
	r.Get("/agents", s.handleAgents)
	r.Get("/agents/{id}/.well-known/agent-card.json", s.handleAgentCard)
	r.Post("/a2a", s.handleA2A)

	r.Get("/tools", s.handleListTools)
	r.Post("/tools/call", s.handleCallTool)
	r.Handle(mcpEndpoint, mcpadapter.HTTPHandler(s.rt.MCPServer(s.version), mcpEndpoint))

	r.Post("/claims/process", s.handleProcessClaim)
	r.Post("/documents/index", s.handleIndexDocument)
	r.Post("/documents/analyze", s.handleAnalyzeDocument)
	r.Get("/runs/{id}/tasks", s.handleRunTasks)

	r.Handle("/metrics", obs.MetricsHandler())
	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler { return s.handler }

// Address returns the listen address.
func (s *HTTPServer) Address() string { return s.cfg.Address() }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Address(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "address", s.cfg.Address(), "base_url", s.cfg.BaseURL)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting requests and waits for in-flight ones up to
// the configured shutdown timeout.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	slog.Info("Shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}
