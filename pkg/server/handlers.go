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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/go-chi/chi/v5"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/agent"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/orchestrator"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/protocol"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/rag"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/task"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	var (
		malformed *agent.MalformedClaimError
		invalid   *agent.ValidationError
		timeout   *agent.StepTimeoutError
		cancelled *agent.RunCancelledError
		execErr   *agent.AgentExecutionError
	)
	switch {
	case errors.As(err, &malformed):
		return http.StatusUnprocessableEntity
	case errors.As(err, &invalid), errors.Is(err, orchestrator.ErrUnknownProcessingType):
		return http.StatusBadRequest
	case errors.Is(err, agent.ErrUnknownAgent), errors.Is(err, agent.ErrUnknownTool), errors.Is(err, task.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rag.ErrOutsideRoot):
		return http.StatusForbidden
	case errors.Is(err, orchestrator.ErrIndexingDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &cancelled), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.As(err, &execErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"agents":  s.rt.Registry().Len(),
	})
}

func (s *HTTPServer) handleAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.rt.Registry().CapabilityCards()})
}

func (s *HTTPServer) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h, ok := s.cardHandlers[id]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %q", agent.ErrUnknownAgent, id))
		return
	}
	h.ServeHTTP(w, r)
}

// handleA2A accepts one a2a.Message addressed through its metadata and
// answers with the reply message. Missing ids are filled by the router.
func (s *HTTPServer) handleA2A(w http.ResponseWriter, r *http.Request) {
	var in a2a.Message
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	msg, err := protocol.FromA2A(&in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if msg.FromAgent == "" {
		msg.FromAgent = agent.OrchestratorID
	}

	reply, err := s.rt.Router().Send(r.Context(), msg)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	out, err := reply.ToA2A()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.rt.Tools().ListTools()})
}

type toolCallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *HTTPServer) handleCallTool(w http.ResponseWriter, r *http.Request) {
	var req toolCallRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.rt.Tools().CallTool(r.Context(), req.Name, req.Arguments)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	status := http.StatusOK
	if res.Err != nil {
		status = statusFor(res.Err)
	}
	writeJSON(w, status, res)
}

type processRequest struct {
	Claim          json.RawMessage `json:"claim"`
	ProcessingType string          `json:"processing_type"`
}

// handleProcessClaim returns the run result for failed runs too, with the
// status code of the failure.
func (s *HTTPServer) handleProcessClaim(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.rt.Orchestrator().ProcessClaim(r.Context(), req.Claim, orchestrator.ProcessingType(req.ProcessingType))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case res != nil:
		writeJSON(w, statusFor(err), res)
	default:
		writeError(w, statusFor(err), err)
	}
}

type indexRequest struct {
	DocumentRef  string `json:"document_ref"`
	PolicyNumber string `json:"policy_number"`
}

func (s *HTTPServer) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.DocumentRef == "" {
		writeError(w, http.StatusBadRequest, errors.New("document_ref is required"))
		return
	}
	res, err := s.rt.Orchestrator().IndexPolicyDocument(r.Context(), req.DocumentRef, req.PolicyNumber)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type analyzeRequest struct {
	DocumentRef  string `json:"document_ref"`
	DocumentType string `json:"document_type"`
}

func (s *HTTPServer) handleAnalyzeDocument(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.DocumentRef == "" {
		writeError(w, http.StatusBadRequest, errors.New("document_ref is required"))
		return
	}
	fields, err := s.rt.Orchestrator().AnalyzeDocument(r.Context(), req.DocumentRef, req.DocumentType)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

func (s *HTTPServer) handleRunTasks(w http.ResponseWriter, r *http.Request) {
	tree, err := s.rt.Orchestrator().RunTree(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}
