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

// Package llm is the narrow generation surface the agents consume. The
// model itself is a black box: a prompt goes in, JSON text comes out.
package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
)

// Generator produces a JSON document answering prompt under the given
// system instruction.
type Generator interface {
	GenerateJSON(ctx context.Context, system, prompt string) (string, error)
	Name() string
}

// New returns the configured generator, or nil when the provider is "none".
func New(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "gemini":
		g, err := NewGemini(cfg)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s (supported: none, gemini)", cfg.Provider)
	}
}

type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

var _ Generator = (*Gemini)(nil)

func NewGemini(cfg config.LLMConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, temperature: float32(cfg.Temperature)}, nil
}

func (g *Gemini) Name() string { return g.model }

func (g *Gemini) GenerateJSON(ctx context.Context, system, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		ResponseMIMEType: "application/json",
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("Gemini generation failed: %w", err)
	}
	text := StripFences(resp.Text())
	if text == "" {
		return "", fmt.Errorf("Gemini returned no content")
	}
	return text, nil
}

// StripFences removes a surrounding ```json fence some models emit even in
// JSON mode.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
