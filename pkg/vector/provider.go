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

// Package vector is the similarity-search service behind policy retrieval.
// Vectors are computed by an embedder before they reach a provider.
package vector

import "context"

// Document is one embedded chunk.
type Document struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]string
}

// Result is one search hit. Score is cosine similarity.
type Result struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]string
}

// Provider stores and searches vectors.
type Provider interface {
	Name() string

	// Upsert adds or replaces documents by id.
	Upsert(ctx context.Context, collection string, docs []Document) error

	// Search returns at most topK hits by descending score. An empty or
	// missing collection yields no results, not an error.
	Search(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]Result, error)

	// DeleteByFilter removes every document whose metadata matches filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]string) error

	Close() error
}
