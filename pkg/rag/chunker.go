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

package rag

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
)

// Chunk is one indexed piece of a document.
type Chunk struct {
	Index     int
	Content   string
	StartLine int
	EndLine   int
}

// Chunker splits extracted text into pieces for embedding. Chunks are
// returned in document order.
type Chunker interface {
	Chunk(text string) []Chunk
	Strategy() string
}

// NewChunker picks the token chunker when chunk_tokens is set and the line
// chunker otherwise.
func NewChunker(cfg config.RAGConfig) (Chunker, error) {
	if cfg.ChunkTokens > 0 {
		tc, err := NewTokenChunker(cfg.TokenModel, cfg.ChunkTokens, cfg.ChunkTokens/8)
		if err != nil {
			return nil, err
		}
		return tc, nil
	}
	if cfg.ChunkSize <= 0 || cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("invalid chunk size %d / overlap %d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	return NewLineChunker(cfg.ChunkSize, cfg.ChunkOverlap), nil
}

// LineChunker groups whole lines into chunks of at most size characters,
// repeating up to overlap characters of trailing lines at the start of the
// next chunk. Lines longer than size are split at word boundaries first.
type LineChunker struct {
	size    int
	overlap int
}

var _ Chunker = (*LineChunker)(nil)

func NewLineChunker(size, overlap int) *LineChunker {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &LineChunker{size: size, overlap: overlap}
}

func (c *LineChunker) Strategy() string { return "lines" }

type lineUnit struct {
	text string
	line int
}

func (c *LineChunker) Chunk(text string) []Chunk {
	units := c.units(text)
	chunks := []Chunk{}
	if len(units) == 0 {
		return chunks
	}

	var cur []lineUnit
	curLen := 0
	emit := func() {
		parts := make([]string, len(cur))
		for i, u := range cur {
			parts[i] = u.text
		}
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Content:   strings.Join(parts, "\n"),
			StartLine: cur[0].line,
			EndLine:   cur[len(cur)-1].line,
		})
	}

	for _, u := range units {
		if curLen > 0 && curLen+1+len(u.text) > c.size {
			emit()
			cur, curLen = c.tail(cur, len(u.text))
		}
		if curLen > 0 {
			curLen++
		}
		cur = append(cur, u)
		curLen += len(u.text)
	}
	emit()
	return chunks
}

// tail keeps trailing units totalling at most overlap characters, leaving
// room for a following unit of length next.
func (c *LineChunker) tail(cur []lineUnit, next int) ([]lineUnit, int) {
	kept := 0
	n := 0
	for i := len(cur) - 1; i >= 0; i-- {
		l := len(cur[i].text) + 1
		if kept+l > c.overlap || kept+l+next > c.size {
			break
		}
		kept += l
		n++
	}
	out := append([]lineUnit(nil), cur[len(cur)-n:]...)
	if n == 0 {
		return out, 0
	}
	return out, kept - 1
}

func (c *LineChunker) units(text string) []lineUnit {
	var units []lineUnit
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, piece := range splitWords(line, c.size) {
			units = append(units, lineUnit{text: piece, line: i + 1})
		}
	}
	return units
}

// splitWords breaks s into pieces of at most limit characters at spaces. A
// single word longer than limit becomes its own piece.
func splitWords(s string, limit int) []string {
	if len(s) <= limit {
		return []string{s}
	}
	var out []string
	var b strings.Builder
	for _, w := range strings.Fields(s) {
		if b.Len() > 0 && b.Len()+1+len(w) > limit {
			out = append(out, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

func encodingFor(model string) (*tiktoken.Tiktoken, error) {
	cacheMu.RLock()
	enc, ok := encodingCache[model]
	cacheMu.RUnlock()
	if ok {
		return enc, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = enc
	cacheMu.Unlock()
	return enc, nil
}

// TokenChunker windows the text by model tokens, so chunks line up with
// what an embedding model actually sees.
type TokenChunker struct {
	enc     *tiktoken.Tiktoken
	size    int
	overlap int
}

var _ Chunker = (*TokenChunker)(nil)

func NewTokenChunker(model string, size, overlap int) (*TokenChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("token chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	enc, err := encodingFor(model)
	if err != nil {
		return nil, err
	}
	return &TokenChunker{enc: enc, size: size, overlap: overlap}, nil
}

func (c *TokenChunker) Strategy() string { return "tokens" }

func (c *TokenChunker) Chunk(text string) []Chunk {
	chunks := []Chunk{}
	text = strings.TrimSpace(text)
	if text == "" {
		return chunks
	}

	tokens := c.enc.Encode(text, nil, nil)
	step := c.size - c.overlap
	for start := 0; start < len(tokens); start += step {
		end := min(start+c.size, len(tokens))
		content := strings.TrimSpace(c.enc.Decode(tokens[start:end]))
		if content != "" {
			chunks = append(chunks, Chunk{Index: len(chunks), Content: content})
		}
		if end == len(tokens) {
			break
		}
	}
	return chunks
}
