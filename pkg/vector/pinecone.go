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

package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeConfig configures the Pinecone provider. Pinecone indexes are
// created out of band; collections map to namespaces inside IndexName.
type PineconeConfig struct {
	APIKey    string
	Host      string
	IndexName string
}

// PineconeProvider stores every collection as a namespace of one index.
type PineconeProvider struct {
	client    *pinecone.Client
	indexName string

	mu        sync.Mutex
	indexHost string
}

func NewPineconeProvider(cfg PineconeConfig) (*PineconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Pinecone")
	}
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("index name is required for Pinecone")
	}
	params := pinecone.NewClientParams{ApiKey: cfg.APIKey}
	if cfg.Host != "" {
		params.Host = cfg.Host
	}
	client, err := pinecone.NewClient(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}
	return &PineconeProvider{client: client, indexName: cfg.IndexName}, nil
}

func (p *PineconeProvider) Name() string { return "pinecone" }

// connect opens a connection scoped to the collection's namespace. The
// index host is resolved once.
func (p *PineconeProvider) connect(ctx context.Context, collection string) (*pinecone.IndexConnection, error) {
	p.mu.Lock()
	host := p.indexHost
	p.mu.Unlock()

	if host == "" {
		idx, err := p.client.DescribeIndex(ctx, p.indexName)
		if err != nil {
			return nil, fmt.Errorf("failed to describe index %s: %w", p.indexName, err)
		}
		host = idx.Host
		p.mu.Lock()
		p.indexHost = host
		p.mu.Unlock()
	}

	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: host, Namespace: collection})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index %s: %w", p.indexName, err)
	}
	return conn, nil
}

func (p *PineconeProvider) Upsert(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	vectors := make([]*pinecone.Vector, 0, len(docs))
	for _, d := range docs {
		meta, err := metadataStruct(d.Metadata, d.Content)
		if err != nil {
			return fmt.Errorf("document %s: %w", d.ID, err)
		}
		vectors = append(vectors, &pinecone.Vector{Id: d.ID, Values: d.Vector, Metadata: meta})
	}

	conn, err := p.connect(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.UpsertVectors(ctx, vectors); err != nil {
		return fmt.Errorf("failed to upsert %d vectors: %w", len(vectors), err)
	}
	return nil
}

func (p *PineconeProvider) Search(ctx context.Context, collection string, vec []float32, topK int, filter map[string]string) ([]Result, error) {
	if topK <= 0 {
		return []Result{}, nil
	}
	var mf *pinecone.MetadataFilter
	if len(filter) > 0 {
		f, err := metadataStruct(filter, "")
		if err != nil {
			return nil, fmt.Errorf("invalid filter: %w", err)
		}
		mf = f
	}

	conn, err := p.connect(ctx, collection)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	res, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vec,
		TopK:            uint32(topK),
		MetadataFilter:  mf,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query Pinecone: %w", err)
	}
	return convertPineconeMatches(res.Matches), nil
}

func (p *PineconeProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]string) error {
	if len(filter) == 0 {
		return fmt.Errorf("delete requires a filter")
	}
	mf, err := metadataStruct(filter, "")
	if err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}

	conn, err := p.connect(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.DeleteVectorsByFilter(ctx, mf); err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}
	return nil
}

// Close is a no-op; connections are closed per call.
func (p *PineconeProvider) Close() error { return nil }

// metadataStruct converts string metadata, plus the chunk text when
// content is non-empty, into a protobuf struct.
func metadataStruct(meta map[string]string, content string) (*structpb.Struct, error) {
	fields := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		fields[k] = v
	}
	if content != "" {
		fields[contentKey] = content
	}
	return structpb.NewStruct(fields)
}

func convertPineconeMatches(matches []*pinecone.ScoredVector) []Result {
	out := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m == nil || m.Vector == nil {
			continue
		}
		r := Result{ID: m.Vector.Id, Score: m.Score, Metadata: map[string]string{}}
		if m.Vector.Metadata != nil {
			for k, v := range m.Vector.Metadata.GetFields() {
				s := structValueString(v)
				if k == contentKey {
					r.Content = s
					continue
				}
				r.Metadata[k] = s
			}
		}
		out = append(out, r)
	}
	return out
}

func structValueString(v *structpb.Value) string {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return fmt.Sprintf("%g", k.NumberValue)
	case *structpb.Value_BoolValue:
		return fmt.Sprintf("%t", k.BoolValue)
	default:
		return ""
	}
}

var _ Provider = (*PineconeProvider)(nil)
