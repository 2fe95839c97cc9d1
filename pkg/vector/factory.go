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
	"fmt"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
)

// New creates the provider selected by cfg.
func New(cfg config.VectorConfig) (Provider, error) {
	switch cfg.Type {
	case "chromem", "":
		p, err := NewChromemProvider(ChromemConfig{PersistPath: cfg.PersistPath, Compress: cfg.Compress})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "qdrant":
		p, err := NewQdrantProvider(QdrantConfig{
			Host:   cfg.Host,
			Port:   cfg.Port,
			APIKey: cfg.APIKey,
			UseTLS: cfg.UseTLS,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "pinecone":
		p, err := NewPineconeProvider(PineconeConfig{
			APIKey:    cfg.APIKey,
			Host:      cfg.Endpoint,
			IndexName: cfg.IndexName,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown vector provider: %s (supported: chromem, qdrant, pinecone)", cfg.Type)
	}
}
