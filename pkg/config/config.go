// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the pipeline's structured configuration (spec.md
// §6 "Configuration"), on the model of the teacher's pkg/ingestion/config.go
// defaults pattern and cmd/cie's YAML-file loading.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the recognized configuration surface from spec.md §6.
type Config struct {
	Memgraph   Memgraph   `yaml:"memgraph"`
	Analysis   Analysis   `yaml:"analysis"`
	Embeddings Embeddings `yaml:"embeddings"`
	Performance Performance `yaml:"performance"`
}

// Memgraph controls connection and bulk-load behavior.
type Memgraph struct {
	URI         string            `yaml:"uri"`
	Username    string            `yaml:"username"`
	Password    string            `yaml:"password"`
	CleanStart  bool              `yaml:"clean_start"`
	BatchSize   int               `yaml:"batch_size"`
	Performance MemgraphPerf      `yaml:"performance"`
	Retry       MemgraphRetry     `yaml:"retry"`
	Memory      MemgraphMemory    `yaml:"memory"`
}

// MemgraphPerf controls bulk-import mode switching.
type MemgraphPerf struct {
	UseAnalyticalMode bool `yaml:"use_analytical_mode"`
}

// MemgraphRetry controls the loader's retry-with-backoff discipline
// (spec.md §4.5 "Retry discipline"), shaped like the teacher's RetryConfig
// in pkg/ingestion/config.go but with the spec's named fields.
type MemgraphRetry struct {
	Enabled         bool    `yaml:"enabled"`
	MaxAttempts     int     `yaml:"max_attempts"`
	InitialDelayMs  int     `yaml:"initial_delay_ms"`
	MaxDelayMs      int     `yaml:"max_delay_ms"`
	ExponentialBase float64 `yaml:"exponential_base"`
}

// MemgraphMemory controls the post-bulk-load FREE MEMORY trigger.
type MemgraphMemory struct {
	AutoFreeThresholdMB int `yaml:"auto_free_threshold_mb"`
}

// Analysis controls which dependency edges are considered in scope.
type Analysis struct {
	IncludeDevDeps   bool `yaml:"include_dev_deps"`
	IncludeBuildDeps bool `yaml:"include_build_deps"`
}

// Embeddings holds the embeddings settings for downstream semantic search
// (an external collaborator per spec.md §1 Non-goals). The flag is parsed
// from configuration, but no code in this module reads it, and embedding_text
// is never populated.
type Embeddings struct {
	Enabled bool `yaml:"enabled"`
}

// Performance controls parsing/resolution concurrency and incremental mode.
type Performance struct {
	MaxThreads   int  `yaml:"max_threads"`
	CacheSizeMB  int  `yaml:"cache_size_mb"`
	Incremental  bool `yaml:"incremental"`
}

// Default returns a Config with the same explicit-zero-value-literal
// defaulting style as the teacher's DefaultConfig (pkg/ingestion/config.go),
// rather than reflection-based defaulting.
func Default() Config {
	return Config{
		Memgraph: Memgraph{
			URI:        "bolt://localhost:7687",
			Username:   "",
			Password:   "",
			CleanStart: false,
			BatchSize:  50,
			Performance: MemgraphPerf{
				UseAnalyticalMode: false,
			},
			Retry: MemgraphRetry{
				Enabled:         true,
				MaxAttempts:     5,
				InitialDelayMs:  100,
				MaxDelayMs:      5000,
				ExponentialBase: 2.0,
			},
			Memory: MemgraphMemory{
				AutoFreeThresholdMB: 2048,
			},
		},
		Analysis: Analysis{
			IncludeDevDeps:   false,
			IncludeBuildDeps: false,
		},
		Embeddings: Embeddings{
			Enabled: false,
		},
		Performance: Performance{
			MaxThreads:  4,
			CacheSizeMB: 256,
			Incremental: true,
		},
	}
}

// Load overlays a YAML file at path on top of Default(). A missing or
// malformed file is a full-abort condition per spec.md §7 "A full abort is
// reserved for: configuration parse errors...".
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// EdgeBatchSize is the edge-write chunk size named in spec.md §4.5
// "Batching" (100 by default, independent from node BatchSize).
const EdgeBatchSize = 100

// BulkBatchSize is the bulk analytical-mode import chunk size named in
// spec.md §4.5 "Batching" (10,000). No load path reads it: analytical-mode
// loads are chunked by BatchSize and EdgeBatchSize like transactional ones.
const BulkBatchSize = 10000

// ClearThreshold is the node-count cutoff above which clearing switches from
// a single DETACH DELETE to a batched delete loop (spec.md §4.5 "Clearing").
const ClearThreshold = 100000
