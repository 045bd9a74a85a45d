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

// Package graph implements the graph-population back end (spec.md §4.5):
// schema bootstrap, idempotent MERGE-based node/edge upserts, bulk-import
// storage-mode switching, retry with backoff, clearing, and memory
// monitoring, against a Memgraph instance over its Bolt endpoint.
//
// Memgraph speaks the same Bolt wire protocol as Neo4j; no repo in the
// retrieval pack ships a Memgraph-specific client, so this package is built
// on github.com/neo4j/neo4j-go-driver/v5 — see DESIGN.md for the
// justification. Session acquisition follows the teacher's connection
// discipline in pkg/cozodb/cozodb.go: acquire narrowly, release promptly,
// never hold a session across a cancellable suspension point.
package graph

import (
	"context"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kraklabs/rcie/pkg/config"
	"github.com/kraklabs/rcie/pkg/errs"
)

// healthCheckBudget is the round-trip budget named in spec.md §6
// "health_check() (returns true if round-trip < 50 ms)".
const healthCheckBudget = 50 * time.Millisecond

// Client wraps a pooled Bolt driver and the configuration governing retry,
// batching, and storage-mode behavior.
type Client struct {
	driver neo4j.DriverWithContext
	cfg    config.Memgraph
	logger *slog.Logger

	stats Stats
}

// Stats accumulates population counts for the run summary (spec.md §7
// "User-visible failure behavior": "the loader emits a summary with counts
// of nodes/edges created and failed").
type Stats struct {
	NodesCreated int
	EdgesCreated int
	NodesFailed  int
	EdgesFailed  int
}

// Connect opens a pooled Bolt driver against cfg.URI and verifies
// connectivity, per spec.md §7's full-abort condition "inability to open a
// connection at startup".
func Connect(ctx context.Context, cfg config.Memgraph, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, errs.New(errs.KindConnection, "graph.Connect", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, errs.New(errs.KindConnection, "graph.Connect.VerifyConnectivity", err)
	}
	return &Client{driver: driver, cfg: cfg, logger: logger}, nil
}

// Stats returns the accumulated node/edge population counts.
func (c *Client) Stats() Stats {
	return c.stats
}

// Close releases the underlying driver's connection pool.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// session acquires a write session narrowly; callers must Close it promptly
// and must not hold it across a suspension point outside the current
// operation (SPEC_FULL.md §5.1).
func (c *Client) session(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
}

// run executes a single Cypher statement inside its own auto-commit
// transaction, wrapped in the retry discipline from retry.go.
func (c *Client) run(ctx context.Context, op, cypher string, params map[string]any) error {
	return c.withRetry(ctx, op, func() error {
		sess := c.session(ctx)
		defer sess.Close(ctx)
		_, err := sess.Run(ctx, cypher, params)
		return err
	})
}

// runAndCollect executes cypher and materializes every result row, used by
// the query interface (spec.md §6 "execute_query").
func (c *Client) runAndCollect(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	sess := c.session(ctx)
	defer sess.Close(ctx)
	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, errs.New(errs.KindQuery, "graph.runAndCollect", err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, errs.New(errs.KindQuery, "graph.runAndCollect.Collect", err)
	}
	return records, nil
}

// ExecuteQuery implements spec.md §6 "execute_query(query)".
func (c *Client) ExecuteQuery(ctx context.Context, query string) ([]map[string]any, error) {
	records, err := c.runAndCollect(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		row := make(map[string]any, len(r.Keys))
		for _, k := range r.Keys {
			v, _ := r.Get(k)
			row[k] = v
		}
		out = append(out, row)
	}
	return out, nil
}

// HealthCheck implements spec.md §6 "health_check() (returns true if
// round-trip < 50 ms)".
func (c *Client) HealthCheck(ctx context.Context) bool {
	start := time.Now()
	_, err := c.runAndCollect(ctx, "RETURN 1", nil)
	if err != nil {
		c.logger.Warn("graph.health_check.failed", "err", err)
		return false
	}
	return time.Since(start) < healthCheckBudget
}

// GetStatistics implements spec.md §6 "get_statistics() (returns node/edge
// counts)". Best-effort: a failed count returns zero rather than erroring,
// per spec.md §7 "statistics are best-effort and return zeros for missing
// counts".
func (c *Client) GetStatistics(ctx context.Context) map[string]int64 {
	stats := map[string]int64{"nodes": 0, "edges": 0}
	if rows, err := c.runAndCollect(ctx, "MATCH (n) RETURN count(n) AS c", nil); err == nil && len(rows) > 0 {
		if v, ok := rows[0].Get("c"); ok {
			stats["nodes"] = toInt64(v)
		}
	}
	if rows, err := c.runAndCollect(ctx, "MATCH ()-[r]->() RETURN count(r) AS c", nil); err == nil && len(rows) > 0 {
		if v, ok := rows[0].Get("c"); ok {
			stats["edges"] = toInt64(v)
		}
	}
	return stats
}

// GetUnusedFunctions implements spec.md §6 "get_unused_functions() (filters
// out synthetic and macro-created callees)".
func (c *Client) GetUnusedFunctions(ctx context.Context) ([]string, error) {
	const q = `
MATCH (f:Function)
WHERE NOT ( ()-[:CALLS {is_synthetic: false}]->(f) )
  AND coalesce(f.is_synthetic, false) = false
  AND coalesce(f.created_by_macro, false) = false
RETURN f.qualified_name AS name`
	records, err := c.runAndCollect(ctx, q, nil)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(records))
	for _, r := range records {
		if v, ok := r.Get("name"); ok {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
