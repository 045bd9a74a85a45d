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

package graph

import (
	"context"

	"github.com/kraklabs/rcie/pkg/config"
)

// Clear implements spec.md §4.5 "Clearing": below config.ClearThreshold
// nodes, a single DETACH DELETE is cheap enough to run directly; above it,
// relationships and then nodes are deleted in batches of the configured
// batch_size, which avoids a single oversized transaction exhausting memory
// or holding a long-running lock. Only invoked when cfg.CleanStart is set
// (spec.md §6 "memgraph.clean_start").
func (c *Client) Clear(ctx context.Context) error {
	count := c.nodeCount(ctx)
	if count < config.ClearThreshold {
		return c.run(ctx, "graph.Clear", "MATCH (n) DETACH DELETE n", nil)
	}

	c.logger.Info("graph.clear.batched", "node_count", count)
	queries := []string{
		`MATCH ()-[r]->() WITH r LIMIT $limit DELETE r RETURN count(r) AS deleted`,
		`MATCH (n) WITH n LIMIT $limit DETACH DELETE n RETURN count(n) AS deleted`,
	}
	for _, q := range queries {
		for {
			rows, err := c.runAndCollect(ctx, q, map[string]any{"limit": c.batchSize()})
			if err != nil {
				return err
			}
			deleted := int64(0)
			if len(rows) > 0 {
				if v, ok := rows[0].Get("deleted"); ok {
					deleted = toInt64(v)
				}
			}
			if deleted == 0 {
				break
			}
		}
	}
	return nil
}

func (c *Client) nodeCount(ctx context.Context) int64 {
	rows, err := c.runAndCollect(ctx, "MATCH (n) RETURN count(n) AS c", nil)
	if err != nil || len(rows) == 0 {
		return 0
	}
	if v, ok := rows[0].Get("c"); ok {
		return toInt64(v)
	}
	return 0
}
