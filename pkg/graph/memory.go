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

import "context"

// GetDatabaseMetrics implements spec.md §6 "get_database_metrics()",
// surfacing the memory figures the post-load FREE MEMORY trigger reads.
func (c *Client) GetDatabaseMetrics(ctx context.Context) map[string]int64 {
	metrics := map[string]int64{"memory_usage_mb": 0, "peak_memory_mb": 0}
	rows, err := c.runAndCollect(ctx, "SHOW STORAGE INFO", nil)
	if err != nil {
		c.logger.Debug("graph.database_metrics.query_failed", "err", err)
		return metrics
	}
	for _, r := range rows {
		name, ok := r.Get("storage info")
		if !ok {
			continue
		}
		key, ok := name.(string)
		if !ok {
			continue
		}
		v, ok := r.Get("value")
		if !ok {
			continue
		}
		switch key {
		case "memory_usage":
			metrics["memory_usage_mb"] = toInt64(v) / (1024 * 1024)
		case "peak_memory_usage":
			metrics["peak_memory_mb"] = toInt64(v) / (1024 * 1024)
		}
	}
	return metrics
}

// MaybeFreeMemory issues FREE MEMORY when the observed usage exceeds
// cfg.Memory.AutoFreeThresholdMB, per SPEC_FULL.md §4.5.2. Called after a
// bulk-import pass completes; failures are logged and otherwise ignored,
// since FREE MEMORY is an optimization, not a correctness requirement.
func (c *Client) MaybeFreeMemory(ctx context.Context) {
	threshold := c.cfg.Memory.AutoFreeThresholdMB
	if threshold <= 0 {
		return
	}
	metrics := c.GetDatabaseMetrics(ctx)
	usage := metrics["memory_usage_mb"]
	if usage < int64(threshold) {
		return
	}
	c.logger.Info("graph.memory.free_memory_triggered", "usage_mb", usage, "threshold_mb", threshold)
	if err := c.run(ctx, "graph.MaybeFreeMemory", "FREE MEMORY", nil); err != nil {
		c.logger.Warn("graph.memory.free_memory_failed", "err", err)
	}
}
