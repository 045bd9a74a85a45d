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
	"time"
)

const (
	storageModeQueryTimeout  = 5 * time.Second
	storageModeSwitchTimeout = 10 * time.Second
)

// analyticalGuard restores IN_MEMORY_TRANSACTIONAL storage mode on exit,
// returned by EnterAnalyticalMode.
type analyticalGuard struct {
	c        *Client
	restored bool
}

// EnterAnalyticalMode switches Memgraph into IN_MEMORY_ANALYTICAL storage
// for the duration of a bulk import, per spec.md §4.5 "Bulk-import storage
// mode switching": query the current mode first (5s timeout), then issue the
// switch outside any transaction envelope (10s timeout) since STORAGE MODE is
// not itself transactional. A failure to switch is tolerated — the import
// proceeds in whatever mode is already active (spec.md §7 "storage-mode
// switch failures never abort the run").
func (c *Client) EnterAnalyticalMode(ctx context.Context) *analyticalGuard {
	if !c.cfg.Performance.UseAnalyticalMode {
		return &analyticalGuard{c: c, restored: true}
	}

	queryCtx, cancel := context.WithTimeout(ctx, storageModeQueryTimeout)
	defer cancel()
	current := c.currentStorageMode(queryCtx)
	if current == "IN_MEMORY_ANALYTICAL" {
		return &analyticalGuard{c: c, restored: true}
	}

	switchCtx, cancel2 := context.WithTimeout(ctx, storageModeSwitchTimeout)
	defer cancel2()
	if err := c.run(switchCtx, "graph.EnterAnalyticalMode", "STORAGE MODE IN_MEMORY_ANALYTICAL", nil); err != nil {
		c.logger.Warn("graph.storage_mode.switch_failed", "target", "IN_MEMORY_ANALYTICAL", "err", err)
		return &analyticalGuard{c: c, restored: true}
	}
	c.logger.Info("graph.storage_mode.switched", "mode", "IN_MEMORY_ANALYTICAL")
	return &analyticalGuard{c: c}
}

// Exit restores IN_MEMORY_TRANSACTIONAL mode. Safe to call multiple times.
func (g *analyticalGuard) Exit(ctx context.Context) {
	if g.restored {
		return
	}
	g.restored = true
	switchCtx, cancel := context.WithTimeout(ctx, storageModeSwitchTimeout)
	defer cancel()
	if err := g.c.run(switchCtx, "graph.ExitAnalyticalMode", "STORAGE MODE IN_MEMORY_TRANSACTIONAL", nil); err != nil {
		g.c.logger.Warn("graph.storage_mode.restore_failed", "target", "IN_MEMORY_TRANSACTIONAL", "err", err)
		return
	}
	g.c.logger.Info("graph.storage_mode.switched", "mode", "IN_MEMORY_TRANSACTIONAL")
}

func (c *Client) currentStorageMode(ctx context.Context) string {
	rows, err := c.runAndCollect(ctx, "SHOW STORAGE INFO", nil)
	if err != nil {
		c.logger.Debug("graph.storage_mode.query_failed", "err", err)
		return ""
	}
	for _, r := range rows {
		name, ok := r.Get("storage info")
		if !ok {
			continue
		}
		if s, ok := name.(string); ok && s == "storage_mode" {
			if v, ok := r.Get("value"); ok {
				if s, ok := v.(string); ok {
					return s
				}
			}
		}
	}
	return ""
}
