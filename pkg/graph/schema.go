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

// dropIndexes are the known low-cardinality indexes dropped on every
// bootstrap, per spec.md §4.5 "Schema bootstrap".
var dropIndexes = []string{
	"DROP INDEX ON :Function(visibility)",
	"DROP INDEX ON :Function(is_async)",
	"DROP INDEX ON :Type(kind)",
}

// uniqueConstraints declares the primary-key uniqueness constraints named
// in spec.md §4.5.
var uniqueConstraints = []string{
	"CREATE CONSTRAINT ON (c:Crate) ASSERT c.name IS UNIQUE",
	"CREATE CONSTRAINT ON (f:Function) ASSERT f.id IS UNIQUE",
	"CREATE CONSTRAINT ON (t:Type) ASSERT t.id IS UNIQUE",
	"CREATE CONSTRAINT ON (m:Module) ASSERT m.path IS UNIQUE",
}

// highCardinalityIndexes speeds up the lookups the resolver and loader
// perform most often.
var highCardinalityIndexes = []string{
	"CREATE INDEX ON :Crate(name)",
	"CREATE INDEX ON :Function(qualified_name)",
	"CREATE INDEX ON :Type(name)",
	"CREATE INDEX ON :SPAWNS(method)",
	"CREATE INDEX ON :SENDS(method)",
}

// Bootstrap drops the known low-cardinality indexes, then declares the
// uniqueness constraints and high-cardinality indexes. Every statement is
// tolerant of "already exists"/"doesn't exist" failures, per spec.md §7
// "Schema bootstrap failures are tolerated (index may already exist)".
func (c *Client) Bootstrap(ctx context.Context) {
	for _, stmt := range dropIndexes {
		c.runTolerant(ctx, "graph.Bootstrap.dropIndex", stmt)
	}
	for _, stmt := range uniqueConstraints {
		c.runTolerant(ctx, "graph.Bootstrap.uniqueConstraint", stmt)
	}
	for _, stmt := range highCardinalityIndexes {
		c.runTolerant(ctx, "graph.Bootstrap.index", stmt)
	}
}

// runTolerant runs stmt and logs but does not propagate a failure, since
// schema bootstrap statements are expected to fail idempotently on re-runs.
func (c *Client) runTolerant(ctx context.Context, op, stmt string) {
	if err := c.run(ctx, op, stmt, nil); err != nil {
		c.logger.Debug("graph.schema.tolerated_failure", "op", op, "stmt", stmt, "err", err)
	}
}
