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
	"strings"

	"github.com/kraklabs/rcie/pkg/config"
	"github.com/kraklabs/rcie/pkg/rustmodel"
)

// LoadSet performs the full upsert sequence for a merged, resolved
// SymbolSet: nodes first (so every function/type exists as a MERGE target),
// then edges, per spec.md §4.5 "Upsert semantics".
func (c *Client) LoadSet(ctx context.Context, set *rustmodel.SymbolSet) {
	c.loadCrates(ctx, set)
	c.loadFunctions(ctx, set)
	c.loadTypes(ctx, set)
	c.loadActors(ctx, set)
	c.loadMessageTypes(ctx, set)
	c.loadDistributedActors(ctx, set)
	c.loadMacroExpansions(ctx, set)

	c.loadCallEdges(ctx, set)
	c.loadImplEdges(ctx, set)
	c.loadSpawnEdges(ctx, set)
	c.loadHandlerEdges(ctx, set)
	c.loadSendEdges(ctx, set)
}

func (c *Client) batchSize() int {
	if c.cfg.BatchSize > 0 {
		return c.cfg.BatchSize
	}
	return 50
}

// chunk splits n into batches of the configured batch size, used by every
// load* method so a single failing batch does not abort the whole run
// (spec.md §7 "Partial-failure behavior").
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 50
	}
	var out [][]T
	for len(items) > 0 {
		n := size
		if n > len(items) {
			n = len(items)
		}
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}

func (c *Client) loadCrates(ctx context.Context, set *rustmodel.SymbolSet) {
	seen := map[string]bool{}
	names := make([]string, 0)
	for _, f := range set.Functions {
		if !seen[f.CrateName] {
			seen[f.CrateName] = true
			names = append(names, f.CrateName)
		}
	}
	for _, t := range set.Types {
		if !seen[t.CrateName] {
			seen[t.CrateName] = true
			names = append(names, t.CrateName)
		}
	}
	const q = `UNWIND $names AS name MERGE (c:Crate {name: name})`
	for _, group := range chunk(names, c.batchSize()) {
		if err := c.run(ctx, "graph.loadCrates", q, map[string]any{"names": group}); err != nil {
			c.logger.Warn("graph.loadCrates.failed", "err", err)
			c.stats.NodesFailed += len(group)
			continue
		}
		c.stats.NodesCreated += len(group)
	}
}

func (c *Client) loadFunctions(ctx context.Context, set *rustmodel.SymbolSet) {
	const q = `
UNWIND $rows AS row
MERGE (f:Function {id: row.id})
SET f.name = row.name,
    f.qualified_name = row.qualified_name,
    f.crate = row.crate,
    f.module_path = row.module_path,
    f.file_path = row.file_path,
    f.line_start = row.line_start,
    f.line_end = row.line_end,
    f.visibility = row.visibility,
    f.is_async = row.is_async,
    f.is_unsafe = row.is_unsafe,
    f.is_generic = row.is_generic,
    f.is_test = row.is_test,
    f.is_trait_impl = row.is_trait_impl,
    f.is_method = row.is_method,
    f.return_type = row.return_type,
    f.signature = row.signature,
    f.is_synthetic = coalesce(f.is_synthetic, false),
    f.created_by_macro = coalesce(f.created_by_macro, false)
WITH f, row
MATCH (c:Crate {name: row.crate})
MERGE (c)-[:DECLARES]->(f)`
	rows := make([]map[string]any, 0, len(set.Functions))
	for _, f := range set.Functions {
		rows = append(rows, map[string]any{
			"id": f.ID, "name": f.Name, "qualified_name": f.QualifiedName,
			"crate": f.CrateName, "module_path": f.ModulePath, "file_path": f.FilePath,
			"line_start": f.LineStart, "line_end": f.LineEnd, "visibility": f.Visibility,
			"is_async": f.IsAsync, "is_unsafe": f.IsUnsafe, "is_generic": f.IsGeneric,
			"is_test": f.IsTest, "is_trait_impl": f.IsTraitImpl, "is_method": f.IsMethod,
			"return_type": f.ReturnType, "signature": f.Signature,
		})
	}
	for _, group := range chunk(rows, c.batchSize()) {
		if err := c.run(ctx, "graph.loadFunctions", q, map[string]any{"rows": group}); err != nil {
			c.logger.Warn("graph.loadFunctions.failed", "err", err)
			c.stats.NodesFailed += len(group)
			continue
		}
		c.stats.NodesCreated += len(group)
	}
}

func (c *Client) loadTypes(ctx context.Context, set *rustmodel.SymbolSet) {
	const q = `
UNWIND $rows AS row
MERGE (t:Type {id: row.id})
SET t.name = row.name,
    t.qualified_name = row.qualified_name,
    t.crate = row.crate,
    t.module_path = row.module_path,
    t.file_path = row.file_path,
    t.line_start = row.line_start,
    t.line_end = row.line_end,
    t.kind = row.kind,
    t.visibility = row.visibility,
    t.is_generic = row.is_generic,
    t.is_test = row.is_test
WITH t, row
MATCH (c:Crate {name: row.crate})
MERGE (c)-[:DECLARES]->(t)`
	rows := make([]map[string]any, 0, len(set.Types))
	for _, t := range set.Types {
		rows = append(rows, map[string]any{
			"id": t.ID, "name": t.Name, "qualified_name": t.QualifiedName,
			"crate": t.CrateName, "module_path": t.ModulePath, "file_path": t.FilePath,
			"line_start": t.LineStart, "line_end": t.LineEnd, "kind": string(t.Kind),
			"visibility": t.Visibility, "is_generic": t.IsGeneric, "is_test": t.IsTest,
		})
	}
	for _, group := range chunk(rows, c.batchSize()) {
		if err := c.run(ctx, "graph.loadTypes", q, map[string]any{"rows": group}); err != nil {
			c.logger.Warn("graph.loadTypes.failed", "err", err)
			c.stats.NodesFailed += len(group)
			continue
		}
		c.stats.NodesCreated += len(group)
	}
}

func (c *Client) loadActors(ctx context.Context, set *rustmodel.SymbolSet) {
	const q = `
UNWIND $rows AS row
MERGE (a:Actor {name: row.name, crate: row.crate})
SET a.qualified_name = row.qualified_name,
    a.module_path = row.module_path,
    a.file_path = row.file_path,
    a.line_start = row.line_start,
    a.line_end = row.line_end,
    a.actor_type = row.actor_type,
    a.is_distributed = row.is_distributed,
    a.is_test = row.is_test`
	rows := make([]map[string]any, 0, len(set.Actors))
	for _, a := range set.Actors {
		rows = append(rows, map[string]any{
			"name": a.Name, "crate": a.CrateName, "qualified_name": a.QualifiedName,
			"module_path": a.ModulePath, "file_path": a.FilePath, "line_start": a.LineStart,
			"line_end": a.LineEnd, "actor_type": string(a.ActorType),
			"is_distributed": a.IsDistributed, "is_test": a.IsTest,
		})
	}
	for _, group := range chunk(rows, c.batchSize()) {
		if err := c.run(ctx, "graph.loadActors", q, map[string]any{"rows": group}); err != nil {
			c.logger.Warn("graph.loadActors.failed", "err", err)
			c.stats.NodesFailed += len(group)
			continue
		}
		c.stats.NodesCreated += len(group)
	}
}

func (c *Client) loadMessageTypes(ctx context.Context, set *rustmodel.SymbolSet) {
	const q = `
UNWIND $rows AS row
MERGE (m:Message {id: row.id})
SET m.name = row.name, m.qualified_name = row.qualified_name, m.crate = row.crate,
    m.kind = row.kind, m.file_path = row.file_path, m.line_start = row.line_start`
	rows := make([]map[string]any, 0, len(set.MessageTypes))
	for _, m := range set.MessageTypes {
		rows = append(rows, map[string]any{
			"id": m.ID, "name": m.Name, "qualified_name": m.QualifiedName,
			"crate": m.CrateName, "kind": string(m.Kind), "file_path": m.FilePath,
			"line_start": m.LineStart,
		})
	}
	for _, group := range chunk(rows, c.batchSize()) {
		if err := c.run(ctx, "graph.loadMessageTypes", q, map[string]any{"rows": group}); err != nil {
			c.logger.Warn("graph.loadMessageTypes.failed", "err", err)
			c.stats.NodesFailed += len(group)
			continue
		}
		c.stats.NodesCreated += len(group)
	}
}

func (c *Client) loadDistributedActors(ctx context.Context, set *rustmodel.SymbolSet) {
	const q = `
UNWIND $rows AS row
MATCH (a:Actor {name: row.actor_name, crate: row.crate})
SET a.is_distributed = true
MERGE (d:DistributedActor {crate: row.crate, actor_name: row.actor_name, line: row.line})
MERGE (d)-[:IMPLEMENTS]->(a)`
	rows := make([]map[string]any, 0, len(set.DistributedActors))
	for _, d := range set.DistributedActors {
		rows = append(rows, map[string]any{
			"actor_name": d.ActorName, "crate": d.CrateName, "line": d.Line,
		})
	}
	for _, group := range chunk(rows, c.batchSize()) {
		if err := c.run(ctx, "graph.loadDistributedActors", q, map[string]any{"rows": group}); err != nil {
			c.logger.Warn("graph.loadDistributedActors.failed", "err", err)
			continue
		}
	}
}

func (c *Client) loadMacroExpansions(ctx context.Context, set *rustmodel.SymbolSet) {
	const q = `
UNWIND $rows AS row
MERGE (m:MacroExpansion {file_path: row.file_path, line_start: row.line_start, macro_name: row.macro_name})
SET m.macro_type = row.macro_type, m.expansion_pattern = row.expansion_pattern, m.crate = row.crate`
	rows := make([]map[string]any, 0, len(set.MacroExpansions))
	for _, m := range set.MacroExpansions {
		rows = append(rows, map[string]any{
			"file_path": m.FilePath, "line_start": m.LineStart, "macro_name": m.MacroName,
			"macro_type": string(m.MacroType), "expansion_pattern": m.ExpansionPattern,
			"crate": m.CrateName,
		})
	}
	for _, group := range chunk(rows, c.batchSize()) {
		if err := c.run(ctx, "graph.loadMacroExpansions", q, map[string]any{"rows": group}); err != nil {
			c.logger.Warn("graph.loadMacroExpansions.failed", "err", err)
			continue
		}
	}
}

func (c *Client) loadImplEdges(ctx context.Context, set *rustmodel.SymbolSet) {
	const q = `
UNWIND $rows AS row
MATCH (t:Type {name: row.type_name})
MATCH (tr:Type {name: row.trait_name})
MERGE (t)-[:IMPLEMENTS]->(tr)`
	// Trait-impl edges target the trait's own Type record; Impl blocks on
	// external/foreign traits have no matching Type node in the analyzed
	// workspace and are intentionally skipped, per spec.md §4.5 "the
	// IMPLEMENTS edge only materializes for traits declared in the analyzed
	// workspace."
	rows := make([]map[string]any, 0, len(set.Impls))
	for _, i := range set.Impls {
		if !i.HasTrait() {
			continue
		}
		rows = append(rows, map[string]any{"type_name": i.TypeName, "trait_name": i.TraitName})
	}
	if len(rows) == 0 {
		return
	}
	for _, group := range chunk(rows, c.batchSize()) {
		if err := c.run(ctx, "graph.loadImplEdges", q, map[string]any{"rows": group}); err != nil {
			c.logger.Warn("graph.loadImplEdges.failed", "err", err)
			continue
		}
	}
}

// loadCallEdges implements the three call-edge creation rules from spec.md
// §4.5: synthetic calls get a placeholder target if none resolved;
// qualified (resolved, cross-crate-capable) calls MERGE directly on
// qualified_name; unqualified calls MATCH every Function with the same bare
// name in the caller's crate, and are dropped (no placeholder) when none
// matches.
func (c *Client) loadCallEdges(ctx context.Context, set *rustmodel.SymbolSet) {
	synthetic, qualified, unqualified := splitCalls(set.Calls)

	c.loadSyntheticCallEdges(ctx, synthetic)
	c.loadQualifiedCallEdges(ctx, qualified)
	c.loadUnqualifiedCallEdges(ctx, unqualified)
}

func splitCalls(calls []rustmodel.FunctionCall) (synthetic, qualified, unqualified []rustmodel.FunctionCall) {
	for _, call := range calls {
		switch {
		case call.IsSynthetic:
			synthetic = append(synthetic, call)
		case call.QualifiedCallee != "":
			qualified = append(qualified, call)
		default:
			unqualified = append(unqualified, call)
		}
	}
	return
}

// loadSyntheticCallEdges implements spec.md §4.5's synthetic-call rule:
// MATCH the caller; look for an existing Function by qualified_name or by
// the last-three-segment suffix; if none is found, MERGE a placeholder
// Function with is_synthetic=true, created_by_macro=true, then MERGE the
// CALLS edge marked is_synthetic with its confidence.
func (c *Client) loadSyntheticCallEdges(ctx context.Context, calls []rustmodel.FunctionCall) {
	const q = `
UNWIND $rows AS row
MATCH (caller:Function {id: row.caller_id})
OPTIONAL MATCH (direct:Function {qualified_name: row.callee})
OPTIONAL MATCH (suffixed:Function) WHERE suffixed.qualified_name ENDS WITH row.callee_suffix
WITH caller, row, coalesce(direct, suffixed) AS target
FOREACH (_ IN CASE WHEN target IS NULL THEN [1] ELSE [] END |
  MERGE (placeholder:Function {qualified_name: row.callee})
  ON CREATE SET placeholder.id = row.callee, placeholder.name = row.callee_name,
                placeholder.is_synthetic = true, placeholder.created_by_macro = true
  MERGE (caller)-[e:CALLS {line: row.line}]->(placeholder)
  SET e.is_synthetic = true, e.confidence = row.confidence, e.call_type = row.call_type
)
WITH caller, row, target
FOREACH (_ IN CASE WHEN target IS NOT NULL THEN [1] ELSE [] END |
  MERGE (caller)-[e:CALLS {line: row.line}]->(target)
  SET e.is_synthetic = true, e.confidence = row.confidence, e.call_type = row.call_type
)`
	rows := make([]map[string]any, 0, len(calls))
	for _, call := range calls {
		callee := call.QualifiedCallee
		if callee == "" {
			callee = call.CalleeName
		}
		rows = append(rows, map[string]any{
			"caller_id": call.CallerID, "callee": callee, "callee_name": call.CalleeName,
			"callee_suffix": lastSegmentsSuffix(callee, 3), "line": call.Line,
			"confidence": call.SyntheticConfidence, "call_type": string(call.CallType),
		})
	}
	c.runEdgeBatches(ctx, "graph.loadSyntheticCallEdges", q, rows)
}

// loadQualifiedCallEdges handles resolved, non-synthetic calls: the callee
// is known to exist (the resolver matched it in the symbol table), so a
// direct MERGE on qualified_name is sufficient.
func (c *Client) loadQualifiedCallEdges(ctx context.Context, calls []rustmodel.FunctionCall) {
	const q = `
UNWIND $rows AS row
MATCH (caller:Function {id: row.caller_id})
MATCH (callee:Function {qualified_name: row.callee})
MERGE (caller)-[e:CALLS {line: row.line}]->(callee)
SET e.is_synthetic = false, e.cross_crate = row.cross_crate, e.call_type = row.call_type`
	rows := make([]map[string]any, 0, len(calls))
	for _, call := range calls {
		rows = append(rows, map[string]any{
			"caller_id": call.CallerID, "callee": call.QualifiedCallee, "line": call.Line,
			"cross_crate": call.CrossCrate, "call_type": string(call.CallType),
		})
	}
	c.runEdgeBatches(ctx, "graph.loadQualifiedCallEdges", q, rows)
}

// loadUnqualifiedCallEdges handles calls the resolver could not attach a
// qualified_name to (e.g. a macro-generated or dynamically dispatched
// callee never declared locally): a best-effort MATCH by bare name, and if
// nothing matches the call is dropped rather than fabricating a node, since
// an unqualified call is not confident enough to justify a placeholder
// (spec.md §4.5 distinguishes this from the synthetic-call rule, which
// carries an explicit confidence score).
func (c *Client) loadUnqualifiedCallEdges(ctx context.Context, calls []rustmodel.FunctionCall) {
	const q = `
UNWIND $rows AS row
MATCH (caller:Function {id: row.caller_id})
MATCH (callee:Function {name: row.callee_name})
WHERE callee.crate = row.from_crate
MERGE (caller)-[e:CALLS {line: row.line}]->(callee)
SET e.is_synthetic = false, e.cross_crate = false, e.call_type = row.call_type`
	rows := make([]map[string]any, 0, len(calls))
	for _, call := range calls {
		rows = append(rows, map[string]any{
			"caller_id": call.CallerID, "callee_name": call.CalleeName, "line": call.Line,
			"from_crate": call.FromCrate, "call_type": string(call.CallType),
		})
	}
	c.runEdgeBatches(ctx, "graph.loadUnqualifiedCallEdges", q, rows)
}

func (c *Client) runEdgeBatches(ctx context.Context, op, q string, rows []map[string]any) {
	for _, group := range chunk(rows, config.EdgeBatchSize) {
		if err := c.run(ctx, op, q, map[string]any{"rows": group}); err != nil {
			c.logger.Warn(op+".failed", "err", err)
			c.stats.EdgesFailed += len(group)
			continue
		}
		c.stats.EdgesCreated += len(group)
	}
}

func (c *Client) loadHandlerEdges(ctx context.Context, set *rustmodel.SymbolSet) {
	const q = `
UNWIND $rows AS row
MATCH (a:Actor {name: row.actor_name})
MATCH (m:Message {name: row.message_type})
MERGE (a)-[e:HANDLES {line: row.line}]->(m)
SET e.is_async = row.is_async, e.reply_type = row.reply_type`
	rows := make([]map[string]any, 0, len(set.MessageHandlers))
	for _, h := range set.MessageHandlers {
		rows = append(rows, map[string]any{
			"actor_name": h.ActorName, "message_type": h.MessageType, "line": h.Line,
			"is_async": h.IsAsync, "reply_type": h.ReplyType,
		})
	}
	c.runEdgeBatches(ctx, "graph.loadHandlerEdges", q, rows)
}

func (c *Client) loadSendEdges(ctx context.Context, set *rustmodel.SymbolSet) {
	const q = `
UNWIND $rows AS row
MATCH (sender:Actor {name: row.sender})
MATCH (receiver:Actor {name: row.receiver})
MERGE (sender)-[e:SENDS {line: row.line, file_path: row.file_path}]->(receiver)
SET e.method = row.method, e.message_type = row.message_type`
	rows := make([]map[string]any, 0, len(set.MessageSends))
	for _, s := range set.MessageSends {
		receiver := s.ReceiverActor
		if receiver == "" {
			receiver = s.ReceiverLastSegment
		}
		rows = append(rows, map[string]any{
			"sender": s.SenderActor, "receiver": receiver, "line": s.Line,
			"file_path": s.FilePath, "method": string(s.SendMethod), "message_type": s.MessageType,
		})
	}
	c.runEdgeBatches(ctx, "graph.loadSendEdges", q, rows)
}

func (c *Client) loadSpawnEdges(ctx context.Context, set *rustmodel.SymbolSet) {
	const q = `
UNWIND $rows AS row
MATCH (parent:Actor {name: row.parent})
MATCH (child:Actor {name: row.child})
MERGE (parent)-[e:SPAWNS {line: row.line, file_path: row.file_path}]->(child)
SET e.method = row.method, e.pattern = row.pattern`
	rows := make([]map[string]any, 0, len(set.ActorSpawns))
	for _, s := range set.ActorSpawns {
		rows = append(rows, map[string]any{
			"parent": s.ParentActorName, "child": s.ChildActorName, "line": s.Line,
			"file_path": s.FilePath, "method": string(s.SpawnMethod), "pattern": string(s.SpawnPattern),
		})
	}
	c.runEdgeBatches(ctx, "graph.loadSpawnEdges", q, rows)
}

// lastSegmentsSuffix returns the trailing n "::"-separated segments of path,
// prefixed with "::" to match against a qualified_name's tail, per spec.md
// §4.5's "suffix of the last three path segments" synthetic-call fallback.
func lastSegmentsSuffix(path string, n int) string {
	segs := strings.Split(path, "::")
	if len(segs) <= n {
		return "::" + strings.Join(segs, "::")
	}
	return "::" + strings.Join(segs[len(segs)-n:], "::")
}
