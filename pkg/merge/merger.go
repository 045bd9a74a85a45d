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

// Package merge combines per-file SymbolBatch results into one
// workspace-wide, deduplicated SymbolSet (spec.md §2 step 4). Per-file
// extraction order is irrelevant to the result: batches are sorted by file
// path before merging and every entity type is deduplicated by its fixed
// identity key, so merger output is independent of the order batches arrive
// in (spec.md §9 "Per-file extraction order is irrelevant").
package merge

import (
	"sort"

	"github.com/kraklabs/rcie/pkg/rustmodel"
)

// Merger accumulates SymbolBatch values and folds them into a SymbolSet,
// applying each entity's DedupKey. Modeled on the teacher's
// LocalPipeline.parseFilesParallel/parseFilesSequential result-folding loop
// (pkg/ingestion/local_pipeline.go), generalized from flat slice
// concatenation to keyed dedup.
type Merger struct {
	set *rustmodel.SymbolSet

	seenFunctions   map[string]bool
	seenTypes       map[string]bool
	seenImpls       map[string]bool
	seenActors      map[string]bool
	seenHandlers    map[string]bool
	seenSends       map[string]bool
	seenSpawns      map[string]bool
	seenDistributed map[string]bool
	seenMacros      map[string]bool
}

// New returns an empty Merger.
func New() *Merger {
	return &Merger{
		set:             rustmodel.NewSymbolSet(),
		seenFunctions:   make(map[string]bool),
		seenTypes:       make(map[string]bool),
		seenImpls:       make(map[string]bool),
		seenActors:      make(map[string]bool),
		seenHandlers:    make(map[string]bool),
		seenSends:       make(map[string]bool),
		seenSpawns:      make(map[string]bool),
		seenDistributed: make(map[string]bool),
		seenMacros:      make(map[string]bool),
	}
}

// Merge folds a slice of per-file batches into one SymbolSet. Batches are
// sorted by FilePath first so the result does not depend on the order
// batches were produced in (e.g. by a parallel parse stage).
func Merge(batches []*rustmodel.SymbolBatch) *rustmodel.SymbolSet {
	sorted := make([]*rustmodel.SymbolBatch, len(batches))
	copy(sorted, batches)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FilePath < sorted[j].FilePath })

	m := New()
	for _, b := range sorted {
		m.Add(b)
	}
	return m.Set()
}

// Add folds one batch into the accumulating SymbolSet.
func (m *Merger) Add(b *rustmodel.SymbolBatch) {
	for i := range b.Functions {
		m.AddFunction(b.Functions[i])
	}
	for i := range b.Types {
		m.AddType(b.Types[i])
	}
	for i := range b.Impls {
		m.AddImpl(b.Impls[i])
	}
	for i := range b.Actors {
		m.AddActor(b.Actors[i])
	}
	for i := range b.MessageHandlers {
		m.AddMessageHandler(b.MessageHandlers[i])
	}
	for i := range b.MessageSends {
		m.AddMessageSend(b.MessageSends[i])
	}
	for i := range b.ActorSpawns {
		m.AddActorSpawn(b.ActorSpawns[i])
	}
	for i := range b.DistributedActors {
		m.AddDistributedActor(b.DistributedActors[i])
	}
	for i := range b.MacroExpansions {
		m.AddMacroExpansion(b.MacroExpansions[i])
	}
	// Unkeyed, append-only collections: every entry is kept.
	m.set.MessageTypes = append(m.set.MessageTypes, b.MessageTypes...)
	m.set.Imports = append(m.set.Imports, b.Imports...)
	m.set.Calls = append(m.set.Calls, b.Calls...)
	m.set.Errors = append(m.set.Errors, b.Errors...)
}

// AddFunction dedups by (qualified_name, line_start), spec.md §3.
func (m *Merger) AddFunction(f rustmodel.Function) {
	key := f.DedupKey()
	if m.seenFunctions[key] {
		return
	}
	m.seenFunctions[key] = true
	m.set.Functions = append(m.set.Functions, f)
}

// AddType dedups by (qualified_name, line_start).
func (m *Merger) AddType(t rustmodel.Type) {
	key := t.DedupKey()
	if m.seenTypes[key] {
		return
	}
	m.seenTypes[key] = true
	m.set.Types = append(m.set.Types, t)
}

// AddImpl dedups by (type_name, line_start); methods from a duplicate impl
// fragment are merged into the kept record instead of being dropped, since
// the same logical impl block can be revisited across macro expansion or
// multi-pass extraction. When the kept record has no trait and the duplicate
// does, the duplicate's trait name is taken over.
func (m *Merger) AddImpl(impl rustmodel.Impl) {
	key := impl.DedupKey()
	if m.seenImpls[key] {
		for i := range m.set.Impls {
			if m.set.Impls[i].DedupKey() == key {
				m.set.Impls[i].Methods = mergeUnique(m.set.Impls[i].Methods, impl.Methods)
				if impl.HasTrait() && !m.set.Impls[i].HasTrait() {
					m.set.Impls[i].TraitName = impl.TraitName
				}
				return
			}
		}
	}
	m.seenImpls[key] = true
	m.set.Impls = append(m.set.Impls, impl)
}

// AddActor dedups by (name, crate); local messages are unioned.
func (m *Merger) AddActor(a rustmodel.Actor) {
	key := a.DedupKey()
	if m.seenActors[key] {
		for i := range m.set.Actors {
			if m.set.Actors[i].DedupKey() == key {
				m.set.Actors[i].LocalMessages = mergeUnique(m.set.Actors[i].LocalMessages, a.LocalMessages)
				if a.IsDistributed {
					m.set.Actors[i].IsDistributed = true
					m.set.Actors[i].ActorType = rustmodel.ActorDistributed
				}
				return
			}
		}
	}
	m.seenActors[key] = true
	m.set.Actors = append(m.set.Actors, a)
}

// AddMessageHandler dedups by (actor, message, line).
func (m *Merger) AddMessageHandler(h rustmodel.MessageHandler) {
	key := h.DedupKey()
	if m.seenHandlers[key] {
		return
	}
	m.seenHandlers[key] = true
	m.set.MessageHandlers = append(m.set.MessageHandlers, h)
}

// AddMessageSend dedups by (crate, sender, receiver, message, line).
func (m *Merger) AddMessageSend(s rustmodel.MessageSend) {
	key := s.DedupKey()
	if m.seenSends[key] {
		return
	}
	m.seenSends[key] = true
	m.set.MessageSends = append(m.set.MessageSends, s)
}

// AddActorSpawn dedups by (parent, child, file, line).
func (m *Merger) AddActorSpawn(s rustmodel.ActorSpawn) {
	key := s.DedupKey()
	if m.seenSpawns[key] {
		return
	}
	m.seenSpawns[key] = true
	m.set.ActorSpawns = append(m.set.ActorSpawns, s)
}

// AddDistributedActor dedups by (crate, actor, line).
func (m *Merger) AddDistributedActor(d rustmodel.DistributedActor) {
	key := d.DedupKey()
	if m.seenDistributed[key] {
		return
	}
	m.seenDistributed[key] = true
	m.set.DistributedActors = append(m.set.DistributedActors, d)
}

// AddMacroExpansion dedups by (file, line, macro_name). This is the single
// enforcement point named in SPEC_FULL.md §9.1 "Double macro detection":
// both the walker's AST-based detector and the macro engine's regex pass
// are free to fire independently on the same construct, and this dedup is
// what keeps the final graph from double-counting it.
func (m *Merger) AddMacroExpansion(e rustmodel.MacroExpansion) {
	key := e.DedupKey()
	if m.seenMacros[key] {
		return
	}
	m.seenMacros[key] = true
	m.set.MacroExpansions = append(m.set.MacroExpansions, e)
}

// Set returns the accumulated SymbolSet.
func (m *Merger) Set() *rustmodel.SymbolSet {
	return m.set
}

func mergeUnique(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, s := range existing {
		seen[s] = true
	}
	out := existing
	for _, s := range added {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
