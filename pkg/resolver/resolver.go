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

// Package resolver disambiguates unqualified callee names against a global
// symbol table and per-file import scopes (spec.md §4.4), on the model of
// the teacher's CallResolver (pkg/ingestion/resolver.go): build indices
// once, then resolve many calls sequentially or in parallel depending on
// volume.
package resolver

import (
	"runtime"
	"strings"
	"sync"

	"github.com/kraklabs/rcie/pkg/rustmodel"
)

// SymbolKind enumerates what a ResolvedSymbol names.
type SymbolKind string

const (
	KindFunction SymbolKind = "Function"
	KindType     SymbolKind = "Type"
	KindModule   SymbolKind = "Module"
	KindConstant SymbolKind = "Constant"
)

// ResolvedSymbol is a single entry in the global symbol table.
type ResolvedSymbol struct {
	QualifiedName string
	Crate         string
	Kind          SymbolKind
}

// ImportedSymbol is one entry in a file's import table.
type ImportedSymbol struct {
	LocalName     string
	QualifiedName string
	Crate         string
}

// Resolver holds the symbol table and per-file import table built from a
// merged SymbolSet, and resolves FunctionCall records against them.
type Resolver struct {
	mu sync.RWMutex

	// byQualifiedName, byBareName, and byCrateAlias are the three index keys
	// named in spec.md §4.4 "Symbol table".
	byQualifiedName map[string]ResolvedSymbol
	byBareName      map[string][]ResolvedSymbol
	byCrateAlias    map[string]ResolvedSymbol

	// fileImports maps file path to its ImportedSymbol list.
	fileImports map[string][]ImportedSymbol

	// globImportFiles tracks which files had a glob (`use foo::*;`) import,
	// and from which module path, for the last-resort glob resolution step.
	globImportFiles map[string][]string
}

// New returns an empty Resolver.
func New() *Resolver {
	return &Resolver{
		byQualifiedName: make(map[string]ResolvedSymbol),
		byBareName:      make(map[string][]ResolvedSymbol),
		byCrateAlias:    make(map[string]ResolvedSymbol),
		fileImports:     make(map[string][]ImportedSymbol),
		globImportFiles: make(map[string][]string),
	}
}

// BuildIndex constructs the symbol table and import table from a merged
// SymbolSet. Call once after merge, before ResolveCalls.
func (r *Resolver) BuildIndex(set *rustmodel.SymbolSet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, fn := range set.Functions {
		r.indexSymbol(ResolvedSymbol{QualifiedName: fn.QualifiedName, Crate: fn.CrateName, Kind: KindFunction})
	}
	for _, t := range set.Types {
		r.indexSymbol(ResolvedSymbol{QualifiedName: t.QualifiedName, Crate: t.CrateName, Kind: KindType})
	}

	for _, imp := range set.Imports {
		if imp.ImportType == rustmodel.ImportGlob {
			r.globImportFiles[imp.FilePath] = append(r.globImportFiles[imp.FilePath], imp.ModulePath)
			continue
		}
		for _, item := range imp.ImportedItems {
			local := item.Name
			if item.Alias != "" {
				local = item.Alias
			}
			qualified := item.Name
			if imp.ModulePath != "" {
				qualified = imp.ModulePath + "::" + item.Name
			}
			r.fileImports[imp.FilePath] = append(r.fileImports[imp.FilePath], ImportedSymbol{
				LocalName:     local,
				QualifiedName: qualified,
			})
		}
	}
}

func (r *Resolver) indexSymbol(sym ResolvedSymbol) {
	r.byQualifiedName[sym.QualifiedName] = sym
	bare := rightmostSegment(sym.QualifiedName)
	r.byBareName[bare] = append(r.byBareName[bare], sym)

	// cross-crate alias: `crate::X` rewritten to `{crate_name}::X`.
	if strings.HasPrefix(sym.QualifiedName, "crate::") {
		alias := sym.Crate + "::" + strings.TrimPrefix(sym.QualifiedName, "crate::")
		r.byCrateAlias[alias] = sym
	}
}

func rightmostSegment(path string) string {
	if idx := strings.LastIndex(path, "::"); idx >= 0 {
		return path[idx+2:]
	}
	return path
}

// parallelThreshold is the call-count cutoff above which ResolveCalls
// switches from sequential to worker-pool resolution, per spec.md §4.4 and
// SPEC_FULL.md §4.4.1 (same threshold and cap as the teacher's CallResolver).
const parallelThreshold = 1000

// maxWorkers caps the resolution worker pool, as the teacher's
// resolveCallsParallel does.
func maxWorkers() int {
	n := runtime.NumCPU()
	if n > 8 {
		return 8
	}
	return n
}

// ResolveCalls resolves qualified_callee/to_crate/cross_crate in place on
// each call and returns the resolved slice.
func (r *Resolver) ResolveCalls(calls []rustmodel.FunctionCall) []rustmodel.FunctionCall {
	if len(calls) < parallelThreshold {
		for i := range calls {
			r.resolveOne(&calls[i])
		}
		return calls
	}

	numWorkers := maxWorkers()
	jobs := make(chan int, len(calls))
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				r.resolveOne(&calls[i])
			}
		}()
	}
	for i := range calls {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return calls
}

// resolveOne implements spec.md §4.4's 5-step resolution order.
func (r *Resolver) resolveOne(call *rustmodel.FunctionCall) {
	if call.IsSynthetic {
		return // macro-engine synthetic calls already carry their target
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	name := call.CalleeName

	// Step 1: callee_name contains "::" — exact, crate:: rewrite, suffix match.
	if strings.Contains(name, "::") {
		if sym, ok := r.byQualifiedName[name]; ok {
			r.apply(call, sym)
			return
		}
		if sym, ok := r.byCrateAlias[name]; ok {
			r.apply(call, sym)
			return
		}
		suffix := "::" + name
		for qn, sym := range r.byQualifiedName {
			if strings.HasSuffix(qn, suffix) {
				r.apply(call, sym)
				return
			}
		}
	}

	// Step 2: callee_name contains "." — object.method.
	if strings.Contains(name, ".") {
		parts := strings.SplitN(name, ".", 2)
		method := parts[1]
		if sym, ok := r.byQualifiedName[call.CallerModule+"::"+method]; ok {
			r.apply(call, sym)
			return
		}
		if sym, ok := r.byQualifiedName[call.FromCrate+"::"+method]; ok {
			r.apply(call, sym)
			return
		}
		if syms, ok := r.byBareName[method]; ok && len(syms) > 0 {
			r.apply(call, syms[0])
			return
		}
	}

	// Step 3: file's import table.
	for _, imp := range r.fileImports[call.FilePath] {
		if imp.LocalName == name {
			if sym, ok := r.byQualifiedName[imp.QualifiedName]; ok {
				r.apply(call, sym)
				return
			}
		}
	}

	// Step 4: module::callee, crate::callee, callee.
	if call.CallerModule != "" {
		if sym, ok := r.byQualifiedName[call.CallerModule+"::"+name]; ok {
			r.apply(call, sym)
			return
		}
	}
	if sym, ok := r.byQualifiedName[call.FromCrate+"::"+name]; ok {
		r.apply(call, sym)
		return
	}
	if syms, ok := r.byBareName[name]; ok {
		if sym := r.uniqueCrateMatch(syms, call.FromCrate); sym != nil {
			r.apply(call, *sym)
			return
		}
	}

	// Last resort: glob imports in this file — scan candidates, accept only a
	// unique crate match (spec.md §4.4 "Per-file import table").
	var globMatch *ResolvedSymbol
	globCrates := make(map[string]bool)
	for _, modPath := range r.globImportFiles[call.FilePath] {
		if sym, ok := r.byQualifiedName[modPath+"::"+name]; ok {
			if globMatch == nil {
				s := sym
				globMatch = &s
			}
			globCrates[sym.Crate] = true
		}
	}
	if len(globCrates) == 1 {
		r.apply(call, *globMatch)
		return
	}
	// Step 5: unresolved — leave qualified_callee empty.
}

// uniqueCrateMatch returns the only candidate when syms has one entry;
// otherwise the first candidate in preferCrate, if any; otherwise the first
// candidate if exactly one distinct crate is represented among syms, else
// nil (ambiguous).
func (r *Resolver) uniqueCrateMatch(syms []ResolvedSymbol, preferCrate string) *ResolvedSymbol {
	if len(syms) == 1 {
		return &syms[0]
	}
	for i := range syms {
		if syms[i].Crate == preferCrate {
			return &syms[i]
		}
	}
	crates := make(map[string]bool)
	for _, s := range syms {
		crates[s.Crate] = true
	}
	if len(crates) == 1 {
		return &syms[0]
	}
	return nil
}

func (r *Resolver) apply(call *rustmodel.FunctionCall, sym ResolvedSymbol) {
	call.QualifiedCallee = sym.QualifiedName
	call.ToCrate = sym.Crate
	call.CrossCrate = call.FromCrate != "" && sym.Crate != "" && call.FromCrate != sym.Crate
}
