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

package rustparse

import (
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/rcie/pkg/rustmodel"
)

// detectMacroKind classifies a macro invocation by name, per spec.md §4.1
// "Macro invocation": {Paste, AsyncTrait, DistributedActor, Derive, Custom}.
func detectMacroKind(name string) rustmodel.MacroType {
	switch name {
	case "paste":
		return rustmodel.MacroPaste
	case "async_trait":
		return rustmodel.MacroAsyncTrait
	case "distributed_actor":
		return rustmodel.MacroDistributedActor
	case "derive":
		return rustmodel.MacroDerive
	default:
		return rustmodel.MacroCustom
	}
}

// handleMacroInvocation implements spec.md §4.1 "Macro invocation": pushes
// a Macro frame, emits a MacroExpansion with the verbatim pattern text and
// id "{file}:{line}:{name}", then recurses into the token tree. For
// distributed_actor!, scans the token tree for `struct Ident` and emits a
// DistributedActor.
func (w *Walker) handleMacroInvocation(n *sitter.Node) {
	name := w.macroNameOf(n)
	if name == "" {
		return
	}
	kind := detectMacroKind(name)
	w.emitMacroExpansion(n, name, kind, w.text(n))

	if kind == rustmodel.MacroDistributedActor {
		w.detectDistributedActorStruct(n)
	}

	w.scope.push(frame{kind: frameMacro, name: name, macroKind: kind})
	tokenTree := childByFieldName(n, "macro")
	_ = tokenTree
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "token_tree" {
			for j := 0; j < int(c.ChildCount()); j++ {
				w.collect(c.Child(j))
			}
		}
	}
	w.scope.pop()
}

var structNameAfterKeyword = regexp.MustCompile(`\bstruct\s+([A-Za-z_][A-Za-z0-9_]*)`)

// detectDistributedActorStruct implements the distributed_actor! struct
// scan named in spec.md §4.1: "scan the token tree for a struct keyword
// followed by an identifier and emit a Distributed Actor."
func (w *Walker) detectDistributedActorStruct(macroNode *sitter.Node) {
	txt := w.text(macroNode)
	m := structNameAfterKeyword.FindStringSubmatch(txt)
	if m == nil {
		return
	}
	name := m[1]
	if !rustmodel.IsValidActorName(name) {
		return
	}
	line := w.line(macroNode)
	da := rustmodel.DistributedActor{
		ActorName: name,
		CrateName: w.crateName,
		FilePath:  w.filePath,
		Line:      line,
	}
	da.ID = fmt.Sprintf("%s:%s:%d", w.crateName, name, line)
	w.batch.DistributedActors = append(w.batch.DistributedActors, da)

	qualified := rustmodel.QualifiedName(w.scope.modulePathCopy(), "", name)
	w.upsertActor(rustmodel.Actor{
		Name:          name,
		QualifiedName: qualified,
		CrateName:     w.crateName,
		ModulePath:    w.scope.modulePathJoined(),
		FilePath:      w.filePath,
		LineStart:     line,
		LineEnd:       w.endLine(macroNode),
		ActorType:     rustmodel.ActorDistributed,
		IsDistributed: true,
	})
	w.actorsByType[name] = true
}

// emitMacroExpansion records a MacroExpansion, deduplicated within the file
// by (file, line, macro_name) per spec.md §9 bullet 3.
func (w *Walker) emitMacroExpansion(n *sitter.Node, name string, kind rustmodel.MacroType, pattern string) {
	if name == "" {
		return
	}
	line := w.line(n)
	me := &rustmodel.MacroExpansion{
		ID:               fmt.Sprintf("%s:%d:%s", w.filePath, line, name),
		MacroName:        name,
		CrateName:        w.crateName,
		FilePath:         w.filePath,
		LineStart:        line,
		LineEnd:          w.endLine(n),
		MacroType:        kind,
		ExpansionPattern: strings.TrimSpace(pattern),
	}
	if containing, ok := w.scope.topOfKind(frameFunction); ok {
		_ = containing // name only; id resolved by the caller chain below
	}
	if len(w.functions) > 0 {
		for i := len(w.functions) - 1; i >= 0; i-- {
			fw := w.functions[i]
			if line >= int(fw.body.StartPoint().Row)+1 && line <= int(fw.body.EndPoint().Row)+1 {
				me.ContainingFunction = fw.fn.ID
				break
			}
		}
	}
	key := me.DedupKey()
	if _, exists := w.macroExpansions[key]; exists {
		return
	}
	w.macroExpansions[key] = me
}
