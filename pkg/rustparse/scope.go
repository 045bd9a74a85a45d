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

import "github.com/kraklabs/rcie/pkg/rustmodel"

// frameKind discriminates the scope frames pushed while walking a CST.
// SPEC_FULL.md §9 "Cyclic ownership of scopes": modeled as an append-only
// vector, never as a tree of pointers.
type frameKind int

const (
	frameModule frameKind = iota
	frameTrait
	frameImpl
	frameFunction
	frameMacro
)

// frame is one entry in the walker's scope stack.
type frame struct {
	kind      frameKind
	name      string // module/trait/impl-type/function/macro name
	isInline  bool   // Module: `mod foo { ... }` vs `mod foo;`
	traitName string // Impl: the implemented trait, "" if inherent
	generics  string // Trait/Impl: verbatim generic parameter text
	isAsync   bool   // Function
	isMethod  bool   // Function
	macroKind rustmodel.MacroType
}

// scopeStack is the append-only vector of frames plus the parallel module
// path, per SPEC_FULL.md §9. No parent pointers.
type scopeStack struct {
	frames     []frame
	modulePath []string
}

func newScopeStack() *scopeStack {
	return &scopeStack{}
}

func (s *scopeStack) push(f frame) {
	s.frames = append(s.frames, f)
	if f.kind == frameModule {
		s.modulePath = append(s.modulePath, f.name)
	}
}

// pop truncates the stack by one frame, and the module path if the popped
// frame was a module.
func (s *scopeStack) pop() {
	if len(s.frames) == 0 {
		return
	}
	last := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	if last.kind == frameModule && len(s.modulePath) > 0 {
		s.modulePath = s.modulePath[:len(s.modulePath)-1]
	}
}

// topOfKind returns the nearest frame of the given kind, searching from the
// top of the stack down, and whether one was found.
func (s *scopeStack) topOfKind(kind frameKind) (frame, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].kind == kind {
			return s.frames[i], true
		}
	}
	return frame{}, false
}

// top returns the very top frame, if any.
func (s *scopeStack) top() (frame, bool) {
	if len(s.frames) == 0 {
		return frame{}, false
	}
	return s.frames[len(s.frames)-1], true
}

// modulePathJoined returns the current module path, ":"-joined per
// spec.md §3 ("module_path (\":\"-joined)").
func (s *scopeStack) modulePathJoined() string {
	out := ""
	for i, p := range s.modulePath {
		if i > 0 {
			out += ":"
		}
		out += p
	}
	return out
}

// modulePathCopy snapshots the current module path for qualified-name
// construction (rustmodel.QualifiedName takes ownership of its slice).
func (s *scopeStack) modulePathCopy() []string {
	out := make([]string, len(s.modulePath))
	copy(out, s.modulePath)
	return out
}

// deriveFunctionContext computes a Function's FunctionContext from the
// topmost Impl/Trait/Macro frame, per spec.md §4.1 "Context derivation".
func (s *scopeStack) deriveFunctionContext() rustmodel.FunctionContext {
	if f, ok := s.top(); ok {
		switch f.kind {
		case frameMacro:
			return rustmodel.FunctionContext{Kind: rustmodel.ContextMacroExpansion, MacroName: f.name}
		}
	}
	if implFrame, ok := s.topOfKind(frameImpl); ok {
		if implFrame.traitName != "" {
			return rustmodel.FunctionContext{
				Kind:      rustmodel.ContextTraitImpl,
				TraitName: implFrame.traitName,
				TypeName:  implFrame.name,
			}
		}
		return rustmodel.FunctionContext{Kind: rustmodel.ContextRegularImpl, TypeName: implFrame.name}
	}
	if traitFrame, ok := s.topOfKind(frameTrait); ok {
		return rustmodel.FunctionContext{Kind: rustmodel.ContextTraitDecl, TraitName: traitFrame.name}
	}
	return rustmodel.FunctionContext{Kind: rustmodel.ContextFree}
}
