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

// Package rustparse implements the unified AST walker (SPEC_FULL.md §4.1),
// the CST-query fallback extractors (§4.2), and the macro expansion engine
// (§4.3) for the statically-typed, trait/actor-based source language the
// pipeline ingests.
package rustparse

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/kraklabs/rcie/pkg/merge"
	"github.com/kraklabs/rcie/pkg/rustmodel"
)

// rustFunctionWithNode pairs a collected Function with the CST node for its
// body, so the second pass can extract call sites without re-walking
// scope-opening constructs. Named on the model of the teacher's
// goFunctionWithNode (pkg/ingestion/parser_go.go).
type rustFunctionWithNode struct {
	fn   *rustmodel.Function
	body *sitter.Node
}

// Walker performs the two-phase traversal described in SPEC_FULL.md §4.1.1
// for a single file. A Walker is not safe for concurrent use; callers
// parsing multiple files concurrently use one Walker per goroutine (see
// Pool).
type Walker struct {
	source    []byte
	filePath  string
	crateName string
	scope     *scopeStack
	batch     *rustmodel.SymbolBatch
	functions []rustFunctionWithNode

	// actorsByType tracks whether an explicit `impl Actor for T` has already
	// been seen for T, so a later `impl Message<M> for T` does not also
	// synthesize an Actor with inferred_from_message=true (spec.md §3 Actor
	// lifecycle: "or from impl Message<M> for T (then inferred=true)").
	actorsByType map[string]bool

	macroExpansions map[string]*rustmodel.MacroExpansion // dedup within file by id

	// openImplLines remembers the start line of each (type,trait) impl block
	// currently open on the scope stack, since frames themselves carry no
	// position (SPEC_FULL.md §9 append-only vector of frames only).
	openImplLines map[implKey]int

	// actorRefFields maps a struct field name to its declared actor type for
	// every field typed ActorRef<T> or Option<ActorRef<T>> seen so far,
	// across the whole file. Used to resolve a single-hop self-field message
	// send (self.foo_ref.tell(msg)) to the field's declared type rather than
	// the raw field name, per spec.md §8. Grounded on the original's
	// actor_ref_map built by extract_struct_field_actor_refs in
	// original_source/src/parser/rust_parser.rs.
	actorRefFields map[string]string
}

// NewWalker constructs a Walker for one file's source.
func NewWalker(filePath, crateName string, source []byte) *Walker {
	return &Walker{
		source:          source,
		filePath:        filePath,
		crateName:       crateName,
		scope:           newScopeStack(),
		batch:           rustmodel.NewSymbolBatch(filePath),
		actorsByType:    make(map[string]bool),
		macroExpansions: make(map[string]*rustmodel.MacroExpansion),
		openImplLines:   make(map[implKey]int),
		actorRefFields:  make(map[string]string),
	}
}

// Pool wraps a sync.Pool of tree-sitter parsers configured for the Rust
// grammar, on the model of TreeSitterParser's per-language pools in
// pkg/ingestion/parser_treesitter.go.
type Pool struct {
	pool *sitterParserPool
}

// NewPool constructs a parser pool for the Rust grammar.
func NewPool() *Pool {
	return &Pool{pool: newSitterParserPool(func() *sitter.Parser {
		p := sitter.NewParser()
		p.SetLanguage(rust.GetLanguage())
		return p
	})}
}

// ParseFile parses source with a pooled Rust parser and runs the two-phase
// walk, returning a SymbolBatch. A parse whose error-node ratio exceeds
// maxErrorRatio falls back to the line-oriented extractor (§4.2.1).
func (p *Pool) ParseFile(ctx context.Context, filePath, crateName string, source []byte) (*rustmodel.SymbolBatch, error) {
	parser := p.pool.get()
	defer p.pool.put(parser)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return fallbackParse(filePath, crateName, source), nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if errorRatio(root) > maxErrorRatio {
		return fallbackParse(filePath, crateName, source), nil
	}

	walkerBatch := NewWalker(filePath, crateName, source).Walk(root)
	queryBatch := newQueryExtractor(filePath, crateName, source).Extract(root)

	// Reconcile the two independent passes through the merger's ordinary
	// dedup keys (spec.md §4.2): the walker's batch is added first, so a
	// construct both passes recognize keeps the walker's values (e.g.
	// is_trait_impl) per "the walker result wins when they disagree".
	m := merge.New()
	m.Add(walkerBatch)
	m.Add(queryBatch)
	return symbolBatchFromSet(filePath, m.Set()), nil
}

// symbolBatchFromSet converts a merged, workspace-shaped SymbolSet back into
// a per-file SymbolBatch so ParseFile's signature is unaffected by running a
// second extraction pass internally. SymbolBatch and SymbolSet carry the
// same entity slices (rustmodel/batch.go); only FilePath is batch-specific.
func symbolBatchFromSet(filePath string, set *rustmodel.SymbolSet) *rustmodel.SymbolBatch {
	return &rustmodel.SymbolBatch{
		FilePath:          filePath,
		Functions:         set.Functions,
		Types:             set.Types,
		Impls:             set.Impls,
		Imports:           set.Imports,
		Calls:             set.Calls,
		Actors:            set.Actors,
		ActorSpawns:       set.ActorSpawns,
		MessageTypes:      set.MessageTypes,
		MessageHandlers:   set.MessageHandlers,
		MessageSends:      set.MessageSends,
		DistributedActors: set.DistributedActors,
		MacroExpansions:   set.MacroExpansions,
		Errors:            set.Errors,
	}
}

const maxErrorRatio = 0.25

// errorRatio counts ERROR nodes against total nodes, on the model of
// TreeSitterParser.countErrors in pkg/ingestion/parser_treesitter.go.
func errorRatio(root *sitter.Node) float64 {
	var total, errs int
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		total++
		if n.Type() == "ERROR" {
			errs++
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	if total == 0 {
		return 0
	}
	return float64(errs) / float64(total)
}

// Walk runs the two-phase extraction over root and returns the batch.
func (w *Walker) Walk(root *sitter.Node) *rustmodel.SymbolBatch {
	w.collect(root)
	w.extractCalls()
	for _, me := range w.macroExpansions {
		w.batch.MacroExpansions = append(w.batch.MacroExpansions, *me)
	}
	return w.batch
}

func (w *Walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(w.source)
}

func (w *Walker) line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func (w *Walker) endLine(n *sitter.Node) int {
	return int(n.EndPoint().Row) + 1
}

// collect is the first pass: depth-first, scope-frame-stack-driven,
// recording every definition and leaving rustFunctionWithNode entries for
// the second pass (SPEC_FULL.md §4.1.1).
func (w *Walker) collect(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "function_item", "function_signature_item":
		w.handleFunctionItem(n)
		return // handler owns recursion into its own body
	case "impl_item":
		w.handleImplItem(n)
		return
	case "trait_item":
		w.handleTraitItem(n)
		return
	case "mod_item":
		w.handleModItem(n)
		return
	case "macro_invocation":
		w.handleMacroInvocation(n)
		return
	case "macro_definition":
		w.emitMacroExpansion(n, w.macroNameOf(n), rustmodel.MacroCustom, w.text(n))
		// fall through to generic recursion below
	case "struct_item":
		w.handleStructItem(n)
	case "enum_item":
		w.handleEnumItem(n)
	case "union_item":
		w.handleUnionItem(n)
	case "type_item":
		w.handleTypeAlias(n)
	case "use_declaration":
		w.handleUseDeclaration(n)
	case "attribute_item":
		w.handleAttributeItem(n)
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		w.collect(n.Child(i))
	}
}

func childByFieldName(n *sitter.Node, field string) *sitter.Node {
	if n == nil {
		return nil
	}
	return n.ChildByFieldName(field)
}

func (w *Walker) visibility(n *sitter.Node) string {
	if v := childByFieldName(n, "visibility_modifier"); v != nil {
		return w.text(v)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "visibility_modifier" {
			return w.text(c)
		}
	}
	return ""
}

func nodeHasChildOfType(n *sitter.Node, typ string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == typ {
			return true
		}
	}
	return false
}

// handleFunctionItem implements spec.md §4.1 "Node handlers" /
// "Function parameters" / "Trait-body handling" / "Impl-body handling".
func (w *Walker) handleFunctionItem(n *sitter.Node) {
	nameNode := childByFieldName(n, "name")
	name := w.text(nameNode)
	if name == "" {
		return
	}

	isAsync := nodeHasChildOfType(n, "async")
	isUnsafe := nodeHasChildOfType(n, "unsafe")
	isGeneric := childByFieldName(n, "type_parameters") != nil

	fnCtx := w.scope.deriveFunctionContext()
	isTraitImpl := fnCtx.Kind == rustmodel.ContextTraitImpl
	// function_signature_item (trait declaration without body) is never a
	// trait-impl method of its own (spec.md §4.1 "Trait-body handling").
	if n.Type() == "function_signature_item" {
		isTraitImpl = false
	}

	typeName := ""
	if fnCtx.Kind == rustmodel.ContextTraitImpl || fnCtx.Kind == rustmodel.ContextRegularImpl {
		typeName = fnCtx.TypeName
	}
	qualified := rustmodel.QualifiedName(w.scope.modulePathCopy(), typeName, name)

	params, isMethod := w.parseParameters(childByFieldName(n, "parameters"))

	fn := &rustmodel.Function{
		Name:            name,
		QualifiedName:   qualified,
		CrateName:       w.crateName,
		ModulePath:      w.scope.modulePathJoined(),
		FilePath:        w.filePath,
		LineStart:       w.line(n),
		LineEnd:         w.endLine(n),
		Visibility:      w.visibility(n),
		IsAsync:         isAsync,
		IsUnsafe:        isUnsafe,
		IsGeneric:       isGeneric,
		IsTest:          w.hasTestAttribute(n),
		IsTraitImpl:     isTraitImpl,
		IsMethod:        isMethod,
		Parameters:      params,
		ReturnType:      w.text(childByFieldName(n, "return_type")),
		Signature:       w.functionSignatureText(n),
		DocComment:      w.precedingDocComment(n),
		FunctionContext: fnCtx,
	}
	fn.GenerateID()
	w.batch.Functions = append(w.batch.Functions, *fn)
	fnPtr := &w.batch.Functions[len(w.batch.Functions)-1]

	// record the impl's method list (spec.md §4.1 "Impl-body handling")
	if implFrame, ok := w.scope.topOfKind(frameImpl); ok {
		for i := range w.batch.Impls {
			im := &w.batch.Impls[i]
			if im.TypeName == implFrame.name && im.LineStart == w.implLineFor(implFrame) {
				im.Methods = append(im.Methods, name)
			}
		}
	}

	body := childByFieldName(n, "body")
	w.scope.push(frame{kind: frameFunction, name: name, isAsync: isAsync, isMethod: isMethod})
	if body != nil {
		w.functions = append(w.functions, rustFunctionWithNode{fn: fnPtr, body: body})
		// descend into the body for nested items (nested fns, nested impls)
		// without re-emitting this function.
		for i := 0; i < int(body.ChildCount()); i++ {
			w.collect(body.Child(i))
		}
	}
	w.scope.pop()
}

// implLineFor finds the currently-open impl block's recorded start line by
// re-deriving it from the frame; frames do not carry a line number
// themselves (SPEC_FULL.md §9 append-only vector), so the impl handler
// stashes it in a side table indexed by (type,trait) pair instead. See
// handleImplItem.
func (w *Walker) implLineFor(f frame) int {
	return w.openImplLines[implKey{typeName: f.name, traitName: f.traitName}]
}

type implKey struct {
	typeName  string
	traitName string
}

func (w *Walker) parseParameters(params *sitter.Node) ([]rustmodel.Parameter, bool) {
	if params == nil {
		return nil, false
	}
	var out []rustmodel.Parameter
	isMethod := false
	for i := 0; i < int(params.ChildCount()); i++ {
		c := params.Child(i)
		switch c.Type() {
		case "self_parameter":
			isMethod = true
			txt := w.text(c)
			out = append(out, rustmodel.Parameter{
				Name:      "self",
				ParamType: "Self",
				IsSelf:    true,
				IsMutable: strings.Contains(txt, "mut"),
			})
		case "parameter":
			pattern := childByFieldName(c, "pattern")
			typ := childByFieldName(c, "type")
			out = append(out, rustmodel.Parameter{
				Name:      w.text(pattern),
				ParamType: w.text(typ),
				IsMutable: strings.Contains(w.text(pattern), "mut "),
			})
		}
	}
	return out, isMethod
}

func (w *Walker) functionSignatureText(n *sitter.Node) string {
	body := childByFieldName(n, "body")
	if body == nil {
		return w.text(n)
	}
	return strings.TrimSpace(w.text(n)[:int(body.StartByte())-int(n.StartByte())])
}

func (w *Walker) hasTestAttribute(n *sitter.Node) bool {
	// Attribute items are siblings that precede the function in the parent's
	// child list; scan backward from n among its parent's children.
	parent := n.Parent()
	if parent == nil {
		return false
	}
	found := false
	for i := 0; i < int(parent.ChildCount()); i++ {
		c := parent.Child(i)
		if c == n {
			break
		}
		if c.Type() == "attribute_item" {
			txt := w.text(c)
			if strings.Contains(txt, "test") {
				found = true
			} else {
				found = false
			}
		} else if c.Type() != "line_comment" && c.Type() != "block_comment" {
			found = false
		}
	}
	return found
}

func (w *Walker) precedingDocComment(n *sitter.Node) string {
	parent := n.Parent()
	if parent == nil {
		return ""
	}
	var lines []string
	collecting := false
	for i := 0; i < int(parent.ChildCount()); i++ {
		c := parent.Child(i)
		if c == n {
			break
		}
		if c.Type() == "line_comment" && strings.HasPrefix(w.text(c), "///") {
			lines = append(lines, strings.TrimPrefix(w.text(c), "///"))
			collecting = true
		} else {
			if !collecting {
				lines = nil
			}
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// handleModItem implements spec.md §4.1 module-frame pushing with the
// parallel module_path vector.
func (w *Walker) handleModItem(n *sitter.Node) {
	name := w.text(childByFieldName(n, "name"))
	body := childByFieldName(n, "body")
	isInline := body != nil

	w.scope.push(frame{kind: frameModule, name: name, isInline: isInline})
	if body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			w.collect(body.Child(i))
		}
	}
	w.scope.pop()
}

func (w *Walker) macroNameOf(n *sitter.Node) string {
	mac := childByFieldName(n, "macro")
	if mac == nil {
		return ""
	}
	return w.text(mac)
}

