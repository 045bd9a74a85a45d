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

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/kraklabs/rcie/pkg/rustmodel"
)

// QueryExtractor is the secondary, declarative extraction pass of
// spec.md §4.2: a set of flat tree-sitter Queries matched against the whole
// file, independent of the primary walker's scope-stack recursion
// (walker.go). It covers the same entity surface — functions, types, impl
// blocks (including actor impls, message types, message handlers), imports,
// calls (including actor spawns and message sends), and actor-ref variables
// — grounded on the query definitions in
// original_source/src/parser/rust_parser.rs (function_query, type_query,
// impl_query, call_query, import_query, actor_ref_query, and friends).
// Running both passes over the same file and reconciling through the
// merger's ordinary dedup keys is what makes spec.md §8's "impl block
// duplicated by both walker and query-extractor collapses to one record"
// boundary behavior possible.
type QueryExtractor struct {
	// qw is a Walker instance used purely as a node-to-record toolbox: its
	// text/line/visibility/field-parsing helpers never touch scope or batch
	// state on their own, so they are reused here verbatim. Its scope stack
	// is driven not by recursive descent but by pushAncestorScopes, which
	// replays the enclosing module/impl/trait frames for whichever node a
	// query just matched.
	qw *Walker
}

// newQueryExtractor constructs a QueryExtractor for one file's source.
func newQueryExtractor(filePath, crateName string, source []byte) *QueryExtractor {
	return &QueryExtractor{qw: NewWalker(filePath, crateName, source)}
}

// cstQueries holds the compiled queries shared by every QueryExtractor, on
// the model of the var-level regexp.MustCompile tables in macroengine and
// calls.go: these patterns are static, so a compile failure is a programming
// error caught at package init rather than at call time.
var cstQueries = mustCompileQueries()

type compiledQueries struct {
	function *sitter.Query
	typeDecl *sitter.Query
	impl     *sitter.Query
	call     *sitter.Query
	useDecl  *sitter.Query
	letDecl  *sitter.Query
}

func mustCompileQueries() *compiledQueries {
	lang := rust.GetLanguage()
	return &compiledQueries{
		function: mustQuery(lang, `[(function_item) (function_signature_item)] @item`),
		typeDecl: mustQuery(lang, `[(struct_item) (enum_item) (trait_item) (union_item) (type_item)] @item`),
		impl:     mustQuery(lang, `(impl_item) @item`),
		call:     mustQuery(lang, `(call_expression) @item`),
		useDecl:  mustQuery(lang, `(use_declaration) @item`),
		letDecl:  mustQuery(lang, `(let_declaration) @item`),
	}
}

func mustQuery(lang *sitter.Language, pattern string) *sitter.Query {
	q, err := sitter.NewQuery([]byte(pattern), lang)
	if err != nil {
		panic(fmt.Sprintf("rustparse: invalid CST query %q: %v", pattern, err))
	}
	return q
}

// runQuery executes q against root and invokes fn with every captured node.
func runQuery(q *sitter.Query, root *sitter.Node, fn func(n *sitter.Node)) {
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)
	for {
		m, ok := qc.NextMatch()
		if !ok {
			return
		}
		for _, c := range m.Captures {
			fn(c.Node)
		}
	}
}

// Extract runs every query over root and returns the resulting batch. It
// must run function-and-type extraction before call extraction, since
// call-site caller resolution (containingFunctionID) looks functions up by
// line range rather than by a second-pass body walk the way walker.go does.
func (qe *QueryExtractor) Extract(root *sitter.Node) *rustmodel.SymbolBatch {
	runQuery(cstQueries.function, root, qe.emitFunction)
	runQuery(cstQueries.typeDecl, root, qe.emitTypeNode)
	runQuery(cstQueries.impl, root, qe.emitImpl)
	runQuery(cstQueries.useDecl, root, func(n *sitter.Node) { qe.qw.handleUseDeclaration(n) })
	runQuery(cstQueries.letDecl, root, qe.emitActorRefVariable)
	runQuery(cstQueries.call, root, qe.emitCallSite)
	return qe.qw.batch
}

// pushAncestorScopes climbs n's ancestors outward-to-root, collects the
// mod_item/impl_item/trait_item frames enclosing n, and pushes them onto the
// toolbox Walker's scope stack from outermost to innermost — replaying, for
// this one node, the same frame sequence walker.go's recursive descent would
// have built. Returns the number of frames pushed, for popScopes.
func (w *Walker) pushAncestorScopes(n *sitter.Node) int {
	var ancestors []*sitter.Node
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "mod_item", "impl_item", "trait_item":
			ancestors = append(ancestors, p)
		}
	}
	for i, j := 0, len(ancestors)-1; i < j; i, j = i+1, j-1 {
		ancestors[i], ancestors[j] = ancestors[j], ancestors[i]
	}
	for _, p := range ancestors {
		switch p.Type() {
		case "mod_item":
			w.scope.push(frame{kind: frameModule, name: w.text(childByFieldName(p, "name"))})
		case "impl_item":
			typeName := baseTypeName(w.text(childByFieldName(p, "type")))
			traitName := baseTraitName(w.text(childByFieldName(p, "trait")))
			w.scope.push(frame{kind: frameImpl, name: typeName, traitName: traitName})
		case "trait_item":
			w.scope.push(frame{kind: frameTrait, name: w.text(childByFieldName(p, "name"))})
		}
	}
	return len(ancestors)
}

func (w *Walker) popScopes(depth int) {
	for i := 0; i < depth; i++ {
		w.scope.pop()
	}
}

// emitFunction mirrors handleFunctionItem's record construction without its
// recursive body descent or function-frame bookkeeping, since the flat query
// sweep visits every function_item directly regardless of nesting.
func (qe *QueryExtractor) emitFunction(n *sitter.Node) {
	w := qe.qw
	name := w.text(childByFieldName(n, "name"))
	if name == "" {
		return
	}
	depth := w.pushAncestorScopes(n)
	defer w.popScopes(depth)

	fnCtx := w.scope.deriveFunctionContext()
	isTraitImpl := fnCtx.Kind == rustmodel.ContextTraitImpl
	if n.Type() == "function_signature_item" {
		isTraitImpl = false
	}
	typeName := ""
	if fnCtx.Kind == rustmodel.ContextTraitImpl || fnCtx.Kind == rustmodel.ContextRegularImpl {
		typeName = fnCtx.TypeName
	}
	params, isMethod := w.parseParameters(childByFieldName(n, "parameters"))

	fn := rustmodel.Function{
		Name:            name,
		QualifiedName:   rustmodel.QualifiedName(w.scope.modulePathCopy(), typeName, name),
		CrateName:       w.crateName,
		ModulePath:      w.scope.modulePathJoined(),
		FilePath:        w.filePath,
		LineStart:       w.line(n),
		LineEnd:         w.endLine(n),
		Visibility:      w.visibility(n),
		IsAsync:         nodeHasChildOfType(n, "async"),
		IsUnsafe:        nodeHasChildOfType(n, "unsafe"),
		IsGeneric:       childByFieldName(n, "type_parameters") != nil,
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
	w.batch.Functions = append(w.batch.Functions, fn)
}

// emitTypeNode mirrors handleStructItem/handleEnumItem/handleUnionItem/
// handleTypeAlias/handleTraitItem's record construction.
func (qe *QueryExtractor) emitTypeNode(n *sitter.Node) {
	w := qe.qw
	depth := w.pushAncestorScopes(n)
	defer w.popScopes(depth)

	switch n.Type() {
	case "struct_item":
		fields := w.structFields(n)
		w.registerActorRefFields(fields)
		t := w.newTypeRecord(n, rustmodel.KindStruct)
		t.Fields = fields
		t.GenerateID()
		w.batch.Types = append(w.batch.Types, t)
	case "enum_item":
		t := w.newTypeRecord(n, rustmodel.KindEnum)
		t.Variants = w.enumVariants(n)
		t.GenerateID()
		w.batch.Types = append(w.batch.Types, t)
	case "union_item":
		t := w.newTypeRecord(n, rustmodel.KindUnion)
		t.Fields = w.structFields(n)
		t.GenerateID()
		w.batch.Types = append(w.batch.Types, t)
	case "type_item":
		t := w.newTypeRecord(n, rustmodel.KindTypeAlias)
		t.GenerateID()
		w.batch.Types = append(w.batch.Types, t)
	case "trait_item":
		t := w.newTypeRecord(n, rustmodel.KindTrait)
		t.GenerateID()
		w.batch.Types = append(w.batch.Types, t)
	}
}

// emitImpl mirrors handleImplItem's record construction and actor/message
// recognition, gathering method names directly from the impl body instead of
// relying on a later function_item visit to append to them (the query sweep
// has no ordering guarantee between the impl and function queries).
func (qe *QueryExtractor) emitImpl(n *sitter.Node) {
	w := qe.qw
	depth := w.pushAncestorScopes(n)
	defer w.popScopes(depth)

	typeName := baseTypeName(w.text(childByFieldName(n, "type")))
	traitText := w.text(childByFieldName(n, "trait"))
	traitName := baseTraitName(traitText)

	impl := rustmodel.Impl{
		TypeName:  typeName,
		TraitName: traitName,
		Methods:   qe.implMethodNames(n),
		FilePath:  w.filePath,
		LineStart: w.line(n),
		LineEnd:   w.endLine(n),
		IsGeneric: childByFieldName(n, "type_parameters") != nil,
	}
	w.addOrPromoteImpl(impl)

	if traitName == "Actor" {
		w.recognizeActorImpl(n, typeName)
	} else if msg, ok := messageTraitParam(traitText); ok {
		w.recognizeMessageImpl(n, typeName, msg)
	}
}

func (qe *QueryExtractor) implMethodNames(implNode *sitter.Node) []string {
	w := qe.qw
	body := childByFieldName(implNode, "body")
	if body == nil {
		return nil
	}
	var out []string
	for i := 0; i < int(body.ChildCount()); i++ {
		c := body.Child(i)
		if c.Type() != "function_item" {
			continue
		}
		if name := w.text(childByFieldName(c, "name")); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// emitActorRefVariable implements spec.md §4.2's actor-ref-variable
// coverage, grounded on actor_ref_query's two alternatives: a let-binding
// whose declared type is ActorRef<T>/Option<ActorRef<T>>, or whose
// initializer is itself a recognized actor-spawn call. Either shape
// registers varName -> T in the same actorRefFields map struct-field
// detection uses, so a later `var_name.tell(msg)` resolves to T the way
// `self.foo_ref.tell(msg)` already does (calls.go's maybeEmitMessageSend).
func (qe *QueryExtractor) emitActorRefVariable(n *sitter.Node) {
	w := qe.qw
	pattern := childByFieldName(n, "pattern")
	if pattern == nil || pattern.Type() != "identifier" {
		return
	}
	varName := w.text(pattern)

	if typeNode := childByFieldName(n, "type"); typeNode != nil {
		if actorType, ok := actorRefFieldType(w.text(typeNode)); ok {
			w.actorRefFields[varName] = actorType
			return
		}
	}
	if actorType, ok := w.spawnValueActorType(childByFieldName(n, "value")); ok {
		w.actorRefFields[varName] = actorType
	}
}

// emitCallSite mirrors calls.go's emitCall/maybeEmitMessageSend/
// maybeEmitActorSpawn trio for one call_expression matched by the flat
// query, resolving the caller by line-range containment
// (containingFunctionID) instead of the walker's per-function body walk.
func (qe *QueryExtractor) emitCallSite(n *sitter.Node) {
	w := qe.qw
	fn := childByFieldName(n, "function")
	if fn == nil {
		return
	}
	depth := w.pushAncestorScopes(n)
	defer w.popScopes(depth)

	callerID := containingFunctionID(w.batch, w.line(n))
	w.maybeEmitActorSpawn(fn, n, callerID)
	if fn.Type() == "field_expression" {
		w.maybeEmitMessageSend(fn, callerID)
	}

	calleeName, qualifiedCallee, callType := w.classifyCallee(fn)
	if calleeName == "" {
		return
	}
	w.batch.Calls = append(w.batch.Calls, rustmodel.FunctionCall{
		CallerID:        callerID,
		CallerModule:    w.scope.modulePathJoined(),
		CalleeName:      calleeName,
		QualifiedCallee: qualifiedCallee,
		CallType:        callType,
		Line:            w.line(n),
		FromCrate:       w.crateName,
		FilePath:        w.filePath,
	})
}

// containingFunctionID returns the id of the innermost function in batch
// whose [line_start, line_end] contains line, or "" if none. Ported from
// macroengine's findContainingFunction (pkg/macroengine/engine.go), the
// same line-range-containment strategy used there to attribute a
// paste!-expanded call to its enclosing function without scope-stack state.
func containingFunctionID(batch *rustmodel.SymbolBatch, line int) string {
	best := ""
	bestSpan := -1
	for i := range batch.Functions {
		fn := &batch.Functions[i]
		if line < fn.LineStart || line > fn.LineEnd {
			continue
		}
		span := fn.LineEnd - fn.LineStart
		if bestSpan == -1 || span < bestSpan {
			best = fn.ID
			bestSpan = span
		}
	}
	return best
}
