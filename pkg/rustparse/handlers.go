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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/rcie/pkg/rustmodel"
)

// handleImplItem implements spec.md §4.1 "Impl-body handling" and "Actor
// recognition".
func (w *Walker) handleImplItem(n *sitter.Node) {
	typeNode := childByFieldName(n, "type")
	traitNode := childByFieldName(n, "trait")

	typeName := baseTypeName(w.text(typeNode))
	traitText := w.text(traitNode)
	traitName := baseTraitName(traitText)

	impl := rustmodel.Impl{
		TypeName:  typeName,
		TraitName: traitName,
		FilePath:  w.filePath,
		LineStart: w.line(n),
		LineEnd:   w.endLine(n),
		IsGeneric: childByFieldName(n, "type_parameters") != nil,
	}
	w.addOrPromoteImpl(impl)
	w.openImplLines[implKey{typeName: typeName, traitName: traitName}] = impl.LineStart

	if traitName == "Actor" {
		w.recognizeActorImpl(n, typeName)
	} else if msg, ok := messageTraitParam(traitText); ok {
		w.recognizeMessageImpl(n, typeName, msg)
	}

	w.scope.push(frame{kind: frameImpl, name: typeName, traitName: traitName, generics: w.text(childByFieldName(n, "type_parameters"))})
	body := childByFieldName(n, "body")
	if body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			w.collect(body.Child(i))
		}
	}
	w.scope.pop()
	delete(w.openImplLines, implKey{typeName: typeName, traitName: traitName})
}

// addOrPromoteImpl implements spec.md §3 Impl lifecycle: "when a duplicate
// location appears, the one with trait_name=Some wins."
func (w *Walker) addOrPromoteImpl(impl rustmodel.Impl) {
	key := impl.DedupKey()
	for i := range w.batch.Impls {
		if w.batch.Impls[i].DedupKey() == key {
			if impl.HasTrait() && !w.batch.Impls[i].HasTrait() {
				w.batch.Impls[i].TraitName = impl.TraitName
			}
			return
		}
	}
	w.batch.Impls = append(w.batch.Impls, impl)
}

// baseTypeName strips generic arguments and references from a type
// expression: "&mut Foo<T>" -> "Foo", "f64" -> "f64".
func baseTypeName(t string) string {
	t = strings.TrimSpace(t)
	t = strings.TrimPrefix(t, "&mut ")
	t = strings.TrimPrefix(t, "& mut ")
	t = strings.TrimPrefix(t, "&")
	t = strings.TrimSpace(t)
	if idx := strings.IndexAny(t, "<("); idx >= 0 {
		t = t[:idx]
	}
	return strings.TrimSpace(t)
}

// baseTraitName strips generic parameters: "Message<Ping>" -> "Message".
func baseTraitName(t string) string {
	t = strings.TrimSpace(t)
	if idx := strings.Index(t, "<"); idx >= 0 {
		t = t[:idx]
	}
	if idx := strings.LastIndex(t, "::"); idx >= 0 {
		t = t[idx+2:]
	}
	return strings.TrimSpace(t)
}

// messageTraitParam recognizes `Message<M>` and returns M.
func messageTraitParam(traitText string) (string, bool) {
	traitText = strings.TrimSpace(traitText)
	if !strings.HasPrefix(traitText, "Message<") || !strings.HasSuffix(traitText, ">") {
		return "", false
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(traitText, "Message<"), ">")
	return strings.TrimSpace(inner), inner != ""
}

// recognizeActorImpl implements spec.md §4.1 "Actor recognition" for the
// explicit `impl Actor for T` case.
func (w *Walker) recognizeActorImpl(implNode *sitter.Node, typeName string) {
	if !rustmodel.IsValidActorName(typeName) {
		return
	}
	actorType := rustmodel.ActorLocal
	isDistributed := false
	if f, ok := w.scope.topOfKind(frameMacro); ok && f.macroKind == rustmodel.MacroDistributedActor {
		actorType = rustmodel.ActorDistributed
		isDistributed = true
	}
	if w.hasDistributedAttribute(implNode) {
		actorType = rustmodel.ActorDistributed
		isDistributed = true
	}

	assoc := w.associatedTypes(implNode)
	qualified := rustmodel.QualifiedName(w.scope.modulePathCopy(), "", typeName)
	actor := rustmodel.Actor{
		Name:          typeName,
		QualifiedName: qualified,
		CrateName:     w.crateName,
		ModulePath:    w.scope.modulePathJoined(),
		FilePath:      w.filePath,
		LineStart:     w.line(implNode),
		LineEnd:       w.endLine(implNode),
		ActorType:     actorType,
		IsDistributed: isDistributed,
	}
	w.upsertActor(actor)
	w.actorsByType[typeName] = true

	if msg, ok := assoc["Msg"]; ok && msg != "" {
		reply := assoc["Reply"]
		if reply == "" {
			reply = "()"
		}
		w.addMessageHandler(rustmodel.MessageHandler{
			ActorName:   typeName,
			MessageType: msg,
			ReplyType:   reply,
			FilePath:    w.filePath,
			Line:        w.line(implNode),
			CrateName:   w.crateName,
		})
		w.addMessageType(msg, implNode)
	}
}

// recognizeMessageImpl implements spec.md §4.1 "Actor recognition" for the
// `impl Message<M> for T` case: synthesizes a MessageHandler and, if no
// explicit Actor exists yet for T, an inferred Actor.
func (w *Walker) recognizeMessageImpl(implNode *sitter.Node, typeName, messageType string) {
	if !rustmodel.IsValidActorName(typeName) {
		return
	}
	assoc := w.associatedTypes(implNode)
	reply := assoc["Reply"]
	if reply == "" {
		reply = "()"
	}
	w.addMessageHandler(rustmodel.MessageHandler{
		ActorName:   typeName,
		MessageType: messageType,
		ReplyType:   reply,
		IsAsync:     w.implHasAsyncHandleMethod(implNode),
		FilePath:    w.filePath,
		Line:        w.line(implNode),
		CrateName:   w.crateName,
	})
	w.addMessageType(messageType, implNode)

	if !w.actorsByType[typeName] {
		qualified := rustmodel.QualifiedName(w.scope.modulePathCopy(), "", typeName)
		w.upsertActor(rustmodel.Actor{
			Name:            typeName,
			QualifiedName:   qualified,
			CrateName:       w.crateName,
			ModulePath:      w.scope.modulePathJoined(),
			FilePath:        w.filePath,
			LineStart:       w.line(implNode),
			LineEnd:         w.endLine(implNode),
			ActorType:       rustmodel.ActorUnknown,
			InferredFromMsg: true,
		})
	}
}

func (w *Walker) upsertActor(a rustmodel.Actor) {
	key := a.DedupKey()
	for i := range w.batch.Actors {
		if w.batch.Actors[i].DedupKey() == key {
			return
		}
	}
	w.batch.Actors = append(w.batch.Actors, a)
}

func (w *Walker) addMessageHandler(h rustmodel.MessageHandler) {
	w.batch.MessageHandlers = append(w.batch.MessageHandlers, h)
}

func (w *Walker) addMessageType(name string, at *sitter.Node) {
	if name == "" {
		return
	}
	for _, mt := range w.batch.MessageTypes {
		if mt.Name == name {
			return
		}
	}
	mt := rustmodel.MessageType{
		Name:          name,
		QualifiedName: rustmodel.QualifiedName(w.scope.modulePathCopy(), "", name),
		CrateName:     w.crateName,
		ModulePath:    w.scope.modulePathJoined(),
		FilePath:      w.filePath,
		LineStart:     w.line(at),
		LineEnd:       w.line(at),
		Kind:          rustmodel.MessageGeneric,
	}
	mt.GenerateID()
	w.batch.MessageTypes = append(w.batch.MessageTypes, mt)
}

// associatedTypes scans an impl body for `type Name = Value;` items.
func (w *Walker) associatedTypes(implNode *sitter.Node) map[string]string {
	out := map[string]string{}
	body := childByFieldName(implNode, "body")
	if body == nil {
		return out
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		c := body.Child(i)
		if c.Type() != "associated_type" && c.Type() != "type_item" {
			continue
		}
		name := w.text(childByFieldName(c, "name"))
		val := w.text(childByFieldName(c, "type"))
		if name != "" {
			out[name] = baseTypeName(val)
		}
	}
	return out
}

func (w *Walker) implHasAsyncHandleMethod(implNode *sitter.Node) bool {
	body := childByFieldName(implNode, "body")
	if body == nil {
		return false
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		c := body.Child(i)
		if c.Type() == "function_item" && w.text(childByFieldName(c, "name")) == "handle" {
			return nodeHasChildOfType(c, "async")
		}
	}
	return false
}

func (w *Walker) hasDistributedAttribute(n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return false
	}
	for i := 0; i < int(parent.ChildCount()); i++ {
		c := parent.Child(i)
		if c == n {
			break
		}
		if c.Type() == "attribute_item" {
			txt := w.text(c)
			if strings.Contains(txt, "kameo(remote)") || strings.Contains(txt, "distributed") {
				return true
			}
		}
	}
	return false
}

// handleTraitItem pushes a Trait frame and emits a Type{Kind: Trait}
// (spec.md §4.1 "Trait-body handling").
func (w *Walker) handleTraitItem(n *sitter.Node) {
	name := w.text(childByFieldName(n, "name"))
	qualified := rustmodel.QualifiedName(w.scope.modulePathCopy(), "", name)
	t := rustmodel.Type{
		Name:          name,
		QualifiedName: qualified,
		CrateName:     w.crateName,
		ModulePath:    w.scope.modulePathJoined(),
		FilePath:      w.filePath,
		LineStart:     w.line(n),
		LineEnd:       w.endLine(n),
		Kind:          rustmodel.KindTrait,
		Visibility:    w.visibility(n),
		IsGeneric:     childByFieldName(n, "type_parameters") != nil,
		DocComment:    w.precedingDocComment(n),
	}
	t.GenerateID()
	w.batch.Types = append(w.batch.Types, t)

	w.scope.push(frame{kind: frameTrait, name: name, generics: w.text(childByFieldName(n, "type_parameters"))})
	body := childByFieldName(n, "body")
	if body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			w.collect(body.Child(i))
		}
	}
	w.scope.pop()
}

// handleStructItem, handleEnumItem, handleUnionItem, handleTypeAlias emit
// Type records and let the generic recursion continue (spec.md §4.1).

func (w *Walker) handleStructItem(n *sitter.Node) {
	fields := w.structFields(n)
	w.registerActorRefFields(fields)
	w.emitType(n, rustmodel.KindStruct, fields)
}

// registerActorRefFields records, for every field typed ActorRef<T> or
// Option<ActorRef<T>>, a field-name -> declared-actor-type mapping used
// later to resolve self.field message sends (spec.md §8). Grounded on
// original_source/src/parser/rust_parser.rs's extract_struct_field_actor_refs.
func (w *Walker) registerActorRefFields(fields []rustmodel.Field) {
	for _, f := range fields {
		if actorType, ok := actorRefFieldType(f.FieldType); ok {
			w.actorRefFields[f.Name] = actorType
		}
	}
}

// actorRefFieldType extracts T from ActorRef<T> or Option<ActorRef<T>>,
// matching original_source/src/parser/rust_parser.rs's field-type
// recognition (including ActorRef<Self> collapsing to "Self").
func actorRefFieldType(fieldType string) (string, bool) {
	ft := strings.TrimSpace(fieldType)
	if strings.HasPrefix(ft, "Option<") && strings.HasSuffix(ft, ">") {
		ft = strings.TrimSuffix(strings.TrimPrefix(ft, "Option<"), ">")
		ft = strings.TrimSpace(ft)
	}
	if !strings.HasPrefix(ft, "ActorRef<") || !strings.HasSuffix(ft, ">") {
		return "", false
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(ft, "ActorRef<"), ">")
	return strings.TrimSpace(inner), true
}

func (w *Walker) handleEnumItem(n *sitter.Node) {
	t := w.newTypeRecord(n, rustmodel.KindEnum)
	t.Variants = w.enumVariants(n)
	t.GenerateID()
	w.batch.Types = append(w.batch.Types, t)
}

func (w *Walker) handleUnionItem(n *sitter.Node) {
	w.emitType(n, rustmodel.KindUnion, w.structFields(n))
}

func (w *Walker) handleTypeAlias(n *sitter.Node) {
	w.emitType(n, rustmodel.KindTypeAlias, nil)
}

func (w *Walker) emitType(n *sitter.Node, kind rustmodel.TypeKind, fields []rustmodel.Field) {
	t := w.newTypeRecord(n, kind)
	t.Fields = fields
	t.GenerateID()
	w.batch.Types = append(w.batch.Types, t)
}

func (w *Walker) newTypeRecord(n *sitter.Node, kind rustmodel.TypeKind) rustmodel.Type {
	name := w.text(childByFieldName(n, "name"))
	return rustmodel.Type{
		Name:          name,
		QualifiedName: rustmodel.QualifiedName(w.scope.modulePathCopy(), "", name),
		CrateName:     w.crateName,
		ModulePath:    w.scope.modulePathJoined(),
		FilePath:      w.filePath,
		LineStart:     w.line(n),
		LineEnd:       w.endLine(n),
		Kind:          kind,
		Visibility:    w.visibility(n),
		IsGeneric:     childByFieldName(n, "type_parameters") != nil,
		IsTest:        w.hasTestAttribute(n),
		DocComment:    w.precedingDocComment(n),
	}
}

func (w *Walker) structFields(n *sitter.Node) []rustmodel.Field {
	body := childByFieldName(n, "body")
	if body == nil {
		return nil
	}
	var out []rustmodel.Field
	for i := 0; i < int(body.ChildCount()); i++ {
		c := body.Child(i)
		if c.Type() != "field_declaration" {
			continue
		}
		out = append(out, rustmodel.Field{
			Name:       w.text(childByFieldName(c, "name")),
			FieldType:  w.text(childByFieldName(c, "type")),
			Visibility: w.visibility(c),
			DocComment: w.precedingDocComment(c),
		})
	}
	return out
}

func (w *Walker) enumVariants(n *sitter.Node) []rustmodel.Variant {
	body := childByFieldName(n, "body")
	if body == nil {
		return nil
	}
	var out []rustmodel.Variant
	for i := 0; i < int(body.ChildCount()); i++ {
		c := body.Child(i)
		if c.Type() != "enum_variant" {
			continue
		}
		out = append(out, rustmodel.Variant{
			Name:       w.text(childByFieldName(c, "name")),
			DocComment: w.precedingDocComment(c),
		})
	}
	return out
}

// handleAttributeItem records attribute-form macros as a MacroExpansion
// with no synthetic calls by default (spec.md §4.3 "Attribute-form macros").
func (w *Walker) handleAttributeItem(n *sitter.Node) {
	txt := w.text(n)
	if !strings.Contains(txt, "::") || !strings.Contains(txt, "!") {
		return
	}
	w.emitMacroExpansion(n, attributeMacroName(txt), rustmodel.MacroCustom, txt)
}

func attributeMacroName(attrText string) string {
	t := strings.TrimPrefix(attrText, "#")
	t = strings.TrimPrefix(strings.TrimSpace(t), "[")
	if idx := strings.IndexAny(t, "(!"); idx >= 0 {
		t = t[:idx]
	}
	return strings.TrimSpace(t)
}
