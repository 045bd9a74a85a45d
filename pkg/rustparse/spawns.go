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
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/rcie/pkg/rustmodel"
)

// nonActorFrameworkIdents are spawn-call path/module segments that belong to
// a non-actor async runtime rather than the actor framework, per
// original_source/src/parser/rust_parser.rs's is_non_actor_framework.
var nonActorFrameworkIdents = map[string]bool{
	"tokio": true, "std": true, "async_std": true, "futures": true,
	"runtime": true, "task": true, "thread": true, "executor": true,
	"spawn_blocking": true, "smol": true, "async_global_executor": true,
	"blocking": true, "rayon": true,
}

// spawnMethodNames maps a method name to the SpawnMethod it recognizes
// (Pattern 1/legacy: ActorType::spawn_xxx(args)), per parse_spawn_method_name.
var spawnMethodNames = map[string]rustmodel.SpawnMethod{
	"spawn":              rustmodel.SpawnSpawn,
	"spawn_with_mailbox": rustmodel.SpawnSpawnWithMailbox,
	"spawn_link":         rustmodel.SpawnSpawnLink,
	"spawn_in_thread":    rustmodel.SpawnSpawnInThread,
	"spawn_with_storage": rustmodel.SpawnSpawnWithStorage,
}

// isActorFrameworkModuleSpawn recognizes the (module, actor_module, function)
// triples for Pattern 3 (module-level spawn functions), per
// is_actor_framework_spawn.
func isActorFrameworkModuleSpawn(module, actorModule, function string) bool {
	switch {
	case module == "kameo" && actorModule == "actor" && function == "spawn":
		return true
	case module == "kameo" && actorModule == "actor" && function == "spawn_with_mailbox":
		return true
	case module == "actix" && actorModule == "actor" && function == "spawn":
		return true
	case module == "actix" && actorModule == "spawn":
		return true
	case module == "riker" && actorModule == "actor" && function == "spawn":
		return true
	case module == "bastion" && function == "spawn":
		return true
	case module == "coerce" && function == "spawn":
		return true
	}
	return false
}

// isLikelyActorType is the naming heuristic from is_likely_actor_type: must
// be proper-cased and either end in a common actor-ish suffix or contain an
// actor-ish substring, and must not be a generic trait name.
func isLikelyActorType(ident string) bool {
	if nonActorFrameworkIdents[ident] {
		return false
	}
	if ident == "Actor" || ident == "Message" || ident == "Handler" {
		return false
	}
	r := []rune(ident)
	if len(r) == 0 || !unicode.IsUpper(r[0]) {
		return false
	}
	namedSuffix := strings.HasSuffix(ident, "Actor") || strings.HasSuffix(ident, "Supervisor") ||
		strings.HasSuffix(ident, "Worker") || strings.HasSuffix(ident, "Handler") ||
		strings.HasSuffix(ident, "Agent") || strings.HasSuffix(ident, "Service")
	actorContext := strings.Contains(ident, "Actor") || strings.Contains(ident, "Supervisor") ||
		strings.Contains(ident, "Manager")
	return namedSuffix || actorContext
}

// likelyActorVariableSuffixes maps a snake_case variable suffix to the
// PascalCase type suffix it infers, per infer_type_from_variable_name.
var likelyActorVariableSuffixes = []struct {
	suffix     string
	typeSuffix string
}{
	{"_actor", "Actor"},
	{"_supervisor", "Supervisor"},
	{"_worker", "Worker"},
	{"_handler", "Handler"},
}

func inferActorTypeFromVariableName(name string) (string, bool) {
	for _, s := range likelyActorVariableSuffixes {
		if strings.HasSuffix(name, s.suffix) {
			base := strings.TrimSuffix(name, s.suffix)
			return snakeToPascalCase(base) + s.typeSuffix, true
		}
	}
	if strings.HasSuffix(name, "_agent") || strings.HasSuffix(name, "_service") ||
		strings.Contains(name, "actor_") || strings.Contains(name, "supervisor_") ||
		strings.Contains(name, "manager_") {
		return snakeToPascalCase(name), true
	}
	return "", false
}

func snakeToPascalCase(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		r := []rune(p)
		b.WriteRune(unicode.ToUpper(r[0]))
		b.WriteString(string(r[1:]))
	}
	return b.String()
}

// extractActorTypeFromArgs implements extract_actor_type_from_args: prefers
// a constructor call's type (SomeActor::new(...)/::default()/::create()),
// then falls back to a bare identifier argument recognized by naming
// convention as an actor variable or actor type.
func (w *Walker) extractActorTypeFromArgs(args *sitter.Node) (string, bool) {
	if args == nil {
		return "", false
	}
	for i := 0; i < int(args.ChildCount()); i++ {
		arg := args.Child(i)
		switch arg.Type() {
		case "call_expression":
			fn := childByFieldName(arg, "function")
			if fn != nil && fn.Type() == "scoped_identifier" {
				text := w.text(fn)
				if actorType, method, ok := splitLastSegment(text); ok {
					if method == "new" || method == "default" || method == "create" {
						return actorType, true
					}
				}
			}
		case "identifier":
			text := w.text(arg)
			if inferred, ok := inferActorTypeFromVariableName(text); ok {
				return inferred, true
			}
			if isLikelyActorType(text) {
				return text, true
			}
		}
	}
	return "", false
}

// splitLastSegment splits a "::"-joined scoped path into (head, tail).
func splitLastSegment(path string) (head, tail string, ok bool) {
	idx := strings.LastIndex(path, "::")
	if idx < 0 {
		return "", "", false
	}
	return path[:idx], path[idx+2:], true
}

// classifySpawnCall implements spec.md §3's ActorSpawn pattern dispatch and
// §8's boundary behaviors, grounded on
// original_source/src/parser/rust_parser.rs's
// extract_actor_spawns/parse_actor_spawn_match query-based detector. fn is a
// call's `function` subexpression; args is that call's `arguments` node
// (possibly nil). It is pure (no batch/scope access) so both the walker's
// recursive-descent call-site visit (maybeEmitActorSpawn) and the
// query-extractor's flat call_expression sweep (queryextract.go) can share
// it without duplicating the three-pattern dispatch.
func (w *Walker) classifySpawnCall(fn, args *sitter.Node) (child string, method rustmodel.SpawnMethod, pattern rustmodel.SpawnPattern, ok bool) {
	if fn == nil || fn.Type() != "scoped_identifier" {
		return "", "", "", false
	}
	text := w.text(fn)
	segs := strings.Split(text, "::")

	switch len(segs) {
	case 2:
		path, name := segs[0], segs[1]
		if nonActorFrameworkIdents[path] {
			return "", "", "", false
		}
		if path == "Actor" && name == "spawn" {
			// Pattern 2: TraitMethod - Actor::spawn(instance)
			actorType, found := w.extractActorTypeFromArgs(args)
			if !found || actorType == "Actor" {
				return "", "", "", false
			}
			return actorType, rustmodel.SpawnActorTrait, rustmodel.SpawnTraitMethod, true
		}
		sm, found := spawnMethodNames[name]
		if !found || !isLikelyActorType(path) {
			return "", "", "", false
		}
		return path, sm, rustmodel.SpawnDirectType, true
	case 3:
		module, actorModule, function := segs[0], segs[1], segs[2]
		if !isActorFrameworkModuleSpawn(module, actorModule, function) {
			return "", "", "", false
		}
		actorType, found := w.extractActorTypeFromArgs(args)
		if !found {
			return "", "", "", false
		}
		return actorType, rustmodel.SpawnModuleSpawn, rustmodel.SpawnModuleFunction, true
	}
	return "", "", "", false
}

// maybeEmitActorSpawn ports the walker's call-site visit onto
// classifySpawnCall. fn is the call_expression's `function` subexpression;
// callExpr is the enclosing call_expression.
func (w *Walker) maybeEmitActorSpawn(fn, callExpr *sitter.Node, callerID string) {
	args := childByFieldName(callExpr, "arguments")
	child, method, pattern, ok := w.classifySpawnCall(fn, args)
	if !ok || !rustmodel.IsValidActorName(child) {
		return
	}

	caller := w.callerFunction(callerID)
	if caller != nil && caller.IsTest {
		return
	}

	w.batch.ActorSpawns = append(w.batch.ActorSpawns, rustmodel.ActorSpawn{
		ParentActorName: w.spawnParentContext(caller),
		ChildActorName:  child,
		SpawnMethod:     method,
		SpawnPattern:    pattern,
		Context:         callerName(caller),
		Arguments:       w.text(args),
		Line:            w.line(callExpr),
		FilePath:        w.filePath,
		FromCrate:       w.crateName,
		ToCrate:         w.crateName,
	})
}

// spawnValueActorType reports the spawned actor type when value (a
// let-binding's initializer) is itself a recognized spawn call, for the
// query-extractor's actor-ref-variable detection (a `let x = T::spawn(...)`
// binding names an actor-ref variable just as a declared `ActorRef<T>` type
// does).
func (w *Walker) spawnValueActorType(value *sitter.Node) (string, bool) {
	if value == nil || value.Type() != "call_expression" {
		return "", false
	}
	fn := childByFieldName(value, "function")
	args := childByFieldName(value, "arguments")
	child, _, _, ok := w.classifySpawnCall(fn, args)
	return child, ok
}

// callerFunction resolves the Function that owns callerID, so the second
// pass (which runs after the scope stack has fully unwound) can still
// answer context questions the first pass already captured in
// FunctionContext.
func (w *Walker) callerFunction(callerID string) *rustmodel.Function {
	for i := range w.batch.Functions {
		if w.batch.Functions[i].ID == callerID {
			return &w.batch.Functions[i]
		}
	}
	return nil
}

func callerName(fn *rustmodel.Function) string {
	if fn == nil {
		return ""
	}
	return fn.Name
}

// spawnParentContext finds the enclosing actor context for a spawn site: the
// type of the innermost impl block the caller belongs to, else the caller's
// own name, else its module path, per find_spawning_context.
func (w *Walker) spawnParentContext(caller *rustmodel.Function) string {
	if caller == nil {
		return w.scope.modulePathJoined()
	}
	if caller.FunctionContext.Kind == rustmodel.ContextTraitImpl || caller.FunctionContext.Kind == rustmodel.ContextRegularImpl {
		return caller.FunctionContext.TypeName
	}
	if caller.Name != "" {
		return caller.Name
	}
	return caller.ModulePath
}
