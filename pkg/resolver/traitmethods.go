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

package resolver

import (
	"fmt"

	"github.com/kraklabs/rcie/pkg/rustmodel"
)

// traitMethodConfidence is the fixed confidence for dynamic-dispatch
// approximation calls (spec.md §4.4 "Synthetic trait-method calls").
const traitMethodConfidence = 0.8

// traitMethodTable is the closed map of trait name to the method names a
// dynamic-dispatch caller is assumed able to reach, per spec.md §4.4.
var traitMethodTable = map[string][]string{
	"Actor":           {"started", "stopped", "handle"},
	"Handler":         {"handle"},
	"Display":         {"fmt"},
	"Debug":           {"fmt"},
	"Clone":           {"clone"},
	"From":            {"from"},
	"Into":            {"into"},
	"Iterator":        {"next"},
	"Serialize":       {"serialize"},
	"Deserialize":     {"deserialize"},
	"WebSocketActor":  {"on_message", "on_connect", "on_disconnect"},
}

// SyntheticTraitMethodCalls implements spec.md §4.4's dynamic-dispatch
// closed-world approximation: for each impl whose trait is in the fixed
// table, emit one low-confidence synthetic FunctionCall per table method
// from a conceptual "framework caller" to the impl's concrete method (if the
// impl declares it), so reflection-invoked methods are not reported as
// unused by an "unused function" consumer.
func SyntheticTraitMethodCalls(set *rustmodel.SymbolSet) []rustmodel.FunctionCall {
	var out []rustmodel.FunctionCall
	for _, impl := range set.Impls {
		methods, ok := traitMethodTable[impl.TraitName]
		if !ok {
			continue
		}
		implMethods := make(map[string]bool, len(impl.Methods))
		for _, m := range impl.Methods {
			implMethods[m] = true
		}
		for _, m := range methods {
			if !implMethods[m] {
				continue
			}
			qualified := impl.TypeName + "::" + m
			// QualifiedCallee always carries a qualified_name, never a
			// Function.ID: the synthetic-call MERGE path in
			// pkg/graph/mutations.go matches placeholder and real targets
			// alike on qualified_name.
			out = append(out, rustmodel.FunctionCall{
				CallerID:            fmt.Sprintf("framework:%s", impl.TraitName),
				CalleeName:          m,
				QualifiedCallee:     qualified,
				CallType:            rustmodel.CallMethod,
				Line:                impl.LineStart,
				FilePath:            impl.FilePath,
				IsSynthetic:         true,
				SyntheticConfidence: traitMethodConfidence,
				MacroContext: &rustmodel.MacroContext{
					MacroType: "trait_method_dispatch",
				},
			})
		}
	}
	return out
}
