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

package macroengine

import (
	"fmt"
	"strings"

	"github.com/kraklabs/rcie/pkg/rustmodel"
)

const (
	primaryConfidence = 0.95
	variantConfidence = 0.7
)

// handlePaste implements spec.md §4.3 "Synthetic-call generation": detects
// the method pattern inside a paste! block and fans a synthetic
// FunctionCall out across every indicator in the vocabulary.
func (e *Engine) handlePaste(batch *rustmodel.SymbolBatch, crateName string, line int, block string) {
	expansionID := fmt.Sprintf("%s:%d:%s", batch.FilePath, line, "paste")
	batch.MacroExpansions = append(batch.MacroExpansions, rustmodel.MacroExpansion{
		ID:               expansionID,
		MacroName:        "paste",
		CrateName:        crateName,
		FilePath:         batch.FilePath,
		LineStart:        line,
		LineEnd:          line,
		MacroType:        rustmodel.MacroPaste,
		ExpansionPattern: strings.TrimSpace(block),
	})

	// callerID falls back to a deterministic module-scope id when the paste!
	// invocation is not inside any collected function (spec.md §4.3: "caller_id
	// equal to the containing function (or a deterministic module-scope id if
	// not inside a function)"; SPEC_FULL.md §9.1 boundary behavior).
	callerID := findContainingFunction(batch, line)
	if callerID == "" {
		callerID = fmt.Sprintf("%s:%s:module_scope:%d", crateName, batch.FilePath, line)
	}

	macroCtx := &rustmodel.MacroContext{
		ExpansionID:   expansionID,
		MacroType:     string(rustmodel.MacroPaste),
		ExpansionLine: line,
	}

	indicators := e.allIndicators()

	switch {
	case fromOhlcvMethodRe.MatchString(block):
		for _, ind := range indicators {
			batch.Calls = append(batch.Calls, syntheticCall(callerID, crateName, batch.FilePath, line,
				fmt.Sprintf("crate::%s::%sInput::from_ohlcv", ModuleName(ind), ind), primaryConfidence, macroCtx))
		}

	case naNanNzMethodRe.MatchString(block):
		method := naNanNzMethodRe.FindStringSubmatch(block)[1]
		for _, ind := range indicators {
			mod := ModuleName(ind)
			batch.Calls = append(batch.Calls, syntheticCall(callerID, crateName, batch.FilePath, line,
				fmt.Sprintf("crate::%s::%sOutput::%s", mod, ind, method), primaryConfidence, macroCtx))
			for _, variant := range []string{"Input", "TrendOutput", "UnifiedOutput"} {
				batch.Calls = append(batch.Calls, syntheticCall(callerID, crateName, batch.FilePath, line,
					fmt.Sprintf("crate::%s::%s%s::%s", mod, ind, variant, method), variantConfidence, macroCtx))
			}
		}

	default:
		for _, ind := range indicators {
			batch.Calls = append(batch.Calls, syntheticCall(callerID, crateName, batch.FilePath, line,
				fmt.Sprintf("crate::%s::%s::new", ModuleName(ind), ind), primaryConfidence, macroCtx))
		}
	}
}

func syntheticCall(callerID, crateName, filePath string, line int, qualifiedCallee string, confidence float32, ctx *rustmodel.MacroContext) rustmodel.FunctionCall {
	return rustmodel.FunctionCall{
		CallerID:            callerID,
		CalleeName:          rightmostSegment(qualifiedCallee),
		QualifiedCallee:     qualifiedCallee,
		CallType:            rustmodel.CallAssociated,
		Line:                line,
		FromCrate:           crateName,
		FilePath:            filePath,
		IsSynthetic:         true,
		MacroContext:        ctx,
		SyntheticConfidence: confidence,
	}
}

func rightmostSegment(path string) string {
	if idx := strings.LastIndex(path, "::"); idx >= 0 {
		return path[idx+2:]
	}
	return path
}
