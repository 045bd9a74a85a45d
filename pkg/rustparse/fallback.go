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
	"regexp"
	"strings"

	"github.com/kraklabs/rcie/pkg/rustmodel"
)

// fallbackParse is the line-oriented extractor used when a file's CST
// error-node ratio exceeds maxErrorRatio (SPEC_FULL.md §4.2.1), on the
// model of the teacher's Parser.parseGoFile/extractGoCallsSimplified
// (pkg/ingestion/parser_go.go): regex-driven signature matching plus a
// same-file call scan, instead of a full grammar walk. It still emits a
// best-effort SymbolBatch rather than failing the file outright, per
// spec.md §7's "batch/run continues regardless" propagation policy.
func fallbackParse(filePath, crateName string, source []byte) *rustmodel.SymbolBatch {
	batch := rustmodel.NewSymbolBatch(filePath)
	lines := strings.Split(string(source), "\n")

	var fns []rustmodel.Function
	nameToID := make(map[string]string)

	for i, raw := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(raw)
		topLevel := !strings.HasPrefix(raw, " ") && !strings.HasPrefix(raw, "\t")
		if m := fallbackFnRe.FindStringSubmatch(trimmed); m != nil && topLevel {
			name := m[1]
			qualified := rustmodel.QualifiedName(nil, "", name)
			fn := rustmodel.Function{
				Name:          name,
				QualifiedName: qualified,
				CrateName:     crateName,
				FilePath:      filePath,
				LineStart:     lineNum,
				LineEnd:       lineNum,
				Visibility:    fallbackVisibility(trimmed),
				IsAsync:       strings.Contains(trimmed, "async fn"),
				IsUnsafe:      strings.Contains(trimmed, "unsafe fn"),
				Signature:     trimmed,
				FunctionContext: rustmodel.FunctionContext{
					Kind: rustmodel.ContextFree,
				},
			}
			fn.GenerateID()
			fns = append(fns, fn)
			nameToID[name] = fn.ID
			continue
		}
		if m := fallbackStructRe.FindStringSubmatch(trimmed); m != nil {
			emitFallbackType(batch, crateName, filePath, lineNum, m[1], rustmodel.KindStruct, trimmed)
			continue
		}
		if m := fallbackEnumRe.FindStringSubmatch(trimmed); m != nil {
			emitFallbackType(batch, crateName, filePath, lineNum, m[1], rustmodel.KindEnum, trimmed)
			continue
		}
		if m := fallbackTraitRe.FindStringSubmatch(trimmed); m != nil {
			emitFallbackType(batch, crateName, filePath, lineNum, m[1], rustmodel.KindTrait, trimmed)
			continue
		}
		if m := fallbackUseRe.FindStringSubmatch(trimmed); m != nil {
			path := strings.TrimSuffix(strings.TrimSpace(m[1]), ";")
			batch.Imports = append(batch.Imports, rustmodel.Import{
				ModulePath: pathPrefix(path),
				ImportedItems: []rustmodel.ImportedItem{
					{Name: rightmostIdent(path)},
				},
				ImportType: rustmodel.ImportSimple,
				FilePath:   filePath,
				Line:       lineNum,
			})
		}
	}
	batch.Functions = fns

	// Each function's body is taken to run from its header line up to the
	// line before the next recovered function header (or end of file).
	for k, fn := range fns {
		end := len(lines)
		if k+1 < len(fns) {
			end = fns[k+1].LineStart - 1
		}
		seen := make(map[string]bool)
		for li := fn.LineStart - 1; li < end; li++ {
			for _, m := range fallbackCallRe.FindAllStringSubmatch(lines[li], -1) {
				callee := m[1]
				if callee == fn.Name || isRustKeyword(callee) {
					continue
				}
				calleeID, ok := nameToID[callee]
				if !ok || seen[calleeID] {
					continue
				}
				seen[calleeID] = true
				batch.Calls = append(batch.Calls, rustmodel.FunctionCall{
					CallerID:   fn.ID,
					CalleeName: callee,
					CallType:   rustmodel.CallDirect,
					Line:       li + 1,
					FromCrate:  crateName,
					FilePath:   filePath,
				})
			}
		}
	}

	batch.Errors = append(batch.Errors, rustmodel.ParseError{
		FilePath: filePath,
		Line:     0,
		Message:  "parsed with line-oriented fallback extractor: error-node ratio exceeded threshold",
		Kind:     "fallback_parse",
	})
	return batch
}

var (
	fallbackFnRe     = regexp.MustCompile(`^(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?(?:unsafe\s+)?fn\s+([A-Za-z_][A-Za-z0-9_]*)`)
	fallbackStructRe = regexp.MustCompile(`^(?:pub(?:\([^)]*\))?\s+)?struct\s+([A-Za-z_][A-Za-z0-9_]*)`)
	fallbackEnumRe   = regexp.MustCompile(`^(?:pub(?:\([^)]*\))?\s+)?enum\s+([A-Za-z_][A-Za-z0-9_]*)`)
	fallbackTraitRe  = regexp.MustCompile(`^(?:pub(?:\([^)]*\))?\s+)?trait\s+([A-Za-z_][A-Za-z0-9_]*)`)
	fallbackUseRe    = regexp.MustCompile(`^use\s+(.+)$`)
	fallbackCallRe   = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
)

func fallbackVisibility(line string) string {
	if strings.HasPrefix(line, "pub(") {
		end := strings.Index(line, ")")
		if end > 0 {
			return line[:end+1]
		}
	}
	if strings.HasPrefix(line, "pub ") || strings.HasPrefix(line, "pub(") {
		return "pub"
	}
	return ""
}

func emitFallbackType(batch *rustmodel.SymbolBatch, crateName, filePath string, line int, name string, kind rustmodel.TypeKind, sigLine string) {
	t := rustmodel.Type{
		Name:          name,
		QualifiedName: rustmodel.QualifiedName(nil, "", name),
		CrateName:     crateName,
		FilePath:      filePath,
		LineStart:     line,
		LineEnd:       line,
		Kind:          kind,
		Visibility:    fallbackVisibility(sigLine),
	}
	t.GenerateID()
	batch.Types = append(batch.Types, t)
}

var rustKeywords = map[string]bool{
	"if": true, "else": true, "match": true, "while": true, "for": true,
	"loop": true, "return": true, "let": true, "fn": true, "impl": true,
	"struct": true, "enum": true, "trait": true, "mod": true, "use": true,
	"pub": true, "async": true, "await": true, "unsafe": true, "as": true,
	"mut": true, "ref": true, "self": true, "Self": true, "where": true,
}

func isRustKeyword(name string) bool {
	return rustKeywords[name]
}
