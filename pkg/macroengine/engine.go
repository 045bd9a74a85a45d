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
	"regexp"
	"strings"

	"github.com/kraklabs/rcie/pkg/rustmodel"
)

// Engine scans a file's raw source text for the patterns named in
// spec.md §4.3 and appends the MacroExpansion and synthetic FunctionCall
// records it detects to an already-produced SymbolBatch. It never mutates
// the batch's existing entries — only appends — per "the engine never
// mutates the caller; it appends to the batch."
type Engine struct {
	// extraIndicators holds names added at runtime by
	// ExtendFromDefineIndicatorEnums, kept separate from the immutable base
	// Indicators list (spec.md §9 "Global mutable state: None... extension
	// happens by scanning define_indicator_enums! bodies at extraction time
	// and flowing the extended list through the batch").
	extraIndicators []string
}

// New returns an Engine with no runtime-discovered indicator extensions.
func New() *Engine {
	return &Engine{}
}

// ExtendFromDefineIndicatorEnums parses a define_indicator_enums! argument
// body of the form `Name: "doc", Name2: "doc2", …` and adds any Name not
// already in the base vocabulary to this Engine's extra indicators.
func (e *Engine) ExtendFromDefineIndicatorEnums(body string) {
	for _, m := range defineIndicatorEntryRe.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if isBaseIndicator(name) {
			continue
		}
		found := false
		for _, x := range e.extraIndicators {
			if x == name {
				found = true
				break
			}
		}
		if !found {
			e.extraIndicators = append(e.extraIndicators, name)
		}
	}
}

func isBaseIndicator(name string) bool {
	for _, i := range Indicators {
		if i == name {
			return true
		}
	}
	return false
}

// allIndicators returns the base vocabulary plus any runtime extensions.
func (e *Engine) allIndicators() []string {
	if len(e.extraIndicators) == 0 {
		return Indicators
	}
	out := make([]string, 0, len(Indicators)+len(e.extraIndicators))
	out = append(out, Indicators...)
	out = append(out, e.extraIndicators...)
	return out
}

var (
	pasteInvocationRe      = regexp.MustCompile(`paste!\s*\{`)
	defineIndicatorEnumsRe = regexp.MustCompile(`define_indicator_enums!\s*\(`)
	generateBuilderRe      = regexp.MustCompile(`generate_builder!\s*\(`)
	distributedActorRe     = regexp.MustCompile(`distributed_actor!\s*\{`)

	defineIndicatorEntryRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*:\s*"`)
	generateBuilderArgRe   = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

	fromOhlcvMethodRe = regexp.MustCompile(`\]\s*::\s*from_ohlcv\s*\(`)
	naNanNzMethodRe   = regexp.MustCompile(`\]\s*::\s*(na|nan|nz)\s*\(`)
)

// Process scans source for macro patterns and mutates batch in place,
// appending MacroExpansion and synthetic FunctionCall records.
func (e *Engine) Process(batch *rustmodel.SymbolBatch, crateName string, source []byte) {
	text := string(source)
	lines := strings.Split(text, "\n")

	for _, loc := range pasteInvocationRe.FindAllStringIndex(text, -1) {
		line := lineOf(text, loc[0])
		block := extractBalancedBraces(text, loc[1]-1)
		e.handlePaste(batch, crateName, line, block)
	}

	for _, loc := range defineIndicatorEnumsRe.FindAllStringIndex(text, -1) {
		line := lineOf(text, loc[0])
		body := extractBalancedParens(text, loc[1]-1)
		e.ExtendFromDefineIndicatorEnums(body)
		batch.MacroExpansions = append(batch.MacroExpansions, rustmodel.MacroExpansion{
			ID:               fmt.Sprintf("%s:%d:%s", batch.FilePath, line, "define_indicator_enums"),
			MacroName:        "define_indicator_enums",
			CrateName:        crateName,
			FilePath:         batch.FilePath,
			LineStart:        line,
			LineEnd:          line,
			MacroType:        rustmodel.MacroCustom,
			ExpansionPattern: strings.TrimSpace(lines[line-1]),
		})
	}

	for _, loc := range generateBuilderRe.FindAllStringIndex(text, -1) {
		line := lineOf(text, loc[0])
		args := extractBalancedParens(text, loc[1]-1)
		batch.MacroExpansions = append(batch.MacroExpansions, rustmodel.MacroExpansion{
			ID:               fmt.Sprintf("%s:%d:%s", batch.FilePath, line, "generate_builder"),
			MacroName:        "generate_builder",
			CrateName:        crateName,
			FilePath:         batch.FilePath,
			LineStart:        line,
			LineEnd:          line,
			MacroType:        rustmodel.MacroCustom,
			ExpansionPattern: strings.TrimSpace(args),
			TargetFunctions:  builderSetterNames(args),
		})
	}

	for _, loc := range distributedActorRe.FindAllStringIndex(text, -1) {
		line := lineOf(text, loc[0])
		block := extractBalancedBraces(text, loc[1]-1)
		batch.MacroExpansions = append(batch.MacroExpansions, rustmodel.MacroExpansion{
			ID:               fmt.Sprintf("%s:%d:%s", batch.FilePath, line, "distributed_actor"),
			MacroName:        "distributed_actor",
			CrateName:        crateName,
			FilePath:         batch.FilePath,
			LineStart:        line,
			LineEnd:          line,
			MacroType:        rustmodel.MacroDistributedActor,
			ExpansionPattern: strings.TrimSpace(block),
		})
	}
}

// builderSetterNames derives the synthetic setter-method names a
// generate_builder!(TargetType, field_a, field_b) invocation expands to, on
// the model of the macro's own with_<field> fan-out: the first identifier in
// args names the built struct, not a field, so it is dropped.
func builderSetterNames(args string) []string {
	idents := generateBuilderArgRe.FindAllString(args, -1)
	if len(idents) <= 1 {
		return nil
	}
	fields := idents[1:]
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, "with_"+f)
	}
	return out
}

func lineOf(text string, byteOffset int) int {
	return strings.Count(text[:byteOffset], "\n") + 1
}

// extractBalancedBraces returns the text between the '{' at openIdx and its
// matching '}', inclusive of the braces.
func extractBalancedBraces(text string, openIdx int) string {
	if openIdx >= len(text) || text[openIdx] != '{' {
		return ""
	}
	depth := 0
	for i := openIdx; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[openIdx : i+1]
			}
		}
	}
	return text[openIdx:]
}

// extractBalancedParens returns the text between the '(' at openIdx and its
// matching ')', exclusive of the parens.
func extractBalancedParens(text string, openIdx int) string {
	if openIdx >= len(text) || text[openIdx] != '(' {
		return ""
	}
	depth := 0
	for i := openIdx; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return text[openIdx+1 : i]
			}
		}
	}
	return text[openIdx+1:]
}

// findContainingFunction returns the id of the innermost function in batch
// whose [line_start, line_end] contains line, or "" if none.
func findContainingFunction(batch *rustmodel.SymbolBatch, line int) string {
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
