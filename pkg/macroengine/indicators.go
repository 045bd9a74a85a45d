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

// Package macroengine implements the token-pasting macro expansion detector
// (spec.md §4.3): a closed indicator vocabulary, regex-driven pattern
// detection over raw source text, and synthetic FunctionCall fan-out. It is
// deliberately separate from pkg/rustparse, which handles the AST-visible
// side of macro invocations (pushing a Macro frame, emitting its own
// MacroExpansion records) — this package only concerns the
// paste!/define_indicator_enums!/generate_builder!/distributed_actor!
// textual patterns, the synthetic calls they produce, and a MacroExpansion
// record for each detected pattern (the merger dedups these against the
// walker's), mirroring the pipeline's own step 2 (extractor) / step 3
// (macro engine) split.
package macroengine

// Indicators is the closed static vocabulary over which paste! macros fan
// out (spec.md §4.3 "Indicator vocabulary"). A resolver may extend this set
// at runtime by parsing define_indicator_enums! bodies (see
// ExtendFromDefineIndicatorEnums); the base list below is never mutated.
var Indicators = []string{
	"Alma", "ApproximateQuartiles", "Atr", "Bb", "Cvd", "CvdTrend", "DeltaVix",
	"Divergence", "Dmi", "Ema", "Lwpi", "Macd", "MultiLengthRsi",
	"OIIndicatorSuite", "Qama", "Rma", "Rsi", "Sma", "Supertrail",
	"Supertrend", "Tdfi", "Trendilo", "Vwma",
}

// snakeCaseOverrides holds the two special-cased module-name mappings named
// in spec.md §4.3; every other indicator lowercases by ordinary snake_case
// conversion.
var snakeCaseOverrides = map[string]string{
	"OIIndicatorSuite": "oi_indicator_suite",
	"Divergence":       "divergences",
}

// ModuleName returns mod(I): the snake_case module path segment an
// indicator's synthetic callee is assumed to live under.
func ModuleName(indicator string) string {
	if m, ok := snakeCaseOverrides[indicator]; ok {
		return m
	}
	return toSnakeCase(indicator)
}

func toSnakeCase(s string) string {
	var out []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				prevLower := s[i-1] >= 'a' && s[i-1] <= 'z'
				nextLower := i+1 < len(s) && s[i+1] >= 'a' && s[i+1] <= 'z'
				if prevLower || (nextLower && out[len(out)-1] != '_') {
					out = append(out, '_')
				}
			}
			out = append(out, c-'A'+'a')
		} else {
			out = append(out, c)
		}
	}
	return string(out)
}
