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

// handleUseDeclaration implements spec.md §4.2 "Import parsing": produces
// RustImport{module_path, imported_items, import_type, file_path, line}.
func (w *Walker) handleUseDeclaration(n *sitter.Node) {
	arg := childByFieldName(n, "argument")
	if arg == nil {
		return
	}
	modulePath, items, importType := w.parseUseClause(arg)
	w.batch.Imports = append(w.batch.Imports, rustmodel.Import{
		ModulePath:    modulePath,
		ImportedItems: items,
		ImportType:    importType,
		FilePath:      w.filePath,
		Line:          w.line(n),
	})
}

// parseUseClause recursively unwraps `use_as_clause`, `scoped_use_list`,
// `use_wildcard`, and `scoped_identifier` shapes.
func (w *Walker) parseUseClause(n *sitter.Node) (modulePath string, items []rustmodel.ImportedItem, importType rustmodel.ImportType) {
	switch n.Type() {
	case "use_as_clause":
		path := childByFieldName(n, "path")
		alias := childByFieldName(n, "alias")
		name := rightmostIdent(w.text(path))
		return pathPrefix(w.text(path)), []rustmodel.ImportedItem{{Name: name, Alias: w.text(alias)}}, rustmodel.ImportSimple

	case "use_wildcard":
		path := w.text(childByFieldName(n, "path"))
		return path, nil, rustmodel.ImportGlob

	case "scoped_use_list":
		path := childByFieldName(n, "path")
		list := childByFieldName(n, "list")
		var out []rustmodel.ImportedItem
		if list != nil {
			for i := 0; i < int(list.ChildCount()); i++ {
				c := list.Child(i)
				switch c.Type() {
				case "identifier":
					out = append(out, rustmodel.ImportedItem{Name: w.text(c)})
				case "use_as_clause":
					p := childByFieldName(c, "path")
					a := childByFieldName(c, "alias")
					out = append(out, rustmodel.ImportedItem{Name: w.text(p), Alias: w.text(a)})
				case "self":
					out = append(out, rustmodel.ImportedItem{Name: "self"})
				}
			}
		}
		return w.text(path), out, rustmodel.ImportGrouped

	case "scoped_identifier":
		text := w.text(n)
		name := rightmostIdent(text)
		return pathPrefix(text), []rustmodel.ImportedItem{{Name: name}}, rustmodel.ImportSimple

	case "identifier":
		return "", []rustmodel.ImportedItem{{Name: w.text(n)}}, rustmodel.ImportModule

	default:
		return w.text(n), nil, rustmodel.ImportSimple
	}
}

func pathPrefix(scoped string) string {
	if idx := strings.LastIndex(scoped, "::"); idx >= 0 {
		return scoped[:idx]
	}
	return ""
}

