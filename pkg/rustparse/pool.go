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
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// sitterParserPool is a sync.Pool of *sitter.Parser, on the model of the
// per-language pools in TreeSitterParser (pkg/ingestion/parser_treesitter.go).
type sitterParserPool struct {
	pool sync.Pool
}

func newSitterParserPool(newParser func() *sitter.Parser) *sitterParserPool {
	return &sitterParserPool{pool: sync.Pool{New: func() interface{} { return newParser() }}}
}

func (p *sitterParserPool) get() *sitter.Parser {
	return p.pool.Get().(*sitter.Parser)
}

func (p *sitterParserPool) put(parser *sitter.Parser) {
	p.pool.Put(parser)
}
