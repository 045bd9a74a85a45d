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

// Package errs defines the loader's error-kind vocabulary (spec.md §7),
// on the model of the teacher's ValidationError (pkg/ingestion/datalog.go)
// and ResumePolicy string-enum (pkg/ingestion/config.go).
package errs

import (
	"fmt"
	"strings"
)

// Kind names an error category, not a Go type, per spec.md §7 "Kinds (not
// type names)".
type Kind string

const (
	KindConnection           Kind = "connection"
	KindQuery                Kind = "query"
	KindTransaction          Kind = "transaction"
	KindConstraintViolation  Kind = "constraint-violation"
	KindTimeout              Kind = "timeout"
	KindDeadlock             Kind = "deadlock"
	KindStorageMode          Kind = "storage-mode"
	KindMemory               Kind = "memory"
	KindIndex                Kind = "index"
	KindSyntheticCall        Kind = "synthetic-call"
)

// LoaderError wraps an underlying error with the kind and operation that
// produced it, mirroring ValidationError's field+message shape but adding
// Unwrap so callers can errors.Is/errors.As against sentinel values.
type LoaderError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *LoaderError) Unwrap() error {
	return e.Err
}

// New wraps err with a Kind and the operation name that produced it.
func New(kind Kind, op string, err error) *LoaderError {
	return &LoaderError{Kind: kind, Op: op, Err: err}
}

// transientMessages are the substrings that mark a Bolt driver error as
// retryable, per spec.md §4.5 "Retry discipline": {TransientError,
// conflicting transactions, deadlock, timeout}.
var transientMessages = []string{
	"TransientError",
	"conflicting transactions",
	"deadlock",
	"timeout",
}

// IsTransient reports whether err's message matches one of the retryable
// substrings. Any other error surfaces unretried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
