// Copyright (C) 2026 The Chic Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package checks runs the read-only verification passes of spec.md 4.8 over
// a finished MirModule: borrow conflicts, reachability, and unhandled
// fallible values. None of these passes mutate the module (reachability's
// constant-folding annotation is advisory, recorded only in diagnostics);
// they run after the builder and before codegen.
package checks

import (
	"github.com/chic-lang/chic/internal/ast"
	"github.com/chic-lang/chic/internal/diag"
	"github.com/chic-lang/chic/internal/mir"
)

// activeBorrow is one live Borrow statement within the function currently
// being walked.
type activeBorrow struct {
	id    mir.BorrowID
	kind  mir.BorrowKind
	place mir.Place
	span  ast.Span
}

// CheckBorrows walks every block of fn in statement order, tracking the set
// of borrows introduced by BorrowStmt that have not yet been retired by a
// matching StorageDead/Drop of their place, and reports a conflict whenever
// a new unique borrow overlaps a live borrow, or a new borrow of any kind
// overlaps a live unique borrow (spec.md 4.8).
func CheckBorrows(fn *mir.Function, diags *diag.Bag) {
	if fn.Body == nil {
		return
	}
	for _, block := range fn.Body.Blocks {
		var live []activeBorrow
		for _, stmt := range block.Statements {
			switch stmt.Kind {
			case mir.StmtBorrow:
				b := activeBorrow{id: stmt.BorrowID, kind: stmt.BorrowKind, place: stmt.BorrowPlace}
				for _, other := range live {
					if !stmt.BorrowPlace.Overlaps(other.place) {
						continue
					}
					if stmt.BorrowKind == mir.BorrowUnique || other.kind == mir.BorrowUnique {
						diags.Errorf("E0810", ast.Span{}, "conflicting borrow of overlapping place in function %q", fn.QualifiedName)
					}
				}
				live = append(live, b)
			case mir.StmtStorageDead:
				live = retire(live, stmt.Local)
			case mir.StmtDrop, mir.StmtDeferDrop:
				live = retire(live, stmt.DropPlace.Local)
			}
		}
	}
}

func retire(live []activeBorrow, local mir.LocalID) []activeBorrow {
	filtered := live[:0]
	for _, b := range live {
		if b.place.Local == local {
			continue
		}
		filtered = append(filtered, b)
	}
	return filtered
}
