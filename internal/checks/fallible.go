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

package checks

import (
	"github.com/chic-lang/chic/internal/ast"
	"github.com/chic-lang/chic/internal/diag"
	"github.com/chic-lang/chic/internal/mir"
)

// CheckFallible tracks, per local, whether a fallible value (the result of a
// call whose terminator carries an unwind edge) has been consumed or
// explicitly marked handled before the function exits, per spec.md 4.8: "a
// fallible result that is neither propagated (via `?`, lowered to a Throw
// edge), consumed by a statement, nor marked handled is reported at the
// block where control leaves it live."
func CheckFallible(fn *mir.Function, diags *diag.Bag) {
	if fn.Body == nil {
		return
	}
	body := fn.Body

	fallible := make(map[mir.LocalID]bool)
	for _, blk := range body.Blocks {
		if blk.Terminator == nil || blk.Terminator.Kind != mir.TermCall {
			continue
		}
		if blk.Terminator.CallUnwind == nil || blk.Terminator.CallDestination == nil {
			continue
		}
		fallible[blk.Terminator.CallDestination.Local] = true
	}
	if len(fallible) == 0 {
		return
	}

	handled := make(map[mir.LocalID]bool)
	for _, blk := range body.Blocks {
		for _, stmt := range blk.Statements {
			switch stmt.Kind {
			case mir.StmtMarkFallibleHandled:
				handled[stmt.FallibleLocal] = true
			case mir.StmtAssign:
				markConsumedByRvalue(stmt.Rvalue, handled)
			case mir.StmtEval:
				markConsumedByOperand(stmt.EvalOperand, handled)
			}
		}
		if blk.Terminator == nil {
			continue
		}
		if blk.Terminator.Kind == mir.TermThrow && blk.Terminator.ThrowException != nil {
			markConsumedByOperand(*blk.Terminator.ThrowException, handled)
		}
	}

	for local := range fallible {
		if !handled[local] {
			diags.Errorf("E0830", ast.Span{}, "fallible result assigned to local %d in function %q is never handled or propagated", local, fn.QualifiedName)
		}
	}
}

func markConsumedByOperand(op mir.Operand, handled map[mir.LocalID]bool) {
	switch op.Kind {
	case mir.OperandCopy, mir.OperandMove, mir.OperandBorrow:
		handled[op.Place.Local] = true
	}
}

func markConsumedByRvalue(rv mir.Rvalue, handled map[mir.LocalID]bool) {
	switch rv.Kind {
	case mir.RvalUse:
		markConsumedByOperand(rv.Use, handled)
	case mir.RvalUnary, mir.RvalBinary:
		for _, op := range rv.Operands {
			markConsumedByOperand(op, handled)
		}
	case mir.RvalAggregate:
		for _, op := range rv.AggregateFields {
			markConsumedByOperand(op, handled)
		}
	case mir.RvalCast:
		markConsumedByOperand(rv.CastOp, handled)
	}
}
