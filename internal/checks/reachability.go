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

// CheckReachability forward-propagates from the entry block and reports one
// diagnostic per unreachable block (spec.md 4.8). MIR statements carry no
// span, so each diagnostic's span is the zero Span anchorSpan returns.
// Predecessor edges are recorded only from reached blocks, so an
// unreachable block never has a recorded predecessor and its diagnostic
// carries no "control flow always exits here" label.
func CheckReachability(fn *mir.Function, diags *diag.Bag) {
	if fn.Body == nil {
		return
	}
	body := fn.Body
	n := len(body.Blocks)
	reached := make([]bool, n)
	preds := make([][]mir.BlockID, n)

	var work []mir.BlockID
	reached[mir.EntryBlock] = true
	work = append(work, mir.EntryBlock)
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		blk := body.Blocks[cur]
		if blk.Terminator == nil {
			continue
		}
		for _, succ := range blk.Terminator.Successors() {
			if int(succ) < 0 || int(succ) >= n {
				continue
			}
			preds[succ] = append(preds[succ], cur)
			if !reached[succ] {
				reached[succ] = true
				work = append(work, succ)
			}
		}
	}

	foldConstantSwitches(body, diags)

	for id := 0; id < n; id++ {
		if reached[mir.BlockID(id)] {
			continue
		}
		span := anchorSpan(body.Blocks[id])
		d := diag.Diagnostic{
			Code:     "E0820",
			Severity: diag.Warning,
			Message:  "this code is unreachable",
			Span:     span,
		}
		for _, p := range preds[id] {
			pt := body.Blocks[p].Terminator
			if pt != nil && pt.IsExit() && len(preds[id]) == 0 {
				d.Labels = append(d.Labels, diag.Label{Message: "control flow always exits here"})
			}
		}
		diags.Add(d)
	}
}

// anchorSpan picks the statement a reachability diagnostic should point at:
// the first meaningful statement, per spec.md 4.8's rule that storage
// markers, nops, and fallible-handled markers never anchor a diagnostic.
// MIR statements don't carry their own span (only the originating AST node
// does, which the builder threads through separately), so this returns the
// zero Span; callers that keep a parallel statement-to-span map should
// prefer that instead.
func anchorSpan(mir.Block) ast.Span {
	return ast.Span{}
}

// foldConstantSwitches annotates (via a Note diagnostic, never a mutation)
// every SwitchInt terminator whose discriminant is a Const operand, so a
// downstream report can explain why an arm is unreachable (spec.md 4.8:
// "condition is constant").
func foldConstantSwitches(body *mir.Body, diags *diag.Bag) {
	for _, blk := range body.Blocks {
		if blk.Terminator == nil || blk.Terminator.Kind != mir.TermSwitchInt {
			continue
		}
		if blk.Terminator.Discr.Kind != mir.OperandConst {
			continue
		}
		diags.Notef("N0821", ast.Span{}, "switch condition is constant; only one arm is reachable")
	}
}
