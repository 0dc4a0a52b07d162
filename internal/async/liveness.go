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

package async

import (
	"sort"

	"github.com/chic-lang/chic/internal/mir"
)

// localSet is a small set of local ids, used throughout the dataflow below.
type localSet map[mir.LocalID]bool

func (s localSet) clone() localSet {
	out := make(localSet, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

func (s localSet) union(other localSet) {
	for k := range other {
		s[k] = true
	}
}

func (s localSet) sorted() []mir.LocalID {
	out := make([]mir.LocalID, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// liveness holds the fixpoint result of a backward dataflow pass over one
// body's control-flow graph: the set of locals live on entry to, and live on
// exit from, each block (the same forward-walk-over-Successors idiom
// internal/checks.CheckReachability uses, run backward to a fixpoint instead
// of once forward).
type liveness struct {
	in  []localSet
	out []localSet
}

func computeLiveness(body *mir.Body) liveness {
	n := len(body.Blocks)
	l := liveness{in: make([]localSet, n), out: make([]localSet, n)}
	for i := range l.in {
		l.in[i] = localSet{}
		l.out[i] = localSet{}
	}

	succs := make([][]mir.BlockID, n)
	for i, blk := range body.Blocks {
		if blk.Terminator != nil {
			succs[i] = blk.Terminator.Successors()
		}
	}

	for changed := true; changed; {
		changed = false
		for i := n - 1; i >= 0; i-- {
			out := localSet{}
			for _, s := range succs[i] {
				if int(s) >= 0 && int(s) < n {
					out.union(l.in[s])
				}
			}

			in := out.clone()
			blk := body.Blocks[i]
			if blk.Terminator != nil {
				for _, d := range termDefs(*blk.Terminator) {
					delete(in, d)
				}
				for _, u := range termUses(*blk.Terminator) {
					in[u] = true
				}
			}
			for j := len(blk.Statements) - 1; j >= 0; j-- {
				st := blk.Statements[j]
				for _, d := range stmtDefs(st) {
					delete(in, d)
				}
				for _, u := range stmtUses(st) {
					in[u] = true
				}
			}

			if !setEqual(in, l.in[i]) || !setEqual(out, l.out[i]) {
				changed = true
			}
			l.in[i] = in
			l.out[i] = out
		}
	}
	return l
}

func setEqual(a, b localSet) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func placeUse(p mir.Place) []mir.LocalID {
	out := []mir.LocalID{p.Local}
	for _, proj := range p.Projections {
		if proj.Kind == mir.ProjIndex {
			out = append(out, proj.IndexLocal)
		}
	}
	return out
}

func operandUse(op mir.Operand) []mir.LocalID {
	switch op.Kind {
	case mir.OperandCopy, mir.OperandMove, mir.OperandBorrow:
		return placeUse(op.Place)
	default:
		return nil
	}
}

func operandsUse(ops []mir.Operand) []mir.LocalID {
	var out []mir.LocalID
	for _, op := range ops {
		out = append(out, operandUse(op)...)
	}
	return out
}

// rvalueUse collects every local an rvalue reads, across its full field set
// (spec.md 3.4).
func rvalueUse(rv mir.Rvalue) []mir.LocalID {
	var out []mir.LocalID
	out = append(out, operandUse(rv.Use)...)
	out = append(out, operandsUse(rv.Operands)...)
	out = append(out, operandsUse(rv.AggregateFields)...)
	out = append(out, placeUse(rv.Place)...)
	out = append(out, operandUse(rv.CastOp)...)
	out = append(out, operandUse(rv.SpanAllocLen)...)
	for _, seg := range rv.StringSegments {
		out = append(out, operandUse(seg.Operand)...)
	}
	out = append(out, operandsUse(rv.IntrinsicArgs)...)
	out = append(out, placeUse(rv.AtomicPlace)...)
	out = append(out, operandUse(rv.AtomicValue)...)
	out = append(out, operandUse(rv.AtomicExpected)...)
	return out
}

// stmtDefs/stmtUses classify one statement's effect on local liveness. A
// place write with no projections is a pure def; one with projections (a
// field/element write) also counts as a use, since the rest of the local's
// storage must still be live going in.
func stmtDefs(s mir.Statement) []mir.LocalID {
	switch s.Kind {
	case mir.StmtAssign:
		if len(s.Place.Projections) == 0 {
			return []mir.LocalID{s.Place.Local}
		}
	case mir.StmtDeinit, mir.StmtDefaultInit, mir.StmtZeroInit:
		if len(s.Place.Projections) == 0 {
			return []mir.LocalID{s.Place.Local}
		}
	case mir.StmtInlineAsm:
		var out []mir.LocalID
		for _, p := range s.AsmOutputs {
			if len(p.Projections) == 0 {
				out = append(out, p.Local)
			}
		}
		return out
	}
	return nil
}

func stmtUses(s mir.Statement) []mir.LocalID {
	var out []mir.LocalID
	if len(s.Place.Projections) != 0 {
		out = append(out, placeUse(s.Place)...)
	}
	switch s.Kind {
	case mir.StmtAssign:
		out = append(out, rvalueUse(s.Rvalue)...)
	case mir.StmtDrop, mir.StmtDeferDrop:
		out = append(out, placeUse(s.DropPlace)...)
	case mir.StmtZeroInitRaw:
		out = append(out, operandUse(s.RawPointer)...)
		out = append(out, operandUse(s.RawLength)...)
	case mir.StmtBorrow:
		out = append(out, placeUse(s.BorrowPlace)...)
	case mir.StmtRetag:
		out = append(out, placeUse(s.RetagPlace)...)
	case mir.StmtAtomicStore:
		out = append(out, placeUse(s.AtomicPlace)...)
		out = append(out, operandUse(s.AtomicValue)...)
	case mir.StmtMmioStore:
		out = append(out, operandUse(s.MmioValue)...)
	case mir.StmtStaticStore:
		out = append(out, operandUse(s.StaticValue)...)
	case mir.StmtInlineAsm:
		out = append(out, operandsUse(s.AsmInputs)...)
	case mir.StmtAssert:
		out = append(out, operandUse(s.AssertCond)...)
	case mir.StmtEnqueueKernel:
		out = append(out, operandsUse(s.KernelArgs)...)
		out = append(out, operandUse(s.StreamID)...)
	case mir.StmtEnqueueCopy:
		out = append(out, operandUse(s.CopySrc)...)
		out = append(out, operandUse(s.CopyDst)...)
		out = append(out, operandUse(s.CopyLen)...)
		out = append(out, operandUse(s.StreamID)...)
	case mir.StmtRecordEvent, mir.StmtWaitEvent:
		out = append(out, operandUse(s.EventID)...)
		out = append(out, operandUse(s.StreamID)...)
	case mir.StmtMarkFallibleHandled:
		out = append(out, s.FallibleLocal)
	case mir.StmtEval:
		out = append(out, operandUse(s.EvalOperand)...)
	}
	return out
}

func termDefs(t mir.Terminator) []mir.LocalID {
	switch t.Kind {
	case mir.TermCall:
		if t.CallDestination != nil && len(t.CallDestination.Projections) == 0 {
			return []mir.LocalID{t.CallDestination.Local}
		}
	case mir.TermAwait:
		if t.AwaitDestination != nil && len(t.AwaitDestination.Projections) == 0 {
			return []mir.LocalID{t.AwaitDestination.Local}
		}
	}
	return nil
}

func termUses(t mir.Terminator) []mir.LocalID {
	var out []mir.LocalID
	switch t.Kind {
	case mir.TermSwitchInt:
		out = append(out, operandUse(t.Discr)...)
	case mir.TermMatch:
		out = append(out, operandUse(t.MatchValue)...)
		for _, a := range t.Arms {
			if a.Guard != nil {
				out = append(out, operandUse(*a.Guard)...)
			}
		}
	case mir.TermCall:
		out = append(out, operandUse(t.CallFunc)...)
		out = append(out, operandsUse(t.CallArgs)...)
		if t.CallDestination != nil && len(t.CallDestination.Projections) != 0 {
			out = append(out, placeUse(*t.CallDestination)...)
		}
	case mir.TermThrow:
		if t.ThrowException != nil {
			out = append(out, operandUse(*t.ThrowException)...)
		}
	case mir.TermYield:
		out = append(out, operandUse(t.YieldValue)...)
	case mir.TermAwait:
		out = append(out, operandUse(t.AwaitFuture)...)
		if t.AwaitDestination != nil && len(t.AwaitDestination.Projections) != 0 {
			out = append(out, placeUse(*t.AwaitDestination)...)
		}
	}
	return out
}

// findSuspendPoints locates every Await terminator in block order and
// records, for each, the set of locals live across it: the union of what's
// live on entry to its resume and drop successors (spec.md 4.7's "locals
// live across any suspend point"). State numbering starts at 1; state 0 is
// reserved for a fresh, never-yet-polled frame.
func findSuspendPoints(body *mir.Body) []mir.SuspendPoint {
	l := computeLiveness(body)
	var out []mir.SuspendPoint
	state := 1
	for id, blk := range body.Blocks {
		if blk.Terminator == nil || blk.Terminator.Kind != mir.TermAwait {
			continue
		}
		live := localSet{}
		if int(blk.Terminator.AwaitResume) < len(l.in) {
			live.union(l.in[blk.Terminator.AwaitResume])
		}
		if int(blk.Terminator.AwaitDrop) < len(l.in) {
			live.union(l.in[blk.Terminator.AwaitDrop])
		}
		// The poll function re-enters this same block on every call while
		// the inner future is still pending, re-reading AwaitFuture each
		// time; whatever locals that operand references must survive
		// between calls too, even though a plain backward pass wouldn't
		// otherwise count a terminator's own use as live "across" it.
		for _, fid := range operandUse(blk.Terminator.AwaitFuture) {
			live[fid] = true
		}
		delete(live, mir.ReturnLocal)
		out = append(out, mir.SuspendPoint{
			State:      state,
			AwaitExpr:  mir.BlockID(id),
			LiveLocals: live.sorted(),
		})
		state++
	}
	return out
}
