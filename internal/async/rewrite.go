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
	"fmt"

	"github.com/chic-lang/chic/internal/ast"
	"github.com/chic-lang/chic/internal/constval"
	"github.com/chic-lang/chic/internal/diag"
	"github.com/chic-lang/chic/internal/mir"
	"github.com/chic-lang/chic/internal/ty"
)

// lowering carries one async function's transform state end to end: the
// live-local set and frame layout it derives, then the poll/drop/constructor
// functions it builds from them.
type lowering struct {
	fn       *mir.Function
	layouts  *ty.TypeLayoutTable
	diags    *diag.Bag
	suspends []mir.SuspendPoint

	frameTyName string
	promoted    map[mir.LocalID]string // original local id -> frame field name
	liveLocals  []mir.LocalID          // sorted, deduped union across suspends

	localShift int // original local id -> new poll-body local id, before frame routing

	poll        *mir.Function
	drop        *mir.Function
	constructor *mir.Function
	plan        mir.AsyncSuspendPlan
}

func (l *lowering) run() {
	body := l.fn.Body
	master := localSet{}
	for _, sp := range l.suspends {
		for _, id := range sp.LiveLocals {
			master[id] = true
		}
	}
	l.liveLocals = master.sorted()
	l.promoted = make(map[mir.LocalID]string, len(l.liveLocals))
	for _, id := range l.liveLocals {
		l.promoted[id] = fmt.Sprintf("$f%d", int(id))
	}
	l.localShift = 2 // new local 0 = poll's own return slot, new local 1 = frame arg

	if !l.buildFrameLayout() {
		return
	}
	l.checkAttributeViolations(body)

	l.buildPoll()
	l.buildDrop()
	l.buildConstructor()

	l.plan = mir.AsyncSuspendPlan{
		FunctionQualifiedName: l.fn.QualifiedName,
		PollSymbol:            l.poll.Symbol,
		DropSymbol:            l.drop.Symbol,
		ConstructorSymbol:     l.constructor.Symbol,
		FrameSize:             l.frameSize(),
		FrameAlign:            l.frameAlign(),
		SuspendCount:          len(l.suspends),
	}

	body.Async = &mir.AsyncMachine{
		FrameFields:       l.frameFields(),
		FrameSize:         l.plan.FrameSize,
		FrameAlign:        l.plan.FrameAlign,
		PollSymbol:        l.plan.PollSymbol,
		DropSymbol:        l.plan.DropSymbol,
		ConstructorSymbol: l.plan.ConstructorSymbol,
		SuspendPoints:     l.suspends,
	}
}

// frameFields mirrors the registered frame struct's field list back into
// Body.Async's own copy (mir.Field), so a reader of the original function's
// body doesn't need to chase through the type layout table to see its
// frame shape.
func (l *lowering) frameFields() []mir.Field {
	lay, ok := l.layouts.LayoutForName(l.frameTyName)
	if !ok || lay.Struct == nil {
		return nil
	}
	out := make([]mir.Field, len(lay.Struct.Fields))
	for i, f := range lay.Struct.Fields {
		out[i] = mir.Field{Name: f.Name, Ty: f.Ty}
	}
	return out
}

// checkAttributeViolations enforces spec.md 4.7's AS0001-AS0003 against the
// now-known live-across-await set and frame size.
func (l *lowering) checkAttributeViolations(body *mir.Body) {
	if _, ok := l.fn.Attributes["stack_only"]; ok && len(l.liveLocals) > 0 {
		l.diags.Errorf(codeStackOnlyViolation, ast.Span{}, "%q is @stack_only but has a local live across an await point", l.fn.QualifiedName)
	}
	if _, ok := l.fn.Attributes["no_capture"]; ok {
		for _, id := range l.liveLocals {
			if int(id) < len(body.Locals) && body.Locals[id].Name != "" {
				l.diags.Errorf(codeNoCaptureViolation, ast.Span{}, "%q is @no_capture but captures named local %q across an await point", l.fn.QualifiedName, body.Locals[id].Name)
			}
		}
	}
	if raw, ok := l.fn.Attributes["frame_limit"]; ok {
		if n, err := parseFrameLimit(raw); err == nil && n > 0 && l.frameSize() > n {
			l.diags.Errorf(codeFrameLimitExceeded, ast.Span{}, "%q's frame is %d bytes, exceeding @frame_limit(%d)", l.fn.QualifiedName, l.frameSize(), n)
		}
	}
}

func (l *lowering) frameSize() int {
	if lay, ok := l.layouts.LayoutForName(l.frameTyName); ok && lay.Struct != nil {
		return lay.Struct.Size
	}
	return 0
}

func (l *lowering) frameAlign() int {
	if lay, ok := l.layouts.LayoutForName(l.frameTyName); ok && lay.Struct != nil {
		return lay.Struct.Align
	}
	return 0
}

func (l *lowering) frameTy() ty.Ty { return ty.Named{Path: l.frameTyName} }

// buildFrameLayout registers the "$state" + one-field-per-live-local struct
// layout spec.md 4.7 describes, then backfills its offsets immediately so
// frame-size checks and metrics have a real number to report. Returns false
// (after recording a diagnostic) if a live local's type has no known size.
func (l *lowering) buildFrameLayout() bool {
	l.frameTyName = l.fn.QualifiedName + "$Frame"
	fields := make([]ty.Field, 0, len(l.liveLocals)+1)
	fields = append(fields, ty.Field{Name: "$state", Ty: ty.Named{Path: "i32"}, DeclaredIdx: 0})
	for i, id := range l.liveLocals {
		lt := l.fn.Body.Locals[id].Ty
		fields = append(fields, ty.Field{Name: l.promoted[id], Ty: lt, DeclaredIdx: i + 1, Nullable: l.fn.Body.Locals[id].Nullable})
	}
	l.layouts.Register(l.frameTyName, &ty.Layout{Struct: &ty.StructLayout{Name: l.frameTyName, Fields: fields}})
	if err := l.layouts.BackfillMissingOffsets(); err != nil {
		l.diags.Errorf("N0700", ast.Span{}, "async: could not size frame for %q: %v", l.fn.QualifiedName, err)
		return false
	}
	return true
}

// pollTyFor registers (if needed) and returns the Poll<elem> struct type
// used both for the outer poll function's return value and for every
// intermediate "poll the inner future once" step.
func pollTyFor(layouts *ty.TypeLayoutTable, elem ty.Ty) ty.Ty {
	t := ty.Named{Path: "Poll", Args: []ty.Ty{elem}}
	name := t.CanonicalName()
	if _, ok := layouts.LayoutForName(name); !ok {
		layouts.Register(name, &ty.Layout{Struct: &ty.StructLayout{
			Name: name,
			Fields: []ty.Field{
				{Name: "ready", Ty: ty.Named{Path: "bool"}, DeclaredIdx: 0},
				{Name: "value", Ty: elem, DeclaredIdx: 1},
			},
		}})
	}
	return t
}

func framePlace(frameLocal mir.LocalID, field string) mir.Place {
	return mir.Place{Local: frameLocal, Projections: []mir.Projection{
		{Kind: mir.ProjDeref},
		{Kind: mir.ProjFieldNamed, FieldName: field},
	}}
}

// remapper rewrites one cloned body's locals, places, and block ids for
// poll's CFG: a promoted local becomes a projection through the frame
// argument everywhere it's read or written; every other local is shifted by
// localShift to make room for poll's own return slot and frame argument;
// every block id is shifted by one to make room for the dispatch block.
//
// Exception-region bookkeeping locals (ExceptionSlot, PendingFlag) are
// always plain-shifted, never promoted, even if technically live across a
// suspend point — an in-flight try inside an async function that suspends
// mid-catch is rare enough that this is a documented simplification rather
// than full support, matching internal/generics.placeValueTy's precedent
// for bounding scope on an uncommon shape.
//
// The index local of an Index projection is likewise always plain-shifted,
// even when that local is promoted, so such a subscript reads the shifted
// stack local rather than the frame field.
type remapper struct {
	promoted   map[mir.LocalID]string
	localShift int
	frameLocal mir.LocalID
}

func (r *remapper) local(old mir.LocalID) mir.LocalID { return old + mir.LocalID(r.localShift) }

func (r *remapper) block(old mir.BlockID) mir.BlockID { return old + 1 }

func (r *remapper) blockOpt(old mir.BlockID) mir.BlockID {
	if old == mir.InvalidBlock {
		return mir.InvalidBlock
	}
	return r.block(old)
}

func (r *remapper) place(p mir.Place) mir.Place {
	if field, ok := r.promoted[p.Local]; ok {
		base := framePlace(r.frameLocal, field)
		out := make([]mir.Projection, 0, len(base.Projections)+len(p.Projections))
		out = append(out, base.Projections...)
		out = append(out, r.projections(p.Projections)...)
		return mir.Place{Local: base.Local, Projections: out}
	}
	return mir.Place{Local: r.local(p.Local), Projections: r.projections(p.Projections)}
}

func (r *remapper) projections(projs []mir.Projection) []mir.Projection {
	out := make([]mir.Projection, len(projs))
	for i, p := range projs {
		if p.Kind == mir.ProjIndex {
			p.IndexLocal = r.local(p.IndexLocal)
		}
		out[i] = p
	}
	return out
}

func (r *remapper) operand(op mir.Operand) mir.Operand {
	switch op.Kind {
	case mir.OperandCopy, mir.OperandMove, mir.OperandBorrow:
		op.Place = r.place(op.Place)
	}
	return op
}

func (r *remapper) operands(ops []mir.Operand) []mir.Operand {
	out := make([]mir.Operand, len(ops))
	for i, op := range ops {
		out[i] = r.operand(op)
	}
	return out
}

func (r *remapper) rvalue(rv mir.Rvalue) mir.Rvalue {
	rv.Use = r.operand(rv.Use)
	rv.Operands = r.operands(rv.Operands)
	rv.AggregateFields = r.operands(rv.AggregateFields)
	rv.Place = r.place(rv.Place)
	rv.CastOp = r.operand(rv.CastOp)
	rv.SpanAllocLen = r.operand(rv.SpanAllocLen)
	for i := range rv.StringSegments {
		rv.StringSegments[i].Operand = r.operand(rv.StringSegments[i].Operand)
	}
	rv.IntrinsicArgs = r.operands(rv.IntrinsicArgs)
	rv.AtomicPlace = r.place(rv.AtomicPlace)
	rv.AtomicValue = r.operand(rv.AtomicValue)
	rv.AtomicExpected = r.operand(rv.AtomicExpected)
	return rv
}

// statement rewrites every place, operand and rvalue field of s. Its bare
// LocalID fields (Local, FallibleLocal) are plain-shifted, never routed
// through the frame; for a promoted local the caller drops StorageLive/
// StorageDead/DeferDrop statements instead of rewriting them (storage-live/
// dead bookkeeping is meaningless once a local's storage is the frame's,
// not the stack's).
func (r *remapper) statement(s mir.Statement) mir.Statement {
	s.Place = r.place(s.Place)
	s.Rvalue = r.rvalue(s.Rvalue)
	s.DropPlace = r.place(s.DropPlace)
	s.RawPointer = r.operand(s.RawPointer)
	s.RawLength = r.operand(s.RawLength)
	s.BorrowPlace = r.place(s.BorrowPlace)
	s.RetagPlace = r.place(s.RetagPlace)
	s.AtomicPlace = r.place(s.AtomicPlace)
	s.AtomicValue = r.operand(s.AtomicValue)
	s.MmioValue = r.operand(s.MmioValue)
	s.StaticValue = r.operand(s.StaticValue)
	s.AsmInputs = r.operands(s.AsmInputs)
	for i := range s.AsmOutputs {
		s.AsmOutputs[i] = r.place(s.AsmOutputs[i])
	}
	s.AssertCond = r.operand(s.AssertCond)
	s.KernelArgs = r.operands(s.KernelArgs)
	s.StreamID = r.operand(s.StreamID)
	s.EventID = r.operand(s.EventID)
	s.CopySrc = r.operand(s.CopySrc)
	s.CopyDst = r.operand(s.CopyDst)
	s.CopyLen = r.operand(s.CopyLen)
	s.EvalOperand = r.operand(s.EvalOperand)
	s.Local = r.local(s.Local)
	s.FallibleLocal = r.local(s.FallibleLocal)
	return s
}

// isStorageMarkerOnPromoted reports whether s is a storage/local-identity
// bookkeeping statement that the rewrite should drop outright because its
// subject local was promoted into the frame.
func (r *remapper) isStorageMarkerOnPromoted(s mir.Statement, old mir.Statement) bool {
	switch old.Kind {
	case mir.StmtStorageLive, mir.StmtStorageDead, mir.StmtDeferDrop:
		_, ok := r.promoted[old.Local]
		return ok
	}
	return false
}

// terminator generically remaps every block-id and operand/place field of
// t. Callers handle TermAwait and TermReturn themselves before falling back
// to this for every other kind, since both need extra statements/blocks
// synthesized around them that a pure field-by-field remap can't produce.
func (r *remapper) terminator(t mir.Terminator) mir.Terminator {
	switch t.Kind {
	case mir.TermGoto:
		t.Target = r.block(t.Target)
	case mir.TermSwitchInt:
		t.Discr = r.operand(t.Discr)
		cases := make([]mir.SwitchCase, len(t.Cases))
		for i, c := range t.Cases {
			c.Target = r.block(c.Target)
			cases[i] = c
		}
		t.Cases = cases
		t.Otherwise = r.block(t.Otherwise)
	case mir.TermMatch:
		t.MatchValue = r.operand(t.MatchValue)
		arms := make([]mir.MatchArm, len(t.Arms))
		for i, a := range t.Arms {
			if a.Guard != nil {
				g := r.operand(*a.Guard)
				a.Guard = &g
			}
			a.Target = r.block(a.Target)
			arms[i] = a
		}
		t.Arms = arms
		t.MatchOtherwise = r.block(t.MatchOtherwise)
	case mir.TermCall:
		t.CallFunc = r.operand(t.CallFunc)
		t.CallArgs = r.operands(t.CallArgs)
		if t.CallDestination != nil {
			p := r.place(*t.CallDestination)
			t.CallDestination = &p
		}
		t.CallTarget = r.block(t.CallTarget)
		if t.CallUnwind != nil {
			u := r.block(*t.CallUnwind)
			t.CallUnwind = &u
		}
	case mir.TermThrow:
		if t.ThrowException != nil {
			e := r.operand(*t.ThrowException)
			t.ThrowException = &e
		}
	case mir.TermYield:
		t.YieldValue = r.operand(t.YieldValue)
		t.YieldResume = r.block(t.YieldResume)
		t.YieldDrop = r.block(t.YieldDrop)
	}
	return t
}

// exceptionRegion shifts one cloned ExceptionRegion's block ids (and plain-
// shifts, never promotes, its two bookkeeping locals; see the remapper
// doc comment).
func (r *remapper) exceptionRegion(e mir.ExceptionRegion) mir.ExceptionRegion {
	e.Entry = r.block(e.Entry)
	e.Exit = r.block(e.Exit)
	e.Dispatch = r.block(e.Dispatch)
	catches := make([]mir.CatchRegion, len(e.Catches))
	for i, c := range e.Catches {
		c.Entry = r.block(c.Entry)
		c.Body = r.block(c.Body)
		c.Cleanup = r.blockOpt(c.Cleanup)
		c.Filter = r.blockOpt(c.Filter)
		catches[i] = c
	}
	e.Catches = catches
	if e.HasFinally {
		e.FinallyEntry = r.block(e.FinallyEntry)
		e.FinallyExit = r.block(e.FinallyExit)
	}
	e.UnhandledBlock = r.block(e.UnhandledBlock)
	e.AfterBlock = r.block(e.AfterBlock)
	e.ExceptionSlot = r.local(e.ExceptionSlot)
	if e.HasPendingFlag {
		e.PendingFlag = r.local(e.PendingFlag)
	}
	return e
}

func symbolOperand(name string, fnTy ty.Fn) mir.Operand {
	return mir.ConstOperandOf(constval.NewSymbol(name), fnTy)
}

func intOperand(n int64, t ty.Ty) mir.Operand {
	return mir.ConstOperandOf(constval.NewInt(n), t)
}

func boolOperand(b bool) mir.Operand {
	return mir.ConstOperandOf(constval.NewBool(b), ty.Named{Path: "bool"})
}
