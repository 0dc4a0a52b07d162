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

package trim

import (
	"fmt"

	"github.com/chic-lang/chic/internal/constval"
	"github.com/chic-lang/chic/internal/mir"
	"github.com/chic-lang/chic/internal/ty"
)

// symbolSet is the set of symbol names one function's body references.
type symbolSet map[string]bool

func (s symbolSet) add(name string) {
	if name != "" {
		s[name] = true
	}
}

// buildSymbolGraph scans every function's body once, collecting the symbol
// names it references (call targets, static loads, drop/dispose glue,
// intrinsic and inline-asm symbols) per spec.md 4.12 step 2.
func buildSymbolGraph(module *mir.MirModule) []symbolSet {
	graph := make([]symbolSet, len(module.Functions))
	for i, fn := range module.Functions {
		node := make(symbolSet)
		if fn.Body != nil {
			scanBody(fn.Body, module.Layouts, node)
		}
		graph[i] = node
	}
	return graph
}

func scanBody(body *mir.Body, layouts *ty.TypeLayoutTable, node symbolSet) {
	for _, block := range body.Blocks {
		for _, stmt := range block.Statements {
			scanStatement(stmt, body, layouts, node)
		}
		if block.Terminator != nil {
			scanTerminator(*block.Terminator, node)
		}
	}
}

func scanStatement(stmt mir.Statement, body *mir.Body, layouts *ty.TypeLayoutTable, node symbolSet) {
	switch stmt.Kind {
	case mir.StmtAssign:
		scanRvalue(stmt.Rvalue, node)
	case mir.StmtZeroInitRaw:
		scanOperand(stmt.RawPointer, node)
		scanOperand(stmt.RawLength, node)
	case mir.StmtAtomicStore:
		scanOperand(stmt.AtomicValue, node)
	case mir.StmtAssert:
		scanOperand(stmt.AssertCond, node)
	case mir.StmtEnqueueKernel:
		for _, arg := range stmt.KernelArgs {
			scanOperand(arg, node)
		}
		scanOperand(stmt.EventID, node)
		node.add(stmt.KernelSymbol)
	case mir.StmtEnqueueCopy:
		scanOperand(stmt.CopySrc, node)
		scanOperand(stmt.CopyDst, node)
		scanOperand(stmt.CopyLen, node)
		scanOperand(stmt.EventID, node)
	case mir.StmtRecordEvent, mir.StmtWaitEvent:
		scanOperand(stmt.StreamID, node)
		scanOperand(stmt.EventID, node)
	case mir.StmtMmioStore:
		scanOperand(stmt.MmioValue, node)
	case mir.StmtStaticStore:
		node.add(stmt.StaticSymbol)
		scanOperand(stmt.StaticValue, node)
	case mir.StmtInlineAsm:
		for _, in := range stmt.AsmInputs {
			scanOperand(in, node)
		}
	case mir.StmtDrop, mir.StmtDeferDrop:
		if t, ok := placeValueTy(body, layouts, stmt.DropPlace); ok {
			node.add(dropGlueSymbolFor(t.CanonicalName()))
		}
	case mir.StmtDeinit:
		if t, ok := placeValueTy(body, layouts, stmt.Place); ok {
			if sym, ok := disposeSymbolFor(layouts, t); ok {
				node.add(sym)
			}
		}
	case mir.StmtPending:
		node.add(stmt.PendingRepr)
	}
}

func scanTerminator(term mir.Terminator, node symbolSet) {
	switch term.Kind {
	case mir.TermSwitchInt:
		scanOperand(term.Discr, node)
	case mir.TermMatch:
		scanOperand(term.MatchValue, node)
	case mir.TermCall:
		scanOperand(term.CallFunc, node)
		for _, arg := range term.CallArgs {
			scanOperand(arg, node)
		}
		if term.CallDispatch.Kind == mir.DispatchTrait {
			node.add(term.CallDispatch.Method)
		}
	case mir.TermYield:
		scanOperand(term.YieldValue, node)
	case mir.TermAwait:
		scanOperand(term.AwaitFuture, node)
	case mir.TermThrow:
		if term.ThrowException != nil {
			scanOperand(*term.ThrowException, node)
		}
	case mir.TermPending:
		node.add(term.PendingRepr)
	}
}

func scanRvalue(rv mir.Rvalue, node symbolSet) {
	switch rv.Kind {
	case mir.RvalUse:
		scanOperand(rv.Use, node)
	case mir.RvalUnary, mir.RvalBinary:
		for _, op := range rv.Operands {
			scanOperand(op, node)
		}
	case mir.RvalAggregate:
		for _, op := range rv.AggregateFields {
			scanOperand(op, node)
		}
	case mir.RvalAddressOf, mir.RvalLen:
		// Place-only; places never carry a call-target symbol directly.
	case mir.RvalCast:
		scanOperand(rv.CastOp, node)
	case mir.RvalSpanStackAlloc:
		scanOperand(rv.SpanAllocLen, node)
	case mir.RvalStringInterpolate:
		for _, seg := range rv.StringSegments {
			if seg.Kind == mir.StringSegmentExpr {
				scanOperand(seg.Operand, node)
			}
		}
	case mir.RvalNumericIntrinsic, mir.RvalDecimalIntrinsic:
		node.add(rv.IntrinsicName)
		for _, op := range rv.IntrinsicArgs {
			scanOperand(op, node)
		}
	case mir.RvalAtomicRmw:
		scanOperand(rv.AtomicValue, node)
	case mir.RvalAtomicCompareExchange:
		scanOperand(rv.AtomicValue, node)
		scanOperand(rv.AtomicExpected, node)
	case mir.RvalStaticLoad, mir.RvalStaticRef:
		node.add(rv.StaticSymbol)
	case mir.RvalPending:
		node.add(rv.PendingRepr)
	}
}

func scanOperand(op mir.Operand, node symbolSet) {
	switch op.Kind {
	case mir.OperandConst:
		collectConstSymbols(op.Const.Value, node)
	case mir.OperandPending:
		node.add(op.Pending.Repr)
		for _, c := range op.Pending.Candidates {
			node.add(c)
		}
	}
}

func collectConstSymbols(v constval.Value, node symbolSet) {
	switch v.Kind {
	case constval.Symbol:
		node.add(v.Symbol)
	case constval.Struct:
		for _, f := range v.StructFields {
			collectConstSymbols(f.Value, node)
		}
	}
}

// placeValueTy resolves the type a place denotes by walking its local's
// declared type through each projection, consulting layouts for
// field/downcast/union steps; a subslice step keeps the container's type.
// It returns false when a step cannot be resolved: a deref or index of a
// type with no element, or a field, variant or union view that layouts does
// not record.
func placeValueTy(body *mir.Body, layouts *ty.TypeLayoutTable, place mir.Place) (ty.Ty, bool) {
	if int(place.Local) < 0 || int(place.Local) >= len(body.Locals) {
		return nil, false
	}
	cur := body.Locals[place.Local].Ty
	var enumVariant *ty.EnumVariant

	for _, proj := range place.Projections {
		switch proj.Kind {
		case mir.ProjDeref:
			switch t := cur.(type) {
			case ty.Pointer:
				cur = t.Elem
			case ty.Ref:
				cur = t.Elem
			case ty.Nullable:
				cur = t.Inner
			default:
				return nil, false
			}
		case mir.ProjIndex, mir.ProjConstantIndex:
			switch t := cur.(type) {
			case ty.Array:
				cur = t.Elem
			case ty.Vec:
				cur = t.Elem
			case ty.Span:
				cur = t.Elem
			case ty.ReadOnlySpan:
				cur = t.Elem
			case ty.Pointer:
				cur = t.Elem
			default:
				return nil, false
			}
		case mir.ProjSubslice:
			// Subslices keep the container's own type; not expected to
			// drive drop/dispose glue reachability.
		case mir.ProjDowncast:
			layout, ok := layouts.LayoutForName(cur.CanonicalName())
			if !ok || layout.Enum == nil {
				return nil, false
			}
			var found *ty.EnumVariant
			for vi := range layout.Enum.Variants {
				if layout.Enum.Variants[vi].Name == proj.Variant {
					found = &layout.Enum.Variants[vi]
					break
				}
			}
			if found == nil {
				return nil, false
			}
			enumVariant = found
		case mir.ProjField:
			if enumVariant != nil {
				f, ok := fieldByIndex(enumVariant.Fields, proj.FieldIndex)
				if !ok {
					return nil, false
				}
				cur = f.Ty
				enumVariant = nil
				continue
			}
			layout, ok := layouts.LayoutForName(cur.CanonicalName())
			if !ok {
				return nil, false
			}
			sl := structLayoutOf(layout)
			if sl == nil {
				return nil, false
			}
			f, ok := fieldByIndex(sl.Fields, proj.FieldIndex)
			if !ok {
				return nil, false
			}
			cur = f.Ty
		case mir.ProjFieldNamed:
			if enumVariant != nil {
				f, ok := fieldByName(enumVariant.Fields, proj.FieldName)
				if !ok {
					return nil, false
				}
				cur = f.Ty
				enumVariant = nil
				continue
			}
			layout, ok := layouts.LayoutForName(cur.CanonicalName())
			if !ok {
				return nil, false
			}
			sl := structLayoutOf(layout)
			if sl == nil {
				return nil, false
			}
			f, ok := fieldByName(sl.Fields, proj.FieldName)
			if !ok {
				return nil, false
			}
			cur = f.Ty
		case mir.ProjUnionField:
			layout, ok := layouts.LayoutForName(cur.CanonicalName())
			if !ok || layout.Union == nil {
				return nil, false
			}
			views := layout.Union.Views
			var found *ty.UnionView
			if proj.UnionName != "" {
				for vi := range views {
					if views[vi].Name == proj.UnionName {
						found = &views[vi]
						break
					}
				}
			}
			if found == nil && proj.UnionIndex >= 0 && proj.UnionIndex < len(views) {
				found = &views[proj.UnionIndex]
			}
			if found == nil {
				return nil, false
			}
			cur = found.Ty
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

func structLayoutOf(layout *ty.Layout) *ty.StructLayout {
	if layout.Struct != nil {
		return layout.Struct
	}
	return nil
}

func fieldByIndex(fields []ty.Field, index int) (ty.Field, bool) {
	for _, f := range fields {
		if f.DeclaredIdx == index {
			return f, true
		}
	}
	return ty.Field{}, false
}

func fieldByName(fields []ty.Field, name string) (ty.Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return ty.Field{}, false
}

// disposeSymbolFor looks up a nominal type's optional dispose symbol,
// recorded on its struct/class layout (spec.md 3.2).
func disposeSymbolFor(layouts *ty.TypeLayoutTable, t ty.Ty) (string, bool) {
	if _, ok := t.(ty.Named); !ok {
		return "", false
	}
	layout, ok := layouts.LayoutForName(t.CanonicalName())
	if !ok || layout.Struct == nil || layout.Struct.DisposeSym == "" {
		return "", false
	}
	return layout.Struct.DisposeSym, true
}

// dropGlueSymbolFor derives the drop-glue function symbol emitted for a
// nominal type's canonical name (spec.md 4.12's "drop glue derived from
// each Drop/DeferDrop on a nominal type").
func dropGlueSymbolFor(canonicalName string) string {
	out := make([]byte, 0, len(canonicalName)+6)
	for _, r := range canonicalName {
		switch r {
		case ':', '<', '>', ',', '.', ' ':
			out = append(out, '_')
		default:
			out = append(out, byte(r))
		}
	}
	return fmt.Sprintf("%s$drop", out)
}
