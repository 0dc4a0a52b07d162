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

package codegen

import (
	"fmt"

	"github.com/chic-lang/chic/internal/mir"
	"github.com/chic-lang/chic/internal/ty"
)

// statement lowers one mir.Statement to LLVM text. Every variant spec.md 3.4
// lists is handled; device/inline-asm/MMIO variants -- which name an
// external toolchain or memory-mapped register layout this core never
// sees -- are emitted as a textual comment marking the gap rather than
// silently dropped, the same "narrow, written-down gap" convention
// internal/async's remapper and internal/generics' placeValueTy already use.
func (fb *funcBuilder) statement(st mir.Statement) {
	switch st.Kind {
	case mir.StmtStorageLive, mir.StmtStorageDead, mir.StmtNop, mir.StmtMarkFallibleHandled,
		mir.StmtEnterUnsafe, mir.StmtExitUnsafe:
		// Storage and unsafe-region markers bound borrow-checker/reachability
		// analysis; they carry no codegen effect.
	case mir.StmtAssign:
		fb.assign(st.Place, st.Rvalue)
	case mir.StmtDrop, mir.StmtDeferDrop:
		fb.drop(st.DropPlace)
	case mir.StmtDeinit:
		fb.zeroPlace(st.Place)
	case mir.StmtDefaultInit, mir.StmtZeroInit:
		fb.zeroPlace(st.Place)
	case mir.StmtZeroInitRaw:
		ptr, _ := fb.operandValue(st.RawPointer)
		length, _ := fb.operandValue(st.RawLength)
		fmt.Fprintf(&fb.out, "  call void %s(ptr %s, i64 %s)\n", fb.e.runtime.use("chic_rt_zero_init"), ptr, length)
	case mir.StmtBorrow:
		// Borrow bookkeeping is a compile-time-only fact by the time codegen
		// runs (the borrow checker has already validated it); no instruction.
	case mir.StmtRetag:
		// Retagging is a stacked-borrows/provenance concept the textual LLVM
		// backend does not model explicitly.
	case mir.StmtAtomicStore:
		fb.atomicStore(st)
	case mir.StmtAtomicFence:
		fb.out.WriteString("  fence seq_cst\n")
	case mir.StmtStaticStore:
		val, vty := fb.operandValue(st.StaticValue)
		fmt.Fprintf(&fb.out, "  store %s %s, ptr @%s\n", vty, val, st.StaticSymbol)
	case mir.StmtAssert:
		fb.assertStmt(st)
	case mir.StmtEval:
		fb.operandValue(st.EvalOperand)
	case mir.StmtMmioStore:
		fmt.Fprintf(&fb.out, "  ; mmio store to 0x%x not modeled by the textual backend\n", st.MmioSpec.Address)
	case mir.StmtInlineAsm:
		fb.out.WriteString("  ; inline asm block elided (no target-specific assembler wired)\n")
	case mir.StmtEnqueueKernel, mir.StmtEnqueueCopy, mir.StmtRecordEvent, mir.StmtWaitEvent:
		fb.out.WriteString("  ; device/stream statement elided (no accelerator backend wired)\n")
	case mir.StmtPending:
		fmt.Fprintf(&fb.out, "  ; pending: %s\n", st.PendingRepr)
	}
}

func (fb *funcBuilder) zeroPlace(p mir.Place) {
	ptr, t := fb.placeRef(p)
	size := fb.e.sizeofExpr(t)
	fmt.Fprintf(&fb.out, "  call void %s(ptr %s, i64 %s)\n", fb.e.runtime.use("chic_rt_zero_init"), ptr, size)
}

// drop releases a place's reference-counted storage through the runtime;
// value types with no destructor need no instruction at this layer since
// their storage is simply the enclosing alloca, reclaimed when the
// function returns.
func (fb *funcBuilder) drop(p mir.Place) {
	_, t := fb.placeRef(p)
	switch t.(type) {
	case ty.Rc:
		val, _ := fb.operandValue(mir.CopyOperand(p))
		fmt.Fprintf(&fb.out, "  call void %s(ptr %s)\n", fb.e.runtime.use("chic_rt_rc_release"), val)
	case ty.Arc:
		val, _ := fb.operandValue(mir.CopyOperand(p))
		fmt.Fprintf(&fb.out, "  call void %s(ptr %s)\n", fb.e.runtime.use("chic_rt_arc_release"), val)
	default:
		// Plain value types and raw pointers own no runtime-tracked
		// resource; nothing to emit.
	}
}

func (fb *funcBuilder) atomicStore(st mir.Statement) {
	ptr, t := fb.placeRef(st.AtomicPlace)
	val, _ := fb.operandValue(st.AtomicValue)
	order := int(st.AtomicOrder)
	switch llTy := fb.e.llvmType(t); llTy {
	case "i1":
		fmt.Fprintf(&fb.out, "  call void %s(ptr %s, i1 %s, i32 %d)\n", fb.e.runtime.use("chic_rt_atomic_store_bool"), ptr, val, order)
	case "i64":
		fmt.Fprintf(&fb.out, "  call void %s(ptr %s, i64 %s, i32 %d)\n", fb.e.runtime.use("chic_rt_atomic_store_i64"), ptr, val, order)
	default:
		fmt.Fprintf(&fb.out, "  call void %s(ptr %s, i32 %s, i32 %d)\n", fb.e.runtime.use("chic_rt_atomic_store_i32"), ptr, val, order)
	}
}

func (fb *funcBuilder) assertStmt(st mir.Statement) {
	cond, _ := fb.operandValue(st.AssertCond)
	pass := fmt.Sprintf("bb_assert_ok%d", fb.tmp+1)
	fail := fmt.Sprintf("bb_assert_fail%d", fb.tmp+2)
	fb.tmp += 2
	fmt.Fprintf(&fb.out, "  br i1 %s, label %%%s, label %%%s\n", cond, pass, fail)
	fmt.Fprintf(&fb.out, "%s:\n", fail)
	msg := fb.e.internString(st.AssertMessage)
	fmt.Fprintf(&fb.out, "  call void %s(ptr %s, ptr null) noreturn\n", fb.e.runtime.use("chic_rt_throw"), msg)
	fb.out.WriteString("  unreachable\n")
	fmt.Fprintf(&fb.out, "%s:\n", pass)
}

// assign lowers a Statement carrying an Rvalue into the place's storage.
func (fb *funcBuilder) assign(dst mir.Place, rv mir.Rvalue) {
	ptr, t := fb.placeRef(dst)
	llty := fb.e.llvmType(t)

	switch rv.Kind {
	case mir.RvalUse:
		val, _ := fb.operandValue(rv.Use)
		fmt.Fprintf(&fb.out, "  store %s %s, ptr %s\n", llty, val, ptr)
	case mir.RvalUnary:
		fb.assignUnary(ptr, llty, rv)
	case mir.RvalBinary:
		fb.assignBinary(ptr, llty, rv)
	case mir.RvalAddressOf:
		src, _ := fb.placeRef(rv.Place)
		fmt.Fprintf(&fb.out, "  store ptr %s, ptr %s\n", src, ptr)
	case mir.RvalLen:
		src, srcTy := fb.placeRef(rv.Place)
		lenGep := fb.next("lenp")
		fmt.Fprintf(&fb.out, "  %s = getelementptr inbounds %s, ptr %s, i32 0, i32 1\n", lenGep, fb.e.llvmType(srcTy), src)
		val := fb.next("len")
		fmt.Fprintf(&fb.out, "  %s = load i64, ptr %s\n", val, lenGep)
		fmt.Fprintf(&fb.out, "  store i64 %s, ptr %s\n", val, ptr)
	case mir.RvalCast:
		fb.assignCast(ptr, llty, rv)
	case mir.RvalAggregate:
		fb.assignAggregate(ptr, rv)
	case mir.RvalAtomicLoad:
		fb.assignAtomicLoad(ptr, llty, rv)
	case mir.RvalAtomicRmw:
		fb.assignAtomicRmw(ptr, llty, rv)
	case mir.RvalAtomicCompareExchange:
		fb.assignAtomicCas(ptr, llty, rv)
	case mir.RvalStaticLoad:
		val := fb.next("v")
		fmt.Fprintf(&fb.out, "  %s = load %s, ptr @%s\n", val, llty, rv.StaticSymbol)
		fmt.Fprintf(&fb.out, "  store %s %s, ptr %s\n", llty, val, ptr)
	case mir.RvalStaticRef:
		fmt.Fprintf(&fb.out, "  store ptr @%s, ptr %s\n", rv.StaticSymbol, ptr)
	case mir.RvalStringInterpolate:
		fb.assignStringInterpolate(ptr, rv)
	case mir.RvalSpanStackAlloc:
		fb.assignSpanStackAlloc(ptr, rv)
	case mir.RvalNumericIntrinsic, mir.RvalDecimalIntrinsic:
		fmt.Fprintf(&fb.out, "  ; intrinsic %s elided (no math-library binding wired)\n", rv.IntrinsicName)
	case mir.RvalPending:
		fmt.Fprintf(&fb.out, "  ; pending rvalue: %s\n", rv.PendingRepr)
	}
}

func (fb *funcBuilder) assignUnary(ptr, llty string, rv mir.Rvalue) {
	operand, _ := fb.operandValue(rv.Operands[0])
	val := fb.next("u")
	switch rv.UnaryOp {
	case mir.UnaryNeg:
		if llty == "float" || llty == "double" {
			fmt.Fprintf(&fb.out, "  %s = fneg %s %s\n", val, llty, operand)
		} else {
			fmt.Fprintf(&fb.out, "  %s = sub %s 0, %s\n", val, llty, operand)
		}
	case mir.UnaryNot:
		fmt.Fprintf(&fb.out, "  %s = xor i1 %s, 1\n", val, operand)
	case mir.UnaryBitNot:
		fmt.Fprintf(&fb.out, "  %s = xor %s %s, -1\n", val, llty, operand)
	}
	fmt.Fprintf(&fb.out, "  store %s %s, ptr %s\n", llty, val, ptr)
}

func (fb *funcBuilder) assignBinary(ptr, llty string, rv mir.Rvalue) {
	lhs, lty := fb.operandValue(rv.Operands[0])
	rhs, _ := fb.operandValue(rv.Operands[1])
	isFloat := lty == "float" || lty == "double"
	val := fb.next("b")

	op, isCompare := binaryOpcode(rv.BinaryOp, isFloat)
	if isCompare {
		fmt.Fprintf(&fb.out, "  %s = %s %s %s, %s\n", val, op, lty, lhs, rhs)
		fmt.Fprintf(&fb.out, "  store i1 %s, ptr %s\n", val, ptr)
		return
	}
	fmt.Fprintf(&fb.out, "  %s = %s %s %s, %s\n", val, op, lty, lhs, rhs)
	fmt.Fprintf(&fb.out, "  store %s %s, ptr %s\n", llty, val, ptr)
}

func binaryOpcode(op mir.BinaryOp, isFloat bool) (string, bool) {
	switch op {
	case mir.BinAdd:
		if isFloat {
			return "fadd", false
		}
		return "add", false
	case mir.BinSub:
		if isFloat {
			return "fsub", false
		}
		return "sub", false
	case mir.BinMul:
		if isFloat {
			return "fmul", false
		}
		return "mul", false
	case mir.BinDiv:
		if isFloat {
			return "fdiv", false
		}
		return "sdiv", false
	case mir.BinRem:
		if isFloat {
			return "frem", false
		}
		return "srem", false
	case mir.BinAnd, mir.BinBitAnd:
		return "and", false
	case mir.BinOr, mir.BinBitOr:
		return "or", false
	case mir.BinBitXor:
		return "xor", false
	case mir.BinShl:
		return "shl", false
	case mir.BinShr:
		return "ashr", false
	case mir.BinEq:
		if isFloat {
			return "fcmp oeq", true
		}
		return "icmp eq", true
	case mir.BinNe:
		if isFloat {
			return "fcmp one", true
		}
		return "icmp ne", true
	case mir.BinLt:
		if isFloat {
			return "fcmp olt", true
		}
		return "icmp slt", true
	case mir.BinLe:
		if isFloat {
			return "fcmp ole", true
		}
		return "icmp sle", true
	case mir.BinGt:
		if isFloat {
			return "fcmp ogt", true
		}
		return "icmp sgt", true
	case mir.BinGe:
		if isFloat {
			return "fcmp oge", true
		}
		return "icmp sge", true
	default:
		return "add", false
	}
}

func (fb *funcBuilder) assignCast(ptr, dstTy string, rv mir.Rvalue) {
	src, srcTy := fb.operandValue(rv.CastOp)
	val := fb.next("cast")
	switch rv.CastKind {
	case mir.CastPointer, mir.CastSpanCoerce, mir.CastUnsizing, mir.CastUpcast, mir.CastDowncast:
		fmt.Fprintf(&fb.out, "  %s = bitcast %s %s to %s\n", val, srcTy, src, dstTy)
	case mir.CastEnumToInt:
		fmt.Fprintf(&fb.out, "  %s = bitcast %s %s to %s\n", val, srcTy, src, dstTy)
	case mir.CastIntToEnum:
		fmt.Fprintf(&fb.out, "  %s = bitcast %s %s to %s\n", val, srcTy, src, dstTy)
	default: // CastNumeric
		fb.numericCast(val, src, srcTy, dstTy)
	}
	fmt.Fprintf(&fb.out, "  store %s %s, ptr %s\n", dstTy, val, ptr)
}

func (fb *funcBuilder) numericCast(val, src, srcTy, dstTy string) {
	srcFloat := srcTy == "float" || srcTy == "double"
	dstFloat := dstTy == "float" || dstTy == "double"
	op := "bitcast"
	switch {
	case srcFloat && dstFloat:
		if bitWidth(dstTy) > bitWidth(srcTy) {
			op = "fpext"
		} else {
			op = "fptrunc"
		}
	case srcFloat && !dstFloat:
		op = "fptosi"
	case !srcFloat && dstFloat:
		op = "sitofp"
	case bitWidth(dstTy) > bitWidth(srcTy):
		op = "sext"
	case bitWidth(dstTy) < bitWidth(srcTy):
		op = "trunc"
	default:
		op = "bitcast"
	}
	fmt.Fprintf(&fb.out, "  %s = %s %s %s to %s\n", val, op, srcTy, src, dstTy)
}

func bitWidth(llty string) int {
	switch llty {
	case "i1":
		return 1
	case "i8":
		return 8
	case "i16":
		return 16
	case "i32", "float":
		return 32
	case "i64", "double":
		return 64
	default:
		return 64
	}
}

func (fb *funcBuilder) assignAggregate(ptr string, rv mir.Rvalue) {
	switch rv.AggregateKind {
	case mir.AggregateArray, mir.AggregateTuple, mir.AggregateStruct:
		for i, field := range rv.AggregateFields {
			val, fty := fb.operandValue(field)
			gep := fb.next("agg")
			fmt.Fprintf(&fb.out, "  %s = getelementptr inbounds %s, ptr %s, i32 0, i32 %d\n",
				gep, fb.e.llvmType(rv.AggregateTy), ptr, i)
			fmt.Fprintf(&fb.out, "  store %s %s, ptr %s\n", fty, val, gep)
		}
	case mir.AggregateUnion:
		if len(rv.AggregateFields) > 0 {
			val, fty := fb.operandValue(rv.AggregateFields[0])
			fmt.Fprintf(&fb.out, "  store %s %s, ptr %s\n", fty, val, ptr)
		}
	}
}

func (fb *funcBuilder) assignAtomicLoad(ptr, llty string, rv mir.Rvalue) {
	src, _ := fb.placeRef(rv.AtomicPlace)
	val := fb.next("al")
	switch llty {
	case "i1":
		fmt.Fprintf(&fb.out, "  %s = call i1 %s(ptr %s, i32 %d)\n", val, fb.e.runtime.use("chic_rt_atomic_load_bool"), src, int(rv.Order))
	case "i64":
		fmt.Fprintf(&fb.out, "  %s = call i64 %s(ptr %s, i32 %d)\n", val, fb.e.runtime.use("chic_rt_atomic_load_i64"), src, int(rv.Order))
	default:
		fmt.Fprintf(&fb.out, "  %s = call i32 %s(ptr %s, i32 %d)\n", val, fb.e.runtime.use("chic_rt_atomic_load_i32"), src, int(rv.Order))
	}
	fmt.Fprintf(&fb.out, "  store %s %s, ptr %s\n", llty, val, ptr)
}

func (fb *funcBuilder) assignAtomicRmw(ptr, llty string, rv mir.Rvalue) {
	src, _ := fb.placeRef(rv.AtomicPlace)
	operand, _ := fb.operandValue(rv.AtomicValue)
	val := fb.next("arw")
	symbol := "chic_rt_atomic_rmw_i32"
	cty := "i32"
	if llty == "i64" {
		symbol, cty = "chic_rt_atomic_rmw_i64", "i64"
	}
	fmt.Fprintf(&fb.out, "  %s = call %s %s(ptr %s, i32 %d, %s %s, i32 %d)\n",
		val, cty, fb.e.runtime.use(symbol), src, int(rv.AtomicOp), cty, operand, int(rv.Order))
	fmt.Fprintf(&fb.out, "  store %s %s, ptr %s\n", llty, val, ptr)
}

func (fb *funcBuilder) assignAtomicCas(ptr, llty string, rv mir.Rvalue) {
	src, _ := fb.placeRef(rv.AtomicPlace)
	expected, _ := fb.operandValue(rv.AtomicExpected)
	desired, _ := fb.operandValue(rv.AtomicValue)
	val := fb.next("cas")
	symbol := "chic_rt_atomic_cas_i32"
	cty := "i32"
	if llty == "i64" {
		symbol, cty = "chic_rt_atomic_cas_i64", "i64"
	}
	fmt.Fprintf(&fb.out, "  %s = call %s %s(ptr %s, %s %s, %s %s, i32 %d, i32 %d)\n",
		val, cty, fb.e.runtime.use(symbol), src, cty, expected, cty, desired, int(rv.Order), int(rv.Order))
	fmt.Fprintf(&fb.out, "  store %s %s, ptr %s\n", llty, val, ptr)
}

func (fb *funcBuilder) assignStringInterpolate(ptr string, rv mir.Rvalue) {
	acc := fb.next("str")
	fmt.Fprintf(&fb.out, "  %s = call ptr %s()\n", acc, fb.e.runtime.use("chic_rt_string_new"))
	for _, seg := range rv.StringSegments {
		var piece string
		switch seg.Kind {
		case mir.StringSegmentLiteral:
			piece = fb.e.internString(seg.Literal)
		default:
			val, _ := fb.operandValue(seg.Operand)
			piece = val
		}
		next := fb.next("str")
		fmt.Fprintf(&fb.out, "  %s = call ptr %s(ptr %s, ptr %s)\n", next, fb.e.runtime.use("chic_rt_string_concat"), acc, piece)
		acc = next
	}
	fmt.Fprintf(&fb.out, "  store ptr %s, ptr %s\n", acc, ptr)
}

func (fb *funcBuilder) assignSpanStackAlloc(ptr string, rv mir.Rvalue) {
	length, _ := fb.operandValue(rv.SpanAllocLen)
	elemSize := fb.e.sizeofExpr(rv.SpanAllocElemTy)
	total := fb.next("spanbytes")
	fmt.Fprintf(&fb.out, "  %s = mul i64 %s, %s\n", total, length, elemSize)
	data := fb.next("spanalloca")
	fmt.Fprintf(&fb.out, "  %s = alloca i8, i64 %s, align 16\n", data, total)
	span := fb.next("span")
	fmt.Fprintf(&fb.out, "  %s = call { ptr, i64 } %s(ptr %s, i64 %s)\n", span, fb.e.runtime.use("chic_rt_span_new"), data, length)
	fmt.Fprintf(&fb.out, "  store { ptr, i64 } %s, ptr %s\n", span, ptr)
}
