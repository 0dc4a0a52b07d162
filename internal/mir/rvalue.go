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

package mir

import "github.com/chic-lang/chic/internal/ty"

// UnaryOp and BinaryOp name the operators spec.md 3.4's Unary/Binary
// rvalues carry.
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
	UnaryBitNot
)

type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinAnd
	BinOr
	BinBitAnd
	BinBitOr
	BinBitXor
	BinShl
	BinShr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
)

// RoundingMode records the floating-point rounding discipline requested for
// an arithmetic rvalue, defaulting to the platform's default mode.
type RoundingMode int

const (
	RoundDefault RoundingMode = iota
	RoundTowardZero
	RoundNearest
	RoundUp
	RoundDown
)

// AggregateKind tags what Aggregate builds.
type AggregateKind int

const (
	AggregateArray AggregateKind = iota
	AggregateTuple
	AggregateStruct
	AggregateUnion
)

// CastKind names the coercion/cast family a Cast rvalue performs.
type CastKind int

const (
	CastNumeric CastKind = iota
	CastPointer
	CastEnumToInt
	CastIntToEnum
	CastUpcast   // derived class/trait -> base/trait
	CastDowncast // base -> derived, fallible at runtime
	CastSpanCoerce
	CastUnsizing
)

// StringSegmentKind tags one piece of a string interpolation.
type StringSegmentKind int

const (
	StringSegmentLiteral StringSegmentKind = iota
	StringSegmentExpr
)

// StringSegment is one piece of a StringInterpolate rvalue.
type StringSegment struct {
	Kind    StringSegmentKind
	Literal string
	Operand Operand
	Format  string // optional format spec for Expr segments
}

// AtomicOp names the atomic read-modify-write operation for AtomicRmw.
type AtomicOp int

const (
	AtomicAdd AtomicOp = iota
	AtomicSub
	AtomicAnd
	AtomicOr
	AtomicXor
	AtomicExchange
)

// MemoryOrder mirrors the usual acquire/release/seqcst vocabulary.
type MemoryOrder int

const (
	OrderRelaxed MemoryOrder = iota
	OrderAcquire
	OrderRelease
	OrderAcqRel
	OrderSeqCst
)

// RvalueKind tags an Rvalue's active variant (spec.md 3.4).
type RvalueKind int

const (
	RvalUse RvalueKind = iota
	RvalUnary
	RvalBinary
	RvalAggregate
	RvalAddressOf
	RvalLen
	RvalCast
	RvalSpanStackAlloc
	RvalStringInterpolate
	RvalNumericIntrinsic
	RvalDecimalIntrinsic
	RvalAtomicLoad
	RvalAtomicRmw
	RvalAtomicCompareExchange
	RvalStaticLoad
	RvalStaticRef
	RvalPending
)

// Rvalue is the sum type of spec.md 3.4.
type Rvalue struct {
	Kind RvalueKind

	Use Operand // Use

	UnaryOp  UnaryOp  // Unary
	BinaryOp BinaryOp // Binary
	Operands []Operand // Unary (len 1) / Binary (len 2)
	Rounding RoundingMode

	AggregateKind   AggregateKind // Aggregate
	AggregateFields []Operand
	AggregateTy     ty.Ty

	AddressMutable bool  // AddressOf
	Place          Place // AddressOf, Len

	CastKind   CastKind // Cast
	CastOp     Operand
	SourceTy   ty.Ty
	TargetTy   ty.Ty

	SpanAllocElemTy ty.Ty // SpanStackAlloc
	SpanAllocLen    Operand

	StringSegments []StringSegment // StringInterpolate

	IntrinsicName string    // NumericIntrinsic, DecimalIntrinsic
	IntrinsicArgs []Operand

	AtomicPlace Place    // AtomicLoad, AtomicRmw, AtomicCompareExchange
	AtomicOp    AtomicOp // AtomicRmw
	AtomicValue Operand  // AtomicRmw, AtomicCompareExchange (new value)
	AtomicExpected Operand // AtomicCompareExchange
	Order       MemoryOrder

	StaticSymbol string // StaticLoad, StaticRef

	PendingRepr string
}

func UseRvalue(op Operand) Rvalue { return Rvalue{Kind: RvalUse, Use: op} }

func UnaryRvalue(op UnaryOp, operand Operand) Rvalue {
	return Rvalue{Kind: RvalUnary, UnaryOp: op, Operands: []Operand{operand}}
}

func BinaryRvalue(op BinaryOp, lhs, rhs Operand, rounding RoundingMode) Rvalue {
	return Rvalue{Kind: RvalBinary, BinaryOp: op, Operands: []Operand{lhs, rhs}, Rounding: rounding}
}

func AggregateRvalue(kind AggregateKind, t ty.Ty, fields []Operand) Rvalue {
	return Rvalue{Kind: RvalAggregate, AggregateKind: kind, AggregateTy: t, AggregateFields: fields}
}

func AddressOfRvalue(mutable bool, p Place) Rvalue {
	return Rvalue{Kind: RvalAddressOf, AddressMutable: mutable, Place: p}
}

func LenRvalue(p Place) Rvalue { return Rvalue{Kind: RvalLen, Place: p} }

func CastRvalue(kind CastKind, operand Operand, source, target ty.Ty) Rvalue {
	return Rvalue{Kind: RvalCast, CastKind: kind, CastOp: operand, SourceTy: source, TargetTy: target}
}

func PendingRvalue(repr string) Rvalue { return Rvalue{Kind: RvalPending, PendingRepr: repr} }
