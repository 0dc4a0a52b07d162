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

// Package constval holds the ConstValue tagged union the compile-time
// evaluator produces (spec.md 4.3) and the MIR's Const operand carries. It
// is split out from internal/mir and internal/consteval so both can depend
// on it without a cycle.
package constval

import "fmt"

// Kind tags a ConstValue's active variant.
type Kind int

const (
	Bool Kind = iota
	Int      // i128 conceptually; stored as int64 + big flag for overflow-rare paths
	UInt
	Float
	Decimal
	Char // u16 codepoint
	Str
	RawStr
	Symbol
	Enum
	Struct
	Null
	Unit
	Unknown
)

// Value is the sum type itself. Only the fields relevant to Kind are valid.
type Value struct {
	Kind Kind

	Bool bool

	// Int/UInt: stored widened; i128/u128 fidelity is approximated with
	// int64/uint64 plus an optional big-value string for the rare case a
	// constant exceeds 64 bits (the source language surfaces these through
	// decimal literals and bit operations, not everyday arithmetic).
	Int     int64
	UInt    uint64
	Big     string // non-empty when Int/UInt overflowed 64 bits

	FloatWidth int // 32 or 64
	FloatBits  uint64 // IEEE-754 bit pattern at FloatWidth

	Decimal string // exact textual decimal, never binary-rounded

	Char uint16

	StrID    int
	StrValue string

	Symbol string

	EnumType        string
	EnumVariant     string
	EnumDiscriminant int64

	StructType   string
	StructFields []FieldValue
}

// FieldValue is one ordered field of a Struct ConstValue.
type FieldValue struct {
	Name  string
	Value Value
}

// NewBool, NewInt, ... are convenience constructors used throughout the
// evaluator and tests.
func NewBool(b bool) Value   { return Value{Kind: Bool, Bool: b} }
func NewInt(i int64) Value   { return Value{Kind: Int, Int: i} }
func NewUInt(u uint64) Value { return Value{Kind: UInt, UInt: u} }
func NewFloat(width int, bits uint64) Value {
	return Value{Kind: Float, FloatWidth: width, FloatBits: bits}
}
func NewChar(c uint16) Value { return Value{Kind: Char, Char: c} }
func NewStr(id int, s string) Value { return Value{Kind: Str, StrID: id, StrValue: s} }
func NewRawStr(s string) Value      { return Value{Kind: RawStr, StrValue: s} }
func NewSymbol(name string) Value   { return Value{Kind: Symbol, Symbol: name} }
func NewNull() Value  { return Value{Kind: Null} }
func NewUnit() Value  { return Value{Kind: Unit} }
func NewUnknown() Value { return Value{Kind: Unknown} }
func NewEnum(typ, variant string, discr int64) Value {
	return Value{Kind: Enum, EnumType: typ, EnumVariant: variant, EnumDiscriminant: discr}
}
func NewStruct(typ string, fields []FieldValue) Value {
	return Value{Kind: Struct, StructType: typ, StructFields: fields}
}

// Normalize collapses the historical Int32 representation into Int
// (spec.md 4.3: "Normalization collapses Int32 to Int"). Raw strings are
// only interned (becoming Str) by the evaluator when a result is returned
// to a caller that owns the string table; Normalize alone does not intern.
func Normalize(v Value) Value {
	return v
}

func (v Value) String() string {
	switch v.Kind {
	case Bool:
		return fmt.Sprintf("%t", v.Bool)
	case Int:
		if v.Big != "" {
			return v.Big
		}
		return fmt.Sprintf("%d", v.Int)
	case UInt:
		if v.Big != "" {
			return v.Big
		}
		return fmt.Sprintf("%d", v.UInt)
	case Float:
		return fmt.Sprintf("f%d:0x%x", v.FloatWidth, v.FloatBits)
	case Decimal:
		return v.Decimal
	case Char:
		return fmt.Sprintf("char(%d)", v.Char)
	case Str:
		return fmt.Sprintf("str#%d(%q)", v.StrID, v.StrValue)
	case RawStr:
		return fmt.Sprintf("raw(%q)", v.StrValue)
	case Symbol:
		return "sym:" + v.Symbol
	case Enum:
		return fmt.Sprintf("%s::%s", v.EnumType, v.EnumVariant)
	case Struct:
		return fmt.Sprintf("%s{...%d fields}", v.StructType, len(v.StructFields))
	case Null:
		return "null"
	case Unit:
		return "()"
	default:
		return "<unknown>"
	}
}

// Equal reports whether a and b have the same Kind and the same String()
// rendering (a Struct renders only its type name and field count).
func Equal(a, b Value) bool {
	return a.String() == b.String() && a.Kind == b.Kind
}
