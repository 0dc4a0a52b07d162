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

import (
	"github.com/chic-lang/chic/internal/constval"
	"github.com/chic-lang/chic/internal/ty"
)

// BorrowKind distinguishes shared from unique borrows (spec.md 3.4, 4.8).
type BorrowKind int

const (
	BorrowShared BorrowKind = iota
	BorrowUnique
)

// MmioSpec describes a memory-mapped-I/O address operand.
type MmioSpec struct {
	Address    uint64
	Volatile   bool
	RegisterTy ty.Ty
}

// ConstOperand pairs a folded value with the type it was folded at.
type ConstOperand struct {
	Value constval.Value
	Ty    ty.Ty
}

// PendingInfo carries diagnostic context for an unresolved operand (spec.md
// 4.4 "Pending operands", spec.md 9).
type PendingInfo struct {
	Repr       string
	Candidates []string
}

// OperandKind tags an Operand's active variant.
type OperandKind int

const (
	OperandCopy OperandKind = iota
	OperandMove
	OperandBorrow
	OperandMmio
	OperandConst
	OperandPending
)

// Operand is the sum type of spec.md 3.4.
type Operand struct {
	Kind OperandKind

	Place  Place      // Copy, Move, Borrow
	Borrow BorrowKind // Borrow
	Region string     // Borrow: lexical region/lifetime label

	Mmio MmioSpec // Mmio

	Const ConstOperand // Const

	Pending PendingInfo // Pending
}

func CopyOperand(p Place) Operand { return Operand{Kind: OperandCopy, Place: p} }
func MoveOperand(p Place) Operand { return Operand{Kind: OperandMove, Place: p} }
func BorrowOperand(kind BorrowKind, p Place, region string) Operand {
	return Operand{Kind: OperandBorrow, Place: p, Borrow: kind, Region: region}
}
func MmioOperand(spec MmioSpec) Operand { return Operand{Kind: OperandMmio, Mmio: spec} }
func ConstOperandOf(v constval.Value, t ty.Ty) Operand {
	return Operand{Kind: OperandConst, Const: ConstOperand{Value: v, Ty: t}}
}
func PendingOperand(repr string, candidates []string) Operand {
	return Operand{Kind: OperandPending, Pending: PendingInfo{Repr: repr, Candidates: candidates}}
}
