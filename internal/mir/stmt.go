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

// StmtKind tags a Statement's active variant (spec.md 3.4).
type StmtKind int

const (
	StmtAssign StmtKind = iota
	StmtStorageLive
	StmtStorageDead
	StmtDrop
	StmtDeferDrop
	StmtDeinit
	StmtDefaultInit
	StmtZeroInit
	StmtZeroInitRaw
	StmtBorrow
	StmtRetag
	StmtAtomicStore
	StmtAtomicFence
	StmtMmioStore
	StmtStaticStore
	StmtInlineAsm
	StmtAssert
	StmtEnqueueKernel
	StmtEnqueueCopy
	StmtRecordEvent
	StmtWaitEvent
	StmtMarkFallibleHandled
	StmtEnterUnsafe
	StmtExitUnsafe
	StmtEval
	StmtNop
	StmtPending
)

// BorrowID identifies one Borrow statement for the borrow checker.
type BorrowID int

// Statement is the sum type of spec.md 3.4. Only the fields relevant to
// Kind are meaningful for a given value.
type Statement struct {
	Kind StmtKind

	// Assign
	Place  Place
	Rvalue Rvalue

	// StorageLive/Dead, Drop (Local), DeferDrop
	Local LocalID

	// Drop
	DropPlace   Place
	DropFlagged bool // true if this drop is conditional on a drop flag

	// Deinit, DefaultInit, ZeroInit share Place above.

	// ZeroInitRaw
	RawPointer Operand
	RawLength  Operand

	// Borrow
	BorrowID     BorrowID
	BorrowKind   BorrowKind
	BorrowPlace  Place
	BorrowRegion string

	// Retag
	RetagPlace Place

	// AtomicStore
	AtomicPlace Place
	AtomicValue Operand
	AtomicOrder MemoryOrder

	// MmioStore
	MmioSpec  MmioSpec
	MmioValue Operand

	// StaticStore
	StaticSymbol string
	StaticValue  Operand

	// InlineAsm
	AsmTemplate  string
	AsmInputs    []Operand
	AsmOutputs   []Place
	AsmClobbers  []string

	// Assert
	AssertCond    Operand
	AssertMessage string

	// EnqueueKernel/Copy, RecordEvent/WaitEvent: device/stream programming.
	KernelSymbol string
	KernelArgs   []Operand
	StreamID     Operand
	EventID      Operand
	CopySrc      Operand
	CopyDst      Operand
	CopyLen      Operand

	// MarkFallibleHandled
	FallibleLocal LocalID

	// Eval: evaluates an operand purely for its side effect (e.g. a call
	// whose result is discarded at statement position before terminator
	// rewriting folds it away).
	EvalOperand Operand

	// Pending
	PendingRepr       string
	PendingCandidates []string

	// StaticStoreTy / DefaultInit / ZeroInit need a type for allocation.
	Ty ty.Ty
}

func AssignStmt(p Place, rv Rvalue) Statement {
	return Statement{Kind: StmtAssign, Place: p, Rvalue: rv}
}

func StorageLiveStmt(l LocalID) Statement { return Statement{Kind: StmtStorageLive, Local: l} }
func StorageDeadStmt(l LocalID) Statement { return Statement{Kind: StmtStorageDead, Local: l} }

func DropStmt(p Place, flagged bool) Statement {
	return Statement{Kind: StmtDrop, DropPlace: p, DropFlagged: flagged}
}

func DeferDropStmt(p Place) Statement { return Statement{Kind: StmtDeferDrop, DropPlace: p} }

func DeinitStmt(p Place) Statement     { return Statement{Kind: StmtDeinit, Place: p} }
func DefaultInitStmt(p Place, t ty.Ty) Statement {
	return Statement{Kind: StmtDefaultInit, Place: p, Ty: t}
}
func ZeroInitStmt(p Place, t ty.Ty) Statement {
	return Statement{Kind: StmtZeroInit, Place: p, Ty: t}
}
func ZeroInitRawStmt(ptr, length Operand) Statement {
	return Statement{Kind: StmtZeroInitRaw, RawPointer: ptr, RawLength: length}
}

func BorrowStmt(id BorrowID, kind BorrowKind, p Place, region string) Statement {
	return Statement{Kind: StmtBorrow, BorrowID: id, BorrowKind: kind, BorrowPlace: p, BorrowRegion: region}
}

func MarkFallibleHandledStmt(l LocalID) Statement {
	return Statement{Kind: StmtMarkFallibleHandled, FallibleLocal: l}
}

func NopStmt() Statement { return Statement{Kind: StmtNop} }

func PendingStmt(repr string) Statement { return Statement{Kind: StmtPending, PendingRepr: repr} }

// IsMeaningful reports whether this statement should anchor a reachability
// diagnostic (spec.md 4.8 ignores storage markers, nop, and fallible-handled
// markers when picking an anchor).
func (s Statement) IsMeaningful() bool {
	switch s.Kind {
	case StmtStorageLive, StmtStorageDead, StmtNop, StmtMarkFallibleHandled:
		return false
	default:
		return true
	}
}
