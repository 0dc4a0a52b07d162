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

// TermKind tags a Terminator's active variant (spec.md 3.5).
type TermKind int

const (
	TermGoto TermKind = iota
	TermSwitchInt
	TermMatch
	TermCall
	TermReturn
	TermThrow
	TermYield
	TermAwait
	TermPanic
	TermUnreachable
	TermPending
)

// SwitchCase is one (value, target) arm of a SwitchInt terminator.
type SwitchCase struct {
	Value int64
	Target BlockID
}

// MatchArm is one arm of a Match terminator.
type MatchArm struct {
	Pattern string // textual pattern form; full pattern ADT lives in internal/ast
	Guard   *Operand
	Target  BlockID
}

// DispatchKind tags how a Call terminator picks its callee (spec.md 3.5).
type DispatchKind int

const (
	DispatchStatic DispatchKind = iota
	DispatchVirtual
	DispatchTrait
)

// Dispatch describes the call-dispatch strategy.
type Dispatch struct {
	Kind DispatchKind

	// Virtual
	SlotIndex     int
	ReceiverIndex int
	BaseOwner     string // non-empty for an explicit base.Method(...) call

	// Trait
	TraitName string
	Method    string
	ImplType  string // optional, non-empty when statically known
}

// Terminator is the sum type of spec.md 3.5. A well-formed body has a
// terminator on every reachable block after lowering completes.
type Terminator struct {
	Kind TermKind

	// Goto
	Target BlockID

	// SwitchInt
	Discr     Operand
	Cases     []SwitchCase
	Otherwise BlockID

	// Match
	MatchValue     Operand
	Arms           []MatchArm
	MatchOtherwise BlockID

	// Call
	CallFunc        Operand
	CallArgs        []Operand
	CallArgModes    []ty.ParamMode
	CallDestination *Place
	CallTarget      BlockID
	CallUnwind      *BlockID
	CallDispatch    Dispatch

	// Throw
	ThrowException *Operand
	ThrowTy        *ty.Ty

	// Yield
	YieldValue  Operand
	YieldResume BlockID
	YieldDrop   BlockID

	// Await
	AwaitFuture      Operand
	AwaitDestination *Place
	AwaitResume      BlockID
	AwaitDrop        BlockID

	// Pending
	PendingRepr string
}

func GotoTerm(target BlockID) Terminator { return Terminator{Kind: TermGoto, Target: target} }

func SwitchIntTerm(discr Operand, cases []SwitchCase, otherwise BlockID) Terminator {
	return Terminator{Kind: TermSwitchInt, Discr: discr, Cases: cases, Otherwise: otherwise}
}

func ReturnTerm() Terminator { return Terminator{Kind: TermReturn} }

func ThrowTerm(exc *Operand, t *ty.Ty) Terminator {
	return Terminator{Kind: TermThrow, ThrowException: exc, ThrowTy: t}
}

func PanicTerm() Terminator { return Terminator{Kind: TermPanic} }

func UnreachableTerm() Terminator { return Terminator{Kind: TermUnreachable} }

func PendingTerm(repr string) Terminator { return Terminator{Kind: TermPending, PendingRepr: repr} }

func CallTerm(fn Operand, args []Operand, modes []ty.ParamMode, dest *Place, target BlockID, unwind *BlockID, dispatch Dispatch) Terminator {
	return Terminator{
		Kind:            TermCall,
		CallFunc:        fn,
		CallArgs:        args,
		CallArgModes:    modes,
		CallDestination: dest,
		CallTarget:      target,
		CallUnwind:      unwind,
		CallDispatch:    dispatch,
	}
}

// Successors lists every block this terminator can transfer control to, in
// a deterministic order. Used by reachability propagation (spec.md 4.8) and
// export trimming (spec.md 4.12).
func (t Terminator) Successors() []BlockID {
	switch t.Kind {
	case TermGoto:
		return []BlockID{t.Target}
	case TermSwitchInt:
		out := make([]BlockID, 0, len(t.Cases)+1)
		for _, c := range t.Cases {
			out = append(out, c.Target)
		}
		return append(out, t.Otherwise)
	case TermMatch:
		out := make([]BlockID, 0, len(t.Arms)+1)
		for _, a := range t.Arms {
			out = append(out, a.Target)
		}
		return append(out, t.MatchOtherwise)
	case TermCall:
		out := []BlockID{t.CallTarget}
		if t.CallUnwind != nil {
			out = append(out, *t.CallUnwind)
		}
		return out
	case TermYield:
		return []BlockID{t.YieldResume, t.YieldDrop}
	case TermAwait:
		return []BlockID{t.AwaitResume, t.AwaitDrop}
	default:
		return nil
	}
}

// IsExit reports whether this terminator always exits the function
// (Return/Throw/Panic/Unreachable) — used by reachability's "control flow
// always exits here" diagnostic note (spec.md 4.8).
func (t Terminator) IsExit() bool {
	switch t.Kind {
	case TermReturn, TermThrow, TermPanic, TermUnreachable:
		return true
	default:
		return false
	}
}
