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
)

// terminator lowers one mir.Terminator to LLVM text, closing out the basic
// block it ends.
func (fb *funcBuilder) terminator(t mir.Terminator, body *mir.Body) {
	switch t.Kind {
	case mir.TermGoto:
		fmt.Fprintf(&fb.out, "  br label %%bb%d\n", t.Target)
	case mir.TermReturn:
		fb.returnTerm()
	case mir.TermSwitchInt:
		fb.switchIntTerm(t)
	case mir.TermMatch:
		fb.matchTerm(t)
	case mir.TermCall:
		fb.callTerm(t)
	case mir.TermThrow:
		fb.throwTerm(t)
	case mir.TermPanic:
		fmt.Fprintf(&fb.out, "  call void %s(ptr null, ptr null) noreturn\n", fb.e.runtime.use("chic_rt_throw"))
		fb.out.WriteString("  unreachable\n")
	case mir.TermUnreachable:
		fb.out.WriteString("  unreachable\n")
	case mir.TermYield, mir.TermAwait:
		// Reached only on a body internal/async has not lowered to its poll
		// state machine (spec.md 4.7); such a body is a builder/async bug,
		// not a codegen-time condition, so this emits a documented trap
		// rather than guessing at a resume target.
		fmt.Fprintf(&fb.out, "  ; unresumed suspend terminator kind=%d reached codegen\n", t.Kind)
		fb.out.WriteString("  unreachable\n")
	case mir.TermPending:
		fmt.Fprintf(&fb.out, "  ; pending terminator: %s\n", t.PendingRepr)
		fb.out.WriteString("  unreachable\n")
	}
}

func (fb *funcBuilder) returnTerm() {
	if fb.sig.ret == "void" {
		fb.out.WriteString("  ret void\n")
		return
	}
	retSlot := fb.slot[mir.ReturnLocal]
	val := fb.next("ret")
	fmt.Fprintf(&fb.out, "  %s = load %s, ptr %s\n", val, fb.sig.ret, retSlot)
	fmt.Fprintf(&fb.out, "  ret %s %s\n", fb.sig.ret, val)
}

func (fb *funcBuilder) switchIntTerm(t mir.Terminator) {
	discr, dty := fb.operandValue(t.Discr)
	fmt.Fprintf(&fb.out, "  switch %s %s, label %%bb%d [\n", dty, discr, t.Otherwise)
	for _, c := range t.Cases {
		fmt.Fprintf(&fb.out, "    %s %d, label %%bb%d\n", dty, c.Value, c.Target)
	}
	fb.out.WriteString("  ]\n")
}

// matchTerm lowers a pattern Match terminator as a linear chain of
// conditional branches over its match value's already-classified discriminant,
// since general pattern matching is a front-end concern (internal/ast) that
// has reduced to a concrete target list by the time MIR reaches codegen.
func (fb *funcBuilder) matchTerm(t mir.Terminator) {
	for i, arm := range t.Arms {
		if arm.Guard == nil {
			fmt.Fprintf(&fb.out, "  br label %%bb%d\n", arm.Target)
			return
		}
		guard, _ := fb.operandValue(*arm.Guard)
		next := fmt.Sprintf("bb_match_next%d_%d", fb.tmp, i)
		fb.tmp++
		fmt.Fprintf(&fb.out, "  br i1 %s, label %%bb%d, label %%%s\n", guard, arm.Target, next)
		fmt.Fprintf(&fb.out, "%s:\n", next)
	}
	fmt.Fprintf(&fb.out, "  br label %%bb%d\n", t.MatchOtherwise)
}

func (fb *funcBuilder) callTerm(t mir.Terminator) {
	args := make([]string, 0, len(t.CallArgs))
	for _, a := range t.CallArgs {
		val, aty := fb.operandValue(a)
		args = append(args, aty+" "+val)
	}
	callee, _ := fb.operandValue(t.CallFunc)

	if t.CallDestination != nil {
		destPtr, destTy := fb.placeRef(*t.CallDestination)
		retTy := fb.e.llvmType(destTy)
		if retTy == "void" {
			fmt.Fprintf(&fb.out, "  call void %s(%s)\n", callee, joinArgs(args))
		} else {
			val := fb.next("call")
			fmt.Fprintf(&fb.out, "  %s = call %s %s(%s)\n", val, retTy, callee, joinArgs(args))
			fmt.Fprintf(&fb.out, "  store %s %s, ptr %s\n", retTy, val, destPtr)
		}
	} else {
		fmt.Fprintf(&fb.out, "  call void %s(%s)\n", callee, joinArgs(args))
	}
	fmt.Fprintf(&fb.out, "  br label %%bb%d\n", t.CallTarget)
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += ", "
		}
		out += a
	}
	return out
}

func (fb *funcBuilder) throwTerm(t mir.Terminator) {
	var excVal, excTy string
	if t.ThrowException != nil {
		excVal, excTy = fb.operandValue(*t.ThrowException)
	} else {
		excVal, excTy = "null", "ptr"
	}
	_ = excTy
	typeInfo := "null"
	if t.ThrowTy != nil {
		typeInfo = fb.e.internString((*t.ThrowTy).CanonicalName())
	}
	fmt.Fprintf(&fb.out, "  call void %s(ptr %s, ptr %s) noreturn\n", fb.e.runtime.use("chic_rt_throw"), excVal, typeInfo)
	fb.out.WriteString("  unreachable\n")
}
