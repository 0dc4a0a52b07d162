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

package builder

import (
	"github.com/chic-lang/chic/internal/ast"
	"github.com/chic-lang/chic/internal/constval"
	"github.com/chic-lang/chic/internal/mir"
	"github.com/chic-lang/chic/internal/ty"
)

// tryContext tracks one enclosing try statement while its body and catches
// are being lowered (spec.md 4.4's TryContext): the slot holding an
// in-flight exception, the block a throw dispatches to, and — when a finally
// exists — the pending-flag local that records whether control is unwinding
// through it so the finally can re-raise once it's done.
type tryContext struct {
	exceptionSlot mir.LocalID
	dispatch      mir.BlockID
	finallyEntry  mir.BlockID
	hasFinally    bool
	pendingFlag   mir.LocalID
	hasPendingFlag bool
	scopeDepth    int
}

// lowerTry lowers a try/catch/finally statement (spec.md 4.4), registering an
// mir.ExceptionRegion describing its full control structure for later passes
// (unwind-table emission, §4.10) to consume.
func (b *Builder) lowerTry(s *ast.Stmt) {
	excSlot := b.body.AddLocal(mir.Local{Name: "$exc", Ty: ty.Nullable{Inner: ty.Unknown{}}, Mutable: true, Kind: mir.LocalKindTemp})
	dispatch := b.newBlock()

	hasFinally := s.Finally != nil
	var pendingFlag mir.LocalID
	var finallyEntry mir.BlockID = mir.InvalidBlock
	if hasFinally {
		pendingFlag = b.body.AddLocal(mir.Local{Name: "$pending", Ty: ty.Named{Path: "bool"}, Mutable: true, Kind: mir.LocalKindTemp})
		finallyEntry = b.newBlock()
	}

	tc := &tryContext{
		exceptionSlot:  excSlot,
		dispatch:       dispatch,
		finallyEntry:   finallyEntry,
		hasFinally:     hasFinally,
		pendingFlag:    pendingFlag,
		hasPendingFlag: hasFinally,
		scopeDepth:     b.scopeDepth,
	}
	b.tries = append(b.tries, tc)

	after := b.newBlock()
	unhandled := b.newBlock()

	bodyBlock := b.gotoNew()
	b.switchTo(bodyBlock)
	b.lowerBlock(s.TryBody)
	b.routeToFinallyOrAfter(tc, after)

	catches := make([]mir.CatchRegion, len(s.Catches))
	b.switchTo(dispatch)
	var arms []mir.MatchArm
	for i, c := range s.Catches {
		entry := b.newBlock()
		arms = append(arms, mir.MatchArm{Pattern: c.ExceptionTy, Target: entry})

		save := b.cur
		b.switchTo(entry)
		b.pushScope()
		if c.BindName != "" {
			bindLocal := b.body.AddLocal(mir.Local{Name: c.BindName, Ty: ty.Unknown{}, Kind: mir.LocalKindLocal})
			b.declare(c.BindName, bindLocal)
			b.push(mir.AssignStmt(mir.LocalPlace(bindLocal), mir.UseRvalue(mir.CopyOperand(mir.LocalPlace(excSlot)))))
		}
		b.push(mir.MarkFallibleHandledStmt(excSlot))
		b.lowerBlock(c.Body)
		b.popScope()
		b.routeToFinallyOrAfter(tc, after)
		b.switchTo(save)

		catches[i] = mir.CatchRegion{ExceptionTy: c.ExceptionTy, Entry: entry, Body: entry, Cleanup: mir.InvalidBlock, Filter: mir.InvalidBlock}
	}
	b.setTerm(mir.Terminator{Kind: mir.TermMatch, MatchValue: mir.CopyOperand(mir.LocalPlace(excSlot)), Arms: arms, MatchOtherwise: unhandled})

	b.switchTo(unhandled)
	b.push(mir.DeferDropStmt(mir.LocalPlace(excSlot)))
	if hasFinally {
		b.push(mir.AssignStmt(mir.LocalPlace(pendingFlag), mir.UseRvalue(mir.ConstOperandOf(boolConst(true), ty.Named{Path: "bool"}))))
		b.setTerm(mir.GotoTerm(finallyEntry))
	} else {
		b.setTerm(mir.ThrowTerm(exceptionOperandPtr(excSlot), nil))
	}

	if hasFinally {
		b.switchTo(finallyEntry)
		b.lowerBlock(s.Finally)
		if b.body.Blocks[b.cur].Terminator == nil {
			rethrow := b.newBlock()
			b.setTerm(mir.SwitchIntTerm(mir.CopyOperand(mir.LocalPlace(pendingFlag)), []mir.SwitchCase{{Value: 1, Target: rethrow}}, after))
			b.switchTo(rethrow)
			b.setTerm(mir.ThrowTerm(exceptionOperandPtr(excSlot), nil))
		}
	}

	region := mir.ExceptionRegion{
		Entry:          bodyBlock,
		Exit:           after,
		Dispatch:       dispatch,
		Catches:        catches,
		FinallyEntry:   finallyEntry,
		FinallyExit:    finallyEntry,
		HasFinally:     hasFinally,
		UnhandledBlock: unhandled,
		AfterBlock:     after,
		ExceptionSlot:  excSlot,
		PendingFlag:    pendingFlag,
		HasPendingFlag: hasFinally,
		ScopeDepth:     tc.scopeDepth,
	}
	b.body.ExceptionRegions = append(b.body.ExceptionRegions, region)

	b.tries = b.tries[:len(b.tries)-1]
	b.switchTo(after)
}

// routeToFinallyOrAfter closes the current (still-open) block by routing it
// either through the try's finally or directly to after, leaving an
// already-terminated block (return/throw/break/continue inside the arm)
// untouched.
func (b *Builder) routeToFinallyOrAfter(tc *tryContext, after mir.BlockID) {
	if b.body.Blocks[b.cur].Terminator != nil {
		return
	}
	if tc.hasFinally {
		b.push(mir.AssignStmt(mir.LocalPlace(tc.pendingFlag), mir.UseRvalue(mir.ConstOperandOf(boolConst(false), ty.Named{Path: "bool"}))))
		b.setTerm(mir.GotoTerm(tc.finallyEntry))
	} else {
		b.setTerm(mir.GotoTerm(after))
	}
}

func boolConst(v bool) constval.Value { return constval.NewBool(v) }

// lowerThrow lowers `throw expr;`. Inside any enclosing try, the thrown
// value is stored into the innermost try's exception slot and control jumps
// to that try's catch dispatch; an exception no catch matches reaches the
// finally, when there is one, through the unhandled block, matching the
// pending-flag discipline spec.md 4.4 describes for scoped exception
// handling. Outside any try it's a direct Throw terminator.
func (b *Builder) lowerThrow(s *ast.Stmt) {
	var op mir.Operand
	if s.Expr != nil {
		op = b.lowerExpr(*s.Expr)
	}
	if len(b.tries) == 0 {
		b.closeScopedDrops(0)
		b.setTerm(mir.ThrowTerm(&op, nil))
		b.switchTo(b.newBlock())
		return
	}
	tc := b.tries[len(b.tries)-1]
	b.closeScopedDrops(tc.scopeDepth)
	b.push(mir.AssignStmt(mir.LocalPlace(tc.exceptionSlot), mir.UseRvalue(op)))
	b.setTerm(mir.GotoTerm(tc.dispatch))
	b.switchTo(b.newBlock())
}

// lowerTryOperator lowers the `?` propagation operator: on failure it
// re-throws through the nearest enclosing try (or a direct Throw terminator
// at top level), on success it yields the unwrapped operand (spec.md 4.4's
// "fallible errors" note; modeled the same way lowerAwait models resumption,
// as a call-shaped fork over a Pending "is_err"/"unwrap" protocol until the
// fallibility analysis (spec.md 4.9, already implemented) narrows it).
func (b *Builder) lowerTryOperator(e ast.ExprNode) mir.Operand {
	inner := b.lowerExpr(*e.Operand)
	isErr := pendingExpr("result.is_err")
	errBlock := b.newBlock()
	okBlock := b.newBlock()
	b.setTerm(mir.SwitchIntTerm(isErr, []mir.SwitchCase{{Value: 1, Target: errBlock}}, okBlock))

	b.switchTo(errBlock)
	errVal := pendingExpr("result.unwrap_err")
	if len(b.tries) == 0 {
		b.closeScopedDrops(0)
		b.setTerm(mir.ThrowTerm(&errVal, nil))
	} else {
		tc := b.tries[len(b.tries)-1]
		b.closeScopedDrops(tc.scopeDepth)
		b.push(mir.AssignStmt(mir.LocalPlace(tc.exceptionSlot), mir.UseRvalue(errVal)))
		b.setTerm(mir.GotoTerm(tc.dispatch))
	}

	b.switchTo(okBlock)
	tmp := b.newTemp(ty.Unknown{})
	b.push(mir.AssignStmt(mir.LocalPlace(tmp), mir.UseRvalue(inner)))
	return mir.CopyOperand(mir.LocalPlace(tmp))
}

func exceptionOperandPtr(slot mir.LocalID) *mir.Operand {
	op := mir.CopyOperand(mir.LocalPlace(slot))
	return &op
}
