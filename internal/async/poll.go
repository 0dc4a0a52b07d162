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
	"github.com/chic-lang/chic/internal/mir"
	"github.com/chic-lang/chic/internal/ty"
)

// buildPoll synthesizes the poll function: `fn $poll(frame: &mut Frame) ->
// Poll<Ret>` (spec.md 4.7). Block 0 dispatches on frame.$state; blocks
// 1..=len(body.Blocks) are the original body's blocks cloned and remapped
// through a frame-routing remapper, with each Await terminator replaced by
// a call to the runtime's single-poll helper followed by a ready/pending
// switch; one further pair of blocks per suspend point holds that switch
// and the "still pending, save state and return" sequence; a final trap
// block guards against polling past completion.
func (l *lowering) buildPoll() {
	body := l.fn.Body
	retTy := l.fn.Signature.Ret
	pollTy := pollTyFor(l.layouts, retTy)

	pollSymbol := l.fn.Symbol + "$poll"
	newBody := mir.NewBody(pollSymbol, pollTy)
	newBody.Locals[mir.ReturnLocal].Mutable = true

	frameLocal := newBody.AddArg("frame", ty.Ref{Elem: l.frameTy(), ReadOnly: false}, true, 0)

	rm := &remapper{promoted: l.promoted, localShift: l.localShift, frameLocal: frameLocal}

	// Port every original local (including its own return slot, old id 0)
	// starting at new id 2, so the fixed localShift=2 offset the remapper
	// applies lines up for every old id uniformly.
	for _, old := range body.Locals {
		ported := old
		ported.Kind = mir.LocalKindLocal
		ported.ArgIndex = 0
		newBody.AddLocal(ported)
	}

	tempBase := mir.LocalID(len(newBody.Locals))
	spIndexByBlock := make(map[mir.BlockID]int, len(l.suspends))
	for i, sp := range l.suspends {
		elemTy := ty.Ty(ty.Unit{})
		if dest := body.Blocks[sp.AwaitExpr].Terminator.AwaitDestination; dest != nil {
			if int(dest.Local) < len(body.Locals) {
				elemTy = body.Locals[dest.Local].Ty
			}
		}
		newBody.AddLocal(mir.Local{Ty: pollTyFor(l.layouts, elemTy), Kind: mir.LocalKindTemp})
		spIndexByBlock[sp.AwaitExpr] = i
	}

	// Reserve block 0 for dispatch; clone the rest starting at block 1.
	newBody.Blocks = make([]mir.Block, 1, 1+len(body.Blocks)+2*len(l.suspends)+1)
	for oldID, blk := range body.Blocks {
		stmts := make([]mir.Statement, 0, len(blk.Statements))
		for _, st := range blk.Statements {
			if rm.isStorageMarkerOnPromoted(mir.Statement{}, st) {
				continue
			}
			stmts = append(stmts, rm.statement(st))
		}

		var term mir.Terminator
		switch {
		case blk.Terminator == nil:
			term = mir.UnreachableTerm()
		case blk.Terminator.Kind == mir.TermAwait:
			i := spIndexByBlock[mir.BlockID(oldID)]
			checkBlk := mir.BlockID(1 + len(body.Blocks) + 2*i)
			temp := tempBase + mir.LocalID(i)
			term = mir.CallTerm(
				symbolOperand("chic_rt_future_poll", ty.Fn{Params: []ty.Ty{ty.Named{Path: "any"}}, Ret: newBody.Locals[temp].Ty}),
				[]mir.Operand{rm.operand(blk.Terminator.AwaitFuture)},
				nil,
				&mir.Place{Local: temp},
				checkBlk,
				nil,
				mir.Dispatch{Kind: mir.DispatchStatic},
			)
		case blk.Terminator.Kind == mir.TermReturn:
			stmts = append(stmts, pollWrapStatements(pollTy, true, mir.CopyOperand(mir.Place{Local: rm.local(mir.ReturnLocal)}))...)
			term = mir.ReturnTerm()
		default:
			term = rm.terminator(*blk.Terminator)
		}
		newBody.Blocks = append(newBody.Blocks, mir.Block{Statements: stmts, Terminator: &term})
	}

	for i, sp := range l.suspends {
		t := body.Blocks[sp.AwaitExpr].Terminator
		temp := tempBase + mir.LocalID(i)

		var checkStmts []mir.Statement
		if t.AwaitDestination != nil {
			checkStmts = append(checkStmts, mir.AssignStmt(rm.place(*t.AwaitDestination), mir.UseRvalue(mir.CopyOperand(mir.Place{Local: temp}.FieldNamed("value")))))
		}
		pendingBlk := mir.BlockID(len(newBody.Blocks) + 1)
		checkTerm := mir.SwitchIntTerm(
			mir.CopyOperand(mir.Place{Local: temp}.FieldNamed("ready")),
			[]mir.SwitchCase{{Value: 1, Target: rm.block(t.AwaitResume)}},
			pendingBlk,
		)
		newBody.Blocks = append(newBody.Blocks, mir.Block{Statements: checkStmts, Terminator: &checkTerm})

		pendingStmts := []mir.Statement{
			mir.AssignStmt(framePlace(frameLocal, "$state"), mir.UseRvalue(intOperand(int64(sp.State), ty.Named{Path: "i32"}))),
		}
		pendingStmts = append(pendingStmts, pollWrapStatements(pollTy, false, mir.Operand{})...)
		pendingTerm := mir.ReturnTerm()
		newBody.Blocks = append(newBody.Blocks, mir.Block{Statements: pendingStmts, Terminator: &pendingTerm})
	}

	trapTerm := mir.UnreachableTerm()
	newBody.Blocks = append(newBody.Blocks, mir.Block{Terminator: &trapTerm})
	trapBlk := mir.BlockID(len(newBody.Blocks) - 1)

	dispatchCases := make([]mir.SwitchCase, 0, 1+len(l.suspends))
	dispatchCases = append(dispatchCases, mir.SwitchCase{Value: 0, Target: rm.block(mir.EntryBlock)})
	for _, sp := range l.suspends {
		dispatchCases = append(dispatchCases, mir.SwitchCase{Value: int64(sp.State), Target: rm.block(sp.AwaitExpr)})
	}
	dispatchTerm := mir.SwitchIntTerm(mir.CopyOperand(framePlace(frameLocal, "$state")), dispatchCases, trapBlk)
	newBody.Blocks[0] = mir.Block{Terminator: &dispatchTerm}

	if len(body.ExceptionRegions) > 0 {
		newBody.ExceptionRegions = make([]mir.ExceptionRegion, len(body.ExceptionRegions))
		for i, er := range body.ExceptionRegions {
			newBody.ExceptionRegions[i] = rm.exceptionRegion(er)
		}
	}

	l.poll = &mir.Function{
		Symbol:        pollSymbol,
		QualifiedName: l.fn.QualifiedName + "$poll",
		Signature:     ty.Fn{Params: []ty.Ty{ty.Ref{Elem: l.frameTy()}}, Modes: []ty.ParamMode{ty.ModeRef}, Ret: pollTy, Abi: ty.ChicAbi},
		ParamModes:    []ty.ParamMode{ty.ModeRef},
		Body:          newBody,
		Visibility:    l.fn.Visibility,
	}
}

// pollWrapStatements builds the Poll<T>{ready, value} the poll function
// returns through its return slot: a zero-init of the whole struct (so an
// omitted value field, in the pending case, reads as the type's default)
// followed by explicit field writes.
func pollWrapStatements(pollTy ty.Ty, ready bool, value mir.Operand) []mir.Statement {
	out := []mir.Statement{
		mir.ZeroInitStmt(mir.LocalPlace(mir.ReturnLocal), pollTy),
		mir.AssignStmt(mir.LocalPlace(mir.ReturnLocal).FieldNamed("ready"), mir.UseRvalue(boolOperand(ready))),
	}
	if ready {
		out = append(out, mir.AssignStmt(mir.LocalPlace(mir.ReturnLocal).FieldNamed("value"), mir.UseRvalue(value)))
	}
	return out
}

// buildDrop synthesizes the drop function: `fn $drop(frame: &mut Frame)`.
// It dispatches on frame.$state and drops exactly the locals recorded live
// at that suspend point, approximating "initialized by the time execution
// reached this state" from the same liveness data the frame layout itself
// was built from; a frame that was never suspended (state 0) or has
// already run to completion has nothing of its own to drop.
func (l *lowering) buildDrop() {
	dropSymbol := l.fn.Symbol + "$drop"
	body := mir.NewBody(dropSymbol, ty.Unit{})
	frameLocal := body.AddArg("frame", ty.Ref{Elem: l.frameTy(), ReadOnly: false}, true, 0)

	body.Blocks = make([]mir.Block, 1, 2+len(l.suspends))
	finalBlk := mir.BlockID(1 + len(l.suspends))

	for _, sp := range l.suspends {
		var stmts []mir.Statement
		for _, id := range sp.LiveLocals {
			field, ok := l.promoted[id]
			if !ok {
				continue
			}
			stmts = append(stmts, mir.DropStmt(framePlace(frameLocal, field), false))
		}
		term := mir.GotoTerm(finalBlk)
		body.Blocks = append(body.Blocks, mir.Block{Statements: stmts, Terminator: &term})
	}
	finalTerm := mir.ReturnTerm()
	body.Blocks = append(body.Blocks, mir.Block{Terminator: &finalTerm})

	cases := make([]mir.SwitchCase, 0, len(l.suspends))
	for i, sp := range l.suspends {
		cases = append(cases, mir.SwitchCase{Value: int64(sp.State), Target: mir.BlockID(1 + i)})
	}
	dispatchTerm := mir.SwitchIntTerm(mir.CopyOperand(framePlace(frameLocal, "$state")), cases, finalBlk)
	body.Blocks[0] = mir.Block{Terminator: &dispatchTerm}

	l.drop = &mir.Function{
		Symbol:        dropSymbol,
		QualifiedName: l.fn.QualifiedName + "$drop",
		Signature:     ty.Fn{Params: []ty.Ty{ty.Ref{Elem: l.frameTy()}}, Modes: []ty.ParamMode{ty.ModeRef}, Ret: ty.Unit{}, Abi: ty.ChicAbi},
		ParamModes:    []ty.ParamMode{ty.ModeRef},
		Body:          body,
		Visibility:    l.fn.Visibility,
	}
}

// buildConstructor synthesizes the constructor function: same parameter
// list as the original async function, returning a freshly zeroed Frame
// with state 0 and every parameter-sourced live local already packed into
// its frame field (spec.md 4.7's "packs the call arguments into a fresh
// frame"). A live local that is not itself a parameter is left zeroed;
// poll's own rewritten assignments populate it the first time execution
// reaches that point.
func (l *lowering) buildConstructor() {
	ctorSymbol := l.fn.Symbol + "$new"
	body := mir.NewBody(ctorSymbol, l.frameTy())
	body.Locals[mir.ReturnLocal].Mutable = true

	origArgs := make([]mir.LocalID, 0, len(l.fn.Signature.Params))
	for id, loc := range l.fn.Body.Locals {
		if loc.Kind == mir.LocalKindArg {
			origArgs = append(origArgs, mir.LocalID(id))
		}
	}
	newArgOf := make(map[mir.LocalID]mir.LocalID, len(origArgs))
	for _, old := range origArgs {
		orig := l.fn.Body.Locals[old]
		newArgOf[old] = body.AddArg(orig.Name, orig.Ty, orig.Mutable, orig.ArgIndex)
	}

	block0 := []mir.Statement{mir.ZeroInitStmt(mir.LocalPlace(mir.ReturnLocal), l.frameTy())}
	for _, id := range l.liveLocals {
		newArg, isParam := newArgOf[id]
		if !isParam {
			continue
		}
		field := l.promoted[id]
		block0 = append(block0, mir.AssignStmt(
			mir.LocalPlace(mir.ReturnLocal).FieldNamed(field),
			mir.UseRvalue(mir.CopyOperand(mir.LocalPlace(newArg))),
		))
	}
	term := mir.ReturnTerm()
	body.Blocks[0] = mir.Block{Statements: block0, Terminator: &term}

	l.constructor = &mir.Function{
		Symbol:        ctorSymbol,
		QualifiedName: l.fn.QualifiedName + "$new",
		Signature:     ty.Fn{Params: l.fn.Signature.Params, Modes: l.fn.Signature.Modes, Ret: l.frameTy(), Abi: ty.ChicAbi},
		ParamModes:    l.fn.Signature.Modes,
		Body:          body,
		Visibility:    l.fn.Visibility,
	}
}
