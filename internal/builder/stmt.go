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
	"github.com/chic-lang/chic/internal/mir"
	"github.com/chic-lang/chic/internal/ty"
)

// lowerBlock lowers every statement of one AST block in order, in a fresh
// lexical scope. Per-statement lowering is exhaustive (spec.md 4.4): any
// StmtKind this switch doesn't recognize falls through to a Pending
// statement, so the verifier can reject it rather than the compiler silently
// dropping semantics.
func (b *Builder) lowerBlock(block *ast.Block) {
	b.pushScope()
	for i := range block.Stmts {
		if b.body.Blocks[b.cur].Terminator != nil {
			// Dead statements after an unconditional exit (return/throw/
			// break/continue) are never lowered; reachability diagnostics
			// for the surrounding AST are the parser/driver's job, not
			// this builder's.
			break
		}
		b.lowerStmt(&block.Stmts[i])
	}
	b.popScope()
}

func (b *Builder) lowerStmt(s *ast.Stmt) {
	switch s.Kind {
	case ast.StmtBlock:
		b.lowerBlock(s.Block)
	case ast.StmtEmpty:
		b.push(mir.NopStmt())
	case ast.StmtConstDecl, ast.StmtVarDecl:
		b.lowerVarDecl(s)
	case ast.StmtExpr:
		op := b.lowerExpr(*s.Expr)
		b.push(mir.Statement{Kind: mir.StmtEval, EvalOperand: op})
	case ast.StmtReturn:
		b.lowerReturn(s)
	case ast.StmtIf:
		b.lowerIf(s)
	case ast.StmtWhile:
		b.lowerWhile(s)
	case ast.StmtFor:
		b.lowerFor(s)
	case ast.StmtForEach:
		b.lowerForEach(s)
	case ast.StmtSwitch:
		b.lowerSwitch(s)
	case ast.StmtTry:
		b.lowerTry(s)
	case ast.StmtThrow:
		b.lowerThrow(s)
	case ast.StmtBreak:
		b.lowerBreak()
	case ast.StmtContinue:
		b.lowerContinue()
	case ast.StmtUsing, ast.StmtLock, ast.StmtFixed, ast.StmtAtomicBlock:
		b.lowerScopedResource(s)
	case ast.StmtYield:
		b.lowerYield(s)
	case ast.StmtUnsafeBlock:
		b.push(mir.Statement{Kind: mir.StmtEnterUnsafe})
		b.lowerBlock(s.Block)
		b.push(mir.Statement{Kind: mir.StmtExitUnsafe})
	case ast.StmtAsm:
		b.lowerAsm(s)
	default:
		b.push(mir.PendingStmt("unsupported statement"))
	}
}

func (b *Builder) lowerVarDecl(s *ast.Stmt) {
	var declTy ty.Ty = ty.Unknown{}
	explicit := s.Ty != nil
	if explicit {
		declTy = *s.Ty
	}
	id := b.body.AddLocal(mir.Local{Name: s.Name, Ty: declTy, Mutable: s.Mutable, Kind: mir.LocalKindLocal})
	b.declare(s.Name, id)
	if s.Init != nil {
		place := mir.LocalPlace(id)
		op := b.lowerExpr(*s.Init)
		if !explicit {
			b.body.Locals[id].Ty = b.inferTy(*s.Init)
		}
		b.push(mir.AssignStmt(place, mir.UseRvalue(op)))
	} else {
		b.push(mir.DefaultInitStmt(mir.LocalPlace(id), declTy))
	}
}

func (b *Builder) lowerReturn(s *ast.Stmt) {
	if s.Expr != nil {
		op := b.lowerExpr(*s.Expr)
		b.push(mir.AssignStmt(mir.LocalPlace(mir.ReturnLocal), mir.UseRvalue(op)))
	}
	b.closeScopedDrops(0)
	b.setTerm(mir.ReturnTerm())
}

func (b *Builder) lowerIf(s *ast.Stmt) {
	cond := b.lowerExpr(*s.Cond)
	thenBlock := b.newBlock()
	elseBlock := b.newBlock()
	after := mir.InvalidBlock

	b.setTerm(mir.SwitchIntTerm(cond, []mir.SwitchCase{{Value: 1, Target: thenBlock}}, elseBlock))

	b.switchTo(thenBlock)
	b.lowerBlock(s.Then)
	thenOpen := b.body.Blocks[b.cur].Terminator == nil
	thenEnd := b.cur

	b.switchTo(elseBlock)
	if s.Else != nil {
		b.lowerBlock(s.Else)
	}
	elseOpen := b.body.Blocks[b.cur].Terminator == nil
	elseEnd := b.cur

	if thenOpen || elseOpen {
		after = b.newBlock()
		if thenOpen {
			save := b.cur
			b.switchTo(thenEnd)
			b.setTerm(mir.GotoTerm(after))
			b.switchTo(save)
		}
		if elseOpen {
			save := b.cur
			b.switchTo(elseEnd)
			b.setTerm(mir.GotoTerm(after))
			b.switchTo(save)
		}
		b.switchTo(after)
	} else {
		// Both arms exit; leave the builder positioned on a fresh
		// unreachable-but-present block so subsequent sibling statements
		// (which the parser should not have produced, but the builder must
		// still accept per spec.md 4.4's exhaustiveness rule) have somewhere
		// to land.
		b.switchTo(b.newBlock())
	}
}

func (b *Builder) lowerWhile(s *ast.Stmt) {
	headBlock := b.gotoNew()
	cond := b.lowerExpr(*s.Cond)
	bodyBlock := b.newBlock()
	after := b.newBlock()
	b.setTerm(mir.SwitchIntTerm(cond, []mir.SwitchCase{{Value: 1, Target: bodyBlock}}, after))

	b.loops = append(b.loops, loopContext{breakTarget: after, continueTarget: headBlock, scopeDepth: b.scopeDepth})
	b.switchTo(bodyBlock)
	b.lowerBlock(s.Then)
	b.closeFallthrough(mir.GotoTerm(headBlock))
	b.loops = b.loops[:len(b.loops)-1]

	b.switchTo(after)
}

func (b *Builder) lowerFor(s *ast.Stmt) {
	b.pushScope()
	if s.ForInit != nil {
		b.lowerStmt(s.ForInit)
	}
	headBlock := b.gotoNew()
	after := mir.InvalidBlock
	bodyBlock := b.newBlock()
	if s.ForCond != nil {
		cond := b.lowerExpr(*s.ForCond)
		after = b.newBlock()
		b.setTerm(mir.SwitchIntTerm(cond, []mir.SwitchCase{{Value: 1, Target: bodyBlock}}, after))
	} else {
		after = b.newBlock()
		b.setTerm(mir.GotoTerm(bodyBlock))
	}

	postBlock := b.newBlock()
	b.loops = append(b.loops, loopContext{breakTarget: after, continueTarget: postBlock, scopeDepth: b.scopeDepth})
	b.switchTo(bodyBlock)
	b.lowerBlock(s.ForBody)
	b.closeFallthrough(mir.GotoTerm(postBlock))
	b.loops = b.loops[:len(b.loops)-1]

	b.switchTo(postBlock)
	if s.ForPost != nil {
		_ = b.lowerExpr(*s.ForPost)
	}
	b.closeFallthrough(mir.GotoTerm(headBlock))

	b.switchTo(after)
	b.popScope()
}

// lowerForEach lowers `for x in iter { ... }` as a manual iterator protocol:
// an iterator local is materialized once, then each iteration calls its
// `MoveNext`-style advance through a Pending operand (the concrete iterator
// trait/vtable shape is a symbol-index concern resolved later, spec.md 4.4's
// "Pending operands" bullet), binding the element name fresh in the loop
// body's scope each pass.
func (b *Builder) lowerForEach(s *ast.Stmt) {
	b.pushScope()
	iterOp := b.lowerExpr(*s.IterExpr)
	iterLocal := b.newTemp(ty.Unknown{})
	b.push(mir.AssignStmt(mir.LocalPlace(iterLocal), mir.UseRvalue(iterOp)))

	headBlock := b.gotoNew()
	hasNext := pendingExpr("iterator.has_next")
	bodyBlock := b.newBlock()
	after := b.newBlock()
	b.setTerm(mir.SwitchIntTerm(hasNext, []mir.SwitchCase{{Value: 1, Target: bodyBlock}}, after))

	b.loops = append(b.loops, loopContext{breakTarget: after, continueTarget: headBlock, scopeDepth: b.scopeDepth})
	b.switchTo(bodyBlock)
	b.pushScope()
	elemLocal := b.body.AddLocal(mir.Local{Name: s.BindName, Ty: ty.Unknown{}, Kind: mir.LocalKindLocal})
	b.declare(s.BindName, elemLocal)
	b.push(mir.AssignStmt(mir.LocalPlace(elemLocal), mir.UseRvalue(pendingExpr("iterator.current"))))
	b.lowerBlock(s.ForEachBody)
	b.popScope()
	b.closeFallthrough(mir.GotoTerm(headBlock))
	b.loops = b.loops[:len(b.loops)-1]

	b.switchTo(after)
	b.popScope()
}

func (b *Builder) lowerSwitch(s *ast.Stmt) {
	scrut := b.lowerExpr(*s.Cond)
	after := b.newBlock()
	var arms []mir.MatchArm
	for _, arm := range s.SwitchArms {
		target := b.newBlock()
		for _, pat := range arm.Patterns {
			arms = append(arms, mir.MatchArm{Pattern: patternText(pat), Target: target})
		}
		save := b.cur
		b.switchTo(target)
		b.lowerBlock(arm.Body)
		b.closeFallthrough(mir.GotoTerm(after))
		b.switchTo(save)
	}
	b.setTerm(mir.Terminator{Kind: mir.TermMatch, MatchValue: scrut, Arms: arms, MatchOtherwise: after})
	b.switchTo(after)
}

func patternText(p ast.Pattern) string {
	switch p.Kind {
	case ast.PatternWildcard:
		return "_"
	case ast.PatternLiteral:
		return p.LiteralText
	case ast.PatternBinding:
		return p.BindKind + " " + p.Name
	case ast.PatternType:
		return p.TypeName
	default:
		return "<pattern>"
	}
}

func (b *Builder) lowerBreak() {
	if len(b.loops) == 0 {
		b.push(mir.PendingStmt("break outside loop"))
		return
	}
	loop := b.loops[len(b.loops)-1]
	b.closeScopedDrops(loop.scopeDepth)
	b.setTerm(mir.GotoTerm(loop.breakTarget))
	b.switchTo(b.newBlock())
}

func (b *Builder) lowerContinue() {
	if len(b.loops) == 0 {
		b.push(mir.PendingStmt("continue outside loop"))
		return
	}
	loop := b.loops[len(b.loops)-1]
	b.closeScopedDrops(loop.scopeDepth)
	b.setTerm(mir.GotoTerm(loop.continueTarget))
	b.switchTo(b.newBlock())
}

// closeScopedDrops emits a Drop for every resource-scope local opened at or
// beyond targetDepth, in reverse (innermost-first) order, matching spec.md
// 4.4's "guaranteed release on all exit paths" for using/lock/fixed/atomic
// scopes. Most scopes never register a resource local, so this is a no-op
// in the common case.
func (b *Builder) closeScopedDrops(targetDepth int) {
	for i := len(b.resourceLocals) - 1; i >= 0; i-- {
		r := b.resourceLocals[i]
		if r.depth < targetDepth {
			break
		}
		b.push(mir.DropStmt(mir.LocalPlace(r.local), false))
	}
}

func (b *Builder) lowerYield(s *ast.Stmt) {
	var val mir.Operand
	if s.Expr != nil {
		val = b.lowerExpr(*s.Expr)
	}
	resume := b.newBlock()
	drop := b.newBlock()
	b.setTerm(mir.Terminator{Kind: mir.TermYield, YieldValue: val, YieldResume: resume, YieldDrop: drop})
	b.switchTo(resume)
}

func (b *Builder) lowerAsm(s *ast.Stmt) {
	var ins []mir.Operand
	for _, o := range s.AsmOperands {
		ins = append(ins, b.lowerExpr(o))
	}
	b.push(mir.Statement{Kind: mir.StmtInlineAsm, AsmTemplate: s.AsmTemplate, AsmInputs: ins})
}
