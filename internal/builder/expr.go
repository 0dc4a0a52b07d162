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

// lowerExpr lowers one expression to the operand that holds its value.
// Exhaustive over ast.ExprKind, mirroring lowerStmt's exhaustiveness
// discipline: an unhandled kind becomes a Pending operand rather than being
// silently dropped (spec.md 4.4).
func (b *Builder) lowerExpr(e ast.ExprNode) mir.Operand {
	switch e.Kind {
	case ast.ExprLiteral:
		return b.lowerLiteral(e)
	case ast.ExprIdent:
		return b.lowerIdent(e)
	case ast.ExprCall:
		return b.lowerCall(e, nil)
	case ast.ExprMethodCall:
		return b.lowerMethodCall(e)
	case ast.ExprFieldAccess:
		return b.lowerFieldAccess(e)
	case ast.ExprIndex:
		if place, ok := b.lowerPlace(e); ok {
			return mir.CopyOperand(place)
		}
		return pendingExpr(exprRepr(e))
	case ast.ExprUnary:
		return b.lowerUnary(e)
	case ast.ExprBinary:
		return b.lowerBinary(e)
	case ast.ExprAssign:
		return b.lowerAssign(e)
	case ast.ExprTuple:
		return b.lowerAggregateLit(mir.AggregateTuple, ty.Unknown{}, e.Elements, nil)
	case ast.ExprArrayLit:
		return b.lowerAggregateLit(mir.AggregateArray, ty.Unknown{}, e.Elements, nil)
	case ast.ExprStructLit:
		return b.lowerStructLit(e)
	case ast.ExprClosure:
		return b.lowerClosure(e)
	case ast.ExprAwait:
		return b.lowerAwait(e)
	case ast.ExprCast:
		return b.lowerCast(e)
	case ast.ExprTry:
		return b.lowerTryOperator(e)
	case ast.ExprIf:
		return b.lowerIfExpr(e)
	case ast.ExprMatch:
		return b.lowerMatchExpr(e)
	case ast.ExprSpanCoerce:
		return b.lowerSpanCoerce(e)
	case ast.ExprInterpolatedString:
		return b.lowerInterpolatedString(e)
	case ast.ExprBorrow:
		return b.lowerBorrowExpr(e)
	case ast.ExprAddressOf:
		return b.lowerAddressOf(e)
	default:
		return pendingExpr(exprRepr(e))
	}
}

func (b *Builder) lowerLiteral(e ast.ExprNode) mir.Operand {
	v, t := parseLiteral(e.LiteralText, e.LiteralSuffix)
	return mir.ConstOperandOf(v, t)
}

func parseLiteral(text string, suffix ast.LiteralSuffix) (constval.Value, ty.Ty) {
	switch text {
	case "true":
		return constval.NewBool(true), ty.Named{Path: "bool"}
	case "false":
		return constval.NewBool(false), ty.Named{Path: "bool"}
	case "null":
		return constval.NewNull(), ty.Nullable{Inner: ty.Unknown{}}
	}
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		return constval.NewRawStr(text[1 : len(text)-1]), ty.StringTy{}
	}
	if len(text) >= 2 && text[0] == '\'' && text[len(text)-1] == '\'' {
		r := []rune(text[1 : len(text)-1])
		if len(r) == 1 {
			return constval.NewChar(uint16(r[0])), ty.Named{Path: "char"}
		}
	}
	return constval.NewUnknown(), literalSuffixTy(suffix)
}

func literalSuffixTy(suffix ast.LiteralSuffix) ty.Ty {
	if !suffix.Present {
		return ty.Named{Path: "int"}
	}
	return ty.Named{Path: suffix.Text}
}

// lowerIdent resolves a bare name: a local first, then it's left Pending for
// a later pass (or codegen) to resolve against the symbol index as a static,
// constant, or namespace-qualified path — spec.md 4.4's "Pending operands"
// bullet exists exactly for this ambiguity.
func (b *Builder) lowerIdent(e ast.ExprNode) mir.Operand {
	if id, ok := b.resolveLocal(e.Name); ok {
		return mir.CopyOperand(mir.LocalPlace(id))
	}
	if c, ok := b.Symbols.Constant(e.Name); ok {
		if c.Computed != nil {
			return mir.ConstOperandOf(*c.Computed, c.Ty)
		}
	}
	return pendingExpr(e.Name)
}

// lowerPlace lowers an expression that denotes an l-value into a Place,
// returning false for anything that isn't addressable (a literal, a call
// result before it's bound to a temp, etc).
func (b *Builder) lowerPlace(e ast.ExprNode) (mir.Place, bool) {
	switch e.Kind {
	case ast.ExprIdent:
		if id, ok := b.resolveLocal(e.Name); ok {
			return mir.LocalPlace(id), true
		}
		return mir.Place{}, false
	case ast.ExprFieldAccess:
		base, ok := b.lowerPlace(*e.Base)
		if !ok {
			return mir.Place{}, false
		}
		return base.FieldNamed(e.Field), true
	case ast.ExprIndex:
		base, ok := b.lowerPlace(*e.Base)
		if !ok {
			return mir.Place{}, false
		}
		idxOp := b.lowerExpr(*e.Index)
		idxLocal := b.newTemp(ty.Named{Path: "usize"})
		b.push(mir.AssignStmt(mir.LocalPlace(idxLocal), mir.UseRvalue(idxOp)))
		return base.Index(idxLocal), true
	case ast.ExprUnary:
		if e.Op == "*" {
			base, ok := b.lowerPlace(*e.Right)
			if !ok {
				return mir.Place{}, false
			}
			return base.Deref(), true
		}
	}
	return mir.Place{}, false
}

func (b *Builder) lowerUnary(e ast.ExprNode) mir.Operand {
	operand := b.lowerExpr(*e.Right)
	op, ok := unaryOpFor(e.Op)
	if !ok {
		return pendingExpr(exprRepr(e))
	}
	tmp := b.newTemp(ty.Unknown{})
	b.push(mir.AssignStmt(mir.LocalPlace(tmp), mir.UnaryRvalue(op, operand)))
	return mir.CopyOperand(mir.LocalPlace(tmp))
}

func unaryOpFor(op string) (mir.UnaryOp, bool) {
	switch op {
	case "-":
		return mir.UnaryNeg, true
	case "!":
		return mir.UnaryNot, true
	case "~":
		return mir.UnaryBitNot, true
	default:
		return 0, false
	}
}

func (b *Builder) lowerBinary(e ast.ExprNode) mir.Operand {
	lhs := b.lowerExpr(*e.Left)
	rhs := b.lowerExpr(*e.Right)
	op, ok := binaryOpFor(e.Op)
	if !ok {
		return pendingExpr(exprRepr(e))
	}
	tmp := b.newTemp(ty.Unknown{})
	b.push(mir.AssignStmt(mir.LocalPlace(tmp), mir.BinaryRvalue(op, lhs, rhs, mir.RoundDefault)))
	return mir.CopyOperand(mir.LocalPlace(tmp))
}

func binaryOpFor(op string) (mir.BinaryOp, bool) {
	switch op {
	case "+":
		return mir.BinAdd, true
	case "-":
		return mir.BinSub, true
	case "*":
		return mir.BinMul, true
	case "/":
		return mir.BinDiv, true
	case "%":
		return mir.BinRem, true
	case "&&":
		return mir.BinAnd, true
	case "||":
		return mir.BinOr, true
	case "&":
		return mir.BinBitAnd, true
	case "|":
		return mir.BinBitOr, true
	case "^":
		return mir.BinBitXor, true
	case "<<":
		return mir.BinShl, true
	case ">>":
		return mir.BinShr, true
	case "==":
		return mir.BinEq, true
	case "!=":
		return mir.BinNe, true
	case "<":
		return mir.BinLt, true
	case "<=":
		return mir.BinLe, true
	case ">":
		return mir.BinGt, true
	case ">=":
		return mir.BinGe, true
	default:
		return 0, false
	}
}

func (b *Builder) lowerAssign(e ast.ExprNode) mir.Operand {
	place, ok := b.lowerPlace(*e.Left)
	if !ok {
		if fa := e.Left; fa != nil && fa.Kind == ast.ExprFieldAccess {
			return b.lowerPropertySet(*fa, *e.Right)
		}
		return pendingExpr(exprRepr(e))
	}
	var value mir.Operand
	if e.Op == "=" {
		value = b.lowerExpr(*e.Right)
	} else {
		cur := mir.CopyOperand(place)
		rhs := b.lowerExpr(*e.Right)
		op, ok := binaryOpFor(compoundBase(e.Op))
		if !ok {
			return pendingExpr(exprRepr(e))
		}
		tmp := b.newTemp(ty.Unknown{})
		b.push(mir.AssignStmt(mir.LocalPlace(tmp), mir.BinaryRvalue(op, cur, rhs, mir.RoundDefault)))
		value = mir.CopyOperand(mir.LocalPlace(tmp))
	}
	b.push(mir.AssignStmt(place, mir.UseRvalue(value)))
	return mir.CopyOperand(place)
}

func compoundBase(op string) string {
	if len(op) >= 2 && op[len(op)-1] == '=' {
		return op[:len(op)-1]
	}
	return op
}

func (b *Builder) lowerAggregateLit(kind mir.AggregateKind, t ty.Ty, elements []ast.ExprNode, fieldNames []string) mir.Operand {
	ops := make([]mir.Operand, len(elements))
	for i, el := range elements {
		ops[i] = b.lowerExpr(el)
	}
	tmp := b.newTemp(t)
	b.push(mir.AssignStmt(mir.LocalPlace(tmp), mir.AggregateRvalue(kind, t, ops)))
	return mir.CopyOperand(mir.LocalPlace(tmp))
}

func (b *Builder) lowerStructLit(e ast.ExprNode) mir.Operand {
	t := ty.Named{Path: e.TypeName}
	elements := make([]ast.ExprNode, len(e.FieldValues))
	names := make([]string, len(e.FieldValues))
	for i, fv := range e.FieldValues {
		elements[i] = fv.Value
		names[i] = fv.Name
	}
	return b.lowerAggregateLit(mir.AggregateStruct, t, elements, names)
}

func (b *Builder) lowerCast(e ast.ExprNode) mir.Operand {
	operand := b.lowerExpr(*e.Operand)
	target := ty.Ty(ty.Unknown{})
	if e.TargetTy != nil {
		target = *e.TargetTy
	}
	tmp := b.newTemp(target)
	b.push(mir.AssignStmt(mir.LocalPlace(tmp), mir.CastRvalue(mir.CastNumeric, operand, ty.Unknown{}, target)))
	return mir.CopyOperand(mir.LocalPlace(tmp))
}

func (b *Builder) lowerIfExpr(e ast.ExprNode) mir.Operand {
	cond := b.lowerExpr(*e.Cond)
	thenBlock := b.newBlock()
	elseBlock := b.newBlock()
	after := b.newBlock()
	b.setTerm(mir.SwitchIntTerm(cond, []mir.SwitchCase{{Value: 1, Target: thenBlock}}, elseBlock))

	result := b.newTemp(ty.Unknown{})

	b.switchTo(thenBlock)
	thenVal := b.lowerExpr(*e.Then)
	b.push(mir.AssignStmt(mir.LocalPlace(result), mir.UseRvalue(thenVal)))
	b.closeFallthrough(mir.GotoTerm(after))

	b.switchTo(elseBlock)
	if e.Else != nil {
		elseVal := b.lowerExpr(*e.Else)
		b.push(mir.AssignStmt(mir.LocalPlace(result), mir.UseRvalue(elseVal)))
	}
	b.closeFallthrough(mir.GotoTerm(after))

	b.switchTo(after)
	return mir.CopyOperand(mir.LocalPlace(result))
}

func (b *Builder) lowerMatchExpr(e ast.ExprNode) mir.Operand {
	scrut := b.lowerExpr(*e.Cond)
	after := b.newBlock()
	result := b.newTemp(ty.Unknown{})
	var arms []mir.MatchArm
	for _, arm := range e.MatchArms {
		target := b.newBlock()
		arms = append(arms, mir.MatchArm{Pattern: patternText(arm.Pattern), Target: target})
		save := b.cur
		b.switchTo(target)
		val := b.lowerExpr(arm.Value)
		b.push(mir.AssignStmt(mir.LocalPlace(result), mir.UseRvalue(val)))
		b.closeFallthrough(mir.GotoTerm(after))
		b.switchTo(save)
	}
	b.setTerm(mir.Terminator{Kind: mir.TermMatch, MatchValue: scrut, Arms: arms, MatchOtherwise: after})
	b.switchTo(after)
	return mir.CopyOperand(mir.LocalPlace(result))
}

func (b *Builder) lowerInterpolatedString(e ast.ExprNode) mir.Operand {
	segs := make([]mir.StringSegment, len(e.Segments))
	for i, s := range e.Segments {
		if s.Expr != nil {
			segs[i] = mir.StringSegment{Kind: mir.StringSegmentExpr, Operand: b.lowerExpr(*s.Expr), Format: s.Format}
		} else {
			segs[i] = mir.StringSegment{Kind: mir.StringSegmentLiteral, Literal: s.Literal}
		}
	}
	tmp := b.newTemp(ty.StringTy{})
	b.push(mir.AssignStmt(mir.LocalPlace(tmp), mir.Rvalue{Kind: mir.RvalStringInterpolate, StringSegments: segs}))
	return mir.CopyOperand(mir.LocalPlace(tmp))
}

func (b *Builder) lowerBorrowExpr(e ast.ExprNode) mir.Operand {
	place, ok := b.lowerPlace(*e.Operand)
	if !ok {
		return pendingExpr(exprRepr(e))
	}
	kind := mir.BorrowShared
	if e.Mutable {
		kind = mir.BorrowUnique
	}
	id := b.nextBorrowID()
	region := "r"
	b.push(mir.BorrowStmt(id, kind, place, region))
	return mir.BorrowOperand(kind, place, region)
}

func (b *Builder) lowerAddressOf(e ast.ExprNode) mir.Operand {
	place, ok := b.lowerPlace(*e.Operand)
	if !ok {
		return pendingExpr(exprRepr(e))
	}
	tmp := b.newTemp(ty.Pointer{Elem: ty.Unknown{}, Mutable: e.Mutable})
	b.push(mir.AssignStmt(mir.LocalPlace(tmp), mir.AddressOfRvalue(e.Mutable, place)))
	return mir.CopyOperand(mir.LocalPlace(tmp))
}

// inferTy gives a best-effort type for an implicitly-typed local's
// declaration, used only when the declaration omits an explicit type
// (spec.md 4.4 doesn't mandate full inference here; this covers literals
// and identifiers, the common case, and leaves the rest Unknown for a later
// pass to narrow).
func (b *Builder) inferTy(e ast.ExprNode) ty.Ty {
	switch e.Kind {
	case ast.ExprLiteral:
		_, t := parseLiteral(e.LiteralText, e.LiteralSuffix)
		return t
	case ast.ExprIdent:
		if id, ok := b.resolveLocal(e.Name); ok {
			return b.body.Locals[id].Ty
		}
	}
	return ty.Unknown{}
}
