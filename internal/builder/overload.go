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
	"github.com/chic-lang/chic/internal/symbols"
	"github.com/chic-lang/chic/internal/ty"
)

// symbolConst wraps a link-time symbol name as the Const operand a call's
// callee field carries until codegen resolves it to an actual function
// pointer/address (spec.md 3.4's Symbol ConstValue variant).
func symbolConst(name string) constval.Value { return constval.NewSymbol(name) }

// resolveOverload picks the single best candidate from a name's overload
// set by scoring parameter-type matches, per spec.md 4.4's overload-
// resolution bullet. A tie between the top two scores reports diagnostic
// E0410 and arbitrarily returns the first tied candidate so lowering can
// continue.
func (b *Builder) resolveOverload(name string, argTys []ty.Ty, span ast.Span) *symbols.FunctionOverload {
	candidates := b.Symbols.OverloadsByQualifiedName(name)
	if len(candidates) == 0 {
		candidates = b.Symbols.OverloadsByShortName(name)
	}
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	best := -1
	bestScore := -1
	secondScore := -1
	for i, c := range candidates {
		if len(c.Params) != len(argTys) && !c.Variadic {
			continue
		}
		score := scoreOverload(c, argTys)
		if score > bestScore {
			secondScore = bestScore
			bestScore = score
			best = i
		} else if score > secondScore {
			secondScore = score
		}
	}
	if best < 0 {
		return candidates[0]
	}
	if bestScore == secondScore {
		b.Diags.Errorf("E0410", span, "ambiguous call to %q: multiple overloads match equally well", name)
	}
	return candidates[best]
}

func scoreOverload(c *symbols.FunctionOverload, argTys []ty.Ty) int {
	score := 0
	for i, p := range c.Params {
		if i >= len(argTys) {
			break
		}
		if ty.Equal(p, argTys[i]) {
			score += 2
		} else {
			score++
		}
	}
	return score
}

// bindCallArguments binds a call's arguments to ov's parameters: arguments
// fill the parameter slots left to right, and any still-missing trailing
// parameters are filled from the default-argument table (spec.md 4.5).
// FunctionOverload carries no parameter names, so a named argument is bound
// by position exactly like a positional one; its name is not matched
// against the parameters.
func (b *Builder) bindCallArguments(ov *symbols.FunctionOverload, args []ast.Arg, span ast.Span) []mir.Operand {
	n := len(ov.Params)
	bound := make([]mir.Operand, n)
	filled := make([]bool, n)

	paramIndex := func(name string) int {
		// Overload metadata doesn't carry parameter names, so no name maps
		// to an index and every named argument takes the next positional
		// slot below.
		return -1
	}

	positional := 0
	for _, a := range args {
		if a.Name != "" {
			if idx := paramIndex(a.Name); idx >= 0 {
				bound[idx] = b.lowerExpr(a.Value)
				filled[idx] = true
				continue
			}
		}
		for positional < n && filled[positional] {
			positional++
		}
		if positional >= n {
			if ov.Variadic {
				bound = append(bound, b.lowerExpr(a.Value))
				continue
			}
			b.Diags.Errorf("E0401", span, "too many arguments to %q", ov.QualifiedName)
			continue
		}
		bound[positional] = b.lowerExpr(a.Value)
		filled[positional] = true
		positional++
	}

	for i := 0; i < n; i++ {
		if filled[i] {
			continue
		}
		bound[i] = b.defaultArgOperand(ov.QualifiedName, i, bound[:i], span)
	}
	return bound
}

// defaultArgOperand emits the stored constant, or a call to the synthesized
// thunk, for a parameter omitted at a call site (spec.md 4.5: "Each call
// site that omits an optional argument emits either the stored constant
// operand or a call to the thunk symbol"). earlierArgs are the already-bound
// operands for the parameters preceding index, which a thunk takes by value.
func (b *Builder) defaultArgOperand(qualifiedName string, index int, earlierArgs []mir.Operand, span ast.Span) mir.Operand {
	for _, rec := range b.Module.DefaultArgs {
		if rec.FunctionQualifiedName != qualifiedName || rec.ParamIndex != index {
			continue
		}
		if rec.Kind == mir.DefaultArgConst {
			return mir.ConstOperandOf(rec.ConstValue, ty.Unknown{})
		}
		args := append([]mir.Operand(nil), earlierArgs...)
		return b.emitCall(mir.ConstOperandOf(symbolConst(rec.ThunkSymbol), ty.Unknown{}), args, nil, ty.Unknown{}, mir.Dispatch{Kind: mir.DispatchStatic})
	}
	b.Diags.Errorf("E0402", span, "missing argument %d to %q and no default is recorded", index, qualifiedName)
	return pendingExpr("missing-arg")
}

// emitCall closes the current block with a Call terminator and switches to
// a fresh continuation block, returning the operand reading the call's
// result — every call ends a block because Call is a terminator, never an
// rvalue, in this MIR (spec.md 3.5).
func (b *Builder) emitCall(callee mir.Operand, args []mir.Operand, modes []ty.ParamMode, retTy ty.Ty, dispatch mir.Dispatch) mir.Operand {
	dest := b.newTemp(retTy)
	destPlace := mir.LocalPlace(dest)
	cont := b.newBlock()
	b.setTerm(mir.CallTerm(callee, args, modes, &destPlace, cont, nil, dispatch))
	b.switchTo(cont)
	return mir.CopyOperand(destPlace)
}

func (b *Builder) lowerCall(e ast.ExprNode, receiver *mir.Operand) mir.Operand {
	name := exprRepr(derefExpr(e.Callee))
	argTys := make([]ty.Ty, len(e.Args))
	for i := range e.Args {
		argTys[i] = ty.Unknown{}
	}
	ov := b.resolveOverload(name, argTys, e.Span)
	if ov == nil {
		return pendingExpr(name + "(...)")
	}
	args := b.bindCallArguments(ov, e.Args, e.Span)
	callee := mir.ConstOperandOf(symbolConst(ov.MangledName), ty.Unknown{})
	return b.emitCall(callee, args, ov.Modes, ov.Ret, mir.Dispatch{Kind: mir.DispatchStatic})
}

// lowerMethodCall lowers `recv.Method(args)`, deciding between static and
// virtual dispatch: a class type with a vtable slot for Method becomes a
// Virtual dispatch on the receiver's slot; an explicit `base.Method(...)`
// form (receiver is the literal `base` keyword, modeled here as an
// identifier named "base") sets BaseOwner so codegen reads the base class's
// static vtable instead of the runtime receiver header (spec.md 4.4).
func (b *Builder) lowerMethodCall(e ast.ExprNode) mir.Operand {
	recv := b.lowerExpr(*e.Base)
	ownerName := b.ReceiverType
	isBaseCall := e.Base != nil && e.Base.Kind == ast.ExprIdent && e.Base.Name == "base"

	dispatch := mir.Dispatch{Kind: mir.DispatchStatic}
	for _, vt := range b.Module.ClassVTables {
		if vt.ClassName != ownerName && !isBaseCall {
			continue
		}
		for _, slot := range vt.Slots {
			if slot.MemberName != e.Field {
				continue
			}
			dispatch = mir.Dispatch{Kind: mir.DispatchVirtual, SlotIndex: slot.SlotIndex, ReceiverIndex: 0}
			if isBaseCall {
				dispatch.BaseOwner = vt.ClassName
			}
		}
	}

	args := make([]mir.Operand, 0, len(e.Args)+1)
	args = append(args, recv)
	for _, a := range e.Args {
		args = append(args, b.lowerExpr(a.Value))
	}

	ov := b.resolveOverload(e.Field, nil, e.Span)
	callee := mir.ConstOperandOf(symbolConst(e.Field), ty.Unknown{})
	retTy := ty.Ty(ty.Unknown{})
	var modes []ty.ParamMode
	if ov != nil {
		callee = mir.ConstOperandOf(symbolConst(ov.MangledName), ty.Unknown{})
		retTy = ov.Ret
		modes = ov.Modes
	}
	return b.emitCall(callee, args, modes, retTy, dispatch)
}

// lowerFieldAccess lowers `obj.Field`: a plain field read if the symbol
// index has no property registered for it, otherwise a call to the getter
// accessor (spec.md 4.4's property-access bullet).
func (b *Builder) lowerFieldAccess(e ast.ExprNode) mir.Operand {
	ownerName := ownerTypeNameOf(e.Base, b.ReceiverType)
	if prop, ok := b.Symbols.Property(ownerName, e.Field); ok && prop.Accessors.HasGet {
		recv := b.lowerExpr(*e.Base)
		return b.emitCall(mir.ConstOperandOf(symbolConst(prop.Accessors.GetSymbol), ty.Unknown{}), []mir.Operand{recv}, nil, prop.Ty, mir.Dispatch{Kind: mir.DispatchStatic})
	}
	if place, ok := b.lowerPlace(e); ok {
		return mir.CopyOperand(place)
	}
	return pendingExpr(exprRepr(e))
}

// lowerPropertySet lowers `obj.Prop = value` to a call on the setter or
// init accessor. Writing an init-only property is legal only inside the
// owning class's constructor body; any other context emits E0430 (spec.md
// 4.4).
func (b *Builder) lowerPropertySet(target ast.ExprNode, value ast.ExprNode) mir.Operand {
	ownerName := ownerTypeNameOf(target.Base, b.ReceiverType)
	prop, ok := b.Symbols.Property(ownerName, target.Field)
	if !ok {
		return pendingExpr(exprRepr(target) + " = ...")
	}
	recv := b.lowerExpr(*target.Base)
	val := b.lowerExpr(value)

	if prop.Accessors.HasInit && !prop.Accessors.HasSet {
		if !b.InConstructor {
			b.Diags.Errorf("E0430", target.Span, "property %q is init-only and cannot be assigned outside its constructor", target.Field)
		}
		return b.emitCall(mir.ConstOperandOf(symbolConst(prop.Accessors.InitSymbol), ty.Unknown{}), []mir.Operand{recv, val}, nil, ty.Unit{}, mir.Dispatch{Kind: mir.DispatchStatic})
	}
	if prop.Accessors.HasSet {
		return b.emitCall(mir.ConstOperandOf(symbolConst(prop.Accessors.SetSymbol), ty.Unknown{}), []mir.Operand{recv, val}, nil, ty.Unit{}, mir.Dispatch{Kind: mir.DispatchStatic})
	}
	b.Diags.Errorf("E0431", target.Span, "property %q has no setter", target.Field)
	return pendingExpr(exprRepr(target) + " = ...")
}

func ownerTypeNameOf(base *ast.ExprNode, fallback string) string {
	if base != nil && base.Kind == ast.ExprIdent && base.Name == "self" {
		return fallback
	}
	return fallback
}
