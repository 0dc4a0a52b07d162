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

// spanCoercionHelper names the runtime helper backing one implicit span
// coercion (spec.md 4.4's "Spans" bullet): Array to Span or ReadOnlySpan,
// Span to ReadOnlySpan, ReadOnlySpan to itself (a no-op widening kept
// explicit so every coercion site is uniform), and String to a byte or char
// ReadOnlySpan view.
func spanCoercionHelper(from, to ty.Ty) (string, bool) {
	switch from.(type) {
	case ty.Array:
		switch to.(type) {
		case ty.Span:
			return "chic_rt_span_of_array", true
		case ty.ReadOnlySpan:
			return "chic_rt_readonly_span_of_array", true
		}
	case ty.Span:
		if _, ok := to.(ty.ReadOnlySpan); ok {
			return "chic_rt_readonly_span_of_span", true
		}
	case ty.ReadOnlySpan:
		if _, ok := to.(ty.ReadOnlySpan); ok {
			return "chic_rt_readonly_span_identity", true
		}
	case ty.StringTy, ty.Str:
		if ros, ok := to.(ty.ReadOnlySpan); ok {
			if n, ok := ros.Elem.(ty.Named); ok && (n.Path == "byte" || n.Path == "u8") {
				return "chic_rt_readonly_span_of_string_bytes", true
			}
			return "chic_rt_readonly_span_of_string_chars", true
		}
	}
	return "", false
}

// lowerSpanCoerce lowers an explicit or inserted span coercion (spec.md
// 4.4), emitting a call to the runtime helper spanCoercionHelper picks for
// the operand's inferred type and the target type, or to the generic
// chic_rt_span_coerce when no helper matches. The call's only argument is
// the operand: no separate element-type argument is passed, and the element
// type appears only in the call's destination type.
func (b *Builder) lowerSpanCoerce(e ast.ExprNode) mir.Operand {
	inner := b.lowerExpr(*e.Operand)
	target := ty.Ty(ty.Unknown{})
	if e.TargetTy != nil {
		target = *e.TargetTy
	}
	helper, ok := spanCoercionHelper(b.inferTy(*e.Operand), target)
	if !ok {
		helper = "chic_rt_span_coerce"
	}
	callee := mir.ConstOperandOf(symbolConst(helper), ty.Unknown{})
	return b.emitCall(callee, []mir.Operand{inner}, nil, target, mir.Dispatch{Kind: mir.DispatchStatic})
}
