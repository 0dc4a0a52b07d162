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

// Package generics runs after all function bodies are lowered (spec.md
// 4.6). It drives a worklist of FunctionSpecialization requests, deep-
// substituting a generic base function's signature and body for a set of
// concrete type arguments, mangling the result under a canonical name, and
// instantiating a matching struct/class/enum layout alongside it. Seeding
// mirrors how internal/trim walks call graphs from an explicit root set
// rather than rediscovering entry points itself.
package generics

import (
	"github.com/chic-lang/chic/internal/ast"
	"github.com/chic-lang/chic/internal/constval"
	"github.com/chic-lang/chic/internal/diag"
	"github.com/chic-lang/chic/internal/env"
	"github.com/chic-lang/chic/internal/mir"
	"github.com/chic-lang/chic/internal/ty"
)

// FunctionSpecialization is one worklist entry (spec.md 4.6).
type FunctionSpecialization struct {
	Base       string
	Specialized string
	TypeArgs   []ty.Ty
}

// Specializer owns the worklist and the module/layout registry it mutates.
type Specializer struct {
	Module  *mir.MirModule
	Layouts *ty.TypeLayoutTable
	Diags   *diag.Bag

	worklist []FunctionSpecialization
	done     map[string]bool
}

// NewSpecializer constructs a specializer bound to one module and its type
// layout registry.
func NewSpecializer(module *mir.MirModule, layouts *ty.TypeLayoutTable, diags *diag.Bag) *Specializer {
	return &Specializer{Module: module, Layouts: layouts, Diags: diags, done: make(map[string]bool)}
}

// Request enqueues base<typeArgs> for specialization if it hasn't already
// been produced (spec.md 4.6 step 1: "Skip if specialized already exists").
func (s *Specializer) Request(base string, typeArgs []ty.Ty) {
	mangled := MangleName(base, typeArgs)
	if s.done[mangled] {
		return
	}
	if _, exists := s.Module.FunctionByQualifiedName(mangled); exists {
		s.done[mangled] = true
		return
	}
	s.worklist = append(s.worklist, FunctionSpecialization{Base: base, Specialized: mangled, TypeArgs: typeArgs})
}

// Run drains the worklist, specializing every entry and scanning each newly
// produced body for further generic call sites, until the worklist is dry
// (spec.md 4.6 steps 2-5).
func (s *Specializer) Run() {
	for len(s.worklist) > 0 {
		entry := s.worklist[0]
		s.worklist = s.worklist[1:]
		if s.done[entry.Specialized] {
			continue
		}
		s.specializeOne(entry)
	}
}

func (s *Specializer) specializeOne(entry FunctionSpecialization) {
	base, ok := s.Module.FunctionByQualifiedName(entry.Base)
	if !ok {
		s.Diags.Notef("N0600", ast.Span{}, "generics: base function %q not found for specialization %q", entry.Base, entry.Specialized)
		return
	}
	s.done[entry.Specialized] = true

	subst := bindGenericParams(base.GenericParams, entry.TypeArgs)
	if env.DebugGenericInstantiation() {
		s.Diags.Notef("N0601", ast.Span{}, "generics: instantiating %s -> %s", entry.Base, entry.Specialized)
	}

	specialized := &mir.Function{
		Symbol:            entry.Specialized,
		QualifiedName:     entry.Specialized,
		Signature:         substituteFn(base.Signature, subst),
		ParamModes:        base.ParamModes,
		Exported:          base.Exported,
		Visibility:        base.Visibility,
		IsAsync:           base.IsAsync,
		BaseQualifiedName: entry.Base,
		TypeArgs:          entry.TypeArgs,
	}
	if base.Body != nil {
		specialized.Body = substituteBody(base.Body, subst, entry.Specialized)
	}
	s.Module.AddFunction(specialized)
	s.instantiateLayouts(entry.TypeArgs, subst)

	if specialized.Body != nil {
		s.scanForFurtherCalls(specialized.Body)
	}
}

// bindGenericParams maps each declared generic parameter name to its
// corresponding concrete type argument, positionally.
func bindGenericParams(params []string, args []ty.Ty) map[string]ty.Ty {
	subst := make(map[string]ty.Ty, len(params))
	for i, p := range params {
		if i < len(args) {
			subst[p] = args[i]
		}
	}
	return subst
}

// scanForFurtherCalls implements spec.md 4.6 step 4: any call in the newly
// specialized body whose target is itself a generic function, with concrete
// argument types recoverable from the call's operands, is pushed onto the
// worklist.
func (s *Specializer) scanForFurtherCalls(body *mir.Body) {
	for _, blk := range body.Blocks {
		if blk.Terminator == nil || blk.Terminator.Kind != mir.TermCall {
			continue
		}
		name, ok := calleeSymbolName(blk.Terminator.CallFunc)
		if !ok {
			continue
		}
		callee, found := s.Module.FunctionByQualifiedName(name)
		if !found || !callee.IsGeneric || len(callee.GenericParams) == 0 {
			continue
		}
		argTys := operandTypes(body, s.Layouts, blk.Terminator.CallArgs)
		typeArgs, ok := unifyGenericArgs(callee.Signature, callee.GenericParams, argTys)
		if !ok {
			continue
		}
		s.Request(name, typeArgs)
	}
}

func calleeSymbolName(op mir.Operand) (string, bool) {
	if op.Kind != mir.OperandConst || op.Const.Value.Kind != constval.Symbol {
		return "", false
	}
	return op.Const.Value.Symbol, true
}

// unifyGenericArgs matches the base function's declared parameter types
// (which may mention a generic parameter name directly, e.g. Named{Path:
// "T"}) against the call's argument types, recovering a concrete type per
// generic parameter. Returns false if any parameter's type can't be pinned
// down from the call site.
func unifyGenericArgs(sig ty.Fn, params []string, argTys []ty.Ty) ([]ty.Ty, bool) {
	bound := make(map[string]ty.Ty, len(params))
	for i, p := range sig.Params {
		if i >= len(argTys) || argTys[i] == nil {
			continue
		}
		unify(p, argTys[i], bound)
	}
	out := make([]ty.Ty, len(params))
	for i, p := range params {
		t, ok := bound[p]
		if !ok {
			return nil, false
		}
		out[i] = t
	}
	return out, true
}

func unify(param, arg ty.Ty, bound map[string]ty.Ty) {
	switch p := param.(type) {
	case ty.Named:
		if len(p.Args) == 0 {
			if _, exists := bound[p.Path]; !exists {
				bound[p.Path] = arg
			}
			return
		}
		if a, ok := arg.(ty.Named); ok && len(a.Args) == len(p.Args) {
			for i := range p.Args {
				unify(p.Args[i], a.Args[i], bound)
			}
		}
	case ty.Ref:
		if a, ok := arg.(ty.Ref); ok {
			unify(p.Elem, a.Elem, bound)
		}
	case ty.Vec:
		if a, ok := arg.(ty.Vec); ok {
			unify(p.Elem, a.Elem, bound)
		}
	case ty.Span:
		if a, ok := arg.(ty.Span); ok {
			unify(p.Elem, a.Elem, bound)
		}
	}
}

// MangleName produces the canonical specialized name spec.md 4.6 mandates:
// "{base}<{arg1_canonical_name},{arg2_canonical_name},...>".
func MangleName(base string, typeArgs []ty.Ty) string {
	if len(typeArgs) == 0 {
		return base
	}
	out := base + "<"
	for i, a := range typeArgs {
		if i > 0 {
			out += ","
		}
		out += a.CanonicalName()
	}
	return out + ">"
}

func operandTypes(body *mir.Body, layouts *ty.TypeLayoutTable, ops []mir.Operand) []ty.Ty {
	out := make([]ty.Ty, len(ops))
	for i, op := range ops {
		out[i] = operandTy(body, layouts, op)
	}
	return out
}

func operandTy(body *mir.Body, layouts *ty.TypeLayoutTable, op mir.Operand) ty.Ty {
	switch op.Kind {
	case mir.OperandCopy, mir.OperandMove, mir.OperandBorrow:
		t, ok := placeValueTy(body, layouts, op.Place)
		if !ok {
			return nil
		}
		return t
	case mir.OperandConst:
		return op.Const.Ty
	default:
		return nil
	}
}
