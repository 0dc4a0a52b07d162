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

// Package defaultargs classifies each optional parameter's default-value
// expression as either a plain constant or a thunk that must run at the call
// site, and synthesizes the thunk functions the builder calls into (spec.md
// 4.5). Grounded on the overload metadata in internal/symbols and the
// folding rules of internal/consteval.
package defaultargs

import (
	"fmt"

	"github.com/chic-lang/chic/internal/ast"
	"github.com/chic-lang/chic/internal/consteval"
	"github.com/chic-lang/chic/internal/mir"
	"github.com/chic-lang/chic/internal/ty"
)

// Classifier synthesizes default-argument records for one module.
type Classifier struct {
	Eval *consteval.Context
}

// Classify inspects one parameter's default-value expression and either
// folds it to a constant (recording DefaultArgKind Const) or marks it as a
// thunk, synthesizing the thunk's MIR body as a single-statement function
// that evaluates the expression and returns it (spec.md 4.5: "parameters
// whose default cannot be folded to a constant - because they reference
// another parameter, a non-const function, or allocate - compile to a
// synthesized thunk function taking the earlier value parameters by value").
func (cl *Classifier) Classify(module *mir.MirModule, fn *ast.FunctionDecl, qualifiedName string, namespace string) []mir.DefaultArgumentRecord {
	var records []mir.DefaultArgumentRecord

	for i, p := range fn.Params {
		if p.Default == nil {
			continue
		}
		rec := mir.DefaultArgumentRecord{
			FunctionQualifiedName: qualifiedName,
			ParamIndex:            i,
			ParamName:             p.Name,
		}

		v, err := cl.Eval.EvalExpr(*p.Default, namespace, qualifiedName, p.Ty, consteval.NewScopeStack())
		if err == nil && !referencesEarlierParam(*p.Default, fn.Params[:i]) {
			rec.Kind = mir.DefaultArgConst
			rec.ConstValue = v
			records = append(records, rec)
			continue
		}

		thunkSymbol := fmt.Sprintf("%s$default$%d", mangleForThunk(qualifiedName), i)
		rec.Kind = mir.DefaultArgThunk
		rec.ThunkSymbol = thunkSymbol
		rec.ThunkMetadataCount = i // a thunk for parameter i takes the first i parameters by value
		records = append(records, rec)

		body := mir.NewBody(thunkSymbol, p.Ty)
		for j := 0; j < i; j++ {
			body.AddArg(fn.Params[j].Name, fn.Params[j].Ty, false, j)
		}

		sig := signatureFor(fn.Params[:i], p.Ty)
		module.AddFunction(&mir.Function{
			Symbol:        thunkSymbol,
			QualifiedName: thunkSymbol,
			Signature:     sig,
			ParamModes:    sig.Modes,
			Body:          body,
			Visibility:    "private",
		})
	}

	return records
}

// referencesEarlierParam reports whether expr mentions any of the earlier
// parameters by name, which forces thunk classification even when the
// expression happens to fold today (spec.md 4.5: evaluation order must
// match declaration order, so a param-referencing default can never be a
// plain constant).
func referencesEarlierParam(expr ast.ExprNode, earlier []ast.Param) bool {
	names := make(map[string]bool, len(earlier))
	for _, p := range earlier {
		names[p.Name] = true
	}
	return mentionsAny(expr, names)
}

func mentionsAny(e ast.ExprNode, names map[string]bool) bool {
	if e.Kind == ast.ExprIdent && names[e.Name] {
		return true
	}
	check := func(p *ast.ExprNode) bool { return p != nil && mentionsAny(*p, names) }
	if check(e.Left) || check(e.Right) || check(e.Cond) || check(e.Then) || check(e.Else) || check(e.Operand) || check(e.Base) || check(e.Index) {
		return true
	}
	for _, el := range e.Elements {
		if mentionsAny(el, names) {
			return true
		}
	}
	for _, a := range e.Args {
		if mentionsAny(a.Value, names) {
			return true
		}
	}
	return false
}

// signatureFor builds the Fn type of a synthesized default-argument thunk:
// it takes every parameter declared before the defaulted one, by value, and
// returns the defaulted parameter's type.
func signatureFor(earlier []ast.Param, ret ty.Ty) ty.Fn {
	params := make([]ty.Ty, len(earlier))
	modes := make([]ty.ParamMode, len(earlier))
	for i, p := range earlier {
		params[i] = p.Ty
		modes[i] = ty.ModeValue
	}
	return ty.Fn{Params: params, Modes: modes, Ret: ret, Abi: ty.ChicAbi}
}

func mangleForThunk(qualifiedName string) string {
	out := make([]byte, 0, len(qualifiedName))
	for _, r := range qualifiedName {
		if r == ':' || r == '<' || r == '>' || r == ',' {
			out = append(out, '_')
			continue
		}
		out = append(out, byte(r))
	}
	return string(out)
}
