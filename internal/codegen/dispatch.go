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

// ShouldMultiversion reports whether f is eligible for per-tier body
// emission plus a dispatch stub (spec.md 4.11): non-local, non-async,
// non-generator, and compiled under the source-language ABI. Grounded on
// original_source/src/codegen/llvm/emitter/dispatch/variants.rs's
// should_multiversion, which checks the same four conditions against its
// FunctionKind/Abi/is_local()/is_async/is_generator predicates.
func ShouldMultiversion(f *mir.Function) bool {
	if f.Visibility == "private" {
		return false
	}
	if f.IsAsync {
		return false
	}
	if f.Body != nil && f.Body.Generator != nil {
		return false
	}
	return f.Signature.Abi.Kind == "chic"
}

// emitMultiversionVariants emits one body per requested ISA tier under
// "<symbol>__<suffix>" with internal linkage, then a public dispatch stub
// (grounded on variants.rs's emit_multiversion_variants/emit_dispatch_stub).
func (e *LLVMEmitter) emitMultiversionVariants(f *mir.Function, sig llvmSignature) error {
	for _, tier := range e.isaTiers {
		variantSymbol := fmt.Sprintf("%s__%s", f.Symbol, tier.Suffix())
		variantSig := sig
		variantSig.symbol = variantSymbol
		fb := newFuncBuilder(e, f, variantSig, variantSymbol, "internal dso_local")
		if err := fb.build(); err != nil {
			return err
		}
	}
	e.emitDispatchStub(f.Symbol, sig)
	return nil
}

// emitDispatchStub writes the public "weak_odr dso_local" stub: it calls
// @chic_cpu_select_tier(), switches on the returned i32 across every
// requested tier (baseline is the switch's default arm), and merges
// non-void results through a phi at the exit block -- the exact shape
// variants.rs's emit_dispatch_stub builds.
func (e *LLVMEmitter) emitDispatchStub(symbol string, sig llvmSignature) {
	fmt.Fprintf(&e.out, "define weak_odr dso_local %s @%s(%s) {\n", sig.ret, symbol, sig.paramList())
	e.out.WriteString("entry:\n")
	fmt.Fprintf(&e.out, "  %%tier = call i32 @chic_cpu_select_tier()\n")

	argNames := make([]string, len(sig.params))
	for i := range sig.params {
		argNames[i] = fmt.Sprintf("%%arg%d", i)
	}
	callArgs := joinTypedArgs(sig.params, argNames)

	var nonBaseline []CpuIsaTier
	for _, t := range e.isaTiers {
		if t != TierBaseline {
			nonBaseline = append(nonBaseline, t)
		}
	}

	e.out.WriteString("  switch i32 %tier, label %dispatch_baseline [\n")
	for _, t := range nonBaseline {
		fmt.Fprintf(&e.out, "    i32 %d, label %%dispatch_%s\n", t.Index(), t.Suffix())
	}
	e.out.WriteString("  ]\n")

	results := make(map[string]string)
	emitCase := func(label string, variantSymbol string) {
		fmt.Fprintf(&e.out, "%s:\n", label)
		if sig.ret == "void" {
			fmt.Fprintf(&e.out, "  call void @%s(%s)\n", variantSymbol, callArgs)
		} else {
			val := fmt.Sprintf("%%r_%s", label)
			fmt.Fprintf(&e.out, "  %s = call %s @%s(%s)\n", val, sig.ret, variantSymbol, callArgs)
			results[label] = val
		}
		e.out.WriteString("  br label %dispatch_exit\n")
	}

	emitCase("dispatch_baseline", symbol+"__"+TierBaseline.Suffix())
	for _, t := range nonBaseline {
		emitCase("dispatch_"+t.Suffix(), symbol+"__"+t.Suffix())
	}

	e.out.WriteString("dispatch_exit:\n")
	if sig.ret != "void" {
		labels := []string{"dispatch_baseline"}
		for _, t := range nonBaseline {
			labels = append(labels, "dispatch_"+t.Suffix())
		}
		fmt.Fprintf(&e.out, "  %%result = phi %s ", sig.ret)
		for i, l := range labels {
			if i > 0 {
				e.out.WriteString(", ")
			}
			fmt.Fprintf(&e.out, "[ %s, %%%s ]", results[l], l)
		}
		e.out.WriteString("\n")
		fmt.Fprintf(&e.out, "  ret %s %%result\n", sig.ret)
	} else {
		e.out.WriteString("  ret void\n")
	}
	e.out.WriteString("}\n\n")
}

func joinTypedArgs(types, names []string) string {
	out := ""
	for i := range types {
		if i > 0 {
			out += ", "
		}
		out += types[i] + " " + names[i]
	}
	return out
}
