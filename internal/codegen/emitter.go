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
	"sort"
	"strings"

	"github.com/chic-lang/chic/internal/abi"
	"github.com/chic-lang/chic/internal/mir"
	"github.com/chic-lang/chic/internal/target"
	"github.com/chic-lang/chic/internal/ty"
)

// LLVMEmitter renders one MirModule into textual LLVM IR (spec.md 6.3). It
// is grounded in shape on gapil/compiler's C struct -- a Types table plus a
// *codegen.Module the rest of that package's functions take as a shared
// handle -- but never links against LLVM: every method below appends
// plain text to an internal strings.Builder.
type LLVMEmitter struct {
	module  *mir.MirModule
	target  target.Target
	isaTiers []CpuIsaTier
	sveBits int

	out      strings.Builder
	runtime  *runtimeSet
	declared map[string]bool // function symbols already given a `declare`
}

// NewLLVMEmitter constructs an emitter for one module/target/ISA-ladder
// combination.
func NewLLVMEmitter(m *mir.MirModule, t target.Target, isaTiers []CpuIsaTier, sveBits int) *LLVMEmitter {
	return &LLVMEmitter{
		module:   m,
		target:   t,
		isaTiers: isaTiers,
		sveBits:  sveBits,
		runtime:  newRuntimeSet(),
		declared: make(map[string]bool),
	}
}

// Emit renders the full module: well-known globals, string literals,
// statics, every function body (multiversioned when eligible), the
// multiversion dispatch platform helper, and finally the accumulated
// runtime `declare` block (emitted last since it depends on everything
// emitted before it having registered its runtime references).
func (e *LLVMEmitter) Emit() (string, error) {
	e.emitWellKnownGlobals()
	e.emitStatics()

	// Function/dispatch-helper emission runs before string-literal emission:
	// statement.go's assert and string-interpolation lowering may intern new
	// literals (e.g. assert messages) while walking bodies, so the interner
	// is only complete once every function has been emitted. The two
	// sections are built into a separate buffer and spliced in afterward so
	// each `@__chx_str_N` global still precedes its first use textually.
	var body strings.Builder
	externals := make(map[string]bool)
	for _, f := range e.module.Functions {
		if f.Body == nil {
			continue
		}
		if err := e.emitFunction(f, externals); err != nil {
			return "", err
		}
	}
	if len(e.isaTiers) > 1 {
		e.emitCPUDispatchHelpers()
	}
	body.WriteString(e.out.String())
	e.out.Reset()

	e.emitStringLiterals()
	e.out.WriteString(body.String())

	decls := e.runtime.declarations()
	if decls != "" {
		e.out.WriteString("\n; runtime intrinsics\n")
		e.out.WriteString(decls)
	}

	return e.out.String(), nil
}

// emitWellKnownGlobals writes nothing in either case. @chic_cpu_active_tier
// and, on the Linux aarch64 backend, @chic_cpu_sve_bits are emitted by
// emitCPUDispatchHelpers (cpu_helpers.go) once multiversioning is requested,
// since their presence and initializer depend on the target/tier ladder
// those helpers already inspect; a single-tier module, where no dispatch
// helpers run, gets neither global.
func (e *LLVMEmitter) emitWellKnownGlobals() {
	if len(e.isaTiers) > 1 {
		return
	}
}

// emitStringLiterals renders one `@__chx_str_<N>` global per interned
// string (spec.md 6.3).
func (e *LLVMEmitter) emitStringLiterals() {
	n := e.module.Strings.Len()
	for i := 0; i < n; i++ {
		s, ok := e.module.Strings.Lookup(mir.StrID(i))
		if !ok {
			continue
		}
		bytes := []byte(s)
		fmt.Fprintf(&e.out, "@__chx_str_%d = private unnamed_addr constant [%d x i8] c\"%s\", align 1\n",
			i, len(bytes), escapeLLVMString(bytes))
	}
}

func escapeLLVMString(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			sb.WriteByte(c)
		} else {
			fmt.Fprintf(&sb, "\\%02X", c)
		}
	}
	return sb.String()
}

func (e *LLVMEmitter) emitStatics() {
	for _, s := range e.module.Statics {
		linkage := "internal global"
		init := "zeroinitializer"
		fmt.Fprintf(&e.out, "@%s = %s %s %s\n", s.Name, linkage, e.llvmType(s.Ty), init)
	}
}

// llvmType maps a Ty to its LLVM textual spelling. Pointer-shaped source
// types (raw pointers, references, Rc/Arc, trait objects, function values)
// all collapse to the opaque `ptr` LLVM uses since 15.x, matching the
// style original_source/src/codegen/llvm/emitter/dispatch/cpu_helpers
// already writes (e.g. "ptr @sysctlbyname").
func (e *LLVMEmitter) llvmType(t ty.Ty) string {
	switch v := t.(type) {
	case ty.Unit:
		return "void"
	case ty.Unknown:
		return "ptr"
	case ty.Pointer, ty.Ref, ty.Rc, ty.Arc, ty.TraitObject, ty.Fn:
		return "ptr"
	case ty.Nullable:
		return e.llvmType(v.Inner)
	case ty.Named:
		if prim, ok := llvmPrimitiveName(v.Path); ok {
			return prim
		}
		return "%" + mangleStructName(v.CanonicalName())
	case ty.Array:
		return fmt.Sprintf("[%d x %s]", v.Rank, e.llvmType(v.Elem))
	case ty.Vec, ty.Span, ty.ReadOnlySpan:
		return "{ ptr, i64 }"
	case ty.StringTy, ty.Str:
		return "ptr"
	case ty.Tuple:
		parts := make([]string, len(v.Elems))
		for i, el := range v.Elems {
			parts[i] = e.llvmType(el)
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	case ty.Vector:
		return fmt.Sprintf("<%d x %s>", v.Lanes, e.llvmType(v.Elem))
	default:
		return "ptr"
	}
}

// llvmPrimitiveName maps the primitive Named.Path spellings internal/ty and
// internal/abi already treat as scalar (abi.go's isScalarPrimitiveName) to
// their LLVM type.
func llvmPrimitiveName(path string) (string, bool) {
	switch strings.ToLower(path) {
	case "bool":
		return "i1", true
	case "byte", "sbyte", "i8", "u8":
		return "i8", true
	case "char", "short", "ushort", "i16", "u16":
		return "i16", true
	case "int", "uint", "i32", "u32":
		return "i32", true
	case "long", "ulong", "i64", "u64":
		return "i64", true
	case "isize", "usize", "nint", "nuint":
		return "i64", true
	case "float", "f32":
		return "float", true
	case "double", "f64":
		return "double", true
	default:
		return "", false
	}
}

// sizeofExpr renders an i64 LLVM constant expression computing sizeof(t),
// using the classic "gep null, 1 -> ptrtoint" idiom the teacher's own
// LLVM-adjacent code favours over a getelementptr-free closed form, since
// this emitter has no target-specific struct layout table of its own beyond
// what internal/ty.layout already computed for internal/abi.
func (e *LLVMEmitter) sizeofExpr(t ty.Ty) string {
	return fmt.Sprintf("ptrtoint(ptr getelementptr (%s, ptr null, i32 1) to i64)", e.llvmType(t))
}

// internString renders the pointer constant for interned string id sid's
// backing global, decaying its [N x i8] array to a ptr the same way a C
// string literal decays.
func (e *LLVMEmitter) internString(s string) string {
	sid := e.module.Strings.Intern(s)
	return fmt.Sprintf("getelementptr inbounds ([%d x i8], ptr @__chx_str_%d, i32 0, i32 0)", len(s), int(sid))
}

func mangleStructName(canonical string) string {
	var sb strings.Builder
	for _, r := range canonical {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// emitFunction emits one function's IR: its multiversioned tier bodies plus
// dispatch stub when eligible (spec.md 4.11), or a single definition
// otherwise.
func (e *LLVMEmitter) emitFunction(f *mir.Function, externals map[string]bool) error {
	sig, err := e.functionSignature(f)
	if err != nil {
		return err
	}

	if len(e.isaTiers) > 1 && ShouldMultiversion(f) {
		return e.emitMultiversionVariants(f, sig)
	}

	fb := newFuncBuilder(e, f, sig, f.Symbol, "dso_local")
	return fb.build()
}

// llvmSignature is the emitter's own lightweight view of a function's
// LLVM-level shape, parallel to abi.Signature but covering both chic-ABI
// and extern "C" functions (abi.ClassifySignature only accepts the latter).
type llvmSignature struct {
	symbol   string
	ret      string
	params   []string
	variadic bool
}

func (e *LLVMEmitter) functionSignature(f *mir.Function) (llvmSignature, error) {
	if f.Signature.Abi.IsExternC() {
		t, err := abi.ClassifySignature(f.Signature, f.ParamModes, e.module.Layouts, e.target)
		if err != nil {
			return llvmSignature{}, codegenErrorf("classifying C ABI signature for %s: %v", f.Symbol, err)
		}
		sig := llvmSignature{symbol: f.Symbol, variadic: t.Variadic}
		if t.Ret.Kind == abi.ReturnIndirectSret {
			sig.ret = "void"
			sig.params = append(sig.params, "ptr sret("+e.llvmType(t.Ret.Ty)+")")
		} else if t.Ret.Coerce != "" {
			sig.ret = t.Ret.Coerce
		} else {
			sig.ret = e.llvmType(t.Ret.Ty)
		}
		for _, p := range t.Params {
			switch p.Pass {
			case abi.PassIndirectByVal:
				sig.params = append(sig.params, fmt.Sprintf("ptr byval(%s) align %d", e.llvmType(p.Ty), p.Align))
			case abi.PassIndirectPtr:
				sig.params = append(sig.params, "ptr")
			default:
				if p.Coerce != "" {
					sig.params = append(sig.params, p.Coerce)
				} else {
					sig.params = append(sig.params, e.llvmType(p.Ty))
				}
			}
		}
		return sig, nil
	}

	sig := llvmSignature{symbol: f.Symbol, ret: e.llvmType(f.Signature.Ret), variadic: f.Signature.Variadic}
	for i, p := range f.Signature.Params {
		mode := ty.ModeValue
		if i < len(f.ParamModes) {
			mode = f.ParamModes[i]
		}
		if mode == ty.ModeRef || mode == ty.ModeOut || mode == ty.ModeIn {
			sig.params = append(sig.params, "ptr")
		} else {
			sig.params = append(sig.params, e.llvmType(p))
		}
	}
	return sig, nil
}

func (s llvmSignature) paramList() string {
	parts := make([]string, len(s.params))
	for i, p := range s.params {
		parts[i] = fmt.Sprintf("%s %%arg%d", p, i)
	}
	if s.variadic {
		parts = append(parts, "...")
	}
	return strings.Join(parts, ", ")
}

// sortedFunctionNames is a small determinism helper used by callers that
// need to walk e.module.Functions by symbol rather than definition order.
func sortedFunctionNames(m *mir.MirModule) []string {
	names := make([]string, 0, len(m.Functions))
	for _, f := range m.Functions {
		names = append(names, f.Symbol)
	}
	sort.Strings(names)
	return names
}
