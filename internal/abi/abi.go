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

// Package abi classifies extern "C" function signatures into the concrete
// by-value/byval/sret/coercion plan each target requires (spec.md 4.9):
// aarch64 HFA detection, SysV x86-64 aggregate-indirect and unaligned-field
// rules, and the Windows non-power-of-two rule. Ported directly from
// original_source/src/abi/c_abi.rs's classify_c_abi_signature and its
// helpers, reshaped into Go value types consulting internal/ty's layout
// table instead of the Rust MIR's.
package abi

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/chic-lang/chic/internal/target"
	"github.com/chic-lang/chic/internal/ty"
)

// Pass names how one parameter crosses the C ABI boundary.
type Pass int

const (
	PassDirect Pass = iota
	PassIndirectByVal
	PassIndirectPtr
)

// Param is one classified parameter.
type Param struct {
	Index  int
	Ty     ty.Ty
	Mode   ty.ParamMode
	Pass   Pass
	Align  int    // meaningful for the two indirect Pass kinds
	Coerce string // optional LLVM-level coercion type, e.g. "i64", "[2 x i64]"
}

// ReturnKind tags how the return value crosses the boundary.
type ReturnKind int

const (
	ReturnDirect ReturnKind = iota
	ReturnIndirectSret
)

// Return is the classified return value.
type Return struct {
	Ty     ty.Ty
	Kind   ReturnKind
	Align  int    // meaningful for ReturnIndirectSret
	Coerce string // optional, ReturnDirect only
}

// Signature is the fully classified extern "C" signature.
type Signature struct {
	Ret      Return
	Params   []Param
	Variadic bool
}

// ClassifySignature is the Go counterpart of classify_c_abi_signature: it
// only accepts signatures whose Abi is extern "C".
func ClassifySignature(sig ty.Fn, paramModes []ty.ParamMode, layouts *ty.TypeLayoutTable, t target.Target) (Signature, error) {
	if !sig.Abi.IsExternC() {
		return Signature{}, errors.Errorf("unsupported extern ABI %q for C ABI classifier", sig.Abi.Name)
	}

	params := make([]Param, len(sig.Params))
	for i, pty := range sig.Params {
		mode := ty.ModeValue
		if i < len(paramModes) {
			mode = paramModes[i]
		}
		p, err := classifyParam(pty, mode, layouts, t)
		if err != nil {
			return Signature{}, err
		}
		p.Index = i
		params[i] = p
	}

	ret, err := classifyReturn(sig.Ret, layouts, t)
	if err != nil {
		return Signature{}, err
	}

	return Signature{Ret: ret, Params: params, Variadic: sig.Variadic}, nil
}

func classifyParam(t_ ty.Ty, mode ty.ParamMode, layouts *ty.TypeLayoutTable, t target.Target) (Param, error) {
	if mode != ty.ModeValue {
		return Param{Ty: t_, Mode: mode, Pass: PassDirect}, nil
	}
	if isScalar(t_, layouts) {
		return Param{Ty: t_, Mode: mode, Pass: PassDirect}, nil
	}
	size, align, ok := layouts.SizeAndAlignForTy(t_)
	if !ok {
		return Param{}, errors.Errorf("missing layout metadata for %q in C ABI classification", t_.CanonicalName())
	}
	indirect, err := isAggregatePassedIndirect(t, t_, size, layouts)
	if err != nil {
		return Param{}, err
	}
	if indirect {
		switch t.Arch {
		case target.Aarch64:
			return Param{Ty: t_, Mode: mode, Pass: PassIndirectPtr, Align: align}, nil
		case target.X86_64:
			return Param{Ty: t_, Mode: mode, Pass: PassIndirectByVal, Align: sysvByValAlign(t, align)}, nil
		default:
			return Param{}, errors.Errorf("unsupported architecture for C ABI classification")
		}
	}
	coerce, err := aggregateCoerceType(t_, size, layouts, t, false)
	if err != nil {
		return Param{}, err
	}
	return Param{Ty: t_, Mode: mode, Pass: PassDirect, Coerce: coerce}, nil
}

func classifyReturn(t_ ty.Ty, layouts *ty.TypeLayoutTable, t target.Target) (Return, error) {
	if _, isUnit := t_.(ty.Unit); isUnit {
		return Return{Ty: t_, Kind: ReturnDirect}, nil
	}
	if isScalar(t_, layouts) {
		return Return{Ty: t_, Kind: ReturnDirect}, nil
	}
	size, align, ok := layouts.SizeAndAlignForTy(t_)
	if !ok {
		return Return{}, errors.Errorf("missing layout metadata for %q in C ABI classification", t_.CanonicalName())
	}
	indirect, err := isAggregateReturnedIndirect(t, t_, size, layouts)
	if err != nil {
		return Return{}, err
	}
	if indirect {
		return Return{Ty: t_, Kind: ReturnIndirectSret, Align: align}, nil
	}
	coerce, err := aggregateCoerceType(t_, size, layouts, t, true)
	if err != nil {
		return Return{}, err
	}
	return Return{Ty: t_, Kind: ReturnDirect, Coerce: coerce}, nil
}

// aggregateCoerceType mirrors c_abi.rs's aggregate_coerce_type: aarch64 HFAs
// and the Windows non-power-of-two sizes pass through untouched (the caller
// already decided Direct vs indirect); everything else folds to an integer
// or small-struct coercion type keyed purely on byte size.
func aggregateCoerceType(t_ ty.Ty, size int, layouts *ty.TypeLayoutTable, t target.Target, isReturn bool) (string, error) {
	if isScalar(t_, layouts) {
		return "", nil
	}
	switch t.Arch {
	case target.Aarch64:
		if _, ok := aarch64HFA(t_, layouts); ok {
			return "", nil
		}
		if t.OS == target.Windows && !isPowerSizeDirect(size) {
			return "", nil
		}
		if size <= 8 {
			return fmt.Sprintf("i%d", size*8), nil
		}
		if size <= 16 {
			parts := (size + 7) / 8
			return fmt.Sprintf("[%d x i64]", parts), nil
		}
	case target.X86_64:
		if t.OS == target.Windows && !isPowerSizeDirect(size) {
			return "", nil
		}
		if size <= 8 {
			return fmt.Sprintf("i%d", size*8), nil
		}
		if size <= 16 {
			secondBytes := size - 8
			if secondBytes < 0 {
				secondBytes = 0
			}
			secondBits := secondBytes * 8
			second := "i64"
			if secondBits != 64 {
				second = fmt.Sprintf("i%d", secondBits)
			}
			return fmt.Sprintf("{ i64, %s }", second), nil
		}
	}
	return "", nil
}

// isPowerSizeDirect mirrors matches!(size, 1 | 2 | 4 | 8) in the original.
func isPowerSizeDirect(size int) bool {
	return size == 1 || size == 2 || size == 4 || size == 8
}

func isScalar(t_ ty.Ty, layouts *ty.TypeLayoutTable) bool {
	switch v := t_.(type) {
	case ty.Pointer, ty.Ref, ty.Rc, ty.Arc:
		return true
	case ty.Fn:
		return v.Abi.Kind == "extern"
	case ty.Unit:
		return true
	case ty.Named:
		short := lastSegment(v.Path)
		if isScalarPrimitiveName(strings.ToLower(short)) {
			return true
		}
		l, ok := layouts.LayoutForName(v.CanonicalName())
		if !ok {
			return false
		}
		switch {
		case l.Enum != nil:
			return true
		case l.Struct != nil && l.Struct.IsClass:
			return true
		default:
			return false
		}
	default:
		return false
	}
}

func isScalarPrimitiveName(lower string) bool {
	switch lower {
	case "bool", "byte", "sbyte", "i8", "u8", "char", "short", "ushort", "i16", "u16",
		"int", "uint", "i32", "u32", "long", "ulong", "i64", "u64",
		"isize", "usize", "nint", "nuint", "float", "double", "f32", "f64":
		return true
	default:
		return false
	}
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "::"); i >= 0 {
		return path[i+2:]
	}
	return path
}

func isAggregatePassedIndirect(t target.Target, t_ ty.Ty, size int, layouts *ty.TypeLayoutTable) (bool, error) {
	switch {
	case t.Arch == target.X86_64 && t.OS != target.Windows:
		unaligned, err := sysvAggregateHasUnalignedFields(t_, layouts)
		if err != nil {
			return false, err
		}
		return size > 16 || unaligned, nil
	case t.Arch == target.Aarch64 && t.OS != target.Windows:
		if _, ok := aarch64HFA(t_, layouts); ok {
			return false, nil
		}
		return size > 16, nil
	case t.OS == target.Windows:
		return !isPowerSizeDirect(size), nil
	default:
		return false, errors.Errorf("unsupported (arch, os) combination for C ABI classification")
	}
}

func isAggregateReturnedIndirect(t target.Target, t_ ty.Ty, size int, layouts *ty.TypeLayoutTable) (bool, error) {
	return isAggregatePassedIndirect(t, t_, size, layouts)
}

func sysvByValAlign(t target.Target, align int) int {
	if t.Arch == target.X86_64 && t.OS != target.Windows {
		if align < 8 {
			return 8
		}
		return align
	}
	return align
}

// sysvAggregateHasUnalignedFields mirrors
// x86_64_sysv_aggregate_contains_unaligned_fields_inner: a field whose
// backfilled offset is not a multiple of its own alignment forces the whole
// aggregate indirect on SysV x86-64, since the platform cannot otherwise
// guarantee register-class alignment.
func sysvAggregateHasUnalignedFields(t_ ty.Ty, layouts *ty.TypeLayoutTable) (bool, error) {
	visited := make(map[string]bool)
	return sysvUnalignedInner(t_, layouts, visited)
}

func sysvUnalignedInner(t_ ty.Ty, layouts *ty.TypeLayoutTable, visited map[string]bool) (bool, error) {
	if isScalar(t_, layouts) {
		return false, nil
	}
	switch v := t_.(type) {
	case ty.Named:
		canonical := v.CanonicalName()
		if visited[canonical] {
			return false, nil
		}
		visited[canonical] = true
		l, ok := layouts.LayoutForName(canonical)
		if !ok {
			return false, nil
		}
		switch {
		case l.Struct != nil:
			for _, f := range l.Struct.Fields {
				if f.Offset == nil {
					continue
				}
				_, align, ok := layouts.SizeAndAlignForTy(f.Ty)
				if !ok {
					continue
				}
				if align != 0 && *f.Offset%align != 0 {
					return true, nil
				}
				bad, err := sysvUnalignedInner(f.Ty, layouts, visited)
				if err != nil || bad {
					return bad, err
				}
			}
			return false, nil
		case l.Enum != nil:
			return false, nil
		case l.Union != nil:
			for _, view := range l.Union.Views {
				bad, err := sysvUnalignedInner(view.Ty, layouts, visited)
				if err != nil || bad {
					return bad, err
				}
			}
			return false, nil
		default:
			return false, nil
		}
	case ty.Array:
		return sysvUnalignedInner(v.Elem, layouts, visited)
	case ty.Vec:
		return sysvUnalignedInner(v.Elem, layouts, visited)
	case ty.Span:
		return sysvUnalignedInner(v.Elem, layouts, visited)
	case ty.ReadOnlySpan:
		return sysvUnalignedInner(v.Elem, layouts, visited)
	case ty.Tuple:
		for _, e := range v.Elems {
			bad, err := sysvUnalignedInner(e, layouts, visited)
			if err != nil || bad {
				return bad, err
			}
		}
		return false, nil
	default:
		return false, nil
	}
}

// hfaElem tags the homogeneous floating-point element kind for aarch64 HFA
// detection.
type hfaElem int

const (
	hfaF32 hfaElem = iota
	hfaF64
)

// aarch64HFA reports whether t_ is a homogeneous floating-point aggregate of
// 1-4 same-width float/double fields, which aarch64's calling convention
// passes across up to four SIMD/FP registers instead of indirectly
// (original_source/src/abi/c_abi.rs is_aarch64_hfa).
func aarch64HFA(t_ ty.Ty, layouts *ty.TypeLayoutTable) (hfaElem, bool) {
	var elem *hfaElem
	count := 0
	if !accumulateHFA(t_, layouts, &elem, &count) {
		return 0, false
	}
	if count < 1 || count > 4 || elem == nil {
		return 0, false
	}
	return *elem, true
}

func accumulateHFA(t_ ty.Ty, layouts *ty.TypeLayoutTable, elem **hfaElem, count *int) bool {
	if fe, ok := hfaScalarElem(t_); ok {
		if *elem == nil {
			e := fe
			*elem = &e
		} else if **elem != fe {
			return false
		}
		*count++
		return true
	}
	name := t_.CanonicalName()
	l, ok := layouts.LayoutForName(name)
	if !ok || l.Struct == nil {
		return false
	}
	for _, f := range l.Struct.Fields {
		if !accumulateHFA(f.Ty, layouts, elem, count) {
			return false
		}
	}
	return true
}

func hfaScalarElem(t_ ty.Ty) (hfaElem, bool) {
	n, ok := t_.(ty.Named)
	if !ok {
		return 0, false
	}
	switch strings.ToLower(lastSegment(n.Path)) {
	case "float", "f32":
		return hfaF32, true
	case "double", "f64":
		return hfaF64, true
	default:
		return 0, false
	}
}
