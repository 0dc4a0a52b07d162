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

// Package ty holds the Ty sum type shared by every lowering and codegen
// stage, plus the ABI/parameter-mode vocabulary that rides along with it.
// Types are value data: copy them freely, never mutate one behind a
// pointer another package is holding.
package ty

import (
	"fmt"
	"strings"
)

// Ty is the sum type described in spec.md 3.1. Each concrete type below
// implements it; type-switch on the concrete type to inspect a Ty.
type Ty interface {
	// CanonicalName is the deterministic textual key used across every
	// layout table, symbol table and fingerprint. Two Ty values with the
	// same CanonicalName must be structurally identical.
	CanonicalName() string
	isTy()
}

// Unit is the zero-size, single-value type.
type Unit struct{}

// Unknown stands in for a type that failed to resolve; layout queries for
// it always return false.
type Unknown struct{}

// Named is a nominal type reference, optionally generic.
type Named struct {
	Path string
	Args []Ty
}

// Pointer is a raw pointer, `mutable` tracks `*mut T` vs `*const T`.
type Pointer struct {
	Elem    Ty
	Mutable bool
}

// Ref is a borrow-checked reference.
type Ref struct {
	Elem     Ty
	ReadOnly bool
}

// Rc is a single-threaded reference-counted pointer.
type Rc struct{ Elem Ty }

// Arc is an atomically reference-counted pointer.
type Arc struct{ Elem Ty }

// Nullable wraps a type that may additionally hold null.
type Nullable struct{ Inner Ty }

// Array is a fixed-rank, compile-time-sized array.
type Array struct {
	Elem Ty
	Rank int
}

// Vec is a growable heap-backed sequence.
type Vec struct{ Elem Ty }

// Span is a mutable view over contiguous memory.
type Span struct{ Elem Ty }

// ReadOnlySpan is an immutable view over contiguous memory.
type ReadOnlySpan struct{ Elem Ty }

// StringTy is the owned, heap-backed UTF-8 string type.
type StringTy struct{}

// Str is the borrowed string-slice type.
type Str struct{}

// Tuple is a positional product type; Names, if non-nil, must be the same
// length as Elems and may contain empty strings for unnamed positions.
type Tuple struct {
	Elems []Ty
	Names []string
}

// ParamMode classifies how an argument reaches its callee: spec.md 3.5.
type ParamMode int

const (
	ModeValue ParamMode = iota
	ModeIn
	ModeRef
	ModeOut
)

func (m ParamMode) String() string {
	switch m {
	case ModeValue:
		return "value"
	case ModeIn:
		return "in"
	case ModeRef:
		return "ref"
	case ModeOut:
		return "out"
	default:
		return fmt.Sprintf("ParamMode(%d)", int(m))
	}
}

// Abi names the calling convention a Fn type uses.
type Abi struct {
	// Kind is "chic" for the source language's own ABI or "extern" for a
	// foreign one; Name carries the foreign ABI's name (usually "C").
	Kind string
	Name string
}

// ChicAbi is the source language's native calling convention.
var ChicAbi = Abi{Kind: "chic"}

// ExternAbi builds a named foreign ABI, e.g. ExternAbi("C").
func ExternAbi(name string) Abi { return Abi{Kind: "extern", Name: name} }

// IsExternC reports whether this is the extern "C" ABI the classifier in
// internal/abi targets.
func (a Abi) IsExternC() bool {
	return a.Kind == "extern" && strings.EqualFold(a.Name, "C")
}

// Fn is a function type, used both for first-class function values and to
// describe call signatures during generic substitution.
type Fn struct {
	Params   []Ty
	Modes    []ParamMode
	Ret      Ty
	Abi      Abi
	Variadic bool
}

// TraitObject is a dynamically dispatched trait/interface reference.
type TraitObject struct {
	Traits       []string
	OpaqueImpl   bool
}

// Vector is a fixed-lane SIMD vector type.
type Vector struct {
	Elem  Ty
	Lanes int
}

func (Unit) isTy()         {}
func (Unknown) isTy()      {}
func (Named) isTy()        {}
func (Pointer) isTy()      {}
func (Ref) isTy()          {}
func (Rc) isTy()           {}
func (Arc) isTy()          {}
func (Nullable) isTy()     {}
func (Array) isTy()        {}
func (Vec) isTy()          {}
func (Span) isTy()         {}
func (ReadOnlySpan) isTy() {}
func (StringTy) isTy()     {}
func (Str) isTy()          {}
func (Tuple) isTy()        {}
func (Fn) isTy()           {}
func (TraitObject) isTy()  {}
func (Vector) isTy()       {}

// CanonicalName implementations. Named<Arg1,Arg2,...> stringification
// matches spec.md 3.1 exactly; every other variant has a fixed textual
// shape so two structurally-equal Ty values always produce the same key.

func (u Unit) CanonicalName() string    { return "()" }
func (u Unknown) CanonicalName() string { return "<unknown>" }

func (n Named) CanonicalName() string {
	if len(n.Args) == 0 {
		return n.Path
	}
	parts := make([]string, len(n.Args))
	for i, a := range n.Args {
		parts[i] = a.CanonicalName()
	}
	return n.Path + "<" + strings.Join(parts, ",") + ">"
}

func (p Pointer) CanonicalName() string {
	if p.Mutable {
		return "*mut " + p.Elem.CanonicalName()
	}
	return "*const " + p.Elem.CanonicalName()
}

func (r Ref) CanonicalName() string {
	if r.ReadOnly {
		return "&" + r.Elem.CanonicalName()
	}
	return "&mut " + r.Elem.CanonicalName()
}

func (r Rc) CanonicalName() string  { return "Rc<" + r.Elem.CanonicalName() + ">" }
func (a Arc) CanonicalName() string { return "Arc<" + a.Elem.CanonicalName() + ">" }

func (n Nullable) CanonicalName() string { return n.Inner.CanonicalName() + "?" }

func (a Array) CanonicalName() string {
	return fmt.Sprintf("[%s; rank=%d]", a.Elem.CanonicalName(), a.Rank)
}

func (v Vec) CanonicalName() string          { return "Vec<" + v.Elem.CanonicalName() + ">" }
func (s Span) CanonicalName() string         { return "Span<" + s.Elem.CanonicalName() + ">" }
func (s ReadOnlySpan) CanonicalName() string { return "ReadOnlySpan<" + s.Elem.CanonicalName() + ">" }
func (StringTy) CanonicalName() string       { return "String" }
func (Str) CanonicalName() string            { return "str" }

func (t Tuple) CanonicalName() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		if t.Names != nil && i < len(t.Names) && t.Names[i] != "" {
			parts[i] = t.Names[i] + ":" + e.CanonicalName()
		} else {
			parts[i] = e.CanonicalName()
		}
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func (f Fn) CanonicalName() string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		mode := ""
		if i < len(f.Modes) && f.Modes[i] != ModeValue {
			mode = f.Modes[i].String() + " "
		}
		parts[i] = mode + p.CanonicalName()
	}
	variadic := ""
	if f.Variadic {
		variadic = ",..."
	}
	abi := ""
	if f.Abi.Kind == "extern" {
		abi = fmt.Sprintf("extern %q ", f.Abi.Name)
	}
	return fmt.Sprintf("%sfn(%s%s)->%s", abi, strings.Join(parts, ","), variadic, f.Ret.CanonicalName())
}

func (t TraitObject) CanonicalName() string {
	prefix := "dyn "
	if t.OpaqueImpl {
		prefix = "impl "
	}
	return prefix + strings.Join(t.Traits, "+")
}

func (v Vector) CanonicalName() string {
	return fmt.Sprintf("Vector<%s;%d>", v.Elem.CanonicalName(), v.Lanes)
}

// Equal reports whether two types have identical canonical names, which is
// the only notion of type equality the core ever needs (spec.md GLOSSARY
// "Canonical name").
func Equal(a, b Ty) bool {
	return a.CanonicalName() == b.CanonicalName()
}
