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

// Package symbols builds and queries the single-traversal symbol index
// described in spec.md 4.2: function overload sets, field/property
// symbols, constant symbols, and enum-variant membership. The index is
// grounded on the name-resolution tables in the teacher's gapil/resolver
// package (resolver.go, function.go), adapted from a single-API resolver to
// a qualified/unqualified overload-set index keyed by strings.
package symbols

import (
	"strings"

	"github.com/chic-lang/chic/internal/constval"
	"github.com/chic-lang/chic/internal/ty"
)

// FunctionOverload is one candidate of an overload set.
type FunctionOverload struct {
	QualifiedName string
	MangledName   string
	Params        []ty.Ty
	Modes         []ty.ParamMode
	Ret           ty.Ty
	Abi           ty.Abi
	Variadic      bool
	Visibility    string
	Const         bool
	Async         bool
	GenericParams []string
}

// PropertyAccessors records which accessors a property declares and the
// synthesized function symbol for each.
type PropertyAccessors struct {
	HasGet  bool
	HasSet  bool
	HasInit bool

	GetSymbol  string
	SetSymbol  string
	InitSymbol string
}

// FieldSymbol is one (owner type, field) entry.
type FieldSymbol struct {
	OwnerType string
	Name      string
	Ty        ty.Ty
}

// PropertySymbol is one (owner type, property) entry.
type PropertySymbol struct {
	OwnerType string
	Name      string
	Ty        ty.Ty
	Accessors PropertyAccessors
}

// ConstantSymbol is one constant declaration.
type ConstantSymbol struct {
	QualifiedName string
	Ty            ty.Ty
	InitExprRepr  string // textual form of the initializer for diagnostics
	Computed      *constval.Value
}

// EnumVariantSymbol is one (enum type, variant) membership entry.
type EnumVariantSymbol struct {
	OwnerType    string
	Variant      string
	Discriminant int64
}

// Index is the module-wide symbol table, built in a single AST traversal
// (spec.md 4.2) and then consulted (and occasionally extended, e.g. by
// default-argument thunk synthesis or generic specialization) throughout
// lowering.
type Index struct {
	// overloadsByQualified groups overloads under their fully-qualified name.
	overloadsByQualified map[string][]*FunctionOverload
	// overloadsByShort additionally indexes by the unqualified last segment,
	// for OverloadsByShortName lookups.
	overloadsByShort map[string][]*FunctionOverload

	fields     map[fieldKey]*FieldSymbol
	properties map[fieldKey]*PropertySymbol

	constants map[string]*ConstantSymbol

	enumVariants map[enumKey]*EnumVariantSymbol
}

type fieldKey struct {
	owner string
	name  string
}

type enumKey struct {
	owner   string
	variant string
}

// New builds an empty index.
func New() *Index {
	return &Index{
		overloadsByQualified: make(map[string][]*FunctionOverload),
		overloadsByShort:     make(map[string][]*FunctionOverload),
		fields:               make(map[fieldKey]*FieldSymbol),
		properties:           make(map[fieldKey]*PropertySymbol),
		constants:             make(map[string]*ConstantSymbol),
		enumVariants:         make(map[enumKey]*EnumVariantSymbol),
	}
}

func shortName(qualified string) string {
	if i := strings.LastIndex(qualified, "::"); i >= 0 {
		return qualified[i+2:]
	}
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

// AddFunction registers one overload candidate.
func (idx *Index) AddFunction(ov *FunctionOverload) {
	idx.overloadsByQualified[ov.QualifiedName] = append(idx.overloadsByQualified[ov.QualifiedName], ov)
	short := shortName(ov.QualifiedName)
	idx.overloadsByShort[short] = append(idx.overloadsByShort[short], ov)
}

// OverloadsByQualifiedName returns every candidate registered under the
// exact qualified name.
func (idx *Index) OverloadsByQualifiedName(name string) []*FunctionOverload {
	return idx.overloadsByQualified[name]
}

// OverloadsByShortName returns every candidate whose unqualified last
// segment matches name.
func (idx *Index) OverloadsByShortName(name string) []*FunctionOverload {
	return idx.overloadsByShort[name]
}

// OverloadsEndingWith scans the qualified-name index for any overload set
// whose qualified name ends with suffix — used when resolving a generic
// specialization target whose owner name has already been canonicalized
// into something like "Base<int>::method" (spec.md 4.2).
func (idx *Index) OverloadsEndingWith(suffix string) []*FunctionOverload {
	var out []*FunctionOverload
	for qualified, ovs := range idx.overloadsByQualified {
		if strings.HasSuffix(qualified, suffix) {
			out = append(out, ovs...)
		}
	}
	return out
}

// AddField registers a field symbol.
func (idx *Index) AddField(f *FieldSymbol) {
	idx.fields[fieldKey{f.OwnerType, f.Name}] = f
}

// Field looks up a field by (owner type, name).
func (idx *Index) Field(owner, name string) (*FieldSymbol, bool) {
	f, ok := idx.fields[fieldKey{owner, name}]
	return f, ok
}

// AddProperty registers a property symbol.
func (idx *Index) AddProperty(p *PropertySymbol) {
	idx.properties[fieldKey{p.OwnerType, p.Name}] = p
}

// Property looks up a property by (owner type, name).
func (idx *Index) Property(owner, name string) (*PropertySymbol, bool) {
	p, ok := idx.properties[fieldKey{owner, name}]
	return p, ok
}

// AddConstant registers a constant symbol.
func (idx *Index) AddConstant(c *ConstantSymbol) {
	idx.constants[c.QualifiedName] = c
}

// Constant looks up a constant by qualified name.
func (idx *Index) Constant(name string) (*ConstantSymbol, bool) {
	c, ok := idx.constants[name]
	return c, ok
}

// SetConstantValue installs a const-evaluator result back into a constant
// symbol (spec.md 4.3: "evaluation... installs computed values back into
// constant symbols").
func (idx *Index) SetConstantValue(name string, v constval.Value) bool {
	c, ok := idx.constants[name]
	if !ok {
		return false
	}
	c.Computed = &v
	return true
}

// AddEnumVariant registers an enum-variant membership entry.
func (idx *Index) AddEnumVariant(e *EnumVariantSymbol) {
	idx.enumVariants[enumKey{e.OwnerType, e.Variant}] = e
}

// EnumVariant looks up a (type, variant) membership entry.
func (idx *Index) EnumVariant(owner, variant string) (*EnumVariantSymbol, bool) {
	e, ok := idx.enumVariants[enumKey{owner, variant}]
	return e, ok
}

// AllConstantNames returns every registered constant's qualified name, in
// no particular order; callers needing determinism should sort.
func (idx *Index) AllConstantNames() []string {
	out := make([]string, 0, len(idx.constants))
	for name := range idx.constants {
		out = append(out, name)
	}
	return out
}
