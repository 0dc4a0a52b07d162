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

package mir

import (
	"github.com/chic-lang/chic/internal/constval"
	"github.com/chic-lang/chic/internal/ty"
)

// StrID indexes the module's interned string table.
type StrID int

// StringTable interns string literals once each; codegen references them by
// StrID so the same global (e.g. @__chx_str_3, spec.md 6.3) is emitted once.
type StringTable struct {
	values []string
	index  map[string]StrID
}

// NewStringTable constructs an empty interner.
func NewStringTable() *StringTable {
	return &StringTable{index: make(map[string]StrID)}
}

// Intern returns the StrID for s, creating a fresh entry if s is new.
func (t *StringTable) Intern(s string) StrID {
	if id, ok := t.index[s]; ok {
		return id
	}
	id := StrID(len(t.values))
	t.values = append(t.values, s)
	t.index[s] = id
	return id
}

// Lookup returns the string for an id.
func (t *StringTable) Lookup(id StrID) (string, bool) {
	if int(id) < 0 || int(id) >= len(t.values) {
		return "", false
	}
	return t.values[id], true
}

// Len reports how many distinct strings have been interned.
func (t *StringTable) Len() int { return len(t.values) }

// Function is one compiled function: its signature, parameter modes, and
// (once lowered) MIR body.
type Function struct {
	// Symbol is the final, mangled link-time name.
	Symbol string
	// QualifiedName is the source-level fully-qualified name, used for
	// symbol-table and diagnostic lookups.
	QualifiedName string

	Signature  ty.Fn
	ParamModes []ty.ParamMode

	Body *Body

	Exported   bool
	Visibility string
	IsAsync    bool
	IsTestCase bool

	IsGeneric     bool
	GenericParams []string

	// Attributes carries the source-level @attribute(...) annotations on this
	// function (e.g. "stack_only", "no_capture", "frame_limit"), copied
	// verbatim from ast.FunctionDecl.Attributes; nil when none were declared.
	Attributes map[string]string

	// BaseQualifiedName and TypeArgs are set on a specialization produced by
	// internal/generics; both are empty/nil on a non-generic or unspecialized
	// function.
	BaseQualifiedName string
	TypeArgs          []ty.Ty
}

// TestCase records one testcase entry point (spec.md 3.6).
type TestCase struct {
	Name          string
	FunctionIndex int
}

// StaticVar is a module-level static variable.
type StaticVar struct {
	Name    string
	Ty      ty.Ty
	Init    *constval.Value
	Mutable bool
}

// VTableSlot is one entry of a class or trait vtable.
type VTableSlot struct {
	SlotIndex    int
	MemberName   string
	AccessorKind string // "method" | "getter" | "setter" | "init"
	TargetSymbol string
}

// ClassVTable is one class's virtual-dispatch table.
type ClassVTable struct {
	Symbol    string
	ClassName string
	Slots     []VTableSlot
}

// TraitVTable is one (trait, implementing type) dispatch table.
type TraitVTable struct {
	Symbol    string
	TraitName string
	ImplType  string
	Slots     []VTableSlot
}

// DefaultMethodImpl records a trait default method's synthesized body.
type DefaultMethodImpl struct {
	TraitName string
	Method    string
	Symbol    string
}

// DefaultArgKind tags a DefaultArgumentRecord's classification (spec.md 4.5).
type DefaultArgKind int

const (
	DefaultArgConst DefaultArgKind = iota
	DefaultArgThunk
)

// DefaultArgumentRecord is one parameter's resolved default (spec.md 4.5).
type DefaultArgumentRecord struct {
	FunctionQualifiedName string
	ParamIndex            int
	ParamName             string

	Kind DefaultArgKind

	ConstValue constval.Value // valid when Kind == DefaultArgConst

	ThunkSymbol        string // valid when Kind == DefaultArgThunk
	ThunkMetadataCount int
}

// Variance names a generic type parameter's variance classification.
type Variance int

const (
	VarianceInvariant Variance = iota
	VarianceCovariant
	VarianceContravariant
)

// VarianceEntry records one generic type parameter's variance.
type VarianceEntry struct {
	TypeName   string
	ParamIndex int
	Variance   Variance
}

// AsyncSuspendPlan is the per-function record the async lowerer produces
// (spec.md 4.7), mirroring Body.Async but addressable by function name at
// the module level for cross-function queries (e.g. trimming).
type AsyncSuspendPlan struct {
	FunctionQualifiedName string
	PollSymbol            string
	DropSymbol            string
	ConstructorSymbol     string
	FrameSize             int
	FrameAlign            int
	SuspendCount          int
}

// AsyncFrameMetrics aggregates frame-size statistics across every async
// plan in the module (spec.md 4.7).
type AsyncFrameMetrics struct {
	TotalFrames   int
	LargestFrame  int
	SmallestFrame int
	TotalBytes    int
}

// ModuleAttributes carries module-wide, non-function metadata.
type ModuleAttributes struct {
	DIManifestHash string
	Flags          map[string]bool
}

// MirModule aggregates everything one compiled module owns (spec.md 3.6).
// Exactly one MirModule is produced per source-module-set being compiled as
// a unit; it is never mutated after verification begins except by the
// specializer and async lowerer, which both run before verification is
// final (spec.md 3.6, 5).
type MirModule struct {
	Functions     []*Function
	functionIndex map[string]int // QualifiedName -> index into Functions
	symbolIndex   map[string]int // Symbol -> index into Functions

	TestCases []TestCase
	Statics   []StaticVar

	Layouts *ty.TypeLayoutTable
	Strings *StringTable

	Exports []string

	Attributes ModuleAttributes

	TraitVTables       []TraitVTable
	ClassVTables       []ClassVTable
	DefaultMethodImpls []DefaultMethodImpl
	DefaultArgs        []DefaultArgumentRecord
	Variance           []VarianceEntry

	AsyncPlans   []AsyncSuspendPlan
	FrameMetrics AsyncFrameMetrics
}

// NewModule builds an empty module over the given pointer width.
func NewModule(width ty.PointerWidth) *MirModule {
	return &MirModule{
		functionIndex: make(map[string]int),
		symbolIndex:   make(map[string]int),
		Layouts:       ty.NewTypeLayoutTable(width),
		Strings:       NewStringTable(),
		Attributes:    ModuleAttributes{Flags: make(map[string]bool)},
	}
}

// AddFunction inserts a function and indexes it by both its qualified name
// and mangled symbol. Re-inserting the same qualified name replaces the
// prior entry in place, preserving the idempotent-replay guarantee of
// spec.md 5 ("Symbol insertions are idempotent under replay").
func (m *MirModule) AddFunction(f *Function) int {
	if idx, ok := m.functionIndex[f.QualifiedName]; ok {
		m.Functions[idx] = f
		m.symbolIndex[f.Symbol] = idx
		return idx
	}
	idx := len(m.Functions)
	m.Functions = append(m.Functions, f)
	m.functionIndex[f.QualifiedName] = idx
	m.symbolIndex[f.Symbol] = idx
	return idx
}

// FunctionByQualifiedName looks up a function by its source-level name.
func (m *MirModule) FunctionByQualifiedName(name string) (*Function, bool) {
	idx, ok := m.functionIndex[name]
	if !ok {
		return nil, false
	}
	return m.Functions[idx], true
}

// FunctionBySymbol looks up a function by its mangled link-time symbol.
func (m *MirModule) FunctionBySymbol(symbol string) (*Function, bool) {
	idx, ok := m.symbolIndex[symbol]
	if !ok {
		return nil, false
	}
	return m.Functions[idx], true
}

// RemoveFunctionsAt deletes the functions at the given indices (in any
// order) and remaps TestCases accordingly, dropping any test case whose
// function was removed, for internal/trim's export/function trimming pass
// (spec.md 4.12).
func (m *MirModule) RemoveFunctionsAt(indices []int) {
	removed := make(map[int]bool, len(indices))
	for _, i := range indices {
		removed[i] = true
	}

	remap := make(map[int]int, len(m.Functions))
	kept := make([]*Function, 0, len(m.Functions))
	for i, f := range m.Functions {
		if removed[i] {
			continue
		}
		remap[i] = len(kept)
		kept = append(kept, f)
	}
	m.Functions = kept

	m.functionIndex = make(map[string]int, len(kept))
	m.symbolIndex = make(map[string]int, len(kept))
	for i, f := range kept {
		m.functionIndex[f.QualifiedName] = i
		m.symbolIndex[f.Symbol] = i
	}

	newTests := make([]TestCase, 0, len(m.TestCases))
	for _, tc := range m.TestCases {
		if newIdx, ok := remap[tc.FunctionIndex]; ok {
			tc.FunctionIndex = newIdx
			newTests = append(newTests, tc)
		}
	}
	m.TestCases = newTests
}
