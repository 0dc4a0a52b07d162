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
	"strings"

	"github.com/chic-lang/chic/internal/constval"
	"github.com/chic-lang/chic/internal/mir"
	"github.com/chic-lang/chic/internal/ty"
)

// funcBuilder lowers one mir.Function's body to LLVM text: every local
// becomes a stack slot (`alloca`), every place access a chain of GEPs
// followed by a load or store. This mirrors a deliberately
// non-optimizing baseline backend -- constant folding and inlining are
// counted via Artifact.ConstantFolds/InlinedFunctions as properties of
// earlier passes (internal/consteval, a future inliner), not reproduced
// again at this layer.
type funcBuilder struct {
	e       *LLVMEmitter
	f       *mir.Function
	sig     llvmSignature
	symbol  string
	linkage string

	out   strings.Builder
	slot  map[mir.LocalID]string
	tmp   int
}

func newFuncBuilder(e *LLVMEmitter, f *mir.Function, sig llvmSignature, symbol, linkage string) *funcBuilder {
	return &funcBuilder{e: e, f: f, sig: sig, symbol: symbol, linkage: linkage, slot: make(map[mir.LocalID]string)}
}

func (fb *funcBuilder) next(prefix string) string {
	fb.tmp++
	return fmt.Sprintf("%%%s%d", prefix, fb.tmp)
}

func (fb *funcBuilder) build() error {
	body := fb.f.Body
	fmt.Fprintf(&fb.out, "define %s %s @%s(%s) {\n", fb.linkage, fb.sig.ret, fb.symbol, fb.sig.paramList())
	fb.out.WriteString("entry:\n")

	for i, l := range body.Locals {
		id := mir.LocalID(i)
		slot := fmt.Sprintf("%%l%d", i)
		fb.slot[id] = slot
		fmt.Fprintf(&fb.out, "  %s = alloca %s, align 8\n", slot, fb.e.llvmType(l.Ty))
	}
	for i, l := range body.Locals {
		if l.Kind != mir.LocalKindArg {
			continue
		}
		argTy := fb.e.llvmType(l.Ty)
		fmt.Fprintf(&fb.out, "  store %s %%arg%d, ptr %s\n", argTy, l.ArgIndex, fb.slot[mir.LocalID(i)])
	}

	if len(body.Blocks) == 0 {
		fb.out.WriteString("  unreachable\n}\n\n")
		fb.e.out.WriteString(fb.out.String())
		return nil
	}
	fmt.Fprintf(&fb.out, "  br label %%bb%d\n", mir.EntryBlock)

	for idx, blk := range body.Blocks {
		fmt.Fprintf(&fb.out, "bb%d:\n", idx)
		for _, st := range blk.Statements {
			fb.statement(st)
		}
		if blk.Terminator == nil {
			fb.out.WriteString("  unreachable\n")
			continue
		}
		fb.terminator(*blk.Terminator, body)
	}

	fb.out.WriteString("}\n\n")
	fb.e.out.WriteString(fb.out.String())
	return nil
}

// placeRef resolves a Place to a pointer-typed value text plus the Ty the
// pointer points at, walking projections left to right.
func (fb *funcBuilder) placeRef(p mir.Place) (string, ty.Ty) {
	local := fb.f.Body.Locals[p.Local]
	ptr := fb.slot[p.Local]
	cur := local.Ty
	for _, proj := range p.Projections {
		switch proj.Kind {
		case mir.ProjDeref:
			loaded := fb.next("deref")
			fmt.Fprintf(&fb.out, "  %s = load ptr, ptr %s\n", loaded, ptr)
			ptr = loaded
			cur = derefElem(cur)
		case mir.ProjField:
			elemTy := fb.fieldTypeByIndex(cur, proj.FieldIndex)
			gep := fb.next("fld")
			fmt.Fprintf(&fb.out, "  %s = getelementptr inbounds %s, ptr %s, i32 0, i32 %d\n",
				gep, fb.e.llvmType(cur), ptr, proj.FieldIndex)
			ptr, cur = gep, elemTy
		case mir.ProjFieldNamed:
			idx, elemTy := fb.fieldByName(cur, proj.FieldName)
			gep := fb.next("fld")
			fmt.Fprintf(&fb.out, "  %s = getelementptr inbounds %s, ptr %s, i32 0, i32 %d\n",
				gep, fb.e.llvmType(cur), ptr, idx)
			ptr, cur = gep, elemTy
		case mir.ProjIndex:
			elemTy := elementType(cur)
			idxVal, _ := fb.operandValue(mir.CopyOperand(mir.LocalPlace(proj.IndexLocal)))
			base := fb.indexableBase(ptr, cur)
			gep := fb.next("idx")
			fmt.Fprintf(&fb.out, "  %s = getelementptr inbounds %s, ptr %s, i64 %s\n",
				gep, fb.e.llvmType(elemTy), base, idxVal)
			ptr, cur = gep, elemTy
		case mir.ProjConstantIndex:
			elemTy := elementType(cur)
			base := fb.indexableBase(ptr, cur)
			gep := fb.next("cidx")
			fmt.Fprintf(&fb.out, "  %s = getelementptr inbounds %s, ptr %s, i64 %d\n",
				gep, fb.e.llvmType(elemTy), base, proj.ConstOffset)
			ptr, cur = gep, elemTy
		default:
			// Subslice/Downcast/UnionField narrow a place's view without
			// relocating its storage at this emitter's scope (documented
			// gap, same convention as internal/async's remapper and
			// internal/generics' placeValueTy: a plain pass-through rather
			// than silently wrong arithmetic).
		}
	}
	return ptr, cur
}

func derefElem(t ty.Ty) ty.Ty {
	switch v := t.(type) {
	case ty.Pointer:
		return v.Elem
	case ty.Ref:
		return v.Elem
	case ty.Rc:
		return v.Elem
	case ty.Arc:
		return v.Elem
	default:
		return ty.Unknown{}
	}
}

func elementType(t ty.Ty) ty.Ty {
	switch v := t.(type) {
	case ty.Array:
		return v.Elem
	case ty.Vec:
		return v.Elem
	case ty.Span:
		return v.Elem
	case ty.ReadOnlySpan:
		return v.Elem
	default:
		return ty.Unknown{}
	}
}

// indexableBase returns the pointer GEP should index from: for a Vec/Span
// (runtime {ptr,len} pair) that is the data pointer loaded out of field 0,
// for a fixed Array it is the place pointer itself.
func (fb *funcBuilder) indexableBase(ptr string, t ty.Ty) string {
	switch t.(type) {
	case ty.Vec, ty.Span, ty.ReadOnlySpan:
		gep := fb.next("data")
		fmt.Fprintf(&fb.out, "  %s = getelementptr inbounds { ptr, i64 }, ptr %s, i32 0, i32 0\n", gep, ptr)
		loaded := fb.next("dataptr")
		fmt.Fprintf(&fb.out, "  %s = load ptr, ptr %s\n", loaded, gep)
		return loaded
	default:
		return ptr
	}
}

func (fb *funcBuilder) fieldTypeByIndex(t ty.Ty, index int) ty.Ty {
	named, ok := t.(ty.Named)
	if !ok {
		return ty.Unknown{}
	}
	layout, ok := fb.e.module.Layouts.LayoutForName(named.CanonicalName())
	if !ok || layout.Struct == nil || index < 0 || index >= len(layout.Struct.Fields) {
		return ty.Unknown{}
	}
	return layout.Struct.Fields[index].Ty
}

func (fb *funcBuilder) fieldByName(t ty.Ty, name string) (int, ty.Ty) {
	named, ok := t.(ty.Named)
	if !ok {
		return 0, ty.Unknown{}
	}
	layout, ok := fb.e.module.Layouts.LayoutForName(named.CanonicalName())
	if !ok || layout.Struct == nil {
		return 0, ty.Unknown{}
	}
	for i, field := range layout.Struct.Fields {
		if field.Name == name {
			return i, field.Ty
		}
	}
	return 0, ty.Unknown{}
}

// operandValue renders an operand as an SSA value of its natural type,
// returning the value text and the LLVM type it was loaded/produced at.
func (fb *funcBuilder) operandValue(op mir.Operand) (string, string) {
	switch op.Kind {
	case mir.OperandCopy, mir.OperandMove:
		ptr, t := fb.placeRef(op.Place)
		llty := fb.e.llvmType(t)
		val := fb.next("v")
		fmt.Fprintf(&fb.out, "  %s = load %s, ptr %s\n", val, llty, ptr)
		return val, llty
	case mir.OperandBorrow:
		ptr, _ := fb.placeRef(op.Place)
		return ptr, "ptr"
	case mir.OperandMmio:
		return "null", "ptr"
	case mir.OperandConst:
		return fb.constValue(op.Const), fb.e.llvmType(op.Const.Ty)
	default:
		return "undef", "ptr"
	}
}

func (fb *funcBuilder) constValue(c mir.ConstOperand) string {
	switch c.Value.Kind {
	case constval.Bool:
		if c.Value.Bool {
			return "1"
		}
		return "0"
	case constval.Int:
		if c.Value.Big != "" {
			return c.Value.Big
		}
		return fmt.Sprintf("%d", c.Value.Int)
	case constval.UInt:
		if c.Value.Big != "" {
			return c.Value.Big
		}
		return fmt.Sprintf("%d", c.Value.UInt)
	case constval.Float:
		return fmt.Sprintf("0x%X", c.Value.FloatBits)
	case constval.Char:
		return fmt.Sprintf("%d", c.Value.Char)
	case constval.Null:
		return "null"
	case constval.Str, constval.RawStr:
		return fb.e.internString(c.Value.StrValue)
	default:
		// Enum/Struct/Symbol/Unit constants are not folded to a scalar LLVM
		// immediate by this emitter; internal/consteval is expected to have
		// already reduced any of these that reach a runtime operand position.
		return "zeroinitializer"
	}
}
