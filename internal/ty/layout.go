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

package ty

import (
	"sort"

	"github.com/pkg/errors"
)

// Repr is a struct/class representation strategy (spec.md 3.2).
type Repr int

const (
	ReprDefault Repr = iota
	ReprPacked       // packed(N), N recorded in PackedAlign
	ReprC
	ReprExplicit
)

// AutoTraitStatus is the cyclic-fixed-point tri-state from spec.md 9
// ("Cyclic auto-trait inference").
type AutoTraitStatus int

const (
	AutoUnknown AutoTraitStatus = iota
	AutoYes
	AutoNo
)

// Field describes one struct/class field.
type Field struct {
	Name         string
	Ty           Ty
	DeclaredIdx  int
	Offset       *int // nil until backfilled
	Nullable     bool
}

// StructLayout is the shared shape for struct and class layouts.
type StructLayout struct {
	Name         string
	Fields       []Field
	Size         int
	Align        int
	Repr         Repr
	PackedAlign  int // only meaningful when Repr == ReprPacked
	DisposeSym   string // optional
	AutoTraits   map[string]AutoTraitStatus
	ParentClass  string // optional, empty for structs and root classes
	IsClass      bool
	TypeParams   []string // ordered, for generic definitions stored under base name
}

// EnumVariant is one discriminant + optional field list.
type EnumVariant struct {
	Name        string
	Discriminant int64
	Fields      []Field
}

// EnumLayout describes an enum's representation.
type EnumLayout struct {
	Name        string
	Variants    []EnumVariant
	Size        int
	Align       int
	Underlying  Ty // discriminant type
	TypeParams  []string
}

// UnionView is one overlapping view of a union.
type UnionView struct {
	Name string
	Ty   Ty
}

// UnionLayout describes an overlapping-storage union.
type UnionLayout struct {
	Name  string
	Views []UnionView
	Size  int
	Align int
}

// Layout is the sum of Struct/Class/Enum/Union per spec.md 3.2. Exactly one
// of the pointer fields is non-nil.
type Layout struct {
	Struct *StructLayout
	Enum   *EnumLayout
	Union  *UnionLayout
}

func (l Layout) sizeAlign() (int, int, bool) {
	switch {
	case l.Struct != nil:
		return l.Struct.Size, l.Struct.Align, true
	case l.Enum != nil:
		return l.Enum.Size, l.Enum.Align, true
	case l.Union != nil:
		return l.Union.Size, l.Union.Align, true
	default:
		return 0, 0, false
	}
}

// PointerWidth is the target's native pointer size in bytes.
type PointerWidth int

const (
	PointerWidth32 PointerWidth = 4
	PointerWidth64 PointerWidth = 8
)

// TypeLayoutTable is the mapping from canonical type name to Layout
// (spec.md 3.2), plus the primitive registry from spec.md 4.1.
type TypeLayoutTable struct {
	PointerWidth PointerWidth
	layouts      map[string]*Layout
	// genericDefs stores generic type definitions under their base name;
	// instantiations are generated on demand by the generic specializer and
	// registered back via Register.
	genericDefs map[string]*Layout
}

// NewTypeLayoutTable constructs an empty registry for the given pointer
// width.
func NewTypeLayoutTable(width PointerWidth) *TypeLayoutTable {
	return &TypeLayoutTable{
		PointerWidth: width,
		layouts:      make(map[string]*Layout),
		genericDefs:  make(map[string]*Layout),
	}
}

// Register installs (or replaces) the layout for a canonical name.
func (t *TypeLayoutTable) Register(canonicalName string, l *Layout) {
	t.layouts[canonicalName] = l
}

// RegisterGeneric installs a generic type definition under its base name
// (spec.md 3.2 invariant c).
func (t *TypeLayoutTable) RegisterGeneric(baseName string, l *Layout) {
	t.genericDefs[baseName] = l
}

// GenericDef looks up a generic type definition by base name.
func (t *TypeLayoutTable) GenericDef(baseName string) (*Layout, bool) {
	l, ok := t.genericDefs[baseName]
	return l, ok
}

// GenericDefNames lists every base name with a registered generic
// definition, for passes (internal/generics) that need to sweep all of them
// rather than look one up by name.
func (t *TypeLayoutTable) GenericDefNames() []string {
	names := make([]string, 0, len(t.genericDefs))
	for name := range t.genericDefs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LayoutForName returns the stored layout, if any.
func (t *TypeLayoutTable) LayoutForName(canonicalName string) (*Layout, bool) {
	l, ok := t.layouts[canonicalName]
	return l, ok
}

func primitiveSizeAlign(name string, width PointerWidth) (int, int, bool) {
	switch name {
	case "bool", "byte", "sbyte", "i8", "u8":
		return 1, 1, true
	case "short", "ushort", "i16", "u16":
		return 2, 2, true
	case "int", "uint", "i32", "u32", "char", "float", "f32":
		return 4, 4, true
	case "long", "ulong", "i64", "u64", "double", "f64":
		return 8, 8, true
	case "isize", "usize", "nint", "nuint":
		return int(width), int(width), true
	case "decimal":
		return 16, 8, true
	case "()":
		return 0, 1, true
	default:
		return 0, 0, false
	}
}

// SizeAndAlignForTy returns the type's (size, align) pair, or false only
// for Unknown or an undeclared named type (spec.md 4.1 contract).
func (t *TypeLayoutTable) SizeAndAlignForTy(typ Ty) (int, int, bool) {
	switch v := typ.(type) {
	case Unknown:
		return 0, 0, false
	case Unit:
		return 0, 1, true
	case Pointer, Ref, Rc, Arc:
		return int(t.PointerWidth), int(t.PointerWidth), true
	case StringTy:
		// {ptr, len, cap} layout.
		w := int(t.PointerWidth)
		return 3 * w, w, true
	case Str:
		w := int(t.PointerWidth)
		return 2 * w, w, true
	case Span, ReadOnlySpan:
		w := int(t.PointerWidth)
		return 2 * w, w, true
	case Vec:
		w := int(t.PointerWidth)
		return 3 * w, w, true
	case Fn:
		return int(t.PointerWidth), int(t.PointerWidth), true
	case TraitObject:
		w := int(t.PointerWidth)
		return 2 * w, w, true
	case Vector:
		elemSize, _, ok := t.SizeAndAlignForTy(v.Elem)
		if !ok {
			return 0, 0, false
		}
		total := elemSize * v.Lanes
		align := total
		if align > 64 {
			align = 64
		}
		if align < elemSize {
			align = elemSize
		}
		return total, align, true
	case Array:
		elemSize, elemAlign, ok := t.SizeAndAlignForTy(v.Elem)
		if !ok {
			return 0, 0, false
		}
		return elemSize * v.Rank, elemAlign, true
	case Nullable:
		return t.sizeAlignNullable(v)
	case Tuple:
		return t.sizeAlignTuple(v)
	case Named:
		return t.sizeAlignNamed(v)
	default:
		return 0, 0, false
	}
}

// nullableKey mirrors spec.md 4.1: nullable(T) is stored under key "T?".
func nullableKey(inner Ty) string {
	return Nullable{Inner: inner}.CanonicalName()
}

// isReferenceLike decides whether a nullable inner type has a tagged
// single-pointer representation (spec.md 4.1 nullable policy) vs a
// discriminant-plus-payload representation.
func isReferenceLike(inner Ty) bool {
	switch inner.(type) {
	case Pointer, Ref, Rc, Arc:
		return true
	case Named:
		return false
	default:
		return false
	}
}

func (t *TypeLayoutTable) sizeAlignNullable(n Nullable) (int, int, bool) {
	key := nullableKey(n.Inner)
	if l, ok := t.layouts[key]; ok {
		if s, a, ok := l.sizeAlign(); ok {
			return s, a, true
		}
	}
	if isReferenceLike(n.Inner) {
		w := int(t.PointerWidth)
		return w, w, true
	}
	innerSize, innerAlign, ok := t.SizeAndAlignForTy(n.Inner)
	if !ok {
		return 0, 0, false
	}
	align := innerAlign
	if int(t.PointerWidth) > align {
		align = int(t.PointerWidth)
	}
	size := alignUp(int(t.PointerWidth)+innerSize, align)
	return size, align, true
}

func (t *TypeLayoutTable) sizeAlignTuple(tup Tuple) (int, int, bool) {
	offset := 0
	maxAlign := 1
	for _, e := range tup.Elems {
		s, a, ok := t.SizeAndAlignForTy(e)
		if !ok {
			return 0, 0, false
		}
		offset = alignUp(offset, a) + s
		if a > maxAlign {
			maxAlign = a
		}
	}
	return alignUp(offset, maxAlign), maxAlign, true
}

func (t *TypeLayoutTable) sizeAlignNamed(n Named) (int, int, bool) {
	canonical := n.CanonicalName()
	if l, ok := t.layouts[canonical]; ok {
		return l.sizeAlign()
	}
	short := lastSegment(n.Path)
	if s, a, ok := primitiveSizeAlign(short, t.PointerWidth); ok {
		return s, a, true
	}
	return 0, 0, false
}

func lastSegment(path string) string {
	idx := -1
	for i := len(path) - 1; i >= 1; i-- {
		if path[i-1] == ':' && path[i] == ':' {
			idx = i + 1
			break
		}
	}
	if idx == -1 {
		return path
	}
	return path[idx:]
}

func alignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	rem := v % align
	if rem == 0 {
		return v
	}
	return v + (align - rem)
}

// BackfillMissingOffsets computes byte offsets for every struct/class
// layout, visiting them in name order (spec.md 3.2 invariant a, 4.1). It
// stops at the first field whose type has no known size and returns that
// error; layouts visited before it keep their computed offsets. It is
// idempotent: a layout whose offsets are already all Some is left alone.
func (t *TypeLayoutTable) BackfillMissingOffsets() error {
	names := make([]string, 0, len(t.layouts))
	for name := range t.layouts {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic iteration order (spec.md 5 ordering guarantees)

	for _, name := range names {
		l := t.layouts[name]
		if l.Struct == nil {
			continue
		}
		if err := t.backfillStruct(l.Struct); err != nil {
			return errors.Wrapf(err, "backfilling offsets for %q", name)
		}
	}
	return nil
}

func (t *TypeLayoutTable) backfillStruct(s *StructLayout) error {
	complete := true
	for i := range s.Fields {
		if s.Fields[i].Offset == nil {
			complete = false
			break
		}
	}
	if complete && len(s.Fields) > 0 {
		return nil
	}

	offset := 0
	maxAlign := 1
	packedAlign := 0
	if s.Repr == ReprPacked {
		packedAlign = s.PackedAlign
		if packedAlign == 0 {
			packedAlign = 1
		}
	}

	for i := range s.Fields {
		f := &s.Fields[i]
		size, align, ok := t.SizeAndAlignForTy(f.Ty)
		if !ok {
			return errors.Errorf("field %q of %q has no known size yet", f.Name, s.Name)
		}
		effAlign := align
		switch s.Repr {
		case ReprPacked:
			effAlign = packedAlign
		case ReprExplicit:
			// explicit layout trusts pre-set offsets; if still nil here the
			// declaration omitted one, which is a registration bug upstream.
			if f.Offset != nil {
				if *f.Offset+size > offset {
					offset = *f.Offset + size
				}
				if align > maxAlign {
					maxAlign = align
				}
				continue
			}
		}
		start := alignUp(offset, effAlign)
		o := start
		f.Offset = &o
		offset = start + size
		if effAlign > maxAlign {
			maxAlign = effAlign
		}
	}

	if s.Repr == ReprPacked {
		maxAlign = packedAlign
	}
	s.Size = alignUp(offset, maxAlign)
	s.Align = maxAlign
	return nil
}

// FinalizeAutoTraits resolves Copy/Send/Sync-style markers to a fixed point
// (spec.md 4.1, 9). traitName is e.g. "Copy"; fieldHolds reports whether a
// non-nominal Ty trivially holds the trait (primitives do, pointers/refs
// follow the caller's policy).
func (t *TypeLayoutTable) FinalizeAutoTraits(traitName string, fieldHolds func(Ty) (AutoTraitStatus, bool)) {
	names := make([]string, 0, len(t.layouts))
	for name, l := range t.layouts {
		if l.Struct != nil {
			names = append(names, name)
			if l.Struct.AutoTraits == nil {
				l.Struct.AutoTraits = make(map[string]AutoTraitStatus)
			}
			if _, ok := l.Struct.AutoTraits[traitName]; !ok {
				l.Struct.AutoTraits[traitName] = AutoUnknown
			}
		}
	}
	sort.Strings(names)

	for changed := true; changed; {
		changed = false
		for _, name := range names {
			s := t.layouts[name].Struct
			if s.AutoTraits[traitName] != AutoUnknown {
				continue
			}
			status := AutoYes
			settled := true
			for _, f := range s.Fields {
				st, ok := t.autoTraitOf(f.Ty, traitName, fieldHolds)
				if !ok {
					settled = false
					break
				}
				if st == AutoNo {
					status = AutoNo
					break
				}
				if st == AutoUnknown {
					settled = false
					break
				}
			}
			if status == AutoNo {
				s.AutoTraits[traitName] = AutoNo
				changed = true
			} else if settled {
				s.AutoTraits[traitName] = AutoYes
				changed = true
			}
		}
	}
	// Fixed point reached: anything still Unknown degrades to No
	// (conservative, spec.md 9).
	for _, name := range names {
		s := t.layouts[name].Struct
		if s.AutoTraits[traitName] == AutoUnknown {
			s.AutoTraits[traitName] = AutoNo
		}
	}
}

func (t *TypeLayoutTable) autoTraitOf(typ Ty, traitName string, fieldHolds func(Ty) (AutoTraitStatus, bool)) (AutoTraitStatus, bool) {
	if st, ok := fieldHolds(typ); ok {
		return st, true
	}
	if n, ok := typ.(Named); ok {
		canonical := n.CanonicalName()
		if l, ok := t.layouts[canonical]; ok && l.Struct != nil {
			if l.Struct.AutoTraits == nil {
				return AutoUnknown, false
			}
			st, ok := l.Struct.AutoTraits[traitName]
			if !ok {
				return AutoUnknown, false
			}
			return st, st != AutoUnknown
		}
	}
	return AutoNo, true
}
