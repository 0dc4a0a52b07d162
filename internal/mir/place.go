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

// ProjectionKind enumerates the place projections of spec.md 3.4.
type ProjectionKind int

const (
	ProjDeref ProjectionKind = iota
	ProjField
	ProjFieldNamed
	ProjIndex
	ProjConstantIndex
	ProjSubslice
	ProjDowncast
	ProjUnionField
)

// Projection is one step of a Place's projection list.
type Projection struct {
	Kind ProjectionKind

	FieldIndex int    // Field
	FieldName  string // FieldNamed

	IndexLocal LocalID // Index

	ConstOffset int  // ConstantIndex
	FromEnd     bool // ConstantIndex, Subslice

	SubsliceFrom int // Subslice
	SubsliceTo   int // Subslice

	Variant string // Downcast

	UnionIndex int    // UnionField
	UnionName  string // UnionField
}

// Place is an l-value: a local plus a sequence of projections (spec.md 3.4).
type Place struct {
	Local       LocalID
	Projections []Projection
}

// LocalPlace constructs a bare place referring to a whole local.
func LocalPlace(id LocalID) Place { return Place{Local: id} }

// Field appends a positional field projection.
func (p Place) Field(index int) Place {
	return p.with(Projection{Kind: ProjField, FieldIndex: index})
}

// FieldNamed appends a named field projection.
func (p Place) FieldNamed(name string) Place {
	return p.with(Projection{Kind: ProjFieldNamed, FieldName: name})
}

// Deref appends a pointer/reference dereference projection.
func (p Place) Deref() Place {
	return p.with(Projection{Kind: ProjDeref})
}

// Index appends an index-by-local projection.
func (p Place) Index(local LocalID) Place {
	return p.with(Projection{Kind: ProjIndex, IndexLocal: local})
}

func (p Place) with(proj Projection) Place {
	next := make([]Projection, len(p.Projections)+1)
	copy(next, p.Projections)
	next[len(p.Projections)] = proj
	return Place{Local: p.Local, Projections: next}
}

// Overlaps reports whether two places may alias: one is a prefix of the
// other's projection chain once a Deref is crossed, or they share the
// exact same local and prefix. Used by the borrow checker (spec.md 4.8) to
// decide whether two borrows' places conflict.
func (p Place) Overlaps(other Place) bool {
	if p.Local != other.Local {
		return false
	}
	n := len(p.Projections)
	if len(other.Projections) < n {
		n = len(other.Projections)
	}
	for i := 0; i < n; i++ {
		if !projectionsOverlap(p.Projections[i], other.Projections[i]) {
			return false
		}
	}
	return true
}

func projectionsOverlap(a, b Projection) bool {
	if a.Kind != b.Kind {
		// A deref on either side means both paths dereference into the
		// same pointee storage class; conservatively treat as overlapping.
		return a.Kind == ProjDeref || b.Kind == ProjDeref
	}
	switch a.Kind {
	case ProjField:
		return a.FieldIndex == b.FieldIndex
	case ProjFieldNamed:
		return a.FieldName == b.FieldName
	case ProjUnionField:
		return a.UnionIndex == b.UnionIndex
	case ProjDowncast:
		return a.Variant == b.Variant
	case ProjIndex:
		// Distinct index locals *may* alias at runtime; conservatively
		// overlap even when they are not literally the same local.
		return true
	default:
		return true
	}
}
