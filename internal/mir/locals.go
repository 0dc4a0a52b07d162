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

// Package mir is the mid-level intermediate representation: an
// SSA-adjacent control-flow graph with typed locals, explicit place
// projections and a closed set of terminators (spec.md section 3).
package mir

import "github.com/chic-lang/chic/internal/ty"

// LocalID indexes into a Body's Locals. Local 0 is always the return slot.
type LocalID int

// ReturnLocal is the fixed id of the return-value slot.
const ReturnLocal LocalID = 0

// LocalKind classifies a local's role (spec.md 3.3).
type LocalKind int

const (
	LocalKindReturn LocalKind = iota
	LocalKindArg
	LocalKindLocal
	LocalKindTemp
)

// Local is one entry of a Body's local table.
type Local struct {
	Name     string // empty if unnamed (temporaries, etc.)
	Ty       ty.Ty
	Mutable  bool
	Nullable bool
	Kind     LocalKind
	ArgIndex int // meaningful only when Kind == LocalKindArg
}

// BlockID indexes into a Body's Blocks. Block 0 is always the entry block.
type BlockID int

// EntryBlock is the fixed id of a body's entry block.
const EntryBlock BlockID = 0
