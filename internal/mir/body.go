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
	"github.com/pkg/errors"

	"github.com/chic-lang/chic/internal/ty"
)

// Block is one basic block: an ordered statement list plus an optional
// terminator (spec.md 3.3). Terminator is nil until the builder closes the
// block.
type Block struct {
	Statements []Statement
	Terminator *Terminator
}

// AsyncMachine is the frame layout and resume/drop plan produced by the
// async lowerer (spec.md 3.3, 4.7). Nil on a body that was never async.
type AsyncMachine struct {
	FrameFields      []Field
	FrameSize        int
	FrameAlign       int
	PollSymbol       string
	DropSymbol       string
	ConstructorSymbol string
	SuspendPoints    []SuspendPoint
}

// Field names one field of a synthesized frame or closure-environment
// record.
type Field struct {
	Name string
	Ty   ty.Ty
}

// SuspendPoint records one await point's live-local set and resume state.
type SuspendPoint struct {
	State     int
	AwaitExpr BlockID
	LiveLocals []LocalID
}

// GeneratorDescriptor records the resume/yield plan for a `yield`-based body.
type GeneratorDescriptor struct {
	StateField string
	YieldPoints []SuspendPoint
}

// StreamMetadata carries additional annotations for bodies that produce an
// async stream rather than a single future.
type StreamMetadata struct {
	ElementTy ty.Ty
	Buffered  bool
}

// DebugNotes are free-form, non-semantic annotations a builder may attach
// for later diagnostics or pretty-printing; never consulted by codegen.
type DebugNotes struct {
	SourceFunctionName string
	Notes              []string
}

// Body is a single function's MIR (spec.md 3.3).
type Body struct {
	Name string

	Locals []Local
	Blocks []Block

	ExceptionRegions []ExceptionRegion

	Async     *AsyncMachine
	Generator *GeneratorDescriptor
	Stream    *StreamMetadata
	Debug     DebugNotes
}

// NewBody allocates a body with its fixed return-slot local already
// installed at index 0.
func NewBody(name string, returnTy ty.Ty) *Body {
	return &Body{
		Name: name,
		Locals: []Local{
			{Ty: returnTy, Kind: LocalKindReturn, Mutable: true},
		},
		Blocks: []Block{{}},
	}
}

// AddLocal appends a new local and returns its id.
func (b *Body) AddLocal(l Local) LocalID {
	b.Locals = append(b.Locals, l)
	return LocalID(len(b.Locals) - 1)
}

// AddArg appends a parameter local in declaration order. Callers must add
// all Arg locals before any Local/Temp local to preserve the "Locals
// 1..=arg_count are parameters" invariant (spec.md 3.3).
func (b *Body) AddArg(name string, t ty.Ty, mutable bool, index int) LocalID {
	return b.AddLocal(Local{Name: name, Ty: t, Mutable: mutable, Kind: LocalKindArg, ArgIndex: index})
}

// AddBlock appends a new empty block and returns its id.
func (b *Body) AddBlock() BlockID {
	b.Blocks = append(b.Blocks, Block{})
	return BlockID(len(b.Blocks) - 1)
}

// PushStatement appends a statement to the given block.
func (b *Body) PushStatement(block BlockID, s Statement) {
	b.Blocks[block].Statements = append(b.Blocks[block].Statements, s)
}

// SetTerminator installs a block's terminator. It is an error to overwrite
// an already-terminated block (the builder must open a fresh block instead).
func (b *Body) SetTerminator(block BlockID, t Terminator) error {
	if b.Blocks[block].Terminator != nil {
		return errors.Errorf("block %d already has a terminator", block)
	}
	term := t
	b.Blocks[block].Terminator = &term
	return nil
}

// WellFormed reports whether every reachable block (per a naive worklist
// from EntryBlock) has a terminator, and returns the first offending block
// if not (spec.md 3.3: "A well-formed body has a terminator on every
// reachable block after lowering completes").
func (b *Body) WellFormed() (BlockID, bool) {
	seen := make([]bool, len(b.Blocks))
	work := []BlockID{EntryBlock}
	seen[EntryBlock] = true
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		blk := b.Blocks[cur]
		if blk.Terminator == nil {
			return cur, false
		}
		for _, succ := range blk.Terminator.Successors() {
			if int(succ) < 0 || int(succ) >= len(b.Blocks) {
				continue
			}
			if !seen[succ] {
				seen[succ] = true
				work = append(work, succ)
			}
		}
	}
	return 0, true
}

// ParamCount returns the number of declared parameters, derived from the
// Locals table rather than stored separately (locals 1..=n).
func (b *Body) ParamCount() int {
	n := 0
	for _, l := range b.Locals {
		if l.Kind == LocalKindArg {
			n++
		}
	}
	return n
}
