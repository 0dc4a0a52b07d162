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

package builder

import (
	"github.com/chic-lang/chic/internal/ast"
	"github.com/chic-lang/chic/internal/mir"
	"github.com/chic-lang/chic/internal/ty"
)

// lowerAwait lowers `await expr` to an Await terminator with resume and drop
// successor blocks (spec.md 4.4: "await becomes Terminator::Await with
// resume and drop successor blocks"). This only marks the suspend point;
// partitioning the body into suspend segments and building the frame layout
// around every such point is internal/async's job (spec.md 4.7), run as a
// pass over the finished body after the whole function has been built.
func (b *Builder) lowerAwait(e ast.ExprNode) mir.Operand {
	future := b.lowerExpr(*e.Operand)
	dest := b.newTemp(ty.Unknown{})
	destPlace := mir.LocalPlace(dest)
	resume := b.newBlock()
	drop := b.newBlock()
	b.setTerm(mir.Terminator{Kind: mir.TermAwait, AwaitFuture: future, AwaitDestination: &destPlace, AwaitResume: resume, AwaitDrop: drop})
	b.switchTo(resume)
	return mir.CopyOperand(destPlace)
}
