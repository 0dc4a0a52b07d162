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

// lowerScopedResource lowers `using`/`lock`/`fixed`/`atomic { ... }` (spec.md
// 4.4's "Scoped resources" bullet): the resource expression is evaluated once
// into a local registered in b.resourceLocals, so every exit path out of the
// body releases it exactly once: break, continue, return, or a propagating
// throw through closeScopedDrops, and normal fallthrough through an explicit
// Drop at the end of the body.
func (b *Builder) lowerScopedResource(s *ast.Stmt) {
	resOp := b.lowerExpr(*s.ResourceInit)
	resLocal := b.body.AddLocal(mir.Local{Name: s.ResourceName, Ty: ty.Unknown{}, Kind: mir.LocalKindLocal})
	b.push(mir.AssignStmt(mir.LocalPlace(resLocal), mir.UseRvalue(resOp)))

	b.pushScope()
	if s.ResourceName != "" {
		b.declare(s.ResourceName, resLocal)
	}
	depth := b.scopeDepth
	b.resourceLocals = append(b.resourceLocals, resourceLocal{local: resLocal, depth: depth})

	b.lowerBlock(s.ResourceBody)

	// Pop the registration so exits lowered after this scope don't release
	// it again. A body that already ended in break/continue/return/throw
	// released it through closeScopedDrops and has a terminator, so it gets
	// no fallthrough release.
	if n := len(b.resourceLocals); n > 0 && b.resourceLocals[n-1].local == resLocal {
		b.resourceLocals = b.resourceLocals[:n-1]
	}
	if b.body.Blocks[b.cur].Terminator == nil {
		b.push(mir.DropStmt(mir.LocalPlace(resLocal), false))
	}
	b.popScope()
}
