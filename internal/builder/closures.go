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
	"fmt"

	"github.com/chic-lang/chic/internal/ast"
	"github.com/chic-lang/chic/internal/mir"
	"github.com/chic-lang/chic/internal/ty"
)

// capture is one free identifier a closure reads from its defining frame
// (spec.md 4.4's closures bullet: "name, local-id, type, mutability,
// nullability").
type capture struct {
	name     string
	local    mir.LocalID
	ty       ty.Ty
	mutable  bool
	nullable bool
	byRef    bool
}

// collectCaptures walks a closure body collecting every identifier that
// resolves to a local in one of the enclosing scopes (not the closure's own
// parameters or locals it declares itself), supplementing spec.md 4.4 with
// the fuller free-variable analysis of
// original_source/src/mir/builder/body_builder/closures/analysis/collect.rs:
// a capture already written to inside the closure body is recorded by
// reference (byRef), everything else is captured by value.
func (b *Builder) collectCaptures(params []ast.Param, body *ast.Block) []capture {
	bound := make(map[string]bool, len(params))
	for _, p := range params {
		bound[p.Name] = true
	}
	seen := make(map[string]*capture)
	var order []string

	var walkBlock func(*ast.Block, map[string]bool)
	var walkStmt func(*ast.Stmt, map[string]bool)
	var walkExpr func(*ast.ExprNode, map[string]bool, bool)

	walkExpr = func(e *ast.ExprNode, local map[string]bool, writing bool) {
		if e == nil {
			return
		}
		switch e.Kind {
		case ast.ExprIdent:
			if local[e.Name] || bound[e.Name] {
				return
			}
			if id, ok := b.resolveLocal(e.Name); ok {
				c, ok := seen[e.Name]
				if !ok {
					loc := b.body.Locals[id]
					c = &capture{name: e.Name, local: id, ty: loc.Ty, mutable: loc.Mutable, nullable: loc.Nullable}
					seen[e.Name] = c
					order = append(order, e.Name)
				}
				if writing {
					c.byRef = true
				}
			}
			return
		case ast.ExprAssign:
			walkExpr(e.Left, local, true)
			walkExpr(e.Right, local, false)
			return
		}
		walkExpr(e.Callee, local, false)
		for i := range e.Args {
			walkExpr(&e.Args[i].Value, local, false)
		}
		walkExpr(e.Base, local, false)
		walkExpr(e.Index, local, false)
		walkExpr(e.Left, local, false)
		walkExpr(e.Right, local, false)
		for i := range e.Elements {
			walkExpr(&e.Elements[i], local, false)
		}
		for i := range e.FieldValues {
			walkExpr(&e.FieldValues[i].Value, local, false)
		}
		walkExpr(e.Operand, local, false)
		walkExpr(e.Cond, local, false)
		walkExpr(e.Then, local, false)
		walkExpr(e.Else, local, false)
		for i := range e.MatchArms {
			walkExpr(&e.MatchArms[i].Value, local, false)
		}
		for i := range e.Segments {
			walkExpr(e.Segments[i].Expr, local, false)
		}
	}

	walkStmt = func(s *ast.Stmt, local map[string]bool) {
		if s == nil {
			return
		}
		switch s.Kind {
		case ast.StmtVarDecl, ast.StmtConstDecl:
			walkExpr(s.Init, local, false)
			local[s.Name] = true
			return
		case ast.StmtForEach:
			walkExpr(s.IterExpr, local, false)
			inner := cloneScope(local)
			inner[s.BindName] = true
			walkBlock(s.ForEachBody, inner)
			return
		}
		walkExpr(s.Expr, local, false)
		walkExpr(s.Cond, local, false)
		walkExpr(s.ForCond, local, false)
		walkExpr(s.ForPost, local, false)
		walkExpr(s.ResourceInit, local, false)
		walkBlock(s.Block, cloneScope(local))
		walkBlock(s.Then, cloneScope(local))
		walkBlock(s.Else, cloneScope(local))
		walkBlock(s.ForBody, cloneScope(local))
		walkBlock(s.ResourceBody, cloneScope(local))
		walkBlock(s.TryBody, cloneScope(local))
		walkBlock(s.Finally, cloneScope(local))
		if s.ForInit != nil {
			inner := cloneScope(local)
			walkStmt(s.ForInit, inner)
		}
		for _, arm := range s.SwitchArms {
			walkExpr(arm.Guard, local, false)
			walkBlock(arm.Body, cloneScope(local))
		}
		for _, c := range s.Catches {
			inner := cloneScope(local)
			inner[c.BindName] = true
			walkExpr(c.When, inner, false)
			walkBlock(c.Body, inner)
		}
	}

	walkBlock = func(blk *ast.Block, local map[string]bool) {
		if blk == nil {
			return
		}
		for i := range blk.Stmts {
			walkStmt(&blk.Stmts[i], local)
		}
	}

	walkBlock(body, map[string]bool{})

	caps := make([]capture, len(order))
	for i, name := range order {
		caps[i] = *seen[name]
	}
	return caps
}

func cloneScope(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// lowerClosure synthesizes a new top-level function for the closure body
// (spec.md 4.4): its first parameter is an environment record whose fields
// are the captures, followed by the closure's declared parameters. The
// expression itself lowers to building that environment record and pairing
// it with the synthesized function's symbol.
func (b *Builder) lowerClosure(e ast.ExprNode) mir.Operand {
	caps := b.collectCaptures(e.ClosureParams, e.ClosureBody)
	symbol := fmt.Sprintf("%s$closure$%d", mangleName(b.QualifiedName), len(b.pendingClosures))

	envFields := make([]mir.Field, len(caps))
	for i, c := range caps {
		fieldTy := c.ty
		if c.byRef {
			fieldTy = ty.Ref{Elem: c.ty, ReadOnly: !c.mutable}
		}
		envFields[i] = mir.Field{Name: c.name, Ty: fieldTy}
	}
	envTy := ty.Tuple{}
	for _, f := range envFields {
		envTy.Elems = append(envTy.Elems, f.Ty)
		envTy.Names = append(envTy.Names, f.Name)
	}

	cb := New(b.Module, b.Symbols, b.Diags, b.Namespace, symbol, "")
	cb.body = mir.NewBody(symbol, ty.Unknown{})
	cb.cur = mir.EntryBlock
	cb.pushScope()
	envLocal := cb.body.AddArg("$env", envTy, false, 0)
	for i, c := range caps {
		place := mir.LocalPlace(envLocal).FieldNamed(c.name)
		localTy := c.ty
		if c.byRef {
			localTy = ty.Ref{Elem: c.ty, ReadOnly: !c.mutable}
		}
		id := cb.body.AddLocal(mir.Local{Name: c.name, Ty: localTy, Mutable: c.mutable, Kind: mir.LocalKindLocal})
		cb.declare(c.name, id)
		cb.push(mir.AssignStmt(mir.LocalPlace(id), mir.UseRvalue(mir.CopyOperand(place))))
		_ = i
	}
	argIdx := 1
	for _, p := range e.ClosureParams {
		id := cb.body.AddArg(p.Name, p.Ty, p.Mode == ty.ModeOut || p.Mode == ty.ModeRef, argIdx)
		cb.declare(p.Name, id)
		argIdx++
	}
	cb.lowerBlock(e.ClosureBody)
	cb.closeFallthrough(mir.ReturnTerm())
	cb.popScope()

	sig := ty.Fn{Abi: ty.ChicAbi}
	sig.Params = append(sig.Params, envTy)
	sig.Modes = append(sig.Modes, ty.ModeValue)
	for _, p := range e.ClosureParams {
		sig.Params = append(sig.Params, p.Ty)
		sig.Modes = append(sig.Modes, p.Mode)
	}
	closureFn := &mir.Function{Symbol: symbol, QualifiedName: symbol, Signature: sig, ParamModes: sig.Modes, Body: cb.body, Visibility: "private"}
	b.pendingClosures = append(b.pendingClosures, closureFn)
	b.pendingClosures = append(b.pendingClosures, cb.pendingClosures...)

	envOps := make([]mir.Operand, len(caps))
	for i, c := range caps {
		if c.byRef {
			id := b.nextBorrowID()
			envOps[i] = mir.BorrowOperand(boolToBorrowKind(c.mutable), mir.LocalPlace(c.local), fmt.Sprintf("cap%d", id))
		} else {
			envOps[i] = mir.CopyOperand(mir.LocalPlace(c.local))
		}
	}
	envTemp := b.newTemp(envTy)
	b.push(mir.AssignStmt(mir.LocalPlace(envTemp), mir.AggregateRvalue(mir.AggregateTuple, envTy, envOps)))

	// The closure value itself is represented as a two-field aggregate:
	// (environment, function symbol), matching how a trait-object-like thin
	// pair is built elsewhere in this MIR (spec.md 3.1's TraitObject shape).
	fnPtr := mir.ConstOperandOf(symbolConst(symbol), ty.Fn{Abi: ty.ChicAbi})
	closureTemp := b.newTemp(ty.Tuple{Elems: []ty.Ty{envTy, ty.Unknown{}}})
	b.push(mir.AssignStmt(mir.LocalPlace(closureTemp), mir.AggregateRvalue(mir.AggregateTuple, ty.Unknown{}, []mir.Operand{mir.CopyOperand(mir.LocalPlace(envTemp)), fnPtr})))
	return mir.CopyOperand(mir.LocalPlace(closureTemp))
}

func boolToBorrowKind(mutable bool) mir.BorrowKind {
	if mutable {
		return mir.BorrowUnique
	}
	return mir.BorrowShared
}

func mangleName(name string) string {
	out := make([]byte, 0, len(name))
	for _, r := range name {
		switch r {
		case ':', '<', '>', ',', '.', ' ':
			out = append(out, '_')
		default:
			out = append(out, byte(r))
		}
	}
	return string(out)
}
