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

// Package builder lowers one function's AST to one MIR body (spec.md 4.4).
// Entry points exist per function kind: BuildFunction covers free functions,
// methods and constructors; BuildAccessor covers a property's getter/setter/
// init body; BuildTestcase covers a testcase entry point. Each builder owns a
// locals vector under construction, the current block id, a scope stack, a
// try-context stack, and read access to the symbol index and type layouts for
// pending insertions, the same division of labour gapil/resolver's
// expression.go/statement.go draw between tree-walking and a shared
// resolver handle.
package builder

import (
	"fmt"

	"github.com/chic-lang/chic/internal/ast"
	"github.com/chic-lang/chic/internal/diag"
	"github.com/chic-lang/chic/internal/mir"
	"github.com/chic-lang/chic/internal/symbols"
	"github.com/chic-lang/chic/internal/ty"
)

// scope maps a source-level name to the local it was bound to, one per
// lexical block nesting level.
type scope struct {
	vars map[string]mir.LocalID
}

// loopContext records the break/continue targets of the innermost enclosing
// loop, plus the scope depth it was entered at (so break/continue can close
// every resource scope opened since).
type loopContext struct {
	breakTarget    mir.BlockID
	continueTarget mir.BlockID
	scopeDepth     int
}

// resourceLocal is one using/lock/fixed/atomic resource local still in
// scope, recorded with the scope depth it was acquired at.
type resourceLocal struct {
	local mir.LocalID
	depth int
}

// Builder lowers one function body. It is not reused across functions.
type Builder struct {
	Module  *mir.MirModule
	Symbols *symbols.Index
	Diags   *diag.Bag

	// Namespace and QualifiedName identify the function being lowered, for
	// overload lookups and diagnostic context.
	Namespace     string
	QualifiedName string

	// ReceiverType is non-empty when lowering a method, constructor, or
	// accessor body; it is the owning class/struct's canonical name.
	ReceiverType string
	// InConstructor gates init-only property assignment (spec.md 4.4).
	InConstructor bool

	body       *mir.Body
	cur        mir.BlockID
	scopes     []scope
	scopeDepth int
	loops      []loopContext
	tries      []*tryContext

	// resourceLocals tracks every using/lock/fixed/atomic resource local
	// still in scope, innermost-last, so break/continue/return/throw can
	// unwind exactly the scopes they're leaving (spec.md 4.4's "Scoped
	// resources" bullet).
	resourceLocals []resourceLocal

	borrowSeq int

	// pendingClosures accumulates synthesized closure functions discovered
	// while lowering; the caller (the driver invoking BuildFunction) installs
	// them into the module after the main body is done, so a closure created
	// partway through lowering doesn't shift block/local indices the builder
	// is still using.
	pendingClosures []*mir.Function
}

// New constructs a builder for one function lowering. namespace and
// qualifiedName identify the function for symbol lookups (overload
// resolution, default-argument records); receiverType is empty for a free
// function.
func New(module *mir.MirModule, symIdx *symbols.Index, diags *diag.Bag, namespace, qualifiedName, receiverType string) *Builder {
	return &Builder{
		Module:        module,
		Symbols:       symIdx,
		Diags:         diags,
		Namespace:     namespace,
		QualifiedName: qualifiedName,
		ReceiverType:  receiverType,
	}
}

// BuildFunction lowers a free function, method, or constructor body to MIR
// and installs it into the module, returning the built Function (spec.md
// 4.4: "Entry points exist per function kind"). inConstructor marks this as
// the owning class's constructor body, which is what makes init-only
// property writes legal (spec.md 4.4's property-access bullet).
func BuildFunction(module *mir.MirModule, symIdx *symbols.Index, diags *diag.Bag, namespace string, fn *ast.FunctionDecl, qualifiedName, symbol string, inConstructor bool) *mir.Function {
	b := New(module, symIdx, diags, namespace, qualifiedName, fn.ReceiverType)
	b.InConstructor = inConstructor
	return b.build(fn, symbol)
}

// BuildAccessor lowers one property accessor body (getter, setter, or init)
// to MIR (spec.md 4.4's property-access bullet). kind is "getter", "setter",
// or "init"; for a setter/init, valueParam names the implicit assigned-value
// parameter.
func BuildAccessor(module *mir.MirModule, symIdx *symbols.Index, diags *diag.Bag, namespace, receiverType, qualifiedName, symbol string, propTy ty.Ty, body *ast.Block, kind, valueParam string, inConstructor bool) *mir.Function {
	b := New(module, symIdx, diags, namespace, qualifiedName, receiverType)
	b.InConstructor = inConstructor

	ret := propTy
	if kind == "setter" || kind == "init" {
		ret = ty.Unit{}
	}
	b.body = mir.NewBody(symbol, ret)
	b.cur = mir.EntryBlock
	b.pushScope()

	if receiverType != "" {
		self := b.body.AddArg("self", ty.Ref{Elem: ty.Named{Path: receiverType}, ReadOnly: kind == "getter"}, kind != "getter", 0)
		b.declare("self", self)
	}
	if kind == "setter" || kind == "init" {
		v := b.body.AddArg(valueParam, propTy, false, 1)
		b.declare(valueParam, v)
	}

	b.lowerBlock(body)
	b.closeFallthrough(mir.ReturnTerm())
	b.popScope()

	return b.finish(symbol, ty.Fn{Ret: ret, Abi: ty.ChicAbi})
}

func (b *Builder) build(fn *ast.FunctionDecl, symbol string) *mir.Function {
	b.body = mir.NewBody(symbol, fn.Ret)
	b.cur = mir.EntryBlock
	b.pushScope()

	argIdx := 0
	if fn.ReceiverType != "" {
		self := b.body.AddArg("self", ty.Ref{Elem: ty.Named{Path: fn.ReceiverType}}, true, argIdx)
		b.declare("self", self)
		argIdx++
	}
	for _, p := range fn.Params {
		id := b.body.AddArg(p.Name, p.Ty, p.Mode == ty.ModeOut || p.Mode == ty.ModeRef, argIdx)
		b.declare(p.Name, id)
		argIdx++
	}

	if fn.Body != nil {
		b.lowerBlock(fn.Body)
		b.closeFallthrough(mir.ReturnTerm())
	} else {
		// extern/abstract declaration: no body to lower.
		b.body = nil
	}
	b.popScope()

	sig := ty.Fn{Ret: fn.Ret, Abi: fn.Abi, Variadic: fn.Variadic}
	for _, p := range fn.Params {
		sig.Params = append(sig.Params, p.Ty)
		sig.Modes = append(sig.Modes, p.Mode)
	}
	f := b.finish(symbol, sig)
	f.IsAsync = fn.IsAsync
	f.IsGeneric = len(fn.GenericParams) > 0
	f.GenericParams = fn.GenericParams
	f.Attributes = fn.Attributes
	return f
}

func (b *Builder) finish(symbol string, sig ty.Fn) *mir.Function {
	f := &mir.Function{
		Symbol:        symbol,
		QualifiedName: b.QualifiedName,
		Signature:     sig,
		ParamModes:    sig.Modes,
		Body:          b.body,
	}
	b.Module.AddFunction(f)
	for _, c := range b.pendingClosures {
		b.Module.AddFunction(c)
	}
	return f
}

// closeFallthrough installs t on the current block only if it doesn't
// already have a terminator (a preceding `return`/`throw` may have already
// closed it), matching WellFormed's "a terminator on every reachable block"
// invariant without double-terminating a block.
func (b *Builder) closeFallthrough(t mir.Terminator) {
	if b.body.Blocks[b.cur].Terminator == nil {
		_ = b.body.SetTerminator(b.cur, t)
	}
}

func (b *Builder) pushScope() {
	b.scopes = append(b.scopes, scope{vars: make(map[string]mir.LocalID)})
	b.scopeDepth++
}

func (b *Builder) popScope() {
	b.scopes = b.scopes[:len(b.scopes)-1]
	b.scopeDepth--
}

func (b *Builder) declare(name string, id mir.LocalID) {
	b.scopes[len(b.scopes)-1].vars[name] = id
}

// resolveLocal walks the scope stack innermost-first; the second result is
// false when name isn't a local at all (it may still resolve to a field,
// static, or pending namespace path, which lowerExpr falls back to).
func (b *Builder) resolveLocal(name string) (mir.LocalID, bool) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if id, ok := b.scopes[i].vars[name]; ok {
			return id, true
		}
	}
	return 0, false
}

func (b *Builder) newTemp(t ty.Ty) mir.LocalID {
	return b.body.AddLocal(mir.Local{Ty: t, Mutable: true, Kind: mir.LocalKindTemp})
}

func (b *Builder) newBlock() mir.BlockID { return b.body.AddBlock() }

func (b *Builder) push(s mir.Statement) { b.body.PushStatement(b.cur, s) }

func (b *Builder) setTerm(t mir.Terminator) { _ = b.body.SetTerminator(b.cur, t) }

// gotoNew opens and switches to a fresh block, first branching the current
// (still-open) block to it unconditionally.
func (b *Builder) gotoNew() mir.BlockID {
	next := b.newBlock()
	if b.body.Blocks[b.cur].Terminator == nil {
		b.setTerm(mir.GotoTerm(next))
	}
	b.cur = next
	return next
}

func (b *Builder) switchTo(block mir.BlockID) { b.cur = block }

func (b *Builder) nextBorrowID() mir.BorrowID {
	id := mir.BorrowID(b.borrowSeq)
	b.borrowSeq++
	return id
}

func pendingExpr(repr string) mir.Operand {
	return mir.PendingOperand(repr, nil)
}

func exprRepr(e ast.ExprNode) string {
	switch e.Kind {
	case ast.ExprIdent:
		return e.Name
	case ast.ExprFieldAccess:
		return fmt.Sprintf("%s.%s", exprRepr(derefExpr(e.Base)), e.Field)
	case ast.ExprCall, ast.ExprMethodCall:
		return exprRepr(derefExpr(e.Callee)) + "(...)"
	default:
		return fmt.Sprintf("<expr kind %d>", e.Kind)
	}
}

func derefExpr(e *ast.ExprNode) ast.ExprNode {
	if e == nil {
		return ast.ExprNode{}
	}
	return *e
}
