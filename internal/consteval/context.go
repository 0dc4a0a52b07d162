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

package consteval

import (
	"github.com/pkg/errors"

	"github.com/chic-lang/chic/internal/ast"
	"github.com/chic-lang/chic/internal/constval"
	"github.com/chic-lang/chic/internal/diag"
	"github.com/chic-lang/chic/internal/mir"
	"github.com/chic-lang/chic/internal/symbols"
	"github.com/chic-lang/chic/internal/ty"
)

// FunctionLookup resolves a pure-function body by qualified name. The
// module-lowering driver supplies this from the AST it is walking; the
// evaluator never owns the whole AST itself.
type FunctionLookup interface {
	LookupFunction(qualifiedName string) (*ast.FunctionDecl, bool)
}

// ErrFuelExhausted is returned (wrapped with context) when a run consumes
// more fuel than Config.FuelLimit allows.
var ErrFuelExhausted = errors.New("const-eval fuel exhausted")

// ErrCycle is returned (wrapped with context) when a constant or function
// is found currently-evaluating on the cycle stack.
var ErrCycle = errors.New("const-eval cycle detected")

// Context owns the symbol index and layout table mutably for the duration
// of one evaluator run (spec.md 4.3, 5: "the ConstEvalContext holds
// exclusive mutable access... no body lowering may proceed until const
// evaluation returns").
type Context struct {
	Symbols   *symbols.Index
	Layouts   *ty.TypeLayoutTable
	Strings   *mir.StringTable
	Functions FunctionLookup
	Config    Config
	Diags     diag.Bag

	metrics Metrics

	exprMemo map[exprKey]*constval.Value
	fnCache  *fnLRU

	evaluating map[string]bool // names currently on the cycle-detection stack

	constExprs map[string]ast.ExprNode

	fuelUsed int
}

// NewContext builds an evaluator context. Pass a nil FunctionLookup if no
// function bodies will ever need evaluating (e.g. unit tests of pure
// expression folding).
func NewContext(symIdx *symbols.Index, layouts *ty.TypeLayoutTable, strings *mir.StringTable, fns FunctionLookup, cfg Config) *Context {
	return &Context{
		Symbols:    symIdx,
		Layouts:    layouts,
		Strings:    strings,
		Functions:  fns,
		Config:     cfg,
		exprMemo:   make(map[exprKey]*constval.Value),
		fnCache:    newFnLRU(cfg.FnCacheCapacity),
		evaluating: make(map[string]bool),
	}
}

// Metrics returns a snapshot of this run's counters (spec.md 4.3).
func (c *Context) Metrics() Metrics {
	m := c.metrics
	m.FinalCacheSize = len(c.exprMemo) + c.fnCache.len()
	return m
}

// step consumes one unit of fuel; every atomic evaluation step must call
// this before doing any work (spec.md 4.3, 8: "the number of calls to the
// evaluator's step function between entry and exit is <= fuel_limit + 1").
func (c *Context) step(span ast.Span) error {
	c.fuelUsed++
	c.metrics.FuelConsumed++
	if c.Config.FuelLimit != nil && c.fuelUsed > *c.Config.FuelLimit {
		c.metrics.FuelExhaustions++
		c.Diags.Errorf("E0900", span, "compile-time evaluation exceeded the configured fuel limit of %d", *c.Config.FuelLimit)
		return errors.Wrapf(ErrFuelExhausted, "limit %d", *c.Config.FuelLimit)
	}
	return nil
}

// EvalConstant evaluates a registered constant symbol's initializer and, on
// success, installs the result back into the symbol table (spec.md 4.3).
func (c *Context) EvalConstant(qualifiedName, namespace string) (constval.Value, error) {
	if c.evaluating[qualifiedName] {
		c.Diags.Errorf("E0901", ast.Span{}, "constant %q's initializer is cyclic", qualifiedName)
		c.exprMemo[exprKey{exprText: "const:" + qualifiedName}] = nil
		return constval.Value{}, errors.Wrapf(ErrCycle, "constant %q", qualifiedName)
	}
	sym, ok := c.Symbols.Constant(qualifiedName)
	if !ok {
		return constval.Value{}, errors.Errorf("unknown constant %q", qualifiedName)
	}
	if sym.Computed != nil {
		return *sym.Computed, nil
	}

	c.evaluating[qualifiedName] = true
	defer delete(c.evaluating, qualifiedName)

	expr, hasExpr := c.lookupConstExpr(qualifiedName)
	if !hasExpr {
		return constval.Value{}, errors.Errorf("constant %q has no initializer expression available for evaluation", qualifiedName)
	}

	v, err := c.EvalExpr(expr, namespace, qualifiedName, sym.Ty, newScopeStack())
	if err != nil {
		return constval.Value{}, err
	}
	v = c.convertTo(v, sym.Ty)
	c.Symbols.SetConstantValue(qualifiedName, v)
	return v, nil
}

func (c *Context) lookupConstExpr(qualifiedName string) (ast.ExprNode, bool) {
	e, ok := c.constExprs[qualifiedName]
	return e, ok
}

// RegisterConstExpr attaches the AST initializer for a constant so
// EvalConstant can fold it later. Call once per constant symbol while
// building the symbol index.
func (c *Context) RegisterConstExpr(qualifiedName string, expr ast.ExprNode) {
	if c.constExprs == nil {
		c.constExprs = make(map[string]ast.ExprNode)
	}
	c.constExprs[qualifiedName] = expr
}
