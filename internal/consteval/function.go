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
	"strings"

	"github.com/pkg/errors"

	"github.com/chic-lang/chic/internal/ast"
	"github.com/chic-lang/chic/internal/constval"
	"github.com/chic-lang/chic/internal/ty"
)

func (c *Context) evalCall(e ast.ExprNode, namespace, owner string, scopes *scopeStack) (constval.Value, error) {
	if e.Callee == nil || e.Callee.Kind != ast.ExprIdent {
		return constval.Value{}, errors.New("const-eval: only direct calls to named functions are foldable")
	}
	name := e.Callee.Name
	qualified := name
	if namespace != "" && !strings.Contains(name, "::") {
		qualified = namespace + "::" + name
	}

	args := make([]constval.Value, len(e.Args))
	labels := make([]string, len(e.Args))
	for i, a := range e.Args {
		v, err := c.evalExpr(a.Value, namespace, owner, scopes)
		if err != nil {
			return constval.Value{}, err
		}
		args[i] = v
		labels[i] = a.Name + "=" + v.String()
	}

	return c.EvalFunctionCall(qualified, args, labels)
}

// EvalFunctionCall evaluates a pure function body against already-folded
// arguments, enforcing the restrictions and fuel/cycle/cache discipline of
// spec.md 4.3.
func (c *Context) EvalFunctionCall(qualifiedName string, args []constval.Value, argLabels []string) (constval.Value, error) {
	key := fnKey{qualifiedName: qualifiedName, argLabels: strings.Join(argLabels, "|")}
	if cached, ok := c.fnCache.get(key); ok {
		c.metrics.FnCacheHits++
		if cached == nil {
			return constval.Value{}, errors.Errorf("cached const-eval failure for %q", qualifiedName)
		}
		return *cached, nil
	}
	c.metrics.FnCacheMisses++

	if c.evaluating[qualifiedName] {
		c.Diags.Errorf("E0902", ast.Span{}, "function %q is recursively invoked during compile-time evaluation", qualifiedName)
		c.fnCache.put(key, nil)
		return constval.Value{}, errors.Wrapf(ErrCycle, "function %q", qualifiedName)
	}

	if c.Functions == nil {
		return constval.Value{}, errors.Errorf("const-eval: no function body available for %q", qualifiedName)
	}
	decl, ok := c.Functions.LookupFunction(qualifiedName)
	if !ok {
		return constval.Value{}, errors.Errorf("const-eval: unknown function %q", qualifiedName)
	}
	if decl.IsAsync || decl.IsExtern || len(decl.GenericParams) > 0 || decl.Body == nil {
		c.Diags.Errorf("E0903", decl.Span, "function %q cannot be evaluated at compile time (async, extern, generic, or bodyless)", qualifiedName)
		c.fnCache.put(key, nil)
		return constval.Value{}, errors.Errorf("function %q is not compile-time evaluable", qualifiedName)
	}
	if len(args) != len(decl.Params) {
		return constval.Value{}, errors.Errorf("const-eval: %q expects %d arguments, got %d", qualifiedName, len(decl.Params), len(args))
	}
	for _, p := range decl.Params {
		if p.Mode != ty.ModeValue && p.Mode != ty.ModeIn {
			c.Diags.Errorf("E0904", decl.Span, "function %q has a ref/out parameter and cannot be evaluated at compile time", qualifiedName)
			c.fnCache.put(key, nil)
			return constval.Value{}, errors.Errorf("function %q has a non-value parameter", qualifiedName)
		}
	}

	c.evaluating[qualifiedName] = true
	defer delete(c.evaluating, qualifiedName)

	scopes := newScopeStack()
	for i, p := range decl.Params {
		scopes.declare(p.Name, c.convertTo(args[i], p.Ty), false)
	}

	result, err := c.execBlock(decl.Body, qualifiedName, qualifiedName, scopes)
	if err != nil {
		if rs, isReturn := err.(returnSignal); isReturn {
			v := c.convertTo(rs.value, decl.Ret)
			c.fnCache.put(key, &v)
			return v, nil
		}
		c.fnCache.put(key, nil)
		return constval.Value{}, err
	}
	v := c.convertTo(result, decl.Ret)
	c.fnCache.put(key, &v)
	return v, nil
}

// execBlock runs a block's statements, returning the value of a trailing
// return statement via a returnSignal error, or the zero Unit value if the
// block completes without returning.
func (c *Context) execBlock(b *ast.Block, namespace, owner string, scopes *scopeStack) (constval.Value, error) {
	scopes.push()
	defer scopes.pop()

	for _, s := range b.Stmts {
		if err := c.execStmt(s, namespace, owner, scopes); err != nil {
			return constval.Value{}, err
		}
	}
	return constval.NewUnit(), nil
}

// execStmt executes one statement from spec.md 4.3's supported pure-function
// subset: block, empty, const-declaration, variable-declaration, expression,
// return, if/else. Anything else produces a diagnostic naming the kind and
// aborts evaluation.
func (c *Context) execStmt(s ast.Stmt, namespace, owner string, scopes *scopeStack) error {
	if err := c.step(s.Span); err != nil {
		return err
	}

	switch s.Kind {
	case ast.StmtBlock:
		if s.Block == nil {
			return nil
		}
		_, err := c.execBlock(s.Block, namespace, owner, scopes)
		return err
	case ast.StmtEmpty:
		return nil
	case ast.StmtConstDecl, ast.StmtVarDecl:
		var v constval.Value
		var err error
		if s.Init != nil {
			v, err = c.evalExpr(*s.Init, namespace, owner, scopes)
			if err != nil {
				return err
			}
			if s.Ty != nil {
				v = c.convertTo(v, *s.Ty)
			}
		} else {
			v = constval.NewUnit()
		}
		scopes.declare(s.Name, v, s.Mutable)
		return nil
	case ast.StmtExpr:
		if s.Expr == nil {
			return nil
		}
		_, err := c.evalExpr(*s.Expr, namespace, owner, scopes)
		return err
	case ast.StmtReturn:
		if s.Expr == nil {
			return returnSignal{value: constval.NewUnit()}
		}
		v, err := c.evalExpr(*s.Expr, namespace, owner, scopes)
		if err != nil {
			return err
		}
		return returnSignal{value: v}
	case ast.StmtIf:
		if s.Cond == nil {
			return errors.New("const-eval: if statement missing condition")
		}
		cond, err := c.evalExpr(*s.Cond, namespace, owner, scopes)
		if err != nil {
			return err
		}
		if cond.Kind != constval.Bool {
			return errors.New("const-eval: if condition is not bool")
		}
		if cond.Bool {
			if s.Then == nil {
				return nil
			}
			_, err := c.execBlock(s.Then, namespace, owner, scopes)
			return err
		}
		if s.Else == nil {
			return nil
		}
		_, err = c.execBlock(s.Else, namespace, owner, scopes)
		return err
	default:
		c.Diags.Errorf("E0905", s.Span, "statement kind %d is not supported in a compile-time-evaluated function", s.Kind)
		return errors.Errorf("const-eval: unsupported statement kind %d", s.Kind)
	}
}
