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
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/chic-lang/chic/internal/ast"
	"github.com/chic-lang/chic/internal/constval"
	"github.com/chic-lang/chic/internal/ty"
)

// primitiveInfo describes one built-in scalar type's width/signedness for
// the narrowing and coercion rules of spec.md 4.3.
type primitiveInfo struct {
	bits   int
	signed bool
	float  bool
}

var primitives = map[string]primitiveInfo{
	"i8": {8, true, false}, "i16": {16, true, false}, "i32": {32, true, false}, "i64": {64, true, false},
	"u8": {8, false, false}, "u16": {16, false, false}, "u32": {32, false, false}, "u64": {64, false, false},
	"f32": {32, false, true}, "f64": {64, false, true},
}

func primitiveName(t ty.Ty) (string, bool) {
	n, ok := t.(ty.Named)
	if !ok || len(n.Args) != 0 {
		return "", false
	}
	if _, known := primitives[n.Path]; known {
		return n.Path, true
	}
	if n.Path == "bool" || n.Path == "char" {
		return n.Path, true
	}
	return "", false
}

// scope is one nested binding frame (block, function body, if/else arm).
type scope struct {
	vars map[string]constval.Value
	mut  map[string]bool
}

// scopeStack is a chain of lexical scopes; lookups walk outward.
type scopeStack struct {
	frames []*scope
}

func newScopeStack() *scopeStack {
	s := &scopeStack{}
	s.push()
	return s
}

// NewScopeStack builds an empty top-level scope, for callers outside this
// package that need to fold one expression in isolation (e.g.
// internal/defaultargs classifying a default-value expression).
func NewScopeStack() *scopeStack { return newScopeStack() }

func (s *scopeStack) push() {
	s.frames = append(s.frames, &scope{vars: make(map[string]constval.Value), mut: make(map[string]bool)})
}

func (s *scopeStack) pop() {
	s.frames = s.frames[:len(s.frames)-1]
}

func (s *scopeStack) declare(name string, v constval.Value, mutable bool) {
	top := s.frames[len(s.frames)-1]
	top.vars[name] = v
	top.mut[name] = mutable
}

func (s *scopeStack) lookup(name string) (constval.Value, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i].vars[name]; ok {
			return v, true
		}
	}
	return constval.Value{}, false
}

func (s *scopeStack) assign(name string, v constval.Value) bool {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if _, ok := s.frames[i].vars[name]; ok {
			s.frames[i].vars[name] = v
			return true
		}
	}
	return false
}

// returnSignal unwinds statement execution back to the function-call site.
type returnSignal struct {
	value constval.Value
}

func (returnSignal) Error() string { return "const-eval return" }

// EvalExpr folds one expression to a constant, consulting and populating the
// expression memo cache keyed by (text, namespace, owner, target type)
// (spec.md 4.3).
func (c *Context) EvalExpr(expr ast.ExprNode, namespace, owner string, target ty.Ty, scopes *scopeStack) (constval.Value, error) {
	c.metrics.ExpressionsRequested++

	key := exprKey{exprText: exprText(expr), namespace: namespace, owner: owner}
	if target != nil {
		key.targetTy = target.CanonicalName()
	}
	if c.Config.Memoize {
		if cached, ok := c.exprMemo[key]; ok {
			c.metrics.MemoHits++
			if cached == nil {
				return constval.Value{}, errors.New("cached const-eval failure")
			}
			return *cached, nil
		}
		c.metrics.MemoMisses++
	}

	c.metrics.ExpressionsEvaluated++
	v, err := c.evalExpr(expr, namespace, owner, scopes)
	if err != nil {
		if c.Config.Memoize {
			c.exprMemo[key] = nil
		}
		return constval.Value{}, err
	}
	if target != nil {
		v = c.convertTo(v, target)
	}
	if c.Config.Memoize {
		vv := v
		c.exprMemo[key] = &vv
	}
	return v, nil
}

func (c *Context) evalExpr(e ast.ExprNode, namespace, owner string, scopes *scopeStack) (constval.Value, error) {
	if err := c.step(e.Span); err != nil {
		return constval.Value{}, err
	}

	switch e.Kind {
	case ast.ExprLiteral:
		return c.evalLiteral(e)
	case ast.ExprIdent:
		if v, ok := scopes.lookup(e.Name); ok {
			return v, nil
		}
		qualified := e.Name
		if namespace != "" && !strings.Contains(e.Name, "::") {
			qualified = namespace + "::" + e.Name
		}
		if v, err := c.EvalConstant(qualified, namespace); err == nil {
			return v, nil
		}
		return constval.Value{}, errors.Errorf("const-eval: undefined name %q", e.Name)
	case ast.ExprUnary:
		return c.evalUnary(e, namespace, owner, scopes)
	case ast.ExprBinary:
		return c.evalBinary(e, namespace, owner, scopes)
	case ast.ExprIf:
		cond, err := c.evalExpr(*e.Cond, namespace, owner, scopes)
		if err != nil {
			return constval.Value{}, err
		}
		if cond.Kind != constval.Bool {
			return constval.Value{}, errors.New("const-eval: if condition is not bool")
		}
		if cond.Bool {
			return c.evalExpr(*e.Then, namespace, owner, scopes)
		}
		if e.Else != nil {
			return c.evalExpr(*e.Else, namespace, owner, scopes)
		}
		return constval.NewUnit(), nil
	case ast.ExprCast:
		v, err := c.evalExpr(*e.Operand, namespace, owner, scopes)
		if err != nil {
			return constval.Value{}, err
		}
		if e.TargetTy == nil {
			return v, nil
		}
		return c.convertTo(v, *e.TargetTy), nil
	case ast.ExprCall:
		return c.evalCall(e, namespace, owner, scopes)
	case ast.ExprTuple:
		fields := make([]constval.FieldValue, len(e.Elements))
		for i, el := range e.Elements {
			v, err := c.evalExpr(el, namespace, owner, scopes)
			if err != nil {
				return constval.Value{}, err
			}
			fields[i] = constval.FieldValue{Name: strconv.Itoa(i), Value: v}
		}
		return constval.NewStruct("tuple", fields), nil
	default:
		return constval.Value{}, errors.Errorf("const-eval: expression kind %d is not foldable at compile time", e.Kind)
	}
}

func (c *Context) evalLiteral(e ast.ExprNode) (constval.Value, error) {
	text := e.LiteralText
	switch {
	case text == "true":
		return constval.NewBool(true), nil
	case text == "false":
		return constval.NewBool(false), nil
	case strings.HasPrefix(text, "\""):
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			unquoted = strings.Trim(text, "\"")
		}
		id := 0
		if c.Strings != nil {
			id = int(c.Strings.Intern(unquoted))
		}
		return constval.NewStr(id, unquoted), nil
	case strings.ContainsAny(text, ".eE") && !strings.HasPrefix(text, "0x"):
		f, err := strconv.ParseFloat(trimSuffix(text), 64)
		if err != nil {
			return constval.Value{}, errors.Wrapf(err, "malformed float literal %q", text)
		}
		width := 64
		if e.LiteralSuffix.Present && strings.Contains(e.LiteralSuffix.Text, "32") {
			width = 32
		}
		return floatValue(width, f), nil
	default:
		if strings.HasPrefix(text, "-") {
			i, err := strconv.ParseInt(trimSuffix(text), 0, 64)
			if err != nil {
				return constval.Value{}, errors.Wrapf(err, "malformed integer literal %q", text)
			}
			return constval.NewInt(i), nil
		}
		u, err := strconv.ParseUint(trimSuffix(text), 0, 64)
		if err != nil {
			return constval.Value{}, errors.Wrapf(err, "malformed integer literal %q", text)
		}
		if e.LiteralSuffix.Present && strings.HasPrefix(e.LiteralSuffix.Text, "u") {
			return constval.NewUInt(u), nil
		}
		return constval.NewInt(int64(u)), nil
	}
}

func trimSuffix(text string) string {
	for i := len(text) - 1; i >= 0; i-- {
		c := text[i]
		if c >= '0' && c <= '9' || c == '.' || c == '-' || c == 'x' || c == 'X' ||
			(c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			return text[:i+1]
		}
	}
	return text
}

func floatValue(width int, f float64) constval.Value {
	if width == 32 {
		return constval.NewFloat(32, uint64(math.Float32bits(float32(f))))
	}
	return constval.NewFloat(64, math.Float64bits(f))
}

func asFloat64(v constval.Value) (float64, bool) {
	switch v.Kind {
	case constval.Float:
		if v.FloatWidth == 32 {
			return float64(math.Float32frombits(uint32(v.FloatBits))), true
		}
		return math.Float64frombits(v.FloatBits), true
	case constval.Int:
		return float64(v.Int), true
	case constval.UInt:
		return float64(v.UInt), true
	default:
		return 0, false
	}
}

func (c *Context) evalUnary(e ast.ExprNode, namespace, owner string, scopes *scopeStack) (constval.Value, error) {
	v, err := c.evalExpr(*e.Left, namespace, owner, scopes)
	if err != nil {
		return constval.Value{}, err
	}
	switch e.Op {
	case "-":
		switch v.Kind {
		case constval.Int:
			return constval.NewInt(-v.Int), nil
		case constval.Float:
			f, _ := asFloat64(v)
			return floatValue(v.FloatWidth, -f), nil
		}
		return constval.Value{}, errors.Errorf("const-eval: unary - on kind %d", v.Kind)
	case "!":
		if v.Kind == constval.Bool {
			return constval.NewBool(!v.Bool), nil
		}
		if v.Kind == constval.Int {
			return constval.NewInt(^v.Int), nil
		}
		return constval.Value{}, errors.Errorf("const-eval: unary ! on kind %d", v.Kind)
	default:
		return constval.Value{}, errors.Errorf("const-eval: unsupported unary operator %q", e.Op)
	}
}

func (c *Context) evalBinary(e ast.ExprNode, namespace, owner string, scopes *scopeStack) (constval.Value, error) {
	l, err := c.evalExpr(*e.Left, namespace, owner, scopes)
	if err != nil {
		return constval.Value{}, err
	}
	r, err := c.evalExpr(*e.Right, namespace, owner, scopes)
	if err != nil {
		return constval.Value{}, err
	}

	if l.Kind == constval.Bool && r.Kind == constval.Bool {
		switch e.Op {
		case "&&":
			return constval.NewBool(l.Bool && r.Bool), nil
		case "||":
			return constval.NewBool(l.Bool || r.Bool), nil
		case "==":
			return constval.NewBool(l.Bool == r.Bool), nil
		case "!=":
			return constval.NewBool(l.Bool != r.Bool), nil
		}
	}

	if l.Kind == constval.Float || r.Kind == constval.Float {
		lf, _ := asFloat64(l)
		rf, _ := asFloat64(r)
		width := 64
		if l.Kind == constval.Float {
			width = l.FloatWidth
		} else if r.Kind == constval.Float {
			width = r.FloatWidth
		}
		switch e.Op {
		case "+":
			return floatValue(width, lf+rf), nil
		case "-":
			return floatValue(width, lf-rf), nil
		case "*":
			return floatValue(width, lf*rf), nil
		case "/":
			return floatValue(width, lf/rf), nil
		case "<":
			return constval.NewBool(lf < rf), nil
		case "<=":
			return constval.NewBool(lf <= rf), nil
		case ">":
			return constval.NewBool(lf > rf), nil
		case ">=":
			return constval.NewBool(lf >= rf), nil
		case "==":
			return constval.NewBool(lf == rf), nil
		case "!=":
			return constval.NewBool(lf != rf), nil
		}
		return constval.Value{}, errors.Errorf("const-eval: unsupported float operator %q", e.Op)
	}

	if l.Kind == constval.UInt && r.Kind == constval.UInt {
		switch e.Op {
		case "+":
			return constval.NewUInt(l.UInt + r.UInt), nil
		case "-":
			return constval.NewUInt(l.UInt - r.UInt), nil
		case "*":
			return constval.NewUInt(l.UInt * r.UInt), nil
		case "/":
			if r.UInt == 0 {
				return constval.Value{}, errors.New("const-eval: division by zero")
			}
			return constval.NewUInt(l.UInt / r.UInt), nil
		case "%":
			if r.UInt == 0 {
				return constval.Value{}, errors.New("const-eval: division by zero")
			}
			return constval.NewUInt(l.UInt % r.UInt), nil
		case "&":
			return constval.NewUInt(l.UInt & r.UInt), nil
		case "|":
			return constval.NewUInt(l.UInt | r.UInt), nil
		case "^":
			return constval.NewUInt(l.UInt ^ r.UInt), nil
		case "<<":
			return constval.NewUInt(l.UInt << r.UInt), nil
		case ">>":
			return constval.NewUInt(l.UInt >> r.UInt), nil
		case "<":
			return constval.NewBool(l.UInt < r.UInt), nil
		case "<=":
			return constval.NewBool(l.UInt <= r.UInt), nil
		case ">":
			return constval.NewBool(l.UInt > r.UInt), nil
		case ">=":
			return constval.NewBool(l.UInt >= r.UInt), nil
		case "==":
			return constval.NewBool(l.UInt == r.UInt), nil
		case "!=":
			return constval.NewBool(l.UInt != r.UInt), nil
		}
		return constval.Value{}, errors.Errorf("const-eval: unsupported unsigned operator %q", e.Op)
	}

	// Default: signed integer arithmetic (also covers mixed Int/UInt by
	// widening the UInt operand, matching runtime's usual-arithmetic
	// conversions closely enough for compile-time folding).
	li, ri := l.Int, r.Int
	if l.Kind == constval.UInt {
		li = int64(l.UInt)
	}
	if r.Kind == constval.UInt {
		ri = int64(r.UInt)
	}
	switch e.Op {
	case "+":
		return constval.NewInt(li + ri), nil
	case "-":
		return constval.NewInt(li - ri), nil
	case "*":
		return constval.NewInt(li * ri), nil
	case "/":
		if ri == 0 {
			return constval.Value{}, errors.New("const-eval: division by zero")
		}
		return constval.NewInt(li / ri), nil
	case "%":
		if ri == 0 {
			return constval.Value{}, errors.New("const-eval: division by zero")
		}
		return constval.NewInt(li % ri), nil
	case "&":
		return constval.NewInt(li & ri), nil
	case "|":
		return constval.NewInt(li | ri), nil
	case "^":
		return constval.NewInt(li ^ ri), nil
	case "<<":
		return constval.NewInt(li << uint(ri)), nil
	case ">>":
		return constval.NewInt(li >> uint(ri)), nil
	case "<":
		return constval.NewBool(li < ri), nil
	case "<=":
		return constval.NewBool(li <= ri), nil
	case ">":
		return constval.NewBool(li > ri), nil
	case ">=":
		return constval.NewBool(li >= ri), nil
	case "==":
		return constval.NewBool(li == ri), nil
	case "!=":
		return constval.NewBool(li != ri), nil
	default:
		return constval.Value{}, errors.Errorf("const-eval: unsupported binary operator %q", e.Op)
	}
}

// convertTo applies the same coercion rules runtime lowering uses for
// argument/return conversion (spec.md 4.3): integer narrowing errors are
// suppressed at this layer (the builder re-validates at lowering time) and
// instead truncate, float->int truncates toward zero, enum->integer uses
// the stored discriminant.
func (c *Context) convertTo(v constval.Value, target ty.Ty) constval.Value {
	name, ok := primitiveName(target)
	if !ok {
		return v
	}
	info, known := primitives[name]
	if !known {
		return v
	}

	switch {
	case info.float:
		f, isNum := asFloat64(v)
		if !isNum {
			return v
		}
		return floatValue(info.bits, f)
	case v.Kind == constval.Float:
		f, _ := asFloat64(v)
		if info.signed {
			return constval.NewInt(truncateSigned(int64(f), info.bits))
		}
		return constval.NewUInt(truncateUnsigned(uint64(f), info.bits))
	case v.Kind == constval.Enum:
		if info.signed {
			return constval.NewInt(truncateSigned(v.EnumDiscriminant, info.bits))
		}
		return constval.NewUInt(truncateUnsigned(uint64(v.EnumDiscriminant), info.bits))
	case v.Kind == constval.Int:
		if info.signed {
			return constval.NewInt(truncateSigned(v.Int, info.bits))
		}
		return constval.NewUInt(truncateUnsigned(uint64(v.Int), info.bits))
	case v.Kind == constval.UInt:
		if info.signed {
			return constval.NewInt(truncateSigned(int64(v.UInt), info.bits))
		}
		return constval.NewUInt(truncateUnsigned(v.UInt, info.bits))
	default:
		return v
	}
}

func truncateSigned(v int64, bits int) int64 {
	if bits >= 64 {
		return v
	}
	mask := int64(1)<<uint(bits) - 1
	v &= mask
	signBit := int64(1) << uint(bits-1)
	if v&signBit != 0 {
		v -= mask + 1
	}
	return v
}

func truncateUnsigned(v uint64, bits int) uint64 {
	if bits >= 64 {
		return v
	}
	return v & (uint64(1)<<uint(bits) - 1)
}

// exprText renders a stable textual key for an expression node; it does not
// need to be parseable, only deterministic for identical syntax trees.
func exprText(e ast.ExprNode) string {
	var b strings.Builder
	writeExprText(&b, e)
	return b.String()
}

func writeExprText(b *strings.Builder, e ast.ExprNode) {
	b.WriteString(strconv.Itoa(int(e.Kind)))
	b.WriteByte('(')
	switch e.Kind {
	case ast.ExprLiteral:
		b.WriteString(e.LiteralText)
	case ast.ExprIdent:
		b.WriteString(e.Name)
	case ast.ExprUnary, ast.ExprBinary, ast.ExprAssign:
		b.WriteString(e.Op)
		b.WriteByte(',')
		if e.Left != nil {
			writeExprText(b, *e.Left)
		}
		b.WriteByte(',')
		if e.Right != nil {
			writeExprText(b, *e.Right)
		}
	case ast.ExprCall:
		if e.Callee != nil {
			writeExprText(b, *e.Callee)
		}
		for _, a := range e.Args {
			b.WriteByte(',')
			writeExprText(b, a.Value)
		}
	case ast.ExprIf:
		if e.Cond != nil {
			writeExprText(b, *e.Cond)
		}
		b.WriteByte(',')
		if e.Then != nil {
			writeExprText(b, *e.Then)
		}
		b.WriteByte(',')
		if e.Else != nil {
			writeExprText(b, *e.Else)
		}
	case ast.ExprCast:
		if e.Operand != nil {
			writeExprText(b, *e.Operand)
		}
		if e.TargetTy != nil {
			b.WriteString(",->" + (*e.TargetTy).CanonicalName())
		}
	case ast.ExprTuple, ast.ExprArrayLit:
		for _, el := range e.Elements {
			writeExprText(b, el)
			b.WriteByte(',')
		}
	}
	b.WriteByte(')')
}
