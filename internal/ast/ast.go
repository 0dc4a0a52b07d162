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

// Package ast is the external, named-interface-only contract the body
// builder consumes (spec.md 6.1). The lexer/parser producing these trees is
// out of scope for the core (spec.md 1); this package only types the shape
// the builder walks, reimplemented from the node shape of the teacher's
// gapil/ast package (ast/expression.go, ast/function.go) since gapil's own
// parser is likewise out of this core's scope.
package ast

import "github.com/chic-lang/chic/internal/ty"

// FileID identifies one source file for Span purposes.
type FileID int

// Span anchors a diagnostic to a source range (spec.md 6.1).
type Span struct {
	FileID FileID
	Start  int
	End    int
}

// Module is the root of one parsed source file.
type Module struct {
	Namespace string
	Items     []Item
	Span      Span
}

// ItemKind tags an Item's declaration form (spec.md 6.1).
type ItemKind int

const (
	ItemNamespace ItemKind = iota
	ItemFunction
	ItemStruct
	ItemClass
	ItemUnion
	ItemEnum
	ItemInterface
	ItemDelegate
	ItemExtension
	ItemTypeAlias
	ItemStatic
	ItemTrait
	ItemImpl
	ItemTestcase
	ItemImport
	ItemConst
)

// Item is one top-level (or nested-namespace) declaration.
type Item struct {
	Kind ItemKind
	Span Span

	Name string

	// ItemFunction / ItemTestcase
	Function *FunctionDecl

	// ItemStruct / ItemClass / ItemUnion / ItemEnum
	Type *TypeDecl

	// ItemInterface / ItemTrait
	Trait *TraitDecl

	// ItemImpl
	Impl *ImplDecl

	// ItemStatic / ItemConst
	Const *ConstDecl

	// ItemTypeAlias
	AliasTarget *ty.Ty

	// ItemNamespace groups nested items.
	Children []Item

	// ItemImport
	ImportPath string
}

// Param is one declared function parameter.
type Param struct {
	Name    string
	Ty      ty.Ty
	Mode    ty.ParamMode
	Default *ExprNode // optional default-value expression
	Span    Span
}

// FunctionDecl is a free function, method, constructor, or accessor.
type FunctionDecl struct {
	Name          string
	Params        []Param
	Ret           ty.Ty
	Abi           ty.Abi
	Variadic      bool
	Visibility    string
	IsConst       bool
	IsAsync       bool
	IsExtern      bool
	GenericParams []string
	Body          *Block // nil for extern/abstract declarations
	Lends         []string
	OpaqueReturn  bool

	ReceiverType string // non-empty for methods/constructors
	IsVirtual    bool
	IsOverride   bool

	Attributes map[string]string
	Span       Span
}

// TypeDecl is a struct/class/union/enum declaration.
type TypeDecl struct {
	Name          string
	GenericParams []string
	Fields        []FieldDecl
	Variants      []VariantDecl // enum only
	Properties    []PropertyDecl
	ParentClass   string
	Repr          string // "", "packed(N)", "C", "explicit"
	Span          Span
}

// FieldDecl is one struct/class/union field or enum-variant field.
type FieldDecl struct {
	Name     string
	Ty       ty.Ty
	Nullable bool
	Offset   *int // explicit offset, only meaningful under repr "explicit"
	Span     Span
}

// VariantDecl is one enum variant.
type VariantDecl struct {
	Name         string
	Discriminant *int64
	Fields       []FieldDecl
	Span         Span
}

// PropertyDecl is one property with some subset of get/set/init.
type PropertyDecl struct {
	Name    string
	Ty      ty.Ty
	HasGet  bool
	HasSet  bool
	HasInit bool
	GetBody *Block
	SetBody *Block
	InitOnlyFromConstructor bool
	Span    Span
}

// TraitDecl is an interface/trait with possible default methods.
type TraitDecl struct {
	Name    string
	Methods []FunctionDecl // methods with Body != nil are defaults
	Span    Span
}

// ImplDecl implements a trait (or inherent methods) for a type.
type ImplDecl struct {
	TraitName string // empty for an inherent impl block
	TypeName  string
	Methods   []FunctionDecl
	Span      Span
}

// ConstDecl is a const/static declaration.
type ConstDecl struct {
	Name     string
	Ty       ty.Ty
	Init     ExprNode
	IsStatic bool
	Mutable  bool
	Span     Span
}

// Block is an ordered statement list (one function/property-accessor body,
// or one nested block).
type Block struct {
	Stmts []Stmt
	Span  Span
}

// StmtKind tags a Stmt's active variant (spec.md 4.4's exhaustive list).
type StmtKind int

const (
	StmtBlock StmtKind = iota
	StmtEmpty
	StmtConstDecl
	StmtVarDecl
	StmtExpr
	StmtReturn
	StmtIf
	StmtWhile
	StmtFor
	StmtForEach
	StmtSwitch
	StmtTry
	StmtThrow
	StmtBreak
	StmtContinue
	StmtUsing
	StmtLock
	StmtFixed
	StmtAtomicBlock
	StmtYield
	StmtUnsafeBlock
	StmtAsm
)

// Stmt is one statement node; only the fields relevant to Kind are
// meaningful for a given value.
type Stmt struct {
	Kind StmtKind
	Span Span

	Block *Block // StmtBlock, bodies of control statements reuse this

	// StmtConstDecl / StmtVarDecl
	Name    string
	Ty      *ty.Ty
	Mutable bool
	Init    *ExprNode

	// StmtExpr / StmtReturn / StmtThrow / StmtYield
	Expr *ExprNode

	// StmtIf / StmtWhile / StmtSwitch guard-like conditions
	Cond *ExprNode
	Then *Block
	Else *Block

	// StmtFor
	ForInit *Stmt
	ForCond *ExprNode
	ForPost *ExprNode
	ForBody *Block

	// StmtForEach
	BindName string
	IterExpr *ExprNode
	ForEachBody *Block

	// StmtSwitch
	SwitchArms []SwitchArm

	// StmtTry
	TryBody    *Block
	Catches    []CatchClause
	Finally    *Block

	// StmtUsing / StmtLock / StmtFixed / StmtAtomicBlock
	ResourceName string
	ResourceInit *ExprNode
	ResourceBody *Block

	// StmtAsm
	AsmTemplate string
	AsmOperands []ExprNode
}

// SwitchArm is one case of a switch statement.
type SwitchArm struct {
	Patterns []Pattern
	Guard    *ExprNode
	Body     *Block
}

// CatchClause is one catch arm of a try statement.
type CatchClause struct {
	ExceptionTy string
	BindName    string
	When        *ExprNode
	Body        *Block
}

// ExprKind tags an ExprNode's active variant.
type ExprKind int

const (
	ExprLiteral ExprKind = iota
	ExprIdent
	ExprCall
	ExprMethodCall
	ExprFieldAccess
	ExprIndex
	ExprUnary
	ExprBinary
	ExprAssign
	ExprTuple
	ExprArrayLit
	ExprStructLit
	ExprClosure
	ExprAwait
	ExprCast
	ExprTry // the `?` propagation operator
	ExprIf
	ExprMatch
	ExprSpanCoerce
	ExprInterpolatedString
	ExprBorrow
	ExprAddressOf
)

// LiteralSuffix carries an optional numeric literal suffix, e.g. 1u64.
type LiteralSuffix struct {
	Present bool
	Text    string
}

// ExprNode is the tagged expression tree (spec.md 6.1).
type ExprNode struct {
	Kind ExprKind
	Span Span

	// ExprLiteral
	LiteralText   string
	LiteralSuffix LiteralSuffix

	// ExprIdent
	Name string

	// ExprCall / ExprMethodCall
	Callee    *ExprNode
	Args      []Arg
	TypeArgs  []ty.Ty

	// ExprFieldAccess
	Base  *ExprNode
	Field string

	// ExprIndex
	Index *ExprNode

	// ExprUnary / ExprBinary / ExprAssign
	Op    string
	Left  *ExprNode
	Right *ExprNode

	// ExprTuple / ExprArrayLit
	Elements []ExprNode

	// ExprStructLit
	TypeName     string
	FieldValues  []FieldInit

	// ExprClosure
	ClosureParams []Param
	ClosureBody   *Block

	// ExprAwait / ExprTry / ExprCast / ExprSpanCoerce
	Operand  *ExprNode
	TargetTy *ty.Ty

	// ExprIf
	Cond *ExprNode
	Then *ExprNode
	Else *ExprNode

	// ExprMatch
	MatchArms []MatchArm

	// ExprInterpolatedString
	Segments []InterpSegment

	// ExprBorrow / ExprAddressOf
	Mutable bool
}

// Arg is one call argument, optionally named.
type Arg struct {
	Name  string // empty for positional
	Value ExprNode
}

// FieldInit is one field initializer of a struct literal.
type FieldInit struct {
	Name  string
	Value ExprNode
}

// MatchArm is one arm of a match expression.
type MatchArm struct {
	Pattern Pattern
	Guard   *ExprNode
	Value   ExprNode
}

// InterpSegment is one piece of an interpolated string literal.
type InterpSegment struct {
	Literal string
	Expr    *ExprNode
	Format  string
}

// PatternKind tags a Pattern's active variant (spec.md 6.1).
type PatternKind int

const (
	PatternWildcard PatternKind = iota
	PatternLiteral
	PatternBinding
	PatternType
	PatternTuple
	PatternRecord
	PatternListSlice
	PatternRelational
	PatternAnd
	PatternOr
	PatternNot
)

// Pattern is the tagged pattern tree (spec.md 6.1).
type Pattern struct {
	Kind PatternKind
	Span Span

	// PatternLiteral
	LiteralText string

	// PatternBinding
	BindKind string // "let" | "var" | "ref" | "in"
	Name     string

	// PatternType
	TypeName string
	Inner    *Pattern

	// PatternTuple / PatternRecord
	Elements []Pattern
	Names    []string // PatternRecord field names, parallel to Elements

	// PatternListSlice
	Before []Pattern
	SliceBind string // empty if no rest-binding
	After  []Pattern

	// PatternRelational
	RelOp string
	Value *ExprNode

	// PatternAnd / PatternOr
	Subpatterns []Pattern

	// PatternNot
	Negated *Pattern
}
