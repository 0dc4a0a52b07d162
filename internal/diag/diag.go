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

// Package diag is the shared diagnostic shape every lowering and
// verification pass produces (spec.md 7): attached to an AST span, with a
// severity and a stable code, accumulated rather than printed immediately.
package diag

import (
	"fmt"

	"github.com/chic-lang/chic/internal/ast"
)

// Severity classifies a Diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
	Note
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "note"
	}
}

// Label is a secondary annotation attached to a diagnostic, e.g. the
// "control flow always exits here" note of spec.md 4.8.
type Label struct {
	Span    ast.Span
	Message string
}

// Diagnostic is one error/warning/note with a stable code (spec.md 7:
// "E0xxx", "AS0xxx").
type Diagnostic struct {
	Code     string
	Severity Severity
	Message  string
	Span     ast.Span
	Labels   []Label
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s[%s]: %s", d.Severity, d.Code, d.Message)
}

// Bag accumulates diagnostics in lowering order, preserving the ordering
// guarantee of spec.md 5 ("Diagnostics preserve lowering order within a
// function and parse order across functions").
type Bag struct {
	items []Diagnostic
}

// Add appends one diagnostic.
func (b *Bag) Add(d Diagnostic) { b.items = append(b.items, d) }

// Errorf appends an error-severity diagnostic built from a format string.
func (b *Bag) Errorf(code string, span ast.Span, format string, args ...interface{}) {
	b.Add(Diagnostic{Code: code, Severity: Error, Message: fmt.Sprintf(format, args...), Span: span})
}

// Warnf appends a warning-severity diagnostic.
func (b *Bag) Warnf(code string, span ast.Span, format string, args ...interface{}) {
	b.Add(Diagnostic{Code: code, Severity: Warning, Message: fmt.Sprintf(format, args...), Span: span})
}

// Notef appends a note-severity diagnostic.
func (b *Bag) Notef(code string, span ast.Span, format string, args ...interface{}) {
	b.Add(Diagnostic{Code: code, Severity: Note, Message: fmt.Sprintf(format, args...), Span: span})
}

// Items returns every diagnostic accumulated so far, in insertion order.
func (b *Bag) Items() []Diagnostic { return b.items }

// HasErrors reports whether any Error-severity diagnostic was recorded
// (spec.md 7's "has_errors bit").
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Extend appends another bag's diagnostics, preserving order.
func (b *Bag) Extend(other *Bag) {
	if other == nil {
		return
	}
	b.items = append(b.items, other.items...)
}
