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

// Package async transforms an `async` function body with one or more Await
// terminators into a state machine (spec.md 4.7), the way internal/checks
// runs a read-only analysis pass over a finished MirModule: it walks every
// function, skips anything that doesn't need it, and records its findings
// (here, new functions and a module-level suspend plan) rather than mutating
// in place destructively.
//
// For each async function with at least one suspend point the lowerer:
//
//  1. Computes, via backward liveness over the body's control-flow graph,
//     the set of locals live across each Await terminator.
//  2. Builds a frame struct whose fields are the union of those locals plus
//     a "$state" discriminant, and registers its layout.
//  3. Rewrites every place that reads or writes a promoted local into a
//     projection through the frame argument, shifts block ids by one to make
//     room for a dispatch block, and replaces each Await terminator with a
//     poll-the-inner-future / suspend-and-return-Pending sequence.
//  4. Synthesizes a drop function (state-indexed cleanup) and a constructor
//     function (packs the call arguments into a fresh frame), and installs
//     all three alongside an AsyncSuspendPlan entry on the module.
package async

import (
	"fmt"

	"github.com/chic-lang/chic/internal/ast"
	"github.com/chic-lang/chic/internal/diag"
	"github.com/chic-lang/chic/internal/mir"
	"github.com/chic-lang/chic/internal/ty"
)

// Diagnostic codes for spec.md 4.7's attribute enforcement.
const (
	codeStackOnlyViolation = "AS0001"
	codeNoCaptureViolation = "AS0002"
	codeFrameLimitExceeded = "AS0003"
	codeMalformedAttribute = "AS0004"
)

// Lower runs the async transform over every function in module, in
// declaration order, and appends the resulting plans to module.AsyncPlans.
// Functions with no Await terminator are left untouched even if marked
// async (an async function that never awaits has no frame to build).
func Lower(module *mir.MirModule, layouts *ty.TypeLayoutTable, diags *diag.Bag) {
	var synthesized []*mir.Function
	for _, fn := range module.Functions {
		checkAttributes(fn, diags)
		if !fn.IsAsync || fn.Body == nil {
			continue
		}
		suspends := findSuspendPoints(fn.Body)
		if len(suspends) == 0 {
			continue
		}
		l := &lowering{fn: fn, layouts: layouts, diags: diags, suspends: suspends}
		l.run()
		if l.plan.FunctionQualifiedName == "" {
			continue
		}
		module.AsyncPlans = append(module.AsyncPlans, l.plan)
		synthesized = append(synthesized, l.poll, l.drop, l.constructor)
	}
	for _, f := range synthesized {
		module.AddFunction(f)
	}
	recordFrameMetrics(module)
}

// checkAttributes enforces spec.md 4.7's AS0004: @stack_only, @no_capture,
// and @frame_limit(N) are only meaningful on an async function, and
// @frame_limit's payload must parse as a positive integer.
func checkAttributes(fn *mir.Function, diags *diag.Bag) {
	for _, name := range []string{"stack_only", "no_capture", "frame_limit"} {
		raw, ok := fn.Attributes[name]
		if !ok {
			continue
		}
		if !fn.IsAsync {
			diags.Errorf(codeMalformedAttribute, ast.Span{}, "@%s is only meaningful on an async function, but %q is not async", name, fn.QualifiedName)
			continue
		}
		if name == "frame_limit" {
			if n, err := parseFrameLimit(raw); err != nil || n <= 0 {
				diags.Errorf(codeMalformedAttribute, ast.Span{}, "@frame_limit payload %q on %q must be a positive integer", raw, fn.QualifiedName)
			}
		}
	}
}

func parseFrameLimit(raw string) (int, error) {
	var n int
	_, err := fmt.Sscanf(raw, "%d", &n)
	return n, err
}

// recordFrameMetrics aggregates module.AsyncPlans into a fresh
// AsyncFrameMetrics summary (spec.md 4.7). There is exactly one metrics
// value per module, so this recomputes it from scratch every time Lower
// runs rather than accumulating incrementally.
func recordFrameMetrics(module *mir.MirModule) {
	if len(module.AsyncPlans) == 0 {
		return
	}
	m := mir.AsyncFrameMetrics{SmallestFrame: module.AsyncPlans[0].FrameSize}
	for _, p := range module.AsyncPlans {
		m.TotalFrames++
		m.TotalBytes += p.FrameSize
		if p.FrameSize > m.LargestFrame {
			m.LargestFrame = p.FrameSize
		}
		if p.FrameSize < m.SmallestFrame {
			m.SmallestFrame = p.FrameSize
		}
	}
	module.Attributes.Flags["async.frame_metrics_computed"] = true
	module.FrameMetrics = m
}
