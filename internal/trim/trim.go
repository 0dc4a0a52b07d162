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

// Package trim computes function reachability over an assembled MirModule
// and drops everything the roots cannot reach before codegen (spec.md
// 4.12), grounded on original_source/src/driver/pipeline/trim.rs. Roots are
// exported functions, extern-ABI functions, testcase entries (when
// building tests), trait/class vtable slots, default-argument thunks, and
// async poll/drop/constructor functions; edges are symbol references found
// by walking every statement and terminator of every kept function's body.
package trim

import (
	"fmt"

	"github.com/chic-lang/chic/internal/env"
	"github.com/chic-lang/chic/internal/mir"
)

// Stats reports how much a Trim call removed.
type Stats struct {
	TrimmedFunctions int
	TrimmedExports   int
}

// Trim removes every function and export unreachable from the seed set and
// remaps TestCases accordingly (via MirModule.RemoveFunctionsAt).
// forTests additionally seeds every testcase function; a production build
// seeds only what the other categories name.
func Trim(module *mir.MirModule, forTests bool) Stats {
	bySymbol := make(map[string]int, len(module.Functions))
	for i, fn := range module.Functions {
		if fn.Symbol != "" {
			bySymbol[fn.Symbol] = i
		}
	}

	if env.DebugPackageTrim() {
		fmt.Printf("[chic-debug] trim analysis: %d functions\n", len(module.Functions))
	}

	seeds := collectSeeds(module, bySymbol, forTests)
	graph := buildSymbolGraph(module)
	reachable := reachableFrom(graph, bySymbol, seeds)

	beforeExports := len(module.Exports)
	kept := module.Exports[:0:0]
	for _, name := range module.Exports {
		if idx, ok := bySymbol[name]; ok && !reachable[idx] {
			continue
		}
		kept = append(kept, name)
	}
	module.Exports = kept
	trimmedExports := beforeExports - len(module.Exports)

	beforeFns := len(module.Functions)
	var drop []int
	for i := range module.Functions {
		if !reachable[i] {
			drop = append(drop, i)
		}
	}
	if len(drop) > 0 {
		module.RemoveFunctionsAt(drop)
	}
	trimmedFunctions := beforeFns - len(module.Functions)

	if env.DebugPackageTrim() {
		fmt.Printf("[chic-debug] post-trim: functions=%d (trimmed %d) exports=%d (trimmed %d)\n",
			len(module.Functions), trimmedFunctions, len(module.Exports), trimmedExports)
	}

	return Stats{TrimmedFunctions: trimmedFunctions, TrimmedExports: trimmedExports}
}

// collectSeeds gathers the root set of function indices a module's
// reachability walk starts from (spec.md 4.12 step 1).
func collectSeeds(module *mir.MirModule, bySymbol map[string]int, forTests bool) []int {
	var seeds []int

	for i, fn := range module.Functions {
		if fn.Exported || fn.Signature.Abi.Kind == "extern" {
			seeds = append(seeds, i)
		}
		if forTests && fn.IsTestCase {
			seeds = append(seeds, i)
		}
	}
	if forTests {
		for _, tc := range module.TestCases {
			seeds = append(seeds, tc.FunctionIndex)
		}
	}
	for _, name := range module.Exports {
		if idx, ok := bySymbol[name]; ok {
			seeds = append(seeds, idx)
		}
	}

	addSymbol := func(symbol string) {
		if idx, ok := bySymbol[symbol]; ok {
			seeds = append(seeds, idx)
		}
	}
	for _, vt := range module.ClassVTables {
		addSymbol(vt.Symbol)
		for _, slot := range vt.Slots {
			addSymbol(slot.TargetSymbol)
		}
	}
	for _, vt := range module.TraitVTables {
		addSymbol(vt.Symbol)
		for _, slot := range vt.Slots {
			addSymbol(slot.TargetSymbol)
		}
	}
	for _, impl := range module.DefaultMethodImpls {
		addSymbol(impl.Symbol)
	}
	for _, rec := range module.DefaultArgs {
		if rec.Kind == mir.DefaultArgThunk {
			addSymbol(rec.ThunkSymbol)
		}
	}
	for _, plan := range module.AsyncPlans {
		addSymbol(plan.PollSymbol)
		addSymbol(plan.DropSymbol)
		addSymbol(plan.ConstructorSymbol)
	}

	return seeds
}

// reachableFrom runs a depth-first closure over the symbol graph starting
// at seeds, returning the set of reachable function indices.
func reachableFrom(graph []symbolSet, bySymbol map[string]int, seeds []int) []bool {
	reachable := make([]bool, len(graph))
	stack := append([]int(nil), seeds...)
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if idx < 0 || idx >= len(graph) || reachable[idx] {
			continue
		}
		reachable[idx] = true
		for symbol := range graph[idx] {
			if target, ok := bySymbol[symbol]; ok && !reachable[target] {
				stack = append(stack, target)
			}
		}
	}
	return reachable
}
