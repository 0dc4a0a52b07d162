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

// Package consteval implements the compile-time evaluator of spec.md 4.3:
// it folds expressions and pure functions to constval.Value, enforces a
// fuel budget, and memoizes both expression and function results. Grounded
// on original_source/src/mir/builder/const_eval/{environment,fold}.rs,
// reimplemented as a Go interpreter walking internal/ast nodes instead of
// the original Rust AST.
package consteval

// DefaultFuelLimit is the concrete ceiling spec.md 4.3 calls for when the
// caller doesn't override it.
const DefaultFuelLimit = 1_000_000

// DefaultFnCacheCapacity bounds the function-result LRU (spec.md 4.3).
const DefaultFnCacheCapacity = 256

// Config controls one evaluator run (spec.md 4.3).
type Config struct {
	// FuelLimit caps the number of evaluator dispatcher steps; nil disables
	// the budget entirely.
	FuelLimit *int
	// Memoize toggles expression-level memoization.
	Memoize bool
	// FnCacheCapacity bounds the function-result LRU; 0 uses
	// DefaultFnCacheCapacity.
	FnCacheCapacity int
}

// DefaultConfig matches spec.md 4.3's stated defaults: a concrete fuel
// ceiling and memoization enabled.
func DefaultConfig() Config {
	limit := DefaultFuelLimit
	return Config{FuelLimit: &limit, Memoize: true, FnCacheCapacity: DefaultFnCacheCapacity}
}

// Metrics is returned to the lowering driver alongside every evaluation run
// (spec.md 4.3: "emitted at trace level and returned to the lowering
// driver").
type Metrics struct {
	ExpressionsRequested int
	ExpressionsEvaluated int
	MemoHits             int
	MemoMisses           int
	FnCacheHits          int
	FnCacheMisses        int
	FuelConsumed         int
	FuelExhaustions      int
	FinalCacheSize       int
}
