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

package codegen_test

import (
	"testing"

	"github.com/chic-lang/chic/internal/codegen"
)

func TestCpuIsaTierSuffix(t *testing.T) {
	for _, test := range []struct {
		tier   codegen.CpuIsaTier
		suffix string
		index  int
	}{
		{codegen.TierBaseline, "baseline", 0},
		{codegen.TierAvx2, "avx2", 1},
		{codegen.TierAvx512, "avx512", 2},
		{codegen.TierAmx, "amx", 3},
		{codegen.TierDotProd, "dotprod", 4},
		{codegen.TierFp16Fml, "fp16fml", 5},
		{codegen.TierBf16, "bf16", 6},
		{codegen.TierI8mm, "i8mm", 7},
		{codegen.TierSve, "sve", 8},
		{codegen.TierSve2, "sve2", 9},
		{codegen.TierSme, "sme", 10},
		{codegen.TierCrypto, "crypto", 11},
		{codegen.TierPauth, "pauth", 12},
		{codegen.TierBti, "bti", 13},
	} {
		if got := test.tier.Suffix(); got != test.suffix {
			t.Errorf("tier %d: Suffix() = %q, want %q", test.tier, got, test.suffix)
		}
		if got := test.tier.Index(); got != test.index {
			t.Errorf("tier %d: Index() = %d, want %d", test.tier, got, test.index)
		}
	}
}

func TestBackendString(t *testing.T) {
	for _, test := range []struct {
		backend codegen.Backend
		want    string
	}{
		{codegen.BackendLLVM, "llvm"},
		{codegen.BackendWasm, "wasm"},
		{codegen.BackendCC1, "cc1"},
	} {
		if got := test.backend.String(); got != test.want {
			t.Errorf("Backend(%d).String() = %q, want %q", test.backend, got, test.want)
		}
	}
}

func TestCompilerIdentityString(t *testing.T) {
	id := codegen.CompilerIdentity{PackageVersion: "0.1.0", GitHash: "abc123", ExeHash16: "deadbeefcafef00d"}
	want := "0.1.0+abc123+deadbeefcafef00d"
	if got := id.String(); got != want {
		t.Errorf("CompilerIdentity.String() = %q, want %q", got, want)
	}
}
