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

func baseFingerprintInputs() codegen.FingerprintInputs {
	return codegen.FingerprintInputs{
		SourceText:   "fn main() {}",
		TextualIR:    "define void @main() {\nret void\n}\n",
		TargetTriple: "x86_64-unknown-linux-gnu",
		Backend:      codegen.BackendLLVM,
		OptLevel:     2,
		Flags:        map[string]bool{"debug_assertions": true},
		IsaConfig:    []codegen.CpuIsaTier{codegen.TierBaseline, codegen.TierAvx2},
		Identity:     codegen.CompilerIdentity{PackageVersion: "0.1.0", GitHash: "abc", ExeHash16: "0123456789abcdef"},
	}
}

func TestComputeFingerprintDeterministic(t *testing.T) {
	in := baseFingerprintInputs()
	a := codegen.ComputeFingerprint(in)
	b := codegen.ComputeFingerprint(in)
	if a != b {
		t.Fatalf("ComputeFingerprint is not deterministic: %q != %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected a 64-hex-character SHA-256 digest, got %d chars: %q", len(a), a)
	}
}

func TestComputeFingerprintChangesWithInput(t *testing.T) {
	base := codegen.ComputeFingerprint(baseFingerprintInputs())

	changed := baseFingerprintInputs()
	changed.SourceText = "fn main() { let _x = 1; }"
	if got := codegen.ComputeFingerprint(changed); got == base {
		t.Error("changing SourceText did not change the fingerprint")
	}

	changed = baseFingerprintInputs()
	changed.OptLevel = 3
	if got := codegen.ComputeFingerprint(changed); got == base {
		t.Error("changing OptLevel did not change the fingerprint")
	}

	changed = baseFingerprintInputs()
	changed.Backend = codegen.BackendWasm
	if got := codegen.ComputeFingerprint(changed); got == base {
		t.Error("changing Backend did not change the fingerprint")
	}
}

func TestComputeFingerprintFlagOrderIndependent(t *testing.T) {
	a := baseFingerprintInputs()
	a.Flags = map[string]bool{"alpha": true, "beta": false, "gamma": true}

	b := baseFingerprintInputs()
	b.Flags = map[string]bool{"gamma": true, "alpha": true, "beta": false}

	if codegen.ComputeFingerprint(a) != codegen.ComputeFingerprint(b) {
		t.Error("fingerprint depends on map iteration order of Flags, want sorted-key stability")
	}
}

func TestComputeFingerprintDropHashEqEntriesOrderIndependent(t *testing.T) {
	a := baseFingerprintInputs()
	a.DropHashEqEntries = []string{"z", "a", "m"}

	b := baseFingerprintInputs()
	b.DropHashEqEntries = []string{"a", "m", "z"}

	if codegen.ComputeFingerprint(a) != codegen.ComputeFingerprint(b) {
		t.Error("fingerprint depends on DropHashEqEntries order, want sorted stability")
	}
}
