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

package generics

import (
	"testing"

	"github.com/chic-lang/chic/internal/constval"
	"github.com/chic-lang/chic/internal/ty"
)

func TestTypeIdHashDeterministicAndDistinct(t *testing.T) {
	a := TypeIdHash("T")
	b := TypeIdHash("T")
	if a != b {
		t.Fatalf("TypeIdHash is not deterministic: %q != %q", a, b)
	}
	if c := TypeIdHash("U"); c == a {
		t.Fatalf("TypeIdHash(%q) == TypeIdHash(%q) == %q, want distinct digests", "T", "U", a)
	}
}

func TestRewriteTypeIDMatchesGenericParameter(t *testing.T) {
	subst := map[string]ty.Ty{"T": ty.Named{Path: "int"}}
	original := constval.Value{Kind: constval.UInt, Big: TypeIdHash("T")}

	rewritten := rewriteTypeID(original, subst)
	want := TypeIdHash(ty.Named{Path: "int"}.CanonicalName())
	if rewritten.Big != want {
		t.Errorf("rewriteTypeID(%q) = %q, want %q", original.Big, rewritten.Big, want)
	}
}

func TestRewriteTypeIDLeavesOrdinaryIntegersAlone(t *testing.T) {
	subst := map[string]ty.Ty{"T": ty.Named{Path: "int"}}
	original := constval.NewUInt(42)

	rewritten := rewriteTypeID(original, subst)
	if rewritten.UInt != 42 || rewritten.Big != "" {
		t.Errorf("rewriteTypeID mutated an ordinary UInt constant: %+v", rewritten)
	}
}

func TestRewriteTypeIDLeavesNonUIntKindsAlone(t *testing.T) {
	subst := map[string]ty.Ty{"T": ty.Named{Path: "int"}}
	original := constval.NewInt(7)

	rewritten := rewriteTypeID(original, subst)
	if rewritten.Int != 7 || rewritten.Kind != constval.Int {
		t.Errorf("rewriteTypeID altered a non-UInt constant: %+v", rewritten)
	}
}
