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

package codegen

import (
	"strings"
	"testing"
)

func TestRuntimeSetUseReturnsDeclaredSymbol(t *testing.T) {
	rs := newRuntimeSet()
	got := rs.use("chic_rt_alloc")
	if got != "@chic_rt_alloc" {
		t.Errorf("runtimeSet.use(%q) = %q, want %q", "chic_rt_alloc", got, "@chic_rt_alloc")
	}
}

func TestRuntimeSetUsePanicsOnUnknownSymbol(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("runtimeSet.use on an unregistered name did not panic")
		}
	}()
	newRuntimeSet().use("chic_rt_this_symbol_does_not_exist")
}

func TestRuntimeSetDeclarationsOnlyIncludesUsed(t *testing.T) {
	rs := newRuntimeSet()
	rs.use("chic_rt_alloc")
	rs.use("chic_rt_free")

	decls := rs.declarations()
	if !strings.Contains(decls, "chic_rt_alloc") {
		t.Error("declarations() missing a used symbol chic_rt_alloc")
	}
	if !strings.Contains(decls, "chic_rt_free") {
		t.Error("declarations() missing a used symbol chic_rt_free")
	}
	if strings.Contains(decls, "chic_rt_throw") {
		t.Error("declarations() emitted a never-used symbol chic_rt_throw")
	}
}

func TestRuntimeSetDeclarationsEmptyWhenUnused(t *testing.T) {
	if got := newRuntimeSet().declarations(); got != "" {
		t.Errorf("declarations() on an unused set = %q, want empty", got)
	}
}

func TestRuntimeSetDeclarationsSorted(t *testing.T) {
	rs := newRuntimeSet()
	rs.use("chic_rt_zero_init")
	rs.use("chic_rt_alloc")
	rs.use("chic_rt_memcpy")

	decls := rs.declarations()
	idxAlloc := strings.Index(decls, "chic_rt_alloc")
	idxMemcpy := strings.Index(decls, "chic_rt_memcpy")
	idxZero := strings.Index(decls, "chic_rt_zero_init")
	if !(idxAlloc < idxMemcpy && idxMemcpy < idxZero) {
		t.Errorf("declarations() not sorted: alloc=%d memcpy=%d zero_init=%d", idxAlloc, idxMemcpy, idxZero)
	}
}
