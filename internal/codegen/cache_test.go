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
	"os"
	"path/filepath"
	"testing"

	"github.com/chic-lang/chic/internal/codegen"
)

func TestSaveAndLoadCacheEntryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out.o")

	entry := codegen.CacheEntry{
		Fingerprint:      "deadbeef",
		Backend:          "llvm",
		CompilerVersion:  "0.1.0+abc+0123456789abcdef",
		ObjectPath:       "out.o",
		ArtifactPath:     "out.o",
		ConstantFolds:    3,
		InlinedFunctions: []string{"foo", "bar"},
	}
	if err := codegen.SaveCacheEntry(output, entry); err != nil {
		t.Fatalf("SaveCacheEntry: %v", err)
	}

	loaded, ok := codegen.LoadCacheEntry(output)
	if !ok {
		t.Fatal("LoadCacheEntry: no entry found after save")
	}
	if loaded.Fingerprint != entry.Fingerprint || loaded.Backend != entry.Backend ||
		loaded.CompilerVersion != entry.CompilerVersion || loaded.ConstantFolds != entry.ConstantFolds {
		t.Errorf("loaded entry %+v does not match saved entry %+v", loaded, entry)
	}
	if len(loaded.InlinedFunctions) != 2 {
		t.Errorf("InlinedFunctions = %v, want 2 entries", loaded.InlinedFunctions)
	}

	if _, err := os.Stat(output + ".cache.json"); err != nil {
		t.Errorf("expected sidecar file at %s.cache.json: %v", output, err)
	}
}

func TestLoadCacheEntryMissing(t *testing.T) {
	dir := t.TempDir()
	if _, ok := codegen.LoadCacheEntry(filepath.Join(dir, "nope.o")); ok {
		t.Error("LoadCacheEntry reported a hit for a nonexistent sidecar")
	}
}

func TestCacheEntryIsFreshRequiresMatchingFingerprint(t *testing.T) {
	dir := t.TempDir()
	objPath := filepath.Join(dir, "out.o")
	if err := os.WriteFile(objPath, []byte("object"), 0o644); err != nil {
		t.Fatal(err)
	}

	identity := codegen.CompilerIdentity{PackageVersion: "0.1.0", GitHash: "abc", ExeHash16: "0123456789abcdef"}
	entry := codegen.CacheEntry{
		Fingerprint:     "fp1",
		Backend:         "llvm",
		CompilerVersion: identity.String(),
		ObjectPath:      "out.o",
		ArtifactPath:    "out.o",
	}

	if !entry.IsFresh("fp1", codegen.BackendLLVM, identity, dir) {
		t.Error("expected a fresh cache hit when fingerprint/backend/identity/paths all match")
	}
	if entry.IsFresh("fp2", codegen.BackendLLVM, identity, dir) {
		t.Error("expected a stale result when the fingerprint differs")
	}
	if entry.IsFresh("fp1", codegen.BackendWasm, identity, dir) {
		t.Error("expected a stale result when the backend differs")
	}
}

func TestCacheEntryIsFreshRequiresPathsToExist(t *testing.T) {
	dir := t.TempDir()
	identity := codegen.CompilerIdentity{PackageVersion: "0.1.0", GitHash: "abc", ExeHash16: "0123456789abcdef"}
	entry := codegen.CacheEntry{
		Fingerprint:     "fp1",
		Backend:         "llvm",
		CompilerVersion: identity.String(),
		ObjectPath:      "missing.o",
		ArtifactPath:    "missing.o",
	}
	if entry.IsFresh("fp1", codegen.BackendLLVM, identity, dir) {
		t.Error("expected a stale result when the referenced object path does not exist on disk")
	}
}

func TestRelativizePath(t *testing.T) {
	dir := "/build/out"
	if got := codegen.RelativizePath(dir, "/build/out/module.o"); got != "module.o" {
		t.Errorf("RelativizePath under dir = %q, want %q", got, "module.o")
	}
	if got := codegen.RelativizePath(dir, "/elsewhere/module.o"); got != "/elsewhere/module.o" {
		t.Errorf("RelativizePath outside dir = %q, want the absolute fallback %q", got, "/elsewhere/module.o")
	}
}
