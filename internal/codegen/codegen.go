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

// Package codegen drives one compile_module invocation from a finished
// MirModule to an on-disk artifact (spec.md 4.10): it pretty-prints a
// canonical textual IR for fingerprinting, computes a content fingerprint,
// consults a JSON cache sidecar, and otherwise dispatches to a backend.
//
// The only backend implemented in full is the LLVM textual emitter
// (spec.md 6.3): a string-building pass grounded on gapil/compiler's
// Module/Function/Type shape but reimplemented as text, never linking
// against LLVM itself (no cgo bindings). Wasm and cc1-preprocessed-C are
// named by spec.md 4.10 as alternate backends but are out of scope for a
// from-scratch textual emitter; Backend still enumerates them so Options
// round-trips through the cache file faithfully, and BackendWasm/BackendCC1
// report an explicit unsupported-backend Codegen error instead of silently
// falling back to LLVM.
package codegen

import (
	"fmt"

	"github.com/chic-lang/chic/internal/target"
)

// Backend names which code generator the driver dispatches to.
type Backend int

const (
	BackendLLVM Backend = iota
	BackendWasm
	BackendCC1
)

func (b Backend) String() string {
	switch b {
	case BackendLLVM:
		return "llvm"
	case BackendWasm:
		return "wasm"
	case BackendCC1:
		return "cc1"
	default:
		return "unknown"
	}
}

// CompilationKind distinguishes the handful of artifact shapes a module can
// be compiled into, which feed both the fingerprint and the linker step.
type CompilationKind int

const (
	CompileExecutable CompilationKind = iota
	CompileDynamicLibrary
	CompileStaticLibrary
	CompileObjectOnly
)

// Options bundles every fingerprint-relevant and backend-relevant input to
// one compile_module invocation (spec.md 4.10 step 2's enumerated list).
type Options struct {
	Backend         Backend
	Target          target.Target
	CompilationKind CompilationKind
	OptLevel        int
	Flags           map[string]bool // boolean codegen flags, sorted when fingerprinted
	IsaTiers        []CpuIsaTier
	SveBits         int // 0 means "use the 128-bit default when SVE tiers are present"
	PGOProfilePath  string

	RuntimeIdentity     string
	RuntimeABI          string
	RuntimeManifestHash string

	OutputPath string
	KeepObject bool // keep the intermediate object file even on a cache hit path that wouldn't otherwise need it
}

// Artifact is what one successful (non-cached) or cache-hit compile
// produces (spec.md 4.10's "Artifact:" paragraph).
type Artifact struct {
	ObjectPath         string
	ArtifactPath       string
	MetadataObjectPath string
	LibraryPack        string
	ReflectionManifest string

	ConstantFolds     int
	InlinedFunctions  []string
}

// CompilerIdentity names the running compiler build for cache invalidation
// (spec.md 4.10's "compiler-cache-identity" and 6.2's "compiler_version").
type CompilerIdentity struct {
	PackageVersion string
	GitHash        string
	ExeHash16      string // first 16 hex chars of a content hash over the compiler executable
}

// String renders "<pkg-version>+<git-hash>+<exe-hash-16hex>" (spec.md 6.2).
func (c CompilerIdentity) String() string {
	return fmt.Sprintf("%s+%s+%s", c.PackageVersion, c.GitHash, c.ExeHash16)
}

// CodegenError is the single-shot, fatal error kind spec.md 7 bullet 4
// describes: missing runtime archives, failed subprocess invocations,
// serialization failures. Unlike diag.Diagnostic, this always aborts the
// current module's compilation.
type CodegenError struct {
	Message string
}

func (e *CodegenError) Error() string { return e.Message }

func codegenErrorf(format string, args ...interface{}) error {
	return &CodegenError{Message: fmt.Sprintf(format, args...)}
}
