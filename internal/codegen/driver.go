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
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/chic-lang/chic/internal/env"
	"github.com/chic-lang/chic/internal/mir"
)

// PackageVersion is the compiler's own release version, consulted by
// CompilerIdentity.String() (spec.md 6.2's "compiler_version"). It has no
// environment-variable override -- unlike CHIC_GIT_HASH, this is meant to
// move only across an actual release, not a developer's shell.
const PackageVersion = "0.1.0"

// Identity resolves the running compiler's cache identity: PackageVersion,
// CHIC_GIT_HASH (internal/env), and a truncated hash of the compiler
// executable (ExecutableHash16).
func Identity() (CompilerIdentity, error) {
	exeHash, err := ExecutableHash16()
	if err != nil {
		return CompilerIdentity{}, err
	}
	return CompilerIdentity{
		PackageVersion: PackageVersion,
		GitHash:        env.GitHash(),
		ExeHash16:      exeHash,
	}, nil
}

// Compile drives one compile_module invocation end to end (spec.md 4.10):
// pretty-print for fingerprinting, fingerprint computation, a cache-sidecar
// check, and otherwise a backend dispatch followed by a persisted cache
// record. sourceText is the original source this module was lowered from,
// one of the fingerprint's direct inputs.
func Compile(ctx context.Context, m *mir.MirModule, opts Options, sourceText string, extra FingerprintInputs) (Artifact, error) {
	identity, err := Identity()
	if err != nil {
		return Artifact{}, err
	}

	textualIR := PrettyPrintModule(m)
	extra.SourceText = sourceText
	extra.TextualIR = textualIR
	extra.TargetTriple = opts.Target.String()
	extra.CompilationKind = opts.CompilationKind
	extra.Backend = opts.Backend
	extra.OptLevel = opts.OptLevel
	extra.Flags = opts.Flags
	extra.IsaConfig = opts.IsaTiers
	extra.SveBits = opts.SveBits
	extra.PGOProfilePath = opts.PGOProfilePath
	extra.RuntimeIdentity = opts.RuntimeIdentity
	extra.RuntimeABI = opts.RuntimeABI
	extra.RuntimeManifestHash = opts.RuntimeManifestHash
	extra.Identity = identity

	fingerprint := ComputeFingerprint(extra)
	outputDir := filepath.Dir(opts.OutputPath)

	if entry, ok := LoadCacheEntry(opts.OutputPath); ok && entry.IsFresh(fingerprint, opts.Backend, identity, outputDir) {
		return artifactFromCacheEntry(outputDir, *entry), nil
	}

	artifact, err := dispatchBackend(ctx, m, opts)
	if err != nil {
		return Artifact{}, err
	}

	entry := CacheEntry{
		Fingerprint:        fingerprint,
		Backend:            opts.Backend.String(),
		CompilerVersion:    identity.String(),
		ObjectPath:         RelativizePath(outputDir, artifact.ObjectPath),
		ArtifactPath:       RelativizePath(outputDir, artifact.ArtifactPath),
		MetadataObject:     RelativizePath(outputDir, artifact.MetadataObjectPath),
		LibraryPack:        RelativizePath(outputDir, artifact.LibraryPack),
		ReflectionManifest: RelativizePath(outputDir, artifact.ReflectionManifest),
		ConstantFolds:      artifact.ConstantFolds,
		InlinedFunctions:   artifact.InlinedFunctions,
	}
	if err := SaveCacheEntry(opts.OutputPath, entry); err != nil {
		return Artifact{}, err
	}
	return artifact, nil
}

func artifactFromCacheEntry(outputDir string, e CacheEntry) Artifact {
	return Artifact{
		ObjectPath:         resolveRelative(outputDir, e.ObjectPath),
		ArtifactPath:       resolveRelative(outputDir, e.ArtifactPath),
		MetadataObjectPath: resolveNonEmpty(outputDir, e.MetadataObject),
		LibraryPack:        resolveNonEmpty(outputDir, e.LibraryPack),
		ReflectionManifest: resolveNonEmpty(outputDir, e.ReflectionManifest),
		ConstantFolds:      e.ConstantFolds,
		InlinedFunctions:   e.InlinedFunctions,
	}
}

func resolveNonEmpty(dir, rel string) string {
	if rel == "" {
		return ""
	}
	return resolveRelative(dir, rel)
}

func dispatchBackend(ctx context.Context, m *mir.MirModule, opts Options) (Artifact, error) {
	switch opts.Backend {
	case BackendLLVM:
		return compileLLVM(ctx, m, opts)
	case BackendWasm:
		return Artifact{}, codegenErrorf("wasm backend not implemented by this core")
	case BackendCC1:
		return Artifact{}, codegenErrorf("cc1-preprocessed-C fallback backend not implemented by this core")
	default:
		return Artifact{}, codegenErrorf("unknown codegen backend %v", opts.Backend)
	}
}

// compileLLVM renders textual IR, writes it next to the requested output,
// and invokes an external LLVM toolchain (clang, by default, overridable
// the same way internal/link lets CHIC_LINKER override the system linker)
// to assemble it into an object file. This is spec.md 5's concurrency
// boundary 3: "external toolchain invoked as blocking child process...
// non-zero exit code is surfaced as a Codegen error".
func compileLLVM(ctx context.Context, m *mir.MirModule, opts Options) (Artifact, error) {
	emitter := NewLLVMEmitter(m, opts.Target, opts.IsaTiers, opts.SveBits)
	text, err := emitter.Emit()
	if err != nil {
		return Artifact{}, err
	}

	irPath := opts.OutputPath + ".ll"
	if err := os.WriteFile(irPath, []byte(text), 0o644); err != nil {
		return Artifact{}, codegenErrorf("writing textual IR to %s: %v", irPath, err)
	}

	objectPath := opts.OutputPath + ".o"
	toolchain := "clang"
	if v, ok := env.Linker(); ok {
		toolchain = v
	}
	args := []string{
		"-target", opts.Target.String(),
		"-O" + optLevelFlag(opts.OptLevel),
		"-c", irPath,
		"-o", objectPath,
	}
	cmd := exec.CommandContext(ctx, toolchain, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return Artifact{}, codegenErrorf("invoking %s %s: %v", toolchain, strings.Join(args, " "), err)
	}

	return Artifact{
		ObjectPath:   objectPath,
		ArtifactPath: objectPath,
	}, nil
}

func optLevelFlag(level int) string {
	switch {
	case level <= 0:
		return "0"
	case level >= 3:
		return "3"
	default:
		return string(rune('0' + level))
	}
}
