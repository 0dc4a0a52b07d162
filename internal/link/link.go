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

// Package link invokes the platform linker (or archiver) over a set of
// object files, per spec.md 4.13. It is the one package in this module that
// shells out to an external process: the driver blocks on its exit status
// and a non-zero code becomes a Codegen error (spec.md 5, bullet 3).
// Grounded on the teacher's direct os/exec usage (e.g. cmd/gapit/status.go,
// core/git/git.go) rather than its core/os/shell.Target abstraction, since
// this package only ever runs one blocking child process at a time and has
// no need for the shell package's remote-target/process-group machinery.
package link

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/chic-lang/chic/internal/env"
	"github.com/chic-lang/chic/internal/target"
)

// OutputKind names what the linker is asked to produce.
type OutputKind int

const (
	OutputExecutable OutputKind = iota
	OutputDynamicLibrary
	OutputStaticLibrary
)

// Runtime names which runtime support archive, if any, a link should add.
type Runtime int

const (
	RuntimeNone Runtime = iota
	RuntimeNative
)

// Options is everything one link invocation needs (spec.md 4.13).
type Options struct {
	Kind   OutputKind
	Target target.Target
	Output string

	Objects     []string
	SearchPaths []string
	Libraries   []string

	WeakImport bool
	Threading  bool

	Runtime        Runtime
	RuntimeArchive string // the static runtime archive's path; required when Runtime == RuntimeNative
}

// Link runs the selected linker (or, for a static library, the archiver)
// over opts.Objects and blocks until it exits, per spec.md 5's concurrency
// boundary 3. stdout/stderr are inherited so the child's own diagnostics
// reach the user directly.
func Link(ctx context.Context, opts Options) error {
	if opts.Kind == OutputStaticLibrary {
		return archive(ctx, opts)
	}

	name, args := Command(opts)
	if env.DebugLink() {
		fmt.Fprintf(os.Stderr, "[chic-debug] link: %s %s\n", name, strings.Join(args, " "))
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "linking %s", opts.Output)
	}
	return nil
}

// Command builds the linker name and argument vector for a dynamic-library
// or executable link, without running it (split out so callers/tests can
// inspect the exact command line spec.md 4.13 describes).
func Command(opts Options) (string, []string) {
	name := linkerCommand(opts.Target)

	var args []string
	args = append(args, "-target", canonicalizeTriple(opts.Target))
	args = append(args, "-o", opts.Output)
	args = append(args, opts.Objects...)

	for _, p := range opts.SearchPaths {
		args = append(args, "-L"+p)
	}

	switch opts.Kind {
	case OutputDynamicLibrary:
		if opts.Target.OS == target.Macos {
			args = append(args, "-dynamiclib", "-install_name", "@rpath/"+filepath.Base(opts.Output))
		} else {
			args = append(args, "-shared")
		}
	}

	if opts.WeakImport && opts.Target.OS == target.Macos {
		args = append(args, "-Wl,-undefined,dynamic_lookup")
	}

	if opts.Runtime == RuntimeNative && !env.LinkNativeRuntimeSuppressed() &&
		(opts.Kind == OutputExecutable || opts.Kind == OutputDynamicLibrary) {
		if opts.RuntimeArchive != "" {
			args = append(args, opts.RuntimeArchive)
		}
	}

	for _, lib := range opts.Libraries {
		args = append(args, "-l"+lib)
	}
	args = append(args, defaultLibraries(opts.Target, opts.Threading)...)

	return name, args
}

// linkerCommand picks the linker driver: $CHIC_LINKER, else clang on Apple,
// gcc on Linux, cc otherwise (spec.md 4.13).
func linkerCommand(t target.Target) string {
	if cmd, ok := env.Linker(); ok {
		return cmd
	}
	switch t.OS {
	case target.Macos:
		return "clang"
	case target.Linux:
		return "gcc"
	default:
		return "cc"
	}
}

// canonicalizeTriple normalizes a target triple for the linker's -target
// flag: "-unknown-none" is dropped, and Apple's macOS form is rewritten to
// the Darwin spelling the toolchain expects (spec.md 4.13).
func canonicalizeTriple(t target.Target) string {
	raw := t.String()
	raw = strings.ReplaceAll(raw, "-unknown-none", "")
	if t.OS == target.Macos {
		raw = strings.ReplaceAll(raw, "-apple-macos", "-apple-darwin")
	}
	return raw
}

// defaultLibraries lists the implicit system libraries every link adds,
// beyond whatever the caller already requested (spec.md 4.13).
func defaultLibraries(t target.Target, threading bool) []string {
	libs := []string{"-lc"}
	switch t.OS {
	case target.Linux:
		libs = append(libs, "-lm", "-ldl")
		if threading {
			libs = append(libs, "-lpthread")
		}
	case target.Macos:
		if threading {
			libs = append(libs, "-lSystem")
		}
	}
	return libs
}

// archive builds a static library: `ar rcs` followed by a best-effort
// `ranlib` (spec.md 4.13). ranlib's exit status is not fatal: some ar
// implementations (e.g. LLVM's) already leave a usable symbol table and
// have no separate ranlib on PATH.
func archive(ctx context.Context, opts Options) error {
	args := append([]string{"rcs", opts.Output}, opts.Objects...)
	if env.DebugLink() {
		fmt.Fprintf(os.Stderr, "[chic-debug] link: ar %s\n", strings.Join(args, " "))
	}
	cmd := exec.CommandContext(ctx, "ar", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "archiving %s", opts.Output)
	}

	ranlib := exec.CommandContext(ctx, "ranlib", opts.Output)
	ranlib.Stdout = os.Stdout
	ranlib.Stderr = os.Stderr
	_ = ranlib.Run()

	return nil
}
