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

// Package target names the compilation target triple that the ABI
// classifier and codegen backend both consult: architecture, vendor,
// operating system, and environment, the same four fields an LLVM target
// triple carries. Grounded on the teacher's core/codegen/triple.go, which
// assembles a Triple from a device.ABI; this package instead parses the
// triple string form spec.md 4.9/4.10 names directly
// (arch-vendor-os-environment), since the core has no device-probing layer.
package target

import (
	"strings"

	"github.com/pkg/errors"
)

// Arch names a supported target architecture.
type Arch int

const (
	ArchUnknown Arch = iota
	Aarch64
	X86_64
)

func (a Arch) String() string {
	switch a {
	case Aarch64:
		return "aarch64"
	case X86_64:
		return "x86_64"
	default:
		return "unknown"
	}
}

// OS names a supported target operating system.
type OS int

const (
	OSUnknown OS = iota
	Linux
	Macos
	Windows
	NoOS // freestanding / bare-metal
)

func (o OS) String() string {
	switch o {
	case Linux:
		return "linux"
	case Macos:
		return "macos"
	case Windows:
		return "windows"
	case NoOS:
		return "none"
	default:
		return "unknown"
	}
}

// Target is a parsed triple: <arch>-<vendor>-<os>-<environment>.
type Target struct {
	Arch        Arch
	Vendor      string
	OS          OS
	Environment string
	raw         string
}

// Parse decodes a triple string such as "aarch64-unknown-linux-gnu" or
// "x86_64-pc-windows-msvc" (spec.md 4.9's "target triple").
func Parse(triple string) (Target, error) {
	parts := strings.Split(triple, "-")
	if len(parts) < 2 {
		return Target{}, errors.Errorf("malformed target triple %q", triple)
	}
	t := Target{raw: triple}
	switch parts[0] {
	case "aarch64", "arm64":
		t.Arch = Aarch64
	case "x86_64", "amd64":
		t.Arch = X86_64
	default:
		return Target{}, errors.Errorf("unsupported target architecture %q in triple %q", parts[0], triple)
	}
	if len(parts) >= 3 {
		t.Vendor = parts[1]
	}
	osPart := ""
	switch len(parts) {
	case 2:
		osPart = parts[1]
	default:
		osPart = parts[2]
	}
	switch {
	case strings.HasPrefix(osPart, "linux"):
		t.OS = Linux
	case strings.HasPrefix(osPart, "darwin") || strings.HasPrefix(osPart, "macos") || osPart == "apple":
		t.OS = Macos
	case strings.HasPrefix(osPart, "windows"):
		t.OS = Windows
	case osPart == "none" || osPart == "unknown":
		t.OS = NoOS
	default:
		t.OS = OSUnknown
	}
	if len(parts) >= 4 {
		t.Environment = parts[3]
	}
	return t, nil
}

// String returns the original triple text Parse was given.
func (t Target) String() string { return t.raw }

// PointerBits returns the target's native pointer width, consumed by
// internal/ty's layout table (spec.md 3.2).
func (t Target) PointerBits() int { return 64 }
