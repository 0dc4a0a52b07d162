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

// Package env centralizes the environment-variable surface the core reads
// (spec.md 6.4). Nothing else in the module calls os.Getenv directly so the
// full list stays discoverable from one file.
package env

import "os"

// DisableCodegenCache reports whether CHIC_DISABLE_CODEGEN_CACHE is set.
func DisableCodegenCache() bool { return nonEmpty("CHIC_DISABLE_CODEGEN_CACHE") }

// DebugLink reports whether CHIC_DEBUG_LINK is set.
func DebugLink() bool { return nonEmpty("CHIC_DEBUG_LINK") }

// DebugPackageTrim reports whether CHIC_DEBUG_PACKAGE_TRIM is set.
func DebugPackageTrim() bool { return nonEmpty("CHIC_DEBUG_PACKAGE_TRIM") }

// DebugInterfaceDispatch reports whether CHIC_DEBUG_INTERFACE_DISPATCH is set.
func DebugInterfaceDispatch() bool { return nonEmpty("CHIC_DEBUG_INTERFACE_DISPATCH") }

// DebugGenericInstantiation reports whether CHIC_DEBUG_GENERIC_INSTANTIATION is set.
func DebugGenericInstantiation() bool { return nonEmpty("CHIC_DEBUG_GENERIC_INSTANTIATION") }

// DebugSpecialiseHashing reports whether CHIC_DEBUG_SPECIALISE_HASHING is set.
func DebugSpecialiseHashing() bool { return nonEmpty("CHIC_DEBUG_SPECIALISE_HASHING") }

// LinkNativeRuntimeSuppressed reports whether CHIC_LINK_NATIVE_RUNTIME=0.
func LinkNativeRuntimeSuppressed() bool {
	v, ok := os.LookupEnv("CHIC_LINK_NATIVE_RUNTIME")
	return ok && v == "0"
}

// Linker returns the CHIC_LINKER override, if any.
func Linker() (string, bool) {
	v, ok := os.LookupEnv("CHIC_LINKER")
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// GitHash returns the build-time CHIC_GIT_HASH, or "unknown".
func GitHash() string {
	if v, ok := os.LookupEnv("CHIC_GIT_HASH"); ok && v != "" {
		return v
	}
	return "unknown"
}

func nonEmpty(name string) bool {
	v, ok := os.LookupEnv(name)
	return ok && v != ""
}
