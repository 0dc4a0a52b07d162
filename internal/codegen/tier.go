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

// CpuIsaTier names one entry in a multiversion dispatch's ISA ladder
// (spec.md 4.11). Index order matches the original_source dispatch
// tables' tier indices: Baseline is always 0, and the detection helpers
// below select the highest-indexed tier whose feature bits are present.
type CpuIsaTier int

const (
	TierBaseline CpuIsaTier = iota
	TierAvx2
	TierAvx512
	TierAmx
	TierDotProd
	TierFp16Fml
	TierBf16
	TierI8mm
	TierSve
	TierSve2
	TierSme
	TierCrypto
	TierPauth
	TierBti
)

// Index is the integer tag the dispatch stub switches on and
// @chic_cpu_active_tier caches.
func (t CpuIsaTier) Index() int { return int(t) }

// Suffix names the per-tier mangled symbol suffix, e.g. "<symbol>__avx2".
func (t CpuIsaTier) Suffix() string {
	switch t {
	case TierBaseline:
		return "baseline"
	case TierAvx2:
		return "avx2"
	case TierAvx512:
		return "avx512"
	case TierAmx:
		return "amx"
	case TierDotProd:
		return "dotprod"
	case TierFp16Fml:
		return "fp16fml"
	case TierBf16:
		return "bf16"
	case TierI8mm:
		return "i8mm"
	case TierSve:
		return "sve"
	case TierSve2:
		return "sve2"
	case TierSme:
		return "sme"
	case TierCrypto:
		return "crypto"
	case TierPauth:
		return "pauth"
	case TierBti:
		return "bti"
	default:
		return "unknown"
	}
}
