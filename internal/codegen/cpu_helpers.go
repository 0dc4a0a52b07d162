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
	"fmt"
	"strings"

	"github.com/chic-lang/chic/internal/target"
)

// emitCPUDispatchHelpers renders @chic_cpu_active_tier, @chic_cpu_select_tier,
// and the architecture-specific feature-detection cascade it calls (spec.md
// 4.11). Grounded on
// original_source/src/codegen/llvm/emitter/dispatch/cpu_helpers/{mod,x86,
// apple,linux}.rs, which dispatch the same way by TargetArch and, for
// Aarch64, by whether the target vendor/OS is Apple's.
func (e *LLVMEmitter) emitCPUDispatchHelpers() {
	if len(e.isaTiers) <= 1 {
		return
	}
	fmt.Fprintf(&e.out, "@chic_cpu_active_tier = internal global i32 -1, align 4\n")

	switch e.target.Arch {
	case target.X86_64:
		e.emitX86CpuHelpers()
	case target.Aarch64:
		if e.target.OS == target.Macos {
			e.emitAppleCpuHelpers()
		} else {
			e.emitLinuxCpuHelpers()
		}
	}
}

// selectTierPrologue writes the cached-check/detect/store/reload shape every
// platform's @chic_cpu_select_tier shares (cpu_helpers/{x86,apple,linux}.rs
// all build this identically before branching into their own detection
// logic).
func (e *LLVMEmitter) selectTierPrologue() {
	e.out.WriteString("define internal i32 @chic_cpu_select_tier() {\n")
	e.out.WriteString("entry:\n")
	e.out.WriteString("  %cached = load i32, ptr @chic_cpu_active_tier, align 4\n")
	e.out.WriteString("  %is_cached = icmp sge i32 %cached, 0\n")
	e.out.WriteString("  br i1 %is_cached, label %cached_exit, label %detect\n")
	e.out.WriteString("cached_exit:\n")
	e.out.WriteString("  ret i32 %cached\n")
	e.out.WriteString("detect:\n")
}

func (e *LLVMEmitter) selectTierEpilogue(detected string) {
	e.out.WriteString("  store i32 " + detected + ", ptr @chic_cpu_active_tier, align 4\n")
	e.out.WriteString("  ret i32 " + detected + "\n")
	e.out.WriteString("}\n\n")
}

// nonBaselineTiersAscending lists the requested tiers above baseline, in
// ascending Index order. Each step of the select cascades below replaces the
// running result when its tier's feature bits are present, so the highest-
// indexed present tier wins and baseline remains only when nothing matches.
func (e *LLVMEmitter) nonBaselineTiersAscending() []CpuIsaTier {
	var out []CpuIsaTier
	for _, t := range e.isaTiers {
		if t != TierBaseline {
			out = append(out, t)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Index() < out[i].Index() {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// ---- x86_64 (cpu_helpers/x86.rs) ----

func (e *LLVMEmitter) emitX86CpuHelpers() {
	e.out.WriteString("declare void @__cpu_indicator_init()\n")
	e.out.WriteString("@__cpu_model = external global { i32, i32, i32, [1 x i32] }\n")
	e.out.WriteString("@__cpu_features2 = external global [3 x i32]\n")
	e.out.WriteString("@chic_cpu_x86_init_done = internal global i1 false, align 1\n\n")

	e.selectTierPrologue()
	e.out.WriteString("  %already_init = load i1, ptr @chic_cpu_x86_init_done, align 1\n")
	e.out.WriteString("  br i1 %already_init, label %post_init, label %do_init\n")
	e.out.WriteString("do_init:\n")
	e.out.WriteString("  call void @__cpu_indicator_init()\n")
	e.out.WriteString("  store i1 true, ptr @chic_cpu_x86_init_done, align 1\n")
	e.out.WriteString("  br label %post_init\n")
	e.out.WriteString("post_init:\n")
	e.out.WriteString("  %features_ptr = getelementptr inbounds { i32, i32, i32, [1 x i32] }, ptr @__cpu_model, i32 0, i32 3, i32 0\n")
	e.out.WriteString("  %features = load i32, ptr %features_ptr\n")
	e.out.WriteString("  %features2_ptr = getelementptr inbounds [3 x i32], ptr @__cpu_features2, i32 0, i32 1\n")
	e.out.WriteString("  %features2 = load i32, ptr %features2_ptr\n")

	cur := fmt.Sprintf("%d", TierBaseline.Index())
	for i, t := range e.nonBaselineTiersAscending() {
		mask, field := x86FeatureMask(t)
		if mask == 0 {
			continue
		}
		masked := fmt.Sprintf("%%x86_masked%d", i)
		cmp := fmt.Sprintf("%%x86_has%d", i)
		next := fmt.Sprintf("%%x86_tier%d", i)
		fmt.Fprintf(&e.out, "  %s = and i32 %s, %d\n", masked, field, mask)
		fmt.Fprintf(&e.out, "  %s = icmp ne i32 %s, 0\n", cmp, masked)
		fmt.Fprintf(&e.out, "  %s = select i1 %s, i32 %d, i32 %s\n", next, cmp, t.Index(), cur)
		cur = next
	}
	e.selectTierEpilogue(cur)
}

func x86FeatureMask(t CpuIsaTier) (int, string) {
	switch t {
	case TierAvx2:
		return 1024, "%features"
	case TierAvx512:
		return 32768, "%features"
	case TierAmx:
		return 2097152, "%features2"
	default:
		return 0, ""
	}
}

// ---- Apple aarch64 (cpu_helpers/apple.rs) ----

func appleSysctlKeys(t CpuIsaTier) []string {
	switch t {
	case TierDotProd:
		return []string{"hw.optional.arm.FEAT_DotProd"}
	case TierFp16Fml:
		return []string{"hw.optional.arm.FEAT_FHM"}
	case TierI8mm:
		return []string{"hw.optional.arm.FEAT_I8MM"}
	case TierBf16:
		return []string{"hw.optional.arm.FEAT_BF16"}
	case TierSve:
		return []string{"hw.optional.arm.FEAT_SVE"}
	case TierSve2:
		return []string{"hw.optional.arm.FEAT_SVE2"}
	case TierSme:
		return []string{"hw.optional.arm.FEAT_SME"}
	case TierCrypto:
		return []string{"hw.optional.arm.FEAT_AES"}
	case TierPauth:
		return []string{"hw.optional.arm.FEAT_PAuth"}
	case TierBti:
		return []string{"hw.optional.arm.FEAT_BTI"}
	default:
		return nil
	}
}

func sanitiseSysctlKey(key string) string {
	var sb strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return strings.ToLower(sb.String())
}

func (e *LLVMEmitter) emitAppleCpuHelpers() {
	e.out.WriteString("declare i32 @sysctlbyname(ptr, ptr, ptr, ptr, i64)\n\n")

	seen := make(map[string]bool)
	var keys []string
	for _, t := range e.isaTiers {
		for _, k := range appleSysctlKeys(t) {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	for _, k := range keys {
		sanitised := sanitiseSysctlKey(k)
		fmt.Fprintf(&e.out, "@.str.arm_%s = private unnamed_addr constant [%d x i8] c\"%s\\00\", align 1\n",
			sanitised, len(k)+1, k)
	}
	e.out.WriteString("\n")

	e.out.WriteString("define internal i1 @chic_arm_sysctl_flag(ptr %name) {\n")
	e.out.WriteString("entry:\n")
	e.out.WriteString("  %valptr = alloca i32, align 4\n")
	e.out.WriteString("  %sizeptr = alloca i64, align 8\n")
	e.out.WriteString("  store i32 0, ptr %valptr, align 4\n")
	e.out.WriteString("  store i64 4, ptr %sizeptr, align 8\n")
	e.out.WriteString("  %rc = call i32 @sysctlbyname(ptr %name, ptr %valptr, ptr %sizeptr, ptr null, i64 0)\n")
	e.out.WriteString("  %ok = icmp eq i32 %rc, 0\n")
	e.out.WriteString("  %val = load i32, ptr %valptr, align 4\n")
	e.out.WriteString("  %nonzero = icmp ne i32 %val, 0\n")
	e.out.WriteString("  %result = and i1 %ok, %nonzero\n")
	e.out.WriteString("  ret i1 %result\n")
	e.out.WriteString("}\n\n")

	for _, t := range e.nonBaselineTiersAscending() {
		tierKeys := appleSysctlKeys(t)
		if len(tierKeys) == 0 {
			continue
		}
		fmt.Fprintf(&e.out, "define internal i1 @chic_arm_has_%s() {\n", t.Suffix())
		e.out.WriteString("entry:\n")
		cur := "1"
		for i, k := range tierKeys {
			sanitised := sanitiseSysctlKey(k)
			flag := fmt.Sprintf("%%flag%d", i)
			fmt.Fprintf(&e.out, "  %s = call i1 @chic_arm_sysctl_flag(ptr @.str.arm_%s)\n", flag, sanitised)
			if i == 0 {
				cur = flag
			} else {
				combined := fmt.Sprintf("%%combined%d", i)
				fmt.Fprintf(&e.out, "  %s = and i1 %s, %s\n", combined, cur, flag)
				cur = combined
			}
		}
		fmt.Fprintf(&e.out, "  ret i1 %s\n", cur)
		e.out.WriteString("}\n\n")
	}

	e.selectTierPrologue()
	cur := fmt.Sprintf("%d", TierBaseline.Index())
	for i, t := range e.nonBaselineTiersAscending() {
		if len(appleSysctlKeys(t)) == 0 {
			continue
		}
		has := fmt.Sprintf("%%arm_has%d", i)
		next := fmt.Sprintf("%%arm_tier%d", i)
		fmt.Fprintf(&e.out, "  %s = call i1 @chic_arm_has_%s()\n", has, t.Suffix())
		fmt.Fprintf(&e.out, "  %s = select i1 %s, i32 %d, i32 %s\n", next, has, t.Index(), cur)
		cur = next
	}
	e.selectTierEpilogue(cur)
}

// ---- Linux aarch64 (cpu_helpers/linux.rs) ----

// linuxHwcapMask returns the getauxval(AT_HWCAP)/getauxval(AT_HWCAP2) bit
// masks for a tier, and which of the two auxval registers ("hwcap" /
// "hwcap2") it is tested against. I8mm/Bf16 also accept their SVE-
// prefixed sibling bit via a logical OR, matching linux.rs's ORed pair
// checks for those two tiers.
func linuxHwcapMask(t CpuIsaTier) (reg string, mask int, altMask int) {
	switch t {
	case TierDotProd:
		return "hwcap", 1 << 20, 0
	case TierFp16Fml:
		return "hwcap", 1 << 23, 0
	case TierSve:
		return "hwcap", 1 << 22, 0
	case TierI8mm:
		return "hwcap2", 1 << 13, 1 << 9
	case TierBf16:
		return "hwcap2", 1 << 14, 1 << 12
	case TierSve2:
		return "hwcap2", 1 << 1, 0
	case TierSme:
		return "hwcap2", 1 << 23, 0
	default:
		return "", 0, 0
	}
}

func (e *LLVMEmitter) emitLinuxCpuHelpers() {
	e.out.WriteString("declare i64 @getauxval(i64)\n\n")

	usesSVE := false
	for _, t := range e.isaTiers {
		if t == TierSve || t == TierSve2 {
			usesSVE = true
		}
	}
	if usesSVE {
		bits := e.sveBits
		if bits == 0 {
			bits = 128
		}
		fmt.Fprintf(&e.out, "@chic_cpu_sve_bits = internal global i32 %d, align 4\n\n", bits)
	}

	e.selectTierPrologue()
	e.out.WriteString("  %hwcap = call i64 @getauxval(i64 16)\n")
	e.out.WriteString("  %hwcap2 = call i64 @getauxval(i64 26)\n")

	cur := fmt.Sprintf("%d", TierBaseline.Index())
	for i, t := range e.nonBaselineTiersAscending() {
		reg, mask, altMask := linuxHwcapMask(t)
		if reg == "" {
			continue
		}
		masked := fmt.Sprintf("%%lin_masked%d", i)
		fmt.Fprintf(&e.out, "  %s = and i64 %%%s, %d\n", masked, reg, mask)
		hasExpr := masked
		if altMask != 0 {
			altMasked := fmt.Sprintf("%%lin_altmasked%d", i)
			fmt.Fprintf(&e.out, "  %s = and i64 %%%s, %d\n", altMasked, reg, altMask)
			orMasked := fmt.Sprintf("%%lin_or%d", i)
			fmt.Fprintf(&e.out, "  %s = or i64 %s, %s\n", orMasked, masked, altMasked)
			hasExpr = orMasked
		}
		cmp := fmt.Sprintf("%%lin_has%d", i)
		next := fmt.Sprintf("%%lin_tier%d", i)
		fmt.Fprintf(&e.out, "  %s = icmp ne i64 %s, 0\n", cmp, hasExpr)
		fmt.Fprintf(&e.out, "  %s = select i1 %s, i32 %d, i32 %s\n", next, cmp, t.Index(), cur)
		cur = next
	}
	e.selectTierEpilogue(cur)
}
