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
	"sort"
	"strings"
)

// runtimeDecls is the fixed catalog of stable C-ABI runtime symbols the
// generated code may reference (spec.md 6.5): "The core's obligation is to
// emit the exact declarations shown; it must not invent new runtime
// symbols." Every signature below uses opaque `ptr` for pointer-shaped
// arguments, matching the teacher pack's own LLVM-textual style in
// original_source/src/codegen/llvm/emitter/dispatch/cpu_helpers.
var runtimeDecls = map[string]string{
	// memory
	"chic_rt_alloc":     "declare ptr @chic_rt_alloc(i64, i64)",
	"chic_rt_free":      "declare void @chic_rt_free(ptr, i64, i64)",
	"chic_rt_realloc":   "declare ptr @chic_rt_realloc(ptr, i64, i64, i64)",
	"chic_rt_memcpy":    "declare void @chic_rt_memcpy(ptr, ptr, i64)",
	"chic_rt_memset":    "declare void @chic_rt_memset(ptr, i8, i64)",
	"chic_rt_memmove":   "declare void @chic_rt_memmove(ptr, ptr, i64)",
	"chic_rt_zero_init": "declare void @chic_rt_zero_init(ptr, i64)",

	// reference counting
	"chic_rt_rc_retain":    "declare void @chic_rt_rc_retain(ptr)",
	"chic_rt_rc_release":   "declare void @chic_rt_rc_release(ptr)",
	"chic_rt_arc_retain":   "declare void @chic_rt_arc_retain(ptr)",
	"chic_rt_arc_release":  "declare void @chic_rt_arc_release(ptr)",
	"chic_rt_weak_upgrade": "declare ptr @chic_rt_weak_upgrade(ptr)",
	"chic_rt_weak_retain":  "declare void @chic_rt_weak_retain(ptr)",
	"chic_rt_weak_release": "declare void @chic_rt_weak_release(ptr)",

	// synchronization
	"chic_rt_mutex_lock":       "declare void @chic_rt_mutex_lock(ptr)",
	"chic_rt_mutex_unlock":     "declare void @chic_rt_mutex_unlock(ptr)",
	"chic_rt_lock_try_acquire": "declare i1 @chic_rt_lock_try_acquire(ptr)",
	"chic_rt_rwlock_read_lock":  "declare void @chic_rt_rwlock_read_lock(ptr)",
	"chic_rt_rwlock_write_lock": "declare void @chic_rt_rwlock_write_lock(ptr)",
	"chic_rt_rwlock_unlock":     "declare void @chic_rt_rwlock_unlock(ptr)",
	"chic_rt_condvar_wait":      "declare void @chic_rt_condvar_wait(ptr, ptr)",
	"chic_rt_condvar_notify":    "declare void @chic_rt_condvar_notify(ptr, i1)",
	"chic_rt_once_run":          "declare void @chic_rt_once_run(ptr, ptr)",

	"chic_rt_atomic_load_bool":  "declare i1 @chic_rt_atomic_load_bool(ptr, i32)",
	"chic_rt_atomic_store_bool": "declare void @chic_rt_atomic_store_bool(ptr, i1, i32)",
	"chic_rt_atomic_load_i32":   "declare i32 @chic_rt_atomic_load_i32(ptr, i32)",
	"chic_rt_atomic_store_i32":  "declare void @chic_rt_atomic_store_i32(ptr, i32, i32)",
	"chic_rt_atomic_rmw_i32":    "declare i32 @chic_rt_atomic_rmw_i32(ptr, i32, i32, i32)",
	"chic_rt_atomic_cas_i32":    "declare i32 @chic_rt_atomic_cas_i32(ptr, i32, i32, i32, i32)",
	"chic_rt_atomic_load_u32":   "declare i32 @chic_rt_atomic_load_u32(ptr, i32)",
	"chic_rt_atomic_store_u32":  "declare void @chic_rt_atomic_store_u32(ptr, i32, i32)",
	"chic_rt_atomic_rmw_u32":    "declare i32 @chic_rt_atomic_rmw_u32(ptr, i32, i32, i32)",
	"chic_rt_atomic_cas_u32":    "declare i32 @chic_rt_atomic_cas_u32(ptr, i32, i32, i32, i32)",
	"chic_rt_atomic_load_i64":   "declare i64 @chic_rt_atomic_load_i64(ptr, i32)",
	"chic_rt_atomic_store_i64":  "declare void @chic_rt_atomic_store_i64(ptr, i64, i32)",
	"chic_rt_atomic_rmw_i64":    "declare i64 @chic_rt_atomic_rmw_i64(ptr, i32, i64, i32)",
	"chic_rt_atomic_cas_i64":    "declare i64 @chic_rt_atomic_cas_i64(ptr, i64, i64, i32, i32)",
	"chic_rt_atomic_load_u64":   "declare i64 @chic_rt_atomic_load_u64(ptr, i32)",
	"chic_rt_atomic_store_u64":  "declare void @chic_rt_atomic_store_u64(ptr, i64, i32)",
	"chic_rt_atomic_rmw_u64":    "declare i64 @chic_rt_atomic_rmw_u64(ptr, i32, i64, i32)",
	"chic_rt_atomic_cas_u64":    "declare i64 @chic_rt_atomic_cas_u64(ptr, i64, i64, i32, i32)",
	"chic_rt_atomic_load_usize": "declare i64 @chic_rt_atomic_load_usize(ptr, i32)",
	"chic_rt_atomic_store_usize": "declare void @chic_rt_atomic_store_usize(ptr, i64, i32)",
	"chic_rt_atomic_rmw_usize":  "declare i64 @chic_rt_atomic_rmw_usize(ptr, i32, i64, i32)",
	"chic_rt_atomic_cas_usize":  "declare i64 @chic_rt_atomic_cas_usize(ptr, i64, i64, i32, i32)",

	// async/task
	"chic_rt_async_block_on":    "declare ptr @chic_rt_async_block_on(ptr)",
	"chic_rt_async_spawn":       "declare ptr @chic_rt_async_spawn(ptr)",
	"chic_rt_async_cancel":      "declare void @chic_rt_async_cancel(ptr)",
	"chic_rt_async_await":       "declare i1 @chic_rt_async_await(ptr, ptr)",
	"chic_rt_future_poll":       "declare i1 @chic_rt_future_poll(ptr, ptr, ptr)",
	"chic_rt_async_token_alloc": "declare ptr @chic_rt_async_token_alloc()",
	"chic_rt_async_token_release": "declare void @chic_rt_async_token_release(ptr)",

	// strings
	"chic_rt_string_new":       "declare ptr @chic_rt_string_new()",
	"chic_rt_string_from_utf8": "declare ptr @chic_rt_string_from_utf8(ptr, i64)",
	"chic_rt_string_concat":    "declare ptr @chic_rt_string_concat(ptr, ptr)",
	"chic_rt_string_free":      "declare void @chic_rt_string_free(ptr)",
	"chic_rt_string_len":       "declare i64 @chic_rt_string_len(ptr)",

	// span helpers
	"chic_rt_span_new":   "declare { ptr, i64 } @chic_rt_span_new(ptr, i64)",
	"chic_rt_span_slice": "declare { ptr, i64 } @chic_rt_span_slice(ptr, i64, i64, i64)",
	"chic_rt_span_len":   "declare i64 @chic_rt_span_len(ptr, i64)",

	// drop/hash/eq glue registration
	"chic_rt_drop_register":    "declare void @chic_rt_drop_register(ptr, ptr)",
	"chic_rt_install_drop_table": "declare void @chic_rt_install_drop_table(ptr, ptr, i64)",
	"chic_rt_install_hash_table": "declare void @chic_rt_install_hash_table(ptr, ptr, i64)",
	"chic_rt_install_eq_table":   "declare void @chic_rt_install_eq_table(ptr, ptr, i64)",

	// exception propagation
	"chic_rt_throw":                    "declare void @chic_rt_throw(ptr, ptr) noreturn",
	"chic_rt_take_pending_exception":   "declare ptr @chic_rt_take_pending_exception()",

	// startup/testcase dispatch
	"chic_rt_startup_dispatch": "declare i32 @chic_rt_startup_dispatch(ptr, i32, ptr)",

	// tracing
	"chic_rt_trace_enter": "declare void @chic_rt_trace_enter(ptr)",
	"chic_rt_trace_exit":  "declare void @chic_rt_trace_exit(ptr)",
}

// runtimeSet tracks which runtime symbols a module referenced, so each
// declaration is emitted at most once (spec.md 6.3's "set-based emitter").
type runtimeSet struct {
	used map[string]bool
}

func newRuntimeSet() *runtimeSet { return &runtimeSet{used: make(map[string]bool)} }

// use records a reference to a named runtime symbol. It panics on an
// unknown name: spec.md 6.5 forbids inventing new runtime symbols, so a
// caller asking for one outside runtimeDecls is an emitter bug, not a
// recoverable condition.
func (s *runtimeSet) use(name string) string {
	if _, ok := runtimeDecls[name]; !ok {
		panic(fmt.Sprintf("codegen: unknown runtime symbol %q", name))
	}
	s.used[name] = true
	return "@" + name
}

// declarations renders every referenced symbol's `declare` line, sorted by
// name for deterministic textual IR.
func (s *runtimeSet) declarations() string {
	names := make([]string, 0, len(s.used))
	for n := range s.used {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		b.WriteString(runtimeDecls[n])
		b.WriteByte('\n')
	}
	return b.String()
}
