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

package generics

import (
	"hash/fnv"
	"math/big"

	"github.com/chic-lang/chic/internal/constval"
	"github.com/chic-lang/chic/internal/ty"
)

// TypeIdHash computes the u128 runtime type-id this package rewrites
// (spec.md 4.6 step 3: "Type-id constants (u128 hashes) are rewritten via a
// map from original-name hash to substituted-name hash"). It is built from
// two independent 64-bit FNV-1a digests of the same canonical name packed
// into the high and low halves of a big.Int, returned as the decimal string
// internal/constval.Value's Big field holds for i128/u128 constants that
// overflow a plain uint64 field.
func TypeIdHash(canonicalName string) string {
	hi := fnv.New64a()
	hi.Write([]byte(canonicalName))
	lo := fnv.New64a()
	lo.Write([]byte(canonicalName))
	lo.Write([]byte{0xff}) // perturb the second lane so hi != lo

	v := new(big.Int).SetUint64(hi.Sum64())
	v.Lsh(v, 64)
	v.Or(v, new(big.Int).SetUint64(lo.Sum64()))
	return v.String()
}

// rewriteTypeID rewrites a UInt ConstValue carrying a type-id hash of one of
// subst's original generic-parameter names to the hash of the type it was
// substituted with. Any ConstValue that is not itself a recognised type-id
// (its Big digest does not match a current parameter name's hash) passes
// through unchanged -- an ordinary numeric literal and a type-id constant
// share the same Kind/Big shape at this layer, so the rewrite only fires on
// an exact digest match rather than on every UInt operand.
func rewriteTypeID(v constval.Value, subst map[string]ty.Ty) constval.Value {
	if v.Kind != constval.UInt || v.Big == "" {
		return v
	}
	for name, repl := range subst {
		if v.Big == TypeIdHash(name) {
			v.Big = TypeIdHash(repl.CanonicalName())
			return v
		}
	}
	return v
}
