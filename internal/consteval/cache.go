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

package consteval

import (
	"container/list"

	"github.com/chic-lang/chic/internal/constval"
)

// exprKey is the memoization key for one expression result (spec.md 4.3:
// "(expression text, enclosing namespace, owner, target type)").
type exprKey struct {
	exprText  string
	namespace string
	owner     string
	targetTy  string
}

// fnKey is the memoization key for one pure-function call (spec.md 4.3:
// "(qualified name, canonicalized argument labels)").
type fnKey struct {
	qualifiedName string
	argLabels     string
}

type fnCacheEntry struct {
	key   fnKey
	value *constval.Value // nil represents a cached failure
}

// fnLRU is a bounded LRU for function-call results; insertion evicts the
// oldest entry once full (spec.md 4.3).
type fnLRU struct {
	capacity int
	order    *list.List
	index    map[fnKey]*list.Element
}

func newFnLRU(capacity int) *fnLRU {
	if capacity <= 0 {
		capacity = DefaultFnCacheCapacity
	}
	return &fnLRU{capacity: capacity, order: list.New(), index: make(map[fnKey]*list.Element)}
}

func (c *fnLRU) get(key fnKey) (*constval.Value, bool) {
	el, ok := c.index[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*fnCacheEntry).value, true
}

func (c *fnLRU) put(key fnKey, value *constval.Value) {
	if el, ok := c.index[key]; ok {
		el.Value.(*fnCacheEntry).value = value
		c.order.MoveToFront(el)
		return
	}
	entry := &fnCacheEntry{key: key, value: value}
	el := c.order.PushFront(entry)
	c.index[key] = el
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.index, oldest.Value.(*fnCacheEntry).key)
		}
	}
}

func (c *fnLRU) len() int { return c.order.Len() }
