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

package mir

// CatchRegion is one catch arm of a try (spec.md 3.3, 4.4).
type CatchRegion struct {
	ExceptionTy string // canonical name of the caught type, empty = catch-all
	Entry       BlockID
	Body        BlockID
	Cleanup     BlockID
	Filter      BlockID // entry of a `when` filter, InvalidBlock if none
	HasFilter   bool
}

// InvalidBlock marks the absence of an optional block id.
const InvalidBlock BlockID = -1

// ExceptionRegion records one try statement's full control structure
// (spec.md 3.3).
type ExceptionRegion struct {
	Entry   BlockID
	Exit    BlockID
	Dispatch BlockID
	Catches []CatchRegion

	FinallyEntry BlockID // InvalidBlock if no finally
	FinallyExit  BlockID
	HasFinally   bool

	UnhandledBlock BlockID
	AfterBlock     BlockID

	// ExceptionSlot is the nullable local storing the in-flight exception
	// value; PendingFlag is the bool local recording whether an exception
	// is pending through a finally (only allocated when HasFinally).
	ExceptionSlot LocalID
	PendingFlag   LocalID
	HasPendingFlag bool

	ScopeDepth int
}
