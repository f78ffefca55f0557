// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostoffloader

import (
	"github.com/gomlx/hlo/hlo"
	"github.com/gomlx/hlo/types"
)

// The walk classifies every consumer against these opcode sets. Keeping them as
// plain package-level sets makes the allowed surface auditable at a glance.

// opsValidDuringPureMemoryOffload are the opcodes allowed to touch an offloaded
// value: data movement and value plumbing only. Slices, dynamic slices,
// dynamic-update-slices, calls, control flow and custom calls appear here but get
// dedicated treatment in the walk before the generic check.
var opsValidDuringPureMemoryOffload = types.SetWith(
	hlo.OpCodeBitcast,
	hlo.OpCodeBroadcast,
	hlo.OpCodeCall,
	hlo.OpCodeConcatenate,
	hlo.OpCodeConditional,
	hlo.OpCodeCopy,
	hlo.OpCodeCustomCall,
	hlo.OpCodeDynamicSlice,
	hlo.OpCodeDynamicUpdateSlice,
	hlo.OpCodeGetTupleElement,
	hlo.OpCodeOptimizationBarrier,
	hlo.OpCodeParameter,
	hlo.OpCodeReshape,
	hlo.OpCodeSlice,
	hlo.OpCodeTuple,
	hlo.OpCodeWhile,
)

// opsAllowedBetweenMoveToHostAndDus are the formatting opcodes the pairing scan may
// cross between a "move-to-host" annotation and the dynamic-update-slice (or copy)
// that realizes the transfer: they operate on the still-on-device value.
var opsAllowedBetweenMoveToHostAndDus = types.SetWith(
	hlo.OpCodeBitcast,
	hlo.OpCodeReshape,
)

// opsAllowedBetweenSliceAndMoveToDevice are the opcodes allowed between a slice
// reading host memory and the "move-to-device" annotations all its uses must lead
// to: the slice output is already on device, only formatting may follow.
var opsAllowedBetweenSliceAndMoveToDevice = types.SetWith(
	hlo.OpCodeBitcast,
	hlo.OpCodeCopy,
	hlo.OpCodeReshape,
)
