// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostoffloader

import (
	"github.com/dustin/go-humanize"
	"github.com/gomlx/hlo/analysis/aliasing"
	"github.com/gomlx/hlo/hlo"
	"github.com/gomlx/hlo/types"
	"github.com/gomlx/hlo/types/shapes"
	"github.com/gomlx/hlo/types/xslices"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// copyKey identifies one boundary copy: copies are reused per (producer, target
// memory space), so several annotations over the same value share one copy.
type copyKey struct {
	producer *hlo.Instruction
	space    shapes.MemorySpace
}

// applier is the phase 2/3 state: one per Run invocation.
type applier struct {
	off     *Offloader
	module  *hlo.Module
	plan    *plan
	changed bool

	// copiesCreatedAfter reuses boundary copies across annotations.
	copiesCreatedAfter map[copyKey]*hlo.Instruction

	// allocateBuffers are the materializing definitions of slice-update destination
	// buffers to be replaced by "allocate-buffer" custom calls, resolved from the
	// alias oracle before any mutation.
	allocateBuffers []*hlo.Instruction
}

// apply runs phases 2 and 3 over the collected plan.
func (o *Offloader) apply(module *hlo.Module, p *plan) (bool, error) {
	a := &applier{
		off:                o,
		module:             module,
		plan:               p,
		copiesCreatedAfter: make(map[copyKey]*hlo.Instruction),
	}

	// Resolving the slice-update destination buffers can still fail with a user
	// error, so it runs before any mutation.
	if err := a.resolveDusBuffers(); err != nil {
		return false, err
	}

	a.applyHostTags()
	if err := a.applyAllocateBuffers(); err != nil {
		return false, err
	}
	if err := a.applyDynamifySlices(); err != nil {
		return false, err
	}
	if err := a.stripAnnotations(); err != nil {
		return false, err
	}

	if a.changed && module.HasSchedule() {
		if err := module.Schedule().Update(); err != nil {
			return true, errors.Wrapf(ErrInternal, "repairing the schedule of module %q: %v",
				module.Name(), err)
		}
	}
	return a.changed, nil
}

// resolveDusBuffers queries the alias oracle for the destination buffer of every
// planned slice-update rewrite: all positions of the buffer move to host memory and
// its materializing definitions become host allocations. A buffer defined by compute
// cannot be moved and is a user error.
func (a *applier) resolveDusBuffers() error {
	if len(a.plan.dusRewrites) == 0 {
		return nil
	}
	oracle := a.off.oracle
	if oracle == nil {
		analysis, err := aliasing.Run(a.module)
		if err != nil {
			return errors.Wrapf(ErrInternal, "alias analysis of module %q: %v", a.module.Name(), err)
		}
		oracle = analysis
	}

	toAllocate := types.MakeSet[*hlo.Instruction]()
	for _, dus := range a.plan.dusRewrites {
		destination := hlo.MakePosition(dus.Operand(0))
		positions, err := oracle.BufferPositions(destination)
		if err != nil {
			return errors.Wrapf(ErrInternal, "resolving the destination buffer of %s: %v",
				dus.Name(), err)
		}
		for _, p := range positions {
			a.plan.hostTags[p.Key()] = p
			instruction := p.Instruction
			switch instruction.Opcode() {
			case hlo.OpCodeBroadcast, hlo.OpCodeConstant, hlo.OpCodeIota:
				// Materializing definition: replaced by a host allocation.
				if !toAllocate.Has(instruction) {
					toAllocate.Insert(instruction)
					a.allocateBuffers = append(a.allocateBuffers, instruction)
				}
			case hlo.OpCodeBitcast, hlo.OpCodeCall, hlo.OpCodeConditional, hlo.OpCodeCopy,
				hlo.OpCodeCustomCall, hlo.OpCodeDynamicUpdateSlice, hlo.OpCodeGetTupleElement,
				hlo.OpCodeOptimizationBarrier, hlo.OpCodeParameter, hlo.OpCodeTuple,
				hlo.OpCodeWhile:
				// Plumbing or an already host-compatible source: only re-tagged.
			default:
				return errors.Wrapf(ErrComputeOnOffloadPath,
					"%s writes into host memory, but its destination buffer is defined by %s (opcode %s) at %s",
					dus.Name(), instruction.Name(), instruction.Opcode(), p)
			}
		}
	}
	return nil
}

// applyHostTags sets the host memory space on every planned position.
func (a *applier) applyHostTags() {
	var totalBytes uintptr
	tagged := 0
	for _, p := range a.plan.hostTags {
		if p.MemorySpace() == a.off.hostMemorySpaceColor {
			continue
		}
		p.Instruction.SetMemorySpaceAt(p.Index, a.off.hostMemorySpaceColor)
		totalBytes += p.Shape().Memory()
		tagged++
		a.changed = true
	}
	if tagged > 0 && klog.V(1).Enabled() {
		klog.Infof("host-offloader: module %q: moved %d values (%s) to host memory",
			a.module.Name(), tagged, humanize.Bytes(uint64(totalBytes)))
	}
}

// applyAllocateBuffers replaces each materializing definition of a host buffer with
// an "allocate-buffer" custom call of the same shape in host memory.
func (a *applier) applyAllocateBuffers() error {
	for _, instruction := range a.allocateBuffers {
		computation := instruction.Computation()
		allocate := computation.CustomCall(AllocateBufferTarget,
			instruction.Shape().WithMemorySpace(a.off.hostMemorySpaceColor))
		klog.V(2).Infof("host-offloader: replacing %s with host allocation %s",
			instruction.Name(), allocate.Name())
		if err := instruction.ReplaceAllUsesWith(allocate); err != nil {
			return errors.Wrapf(ErrInternal, "replacing %s with %s: %v",
				instruction.Name(), allocate.Name(), err)
		}
		if err := computation.RemoveInstruction(instruction); err != nil {
			return errors.Wrapf(ErrInternal, "removing %s: %v", instruction.Name(), err)
		}
		a.changed = true
	}
	return nil
}

// applyDynamifySlices rewrites each planned static slice as a dynamic-slice with
// constant start indices, so the backend can stream the host read.
func (a *applier) applyDynamifySlices() error {
	for _, slice := range a.plan.dynamifySlices {
		computation := slice.Computation()
		starts := xslices.Map(slice.SliceStarts(), func(start int) *hlo.Instruction {
			return computation.Constant(hlo.NewScalarLiteral(int32(start)))
		})
		sizes := make([]int, len(starts))
		for axis := range sizes {
			sizes[axis] = slice.SliceLimits()[axis] - slice.SliceStarts()[axis]
		}
		dynamic := computation.DynamicSlice(slice.Operand(0), starts, sizes)
		klog.V(2).Infof("host-offloader: rewriting %s as %s", slice.Name(), dynamic.Name())
		if err := slice.ReplaceAllUsesWith(dynamic); err != nil {
			return errors.Wrapf(ErrInternal, "replacing %s with %s: %v",
				slice.Name(), dynamic.Name(), err)
		}
		if err := computation.RemoveInstruction(slice); err != nil {
			return errors.Wrapf(ErrInternal, "removing %s: %v", slice.Name(), err)
		}
		a.changed = true
	}
	return nil
}

// copyAfter returns the boundary copy of producer into the given memory space,
// creating it on first use. Reuse keeps convergent annotations from duplicating
// copies.
func (a *applier) copyAfter(producer *hlo.Instruction, space shapes.MemorySpace) *hlo.Instruction {
	key := copyKey{producer: producer, space: space}
	if boundaryCopy, found := a.copiesCreatedAfter[key]; found {
		return boundaryCopy
	}
	boundaryCopy := producer.Computation().Copy(producer)
	for index := range boundaryCopy.Shape().Leaves() {
		boundaryCopy.SetMemorySpaceAt(index, space)
	}
	a.copiesCreatedAfter[key] = boundaryCopy
	return boundaryCopy
}

// stripAnnotations removes every remaining "move-to-host" and "move-to-device"
// custom call, replacing each with its operand or, where the plan calls for one,
// with a boundary copy.
func (a *applier) stripAnnotations() error {
	var markers []*hlo.Instruction
	for _, computation := range a.module.Computations() {
		for _, instruction := range computation.Instructions() {
			if instruction.IsCustomCall(MoveToHostTarget) || instruction.IsCustomCall(MoveToDeviceTarget) {
				markers = append(markers, instruction)
			}
		}
	}
	needsDeviceCopy := types.MakeSet[*hlo.Instruction](len(a.plan.deviceCopyBefore))
	for _, p := range a.plan.deviceCopyBefore {
		needsDeviceCopy.Insert(p.Instruction)
	}
	for _, marker := range markers {
		if marker.NumOperands() != 1 {
			return errors.Wrapf(ErrInternal, "annotation %s has %d operands, want 1",
				marker.Name(), marker.NumOperands())
		}
		replacement := marker.Operand(0)
		if a.plan.hostCopyMarkers.Has(marker) {
			replacement = a.copyAfter(marker.Operand(0), a.off.hostMemorySpaceColor)
		} else if needsDeviceCopy.Has(marker) {
			replacement = a.copyAfter(marker.Operand(0), shapes.DefaultMemorySpace)
		}
		klog.V(2).Infof("host-offloader: stripping annotation %s, replaced by %s",
			marker.Name(), replacement.Name())
		if err := marker.ReplaceAllUsesWith(replacement); err != nil {
			return errors.Wrapf(ErrInternal, "replacing annotation %s with %s: %v",
				marker.Name(), replacement.Name(), err)
		}
		if err := marker.Computation().RemoveInstruction(marker); err != nil {
			return errors.Wrapf(ErrInternal, "removing annotation %s: %v", marker.Name(), err)
		}
		a.changed = true
	}
	return nil
}
