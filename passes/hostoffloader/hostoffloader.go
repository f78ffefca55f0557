// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package hostoffloader implements the host memory offloading pass.
//
// If a tensor is annotated to be moved to or from host memory, the pass removes the
// annotations, tags the memory space of every tensor along the offloaded paths and
// inserts copies where the value actually crosses the device/host boundary. The
// annotations are custom calls with the targets MoveToHostTarget and
// MoveToDeviceTarget, wrapping the annotated value as their single operand.
//
// Starting from each "move-to-host" custom call and from each entry parameter whose
// layout already declares host memory (input streaming), the pass walks down the
// graph through the consumer edges, tagging every (instruction, shape index) position
// it visits with the host memory space, until the path crosses back to the device.
// Only data movement is allowed on the offloaded paths: finding compute there is a
// user error and the pass fails, see ErrComputeOnOffloadPath.
//
// Two streaming idioms get special handling. A "move-to-host" paired with a
// dynamic-update-slice makes the update write directly into a host buffer, creating
// an explicit "allocate-buffer" custom call if the destination buffer has no host
// definition yet. A slice or dynamic-slice reading a host buffer streams back to the
// device by itself, so the "move-to-device" annotations it leads to need no copy;
// static slices are rewritten as dynamic-slices on the way.
//
// The pass runs in three phases: it first walks the graph collecting a mutation plan
// without changing anything, then applies the plan, and finally strips every
// remaining annotation and repairs the module's schedule, if it has one. A
// validation failure therefore leaves the module untouched.
package hostoffloader

import (
	"github.com/gomlx/hlo/analysis/aliasing"
	"github.com/gomlx/hlo/hlo"
	"github.com/gomlx/hlo/types/shapes"
	"github.com/pkg/errors"
)

const (
	// MoveToHostTarget is the custom call target annotating a value to be offloaded
	// to host memory.
	MoveToHostTarget = "move-to-host"

	// MoveToDeviceTarget is the custom call target annotating an offloaded value to
	// be brought back to device memory.
	MoveToDeviceTarget = "move-to-device"

	// AllocateBufferTarget is the custom call target the pass emits for buffers it
	// allocates directly in host memory.
	AllocateBufferTarget = "allocate-buffer"
)

// Errors returned by the pass, to be tested with errors.Is. The returned errors wrap
// these with the offending instruction and position.
var (
	// ErrComputeOnOffloadPath reports an operation other than data movement
	// consuming an offloaded value. This is a user error: the input program asks for
	// compute on a tensor that lives in host memory.
	ErrComputeOnOffloadPath = errors.New("compute on a host memory offload path")

	// ErrBadStreamingOp reports a disallowed operation on one of the streaming
	// idioms: between a slice reading host memory and its "move-to-device"
	// annotation. Also a user error.
	ErrBadStreamingOp = errors.New("disallowed operation on a host streaming path")

	// ErrInternal reports a structural invariant the pass expected the module to
	// hold but that was violated, e.g. an annotation with more than one operand.
	ErrInternal = errors.New("host offloader internal inconsistency")
)

// AliasOracle answers which positions of the module must share a physical buffer.
// The default implementation is aliasing.Analysis; see WithAliasAnalysis to inject a
// precomputed one.
type AliasOracle interface {
	// BufferPositions returns every position sharing storage with p, p included.
	BufferPositions(p hlo.Position) ([]hlo.Position, error)

	// SharesBuffer returns whether the two positions must share storage.
	SharesBuffer(p1, p2 hlo.Position) (bool, error)
}

// Statically assert the default implementation satisfies the oracle interface.
var _ AliasOracle = (*aliasing.Analysis)(nil)

// Offloader is the host memory offloading pass. It implements passes.ModulePass.
// Create it with New; the zero value is not usable.
//
// An Offloader is stateless across invocations: all bookkeeping lives for one Run
// call. It is not safe for concurrent use on the same module, like any pass.
type Offloader struct {
	hostMemorySpaceColor shapes.MemorySpace
	oracle               AliasOracle
}

// Option configures an Offloader, see New.
type Option func(*Offloader)

// WithAliasAnalysis injects a precomputed alias oracle. If not set, the pass runs
// aliasing.Run on the module when it first needs buffer information.
func WithAliasAnalysis(oracle AliasOracle) Option {
	return func(o *Offloader) { o.oracle = oracle }
}

// New creates the pass. hostMemorySpaceColor is the memory space value that marks
// host memory in the module's shapes, conventionally shapes.HostMemorySpace.
func New(hostMemorySpaceColor shapes.MemorySpace, options ...Option) *Offloader {
	o := &Offloader{hostMemorySpaceColor: hostMemorySpaceColor}
	for _, option := range options {
		option(o)
	}
	return o
}

// Name implements passes.ModulePass.
func (o *Offloader) Name() string { return "host-offloader" }

// Run implements passes.ModulePass. It returns whether the module was changed.
//
// On error the module is left unchanged: the pass only mutates after the whole walk
// validated. ErrComputeOnOffloadPath and ErrBadStreamingOp report errors in the
// input program, ErrInternal a defect.
func (o *Offloader) Run(module *hlo.Module) (bool, error) {
	w := newWalker(o, module)

	// Phase 1: discover starting points and walk them, collecting the plan.
	if err := w.handleInputStreaming(module.EntryComputation()); err != nil {
		return false, err
	}
	for _, computation := range module.Computations() {
		// The instructions slice is not mutated during the walk, but markers
		// handled as part of an earlier walk must not start a new one.
		for _, instruction := range computation.Instructions() {
			if instruction.IsCustomCall(MoveToHostTarget) && !w.visitedMoveToHost.Has(instruction) {
				if err := w.handleMoveToHost(instruction); err != nil {
					return false, err
				}
			}
		}
	}

	// Phase 2 and 3: apply the plan, strip annotations, repair the schedule.
	return o.apply(module, w.plan)
}
