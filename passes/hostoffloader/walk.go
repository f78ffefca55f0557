// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostoffloader

import (
	"github.com/gomlx/hlo/hlo"
	"github.com/gomlx/hlo/types"
	"github.com/gomlx/hlo/types/shapes"
	"github.com/pkg/errors"
)

// plan is the set of mutations phase 1 collected for phase 2 to apply. Nothing in
// the module changes while a plan is being built, so a failed walk aborts the pass
// with the module untouched.
type plan struct {
	// hostTags are the positions whose leaf must be set to the host memory space,
	// keyed for convergence dedup.
	hostTags map[hlo.PositionKey]hlo.Position

	// dusRewrites are the dynamic-update-slices whose destination buffer must be
	// moved to host memory, in discovery order.
	dusRewrites []*hlo.Instruction

	// dynamifySlices are the static slices on read boundaries to be rewritten as
	// dynamic-slices, in discovery order.
	dynamifySlices []*hlo.Instruction

	// hostCopyMarkers are the "move-to-host" annotations to be replaced by a copy
	// into host memory: no copy or slice-update downstream realizes the transfer.
	hostCopyMarkers types.Set[*hlo.Instruction]

	// deviceCopyBefore are the "move-to-device" annotation positions to be replaced
	// by a copy back into device memory, keyed for convergence dedup. Each entry
	// produces at most one copy.
	deviceCopyBefore map[hlo.PositionKey]hlo.Position
}

func newPlan() *plan {
	return &plan{
		hostTags:         make(map[hlo.PositionKey]hlo.Position),
		hostCopyMarkers:  types.MakeSet[*hlo.Instruction](),
		deviceCopyBefore: make(map[hlo.PositionKey]hlo.Position),
	}
}

// walker is the phase 1 state: one per Run invocation.
type walker struct {
	off    *Offloader
	module *hlo.Module
	plan   *plan

	// visited holds every position already walked, for cycle and convergence
	// control: each (instruction, shape index) pair is processed at most once.
	visited types.Set[hlo.PositionKey]

	// visitedMoveToHost holds the "move-to-host" annotations already handled,
	// either as a walk start or as a redundant annotation found mid-path.
	visitedMoveToHost types.Set[*hlo.Instruction]

	// dusHandled holds the dynamic-update-slices already recorded, so convergent
	// paths plan at most one buffer rewrite per instruction.
	dusHandled types.Set[*hlo.Instruction]
}

func newWalker(off *Offloader, module *hlo.Module) *walker {
	return &walker{
		off:               off,
		module:            module,
		plan:              newPlan(),
		visited:           types.MakeSet[hlo.PositionKey](),
		visitedMoveToHost: types.MakeSet[*hlo.Instruction](),
		dusHandled:        types.MakeSet[*hlo.Instruction](),
	}
}

// tag records that the leaf at p must be in host memory.
func (w *walker) tag(p hlo.Position) {
	if _, found := w.plan.hostTags[p.Key()]; !found {
		w.plan.hostTags[p.Key()] = hlo.Position{Instruction: p.Instruction, Index: p.Index.Clone()}
	}
}

// recordDusRewrite plans the host rewrite of a dynamic-update-slice, at most once.
func (w *walker) recordDusRewrite(dus *hlo.Instruction) {
	if !w.dusHandled.Has(dus) {
		w.dusHandled.Insert(dus)
		w.plan.dusRewrites = append(w.plan.dusRewrites, dus)
	}
}

// handleInputStreaming starts a walk from every entry parameter leaf already
// declared in host memory space.
func (w *walker) handleInputStreaming(entry *hlo.Computation) error {
	if entry == nil {
		return nil
	}
	for _, parameter := range entry.Parameters() {
		for index := range parameter.Shape().Leaves() {
			if parameter.MemorySpaceAt(index) != w.off.hostMemorySpaceColor {
				continue
			}
			start := hlo.Position{Instruction: parameter, Index: index.Clone()}
			if err := w.walkDown(start); err != nil {
				return errors.WithMessagef(err, "while streaming input %s", start)
			}
		}
	}
	return nil
}

// handleMoveToHost starts the walks for one "move-to-host" annotation.
//
// The transfer to host memory must be realized by something: a dynamic-update-slice
// writing into a host buffer, an existing copy that the walk re-tags to produce host
// memory, or, when neither follows the annotation, a fresh copy the pass inserts in
// the annotation's place. The pairing scan below looks through formatting ops
// (opsAllowedBetweenMoveToHostAndDus) for the first two cases; any other consumer
// forces the inserted-copy case, which walks from the annotation itself.
func (w *walker) handleMoveToHost(marker *hlo.Instruction) error {
	w.visitedMoveToHost.Insert(marker)
	if marker.NumOperands() != 1 {
		return errors.Wrapf(ErrInternal, "annotation %s has %d operands, want 1",
			marker.Name(), marker.NumOperands())
	}
	if len(marker.Users()) == 0 && !marker.IsRoot() {
		// Dead annotation: nothing to walk, the final phase strips it.
		return nil
	}

	var starts []hlo.Position
	needCopy := marker.IsRoot()
	queue := []*hlo.Instruction{marker}
	for len(queue) > 0 && !needCopy {
		current := queue[0]
		queue = queue[1:]
		for _, user := range current.Users() {
			switch {
			case user.Opcode() == hlo.OpCodeDynamicUpdateSlice &&
				len(user.OperandIndices(current)) == 1 && user.OperandIndices(current)[0] == 1:
				// The annotated value is the update: the slice-update realizes the
				// transfer by writing into a host buffer.
				starts = append(starts, hlo.MakePosition(user))
			case user.Opcode() == hlo.OpCodeCopy:
				// The copy realizes the transfer once its output is host memory.
				starts = append(starts, hlo.MakePosition(user))
			case opsAllowedBetweenMoveToHostAndDus.Has(user.Opcode()):
				queue = append(queue, user)
			default:
				needCopy = true
			}
		}
	}

	if needCopy {
		// A copy into host memory will replace the annotation; walk everything from
		// the annotation's position, as if the copy were already there.
		w.plan.hostCopyMarkers.Insert(marker)
		starts = []hlo.Position{hlo.MakePosition(marker)}
	}
	for _, start := range starts {
		if err := w.walkDown(start); err != nil {
			return errors.WithMessagef(err, "while offloading annotation %s", marker.Name())
		}
	}
	return nil
}

// walkDown flood-fills the host memory tag forward from start, collecting boundary
// mutations into the plan. See the package documentation for the walk rules.
func (w *walker) walkDown(start hlo.Position) error {
	if start.Instruction.Opcode() == hlo.OpCodeDynamicUpdateSlice {
		w.recordDusRewrite(start.Instruction)
	}
	queue := []hlo.Position{start}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if w.visited.Has(p.Key()) {
			continue
		}
		w.visited.Insert(p.Key())

		if p.Instruction.IsCustomCall(MoveToDeviceTarget) {
			// Boundary back to device: a copy will replace the annotation. The
			// deviceCopyBefore map dedups convergent paths.
			if p.Instruction.NumOperands() != 1 {
				return errors.Wrapf(ErrInternal, "annotation %s has %d operands, want 1",
					p.Instruction.Name(), p.Instruction.NumOperands())
			}
			w.plan.deviceCopyBefore[p.Key()] = p
			continue
		}
		if p.Instruction.IsCustomCall(MoveToHostTarget) {
			// Redundant annotation mid-path: the value is already on its way to
			// host memory, the annotation will be stripped without a copy.
			w.visitedMoveToHost.Insert(p.Instruction)
		}

		w.tag(p)
		next, err := w.successors(p)
		if err != nil {
			return err
		}
		queue = append(queue, next...)
	}
	return nil
}

// successors classifies every consumer edge of p and returns the next positions of
// the walk. Boundary consumers (slices reading back to device) and slice-update
// rewrites are recorded into the plan here; disallowed consumers fail the walk.
func (w *walker) successors(p hlo.Position) ([]hlo.Position, error) {
	var next []hlo.Position
	for _, user := range p.Instruction.Users() {
		for _, slot := range user.OperandIndices(p.Instruction) {
			positions, err := w.successorsThrough(p, user, slot)
			if err != nil {
				return nil, err
			}
			next = append(next, positions...)
		}
	}

	// A computation root forwards its value to every caller.
	if p.Instruction.IsRoot() && !p.Instruction.Computation().IsEntry() {
		computation := p.Instruction.Computation()
		for _, caller := range computation.Callers() {
			if caller.Opcode() == hlo.OpCodeWhile && caller.WhileCondition() == computation {
				// The condition result is not the loop value, nothing to forward.
				continue
			}
			next = append(next, hlo.Position{Instruction: caller, Index: p.Index})
		}
	}
	return next, nil
}

// successorsThrough resolves the walk across one (user, operand slot) edge.
func (w *walker) successorsThrough(p hlo.Position, user *hlo.Instruction, slot int) ([]hlo.Position, error) {
	one := func(i *hlo.Instruction, index shapes.ShapeIndex) []hlo.Position {
		return []hlo.Position{{Instruction: i, Index: index}}
	}

	switch user.Opcode() {
	case hlo.OpCodeDynamicUpdateSlice:
		switch slot {
		case 0:
			// The offloaded value is the destination buffer: the update writes into
			// host memory that already exists, no allocation needed.
			w.dusHandled.Insert(user)
			return one(user, p.Index), nil
		case 1:
			// The offloaded value is the update: rewrite the slice-update to write
			// into a host buffer.
			w.recordDusRewrite(user)
			return one(user, p.Index), nil
		default:
			return nil, errors.Wrapf(ErrComputeOnOffloadPath,
				"%s uses the offloaded value %s as a slice start index", user.Name(), p)
		}

	case hlo.OpCodeSlice, hlo.OpCodeDynamicSlice:
		if slot != 0 {
			return nil, errors.Wrapf(ErrComputeOnOffloadPath,
				"%s uses the offloaded value %s as a slice start index", user.Name(), p)
		}
		// Read boundary: the slice streams the host buffer back to device, its
		// output stays in device memory and the path ends here.
		if err := w.validateSliceLeadsToMoveToDevice(user); err != nil {
			return nil, err
		}
		if user.Opcode() == hlo.OpCodeSlice {
			w.plan.dynamifySlices = append(w.plan.dynamifySlices, user)
		}
		return nil, nil

	case hlo.OpCodeTuple:
		return one(user, p.Index.PushFront(slot)), nil

	case hlo.OpCodeGetTupleElement:
		if p.Index.Empty() {
			return nil, errors.Wrapf(ErrInternal,
				"%s extracts from the non-tuple position %s", user.Name(), p)
		}
		if p.Index.Front() != user.TupleIndex() {
			// The extraction selects a different tuple element, this path doesn't
			// flow through it.
			return nil, nil
		}
		return one(user, p.Index.PopFront().Clone()), nil

	case hlo.OpCodeCall:
		callee := user.CalledComputations()[0]
		return one(callee.ParameterInstruction(slot), p.Index), nil

	case hlo.OpCodeWhile:
		// The loop state flows into both the condition and the body.
		return []hlo.Position{
			{Instruction: user.WhileCondition().ParameterInstruction(0), Index: p.Index},
			{Instruction: user.WhileBody().ParameterInstruction(0), Index: p.Index},
		}, nil

	case hlo.OpCodeConditional:
		if slot == 0 {
			return nil, errors.Wrapf(ErrComputeOnOffloadPath,
				"%s uses the offloaded value %s as its branch index", user.Name(), p)
		}
		branch := user.Branches()[slot-1]
		return one(branch.ParameterInstruction(0), p.Index), nil

	case hlo.OpCodeCustomCall:
		if user.IsCustomCall(MoveToHostTarget) || user.IsCustomCall(MoveToDeviceTarget) {
			return one(user, p.Index), nil
		}
		return nil, errors.Wrapf(ErrComputeOnOffloadPath,
			"custom call %s (target %q) consumes the offloaded value %s",
			user.Name(), user.CustomCallTarget(), p)

	default:
		if !opsValidDuringPureMemoryOffload.Has(user.Opcode()) {
			return nil, errors.Wrapf(ErrComputeOnOffloadPath,
				"%s (opcode %s) consumes the offloaded value %s", user.Name(), user.Opcode(), p)
		}
		// Data movement over a non-tuple value: the index carries over unchanged.
		return one(user, p.Index), nil
	}
}

// validateSliceLeadsToMoveToDevice checks the streaming-read idiom: every use of a
// slice reading host memory must reach a "move-to-device" annotation through
// formatting ops only. The annotations themselves are stripped later without a copy,
// the slice already brought the value back to device memory.
func (w *walker) validateSliceLeadsToMoveToDevice(slice *hlo.Instruction) error {
	queue := []*hlo.Instruction{slice}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if len(current.Users()) == 0 && !current.IsRoot() {
			return errors.Wrapf(ErrBadStreamingOp,
				"%s streams host memory read by %s but never reaches a %q annotation",
				current.Name(), slice.Name(), MoveToDeviceTarget)
		}
		for _, user := range current.Users() {
			switch {
			case user.IsCustomCall(MoveToDeviceTarget):
				// Reached; stripped in the final phase, no copy.
			case opsAllowedBetweenSliceAndMoveToDevice.Has(user.Opcode()):
				queue = append(queue, user)
			default:
				return errors.Wrapf(ErrBadStreamingOp,
					"%s (opcode %s) found between the host memory read %s and its %q annotation",
					user.Name(), user.Opcode(), slice.Name(), MoveToDeviceTarget)
			}
		}
	}
	return nil
}
