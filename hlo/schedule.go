// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hlo

import (
	"math"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Schedule fixes the execution order of every computation's instructions.
//
// A schedule becomes stale when a pass mutates the graph: new instructions are not
// sequenced and removed ones linger. Update repairs it in place, keeping the relative
// order of surviving instructions.
type Schedule struct {
	module    *Module
	sequences map[*Computation][]*Instruction
}

// CreateSchedule attaches a schedule to the module, sequencing every computation in
// a valid data dependency order that follows instruction creation order as closely
// as possible. Replaces any previous schedule.
func (m *Module) CreateSchedule() *Schedule {
	s := &Schedule{
		module:    m,
		sequences: make(map[*Computation][]*Instruction, len(m.computations)),
	}
	for _, computation := range m.computations {
		s.sequences[computation] = slices.Clone(computation.instructions)
	}
	// Creation order is a valid order only if operands were never rewired, repair
	// takes care of the general case.
	if err := s.Update(); err != nil {
		exceptions.Panicf("CreateSchedule: %+v", err)
	}
	m.schedule = s
	return s
}

// Sequence returns the scheduled order of the computation's instructions. Don't
// modify the returned slice.
func (s *Schedule) Sequence(computation *Computation) []*Instruction {
	return s.sequences[computation]
}

// Update repairs the schedule after the module was mutated: removed instructions are
// dropped, new instructions are sequenced after their operands, and surviving
// instructions keep their relative order. Updating an already fresh schedule is a
// no-op, so Update is idempotent.
func (s *Schedule) Update() error {
	for _, computation := range s.module.computations {
		sequence, err := updateSequence(computation, s.sequences[computation])
		if err != nil {
			return err
		}
		s.sequences[computation] = sequence
	}
	return nil
}

// updateSequence rebuilds one computation's sequence: a topological order of the
// live instructions, choosing among ready instructions the one sequenced earliest in
// the old order. Instructions absent from the old order come last among the ready
// ones, ordered by unique id.
func updateSequence(computation *Computation, oldSequence []*Instruction) ([]*Instruction, error) {
	live := computation.instructions
	priority := make(map[*Instruction]int, len(live))
	for _, instruction := range live {
		priority[instruction] = math.MaxInt
	}
	for idx, instruction := range oldSequence {
		if _, found := priority[instruction]; found {
			priority[instruction] = idx
		}
	}

	// remaining counts the distinct operand producers not yet sequenced. Operand
	// edges never cross computations, so this is self-contained.
	remaining := make(map[*Instruction]int, len(live))
	var ready []*Instruction
	for _, instruction := range live {
		distinct := 0
		for idx, operand := range instruction.operands {
			if !slices.Contains(instruction.operands[:idx], operand) {
				distinct++
			}
		}
		remaining[instruction] = distinct
		if distinct == 0 {
			ready = append(ready, instruction)
		}
	}

	sequence := make([]*Instruction, 0, len(live))
	for len(ready) > 0 {
		// Pick the ready instruction scheduled earliest in the old sequence.
		best := 0
		for idx := 1; idx < len(ready); idx++ {
			if priority[ready[idx]] < priority[ready[best]] ||
				(priority[ready[idx]] == priority[ready[best]] && ready[idx].uniqueID < ready[best].uniqueID) {
				best = idx
			}
		}
		instruction := ready[best]
		ready = slices.Delete(ready, best, best+1)
		sequence = append(sequence, instruction)
		for _, user := range instruction.users {
			remaining[user]--
			if remaining[user] == 0 {
				ready = append(ready, user)
			}
		}
	}
	if len(sequence) != len(live) {
		return nil, errors.Errorf("schedule update: computation %q has an operand cycle (!?), sequenced %d of %d instructions",
			computation.name, len(sequence), len(live))
	}
	return sequence, nil
}
