// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package hlo implements an HLO-style intermediate representation for numeric
// computations: a Module holds Computations, which hold Instructions forming a DAG.
//
// The IR is mutable and designed for transformation passes (see the passes
// sub-packages): instructions have stable identity and unique ids, operand edges are
// mirrored by user edges, and rewiring goes through explicit primitives
// (Instruction.ReplaceOperand, Instruction.ReplaceAllUsesWith,
// Computation.RemoveInstruction) that keep both edge directions consistent.
//
// Building a graph is done through the builder methods of Computation and panics on
// invalid inputs (see github.com/gomlx/exceptions); passes and analyses operating on
// built graphs return errors instead.
//
// Shapes, including nested tuples and the per-leaf memory space tags used for host
// memory offloading, live in github.com/gomlx/hlo/types/shapes.
package hlo

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/google/uuid"
)

// Module is a complete program: a set of computations with one entry point.
//
// A module optionally carries a Schedule fixing the execution order of each
// computation's instructions.
type Module struct {
	name         string
	computations []*Computation
	entry        *Computation
	uniqueID     int
	schedule     *Schedule
}

// NewModule creates an empty module. If name is empty a unique name is generated.
func NewModule(name string) *Module {
	if name == "" {
		name = fmt.Sprintf("unnamed_module_uuid_%s", uuid.NewString())
	}
	return &Module{name: name}
}

// Name of the module.
func (m *Module) Name() string { return m.name }

// Computations of the module, in creation order. Don't modify the returned slice.
func (m *Module) Computations() []*Computation { return m.computations }

// NewComputation creates an empty computation in the module. The first computation
// created becomes the entry computation, see SetEntryComputation to change it. If
// name is empty a name is generated; names must be unique within the module.
func (m *Module) NewComputation(name string) *Computation {
	if name == "" {
		name = fmt.Sprintf("computation.%d", len(m.computations))
	}
	for _, computation := range m.computations {
		if computation.name == name {
			exceptions.Panicf("NewComputation: module %q already has a computation named %q", m.name, name)
		}
	}
	c := &Computation{name: name, module: m}
	m.computations = append(m.computations, c)
	if m.entry == nil {
		m.entry = c
	}
	return c
}

// EntryComputation returns the entry computation of the module, nil if the module is
// empty.
func (m *Module) EntryComputation() *Computation { return m.entry }

// SetEntryComputation makes c the entry computation. It must belong to this module.
func (m *Module) SetEntryComputation(c *Computation) {
	if c == nil || c.module != m {
		exceptions.Panicf("SetEntryComputation: computation doesn't belong to module %q", m.name)
	}
	m.entry = c
}

// NumInstructions returns the total number of instructions across all computations.
func (m *Module) NumInstructions() int {
	count := 0
	for _, computation := range m.computations {
		count += len(computation.instructions)
	}
	return count
}

// HasSchedule returns whether the module carries an instruction schedule.
func (m *Module) HasSchedule() bool { return m.schedule != nil }

// Schedule of the module, nil if it has none. See CreateSchedule.
func (m *Module) Schedule() *Schedule { return m.schedule }

// nextUniqueID assigns module-wide unique instruction ids.
func (m *Module) nextUniqueID() int {
	m.uniqueID++
	return m.uniqueID
}
