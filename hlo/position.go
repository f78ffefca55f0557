// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hlo

import (
	"fmt"

	"github.com/gomlx/hlo/types/shapes"
)

// Position addresses one value in the graph: an instruction plus the ShapeIndex of a
// sub-shape within the instruction's (possibly tuple-valued) shape. The empty index
// addresses the whole value.
//
// Positions are the unit of traversal for dataflow analyses and the unit of aliasing
// for buffer analysis. Use Key for a comparable representation to key maps and sets.
type Position struct {
	Instruction *Instruction
	Index       shapes.ShapeIndex
}

// MakePosition returns the position of the instruction's whole value.
func MakePosition(instruction *Instruction) Position {
	return Position{Instruction: instruction}
}

// PositionKey is a comparable representation of a Position, for use as a map or set
// key. Two positions have equal keys iff they address the same (instruction, index).
type PositionKey struct {
	InstructionID int
	Index         string
}

// Key returns the comparable representation of the position.
func (p Position) Key() PositionKey {
	return PositionKey{InstructionID: p.Instruction.uniqueID, Index: p.Index.Key()}
}

// Valid returns whether the index addresses a sub-shape of the instruction's shape.
func (p Position) Valid() bool {
	return p.Instruction != nil && p.Instruction.shape.ValidIndex(p.Index)
}

// Shape returns the sub-shape addressed by the position.
func (p Position) Shape() shapes.Shape {
	return p.Instruction.shape.SubShape(p.Index)
}

// MemorySpace returns the memory space of the leaf addressed by the position.
func (p Position) MemorySpace() shapes.MemorySpace {
	return p.Instruction.shape.MemorySpaceAt(p.Index)
}

// String implements stringer, e.g. `{instr: tuple.3, index: {1}}`.
func (p Position) String() string {
	if p.Instruction == nil {
		return "{instr: <nil>}"
	}
	return fmt.Sprintf("{instr: %s, index: %s}", p.Instruction.name, p.Index)
}
