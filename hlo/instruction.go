// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hlo

import (
	"slices"

	"github.com/gomlx/hlo/types/shapes"
	"github.com/pkg/errors"
)

// Instruction is a node in a Computation graph: an operation with its operands (edges
// to the producing instructions) and the Shape of the value it produces.
//
// Instructions are created through the builder methods of Computation (see
// Computation.Parameter, Computation.Add, etc.) and are owned by the computation that
// created them. The operand edges are mirrored by user (consumer) edges, maintained by
// the mutation methods, so the graph can be traversed in both directions.
//
// Instructions have a module-wide unique id and a name derived from it, stable for the
// lifetime of the instruction, so they can be used as map keys through Position.
type Instruction struct {
	uniqueID    int
	name        string
	opcode      OpCode
	shape       shapes.Shape
	operands    []*Instruction
	users       []*Instruction
	computation *Computation

	// Per-opcode payloads: only the ones for this opcode are set.
	literal            *Literal
	parameterNumber    int
	tupleIndex         int
	sliceStarts        []int
	sliceLimits        []int
	dynamicSliceSizes  []int
	iotaAxis           int
	concatenateAxis    int
	customCallTarget   string
	backendConfig      string
	calledComputations []*Computation
}

// UniqueID of the instruction, unique within its Module.
func (i *Instruction) UniqueID() int { return i.uniqueID }

// Name of the instruction, unique within its Module, e.g. "dynamic-update-slice.7".
func (i *Instruction) Name() string { return i.name }

// Opcode of the instruction.
func (i *Instruction) Opcode() OpCode { return i.opcode }

// Shape of the value the instruction produces. The returned value shares the backing
// slices of the instruction's shape: treat it as read-only, use the SetMemorySpaceAt
// and similar methods to mutate.
func (i *Instruction) Shape() shapes.Shape { return i.shape }

// Computation that owns this instruction. Nil after the instruction is removed.
func (i *Instruction) Computation() *Computation { return i.computation }

// Module that owns this instruction.
func (i *Instruction) Module() *Module { return i.computation.module }

// NumOperands returns the number of operands.
func (i *Instruction) NumOperands() int { return len(i.operands) }

// Operand returns the idx-th operand.
func (i *Instruction) Operand(idx int) *Instruction { return i.operands[idx] }

// Operands of the instruction. Don't modify the returned slice.
func (i *Instruction) Operands() []*Instruction { return i.operands }

// OperandIndices returns the operand slots (possibly none or several) in which the
// given instruction appears as an operand.
func (i *Instruction) OperandIndices(operand *Instruction) []int {
	var indices []int
	for idx, op := range i.operands {
		if op == operand {
			indices = append(indices, idx)
		}
	}
	return indices
}

// Users returns the instructions that consume this instruction's value, in the order
// they first became users. Don't modify the returned slice.
func (i *Instruction) Users() []*Instruction { return i.users }

// IsRoot returns whether this instruction is the root of its computation.
func (i *Instruction) IsRoot() bool { return i.computation != nil && i.computation.root == i }

// Literal of an OpCodeConstant instruction, nil otherwise.
func (i *Instruction) Literal() *Literal { return i.literal }

// ParameterNumber of an OpCodeParameter instruction.
func (i *Instruction) ParameterNumber() int { return i.parameterNumber }

// TupleIndex of an OpCodeGetTupleElement instruction.
func (i *Instruction) TupleIndex() int { return i.tupleIndex }

// SliceStarts of an OpCodeSlice instruction, one per axis.
func (i *Instruction) SliceStarts() []int { return i.sliceStarts }

// SliceLimits of an OpCodeSlice instruction, one per axis (exclusive).
func (i *Instruction) SliceLimits() []int { return i.sliceLimits }

// DynamicSliceSizes of an OpCodeDynamicSlice instruction, one per axis.
func (i *Instruction) DynamicSliceSizes() []int { return i.dynamicSliceSizes }

// CustomCallTarget of an OpCodeCustomCall instruction, empty otherwise.
func (i *Instruction) CustomCallTarget() string { return i.customCallTarget }

// IsCustomCall returns whether this is an OpCodeCustomCall with the given target.
func (i *Instruction) IsCustomCall(target string) bool {
	return i.opcode == OpCodeCustomCall && i.customCallTarget == target
}

// BackendConfig is an opaque string attached to the instruction, used by annotations
// and backends. Empty if not set.
func (i *Instruction) BackendConfig() string { return i.backendConfig }

// SetBackendConfig attaches an opaque backend configuration string.
func (i *Instruction) SetBackendConfig(config string) { i.backendConfig = config }

// CalledComputations returns the computations called by this instruction: the callee
// of an OpCodeCall, {condition, body} of an OpCodeWhile or the branches of an
// OpCodeConditional. Don't modify the returned slice.
func (i *Instruction) CalledComputations() []*Computation { return i.calledComputations }

// WhileCondition returns the condition computation of an OpCodeWhile instruction.
func (i *Instruction) WhileCondition() *Computation { return i.calledComputations[0] }

// WhileBody returns the body computation of an OpCodeWhile instruction.
func (i *Instruction) WhileBody() *Computation { return i.calledComputations[1] }

// Branches returns the branch computations of an OpCodeConditional instruction.
func (i *Instruction) Branches() []*Computation { return i.calledComputations }

// MemorySpaceAt returns the memory space of the leaf of the instruction's shape at
// the given index.
func (i *Instruction) MemorySpaceAt(index shapes.ShapeIndex) shapes.MemorySpace {
	return i.shape.MemorySpaceAt(index)
}

// SetMemorySpaceAt sets the memory space of the leaf of the instruction's shape at
// the given index.
func (i *Instruction) SetMemorySpaceAt(index shapes.ShapeIndex, space shapes.MemorySpace) {
	i.shape.SetMemorySpaceAt(index, space)
}

// addUser registers user as a consumer, keeping the list deduplicated.
func (i *Instruction) addUser(user *Instruction) {
	if !slices.Contains(i.users, user) {
		i.users = append(i.users, user)
	}
}

// removeUser unregisters user as a consumer. No-op if it is not one.
func (i *Instruction) removeUser(user *Instruction) {
	if idx := slices.Index(i.users, user); idx >= 0 {
		i.users = slices.Delete(i.users, idx, idx+1)
	}
}

// ReplaceOperand replaces the operand at the given slot with newOperand, keeping the
// user lists of both producers up to date. The new operand must produce a value of
// the same logical shape (memory space may differ) and belong to the same module.
func (i *Instruction) ReplaceOperand(operandIdx int, newOperand *Instruction) error {
	if operandIdx < 0 || operandIdx >= len(i.operands) {
		return errors.Errorf("ReplaceOperand: %s has %d operands, operand index %d out-of-range",
			i.name, len(i.operands), operandIdx)
	}
	if newOperand == nil || newOperand.computation == nil {
		return errors.Errorf("ReplaceOperand: new operand for %s is nil or was removed from its computation", i.name)
	}
	if newOperand.Module() != i.Module() {
		return errors.Errorf("ReplaceOperand: new operand %s belongs to a different module than %s",
			newOperand.name, i.name)
	}
	old := i.operands[operandIdx]
	if !old.shape.Equal(newOperand.shape) {
		return errors.Errorf("ReplaceOperand: new operand %s has shape %s, incompatible with %s of the replaced operand %s",
			newOperand.name, newOperand.shape, old.shape, old.name)
	}
	if old == newOperand {
		return nil
	}
	i.operands[operandIdx] = newOperand
	if !slices.Contains(i.operands, old) {
		old.removeUser(i)
	}
	newOperand.addUser(i)
	return nil
}

// ReplaceUseWith replaces every operand slot of user that consumes this instruction
// with newProducer. Fails if user doesn't consume this instruction.
func (i *Instruction) ReplaceUseWith(user, newProducer *Instruction) error {
	indices := user.OperandIndices(i)
	if len(indices) == 0 {
		return errors.Errorf("ReplaceUseWith: %s is not an operand of %s", i.name, user.name)
	}
	for _, idx := range indices {
		if err := user.ReplaceOperand(idx, newProducer); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceAllUsesWith redirects every user of this instruction to consume newProducer
// instead. If newProducer is itself a user (e.g. a copy of this instruction), its use
// is kept, so the graph stays acyclic. If this instruction is the root of its
// computation, newProducer becomes the root.
func (i *Instruction) ReplaceAllUsesWith(newProducer *Instruction) error {
	for _, user := range slices.Clone(i.users) {
		if user == newProducer {
			continue
		}
		if err := i.ReplaceUseWith(user, newProducer); err != nil {
			return err
		}
	}
	if i.IsRoot() {
		i.computation.root = newProducer
	}
	return nil
}
