// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hlo

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/hlo/types/shapes"
	"github.com/pkg/errors"
)

// Computation is one function of a Module: a DAG of instructions with parameters and
// one root instruction whose value is the computation's result.
//
// Computations are created with Module.NewComputation and instructions are added with
// the builder methods (Parameter, Constant, Add, ...). Instructions are kept in
// creation order. The root must be set explicitly with SetRoot before the module is
// used by analyses or passes.
type Computation struct {
	name         string
	module       *Module
	instructions []*Instruction
	parameters   []*Instruction
	root         *Instruction
}

// Name of the computation, unique within its module.
func (c *Computation) Name() string { return c.name }

// Module that owns this computation.
func (c *Computation) Module() *Module { return c.module }

// Instructions in creation order. Don't modify the returned slice.
func (c *Computation) Instructions() []*Instruction { return c.instructions }

// NumParameters returns the number of parameters of the computation.
func (c *Computation) NumParameters() int { return len(c.parameters) }

// Parameters of the computation, ordered by parameter number. Don't modify the
// returned slice.
func (c *Computation) Parameters() []*Instruction { return c.parameters }

// ParameterInstruction returns the parameter with the given parameter number.
func (c *Computation) ParameterInstruction(number int) *Instruction {
	if number < 0 || number >= len(c.parameters) {
		exceptions.Panicf("computation %q has %d parameters, no parameter number %d",
			c.name, len(c.parameters), number)
	}
	return c.parameters[number]
}

// Root instruction, whose value is the result of the computation.
func (c *Computation) Root() *Instruction { return c.root }

// SetRoot makes root the root instruction of the computation. It must belong to this
// computation.
func (c *Computation) SetRoot(root *Instruction) {
	if root == nil || root.computation != c {
		exceptions.Panicf("SetRoot: instruction doesn't belong to computation %q", c.name)
	}
	c.root = root
}

// IsEntry returns whether this is the entry computation of its module.
func (c *Computation) IsEntry() bool { return c.module.entry == c }

// Callers returns the instructions anywhere in the module that call this computation
// (OpCodeCall, OpCodeWhile or OpCodeConditional), in module creation order.
func (c *Computation) Callers() []*Instruction {
	var callers []*Instruction
	for _, computation := range c.module.computations {
		for _, instruction := range computation.instructions {
			if slices.Contains(instruction.calledComputations, c) {
				callers = append(callers, instruction)
			}
		}
	}
	return callers
}

// RemoveInstruction removes an instruction without users from the computation. The
// instruction must not be the root or a parameter. Its operands' user lists are
// updated accordingly.
func (c *Computation) RemoveInstruction(i *Instruction) error {
	if i == nil || i.computation != c {
		return errors.Errorf("RemoveInstruction: instruction doesn't belong to computation %q", c.name)
	}
	if i == c.root {
		return errors.Errorf("RemoveInstruction: %s is the root of computation %q", i.name, c.name)
	}
	if i.opcode == OpCodeParameter {
		return errors.Errorf("RemoveInstruction: %s is a parameter of computation %q", i.name, c.name)
	}
	if len(i.users) > 0 {
		return errors.Errorf("RemoveInstruction: %s still has %d users (first is %s)",
			i.name, len(i.users), i.users[0].name)
	}
	for _, operand := range i.operands {
		operand.removeUser(i)
	}
	idx := slices.Index(c.instructions, i)
	if idx < 0 {
		return errors.Errorf("RemoveInstruction: %s not found in computation %q (!?)", i.name, c.name)
	}
	c.instructions = slices.Delete(c.instructions, idx, idx+1)
	i.computation = nil
	i.operands = nil
	return nil
}

// newInstruction creates an instruction of the given opcode and shape, registers it
// in the computation and in the user lists of its operands.
func (c *Computation) newInstruction(opcode OpCode, shape shapes.Shape, operands ...*Instruction) *Instruction {
	c.checkOperands(opcode, operands...)
	i := &Instruction{
		uniqueID:    c.module.nextUniqueID(),
		opcode:      opcode,
		shape:       shape,
		operands:    slices.Clone(operands),
		computation: c,
	}
	i.name = fmt.Sprintf("%s.%d", opcode, i.uniqueID)
	for _, operand := range operands {
		operand.addUser(i)
	}
	c.instructions = append(c.instructions, i)
	return i
}

// checkOperands validates that operands can be used to build a new instruction in
// this computation.
func (c *Computation) checkOperands(opcode OpCode, operands ...*Instruction) {
	for idx, operand := range operands {
		if operand == nil {
			exceptions.Panicf("%s: operand #%d is nil!?", opcode, idx)
		}
		if operand.computation == nil {
			exceptions.Panicf("%s: operand #%d (%s) was removed from its computation", opcode, idx, operand.name)
		}
		if operand.computation != c {
			exceptions.Panicf("%s: operand #%d (%s) belongs to computation %q, cannot use it in computation %q",
				opcode, idx, operand.name, operand.computation.name, c.name)
		}
	}
}
