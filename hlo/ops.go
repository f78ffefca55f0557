// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hlo

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/hlo/types/shapes"
)

// This file holds the builder methods of Computation, one per constructible opcode.
// They panic (see github.com/gomlx/exceptions) on invalid inputs: building a graph
// with bad shapes or operands is a programming error, not a runtime condition.

// Parameter creates a parameter instruction. The parameter number is the order of
// creation. If name is empty, "p<number>" is used. The given shape may carry memory
// space tags, e.g. for values streamed from host memory.
func (c *Computation) Parameter(name string, shape shapes.Shape) *Instruction {
	if !shape.Ok() {
		exceptions.Panicf("Parameter: invalid shape for parameter %q of computation %q", name, c.name)
	}
	number := len(c.parameters)
	if name == "" {
		name = fmt.Sprintf("p%d", number)
	}
	i := c.newInstruction(OpCodeParameter, shape.Clone())
	i.name = name
	i.parameterNumber = number
	c.parameters = append(c.parameters, i)
	return i
}

// Constant creates a constant instruction with the given literal value.
func (c *Computation) Constant(literal *Literal) *Instruction {
	if literal == nil {
		exceptions.Panicf("Constant: nil literal in computation %q", c.name)
	}
	i := c.newInstruction(OpCodeConstant, literal.Shape().Clone())
	i.literal = literal
	return i
}

// Iota creates an instruction that fills the given shape with indices increasing
// along the given axis.
func (c *Computation) Iota(shape shapes.Shape, iotaAxis int) *Instruction {
	if shape.IsTuple() || iotaAxis < 0 || iotaAxis >= shape.Rank() {
		exceptions.Panicf("Iota: invalid axis %d for shape %s", iotaAxis, shape)
	}
	i := c.newInstruction(OpCodeIota, shape.Clone())
	i.iotaAxis = iotaAxis
	return i
}

// Broadcast creates an instruction that materializes a scalar operand into an array
// with the given dimensions.
func (c *Computation) Broadcast(operand *Instruction, dimensions ...int) *Instruction {
	c.checkOperands(OpCodeBroadcast, operand)
	if !operand.shape.IsScalar() {
		exceptions.Panicf("Broadcast: operand %s must be a scalar, got shape %s", operand.name, operand.shape)
	}
	return c.newInstruction(OpCodeBroadcast, shapes.Make(operand.shape.DType, dimensions...), operand)
}

// Copy creates an instruction that copies its operand into a fresh buffer. The copy
// output keeps the operand's memory space; see Instruction.SetMemorySpaceAt to place
// it elsewhere.
func (c *Computation) Copy(operand *Instruction) *Instruction {
	c.checkOperands(OpCodeCopy, operand)
	return c.newInstruction(OpCodeCopy, operand.shape.Clone(), operand)
}

// Bitcast creates an instruction reinterpreting the operand's buffer as the given
// shape. The total memory of both shapes must match.
func (c *Computation) Bitcast(operand *Instruction, shape shapes.Shape) *Instruction {
	c.checkOperands(OpCodeBitcast, operand)
	if shape.IsTuple() || shape.Memory() != operand.shape.Memory() {
		exceptions.Panicf("Bitcast: shape %s doesn't reinterpret the memory of operand %s with shape %s",
			shape, operand.name, operand.shape)
	}
	return c.newInstruction(OpCodeBitcast, shape.Clone(), operand)
}

// Reshape creates an instruction with the operand's data rearranged to the given
// dimensions. The total size must not change.
func (c *Computation) Reshape(operand *Instruction, dimensions ...int) *Instruction {
	c.checkOperands(OpCodeReshape, operand)
	if operand.shape.IsTuple() {
		exceptions.Panicf("Reshape: operand %s is a tuple", operand.name)
	}
	shape := shapes.Make(operand.shape.DType, dimensions...)
	if shape.Size() != operand.shape.Size() {
		exceptions.Panicf("Reshape: cannot reshape %s of shape %s to %v, sizes differ",
			operand.name, operand.shape, dimensions)
	}
	return c.newInstruction(OpCodeReshape, shape, operand)
}

// Tuple creates an instruction packing the operands into a tuple. The tuple shape
// leaves inherit the operands' memory spaces.
func (c *Computation) Tuple(operands ...*Instruction) *Instruction {
	c.checkOperands(OpCodeTuple, operands...)
	elements := make([]shapes.Shape, len(operands))
	for idx, operand := range operands {
		elements[idx] = operand.shape.Clone()
	}
	return c.newInstruction(OpCodeTuple, shapes.MakeTuple(elements), operands...)
}

// GetTupleElement creates an instruction extracting one element of a tuple-valued
// operand.
func (c *Computation) GetTupleElement(operand *Instruction, index int) *Instruction {
	c.checkOperands(OpCodeGetTupleElement, operand)
	if !operand.shape.IsTuple() {
		exceptions.Panicf("GetTupleElement: operand %s is not a tuple (shape=%s)", operand.name, operand.shape)
	}
	if index < 0 || index >= operand.shape.TupleSize() {
		exceptions.Panicf("GetTupleElement: index %d out-of-range for operand %s with shape %s",
			index, operand.name, operand.shape)
	}
	i := c.newInstruction(OpCodeGetTupleElement, operand.shape.TupleShapes[index].Clone(), operand)
	i.tupleIndex = index
	return i
}

// Slice creates an instruction extracting the static sub-array
// [starts[0]:limits[0], starts[1]:limits[1], ...] of the operand. Strides other than
// 1 are not supported.
func (c *Computation) Slice(operand *Instruction, starts, limits []int) *Instruction {
	c.checkOperands(OpCodeSlice, operand)
	rank := operand.shape.Rank()
	if operand.shape.IsTuple() || len(starts) != rank || len(limits) != rank {
		exceptions.Panicf("Slice: operand %s of shape %s requires %d starts and limits, got %d and %d",
			operand.name, operand.shape, rank, len(starts), len(limits))
	}
	dimensions := make([]int, rank)
	for axis := range starts {
		if starts[axis] < 0 || starts[axis] >= limits[axis] || limits[axis] > operand.shape.Dimensions[axis] {
			exceptions.Panicf("Slice: invalid range [%d:%d] for axis %d of operand %s with shape %s",
				starts[axis], limits[axis], axis, operand.name, operand.shape)
		}
		dimensions[axis] = limits[axis] - starts[axis]
	}
	i := c.newInstruction(OpCodeSlice, shapes.Make(operand.shape.DType, dimensions...), operand)
	i.sliceStarts = slices.Clone(starts)
	i.sliceLimits = slices.Clone(limits)
	return i
}

// DynamicSlice creates an instruction extracting a sub-array with the given sizes,
// starting at runtime offsets given by the scalar integer startIndices, one per axis.
func (c *Computation) DynamicSlice(operand *Instruction, startIndices []*Instruction, sizes []int) *Instruction {
	operands := append([]*Instruction{operand}, startIndices...)
	c.checkOperands(OpCodeDynamicSlice, operands...)
	rank := operand.shape.Rank()
	if operand.shape.IsTuple() || len(startIndices) != rank || len(sizes) != rank {
		exceptions.Panicf("DynamicSlice: operand %s of shape %s requires %d start indices and sizes, got %d and %d",
			operand.name, operand.shape, rank, len(startIndices), len(sizes))
	}
	c.checkScalarIndices(OpCodeDynamicSlice, startIndices)
	for axis, size := range sizes {
		if size <= 0 || size > operand.shape.Dimensions[axis] {
			exceptions.Panicf("DynamicSlice: invalid size %d for axis %d of operand %s with shape %s",
				size, axis, operand.name, operand.shape)
		}
	}
	i := c.newInstruction(OpCodeDynamicSlice, shapes.Make(operand.shape.DType, sizes...), operands...)
	i.dynamicSliceSizes = slices.Clone(sizes)
	return i
}

// DynamicUpdateSlice creates an instruction writing update into operand at the
// runtime offsets given by the scalar integer startIndices, one per axis. The result
// shares the operand's shape.
func (c *Computation) DynamicUpdateSlice(operand, update *Instruction, startIndices []*Instruction) *Instruction {
	operands := append([]*Instruction{operand, update}, startIndices...)
	c.checkOperands(OpCodeDynamicUpdateSlice, operands...)
	if operand.shape.IsTuple() || update.shape.IsTuple() {
		exceptions.Panicf("DynamicUpdateSlice: tuple operands are not supported (%s, %s)",
			operand.shape, update.shape)
	}
	rank := operand.shape.Rank()
	if update.shape.DType != operand.shape.DType || update.shape.Rank() != rank || len(startIndices) != rank {
		exceptions.Panicf("DynamicUpdateSlice: update %s of shape %s doesn't fit operand %s of shape %s with %d start indices",
			update.name, update.shape, operand.name, operand.shape, len(startIndices))
	}
	c.checkScalarIndices(OpCodeDynamicUpdateSlice, startIndices)
	for axis := 0; axis < rank; axis++ {
		if update.shape.Dimensions[axis] > operand.shape.Dimensions[axis] {
			exceptions.Panicf("DynamicUpdateSlice: update %s of shape %s is larger than operand %s of shape %s on axis %d",
				update.name, update.shape, operand.name, operand.shape, axis)
		}
	}
	return c.newInstruction(OpCodeDynamicUpdateSlice, operand.shape.Clone(), operands...)
}

// Concatenate creates an instruction concatenating the operands along the given axis.
func (c *Computation) Concatenate(axis int, operands ...*Instruction) *Instruction {
	c.checkOperands(OpCodeConcatenate, operands...)
	if len(operands) == 0 {
		exceptions.Panicf("Concatenate: requires at least one operand")
	}
	first := operands[0].shape
	if first.IsTuple() || axis < 0 || axis >= first.Rank() {
		exceptions.Panicf("Concatenate: invalid axis %d for operand %s with shape %s",
			axis, operands[0].name, first)
	}
	dimensions := slices.Clone(first.Dimensions)
	for _, operand := range operands[1:] {
		if operand.shape.DType != first.DType || operand.shape.Rank() != first.Rank() {
			exceptions.Panicf("Concatenate: operand %s with shape %s is incompatible with %s",
				operand.name, operand.shape, first)
		}
		for otherAxis := 0; otherAxis < first.Rank(); otherAxis++ {
			if otherAxis != axis && operand.shape.Dimensions[otherAxis] != first.Dimensions[otherAxis] {
				exceptions.Panicf("Concatenate: operand %s with shape %s differs from %s outside axis %d",
					operand.name, operand.shape, first, axis)
			}
		}
		dimensions[axis] += operand.shape.Dimensions[axis]
	}
	i := c.newInstruction(OpCodeConcatenate, shapes.Make(first.DType, dimensions...), operands...)
	i.concatenateAxis = axis
	return i
}

// CustomCall creates an instruction calling an opaque external target, producing the
// given shape. Use Instruction.SetBackendConfig to attach a configuration payload.
func (c *Computation) CustomCall(target string, shape shapes.Shape, operands ...*Instruction) *Instruction {
	c.checkOperands(OpCodeCustomCall, operands...)
	if target == "" {
		exceptions.Panicf("CustomCall: empty target in computation %q", c.name)
	}
	i := c.newInstruction(OpCodeCustomCall, shape.Clone(), operands...)
	i.customCallTarget = target
	return i
}

// Call creates an instruction calling another computation of the same module with
// the given operands.
func (c *Computation) Call(callee *Computation, operands ...*Instruction) *Instruction {
	c.checkOperands(OpCodeCall, operands...)
	c.checkCalled(OpCodeCall, callee)
	if len(operands) != callee.NumParameters() {
		exceptions.Panicf("Call: computation %q takes %d parameters, got %d operands",
			callee.name, callee.NumParameters(), len(operands))
	}
	for idx, operand := range operands {
		if !operand.shape.Equal(callee.parameters[idx].shape) {
			exceptions.Panicf("Call: operand #%d (%s) with shape %s doesn't match parameter %q of computation %q with shape %s",
				idx, operand.name, operand.shape, callee.parameters[idx].name, callee.name, callee.parameters[idx].shape)
		}
	}
	i := c.newInstruction(OpCodeCall, callee.root.shape.Clone(), operands...)
	i.calledComputations = []*Computation{callee}
	return i
}

// While creates a loop instruction: body is applied to the loop state starting from
// init for as long as condition holds. Both computations take one parameter with
// init's shape; condition must produce a Bool scalar, body must produce the state
// shape again.
func (c *Computation) While(condition, body *Computation, init *Instruction) *Instruction {
	c.checkOperands(OpCodeWhile, init)
	c.checkCalled(OpCodeWhile, condition, body)
	for _, called := range []*Computation{condition, body} {
		if called.NumParameters() != 1 || !called.parameters[0].shape.Equal(init.shape) {
			exceptions.Panicf("While: computation %q must take exactly one parameter with shape %s",
				called.name, init.shape)
		}
	}
	if !condition.root.shape.Equal(shapes.Make(dtypes.Bool)) {
		exceptions.Panicf("While: condition %q must produce a Bool scalar, got %s",
			condition.name, condition.root.shape)
	}
	if !body.root.shape.Equal(init.shape) {
		exceptions.Panicf("While: body %q produces %s, must produce the state shape %s",
			body.name, body.root.shape, init.shape)
	}
	i := c.newInstruction(OpCodeWhile, init.shape.Clone(), init)
	i.calledComputations = []*Computation{condition, body}
	return i
}

// Conditional creates an instruction selecting one branch computation based on the
// scalar integer branchIndex, passing it the corresponding branch argument. All
// branches must produce the same shape.
func (c *Computation) Conditional(branchIndex *Instruction, branches []*Computation, branchArgs []*Instruction) *Instruction {
	operands := append([]*Instruction{branchIndex}, branchArgs...)
	c.checkOperands(OpCodeConditional, operands...)
	c.checkCalled(OpCodeConditional, branches...)
	if len(branches) == 0 || len(branches) != len(branchArgs) {
		exceptions.Panicf("Conditional: got %d branches and %d branch arguments", len(branches), len(branchArgs))
	}
	if !branchIndex.shape.IsScalar() || !(branchIndex.shape.DType.IsInt() || branchIndex.shape.DType == dtypes.Bool) {
		exceptions.Panicf("Conditional: branch index %s must be a scalar integer or Bool, got %s",
			branchIndex.name, branchIndex.shape)
	}
	result := branches[0].root.shape
	for idx, branch := range branches {
		if branch.NumParameters() != 1 || !branch.parameters[0].shape.Equal(branchArgs[idx].shape) {
			exceptions.Panicf("Conditional: branch %q must take exactly one parameter with the shape of its argument %s",
				branch.name, branchArgs[idx].shape)
		}
		if !branch.root.shape.Equal(result) {
			exceptions.Panicf("Conditional: branch %q produces %s, others produce %s",
				branch.name, branch.root.shape, result)
		}
	}
	i := c.newInstruction(OpCodeConditional, result.Clone(), operands...)
	i.calledComputations = slices.Clone(branches)
	return i
}

// OptimizationBarrier creates an instruction that forwards its operand unchanged but
// blocks optimizations from moving computations across it.
func (c *Computation) OptimizationBarrier(operand *Instruction) *Instruction {
	c.checkOperands(OpCodeOptimizationBarrier, operand)
	return c.newInstruction(OpCodeOptimizationBarrier, operand.shape.Clone(), operand)
}

// Convert creates an instruction converting the operand element-wise to the given
// dtype.
func (c *Computation) Convert(operand *Instruction, dtype dtypes.DType) *Instruction {
	c.checkOperands(OpCodeConvert, operand)
	if operand.shape.IsTuple() {
		exceptions.Panicf("Convert: operand %s is a tuple", operand.name)
	}
	shape := operand.shape.Clone()
	shape.DType = dtype
	return c.newInstruction(OpCodeConvert, shape, operand)
}

// Unary element-wise operations: the result has the operand's shape.

func (c *Computation) Abs(operand *Instruction) *Instruction { return c.unaryOp(OpCodeAbs, operand) }
func (c *Computation) Exp(operand *Instruction) *Instruction { return c.unaryOp(OpCodeExp, operand) }
func (c *Computation) Log(operand *Instruction) *Instruction { return c.unaryOp(OpCodeLog, operand) }
func (c *Computation) Negate(operand *Instruction) *Instruction {
	return c.unaryOp(OpCodeNegate, operand)
}
func (c *Computation) Rsqrt(operand *Instruction) *Instruction {
	return c.unaryOp(OpCodeRsqrt, operand)
}
func (c *Computation) Sqrt(operand *Instruction) *Instruction { return c.unaryOp(OpCodeSqrt, operand) }
func (c *Computation) Tanh(operand *Instruction) *Instruction { return c.unaryOp(OpCodeTanh, operand) }

func (c *Computation) unaryOp(opcode OpCode, operand *Instruction) *Instruction {
	c.checkOperands(opcode, operand)
	if operand.shape.IsTuple() {
		exceptions.Panicf("%s: operand %s is a tuple", opcode, operand.name)
	}
	return c.newInstruction(opcode, operand.shape.Clone(), operand)
}

// Binary element-wise operations: both operands must have the same shape, no implicit
// broadcasting.

func (c *Computation) Add(lhs, rhs *Instruction) *Instruction { return c.binaryOp(OpCodeAdd, lhs, rhs) }
func (c *Computation) Divide(lhs, rhs *Instruction) *Instruction {
	return c.binaryOp(OpCodeDivide, lhs, rhs)
}
func (c *Computation) Maximum(lhs, rhs *Instruction) *Instruction {
	return c.binaryOp(OpCodeMaximum, lhs, rhs)
}
func (c *Computation) Minimum(lhs, rhs *Instruction) *Instruction {
	return c.binaryOp(OpCodeMinimum, lhs, rhs)
}
func (c *Computation) Multiply(lhs, rhs *Instruction) *Instruction {
	return c.binaryOp(OpCodeMultiply, lhs, rhs)
}
func (c *Computation) Power(lhs, rhs *Instruction) *Instruction {
	return c.binaryOp(OpCodePower, lhs, rhs)
}
func (c *Computation) Subtract(lhs, rhs *Instruction) *Instruction {
	return c.binaryOp(OpCodeSubtract, lhs, rhs)
}

func (c *Computation) binaryOp(opcode OpCode, lhs, rhs *Instruction) *Instruction {
	c.checkOperands(opcode, lhs, rhs)
	if lhs.shape.IsTuple() || !lhs.shape.Equal(rhs.shape) {
		exceptions.Panicf("%s: operands %s and %s must have the same non-tuple shape, got %s and %s",
			opcode, lhs.name, rhs.name, lhs.shape, rhs.shape)
	}
	return c.newInstruction(opcode, lhs.shape.Clone(), lhs, rhs)
}

// checkScalarIndices validates the start indices of the dynamic slicing ops.
func (c *Computation) checkScalarIndices(opcode OpCode, startIndices []*Instruction) {
	for idx, start := range startIndices {
		if !start.shape.IsScalar() || !start.shape.DType.IsInt() {
			exceptions.Panicf("%s: start index #%d (%s) must be a scalar integer, got shape %s",
				opcode, idx, start.name, start.shape)
		}
	}
}

// checkCalled validates computations called by a new instruction.
func (c *Computation) checkCalled(opcode OpCode, called ...*Computation) {
	for _, computation := range called {
		if computation == nil || computation.module != c.module {
			exceptions.Panicf("%s: called computation must belong to module %q", opcode, c.module.name)
		}
		if computation.root == nil {
			exceptions.Panicf("%s: called computation %q has no root set", opcode, computation.name)
		}
	}
}
