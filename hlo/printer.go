// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hlo

import (
	"fmt"
	"strings"
)

// Text rendering of modules, computations and instructions, for logging, error
// messages and tests. There is no parser for this format.

// String implements stringer: the instruction as one line of the module rendering,
// e.g. `copy.5 = (Float32)[16]@host copy(move-to-host.2)`.
func (i *Instruction) String() string {
	var b strings.Builder
	b.WriteString(i.name)
	b.WriteString(" = ")
	b.WriteString(i.shape.String())
	b.WriteString(" ")
	b.WriteString(i.opcode.String())
	b.WriteString("(")
	switch i.opcode {
	case OpCodeConstant:
		b.WriteString(i.literal.String())
	case OpCodeParameter:
		fmt.Fprintf(&b, "%d", i.parameterNumber)
	default:
		for idx, operand := range i.operands {
			if idx > 0 {
				b.WriteString(", ")
			}
			b.WriteString(operand.name)
		}
	}
	b.WriteString(")")
	i.writeAttributes(&b)
	return b.String()
}

// writeAttributes appends the per-opcode attributes, e.g. `, target="move-to-host"`.
func (i *Instruction) writeAttributes(b *strings.Builder) {
	switch i.opcode {
	case OpCodeIota:
		fmt.Fprintf(b, ", axis=%d", i.iotaAxis)
	case OpCodeConcatenate:
		fmt.Fprintf(b, ", axis=%d", i.concatenateAxis)
	case OpCodeGetTupleElement:
		fmt.Fprintf(b, ", index=%d", i.tupleIndex)
	case OpCodeSlice:
		ranges := make([]string, len(i.sliceStarts))
		for axis := range i.sliceStarts {
			ranges[axis] = fmt.Sprintf("[%d:%d]", i.sliceStarts[axis], i.sliceLimits[axis])
		}
		fmt.Fprintf(b, ", slice={%s}", strings.Join(ranges, ", "))
	case OpCodeDynamicSlice:
		sizes := make([]string, len(i.dynamicSliceSizes))
		for axis, size := range i.dynamicSliceSizes {
			sizes[axis] = fmt.Sprintf("%d", size)
		}
		fmt.Fprintf(b, ", sizes={%s}", strings.Join(sizes, ","))
	case OpCodeCustomCall:
		fmt.Fprintf(b, ", target=%q", i.customCallTarget)
	case OpCodeCall:
		fmt.Fprintf(b, ", to=%s", i.calledComputations[0].name)
	case OpCodeWhile:
		fmt.Fprintf(b, ", condition=%s, body=%s", i.WhileCondition().name, i.WhileBody().name)
	case OpCodeConditional:
		names := make([]string, len(i.calledComputations))
		for idx, branch := range i.calledComputations {
			names[idx] = branch.name
		}
		fmt.Fprintf(b, ", branches={%s}", strings.Join(names, ", "))
	}
	if i.backendConfig != "" {
		fmt.Fprintf(b, ", backend_config=%q", i.backendConfig)
	}
}

// String implements stringer, rendering the computation as a block of instructions.
// Instructions print in schedule order if the module is scheduled, in creation order
// otherwise. The root is marked with a "ROOT" prefix.
func (c *Computation) String() string {
	var b strings.Builder
	c.write(&b)
	return b.String()
}

func (c *Computation) write(b *strings.Builder) {
	if c.IsEntry() {
		b.WriteString("ENTRY ")
	}
	b.WriteString(c.name)
	b.WriteString(" {\n")
	sequence := c.instructions
	if c.module.schedule != nil {
		if scheduled := c.module.schedule.sequences[c]; scheduled != nil {
			sequence = scheduled
		}
	}
	for _, instruction := range sequence {
		b.WriteString("  ")
		if instruction == c.root {
			b.WriteString("ROOT ")
		}
		b.WriteString(instruction.String())
		b.WriteString("\n")
	}
	b.WriteString("}\n")
}

// String implements stringer, rendering the whole module. The entry computation
// prints first, the remaining ones in creation order.
func (m *Module) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "HloModule %s", m.name)
	if m.schedule != nil {
		b.WriteString(", is_scheduled=true")
	}
	b.WriteString("\n")
	if m.entry != nil {
		b.WriteString("\n")
		m.entry.write(&b)
	}
	for _, computation := range m.computations {
		if computation == m.entry {
			continue
		}
		b.WriteString("\n")
		computation.write(&b)
	}
	return b.String()
}
