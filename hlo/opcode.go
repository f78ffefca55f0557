// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hlo

// OpCode is an enum of the operations an Instruction can perform.
//
// It covers the usual opcode space of an HLO-style IR: not every opcode has a builder
// method in Computation, but passes and analyses classify instructions by OpCode, so
// they are all enumerated here.
//
// The string form is the kebab-case name, e.g. OpCodeDynamicUpdateSlice prints as
// "dynamic-update-slice".
type OpCode int

//go:generate go tool enumer -type=OpCode -trimprefix=OpCode -transform=kebab -output=gen_opcode_enumer.go opcode.go

const (
	OpCodeInvalid OpCode = iota

	// Data plumbing and control flow.
	OpCodeParameter
	OpCodeConstant
	OpCodeIota
	OpCodeBroadcast
	OpCodeCopy
	OpCodeBitcast
	OpCodeReshape
	OpCodeTuple
	OpCodeGetTupleElement
	OpCodeSlice
	OpCodeDynamicSlice
	OpCodeDynamicUpdateSlice
	OpCodeConcatenate
	OpCodeCall
	OpCodeWhile
	OpCodeConditional
	OpCodeCustomCall
	OpCodeOptimizationBarrier
	OpCodeAfterAll

	// Element-wise and general compute.
	OpCodeAbs
	OpCodeAdd
	OpCodeCompare
	OpCodeConvert
	OpCodeDivide
	OpCodeDot
	OpCodeExp
	OpCodeLog
	OpCodeMaximum
	OpCodeMinimum
	OpCodeMultiply
	OpCodeNegate
	OpCodePower
	OpCodeReduce
	OpCodeRsqrt
	OpCodeSqrt
	OpCodeSubtract
	OpCodeTanh
)
