// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape, ShapeIndex and MemorySpace, and associated tools.
//
// Shape represents the shape (rank, dimensions and DType) of the value produced by an
// instruction in a computation module, including nested tuples and the memory space
// (device or host) in which each leaf array lives.
//
// Go float16 support (commonly used by Nvidia GPUs) uses github.com/x448/float16
// implementation, and bfloat16 uses a simple implementation in
// github.com/gomlx/gopjrt/dtypes/bfloat16.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of an array.
//   - Axis: is the index of a dimension on a multidimensional array.
//   - Dimension: the size of an array in one of its axes.
//   - DType: the data type of the unit element in an array. Enumeration defined in
//     github.com/gomlx/gopjrt/dtypes
//   - Scalar: is a shape where there are no axes (or dimensions), only a single value
//     of the associated DType.
//   - Tuple: a shape composed of other shapes, possibly nested. A tuple shape has no
//     DType or dimensions of its own.
//   - Leaf: a non-tuple sub-shape, addressed by a ShapeIndex. A non-tuple shape is its
//     own single leaf, addressed by the empty index.
//   - MemorySpace: an integer tag on each leaf indicating where the array is expected
//     to live (accelerator device memory or host memory).
//
// Example: `shapes.Make(dtypes.Int32, 2, 3)` creates the shape of a rank-2 array with
// dimensions 2 and 3, in the default (device) memory space.
package shapes

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gopjrt/dtypes"
)

// Shape represents the shape of the value produced by an instruction in a computation,
// or of a literal constant.
//
// Use Make to create a new shape. See MakeTuple for tuple shapes.
type Shape struct {
	DType       DType
	Dimensions  []int
	TupleShapes []Shape // Shapes of the tuple, if this is a tuple.

	// MemorySpace where the array is expected to live. Only meaningful for leaf
	// (non-tuple) shapes; tuples carry one space per leaf, in their TupleShapes.
	MemorySpace MemorySpace
}

// Make returns a Shape structure filled with the values given, in the default (device)
// memory space. See MakeTuple for tuple shapes.
func Make(dtype DType, dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions), DType: dtype}
	for _, dim := range dimensions {
		if dim <= 0 {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with an axis with dimension <= 0", s)
		}
	}
	return s
}

// Scalar returns a scalar Shape for the given type.
func Scalar[T Number]() Shape {
	return Shape{DType: FromGenericsType[T]()}
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: InvalidDType}
}

// Ok returns whether this is a valid Shape. A "zero" shape, that is just instantiating
// it with Shape{} will be invalid.
func (s Shape) Ok() bool { return s.DType != InvalidDType || len(s.TupleShapes) > 0 }

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar, that is there are no
// dimensions (rank==0).
func (s Shape) IsScalar() bool { return s.Ok() && !s.IsTuple() && s.Rank() == 0 }

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// Shape returns a shallow copy of itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// String implements stringer, pretty-prints the shape. Leaves on a non-default memory
// space are annotated with "@<space>", e.g. `(Float32)[16 1024]@host`.
func (s Shape) String() string {
	if s.IsTuple() {
		parts := make([]string, 0, s.TupleSize())
		for _, tuple := range s.TupleShapes {
			parts = append(parts, tuple.String())
		}
		return fmt.Sprintf("Tuple<%s>", strings.Join(parts, ", "))
	}
	var space string
	if s.MemorySpace != DefaultMemorySpace {
		space = "@" + s.MemorySpace.String()
	}
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)%s", s.DType, space)
	}
	return fmt.Sprintf("(%s)%v%s", s.DType, s.Dimensions, space)
}

// Size returns the number of elements of DType are needed for this shape. It's the
// product of all dimensions.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Memory returns the memory used to store an array of the given shape, the same as
// the size in bytes. For tuples it is the sum over the leaves.
func (s Shape) Memory() uintptr {
	if s.IsTuple() {
		var total uintptr
		for _, subShape := range s.TupleShapes {
			total += subShape.Memory()
		}
		return total
	}
	return s.DType.Memory() * uintptr(s.Size())
}

// MakeTuple returns a shape representing a tuple of elements with the given shapes.
func MakeTuple(elements []Shape) Shape {
	return Shape{DType: InvalidDType, Dimensions: nil, TupleShapes: elements}
}

// IsTuple returns whether the shape represents a tuple.
func (s Shape) IsTuple() bool {
	return s.DType == InvalidDType && len(s.TupleShapes) > 0
}

// TupleSize returns the number of elements in the tuple, if it is a tuple.
func (s Shape) TupleSize() int {
	return len(s.TupleShapes)
}

// Equal compares two shapes for equality: dtype and dimensions are compared, the
// memory space is ignored. See EqualWithMemorySpace for the strict comparison.
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType {
		return false
	}
	if s.IsTuple() {
		if s.TupleSize() != s2.TupleSize() {
			return false
		}
		for ii, element := range s.TupleShapes {
			if !element.Equal(s2.TupleShapes[ii]) {
				return false
			}
		}
		return true
	}
	if s.Rank() != s2.Rank() {
		return false
	}
	if s.IsScalar() {
		return true
	}
	// For normal shapes just compare dimensions.
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// EqualWithMemorySpace compares two shapes for equality, including the memory space
// of every leaf.
func (s Shape) EqualWithMemorySpace(s2 Shape) bool {
	if !s.Equal(s2) {
		return false
	}
	if s.IsTuple() {
		for ii, element := range s.TupleShapes {
			if !element.EqualWithMemorySpace(s2.TupleShapes[ii]) {
				return false
			}
		}
		return true
	}
	return s.MemorySpace == s2.MemorySpace
}

// EqualDimensions compares two shapes for equality of dimensions. DTypes can be different.
func (s Shape) EqualDimensions(s2 Shape) bool {
	if s.IsTuple() {
		if !s2.IsTuple() {
			return false
		}
		if s.TupleSize() != s2.TupleSize() {
			return false
		}
		for ii, element := range s.TupleShapes {
			if !element.EqualDimensions(s2.TupleShapes[ii]) {
				return false
			}
		}
		return true
	}
	if s.Rank() != s2.Rank() {
		return false
	}
	if s.IsScalar() {
		return true
	}
	// For normal shapes just compare dimensions.
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.DType = s.DType
	s2.MemorySpace = s.MemorySpace
	s2.Dimensions = slices.Clone(s.Dimensions)
	if s.TupleSize() > 0 {
		s2.TupleShapes = make([]Shape, 0, len(s.TupleShapes))
		for _, subShape := range s.TupleShapes {
			s2.TupleShapes = append(s2.TupleShapes, subShape.Clone())
		}
	}
	return
}
