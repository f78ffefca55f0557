// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"fmt"

	"github.com/gomlx/exceptions"
)

// MemorySpace tags where the array of a leaf shape is expected to live.
//
// The values are opaque "colors": the compiler only distinguishes the default (device)
// space from everything else. HostMemorySpace is the conventional color used for arrays
// offloaded to host memory.
type MemorySpace int64

const (
	// DefaultMemorySpace is the accelerator device memory. The zero value, so newly
	// made shapes live on device.
	DefaultMemorySpace MemorySpace = 0

	// HostMemorySpace is the conventional memory space color for host (CPU) memory.
	HostMemorySpace MemorySpace = 5
)

// String implements stringer.
func (m MemorySpace) String() string {
	switch m {
	case DefaultMemorySpace:
		return "device"
	case HostMemorySpace:
		return "host"
	default:
		return fmt.Sprintf("S(%d)", int64(m))
	}
}

// ValidIndex returns whether the given index addresses a sub-shape of s.
func (s Shape) ValidIndex(index ShapeIndex) bool {
	subShape := s
	for _, element := range index {
		if !subShape.IsTuple() || element < 0 || element >= subShape.TupleSize() {
			return false
		}
		subShape = subShape.TupleShapes[element]
	}
	return true
}

// SubShape returns a copy of the sub-shape at the given index. The empty index returns
// the shape itself. It panics for an invalid index, see ValidIndex.
func (s Shape) SubShape(index ShapeIndex) Shape {
	subShape := s
	for _, element := range index {
		if !subShape.IsTuple() || element < 0 || element >= subShape.TupleSize() {
			exceptions.Panicf("shapes.SubShape(%s): index %s doesn't address a sub-shape", s, index)
		}
		subShape = subShape.TupleShapes[element]
	}
	return subShape
}

// subShapeRef returns a pointer to the sub-shape at the given index, for in-place
// mutation. Same index rules as SubShape.
func (s *Shape) subShapeRef(index ShapeIndex) *Shape {
	subShape := s
	for _, element := range index {
		if !subShape.IsTuple() || element < 0 || element >= subShape.TupleSize() {
			exceptions.Panicf("shapes.SubShape(%s): index %s doesn't address a sub-shape", *s, index)
		}
		subShape = &subShape.TupleShapes[element]
	}
	return subShape
}

// MemorySpaceAt returns the memory space of the leaf shape at the given index.
// It panics for an invalid index or if the index addresses a tuple and not a leaf.
func (s Shape) MemorySpaceAt(index ShapeIndex) MemorySpace {
	subShape := s.SubShape(index)
	if subShape.IsTuple() {
		exceptions.Panicf("shapes.MemorySpaceAt(%s): index %s addresses a tuple, not a leaf", s, index)
	}
	return subShape.MemorySpace
}

// SetMemorySpaceAt sets the memory space of the leaf shape at the given index, in place.
// Same index rules as MemorySpaceAt.
func (s *Shape) SetMemorySpaceAt(index ShapeIndex, space MemorySpace) {
	subShape := s.subShapeRef(index)
	if subShape.IsTuple() {
		exceptions.Panicf("shapes.SetMemorySpaceAt(%s): index %s addresses a tuple, not a leaf", *s, index)
	}
	subShape.MemorySpace = space
}

// WithMemorySpace returns a deep copy of the shape with every leaf set to the given
// memory space.
func (s Shape) WithMemorySpace(space MemorySpace) Shape {
	s2 := s.Clone()
	for index := range s2.Leaves() {
		s2.SetMemorySpaceAt(index, space)
	}
	return s2
}
