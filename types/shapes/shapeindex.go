// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"slices"
	"strconv"
	"strings"
)

// ShapeIndex addresses one sub-shape inside a (possibly nested) tuple shape: each
// element selects one position of the tuple at that nesting level. The empty index
// addresses the shape itself.
//
// ShapeIndex is a plain slice: the usual Go value/backing-array sharing rules apply.
// Methods that grow the index allocate a new backing array; use Clone before storing
// an index that may be mutated by the caller.
type ShapeIndex []int

// Empty returns whether the index addresses the shape itself.
func (si ShapeIndex) Empty() bool { return len(si) == 0 }

// Front returns the first element of the index. Panics if empty.
func (si ShapeIndex) Front() int { return si[0] }

// PopFront returns the index without its first element. The result shares the
// backing array with si.
func (si ShapeIndex) PopFront() ShapeIndex { return si[1:] }

// PushFront returns a new index with the given element prepended.
func (si ShapeIndex) PushFront(element int) ShapeIndex {
	newIndex := make(ShapeIndex, 0, len(si)+1)
	newIndex = append(newIndex, element)
	return append(newIndex, si...)
}

// PushBack returns a new index with the given element appended.
func (si ShapeIndex) PushBack(element int) ShapeIndex {
	newIndex := make(ShapeIndex, 0, len(si)+1)
	newIndex = append(newIndex, si...)
	return append(newIndex, element)
}

// Clone returns a copy of the index with its own backing array.
func (si ShapeIndex) Clone() ShapeIndex { return slices.Clone(si) }

// Equal returns whether both indices address the same sub-shape.
func (si ShapeIndex) Equal(other ShapeIndex) bool { return slices.Equal(si, other) }

// String implements stringer, prints as "{1,0}". The empty index prints as "{}".
func (si ShapeIndex) String() string {
	parts := make([]string, len(si))
	for ii, element := range si {
		parts[ii] = strconv.Itoa(element)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Key returns a compact representation usable as a map or set key. Two indices have
// the same key iff they are Equal.
func (si ShapeIndex) Key() string {
	if len(si) == 0 {
		return ""
	}
	parts := make([]string, len(si))
	for ii, element := range si {
		parts[ii] = strconv.Itoa(element)
	}
	return strings.Join(parts, ".")
}
