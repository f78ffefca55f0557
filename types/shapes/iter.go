package shapes

import "iter"

// Leaves iterates over the leaf (non-tuple) sub-shapes in depth-first order, yielding
// the ShapeIndex of each leaf and the leaf itself. A non-tuple shape yields itself
// once with the empty index. An invalid shape yields nothing.
//
// To avoid allocating one slice per leaf, the yielded index is owned by the Leaves()
// method: don't change it or retain it past the loop body, Clone it if needed.
func (s Shape) Leaves() iter.Seq2[ShapeIndex, Shape] {
	return func(yield func(ShapeIndex, Shape) bool) {
		if !s.Ok() {
			return
		}
		index := make(ShapeIndex, 0, 4)
		s.yieldLeaves(index, yield)
	}
}

func (s Shape) yieldLeaves(index ShapeIndex, yield func(ShapeIndex, Shape) bool) bool {
	if !s.IsTuple() {
		return yield(index, s)
	}
	for ii, subShape := range s.TupleShapes {
		if !subShape.yieldLeaves(append(index, ii), yield) {
			return false
		}
	}
	return true
}

// NumLeaves returns the number of leaf (non-tuple) sub-shapes. A non-tuple shape has
// one leaf, itself.
func (s Shape) NumLeaves() int {
	if !s.Ok() {
		return 0
	}
	if !s.IsTuple() {
		return 1
	}
	count := 0
	for _, subShape := range s.TupleShapes {
		count += subShape.NumLeaves()
	}
	return count
}
