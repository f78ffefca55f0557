package shapes

import (
	. "github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestShape(t *testing.T) {
	invalidShape := Invalid()
	require.False(t, invalidShape.Ok())

	shape0 := Make(Float64)
	require.True(t, shape0.Ok())
	require.True(t, shape0.IsScalar())
	require.False(t, shape0.IsTuple())
	require.Equal(t, 0, shape0.Rank())
	require.Len(t, shape0.Dimensions, 0)
	require.Equal(t, 1, shape0.Size())
	require.Equal(t, 8, int(shape0.Memory()))
	require.Equal(t, DefaultMemorySpace, shape0.MemorySpace)

	shape1 := Make(Float32, 4, 3, 2)
	require.True(t, shape1.Ok())
	require.False(t, shape1.IsScalar())
	require.False(t, shape1.IsTuple())
	require.Equal(t, 3, shape1.Rank())
	require.Len(t, shape1.Dimensions, 3)
	require.Equal(t, 4*3*2, shape1.Size())
	require.Equal(t, 4*4*3*2, int(shape1.Memory()))

	tuple := MakeTuple([]Shape{shape0, shape1})
	require.True(t, tuple.Ok())
	require.True(t, tuple.IsTuple())
	require.Equal(t, 2, tuple.TupleSize())
	require.Equal(t, 8+4*4*3*2, int(tuple.Memory()))
}

func TestDim(t *testing.T) {
	shape := Make(Float32, 4, 3, 2)
	require.Equal(t, 4, shape.Dim(0))
	require.Equal(t, 3, shape.Dim(1))
	require.Equal(t, 2, shape.Dim(2))
	require.Equal(t, 4, shape.Dim(-3))
	require.Equal(t, 3, shape.Dim(-2))
	require.Equal(t, 2, shape.Dim(-1))
	require.Panics(t, func() { _ = shape.Dim(3) })
	require.Panics(t, func() { _ = shape.Dim(-4) })
}

func TestEqual(t *testing.T) {
	a := Make(Float32, 4, 3)
	b := Make(Float32, 4, 3)
	require.True(t, a.Equal(b))
	require.True(t, a.EqualWithMemorySpace(b))

	b.MemorySpace = HostMemorySpace
	require.True(t, a.Equal(b))
	require.False(t, a.EqualWithMemorySpace(b))

	require.False(t, a.Equal(Make(Float32, 3, 4)))
	require.False(t, a.Equal(Make(Float64, 4, 3)))

	tupleA := MakeTuple([]Shape{a, Make(Int32)})
	tupleB := MakeTuple([]Shape{b, Make(Int32)})
	require.True(t, tupleA.Equal(tupleB))
	require.False(t, tupleA.EqualWithMemorySpace(tupleB))
}

func TestMemorySpaceAt(t *testing.T) {
	shape := MakeTuple([]Shape{
		Make(Float32, 4),
		MakeTuple([]Shape{Make(Int32, 2), Make(Bool)}),
	})
	require.True(t, shape.ValidIndex(ShapeIndex{1, 0}))
	require.False(t, shape.ValidIndex(ShapeIndex{2}))
	require.False(t, shape.ValidIndex(ShapeIndex{0, 0}))

	require.Equal(t, DefaultMemorySpace, shape.MemorySpaceAt(ShapeIndex{1, 0}))
	shape.SetMemorySpaceAt(ShapeIndex{1, 0}, HostMemorySpace)
	require.Equal(t, HostMemorySpace, shape.MemorySpaceAt(ShapeIndex{1, 0}))
	require.Equal(t, DefaultMemorySpace, shape.MemorySpaceAt(ShapeIndex{1, 1}))
	require.Equal(t, "Tuple<(Float32)[4], Tuple<(Int32)[2]@host, (Bool)>>", shape.String())

	// Addressing a tuple (and not a leaf) panics.
	require.Panics(t, func() { shape.MemorySpaceAt(ShapeIndex{1}) })
	require.Panics(t, func() { shape.SetMemorySpaceAt(ShapeIndex{3}, HostMemorySpace) })

	hostShape := shape.WithMemorySpace(HostMemorySpace)
	for index, leaf := range hostShape.Leaves() {
		require.Equal(t, HostMemorySpace, leaf.MemorySpace, "leaf %s", index)
	}
	// The original is unchanged.
	require.Equal(t, DefaultMemorySpace, shape.MemorySpaceAt(ShapeIndex{0}))
}

func TestLeaves(t *testing.T) {
	shape := MakeTuple([]Shape{
		Make(Float32, 4),
		MakeTuple([]Shape{Make(Int32, 2), Make(Bool)}),
	})
	var indices []ShapeIndex
	var leaves []Shape
	for index, leaf := range shape.Leaves() {
		indices = append(indices, index.Clone())
		leaves = append(leaves, leaf)
	}
	require.Equal(t, []ShapeIndex{{0}, {1, 0}, {1, 1}}, indices)
	require.Equal(t, []Shape{Make(Float32, 4), Make(Int32, 2), Make(Bool)}, leaves)
	require.Equal(t, 3, shape.NumLeaves())

	// A non-tuple shape is its own single leaf, at the empty index.
	scalar := Make(Float64)
	for index, leaf := range scalar.Leaves() {
		require.True(t, index.Empty())
		require.True(t, leaf.Equal(scalar))
	}
	require.Equal(t, 1, scalar.NumLeaves())
	require.Equal(t, 0, Invalid().NumLeaves())
}

func TestShapeIndex(t *testing.T) {
	index := ShapeIndex{1, 0}
	require.False(t, index.Empty())
	require.Equal(t, 1, index.Front())
	require.Equal(t, ShapeIndex{0}, index.PopFront())
	require.Equal(t, ShapeIndex{2, 1, 0}, index.PushFront(2))
	require.Equal(t, ShapeIndex{1, 0, 2}, index.PushBack(2))
	require.Equal(t, ShapeIndex{1, 0}, index, "push must not change the original")

	require.Equal(t, "{1,0}", index.String())
	require.Equal(t, "{}", ShapeIndex{}.String())
	require.Equal(t, "1.0", index.Key())
	require.Equal(t, "", ShapeIndex{}.Key())
	require.True(t, index.Equal(ShapeIndex{1, 0}))
	require.False(t, index.Equal(ShapeIndex{0, 1}))

	clone := index.Clone()
	clone[0] = 7
	require.Equal(t, 1, index.Front())
}
