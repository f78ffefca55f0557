package aliasing

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/hlo/hlo"
	"github.com/gomlx/hlo/types/shapes"
	"github.com/stretchr/testify/require"
)

var (
	F32 = dtypes.Float32
	I32 = dtypes.Int32

	MS = shapes.Make
)

func at(i *hlo.Instruction, index ...int) hlo.Position {
	return hlo.Position{Instruction: i, Index: index}
}

func requireShared(t *testing.T, a *Analysis, p1, p2 hlo.Position, want bool) {
	t.Helper()
	shared, err := a.SharesBuffer(p1, p2)
	require.NoError(t, err)
	require.Equal(t, want, shared, "SharesBuffer(%s, %s)", p1, p2)
}

func TestFreshBuffers(t *testing.T) {
	m := hlo.NewModule("fresh")
	c := m.NewComputation("main")
	x := c.Parameter("x", MS(F32, 4))
	cp := c.Copy(x)
	neg := c.Negate(cp)
	c.SetRoot(neg)

	a, err := Run(m)
	require.NoError(t, err)
	require.Equal(t, m, a.Module())
	// Copies and compute define fresh buffers: three positions, three buffers.
	require.Len(t, a.Buffers(), 3)
	requireShared(t, a, at(x), at(cp), false)
	requireShared(t, a, at(cp), at(neg), false)
	requireShared(t, a, at(x), at(x), true)
}

func TestTuplePlumbingAndBitcast(t *testing.T) {
	m := hlo.NewModule("plumbing")
	c := m.NewComputation("main")
	x := c.Parameter("x", MS(F32, 4))
	y := c.Parameter("y", MS(I32, 2))
	tuple := c.Tuple(x, y)
	gx := c.GetTupleElement(tuple, 0)
	bx := c.Bitcast(gx, MS(F32, 2, 2))
	c.SetRoot(bx)

	a, err := Run(m)
	require.NoError(t, err)
	requireShared(t, a, at(x), at(tuple, 0), true)
	requireShared(t, a, at(y), at(tuple, 1), true)
	requireShared(t, a, at(x), at(tuple, 1), false)
	requireShared(t, a, at(gx), at(x), true)
	requireShared(t, a, at(bx), at(x), true)

	positions, err := a.BufferPositions(at(x))
	require.NoError(t, err)
	require.Len(t, positions, 4) // x, tuple{0}, gx, bx.
}

func TestDynamicUpdateSliceAliasesDestination(t *testing.T) {
	m := hlo.NewModule("dus")
	c := m.NewComputation("main")
	buffer := c.Parameter("buffer", MS(F32, 16))
	update := c.Parameter("update", MS(F32, 4))
	offset := c.Parameter("offset", MS(I32))
	dus := c.DynamicUpdateSlice(buffer, update, []*hlo.Instruction{offset})
	c.SetRoot(dus)

	a, err := Run(m)
	require.NoError(t, err)
	requireShared(t, a, at(dus), at(buffer), true)
	requireShared(t, a, at(dus), at(update), false)
}

func TestWhileUnifiesLoopState(t *testing.T) {
	m := hlo.NewModule("while")
	state := shapes.MakeTuple([]shapes.Shape{MS(F32, 8), MS(I32)})

	cond := m.NewComputation("cond")
	cond.Parameter("s", state)
	cond.SetRoot(cond.Constant(hlo.NewScalarLiteral(false)))

	body := m.NewComputation("body")
	s := body.Parameter("s", state)
	buffer := body.GetTupleElement(s, 0)
	step := body.GetTupleElement(s, 1)
	body.SetRoot(body.Tuple(buffer, step))

	main := m.NewComputation("main")
	m.SetEntryComputation(main)
	init := main.Tuple(main.Parameter("b", MS(F32, 8)), main.Parameter("i", MS(I32)))
	loop := main.While(cond, body, init)
	main.SetRoot(loop)

	a, err := Run(m)
	require.NoError(t, err)
	// The loop-carried buffer is one storage group from init to the while result,
	// through both computations' parameters.
	requireShared(t, a, at(init, 0), at(loop, 0), true)
	requireShared(t, a, at(init, 0), at(s, 0), true)
	requireShared(t, a, at(init, 0), at(buffer), true)
	requireShared(t, a, at(cond.ParameterInstruction(0), 0), at(loop, 0), true)
	// The two elements of the state stay distinct buffers.
	requireShared(t, a, at(loop, 0), at(loop, 1), false)
}

func TestDeterministicBufferIDs(t *testing.T) {
	build := func() *hlo.Module {
		m := hlo.NewModule("ids")
		c := m.NewComputation("main")
		x := c.Parameter("x", MS(F32, 4))
		tuple := c.Tuple(x, c.Copy(x))
		c.SetRoot(tuple)
		return m
	}
	a1, err := Run(build())
	require.NoError(t, err)
	a2, err := Run(build())
	require.NoError(t, err)
	require.Equal(t, len(a1.Buffers()), len(a2.Buffers()))
	for idx, buffer := range a1.Buffers() {
		require.Equal(t, idx, buffer.ID())
		require.Equal(t, len(buffer.Positions()), len(a2.Buffers()[idx].Positions()))
		for pi, p := range buffer.Positions() {
			other := a2.Buffers()[idx].Positions()[pi]
			require.Equal(t, p.Instruction.Name(), other.Instruction.Name())
			require.True(t, p.Index.Equal(other.Index))
		}
	}
}

func TestStaleAnalysis(t *testing.T) {
	m := hlo.NewModule("stale")
	c := m.NewComputation("main")
	x := c.Parameter("x", MS(F32, 4))
	c.SetRoot(c.Copy(x))

	a, err := Run(m)
	require.NoError(t, err)

	// A position created after the analysis is unknown to it.
	late := c.Copy(x)
	_, err = a.BufferAt(hlo.MakePosition(late))
	require.Error(t, err)
	_, err = a.BufferPositions(hlo.MakePosition(late))
	require.Error(t, err)
}
