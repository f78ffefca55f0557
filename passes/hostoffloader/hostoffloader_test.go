package hostoffloader

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/hlo/hlo"
	"github.com/gomlx/hlo/passes"
	"github.com/gomlx/hlo/types/shapes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

var (
	F32 = dtypes.Float32
	I32 = dtypes.Int32

	MS = shapes.Make
)

func hostShape(dtype dtypes.DType, dimensions ...int) shapes.Shape {
	s := shapes.Make(dtype, dimensions...)
	s.MemorySpace = shapes.HostMemorySpace
	return s
}

// countOpcode returns the instructions of the whole module with the given opcode.
func countOpcode(m *hlo.Module, opcode hlo.OpCode) (found []*hlo.Instruction) {
	for _, computation := range m.Computations() {
		for _, instruction := range computation.Instructions() {
			if instruction.Opcode() == opcode {
				found = append(found, instruction)
			}
		}
	}
	return
}

func requireNoAnnotations(t *testing.T, m *hlo.Module) {
	t.Helper()
	for _, customCall := range countOpcode(m, hlo.OpCodeCustomCall) {
		require.NotEqual(t, MoveToHostTarget, customCall.CustomCallTarget(),
			"annotation %s not stripped", customCall.Name())
		require.NotEqual(t, MoveToDeviceTarget, customCall.CustomCallTarget(),
			"annotation %s not stripped", customCall.Name())
	}
}

func TestNoAnnotationsIsNoOp(t *testing.T) {
	m := hlo.NewModule("noop")
	c := m.NewComputation("main")
	x := c.Parameter("x", MS(F32, 4))
	y := c.Tanh(x)
	c.SetRoot(c.Add(x, y))
	before := m.String()

	changed, err := New(shapes.HostMemorySpace).Run(m)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, before, m.String())
}

// The basic offload chain: parameter -> move-to-host -> copy -> move-to-device ->
// root. The existing copy becomes the transfer to host, one device copy is inserted
// at the re-entry and both annotations disappear.
func TestOffloadThroughCopy(t *testing.T) {
	m := hlo.NewModule("basic")
	c := m.NewComputation("main")
	p := c.Parameter("p", MS(F32, 16))
	toHost := c.CustomCall(MoveToHostTarget, p.Shape(), p)
	c1 := c.Copy(toHost)
	toDevice := c.CustomCall(MoveToDeviceTarget, c1.Shape(), c1)
	c.SetRoot(toDevice)

	changed, err := New(shapes.HostMemorySpace).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireNoAnnotations(t, m)

	// c1 moved to host, the inserted copy brings the value back to device and is
	// the new root.
	require.Equal(t, shapes.HostMemorySpace, c1.MemorySpaceAt(shapes.ShapeIndex{}))
	copies := countOpcode(m, hlo.OpCodeCopy)
	require.Len(t, copies, 2)
	root := c.Root()
	require.Equal(t, hlo.OpCodeCopy, root.Opcode())
	require.Equal(t, shapes.DefaultMemorySpace, root.MemorySpaceAt(shapes.ShapeIndex{}))
	require.Equal(t, c1, root.Operand(0))
	// The stripped move-to-host left p wired straight into c1.
	require.Equal(t, p, c1.Operand(0))
}

func TestComputeOnOffloadPathFails(t *testing.T) {
	m := hlo.NewModule("compute")
	c := m.NewComputation("main")
	p := c.Parameter("p", MS(F32, 16))
	toHost := c.CustomCall(MoveToHostTarget, p.Shape(), p)
	sum := c.Add(toHost, p)
	toDevice := c.CustomCall(MoveToDeviceTarget, sum.Shape(), sum)
	c.SetRoot(toDevice)
	before := m.String()

	changed, err := New(shapes.HostMemorySpace).Run(m)
	require.ErrorIs(t, err, ErrComputeOnOffloadPath)
	require.Contains(t, err.Error(), sum.Name())
	require.False(t, changed)
	// Validation failed before any mutation: the module is untouched.
	require.Equal(t, before, m.String())
}

// A move-to-host with no realizing copy downstream gets one inserted in its place.
func TestInsertedHostCopy(t *testing.T) {
	m := hlo.NewModule("insert_host_copy")
	c := m.NewComputation("main")
	p := c.Parameter("p", MS(F32, 4, 4))
	toHost := c.CustomCall(MoveToHostTarget, p.Shape(), p)
	reshaped := c.Reshape(toHost, 16)
	toDevice := c.CustomCall(MoveToDeviceTarget, reshaped.Shape(), reshaped)
	c.SetRoot(toDevice)

	changed, err := New(shapes.HostMemorySpace).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireNoAnnotations(t, m)

	// One copy to host after p, the reshape on host, one copy back to device.
	copies := countOpcode(m, hlo.OpCodeCopy)
	require.Len(t, copies, 2)
	require.Equal(t, shapes.HostMemorySpace, reshaped.MemorySpaceAt(shapes.ShapeIndex{}))
	require.Equal(t, hlo.OpCodeCopy, reshaped.Operand(0).Opcode())
	require.Equal(t, shapes.HostMemorySpace, reshaped.Operand(0).MemorySpaceAt(shapes.ShapeIndex{}))
	require.Equal(t, p, reshaped.Operand(0).Operand(0))
	require.Equal(t, hlo.OpCodeCopy, c.Root().Opcode())
	require.Equal(t, shapes.DefaultMemorySpace, c.Root().MemorySpaceAt(shapes.ShapeIndex{}))
}

// Streaming write: the move-to-host pairs with a dynamic-update-slice, which is
// rewritten to write into an explicit host buffer allocation; the device re-entry
// still gets its copy.
func TestDynamicUpdateSlicePairing(t *testing.T) {
	m := hlo.NewModule("dus")
	c := m.NewComputation("main")
	update := c.Parameter("update", MS(F32, 2, 8))
	offset := c.Parameter("offset", MS(I32))
	zero := c.Constant(hlo.NewScalarLiteral(float32(0)))
	destination := c.Broadcast(zero, 16, 8)
	toHost := c.CustomCall(MoveToHostTarget, update.Shape(), update)
	dus := c.DynamicUpdateSlice(destination, toHost,
		[]*hlo.Instruction{offset, c.Constant(hlo.NewScalarLiteral(int32(0)))})
	toDevice := c.CustomCall(MoveToDeviceTarget, dus.Shape(), dus)
	c.SetRoot(toDevice)

	changed, err := New(shapes.HostMemorySpace).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireNoAnnotations(t, m)

	// The broadcast became a host allocation and the slice-update writes host
	// memory; the update operand is the original device parameter.
	require.Equal(t, shapes.HostMemorySpace, dus.MemorySpaceAt(shapes.ShapeIndex{}))
	require.Equal(t, update, dus.Operand(1))
	require.Empty(t, countOpcode(m, hlo.OpCodeBroadcast))
	var allocations []*hlo.Instruction
	for _, customCall := range countOpcode(m, hlo.OpCodeCustomCall) {
		if customCall.CustomCallTarget() == AllocateBufferTarget {
			allocations = append(allocations, customCall)
		}
	}
	require.Len(t, allocations, 1)
	require.Equal(t, shapes.HostMemorySpace, allocations[0].MemorySpaceAt(shapes.ShapeIndex{}))
	require.Equal(t, allocations[0], dus.Operand(0))
	// One device copy at the re-entry, no host copy: the slice-update is the
	// transfer.
	copies := countOpcode(m, hlo.OpCodeCopy)
	require.Len(t, copies, 1)
	require.Equal(t, copies[0], c.Root())
	require.Equal(t, shapes.DefaultMemorySpace, copies[0].MemorySpaceAt(shapes.ShapeIndex{}))
}

// Convergence: two walk paths reaching the same move-to-device insert exactly one
// copy.
func TestConvergentPathsInsertOneCopy(t *testing.T) {
	m := hlo.NewModule("converge")
	c := m.NewComputation("main")
	p := c.Parameter("p", MS(F32, 8))
	toHost := c.CustomCall(MoveToHostTarget, p.Shape(), p)
	c1 := c.Copy(toHost)
	tuple := c.Tuple(c1, c1)
	left := c.GetTupleElement(tuple, 0)
	right := c.GetTupleElement(tuple, 1)
	both := c.Concatenate(0, left, right)
	toDevice := c.CustomCall(MoveToDeviceTarget, both.Shape(), both)
	c.SetRoot(toDevice)

	changed, err := New(shapes.HostMemorySpace).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireNoAnnotations(t, m)

	for _, instruction := range []*hlo.Instruction{c1, left, right, both} {
		require.Equal(t, shapes.HostMemorySpace, instruction.MemorySpaceAt(shapes.ShapeIndex{}),
			"%s should be in host memory", instruction.Name())
	}
	require.Equal(t, shapes.HostMemorySpace, tuple.MemorySpaceAt(shapes.ShapeIndex{0}))
	require.Equal(t, shapes.HostMemorySpace, tuple.MemorySpaceAt(shapes.ShapeIndex{1}))
	// c1 plus exactly one inserted device copy.
	require.Len(t, countOpcode(m, hlo.OpCodeCopy), 2)
}

// Input streaming: a host-tagged entry parameter starts a walk without any
// annotation.
func TestInputStreaming(t *testing.T) {
	m := hlo.NewModule("input_streaming")
	c := m.NewComputation("main")
	streamed := c.Parameter("streamed", hostShape(F32, 32))
	forwarded := c.OptimizationBarrier(streamed)
	toDevice := c.CustomCall(MoveToDeviceTarget, forwarded.Shape(), forwarded)
	c.SetRoot(toDevice)

	changed, err := New(shapes.HostMemorySpace).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireNoAnnotations(t, m)
	require.Equal(t, shapes.HostMemorySpace, forwarded.MemorySpaceAt(shapes.ShapeIndex{}))
	require.Equal(t, hlo.OpCodeCopy, c.Root().Opcode())
	require.Equal(t, shapes.DefaultMemorySpace, c.Root().MemorySpaceAt(shapes.ShapeIndex{}))
}

// Output streaming: the offloaded value may flow into the entry root and stay in
// host memory.
func TestOutputStreaming(t *testing.T) {
	m := hlo.NewModule("output_streaming")
	c := m.NewComputation("main")
	p := c.Parameter("p", MS(F32, 8))
	toHost := c.CustomCall(MoveToHostTarget, p.Shape(), p)
	c1 := c.Copy(toHost)
	c.SetRoot(c1)

	changed, err := New(shapes.HostMemorySpace).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireNoAnnotations(t, m)
	require.Equal(t, c1, c.Root())
	require.Equal(t, shapes.HostMemorySpace, c1.MemorySpaceAt(shapes.ShapeIndex{}))
	require.Equal(t, p, c1.Operand(0))
}

// Streaming read: a static slice of a host buffer is rewritten as a dynamic-slice
// and its move-to-device needs no copy.
func TestSliceReadDynamified(t *testing.T) {
	m := hlo.NewModule("dynamify")
	c := m.NewComputation("main")
	p := c.Parameter("p", MS(F32, 16))
	toHost := c.CustomCall(MoveToHostTarget, p.Shape(), p)
	c1 := c.Copy(toHost)
	window := c.Slice(c1, []int{4}, []int{8})
	toDevice := c.CustomCall(MoveToDeviceTarget, window.Shape(), window)
	c.SetRoot(toDevice)

	changed, err := New(shapes.HostMemorySpace).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireNoAnnotations(t, m)

	require.Empty(t, countOpcode(m, hlo.OpCodeSlice))
	dynamicSlices := countOpcode(m, hlo.OpCodeDynamicSlice)
	require.Len(t, dynamicSlices, 1)
	ds := dynamicSlices[0]
	require.Equal(t, c1, ds.Operand(0))
	require.Equal(t, []int{4}, ds.DynamicSliceSizes())
	require.Equal(t, hlo.OpCodeConstant, ds.Operand(1).Opcode())
	require.Equal(t, []int32{4}, ds.Operand(1).Literal().Flat())
	// The slice output is the device re-entry: no extra copy inserted.
	require.Len(t, countOpcode(m, hlo.OpCodeCopy), 1)
	require.Equal(t, shapes.DefaultMemorySpace, ds.MemorySpaceAt(shapes.ShapeIndex{}))
	require.Equal(t, ds, c.Root())
}

func TestSliceReadRequiresMoveToDevice(t *testing.T) {
	m := hlo.NewModule("bad_read")
	c := m.NewComputation("main")
	p := c.Parameter("p", MS(F32, 16))
	toHost := c.CustomCall(MoveToHostTarget, p.Shape(), p)
	c1 := c.Copy(toHost)
	window := c.Slice(c1, []int{0}, []int{4})
	sum := c.Add(window, c.Slice(p, []int{0}, []int{4}))
	c.SetRoot(sum)
	before := m.String()

	changed, err := New(shapes.HostMemorySpace).Run(m)
	require.ErrorIs(t, err, ErrBadStreamingOp)
	require.Contains(t, err.Error(), sum.Name())
	require.False(t, changed)
	require.Equal(t, before, m.String())
}

// A nested move-to-host on an already offloaded path is redundant and stripped
// without extra copies.
func TestRedundantMoveToHost(t *testing.T) {
	m := hlo.NewModule("redundant")
	c := m.NewComputation("main")
	p := c.Parameter("p", MS(F32, 8))
	first := c.CustomCall(MoveToHostTarget, p.Shape(), p)
	c1 := c.Copy(first)
	second := c.CustomCall(MoveToHostTarget, c1.Shape(), c1)
	c2 := c.Copy(second)
	toDevice := c.CustomCall(MoveToDeviceTarget, c2.Shape(), c2)
	c.SetRoot(toDevice)

	changed, err := New(shapes.HostMemorySpace).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireNoAnnotations(t, m)
	require.Equal(t, shapes.HostMemorySpace, c1.MemorySpaceAt(shapes.ShapeIndex{}))
	require.Equal(t, shapes.HostMemorySpace, c2.MemorySpaceAt(shapes.ShapeIndex{}))
	require.Equal(t, c1, c2.Operand(0))
	// c1, c2 and the single device re-entry copy.
	require.Len(t, countOpcode(m, hlo.OpCodeCopy), 3)
}

// A stray move-to-device with no offloaded producer is stripped without a copy.
func TestStrayMoveToDevice(t *testing.T) {
	m := hlo.NewModule("stray")
	c := m.NewComputation("main")
	p := c.Parameter("p", MS(F32, 8))
	toDevice := c.CustomCall(MoveToDeviceTarget, p.Shape(), p)
	c.SetRoot(c.Negate(toDevice))

	changed, err := New(shapes.HostMemorySpace).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireNoAnnotations(t, m)
	require.Empty(t, countOpcode(m, hlo.OpCodeCopy))
	require.Equal(t, p, c.Root().Operand(0))
}

// Streaming accumulation: a dynamic-update-slice inside a while body writes into a
// loop-carried buffer. The whole buffer, through the loop plumbing, moves to host
// memory and its broadcast definition in the entry becomes a host allocation.
func TestWhileLoopAccumulation(t *testing.T) {
	m := hlo.NewModule("while_accumulate")

	stateShape := shapes.MakeTuple([]shapes.Shape{MS(F32, 16), MS(I32)})

	cond := m.NewComputation("cond")
	cond.Parameter("state", stateShape)
	cond.SetRoot(cond.Constant(hlo.NewScalarLiteral(false)))

	body := m.NewComputation("body")
	state := body.Parameter("state", stateShape)
	buffer := body.GetTupleElement(state, 0)
	step := body.GetTupleElement(state, 1)
	chunk := body.Constant(hlo.NewLiteralFromFlat([]float32{1, 2}, 2))
	toHost := body.CustomCall(MoveToHostTarget, chunk.Shape(), chunk)
	dus := body.DynamicUpdateSlice(buffer, toHost, []*hlo.Instruction{step})
	next := body.Add(step, body.Constant(hlo.NewScalarLiteral(int32(2))))
	body.SetRoot(body.Tuple(dus, next))

	entry := m.NewComputation("main")
	m.SetEntryComputation(entry)
	zero := entry.Constant(hlo.NewScalarLiteral(float32(0)))
	initial := entry.Broadcast(zero, 16)
	init := entry.Tuple(initial, entry.Constant(hlo.NewScalarLiteral(int32(0))))
	loop := entry.While(cond, body, init)
	result := entry.GetTupleElement(loop, 0)
	toDevice := entry.CustomCall(MoveToDeviceTarget, result.Shape(), result)
	entry.SetRoot(toDevice)

	changed, err := New(shapes.HostMemorySpace).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireNoAnnotations(t, m)

	// The buffer is host memory everywhere the alias analysis says it lives.
	require.Equal(t, shapes.HostMemorySpace, dus.MemorySpaceAt(shapes.ShapeIndex{}))
	require.Equal(t, shapes.HostMemorySpace, buffer.MemorySpaceAt(shapes.ShapeIndex{}))
	require.Equal(t, shapes.HostMemorySpace, state.MemorySpaceAt(shapes.ShapeIndex{0}))
	require.Equal(t, shapes.HostMemorySpace, loop.MemorySpaceAt(shapes.ShapeIndex{0}))
	require.Equal(t, shapes.HostMemorySpace, init.MemorySpaceAt(shapes.ShapeIndex{0}))
	require.Equal(t, shapes.HostMemorySpace, result.MemorySpaceAt(shapes.ShapeIndex{}))
	// The step counter stays on device.
	require.Equal(t, shapes.DefaultMemorySpace, state.MemorySpaceAt(shapes.ShapeIndex{1}))
	require.Equal(t, shapes.DefaultMemorySpace, loop.MemorySpaceAt(shapes.ShapeIndex{1}))

	// The broadcast became a host allocation and the root is the device re-entry
	// copy.
	require.Empty(t, countOpcode(m, hlo.OpCodeBroadcast))
	require.Equal(t, hlo.OpCodeCopy, entry.Root().Opcode())
	require.Equal(t, shapes.DefaultMemorySpace, entry.Root().MemorySpaceAt(shapes.ShapeIndex{}))
}

// The pass repairs the module schedule after inserting copies, and a second repair
// is a no-op.
func TestScheduleRepair(t *testing.T) {
	m := hlo.NewModule("scheduled")
	c := m.NewComputation("main")
	p := c.Parameter("p", MS(F32, 16))
	toHost := c.CustomCall(MoveToHostTarget, p.Shape(), p)
	c1 := c.Copy(toHost)
	toDevice := c.CustomCall(MoveToDeviceTarget, c1.Shape(), c1)
	c.SetRoot(toDevice)
	m.CreateSchedule()

	changed, err := New(shapes.HostMemorySpace).Run(m)
	require.NoError(t, err)
	require.True(t, changed)

	sequence := m.Schedule().Sequence(c)
	require.Len(t, sequence, len(c.Instructions()))
	positions := make(map[*hlo.Instruction]int, len(sequence))
	for idx, instruction := range sequence {
		positions[instruction] = idx
	}
	for _, instruction := range c.Instructions() {
		for _, operand := range instruction.Operands() {
			require.Less(t, positions[operand], positions[instruction],
				"%s scheduled before its operand %s", instruction.Name(), operand.Name())
		}
	}

	// Idempotence of the repair.
	before := append([]*hlo.Instruction(nil), sequence...)
	require.NoError(t, m.Schedule().Update())
	require.Equal(t, before, m.Schedule().Sequence(c))
}

// The backend config payload on annotations is opaque: it must not affect the run.
func TestAnnotationBackendConfigIsOpaque(t *testing.T) {
	m := hlo.NewModule("opaque_config")
	c := m.NewComputation("main")
	p := c.Parameter("p", MS(F32, 4))
	toHost := c.CustomCall(MoveToHostTarget, p.Shape(), p)
	toHost.SetBackendConfig(`{"pipeline":3}`)
	c1 := c.Copy(toHost)
	toDevice := c.CustomCall(MoveToDeviceTarget, c1.Shape(), c1)
	c.SetRoot(toDevice)

	changed, err := New(shapes.HostMemorySpace).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireNoAnnotations(t, m)
}

// The pass plugs into a pipeline like any other pass.
func TestRunsInPipeline(t *testing.T) {
	m := hlo.NewModule("pipelined")
	c := m.NewComputation("main")
	p := c.Parameter("p", MS(F32, 8))
	toHost := c.CustomCall(MoveToHostTarget, p.Shape(), p)
	c1 := c.Copy(toHost)
	toDevice := c.CustomCall(MoveToDeviceTarget, c1.Shape(), c1)
	c.SetRoot(toDevice)

	pipeline := passes.NewPipeline("offload", New(shapes.HostMemorySpace))
	changed, err := pipeline.Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireNoAnnotations(t, m)
}

// A custom memory space color is honored end to end.
func TestCustomHostColor(t *testing.T) {
	const color = shapes.MemorySpace(11)
	m := hlo.NewModule("custom_color")
	c := m.NewComputation("main")
	p := c.Parameter("p", MS(F32, 8))
	toHost := c.CustomCall(MoveToHostTarget, p.Shape(), p)
	c1 := c.Copy(toHost)
	toDevice := c.CustomCall(MoveToDeviceTarget, c1.Shape(), c1)
	c.SetRoot(toDevice)

	changed, err := New(color).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, color, c1.MemorySpaceAt(shapes.ShapeIndex{}))
	require.Equal(t, shapes.DefaultMemorySpace, c.Root().MemorySpaceAt(shapes.ShapeIndex{}))
}

func TestErrorsAreMachineCheckable(t *testing.T) {
	require.NotErrorIs(t, errors.Wrapf(ErrComputeOnOffloadPath, "context"), ErrBadStreamingOp)
	require.ErrorIs(t, errors.Wrapf(ErrComputeOnOffloadPath, "context"), ErrComputeOnOffloadPath)
	require.ErrorIs(t, errors.Wrapf(ErrBadStreamingOp, "context"), ErrBadStreamingOp)
}
