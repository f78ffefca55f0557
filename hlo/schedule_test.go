package hlo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScheduleCreation(t *testing.T) {
	m := NewModule("sched")
	c := m.NewComputation("main")
	a := c.Parameter("a", MS(F32, 4))
	b := c.Negate(a)
	d := c.Negate(b)
	c.SetRoot(d)

	require.False(t, m.HasSchedule())
	s := m.CreateSchedule()
	require.True(t, m.HasSchedule())
	require.Equal(t, s, m.Schedule())
	require.Equal(t, []*Instruction{a, b, d}, s.Sequence(c))
}

func TestScheduleUpdateInsertsNewInstructions(t *testing.T) {
	m := NewModule("sched_insert")
	c := m.NewComputation("main")
	a := c.Parameter("a", MS(F32, 4))
	b := c.Negate(a)
	d := c.Negate(b)
	c.SetRoot(d)
	s := m.CreateSchedule()

	// Simulate a pass: a copy of a, created after everything, rewired as b's operand.
	cp := c.Copy(a)
	require.NoError(t, b.ReplaceOperand(0, cp))

	require.NoError(t, s.Update())
	require.Equal(t, []*Instruction{a, cp, b, d}, s.Sequence(c))

	// Idempotent: a second update changes nothing.
	require.NoError(t, s.Update())
	require.Equal(t, []*Instruction{a, cp, b, d}, s.Sequence(c))
}

func TestScheduleUpdateKeepsSurvivorOrder(t *testing.T) {
	m := NewModule("sched_order")
	c := m.NewComputation("main")
	a := c.Parameter("a", MS(F32, 4))
	x := c.Negate(a)
	y := c.Negate(x)
	c.SetRoot(y)
	s := m.CreateSchedule()

	// New instructions are sequenced as late as their users allow: the copy only
	// feeds y, so it goes after x.
	cp := c.Copy(a)
	require.NoError(t, y.ReplaceOperand(0, cp))
	require.NoError(t, s.Update())
	require.Equal(t, []*Instruction{a, x, cp, y}, s.Sequence(c))
}

func TestScheduleUpdateDropsRemovedInstructions(t *testing.T) {
	m := NewModule("sched_drop")
	c := m.NewComputation("main")
	a := c.Parameter("a", MS(F32, 4))
	unused := c.Abs(a)
	b := c.Negate(a)
	c.SetRoot(b)
	s := m.CreateSchedule()
	require.Equal(t, []*Instruction{a, unused, b}, s.Sequence(c))

	require.NoError(t, c.RemoveInstruction(unused))
	require.NoError(t, s.Update())
	require.Equal(t, []*Instruction{a, b}, s.Sequence(c))
}

func TestScheduleCoversAllComputations(t *testing.T) {
	m := NewModule("sched_multi")
	main := m.NewComputation("main")
	state := MS(F32, 4)

	cond := m.NewComputation("cond")
	cond.Parameter("s", state)
	cond.SetRoot(cond.Constant(NewScalarLiteral(false)))

	body := m.NewComputation("body")
	bs := body.Parameter("s", state)
	bneg := body.Negate(bs)
	body.SetRoot(bneg)

	init := main.Parameter("init", state)
	loop := main.While(cond, body, init)
	main.SetRoot(loop)

	s := m.CreateSchedule()
	require.Equal(t, []*Instruction{init, loop}, s.Sequence(main))
	require.Equal(t, []*Instruction{bs, bneg}, s.Sequence(body))

	// A copy inserted inside the loop body is sequenced there on update.
	cp := body.Copy(bs)
	require.NoError(t, bneg.ReplaceOperand(0, cp))
	require.NoError(t, s.Update())
	require.Equal(t, []*Instruction{bs, cp, bneg}, s.Sequence(body))
}
