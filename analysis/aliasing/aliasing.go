// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package aliasing computes which values of a module must share storage.
//
// The analysis groups the (instruction, shape index) positions of a module into
// Buffers: two positions land in the same Buffer iff every backend must place them in
// the same physical buffer. That covers value-forwarding plumbing (bitcast, tuple and
// get-tuple-element, optimization barriers), in-place updates (dynamic-update-slice
// writes into its destination buffer) and the parameter/result aliasing of calls,
// while loops and conditionals. Copies always produce a fresh buffer.
//
// The analysis is a snapshot: it is valid for the module as it was when Run was
// called and must be recomputed after mutations.
package aliasing

import (
	"slices"
	"sort"

	"github.com/gomlx/hlo/hlo"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Analysis holds the buffer grouping of one module. Create it with Run.
type Analysis struct {
	module  *hlo.Module
	buffers []*Buffer
	byKey   map[hlo.PositionKey]*Buffer
}

// Buffer is one storage equivalence group: the set of positions that must live in
// the same physical buffer.
type Buffer struct {
	id        int
	positions []hlo.Position
}

// ID of the buffer, unique and dense within its Analysis.
func (b *Buffer) ID() int { return b.id }

// Positions that share this buffer, ordered by instruction unique id and shape
// index. Don't modify the returned slice.
func (b *Buffer) Positions() []hlo.Position { return b.positions }

// Run computes the alias analysis of the module.
func Run(module *hlo.Module) (*Analysis, error) {
	b := newBuilder(module)
	if err := b.unifyAll(); err != nil {
		return nil, err
	}
	analysis := b.build()
	if klog.V(2).Enabled() {
		klog.Infof("aliasing: module %q has %d positions in %d buffers",
			module.Name(), len(b.nodes), len(analysis.buffers))
	}
	return analysis, nil
}

// Module the analysis was computed for.
func (a *Analysis) Module() *hlo.Module { return a.module }

// Buffers of the module, ordered by id. Don't modify the returned slice.
func (a *Analysis) Buffers() []*Buffer { return a.buffers }

// BufferAt returns the buffer holding the given position.
func (a *Analysis) BufferAt(p hlo.Position) (*Buffer, error) {
	buffer, found := a.byKey[p.Key()]
	if !found {
		return nil, errors.Errorf("aliasing: no buffer for position %s, the analysis may be stale", p)
	}
	return buffer, nil
}

// BufferPositions returns all positions sharing storage with the given position,
// including itself.
func (a *Analysis) BufferPositions(p hlo.Position) ([]hlo.Position, error) {
	buffer, err := a.BufferAt(p)
	if err != nil {
		return nil, err
	}
	return buffer.positions, nil
}

// SharesBuffer returns whether the two positions must share storage.
func (a *Analysis) SharesBuffer(p1, p2 hlo.Position) (bool, error) {
	b1, err := a.BufferAt(p1)
	if err != nil {
		return false, err
	}
	b2, err := a.BufferAt(p2)
	if err != nil {
		return false, err
	}
	return b1 == b2, nil
}

// builder enumerates every position of the module and union-finds the must-alias
// groups.
type builder struct {
	module    *hlo.Module
	nodes     []hlo.Position
	nodeByKey map[hlo.PositionKey]int
	parent    []int
}

func newBuilder(module *hlo.Module) *builder {
	b := &builder{module: module, nodeByKey: make(map[hlo.PositionKey]int)}
	for _, computation := range module.Computations() {
		for _, instruction := range computation.Instructions() {
			for index := range instruction.Shape().Leaves() {
				p := hlo.Position{Instruction: instruction, Index: index.Clone()}
				b.nodeByKey[p.Key()] = len(b.nodes)
				b.nodes = append(b.nodes, p)
				b.parent = append(b.parent, len(b.parent))
			}
		}
	}
	return b
}

func (b *builder) find(node int) int {
	for b.parent[node] != node {
		b.parent[node] = b.parent[b.parent[node]]
		node = b.parent[node]
	}
	return node
}

func (b *builder) union(p1, p2 hlo.Position) error {
	n1, found := b.nodeByKey[p1.Key()]
	if !found {
		return errors.Errorf("aliasing: position %s not enumerated (!?)", p1)
	}
	n2, found := b.nodeByKey[p2.Key()]
	if !found {
		return errors.Errorf("aliasing: position %s not enumerated (!?)", p2)
	}
	r1, r2 := b.find(n1), b.find(n2)
	if r1 != r2 {
		b.parent[r2] = r1
	}
	return nil
}

// unionLeaves unifies every leaf position of dst with the corresponding leaf of src,
// where dst addresses src's value through the given index prefixes:
// dst{dstPrefix + rest} aliases src{srcPrefix + rest}.
func (b *builder) unionLeaves(dst *hlo.Instruction, dstPrefix []int, src *hlo.Instruction, srcPrefix []int) error {
	srcShape := src.Shape().SubShape(srcPrefix)
	for rest := range srcShape.Leaves() {
		srcIndex := append(slices.Clone(srcPrefix), rest...)
		dstIndex := append(slices.Clone(dstPrefix), rest...)
		err := b.union(
			hlo.Position{Instruction: dst, Index: dstIndex},
			hlo.Position{Instruction: src, Index: srcIndex},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// unifyAll applies the must-alias rules of every instruction.
func (b *builder) unifyAll() error {
	for _, computation := range b.module.Computations() {
		for _, instruction := range computation.Instructions() {
			if err := b.unifyInstruction(instruction); err != nil {
				return errors.WithMessagef(err, "while unifying %s", instruction.Name())
			}
		}
	}
	return nil
}

func (b *builder) unifyInstruction(i *hlo.Instruction) error {
	switch i.Opcode() {
	case hlo.OpCodeBitcast, hlo.OpCodeOptimizationBarrier:
		return b.unionLeaves(i, nil, i.Operand(0), nil)

	case hlo.OpCodeDynamicUpdateSlice:
		// The result is an in-place update of the destination buffer.
		return b.unionLeaves(i, nil, i.Operand(0), nil)

	case hlo.OpCodeTuple:
		for idx, operand := range i.Operands() {
			if err := b.unionLeaves(i, []int{idx}, operand, nil); err != nil {
				return err
			}
		}
		return nil

	case hlo.OpCodeGetTupleElement:
		return b.unionLeaves(i, nil, i.Operand(0), []int{i.TupleIndex()})

	case hlo.OpCodeCall:
		callee := i.CalledComputations()[0]
		for idx, operand := range i.Operands() {
			if err := b.unionLeaves(callee.ParameterInstruction(idx), nil, operand, nil); err != nil {
				return err
			}
		}
		return b.unionLeaves(i, nil, callee.Root(), nil)

	case hlo.OpCodeWhile:
		// The loop state is one buffer throughout: init, both parameters, the body
		// root and the while result.
		init := i.Operand(0)
		condition, body := i.WhileCondition(), i.WhileBody()
		for _, alias := range []*hlo.Instruction{
			condition.ParameterInstruction(0),
			body.ParameterInstruction(0),
			body.Root(),
			i,
		} {
			if err := b.unionLeaves(alias, nil, init, nil); err != nil {
				return err
			}
		}
		return nil

	case hlo.OpCodeConditional:
		for idx, branch := range i.Branches() {
			if err := b.unionLeaves(branch.ParameterInstruction(0), nil, i.Operand(idx+1), nil); err != nil {
				return err
			}
			if err := b.unionLeaves(i, nil, branch.Root(), nil); err != nil {
				return err
			}
		}
		return nil

	default:
		// Everything else, copies included, defines fresh buffers.
		return nil
	}
}

// build groups the nodes by union-find root into Buffers with deterministic ids and
// position order.
func (b *builder) build() *Analysis {
	groups := make(map[int][]hlo.Position)
	for node, p := range b.nodes {
		root := b.find(node)
		groups[root] = append(groups[root], p)
	}
	analysis := &Analysis{
		module: b.module,
		byKey:  make(map[hlo.PositionKey]*Buffer, len(b.nodes)),
	}
	for _, positions := range groups {
		sort.Slice(positions, func(i, j int) bool {
			if positions[i].Instruction.UniqueID() != positions[j].Instruction.UniqueID() {
				return positions[i].Instruction.UniqueID() < positions[j].Instruction.UniqueID()
			}
			return positions[i].Index.Key() < positions[j].Index.Key()
		})
		analysis.buffers = append(analysis.buffers, &Buffer{positions: positions})
	}
	// Buffer ids follow the first position of each buffer, so they are stable across
	// runs on the same module.
	sort.Slice(analysis.buffers, func(i, j int) bool {
		pi, pj := analysis.buffers[i].positions[0], analysis.buffers[j].positions[0]
		if pi.Instruction.UniqueID() != pj.Instruction.UniqueID() {
			return pi.Instruction.UniqueID() < pj.Instruction.UniqueID()
		}
		return pi.Index.Key() < pj.Index.Key()
	})
	for id, buffer := range analysis.buffers {
		buffer.id = id
		for _, p := range buffer.positions {
			analysis.byKey[p.Key()] = buffer
		}
	}
	return analysis
}
