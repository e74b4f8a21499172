// Package dataflow provides the fixed-point worklist solver every analysis
// in the toolkit runs on, plus the dominance computations built with it.
package dataflow

import (
	"github.com/tliron/commonlog"

	"brilopt/internal/cfg"
)

var log = commonlog.GetLogger("brilopt.dataflow")

// Direction selects which way facts flow through the CFG.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// Engine drives a monotone transfer function to a fixed point over a CFG.
// State per block is one slot per in-edge (predecessors for forward,
// successors for backward) plus a single out value and a touch counter. The
// engine owns this state for the duration of a run and resets it on Run.
//
// Termination holds for any monotone transfer over a lattice of finite
// height; the equality check prevents livelock. Pop order is not part of the
// contract, so the fixed point reached must not depend on it.
type Engine[T any] struct {
	Dir      Direction
	Init     func() T
	Join     func(slots []T) T
	Transfer func(block int, in T) T
	Equal    func(a, b T) bool

	blocks []*cfg.Block
	in     [][]T
	out    []T
	touch  []int

	queue  []int
	queued []bool
}

// Run resets the per-block state, seeds the worklist with the entry block
// (forward) or every exit block (backward), and solves to a fixed point.
func (e *Engine[T]) Run(blocks []*cfg.Block) {
	e.blocks = blocks
	e.in = make([][]T, len(blocks))
	e.out = make([]T, len(blocks))
	e.touch = make([]int, len(blocks))
	for id, b := range blocks {
		n := len(b.Pred)
		if e.Dir == Backward {
			n = len(b.Succ)
		}
		e.in[id] = make([]T, n)
		for i := range e.in[id] {
			e.in[id][i] = e.Init()
		}
		e.out[id] = e.Init()
	}
	e.queue = e.queue[:0]
	e.queued = make([]bool, len(blocks))
	if e.Dir == Forward {
		if len(blocks) > 0 {
			e.push(0)
		}
	} else {
		for _, id := range cfg.Exits(blocks) {
			e.push(id)
		}
	}
	e.solve()
}

// Rerun keeps the converged slots from the previous run, enqueues every
// block, and solves again. Passes that rewrite instructions after
// convergence (phi cleanup, dead-code deletion) use this to drive the
// rewrite with the stabilized per-edge state.
func (e *Engine[T]) Rerun() {
	e.queue = e.queue[:0]
	e.queued = make([]bool, len(e.blocks))
	for id := range e.blocks {
		e.push(id)
	}
	e.solve()
}

// In exposes the per-edge inbound slots of a block, aligned with its
// predecessor (forward) or successor (backward) list.
func (e *Engine[T]) In(block int) []T { return e.in[block] }

// Out exposes the converged out value of a block.
func (e *Engine[T]) Out(block int) T { return e.out[block] }

// Touch reports how many times the solver visited a block.
func (e *Engine[T]) Touch(block int) int { return e.touch[block] }

func (e *Engine[T]) push(id int) {
	if !e.queued[id] {
		e.queue = append(e.queue, id)
		e.queued[id] = true
	}
}

func (e *Engine[T]) pop() int {
	id := e.queue[0]
	e.queue = e.queue[1:]
	e.queued[id] = false
	return id
}

func (e *Engine[T]) neighbors(id int) []int {
	if e.Dir == Forward {
		return e.blocks[id].Succ
	}
	return e.blocks[id].Pred
}

// slotIndex finds every position block id occupies in neighbor n's edge
// list, so parallel edges each receive the propagated value.
func (e *Engine[T]) slotIndex(n, id int) []int {
	edges := e.blocks[n].Pred
	if e.Dir == Backward {
		edges = e.blocks[n].Succ
	}
	var idxs []int
	for i, from := range edges {
		if from == id {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

func (e *Engine[T]) solve() {
	for len(e.queue) > 0 {
		id := e.pop()
		local := e.Join(e.in[id])
		next := e.Transfer(id, local)
		e.touch[id]++
		log.Debugf("block %d (%s) touch %d", id, e.blocks[id].Label, e.touch[id])
		if !e.Equal(next, e.out[id]) || e.touch[id] == 1 {
			e.out[id] = next
			for _, n := range e.neighbors(id) {
				for _, slot := range e.slotIndex(n, id) {
					e.in[n][slot] = next
				}
				e.push(n)
			}
		} else {
			// Even a stable block must wake neighbors the solver has
			// never visited, so every reachable block is transferred
			// at least once.
			for _, n := range e.neighbors(id) {
				if e.touch[n] == 0 {
					e.push(n)
				}
			}
		}
	}
}
