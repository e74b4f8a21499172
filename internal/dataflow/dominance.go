package dataflow

import (
	"sort"

	"brilopt/internal/cfg"
)

// Dominators computes the dominator set of every block: Dom(b) is the meet
// over b's non-empty predecessor slots plus b itself, solved to a fixed point
// with the worklist engine. A slot whose predecessor has not been reached yet
// is empty and skipped. Entry collapses to its trivial {entry} base because
// the meet with no non-empty slot is empty.
func Dominators(blocks []*cfg.Block) []IntSet {
	eng := &Engine[IntSet]{
		Dir:  Forward,
		Init: func() IntSet { return IntSet{} },
		Join: func(slots []IntSet) IntSet {
			var reached []IntSet
			for _, s := range slots {
				if len(s) > 0 {
					reached = append(reached, s)
				}
			}
			return IntersectSets(reached)
		},
		Transfer: func(block int, in IntSet) IntSet {
			out := in.Clone()
			out.Add(block)
			return out
		},
		Equal: IntSet.Equal,
	}
	eng.Run(blocks)
	dom := make([]IntSet, len(blocks))
	for id := range blocks {
		dom[id] = eng.Out(id)
	}
	return dom
}

// Frontier derives the dominance frontier from the dominator sets: b is in
// the frontier of d when d dominates a predecessor of b but not b itself.
func Frontier(blocks []*cfg.Block, dom []IntSet) map[int][]int {
	frontier := map[int][]int{}
	for id, b := range blocks {
		seen := IntSet{}
		for _, pred := range b.Pred {
			for d := range dom[pred] {
				if !dom[id].Has(d) && !seen.Has(d) {
					seen.Add(d)
					frontier[d] = append(frontier[d], id)
				}
			}
		}
	}
	for d := range frontier {
		sort.Ints(frontier[d])
	}
	return frontier
}
