// Package dce removes instructions whose destinations are dead. The main
// entry runs a backward live-variable analysis over the CFG and deletes
// until a fixed point; Trivial offers the cheap use-count pre-pass that
// needs no CFG at all.
package dce

import (
	"brilopt/internal/bril"
	"brilopt/internal/cfg"
	"brilopt/internal/dataflow"
)

// Run performs live-variable analysis and dead-code elimination on fn until
// no instruction can be removed. ret, store, print, and call are
// side-effecting and always survive, as do labels and instructions without
// a dest.
func Run(fn *bril.Function) error {
	synthetic := len(fn.Instrs) > 0 && !fn.Instrs[0].IsLabel()
	blocks, err := cfg.Build(fn, false)
	if err != nil {
		return err
	}
	eng := &dataflow.Engine[dataflow.StringSet]{
		Dir:  dataflow.Backward,
		Init: func() dataflow.StringSet { return dataflow.StringSet{} },
		Join: dataflow.UnionStringSets,
		Transfer: func(id int, live dataflow.StringSet) dataflow.StringSet {
			return liveThrough(blocks[id], live)
		},
		Equal: dataflow.StringSet.Equal,
	}
	for {
		eng.Run(blocks)
		deleted := 0
		for id, b := range blocks {
			deleted += sweep(b, dataflow.UnionStringSets(eng.In(id)))
		}
		if deleted == 0 {
			break
		}
	}
	flat := cfg.Flatten(blocks)
	// Drop the entry label Build synthesized (unless something jumps to it),
	// so the pass never grows the function.
	if synthetic && len(blocks) > 0 && len(blocks[0].Pred) == 0 {
		flat = flat[1:]
	}
	fn.Instrs = flat
	return nil
}

// liveThrough walks a block in reverse: a definition kills its name, a use
// revives it.
func liveThrough(b *cfg.Block, out dataflow.StringSet) dataflow.StringSet {
	live := out.Clone()
	for ii := len(b.Instrs) - 1; ii >= 0; ii-- {
		in := &b.Instrs[ii]
		if in.Dest != "" {
			live.Discard(in.Dest)
		}
		for _, a := range in.Args {
			live.Add(a)
		}
	}
	return live
}

// sweep deletes the instructions of one block whose dest is dead at that
// point, scanning in reverse with the block's live-out set.
func sweep(b *cfg.Block, live dataflow.StringSet) int {
	del := map[int]bool{}
	for ii := len(b.Instrs) - 1; ii >= 0; ii-- {
		in := &b.Instrs[ii]
		if in.IsLabel() {
			continue
		}
		if in.Dest != "" && !live.Has(in.Dest) && !bril.HasSideEffects(in.Op) {
			del[ii] = true
			continue
		}
		if in.Dest != "" {
			live.Discard(in.Dest)
		}
		for _, a := range in.Args {
			live.Add(a)
		}
	}
	if len(del) == 0 {
		return 0
	}
	kept := b.Instrs[:0]
	for ii := range b.Instrs {
		if !del[ii] {
			kept = append(kept, b.Instrs[ii])
		}
	}
	b.Instrs = kept
	return len(del)
}

// Trivial is the cheap pre-pass: globally delete definitions no instruction
// uses, then locally delete definitions overwritten before any use, looping
// both until neither finds anything.
func Trivial(fn *bril.Function) error {
	for {
		g, err := trivialGlobal(fn)
		if err != nil {
			return err
		}
		l, err := trivialLocal(fn)
		if err != nil {
			return err
		}
		if g == 0 && l == 0 {
			return nil
		}
	}
}

func trivialGlobal(fn *bril.Function) (int, error) {
	total := 0
	for {
		used := dataflow.StringSet{}
		defined := dataflow.StringSet{}
		for ii := range fn.Instrs {
			in := &fn.Instrs[ii]
			for _, a := range in.Args {
				used.Add(a)
			}
			if in.Dest != "" {
				defined.Add(in.Dest)
			}
		}
		deleted := 0
		kept := fn.Instrs[:0]
		for ii := range fn.Instrs {
			in := fn.Instrs[ii]
			if in.Dest != "" && !used.Has(in.Dest) && !bril.HasSideEffects(in.Op) {
				deleted++
				continue
			}
			kept = append(kept, in)
		}
		fn.Instrs = kept
		total += deleted
		if deleted == 0 {
			return total, nil
		}
	}
}

func trivialLocal(fn *bril.Function) (int, error) {
	blocks, err := cfg.Build(fn, false)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, b := range blocks {
		for {
			n := localSweep(b)
			total += n
			if n == 0 {
				break
			}
		}
	}
	fn.Instrs = cfg.Flatten(blocks)
	return total, nil
}

// localSweep deletes a definition that is overwritten later in the same
// block with no intervening use.
func localSweep(b *cfg.Block) int {
	unused := map[string]int{}
	del := map[int]bool{}
	for ii := range b.Instrs {
		in := &b.Instrs[ii]
		if in.IsLabel() {
			continue
		}
		for _, a := range in.Args {
			delete(unused, a)
		}
		if in.Dest == "" {
			continue
		}
		if prev, ok := unused[in.Dest]; ok && !bril.HasSideEffects(b.Instrs[prev].Op) {
			del[prev] = true
		}
		unused[in.Dest] = ii
	}
	if len(del) == 0 {
		return 0
	}
	kept := b.Instrs[:0]
	for ii := range b.Instrs {
		if !del[ii] {
			kept = append(kept, b.Instrs[ii])
		}
	}
	b.Instrs = kept
	return len(del)
}
