// Package mem implements the memory-op analyses: a forward may-alias
// (points-to) analysis over abstract allocation sites, and the backward
// dead-store elimination that consumes its alias map.
//
// Abstract locations are "block instr" for each alloc site and the
// universal sink "all", which aliases everything in both directions.
package mem

import (
	"fmt"

	"brilopt/internal/bril"
	"brilopt/internal/cfg"
	"brilopt/internal/dataflow"
	irerr "brilopt/internal/errors"
)

// All is the unbounded abstract location.
const All = "all"

// PointsTo maps pointer names to their abstract location sets.
type PointsTo map[string]dataflow.StringSet

func (p PointsTo) clone() PointsTo {
	c := make(PointsTo, len(p))
	for k, v := range p {
		c[k] = v.Clone()
	}
	return c
}

func (p PointsTo) equal(o PointsTo) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// joinPointsTo unions location sets key-wise across the slots.
func joinPointsTo(slots []PointsTo) PointsTo {
	out := PointsTo{}
	for _, s := range slots {
		for k, v := range s {
			if cur, ok := out[k]; ok {
				for m := range v {
					cur.Add(m)
				}
				continue
			}
			out[k] = v.Clone()
		}
	}
	return out
}

// locOf treats an untracked name as the universal sink.
func locOf(p PointsTo, name string) dataflow.StringSet {
	if s, ok := p[name]; ok {
		return s
	}
	return dataflow.NewStringSet(All)
}

// mayAlias reports whether two location sets can overlap.
func mayAlias(a, b dataflow.StringSet) bool {
	if a.Has(All) || b.Has(All) {
		return true
	}
	for m := range a {
		if b.Has(m) {
			return true
		}
	}
	return false
}

// Run computes the may-alias map of fn and eliminates the stores it proves
// dead, writing the result back to the flat instruction list.
func Run(fn *bril.Function) error {
	blocks, err := cfg.Build(fn, false)
	if err != nil {
		return err
	}
	ptrMap, err := alias(fn, blocks)
	if err != nil {
		return err
	}
	eliminateDeadStores(blocks, ptrMap)
	fn.Instrs = cfg.Flatten(blocks)
	return nil
}

// Alias exposes the converged points-to map of fn.
func Alias(fn *bril.Function) (PointsTo, error) {
	blocks, err := cfg.Build(fn, false)
	if err != nil {
		return nil, err
	}
	return alias(fn, blocks)
}

func alias(fn *bril.Function, blocks []*cfg.Block) (PointsTo, error) {
	eng := &dataflow.Engine[PointsTo]{
		Dir:   dataflow.Forward,
		Init:  func() PointsTo { return PointsTo{} },
		Join:  joinPointsTo,
		Equal: PointsTo.equal,
	}
	eng.Transfer = func(id int, env PointsTo) PointsTo {
		if id == 0 {
			// Pointer arguments can point anywhere on entry.
			for _, arg := range fn.Args {
				if arg.Type.IsPtr() {
					set := env[arg.Name]
					if set == nil {
						set = dataflow.StringSet{}
						env[arg.Name] = set
					}
					set.Add(All)
				}
			}
		}
		for ii := range blocks[id].Instrs {
			transferLocs(&blocks[id].Instrs[ii], env, id, ii)
		}
		return env
	}
	eng.Run(blocks)

	ptrMap := PointsTo{}
	for id := range blocks {
		for name, locs := range eng.Out(id) {
			if prev, ok := ptrMap[name]; ok {
				if !prev.Equal(locs) {
					return nil, irerr.New(irerr.ErrAliasInvariant, "",
						"function %s: %s resolves to different location sets across blocks",
						fn.Name, name)
				}
				continue
			}
			ptrMap[name] = locs.Clone()
		}
	}
	return ptrMap, nil
}

func transferLocs(in *bril.Instr, env PointsTo, blockID, instrID int) {
	switch in.Op {
	case bril.OpAlloc:
		env[in.Dest] = dataflow.NewStringSet(fmt.Sprintf("%d %d", blockID, instrID))
	case bril.OpPtrAdd:
		env[in.Dest] = locOf(env, in.Args[0]).Clone()
	case bril.OpLoad:
		if in.Type.IsPtr() {
			env[in.Dest] = dataflow.NewStringSet(All)
		}
	case bril.OpID:
		if in.Type.IsPtr() {
			env[in.Dest] = locOf(env, in.Args[0]).Clone()
		}
	case bril.OpPhi:
		if in.Type.IsPtr() {
			set := dataflow.StringSet{}
			for _, a := range in.Args {
				if src, ok := env[a]; ok {
					for m := range src {
						set.Add(m)
					}
				}
			}
			env[in.Dest] = set
		}
	case bril.OpCall:
		if in.Dest != "" && in.Type.IsPtr() {
			env[in.Dest] = dataflow.NewStringSet(All)
		}
	}
}

// eliminateDeadStores runs the backward pending-store dataflow and deletes
// a store overwritten on every path before any aliasing load.
func eliminateDeadStores(blocks []*cfg.Block, ptrMap PointsTo) {
	eng := &dataflow.Engine[dataflow.StringSet]{
		Dir:  dataflow.Backward,
		Init: func() dataflow.StringSet { return dataflow.StringSet{} },
		Join: dataflow.IntersectStringSets,
		Transfer: func(id int, pending dataflow.StringSet) dataflow.StringSet {
			pendingThrough(blocks[id], ptrMap, pending, nil)
			return pending
		},
		Equal: dataflow.StringSet.Equal,
	}
	eng.Run(blocks)

	for id, b := range blocks {
		dead := map[int]bool{}
		pendingThrough(b, ptrMap, dataflow.IntersectStringSets(eng.In(id)), dead)
		if len(dead) == 0 {
			continue
		}
		kept := b.Instrs[:0]
		for ii := range b.Instrs {
			if !dead[ii] {
				kept = append(kept, b.Instrs[ii])
			}
		}
		b.Instrs = kept
	}
}

// pendingThrough scans a block in reverse with the pending-store set: a
// store to an already-pending pointer is dead, a load kills every pending
// store that may alias it. When dead is non-nil the dead stores are
// recorded by index.
func pendingThrough(b *cfg.Block, ptrMap PointsTo, pending dataflow.StringSet, dead map[int]bool) {
	for ii := len(b.Instrs) - 1; ii >= 0; ii-- {
		in := &b.Instrs[ii]
		switch in.Op {
		case bril.OpStore:
			ptr := in.Args[0]
			if pending.Has(ptr) {
				if dead != nil {
					dead[ii] = true
				}
				continue
			}
			pending.Add(ptr)
		case bril.OpLoad:
			loadLocs := locOf(ptrMap, in.Args[0])
			for ptr := range pending {
				if mayAlias(locOf(ptrMap, ptr), loadLocs) {
					pending.Discard(ptr)
				}
			}
		}
	}
}
