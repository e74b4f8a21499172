// Package ssa converts functions into and out of SSA form: phi insertion at
// iterated dominance frontiers, renaming to versioned names, trivial-phi
// cleanup, and the reverse suffix-stripping destruction.
package ssa

import (
	"brilopt/internal/bril"
	"brilopt/internal/cfg"
	"brilopt/internal/dataflow"
)

type def struct {
	block int
	typ   *bril.Type
}

// ToSSA rewrites fn into SSA form. Every variable ends up with exactly one
// textual definition dominating all of its uses, and joins carry phi nodes
// with one (arg, label) pair per predecessor that defines the variable.
func ToSSA(fn *bril.Function) error {
	blocks, err := cfg.Build(fn, true)
	if err != nil {
		return err
	}
	dom := dataflow.Dominators(blocks)
	frontier := dataflow.Frontier(blocks, dom)

	names, defs := collectDefs(blocks)
	for _, name := range names {
		insertPhis(blocks, frontier, name, defs[name])
	}

	rename(blocks)
	stripDummy(fn, blocks)
	fn.Instrs = cfg.Flatten(blocks)
	return nil
}

// collectDefs maps every variable to the blocks defining it, with the
// declared type of each definition, in first-seen order.
func collectDefs(blocks []*cfg.Block) ([]string, map[string][]def) {
	var names []string
	defs := map[string][]def{}
	for id, b := range blocks {
		for ii := range b.Instrs {
			in := &b.Instrs[ii]
			if in.Dest == "" {
				continue
			}
			if _, ok := defs[in.Dest]; !ok {
				names = append(names, in.Dest)
			}
			list := defs[in.Dest]
			dup := false
			for _, d := range list {
				if d.block == id {
					dup = true
					break
				}
			}
			if !dup {
				defs[in.Dest] = append(list, def{block: id, typ: in.Type})
			}
		}
	}
	return names, defs
}

// insertPhis walks the iterated dominance frontier of name's defining
// blocks, inserting an empty phi right after each join's label, and renames
// every textual definition of name to a fresh versioned name.
func insertPhis(blocks []*cfg.Block, frontier map[int][]int, name string, seeds []def) {
	count := 0
	worklist := append([]def(nil), seeds...)
	for len(worklist) > 0 {
		d := worklist[0]
		worklist = worklist[1:]
		for ii := range blocks[d.block].Instrs {
			in := &blocks[d.block].Instrs[ii]
			if in.Dest == name {
				count++
				in.Dest = bril.VersionedName(name, count)
			}
		}
		for _, join := range frontier[d.block] {
			if hasPhi(blocks[join], name) {
				continue
			}
			count++
			blocks[join].Instrs = insertAt(blocks[join].Instrs, 1, bril.Instr{
				Op:     bril.OpPhi,
				Dest:   bril.VersionedName(name, count),
				Type:   d.typ.Clone(),
				Args:   []string{},
				Labels: []string{},
			})
			worklist = append(worklist, def{block: join, typ: d.typ})
		}
	}
}

func hasPhi(b *cfg.Block, name string) bool {
	for ii := range b.Instrs {
		in := &b.Instrs[ii]
		if in.Op == bril.OpPhi && bril.BaseName(in.Dest) == name {
			return true
		}
	}
	return false
}

func insertAt(instrs []bril.Instr, idx int, in bril.Instr) []bril.Instr {
	instrs = append(instrs, bril.Instr{})
	copy(instrs[idx+1:], instrs[idx:])
	instrs[idx] = in
	return instrs
}

// rename drives the renaming state, a base-name to latest-SSA-name
// environment per block, to a fixed point, filling phi arguments from the
// per-predecessor slots as the predecessors stabilize. A second sweep with
// the converged slots then re-resolves phi arguments, degrades trivial phis
// to their surviving value, and rewrites remaining uses.
func rename(blocks []*cfg.Block) {
	eng := &dataflow.Engine[map[string]string]{
		Dir:   dataflow.Forward,
		Init:  func() map[string]string { return map[string]string{} },
		Join:  dataflow.MergePermissive[string],
		Equal: dataflow.MapsEqual[string],
	}
	eng.Transfer = func(id int, env map[string]string) map[string]string {
		b := blocks[id]
		for ii := range b.Instrs {
			in := &b.Instrs[ii]
			if in.IsLabel() {
				continue
			}
			if in.Op == bril.OpPhi {
				completePhi(eng, blocks, id, in)
			} else {
				for ai, a := range in.Args {
					if v, ok := env[a]; ok {
						in.Args[ai] = v
					}
				}
			}
			if in.Dest != "" {
				env[bril.BaseName(in.Dest)] = in.Dest
			}
		}
		return env
	}
	eng.Run(blocks)

	eng.Transfer = func(id int, env map[string]string) map[string]string {
		b := blocks[id]
		del := map[int]bool{}
		for ii := range b.Instrs {
			in := &b.Instrs[ii]
			if in.IsLabel() {
				continue
			}
			if in.Op == bril.OpPhi {
				if cleanupPhi(eng, blocks, id, in) {
					del[ii] = true
				}
			} else {
				for ai, a := range in.Args {
					if v, ok := env[bril.BaseName(a)]; ok {
						in.Args[ai] = v
					}
				}
			}
			if in.Dest != "" {
				env[bril.BaseName(in.Dest)] = in.Dest
			}
		}
		if len(del) > 0 {
			kept := b.Instrs[:0]
			for ii := range b.Instrs {
				if !del[ii] {
					kept = append(kept, b.Instrs[ii])
				}
			}
			b.Instrs = kept
		}
		return env
	}
	eng.Rerun()
}

// completePhi appends one (arg, label) pair per predecessor whose inbound
// state already names the variable. Pairs are added at most once per edge.
func completePhi(eng *dataflow.Engine[map[string]string], blocks []*cfg.Block, id int, in *bril.Instr) {
	base := bril.BaseName(in.Dest)
	b := blocks[id]
	for predIdx, predID := range b.Pred {
		predLabel := blocks[predID].Label
		if containsString(in.Labels, predLabel) {
			continue
		}
		ssaName, ok := eng.In(id)[predIdx][base]
		if !ok {
			// Predecessor not ready yet; filled on a later visit.
			continue
		}
		in.Args = append(in.Args, ssaName)
		in.Labels = append(in.Labels, predLabel)
	}
}

// cleanupPhi re-resolves each phi argument against the converged
// predecessor slot, trimming entries whose predecessor no longer defines
// the variable. A phi left with a single argument, or with two arguments
// one of which is its own dest, degrades: the dest is rewritten to the
// surviving value and the caller deletes the instruction.
func cleanupPhi(eng *dataflow.Engine[map[string]string], blocks []*cfg.Block, id int, in *bril.Instr) bool {
	base := bril.BaseName(in.Dest)
	b := blocks[id]
	args := in.Args[:0]
	labels := in.Labels[:0]
	for _, label := range in.Labels {
		predIdx := -1
		for pi, predID := range b.Pred {
			if blocks[predID].Label == label {
				predIdx = pi
				break
			}
		}
		if predIdx < 0 {
			continue
		}
		arg, ok := eng.In(id)[predIdx][base]
		if !ok {
			continue
		}
		args = append(args, arg)
		labels = append(labels, label)
	}
	in.Args = args
	in.Labels = labels

	if len(in.Args) == 2 {
		if in.Args[0] == in.Dest {
			in.Dest = in.Args[1]
			return true
		}
		if in.Args[1] == in.Dest {
			in.Dest = in.Args[0]
			return true
		}
		return false
	}
	if len(in.Args) == 1 {
		in.Dest = in.Args[0]
		return true
	}
	return false
}

// stripDummy rewrites each function argument to the SSA name its virtual id
// produced and drops the synthetic instructions, keeping the label so the
// block structure stays intact.
func stripDummy(fn *bril.Function, blocks []*cfg.Block) {
	if len(blocks) == 0 || blocks[0].Label != cfg.DummyEntryLabel {
		return
	}
	renamed := map[string]string{}
	for ii := range blocks[0].Instrs {
		in := &blocks[0].Instrs[ii]
		if in.Op == bril.OpID {
			renamed[in.Args[0]] = in.Dest
		}
	}
	for i := range fn.Args {
		if ssaName, ok := renamed[fn.Args[i].Name]; ok {
			fn.Args[i].Name = ssaName
		}
	}
	kept := blocks[0].Instrs[:0]
	for ii := range blocks[0].Instrs {
		if blocks[0].Instrs[ii].IsLabel() {
			kept = append(kept, blocks[0].Instrs[ii])
		}
	}
	blocks[0].Instrs = kept
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
