// Package cfg partitions a function's flat instruction list into basic
// blocks and links them into a control-flow graph. Blocks are identified by
// dense integer ids; edges are id lists, and predecessor order is the order
// edges were added, which analyses rely on to align per-edge slots.
package cfg

import (
	"brilopt/internal/bril"
	irerr "brilopt/internal/errors"
)

// EntryLabel is the synthetic label prepended when a function does not start
// with a label.
const EntryLabel = "entry"

// DummyEntryLabel is the label of the synthetic argument block inserted when
// Build is asked for one.
const DummyEntryLabel = "dummy_entry"

// Block is a maximal straight-line run of instructions. The first
// instruction is always its label.
type Block struct {
	Label  string
	Instrs []bril.Instr
	Pred   []int
	Succ   []int
}

// Build converts fn's flat instructions into blocks with a CFG. If the first
// instruction is not a label, a synthetic entry label is prepended. With
// dummy set and fn carrying arguments, a second synthetic block dummy_entry
// is prepended containing an id self-copy per argument, giving every
// argument a virtual definition for SSA renaming.
//
// A br/jmp to a label no block carries is a fatal input error.
func Build(fn *bril.Function, dummy bool) ([]*Block, error) {
	instrs := fn.Instrs
	if len(instrs) > 0 && !instrs[0].IsLabel() {
		instrs = append([]bril.Instr{{Label: EntryLabel}}, instrs...)
	}
	if dummy && len(fn.Args) > 0 {
		head := []bril.Instr{{Label: DummyEntryLabel}}
		for _, arg := range fn.Args {
			head = append(head, bril.Instr{
				Op:   bril.OpID,
				Dest: arg.Name,
				Args: []string{arg.Name},
				Type: arg.Type.Clone(),
			})
		}
		instrs = append(head, instrs...)
	}

	var blocks []*Block
	labelToBlock := map[string]int{}
	pendingPred := map[string][]int{}
	cur := &Block{}
	open := false

	closeBlock := func() {
		blocks = append(blocks, cur)
		cur = &Block{}
		open = false
	}

	for ii := range instrs {
		in := instrs[ii]
		if in.IsLabel() {
			if open {
				// Fallthrough edge into the block this label opens.
				cur.Succ = append(cur.Succ, len(blocks)+1)
				fallFrom := len(blocks)
				closeBlock()
				cur.Pred = append(cur.Pred, fallFrom)
			}
			cur.Label = in.Label
			cur.Instrs = append(cur.Instrs, in)
			open = true
			id := len(blocks)
			labelToBlock[in.Label] = id
			for _, predID := range pendingPred[in.Label] {
				cur.Pred = append(cur.Pred, predID)
				blocks[predID].Succ = append(blocks[predID].Succ, id)
			}
			delete(pendingPred, in.Label)
			continue
		}
		if !open {
			// Unreachable instruction between a terminator and the next
			// label; every block starts with a label.
			continue
		}
		if bril.IsTerminator(in.Op) {
			id := len(blocks)
			if in.Op == bril.OpBr || in.Op == bril.OpJmp {
				for _, target := range in.Labels {
					if succID, ok := labelToBlock[target]; ok {
						cur.Succ = append(cur.Succ, succID)
						if succID == id {
							cur.Pred = append(cur.Pred, id)
						} else {
							blocks[succID].Pred = append(blocks[succID].Pred, id)
						}
					} else {
						pendingPred[target] = append(pendingPred[target], id)
					}
				}
			}
			cur.Instrs = append(cur.Instrs, in)
			closeBlock()
			continue
		}
		cur.Instrs = append(cur.Instrs, in)
	}
	if open {
		closeBlock()
	}

	for label, preds := range pendingPred {
		if len(preds) > 0 {
			return nil, irerr.New(irerr.ErrUndefinedLabel, "",
				"function %s: jump to undefined label %q", fn.Name, label)
		}
	}
	return blocks, nil
}

// Flatten writes the blocks back to a canonical flat instruction list.
func Flatten(blocks []*Block) []bril.Instr {
	var out []bril.Instr
	for _, b := range blocks {
		out = append(out, b.Instrs...)
	}
	return out
}

// Exits returns the ids of blocks with no successors.
func Exits(blocks []*Block) []int {
	var out []int
	for id, b := range blocks {
		if len(b.Succ) == 0 {
			out = append(out, id)
		}
	}
	return out
}
