package ssa

import (
	"brilopt/internal/bril"
	irerr "brilopt/internal/errors"
)

// FromSSA strips the version suffix from every name and removes the phi
// nodes, restoring the base variables. The SSA must be conventional: every
// phi's sources and dest share one base variable, so dropping the phi
// preserves meaning. A violation is a caller precondition error.
func FromSSA(fn *bril.Function) error {
	for ii := range fn.Instrs {
		in := &fn.Instrs[ii]
		if in.Op != bril.OpPhi {
			continue
		}
		base := bril.BaseName(in.Dest)
		for _, a := range in.Args {
			if bril.BaseName(a) != base {
				return irerr.New(irerr.ErrNonConventionalSSA, "",
					"function %s: phi %s mixes bases %s and %s",
					fn.Name, in.Dest, base, bril.BaseName(a))
			}
		}
	}

	for i := range fn.Args {
		fn.Args[i].Name = bril.BaseName(fn.Args[i].Name)
	}
	kept := fn.Instrs[:0]
	for ii := range fn.Instrs {
		in := fn.Instrs[ii]
		if in.Op == bril.OpPhi {
			continue
		}
		if in.Dest != "" {
			in.Dest = bril.BaseName(in.Dest)
		}
		for ai, a := range in.Args {
			in.Args[ai] = bril.BaseName(a)
		}
		kept = append(kept, in)
	}
	fn.Instrs = kept
	return nil
}
