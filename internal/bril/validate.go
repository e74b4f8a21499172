package bril

import (
	irerr "brilopt/internal/errors"
)

// Validate enforces the reader invariants: every br/jmp carries labels, every
// call names a callee, every const carries a value, and every completed phi
// has as many args as labels. Violations are fatal with a path to the
// offending instruction.
func (p *Program) Validate() error {
	for fi, fn := range p.Functions {
		if fn.Name == "" {
			return irerr.New(irerr.ErrMalformedInstr, irerr.FnPath(fi), "function has no name")
		}
		for ai, a := range fn.Args {
			if a.Type == nil {
				return irerr.New(irerr.ErrMalformedType, irerr.FnPath(fi),
					"argument %q (index %d) has no type", a.Name, ai)
			}
		}
		for ii := range fn.Instrs {
			if err := validateInstr(fi, ii, &fn.Instrs[ii]); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateInstr(fi, ii int, in *Instr) error {
	path := irerr.InstrPath(fi, ii)
	if in.IsLabel() {
		if in.Label == "" {
			return irerr.New(irerr.ErrMalformedInstr, path, "instruction has neither op nor label")
		}
		return nil
	}
	switch in.Op {
	case OpBr, OpJmp:
		want := 1
		if in.Op == OpBr {
			want = 2
		}
		if len(in.Labels) != want {
			return irerr.New(irerr.ErrMalformedInstr, path,
				"%s needs %d label(s), has %d", in.Op, want, len(in.Labels))
		}
	case OpCall:
		if len(in.Funcs) == 0 {
			return irerr.New(irerr.ErrMalformedInstr, path, "call has no callee")
		}
	case OpConst:
		if in.Value == nil {
			return irerr.New(irerr.ErrMalformedInstr, path, "const has no value")
		}
		if in.Dest == "" {
			return irerr.New(irerr.ErrMalformedInstr, path, "const has no dest")
		}
	case OpPhi:
		if len(in.Args) != len(in.Labels) {
			return irerr.New(irerr.ErrMalformedInstr, path,
				"phi has %d args but %d labels", len(in.Args), len(in.Labels))
		}
	}
	return nil
}
