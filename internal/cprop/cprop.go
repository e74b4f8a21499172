// Package cprop is global constant propagation: a forward dataflow whose
// environments map names to known literals, joined by key-wise agreement,
// with the fold rules applied block-locally against the inbound map.
package cprop

import (
	"brilopt/internal/bril"
	"brilopt/internal/cfg"
	"brilopt/internal/dataflow"
)

// Const is the lattice value: a known literal.
type Const struct {
	Kind bril.ValueKind
	Int  int64
	Bool bool
}

func fromValue(v *bril.Value) (Const, bool) {
	switch v.Kind {
	case bril.IntValue:
		return Const{Kind: bril.IntValue, Int: v.Int}, true
	case bril.BoolValue:
		return Const{Kind: bril.BoolValue, Bool: v.Bool}, true
	}
	return Const{}, false
}

func (c Const) value() *bril.Value {
	if c.Kind == bril.BoolValue {
		return bril.BoolVal(c.Bool)
	}
	return bril.IntVal(c.Int)
}

// Run propagates constants through fn, folding instructions whose operands
// are all known, and writes the rewritten instructions back.
func Run(fn *bril.Function) error {
	_, err := run(fn, true)
	return err
}

// Facts computes the constant environment at fn's exit blocks without
// rewriting the function: the key-wise agreement of every exit out-map.
// Downstream taint analysis treats these names as public.
func Facts(fn *bril.Function) (map[string]Const, error) {
	work := fn.Clone()
	return run(work, false)
}

func run(fn *bril.Function, rewrite bool) (map[string]Const, error) {
	blocks, err := cfg.Build(fn, false)
	if err != nil {
		return nil, err
	}
	eng := &dataflow.Engine[map[string]Const]{
		Dir:   dataflow.Forward,
		Init:  func() map[string]Const { return map[string]Const{} },
		Join:  dataflow.MergeCommon[Const],
		Equal: dataflow.MapsEqual[Const],
	}
	eng.Transfer = func(id int, env map[string]Const) map[string]Const {
		foldBlock(blocks[id], env)
		return env
	}
	eng.Run(blocks)
	if rewrite {
		fn.Instrs = cfg.Flatten(blocks)
	}
	var exits []map[string]Const
	for _, id := range cfg.Exits(blocks) {
		exits = append(exits, eng.Out(id))
	}
	return dataflow.MergeCommon(exits), nil
}

// foldBlock applies the local fold rules to one block under env, mutating
// both. Operands are looked up in env; an instruction whose operands all
// resolve becomes a const, and same-operand comparisons fold even when the
// operand is unknown. Anything that cannot fold makes its dest unknown.
func foldBlock(b *cfg.Block, env map[string]Const) {
	for ii := range b.Instrs {
		in := &b.Instrs[ii]
		if in.IsLabel() || in.Dest == "" || in.Type.IsFloat() {
			continue
		}

		if in.Op == bril.OpConst {
			if c, ok := fromValue(in.Value); ok {
				env[in.Dest] = c
			} else {
				delete(env, in.Dest)
			}
			continue
		}

		operands := make([]Const, 0, len(in.Args))
		known := true
		for _, a := range in.Args {
			c, ok := env[a]
			if !ok {
				known = false
				break
			}
			operands = append(operands, c)
		}

		if known && len(in.Args) > 0 {
			if c, ok := foldOp(in.Op, operands); ok {
				in.Op = bril.OpConst
				in.Args = nil
				in.Funcs = nil
				in.Labels = nil
				in.Value = c.value()
				env[in.Dest] = c
				continue
			}
		}
		if len(in.Args) == 2 && in.Args[0] == in.Args[1] && bril.IsComparison(in.Op) {
			truth := in.Op == bril.OpEq || in.Op == bril.OpLe || in.Op == bril.OpGe
			in.Op = bril.OpConst
			in.Args = nil
			in.Value = bril.BoolVal(truth)
			env[in.Dest] = Const{Kind: bril.BoolValue, Bool: truth}
			continue
		}
		delete(env, in.Dest)
	}
}

// foldOp evaluates op over known operands with the same semantics as LVN
// folding; division by zero never folds.
func foldOp(op string, args []Const) (Const, bool) {
	bin := func() (int64, int64, bool) {
		if len(args) != 2 || args[0].Kind != bril.IntValue || args[1].Kind != bril.IntValue {
			return 0, 0, false
		}
		return args[0].Int, args[1].Int, true
	}
	switch op {
	case bril.OpID:
		if len(args) == 1 {
			return args[0], true
		}
	case bril.OpAdd, bril.OpSub, bril.OpMul, bril.OpDiv:
		a, b, ok := bin()
		if !ok {
			return Const{}, false
		}
		switch op {
		case bril.OpAdd:
			return Const{Kind: bril.IntValue, Int: a + b}, true
		case bril.OpSub:
			return Const{Kind: bril.IntValue, Int: a - b}, true
		case bril.OpMul:
			return Const{Kind: bril.IntValue, Int: a * b}, true
		default:
			if b == 0 {
				return Const{}, false
			}
			return Const{Kind: bril.IntValue, Int: a / b}, true
		}
	case bril.OpEq, bril.OpLe, bril.OpLt, bril.OpGe, bril.OpGt, bril.OpNe:
		a, b, ok := bin()
		if !ok {
			return Const{}, false
		}
		var r bool
		switch op {
		case bril.OpEq:
			r = a == b
		case bril.OpLe:
			r = a <= b
		case bril.OpLt:
			r = a < b
		case bril.OpGe:
			r = a >= b
		case bril.OpGt:
			r = a > b
		default:
			r = a != b
		}
		return Const{Kind: bril.BoolValue, Bool: r}, true
	case bril.OpAnd, bril.OpOr:
		if len(args) == 2 && args[0].Kind == bril.BoolValue && args[1].Kind == bril.BoolValue {
			if op == bril.OpAnd {
				return Const{Kind: bril.BoolValue, Bool: args[0].Bool && args[1].Bool}, true
			}
			return Const{Kind: bril.BoolValue, Bool: args[0].Bool || args[1].Bool}, true
		}
	case bril.OpNot:
		if len(args) == 1 && args[0].Kind == bril.BoolValue {
			return Const{Kind: bril.BoolValue, Bool: !args[0].Bool}, true
		}
	}
	return Const{}, false
}
