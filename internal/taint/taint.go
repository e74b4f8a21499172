// Package taint runs the interprocedural taint analysis: a forward dataflow
// of public/private labels through each function, with callees specialized
// on the vector of argument taints and recursion broken by a conservative
// private seed. The output program contains main plus every specialization
// an actual call references, each under a unique name.
package taint

import (
	"fmt"

	"brilopt/internal/bril"
	"brilopt/internal/cfg"
	"brilopt/internal/cprop"
	"brilopt/internal/dataflow"
	irerr "brilopt/internal/errors"
)

// JoinStrategy merges the per-edge taint environments at a block head.
type JoinStrategy func(slots []map[string]string) map[string]string

// PrivateWins is the default join: a key survives when any predecessor
// assigns it, and private dominates on disagreement.
func PrivateWins(slots []map[string]string) map[string]string {
	out := map[string]string{}
	for _, s := range slots {
		for k, v := range s {
			if cur, ok := out[k]; ok {
				if cur == bril.TaintPrivate || v == bril.TaintPrivate {
					out[k] = bril.TaintPrivate
				}
				continue
			}
			out[k] = v
		}
	}
	return out
}

// DropDisagreeing is the stricter join: keys whose predecessors disagree are
// dropped and re-inferred as absent.
func DropDisagreeing(slots []map[string]string) map[string]string {
	out := map[string]string{}
	dropped := map[string]bool{}
	for _, s := range slots {
		for k, v := range s {
			if dropped[k] {
				continue
			}
			if cur, ok := out[k]; ok {
				if cur != v {
					delete(out, k)
					dropped[k] = true
				}
				continue
			}
			out[k] = v
		}
	}
	return out
}

// specialization is one analyzed copy of a function, keyed by the ordered
// vector of its argument taints.
type specialization struct {
	fn       *bril.Function
	retTaint string
	added    bool
	ready    bool
}

type entry struct {
	template *bril.Function
	specs    []*specialization
}

func (e *entry) find(vec []string) *specialization {
	for _, s := range e.specs {
		if vectorOf(s.fn) == joined(vec) {
			return s
		}
	}
	return nil
}

func vectorOf(fn *bril.Function) string {
	var vec []string
	for _, a := range fn.Args {
		vec = append(vec, a.Type.Taint)
	}
	return joined(vec)
}

func joined(vec []string) string {
	out := ""
	for _, v := range vec {
		out += v + ","
	}
	return out
}

type analyzer struct {
	funcs map[string]*entry
	stack []string
	out   *bril.Program
	join  JoinStrategy
	err   error
}

// Run analyzes prog with the default join and returns the tainted program.
func Run(prog *bril.Program) (*bril.Program, error) {
	return RunWithJoin(prog, PrivateWins)
}

// RunWithJoin analyzes prog with an explicit join strategy. Arguments to
// main are private unless annotated; main itself is never specialized.
func RunWithJoin(prog *bril.Program, join JoinStrategy) (*bril.Program, error) {
	a := &analyzer{
		funcs: map[string]*entry{},
		out:   &bril.Program{},
		join:  join,
	}
	var main *bril.Function
	for _, fn := range prog.Functions {
		if fn.Name == "main" {
			main = fn.Clone()
			a.out.Functions = append(a.out.Functions, main)
			continue
		}
		a.funcs[fn.Name] = &entry{template: fn}
	}
	if main == nil {
		return nil, irerr.New(irerr.ErrUndefinedFunction, "", "program has no main function")
	}
	for i := range main.Args {
		t := main.Args[i].Type
		if t.Taint == "" {
			t.SetTaint(bril.TaintPrivate)
		}
	}
	a.stack = append(a.stack, "main")
	if _, err := a.analyze(main); err != nil {
		return nil, err
	}
	a.stack = a.stack[:len(a.stack)-1]
	return a.out, nil
}

// analyze runs the per-function dataflow on fn, materializes the taint
// annotations and specialized call targets, and reports fn's return taint.
func (a *analyzer) analyze(fn *bril.Function) (string, error) {
	facts, err := cprop.Facts(fn)
	if err != nil {
		return "", err
	}
	blocks, err := cfg.Build(fn, false)
	if err != nil {
		return "", err
	}

	argTaints := map[string]string{}
	for _, arg := range fn.Args {
		t := arg.Type.Taint
		if t == "" {
			t = bril.TaintPrivate
		}
		argTaints[arg.Name] = t
	}

	eng := &dataflow.Engine[map[string]string]{
		Dir:   dataflow.Forward,
		Init:  func() map[string]string { return map[string]string{} },
		Join:  a.join,
		Equal: dataflow.MapsEqual[string],
	}
	eng.Transfer = func(id int, env map[string]string) map[string]string {
		if a.err != nil {
			return env
		}
		if id == 0 {
			for name, t := range argTaints {
				env[name] = t
			}
		}
		for ii := range blocks[id].Instrs {
			a.transferInstr(&blocks[id].Instrs[ii], env, facts)
			if a.err != nil {
				return env
			}
		}
		return env
	}
	eng.Run(blocks)
	if a.err != nil {
		err := a.err
		a.err = nil
		return "", err
	}

	var exitOuts []map[string]string
	for _, id := range cfg.Exits(blocks) {
		exitOuts = append(exitOuts, eng.Out(id))
	}
	exitEnv := a.join(exitOuts)

	retTaint := bril.TaintPublic
	for id, b := range blocks {
		for ii := range b.Instrs {
			in := &b.Instrs[ii]
			if in.IsLabel() {
				continue
			}
			switch in.Op {
			case bril.OpRet:
				if len(in.Args) > 0 && taintOf(eng.Out(id), in.Args[0]) == bril.TaintPrivate {
					retTaint = bril.TaintPrivate
				}
			case bril.OpCall:
				if err := a.materializeCall(in, exitEnv); err != nil {
					return "", err
				}
			default:
				if in.Dest != "" {
					annotate(in, taintOf(eng.Out(id), in.Dest))
				}
			}
		}
	}
	fn.Instrs = cfg.Flatten(blocks)
	return retTaint, nil
}

// transferInstr applies the per-instruction taint rules to env.
func (a *analyzer) transferInstr(in *bril.Instr, env map[string]string, facts map[string]cprop.Const) {
	if in.IsLabel() {
		return
	}
	if in.Type != nil && in.Type.Taint != "" && in.Dest != "" {
		env[in.Dest] = in.Type.Taint
		return
	}
	switch in.Op {
	case bril.OpCall:
		vec := make([]string, 0, len(in.Args))
		for _, arg := range in.Args {
			vec = append(vec, taintOf(env, arg))
		}
		dest, err := a.specialize(in.Funcs[0], vec)
		if err != nil {
			a.err = err
			return
		}
		if in.Dest != "" {
			env[in.Dest] = dest
		}
	case bril.OpLoad:
		// Loads may read memory nothing here tracks.
		env[in.Dest] = bril.TaintPrivate
	default:
		if in.Dest == "" {
			return
		}
		if _, ok := facts[in.Dest]; ok {
			// Constants cannot leak secrets.
			env[in.Dest] = bril.TaintPublic
			return
		}
		taint := bril.TaintPublic
		for _, arg := range in.Args {
			if taintOf(env, arg) == bril.TaintPrivate {
				taint = bril.TaintPrivate
				break
			}
		}
		env[in.Dest] = taint
	}
}

// specialize returns the return taint of callee analyzed under vec,
// creating and analyzing the specialization on first demand. A callee
// already on the call stack is seeded private and relaxed afterwards.
func (a *analyzer) specialize(callee string, vec []string) (string, error) {
	e, ok := a.funcs[callee]
	if !ok {
		return "", irerr.New(irerr.ErrUndefinedFunction, "", "call to undefined function %q", callee)
	}
	if s := e.find(vec); s != nil {
		return s.retTaint, nil
	}
	fnCopy := e.template.Clone()
	for i := range fnCopy.Args {
		if i < len(vec) {
			fnCopy.Args[i].Type.SetTaint(vec[i])
		}
	}
	if a.onStack(callee) {
		s := &specialization{fn: fnCopy, retTaint: bril.TaintPrivate}
		e.specs = append(e.specs, s)
		rt, err := a.analyze(fnCopy)
		if err != nil {
			return "", err
		}
		s.retTaint = rt
		s.ready = true
		return rt, nil
	}
	a.stack = append(a.stack, callee)
	rt, err := a.analyze(fnCopy)
	a.stack = a.stack[:len(a.stack)-1]
	if err != nil {
		return "", err
	}
	if s := e.find(vec); s != nil {
		// A recursive child already registered this vector; adopt the
		// finished result.
		s.fn = fnCopy
		s.retTaint = rt
		s.ready = true
		return rt, nil
	}
	e.specs = append(e.specs, &specialization{fn: fnCopy, retTaint: rt, ready: true})
	return rt, nil
}

// materializeCall rewrites a call to its specialized target and emits the
// specialization into the output program the first time a ready one is
// referenced.
func (a *analyzer) materializeCall(in *bril.Instr, exitEnv map[string]string) error {
	callee := in.Funcs[0]
	vec := make([]string, 0, len(in.Args))
	for _, arg := range in.Args {
		vec = append(vec, taintOf(exitEnv, arg))
	}
	rt, err := a.specialize(callee, vec)
	if err != nil {
		return err
	}
	e := a.funcs[callee]
	s := e.find(vec)
	idx := 0
	for i, cand := range e.specs {
		if cand == s {
			idx = i
			break
		}
	}
	specName := fmt.Sprintf("%s_%d", callee, idx)
	if !s.added && s.ready {
		s.added = true
		emit := s.fn.Clone()
		emit.Name = specName
		a.out.Functions = append(a.out.Functions, emit)
	}
	in.Funcs[0] = specName
	if in.Dest != "" {
		annotate(in, rt)
	}
	return nil
}

func (a *analyzer) onStack(name string) bool {
	for _, n := range a.stack {
		if n == name {
			return true
		}
	}
	return false
}

// taintOf treats a name absent from the environment as private.
func taintOf(env map[string]string, name string) string {
	if t, ok := env[name]; ok {
		return t
	}
	return bril.TaintPrivate
}

// annotate writes the taint onto the instruction's type, upgrading a bare
// primitive to a record form.
func annotate(in *bril.Instr, taint string) {
	if in.Type == nil {
		return
	}
	in.Type.SetTaint(taint)
}
