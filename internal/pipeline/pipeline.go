// Package pipeline sequences the optimization passes over a program. Each
// pass reads a canonically flat program, runs its analysis to a fixed
// point, and writes the flat form back before the next stage starts.
package pipeline

import (
	"brilopt/internal/bril"
	"brilopt/internal/cprop"
	"brilopt/internal/dce"
	"brilopt/internal/lvn"
	"brilopt/internal/mem"
	"brilopt/internal/ssa"
	"brilopt/internal/taint"
)

// Pass is a single program transformation.
type Pass interface {
	Name() string
	Description() string
	Apply(prog *bril.Program) error
}

// Pipeline manages the sequence of passes.
type Pipeline struct {
	passes []Pass
}

// New creates an empty pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

// Default is the standard optimizing pipeline: SSA construction, local
// value numbering, liveness-based dead-code elimination, and SSA
// destruction.
func Default() *Pipeline {
	p := New()
	p.Add(ToSSA{})
	p.Add(LVN{})
	p.Add(DCE{})
	p.Add(FromSSA{})
	return p
}

// Add appends a pass.
func (p *Pipeline) Add(pass Pass) {
	p.passes = append(p.passes, pass)
}

// Passes exposes the configured sequence.
func (p *Pipeline) Passes() []Pass {
	return p.passes
}

// Run executes the passes in order, stopping at the first error.
func (p *Pipeline) Run(prog *bril.Program) error {
	for _, pass := range p.passes {
		if err := pass.Apply(prog); err != nil {
			return err
		}
	}
	return nil
}

// perFunction lifts a function transformation over every function of a
// program.
func perFunction(prog *bril.Program, fn func(*bril.Function) error) error {
	for _, f := range prog.Functions {
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// ToSSA converts every function into SSA form.
type ToSSA struct{}

func (ToSSA) Name() string        { return "to-ssa" }
func (ToSSA) Description() string { return "insert phis and rename to SSA form" }
func (ToSSA) Apply(prog *bril.Program) error {
	return perFunction(prog, ssa.ToSSA)
}

// FromSSA strips SSA names and phis.
type FromSSA struct{}

func (FromSSA) Name() string        { return "from-ssa" }
func (FromSSA) Description() string { return "remove phis and restore base names" }
func (FromSSA) Apply(prog *bril.Program) error {
	return perFunction(prog, ssa.FromSSA)
}

// LVN numbers values block-locally and folds constants.
type LVN struct{}

func (LVN) Name() string        { return "lvn" }
func (LVN) Description() string { return "local value numbering with constant folding" }
func (LVN) Apply(prog *bril.Program) error {
	return perFunction(prog, lvn.Run)
}

// DCE removes dead instructions using live-variable analysis.
type DCE struct{}

func (DCE) Name() string        { return "dce" }
func (DCE) Description() string { return "liveness-driven dead-code elimination" }
func (DCE) Apply(prog *bril.Program) error {
	return perFunction(prog, dce.Run)
}

// TrivialDCE is the cheap use-count elimination.
type TrivialDCE struct{}

func (TrivialDCE) Name() string        { return "trivial-dce" }
func (TrivialDCE) Description() string { return "use-count dead-code elimination" }
func (TrivialDCE) Apply(prog *bril.Program) error {
	return perFunction(prog, dce.Trivial)
}

// ConstProp propagates constants globally.
type ConstProp struct{}

func (ConstProp) Name() string        { return "cprop" }
func (ConstProp) Description() string { return "global constant propagation and folding" }
func (ConstProp) Apply(prog *bril.Program) error {
	return perFunction(prog, cprop.Run)
}

// MemOpt runs points-to analysis and dead-store elimination.
type MemOpt struct{}

func (MemOpt) Name() string        { return "memopt" }
func (MemOpt) Description() string { return "may-alias analysis and dead-store elimination" }
func (MemOpt) Apply(prog *bril.Program) error {
	return perFunction(prog, mem.Run)
}

// Taint runs the interprocedural taint analysis, replacing the program with
// the tainted copy.
type Taint struct{}

func (Taint) Name() string        { return "taint" }
func (Taint) Description() string { return "interprocedural taint with specialization" }
func (Taint) Apply(prog *bril.Program) error {
	out, err := taint.Run(prog)
	if err != nil {
		return err
	}
	prog.Functions = out.Functions
	return nil
}
