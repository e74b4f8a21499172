// Package text renders and parses the textual form of the IR. The syntax is
// the usual one: functions head with @name, labels are ".name:", value
// instructions read "dest: type = op operands;", and operands reference
// labels as ".l" and callees as "@f". Pointer types print as ptr<T> and a
// taint attribute prefixes the type it qualifies.
package text

import (
	"fmt"
	"strings"

	"brilopt/internal/bril"
)

// Print renders a whole program.
func Print(prog *bril.Program) string {
	var b strings.Builder
	for _, fn := range prog.Functions {
		printFunction(&b, fn)
	}
	return b.String()
}

func printFunction(b *strings.Builder, fn *bril.Function) {
	fmt.Fprintf(b, "@%s", fn.Name)
	if len(fn.Args) > 0 {
		b.WriteByte('(')
		for i, a := range fn.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%s: %s", a.Name, a.Type)
		}
		b.WriteByte(')')
	}
	if fn.Type != nil {
		fmt.Fprintf(b, ": %s", fn.Type)
	}
	b.WriteString(" {\n")
	for ii := range fn.Instrs {
		printInstr(b, &fn.Instrs[ii])
	}
	b.WriteString("}\n")
}

func printInstr(b *strings.Builder, in *bril.Instr) {
	if in.IsLabel() {
		fmt.Fprintf(b, ".%s:\n", in.Label)
		return
	}
	b.WriteString("  ")
	if in.Dest != "" {
		b.WriteString(in.Dest)
		if in.Type != nil {
			fmt.Fprintf(b, ": %s", in.Type)
		}
		b.WriteString(" = ")
	}
	b.WriteString(in.Op)
	for _, f := range in.Funcs {
		fmt.Fprintf(b, " @%s", f)
	}
	for _, a := range in.Args {
		fmt.Fprintf(b, " %s", a)
	}
	for _, l := range in.Labels {
		fmt.Fprintf(b, " .%s", l)
	}
	if in.Value != nil {
		fmt.Fprintf(b, " %s", in.Value)
	}
	b.WriteString(";\n")
}
