// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"brilopt/internal/bril"
	"brilopt/internal/cfg"
	irerr "brilopt/internal/errors"
	"brilopt/internal/text"
)

// brilopt-cfg reads a program on stdin and dumps every function's basic
// blocks and edges in the textual form, for inspecting what the CFG
// builder produced.
func main() {
	prog, err := bril.Read(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, irerr.Format(err))
		os.Exit(1)
	}
	for _, fn := range prog.Functions {
		blocks, err := cfg.Build(fn, false)
		if err != nil {
			fmt.Fprintln(os.Stderr, irerr.Format(err))
			os.Exit(1)
		}
		color.Cyan("----- function @%s -----", fn.Name)
		for id, b := range blocks {
			color.Yellow("----- block %d (.%s) pred=%v succ=%v -----", id, b.Label, b.Pred, b.Succ)
			part := &bril.Program{Functions: []*bril.Function{{Name: fn.Name, Instrs: b.Instrs}}}
			out := text.Print(part)
			// Trim the function wrapper lines; only the body is useful here.
			fmt.Print(trimWrapper(out))
		}
	}
}

func trimWrapper(s string) string {
	lines := []byte(s)
	start := 0
	for i := range lines {
		if lines[i] == '\n' {
			start = i + 1
			break
		}
	}
	end := len(lines)
	for i := len(lines) - 2; i >= 0; i-- {
		if lines[i] == '\n' {
			end = i + 1
			break
		}
	}
	if start >= end {
		return ""
	}
	return string(lines[start:end])
}
