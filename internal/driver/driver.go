// Package driver is the shared entry point of every pass tool: a program is
// read as JSON on stdin, the pass runs, and the result is written as JSON
// on stdout. Setting IR_DEBUG=1 routes a human-readable rendition and the
// pass traces to stderr instead of emitting JSON.
package driver

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/tliron/commonlog"

	"brilopt/internal/bril"
	irerr "brilopt/internal/errors"
	"brilopt/internal/pipeline"
	"brilopt/internal/text"
)

// Debug reports whether IR_DEBUG tracing is enabled.
func Debug() bool {
	return os.Getenv("IR_DEBUG") == "1"
}

// Main runs the given passes over the program on stdin and exits the
// process: 0 on success, 1 on malformed input or a pass error.
func Main(passes ...pipeline.Pass) {
	if Debug() {
		// Verbose commonlog output; everything goes to stderr.
		commonlog.Configure(1, nil)
	} else {
		commonlog.Configure(0, nil)
	}

	prog, err := bril.Read(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, irerr.Format(err))
		os.Exit(1)
	}

	// Per-pass status lines go to stderr; stdout carries the program.
	for _, pass := range passes {
		fmt.Fprintf(os.Stderr, "  - %s: %s\n",
			color.CyanString(pass.Name()), pass.Description())
		if err := pass.Apply(prog); err != nil {
			fmt.Fprintln(os.Stderr, irerr.Format(err))
			os.Exit(1)
		}
	}

	if Debug() {
		fmt.Fprint(os.Stderr, text.Print(prog))
		return
	}
	if err := bril.Write(os.Stdout, prog); err != nil {
		fmt.Fprintln(os.Stderr, irerr.Format(err))
		os.Exit(1)
	}
}
