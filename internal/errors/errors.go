// Package errors defines the structured errors the pass tools report, each
// carrying a stable code and a JSON-style path to the offending instruction.
package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// PassError is a fatal input or precondition error raised by a pass.
type PassError struct {
	Code    string // stable code like B0001
	Message string // primary error message
	Path    string // path to the offending instruction, e.g. functions[1].instrs[3]
}

func (e *PassError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
}

// New builds a PassError with a formatted message.
func New(code, path, format string, args ...any) *PassError {
	return &PassError{Code: code, Message: fmt.Sprintf(format, args...), Path: path}
}

// InstrPath renders the canonical path to an instruction inside a program.
func InstrPath(fnIdx, instrIdx int) string {
	return fmt.Sprintf("functions[%d].instrs[%d]", fnIdx, instrIdx)
}

// FnPath renders the canonical path to a function inside a program.
func FnPath(fnIdx int) string {
	return fmt.Sprintf("functions[%d]", fnIdx)
}

// Format renders an error for the terminal, color-coding PassErrors the same
// way across every tool.
func Format(err error) string {
	var b strings.Builder
	bold := color.New(color.Bold).SprintFunc()
	if pe, ok := err.(*PassError); ok {
		b.WriteString(color.RedString("error[%s]", pe.Code))
		b.WriteString(": ")
		b.WriteString(bold(pe.Message))
		if pe.Path != "" {
			b.WriteString("\n  --> ")
			b.WriteString(pe.Path)
		}
		return b.String()
	}
	b.WriteString(color.RedString("error"))
	b.WriteString(": ")
	b.WriteString(err.Error())
	return b.String()
}
