package lsp

import (
	"github.com/alecthomas/participle/v2"
	protocol "github.com/tliron/glsp/protocol_3_16"

	irerr "brilopt/internal/errors"
)

// Diagnose transforms a parse or validation error into LSP diagnostics for
// IDE display. Participle errors carry a source position; validation errors
// anchor at the top of the document with their instruction path in the
// message.
func Diagnose(err error) []protocol.Diagnostic {
	if err == nil {
		return nil
	}

	if pe, ok := err.(participle.Error); ok {
		pos := pe.Position()
		line := uint32(0)
		char := uint32(0)
		if pos.Line > 0 {
			line = uint32(pos.Line - 1)
		}
		if pos.Column > 0 {
			char = uint32(pos.Column - 1)
		}
		return []protocol.Diagnostic{{
			Range: protocol.Range{
				Start: protocol.Position{Line: line, Character: char},
				End:   protocol.Position{Line: line, Character: char + 4},
			},
			Severity: ptrSeverity(protocol.DiagnosticSeverityError),
			Source:   ptrString("brilopt-parser"),
			Message:  pe.Message(),
		}}
	}

	message := err.Error()
	source := "brilopt"
	if pe, ok := err.(*irerr.PassError); ok {
		message = pe.Message
		if pe.Path != "" {
			message += " (" + pe.Path + ")"
		}
		source = "brilopt-validate"
	}
	return []protocol.Diagnostic{{
		Range: protocol.Range{
			Start: protocol.Position{Line: 0, Character: 0},
			End:   protocol.Position{Line: 0, Character: 1},
		},
		Severity: ptrSeverity(protocol.DiagnosticSeverityError),
		Source:   ptrString(source),
		Message:  message,
	}}
}

func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity {
	return &s
}

func ptrString(s string) *string {
	return &s
}
