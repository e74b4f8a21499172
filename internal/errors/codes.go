package errors

// Error codes for the IR toolkit.
// These codes are used in error messages to provide consistent error
// identification across the pass tools.
//
// Error code ranges:
// B0001-B0099: IR reader / validation errors
// B0100-B0199: CFG construction errors
// B0200-B0299: SSA errors
// B0300-B0399: Interprocedural analysis errors
// B0400-B0499: Memory analysis errors
const (
	// B0001: a required instruction field is missing or malformed
	ErrMalformedInstr = "B0001"

	// B0002: an unknown or malformed type annotation
	ErrMalformedType = "B0002"

	// B0101: a br/jmp targets a label no block carries
	ErrUndefinedLabel = "B0101"

	// B0201: SSA destruction precondition violated
	ErrNonConventionalSSA = "B0201"

	// B0301: a call names a function the program does not define
	ErrUndefinedFunction = "B0301"

	// B0401: points-to results disagree across blocks for the same name
	ErrAliasInvariant = "B0401"
)
