package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	irerr "brilopt/internal/errors"
	"brilopt/internal/text"
)

func TestDiagnoseNil(t *testing.T) {
	assert.Nil(t, Diagnose(nil))
}

func TestDiagnoseParseError(t *testing.T) {
	_, err := text.ParseString("bad.bril", "@main { x: int = ; }")
	require.Error(t, err)

	diags := Diagnose(err)
	require.Len(t, diags, 1)
	assert.NotNil(t, diags[0].Severity)
	assert.NotEmpty(t, diags[0].Message)
}

func TestDiagnoseValidationError(t *testing.T) {
	err := irerr.New(irerr.ErrMalformedInstr, irerr.InstrPath(0, 2), "br needs 2 label(s), has 0")
	diags := Diagnose(err)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "functions[0].instrs[2]")
	require.NotNil(t, diags[0].Source)
	assert.Equal(t, "brilopt-validate", *diags[0].Source)
}
