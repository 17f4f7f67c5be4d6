package disassembler_test

import (
	"testing"

	"github.com/legv8toolkit/legv8/assembler"
	"github.com/legv8toolkit/legv8/disassembler"
	"github.com/legv8toolkit/legv8/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisassembleSynthesizesForwardLabel(t *testing.T) {
	toks, err := token.Tokenize("B target\nHALT\ntarget:\nHALT\n")
	require.NoError(t, err)
	prog, err := assembler.Assemble(toks)
	require.NoError(t, err)

	lines := disassembler.Disassemble(prog.Code)
	require.Len(t, lines, 4)
	assert.Equal(t, "B label0", lines[0])
	assert.Equal(t, "HALT", lines[1])
	assert.Equal(t, "label0:", lines[2])
	assert.Equal(t, "HALT", lines[3])
}

func TestDisassembleSynthesizesBackwardLabel(t *testing.T) {
	toks, err := token.Tokenize("loop:\nADDI X1, X1, #1\nB loop\n")
	require.NoError(t, err)
	prog, err := assembler.Assemble(toks)
	require.NoError(t, err)

	lines := disassembler.Disassemble(prog.Code)
	require.Len(t, lines, 3)
	assert.Equal(t, "label0:", lines[0])
	assert.Equal(t, "ADDI X1, X1, #1", lines[1])
	assert.Equal(t, "B label0", lines[2])
}

func TestDisassembleReusesLabelForSharedTarget(t *testing.T) {
	toks, err := token.Tokenize("B done\nB done\ndone:\nHALT\n")
	require.NoError(t, err)
	prog, err := assembler.Assemble(toks)
	require.NoError(t, err)

	lines := disassembler.Disassemble(prog.Code)
	require.Len(t, lines, 4)
	assert.Equal(t, "B label0", lines[0])
	assert.Equal(t, "B label0", lines[1])
	assert.Equal(t, "label0:", lines[2])
	assert.Equal(t, "HALT", lines[3])
}

func TestDisassembleNonBranchRendersPlainly(t *testing.T) {
	toks, err := token.Tokenize("ADD X1, X2, X3\n")
	require.NoError(t, err)
	prog, err := assembler.Assemble(toks)
	require.NoError(t, err)

	lines := disassembler.Disassemble(prog.Code)
	require.Len(t, lines, 1)
	assert.Equal(t, "ADD X1, X2, X3", lines[0])
}
