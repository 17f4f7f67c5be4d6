package token_test

import (
	"testing"

	"github.com/legv8toolkit/legv8/instr"
	"github.com/legv8toolkit/legv8/register"
	"github.com/legv8toolkit/legv8/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeSimpleInstruction(t *testing.T) {
	toks, err := token.Tokenize("ADDI X1, X2, #10\n")
	require.NoError(t, err)
	require.Len(t, toks, 6)
	assert.Equal(t, token.Mnemonic, toks[0].Kind)
	assert.Equal(t, instr.ADDI, toks[0].Tag)
	assert.Equal(t, token.Reg, toks[1].Kind)
	assert.Equal(t, register.Register(1), toks[1].Reg)
	assert.Equal(t, token.Comma, toks[2].Kind)
	assert.Equal(t, token.Reg, toks[3].Kind)
	assert.Equal(t, register.Register(2), toks[3].Reg)
	assert.Equal(t, token.Comma, toks[4].Kind)
	assert.Equal(t, token.Immediate, toks[5].Kind)
	assert.Equal(t, uint16(10), toks[5].Imm)
}

func TestTokenizeMemoryOperand(t *testing.T) {
	toks, err := token.Tokenize("LDUR X1, [SP, #8]\n")
	require.NoError(t, err)
	var kinds []token.Kind
	for _, tk := range toks {
		kinds = append(kinds, tk.Kind)
	}
	assert.Equal(t, []token.Kind{
		token.Mnemonic, token.Reg, token.Comma,
		token.LBrace, token.Reg, token.Comma, token.Immediate, token.RBrace,
	}, kinds)
	assert.Equal(t, register.SP, toks[4].Reg)
}

func TestTokenizeLabelDefinitionAndReference(t *testing.T) {
	toks, err := token.Tokenize("loop:\nB loop\n")
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, token.Label, toks[0].Kind)
	assert.Equal(t, "loop", toks[0].Name)
	assert.Equal(t, token.Mnemonic, toks[1].Kind)
	assert.Equal(t, instr.B, toks[1].Tag)
	assert.Equal(t, token.Label, toks[2].Kind)
	assert.Equal(t, "loop", toks[2].Name)
}

func TestTokenizeSkipsLineComments(t *testing.T) {
	toks, err := token.Tokenize("// a comment\nHALT\n")
	require.NoError(t, err)
	require.Len(t, toks, 1)
	assert.Equal(t, instr.HALT, toks[0].Tag)
}

func TestTokenizeTracksLineNumbers(t *testing.T) {
	toks, err := token.Tokenize("HALT\nHALT\n")
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[1].Line)
}

func TestTokenizeRejectsLoneSlash(t *testing.T) {
	_, err := token.Tokenize("/ HALT\n")
	assert.Error(t, err)
}

func TestTokenizeRejectsInvalidCharacter(t *testing.T) {
	_, err := token.Tokenize("HALT @\n")
	assert.Error(t, err)
}

func TestTokenizeRejectsMalformedImmediate(t *testing.T) {
	_, err := token.Tokenize("ADDI X1, X2, #\n")
	var lexErr *token.LexError
	assert.ErrorAs(t, err, &lexErr)
}
