package tools_test

import (
	"strings"
	"testing"

	"github.com/legv8toolkit/legv8/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatReemitsCanonicalSpacing(t *testing.T) {
	out, err := tools.Format("ADDI   X1,XZR,#5\nHALT\n")
	require.NoError(t, err)
	assert.Equal(t, "ADDI X1, XZR, #5\nHALT\n", out)
}

func TestFormatSynthesizesLabelNames(t *testing.T) {
	out, err := tools.Format("loop:\nADDI X1, X1, #1\nB loop\n")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "label0:\n"))
	assert.Contains(t, out, "B label0")
}

func TestFormatIsIdempotent(t *testing.T) {
	first, err := tools.Format("B target\nHALT\ntarget:\nHALT\n")
	require.NoError(t, err)
	second, err := tools.Format(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFormatPropagatesAssemblyErrors(t *testing.T) {
	_, err := tools.Format("NOTAMNEMONIC X1, X2, X3\n")
	assert.Error(t, err)
}
