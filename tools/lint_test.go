package tools_test

import (
	"testing"

	"github.com/legv8toolkit/legv8/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLintFlagsUnusedLabel(t *testing.T) {
	issues, err := tools.Lint("unused:\nADDI X1, XZR, #1\nHALT\n")
	require.NoError(t, err)

	require.Len(t, issues, 1)
	assert.Equal(t, "UNUSED_LABEL", issues[0].Code)
	assert.Contains(t, issues[0].Message, "unused")
}

func TestLintAllowsReferencedLabel(t *testing.T) {
	issues, err := tools.Lint("loop:\nADDI X1, X1, #1\nB loop\n")
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestLintFlagsWriteToXZR(t *testing.T) {
	issues, err := tools.Lint("ADD XZR, X1, X2\nHALT\n")
	require.NoError(t, err)

	require.Len(t, issues, 1)
	assert.Equal(t, "WRITE_TO_XZR", issues[0].Code)
}

func TestLintAllowsXZRAsSource(t *testing.T) {
	issues, err := tools.Lint("ADD X1, XZR, XZR\nHALT\n")
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestLintPropagatesAssemblyErrors(t *testing.T) {
	_, err := tools.Lint("B nowhere\nHALT\n")
	assert.Error(t, err)
}

func TestLintSortsIssuesByLine(t *testing.T) {
	issues, err := tools.Lint("ADD XZR, X1, X2\nunused:\nHALT\n")
	require.NoError(t, err)

	require.Len(t, issues, 2)
	assert.LessOrEqual(t, issues[0].Line, issues[1].Line)
}
