package repl_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/legv8toolkit/legv8/assembler"
	"github.com/legv8toolkit/legv8/repl"
	"github.com/legv8toolkit/legv8/token"
	"github.com/legv8toolkit/legv8/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, src string) *vm.VM {
	t.Helper()
	toks, err := token.Tokenize(src)
	require.NoError(t, err)
	prog, err := assembler.Assemble(toks)
	require.NoError(t, err)
	m := vm.New()
	m.LoadProgram(prog)
	return m
}

func TestRunQuitsImmediately(t *testing.T) {
	m := mustLoad(t, "HALT\n")
	var out bytes.Buffer
	err := repl.Run(m, strings.NewReader("q\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Exiting.")
}

func TestRunStepsAndPrintsRegister(t *testing.T) {
	m := mustLoad(t, "ADDI X1, XZR, #5\nHALT\n")
	var out bytes.Buffer
	err := repl.Run(m, strings.NewReader("s\np X1\nq\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "X1")
}

func TestRunExecutesToEnd(t *testing.T) {
	m := mustLoad(t, "ADDI X1, XZR, #5\nHALT\n")
	var out bytes.Buffer
	err := repl.Run(m, strings.NewReader("r\nq\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Program ended.")
	assert.Equal(t, uint64(5), m.Register(1))
}

func TestRunStopsAtBreakpoint(t *testing.T) {
	m := mustLoad(t, "ADDI X1, XZR, #1\nADDI X2, XZR, #2\nHALT\n")
	var out bytes.Buffer
	err := repl.Run(m, strings.NewReader("b 1\nr\nq\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Stopped at breakpoint")
}

func TestRunReportsUnknownCommand(t *testing.T) {
	m := mustLoad(t, "HALT\n")
	var out bytes.Buffer
	err := repl.Run(m, strings.NewReader("z\nq\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Unknown command")
}

func TestRunDumpIncludesRegisters(t *testing.T) {
	m := mustLoad(t, "HALT\n")
	var out bytes.Buffer
	err := repl.Run(m, strings.NewReader("d\nq\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "X0")
}

func TestRunReportsBadBreakpointArgument(t *testing.T) {
	m := mustLoad(t, "HALT\n")
	var out bytes.Buffer
	err := repl.Run(m, strings.NewReader("b abc\nq\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Error:")
}
