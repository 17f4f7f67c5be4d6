package trace_test

import (
	"strings"
	"testing"

	"github.com/legv8toolkit/legv8/register"
	"github.com/legv8toolkit/legv8/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionRecordsInOrder(t *testing.T) {
	ex := trace.NewExecution()
	ex.RecordInstruction(0, "ADDI X1, XZR, #1")
	ex.RecordInstruction(1, "HALT")
	require.Len(t, ex.Entries(), 2)
	assert.Equal(t, "ADDI X1, XZR, #1", ex.Entries()[0].Text)

	var b strings.Builder
	require.NoError(t, ex.Flush(&b))
	assert.Contains(t, b.String(), "HALT")
}

func TestExecutionRespectsMaxEntries(t *testing.T) {
	ex := trace.NewExecution()
	ex.MaxEntries = 1
	ex.RecordInstruction(0, "A")
	ex.RecordInstruction(1, "B")
	assert.Len(t, ex.Entries(), 1)
}

func TestRegistersFilterRestrictsTracking(t *testing.T) {
	r := trace.NewRegisters()
	r.SetFilter([]register.Register{register.Register(1)})
	r.RecordRegisterWrite(register.Register(1), 0, 5)
	r.RecordRegisterWrite(register.Register(2), 0, 7)
	require.Len(t, r.Writes(), 1)
	assert.Equal(t, register.Register(1), r.Writes()[0].Reg)
}

func TestRegistersSummaryCountsUniqueValues(t *testing.T) {
	r := trace.NewRegisters()
	r.RecordRegisterWrite(register.Register(1), 0, 5)
	r.RecordRegisterWrite(register.Register(1), 5, 5)
	r.RecordRegisterWrite(register.Register(1), 5, 9)
	assert.Contains(t, r.Summary(), "2 unique values")
}

func TestFlagsRecordsChanges(t *testing.T) {
	f := trace.NewFlags()
	f.RecordFlagChange(0, 1)
	f.RecordFlagChange(1, 0)
	require.Len(t, f.Changes(), 2)
}

func TestStatisticsReportSortsByDescendingCount(t *testing.T) {
	s := trace.NewStatistics()
	s.RecordInstruction("ADD")
	s.RecordInstruction("ADD")
	s.RecordInstruction("HALT")
	assert.Equal(t, uint64(3), s.Total())

	report := s.Report("")
	addIdx := strings.Index(report, "ADD")
	haltIdx := strings.Index(report, "HALT")
	assert.True(t, addIdx < haltIdx)
}

func TestStatisticsReportCSV(t *testing.T) {
	s := trace.NewStatistics()
	s.RecordInstruction("B")
	csv := s.Report("csv")
	assert.Contains(t, csv, "mnemonic,count")
	assert.Contains(t, csv, "B,1")
}
