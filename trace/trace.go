// Package trace implements optional execution, register, flag, and
// statistics recorders for the LEGv8 emulator. Each recorder satisfies
// one of vm's small hook interfaces, so a driver wires in only the
// recorders a run actually needs; none of this package is required for
// the emulator to run.
package trace

import (
	"fmt"
	"io"
	"strings"
)

// Entry is one retired instruction.
type Entry struct {
	Sequence uint64
	PC       int
	Text     string
}

// Execution records one Entry per retired instruction and can flush
// them to a writer in order.
type Execution struct {
	Enabled    bool
	MaxEntries int

	entries []Entry
}

// NewExecution creates an enabled execution trace with no entry cap.
func NewExecution() *Execution {
	return &Execution{Enabled: true}
}

// RecordInstruction implements vm.ExecutionTracer.
func (e *Execution) RecordInstruction(pc int, text string) {
	if !e.Enabled {
		return
	}
	if e.MaxEntries > 0 && len(e.entries) >= e.MaxEntries {
		return
	}
	e.entries = append(e.entries, Entry{Sequence: uint64(len(e.entries)), PC: pc, Text: text})
}

// Entries returns the recorded entries in execution order.
func (e *Execution) Entries() []Entry { return e.entries }

// Clear discards all recorded entries.
func (e *Execution) Clear() { e.entries = nil }

// Flush writes one line per entry: "[seq] pc: text".
func (e *Execution) Flush(w io.Writer) error {
	var b strings.Builder
	for _, entry := range e.entries {
		fmt.Fprintf(&b, "[%06d] %04d: %s\n", entry.Sequence, entry.PC, entry.Text)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
