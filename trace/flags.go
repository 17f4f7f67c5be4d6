package trace

import (
	"fmt"
	"io"
	"strings"
)

// FlagChange is one recorded change to the machine's flag word.
type FlagChange struct {
	Sequence uint64
	Old, New uint64
}

// Flags tracks every change to the flag word, which SUBS/ADDS/ANDS and
// their immediate-form and floating-point-compare siblings set.
type Flags struct {
	Enabled bool

	changes []FlagChange
}

// NewFlags creates an enabled flag trace.
func NewFlags() *Flags {
	return &Flags{Enabled: true}
}

// RecordFlagChange implements vm.FlagTracer.
func (f *Flags) RecordFlagChange(old, new uint64) {
	if !f.Enabled {
		return
	}
	f.changes = append(f.changes, FlagChange{Sequence: uint64(len(f.changes)), Old: old, New: new})
}

// Changes returns every recorded flag change in sequence order.
func (f *Flags) Changes() []FlagChange { return f.changes }

// Flush writes one line per change: "[seq] old -> new".
func (f *Flags) Flush(w io.Writer) error {
	var b strings.Builder
	for _, c := range f.changes {
		fmt.Fprintf(&b, "[%06d] 0x%x -> 0x%x\n", c.Sequence, c.Old, c.New)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
