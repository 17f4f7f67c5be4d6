package trace

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/legv8toolkit/legv8/register"
)

// RegisterWrite is one recorded write to a register.
type RegisterWrite struct {
	Sequence uint64
	Reg      register.Register
	Old, New uint64
}

// perRegister tracks write-side statistics for a single register.
type perRegister struct {
	WriteCount   uint64
	LastValue    uint64
	UniqueValues uint64
	valuesSeen   map[uint64]bool
}

// Registers tracks every register write issued during a run, optionally
// filtered down to a subset of registers.
type Registers struct {
	Enabled bool
	Filter  map[register.Register]bool // empty means track every register

	writes []RegisterWrite
	stats  map[register.Register]*perRegister
}

// NewRegisters creates an enabled register trace tracking every register.
func NewRegisters() *Registers {
	return &Registers{
		Enabled: true,
		stats:   make(map[register.Register]*perRegister),
	}
}

// SetFilter restricts tracking to the given registers; an empty or nil
// slice clears the filter back to "track everything".
func (r *Registers) SetFilter(regs []register.Register) {
	r.Filter = make(map[register.Register]bool, len(regs))
	for _, reg := range regs {
		r.Filter[reg] = true
	}
}

// RecordRegisterWrite implements vm.RegisterTracer.
func (r *Registers) RecordRegisterWrite(reg register.Register, old, new uint64) {
	if !r.Enabled {
		return
	}
	if len(r.Filter) > 0 && !r.Filter[reg] {
		return
	}
	seq := uint64(len(r.writes))
	r.writes = append(r.writes, RegisterWrite{Sequence: seq, Reg: reg, Old: old, New: new})

	s, ok := r.stats[reg]
	if !ok {
		s = &perRegister{valuesSeen: make(map[uint64]bool)}
		r.stats[reg] = s
	}
	s.WriteCount++
	s.LastValue = new
	if !s.valuesSeen[new] {
		s.valuesSeen[new] = true
		s.UniqueValues++
	}
}

// Writes returns every recorded write in sequence order.
func (r *Registers) Writes() []RegisterWrite { return r.writes }

// Flush writes one line per write: "[seq] Xn: old -> new".
func (r *Registers) Flush(w io.Writer) error {
	var b strings.Builder
	for _, entry := range r.writes {
		fmt.Fprintf(&b, "[%06d] %s: 0x%x -> 0x%x\n", entry.Sequence, entry.Reg, entry.Old, entry.New)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Summary renders one line per written-to register: write count and
// number of distinct values observed, sorted by register index.
func (r *Registers) Summary() string {
	regs := make([]register.Register, 0, len(r.stats))
	for reg := range r.stats {
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i] < regs[j] })

	var b strings.Builder
	for _, reg := range regs {
		s := r.stats[reg]
		fmt.Fprintf(&b, "%s: %d writes, %d unique values, last=0x%x\n", reg, s.WriteCount, s.UniqueValues, s.LastValue)
	}
	return b.String()
}
