// Package vm implements the LEGv8 emulator: a 32-register machine with
// a single flag word, a fixed-size stack and heap, a breakpoint set,
// and a step/run execution loop driven directly off assembled code.
package vm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"
	"strings"

	"github.com/legv8toolkit/legv8/assembler"
	"github.com/legv8toolkit/legv8/instr"
	"github.com/legv8toolkit/legv8/opcode"
	"github.com/legv8toolkit/legv8/register"
)

const (
	stackWords = 64
	heapWords  = 4096 / 8
)

// ErrBreakpoint is returned by Step and Run when execution stops
// because the program counter hit an armed breakpoint. The machine is
// left ready to resume: the next Step or Run call skips re-triggering
// the same breakpoint.
var ErrBreakpoint = errors.New("vm: breakpoint reached")

// ErrProgramEnded is returned by Step and Run when the program counter
// has run off the end of the loaded code.
var ErrProgramEnded = errors.New("vm: end of program reached")

// Fault reports a runtime failure the guest program caused (an
// unaligned or out-of-bounds memory access, a division by zero, or a
// malformed instruction word). Hitting a Fault halts the machine by
// driving the program counter past the end of the loaded code, a
// recoverable error rather than a panic or process exit.
type Fault struct {
	PC  int
	Msg string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("vm: fault at pc=%d: %s", f.PC, f.Msg)
}

// ExecutionTracer receives one call per retired instruction.
type ExecutionTracer interface {
	RecordInstruction(pc int, text string)
}

// RegisterTracer receives one call per register write (including
// writes that leave the value unchanged).
type RegisterTracer interface {
	RecordRegisterWrite(reg register.Register, old, new uint64)
}

// FlagTracer receives one call whenever the flag word changes.
type FlagTracer interface {
	RecordFlagChange(old, new uint64)
}

// StatCollector receives one call per retired instruction, keyed by
// mnemonic, for aggregate performance reporting.
type StatCollector interface {
	RecordInstruction(mnemonic string)
}

// VM is a LEGv8 machine. The zero value is not ready to use; construct
// one with New.
type VM struct {
	Registers [register.Count]uint64
	Flags     uint64
	PC        int

	Code    []opcode.Opcode
	LineMap []int

	Stack [stackWords]uint64
	Heap  [heapWords]uint64

	Breakpoints   map[int]bool
	hitBreakpoint bool

	Steps, Loads, Stores uint64

	// Out receives PRNT/PRNL/DUMP guest output. Defaults to os.Stdout.
	Out io.Writer

	// Trace, RegTrace, FlagTrace, and Stats are nil by default; a
	// driver (cmd/legv8) wires a concrete *trace type in only
	// when the corresponding flag is enabled, so default semantics
	// never depend on tracing being present.
	Trace     ExecutionTracer
	RegTrace  RegisterTracer
	FlagTrace FlagTracer
	Stats     StatCollector
}

// New constructs a VM with its stack pointer initialized to one past
// the top of the stack, exactly as in the reference model.
func New() *VM {
	m := &VM{
		Breakpoints: make(map[int]bool),
		Out:         os.Stdout,
	}
	m.Registers[register.SP] = stackWords * 8
	return m
}

// LoadProgram installs an assembled program and resets the program
// counter to its first instruction. It does not reset register, flag,
// stack, or heap state, so a driver can re-load code mid-session
// without losing state the user is inspecting.
func (m *VM) LoadProgram(p assembler.Program) {
	m.Code = p.Code
	m.LineMap = p.LineMap
	m.PC = 0
}

// Register returns the current value of r; X31 (XZR) always reads 0.
func (m *VM) Register(r register.Register) uint64 {
	if r == register.XZR {
		return 0
	}
	return m.Registers[r]
}

// SetRegister assigns v to r; writes to X31 (XZR) are discarded.
func (m *VM) SetRegister(r register.Register, v uint64) {
	if r == register.XZR {
		return
	}
	old := m.Registers[r]
	m.Registers[r] = v
	if m.RegTrace != nil {
		m.RegTrace.RecordRegisterWrite(r, old, v)
	}
}

func (m *VM) setFlags(v uint64) {
	old := m.Flags
	m.Flags = v
	if m.FlagTrace != nil {
		m.FlagTrace.RecordFlagChange(old, v)
	}
}

// AddBreakpoint arms a breakpoint at the given 1-based source line,
// resolved through the loaded program's line map.
func (m *VM) AddBreakpoint(line int) error {
	if line <= 0 || line > len(m.LineMap) {
		return fmt.Errorf("vm: there are only %d lines in this program", len(m.LineMap))
	}
	m.Breakpoints[m.LineMap[line-1]] = true
	return nil
}

// checkBreakpoint reports whether execution should stop at the current
// PC, latching hitBreakpoint so the very next check passes through.
func (m *VM) checkBreakpoint() bool {
	if !m.hitBreakpoint && m.Breakpoints[m.PC] {
		m.hitBreakpoint = true
		return true
	}
	if m.hitBreakpoint {
		m.hitBreakpoint = false
	}
	return false
}

// Step executes at most one instruction. It returns ErrProgramEnded if
// the program counter is already past the end of the code, ErrBreakpoint
// if execution stopped at an armed breakpoint without executing an
// instruction, or a *Fault from a failed instruction.
func (m *VM) Step() error {
	if m.PC >= len(m.Code) {
		return ErrProgramEnded
	}
	if m.checkBreakpoint() {
		return ErrBreakpoint
	}
	return m.execOne()
}

// Run executes instructions until the program counter runs off the end
// of the code (ErrProgramEnded), a breakpoint is hit (ErrBreakpoint), or
// an instruction faults.
func (m *VM) Run() error {
	for m.PC < len(m.Code) {
		if m.checkBreakpoint() {
			return ErrBreakpoint
		}
		if err := m.execOne(); err != nil {
			return err
		}
	}
	return ErrProgramEnded
}

func (m *VM) execOne() error {
	op := m.Code[m.PC]
	tag, err := op.Tag()
	if err != nil {
		fault := &Fault{PC: m.PC, Msg: err.Error()}
		m.PC = len(m.Code)
		return fault
	}
	pc := m.PC
	if err := m.dispatch(tag, op); err != nil {
		return err
	}
	m.Steps++
	if m.Trace != nil {
		m.Trace.RecordInstruction(pc, op.String())
	}
	if m.Stats != nil {
		m.Stats.RecordInstruction(tag.String())
	}
	return nil
}

func (m *VM) next() { m.PC++ }

func conditionHolds(tag instr.Tag, flags uint64) bool {
	s := int64(flags)
	switch tag {
	case instr.BEQ:
		return flags == 0
	case instr.BNE:
		return flags != 0
	case instr.BHS, instr.BPL, instr.BGE:
		return s >= 0
	case instr.BLO, instr.BMI, instr.BLT:
		return s < 0
	case instr.BVS:
		return false
	case instr.BVC:
		return true
	case instr.BHI, instr.BGT:
		return s > 0
	case instr.BLS, instr.BLE:
		return s <= 0
	default:
		return false
	}
}

func mulHiSigned(a, b int64) int64 {
	hi, _ := bits.Mul64(uint64(a), uint64(b))
	if a < 0 {
		hi -= uint64(b)
	}
	if b < 0 {
		hi -= uint64(a)
	}
	return int64(hi)
}

func (m *VM) dispatch(tag instr.Tag, op opcode.Opcode) error {
	switch tag {
	case instr.ADD:
		m.SetRegister(op.Rd(), m.Register(op.Rn())+m.Register(op.Rm()))
		m.next()
	case instr.ADDS:
		v := m.Register(op.Rn()) + m.Register(op.Rm())
		m.SetRegister(op.Rd(), v)
		m.setFlags(v)
		m.next()
	case instr.SUB:
		m.SetRegister(op.Rd(), m.Register(op.Rn())-m.Register(op.Rm()))
		m.next()
	case instr.SUBS:
		v := m.Register(op.Rn()) - m.Register(op.Rm())
		m.SetRegister(op.Rd(), v)
		m.setFlags(v)
		m.next()
	case instr.AND:
		m.SetRegister(op.Rd(), m.Register(op.Rn())&m.Register(op.Rm()))
		m.next()
	case instr.ANDS:
		v := m.Register(op.Rn()) & m.Register(op.Rm())
		m.SetRegister(op.Rd(), v)
		m.setFlags(v)
		m.next()
	case instr.EOR:
		m.SetRegister(op.Rd(), m.Register(op.Rn())^m.Register(op.Rm()))
		m.next()
	case instr.ORR:
		m.SetRegister(op.Rd(), m.Register(op.Rn())|m.Register(op.Rm()))
		m.next()
	case instr.MUL:
		m.SetRegister(op.Rd(), m.Register(op.Rn())*m.Register(op.Rm()))
		m.next()
	case instr.SDIV:
		rm := int64(m.Register(op.Rm()))
		if rm == 0 {
			return m.fault("division by zero")
		}
		m.SetRegister(op.Rd(), uint64(int64(m.Register(op.Rn()))/rm))
		m.next()
	case instr.UDIV:
		rm := m.Register(op.Rm())
		if rm == 0 {
			return m.fault("division by zero")
		}
		m.SetRegister(op.Rd(), m.Register(op.Rn())/rm)
		m.next()
	case instr.SMULH:
		m.SetRegister(op.Rd(), uint64(mulHiSigned(int64(m.Register(op.Rn())), int64(m.Register(op.Rm())))))
		m.next()
	case instr.UMULH:
		hi, _ := bits.Mul64(m.Register(op.Rn()), m.Register(op.Rm()))
		m.SetRegister(op.Rd(), hi)
		m.next()
	case instr.LSL:
		m.SetRegister(op.Rd(), m.Register(op.Rn())<<op.Shamt())
		m.next()
	case instr.LSR:
		m.SetRegister(op.Rd(), m.Register(op.Rn())>>op.Shamt())
		m.next()
	case instr.BR:
		m.PC = int(m.Register(op.Rn()))

	case instr.FADDS, instr.FSUBS, instr.FMULS, instr.FDIVS, instr.FCMPS:
		m.execFloat32(tag, op)
		m.next()
	case instr.FADDD, instr.FSUBD, instr.FMULD, instr.FDIVD, instr.FCMPD:
		m.execFloat64(tag, op)
		m.next()

	case instr.ADDI:
		m.SetRegister(op.Rd(), m.Register(op.Rn())+uint64(op.IImm()))
		m.next()
	case instr.ADDIS:
		v := m.Register(op.Rn()) + uint64(op.IImm())
		m.SetRegister(op.Rd(), v)
		m.setFlags(v)
		m.next()
	case instr.SUBI:
		m.SetRegister(op.Rd(), m.Register(op.Rn())-uint64(op.IImm()))
		m.next()
	case instr.SUBIS:
		v := m.Register(op.Rn()) - uint64(op.IImm())
		m.SetRegister(op.Rd(), v)
		m.setFlags(v)
		m.next()
	case instr.ANDI:
		m.SetRegister(op.Rd(), m.Register(op.Rn())&uint64(op.IImm()))
		m.next()
	case instr.ANDIS:
		v := m.Register(op.Rn()) & uint64(op.IImm())
		m.SetRegister(op.Rd(), v)
		m.setFlags(v)
		m.next()
	case instr.ORRI:
		m.SetRegister(op.Rd(), m.Register(op.Rn())|uint64(op.IImm()))
		m.next()
	case instr.EORI:
		m.SetRegister(op.Rd(), m.Register(op.Rn())^uint64(op.IImm()))
		m.next()

	case instr.MOVZ:
		m.SetRegister(op.Rd(), uint64(op.Imm()))
		m.next()
	case instr.MOVK:
		v := (m.Register(op.Rd()) &^ 0xFFFF) | uint64(op.Imm())
		m.SetRegister(op.Rd(), v)
		m.next()

	case instr.CBZ:
		if m.Register(op.Rt()) == 0 {
			m.PC += int(op.CBAddr())
		} else {
			m.next()
		}
	case instr.CBNZ:
		if m.Register(op.Rt()) != 0 {
			m.PC += int(op.CBAddr())
		} else {
			m.next()
		}
	case instr.B:
		m.PC += int(op.BAddr())
	case instr.BL:
		m.SetRegister(register.LR, uint64(m.PC+1))
		m.PC += int(op.BAddr())

	case instr.PRNT:
		fmt.Fprintln(m.Out, m.PrintRegister(op.Rd()))
		m.next()
	case instr.PRNL:
		fmt.Fprintln(m.Out)
		m.next()
	case instr.DUMP:
		fmt.Fprint(m.Out, m.Dump())
		m.next()
	case instr.HALT:
		m.PC = len(m.Code)

	case instr.STUR, instr.STURB, instr.STURH, instr.STURW, instr.STURS, instr.STURD, instr.STXR:
		return m.store(tag, op)
	case instr.LDUR, instr.LDURB, instr.LDURH, instr.LDURSW, instr.LDURS, instr.LDURD, instr.LDXR:
		return m.load(tag, op)

	default:
		if isBCondFamily(tag) {
			if conditionHolds(tag, m.Flags) {
				m.PC += int(op.CBAddr())
			} else {
				m.next()
			}
			return nil
		}
		return m.fault(fmt.Sprintf("instruction %s is not implemented", tag))
	}
	return nil
}

func isBCondFamily(tag instr.Tag) bool {
	switch tag {
	case instr.BEQ, instr.BNE, instr.BHS, instr.BLO, instr.BMI, instr.BPL,
		instr.BVS, instr.BVC, instr.BHI, instr.BLS, instr.BGT, instr.BLT,
		instr.BGE, instr.BLE:
		return true
	}
	return false
}

func (m *VM) execFloat32(tag instr.Tag, op opcode.Opcode) {
	a := math.Float32frombits(uint32(m.Register(op.Rn())))
	b := math.Float32frombits(uint32(m.Register(op.Rm())))
	switch tag {
	case instr.FADDS:
		m.SetRegister(op.Rd(), uint64(math.Float32bits(a+b)))
	case instr.FSUBS:
		m.SetRegister(op.Rd(), uint64(math.Float32bits(a-b)))
	case instr.FMULS:
		m.SetRegister(op.Rd(), uint64(math.Float32bits(a*b)))
	case instr.FDIVS:
		m.SetRegister(op.Rd(), uint64(math.Float32bits(a/b)))
	case instr.FCMPS:
		m.setFlags(compareFlags(float64(a), float64(b)))
	}
}

func (m *VM) execFloat64(tag instr.Tag, op opcode.Opcode) {
	a := math.Float64frombits(m.Register(op.Rn()))
	b := math.Float64frombits(m.Register(op.Rm()))
	switch tag {
	case instr.FADDD:
		m.SetRegister(op.Rd(), math.Float64bits(a+b))
	case instr.FSUBD:
		m.SetRegister(op.Rd(), math.Float64bits(a-b))
	case instr.FMULD:
		m.SetRegister(op.Rd(), math.Float64bits(a*b))
	case instr.FDIVD:
		m.SetRegister(op.Rd(), math.Float64bits(a/b))
	case instr.FCMPD:
		m.setFlags(compareFlags(a, b))
	}
}

func compareFlags(a, b float64) uint64 {
	switch {
	case a == b:
		return 0
	case a < b:
		return ^uint64(0)
	default:
		return 1
	}
}

func (m *VM) fault(msg string) error {
	f := &Fault{PC: m.PC, Msg: msg}
	m.PC = len(m.Code)
	return f
}

// widthFor returns the access width in bytes for a D-type mnemonic; the
// narrower widths read or write only the low bits of the addressed
// 64-bit slot, since the backing stack/heap are word arrays rather than
// byte-addressed memory.
func widthFor(tag instr.Tag) int {
	switch tag {
	case instr.STURB, instr.LDURB:
		return 1
	case instr.STURH, instr.LDURH:
		return 2
	case instr.STURW, instr.LDURSW, instr.STURS, instr.LDURS:
		return 4
	default:
		return 8
	}
}

func signExtends(tag instr.Tag) bool {
	return tag == instr.LDURSW
}

func widthMask(width int) uint64 {
	if width >= 8 {
		return ^uint64(0)
	}
	return (uint64(1) << (uint(width) * 8)) - 1
}

func signExtendN(v uint64, bits uint) uint64 {
	shift := 64 - bits
	return uint64(int64(v<<shift) >> shift)
}

// resolveAddress computes the word-array index addr+Register(rn)
// resolves to, and which array (stack for SP-relative access, heap
// otherwise) it lives in. The address must be 8-byte aligned even for
// sub-word accesses, since the backing arrays are addressed in whole
// 64-bit words.
func (m *VM) resolveAddress(rn register.Register, addr uint16) (idx int, stack bool, err error) {
	full := m.Register(rn) + uint64(addr)
	if full%8 != 0 {
		return 0, false, m.fault(fmt.Sprintf("unaligned memory access at address 0x%x", full))
	}
	idx = int(full / 8)
	stack = rn == register.SP
	if stack {
		if idx < 0 || idx >= len(m.Stack) {
			return 0, false, m.fault(fmt.Sprintf("stack address 0x%x out of bounds", full))
		}
	} else {
		if idx < 0 || idx >= len(m.Heap) {
			return 0, false, m.fault(fmt.Sprintf("heap address 0x%x out of bounds", full))
		}
	}
	return idx, stack, nil
}

func (m *VM) store(tag instr.Tag, op opcode.Opcode) error {
	idx, stack, err := m.resolveAddress(op.Rn(), op.DAddr())
	if err != nil {
		return err
	}
	mask := widthMask(widthFor(tag))
	v := m.Register(op.Rt()) & mask
	if stack {
		m.Stack[idx] = (m.Stack[idx] &^ mask) | v
	} else {
		m.Heap[idx] = (m.Heap[idx] &^ mask) | v
	}
	m.Stores++
	m.next()
	return nil
}

func (m *VM) load(tag instr.Tag, op opcode.Opcode) error {
	idx, stack, err := m.resolveAddress(op.Rn(), op.DAddr())
	if err != nil {
		return err
	}
	var word uint64
	if stack {
		word = m.Stack[idx]
	} else {
		word = m.Heap[idx]
	}
	width := widthFor(tag)
	v := word & widthMask(width)
	if signExtends(tag) {
		v = signExtendN(v, uint(width)*8)
	}
	m.SetRegister(op.Rt(), v)
	m.Loads++
	m.next()
	return nil
}

func registerPrefix(i int) string {
	switch i {
	case int(register.IP0):
		return "(IP0) "
	case int(register.IP1):
		return "(IP1) "
	case int(register.SP):
		return " (SP) "
	case int(register.FR):
		return " (FR) "
	case int(register.LR):
		return " (LR) "
	case int(register.XZR):
		return "(XZR) "
	default:
		return "      "
	}
}

func registerLabel(i int) string {
	pad := ""
	if i < 10 {
		pad = " "
	}
	return fmt.Sprintf("%sX%d:%s", registerPrefix(i), i, pad)
}

// PrintRegister renders one register the way the guest-visible PRNT
// instruction and Dump's register table do: label, little-endian hex
// bytes, and the decimal value.
func (m *VM) PrintRegister(r register.Register) string {
	v := m.Register(r)
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], v)
	var hex strings.Builder
	for _, b := range raw {
		fmt.Fprintf(&hex, "%02x", b)
	}
	return fmt.Sprintf("%s 0x%s (%d)", registerLabel(int(r)), hex.String(), v)
}

func printLittleEndian(w io.Writer, x uint64) {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], x)
	for _, b := range raw {
		fmt.Fprintf(w, "%02x ", b)
	}
}

func printLittleEndianASCII(w io.Writer, x uint64) {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], x)
	for _, b := range raw {
		if b >= 32 && b <= 126 {
			fmt.Fprintf(w, "%c", b)
		} else {
			fmt.Fprint(w, ".")
		}
	}
}

// Dump renders the full machine state: every register, the stack and
// heap as hex+ASCII tables, and the instruction/load/store counters.
func (m *VM) Dump() string {
	var b strings.Builder

	fmt.Fprintln(&b, "Registers:")
	for i := 0; i < register.Count; i++ {
		fmt.Fprintln(&b, m.PrintRegister(register.Register(i)))
	}

	fmt.Fprintln(&b, "\nStack:\n")
	fmt.Fprintln(&b, "                         *** HOW TO READ THIS TABLE ***")
	fmt.Fprintln(&b, "The left-most column is the offset in hexidecimal of the beginning of the line.")
	fmt.Fprintln(&b, "The next 16 columns are the values of the 16 bytes following the line offset,")
	fmt.Fprintln(&b, "also in hex.  The final column, between vertical bars, gives the text value of")
	fmt.Fprintln(&b, "the same 16 bytes; if the value is not printable, or if it is a literal period,")
	fmt.Fprintln(&b, "it is represented with a period.  The bars are for demarkation; they are not")
	fmt.Fprintln(&b, "part of the data.  The final line, a single hexidecimal number on the left")
	fmt.Fprintln(&b, "column, gives the size of the data.")
	fmt.Fprintln(&b)

	dumpTable(&b, m.Stack[:])
	fmt.Fprintln(&b, "\nMain Memory:")
	dumpTable(&b, m.Heap[:])

	fmt.Fprintln(&b, "\nExtra:")
	fmt.Fprintf(&b, "Instructions executed: %d\n", m.Steps)
	fmt.Fprintf(&b, "         Loads issued: %d\n", m.Loads)
	fmt.Fprintf(&b, "        Stores issued: %d\n", m.Stores)

	return b.String()
}

func dumpTable(b *strings.Builder, words []uint64) {
	for i := 0; i < len(words)/2; i++ {
		fmt.Fprintf(b, "%08x  ", i*2*8)
		printLittleEndian(b, words[2*i])
		fmt.Fprint(b, " ")
		printLittleEndian(b, words[2*i+1])
		fmt.Fprint(b, " |")
		printLittleEndianASCII(b, words[2*i])
		printLittleEndianASCII(b, words[2*i+1])
		fmt.Fprintln(b, "|")
	}
	fmt.Fprintf(b, "%08x\n", len(words)*8)
}
