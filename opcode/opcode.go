// Package opcode implements the LEGv8 32-bit instruction word: the bit
// layout of every supported family (R/I/D/IM/B/CB/B.cond/Special) and
// the constructors and field accessors built on top of it.
package opcode

import (
	"fmt"
	"strconv"

	"github.com/legv8toolkit/legv8/instr"
	"github.com/legv8toolkit/legv8/register"
)

// Opcode is a single 32-bit LEGv8 machine word.
type Opcode uint32

// Range errors returned by the constructors below name the field and
// the limit it exceeded; they wrap no sentinel because each is already
// specific enough for a caller to act on.

func rangeErr(field string, v int64, bits uint) error {
	return fmt.Errorf("opcode: %s value %d does not fit in %d bits", field, v, bits)
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

func fitsUnsigned(v uint64, bits uint) bool {
	return v < (uint64(1) << bits)
}

func fitsSigned(v int64, bits uint) bool {
	lo := -(int64(1) << (bits - 1))
	hi := int64(1)<<(bits-1) - 1
	return v >= lo && v <= hi
}

// --- R-type: prefix | rm<<16 | rn<<5 | rd ---

// NewR builds a three-register R-type instruction (ADD, AND, ORR, SUB,
// their flag-setting siblings, MUL/SDIV/UDIV/SMULH/UMULH, and the
// floating-point arithmetic/compare family).
func NewR(tag instr.Tag, rd, rn, rm register.Register) Opcode {
	return Opcode(instr.EncodePrefix(tag)) | Opcode(uint32(rm)<<16) | Opcode(uint32(rn)<<5) | Opcode(uint32(rd))
}

// NewShift builds LSL/LSR, the two-register R-type siblings that carry
// a 6-bit shift amount instead of an Rm.
func NewShift(tag instr.Tag, rd, rn register.Register, shamt uint8) (Opcode, error) {
	if shamt >= 64 {
		return 0, rangeErr("shamt", int64(shamt), 6)
	}
	return Opcode(instr.EncodePrefix(tag)) | Opcode(uint32(shamt)&0x3F)<<10 | Opcode(uint32(rn))<<5 | Opcode(uint32(rd)), nil
}

// NewBR builds the single-register BR instruction.
func NewBR(rt register.Register) Opcode {
	return Opcode(instr.EncodePrefix(instr.BR)) | Opcode(uint32(rt))<<5
}

// Rd returns the destination register field shared by R/I/D/IM-type words.
func (o Opcode) Rd() register.Register { return register.Register(o & 0x1F) }

// Rn returns the first source register field shared by R/I/D-type words.
func (o Opcode) Rn() register.Register { return register.Register((o >> 5) & 0x1F) }

// Rm returns the second source register field of an R-type word.
func (o Opcode) Rm() register.Register { return register.Register((o >> 16) & 0x1F) }

// Rt returns the transfer/target register field of a D-type or CBZ/CBNZ word.
func (o Opcode) Rt() register.Register { return register.Register(o & 0x1F) }

// Shamt returns the 6-bit shift amount of an LSL/LSR word.
func (o Opcode) Shamt() uint8 { return uint8((o >> 10) & 0x3F) }

// --- I-type: prefix | imm12<<10 | rn<<5 | rd ---

// NewI builds ADDI/ADDIS/ANDI/ANDIS/ORRI/EORI/SUBI/SUBIS, which carry a
// 12-bit unsigned immediate.
func NewI(tag instr.Tag, rd, rn register.Register, imm uint16) (Opcode, error) {
	if !fitsUnsigned(uint64(imm), 12) {
		return 0, rangeErr("imm", int64(imm), 12)
	}
	return Opcode(instr.EncodePrefix(tag)) | Opcode(uint32(imm))<<10 | Opcode(uint32(rn))<<5 | Opcode(uint32(rd)), nil
}

// IImm returns the 12-bit immediate field of an I-type word.
func (o Opcode) IImm() uint16 { return uint16((o >> 10) & 0xFFF) }

// --- D-type: prefix | addr9<<12 | rn<<5 | rt ---

// NewD builds the LDUR/STUR family, which carry a 9-bit unsigned
// byte-offset immediate.
func NewD(tag instr.Tag, rt, rn register.Register, addr uint16) (Opcode, error) {
	if !fitsUnsigned(uint64(addr), 9) {
		return 0, rangeErr("addr", int64(addr), 9)
	}
	return Opcode(instr.EncodePrefix(tag)) | Opcode(uint32(addr))<<12 | Opcode(uint32(rn))<<5 | Opcode(uint32(rt)), nil
}

// DAddr returns the 9-bit offset field of a D-type word.
func (o Opcode) DAddr() uint16 { return uint16((o >> 12) & 0x1FF) }

// --- IM-type: prefix | imm16<<5 | rd ---

// NewIM builds MOVZ/MOVK, which carry a 16-bit unsigned immediate.
func NewIM(tag instr.Tag, rd register.Register, imm uint16) Opcode {
	return Opcode(instr.EncodePrefix(tag)) | Opcode(uint32(imm))<<5 | Opcode(uint32(rd))
}

// Imm returns the 16-bit immediate field of an IM-type word.
func (o Opcode) Imm() uint16 { return uint16((o >> 5) & 0xFFFF) }

// --- B-type: prefix | addr26 ---

const bAddrBits = 26

// NewB builds B/BL, which carry a 26-bit signed word-displacement.
func NewB(tag instr.Tag, addr int32) (Opcode, error) {
	if !fitsSigned(int64(addr), bAddrBits) {
		return 0, rangeErr("addr", int64(addr), bAddrBits)
	}
	return Opcode(instr.EncodePrefix(tag)) | Opcode(uint32(addr)&0x3FFFFFF), nil
}

// BAddr returns the sign-extended 26-bit displacement of a B/BL word.
func (o Opcode) BAddr() int32 { return signExtend(uint32(o)&0x3FFFFFF, bAddrBits) }

// --- CB-type: prefix | addr19<<5 | rt ---
// --- B.cond: prefix | addr19<<5 (condition code folded into the prefix) ---

const cbAddrBits = 19

// NewCB builds CBZ/CBNZ, which carry a register and a 19-bit signed
// word-displacement.
func NewCB(tag instr.Tag, rt register.Register, addr int32) (Opcode, error) {
	if !fitsSigned(int64(addr), cbAddrBits) {
		return 0, rangeErr("addr", int64(addr), cbAddrBits)
	}
	return Opcode(instr.EncodePrefix(tag)) | (Opcode(uint32(addr)&0x7FFFF) << 5) | Opcode(uint32(rt)), nil
}

// NewBCond builds the B.EQ..B.LE family, which carry only a 19-bit
// signed word-displacement (the condition code is folded into the
// opcode prefix).
func NewBCond(tag instr.Tag, addr int32) (Opcode, error) {
	if !fitsSigned(int64(addr), cbAddrBits) {
		return 0, rangeErr("addr", int64(addr), cbAddrBits)
	}
	return Opcode(instr.EncodePrefix(tag)) | (Opcode(uint32(addr)&0x7FFFF) << 5), nil
}

// CBAddr returns the sign-extended 19-bit displacement shared by CBZ,
// CBNZ, and the B.cond family.
func (o Opcode) CBAddr() int32 { return signExtend((uint32(o)>>5)&0x7FFFF, cbAddrBits) }

// RewriteBranch replaces the displacement field of a B/BL, CBZ/CBNZ, or
// B.cond word with delta, leaving every other bit (including, for
// CBZ/CBNZ, the register field) untouched. It is the assembler's
// backpatch primitive for resolving forward label references.
func RewriteBranch(old Opcode, delta int32) (Opcode, error) {
	tag, err := instr.Decode(uint32(old))
	if err != nil {
		return 0, fmt.Errorf("opcode: RewriteBranch: %w", err)
	}
	switch tag {
	case instr.B, instr.BL:
		if !fitsSigned(int64(delta), bAddrBits) {
			return 0, rangeErr("addr", int64(delta), bAddrBits)
		}
		return (old &^ 0x3FFFFFF) | Opcode(uint32(delta)&0x3FFFFFF), nil
	case instr.CBZ, instr.CBNZ,
		instr.BEQ, instr.BNE, instr.BHS, instr.BLO, instr.BMI, instr.BPL,
		instr.BVS, instr.BVC, instr.BHI, instr.BLS, instr.BGT, instr.BLT,
		instr.BGE, instr.BLE:
		if !fitsSigned(int64(delta), cbAddrBits) {
			return 0, rangeErr("addr", int64(delta), cbAddrBits)
		}
		return (old &^ (0x7FFFF << 5)) | (Opcode(uint32(delta)&0x7FFFF) << 5), nil
	default:
		return 0, fmt.Errorf("opcode: RewriteBranch: %v is not a branch instruction", tag)
	}
}

// --- Special: prefix only, PRNT additionally carries Rd ---

// NewSpecial builds PRNL/DUMP/HALT, which carry no operand.
func NewSpecial(tag instr.Tag) Opcode {
	return Opcode(instr.EncodePrefix(tag))
}

// NewPrnt builds PRNT, which carries the register to print.
func NewPrnt(rd register.Register) Opcode {
	return Opcode(instr.EncodePrefix(instr.PRNT)) | Opcode(uint32(rd))
}

// Tag decodes the instruction family and mnemonic this word encodes.
func (o Opcode) Tag() (instr.Tag, error) {
	return instr.Decode(uint32(o))
}

var rFormTags = map[instr.Tag]bool{
	instr.ADD: true, instr.ADDS: true, instr.AND: true, instr.ANDS: true,
	instr.EOR: true, instr.ORR: true, instr.SUB: true, instr.SUBS: true,
	instr.MUL: true, instr.SDIV: true, instr.UDIV: true,
	instr.SMULH: true, instr.UMULH: true,
	instr.FADDS: true, instr.FSUBS: true, instr.FMULS: true, instr.FDIVS: true, instr.FCMPS: true,
	instr.FADDD: true, instr.FSUBD: true, instr.FMULD: true, instr.FDIVD: true, instr.FCMPD: true,
}

var iFormTags = map[instr.Tag]bool{
	instr.ADDI: true, instr.ADDIS: true, instr.ANDI: true, instr.ANDIS: true,
	instr.ORRI: true, instr.EORI: true, instr.SUBI: true, instr.SUBIS: true,
}

var dFormTags = map[instr.Tag]bool{
	instr.STUR: true, instr.STURB: true, instr.STURH: true, instr.STURW: true,
	instr.STURS: true, instr.STURD: true, instr.STXR: true,
	instr.LDUR: true, instr.LDURB: true, instr.LDURH: true, instr.LDURSW: true,
	instr.LDURS: true, instr.LDURD: true, instr.LDXR: true,
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

// String renders the canonical assembly-syntax spelling of o.
func (o Opcode) String() string {
	tag, err := o.Tag()
	if err != nil {
		return fmt.Sprintf("<invalid opcode 0x%08X>", uint32(o))
	}
	switch {
	case tag == instr.PRNT:
		return "PRNT " + o.Rd().String()
	case tag == instr.PRNL || tag == instr.DUMP || tag == instr.HALT:
		return tag.String()
	case tag == instr.B || tag == instr.BL:
		return tag.String() + " " + strconv.Itoa(int(o.BAddr()))
	case tag == instr.CBZ || tag == instr.CBNZ:
		return fmt.Sprintf("%s %s, %d", tag, o.Rt(), o.CBAddr())
	case isBCondFamily(tag):
		return fmt.Sprintf("%s %d", tag, o.CBAddr())
	case tag == instr.MOVZ || tag == instr.MOVK:
		return fmt.Sprintf("%s %s, #%d", tag, o.Rd(), o.Imm())
	case iFormTags[tag]:
		return fmt.Sprintf("%s %s, %s, #%d", tag, o.Rd(), o.Rn(), o.IImm())
	case dFormTags[tag]:
		return fmt.Sprintf("%s %s, [%s, #%d]", tag, o.Rt(), o.Rn(), o.DAddr())
	case tag == instr.LSL || tag == instr.LSR:
		return fmt.Sprintf("%s %s, %s, #%d", tag, o.Rd(), o.Rn(), o.Shamt())
	case tag == instr.BR:
		return "BR " + o.Rn().String()
	case rFormTags[tag]:
		return fmt.Sprintf("%s %s, %s, %s", tag, o.Rd(), o.Rn(), o.Rm())
	default:
		return fmt.Sprintf("<unrenderable opcode 0x%08X>", uint32(o))
	}
}

// OpcodeWithLabel renders o the way String does, except that a branch
// instruction's numeric displacement is replaced with label. Non-branch
// instructions render exactly as String.
func (o Opcode) OpcodeWithLabel(label string) string {
	tag, err := o.Tag()
	if err != nil {
		return o.String()
	}
	switch {
	case tag == instr.B || tag == instr.BL:
		return tag.String() + " " + label
	case tag == instr.CBZ || tag == instr.CBNZ:
		return fmt.Sprintf("%s %s, %s", tag, o.Rt(), label)
	case isBCondFamily(tag):
		return fmt.Sprintf("%s %s", tag, label)
	default:
		return o.String()
	}
}
