// Package assembler implements the LEGv8 two-pass assembler: lowering
// a token stream into a linear program of machine words plus a
// source-line map, resolving label references (forward or backward)
// against a single label table built on the first pass.
package assembler

import (
	"fmt"

	"github.com/legv8toolkit/legv8/instr"
	"github.com/legv8toolkit/legv8/opcode"
	"github.com/legv8toolkit/legv8/register"
	"github.com/legv8toolkit/legv8/token"
)

// Program is the assembled output: code in emission order plus a
// monotonic map from source line to the code index that line begins at.
type Program struct {
	Code    []opcode.Opcode
	LineMap []int
}

// AsmError reports an assembly failure at a source line.
type AsmError struct {
	Line int
	Msg  string
}

func (e *AsmError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

type pendingJump struct {
	Label string
	Pos   int
	Line  int
}

type cursor struct {
	tokens []token.Token
	pos    int
}

func (c *cursor) next() (token.Token, bool) {
	if c.pos >= len(c.tokens) {
		return token.Token{}, false
	}
	t := c.tokens[c.pos]
	c.pos++
	return t, true
}

func (c *cursor) expectKind(kind token.Kind, what string, line int) (token.Token, error) {
	t, ok := c.next()
	if !ok || t.Kind != kind {
		return token.Token{}, &AsmError{Line: line, Msg: fmt.Sprintf("expected %s", what)}
	}
	return t, nil
}

func (c *cursor) expectRegister(trailingComma bool, line int) (register.Register, error) {
	t, err := c.expectKind(token.Reg, "register", line)
	if err != nil {
		return 0, err
	}
	if trailingComma {
		if _, err := c.expectKind(token.Comma, "','", line); err != nil {
			return 0, err
		}
	}
	return t.Reg, nil
}

func (c *cursor) expectImmediate(line int) (uint16, error) {
	t, err := c.expectKind(token.Immediate, "immediate", line)
	if err != nil {
		return 0, err
	}
	return t.Imm, nil
}

// expectLabelRef reads a label-reference token and resolves it to a
// word displacement relative to codePos. A backward reference (the
// label is already in the table) resolves immediately; a forward
// reference resolves to 0 and is queued in jumps for the backpatch pass.
func (c *cursor) expectLabelRef(labels map[string]int, jumps *[]pendingJump, codePos, line int) (int32, error) {
	t, err := c.expectKind(token.Label, "label", line)
	if err != nil {
		return 0, err
	}
	if target, ok := labels[t.Name]; ok {
		return int32(target - codePos), nil
	}
	*jumps = append(*jumps, pendingJump{Label: t.Name, Pos: codePos, Line: line})
	return 0, nil
}

// Assemble lowers a token stream into a Program. Errors are *AsmError
// and name the offending source line; nothing in this package panics.
func Assemble(tokens []token.Token) (Program, error) {
	var code []opcode.Opcode
	var lineMap []int
	labels := make(map[string]int)
	var jumps []pendingJump

	i := 0
	lineNumber := 1
	c := &cursor{tokens: tokens}

	for {
		t, ok := c.next()
		if !ok {
			break
		}
		switch t.Kind {
		case token.Label:
			appendLineMap(&lineMap, i, &lineNumber, t.Line)
			if _, exists := labels[t.Name]; exists {
				return Program{}, &AsmError{Line: t.Line, Msg: fmt.Sprintf("label %q defined more than once", t.Name)}
			}
			labels[t.Name] = i
		case token.Mnemonic:
			op, err := assembleOne(t.Tag, c, labels, &jumps, i, t.Line)
			if err != nil {
				return Program{}, err
			}
			code = append(code, op)
			appendLineMap(&lineMap, i, &lineNumber, t.Line)
			i++
		default:
			return Program{}, &AsmError{Line: t.Line, Msg: "expected a label or an instruction"}
		}
	}

	for _, j := range jumps {
		target, ok := labels[j.Label]
		if !ok {
			return Program{}, &AsmError{Line: j.Line, Msg: fmt.Sprintf("label %q not found", j.Label)}
		}
		delta := int32(target - j.Pos)
		rewritten, err := opcode.RewriteBranch(code[j.Pos], delta)
		if err != nil {
			return Program{}, &AsmError{Line: j.Line, Msg: err.Error()}
		}
		code[j.Pos] = rewritten
	}

	return Program{Code: code, LineMap: lineMap}, nil
}

// appendLineMap extends the line map up to and including source line l,
// every entry pointing at the code index current instructions start at.
func appendLineMap(lineMap *[]int, i int, lineNumber *int, l int) {
	for ln := *lineNumber; ln <= l; ln++ {
		*lineMap = append(*lineMap, i)
	}
	*lineNumber = l + 1
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

var rFormTags = map[instr.Tag]bool{
	instr.ADD: true, instr.ADDS: true, instr.AND: true, instr.ANDS: true,
	instr.EOR: true, instr.ORR: true, instr.SUB: true, instr.SUBS: true,
	instr.MUL: true, instr.SDIV: true, instr.UDIV: true,
	instr.SMULH: true, instr.UMULH: true,
	instr.FADDS: true, instr.FSUBS: true, instr.FMULS: true, instr.FDIVS: true, instr.FCMPS: true,
	instr.FADDD: true, instr.FSUBD: true, instr.FMULD: true, instr.FDIVD: true, instr.FCMPD: true,
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

func assembleOne(tag instr.Tag, c *cursor, labels map[string]int, jumps *[]pendingJump, codePos, line int) (opcode.Opcode, error) {
	asmErr := func(err error) (opcode.Opcode, error) {
		if ae, ok := err.(*AsmError); ok {
			return opcode.Opcode(0), ae
		}
		return opcode.Opcode(0), &AsmError{Line: line, Msg: err.Error()}
	}

	switch {
	case tag == instr.PRNT:
		rd, err := c.expectRegister(false, line)
		if err != nil {
			return asmErr(err)
		}
		return opcode.NewPrnt(rd), nil

	case tag == instr.PRNL || tag == instr.DUMP || tag == instr.HALT:
		return opcode.NewSpecial(tag), nil

	case tag == instr.B || tag == instr.BL:
		addr, err := c.expectLabelRef(labels, jumps, codePos, line)
		if err != nil {
			return asmErr(err)
		}
		op, err := opcode.NewB(tag, addr)
		if err != nil {
			return asmErr(err)
		}
		return op, nil

	case tag == instr.CBZ || tag == instr.CBNZ:
		rt, err := c.expectRegister(true, line)
		if err != nil {
			return asmErr(err)
		}
		addr, err := c.expectLabelRef(labels, jumps, codePos, line)
		if err != nil {
			return asmErr(err)
		}
		op, err := opcode.NewCB(tag, rt, addr)
		if err != nil {
			return asmErr(err)
		}
		return op, nil

	case isBCondFamily(tag):
		addr, err := c.expectLabelRef(labels, jumps, codePos, line)
		if err != nil {
			return asmErr(err)
		}
		op, err := opcode.NewBCond(tag, addr)
		if err != nil {
			return asmErr(err)
		}
		return op, nil

	case tag == instr.MOVZ || tag == instr.MOVK:
		rd, err := c.expectRegister(true, line)
		if err != nil {
			return asmErr(err)
		}
		imm, err := c.expectImmediate(line)
		if err != nil {
			return asmErr(err)
		}
		return opcode.NewIM(tag, rd, imm), nil

	case iFormTags[tag]:
		rd, err := c.expectRegister(true, line)
		if err != nil {
			return asmErr(err)
		}
		rn, err := c.expectRegister(true, line)
		if err != nil {
			return asmErr(err)
		}
		imm, err := c.expectImmediate(line)
		if err != nil {
			return asmErr(err)
		}
		op, err := opcode.NewI(tag, rd, rn, imm)
		if err != nil {
			return asmErr(err)
		}
		return op, nil

	case dFormTags[tag]:
		rt, err := c.expectRegister(true, line)
		if err != nil {
			return asmErr(err)
		}
		if _, err := c.expectKind(token.LBrace, "'['", line); err != nil {
			return asmErr(err)
		}
		rn, err := c.expectRegister(true, line)
		if err != nil {
			return asmErr(err)
		}
		addr, err := c.expectImmediate(line)
		if err != nil {
			return asmErr(err)
		}
		if _, err := c.expectKind(token.RBrace, "']'", line); err != nil {
			return asmErr(err)
		}
		op, err := opcode.NewD(tag, rt, rn, addr)
		if err != nil {
			return asmErr(err)
		}
		return op, nil

	case tag == instr.LSL || tag == instr.LSR:
		rd, err := c.expectRegister(true, line)
		if err != nil {
			return asmErr(err)
		}
		rn, err := c.expectRegister(true, line)
		if err != nil {
			return asmErr(err)
		}
		imm, err := c.expectImmediate(line)
		if err != nil {
			return asmErr(err)
		}
		op, err := opcode.NewShift(tag, rd, rn, uint8(imm))
		if err != nil {
			return asmErr(err)
		}
		return op, nil

	case tag == instr.BR:
		rt, err := c.expectRegister(false, line)
		if err != nil {
			return asmErr(err)
		}
		return opcode.NewBR(rt), nil

	case rFormTags[tag]:
		rd, err := c.expectRegister(true, line)
		if err != nil {
			return asmErr(err)
		}
		rn, err := c.expectRegister(true, line)
		if err != nil {
			return asmErr(err)
		}
		rm, err := c.expectRegister(false, line)
		if err != nil {
			return asmErr(err)
		}
		return opcode.NewR(tag, rd, rn, rm), nil

	default:
		return opcode.Opcode(0), &AsmError{Line: line, Msg: fmt.Sprintf("instruction %s is not implemented", tag)}
	}
}
