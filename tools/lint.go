package tools

import (
	"fmt"
	"sort"

	"github.com/legv8toolkit/legv8/assembler"
	"github.com/legv8toolkit/legv8/instr"
	"github.com/legv8toolkit/legv8/register"
	"github.com/legv8toolkit/legv8/token"
)

// Issue is a single lint finding.
type Issue struct {
	Line    int
	Message string
	Code    string
}

func (i Issue) String() string {
	return fmt.Sprintf("line %d: %s [%s]", i.Line, i.Message, i.Code)
}

// Lint tokenizes and assembles src, then reports style issues a
// successful assembly does not itself catch: labels defined but never
// branched to, and writes whose destination is XZR (always discarded).
// A tokenize or assembly failure is returned as an error rather than an
// Issue, since it means there is no program to analyze.
func Lint(src string) ([]Issue, error) {
	toks, err := token.Tokenize(src)
	if err != nil {
		return nil, fmt.Errorf("tools: lint: %w", err)
	}
	if _, err := assembler.Assemble(toks); err != nil {
		return nil, fmt.Errorf("tools: lint: %w", err)
	}

	defined, referenced := classifyLabels(toks)

	var issues []Issue
	for name, line := range defined {
		if _, used := referenced[name]; !used {
			issues = append(issues, Issue{
				Line:    line,
				Message: fmt.Sprintf("label %q is never referenced", name),
				Code:    "UNUSED_LABEL",
			})
		}
	}
	issues = append(issues, checkWritesToXZR(toks)...)

	sort.Slice(issues, func(i, j int) bool { return issues[i].Line < issues[j].Line })
	return issues, nil
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

// classifyLabels walks an already-validated token stream (so every
// instruction's operand count is known-good) and separates label-name
// tokens into definitions (the "name:" form) and references (a branch
// family's target operand), mirroring assembler's own token consumption
// order closely enough to count operands without building opcodes.
func classifyLabels(toks []token.Token) (defined map[string]int, referenced map[string][]int) {
	defined = make(map[string]int)
	referenced = make(map[string][]int)

	pos := 0
	next := func() token.Token {
		t := toks[pos]
		pos++
		return t
	}

	for pos < len(toks) {
		t := next()
		switch t.Kind {
		case token.Label:
			if _, exists := defined[t.Name]; !exists {
				defined[t.Name] = t.Line
			}
		case token.Mnemonic:
			switch {
			case t.Tag == instr.PRNT:
				next()
			case t.Tag == instr.PRNL || t.Tag == instr.DUMP || t.Tag == instr.HALT:
			case t.Tag == instr.B || t.Tag == instr.BL:
				ref := next()
				referenced[ref.Name] = append(referenced[ref.Name], t.Line)
			case t.Tag == instr.CBZ || t.Tag == instr.CBNZ:
				next()
				next()
				ref := next()
				referenced[ref.Name] = append(referenced[ref.Name], t.Line)
			case isBCondFamily(t.Tag):
				ref := next()
				referenced[ref.Name] = append(referenced[ref.Name], t.Line)
			case t.Tag == instr.MOVZ || t.Tag == instr.MOVK:
				next()
				next()
				next()
			case iFormTags[t.Tag]:
				next()
				next()
				next()
				next()
				next()
			case dFormTags[t.Tag]:
				next()
				next()
				next()
				next()
				next()
				next()
				next()
			case t.Tag == instr.LSL || t.Tag == instr.LSR:
				next()
				next()
				next()
				next()
				next()
			case t.Tag == instr.BR:
				next()
			default: // R-type: rd, comma, rn, comma, rm
				next()
				next()
				next()
				next()
				next()
			}
		}
	}
	return defined, referenced
}

var writesDest = map[instr.Tag]bool{
	instr.ADD: true, instr.ADDS: true, instr.AND: true, instr.ANDS: true,
	instr.EOR: true, instr.ORR: true, instr.SUB: true, instr.SUBS: true,
	instr.MUL: true, instr.SDIV: true, instr.UDIV: true,
	instr.SMULH: true, instr.UMULH: true, instr.LSL: true, instr.LSR: true,
	instr.FADDS: true, instr.FSUBS: true, instr.FMULS: true, instr.FDIVS: true,
	instr.FADDD: true, instr.FSUBD: true, instr.FMULD: true, instr.FDIVD: true,
	instr.ADDI: true, instr.ADDIS: true, instr.ANDI: true, instr.ANDIS: true,
	instr.ORRI: true, instr.EORI: true, instr.SUBI: true, instr.SUBIS: true,
	instr.MOVZ: true, instr.MOVK: true,
	instr.LDUR: true, instr.LDURB: true, instr.LDURH: true, instr.LDURSW: true,
	instr.LDURS: true, instr.LDURD: true, instr.LDXR: true,
}

// checkWritesToXZR flags every writesDest instruction whose destination
// operand (always the token immediately after the mnemonic, for every
// tag in writesDest) is XZR.
func checkWritesToXZR(toks []token.Token) []Issue {
	var issues []Issue
	for i, t := range toks {
		if t.Kind != token.Mnemonic || !writesDest[t.Tag] {
			continue
		}
		if i+1 >= len(toks) {
			continue
		}
		dest := toks[i+1]
		if dest.Kind == token.Reg && dest.Reg == register.XZR {
			issues = append(issues, Issue{
				Line:    t.Line,
				Message: fmt.Sprintf("%s writes to XZR; the result is discarded", t.Tag),
				Code:    "WRITE_TO_XZR",
			})
		}
	}
	return issues
}
