// Package disassembler turns assembled LEGv8 code back into assembly
// text, synthesizing label definitions for every branch target so the
// output re-assembles to the same program.
package disassembler

import (
	"fmt"
	"sort"

	"github.com/legv8toolkit/legv8/instr"
	"github.com/legv8toolkit/legv8/opcode"
)

func isBranchFamily(tag instr.Tag) bool {
	switch tag {
	case instr.B, instr.BL, instr.CBZ, instr.CBNZ,
		instr.BEQ, instr.BNE, instr.BHS, instr.BLO, instr.BMI, instr.BPL,
		instr.BVS, instr.BVC, instr.BHI, instr.BLS, instr.BGT, instr.BLT,
		instr.BGE, instr.BLE:
		return true
	}
	return false
}

func displacement(op opcode.Opcode, tag instr.Tag) int32 {
	if tag == instr.B || tag == instr.BL {
		return op.BAddr()
	}
	return op.CBAddr()
}

// Disassemble renders one line of assembly per machine word. Every
// branch target gets a synthesized "labelN" definition line inserted at
// the target index; a target already labelled (two branches to the
// same place) reuses the existing name instead of allocating a new one.
func Disassemble(code []opcode.Opcode) []string {
	out := make([]string, 0, len(code))
	labelAt := make(map[int]string)
	nextLabel := 0

	for pc, op := range code {
		tag, err := op.Tag()
		if err != nil {
			out = append(out, fmt.Sprintf("<invalid opcode 0x%08X>", uint32(op)))
			continue
		}
		if !isBranchFamily(tag) {
			out = append(out, op.String())
			continue
		}
		target := pc + int(displacement(op, tag))
		label, ok := labelAt[target]
		if !ok {
			label = fmt.Sprintf("label%d", nextLabel)
			labelAt[target] = label
			nextLabel++
		}
		out = append(out, op.OpcodeWithLabel(label))
	}

	targets := make([]int, 0, len(labelAt))
	for idx := range labelAt {
		targets = append(targets, idx)
	}
	sort.Ints(targets)

	offset := 0
	for _, idx := range targets {
		pos := idx + offset
		line := labelAt[idx] + ":"
		if pos >= len(out) {
			out = append(out, line)
		} else {
			out = append(out, "")
			copy(out[pos+1:], out[pos:])
			out[pos] = line
		}
		offset++
	}
	return out
}
