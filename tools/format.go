// Package tools implements developer-facing checks and transforms that
// sit above the assembler: canonical re-formatting and static linting
// of LEGv8 source.
package tools

import (
	"fmt"
	"strings"

	"github.com/legv8toolkit/legv8/assembler"
	"github.com/legv8toolkit/legv8/disassembler"
	"github.com/legv8toolkit/legv8/token"
)

// Format re-emits src in canonical style: tokenize, assemble, then
// disassemble the result. Every mnemonic renders with the toolkit's
// fixed operand spelling and every label collapses to the synthesized
// labelN naming the disassembler produces, so formatting a file twice
// is idempotent. Source comments do not survive, since the tokenizer
// discards them rather than attaching them to a token.
func Format(src string) (string, error) {
	toks, err := token.Tokenize(src)
	if err != nil {
		return "", fmt.Errorf("tools: format: %w", err)
	}
	prog, err := assembler.Assemble(toks)
	if err != nil {
		return "", fmt.Errorf("tools: format: %w", err)
	}
	lines := disassembler.Disassemble(prog.Code)
	return strings.Join(lines, "\n") + "\n", nil
}
