// Package register implements LEGv8 register identity: the 32 general
// registers X0-X31, their distinguished aliases, and textual parsing and
// rendering of both forms.
package register

import (
	"fmt"
	"strconv"
)

// Register is a LEGv8 register index in [0, 31].
type Register uint8

// Distinguished register indices and their conventional roles.
const (
	IP0 Register = 16 // first intra-procedure-call scratch register
	IP1 Register = 17 // second intra-procedure-call scratch register
	SP  Register = 28 // stack pointer
	FR  Register = 29 // frame pointer
	LR  Register = 30 // link register
	XZR Register = 31 // always reads as zero
)

// Count is the number of addressable registers.
const Count = 32

// aliases maps the distinguished indices to the name rendering prefers.
var aliases = map[Register]string{
	IP0: "IP0",
	IP1: "IP1",
	SP:  "SP",
	FR:  "FR",
	LR:  "LR",
	XZR: "XZR",
}

// byName maps every accepted register spelling (canonical and alias) to
// its index.
var byName = map[string]Register{
	"IP0": IP0,
	"IP1": IP1,
	"SP":  SP,
	"FR":  FR,
	"LR":  LR,
	"XZR": XZR,
}

func init() {
	for i := Register(0); i < Count; i++ {
		byName[fmt.Sprintf("X%d", i)] = i
	}
}

// Parse converts a register spelling (canonical "Xn" or an alias) to a
// Register. It reports ok=false for any name not in the LEGv8 register
// set.
func Parse(name string) (r Register, ok bool) {
	r, ok = byName[name]
	return r, ok
}

// String renders the register preferring its alias: X16=IP0, X17=IP1,
// X28=SP, X29=FR, X30=LR, X31=XZR; every other index renders as "Xn".
func (r Register) String() string {
	if name, ok := aliases[r]; ok {
		return name
	}
	return "X" + strconv.Itoa(int(r))
}

// Valid reports whether r is a legal register index.
func (r Register) Valid() bool {
	return r < Count
}
