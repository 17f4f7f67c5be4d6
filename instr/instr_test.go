package instr_test

import (
	"testing"

	"github.com/legv8toolkit/legv8/instr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allTags() []instr.Tag {
	return []instr.Tag{
		instr.B, instr.BL,
		instr.CBZ, instr.CBNZ,
		instr.BEQ, instr.BNE, instr.BHS, instr.BLO, instr.BMI, instr.BPL,
		instr.BVS, instr.BVC, instr.BHI, instr.BLS, instr.BGT, instr.BLT,
		instr.BGE, instr.BLE,
		instr.MOVZ, instr.MOVK,
		instr.ADDI, instr.ADDIS, instr.ANDI, instr.ANDIS,
		instr.ORRI, instr.EORI, instr.SUBI, instr.SUBIS,
		instr.STUR, instr.STURB, instr.STURH, instr.STURW,
		instr.STURS, instr.STURD, instr.STXR,
		instr.LDUR, instr.LDURB, instr.LDURH, instr.LDURSW,
		instr.LDURS, instr.LDURD, instr.LDXR,
		instr.ADD, instr.ADDS, instr.AND, instr.ANDS,
		instr.EOR, instr.ORR, instr.SUB, instr.SUBS,
		instr.MUL, instr.SDIV, instr.UDIV, instr.SMULH, instr.UMULH,
		instr.BR, instr.LSL, instr.LSR,
		instr.FADDS, instr.FSUBS, instr.FMULS, instr.FDIVS, instr.FCMPS,
		instr.FADDD, instr.FSUBD, instr.FMULD, instr.FDIVD, instr.FCMPD,
		instr.PRNT, instr.PRNL, instr.DUMP, instr.HALT,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, tag := range allTags() {
		tag := tag
		t.Run(tag.String(), func(t *testing.T) {
			word := instr.EncodePrefix(tag)
			got, err := instr.Decode(word)
			require.NoError(t, err)
			assert.Equal(t, tag, got)
		})
	}
}

func TestParseMnemonicRoundTrip(t *testing.T) {
	for _, tag := range allTags() {
		tag := tag
		t.Run(tag.String(), func(t *testing.T) {
			got, ok := instr.ParseMnemonic(tag.String())
			require.True(t, ok)
			assert.Equal(t, tag, got)
		})
	}
}

func TestParseMnemonicUnknown(t *testing.T) {
	_, ok := instr.ParseMnemonic("NOPE")
	assert.False(t, ok)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := instr.Decode(0x00000000)
	assert.Error(t, err)
}

func TestDecodeDistinguishesSharedPrefixSiblings(t *testing.T) {
	mul, err := instr.Decode(instr.EncodePrefix(instr.MUL))
	require.NoError(t, err)
	assert.Equal(t, instr.MUL, mul)

	sdiv, err := instr.Decode(instr.EncodePrefix(instr.SDIV))
	require.NoError(t, err)
	assert.Equal(t, instr.SDIV, sdiv)

	udiv, err := instr.Decode(instr.EncodePrefix(instr.UDIV))
	require.NoError(t, err)
	assert.Equal(t, instr.UDIV, udiv)

	assert.NotEqual(t, instr.EncodePrefix(instr.SDIV), instr.EncodePrefix(instr.UDIV))
}

func TestDecodeDistinguishesBCondSiblings(t *testing.T) {
	for _, tag := range []instr.Tag{
		instr.BEQ, instr.BNE, instr.BHS, instr.BLO, instr.BMI, instr.BPL,
		instr.BVS, instr.BVC, instr.BHI, instr.BLS, instr.BGT, instr.BLT,
		instr.BGE, instr.BLE,
	} {
		got, err := instr.Decode(instr.EncodePrefix(tag))
		require.NoError(t, err)
		assert.Equal(t, tag, got)
	}
}
