package asm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgram(t *testing.T) {
	p := NewProgram()
	p.Import("printi")
	p.Emit("")
	p.Directive("code")
	p.Directive("align", "4")
	p.Export("main")
	p.Label("main")
	p.InstrComment("allocate frame", "sub", SP, SP, Imm(8))
	p.Instr("add", Register(8), Zero, Imm(-3))
	p.Instr("jal", Sym("printi"))
	p.Instr("jr", RA)

	want := "\t.import\tprinti\n" +
		"\n" +
		"\t.code\n" +
		"\t.align\t4\n" +
		"\t.export\tmain\n" +
		"main:\n" +
		"\tsub\t$29,$29,8\t\t; allocate frame\n" +
		"\tadd\t$8,$0,-3\n" +
		"\tjal\tprinti\n" +
		"\tjr\t$31\n"
	assert.Equal(t, want, p.String())

	var sb strings.Builder
	n, err := p.WriteTo(&sb)
	require.NoError(t, err)
	assert.Equal(t, int64(len(want)), n)
	assert.Equal(t, want, sb.String())
}

func TestRegisters(t *testing.T) {
	assert.Equal(t, "$25", FP.String())
	assert.Equal(t, "$29", SP.String())
	assert.Equal(t, 16, int(LastFree-FirstFree)+1)
}

func TestFitsImm16(t *testing.T) {
	assert.True(t, FitsImm16(0))
	assert.True(t, FitsImm16(0x7FFF))
	assert.True(t, FitsImm16(-0x8000))
	assert.False(t, FitsImm16(0x8000))
	assert.False(t, FitsImm16(-0x8001))
}

func TestReservedNames(t *testing.T) {
	for _, name := range []string{"L0", "L7", "L42", IndexErrorLabel, LocalLabel(123)} {
		assert.True(t, IsReserved(name), name)
	}
	for _, name := range []string{"L", "L01", "L-1", "Lx", "L0x", "l0", "main", "indexError"} {
		assert.False(t, IsReserved(name), name)
	}
}
