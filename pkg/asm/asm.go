// Package asm is an append-only sink for ECO32 assembler text.
package asm

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Register is one of the 32 general purpose registers.
type Register int

const (
	Zero Register = 0
	// First and last register of the window used for expression evaluation.
	FirstFree Register = 8
	LastFree  Register = 23
	FP        Register = 25
	SP        Register = 29
	RA        Register = 31
)

func (r Register) String() string { return "$" + strconv.Itoa(int(r)) }

// Operand is a Register, an Imm or a Sym.
type Operand interface {
	fmt.Stringer
	isOperand()
}

// Imm is an immediate operand or a memory offset.
type Imm int64

// Sym is a label or symbol operand.
type Sym string

func (Register) isOperand() {}
func (Imm) isOperand()      {}
func (Sym) isOperand()      {}

func (i Imm) String() string { return strconv.FormatInt(int64(i), 10) }
func (s Sym) String() string { return string(s) }

// IndexErrorLabel is the runtime routine called on an out-of-bounds index.
const IndexErrorLabel = "_indexError"

// LocalLabel names the n-th generated jump target.
func LocalLabel(n int) string { return "L" + strconv.Itoa(n) }

// IsReserved reports whether name is a symbol that generated code defines or
// imports itself. A program must not declare such a name globally.
func IsReserved(name string) bool {
	if name == IndexErrorLabel {
		return true
	}
	if !strings.HasPrefix(name, "L") {
		return false
	}
	n, err := strconv.Atoi(name[1:])
	return err == nil && n >= 0 && LocalLabel(n) == name
}

// FitsImm16 reports whether v can be used as a sign-extended 16-bit immediate.
func FitsImm16(v int64) bool { return v >= -0x8000 && v <= 0x7FFF }

type Program struct {
	sb strings.Builder
}

func NewProgram() *Program { return &Program{} }

// Emit appends a raw line.
func (p *Program) Emit(raw string) {
	p.sb.WriteString(raw)
	p.sb.WriteByte('\n')
}

func (p *Program) Directive(name string, args ...string) {
	if len(args) == 0 {
		p.Emit("\t." + name)
		return
	}
	p.Emit("\t." + name + "\t" + strings.Join(args, ","))
}

func (p *Program) Export(name string) { p.Directive("export", name) }
func (p *Program) Import(name string) { p.Directive("import", name) }
func (p *Program) Label(name string)  { p.Emit(name + ":") }

func (p *Program) Instr(op string, operands ...Operand) { p.InstrComment("", op, operands...) }

// InstrComment appends an instruction with a trailing comment.
func (p *Program) InstrComment(comment, op string, operands ...Operand) {
	p.sb.WriteByte('\t')
	p.sb.WriteString(op)
	for i, o := range operands {
		if i == 0 {
			p.sb.WriteByte('\t')
		} else {
			p.sb.WriteByte(',')
		}
		p.sb.WriteString(o.String())
	}
	if comment != "" {
		p.sb.WriteString("\t\t; ")
		p.sb.WriteString(comment)
	}
	p.sb.WriteByte('\n')
}

func (p *Program) String() string { return p.sb.String() }

func (p *Program) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, p.sb.String())
	return int64(n), err
}
