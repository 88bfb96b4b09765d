package codegen

import (
	"github.com/xplshn/splc/pkg/asm"
	"github.com/xplshn/splc/pkg/ast"
	"github.com/xplshn/splc/pkg/diag"
	"github.com/xplshn/splc/pkg/token"
)

// regStack hands out the registers $8..$23 in stack order. Every
// expression pushes exactly one result and pops its operands.
type regStack struct {
	next asm.Register
}

func newRegStack() regStack { return regStack{next: asm.FirstFree} }

func (s *regStack) push(tok token.Token) (asm.Register, error) {
	if s.next > asm.LastFree {
		return 0, diag.Errorf(diag.RegisterOverflow, tok, "Expression too complicated: out of registers")
	}
	r := s.next
	s.next++
	return r, nil
}

func (s *regStack) pop() asm.Register {
	if s.next <= asm.FirstFree {
		panic("codegen: register stack underflow")
	}
	s.next--
	return s.next
}

func (s *regStack) top() asm.Register {
	if s.next <= asm.FirstFree {
		panic("codegen: top of empty register stack")
	}
	return s.next - 1
}

func (s *regStack) depth() int { return int(s.next - asm.FirstFree) }

// Inverted branches: each jumps when the relation does not hold.
var invertedBranch = map[ast.Op]string{
	ast.OpEqu: "bne",
	ast.OpNeq: "beq",
	ast.OpLst: "bge",
	ast.OpLse: "bgt",
	ast.OpGrt: "ble",
	ast.OpGre: "blt",
}

var arithInstr = map[ast.Op]string{
	ast.OpAdd: "add",
	ast.OpSub: "sub",
	ast.OpMul: "mul",
	ast.OpDiv: "div",
}

func (g *Generator) newLabel() string {
	l := asm.LocalLabel(g.labels)
	g.labels++
	return l
}

// loadConst puts v into r. Values beyond a 16-bit immediate are built from
// their upper and lower halves.
func (g *Generator) loadConst(r asm.Register, v int64) {
	switch {
	case v >= 0 && v <= 0x7FFF:
		g.out.Instr("add", r, asm.Zero, asm.Imm(v))
	case v < 0 && v >= -0x7FFF:
		g.out.Instr("sub", r, asm.Zero, asm.Imm(-v))
	default:
		u := uint32(v)
		g.out.Instr("ldhi", r, asm.Imm(u>>16))
		if lo := u & 0xFFFF; lo != 0 {
			g.out.Instr("or", r, r, asm.Imm(lo))
		}
	}
}

// arithImm emits "op dst,src,v", going through a scratch register when v
// does not fit an immediate.
func (g *Generator) arithImm(pc *procContext, tok token.Token, comment, op string, dst, src asm.Register, v int64) error {
	if asm.FitsImm16(v) {
		g.out.InstrComment(comment, op, dst, src, asm.Imm(v))
		return nil
	}
	tmp, err := pc.regs.push(tok)
	if err != nil {
		return err
	}
	g.loadConst(tmp, v)
	g.out.InstrComment(comment, op, dst, src, tmp)
	pc.regs.pop()
	return nil
}

// memOp emits a load or store of reg at base+off.
func (g *Generator) memOp(pc *procContext, tok token.Token, comment, op string, reg, base asm.Register, off int64) error {
	if asm.FitsImm16(off) {
		g.out.InstrComment(comment, op, reg, base, asm.Imm(off))
		return nil
	}
	tmp, err := pc.regs.push(tok)
	if err != nil {
		return err
	}
	g.loadConst(tmp, off)
	g.out.Instr("add", tmp, tmp, base)
	g.out.InstrComment(comment, op, reg, tmp, asm.Imm(0))
	pc.regs.pop()
	return nil
}
