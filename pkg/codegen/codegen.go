// Package codegen lowers a checked program whose stack layouts are allocated
// to ECO32 assembler text, or to host assembly through QBE.
package codegen

import (
	"bytes"
	"fmt"

	"github.com/xplshn/splc/pkg/asm"
	"github.com/xplshn/splc/pkg/ast"
	"github.com/xplshn/splc/pkg/config"
	"github.com/xplshn/splc/pkg/diag"
	"github.com/xplshn/splc/pkg/table"
	"github.com/xplshn/splc/pkg/types"
)

type eco32Backend struct{}

func NewECO32Backend() Backend { return &eco32Backend{} }

func (b *eco32Backend) Generate(prog *ast.Node, global *table.SymbolTable, cfg *config.Config) (*bytes.Buffer, error) {
	out := asm.NewProgram()
	if err := NewGenerator(cfg, global, out).GenerateProgram(prog); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := out.WriteTo(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}

// Generator lowers a checked and allocated program to ECO32 instructions.
// Labels are numbered across the whole program.
type Generator struct {
	cfg    *config.Config
	global *table.SymbolTable
	out    *asm.Program
	labels int
}

// procContext is the state of the procedure being lowered.
type procContext struct {
	name  string
	entry *table.ProcedureEntry
	scope *table.SymbolTable
	regs  regStack
}

func NewGenerator(cfg *config.Config, global *table.SymbolTable, out *asm.Program) *Generator {
	return &Generator{cfg: cfg, global: global, out: out}
}

func (g *Generator) GenerateProgram(prog *ast.Node) error {
	g.header()
	for _, proc := range ast.Procedures(prog) {
		if err := g.GenerateProc(proc); err != nil {
			return err
		}
	}
	g.globals()
	return nil
}

func (g *Generator) header() {
	for _, name := range table.PredefinedProcedures() {
		g.out.Import(name)
	}
	g.out.Import(asm.IndexErrorLabel)
	g.out.Emit("")
	g.out.Directive("code")
	g.out.Directive("align", "4")
}

func (g *Generator) globals() {
	var vars []string
	for _, name := range g.global.Names() {
		if v, ok := g.global.Variable(name); ok && v.IsGlobal {
			vars = append(vars, name)
		}
	}
	if len(vars) == 0 {
		return
	}
	g.out.Emit("")
	g.out.Directive("data")
	g.out.Directive("align", "4")
	for _, name := range vars {
		v, _ := g.global.Variable(name)
		g.out.Label(name)
		g.out.Directive("space", fmt.Sprint(v.Type.ByteSize()))
	}
}

// GenerateProc lowers one procedure: prologue, body, epilogue.
func (g *Generator) GenerateProc(node *ast.Node) error {
	d := node.Data.(ast.ProcDeclNode)
	entry, ok := g.global.Procedure(d.Name)
	if !ok {
		return diag.Errorf(diag.Internal, node.Tok, "procedure '%s' is not in the symbol table", d.Name)
	}
	layout := &entry.StackLayout
	if !layout.Complete() {
		return diag.Errorf(diag.Internal, node.Tok, "stack layout of '%s' is not allocated", d.Name)
	}

	pc := &procContext{name: d.Name, entry: entry, scope: entry.LocalTable, regs: newRegStack()}

	g.out.Emit("")
	g.out.Export(d.Name)
	g.out.Label(d.Name)
	if err := g.prologue(pc, node, layout); err != nil {
		return err
	}
	for _, stmt := range d.Body {
		if err := g.genStmt(pc, stmt); err != nil {
			return err
		}
	}
	return g.epilogue(pc, node, layout)
}

func (g *Generator) prologue(pc *procContext, node *ast.Node, layout *table.StackLayout) error {
	frame := int64(layout.FrameSize())
	if layout.IsOptimizedLeafProcedure {
		if frame == 0 {
			return nil
		}
		return g.arithImm(pc, node.Tok, "allocate frame", "sub", asm.SP, asm.SP, frame)
	}

	if err := g.arithImm(pc, node.Tok, "allocate frame", "sub", asm.SP, asm.SP, frame); err != nil {
		return err
	}
	if err := g.memOp(pc, node.Tok, "save old frame pointer", "stw", asm.FP, asm.SP, int64(layout.OldFramePointerOffset())); err != nil {
		return err
	}
	if err := g.arithImm(pc, node.Tok, "setup new frame pointer", "add", asm.FP, asm.SP, frame); err != nil {
		return err
	}
	if layout.OutgoingAreaSize.MakesCalls() {
		return g.memOp(pc, node.Tok, "save return register", "stw", asm.RA, asm.FP, int64(layout.OldReturnAddressOffset()))
	}
	return nil
}

func (g *Generator) epilogue(pc *procContext, node *ast.Node, layout *table.StackLayout) error {
	frame := int64(layout.FrameSize())
	if layout.IsOptimizedLeafProcedure {
		if frame != 0 {
			if err := g.arithImm(pc, node.Tok, "release frame", "add", asm.SP, asm.SP, frame); err != nil {
				return err
			}
		}
		g.out.InstrComment("return", "jr", asm.RA)
		return nil
	}

	if layout.OutgoingAreaSize.MakesCalls() {
		if err := g.memOp(pc, node.Tok, "restore return register", "ldw", asm.RA, asm.FP, int64(layout.OldReturnAddressOffset())); err != nil {
			return err
		}
	}
	if err := g.memOp(pc, node.Tok, "restore old frame pointer", "ldw", asm.FP, asm.SP, int64(layout.OldFramePointerOffset())); err != nil {
		return err
	}
	if err := g.arithImm(pc, node.Tok, "release frame", "add", asm.SP, asm.SP, frame); err != nil {
		return err
	}
	g.out.InstrComment("return", "jr", asm.RA)
	return nil
}

func (g *Generator) genStmt(pc *procContext, node *ast.Node) error {
	if node == nil {
		return nil
	}
	var err error
	switch d := node.Data.(type) {
	case ast.EmptyNode:
	case ast.CompoundNode:
		for _, stmt := range d.Stmts {
			if err = g.genStmt(pc, stmt); err != nil {
				return err
			}
		}
	case ast.AssignNode:
		err = g.genAssign(pc, d)
	case ast.IfNode:
		err = g.genIf(pc, d)
	case ast.WhileNode:
		err = g.genWhile(pc, d)
	case ast.CallNode:
		err = g.genCall(pc, node, d)
	default:
		return diag.Errorf(diag.Internal, node.Tok, "unexpected statement node %d", node.Type)
	}
	if err == nil && pc.regs.depth() != 0 {
		return diag.Errorf(diag.Internal, node.Tok, "%d registers live after statement in '%s'", pc.regs.depth(), pc.name)
	}
	return err
}

func (g *Generator) genAssign(pc *procContext, d ast.AssignNode) error {
	if err := g.genVar(pc, d.Target); err != nil {
		return err
	}
	if err := g.genExpr(pc, d.Value); err != nil {
		return err
	}
	value := pc.regs.pop()
	addr := pc.regs.pop()
	g.out.Instr("stw", value, addr, asm.Imm(0))
	return nil
}

func (g *Generator) genIf(pc *procContext, d ast.IfNode) error {
	var elseLabel string
	hasElse := !ast.IsEmpty(d.Else)
	if hasElse {
		elseLabel = g.newLabel()
	}
	exitLabel := g.newLabel()

	falseLabel := exitLabel
	if hasElse {
		falseLabel = elseLabel
	}
	if err := g.genCondJump(pc, d.Cond, falseLabel); err != nil {
		return err
	}
	if err := g.genStmt(pc, d.Then); err != nil {
		return err
	}
	if hasElse {
		g.out.Instr("j", asm.Sym(exitLabel))
		g.out.Label(elseLabel)
		if err := g.genStmt(pc, d.Else); err != nil {
			return err
		}
	}
	g.out.Label(exitLabel)
	return nil
}

func (g *Generator) genWhile(pc *procContext, d ast.WhileNode) error {
	repeatLabel := g.newLabel()
	exitLabel := g.newLabel()

	g.out.Label(repeatLabel)
	if err := g.genCondJump(pc, d.Cond, exitLabel); err != nil {
		return err
	}
	if err := g.genStmt(pc, d.Body); err != nil {
		return err
	}
	g.out.Instr("j", asm.Sym(repeatLabel))
	g.out.Label(exitLabel)
	return nil
}

// genCondJump jumps to falseLabel when the comparison does not hold.
func (g *Generator) genCondJump(pc *procContext, cond *ast.Node, falseLabel string) error {
	d, ok := cond.Data.(ast.BinaryOpNode)
	if !ok || !d.Op.IsRelational() {
		return diag.Errorf(diag.Internal, cond.Tok, "condition is not a comparison")
	}
	if err := g.genExpr(pc, d.Left); err != nil {
		return err
	}
	if err := g.genExpr(pc, d.Right); err != nil {
		return err
	}
	right := pc.regs.pop()
	left := pc.regs.pop()
	g.out.Instr(invertedBranch[d.Op], left, right, asm.Sym(falseLabel))
	return nil
}

// genCall stores the arguments one at a time into the outgoing area, which
// becomes the callee's argument area, and jumps to the callee.
func (g *Generator) genCall(pc *procContext, node *ast.Node, d ast.CallNode) error {
	callee, ok := pc.scope.Procedure(d.Name)
	if !ok {
		return diag.Errorf(diag.Internal, node.Tok, "call of unknown procedure '%s'", d.Name)
	}
	for i, arg := range d.Args {
		param := callee.ParameterTypes[i]
		var err error
		if param.IsReference {
			ve, ok := arg.Data.(ast.VarExprNode)
			if !ok {
				return diag.Errorf(diag.Internal, arg.Tok, "reference argument %d of '%s' is not a variable", i+1, d.Name)
			}
			err = g.genVar(pc, ve.Var)
		} else {
			err = g.genExpr(pc, arg)
		}
		if err != nil {
			return err
		}
		off, ok := param.Offset.Get()
		if !ok {
			return diag.Errorf(diag.Internal, arg.Tok, "parameter %d of '%s' has no offset", i+1, d.Name)
		}
		if err := g.memOp(pc, arg.Tok, fmt.Sprintf("store argument #%d", i+1), "stw", pc.regs.top(), asm.SP, int64(off)); err != nil {
			return err
		}
		pc.regs.pop()
	}
	g.out.Instr("jal", asm.Sym(d.Name))
	return nil
}

// genVar pushes the address of a variable.
func (g *Generator) genVar(pc *procContext, node *ast.Node) error {
	switch d := node.Data.(type) {
	case ast.NamedVarNode:
		return g.genNamedVar(pc, node, d)
	case ast.ArrayAccessNode:
		if err := g.genVar(pc, d.Array); err != nil {
			return err
		}
		if err := g.genExpr(pc, d.Index); err != nil {
			return err
		}
		arr, ok := types.AsArray(d.Array.Typ)
		if !ok {
			return diag.Errorf(diag.Internal, node.Tok, "indexed variable has no array type")
		}
		index := pc.regs.top()
		if g.cfg.IsFeatureEnabled(config.FeatBoundsCheck) {
			size, err := pc.regs.push(node.Tok)
			if err != nil {
				return err
			}
			g.loadConst(size, int64(arr.Length))
			g.out.Instr("bgeu", index, size, asm.Sym(asm.IndexErrorLabel))
			pc.regs.pop()
		}
		if err := g.arithImm(pc, node.Tok, "", "mul", index, index, int64(arr.Base.ByteSize())); err != nil {
			return err
		}
		pc.regs.pop()
		base := pc.regs.top()
		g.out.Instr("add", base, base, index)
		return nil
	default:
		return diag.Errorf(diag.Internal, node.Tok, "unexpected variable node %d", node.Type)
	}
}

func (g *Generator) genNamedVar(pc *procContext, node *ast.Node, d ast.NamedVarNode) error {
	v, ok := pc.scope.Variable(d.Name)
	if !ok {
		return diag.Errorf(diag.Internal, node.Tok, "variable '%s' is not in the symbol table", d.Name)
	}
	off, ok := v.Offset.Get()
	if !ok {
		return diag.Errorf(diag.Internal, node.Tok, "variable '%s' has no offset", d.Name)
	}
	r, err := pc.regs.push(node.Tok)
	if err != nil {
		return err
	}

	if v.IsGlobal {
		g.out.Instr("ldhi", r, asm.Sym(d.Name))
		g.out.Instr("or", r, r, asm.Sym(d.Name))
		return nil
	}

	base, addr := asm.FP, int64(off)
	if layout := &pc.entry.StackLayout; layout.IsOptimizedLeafProcedure {
		base, addr = asm.SP, addr+int64(layout.LocalVarAreaSize.MustGet())
	}
	if err := g.arithImm(pc, node.Tok, "", "add", r, base, addr); err != nil {
		return err
	}
	if v.IsReference {
		g.out.Instr("ldw", r, r, asm.Imm(0))
	}
	return nil
}

// genExpr pushes the value of an expression.
func (g *Generator) genExpr(pc *procContext, node *ast.Node) error {
	switch d := node.Data.(type) {
	case ast.IntLitNode:
		r, err := pc.regs.push(node.Tok)
		if err != nil {
			return err
		}
		g.loadConst(r, d.Value)
	case ast.VarExprNode:
		if err := g.genVar(pc, d.Var); err != nil {
			return err
		}
		r := pc.regs.top()
		g.out.Instr("ldw", r, r, asm.Imm(0))
	case ast.UnaryOpNode:
		if err := g.genExpr(pc, d.Expr); err != nil {
			return err
		}
		r := pc.regs.top()
		g.out.Instr("sub", r, asm.Zero, r)
	case ast.BinaryOpNode:
		op, ok := arithInstr[d.Op]
		if !ok {
			return diag.Errorf(diag.Internal, node.Tok, "comparison '%s' used as a value", d.Op)
		}
		if err := g.genExpr(pc, d.Left); err != nil {
			return err
		}
		if err := g.genExpr(pc, d.Right); err != nil {
			return err
		}
		right := pc.regs.pop()
		left := pc.regs.pop()
		result, err := pc.regs.push(node.Tok)
		if err != nil {
			return err
		}
		g.out.Instr(op, result, left, right)
	default:
		return diag.Errorf(diag.Internal, node.Tok, "unexpected expression node %d", node.Type)
	}
	return nil
}
