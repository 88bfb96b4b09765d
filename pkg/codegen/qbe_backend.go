package codegen

import (
	"fmt"
	"strings"

	"github.com/xplshn/splc/pkg/asm"
	"github.com/xplshn/splc/pkg/ast"
	"github.com/xplshn/splc/pkg/config"
	"github.com/xplshn/splc/pkg/diag"
	"github.com/xplshn/splc/pkg/table"
	"github.com/xplshn/splc/pkg/types"
)

// qbeBackend lowers the checked program straight to QBE IL text. SPL ints
// are QBE words; addresses use the target's word type.
type qbeBackend struct {
	out    *strings.Builder
	cfg    *config.Config
	global *table.SymbolTable
	tmps   int
	labels int
}

// qbeProc is the procedure being lowered: the address operand of every
// variable visible in it.
type qbeProc struct {
	scope *table.SymbolTable
	addrs map[string]string
}

func NewQBEBackend() Backend { return &qbeBackend{} }

// GenerateIR returns the QBE IL for a checked and allocated program.
func (b *qbeBackend) GenerateIR(prog *ast.Node, global *table.SymbolTable, cfg *config.Config) (string, error) {
	var sb strings.Builder
	b.out, b.cfg, b.global = &sb, cfg, global
	b.tmps, b.labels = 0, 0

	for _, name := range global.Names() {
		if v, ok := global.Variable(name); ok && v.IsGlobal {
			fmt.Fprintf(b.out, "data $%s = align 4 { z %d }\n", name, v.Type.ByteSize())
		}
	}
	for _, proc := range ast.Procedures(prog) {
		if err := b.genFunc(proc); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

func (b *qbeBackend) wordType() string {
	if b.cfg.WordType == "" {
		return "l"
	}
	return b.cfg.WordType
}

func (b *qbeBackend) newTemp() string {
	b.tmps++
	return fmt.Sprintf("%%t.%d", b.tmps)
}

func (b *qbeBackend) newLabel(prefix string) string {
	b.labels++
	return fmt.Sprintf("@%s.%d", prefix, b.labels)
}

func (b *qbeBackend) genFunc(node *ast.Node) error {
	d := node.Data.(ast.ProcDeclNode)
	entry, ok := b.global.Procedure(d.Name)
	if !ok {
		return diag.Errorf(diag.Internal, node.Tok, "procedure '%s' is not in the symbol table", d.Name)
	}
	p := &qbeProc{scope: entry.LocalTable, addrs: make(map[string]string)}

	params := make([]string, len(d.Params))
	for i, param := range d.Params {
		name := param.Data.(ast.ParamDeclNode).Name
		if entry.ParameterTypes[i].IsReference {
			params[i] = fmt.Sprintf("%s %%p.%s", b.wordType(), name)
		} else {
			params[i] = "w %p." + name
		}
	}

	if d.Name == "main" {
		fmt.Fprintf(b.out, "\nexport function w $%s(%s) {\n@start\n", d.Name, strings.Join(params, ", "))
	} else {
		fmt.Fprintf(b.out, "\nfunction $%s(%s) {\n@start\n", d.Name, strings.Join(params, ", "))
	}

	for i, param := range d.Params {
		name := param.Data.(ast.ParamDeclNode).Name
		if entry.ParameterTypes[i].IsReference {
			p.addrs[name] = "%p." + name
			continue
		}
		p.addrs[name] = "%v." + name
		fmt.Fprintf(b.out, "\t%%v.%s =%s alloc4 4\n", name, b.wordType())
		fmt.Fprintf(b.out, "\tstorew %%p.%s, %%v.%s\n", name, name)
	}
	for _, local := range d.Vars {
		name := local.Data.(ast.VarDeclNode).Name
		p.addrs[name] = "%v." + name
		fmt.Fprintf(b.out, "\t%%v.%s =%s alloc4 %d\n", name, b.wordType(), local.Data.(ast.VarDeclNode).TypeExpr.Typ.ByteSize())
	}

	for _, stmt := range d.Body {
		if err := b.genStmt(p, stmt); err != nil {
			return err
		}
	}
	if d.Name == "main" {
		b.out.WriteString("\tret 0\n}\n")
	} else {
		b.out.WriteString("\tret\n}\n")
	}
	return nil
}

func (b *qbeBackend) genStmt(p *qbeProc, node *ast.Node) error {
	if node == nil {
		return nil
	}
	switch d := node.Data.(type) {
	case ast.EmptyNode:
		return nil
	case ast.CompoundNode:
		for _, stmt := range d.Stmts {
			if err := b.genStmt(p, stmt); err != nil {
				return err
			}
		}
		return nil
	case ast.AssignNode:
		addr, err := b.genAddr(p, d.Target)
		if err != nil {
			return err
		}
		val, err := b.genValue(p, d.Value)
		if err != nil {
			return err
		}
		fmt.Fprintf(b.out, "\tstorew %s, %s\n", val, addr)
		return nil
	case ast.IfNode:
		thenLabel, exitLabel := b.newLabel("then"), b.newLabel("endif")
		elseLabel := exitLabel
		if !ast.IsEmpty(d.Else) {
			elseLabel = b.newLabel("else")
		}
		if err := b.genCond(p, d.Cond, thenLabel, elseLabel); err != nil {
			return err
		}
		fmt.Fprintf(b.out, "%s\n", thenLabel)
		if err := b.genStmt(p, d.Then); err != nil {
			return err
		}
		if elseLabel != exitLabel {
			fmt.Fprintf(b.out, "\tjmp %s\n%s\n", exitLabel, elseLabel)
			if err := b.genStmt(p, d.Else); err != nil {
				return err
			}
		}
		fmt.Fprintf(b.out, "%s\n", exitLabel)
		return nil
	case ast.WhileNode:
		condLabel, bodyLabel, exitLabel := b.newLabel("while"), b.newLabel("body"), b.newLabel("endwhile")
		fmt.Fprintf(b.out, "%s\n", condLabel)
		if err := b.genCond(p, d.Cond, bodyLabel, exitLabel); err != nil {
			return err
		}
		fmt.Fprintf(b.out, "%s\n", bodyLabel)
		if err := b.genStmt(p, d.Body); err != nil {
			return err
		}
		fmt.Fprintf(b.out, "\tjmp %s\n%s\n", condLabel, exitLabel)
		return nil
	case ast.CallNode:
		return b.genCall(p, node, d)
	default:
		return diag.Errorf(diag.Internal, node.Tok, "unexpected statement node %d", node.Type)
	}
}

var qbeCompare = map[ast.Op]string{
	ast.OpEqu: "ceqw", ast.OpNeq: "cnew",
	ast.OpLst: "csltw", ast.OpLse: "cslew",
	ast.OpGrt: "csgtw", ast.OpGre: "csgew",
}

func (b *qbeBackend) genCond(p *qbeProc, cond *ast.Node, trueLabel, falseLabel string) error {
	d, ok := cond.Data.(ast.BinaryOpNode)
	if !ok || !d.Op.IsRelational() {
		return diag.Errorf(diag.Internal, cond.Tok, "condition is not a comparison")
	}
	left, err := b.genValue(p, d.Left)
	if err != nil {
		return err
	}
	right, err := b.genValue(p, d.Right)
	if err != nil {
		return err
	}
	t := b.newTemp()
	fmt.Fprintf(b.out, "\t%s =w %s %s, %s\n", t, qbeCompare[d.Op], left, right)
	fmt.Fprintf(b.out, "\tjnz %s, %s, %s\n", t, trueLabel, falseLabel)
	return nil
}

func (b *qbeBackend) genCall(p *qbeProc, node *ast.Node, d ast.CallNode) error {
	callee, ok := p.scope.Procedure(d.Name)
	if !ok {
		return diag.Errorf(diag.Internal, node.Tok, "call of unknown procedure '%s'", d.Name)
	}
	args := make([]string, len(d.Args))
	for i, arg := range d.Args {
		if callee.ParameterTypes[i].IsReference {
			ve, ok := arg.Data.(ast.VarExprNode)
			if !ok {
				return diag.Errorf(diag.Internal, arg.Tok, "reference argument %d of '%s' is not a variable", i+1, d.Name)
			}
			addr, err := b.genAddr(p, ve.Var)
			if err != nil {
				return err
			}
			args[i] = b.wordType() + " " + addr
			continue
		}
		val, err := b.genValue(p, arg)
		if err != nil {
			return err
		}
		args[i] = "w " + val
	}
	fmt.Fprintf(b.out, "\tcall $%s(%s)\n", d.Name, strings.Join(args, ", "))
	return nil
}

// genAddr returns an operand holding the address of a variable.
func (b *qbeBackend) genAddr(p *qbeProc, node *ast.Node) (string, error) {
	switch d := node.Data.(type) {
	case ast.NamedVarNode:
		if addr, ok := p.addrs[d.Name]; ok {
			return addr, nil
		}
		if v, ok := p.scope.Variable(d.Name); ok && v.IsGlobal {
			return "$" + d.Name, nil
		}
		return "", diag.Errorf(diag.Internal, node.Tok, "variable '%s' has no storage", d.Name)
	case ast.ArrayAccessNode:
		base, err := b.genAddr(p, d.Array)
		if err != nil {
			return "", err
		}
		index, err := b.genValue(p, d.Index)
		if err != nil {
			return "", err
		}
		arr, ok := types.AsArray(d.Array.Typ)
		if !ok {
			return "", diag.Errorf(diag.Internal, node.Tok, "indexed variable has no array type")
		}
		if b.cfg.IsFeatureEnabled(config.FeatBoundsCheck) {
			inRange, okLabel, oobLabel := b.newTemp(), b.newLabel("inbounds"), b.newLabel("oob")
			fmt.Fprintf(b.out, "\t%s =w cultw %s, %d\n", inRange, index, arr.Length)
			fmt.Fprintf(b.out, "\tjnz %s, %s, %s\n", inRange, okLabel, oobLabel)
			fmt.Fprintf(b.out, "%s\n\tcall $%s()\n\thlt\n%s\n", oobLabel, asm.IndexErrorLabel, okLabel)
		}
		wide := index
		if b.wordType() == "l" {
			wide = b.newTemp()
			fmt.Fprintf(b.out, "\t%s =l extsw %s\n", wide, index)
		}
		offset, addr := b.newTemp(), b.newTemp()
		fmt.Fprintf(b.out, "\t%s =%s mul %s, %d\n", offset, b.wordType(), wide, arr.Base.ByteSize())
		fmt.Fprintf(b.out, "\t%s =%s add %s, %s\n", addr, b.wordType(), base, offset)
		return addr, nil
	default:
		return "", diag.Errorf(diag.Internal, node.Tok, "unexpected variable node %d", node.Type)
	}
}

// genValue returns an operand holding the value of an expression.
func (b *qbeBackend) genValue(p *qbeProc, node *ast.Node) (string, error) {
	switch d := node.Data.(type) {
	case ast.IntLitNode:
		return fmt.Sprint(int32(uint32(d.Value))), nil
	case ast.VarExprNode:
		addr, err := b.genAddr(p, d.Var)
		if err != nil {
			return "", err
		}
		t := b.newTemp()
		fmt.Fprintf(b.out, "\t%s =w loadw %s\n", t, addr)
		return t, nil
	case ast.UnaryOpNode:
		val, err := b.genValue(p, d.Expr)
		if err != nil {
			return "", err
		}
		t := b.newTemp()
		fmt.Fprintf(b.out, "\t%s =w neg %s\n", t, val)
		return t, nil
	case ast.BinaryOpNode:
		op, ok := arithInstr[d.Op]
		if !ok {
			return "", diag.Errorf(diag.Internal, node.Tok, "comparison '%s' used as a value", d.Op)
		}
		left, err := b.genValue(p, d.Left)
		if err != nil {
			return "", err
		}
		right, err := b.genValue(p, d.Right)
		if err != nil {
			return "", err
		}
		t := b.newTemp()
		fmt.Fprintf(b.out, "\t%s =w %s %s, %s\n", t, op, left, right)
		return t, nil
	default:
		return "", diag.Errorf(diag.Internal, node.Tok, "unexpected expression node %d", node.Type)
	}
}
