package ast

import (
	"fmt"
	"io"
	"strings"

	"github.com/xplshn/splc/pkg/types"
)

// Fprint writes an indented dump of the tree. Types annotated by the
// semantic passes are shown after a colon.
func Fprint(w io.Writer, node *Node) {
	p := &printer{w: w}
	p.node(node, 0)
}

type printer struct {
	w io.Writer
}

func (p *printer) line(depth int, node *Node, format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s%s", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
	if node != nil && node.Typ != nil {
		fmt.Fprintf(p.w, " : %s", types.Name(node.Typ))
	}
	fmt.Fprintln(p.w)
}

func (p *printer) list(nodes []*Node, depth int) {
	for _, n := range nodes {
		p.node(n, depth)
	}
}

func (p *printer) node(node *Node, depth int) {
	if node == nil {
		p.line(depth, nil, "<nil>")
		return
	}
	switch d := node.Data.(type) {
	case ProgramNode:
		p.line(depth, nil, "Program")
		p.list(d.Decls, depth+1)
	case TypeDeclNode:
		p.line(depth, nil, "TypeDec %s", d.Name)
		p.node(d.TypeExpr, depth+1)
	case VarDeclNode:
		p.line(depth, nil, "VarDec %s", d.Name)
		p.node(d.TypeExpr, depth+1)
	case ProcDeclNode:
		p.line(depth, nil, "ProcDec %s", d.Name)
		p.list(d.Params, depth+1)
		p.list(d.Vars, depth+1)
		p.list(d.Body, depth+1)
	case ParamDeclNode:
		if d.IsReference {
			p.line(depth, nil, "ParDec ref %s", d.Name)
		} else {
			p.line(depth, nil, "ParDec %s", d.Name)
		}
		p.node(d.TypeExpr, depth+1)
	case NamedTypeExprNode:
		p.line(depth, node, "NameTy %s", d.Name)
	case ArrayTypeExprNode:
		p.line(depth, node, "ArrayTy [%d]", d.Size)
		p.node(d.Base, depth+1)
	case AssignNode:
		p.line(depth, nil, "AssignStm")
		p.node(d.Target, depth+1)
		p.node(d.Value, depth+1)
	case CallNode:
		p.line(depth, nil, "CallStm %s", d.Name)
		p.list(d.Args, depth+1)
	case IfNode:
		p.line(depth, nil, "IfStm")
		p.node(d.Cond, depth+1)
		p.node(d.Then, depth+1)
		if d.Else != nil {
			p.node(d.Else, depth+1)
		}
	case WhileNode:
		p.line(depth, nil, "WhileStm")
		p.node(d.Cond, depth+1)
		p.node(d.Body, depth+1)
	case CompoundNode:
		p.line(depth, nil, "CompStm")
		p.list(d.Stmts, depth+1)
	case EmptyNode:
		p.line(depth, nil, "EmptyStm")
	case NamedVarNode:
		p.line(depth, node, "SimpleVar %s", d.Name)
	case ArrayAccessNode:
		p.line(depth, node, "ArrayVar")
		p.node(d.Array, depth+1)
		p.node(d.Index, depth+1)
	case IntLitNode:
		p.line(depth, node, "IntExp %d", d.Value)
	case UnaryOpNode:
		p.line(depth, node, "UnaryExp %s", d.Op)
		p.node(d.Expr, depth+1)
	case BinaryOpNode:
		p.line(depth, node, "OpExp %s", d.Op)
		p.node(d.Left, depth+1)
		p.node(d.Right, depth+1)
	case VarExprNode:
		p.line(depth, node, "VarExp")
		p.node(d.Var, depth+1)
	default:
		p.line(depth, nil, "<unknown node %d>", node.Type)
	}
}
