// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"github.com/xplshn/splc/pkg/token"
	"github.com/xplshn/splc/pkg/types"
)

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	Program NodeType = iota

	// Declarations
	TypeDecl
	VarDecl
	ProcDecl
	ParamDecl

	// Type expressions
	NamedTypeExpr
	ArrayTypeExpr

	// Statements
	Assign
	Call
	If
	While
	Compound
	Empty

	// Variables
	NamedVar
	ArrayAccess

	// Expressions
	IntLit
	UnaryOp
	BinaryOp
	VarExpr
)

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type NodeType
	Tok  token.Token
	Data interface{}
	Typ  types.Type // Set by the table builder on type expressions and by the type checker on variables and expressions
}

// Op is a unary or binary operator.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpEqu
	OpNeq
	OpLst
	OpLse
	OpGrt
	OpGre
	OpNeg
)

var opStrings = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/",
	OpEqu: "=", OpNeq: "#", OpLst: "<", OpLse: "<=", OpGrt: ">", OpGre: ">=",
	OpNeg: "-",
}

func (o Op) String() string {
	if int(o) < len(opStrings) {
		return opStrings[o]
	}
	return "?"
}

// IsRelational reports whether o compares two integers and yields a boolean.
func (o Op) IsRelational() bool { return o >= OpEqu && o <= OpGre }

// --- Node Data Structs ---
type ProgramNode struct{ Decls []*Node }
type TypeDeclNode struct {
	Name     string
	TypeExpr *Node
}
type VarDeclNode struct {
	Name     string
	TypeExpr *Node
}
type ProcDeclNode struct {
	Name   string
	Params []*Node
	Vars   []*Node
	Body   []*Node
}
type ParamDeclNode struct {
	Name        string
	TypeExpr    *Node
	IsReference bool
}
type NamedTypeExprNode struct{ Name string }
type ArrayTypeExprNode struct {
	Base *Node
	Size int
}
type AssignNode struct{ Target, Value *Node }
type CallNode struct {
	Name string
	Args []*Node
}
type IfNode struct{ Cond, Then, Else *Node }
type WhileNode struct{ Cond, Body *Node }
type CompoundNode struct{ Stmts []*Node }
type EmptyNode struct{}
type NamedVarNode struct{ Name string }
type ArrayAccessNode struct{ Array, Index *Node }
type IntLitNode struct{ Value int64 }
type UnaryOpNode struct {
	Op   Op
	Expr *Node
}
type BinaryOpNode struct {
	Op          Op
	Left, Right *Node
}
type VarExprNode struct{ Var *Node }

// --- Node Constructors ---

func newNode(tok token.Token, nodeType NodeType, data interface{}) *Node {
	return &Node{Type: nodeType, Tok: tok, Data: data}
}

func NewProgram(tok token.Token, decls []*Node) *Node {
	return newNode(tok, Program, ProgramNode{Decls: decls})
}
func NewTypeDecl(tok token.Token, name string, typeExpr *Node) *Node {
	return newNode(tok, TypeDecl, TypeDeclNode{Name: name, TypeExpr: typeExpr})
}
func NewVarDecl(tok token.Token, name string, typeExpr *Node) *Node {
	return newNode(tok, VarDecl, VarDeclNode{Name: name, TypeExpr: typeExpr})
}
func NewProcDecl(tok token.Token, name string, params, vars, body []*Node) *Node {
	return newNode(tok, ProcDecl, ProcDeclNode{Name: name, Params: params, Vars: vars, Body: body})
}
func NewParamDecl(tok token.Token, name string, typeExpr *Node, isReference bool) *Node {
	return newNode(tok, ParamDecl, ParamDeclNode{Name: name, TypeExpr: typeExpr, IsReference: isReference})
}
func NewNamedTypeExpr(tok token.Token, name string) *Node {
	return newNode(tok, NamedTypeExpr, NamedTypeExprNode{Name: name})
}
func NewArrayTypeExpr(tok token.Token, base *Node, size int) *Node {
	return newNode(tok, ArrayTypeExpr, ArrayTypeExprNode{Base: base, Size: size})
}
func NewAssign(tok token.Token, target, value *Node) *Node {
	return newNode(tok, Assign, AssignNode{Target: target, Value: value})
}
func NewCall(tok token.Token, name string, args []*Node) *Node {
	return newNode(tok, Call, CallNode{Name: name, Args: args})
}
func NewIf(tok token.Token, cond, then, els *Node) *Node {
	return newNode(tok, If, IfNode{Cond: cond, Then: then, Else: els})
}
func NewWhile(tok token.Token, cond, body *Node) *Node {
	return newNode(tok, While, WhileNode{Cond: cond, Body: body})
}
func NewCompound(tok token.Token, stmts []*Node) *Node {
	return newNode(tok, Compound, CompoundNode{Stmts: stmts})
}
func NewEmpty(tok token.Token) *Node {
	return newNode(tok, Empty, EmptyNode{})
}
func NewNamedVar(tok token.Token, name string) *Node {
	return newNode(tok, NamedVar, NamedVarNode{Name: name})
}
func NewArrayAccess(tok token.Token, array, index *Node) *Node {
	return newNode(tok, ArrayAccess, ArrayAccessNode{Array: array, Index: index})
}
func NewIntLit(tok token.Token, value int64) *Node {
	return newNode(tok, IntLit, IntLitNode{Value: value})
}
func NewUnaryOp(tok token.Token, op Op, expr *Node) *Node {
	return newNode(tok, UnaryOp, UnaryOpNode{Op: op, Expr: expr})
}
func NewBinaryOp(tok token.Token, op Op, left, right *Node) *Node {
	return newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right})
}
func NewVarExpr(tok token.Token, variable *Node) *Node {
	return newNode(tok, VarExpr, VarExprNode{Var: variable})
}

// IsEmpty reports whether a statement does nothing: a missing else branch,
// an empty statement or a compound statement without statements.
func IsEmpty(stmt *Node) bool {
	if stmt == nil || stmt.Type == Empty {
		return true
	}
	if stmt.Type == Compound {
		return len(stmt.Data.(CompoundNode).Stmts) == 0
	}
	return false
}

// Procedures returns the procedure declarations of a program in declaration order.
func Procedures(prog *Node) []*Node {
	var procs []*Node
	for _, decl := range prog.Data.(ProgramNode).Decls {
		if decl.Type == ProcDecl {
			procs = append(procs, decl)
		}
	}
	return procs
}

// FoldNegation rewrites a negated integer literal into a negative literal.
// Nothing else is folded.
func FoldNegation(node *Node) *Node {
	if node == nil {
		return nil
	}

	// Recursively fold children first
	switch d := node.Data.(type) {
	case ProgramNode:
		for i, decl := range d.Decls {
			d.Decls[i] = FoldNegation(decl)
		}
	case ProcDeclNode:
		for i, stmt := range d.Body {
			d.Body[i] = FoldNegation(stmt)
		}
	case AssignNode:
		d.Target = FoldNegation(d.Target)
		d.Value = FoldNegation(d.Value)
		node.Data = d
	case CallNode:
		for i, arg := range d.Args {
			d.Args[i] = FoldNegation(arg)
		}
	case IfNode:
		d.Cond = FoldNegation(d.Cond)
		d.Then = FoldNegation(d.Then)
		d.Else = FoldNegation(d.Else)
		node.Data = d
	case WhileNode:
		d.Cond = FoldNegation(d.Cond)
		d.Body = FoldNegation(d.Body)
		node.Data = d
	case CompoundNode:
		for i, stmt := range d.Stmts {
			d.Stmts[i] = FoldNegation(stmt)
		}
	case ArrayAccessNode:
		d.Array = FoldNegation(d.Array)
		d.Index = FoldNegation(d.Index)
		node.Data = d
	case VarExprNode:
		d.Var = FoldNegation(d.Var)
		node.Data = d
	case BinaryOpNode:
		d.Left = FoldNegation(d.Left)
		d.Right = FoldNegation(d.Right)
		node.Data = d
	case UnaryOpNode:
		d.Expr = FoldNegation(d.Expr)
		node.Data = d
	}

	// Then, attempt to fold the current node.
	if node.Type == UnaryOp {
		d := node.Data.(UnaryOpNode)
		if d.Op == OpNeg && d.Expr.Type == IntLit {
			return NewIntLit(node.Tok, -d.Expr.Data.(IntLitNode).Value)
		}
	}
	return node
}
