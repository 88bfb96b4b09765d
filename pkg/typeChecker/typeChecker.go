// Package typeChecker annotates every expression of a program whose symbol
// table is built with its type and rejects ill-typed statements and calls.
package typeChecker

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/xplshn/splc/pkg/ast"
	"github.com/xplshn/splc/pkg/config"
	"github.com/xplshn/splc/pkg/diag"
	"github.com/xplshn/splc/pkg/table"
	"github.com/xplshn/splc/pkg/token"
	"github.com/xplshn/splc/pkg/types"
)

type TypeChecker struct {
	cfg    *config.Config
	rep    *diag.Reporter
	global *table.SymbolTable
}

// procScope is the active scope while a procedure body is checked.
type procScope struct {
	table *table.SymbolTable
	used  map[*table.VariableEntry]bool
}

func NewTypeChecker(cfg *config.Config, rep *diag.Reporter, global *table.SymbolTable) *TypeChecker {
	return &TypeChecker{cfg: cfg, rep: rep, global: global}
}

// Check verifies the program shape and every procedure body, annotating
// variables and expressions with their types. Checking twice yields the
// same annotations.
func Check(ctx context.Context, cfg *config.Config, rep *diag.Reporter, prog *ast.Node, global *table.SymbolTable) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "check procedure bodies")
	defer tr.Finish("err", &err)

	tc := NewTypeChecker(cfg, rep, global)
	if err = tc.CheckMain(); err != nil {
		return err
	}
	procs := ast.Procedures(prog)
	for _, proc := range procs {
		if err = tc.CheckProc(proc); err != nil {
			return err
		}
	}
	tr.Printw("procedures checked", "procs", len(procs))
	return nil
}

// CheckMain requires a parameterless procedure named main.
func (tc *TypeChecker) CheckMain() error {
	e, ok := tc.global.LookupLocal("main")
	if !ok {
		return diag.Errorf(diag.MainIsMissing, token.Token{}, "Procedure 'main' is missing")
	}
	proc, ok := e.(*table.ProcedureEntry)
	if !ok {
		return diag.Errorf(diag.MainIsNotAProcedure, token.Token{}, "'main' is not a procedure")
	}
	if len(proc.ParameterTypes) != 0 {
		return diag.Errorf(diag.MainMustNotHaveParameters, token.Token{}, "Procedure 'main' must not have any parameters")
	}
	return nil
}

func (tc *TypeChecker) CheckProc(node *ast.Node) error {
	d := node.Data.(ast.ProcDeclNode)
	entry, ok := tc.global.Procedure(d.Name)
	if !ok {
		return diag.Errorf(diag.Internal, node.Tok, "procedure '%s' is not in the symbol table", d.Name)
	}
	scope := &procScope{table: entry.LocalTable, used: make(map[*table.VariableEntry]bool)}
	for _, stmt := range d.Body {
		if err := tc.checkStmt(scope, stmt); err != nil {
			return err
		}
	}
	tc.warnUnused(scope, d)
	return nil
}

func (tc *TypeChecker) warnUnused(scope *procScope, d ast.ProcDeclNode) {
	if !tc.cfg.IsWarningEnabled(config.WarnUnused) {
		return
	}
	decls := make([]*ast.Node, 0, len(d.Params)+len(d.Vars))
	decls = append(append(decls, d.Params...), d.Vars...)
	for _, decl := range decls {
		var name string
		switch dd := decl.Data.(type) {
		case ast.ParamDeclNode: name = dd.Name
		case ast.VarDeclNode: name = dd.Name
		}
		if v, ok := scope.table.Variable(name); ok && !scope.used[v] {
			tc.rep.Warn(tc.cfg, config.WarnUnused, decl.Tok, "'%s' declared and not used", name)
		}
	}
}

func (tc *TypeChecker) checkStmt(scope *procScope, node *ast.Node) error {
	switch d := node.Data.(type) {
	case ast.EmptyNode:
		return nil
	case ast.CompoundNode:
		for _, stmt := range d.Stmts {
			if err := tc.checkStmt(scope, stmt); err != nil {
				return err
			}
		}
		return nil
	case ast.AssignNode:
		return tc.checkAssign(scope, node, d)
	case ast.IfNode:
		typ, err := tc.checkExpr(scope, d.Cond)
		if err != nil {
			return err
		}
		if typ != types.Bool {
			return diag.Errorf(diag.IfConditionMustBeBoolean, node.Tok, "'if' test expression must be of type boolean, found %s", types.Name(typ))
		}
		if ast.IsEmpty(d.Then) && ast.IsEmpty(d.Else) {
			tc.rep.Warn(tc.cfg, config.WarnEmptyBody, node.Tok, "'if' statement has an empty body")
		}
		if err := tc.checkStmt(scope, d.Then); err != nil {
			return err
		}
		if d.Else != nil {
			return tc.checkStmt(scope, d.Else)
		}
		return nil
	case ast.WhileNode:
		typ, err := tc.checkExpr(scope, d.Cond)
		if err != nil {
			return err
		}
		if typ != types.Bool {
			return diag.Errorf(diag.WhileConditionMustBeBoolean, node.Tok, "'while' test expression must be of type boolean, found %s", types.Name(typ))
		}
		if ast.IsEmpty(d.Body) {
			tc.rep.Warn(tc.cfg, config.WarnEmptyBody, node.Tok, "'while' statement has an empty body")
		}
		return tc.checkStmt(scope, d.Body)
	case ast.CallNode:
		return tc.checkCall(scope, node, d)
	default:
		return diag.Errorf(diag.Internal, node.Tok, "unexpected statement node %d", node.Type)
	}
}

func (tc *TypeChecker) checkAssign(scope *procScope, node *ast.Node, d ast.AssignNode) error {
	target, err := tc.checkVar(scope, d.Target)
	if err != nil {
		return err
	}
	value, err := tc.checkExpr(scope, d.Value)
	if err != nil {
		return err
	}
	if _, isArray := types.AsArray(target); isArray {
		return diag.Errorf(diag.IllegalAssignmentToArray, node.Tok, "Illegal assignment to array of type %s", types.Name(target))
	}
	if target != value {
		return diag.Errorf(diag.IllegalAssignment, node.Tok, "Illegal assignment: cannot assign %s to %s", types.Name(value), types.Name(target))
	}
	return nil
}

func (tc *TypeChecker) checkCall(scope *procScope, node *ast.Node, d ast.CallNode) error {
	e, ok := scope.table.Lookup(d.Name)
	if !ok {
		return diag.Errorf(diag.UndefinedProcedure, node.Tok, "Undefined procedure '%s'", d.Name)
	}
	proc, ok := e.(*table.ProcedureEntry)
	if !ok {
		return diag.Errorf(diag.CallOfNonProcedure, node.Tok, "'%s' is not a procedure", d.Name)
	}

	params := proc.ParameterTypes
	switch {
	case len(d.Args) < len(params):
		return diag.Errorf(diag.TooFewArguments, node.Tok, "Too few arguments for procedure '%s': expected %d, got %d", d.Name, len(params), len(d.Args))
	case len(d.Args) > len(params):
		return diag.Errorf(diag.TooManyArguments, node.Tok, "Too many arguments for procedure '%s': expected %d, got %d", d.Name, len(params), len(d.Args))
	}

	for i, arg := range d.Args {
		typ, err := tc.checkExpr(scope, arg)
		if err != nil {
			return err
		}
		if typ != params[i].Type {
			return diag.Errorf(diag.ArgumentTypeMismatch, arg.Tok, "Argument %d of '%s' has type %s, expected %s", i+1, d.Name, types.Name(typ), types.Name(params[i].Type))
		}
		if params[i].IsReference && arg.Type != ast.VarExpr {
			return diag.Errorf(diag.ArgumentMustBeAVariable, arg.Tok, "Argument %d of '%s' must be a variable", i+1, d.Name)
		}
	}
	return nil
}

// checkVar resolves a variable and stores its type on the node.
func (tc *TypeChecker) checkVar(scope *procScope, node *ast.Node) (types.Type, error) {
	switch d := node.Data.(type) {
	case ast.NamedVarNode:
		e, ok := scope.table.Lookup(d.Name)
		if !ok {
			return nil, diag.Errorf(diag.UndefinedVariable, node.Tok, "Undefined variable '%s'", d.Name)
		}
		v, ok := e.(*table.VariableEntry)
		if !ok {
			return nil, diag.Errorf(diag.NotAVariable, node.Tok, "'%s' is not a variable", d.Name)
		}
		scope.used[v] = true
		node.Typ = v.Type
	case ast.ArrayAccessNode:
		index, err := tc.checkExpr(scope, d.Index)
		if err != nil {
			return nil, err
		}
		if index != types.Int {
			return nil, diag.Errorf(diag.IndexingWithNonInteger, node.Tok, "Array index must be of type int, found %s", types.Name(index))
		}
		base, err := tc.checkVar(scope, d.Array)
		if err != nil {
			return nil, err
		}
		arr, ok := types.AsArray(base)
		if !ok {
			return nil, diag.Errorf(diag.IndexingNonArray, node.Tok, "Cannot index a value of type %s", types.Name(base))
		}
		node.Typ = arr.Base
	default:
		return nil, diag.Errorf(diag.Internal, node.Tok, "unexpected variable node %d", node.Type)
	}
	return node.Typ, nil
}

// checkExpr computes the type of an expression and stores it on the node.
func (tc *TypeChecker) checkExpr(scope *procScope, node *ast.Node) (types.Type, error) {
	switch d := node.Data.(type) {
	case ast.IntLitNode:
		node.Typ = types.Int
	case ast.VarExprNode:
		typ, err := tc.checkVar(scope, d.Var)
		if err != nil {
			return nil, err
		}
		node.Typ = typ
	case ast.UnaryOpNode:
		operand, err := tc.checkExpr(scope, d.Expr)
		if err != nil {
			return nil, err
		}
		if operand != types.Int {
			return nil, diag.Errorf(diag.NoSuchOperator, node.Tok, "No operator '%s' for operand of type %s", d.Op, types.Name(operand))
		}
		node.Typ = types.Int
	case ast.BinaryOpNode:
		typ, err := tc.binaryOpType(scope, node, d)
		if err != nil {
			return nil, err
		}
		node.Typ = typ
	default:
		return nil, diag.Errorf(diag.Internal, node.Tok, "unexpected expression node %d", node.Type)
	}
	return node.Typ, nil
}

func (tc *TypeChecker) binaryOpType(scope *procScope, node *ast.Node, d ast.BinaryOpNode) (types.Type, error) {
	left, err := tc.checkExpr(scope, d.Left)
	if err != nil {
		return nil, err
	}
	right, err := tc.checkExpr(scope, d.Right)
	if err != nil {
		return nil, err
	}
	if left != right || left != types.Int {
		return nil, diag.Errorf(diag.NoSuchOperator, node.Tok, "No operator '%s' for operands of type %s and %s", d.Op, types.Name(left), types.Name(right))
	}
	if d.Op.IsRelational() {
		return types.Bool, nil
	}
	return types.Int, nil
}
