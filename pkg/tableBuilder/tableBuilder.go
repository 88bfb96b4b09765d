// Package tableBuilder enters every declaration of a program into a nested
// symbol table and resolves type expressions.
package tableBuilder

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/xplshn/splc/pkg/asm"
	"github.com/xplshn/splc/pkg/ast"
	"github.com/xplshn/splc/pkg/config"
	"github.com/xplshn/splc/pkg/diag"
	"github.com/xplshn/splc/pkg/table"
	"github.com/xplshn/splc/pkg/types"
)

// Builder holds what is shared by the whole traversal. The scope being
// filled is passed explicitly to every method.
type Builder struct {
	cfg *config.Config
	rep *diag.Reporter
}

func NewBuilder(cfg *config.Config, rep *diag.Reporter) *Builder {
	return &Builder{cfg: cfg, rep: rep}
}

// Build returns a fresh global table with the predefined entries and the
// program's declarations. The first error aborts the traversal.
func Build(ctx context.Context, cfg *config.Config, rep *diag.Reporter, prog *ast.Node) (global *table.SymbolTable, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "build symbol table")
	defer tr.Finish("err", &err)

	global = table.NewGlobalTable()
	if err = NewBuilder(cfg, rep).BuildInto(global, prog); err != nil {
		return nil, err
	}
	tr.Printw("symbol table built", "globals", global.Len())
	return global, nil
}

// BuildInto enters the program's declarations into an existing global scope.
func (b *Builder) BuildInto(global *table.SymbolTable, prog *ast.Node) error {
	for _, decl := range prog.Data.(ast.ProgramNode).Decls {
		if err := b.declare(global, decl); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) declare(scope *table.SymbolTable, node *ast.Node) error {
	switch d := node.Data.(type) {
	case ast.TypeDeclNode: return b.declareType(scope, node, d)
	case ast.VarDeclNode: return b.declareVar(scope, node, d)
	case ast.ProcDeclNode: return b.declareProc(scope, node, d)
	default:
		return diag.Errorf(diag.Internal, node.Tok, "unexpected declaration node %d", node.Type)
	}
}

func (b *Builder) declareType(scope *table.SymbolTable, node *ast.Node, d ast.TypeDeclNode) error {
	typ, err := b.resolveType(scope, d.TypeExpr)
	if err != nil {
		return err
	}
	if scope.Enter(d.Name, &table.TypeEntry{Type: typ}) != nil {
		return diag.Errorf(diag.RedeclarationAsType, node.Tok, "Redeclaration of '%s' as type", d.Name)
	}
	return nil
}

func (b *Builder) declareVar(scope *table.SymbolTable, node *ast.Node, d ast.VarDeclNode) error {
	typ, err := b.resolveType(scope, d.TypeExpr)
	if err != nil {
		return err
	}
	entry := &table.VariableEntry{Type: typ, IsGlobal: scope.Level() == 0}
	if entry.IsGlobal {
		if err := checkReserved(node, d.Name); err != nil {
			return err
		}
	}
	if scope.Enter(d.Name, entry) != nil {
		return diag.Errorf(diag.RedeclarationAsVariable, node.Tok, "Redeclaration of '%s' as variable", d.Name)
	}
	b.warnShadow(scope, node, d.Name)
	return nil
}

func (b *Builder) declareProc(scope *table.SymbolTable, node *ast.Node, d ast.ProcDeclNode) error {
	if err := checkReserved(node, d.Name); err != nil {
		return err
	}
	local := table.New(scope)
	entry := &table.ProcedureEntry{LocalTable: local}

	for _, param := range d.Params {
		pt, err := b.declareParam(local, param)
		if err != nil {
			return err
		}
		entry.ParameterTypes = append(entry.ParameterTypes, pt)
	}
	for _, v := range d.Vars {
		if err := b.declareVar(local, v, v.Data.(ast.VarDeclNode)); err != nil {
			return err
		}
	}

	if scope.Enter(d.Name, entry) != nil {
		return diag.Errorf(diag.RedeclarationAsProcedure, node.Tok, "Redeclaration of '%s' as procedure", d.Name)
	}
	return nil
}

// checkReserved rejects global names that would clash with the labels and
// runtime symbols of the generated assembler code.
func checkReserved(node *ast.Node, name string) error {
	if asm.IsReserved(name) {
		return diag.Errorf(diag.ReservedName, node.Tok, "'%s' is reserved for generated code", name)
	}
	return nil
}

func (b *Builder) declareParam(local *table.SymbolTable, node *ast.Node) (*table.ParameterType, error) {
	d := node.Data.(ast.ParamDeclNode)
	typ, err := b.resolveType(local, d.TypeExpr)
	if err != nil {
		return nil, err
	}
	if _, isArray := types.AsArray(typ); isArray && !d.IsReference {
		return nil, diag.Errorf(diag.MustBeAReferenceParameter, node.Tok, "Parameter '%s' must be a reference parameter", d.Name)
	}
	if local.Enter(d.Name, &table.VariableEntry{Type: typ, IsReference: d.IsReference}) != nil {
		return nil, diag.Errorf(diag.RedeclarationAsParameter, node.Tok, "Redeclaration of '%s' as parameter", d.Name)
	}
	b.warnShadow(local, node, d.Name)
	return &table.ParameterType{Type: typ, IsReference: d.IsReference}, nil
}

func (b *Builder) warnShadow(scope *table.SymbolTable, node *ast.Node, name string) {
	if scope.Parent() == nil {
		return
	}
	if v, ok := scope.Parent().Variable(name); ok && v.IsGlobal {
		b.rep.Warn(b.cfg, config.WarnShadow, node.Tok, "Declaration of '%s' shadows a global variable", name)
	}
}

// resolveType resolves a type expression and annotates the node with the result.
func (b *Builder) resolveType(scope *table.SymbolTable, node *ast.Node) (types.Type, error) {
	var typ types.Type
	switch d := node.Data.(type) {
	case ast.NamedTypeExprNode:
		e, ok := scope.Lookup(d.Name)
		if !ok {
			return nil, diag.Errorf(diag.UndefinedType, node.Tok, "Undefined type '%s'", d.Name)
		}
		te, ok := e.(*table.TypeEntry)
		if !ok {
			return nil, diag.Errorf(diag.NotAType, node.Tok, "'%s' is not a type", d.Name)
		}
		typ = te.Type
	case ast.ArrayTypeExprNode:
		base, err := b.resolveType(scope, d.Base)
		if err != nil {
			return nil, err
		}
		typ = types.NewArray(base, d.Size)
	default:
		return nil, diag.Errorf(diag.Internal, node.Tok, "unexpected type expression node %d", node.Type)
	}
	node.Typ = typ
	return typ, nil
}
