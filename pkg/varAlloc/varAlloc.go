// Package varAlloc computes parameter and local variable offsets and the
// stack layout of every procedure.
package varAlloc

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/xplshn/splc/pkg/ast"
	"github.com/xplshn/splc/pkg/config"
	"github.com/xplshn/splc/pkg/diag"
	"github.com/xplshn/splc/pkg/table"
)

type Allocator struct {
	cfg    *config.Config
	global *table.SymbolTable
}

func NewAllocator(cfg *config.Config, global *table.SymbolTable) *Allocator {
	return &Allocator{cfg: cfg, global: global}
}

// Allocate runs both passes over all procedures of a checked program.
func Allocate(ctx context.Context, cfg *config.Config, prog *ast.Node, global *table.SymbolTable) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "allocate variables")
	defer tr.Finish("err", &err)

	a := NewAllocator(cfg, global)
	a.AllocateGlobals()

	procs := ast.Procedures(prog)
	entries := make([]*table.ProcedureEntry, len(procs))
	for i, proc := range procs {
		if entries[i], err = a.lookup(proc); err != nil {
			return err
		}
		a.AllocateLocals(entries[i], proc)
	}
	for i, proc := range procs {
		if err = a.ComputeOutgoing(entries[i], proc); err != nil {
			return err
		}
	}

	leaves := 0
	for _, entry := range entries {
		if a.MarkLeaf(entry) {
			leaves++
		}
	}
	tr.Printw("stack layouts computed", "procs", len(procs), "leaves", leaves)
	return nil
}

func (a *Allocator) lookup(proc *ast.Node) (*table.ProcedureEntry, error) {
	name := proc.Data.(ast.ProcDeclNode).Name
	entry, ok := a.global.Procedure(name)
	if !ok {
		return nil, diag.Errorf(diag.Internal, proc.Tok, "procedure '%s' is not in the symbol table", name)
	}
	return entry, nil
}

// AllocateGlobals gives every global variable offset 0 from its own data label.
func (a *Allocator) AllocateGlobals() {
	for _, name := range a.global.Names() {
		if v, ok := a.global.Variable(name); ok && v.IsGlobal {
			v.Offset = table.Some(0)
		}
	}
}

// AllocateLocals is the first pass for one procedure. Parameters get
// increasing offsets from 0 in the caller's outgoing area; locals get
// decreasing negative offsets below the frame pointer. The outgoing area is
// reset to unset for the second pass.
func (a *Allocator) AllocateLocals(entry *table.ProcedureEntry, proc *ast.Node) {
	d := proc.Data.(ast.ProcDeclNode)

	offset := 0
	for i, param := range d.Params {
		pt := entry.ParameterTypes[i]
		pt.Offset = table.Some(offset)
		if v, ok := entry.LocalTable.LookupLocal(param.Data.(ast.ParamDeclNode).Name); ok {
			v.(*table.VariableEntry).Offset = table.Some(offset)
		}
		offset += pt.StorageSize()
	}
	entry.StackLayout.ArgumentAreaSize = table.Some(offset)

	offset = 0
	for _, local := range d.Vars {
		if e, ok := entry.LocalTable.LookupLocal(local.Data.(ast.VarDeclNode).Name); ok {
			v := e.(*table.VariableEntry)
			offset -= v.Type.ByteSize()
			v.Offset = table.Some(offset)
		}
	}
	entry.StackLayout.LocalVarAreaSize = table.Some(-offset)
	entry.StackLayout.OutgoingAreaSize = table.Outgoing{}
	entry.StackLayout.IsOptimizedLeafProcedure = false
}

// ComputeOutgoing is the second pass for one procedure: the outgoing area is
// the largest argument area among the procedures it calls directly. A
// procedure whose outgoing area is already known is left alone.
func (a *Allocator) ComputeOutgoing(entry *table.ProcedureEntry, proc *ast.Node) error {
	if entry.StackLayout.OutgoingAreaSize.Known() {
		return nil
	}
	outgoing := table.NoCalls()
	for _, stmt := range proc.Data.(ast.ProcDeclNode).Body {
		var err error
		if outgoing, err = a.callsIn(entry.LocalTable, stmt, outgoing); err != nil {
			return err
		}
	}
	entry.StackLayout.OutgoingAreaSize = outgoing
	return nil
}

func (a *Allocator) callsIn(scope *table.SymbolTable, node *ast.Node, outgoing table.Outgoing) (table.Outgoing, error) {
	if node == nil {
		return outgoing, nil
	}
	var err error
	switch d := node.Data.(type) {
	case ast.CompoundNode:
		for _, stmt := range d.Stmts {
			if outgoing, err = a.callsIn(scope, stmt, outgoing); err != nil {
				return outgoing, err
			}
		}
	case ast.IfNode:
		if outgoing, err = a.callsIn(scope, d.Then, outgoing); err != nil {
			return outgoing, err
		}
		return a.callsIn(scope, d.Else, outgoing)
	case ast.WhileNode:
		return a.callsIn(scope, d.Body, outgoing)
	case ast.CallNode:
		callee, ok := scope.Procedure(d.Name)
		if !ok {
			return outgoing, diag.Errorf(diag.Internal, node.Tok, "call of unknown procedure '%s'", d.Name)
		}
		size, ok := callee.StackLayout.ArgumentAreaSize.Get()
		if !ok {
			return outgoing, diag.Errorf(diag.Internal, node.Tok, "argument area of '%s' is not allocated", d.Name)
		}
		if !outgoing.MakesCalls() || size > outgoing.Size() {
			return table.Calls(size), nil
		}
	}
	return outgoing, nil
}

// MarkLeaf flags a procedure without calls as an optimized leaf procedure
// when the leaf-proc feature is on.
func (a *Allocator) MarkLeaf(entry *table.ProcedureEntry) bool {
	layout := &entry.StackLayout
	layout.IsOptimizedLeafProcedure = a.cfg.IsFeatureEnabled(config.FeatLeafProc) &&
		layout.OutgoingAreaSize.Known() && !layout.OutgoingAreaSize.MakesCalls()
	return layout.IsOptimizedLeafProcedure
}
