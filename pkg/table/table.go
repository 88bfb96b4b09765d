// Package table implements nested scopes mapping names to type, variable
// and procedure entries.
package table

import "errors"

// ErrRedeclared is returned by Enter when the name is already bound in the same scope.
var ErrRedeclared = errors.New("name already declared in this scope")

// SymbolTable is one scope. The parent link is only used for lookup; the
// global scope has no parent.
type SymbolTable struct {
	entries map[string]Entry
	order   []string
	parent  *SymbolTable
	level   int
}

func New(parent *SymbolTable) *SymbolTable {
	t := &SymbolTable{entries: make(map[string]Entry), parent: parent}
	if parent != nil {
		t.level = parent.level + 1
	}
	return t
}

// Enter binds name in this scope.
func (t *SymbolTable) Enter(name string, e Entry) error {
	if _, ok := t.entries[name]; ok {
		return ErrRedeclared
	}
	t.entries[name] = e
	t.order = append(t.order, name)
	return nil
}

// Lookup searches this scope and then its ancestors; inner bindings shadow outer ones.
func (t *SymbolTable) Lookup(name string) (Entry, bool) {
	for s := t; s != nil; s = s.parent {
		if e, ok := s.entries[name]; ok {
			return e, true
		}
	}
	return nil, false
}

func (t *SymbolTable) LookupLocal(name string) (Entry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

func (t *SymbolTable) Parent() *SymbolTable { return t.parent }

// Level is 0 for the global scope and 1 for a procedure's local scope.
func (t *SymbolTable) Level() int { return t.level }

// Names returns the names bound in this scope in declaration order.
func (t *SymbolTable) Names() []string { return append([]string(nil), t.order...) }

func (t *SymbolTable) Len() int { return len(t.order) }

// Procedure looks up name and returns it if it names a procedure.
func (t *SymbolTable) Procedure(name string) (*ProcedureEntry, bool) {
	e, ok := t.Lookup(name)
	if !ok {
		return nil, false
	}
	p, ok := e.(*ProcedureEntry)
	return p, ok
}

// Variable looks up name and returns it if it names a variable.
func (t *SymbolTable) Variable(name string) (*VariableEntry, bool) {
	e, ok := t.Lookup(name)
	if !ok {
		return nil, false
	}
	v, ok := e.(*VariableEntry)
	return v, ok
}
