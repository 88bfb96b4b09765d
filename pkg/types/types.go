// Package types defines the SPL type system: the primitive types int and
// boolean, and fixed-length arrays.
package types

import "fmt"

// Type is implemented by *PrimitiveType and *ArrayType. Two types are equal
// exactly when they are the same pointer.
type Type interface {
	ByteSize() int
	String() string
	isType()
}

type PrimitiveType struct {
	Name string
	Size int
}

type ArrayType struct {
	Base   Type
	Length int
}

func (*PrimitiveType) isType() {}
func (*ArrayType) isType()     {}

func (p *PrimitiveType) ByteSize() int  { return p.Size }
func (p *PrimitiveType) String() string { return p.Name }

func (a *ArrayType) ByteSize() int { return a.Length * a.Base.ByteSize() }
func (a *ArrayType) String() string {
	return fmt.Sprintf("array [%d] of %s", a.Length, a.Base)
}

var (
	Int  = &PrimitiveType{Name: "int", Size: 4}
	Bool = &PrimitiveType{Name: "boolean", Size: 4}
)

func NewArray(base Type, length int) *ArrayType { return &ArrayType{Base: base, Length: length} }

// AsArray returns t as an array type, if it is one.
func AsArray(t Type) (*ArrayType, bool) {
	a, ok := t.(*ArrayType)
	return a, ok
}

// Name renders t for diagnostics; a nil type prints as "<none>".
func Name(t Type) string {
	if t == nil {
		return "<none>"
	}
	return t.String()
}
