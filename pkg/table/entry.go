package table

import (
	"fmt"

	"github.com/xplshn/splc/pkg/types"
)

// WordSize is the size of an address, a saved register or a reference parameter.
const WordSize = 4

// Entry is implemented by *TypeEntry, *VariableEntry and *ProcedureEntry.
type Entry interface {
	Kind() string
	isEntry()
}

type TypeEntry struct {
	Type types.Type
}

type VariableEntry struct {
	Type        types.Type
	IsReference bool
	IsGlobal    bool
	Offset      Optional
}

type ParameterType struct {
	Type        types.Type
	IsReference bool
	Offset      Optional
}

type ProcedureEntry struct {
	LocalTable     *SymbolTable
	ParameterTypes []*ParameterType
	StackLayout    StackLayout
	Predefined     bool
}

func (*TypeEntry) isEntry()      {}
func (*VariableEntry) isEntry()  {}
func (*ProcedureEntry) isEntry() {}

func (*TypeEntry) Kind() string      { return "type" }
func (*VariableEntry) Kind() string  { return "var" }
func (*ProcedureEntry) Kind() string { return "proc" }

// StorageSize is the number of bytes a parameter occupies in the argument area.
func (p *ParameterType) StorageSize() int {
	if p.IsReference {
		return WordSize
	}
	return p.Type.ByteSize()
}

// Optional is a byte count or offset that is not known until a later pass computes it.
type Optional struct {
	value int
	set   bool
}

func Some(n int) Optional { return Optional{value: n, set: true} }

func (o Optional) Get() (int, bool) { return o.value, o.set }
func (o Optional) IsSet() bool      { return o.set }

// MustGet returns the value; reading an unset value means the passes ran out of order.
func (o Optional) MustGet() int {
	if !o.set {
		panic("table: read of a value that has not been computed")
	}
	return o.value
}

func (o Optional) String() string {
	if !o.set {
		return "unset"
	}
	return fmt.Sprint(o.value)
}

type outgoingState uint8

const (
	outgoingUnset outgoingState = iota
	outgoingNone
	outgoingCalls
)

// Outgoing describes a procedure's outgoing argument area: not yet computed,
// no calls at all, or calls needing Size bytes for arguments. A call to a
// procedure without parameters is a call with size 0.
type Outgoing struct {
	state outgoingState
	size  int
}

func NoCalls() Outgoing         { return Outgoing{state: outgoingNone} }
func Calls(size int) Outgoing   { return Outgoing{state: outgoingCalls, size: size} }
func (o Outgoing) Known() bool  { return o.state != outgoingUnset }
func (o Outgoing) MakesCalls() bool {
	o.mustBeKnown()
	return o.state == outgoingCalls
}

// Size is the area's size in bytes, 0 for a procedure without calls.
func (o Outgoing) Size() int {
	o.mustBeKnown()
	return o.size
}

func (o Outgoing) mustBeKnown() {
	if o.state == outgoingUnset {
		panic("table: read of an outgoing area size that has not been computed")
	}
}

func (o Outgoing) String() string {
	switch o.state {
	case outgoingNone:
		return "no calls"
	case outgoingCalls:
		return fmt.Sprint(o.size)
	default:
		return "unset"
	}
}

// StackLayout is a procedure's frame. From the stack pointer upward it holds
// the outgoing area, the saved return address (only when the procedure makes
// calls), the saved frame pointer and the local variables. The argument area
// belongs to the caller's frame and starts at the frame pointer.
type StackLayout struct {
	ArgumentAreaSize         Optional
	LocalVarAreaSize         Optional
	OutgoingAreaSize         Outgoing
	IsOptimizedLeafProcedure bool
}

// Complete reports whether every area has been computed.
func (s *StackLayout) Complete() bool {
	return s.ArgumentAreaSize.IsSet() && s.LocalVarAreaSize.IsSet() && s.OutgoingAreaSize.Known()
}

func (s *StackLayout) returnAddressSlot() int {
	if s.OutgoingAreaSize.MakesCalls() {
		return WordSize
	}
	return 0
}

func (s *StackLayout) FrameSize() int {
	if s.IsOptimizedLeafProcedure {
		return s.LocalVarAreaSize.MustGet()
	}
	return s.OutgoingAreaSize.Size() + s.returnAddressSlot() + WordSize + s.LocalVarAreaSize.MustGet()
}

// OldFramePointerOffset is relative to the stack pointer.
func (s *StackLayout) OldFramePointerOffset() int {
	return s.OutgoingAreaSize.Size() + s.returnAddressSlot()
}

// OldReturnAddressOffset is relative to the frame pointer.
func (s *StackLayout) OldReturnAddressOffset() int {
	return -WordSize - WordSize - s.LocalVarAreaSize.MustGet()
}
