package table

import "github.com/xplshn/splc/pkg/types"

type predefinedParam struct {
	name  string
	isRef bool
}

// The runtime library. Every parameter is an int.
var predefinedProcs = []struct {
	name   string
	params []predefinedParam
}{
	{"printi", []predefinedParam{{"i", false}}},
	{"printc", []predefinedParam{{"i", false}}},
	{"readi", []predefinedParam{{"i", true}}},
	{"readc", []predefinedParam{{"i", true}}},
	{"exit", nil},
	{"time", []predefinedParam{{"i", true}}},
	{"clearAll", []predefinedParam{{"color", false}}},
	{"setPixel", []predefinedParam{{"x", false}, {"y", false}, {"color", false}}},
	{"drawLine", []predefinedParam{{"x1", false}, {"y1", false}, {"x2", false}, {"y2", false}, {"color", false}}},
	{"drawCircle", []predefinedParam{{"x0", false}, {"y0", false}, {"radius", false}, {"color", false}}},
}

// PredefinedProcedures lists the runtime library procedures in declaration order.
func PredefinedProcedures() []string {
	names := make([]string, len(predefinedProcs))
	for i, p := range predefinedProcs {
		names[i] = p.name
	}
	return names
}

// NewGlobalTable returns a global scope holding the type int and the
// runtime library procedures, with their stack layouts already computed.
func NewGlobalTable() *SymbolTable {
	global := New(nil)
	_ = global.Enter("int", &TypeEntry{Type: types.Int})

	for _, proc := range predefinedProcs {
		local := New(global)
		entry := &ProcedureEntry{LocalTable: local, Predefined: true}
		offset := 0
		for _, param := range proc.params {
			pt := &ParameterType{Type: types.Int, IsReference: param.isRef, Offset: Some(offset)}
			_ = local.Enter(param.name, &VariableEntry{Type: types.Int, IsReference: param.isRef, Offset: Some(offset)})
			entry.ParameterTypes = append(entry.ParameterTypes, pt)
			offset += WordSize
		}
		entry.StackLayout = StackLayout{
			ArgumentAreaSize: Some(offset),
			LocalVarAreaSize: Some(0),
			OutgoingAreaSize: NoCalls(),
		}
		_ = global.Enter(proc.name, entry)
	}
	return global
}
