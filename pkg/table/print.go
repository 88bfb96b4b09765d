package table

import (
	"fmt"
	"io"
	"strings"

	"github.com/xplshn/splc/pkg/types"
)

// Fprint writes the scope and, for every user procedure in it, its local
// scope. Predefined procedures are skipped unless withPredefined is set.
func Fprint(w io.Writer, t *SymbolTable, withPredefined bool) {
	fprintScope(w, t, "global", withPredefined)
	for _, name := range t.order {
		if p, ok := t.entries[name].(*ProcedureEntry); ok && (!p.Predefined || withPredefined) {
			fmt.Fprintln(w)
			fprintScope(w, p.LocalTable, "proc "+name, withPredefined)
		}
	}
}

func fprintScope(w io.Writer, t *SymbolTable, title string, withPredefined bool) {
	fmt.Fprintf(w, "symbol table (%s, level %d):\n", title, t.level)
	for _, name := range t.order {
		e := t.entries[name]
		if p, ok := e.(*ProcedureEntry); ok && p.Predefined && !withPredefined {
			continue
		}
		fmt.Fprintf(w, "  %-12s %s\n", name, describe(e))
	}
}

func describe(e Entry) string {
	switch e := e.(type) {
	case *TypeEntry:
		return "type: " + types.Name(e.Type)
	case *VariableEntry:
		var sb strings.Builder
		sb.WriteString("var: ")
		if e.IsReference {
			sb.WriteString("ref ")
		}
		sb.WriteString(types.Name(e.Type))
		if e.IsGlobal {
			sb.WriteString(" (global)")
		}
		if off, ok := e.Offset.Get(); ok {
			fmt.Fprintf(&sb, " @ %d", off)
		}
		return sb.String()
	case *ProcedureEntry:
		params := make([]string, len(e.ParameterTypes))
		for i, p := range e.ParameterTypes {
			params[i] = types.Name(p.Type)
			if p.IsReference {
				params[i] = "ref " + params[i]
			}
		}
		return "proc: (" + strings.Join(params, ", ") + ")"
	default:
		return "?"
	}
}

// FprintLayouts writes the stack layout of every user procedure.
func FprintLayouts(w io.Writer, t *SymbolTable) {
	for _, name := range t.order {
		p, ok := t.entries[name].(*ProcedureEntry)
		if !ok || p.Predefined {
			continue
		}
		l := &p.StackLayout
		fmt.Fprintf(w, "proc %s:\n", name)
		for _, local := range p.LocalTable.order {
			if v, ok := p.LocalTable.entries[local].(*VariableEntry); ok {
				fmt.Fprintf(w, "  %-12s @ %s\n", local, v.Offset)
			}
		}
		fmt.Fprintf(w, "  argument area: %s\n", l.ArgumentAreaSize)
		fmt.Fprintf(w, "  local area:    %s\n", l.LocalVarAreaSize)
		fmt.Fprintf(w, "  outgoing area: %s\n", l.OutgoingAreaSize)
		if l.Complete() {
			if l.IsOptimizedLeafProcedure {
				fmt.Fprintf(w, "  frame size:    %d (leaf)\n", l.FrameSize())
			} else {
				fmt.Fprintf(w, "  frame size:    %d\n", l.FrameSize())
				fmt.Fprintf(w, "  old FP offset: %d\n", l.OldFramePointerOffset())
				if l.OutgoingAreaSize.MakesCalls() {
					fmt.Fprintf(w, "  old RA offset: %d\n", l.OldReturnAddressOffset())
				}
			}
		}
	}
}
