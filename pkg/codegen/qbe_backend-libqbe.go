//go:build !windows

package codegen

import (
	"bytes"
	"strings"

	"modernc.org/libqbe"

	"github.com/xplshn/splc/pkg/ast"
	"github.com/xplshn/splc/pkg/config"
	"github.com/xplshn/splc/pkg/diag"
	"github.com/xplshn/splc/pkg/table"
)

// Generate runs the embedded QBE over the program's IL. A QBE failure means
// the IL is malformed, so it is reported as an internal error.
func (b *qbeBackend) Generate(prog *ast.Node, global *table.SymbolTable, cfg *config.Config) (*bytes.Buffer, error) {
	il, err := b.GenerateIR(prog, global, cfg)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := libqbe.Main(cfg.QbeTarget, "program.ssa", strings.NewReader(il), &out, nil); err != nil {
		return nil, diag.Errorf(diag.Internal, prog.Tok, "qbe rejected the generated IL for target %s: %v", cfg.QbeTarget, err)
	}
	return &out, nil
}
