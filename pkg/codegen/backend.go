package codegen

import (
	"bytes"

	"github.com/xplshn/splc/pkg/ast"
	"github.com/xplshn/splc/pkg/config"
	"github.com/xplshn/splc/pkg/table"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate takes a checked program whose stack layouts are allocated,
	// and produces the target assembly as a byte buffer.
	Generate(prog *ast.Node, global *table.SymbolTable, cfg *config.Config) (*bytes.Buffer, error)
}

// ForTarget returns the backend selected in the configuration.
func ForTarget(cfg *config.Config) Backend {
	if cfg.Target == config.TargetQBE {
		return NewQBEBackend()
	}
	return NewECO32Backend()
}
