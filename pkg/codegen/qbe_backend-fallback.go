//go:build windows

package codegen

import (
	"bytes"
	"os"
	"os/exec"

	"github.com/xplshn/splc/pkg/ast"
	"github.com/xplshn/splc/pkg/config"
	"github.com/xplshn/splc/pkg/diag"
	"github.com/xplshn/splc/pkg/table"
)

// Generate pipes the program's IL through a qbe binary from PATH, since the
// embedded QBE does not build on Windows.
func (b *qbeBackend) Generate(prog *ast.Node, global *table.SymbolTable, cfg *config.Config) (*bytes.Buffer, error) {
	qbe, err := exec.LookPath("qbe")
	if err != nil {
		return nil, diag.Errorf(diag.Internal, prog.Tok, "qbe backend needs a qbe binary in PATH: %v", err)
	}

	il, err := b.GenerateIR(prog, global, cfg)
	if err != nil {
		return nil, err
	}

	in, err := os.CreateTemp("", "splc-*.ssa")
	if err != nil {
		return nil, diag.Errorf(diag.Internal, prog.Tok, "cannot create QBE input: %v", err)
	}
	defer os.Remove(in.Name())
	_, err = in.WriteString(il)
	if cerr := in.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, diag.Errorf(diag.Internal, prog.Tok, "cannot write QBE input: %v", err)
	}

	var out, stderr bytes.Buffer
	cmd := exec.Command(qbe, "-t", cfg.QbeTarget, in.Name())
	cmd.Stdout, cmd.Stderr = &out, &stderr
	if err := cmd.Run(); err != nil {
		return nil, diag.Errorf(diag.Internal, prog.Tok, "qbe rejected the generated IL for target %s: %v: %s", cfg.QbeTarget, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return &out, nil
}
