// Package compiler runs the phases of splc in order: lexing, parsing,
// symbol table construction, semantic analysis, variable allocation and
// code generation.
package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/xplshn/splc/pkg/ast"
	"github.com/xplshn/splc/pkg/codegen"
	"github.com/xplshn/splc/pkg/config"
	"github.com/xplshn/splc/pkg/diag"
	"github.com/xplshn/splc/pkg/ident"
	"github.com/xplshn/splc/pkg/lexer"
	"github.com/xplshn/splc/pkg/parser"
	"github.com/xplshn/splc/pkg/table"
	"github.com/xplshn/splc/pkg/tableBuilder"
	"github.com/xplshn/splc/pkg/typeChecker"
	"github.com/xplshn/splc/pkg/varAlloc"
)

// Phase names the last phase to run.
type Phase int

const (
	PhaseParse Phase = iota
	PhaseCheck
	PhaseVars
	PhaseCodegen
)

// Result holds what the phases that ran produced.
type Result struct {
	Program *ast.Node
	Global  *table.SymbolTable
	Asm     []byte
	Names   int
}

// CompileFile reads name and compiles it with Compile.
func CompileFile(ctx context.Context, cfg *config.Config, rep *diag.Reporter, name string, stop Phase) (*Result, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}
	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)
	return Compile(ctx, cfg, rep, name, text, stop)
}

// Compile runs every phase up to and including stop. The source is
// registered with rep so diagnostics can show the offending line. A
// compile error stays reachable through diag.AsError.
func Compile(ctx context.Context, cfg *config.Config, rep *diag.Reporter, name string, text []byte, stop Phase) (res *Result, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile", "name", name, "target", cfg.Target)
	defer func() {
		if e, ok := diag.AsError(err); ok {
			tr.Printw("compile error", "kind", e.Kind, "from", e.From)
		}
		tr.Finish("err", &err)
	}()

	source := []rune(string(text))
	fileIndex := 0
	if rep != nil {
		fileIndex = len(rep.Files)
		rep.Files = append(rep.Files, diag.SourceFile{Name: name, Content: source})
	}

	res = &Result{}
	names := ident.NewPool()
	tokens, err := lexer.NewLexer(source, fileIndex, cfg, names).Tokenize()
	if err != nil {
		return nil, errors.Wrap(err, "lex")
	}

	res.Program, err = parser.NewParser(tokens).Parse()
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}
	res.Names = names.Len()
	tr.Printw("parsed", "tokens", len(tokens), "names", res.Names)

	if cfg.IsFeatureEnabled(config.FeatFoldNegation) {
		res.Program = ast.FoldNegation(res.Program)
	}
	if stop == PhaseParse {
		return res, nil
	}

	res.Global, err = tableBuilder.Build(ctx, cfg, rep, res.Program)
	if err != nil {
		return nil, errors.Wrap(err, "build tables")
	}

	if err = typeChecker.Check(ctx, cfg, rep, res.Program, res.Global); err != nil {
		return nil, errors.Wrap(err, "check")
	}
	if stop == PhaseCheck {
		return res, nil
	}

	if err = varAlloc.Allocate(ctx, cfg, res.Program, res.Global); err != nil {
		return nil, errors.Wrap(err, "allocate")
	}
	if stop == PhaseVars {
		return res, nil
	}

	buf, err := codegen.ForTarget(cfg).Generate(res.Program, res.Global, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "generate %v", cfg.Target)
	}
	res.Asm = buf.Bytes()
	tr.Printw("generated", "bytes", len(res.Asm))
	return res, nil
}
