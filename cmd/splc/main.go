package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/xplshn/splc/pkg/ast"
	"github.com/xplshn/splc/pkg/cli"
	"github.com/xplshn/splc/pkg/compiler"
	"github.com/xplshn/splc/pkg/config"
	"github.com/xplshn/splc/pkg/diag"
	"github.com/xplshn/splc/pkg/table"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	app := cli.NewApp("splc")
	app.Synopsis = "[options] <input.spl>"
	app.Description = "A compiler for SPL, the simple procedural language, targeting the ECO32 processor and QBE."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/splc>"
	app.Stdout, app.Stderr = stdout, stderr

	var (
		outFile   string
		target    string
		qbeTarget string
		absyn     bool
		tables    bool
		vars      bool
		verbose   bool
		wall      bool
		wnoall    bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "out.s", "Place the output into <file>, '-' for stdout.", "file")
	fs.String(&target, "target", "t", string(config.TargetECO32), "Set the backend: eco32 or qbe.", "backend")
	fs.String(&qbeTarget, "qbe-target", "", "", "Set the QBE target ABI, defaults to the host.", "target")
	fs.Bool(&absyn, "absyn", "", false, "Print the abstract syntax tree and stop.")
	fs.Bool(&tables, "tables", "", false, "Print the symbol tables after semantic analysis and stop.")
	fs.Bool(&vars, "vars", "", false, "Print the stack layouts after variable allocation and stop.")
	fs.Bool(&verbose, "verbose", "v", false, "Log every compiler phase.")
	fs.Bool(&wall, "Wall", "", false, "Enable all warnings.")
	fs.Bool(&wnoall, "Wno-all", "", false, "Disable all warnings.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	rep := diag.NewReporter(stderr)
	var compileErr error

	app.Action = func(inputFiles []string) error {
		if len(inputFiles) != 1 {
			return errors.New("expected exactly one input file, got %d", len(inputFiles))
		}

		cfg.ApplyFlagGroups(warningFlags, featureFlags)
		for i := config.Warning(0); i < config.WarnCount; i++ {
			switch {
			case wnoall:
				cfg.SetWarning(i, false)
			case wall:
				cfg.SetWarning(i, true)
			}
		}
		if err := cfg.SetBackend(target); err != nil {
			return err
		}
		cfg.SetTarget(runtime.GOOS, runtime.GOARCH, qbeTarget, verbose && cfg.Target == config.TargetQBE)

		ctx := context.Background()
		if verbose {
			ctx = tlog.ContextWithSpan(ctx, tlog.Root())
		}

		stop := compiler.PhaseCodegen
		switch {
		case absyn:
			stop = compiler.PhaseParse
		case tables:
			stop = compiler.PhaseCheck
		case vars:
			stop = compiler.PhaseVars
		}

		res, err := compiler.CompileFile(ctx, cfg, rep, inputFiles[0], stop)
		if err != nil {
			compileErr = err
			return err
		}

		var out bytes.Buffer
		switch stop {
		case compiler.PhaseParse:
			ast.Fprint(&out, res.Program)
		case compiler.PhaseCheck:
			table.Fprint(&out, res.Global, false)
		case compiler.PhaseVars:
			table.FprintLayouts(&out, res.Global)
		default:
			out.Write(res.Asm)
		}

		if stop != compiler.PhaseCodegen || outFile == "-" {
			_, err = stdout.Write(out.Bytes())
			return err
		}
		if err := os.WriteFile(outFile, out.Bytes(), 0o644); err != nil {
			return errors.Wrap(err, "write %v", outFile)
		}
		if verbose {
			fmt.Fprintf(stderr, "splc: info: wrote '%s' (%d warnings)\n", outFile, rep.Warnings())
		}
		return nil
	}

	err := app.Run(args)
	switch {
	case err == nil:
		return 0
	case compileErr != nil:
		rep.Error(compileErr)
		return diag.ExitCode(compileErr)
	default:
		if _, usage := err.(cli.ErrUsage); !usage {
			fmt.Fprintf(stderr, "splc: error: %v\n", err)
		}
		return 1
	}
}
