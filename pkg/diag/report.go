package diag

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/xplshn/splc/pkg/config"
	"github.com/xplshn/splc/pkg/token"
)

// SourceFile tracks the name and content of a single source file.
type SourceFile struct {
	Name    string
	Content []rune
}

// Reporter prints errors and warnings. A nil *Reporter discards warnings.
type Reporter struct {
	Files []SourceFile
	Out   io.Writer
	Color bool

	warnings int
}

// NewReporter writes to out, colored when out is a terminal.
func NewReporter(out io.Writer, files ...SourceFile) *Reporter {
	r := &Reporter{Files: files, Out: out}
	if f, ok := out.(*os.File); ok {
		r.Color = term.IsTerminal(int(f.Fd()))
	}
	return r
}

func (r *Reporter) paint(code, s string) string {
	if !r.Color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// location converts a token to a file-specific location
func (r *Reporter) location(tok token.Token) (filename string, line, col int) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(r.Files) {
		return "unknown", tok.Line, tok.Column
	}
	return r.Files[tok.FileIndex].Name, tok.Line, tok.Column
}

// printSourceLine prints the source line and a caret indicating the position
func (r *Reporter) printSourceLine(tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(r.Files) || tok.Line == 0 {
		return
	}

	content := r.Files[tok.FileIndex].Content
	lineNum := tok.Line
	lineStart := 0
	for i, c := range content {
		if lineNum <= 1 {
			break
		}
		if c == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(r.Out, "  %s\n", string(content[lineStart:lineEnd]))

	caret := "^"
	if tok.Len > 1 {
		caret += strings.Repeat("~", tok.Len-1)
	}
	col := tok.Column - 1
	if col < 0 {
		col = 0
	}
	fmt.Fprintf(r.Out, "  %s%s\n", strings.Repeat(" ", col), r.paint("32", caret))
}

// Error prints err. Compile errors get their position and source line;
// anything else is printed as an internal error.
func (r *Reporter) Error(err error) {
	e, ok := AsError(err)
	if !ok {
		fmt.Fprintf(r.Out, "splc: %s %v\n", r.paint("31", "error:"), err)
		return
	}
	filename, line, col := r.location(e.Tok)
	fmt.Fprintf(r.Out, "%s:%d:%d: %s %s\n", filename, line, col, r.paint("31", "error:"), e.Msg)
	r.printSourceLine(e.Tok)
}

// Warn prints a warning if the corresponding warning is enabled in cfg.
func (r *Reporter) Warn(cfg *config.Config, wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if r == nil || !cfg.IsWarningEnabled(wt) {
		return
	}
	r.warnings++
	filename, line, col := r.location(tok)
	fmt.Fprintf(r.Out, "%s:%d:%d: %s ", filename, line, col, r.paint("33", "warning:"))
	fmt.Fprintf(r.Out, format, args...)
	fmt.Fprintf(r.Out, " [-W%s]\n", cfg.Warnings[wt].Name)
	r.printSourceLine(tok)
}

// Warnings is the number of warnings printed so far.
func (r *Reporter) Warnings() int {
	if r == nil {
		return 0
	}
	return r.warnings
}
