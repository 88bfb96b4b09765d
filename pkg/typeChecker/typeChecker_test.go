package typeChecker

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/splc/pkg/ast"
	"github.com/xplshn/splc/pkg/config"
	"github.com/xplshn/splc/pkg/diag"
	"github.com/xplshn/splc/pkg/lexer"
	"github.com/xplshn/splc/pkg/parser"
	"github.com/xplshn/splc/pkg/table"
	"github.com/xplshn/splc/pkg/tableBuilder"
	"github.com/xplshn/splc/pkg/types"
)

func prepare(t *testing.T, cfg *config.Config, rep *diag.Reporter, src string) (*ast.Node, *table.SymbolTable) {
	t.Helper()
	toks, err := lexer.NewLexer([]rune(src), 0, cfg, nil).Tokenize()
	require.NoError(t, err)
	prog, err := parser.NewParser(toks).Parse()
	require.NoError(t, err)
	global, err := tableBuilder.Build(context.Background(), cfg, rep, prog)
	require.NoError(t, err)
	return prog, global
}

func check(t *testing.T, src string) error {
	t.Helper()
	cfg := config.NewConfig()
	prog, global := prepare(t, cfg, nil, src)
	return Check(context.Background(), cfg, nil, prog, global)
}

// exprType checks a comparison of expr with itself and returns the type
// computed for its left operand.
func exprType(t *testing.T, expr string) (types.Type, error) {
	t.Helper()
	cfg := config.NewConfig()
	prog, global := prepare(t, cfg, nil, "proc main() { var b: int; if (("+expr+") = ("+expr+")) ; }")
	tc := NewTypeChecker(cfg, nil, global)
	proc := ast.Procedures(prog)[0]
	cond := proc.Data.(ast.ProcDeclNode).Body[0].Data.(ast.IfNode).Cond
	err := tc.CheckProc(proc)
	return cond.Data.(ast.BinaryOpNode).Left.Typ, err
}

func TestOperatorTyping(t *testing.T) {
	typ, err := exprType(t, "1 + 2")
	require.NoError(t, err)
	assert.Same(t, types.Int, typ)

	typ, err = exprType(t, "-b * 3 / (b - 1)")
	require.NoError(t, err)
	assert.Same(t, types.Int, typ)

	_, err = exprType(t, "(1 < 2)")
	assert.Equal(t, diag.NoSuchOperator, diag.KindOf(err), "comparing booleans")

	for _, op := range []string{"+", "-", "*", "/", "<", "<=", ">", ">=", "=", "#"} {
		_, err := exprType(t, "(1 < 2) "+op+" 1")
		assert.Equal(t, diag.NoSuchOperator, diag.KindOf(err), op)
		_, err = exprType(t, "1 "+op+" (1 = 2)")
		assert.Equal(t, diag.NoSuchOperator, diag.KindOf(err), op)
	}

	_, err = exprType(t, "-(1 < 2)")
	assert.Equal(t, diag.NoSuchOperator, diag.KindOf(err))
}

func TestRelationalIsBoolean(t *testing.T) {
	cfg := config.NewConfig()
	prog, global := prepare(t, cfg, nil, "proc main() { while (1 < 2) ; }")
	require.NoError(t, Check(context.Background(), cfg, nil, prog, global))
	cond := ast.Procedures(prog)[0].Data.(ast.ProcDeclNode).Body[0].Data.(ast.WhileNode).Cond
	assert.Same(t, types.Bool, cond.Typ)
}

func TestCheckErrors(t *testing.T) {
	testDatas := []struct {
		name string
		src  string
		kind diag.Kind
	}{
		{"missing main", "proc p() { }", diag.MainIsMissing},
		{"missing main before body errors", "proc p() { x := 1; }", diag.MainIsMissing},
		{"main is a variable", "var main: int;", diag.MainIsNotAProcedure},
		{"main is a type", "type main = int;", diag.MainIsNotAProcedure},
		{"main with parameters", "proc main(n: int) { }", diag.MainMustNotHaveParameters},
		{"undefined variable", "proc main() { x := 1; }", diag.UndefinedVariable},
		{"not a variable", "proc main() { main := 1; }", diag.NotAVariable},
		{"type used as variable", "type t = int; proc main() { t := 1; }", diag.NotAVariable},
		{"assign bool", "proc main() { var i: int; i := 1 < 2; }", diag.IllegalAssignment},
		{"assign array", "type v = array [2] of int; proc main() { var a: v; var b: v; a := b; }", diag.IllegalAssignmentToArray},
		{"assign array to int", "type v = array [2] of int; proc main() { var a: v; var i: int; i := a; }", diag.IllegalAssignment},
		{"if int", "proc main() { if (1) ; }", diag.IfConditionMustBeBoolean},
		{"while int", "proc main() { while (1 + 1) ; }", diag.WhileConditionMustBeBoolean},
		{"undefined procedure", "proc main() { nope(); }", diag.UndefinedProcedure},
		{"call of variable", "proc main() { var f: int; f(); }", diag.CallOfNonProcedure},
		{"too few", "proc main() { printi(); }", diag.TooFewArguments},
		{"too many", "proc main() { printi(1, 2); }", diag.TooManyArguments},
		{"count before type", "proc main() { printi(1 < 2, 3); }", diag.TooManyArguments},
		{"argument type", "proc main() { printi(1 < 2); }", diag.ArgumentTypeMismatch},
		{"reference literal", "proc main() { readi(4); }", diag.ArgumentMustBeAVariable},
		{"reference expression", "proc main() { var i: int; readi(i + 1); }", diag.ArgumentMustBeAVariable},
		{"type before variable rule", "type v = array [2] of int; proc p(ref a: v) { } proc main() { p(1); }", diag.ArgumentTypeMismatch},
		{"index non array", "proc main() { var i: int; i[0] := 1; }", diag.IndexingNonArray},
		{"index with bool", "type v = array [2] of int; proc main() { var a: v; a[1 < 2] := 1; }", diag.IndexingWithNonInteger},
		{"index checked before base", "proc main() { var i: int; i[1 < 2] := 1; }", diag.IndexingWithNonInteger},
	}
	for _, testData := range testDatas {
		err := check(t, testData.src)
		require.Error(t, err, testData.name)
		assert.Equal(t, testData.kind, diag.KindOf(err), testData.name)
	}
}

func TestWellTypedPrograms(t *testing.T) {
	testDatas := []string{
		"proc main() { }",
		"proc main() { var i: int; readi(i); printi(i * 2); exit(); }",
		"type v = array [3] of int; proc fill(ref a: v) { a[0] := 1; } proc main() { var a: v; fill(a); printi(a[0]); }",
		"type r = array [2] of int; type m = array [2] of r; proc main() { var x: m; x[1][0] := x[0][1]; }",
		"var g: int; proc main() { g := g + 1; }",
		"proc rec(n: int) { if (n > 0) rec(n - 1); } proc main() { rec(3); }",
	}
	for _, src := range testDatas {
		assert.NoError(t, check(t, src), src)
	}
}

func dump(node *ast.Node) string {
	var sb strings.Builder
	ast.Fprint(&sb, node)
	return sb.String()
}

func TestCheckIsIdempotent(t *testing.T) {
	cfg := config.NewConfig()
	prog, global := prepare(t, cfg, nil, `
		type v = array [4] of int;
		proc main() {
			var a: v;
			var i: int;
			i := 0;
			while (i < 4) { a[i] := -i * 2; i := i + 1; }
		}
	`)
	require.NoError(t, Check(context.Background(), cfg, nil, prog, global))
	first := dump(prog)
	require.NoError(t, Check(context.Background(), cfg, nil, prog, global))
	if diff := cmp.Diff(first, dump(prog)); diff != "" {
		t.Errorf("annotations changed on the second run (-first +second):\n%s", diff)
	}
	assert.Contains(t, first, "SimpleVar a : array [4] of int")
	assert.Contains(t, first, "OpExp < : boolean")
}

func TestWarnings(t *testing.T) {
	var out bytes.Buffer
	rep := diag.NewReporter(&out)
	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnUnused, true)
	cfg.SetWarning(config.WarnEmptyBody, true)
	prog, global := prepare(t, cfg, rep, `
		proc p(unusedParam: int) { var used: int; var unusedVar: int; used := 1; }
		proc main() { if (1 < 2) ; while (1 < 2) { } }
	`)
	require.NoError(t, Check(context.Background(), cfg, rep, prog, global))
	assert.Equal(t, 4, rep.Warnings())
	assert.Contains(t, out.String(), "'unusedParam' declared and not used [-Wunused]")
	assert.Contains(t, out.String(), "'unusedVar' declared and not used [-Wunused]")
	assert.NotContains(t, out.String(), "'used'")
	assert.Contains(t, out.String(), "'if' statement has an empty body [-Wempty-body]")
	assert.Contains(t, out.String(), "'while' statement has an empty body [-Wempty-body]")
}
