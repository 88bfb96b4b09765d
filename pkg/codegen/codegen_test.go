package codegen

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/splc/pkg/asm"
	"github.com/xplshn/splc/pkg/ast"
	"github.com/xplshn/splc/pkg/config"
	"github.com/xplshn/splc/pkg/diag"
	"github.com/xplshn/splc/pkg/lexer"
	"github.com/xplshn/splc/pkg/parser"
	"github.com/xplshn/splc/pkg/table"
	"github.com/xplshn/splc/pkg/tableBuilder"
	"github.com/xplshn/splc/pkg/typeChecker"
	"github.com/xplshn/splc/pkg/varAlloc"
)

func prepare(t *testing.T, cfg *config.Config, src string) (*ast.Node, *table.SymbolTable) {
	t.Helper()
	ctx := context.Background()
	toks, err := lexer.NewLexer([]rune(src), 0, cfg, nil).Tokenize()
	require.NoError(t, err)
	prog, err := parser.NewParser(toks).Parse()
	require.NoError(t, err)
	if cfg.IsFeatureEnabled(config.FeatFoldNegation) {
		prog = ast.FoldNegation(prog)
	}
	global, err := tableBuilder.Build(ctx, cfg, nil, prog)
	require.NoError(t, err)
	require.NoError(t, typeChecker.Check(ctx, cfg, nil, prog, global))
	require.NoError(t, varAlloc.Allocate(ctx, cfg, prog, global))
	return prog, global
}

func generate(t *testing.T, cfg *config.Config, src string) (string, error) {
	t.Helper()
	prog, global := prepare(t, cfg, src)
	buf, err := NewECO32Backend().Generate(prog, global, cfg)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func mustGenerate(t *testing.T, cfg *config.Config, src string) string {
	t.Helper()
	out, err := generate(t, cfg, src)
	require.NoError(t, err)
	return out
}

// procText returns the lines from the export of name up to the next blank line.
func procText(t *testing.T, out, name string) string {
	t.Helper()
	start := strings.Index(out, "\t.export\t"+name+"\n")
	require.GreaterOrEqual(t, start, 0, "no procedure %s in:\n%s", name, out)
	rest := out[start:]
	if end := strings.Index(rest, "\n\n"); end >= 0 {
		rest = rest[:end+1]
	}
	return rest
}

func assertText(t *testing.T, want, got string) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("assembler mismatch (-want +got):\n%s", diff)
	}
}

func TestHeader(t *testing.T) {
	out := mustGenerate(t, config.NewConfig(), "proc main() { }")

	var want strings.Builder
	for _, name := range table.PredefinedProcedures() {
		want.WriteString("\t.import\t" + name + "\n")
	}
	want.WriteString("\t.import\t_indexError\n\n\t.code\n\t.align\t4\n")
	assert.True(t, strings.HasPrefix(out, want.String()), out)
}

func TestEmptyMain(t *testing.T) {
	out := mustGenerate(t, config.NewConfig(), "proc main() { }")
	assertText(t, `	.export	main
main:
	sub	$29,$29,4		; allocate frame
	stw	$25,$29,0		; save old frame pointer
	add	$25,$29,4		; setup new frame pointer
	ldw	$25,$29,0		; restore old frame pointer
	add	$29,$29,4		; release frame
	jr	$31		; return
`, procText(t, out, "main"))
	assert.NotContains(t, out, ".data")
}

func TestCallMarshalling(t *testing.T) {
	out := mustGenerate(t, config.NewConfig(), `
		proc f(ref a: int, b: int) { }
		proc main() { var x: int; f(x, x); }
	`)
	assertText(t, `	.export	main
main:
	sub	$29,$29,20		; allocate frame
	stw	$25,$29,12		; save old frame pointer
	add	$25,$29,20		; setup new frame pointer
	stw	$31,$25,-12		; save return register
	add	$8,$25,-4
	stw	$8,$29,0		; store argument #1
	add	$8,$25,-4
	ldw	$8,$8,0
	stw	$8,$29,4		; store argument #2
	jal	f
	ldw	$31,$25,-12		; restore return register
	ldw	$25,$29,12		; restore old frame pointer
	add	$29,$29,20		; release frame
	jr	$31		; return
`, procText(t, out, "main"))
}

func TestReferenceParameterIsDereferenced(t *testing.T) {
	out := mustGenerate(t, config.NewConfig(), `
		proc f(ref a: int, b: int) { a := b; }
		proc main() { var x: int; f(x, 1); }
	`)
	assert.Contains(t, procText(t, out, "f"), `	add	$8,$25,0
	ldw	$8,$8,0
	add	$9,$25,4
	ldw	$9,$9,0
	stw	$9,$8,0
`)
}

func TestWhileLowering(t *testing.T) {
	out := mustGenerate(t, config.NewConfig(), "proc main() { var i: int; while (i < 10) i := i + 1; }")
	assert.Contains(t, procText(t, out, "main"), `L0:
	add	$8,$25,-4
	ldw	$8,$8,0
	add	$9,$0,10
	bge	$8,$9,L1
	add	$8,$25,-4
	add	$9,$25,-4
	ldw	$9,$9,0
	add	$10,$0,1
	add	$9,$9,$10
	stw	$9,$8,0
	j	L0
L1:
`)
}

func TestIfLowering(t *testing.T) {
	testDatas := []struct {
		name string
		stmt string
		want string
	}{
		{
			name: "without else",
			stmt: "if (i # 0) i := 1;",
			want: `	beq	$8,$9,L0
	add	$8,$25,-4
	add	$9,$0,1
	stw	$9,$8,0
L0:
`,
		},
		{
			name: "with else",
			stmt: "if (i >= 0) i := 1; else i := 2;",
			want: `	blt	$8,$9,L0
	add	$8,$25,-4
	add	$9,$0,1
	stw	$9,$8,0
	j	L1
L0:
	add	$8,$25,-4
	add	$9,$0,2
	stw	$9,$8,0
L1:
`,
		},
		{
			name: "empty else is dropped",
			stmt: "if (i > 0) i := 1; else ;",
			want: `	ble	$8,$9,L0
	add	$8,$25,-4
	add	$9,$0,1
	stw	$9,$8,0
L0:
`,
		},
	}
	for _, testData := range testDatas {
		out := mustGenerate(t, config.NewConfig(), "proc main() { var i: int; "+testData.stmt+" }")
		assert.Contains(t, procText(t, out, "main"), testData.want, testData.name)
	}
}

func TestInvertedBranches(t *testing.T) {
	want := map[string]string{"=": "bne", "#": "beq", "<": "bge", "<=": "bgt", ">": "ble", ">=": "blt"}
	for op, branch := range want {
		out := mustGenerate(t, config.NewConfig(), "proc main() { var i: int; if (i "+op+" 1) i := 0; }")
		assert.Contains(t, out, "\t"+branch+"\t$8,$9,L0\n", op)
	}
}

func TestLabelsAreProgramWide(t *testing.T) {
	out := mustGenerate(t, config.NewConfig(), `
		proc p() { var i: int; while (i < 1) i := 1; }
		proc main() { var i: int; while (i < 1) i := 1; }
	`)
	assert.Contains(t, procText(t, out, "p"), "L0:")
	assert.Contains(t, procText(t, out, "main"), "L2:")
	assert.Contains(t, procText(t, out, "main"), "\tj\tL2\nL3:\n")
}

func TestArrayAccess(t *testing.T) {
	src := "type arr = array [10] of int; proc main() { var a: arr; a[2] := 5; }"
	out := mustGenerate(t, config.NewConfig(), src)
	assert.Contains(t, procText(t, out, "main"), `	add	$8,$25,-40
	add	$9,$0,2
	add	$10,$0,10
	bgeu	$9,$10,_indexError
	mul	$9,$9,4
	add	$8,$8,$9
	add	$9,$0,5
	stw	$9,$8,0
`)

	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatBoundsCheck, false)
	out = mustGenerate(t, cfg, src)
	assert.NotContains(t, out, "bgeu")
	assert.Contains(t, out, "\tmul\t$9,$9,4\n")
}

func TestNestedArrayScalesByRowSize(t *testing.T) {
	out := mustGenerate(t, config.NewConfig(), `
		type row = array [3] of int;
		type grid = array [5] of row;
		proc main() { var g: grid; g[1][2] := 0; }
	`)
	main := procText(t, out, "main")
	assert.Contains(t, main, "\tmul\t$9,$9,12\n")
	assert.Contains(t, main, "\tmul\t$9,$9,4\n")
	assert.Contains(t, main, "\tadd\t$10,$0,5\n")
	assert.Contains(t, main, "\tadd\t$10,$0,3\n")
}

func TestGlobals(t *testing.T) {
	out := mustGenerate(t, config.NewConfig(), `
		type arr = array [4] of int;
		var total: int;
		var buf: arr;
		proc main() { total := 1; }
	`)
	assert.Contains(t, procText(t, out, "main"), "\tldhi\t$8,total\n\tor\t$8,$8,total\n")
	assert.True(t, strings.HasSuffix(out, "\n\t.data\n\t.align\t4\ntotal:\n\t.space\t4\nbuf:\n\t.space\t16\n"), out)
}

func TestLeafProcedure(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatLeafProc, true)
	out := mustGenerate(t, cfg, `
		proc leaf(n: int) { var i: int; i := n; }
		proc main() { leaf(1); }
	`)
	assertText(t, `	.export	leaf
leaf:
	sub	$29,$29,4		; allocate frame
	add	$8,$29,0
	add	$9,$29,4
	ldw	$9,$9,0
	stw	$9,$8,0
	add	$29,$29,4		; release frame
	jr	$31		; return
`, procText(t, out, "leaf"))
	assert.Contains(t, procText(t, out, "main"), "save return register")
}

func TestRegisterOverflow(t *testing.T) {
	expr := "1"
	for i := 0; i < 20; i++ {
		expr = "1 + (" + expr + ")"
	}
	_, err := generate(t, config.NewConfig(), "proc main() { var i: int; i := "+expr+"; }")
	require.Error(t, err)
	assert.Equal(t, diag.RegisterOverflow, diag.KindOf(err))
	assert.Equal(t, 140, diag.ExitCode(err))

	// Sixteen registers are enough for an address and fifteen nested operands.
	expr = "1"
	for i := 0; i < 14; i++ {
		expr = "1 + (" + expr + ")"
	}
	_, err = generate(t, config.NewConfig(), "proc main() { var i: int; i := "+expr+"; }")
	assert.NoError(t, err)
}

func TestLoadConst(t *testing.T) {
	testDatas := []struct {
		value int64
		want  string
	}{
		{0, "\tadd\t$8,$0,0\n"},
		{32767, "\tadd\t$8,$0,32767\n"},
		{32768, "\tldhi\t$8,0\n\tor\t$8,$8,32768\n"},
		{-1, "\tsub\t$8,$0,1\n"},
		{-32767, "\tsub\t$8,$0,32767\n"},
		{-32768, "\tldhi\t$8,65535\n\tor\t$8,$8,32768\n"},
		{65536, "\tldhi\t$8,1\n"},
		{0x12345678, "\tldhi\t$8,4660\n\tor\t$8,$8,22136\n"},
	}
	for _, testData := range testDatas {
		out := asm.NewProgram()
		NewGenerator(config.NewConfig(), nil, out).loadConst(asm.FirstFree, testData.value)
		assert.Equal(t, testData.want, out.String(), "value %d", testData.value)
	}
}

func TestLargeFrameUsesScratchRegister(t *testing.T) {
	out := mustGenerate(t, config.NewConfig(), "type big = array [10000] of int; proc main() { var b: big; }")
	assert.Contains(t, procText(t, out, "main"), "\tldhi\t$8,0\n\tor\t$8,$8,40004\n\tsub\t$29,$29,$8\t\t; allocate frame\n")
}

func TestQBEIR(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Target = config.TargetQBE
	prog, global := prepare(t, cfg, "proc main() { var i: int; while (i < 3) i := i + 1; }")

	ir, err := NewQBEBackend().(*qbeBackend).GenerateIR(prog, global, cfg)
	require.NoError(t, err)
	assertText(t, `
export function w $main() {
@start
	%v.i =w alloc4 4
@while.1
	%t.1 =w loadw %v.i
	%t.2 =w csltw %t.1, 3
	jnz %t.2, @body.2, @endwhile.3
@body.2
	%t.3 =w loadw %v.i
	%t.4 =w add %t.3, 1
	storew %t.4, %v.i
	jmp @while.1
@endwhile.3
	ret 0
}
`, ir)
}

func TestQBEIRCalls(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Target = config.TargetQBE
	cfg.WordType = "l"
	prog, global := prepare(t, cfg, `
		type arr = array [2] of int;
		var g: arr;
		proc set(ref a: arr, v: int) { a[1] := v; }
		proc main() { set(g, 7); printi(g[1]); }
	`)

	ir, err := NewQBEBackend().(*qbeBackend).GenerateIR(prog, global, cfg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ir, "data $g = align 4 { z 8 }\n"), ir)
	assert.Contains(t, ir, "\nfunction $set(l %p.a, w %p.v) {\n")
	assert.Contains(t, ir, "\tcall $set(l $g, w 7)\n")
	assert.Contains(t, ir, "\tcall $_indexError()\n\thlt\n")
	assert.Contains(t, ir, "=l extsw")
	assert.Contains(t, ir, "\tcall $printi(w %t.")
}

func TestForTarget(t *testing.T) {
	cfg := config.NewConfig()
	_, ok := ForTarget(cfg).(*eco32Backend)
	assert.True(t, ok)

	require.NoError(t, cfg.SetBackend("qbe"))
	_, ok = ForTarget(cfg).(*qbeBackend)
	assert.True(t, ok)
}

func TestLabelsAreUnique(t *testing.T) {
	out := mustGenerate(t, config.NewConfig(), `
		var L: int;
		proc L0x() { var i: int; while (i < 1) i := 1; }
		proc main() { var i: int; if (i = 0) L0x(); else i := 1; while (i < 2) i := i + 1; }
	`)
	seen := map[string]bool{}
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasSuffix(line, ":") || strings.HasPrefix(line, "\t") {
			continue
		}
		assert.False(t, seen[line], "label %s defined twice", line)
		seen[line] = true
	}
	assert.Len(t, seen, 9)
}
