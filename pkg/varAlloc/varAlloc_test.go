package varAlloc

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/splc/pkg/ast"
	"github.com/xplshn/splc/pkg/config"
	"github.com/xplshn/splc/pkg/lexer"
	"github.com/xplshn/splc/pkg/parser"
	"github.com/xplshn/splc/pkg/table"
	"github.com/xplshn/splc/pkg/tableBuilder"
	"github.com/xplshn/splc/pkg/typeChecker"
)

func allocate(t *testing.T, cfg *config.Config, src string) (*ast.Node, *table.SymbolTable) {
	t.Helper()
	ctx := context.Background()
	toks, err := lexer.NewLexer([]rune(src), 0, cfg, nil).Tokenize()
	require.NoError(t, err)
	prog, err := parser.NewParser(toks).Parse()
	require.NoError(t, err)
	global, err := tableBuilder.Build(ctx, cfg, nil, prog)
	require.NoError(t, err)
	require.NoError(t, typeChecker.Check(ctx, cfg, nil, prog, global))
	require.NoError(t, Allocate(ctx, cfg, prog, global))
	return prog, global
}

const layoutProgram = `
	type arr = array [10] of int;
	var g: arr;
	proc callee(a: int, b: int, c: int) { }
	proc p(x: int, y: int) { var l: arr; callee(1, 2, 3); }
	proc main() { p(1, 2); }
`

func TestStackLayout(t *testing.T) {
	_, global := allocate(t, config.NewConfig(), layoutProgram)

	p, ok := global.Procedure("p")
	require.True(t, ok)
	l := &p.StackLayout
	assert.Equal(t, 8, l.ArgumentAreaSize.MustGet())
	assert.Equal(t, 40, l.LocalVarAreaSize.MustGet())
	assert.True(t, l.OutgoingAreaSize.MakesCalls())
	assert.Equal(t, 12, l.OutgoingAreaSize.Size())
	assert.Equal(t, 60, l.FrameSize())
	assert.Equal(t, 16, l.OldFramePointerOffset())
	assert.Equal(t, -48, l.OldReturnAddressOffset())
	assert.False(t, l.IsOptimizedLeafProcedure)

	offsets := map[string]int{}
	for _, name := range p.LocalTable.Names() {
		v, _ := p.LocalTable.Variable(name)
		offsets[name] = v.Offset.MustGet()
	}
	assert.Equal(t, map[string]int{"x": 0, "y": 4, "l": -40}, offsets)
	assert.Equal(t, 0, p.ParameterTypes[0].Offset.MustGet())
	assert.Equal(t, 4, p.ParameterTypes[1].Offset.MustGet())

	callee, _ := global.Procedure("callee")
	assert.False(t, callee.StackLayout.OutgoingAreaSize.MakesCalls())
	assert.Equal(t, 4+0, callee.StackLayout.FrameSize())

	main, _ := global.Procedure("main")
	assert.Equal(t, 8, main.StackLayout.OutgoingAreaSize.Size())
	assert.Equal(t, 8+4+4, main.StackLayout.FrameSize())

	g, _ := global.Variable("g")
	assert.Equal(t, 0, g.Offset.MustGet())
}

func TestOutgoingArea(t *testing.T) {
	testDatas := []struct {
		name     string
		body     string
		calls    bool
		outgoing int
	}{
		{"no calls", "i := 1;", false, 0},
		{"call without arguments", "none();", true, 0},
		{"largest call wins", "one(1); three(1, 2, 3); one(2);", true, 12},
		{"reference parameter is a word", "refArr(a);", true, 4},
		{"calls in branches", "if (i < 1) { one(1); } else { while (i < 2) two(1, 2); }", true, 8},
		{"runtime library", "drawLine(1, 2, 3, 4, 5);", true, 20},
	}
	for _, testData := range testDatas {
		src := `
			type big = array [100] of int;
			proc none() { }
			proc one(a: int) { }
			proc two(a: int, b: int) { }
			proc three(a: int, b: int, c: int) { }
			proc refArr(ref a: big) { }
			proc main() { var i: int; var a: big; ` + testData.body + ` }
		`
		_, global := allocate(t, config.NewConfig(), src)
		main, _ := global.Procedure("main")
		out := main.StackLayout.OutgoingAreaSize
		require.True(t, out.Known(), testData.name)
		assert.Equal(t, testData.calls, out.MakesCalls(), testData.name)
		assert.Equal(t, testData.outgoing, out.Size(), testData.name)
	}
}

func TestArrayByReferenceTakesOneWord(t *testing.T) {
	_, global := allocate(t, config.NewConfig(), "type big = array [100] of int; proc f(ref a: big, n: int) { } proc main() { }")
	f, _ := global.Procedure("f")
	assert.Equal(t, 8, f.StackLayout.ArgumentAreaSize.MustGet())
	n, _ := f.LocalTable.Variable("n")
	assert.Equal(t, 4, n.Offset.MustGet())
}

func TestLeafProcedures(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatLeafProc, true)
	_, global := allocate(t, cfg, layoutProgram)

	callee, _ := global.Procedure("callee")
	assert.True(t, callee.StackLayout.IsOptimizedLeafProcedure)
	assert.Equal(t, 0, callee.StackLayout.FrameSize())

	p, _ := global.Procedure("p")
	assert.False(t, p.StackLayout.IsOptimizedLeafProcedure)

	printi, _ := global.Procedure("printi")
	assert.False(t, printi.StackLayout.IsOptimizedLeafProcedure)
}

func TestAllocateIsIdempotent(t *testing.T) {
	cfg := config.NewConfig()
	prog, global := allocate(t, cfg, layoutProgram)

	var first strings.Builder
	table.FprintLayouts(&first, global)
	require.NoError(t, Allocate(context.Background(), cfg, prog, global))
	var second strings.Builder
	table.FprintLayouts(&second, global)

	if diff := cmp.Diff(first.String(), second.String()); diff != "" {
		t.Errorf("layouts changed on the second run (-first +second):\n%s", diff)
	}
}

func TestSecondPassKeepsKnownLayouts(t *testing.T) {
	cfg := config.NewConfig()
	prog, global := allocate(t, cfg, layoutProgram)
	a := NewAllocator(cfg, global)

	p, _ := global.Procedure("p")
	p.StackLayout.OutgoingAreaSize = table.Calls(100)
	require.NoError(t, a.ComputeOutgoing(p, ast.Procedures(prog)[1]))
	assert.Equal(t, 100, p.StackLayout.OutgoingAreaSize.Size())

	a.AllocateLocals(p, ast.Procedures(prog)[1])
	assert.False(t, p.StackLayout.OutgoingAreaSize.Known())
	require.NoError(t, a.ComputeOutgoing(p, ast.Procedures(prog)[1]))
	assert.Equal(t, 12, p.StackLayout.OutgoingAreaSize.Size())
}
