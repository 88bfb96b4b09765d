package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, src string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "prog.spl")
	require.NoError(t, os.WriteFile(name, []byte(src), 0o644))
	return name
}

func TestRunWritesAssembly(t *testing.T) {
	in := writeSource(t, "proc main() { printi(42); }")
	out := filepath.Join(filepath.Dir(in), "prog.s")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-o", out, in}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Empty(t, stdout.String())

	asm, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(asm), "\t.export\tmain\nmain:\n")
	assert.Contains(t, string(asm), "\tjal\tprinti\n")
}

func TestRunToStdout(t *testing.T) {
	in := writeSource(t, "proc main() { }")
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"--output=-", in}, &stdout, &stderr), stderr.String())
	assert.Contains(t, stdout.String(), "\t.code\n")
}

func TestRunStopsEarly(t *testing.T) {
	in := writeSource(t, "proc main() { var i: int; i := 1; }")
	testDatas := []struct {
		flag string
		want string
	}{
		{"--absyn", "Program\n  ProcDec main\n"},
		{"--tables", "symbol table (proc main, level 1):\n  i            var: int\n"},
		{"--vars", "proc main:\n  i            @ -4\n"},
	}
	for _, testData := range testDatas {
		var stdout, stderr bytes.Buffer
		require.Equal(t, 0, run([]string{testData.flag, in}, &stdout, &stderr), stderr.String())
		assert.Contains(t, stdout.String(), testData.want, testData.flag)
	}
}

func TestRunExitCodes(t *testing.T) {
	testDatas := []struct {
		name string
		args func(t *testing.T) []string
		code int
		msg  string
	}{
		{
			name: "syntax error",
			args: func(t *testing.T) []string { return []string{writeSource(t, "proc main() {")} },
			code: 100,
			msg:  "error:",
		},
		{
			name: "undefined variable",
			args: func(t *testing.T) []string { return []string{writeSource(t, "proc main() {\n  x := 1;\n}")} },
			code: 120,
			msg:  "prog.spl:2:3: error:",
		},
		{
			name: "no input",
			args: func(*testing.T) []string { return nil },
			code: 1,
			msg:  "splc: error: expected exactly one input file, got 0",
		},
		{
			name: "unknown flag",
			args: func(*testing.T) []string { return []string{"--frobnicate"} },
			code: 1,
			msg:  "unknown flag: --frobnicate",
		},
		{
			name: "unknown target",
			args: func(t *testing.T) []string { return []string{"-t", "z80", writeSource(t, "proc main() { }")} },
			code: 1,
			msg:  "unsupported target 'z80'",
		},
		{
			name: "missing file",
			args: func(t *testing.T) []string { return []string{filepath.Join(t.TempDir(), "nope.spl")} },
			code: 150,
			msg:  "error:",
		},
	}
	for _, testData := range testDatas {
		var stdout, stderr bytes.Buffer
		code := run(testData.args(t), &stdout, &stderr)
		assert.Equal(t, testData.code, code, testData.name)
		assert.Contains(t, stderr.String(), testData.msg, testData.name)
	}
}

func TestRunWarningFlags(t *testing.T) {
	in := writeSource(t, "var x: int;\nproc main() { var x: int; var y: int; x := 1; }")
	testDatas := []struct {
		args     []string
		warnings []string
		silent   []string
	}{
		{nil, []string{"[-Wshadow]"}, []string{"[-Wunused]"}},
		{[]string{"-Wno-shadow"}, nil, []string{"[-Wshadow]", "[-Wunused]"}},
		{[]string{"-Wall"}, []string{"[-Wshadow]", "[-Wunused]"}, nil},
		{[]string{"-Wall", "-Wno-all"}, nil, []string{"[-Wshadow]", "[-Wunused]"}},
	}
	for _, testData := range testDatas {
		var stdout, stderr bytes.Buffer
		args := append(append([]string{"-o", "-"}, testData.args...), in)
		require.Equal(t, 0, run(args, &stdout, &stderr), stderr.String())
		for _, w := range testData.warnings {
			assert.Contains(t, stderr.String(), w, testData.args)
		}
		for _, w := range testData.silent {
			assert.NotContains(t, stderr.String(), w, testData.args)
		}
	}
}
