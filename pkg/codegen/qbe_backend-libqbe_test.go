//go:build !windows

package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/splc/pkg/config"
	"github.com/xplshn/splc/pkg/diag"
)

func TestQBEGenerate(t *testing.T) {
	cfg := config.NewConfig()
	require.NoError(t, cfg.SetBackend("qbe"))
	cfg.SetTarget("linux", "amd64", "amd64_sysv", false)
	prog, global := prepare(t, cfg, "proc main() { var i: int; i := 2; printi(i * 21); }")

	out, err := NewQBEBackend().Generate(prog, global, cfg)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "main:")
	assert.Contains(t, out.String(), "printi")
}

func TestQBEGenerateUnknownTarget(t *testing.T) {
	cfg := config.NewConfig()
	require.NoError(t, cfg.SetBackend("qbe"))
	cfg.QbeTarget = "pdp11"
	prog, global := prepare(t, cfg, "proc main() { }")

	_, err := NewQBEBackend().Generate(prog, global, cfg)
	require.Error(t, err)
	e, ok := diag.AsError(err)
	require.True(t, ok)
	assert.Equal(t, diag.Internal, e.Kind)
	assert.Contains(t, e.Msg, "pdp11")
}
