package buffer

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_AllocatesThreeDistinctPaths(t *testing.T) {
	mgr := NewManager(t.TempDir())

	p, err := mgr.Create("sessionid1")
	require.NoError(t, err)

	assert.NotEmpty(t, p.InputPath)
	assert.NotEmpty(t, p.OutputPath)
	assert.NotEmpty(t, p.PipePath)
	assert.NotEqual(t, p.InputPath, p.OutputPath)
	assert.NotEqual(t, p.OutputPath, p.PipePath)

	for _, path := range []string{p.InputPath, p.OutputPath, p.PipePath} {
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		_ = info
	}

	info, err := os.Stat(p.PipePath)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeNamedPipe, "pipe path must be a fifo")
}

func TestCreate_DifferentSessionsGetDifferentPipes(t *testing.T) {
	mgr := NewManager(t.TempDir())

	a, err := mgr.Create("sessiona")
	require.NoError(t, err)
	b, err := mgr.Create("sessionb")
	require.NoError(t, err)

	assert.NotEqual(t, a.PipePath, b.PipePath)
}

func TestCleanup_RemovesAllThreePaths(t *testing.T) {
	mgr := NewManager(t.TempDir())

	p, err := mgr.Create("sessionid2")
	require.NoError(t, err)

	mgr.Cleanup(p)

	for _, path := range []string{p.InputPath, p.OutputPath, p.PipePath} {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), path)
	}
}

func TestUnlink_IgnoresMissingPaths(t *testing.T) {
	err := Unlink(Paths{InputPath: "", OutputPath: "", PipePath: ""})
	assert.NoError(t, err)
}
