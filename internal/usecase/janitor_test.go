package usecase

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestJanitorSweepRemovesOnlyStaleFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "user_u1", "job-1")
	require.NoError(t, os.MkdirAll(sub, 0755))

	stale := filepath.Join(sub, "scene-001.jpeg")
	fresh := filepath.Join(sub, "scene-002.jpeg")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0644))

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	j := NewJanitor([]string{dir}, time.Minute, time.Hour, zap.NewNop())
	j.Sweep()

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestJanitorPrunesEmptiedDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "user_u1", "job-1")
	require.NoError(t, os.MkdirAll(sub, 0755))

	stale := filepath.Join(sub, "scene-001.jpeg")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	j := NewJanitor([]string{dir}, time.Minute, time.Hour, zap.NewNop())
	j.Sweep()

	_, err := os.Stat(sub)
	assert.True(t, os.IsNotExist(err))
	// The swept root itself stays.
	_, err = os.Stat(dir)
	assert.NoError(t, err)
}

func TestJanitorToleratesMissingDir(t *testing.T) {
	j := NewJanitor([]string{filepath.Join(t.TempDir(), "nope")}, time.Minute, time.Hour, zap.NewNop())
	j.Sweep()
}
