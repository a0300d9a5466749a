package ffmpeg

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleShowinfo = `
[Parsed_showinfo_1 @ 0x55e] n:   0 pts:  15015 pts_time:15.015   duration_time:0.04 fmt:yuv420p
[Parsed_showinfo_1 @ 0x55e] n:   1 pts:  22522 pts_time:22.522   duration_time:0.04 fmt:yuv420p
[Parsed_showinfo_1 @ 0x55e] n:   2 pts:  29029 pts_time:29.029   duration_time:0.04 fmt:yuv420p
frame=    3 fps=0.0 q=2.0 Lsize=N/A
`

func TestParseShowinfoTimestamps(t *testing.T) {
	got := parseShowinfoTimestamps(sampleShowinfo)
	assert.Equal(t, []float64{15.015, 22.522, 29.029}, got)
}

func TestParseShowinfoTimestampsEmpty(t *testing.T) {
	assert.Empty(t, parseShowinfoTimestamps("frame=    0 fps=0.0\n"))
}

func touchFrames(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		path := filepath.Join(dir, filenameForIndex(i))
		require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o644))
	}
}

func filenameForIndex(i int) string {
	return fmt.Sprintf("scene-%03d.jpeg", i)
}

func TestBuildSceneFrames(t *testing.T) {
	dir := t.TempDir()
	touchFrames(t, dir, 3)

	frames, err := buildSceneFrames([]float64{1.5, 3.0, 7.25}, dir)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	assert.Equal(t, 1, frames[0].Index)
	assert.Equal(t, 1.5, frames[0].StartSec)
	require.NotNil(t, frames[0].EndSec)
	assert.Equal(t, 3.0, *frames[0].EndSec)

	assert.Equal(t, 3, frames[2].Index)
	assert.Equal(t, 7.25, frames[2].StartSec)
	assert.Nil(t, frames[2].EndSec, "final frame has no end timestamp")

	// strictly increasing, non-overlapping
	for i := 1; i < len(frames); i++ {
		assert.Greater(t, frames[i].StartSec, frames[i-1].StartSec)
		assert.Equal(t, frames[i].StartSec, *frames[i-1].EndSec)
	}
}

func TestBuildSceneFramesRejectsNonMonotonic(t *testing.T) {
	dir := t.TempDir()
	touchFrames(t, dir, 3)

	_, err := buildSceneFrames([]float64{1.0, 1.0, 2.0}, dir)
	assert.Error(t, err)

	_, err = buildSceneFrames([]float64{2.0, 1.0}, dir)
	assert.Error(t, err)
}

func TestBuildSceneFramesMissingFile(t *testing.T) {
	dir := t.TempDir()
	touchFrames(t, dir, 1)

	_, err := buildSceneFrames([]float64{1.0, 2.0}, dir)
	assert.Error(t, err)
}
