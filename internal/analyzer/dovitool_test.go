package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeFFmpeg = `#!/bin/sh
printf 'annexb'
`

const endlessFFmpeg = `#!/bin/sh
exec yes annexb
`

const fakeDoviTool = `#!/bin/sh
case "$1" in
extract-rpu)
	cat > /dev/null
	out=""
	while [ $# -gt 0 ]; do
		if [ "$1" = "-o" ]; then out="$2"; fi
		shift
	done
	printf 'rpu' > "$out"
	;;
info)
	printf 'Summary:\n  Profile: 7 (FEL)\n  DM version: 2 (CM v4.0)\n'
	;;
esac
`

const slowSummaryDoviTool = `#!/bin/sh
case "$1" in
extract-rpu)
	cat > /dev/null
	while [ $# -gt 0 ]; do
		if [ "$1" = "-o" ]; then printf 'rpu' > "$2"; fi
		shift
	done
	;;
info)
	exec sleep 5
	;;
esac
`

const failingDoviTool = `#!/bin/sh
echo "no dovi rpu found" >&2
exit 1
`

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func newTestTool(t *testing.T, doviScript string, cfg Config) (*DoviTool, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	dir := t.TempDir()
	cfg.FFmpegPath = writeScript(t, dir, "ffmpeg", fakeFFmpeg)
	cfg.DoviToolPath = writeScript(t, dir, "dovi_tool", doviScript)
	cfg.WorkDir = dir

	media := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(media, []byte("not really a movie"), 0o644))

	logger := zerolog.Nop()
	return NewDoviTool(cfg, &logger), media
}

func TestDoviTool_ExtractProfileSummary(t *testing.T) {
	tool, media := newTestTool(t, fakeDoviTool, DefaultConfig())
	require.True(t, tool.IsAvailable())

	summary, err := tool.ExtractProfileSummary(context.Background(), media)
	require.NoError(t, err)
	assert.Contains(t, summary, "Profile: 7 (FEL)")
	assert.Contains(t, summary, "CM v4.0")
}

func TestDoviTool_PathMapping(t *testing.T) {
	tool, media := newTestTool(t, fakeDoviTool, DefaultConfig())
	tool.config.PathMappings = []PathMapping{{From: "/remote/movies", To: filepath.Dir(media)}}

	_, err := tool.ExtractProfileSummary(context.Background(), "/remote/movies/"+filepath.Base(media))
	require.NoError(t, err)
}

func TestDoviTool_SummaryTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SummaryTimeout = 100 * time.Millisecond
	tool, media := newTestTool(t, slowSummaryDoviTool, cfg)

	start := time.Now()
	_, err := tool.ExtractProfileSummary(context.Background(), media)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestDoviTool_ExtractionFailure(t *testing.T) {
	tool, media := newTestTool(t, failingDoviTool, DefaultConfig())

	_, err := tool.ExtractProfileSummary(context.Background(), media)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	assert.Contains(t, err.Error(), "no dovi rpu found")
}

func TestDoviTool_ExtractionFailureStopsFFmpeg(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExtractTimeout = 30 * time.Second
	tool, media := newTestTool(t, failingDoviTool, cfg)
	tool.ffmpeg = writeScript(t, t.TempDir(), "ffmpeg", endlessFFmpeg)

	start := time.Now()
	_, err := tool.ExtractProfileSummary(context.Background(), media)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	assert.Contains(t, err.Error(), "no dovi rpu found")
	assert.Less(t, time.Since(start), 5*time.Second, "ffmpeg must not run until the extract timeout")
}

func TestDoviTool_MissingFile(t *testing.T) {
	tool, _ := newTestTool(t, fakeDoviTool, DefaultConfig())

	_, err := tool.ExtractProfileSummary(context.Background(), "/does/not/exist.mkv")
	assert.ErrorIs(t, err, ErrAnalysisFailed)
}

func TestDoviTool_Unavailable(t *testing.T) {
	logger := zerolog.Nop()
	tool := &DoviTool{config: DefaultConfig(), logger: &logger}

	_, err := tool.ExtractProfileSummary(context.Background(), "/movies/a.mkv")
	assert.ErrorIs(t, err, ErrAnalysisFailed)
}

func TestMapPath(t *testing.T) {
	mappings := []PathMapping{
		{From: "/data/movies", To: "/mnt/media/movies"},
		{From: "", To: "/ignored"},
	}
	assert.Equal(t, "/mnt/media/movies/Dune/Dune.mkv", MapPath("/data/movies/Dune/Dune.mkv", mappings))
	assert.Equal(t, "/other/Dune.mkv", MapPath("/other/Dune.mkv", mappings))
	assert.Equal(t, "/x", MapPath("/x", nil))
	assert.Equal(t, "/data/movies2/Heat.mkv", MapPath("/data/movies2/Heat.mkv", mappings))
}
