// Package analyzer extracts Dolby Vision profile summaries from media files.
package analyzer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tagarr/tagarr/internal/pathutil"
)

// ErrAnalysisFailed wraps every analyzer failure: missing tools, timeouts,
// non-zero exits and empty output.
var ErrAnalysisFailed = errors.New("media analysis failed")

// Analyzer produces a textual Dolby Vision profile summary for a file.
type Analyzer interface {
	ExtractProfileSummary(ctx context.Context, filePath string) (string, error)
}

// PathMapping rewrites a registry path prefix to a local one.
type PathMapping struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

// MapPath applies the first mapping whose From is a directory prefix of path.
func MapPath(path string, mappings []PathMapping) string {
	for _, m := range mappings {
		if rest, ok := pathutil.TrimPrefix(path, m.From); ok {
			return strings.TrimSuffix(pathutil.NormalizePath(m.To), "/") + rest
		}
	}
	return path
}

// Config holds the dovi_tool pipeline settings.
type Config struct {
	FFmpegPath     string        // empty = search PATH
	DoviToolPath   string        // empty = search PATH
	ExtractTimeout time.Duration // ffmpeg | dovi_tool extract-rpu
	SummaryTimeout time.Duration // dovi_tool info --summary
	Frames         int           // video frames demuxed for RPU extraction, 0 = whole stream
	PathMappings   []PathMapping
	WorkDir        string // scratch directory for RPU files, empty = os.TempDir
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ExtractTimeout: 120 * time.Second,
		SummaryTimeout: 30 * time.Second,
		Frames:         1000,
	}
}
