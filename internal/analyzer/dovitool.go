package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// findExecutable finds an executable by name or explicit path.
func findExecutable(name, explicitPath string) string {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err == nil {
			return explicitPath
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path
	}

	var commonPaths []string
	switch runtime.GOOS {
	case "darwin":
		commonPaths = []string{
			"/usr/local/bin/" + name,
			"/opt/homebrew/bin/" + name,
		}
	case "linux":
		commonPaths = []string{
			"/usr/bin/" + name,
			"/usr/local/bin/" + name,
			"/opt/dovi_tool/" + name,
		}
	}

	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// DoviTool runs ffmpeg piped into dovi_tool to extract the RPU of the first
// video stream, then summarizes it with dovi_tool info.
type DoviTool struct {
	config   Config
	logger   *zerolog.Logger
	ffmpeg   string
	doviTool string
}

// NewDoviTool creates the analyzer and resolves both executables. Missing
// executables are reported on each call rather than at construction.
func NewDoviTool(config Config, logger *zerolog.Logger) *DoviTool {
	subLogger := logger.With().Str("component", "analyzer").Logger()
	d := &DoviTool{
		config:   config,
		logger:   &subLogger,
		ffmpeg:   findExecutable("ffmpeg", config.FFmpegPath),
		doviTool: findExecutable("dovi_tool", config.DoviToolPath),
	}

	if d.IsAvailable() {
		d.logger.Info().Str("ffmpeg", d.ffmpeg).Str("dovi_tool", d.doviTool).Msg("Using dovi_tool pipeline")
	} else {
		d.logger.Warn().Str("ffmpeg", d.ffmpeg).Str("dovi_tool", d.doviTool).
			Msg("ffmpeg or dovi_tool not found, Dolby Vision analysis will fail safe to no-dv")
	}
	return d
}

// IsAvailable returns true if both tools were found.
func (d *DoviTool) IsAvailable() bool {
	return d.ffmpeg != "" && d.doviTool != ""
}

// ExtractProfileSummary returns the dovi_tool summary for filePath. Any
// failure wraps ErrAnalysisFailed.
func (d *DoviTool) ExtractProfileSummary(ctx context.Context, filePath string) (string, error) {
	if !d.IsAvailable() {
		return "", fmt.Errorf("%w: ffmpeg or dovi_tool not installed", ErrAnalysisFailed)
	}

	local := MapPath(filePath, d.config.PathMappings)
	if _, err := os.Stat(local); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	workDir, err := os.MkdirTemp(d.config.WorkDir, "tagarr-rpu-")
	if err != nil {
		return "", fmt.Errorf("%w: failed to create work dir: %v", ErrAnalysisFailed, err)
	}
	defer os.RemoveAll(workDir)

	rpuPath := filepath.Join(workDir, "RPU.bin")

	d.logger.Debug().Str("path", local).Msg("Extracting Dolby Vision RPU")
	if err := d.extractRPU(ctx, local, rpuPath); err != nil {
		return "", err
	}

	summary, err := d.summarize(ctx, rpuPath)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(summary) == "" {
		return "", fmt.Errorf("%w: empty summary", ErrAnalysisFailed)
	}
	return summary, nil
}

func (d *DoviTool) extractRPU(ctx context.Context, input, rpuPath string) error {
	ctx, cancel := withTimeout(ctx, d.config.ExtractTimeout)
	defer cancel()

	ffArgs := []string{"-v", "error", "-nostdin", "-i", input, "-map", "0:v:0", "-c:v", "copy"}
	if d.config.Frames > 0 {
		ffArgs = append(ffArgs, "-frames:v", strconv.Itoa(d.config.Frames))
	}
	ffArgs = append(ffArgs, "-bsf:v", "hevc_mp4toannexb", "-f", "hevc", "-")

	ff := exec.CommandContext(ctx, d.ffmpeg, ffArgs...)
	dv := exec.CommandContext(ctx, d.doviTool, "extract-rpu", "-", "-o", rpuPath)

	var ffStderr, dvStderr bytes.Buffer
	ff.Stderr = &ffStderr
	dv.Stderr = &dvStderr

	// The parent drops both pipe ends once the children hold them, so ffmpeg
	// sees a broken pipe as soon as dovi_tool exits.
	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	ff.Stdout = pw
	dv.Stdin = pr

	if err := ff.Start(); err != nil {
		pr.Close()
		pw.Close()
		return fmt.Errorf("%w: ffmpeg: %v", ErrAnalysisFailed, err)
	}
	pw.Close()
	if err := dv.Start(); err != nil {
		pr.Close()
		_ = ff.Process.Kill()
		_ = ff.Wait()
		return fmt.Errorf("%w: dovi_tool: %v", ErrAnalysisFailed, err)
	}
	pr.Close()

	dvErr := dv.Wait()
	if dvErr != nil {
		_ = ff.Process.Kill()
	}
	ffErr := ff.Wait()

	if ctx.Err() != nil {
		return fmt.Errorf("%w: extraction timed out after %s", ErrAnalysisFailed, d.config.ExtractTimeout)
	}
	if dvErr != nil {
		return fmt.Errorf("%w: dovi_tool extract-rpu: %v: %s", ErrAnalysisFailed, dvErr, strings.TrimSpace(dvStderr.String()))
	}
	if ffErr != nil {
		// dovi_tool closing the pipe early makes ffmpeg exit non-zero.
		d.logger.Debug().Err(ffErr).Str("stderr", strings.TrimSpace(ffStderr.String())).Msg("ffmpeg exited with error")
	}

	info, err := os.Stat(rpuPath)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("%w: no RPU extracted", ErrAnalysisFailed)
	}
	return nil
}

func (d *DoviTool) summarize(ctx context.Context, rpuPath string) (string, error) {
	ctx, cancel := withTimeout(ctx, d.config.SummaryTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.doviTool, "info", "-i", rpuPath, "--summary")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: summary timed out after %s", ErrAnalysisFailed, d.config.SummaryTimeout)
		}
		return "", fmt.Errorf("%w: dovi_tool info: %v: %s", ErrAnalysisFailed, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
