package health

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// FFmpegChecker verifies the ffmpeg and ffprobe binaries used to decode
// recordings. A missing ffprobe only degrades the service since decoding
// works without probing.
type FFmpegChecker struct {
	ffmpegPath  string
	ffprobePath string
	timeout     time.Duration

	mu      sync.Mutex
	details map[string]interface{}
}

// NewFFmpegChecker creates a checker for the given binaries. Empty paths
// default to the names looked up in PATH.
func NewFFmpegChecker(ffmpegPath, ffprobePath string) *FFmpegChecker {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegChecker{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		timeout:     5 * time.Second,
	}
}

func (f *FFmpegChecker) Name() string {
	return "ffmpeg"
}

func (f *FFmpegChecker) Check(ctx context.Context) error {
	details := map[string]interface{}{}
	defer func() {
		f.mu.Lock()
		f.details = details
		f.mu.Unlock()
	}()

	ffmpegVersion, err := f.version(ctx, f.ffmpegPath, "ffmpeg version")
	if err != nil {
		return fmt.Errorf("ffmpeg binary check failed: %w", err)
	}
	details["ffmpeg_version"] = ffmpegVersion

	if err := f.checkPixelFormat(ctx); err != nil {
		return err
	}

	ffprobeVersion, err := f.version(ctx, f.ffprobePath, "ffprobe version")
	if err != nil {
		return Degraded(fmt.Errorf("ffprobe binary check failed: %w", err))
	}
	details["ffprobe_version"] = ffprobeVersion
	return nil
}

// Details returns what the last Check found out about the installation.
func (f *FFmpegChecker) Details() map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]interface{}, len(f.details))
	for k, v := range f.details {
		out[k] = v
	}
	return out
}

func (f *FFmpegChecker) version(ctx context.Context, binary, prefix string) (string, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%s not executable: %w", binary, err)
	}

	output, err := f.output(ctx, path, "-version")
	if err != nil {
		return "", fmt.Errorf("%s -version failed: %w", binary, err)
	}
	line, _, _ := strings.Cut(output, "\n")
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, prefix) {
		return "", fmt.Errorf("unexpected %s version output", binary)
	}
	return line, nil
}

// checkPixelFormat makes sure ffmpeg can emit the raw frames the decoder reads.
func (f *FFmpegChecker) checkPixelFormat(ctx context.Context) error {
	output, err := f.output(ctx, f.ffmpegPath, "-hide_banner", "-pix_fmts")
	if err != nil {
		return fmt.Errorf("failed to list pixel formats: %w", err)
	}
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "bgr24" {
			return nil
		}
	}
	return fmt.Errorf("ffmpeg does not support the bgr24 pixel format")
}

func (f *FFmpegChecker) output(ctx context.Context, binary string, args ...string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	out, err := exec.CommandContext(cmdCtx, binary, args...).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
