package decoder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/zsiec/gre2g/internal/frame"
	"github.com/zsiec/gre2g/internal/logger"
)

// FFmpegOptions locates the ffmpeg binaries. Empty paths are looked up in PATH.
type FFmpegOptions struct {
	FFmpegPath  string
	FFprobePath string
}

func (o FFmpegOptions) withDefaults() FFmpegOptions {
	if o.FFmpegPath == "" {
		o.FFmpegPath = "ffmpeg"
	}
	if o.FFprobePath == "" {
		o.FFprobePath = "ffprobe"
	}
	return o
}

// FFmpegSource streams raw bgr24 frames from an ffmpeg subprocess.
type FFmpegSource struct {
	probe  Probe
	res    frame.Resolution
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdout io.ReadCloser
	reader *bufio.Reader
	stderr *tailBuffer
	log    logger.Logger

	frames    int
	eof       bool
	closeOnce sync.Once
	closeErr  error
}

// OpenFFmpeg probes path and starts decoding it. The process is killed
// when ctx is cancelled or the source is closed.
func OpenFFmpeg(ctx context.Context, opts FFmpegOptions, path string, log logger.Logger) (*FFmpegSource, error) {
	opts = opts.withDefaults()
	if log == nil {
		log = logger.NewNullLogger()
	}

	probe, err := ProbeFile(ctx, opts.FFprobePath, path)
	if err != nil {
		return nil, err
	}
	width, height := probe.DisplaySize()
	res, err := frame.NewResolution(width, height, 3)
	if err != nil {
		return nil, err
	}

	cmdCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cmdCtx, opts.FFmpegPath,
		"-nostdin",
		"-v", "error",
		"-i", path,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"pipe:1",
	)
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open ffmpeg output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"path":       path,
		"codec":      probe.Codec,
		"resolution": res.String(),
		"frame_rate": probe.FrameRate,
		"rotation":   probe.Rotation,
	}).Info("Decoding started")

	return &FFmpegSource{
		probe:  probe,
		res:    res,
		cmd:    cmd,
		cancel: cancel,
		stdout: stdout,
		reader: bufio.NewReaderSize(stdout, res.BufferSize()),
		stderr: stderr,
		log:    log,
	}, nil
}

// Probe returns the stream information found at open.
func (s *FFmpegSource) Probe() Probe { return s.probe }

func (s *FFmpegSource) Resolution() frame.Resolution { return s.res }

func (s *FFmpegSource) Next() (frame.Frame, error) {
	f := frame.New(s.res)
	_, err := io.ReadFull(s.reader, f.Data)
	switch err {
	case nil:
		s.frames++
		return f, nil
	case io.EOF:
		s.eof = true
		if werr := s.Close(); werr != nil {
			return frame.Frame{}, werr
		}
		return frame.Frame{}, io.EOF
	case io.ErrUnexpectedEOF:
		return frame.Frame{}, fmt.Errorf("truncated frame %d from ffmpeg", s.frames)
	default:
		return frame.Frame{}, fmt.Errorf("failed to read frame %d: %w", s.frames, err)
	}
}

// Close stops ffmpeg and waits for it. Closing after the last frame
// reports a non-zero ffmpeg exit.
func (s *FFmpegSource) Close() error {
	s.closeOnce.Do(func() {
		if !s.eof {
			s.cancel()
			_ = s.cmd.Wait()
			s.log.WithField("frames", s.frames).Debug("Decoding stopped early")
			return
		}
		err := s.cmd.Wait()
		s.cancel()
		if err != nil {
			s.closeErr = fmt.Errorf("ffmpeg failed: %w: %s", err, s.stderr.String())
			return
		}
		s.log.WithField("frames", s.frames).Debug("Decoding finished")
	})
	return s.closeErr
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
