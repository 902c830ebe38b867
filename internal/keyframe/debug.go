package keyframe

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zsiec/gre2g/internal/errors"
	"github.com/zsiec/gre2g/internal/frame"
	"github.com/zsiec/gre2g/internal/logger"
)

// KeyFramesDir is the debug subdirectory holding flagged key frames.
const KeyFramesDir = "key_frames"

// DebugWriter stores diagnostic images for a detector. Failures are logged
// and never reach the detection result.
type DebugWriter struct {
	dir   string
	level int
	log   logger.Logger
}

// NewDebugWriter prepares dir for debug output. A nil writer, an empty dir
// or level 0 disables every write.
func NewDebugWriter(dir string, level int, log logger.Logger) (*DebugWriter, error) {
	if level < DebugNone || level > DebugAll {
		return nil, errors.NewValidationErrorf("debug_level must be in %d..%d, got %d", DebugNone, DebugAll, level)
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	d := &DebugWriter{dir: dir, level: level, log: log}
	if !d.Enabled(DebugMain) {
		return d, nil
	}
	if err := os.MkdirAll(filepath.Join(dir, KeyFramesDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create debug directory: %w", err)
	}
	return d, nil
}

// Enabled reports whether output at the given level is written.
func (d *DebugWriter) Enabled(level int) bool {
	return d != nil && d.dir != "" && d.level >= level
}

// KeyFrame saves a flagged frame under key_frames/.
func (d *DebugWriter) KeyFrame(f frame.Frame, name string) {
	if !d.Enabled(DebugMain) {
		return
	}
	d.save(f, filepath.Join(d.dir, KeyFramesDir, name))
}

// Intermediate overwrites a named diagnostic image in the debug root.
func (d *DebugWriter) Intermediate(level int, f frame.Frame, name string) {
	if !d.Enabled(level) {
		return
	}
	d.save(f, filepath.Join(d.dir, name))
}

func (d *DebugWriter) save(f frame.Frame, path string) {
	if err := frame.Save(f, path); err != nil {
		d.log.WithError(err).WithField("path", path).Warn("Failed to write debug image")
	}
}

// toBytes clamps float values into a byte frame.
func toBytes(res frame.Resolution, values []float64) frame.Frame {
	f := frame.New(res)
	for i, v := range values {
		switch {
		case v <= 0:
			f.Data[i] = 0
		case v >= 255:
			f.Data[i] = 255
		default:
			f.Data[i] = uint8(v + 0.5)
		}
	}
	return f
}
