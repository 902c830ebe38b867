// Package keyframe implements streaming key-frame detectors. A detector
// consumes the frames of one video in order and flags the frames that mark
// a significant visual change from recent history.
//
// Usage per video:
//
//	det.SetVideoProperties(res)
//	for each frame { det.Detect(f) }
//	det.Reset()
package keyframe

import (
	"github.com/zsiec/gre2g/internal/errors"
	"github.com/zsiec/gre2g/internal/frame"
)

// Algorithm names accepted by New.
const (
	AlgorithmFramesDiff  = "frames_diff"
	AlgorithmFramesRatio = "frames_ratio"
	AlgorithmPixelsDist  = "pixels_dist"
)

// Parameter limits shared by the detectors.
const (
	eps = 1e-6

	MaxTemporalLag = 100
	MaxKFDistance  = 5000
	MaxDivergence  = 1e10
)

// Debug levels.
const (
	DebugNone = 0
	DebugMain = 1
	DebugAll  = 2
)

// Detector is implemented by every key-frame detection algorithm.
// Detectors hold per-stream state and are not safe for concurrent use.
type Detector interface {
	// Name returns the algorithm name.
	Name() string
	// SetVideoProperties must be called once per stream before the first frame.
	SetVideoProperties(res frame.Resolution) error
	// Detect consumes the next frame and reports whether it is a key frame.
	// It panics when the frame does not match the declared resolution.
	Detect(f frame.Frame) bool
	// Reset returns the detector to its freshly constructed state.
	Reset()
}

// hysteresis enforces a minimum frame distance between key frames. It
// starts saturated so the very first frame can be a key frame.
type hysteresis struct {
	min  int
	dist int
}

func newHysteresis(minDist int) hysteresis {
	return hysteresis{min: minDist, dist: minDist}
}

// step advances by one frame and reports whether detection may run.
func (h *hysteresis) step() bool {
	h.dist++
	return h.dist >= h.min
}

func (h *hysteresis) hit() { h.dist = 0 }

func (h *hysteresis) reset() { h.dist = h.min }

func validateProcessingRes(width, height int) error {
	if width < 1 || width > frame.MaxWidth {
		return errors.NewValidationErrorf("processing_res_width must be in 1..%d, got %d", frame.MaxWidth, width)
	}
	if height < 1 || height > frame.MaxHeight {
		return errors.NewValidationErrorf("processing_res_height must be in 1..%d, got %d", frame.MaxHeight, height)
	}
	return nil
}

func validateKFDistance(d int) error {
	if d < 0 || d > MaxKFDistance {
		return errors.NewValidationErrorf("min_kf_distance must be in 0..%d, got %d", MaxKFDistance, d)
	}
	return nil
}

// checkFrame panics on a frame that does not match the stream resolution.
func checkFrame(f frame.Frame, want frame.Resolution) {
	f.MustValidate()
	if f.Res != want {
		panic("keyframe: frame " + f.Res.String() + " does not match stream " + want.String())
	}
}

// streamRes validates the resolution passed to SetVideoProperties.
func streamRes(res frame.Resolution) (frame.Resolution, error) {
	if err := res.Validate(); err != nil {
		return frame.Resolution{}, err
	}
	if !res.KnownChannels() {
		return frame.Resolution{}, errors.NewValidationError("stream channel count must be known")
	}
	return res, nil
}
