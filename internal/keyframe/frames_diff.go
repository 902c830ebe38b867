package keyframe

import (
	"github.com/zsiec/gre2g/internal/frame"
	"github.com/zsiec/gre2g/internal/metrics"
)

// FramesDiff diffs every frame against its predecessor at full resolution.
// It applies no threshold and reports every frame as a key frame; the
// difference map is only produced for debugging.
type FramesDiff struct {
	debug *DebugWriter

	res  frame.Resolution
	prev frame.Frame
}

// NewFramesDiff creates a FramesDiff detector.
func NewFramesDiff(debug *DebugWriter) *FramesDiff {
	return &FramesDiff{debug: debug}
}

func (d *FramesDiff) Name() string { return AlgorithmFramesDiff }

func (d *FramesDiff) SetVideoProperties(res frame.Resolution) error {
	res, err := streamRes(res)
	if err != nil {
		return err
	}
	d.res = res
	d.prev = frame.New(res)
	return nil
}

func (d *FramesDiff) Detect(f frame.Frame) bool {
	checkFrame(f, d.res)
	metrics.IncFramesProcessed(d.Name())

	if d.debug.Enabled(DebugMain) {
		diff := frame.New(d.res)
		for i, v := range f.Data {
			p := d.prev.Data[i]
			if v > p {
				diff.Data[i] = v - p
			} else {
				diff.Data[i] = p - v
			}
		}
		d.debug.Intermediate(DebugMain, diff, "frames_diff.png")
	}
	copy(d.prev.Data, f.Data)

	metrics.IncKeyFrames(d.Name())
	return true
}

func (d *FramesDiff) Reset() {
	d.res = frame.Resolution{}
	d.prev = frame.Frame{}
}
