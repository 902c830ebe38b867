package keyframe

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/zsiec/gre2g/internal/errors"
	"github.com/zsiec/gre2g/internal/frame"
	"github.com/zsiec/gre2g/internal/metrics"
)

// FramesRatioParams configures a FramesRatio detector.
type FramesRatioParams struct {
	Threshold        float64
	ProcessingWidth  int
	ProcessingHeight int
	MaxTemporalLag   int
	MinKFDistance    int
	Aggregation      Aggregation
}

// FramesRatio compares each resized frame to a weighted reference built
// from the last MaxTemporalLag evaluated frames. The per element ratio
// min/max is averaged; one minus that mean is the difference score.
type FramesRatio struct {
	params FramesRatioParams
	kernel []float64
	debug  *DebugWriter

	res    frame.Resolution // processing resolution
	stream frame.Resolution
	window *window
	ref    []float64
	ratio  []float64
	index  int
	hyst   hysteresis
}

// NewFramesRatio validates params and creates the detector.
func NewFramesRatio(params FramesRatioParams, debug *DebugWriter) (*FramesRatio, error) {
	if params.Threshold <= 0 || params.Threshold >= 1 {
		return nil, errors.NewValidationErrorf("threshold must be in (0, 1), got %v", params.Threshold)
	}
	if err := validateProcessingRes(params.ProcessingWidth, params.ProcessingHeight); err != nil {
		return nil, err
	}
	if err := validateKFDistance(params.MinKFDistance); err != nil {
		return nil, err
	}
	kernel, err := Kernel(params.Aggregation, params.MaxTemporalLag)
	if err != nil {
		return nil, err
	}

	return &FramesRatio{
		params: params,
		kernel: kernel,
		debug:  debug,
		res:    frame.Resolution{Width: params.ProcessingWidth, Height: params.ProcessingHeight, Channels: frame.UnknownChannels},
		index:  -1,
		hyst:   newHysteresis(params.MinKFDistance),
	}, nil
}

func (d *FramesRatio) Name() string { return AlgorithmFramesRatio }

func (d *FramesRatio) SetVideoProperties(res frame.Resolution) error {
	res, err := streamRes(res)
	if err != nil {
		return err
	}
	if err := d.res.SetChannels(res.Channels); err != nil {
		return err
	}
	d.stream = res
	size := d.res.BufferSize()
	d.window = newWindow(d.params.MaxTemporalLag, size)
	d.ref = make([]float64, size)
	d.ratio = make([]float64, size)
	return nil
}

func (d *FramesRatio) Detect(f frame.Frame) bool {
	checkFrame(f, d.stream)
	metrics.IncFramesProcessed(d.Name())

	d.index++
	if !d.hyst.step() {
		metrics.IncSkippedFrames(d.Name())
		return false
	}

	resized := frame.Resize(f, d.res.Width, d.res.Height)
	d.window.weighted(d.ref, d.kernel)

	for i, v := range resized.Data {
		cur := float64(v)
		d.ratio[i] = math.Min(cur, d.ref[i]) / (math.Max(cur, d.ref[i]) + eps)
	}
	score := 1 - floats.Sum(d.ratio)/float64(len(d.ratio))
	isKey := score > d.params.Threshold

	if isKey {
		d.hyst.hit()
		metrics.IncKeyFrames(d.Name())
		d.debug.KeyFrame(f, fmt.Sprintf("key_frame_%04d_ratio_%f.png", d.index, score))
	}

	if d.debug.Enabled(DebugAll) {
		d.debug.Intermediate(DebugAll, toBytes(d.res, d.ref), "prev_frames_avg.png")
		diff := make([]float64, len(d.ref))
		for i, v := range resized.Data {
			diff[i] = math.Abs(float64(v) - d.ref[i])
		}
		d.debug.Intermediate(DebugAll, toBytes(d.res, diff), "frames_diff.png")
	}

	d.window.push(resized.Data)
	return isKey
}

func (d *FramesRatio) Reset() {
	d.res.Channels = frame.UnknownChannels
	d.stream = frame.Resolution{}
	d.window = nil
	d.ref = nil
	d.ratio = nil
	d.index = -1
	d.hyst.reset()
}
