package keyframe

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/zsiec/gre2g/internal/errors"
	"github.com/zsiec/gre2g/internal/frame"
	"github.com/zsiec/gre2g/internal/metrics"
)

const histBins = 256

// PixelsDistParams configures a PixelsDist detector.
type PixelsDistParams struct {
	Threshold        float64
	ProcessingWidth  int
	ProcessingHeight int
	MinKFDistance    int
}

// PixelsDist compares normalised HSV histograms of consecutive evaluated
// frames with a KL divergence summed over the three channels.
type PixelsDist struct {
	params PixelsDistParams
	debug  *DebugWriter

	res    frame.Resolution
	stream frame.Resolution
	prev   [3][]float64
	cur    [3][]float64
	index  int
	hyst   hysteresis
}

// NewPixelsDist validates params and creates the detector.
func NewPixelsDist(params PixelsDistParams, debug *DebugWriter) (*PixelsDist, error) {
	if params.Threshold < eps || params.Threshold > MaxDivergence {
		return nil, errors.NewValidationErrorf("threshold must be in [%g, %g], got %v", eps, MaxDivergence, params.Threshold)
	}
	if err := validateProcessingRes(params.ProcessingWidth, params.ProcessingHeight); err != nil {
		return nil, err
	}
	if err := validateKFDistance(params.MinKFDistance); err != nil {
		return nil, err
	}

	d := &PixelsDist{
		params: params,
		debug:  debug,
		res:    frame.Resolution{Width: params.ProcessingWidth, Height: params.ProcessingHeight, Channels: frame.UnknownChannels},
	}
	for ch := range d.prev {
		d.prev[ch] = make([]float64, histBins)
		d.cur[ch] = make([]float64, histBins)
	}
	d.Reset()
	return d, nil
}

func (d *PixelsDist) Name() string { return AlgorithmPixelsDist }

func (d *PixelsDist) SetVideoProperties(res frame.Resolution) error {
	res, err := streamRes(res)
	if err != nil {
		return err
	}
	if err := d.res.SetChannels(res.Channels); err != nil {
		return err
	}
	d.stream = res
	return nil
}

func (d *PixelsDist) Detect(f frame.Frame) bool {
	checkFrame(f, d.stream)
	metrics.IncFramesProcessed(d.Name())

	d.index++
	if !d.hyst.step() {
		metrics.IncSkippedFrames(d.Name())
		return false
	}

	hsv := frame.ToHSV(frame.Resize(f, d.res.Width, d.res.Height))
	histograms(hsv, &d.cur)

	score := 0.0
	for ch := range d.cur {
		score += divergence(d.cur[ch], d.prev[ch])
	}
	isKey := score > d.params.Threshold

	if isKey {
		d.hyst.hit()
		metrics.IncKeyFrames(d.Name())
		d.debug.KeyFrame(f, fmt.Sprintf("key_frame_%04d_kl_%f.jpg", d.index, score))
	}

	d.prev, d.cur = d.cur, d.prev
	return isKey
}

func (d *PixelsDist) Reset() {
	d.res.Channels = frame.UnknownChannels
	d.stream = frame.Resolution{}
	for ch := range d.prev {
		zero(d.prev[ch])
	}
	d.index = -1
	d.hyst = newHysteresis(d.params.MinKFDistance)
}

// histograms fills one normalised 256 bin histogram per HSV channel.
func histograms(hsv frame.Frame, out *[3][]float64) {
	for ch := range out {
		zero(out[ch])
	}
	for i := 0; i+2 < len(hsv.Data); i += 3 {
		out[0][hsv.Data[i]]++
		out[1][hsv.Data[i+1]]++
		out[2][hsv.Data[i+2]]++
	}
	n := float64(hsv.Res.PixelCount())
	for ch := range out {
		floats.Scale(1/n, out[ch])
	}
}

// divergence returns |Σ p·log(p/(q+eps))|, skipping undefined terms.
func divergence(p, q []float64) float64 {
	sum := 0.0
	for i := range p {
		term := p[i] * math.Log(p[i]/(q[i]+eps))
		if math.IsNaN(term) || math.IsInf(term, 0) {
			continue
		}
		sum += term
	}
	return math.Abs(sum)
}

func zero(s []float64) {
	for i := range s {
		s[i] = 0
	}
}
