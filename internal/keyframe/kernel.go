package keyframe

import (
	"math"

	"github.com/zsiec/gre2g/internal/errors"
)

// Aggregation selects how the temporal window is reduced to one reference.
type Aggregation string

const (
	AggregationMean     Aggregation = "mean"
	AggregationDecaying Aggregation = "decaying"

	decay = 0.9
)

// Kernel returns the window weights. Index n-1 is the newest frame.
func Kernel(agg Aggregation, n int) ([]float64, error) {
	if n < 1 || n > MaxTemporalLag {
		return nil, errors.NewValidationErrorf("max_temporal_lag must be in 1..%d, got %d", MaxTemporalLag, n)
	}

	w := make([]float64, n)
	switch agg {
	case AggregationMean:
		for i := range w {
			w[i] = 1 / float64(n)
		}
	case AggregationDecaying:
		for i := range w {
			w[i] = math.Pow(decay, float64(n-1-i)) * (1 - decay)
		}
	default:
		return nil, errors.NewValidationErrorf("lag_frames_aggregation must be mean or decaying, got %q", agg)
	}
	return w, nil
}
