package keyframe

import (
	"github.com/zsiec/gre2g/internal/config"
	"github.com/zsiec/gre2g/internal/errors"
	"github.com/zsiec/gre2g/internal/logger"
)

// New builds the detector selected by cfg.Algorithm. Debug images, when
// cfg.DebugLevel > 0, go under debugPath.
func New(cfg config.KeyFrameConfig, debugPath string, log logger.Logger) (Detector, error) {
	if log == nil {
		log = logger.NewNullLogger()
	}
	log = log.WithField("algorithm", cfg.Algorithm)

	debug, err := NewDebugWriter(debugPath, cfg.DebugLevel, log)
	if err != nil {
		return nil, err
	}

	var det Detector
	switch cfg.Algorithm {
	case AlgorithmFramesDiff:
		det = NewFramesDiff(debug)
	case AlgorithmFramesRatio:
		det, err = NewFramesRatio(FramesRatioParams{
			Threshold:        cfg.Threshold,
			ProcessingWidth:  cfg.ProcessingWidth,
			ProcessingHeight: cfg.ProcessingHeight,
			MaxTemporalLag:   cfg.MaxTemporalLag,
			MinKFDistance:    cfg.MinKFDistance,
			Aggregation:      Aggregation(cfg.LagFramesAggregation),
		}, debug)
	case AlgorithmPixelsDist:
		det, err = NewPixelsDist(PixelsDistParams{
			Threshold:        cfg.Threshold,
			ProcessingWidth:  cfg.ProcessingWidth,
			ProcessingHeight: cfg.ProcessingHeight,
			MinKFDistance:    cfg.MinKFDistance,
		}, debug)
	default:
		return nil, errors.NewValidationErrorf("unknown key frame algorithm: %q", cfg.Algorithm)
	}
	if err != nil {
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"debug_level": cfg.DebugLevel,
		"threshold":   cfg.Threshold,
	}).Debug("Key frame detector created")
	return det, nil
}
