// Package decoder yields decoded BGR frames. Decoding itself happens in an
// external ffmpeg process.
package decoder

import (
	"io"

	"github.com/zsiec/gre2g/internal/frame"
)

// Source produces the frames of one video in order. Next returns io.EOF
// after the last frame.
type Source interface {
	Resolution() frame.Resolution
	Next() (frame.Frame, error)
	Close() error
}

// SliceSource serves frames held in memory.
type SliceSource struct {
	res    frame.Resolution
	frames []frame.Frame
	pos    int
	closed bool
}

// NewSliceSource returns a source over frames, which must all have res.
func NewSliceSource(res frame.Resolution, frames []frame.Frame) *SliceSource {
	return &SliceSource{res: res, frames: frames}
}

func (s *SliceSource) Resolution() frame.Resolution { return s.res }

func (s *SliceSource) Next() (frame.Frame, error) {
	if s.closed || s.pos >= len(s.frames) {
		return frame.Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *SliceSource) Close() error {
	s.closed = true
	return nil
}
