package frame

import (
	"fmt"

	"github.com/zsiec/gre2g/internal/errors"
)

const (
	// MaxWidth is the largest supported frame width (8K UHD).
	MaxWidth = 8192
	// MaxHeight is the largest supported frame height (8K UHD).
	MaxHeight = 4320
	// UnknownChannels marks a resolution whose channel count is not known yet.
	UnknownChannels = -1
)

// Resolution represents frame dimensions and the number of interleaved
// channels per pixel.
type Resolution struct {
	Width    int
	Height   int
	Channels int
}

// NewResolution creates a validated resolution. Pass UnknownChannels when
// the channel count will only be known at stream start.
func NewResolution(width, height, channels int) (Resolution, error) {
	r := Resolution{Width: width, Height: height, Channels: channels}
	if err := r.Validate(); err != nil {
		return Resolution{}, err
	}
	return r, nil
}

// Validate checks dimensions and channel count.
func (r Resolution) Validate() error {
	if r.Width < 1 || r.Width > MaxWidth {
		return errors.NewValidationErrorf("width must be in 1..%d, got %d", MaxWidth, r.Width)
	}
	if r.Height < 1 || r.Height > MaxHeight {
		return errors.NewValidationErrorf("height must be in 1..%d, got %d", MaxHeight, r.Height)
	}
	return validateChannels(r.Channels)
}

// SetChannels sets the channel count once it becomes known.
func (r *Resolution) SetChannels(channels int) error {
	if err := validateChannels(channels); err != nil {
		return err
	}
	r.Channels = channels
	return nil
}

// WithSize returns a copy with other dimensions and the same channels.
func (r Resolution) WithSize(width, height int) Resolution {
	return Resolution{Width: width, Height: height, Channels: r.Channels}
}

// PixelCount returns Width*Height.
func (r Resolution) PixelCount() int {
	return r.Width * r.Height
}

// BufferSize returns the byte length of a frame, or 0 if channels are unknown.
func (r Resolution) BufferSize() int {
	if r.Channels < 1 {
		return 0
	}
	return r.PixelCount() * r.Channels
}

// KnownChannels reports whether the channel count has been set.
func (r Resolution) KnownChannels() bool {
	return r.Channels != UnknownChannels
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%dx%d", r.Width, r.Height, r.Channels)
}

func validateChannels(channels int) error {
	switch channels {
	case UnknownChannels, 1, 3, 4:
		return nil
	}
	return errors.NewValidationErrorf("channels must be one of -1, 1, 3, 4, got %d", channels)
}
