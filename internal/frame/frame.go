package frame

import (
	"fmt"
)

// Frame is a row-major interleaved pixel buffer. Three channel frames are
// BGR, four channel frames BGRA and single channel frames grayscale.
type Frame struct {
	Res  Resolution
	Data []byte
}

// New allocates a zeroed frame.
func New(res Resolution) Frame {
	return Frame{Res: res, Data: make([]byte, res.BufferSize())}
}

// Validate reports a mismatch between the declared resolution and the buffer.
func (f Frame) Validate() error {
	if !f.Res.KnownChannels() {
		return fmt.Errorf("frame %dx%d has unknown channel count", f.Res.Width, f.Res.Height)
	}
	if want := f.Res.BufferSize(); len(f.Data) != want {
		return fmt.Errorf("frame %s expects %d bytes, got %d", f.Res, want, len(f.Data))
	}
	return nil
}

// MustValidate panics on a malformed frame. Detectors use it because a
// malformed frame is a caller bug, not a runtime condition.
func (f Frame) MustValidate() {
	if err := f.Validate(); err != nil {
		panic("frame: " + err.Error())
	}
}

// Clone returns a deep copy.
func (f Frame) Clone() Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return Frame{Res: f.Res, Data: data}
}

// Fill sets every byte of every pixel to the given BGR(A) value. Missing
// components are ignored.
func (f Frame) Fill(values ...byte) {
	c := f.Res.Channels
	for i := 0; i+c <= len(f.Data); i += c {
		for ch := 0; ch < c && ch < len(values); ch++ {
			f.Data[i+ch] = values[ch]
		}
	}
}
