package frame

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ToHSV converts a BGR(A) or grayscale frame into an interleaved three
// channel HSV frame using the 8-bit convention: H in 0..179, S and V in
// 0..255.
func ToHSV(f Frame) Frame {
	f.MustValidate()

	c := f.Res.Channels
	res := f.Res
	res.Channels = 3
	out := New(res)

	for p, i := 0, 0; p < f.Res.PixelCount(); p, i = p+1, i+c {
		var r, g, b uint8
		if c == 1 {
			r, g, b = f.Data[i], f.Data[i], f.Data[i]
		} else {
			b, g, r = f.Data[i], f.Data[i+1], f.Data[i+2]
		}

		h, s, v := colorful.Color{
			R: float64(r) / 255,
			G: float64(g) / 255,
			B: float64(b) / 255,
		}.Hsv()

		hb := math.Round(h / 2)
		if hb >= 180 {
			hb = 0
		}
		out.Data[p*3] = uint8(hb)
		out.Data[p*3+1] = uint8(math.Round(s * 255))
		out.Data[p*3+2] = uint8(math.Round(v * 255))
	}
	return out
}
