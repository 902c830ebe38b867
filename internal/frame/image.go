package frame

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ToNRGBA converts the frame into an image usable by the imaging package.
// The 4th channel of a 4-channel frame becomes alpha.
func (f Frame) ToNRGBA() *image.NRGBA {
	return f.toNRGBA(false)
}

// toNRGBA with opaque set ignores the 4th channel. imaging weights colour by
// alpha when filtering, so BGRX input must be resized opaque.
func (f Frame) toNRGBA(opaque bool) *image.NRGBA {
	f.MustValidate()

	w, h, c := f.Res.Width, f.Res.Height, f.Res.Channels
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := f.Data[y*w*c : (y+1)*w*c]
		dst := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			s, d := src[x*c:], dst[x*4:]
			switch c {
			case 1:
				d[0], d[1], d[2], d[3] = s[0], s[0], s[0], 0xff
			case 3:
				d[0], d[1], d[2], d[3] = s[2], s[1], s[0], 0xff
			case 4:
				d[0], d[1], d[2], d[3] = s[2], s[1], s[0], s[3]
				if opaque {
					d[3] = 0xff
				}
			}
		}
	}
	return img
}

// plane extracts channel ch as a grayscale image.
func (f Frame) plane(ch int) *image.Gray {
	w, h, c := f.Res.Width, f.Res.Height, f.Res.Channels
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		img.Pix[i] = f.Data[i*c+ch]
	}
	return img
}

// FromImage converts any image into a frame with the requested channel
// count (1, 3 or 4).
func FromImage(img image.Image, channels int) (Frame, error) {
	b := img.Bounds()
	res, err := NewResolution(b.Dx(), b.Dy(), channels)
	if err != nil {
		return Frame{}, err
	}
	if channels == UnknownChannels {
		res.Channels = 3
	}

	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		nrgba = imaging.Clone(img)
	}

	f := New(res)
	w, c := res.Width, res.Channels
	origin := nrgba.Bounds().Min
	for y := 0; y < res.Height; y++ {
		row := nrgba.Pix[nrgba.PixOffset(origin.X, origin.Y+y):]
		dst := f.Data[y*w*c : (y+1)*w*c]
		for x := 0; x < w; x++ {
			s, d := row[x*4:], dst[x*c:]
			switch c {
			case 1:
				d[0] = color.GrayModel.Convert(color.NRGBA{s[0], s[1], s[2], 0xff}).(color.Gray).Y
			case 3:
				d[0], d[1], d[2] = s[2], s[1], s[0]
			case 4:
				d[0], d[1], d[2], d[3] = s[2], s[1], s[0], s[3]
			}
		}
	}
	return f, nil
}

// Resize scales the frame with bilinear filtering. A frame that already has
// the requested size is copied unchanged. Channels are resized independently
// of each other.
func Resize(f Frame, width, height int) Frame {
	f.MustValidate()
	if f.Res.Width == width && f.Res.Height == height {
		return f.Clone()
	}

	resized := imaging.Resize(f.toNRGBA(true), width, height, imaging.Linear)
	out, err := FromImage(resized, f.Res.Channels)
	if err != nil {
		panic("frame: resize: " + err.Error())
	}
	if f.Res.Channels == 4 {
		fourth := imaging.Resize(f.plane(3), width, height, imaging.Linear)
		for i := 0; i < width*height; i++ {
			out.Data[i*4+3] = fourth.Pix[i*4]
		}
	}
	return out
}

// Save writes the frame to path; the format follows the file extension.
func Save(f Frame, path string) error {
	return imaging.Save(f.ToNRGBA(), path)
}
