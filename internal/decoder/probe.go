package decoder

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Probe describes the first video stream of a file.
type Probe struct {
	Codec     string
	Width     int
	Height    int
	FrameRate float64
	Frames    int // 0 when the container does not record it
	Rotation  int // clockwise display rotation in degrees, 0 to 270
}

// DisplaySize is the size of decoded frames. ffmpeg applies the display
// rotation on output, so quarter turns swap the stored width and height.
func (p Probe) DisplaySize() (width, height int) {
	if p.Rotation == 90 || p.Rotation == 270 {
		return p.Height, p.Width
	}
	return p.Width, p.Height
}

type ffprobeOutput struct {
	Streams []struct {
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		NbFrames   string `json:"nb_frames"`
		Tags       struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
		SideData []struct {
			Rotation *float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
}

// ProbeFile runs ffprobe on path.
func ProbeFile(ctx context.Context, ffprobePath, path string) (Probe, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height,r_frame_rate,nb_frames:stream_tags=rotate:stream_side_data=rotation",
		"-of", "json",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return Probe{}, fmt.Errorf("ffprobe failed: %s", strings.TrimSpace(string(ee.Stderr)))
		}
		return Probe{}, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (Probe, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return Probe{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return Probe{}, fmt.Errorf("no video stream found")
	}

	s := out.Streams[0]
	p := Probe{Codec: s.CodecName, Width: s.Width, Height: s.Height}
	if s.Width <= 0 || s.Height <= 0 {
		return Probe{}, fmt.Errorf("invalid video size %dx%d", s.Width, s.Height)
	}
	if num, den, ok := strings.Cut(s.RFrameRate, "/"); ok {
		n, errN := strconv.ParseFloat(num, 64)
		d, errD := strconv.ParseFloat(den, 64)
		if errN == nil && errD == nil && d != 0 {
			p.FrameRate = n / d
		}
	}
	if n, err := strconv.Atoi(s.NbFrames); err == nil {
		p.Frames = n
	}

	// The display matrix rotation is counterclockwise and wins over the
	// legacy rotate tag.
	if r, err := strconv.ParseFloat(s.Tags.Rotate, 64); err == nil {
		p.Rotation = normalizeRotation(r)
	}
	for _, sd := range s.SideData {
		if sd.Rotation != nil {
			p.Rotation = normalizeRotation(-*sd.Rotation)
			break
		}
	}
	return p, nil
}

// normalizeRotation snaps deg to the nearest quarter turn in 0..270.
func normalizeRotation(deg float64) int {
	q := int(math.Round(deg/90)) % 4
	if q < 0 {
		q += 4
	}
	return q * 90
}
