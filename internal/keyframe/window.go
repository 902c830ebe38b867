package keyframe

import (
	"gonum.org/v1/gonum/floats"
)

// window is a fixed capacity ring of frames stored as float64 planes.
// Slot order is logical: 0 is the oldest, len-1 the newest. All slots
// start zeroed.
type window struct {
	slots [][]float64
	head  int // physical index of the oldest slot
}

func newWindow(n, size int) *window {
	w := &window{slots: make([][]float64, n)}
	for i := range w.slots {
		w.slots[i] = make([]float64, size)
	}
	return w
}

// push drops the oldest frame and copies data in as the newest.
func (w *window) push(data []byte) {
	dst := w.slots[w.head]
	for i, v := range data {
		dst[i] = float64(v)
	}
	w.head = (w.head + 1) % len(w.slots)
}

// weighted writes Σ weights[i]*slot[i] into dst.
func (w *window) weighted(dst, weights []float64) {
	for i := range dst {
		dst[i] = 0
	}
	n := len(w.slots)
	for i, weight := range weights {
		floats.AddScaled(dst, weight, w.slots[(w.head+i)%n])
	}
}
