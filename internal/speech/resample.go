package speech

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// Resample converts PCM between sample rates by truncating or zero padding
// the spectrum. Content above the lower Nyquist frequency is dropped.
func Resample(in []int16, from, to int) []int16 {
	if len(in) == 0 || from <= 0 || to <= 0 {
		return nil
	}
	if from == to {
		out := make([]int16, len(in))
		copy(out, in)
		return out
	}

	n := len(in)
	m := int(math.Round(float64(n) * float64(to) / float64(from)))
	if m == 0 {
		return nil
	}

	x := make([]float64, n)
	for i, s := range in {
		x[i] = float64(s)
	}
	spectrum := fft.FFTReal(x)

	resized := make([]complex128, m)
	limit := (min(n, m) + 1) / 2
	for k := 0; k < limit; k++ {
		resized[k] = spectrum[k]
	}
	for k := 1; k < limit; k++ {
		resized[m-k] = spectrum[n-k]
	}

	y := fft.IFFT(resized)
	scale := float64(m) / float64(n)
	out := make([]int16, m)
	for i, v := range y {
		out[i] = clampInt16(real(v) * scale)
	}
	return out
}

func clampInt16(v float64) int16 {
	v = math.Round(v)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
