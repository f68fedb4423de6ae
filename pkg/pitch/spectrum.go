package pitch

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Spectrum returns the Hann windowed magnitude spectrum of samples, one
// value per bin up to the Nyquist frequency. Bin i is centred on
// i*sampleRate/len(samples) Hz.
func Spectrum(samples []float32) []float64 {
	n := len(samples)
	if n < 2 {
		return nil
	}

	win := window.Hann(n)
	frame := make([]float64, n)
	for i, s := range samples {
		frame[i] = float64(s) * win[i]
	}

	bins := fft.FFTReal(frame)
	mags := make([]float64, n/2)
	for i := range mags {
		mags[i] = cmplx.Abs(bins[i])
	}
	return mags
}

// PeakFrequency returns the centre frequency of the strongest spectrum bin,
// skipping DC.
func PeakFrequency(mags []float64, sampleRate float64) float64 {
	if len(mags) < 2 {
		return 0
	}
	peak := 1
	for i := 2; i < len(mags); i++ {
		if mags[i] > mags[peak] {
			peak = i
		}
	}
	return float64(peak) * sampleRate / float64(2*len(mags))
}
