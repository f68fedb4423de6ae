// Package pitch estimates the fundamental frequency of a monophonic signal.
package pitch

import (
	"fmt"
	"math"
)

const (
	DefaultNoiseFloor    = 0.01
	DefaultMinFrequency  = 60.0
	DefaultMaxFrequency  = 1000.0
	DefaultMinConfidence = 0.01
)

// Estimate is the result of one detection. A zero Frequency means no
// pitch was found.
type Estimate struct {
	Frequency  float64
	Confidence float64
}

// Detected reports whether the estimate carries a pitch.
func (e Estimate) Detected() bool {
	return e.Frequency > 0
}

// Detector turns a window of samples into a pitch estimate. Detectors never
// fail on short or quiet input; they report no pitch instead.
type Detector interface {
	Detect(samples []float32, sampleRate float64) Estimate
}

// New returns the detector registered under kind ("autocorrelation" or
// "fft").
func New(kind string) (Detector, error) {
	switch kind {
	case "", "autocorrelation", "time":
		return NewAutocorrelation(), nil
	case "fft":
		return NewFFTAutocorrelation(), nil
	default:
		return nil, fmt.Errorf("unknown pitch detector %q", kind)
	}
}

// Params holds the thresholds shared by the autocorrelation detectors.
type Params struct {
	NoiseFloor    float64
	MinFrequency  float64
	MaxFrequency  float64
	MinConfidence float64
}

// DefaultParams returns the thresholds tuned for guitar input.
func DefaultParams() Params {
	return Params{
		NoiseFloor:    DefaultNoiseFloor,
		MinFrequency:  DefaultMinFrequency,
		MaxFrequency:  DefaultMaxFrequency,
		MinConfidence: DefaultMinConfidence,
	}
}

// lags returns the half open lag range [lo, hi) searched for a period.
func (p Params) lags(n int, sampleRate float64) (int, int) {
	lo := int(math.Floor(sampleRate / p.MaxFrequency))
	hi := int(math.Floor(sampleRate / p.MinFrequency))
	if lo < 1 {
		lo = 1
	}
	if hi > n {
		hi = n
	}
	return lo, hi
}

// RMS returns the root mean square of the samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Autocorrelation finds the period as the lag with the strongest normalised
// time domain autocorrelation.
type Autocorrelation struct {
	Params
}

// NewAutocorrelation returns a detector with default thresholds.
func NewAutocorrelation() *Autocorrelation {
	return &Autocorrelation{Params: DefaultParams()}
}

func (a *Autocorrelation) Detect(samples []float32, sampleRate float64) Estimate {
	n := len(samples)
	if n == 0 || sampleRate <= 0 || RMS(samples) < a.NoiseFloor {
		return Estimate{}
	}

	lo, hi := a.lags(n, sampleRate)
	bestLag := -1
	best := 0.0
	for k := lo; k < hi; k++ {
		sum := 0.0
		for i := 0; i < n-k; i++ {
			sum += float64(samples[i]) * float64(samples[i+k])
		}
		r := sum / float64(n-k)
		if r > best {
			best = r
			bestLag = k
		}
	}

	if bestLag < 0 || best <= a.MinConfidence {
		return Estimate{}
	}
	return Estimate{Frequency: sampleRate / float64(bestLag), Confidence: best}
}
