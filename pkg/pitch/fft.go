package pitch

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/andrepxx/go-dsp-guitar/fft"
)

// FFTAutocorrelation computes the correlation through a zero padded real
// FFT. It produces the same estimates as Autocorrelation in O(n log n).
type FFTAutocorrelation struct {
	Params
	mutex            sync.Mutex
	fourierTransform fft.FourierTransform
	bufCorrelation   []float64
	bufFFT           []complex128
}

// NewFFTAutocorrelation returns a detector with default thresholds.
func NewFFTAutocorrelation() *FFTAutocorrelation {
	return &FFTAutocorrelation{
		Params:           DefaultParams(),
		fourierTransform: fft.CreateFourierTransform(),
	}
}

// correlate writes the unnormalised autocorrelation of samples for every lag
// into the scratch buffer and returns it, or nil on failure. The caller must
// hold the mutex.
func (f *FFTAutocorrelation) correlate(samples []float32) []float64 {
	n := len(samples)
	fftSize, _ := fft.NextPowerOfTwo(uint64(2 * n))

	if uint64(len(f.bufCorrelation)) != fftSize {
		f.bufCorrelation = make([]float64, fftSize)
		f.bufFFT = make([]complex128, fftSize)
	}

	bufCorrelation := f.bufCorrelation
	bufFFT := f.bufFFT
	energy := 0.0

	for i, s := range samples {
		v := float64(s)
		bufCorrelation[i] = v
		energy += v * v
	}

	fft.ZeroFloat(bufCorrelation[n:fftSize])
	ft := f.fourierTransform
	err := ft.RealFourier(bufCorrelation, bufFFT, fft.SCALING_DEFAULT)
	if err != nil {
		return nil
	}

	// power spectrum
	for i, elem := range bufFFT {
		bufFFT[i] = elem * cmplx.Conj(elem)
	}

	err = ft.RealInverseFourier(bufFFT, bufCorrelation, fft.SCALING_DEFAULT)
	if err != nil {
		return nil
	}

	// Lag zero must equal the signal energy whatever scaling the transform
	// applied.
	zero := bufCorrelation[0]
	if zero <= 0 || math.IsNaN(zero) || math.IsInf(zero, 0) {
		return nil
	}

	scale := energy / zero
	for i := range bufCorrelation[:n] {
		bufCorrelation[i] *= scale
	}

	return bufCorrelation[:n]
}

func (f *FFTAutocorrelation) Detect(samples []float32, sampleRate float64) Estimate {
	n := len(samples)
	if n == 0 || sampleRate <= 0 || RMS(samples) < f.NoiseFloor {
		return Estimate{}
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()
	correlation := f.correlate(samples)
	if correlation == nil {
		return Estimate{}
	}

	lo, hi := f.lags(n, sampleRate)
	bestLag := -1
	best := 0.0

	for k := lo; k < hi; k++ {
		r := correlation[k] / float64(n-k)
		if r > best {
			best = r
			bestLag = k
		}
	}

	if bestLag < 0 || best <= f.MinConfidence {
		return Estimate{}
	}

	return Estimate{Frequency: sampleRate / float64(bestLag), Confidence: best}
}
