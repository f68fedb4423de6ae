package pitch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRate = 44100.0

func sine(freq, amplitude float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
	}
	return out
}

// assertLag checks that the estimate comes from the lag nearest the true
// period, give or take one lag step.
func assertLag(t *testing.T, freq float64, est Estimate) {
	t.Helper()
	require.True(t, est.Detected(), "no pitch for %v Hz", freq)
	got := math.Round(sampleRate / est.Frequency)
	assert.InDelta(t, sampleRate/got, est.Frequency, 1e-9, "estimate is not sampleRate/lag")
	want := math.Round(sampleRate / freq)
	assert.InDelta(t, want, got, 1, "lag for %v Hz (estimated %v Hz)", freq, est.Frequency)
}

func detectors() map[string]Detector {
	return map[string]Detector{
		"autocorrelation": NewAutocorrelation(),
		"fft":             NewFFTAutocorrelation(),
	}
}

func TestSilence(t *testing.T) {
	for name, d := range detectors() {
		est := d.Detect(make([]float32, 2048), sampleRate)
		assert.False(t, est.Detected(), name)
		assert.Zero(t, est.Confidence, name)
	}
}

func TestQuietSignalIsGated(t *testing.T) {
	for name, d := range detectors() {
		est := d.Detect(sine(110, 0.005, 2048), sampleRate)
		assert.False(t, est.Detected(), name)
	}
}

func TestGuitarStrings(t *testing.T) {
	for name, d := range detectors() {
		// Periods with no near-integer multiple inside the lag window.
		for _, freq := range []float64{82.41, 110, 196} {
			est := d.Detect(sine(freq, 0.5, 2048), sampleRate)
			assertLag(t, freq, est)
			assert.Greater(t, est.Confidence, DefaultMinConfidence, "%s %v Hz", name, freq)
		}
	}
}

func TestSubharmonicSelection(t *testing.T) {
	// The strongest lag may be a multiple of the period for high notes.
	// The estimate then lies on an integer sub-multiple of the input.
	d := NewAutocorrelation()
	for _, freq := range []float64{146.83, 329.63, 440} {
		est := d.Detect(sine(freq, 0.5, 2048), sampleRate)
		require.True(t, est.Detected())
		ratio := freq / est.Frequency
		assert.InDelta(t, math.Round(ratio), ratio, 0.05, "%v Hz estimated as %v Hz", freq, est.Frequency)
	}

	// D3 resolves one octave down.
	est := d.Detect(sine(146.83, 0.5, 2048), sampleRate)
	assert.Equal(t, sampleRate/601, est.Frequency)
}

func TestDetectorsAgree(t *testing.T) {
	td := NewAutocorrelation()
	fd := NewFFTAutocorrelation()
	for _, freq := range []float64{82.41, 110, 196, 329.63, 440} {
		samples := sine(freq, 0.5, 2048)
		a := td.Detect(samples, sampleRate)
		b := fd.Detect(samples, sampleRate)
		assert.Equal(t, a.Frequency, b.Frequency, "%v Hz", freq)
		assert.InDelta(t, a.Confidence, b.Confidence, 1e-6, "%v Hz", freq)
	}
}

func TestShortBuffer(t *testing.T) {
	for name, d := range detectors() {
		est := d.Detect(sine(110, 0.5, 512), sampleRate)
		require.True(t, est.Detected(), name)
		assert.InEpsilon(t, 110, est.Frequency, 0.05, name)

		// Shorter than the smallest lag: nothing to search.
		est = d.Detect(sine(440, 0.5, 16), sampleRate)
		assert.False(t, est.Detected(), name)

		est = d.Detect(nil, sampleRate)
		assert.False(t, est.Detected(), name)
	}
}

func TestRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.InDelta(t, 0.5/math.Sqrt2, RMS(sine(441, 0.5, 44100)), 1e-3)
}

func TestNew(t *testing.T) {
	d, err := New("fft")
	require.NoError(t, err)
	assert.IsType(t, &FFTAutocorrelation{}, d)

	d, err = New("")
	require.NoError(t, err)
	assert.IsType(t, &Autocorrelation{}, d)

	_, err = New("yin")
	assert.Error(t, err)
}

func TestSpectrumPeak(t *testing.T) {
	const sr = 8192.0
	n := 1024
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * 512 * float64(i) / sr))
	}

	mags := Spectrum(samples)
	require.Len(t, mags, n/2)
	assert.InDelta(t, 512, PeakFrequency(mags, sr), 1e-9)
	assert.Nil(t, Spectrum(nil))
}
