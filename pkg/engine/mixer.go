package engine

import (
	"encoding/binary"
	"math"
	"sync"
)

// Envelope shapes the gain of a voice over time.
type Envelope interface {
	// Level returns the gain t seconds after the voice starts.
	Level(t float64) float64
	// Duration is the time after which the voice is silent.
	Duration() float64
}

// Constant holds Gain for Length seconds.
type Constant struct {
	Gain   float64
	Length float64
}

func (c Constant) Level(t float64) float64 {
	if t < 0 || t >= c.Length {
		return 0
	}
	return c.Gain
}

func (c Constant) Duration() float64 { return c.Length }

// Linear ramps from silence to Peak over Attack seconds, then back to
// silence at End seconds.
type Linear struct {
	Peak   float64
	Attack float64
	End    float64
}

func (l Linear) Level(t float64) float64 {
	switch {
	case t < 0 || t >= l.End:
		return 0
	case t < l.Attack:
		return l.Peak * t / l.Attack
	default:
		return l.Peak * (l.End - t) / (l.End - l.Attack)
	}
}

func (l Linear) Duration() float64 { return l.End }

// Exponential decays from Peak to Floor over Length seconds.
type Exponential struct {
	Peak   float64
	Floor  float64
	Length float64
}

func (e Exponential) Level(t float64) float64 {
	if t < 0 || t >= e.Length {
		return 0
	}
	return e.Peak * math.Pow(e.Floor/e.Peak, t/e.Length)
}

func (e Exponential) Duration() float64 { return e.Length }

// Tone is a sine voice.
type Tone struct {
	Frequency float64
	Envelope  Envelope
}

// VoiceID identifies a scheduled voice.
type VoiceID uint64

type voice struct {
	id     VoiceID
	tone   Tone
	start  int64
	frames int64
}

// Mixer sums scheduled sine voices into a mono stream. The number of frames
// rendered so far is the engine clock, so voices start on exact frames.
type Mixer struct {
	mu         sync.Mutex
	sampleRate float64
	frame      int64
	voices     []*voice
	nextID     VoiceID
	scratch    []float32
}

// NewMixer returns a silent mixer at the given sample rate.
func NewMixer(sampleRate float64) *Mixer {
	return &Mixer{sampleRate: sampleRate}
}

func (m *Mixer) SampleRate() float64 {
	return m.sampleRate
}

// Now returns the clock in seconds.
func (m *Mixer) Now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.frame) / m.sampleRate
}

// Schedule starts t at the given clock time. Times already in the past start
// on the next rendered frame.
func (m *Mixer) Schedule(t Tone, at float64) VoiceID {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := int64(math.Round(at * m.sampleRate))
	if start < m.frame {
		start = m.frame
	}
	m.nextID++
	m.voices = append(m.voices, &voice{
		id:     m.nextID,
		tone:   t,
		start:  start,
		frames: int64(math.Ceil(t.Envelope.Duration() * m.sampleRate)),
	})
	return m.nextID
}

// Cancel silences a voice immediately. Unknown ids are ignored.
func (m *Mixer) Cancel(id VoiceID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, v := range m.voices {
		if v.id == id {
			m.voices = append(m.voices[:i], m.voices[i+1:]...)
			return
		}
	}
}

// Active returns the number of voices pending or sounding.
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Render fills out with the next len(out) frames and advances the clock.
func (m *Mixer) Render(out []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.render(out)
}

func (m *Mixer) render(out []float32) {
	for i := range out {
		out[i] = 0
	}

	first := m.frame
	last := first + int64(len(out))
	kept := m.voices[:0]
	for _, v := range m.voices {
		end := v.start + v.frames
		from := max(v.start, first)
		to := min(end, last)
		for f := from; f < to; f++ {
			t := float64(f-v.start) / m.sampleRate
			out[f-first] += float32(v.tone.Envelope.Level(t) * math.Sin(2*math.Pi*v.tone.Frequency*t))
		}
		if end > last {
			kept = append(kept, v)
		}
	}
	for i := len(kept); i < len(m.voices); i++ {
		m.voices[i] = nil
	}
	m.voices = kept

	for i, s := range out {
		out[i] = min(max(s, -1), 1)
	}
	m.frame = last
}

// Read renders float32 little endian mono frames into p. It never returns an
// error, so an output device can pull from it indefinitely.
func (m *Mixer) Read(p []byte) (int, error) {
	frames := len(p) / 4
	m.mu.Lock()
	defer m.mu.Unlock()

	if cap(m.scratch) < frames {
		m.scratch = make([]float32, frames)
	}
	buf := m.scratch[:frames]
	m.render(buf)
	for i, s := range buf {
		binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(s))
	}
	return 4 * frames, nil
}
