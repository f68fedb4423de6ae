package scheduler

const (
	MinBPM                 = 40
	MaxBPM                 = 220
	DefaultBPM             = 120
	DefaultBeatsPerMeasure = 4
)

// Tempo is the metronome speed and meter.
type Tempo struct {
	BPM             int
	BeatsPerMeasure int
}

// DefaultTempo is 120 bpm in four.
func DefaultTempo() Tempo {
	return Tempo{BPM: DefaultBPM, BeatsPerMeasure: DefaultBeatsPerMeasure}
}

// ClampBPM limits bpm to [MinBPM, MaxBPM].
func ClampBPM(bpm int) int {
	return min(max(bpm, MinBPM), MaxBPM)
}

// Clamp returns t with BPM clamped and at least one beat per measure.
func (t Tempo) Clamp() Tempo {
	t.BPM = ClampBPM(t.BPM)
	if t.BeatsPerMeasure < 1 {
		t.BeatsPerMeasure = 1
	}
	return t
}

// BeatLength returns the time between beats in seconds.
func (t Tempo) BeatLength() float64 {
	return 60 / float64(ClampBPM(t.BPM))
}
