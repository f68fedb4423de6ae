package engine

const (
	ReferenceGain   = 0.5
	ReferenceAttack = 0.1
	ReferenceLength = 2.0

	ClickGain       = 0.5
	ClickFloor      = 0.001
	ClickLength     = 0.1
	AccentFrequency = 880.0
	ClickFrequency  = 440.0

	TestToneFrequency = 440.0
	TestToneLength    = 0.5
	TestToneGain      = 0.5
)

// ReferenceTone is a two second sine at freq that fades in and out.
func ReferenceTone(freq float64) Tone {
	return Tone{
		Frequency: freq,
		Envelope:  Linear{Peak: ReferenceGain, Attack: ReferenceAttack, End: ReferenceLength},
	}
}

// Click is a short decaying metronome tick; accented clicks are an octave up.
func Click(accent bool) Tone {
	freq := ClickFrequency
	if accent {
		freq = AccentFrequency
	}
	return Tone{
		Frequency: freq,
		Envelope:  Exponential{Peak: ClickGain, Floor: ClickFloor, Length: ClickLength},
	}
}

// TestTone is the half second beep used to check the output works.
func TestTone() Tone {
	return Tone{
		Frequency: TestToneFrequency,
		Envelope:  Constant{Gain: TestToneGain, Length: TestToneLength},
	}
}
