package engine

import (
	"math"

	"github.com/metalblueberry/guitarbuddy/pkg/scheduler"
)

// RenderClickTrack renders a metronome offline. The scheduler runs against
// the mixer clock exactly as it does live, ticking once per scheduler
// interval of rendered audio.
func RenderClickTrack(tempo scheduler.Tempo, seconds, sampleRate float64) Buffer {
	mixer := NewMixer(sampleRate)
	sched := scheduler.New(mixer, tempo, func(ev scheduler.Event) {
		mixer.Schedule(Click(ev.Accent()), ev.Time)
	})
	sched.Reset()

	total := int(math.Round(seconds * sampleRate))
	block := max(int(sampleRate*scheduler.DefaultInterval.Seconds()), 1)
	out := make([]float32, total)
	for pos := 0; pos < total; pos += block {
		sched.Tick()
		mixer.Render(out[pos:min(pos+block, total)])
	}
	sched.Stop()

	return Buffer{Samples: out, SampleRate: sampleRate}
}
