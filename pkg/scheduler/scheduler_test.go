package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu sync.Mutex
	t  float64
}

func (c *fakeClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t float64) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type wallClock struct{ start time.Time }

func (c wallClock) Now() float64 { return time.Since(c.start).Seconds() }

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// manual returns a scheduler whose driver never fires during a test.
func manual(clock Clock, tempo Tempo, h Handler) *Scheduler {
	return New(clock, tempo, h, WithInterval(time.Hour))
}

func TestStartEmitsFirstBeatImmediately(t *testing.T) {
	clock := &fakeClock{t: 3}
	rec := &recorder{}
	s := manual(clock, DefaultTempo(), rec.handle)

	s.Start(context.Background())
	defer s.Stop()

	require.Equal(t, []Event{{Beat: 0, Measure: 0, Time: 3}}, rec.snapshot())
	assert.True(t, s.Running())
}

func TestTickLookAhead(t *testing.T) {
	clock := &fakeClock{}
	s := manual(clock, Tempo{BPM: 120, BeatsPerMeasure: 4}, nil)
	s.Start(context.Background())
	defer s.Stop()

	// Nothing due yet: next beat at 0.5, horizon 0.3.
	clock.Set(0.2)
	assert.Empty(t, s.Tick())

	clock.Set(0.45)
	assert.Equal(t, []Event{{Beat: 1, Measure: 0, Time: 0.5}}, s.Tick())

	clock.Set(2.0)
	assert.Equal(t, []Event{
		{Beat: 2, Measure: 0, Time: 1.0},
		{Beat: 3, Measure: 0, Time: 1.5},
		{Beat: 0, Measure: 1, Time: 2.0},
	}, s.Tick())
}

func TestEventsStrictlyIncreaseAndAreUnique(t *testing.T) {
	clock := &fakeClock{}
	s := manual(clock, DefaultTempo(), nil)
	s.Start(context.Background())
	defer s.Stop()

	seen := map[[2]int]bool{}
	last := -1.0
	for step := 1; step <= 2000; step++ {
		clock.Set(float64(step) * 0.025)
		switch step {
		case 300:
			s.SetTempo(220)
		case 700:
			s.SetBeatsPerMeasure(3)
		case 1100:
			s.SetTempo(40)
		case 1500:
			s.SetBeatsPerMeasure(7)
		}
		for _, ev := range s.Tick() {
			key := [2]int{ev.Beat, ev.Measure}
			require.False(t, seen[key], "duplicate event %+v", ev)
			seen[key] = true
			require.Greater(t, ev.Time, last)
			last = ev.Time
		}
	}
	assert.NotEmpty(t, seen)
}

func TestTempoChangeAppliesToNextIncrement(t *testing.T) {
	clock := &fakeClock{}
	s := manual(clock, Tempo{BPM: 60, BeatsPerMeasure: 4}, nil)
	s.Start(context.Background())
	defer s.Stop()

	// Beat 1 is already committed at 1.0 s.
	s.SetTempo(120)
	clock.Set(1.0)
	events := s.Tick()
	require.Len(t, events, 1)
	assert.InDelta(t, 1.0, events[0].Time, 1e-9)

	clock.Set(1.5)
	events = s.Tick()
	require.Len(t, events, 1)
	assert.InDelta(t, 1.5, events[0].Time, 1e-9)
}

func TestSetTempoClamps(t *testing.T) {
	s := manual(&fakeClock{}, DefaultTempo(), nil)
	assert.Equal(t, MinBPM, s.SetTempo(10))
	assert.Equal(t, MaxBPM, s.SetTempo(500))
	assert.Equal(t, 96, s.SetTempo(96))
	assert.Equal(t, 96, s.Tempo().BPM)

	clamped := New(&fakeClock{}, Tempo{BPM: 1000, BeatsPerMeasure: 0}, nil).Tempo()
	assert.Equal(t, Tempo{BPM: MaxBPM, BeatsPerMeasure: 1}, clamped)
}

func TestSetBeatsPerMeasureResetsBeat(t *testing.T) {
	clock := &fakeClock{}
	s := manual(clock, Tempo{BPM: 120, BeatsPerMeasure: 4}, nil)
	s.Start(context.Background())
	defer s.Stop()

	clock.Set(0.45)
	require.Len(t, s.Tick(), 1) // beat 1

	assert.Equal(t, 3, s.SetBeatsPerMeasure(3))
	clock.Set(0.95)
	assert.Equal(t, []Event{{Beat: 0, Measure: 1, Time: 1.0}}, s.Tick())

	assert.Equal(t, 1, s.SetBeatsPerMeasure(0))
}

func TestStopSilencesTick(t *testing.T) {
	clock := &fakeClock{}
	rec := &recorder{}
	s := manual(clock, DefaultTempo(), rec.handle)
	s.Start(context.Background())
	s.Stop()

	clock.Set(10)
	assert.Empty(t, s.Tick())
	assert.Len(t, rec.snapshot(), 1)
	assert.False(t, s.Running())

	// Idempotent.
	s.Stop()
}

func TestStartTwiceIsNoop(t *testing.T) {
	clock := &fakeClock{}
	rec := &recorder{}
	s := manual(clock, DefaultTempo(), rec.handle)
	s.Start(context.Background())
	s.Start(context.Background())
	defer s.Stop()

	assert.Len(t, rec.snapshot(), 1)
}

func TestDriverGoroutine(t *testing.T) {
	rec := &recorder{}
	s := New(wallClock{start: time.Now()}, Tempo{BPM: 220, BeatsPerMeasure: 2}, rec.handle,
		WithInterval(time.Millisecond))
	s.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) >= 4
	}, 5*time.Second, 5*time.Millisecond)

	s.Stop()
	n := len(rec.snapshot())
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, rec.snapshot(), n)

	events := rec.snapshot()
	assert.Equal(t, 0, events[0].Beat)
	assert.Equal(t, 1, events[1].Beat)
	assert.Equal(t, Event{Beat: 0, Measure: 1, Time: events[2].Time}, events[2])
}

func TestCancelledContextStopsDriver(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(&fakeClock{}, DefaultTempo(), nil, WithInterval(time.Millisecond))
	s.Start(ctx)
	cancel()

	require.Eventually(t, func() bool { return !s.Running() }, time.Second, time.Millisecond)
	s.Stop()
}
