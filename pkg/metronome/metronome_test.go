package metronome

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/metalblueberry/guitarbuddy/pkg/engine"
	"github.com/metalblueberry/guitarbuddy/pkg/scheduler"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type click struct {
	at     float64
	accent bool
}

type fakeEngine struct {
	start     time.Time
	resumeErr error

	mu      sync.Mutex
	resumes int
	clicks  []click
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{start: time.Now()}
}

func (f *fakeEngine) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
	return f.resumeErr
}

func (f *fakeEngine) Now() float64 {
	return time.Since(f.start).Seconds()
}

func (f *fakeEngine) ScheduleClick(at float64, accent bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, click{at: at, accent: accent})
	return nil
}

func (f *fakeEngine) scheduled() []click {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]click(nil), f.clicks...)
}

type beats struct {
	mu     sync.Mutex
	events []scheduler.Event
}

func (b *beats) add(ev scheduler.Event) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

func (b *beats) list() []scheduler.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]scheduler.Event(nil), b.events...)
}

func TestStartSchedulesAccentedFirstClick(t *testing.T) {
	eng := newFakeEngine()
	s := New(eng, WithTempo(scheduler.Tempo{BPM: 120, BeatsPerMeasure: 4}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	clicks := eng.scheduled()
	require.NotEmpty(t, clicks)
	assert.True(t, clicks[0].accent)
	assert.InDelta(t, eng.Now(), clicks[0].at, 0.05)
	assert.Equal(t, Running, s.State())
	assert.Equal(t, 1, eng.resumes)
}

func TestBeatsAreReportedInOrder(t *testing.T) {
	eng := newFakeEngine()
	b := &beats{}
	s := New(eng,
		WithTempo(scheduler.Tempo{BPM: 220, BeatsPerMeasure: 3}),
		WithSchedulerOptions(scheduler.WithInterval(5*time.Millisecond)),
		OnBeat(b.add))

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return len(b.list()) >= 4 }, 5*time.Second, 5*time.Millisecond)
	s.Stop()

	events := b.list()
	for i, ev := range events {
		assert.Equal(t, i%3, ev.Beat)
		assert.Equal(t, i/3, ev.Measure)
	}

	clicks := eng.scheduled()
	for i, c := range clicks {
		assert.Equal(t, i%3 == 0, c.accent, "click %d", i)
		if i > 0 {
			assert.Greater(t, c.at, clicks[i-1].at)
		}
	}

	// Nothing is reported after Stop.
	n := len(events)
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, b.list(), n)
}

func TestStopCancelsPendingBeats(t *testing.T) {
	eng := newFakeEngine()
	b := &beats{}
	s := New(eng,
		WithTempo(scheduler.Tempo{BPM: 40, BeatsPerMeasure: 4}),
		WithSchedulerOptions(scheduler.WithLookAhead(2)),
		OnBeat(b.add))

	// With a two second look-ahead the second beat (1.5 s) is queued at start.
	require.NoError(t, s.Start(context.Background()))
	require.Len(t, eng.scheduled(), 2)
	s.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, len(b.list()), 1)
	assert.Equal(t, Idle, s.State())
}

func TestResumeFailure(t *testing.T) {
	eng := newFakeEngine()
	eng.resumeErr = engine.ErrAudioBlocked
	s := New(eng)

	err := s.Start(context.Background())
	assert.True(t, errors.Is(err, engine.ErrAudioBlocked))
	assert.Equal(t, Idle, s.State())
	assert.Empty(t, eng.scheduled())
}

func TestStartStopIdempotent(t *testing.T) {
	eng := newFakeEngine()
	s := New(eng)
	s.Stop()

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 1, eng.resumes)
	s.Stop()
	s.Stop()
	assert.Equal(t, Idle, s.State())
}

func TestTempoControls(t *testing.T) {
	s := New(newFakeEngine())
	assert.Equal(t, scheduler.DefaultTempo(), s.Tempo())

	assert.Equal(t, 125, s.ChangeTempo(TempoStep))
	assert.Equal(t, 120, s.ChangeTempo(-TempoStep))
	assert.Equal(t, scheduler.MinBPM, s.ChangeTempo(-500))
	assert.Equal(t, scheduler.MaxBPM, s.SetTempo(300))
	assert.Equal(t, 3, s.SetBeatsPerMeasure(3))
	assert.Equal(t, scheduler.Tempo{BPM: scheduler.MaxBPM, BeatsPerMeasure: 3}, s.Tempo())
}

func TestLiveTempoChange(t *testing.T) {
	eng := newFakeEngine()
	s := New(eng,
		WithTempo(scheduler.Tempo{BPM: 200, BeatsPerMeasure: 4}),
		WithSchedulerOptions(scheduler.WithInterval(5*time.Millisecond)))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return len(eng.scheduled()) >= 2 }, 5*time.Second, 5*time.Millisecond)
	s.SetTempo(60)
	n := len(eng.scheduled())
	require.Eventually(t, func() bool { return len(eng.scheduled()) >= n+2 }, 5*time.Second, 5*time.Millisecond)

	clicks := eng.scheduled()
	gap := clicks[n+1].at - clicks[n].at
	assert.InDelta(t, 1.0, gap, 1e-9)
}

func TestContextCancellationStopsMetronome(t *testing.T) {
	eng := newFakeEngine()
	b := &beats{}
	s := New(eng,
		WithTempo(scheduler.Tempo{BPM: 220, BeatsPerMeasure: 4}),
		WithSchedulerOptions(scheduler.WithInterval(5*time.Millisecond)),
		OnBeat(b.add))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	require.Eventually(t, func() bool { return s.State() == Idle }, 5*time.Second, 5*time.Millisecond)
	n := len(eng.scheduled())
	reported := len(b.list())
	time.Sleep(400 * time.Millisecond)
	assert.Len(t, eng.scheduled(), n)
	assert.Len(t, b.list(), reported)

	// A fresh start schedules clicks again.
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, Running, s.State())
	require.Eventually(t, func() bool { return len(eng.scheduled()) >= n+2 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, eng.resumes)

	s.Stop()
	assert.Equal(t, Idle, s.State())
}

func TestStartAfterCancelWaitsForTeardown(t *testing.T) {
	eng := newFakeEngine()
	s := New(eng)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	// Whether or not teardown finished, the second start must run.
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, Running, s.State())
	assert.Equal(t, 2, eng.resumes)
	s.Stop()
}
