// Package scheduler emits metronome beats ahead of time against an audio
// clock, so that sounds can be queued on exact sample frames while the
// scheduling goroutine itself runs with coarse timer jitter.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultLookAhead = 0.1
	DefaultInterval  = 25 * time.Millisecond
)

// Clock reports the audio clock in seconds.
type Clock interface {
	Now() float64
}

// Event is one scheduled beat. Measure counts measures since Start, so
// (Beat, Measure) is unique for a run.
type Event struct {
	Beat    int
	Measure int
	Time    float64
}

// Accent reports whether the event is the first beat of a measure.
func (e Event) Accent() bool {
	return e.Beat == 0
}

// Handler receives events in time order.
type Handler func(Event)

type Option func(*Scheduler)

// WithLookAhead sets how far ahead of the clock, in seconds, beats are
// emitted.
func WithLookAhead(seconds float64) Option {
	return func(s *Scheduler) { s.lookAhead = seconds }
}

// WithInterval sets the polling period of the driver goroutine.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

type Scheduler struct {
	clock     Clock
	handler   Handler
	lookAhead float64
	interval  time.Duration
	logger    *zap.Logger

	mu       sync.Mutex
	tempo    Tempo
	beat     int
	measure  int
	nextTime float64
	primed   bool

	// tickMu serialises ticks so handlers see events in order.
	tickMu sync.Mutex

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a stopped scheduler. handler may be nil.
func New(clock Clock, tempo Tempo, handler Handler, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:     clock,
		handler:   handler,
		lookAhead: DefaultLookAhead,
		interval:  DefaultInterval,
		logger:    zap.NewNop(),
		tempo:     tempo.Clamp(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reset rewinds to the first beat of a new run, due at the current clock
// time.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beat = 0
	s.measure = 0
	s.nextTime = s.clock.Now()
	s.primed = true
}

// Start resets the scheduler, emits the beats already due and starts the
// driver goroutine. Starting a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.running() {
		s.logger.Debug("Scheduler already running")
		return
	}

	s.Reset()
	s.Tick()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)

	t := s.Tempo()
	s.logger.Info("Scheduler started",
		zap.Int("bpm", t.BPM),
		zap.Int("beats_per_measure", t.BeatsPerMeasure))
}

func (s *Scheduler) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Stop halts the driver and waits for it. No event is delivered after Stop
// returns. Stop must not be called from the handler.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
		s.done = nil
	}

	s.tickMu.Lock()
	s.mu.Lock()
	wasPrimed := s.primed
	s.primed = false
	s.mu.Unlock()
	s.tickMu.Unlock()

	if wasPrimed {
		s.logger.Info("Scheduler stopped")
	}
}

// Running reports whether the driver goroutine is alive.
func (s *Scheduler) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running()
}

func (s *Scheduler) running() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Tick emits every beat due within the look-ahead window and returns them.
func (s *Scheduler) Tick() []Event {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.mu.Lock()
	var events []Event
	if s.primed {
		horizon := s.clock.Now() + s.lookAhead
		for s.nextTime <= horizon {
			events = append(events, Event{Beat: s.beat, Measure: s.measure, Time: s.nextTime})
			s.nextTime += s.tempo.BeatLength()
			s.beat++
			if s.beat >= s.tempo.BeatsPerMeasure {
				s.beat = 0
				s.measure++
			}
		}
	}
	s.mu.Unlock()

	if s.handler != nil {
		for _, ev := range events {
			s.handler(ev)
		}
	}
	return events
}

// SetTempo changes the bpm from the next beat on and returns the clamped
// value.
func (s *Scheduler) SetTempo(bpm int) int {
	bpm = ClampBPM(bpm)
	s.mu.Lock()
	s.tempo.BPM = bpm
	s.mu.Unlock()
	s.logger.Debug("Tempo changed", zap.Int("bpm", bpm))
	return bpm
}

// SetBeatsPerMeasure changes the meter. The next beat starts a new measure.
func (s *Scheduler) SetBeatsPerMeasure(n int) int {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	s.tempo.BeatsPerMeasure = n
	if s.beat != 0 {
		s.beat = 0
		s.measure++
	}
	s.mu.Unlock()
	return n
}

func (s *Scheduler) Tempo() Tempo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempo
}
