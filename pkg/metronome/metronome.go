// Package metronome plays clicks through the engine on beats emitted by the
// look-ahead scheduler and reports each beat when it sounds.
package metronome

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/metalblueberry/guitarbuddy/pkg/scheduler"
)

// TempoStep is the bpm change of one tempo button press.
const TempoStep = 5

// Engine is the part of the audio engine the metronome needs.
type Engine interface {
	Resume() error
	Now() float64
	ScheduleClick(at float64, accent bool) error
}

type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

type Option func(*Session)

func WithTempo(t scheduler.Tempo) Option {
	return func(s *Session) { s.tempo = t }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithSchedulerOptions passes options through to the beat scheduler.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(s *Session) { s.schedOpts = append(s.schedOpts, opts...) }
}

// OnBeat registers the listener called when a beat sounds. It runs on a
// timer goroutine and must not call Stop.
func OnBeat(fn func(scheduler.Event)) Option {
	return func(s *Session) { s.onBeat = fn }
}

// Session is a metronome bound to an engine.
type Session struct {
	engine    Engine
	tempo     scheduler.Tempo
	logger    *zap.Logger
	onBeat    func(scheduler.Event)
	schedOpts []scheduler.Option
	sched     *scheduler.Scheduler

	// opMu serialises Start and Stop.
	opMu sync.Mutex

	mu      sync.Mutex
	state   State
	run     uint64
	runCtx  context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	nextID  uint64
	timers  map[uint64]*time.Timer
	pending sync.WaitGroup
}

// New returns an idle metronome at 120 bpm in four unless configured
// otherwise.
func New(eng Engine, opts ...Option) *Session {
	s := &Session{
		engine: eng,
		tempo:  scheduler.DefaultTempo(),
		logger: zap.NewNop(),
		timers: make(map[uint64]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	schedOpts := append([]scheduler.Option{scheduler.WithLogger(s.logger)}, s.schedOpts...)
	s.sched = scheduler.New(eng, s.tempo, s.handle, schedOpts...)
	return s
}

// Start resumes the audio output and begins scheduling beats. Starting a
// running metronome does nothing. Cancelling ctx stops the metronome as Stop
// would.
func (s *Session) Start(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	state, runCtx, done := s.state, s.runCtx, s.done
	s.mu.Unlock()

	if state == Running {
		if runCtx.Err() == nil {
			s.logger.Debug("Metronome already running")
			return nil
		}
		// the previous run is winding down after its context ended
		<-done
	}

	if err := s.engine.Resume(); err != nil {
		s.logger.Error("Failed to start metronome", zap.Error(err))
		return fmt.Errorf("start metronome: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done = make(chan struct{})

	s.mu.Lock()
	s.state = Running
	s.run++
	s.runCtx = ctx
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.sched.Start(ctx)
	go s.watch(ctx, done)
	return nil
}

// Stop halts scheduling. Clicks already queued in the engine still sound,
// but no beat is reported after Stop returns.
func (s *Session) Stop() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// watch tears the run down once its context ends, either through Stop or
// through the caller's context.
func (s *Session) watch(ctx context.Context, done chan struct{}) {
	defer close(done)
	<-ctx.Done()

	s.sched.Stop()

	s.mu.Lock()
	s.state = Idle
	s.run++
	for id, t := range s.timers {
		if t.Stop() {
			s.pending.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.pending.Wait()
	s.logger.Info("Metronome stopped")
}

func (s *Session) handle(ev scheduler.Event) {
	if err := s.engine.ScheduleClick(ev.Time, ev.Accent()); err != nil {
		s.logger.Warn("Failed to schedule click", zap.Int("beat", ev.Beat), zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running || s.onBeat == nil {
		return
	}
	run := s.run
	s.nextID++
	id := s.nextID
	delay := time.Duration((ev.Time - s.engine.Now()) * float64(time.Second))

	s.pending.Add(1)
	s.timers[id] = time.AfterFunc(max(delay, 0), func() {
		defer s.pending.Done()

		s.mu.Lock()
		current := s.run == run
		delete(s.timers, id)
		s.mu.Unlock()

		if current {
			s.onBeat(ev)
		}
	})
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Tempo() scheduler.Tempo {
	return s.sched.Tempo()
}

// SetTempo changes the bpm live and returns the clamped value.
func (s *Session) SetTempo(bpm int) int {
	return s.sched.SetTempo(bpm)
}

// ChangeTempo nudges the bpm by delta.
func (s *Session) ChangeTempo(delta int) int {
	return s.SetTempo(s.Tempo().BPM + delta)
}

func (s *Session) SetBeatsPerMeasure(n int) int {
	return s.sched.SetBeatsPerMeasure(n)
}
