package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ReplayInput feeds a recorded buffer to the capture graph in real time,
// standing in for a microphone.
type ReplayInput struct {
	load func() (Buffer, error)
	loop bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFileInput replays a WAV file. The file is decoded on every Start.
func NewFileInput(path string, loop bool) *ReplayInput {
	return &ReplayInput{
		load: func() (Buffer, error) { return ReadWAVFile(path) },
		loop: loop,
	}
}

// NewBufferInput replays buf.
func NewBufferInput(buf Buffer, loop bool) *ReplayInput {
	return &ReplayInput{
		load: func() (Buffer, error) { return buf, nil },
		loop: loop,
	}
}

func (r *ReplayInput) Start(cfg CaptureConfig, sink func([]float32)) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return 0, fmt.Errorf("replay input already started")
	}

	buf, err := r.load()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if len(buf.Samples) == 0 || buf.SampleRate <= 0 {
		return 0, fmt.Errorf("%w: empty recording", ErrDeviceUnavailable)
	}

	frames := cfg.FramesPerBuffer
	if frames <= 0 {
		frames = DefaultFramesPerBuffer
	}
	period := time.Duration(float64(frames) / buf.SampleRate * float64(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx, r.done, buf.Samples, frames, period, sink)

	return buf.SampleRate, nil
}

func (r *ReplayInput) run(ctx context.Context, done chan<- struct{}, samples []float32, frames int, period time.Duration, sink func([]float32)) {
	defer close(done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	block := make([]float32, frames)
	pos := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if pos >= len(samples) {
			if !r.loop {
				continue
			}
			pos = 0
		}
		n := copy(block, samples[pos:])
		pos += n
		sink(block[:n])
	}
}

func (r *ReplayInput) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel == nil {
		return nil
	}
	r.cancel()
	<-r.done
	r.cancel = nil
	r.done = nil
	return nil
}
