package engine

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Input is a capture source. Start delivers sample blocks to sink from the
// input's own goroutine until Stop returns. It reports the sample rate the
// device actually runs at.
type Input interface {
	Start(cfg CaptureConfig, sink func([]float32)) (float64, error)
	Stop() error
}

// PortAudioInput captures from the default input device.
type PortAudioInput struct {
	mu     sync.Mutex
	stream *portaudio.Stream
}

// NewPortAudioInput returns an idle microphone input.
func NewPortAudioInput() *PortAudioInput {
	return &PortAudioInput{}
}

func (p *PortAudioInput) Start(cfg CaptureConfig, sink func([]float32)) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return 0, fmt.Errorf("portaudio input already started")
	}

	if err := portaudio.Initialize(); err != nil {
		return 0, fmt.Errorf("%w: initialize portaudio: %v", ErrDeviceUnavailable, err)
	}

	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		portaudio.Terminate()
		return 0, fmt.Errorf("%w: default input device: %v", ErrDeviceUnavailable, err)
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = cfg.Channels
	params.SampleRate = cfg.SampleRate
	params.FramesPerBuffer = cfg.FramesPerBuffer

	stream, err := portaudio.OpenStream(params, func(in []float32) {
		sink(in)
	})
	if err != nil {
		portaudio.Terminate()
		return 0, fmt.Errorf("%w: open %s: %v", ErrDeviceUnavailable, dev.Name, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return 0, fmt.Errorf("%w: start %s: %v", ErrDeviceUnavailable, dev.Name, err)
	}

	p.stream = stream
	return stream.Info().SampleRate, nil
}

func (p *PortAudioInput) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}

	stream := p.stream
	p.stream = nil

	err := stream.Stop()
	if cerr := stream.Close(); err == nil {
		err = cerr
	}
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	if err != nil {
		return fmt.Errorf("stop portaudio input: %w", err)
	}
	return nil
}
