package engine

import (
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Output is an audio device that pulls mono float32 little endian frames.
type Output interface {
	NewPlayer(r io.Reader) Player
	Resume() error
	Suspend() error
}

// Player plays one stream from an Output.
type Player interface {
	Play()
	Pause()
	Close() error
}

// OtoOutput plays through the system audio device. Only one may exist per
// process.
type OtoOutput struct {
	context    *oto.Context
	sampleRate float64
	buffer     time.Duration
}

// NewOtoOutput opens the audio device and waits until it is ready. The device
// starts suspended.
func NewOtoOutput(sampleRate float64, buffer time.Duration) (*OtoOutput, error) {
	context, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(sampleRate),
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   buffer,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready

	if err := context.Suspend(); err != nil {
		return nil, fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return &OtoOutput{context: context, sampleRate: sampleRate, buffer: buffer}, nil
}

func (o *OtoOutput) NewPlayer(r io.Reader) Player {
	p := o.context.NewPlayer(r)
	if o.buffer > 0 {
		// 4 bytes per mono float32 frame.
		p.SetBufferSize(int(o.buffer.Seconds()*o.sampleRate) * 4)
	}
	return &otoPlayer{player: p}
}

func (o *OtoOutput) Resume() error {
	if err := o.context.Resume(); err != nil {
		return fmt.Errorf("cannot resume oto context: %w", err)
	}
	return nil
}

func (o *OtoOutput) Suspend() error {
	if err := o.context.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

type otoPlayer struct {
	player *oto.Player
}

func (p *otoPlayer) Play()  { p.player.Play() }
func (p *otoPlayer) Pause() { p.player.Pause() }

// Close stops pulling from the reader. The oto player itself is released
// with its context.
func (p *otoPlayer) Close() error {
	p.player.Pause()
	return p.player.Err()
}
