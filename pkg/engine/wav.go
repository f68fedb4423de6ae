package engine

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Buffer is a mono block of samples in [-1, 1].
type Buffer struct {
	Samples    []float32
	SampleRate float64
	// Partial is set when capture has not filled the window yet. The
	// oldest samples are then zeros.
	Partial bool
}

// Duration returns the buffer length in seconds.
func (b Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / b.SampleRate
}

// ErrInvalidWAV is returned for input that is not a PCM WAV file.
var ErrInvalidWAV = errors.New("engine: invalid wav file")

// ReadWAV decodes a PCM WAV stream into a mono buffer, averaging channels.
func ReadWAV(r io.ReadSeeker) (Buffer, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return Buffer{}, ErrInvalidWAV
	}

	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("read wav samples: %w", err)
	}

	channels := int(decoder.NumChans)
	if channels < 1 {
		return Buffer{}, fmt.Errorf("%w: %d channels", ErrInvalidWAV, channels)
	}
	maxVal := float64(int(1) << (uint(decoder.BitDepth) - 1))

	frames := len(pcm.Data) / channels
	samples := make([]float32, frames)
	for i := range samples {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += pcm.Data[i*channels+c]
		}
		samples[i] = float32(float64(sum) / float64(channels) / maxVal)
	}

	return Buffer{Samples: samples, SampleRate: float64(decoder.SampleRate)}, nil
}

// ReadWAVFile opens and decodes a WAV file.
func ReadWAVFile(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, err
	}
	defer f.Close()

	buf, err := ReadWAV(f)
	if err != nil {
		return Buffer{}, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}

// WriteWAV encodes buf as mono PCM with the given bit depth (16 or 24).
func WriteWAV(w io.WriteSeeker, buf Buffer, bitDepth int) error {
	if bitDepth != 16 && bitDepth != 24 {
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	maxVal := float64(int(1)<<(bitDepth-1) - 1)
	data := make([]int, len(buf.Samples))
	for i, s := range buf.Samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		data[i] = int(math.Round(v * maxVal))
	}

	sampleRate := int(buf.SampleRate)
	encoder := wav.NewEncoder(w, sampleRate, bitDepth, 1, 1)
	err := encoder.Write(&audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	})
	if err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("finish wav file: %w", err)
	}
	return nil
}

// WriteWAVFile writes buf to path as 16 bit PCM.
func WriteWAVFile(path string, buf Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, buf, 16); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
