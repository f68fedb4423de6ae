package main

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/metalblueberry/guitarbuddy/pkg/engine"
	"github.com/metalblueberry/guitarbuddy/pkg/note"
	"github.com/metalblueberry/guitarbuddy/pkg/pitch"
)

var (
	analyzeWindow int
	analyzeHop    int
	analyzeJobs   int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.wav>",
	Short: "Print the notes found in a recording",
	Long: `Slide a window over a WAV recording, detect the pitch of every window
and print each run of the same note with its start and end time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(0)
		defer cancel()

		buf, err := engine.ReadWAVFile(args[0])
		if err != nil {
			return err
		}

		window := analyzeWindow
		if window <= 0 {
			window = cfg.Audio.BufferSize
		}
		hop := analyzeHop
		if hop <= 0 {
			hop = window / 2
		}

		logger.Info("Analyzing recording",
			zap.String("file", args[0]),
			zap.Float64("seconds", buf.Duration()),
			zap.Float64("sample_rate", buf.SampleRate),
			zap.Int("window", window),
			zap.Int("hop", hop))

		frames, err := analyzeFrames(ctx, buf, cfg.Detector, window, hop, analyzeJobs)
		if err != nil {
			return err
		}
		printSegments(cmd.OutOrStdout(), segments(frames, float64(window)/buf.SampleRate))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().IntVarP(&analyzeWindow, "window", "w", 0, "Samples per analysis window (default audio.buffer_size)")
	analyzeCmd.Flags().IntVar(&analyzeHop, "hop", 0, "Samples between windows (default half a window)")
	analyzeCmd.Flags().IntVarP(&analyzeJobs, "jobs", "j", runtime.NumCPU(), "Windows analyzed in parallel")
}

type frame struct {
	Time     float64
	Estimate pitch.Estimate
	Note     note.Result
	HasNote  bool
}

// analyzeFrames detects the pitch of every window of buf. Each worker builds
// its own detector since detectors may hold scratch buffers.
func analyzeFrames(ctx context.Context, buf engine.Buffer, newDetector func() (pitch.Detector, error), window, hop, jobs int) ([]frame, error) {
	if window <= 0 || hop <= 0 {
		return nil, fmt.Errorf("window and hop must be positive")
	}
	if len(buf.Samples) < window {
		return nil, nil
	}
	if jobs <= 0 {
		jobs = 1
	}

	count := (len(buf.Samples)-window)/hop + 1
	frames := make([]frame, count)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < jobs; w++ {
		g.Go(func() error {
			detector, err := newDetector()
			if err != nil {
				return err
			}
			for i := w; i < count; i += jobs {
				if err := ctx.Err(); err != nil {
					return err
				}
				start := i * hop
				f := frame{
					Time:     float64(start) / buf.SampleRate,
					Estimate: detector.Detect(buf.Samples[start:start+window], buf.SampleRate),
				}
				if f.Estimate.Detected() {
					if n, err := note.FromFrequency(f.Estimate.Frequency); err == nil {
						f.Note, f.HasNote = n, true
					}
				}
				frames[i] = f
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return frames, nil
}

type segment struct {
	Start     float64
	End       float64
	Note      note.Result
	Frequency float64 // mean of the detected frequencies
}

// segments merges consecutive frames on the same note. Frames without a
// note split segments and are dropped.
func segments(frames []frame, window float64) []segment {
	var out []segment
	var sum float64
	var n int
	open := false
	for _, f := range frames {
		if !f.HasNote {
			open = false
			continue
		}
		if open && sameNote(out[len(out)-1].Note, f.Note) {
			last := &out[len(out)-1]
			last.End = f.Time + window
			sum += f.Estimate.Frequency
			n++
			last.Frequency = sum / float64(n)
			continue
		}
		out = append(out, segment{
			Start:     f.Time,
			End:       f.Time + window,
			Note:      f.Note,
			Frequency: f.Estimate.Frequency,
		})
		sum, n = f.Estimate.Frequency, 1
		open = true
	}
	return out
}

// sameNote compares pitch classes; Result.Frequency holds the detected
// frequency and differs between frames.
func sameNote(a, b note.Result) bool {
	return a.Name == b.Name && a.Octave == b.Octave
}

func printSegments(w io.Writer, segs []segment) {
	if len(segs) == 0 {
		fmt.Fprintln(w, "no notes detected")
		return
	}
	for _, s := range segs {
		fmt.Fprintf(w, "%7.2fs %7.2fs  %-3s %7.2f Hz\n", s.Start, s.End, s.Note, s.Frequency)
	}
}
