package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metalblueberry/guitarbuddy/pkg/engine"
	"github.com/metalblueberry/guitarbuddy/pkg/note"
	"github.com/metalblueberry/guitarbuddy/pkg/tuner"
)

var (
	tuneInput     string
	tuneTarget    string
	tuneReference bool
	tuneDuration  time.Duration
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Listen and print the detected note",
	Long: `Listen to the microphone, or replay a WAV file with --input, and print
every note change. With --target the offset in cents from that string or
note is printed as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(tuneDuration)
		defer cancel()

		eng, err := newEngine(tuneInput)
		if err != nil {
			return err
		}
		defer eng.Close()
		if err := requireCapabilities(eng, engine.Capabilities{Capture: true}); err != nil {
			return err
		}

		detector, err := cfg.Detector()
		if err != nil {
			return err
		}

		failed := make(chan error, 1)
		printer := &notePrinter{w: cmd.OutOrStdout()}
		session := tuner.New(eng,
			tuner.WithDetector(detector),
			tuner.WithRefresh(cfg.Tuner.Refresh),
			tuner.WithLogger(logger.Named("tuner")),
			tuner.OnReading(printer.print),
			tuner.OnError(func(err error) { failed <- err }),
		)

		if tuneTarget != "" {
			if tuneReference {
				err = session.PlayReference(tuneTarget)
			} else {
				var freq float64
				if freq, err = note.Lookup(tuneTarget); err == nil {
					err = session.SetTarget(freq)
				}
			}
			if err != nil {
				return err
			}
		}

		if err := session.Start(ctx); err != nil {
			return err
		}
		defer session.Stop()

		select {
		case <-ctx.Done():
			return nil
		case err := <-failed:
			return err
		}
	},
}

func init() {
	tuneCmd.Flags().StringVarP(&tuneInput, "input", "i", "", "WAV file to replay instead of the microphone")
	tuneCmd.Flags().StringVarP(&tuneTarget, "target", "t", "", "String or note to tune to, e.g. E2 or A4")
	tuneCmd.Flags().BoolVar(&tuneReference, "reference", false, "Play the target as a reference tone")
	tuneCmd.Flags().DurationVarP(&tuneDuration, "duration", "d", 0, "Stop after this long (0 runs until interrupted)")
}

// notePrinter writes a line whenever the detected note or tuning band
// changes.
type notePrinter struct {
	w        io.Writer
	previous string
}

func (p *notePrinter) print(r tuner.Reading) {
	line := "-"
	if r.HasNote {
		line = fmt.Sprintf("%-3s %7.2f Hz", r.Note, r.Estimate.Frequency)
		if r.HasCents {
			line += fmt.Sprintf(" %+4d cents %s %s", r.Cents, gauge(r.Position), r.Accuracy)
		}
	}
	if line == p.previous {
		return
	}
	p.previous = line
	fmt.Fprintln(p.w, line)
	logger.Debug("Reading",
		zap.Float64("frequency", r.Estimate.Frequency),
		zap.Float64("confidence", r.Estimate.Confidence))
}

// gauge draws the 0..100 indicator position as a 21 character bar.
func gauge(position int) string {
	bar := []byte("[----------|----------]")
	bar[1+position/5] = '*'
	return string(bar)
}
