package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metalblueberry/guitarbuddy/pkg/engine"
	"github.com/metalblueberry/guitarbuddy/pkg/metronome"
	"github.com/metalblueberry/guitarbuddy/pkg/scheduler"
)

var (
	metronomeBPM      int
	metronomeBeats    int
	metronomeDuration time.Duration
)

var metronomeCmd = &cobra.Command{
	Use:   "metronome",
	Short: "Play a click track",
	Long: `Play a metronome click, accented on the first beat of every measure.

While running, type a line on stdin to change the tempo:
  +        faster by 5 bpm
  -        slower by 5 bpm
  <n>      set the tempo to n bpm
  /<n>     set n beats per measure`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(metronomeDuration)
		defer cancel()

		tempo := cfg.Tempo()
		if metronomeBPM > 0 {
			tempo.BPM = metronomeBPM
		}
		if metronomeBeats > 0 {
			tempo.BeatsPerMeasure = metronomeBeats
		}

		eng, err := newEngine("")
		if err != nil {
			return err
		}
		defer eng.Close()
		if err := requireCapabilities(eng, engine.Capabilities{Audio: true}); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		session := metronome.New(eng,
			metronome.WithTempo(tempo.Clamp()),
			metronome.WithLogger(logger.Named("metronome")),
			metronome.WithSchedulerOptions(
				scheduler.WithLookAhead(cfg.Metronome.LookAhead),
				scheduler.WithInterval(cfg.Metronome.Interval),
			),
			metronome.OnBeat(func(ev scheduler.Event) {
				fmt.Fprintln(out, beatLine(ev))
			}),
		)

		if err := session.Start(ctx); err != nil {
			return err
		}
		defer session.Stop()

		t := session.Tempo()
		fmt.Fprintf(out, "%d bpm, %d beats per measure\n", t.BPM, t.BeatsPerMeasure)

		go readTempoCommands(cmd.InOrStdin(), out, session)

		<-ctx.Done()
		return nil
	},
}

func init() {
	metronomeCmd.Flags().IntVarP(&metronomeBPM, "bpm", "b", 0, "Tempo in beats per minute (default from config)")
	metronomeCmd.Flags().IntVar(&metronomeBeats, "beats", 0, "Beats per measure (default from config)")
	metronomeCmd.Flags().DurationVarP(&metronomeDuration, "duration", "d", 0, "Stop after this long (0 runs until interrupted)")
}

func beatLine(ev scheduler.Event) string {
	if ev.Accent() {
		return fmt.Sprintf("%3d | TICK", ev.Measure+1)
	}
	return fmt.Sprintf("%3d |  %d", ev.Measure+1, ev.Beat+1)
}

// tempoSession is the part of the metronome driven from stdin.
type tempoSession interface {
	ChangeTempo(delta int) int
	SetTempo(bpm int) int
	SetBeatsPerMeasure(n int) int
}

func readTempoCommands(in io.Reader, out io.Writer, s tempoSession) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if msg, ok := applyTempoCommand(line, s); ok {
			fmt.Fprintln(out, msg)
		} else if line != "" {
			logger.Warn("Unknown metronome command", zap.String("command", line))
		}
	}
}

func applyTempoCommand(line string, s tempoSession) (string, bool) {
	switch {
	case line == "+":
		return fmt.Sprintf("%d bpm", s.ChangeTempo(metronome.TempoStep)), true
	case line == "-":
		return fmt.Sprintf("%d bpm", s.ChangeTempo(-metronome.TempoStep)), true
	case strings.HasPrefix(line, "/"):
		n, err := strconv.Atoi(line[1:])
		if err != nil {
			return "", false
		}
		return fmt.Sprintf("%d beats per measure", s.SetBeatsPerMeasure(n)), true
	default:
		n, err := strconv.Atoi(line)
		if err != nil {
			return "", false
		}
		return fmt.Sprintf("%d bpm", s.SetTempo(n)), true
	}
}
