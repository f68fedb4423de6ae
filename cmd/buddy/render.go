package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metalblueberry/guitarbuddy/pkg/engine"
)

var (
	renderBPM     int
	renderBeats   int
	renderSeconds float64
)

var renderCmd = &cobra.Command{
	Use:   "render <out.wav>",
	Short: "Write a click track to a WAV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tempo := cfg.Tempo()
		if renderBPM > 0 {
			tempo.BPM = renderBPM
		}
		if renderBeats > 0 {
			tempo.BeatsPerMeasure = renderBeats
		}
		tempo = tempo.Clamp()
		if renderSeconds <= 0 {
			return fmt.Errorf("seconds must be positive, got %v", renderSeconds)
		}

		buf := engine.RenderClickTrack(tempo, renderSeconds, cfg.Audio.SampleRate)
		if err := engine.WriteWAVFile(args[0], buf); err != nil {
			return err
		}

		logger.Info("Rendered click track",
			zap.String("file", args[0]),
			zap.Int("bpm", tempo.BPM),
			zap.Int("beats_per_measure", tempo.BeatsPerMeasure),
			zap.Float64("seconds", buf.Duration()))
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bpm, %.1fs)\n", args[0], tempo.BPM, buf.Duration())
		return nil
	},
}

func init() {
	renderCmd.Flags().IntVarP(&renderBPM, "bpm", "b", 0, "Tempo in beats per minute (default from config)")
	renderCmd.Flags().IntVar(&renderBeats, "beats", 0, "Beats per measure (default from config)")
	renderCmd.Flags().Float64VarP(&renderSeconds, "seconds", "s", 10, "Length of the track")
}
