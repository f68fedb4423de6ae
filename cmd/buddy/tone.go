package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/metalblueberry/guitarbuddy/pkg/engine"
	"github.com/metalblueberry/guitarbuddy/pkg/note"
)

var toneCmd = &cobra.Command{
	Use:   "tone [string|note|test]",
	Short: "Play a reference tone",
	Long: `Play the reference tone of a guitar string (E2 A2 D3 G3 B3 E4), of any
note such as C#4, or the 440 Hz test tone when called with "test" or no
argument.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(0)
		defer cancel()

		eng, err := newEngine("")
		if err != nil {
			return err
		}
		defer eng.Close()
		if err := requireCapabilities(eng, engine.Capabilities{Audio: true}); err != nil {
			return err
		}

		name := "test"
		if len(args) == 1 {
			name = args[0]
		}

		var length float64
		if name == "test" {
			err = eng.PlayTestTone()
			length = engine.TestTone().Envelope.Duration()
			fmt.Fprintf(cmd.OutOrStdout(), "test tone %.0f Hz\n", engine.TestToneFrequency)
		} else {
			var freq float64
			freq, err = note.Lookup(name)
			if err != nil {
				return err
			}
			err = eng.PlayReference(freq)
			length = engine.ReferenceTone(freq).Envelope.Duration()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %.2f Hz\n", name, freq)
		}
		if err != nil {
			return err
		}

		select {
		case <-time.After(time.Duration(length * float64(time.Second))):
		case <-ctx.Done():
		}
		return nil
	},
}
