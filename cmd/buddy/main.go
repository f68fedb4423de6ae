package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metalblueberry/guitarbuddy/pkg/config"
	"github.com/metalblueberry/guitarbuddy/pkg/engine"
	"github.com/metalblueberry/guitarbuddy/pkg/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "buddy",
	Short: "Guitar tuner and metronome",
	Long: `buddy is a musician's toolkit: a chromatic tuner listening to the
microphone (or a WAV file), a sample accurate metronome and reference tones
for the six strings of a guitar in standard tuning.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.Logging.Development)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "guitarbuddy.yaml", "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(tuneCmd)
	rootCmd.AddCommand(metronomeCmd)
	rootCmd.AddCommand(toneCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(renderCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext is cancelled on interrupt or after d, when d is positive.
func signalContext(d time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if d <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}

// newEngine builds the engine from configuration. input overrides the
// configured input file.
func newEngine(input string) (*engine.Engine, error) {
	opts := []engine.Option{engine.WithLogger(logger.Named("engine"))}
	if input != "" {
		opts = append(opts, engine.WithInput(engine.NewFileInput(input, cfg.Audio.LoopInput)))
	} else if in := cfg.Input(); in != nil {
		opts = append(opts, engine.WithInput(in))
	}

	e, err := engine.New(cfg.EngineConfig(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio engine: %w", err)
	}
	return e, nil
}

type capabilityReporter interface {
	Capabilities() engine.Capabilities
}

// requireCapabilities fails with engine.ErrUnsupported when the platform
// lacks something the command needs.
func requireCapabilities(r capabilityReporter, need engine.Capabilities) error {
	have := r.Capabilities()
	if need.Capture && !have.Capture {
		return fmt.Errorf("%w: audio capture", engine.ErrUnsupported)
	}
	if need.Audio && !have.Audio {
		return fmt.Errorf("%w: audio output", engine.ErrUnsupported)
	}
	return nil
}
