// Copyright 2016 Hajime Hoshi
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metalblueberry/guitarbuddy/pkg/config"
	"github.com/metalblueberry/guitarbuddy/pkg/engine"
	"github.com/metalblueberry/guitarbuddy/pkg/logging"
	"github.com/metalblueberry/guitarbuddy/pkg/metronome"
	"github.com/metalblueberry/guitarbuddy/pkg/scheduler"
	"github.com/metalblueberry/guitarbuddy/pkg/tuner"
)

const (
	screenWidth  = 640
	screenHeight = 480
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "app",
	Short:        "Guitar tuner and metronome window",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "guitarbuddy.yaml", "Config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	opts := []engine.Option{engine.WithLogger(logger.Named("engine"))}
	if in := cfg.Input(); in != nil {
		opts = append(opts, engine.WithInput(in))
	}
	eng, err := engine.New(cfg.EngineConfig(), opts...)
	if err != nil {
		return err
	}
	defer eng.Close()

	detector, err := cfg.Detector()
	if err != nil {
		return err
	}

	g := &Game{
		ctx:    ctx,
		engine: eng,
		logger: logger,
	}
	g.tuner = tuner.New(eng,
		tuner.WithDetector(detector),
		tuner.WithRefresh(cfg.Tuner.Refresh),
		tuner.WithLogger(logger.Named("tuner")),
		tuner.OnError(g.report),
	)
	g.metronome = metronome.New(eng,
		metronome.WithTempo(cfg.Tempo()),
		metronome.WithLogger(logger.Named("metronome")),
		metronome.WithSchedulerOptions(
			scheduler.WithLookAhead(cfg.Metronome.LookAhead),
			scheduler.WithInterval(cfg.Metronome.Interval),
		),
		metronome.OnBeat(g.flash.beat),
	)
	defer g.metronome.Stop()
	defer g.tuner.Stop()

	caps := eng.Capabilities()
	logger.Info("Ready", zap.Bool("audio", caps.Audio), zap.Bool("capture", caps.Capture))
	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("Guitar Buddy")
	return ebiten.RunGame(g)
}
