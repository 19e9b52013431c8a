// Package main is the carpart command line tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

// Version information - set by ldflags during build
var Version = "dev"

const (
	// Flags.
	flagConfig   = "config"
	flagMode     = "mode"
	flagChart    = "chart"
	flagTitle    = "title"
	flagManifest = "manifest"
	flagTest     = "test"
	flagOut      = "out"
	flagEpochs   = "epochs"
	flagProgress = "progress"
	flagModel    = "model"
	flagFrames   = "frames"
	flagForce    = "force"
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "carpart",
		Usage:   "score car photo framing and train the shooting-angle regressor",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
				EnvVars: []string{"CARPART_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "radar",
				Usage:     "select regions from one detections file and score each part",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagMode,
						Usage: "selection rules: image or video (default from config)",
					},
					&cli.StringFlag{
						Name:  flagChart,
						Usage: "write a radar chart PNG to `FILE`",
					},
					&cli.StringFlag{
						Name:  flagTitle,
						Usage: "chart title",
					},
				},
				Action: RadarAction,
			},
			{
				Name:      "frames",
				Usage:     "score every frame of a clip and summarize each part",
				ArgsUsage: "DIR|FILES...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagMode,
						Value: "video",
						Usage: "selection rules: image or video",
					},
					&cli.StringFlag{
						Name:  flagChart,
						Usage: "write a radar chart of the mean scores to `FILE`",
					},
					&cli.BoolFlag{
						Name:  flagFrames,
						Usage: "also print the per-frame scores",
					},
				},
				Action: FramesAction,
			},
			{
				Name:  "train",
				Usage: "train the shooting-angle regressor",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagManifest,
						Required: true,
						Usage:    "training manifest `CSV` (path,angle_x,angle_y)",
					},
					&cli.StringFlag{
						Name:  flagTest,
						Usage: "test manifest `CSV`, evaluated after training",
					},
					&cli.StringFlag{
						Name:     flagOut,
						Required: true,
						Usage:    "write the trained model to `FILE`",
					},
					&cli.IntFlag{
						Name:  flagEpochs,
						Usage: "number of epochs (default from config)",
					},
					&cli.BoolFlag{
						Name:  flagProgress,
						Usage: "show a progress bar per epoch",
					},
				},
				Action: TrainAction,
			},
			{
				Name:      "predict",
				Usage:     "predict the shooting angle of photos",
				ArgsUsage: "IMAGES...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagModel,
						Required: true,
						Usage:    "model `FILE` written by train",
					},
				},
				Action: PredictAction,
			},
			{
				Name:  "config",
				Usage: "manage the configuration file",
				Subcommands: []*cli.Command{
					{
						Name:      "init",
						Usage:     "write the default configuration to FILE",
						ArgsUsage: "FILE",
						Flags: []cli.Flag{
							&cli.BoolFlag{
								Name:  flagForce,
								Usage: "overwrite FILE if it exists",
							},
						},
						Action: ConfigInitAction,
					},
				},
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "carpart: %v\n", err)
		stop()
		os.Exit(1)
	}
}
