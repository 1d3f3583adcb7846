package cli

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/YuminosukeSato/cropadvisor/pkg/artifact"
	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
	"github.com/YuminosukeSato/cropadvisor/pkg/log"
	"github.com/YuminosukeSato/cropadvisor/pkg/training"
)

const defaultDataset = "Crop_recommendation_with_fertilizer.csv"

// trainStep runs one trainer command on a loaded frame.
type trainStep func(t *training.Trainer, frame *training.Frame) (*training.Report, error)

// TrainCommand returns the cropadvisor-train root command.
func TrainCommand() *cli.Command {
	defaults := training.DefaultOptions()
	return &cli.Command{
		Name:    "cropadvisor-train",
		Usage:   "Train the crop advisor models from CSV datasets",
		Version: Version(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "input CSV `file`",
				Value:   defaultDataset,
			},
			&cli.StringFlag{
				Name:    "models-dir",
				Usage:   "output directory for artifacts and reports",
				Sources: cli.EnvVars("CROPADVISOR_MODELS_DIR"),
				Value:   "models",
			},
			&cli.IntFlag{
				Name:  "n-estimators",
				Usage: "number of trees per forest",
				Value: defaults.NEstimators,
			},
			&cli.IntFlag{
				Name:  "max-depth",
				Usage: "maximum tree depth (0 = unlimited)",
			},
			&cli.Int64Flag{
				Name:  "seed",
				Usage: "random seed",
				Value: defaults.RandomState,
			},
			&cli.IntFlag{
				Name:  "n-jobs",
				Usage: "parallel tree fits (<= 0 uses every CPU)",
				Value: defaults.NJobs,
			},
			&cli.FloatFlag{
				Name:  "lower-quantile",
				Usage: "lower bound quantile for ideal ranges",
				Value: defaults.LowerQuantile,
			},
			&cli.FloatFlag{
				Name:  "upper-quantile",
				Usage: "upper bound quantile for ideal ranges",
				Value: defaults.UpperQuantile,
			},
			&cli.BoolFlag{
				Name:  "plot",
				Usage: "render a feature importance chart next to each report",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level: debug, info, warn, error",
				Sources: cli.EnvVars("LOG_LEVEL"),
				Value:   "info",
			},
		},
		Commands: []*cli.Command{
			trainCommand("fertilizer", "Train the fertilizer recommendation model", (*training.Trainer).Fertilizer),
			trainCommand("crop", "Train the crop recommendation model", (*training.Trainer).Crop),
			trainCommand("yield", "Train the yield model and its crop label encoder", (*training.Trainer).Yield),
			trainCommand("ranges", "Derive ideal_ranges.json from a labelled crop dataset", (*training.Trainer).Ranges),
			trainCommand("all", "Train crop, yield and ranges from one dataset",
				(*training.Trainer).Crop, (*training.Trainer).Yield, (*training.Trainer).Ranges),
		},
	}
}

func trainCommand(name, usage string, steps ...trainStep) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runTraining(ctx, cmd, steps)
		},
	}
}

func trainOptions(cmd *cli.Command) training.Options {
	return training.Options{
		NEstimators:   cmd.Int("n-estimators"),
		MaxDepth:      cmd.Int("max-depth"),
		RandomState:   cmd.Int64("seed"),
		NJobs:         cmd.Int("n-jobs"),
		LowerQuantile: cmd.Float("lower-quantile"),
		UpperQuantile: cmd.Float("upper-quantile"),
		Plot:          cmd.Bool("plot"),
		Source:        cmd.String("data"),
	}
}

func runTraining(ctx context.Context, cmd *cli.Command, steps []trainStep) error {
	level, err := log.ParseLevel(cmd.String("log-level"))
	if err != nil {
		return err
	}
	logger := log.NewConsoleLogger(os.Stderr, level)

	frame, err := training.ReadCSVFile(cmd.String("data"))
	if err != nil {
		return err
	}
	logger.Info("dataset loaded",
		log.PathKey, cmd.String("data"),
		log.SamplesKey, frame.Len(),
		log.FeaturesKey, len(frame.Columns()),
	)

	store := artifact.NewStore(cmd.String("models-dir"), logger)
	trainer := training.NewTrainer(store, logger, trainOptions(cmd))
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "training interrupted")
		}
		if _, err := step(trainer, frame); err != nil {
			logger.Error("training failed", err)
			return err
		}
	}
	logger.Info("training complete", log.PathKey, store.Dir())
	return nil
}
