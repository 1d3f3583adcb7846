package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/YuminosukeSato/cropadvisor/pkg/api"
	"github.com/YuminosukeSato/cropadvisor/pkg/artifact"
	"github.com/YuminosukeSato/cropadvisor/pkg/config"
	"github.com/YuminosukeSato/cropadvisor/pkg/log"
)

// APICommand returns the cropadvisor-api root command.
func APICommand() *cli.Command {
	return &cli.Command{
		Name:    "cropadvisor-api",
		Usage:   "Serve crop recommendation, soil analysis and yield prediction over HTTP",
		Version: Version(),
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "`.env` file(s) to load instead of ./.env",
			},
			&cli.StringFlag{
				Name:  "models-dir",
				Usage: "directory holding the trained artifacts (env CROPADVISOR_MODELS_DIR)",
			},
			&cli.StringFlag{
				Name:  "address",
				Usage: "interface to listen on (env CROPADVISOR_ADDRESS)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "port to listen on (env PORT)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level: debug, info, warn, error (env LOG_LEVEL)",
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Usage: "time allowed for in-flight requests on shutdown",
			},
		},
		Action: runAPI,
	}
}

// apiConfig loads the environment and applies explicitly set flags.
func apiConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.StringSlice("env-file")...)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.IsSet("models-dir") {
		cfg.ModelsDir = cmd.String("models-dir")
	}
	if cmd.IsSet("address") {
		cfg.Address = cmd.String("address")
	}
	if cmd.IsSet("port") {
		cfg.Port = cmd.Int("port")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("shutdown-timeout") {
		cfg.ShutdownTimeout = cmd.Duration("shutdown-timeout")
	}
	return cfg, cfg.Validate()
}

func runAPI(ctx context.Context, cmd *cli.Command) error {
	cfg, err := apiConfig(cmd)
	if err != nil {
		return err
	}

	logger := log.SetupLogger(cfg.Level())
	logger.Info("starting cropadvisor-api",
		"version", version,
		"commit", commit,
		log.AddressKey, cfg.ListenAddr(),
		log.PathKey, cfg.ModelsDir,
	)

	set, errs := artifact.NewStore(cfg.ModelsDir, logger).Load()
	if len(errs) > 0 {
		logger.Warn("serving with missing artifacts", "missing", len(errs))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return api.NewServer(cfg, set, logger).Run(ctx)
}
