package main

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/spf13/cobra"

	"github.com/vango-dev/place/internal/config"
	placeerrors "github.com/vango-dev/place/internal/errors"
	"github.com/vango-dev/place/internal/telemetry"
	"github.com/vango-dev/place/pkg/canvas"
	"github.com/vango-dev/place/pkg/hub"
	"github.com/vango-dev/place/pkg/server"
	"github.com/vango-dev/place/pkg/snapshot"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the canvas server",
		Long: `Run the canvas server.

The canvas is restored from the save location on startup, saved every
--save-interval (or on --save-cron), and saved once more on shutdown.

Examples:
  place serve
  place serve --width 500 --height 500 --save-location canvas.bmp
  PLACE_SAVE_INTERVAL=30s place serve --metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	printBanner(cmd.OutOrStdout())
	if cfg.File != "" {
		logger.Info("config file loaded", "path", cfg.File)
	}
	return serve(cmd.Context(), cfg, logger, nil)
}

// serve runs the whole process: restore, listen, schedule saves, and on
// ctx cancellation or a signal, shut down and save once more. ready, when
// non-nil, receives the bound address once the listener is open.
func serve(ctx context.Context, cfg config.Config, logger *slog.Logger, ready func(net.Addr)) error {
	if ctx == nil {
		ctx = context.Background()
	}

	tp, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, version, logger)
	if err != nil {
		return placeerrors.New(placeerrors.CodeInvalidConfig).WithField(config.KeyOTLPEndpoint).Wrap(err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if terr := tp.Shutdown(sctx); terr != nil {
			logger.Warn("telemetry shutdown failed", "error", terr)
		}
	}()

	file, err := newSnapshotFile(ctx, cfg, logger)
	if err != nil {
		return err
	}

	store := canvas.NewStore(cfg.Width, cfg.Height)
	if err := snapshot.Restore(ctx, store, file, logger); err != nil {
		if errors.Is(err, snapshot.ErrNotRegularFile) {
			return placeerrors.New(placeerrors.CodeNotRegularFile).WithField(config.KeySaveLocation).Wrap(err)
		}
		return placeerrors.New(placeerrors.CodeRestoreFailed).WithField(config.KeySaveLocation).Wrap(err)
	}

	var metrics *server.Metrics
	if cfg.MetricsEnabled {
		metrics = server.NewMetrics()
	}

	h := hub.New(hub.WithBuffer(cfg.HubBuffer), hub.WithLogger(logger))
	srv := server.New(serverConfig(cfg), store, h,
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithCodec(file.Codec()))

	schedOpts := []snapshot.SchedulerOption{
		snapshot.WithSchedulerLogger(logger),
		snapshot.WithOnSave(metrics.ObserveSave),
	}
	if cfg.SaveCron != "" {
		schedOpts = append(schedOpts, snapshot.WithCron(cfg.SaveCron))
	} else {
		schedOpts = append(schedOpts, snapshot.WithInterval(cfg.SaveInterval))
	}
	sched, err := snapshot.NewScheduler(store, file, schedOpts...)
	if err != nil {
		_ = srv.Shutdown(context.Background())
		return placeerrors.New(placeerrors.CodeInvalidSchedule).WithField(config.KeySaveCron).Wrap(err)
	}

	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		_ = srv.Shutdown(context.Background())
		return placeerrors.New(placeerrors.CodeListenFailed).
			WithField(config.KeyAddress).
			WithDetailf("Address %s could not be bound.", cfg.Address).
			Wrap(err)
	}

	if err := sched.Start(); err != nil {
		_ = ln.Close()
		_ = srv.Shutdown(context.Background())
		return err
	}
	logger.Info("place ready",
		"address", ln.Addr().String(),
		"width", cfg.Width,
		"height", cfg.Height,
		"image", cfg.ImagePath(),
		"save_location", file.Path(),
		"next_save", sched.Next())
	if ready != nil {
		ready(ln.Addr())
	}

	serveErr := srv.Serve(ctx, ln)

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		logger.Warn("scheduler did not stop in time", "error", err)
	}
	if err := sched.Flush(stopCtx); err != nil {
		return placeerrors.New(placeerrors.CodeSaveFailed).WithField(config.KeySaveLocation).Wrap(err)
	}
	if serveErr != nil {
		return placeerrors.New(placeerrors.CodeShutdownFailed).Wrap(serveErr)
	}
	logger.Info("goodbye")
	return nil
}

// newSnapshotFile opens the save location, with the S3 mirror attached when
// a bucket is configured.
func newSnapshotFile(ctx context.Context, cfg config.Config, logger *slog.Logger) (*snapshot.File, error) {
	opts := []snapshot.FileOption{
		snapshot.WithArchive(cfg.SaveAllImages),
		snapshot.WithFileLogger(logger),
	}
	if cfg.MirrorEnabled() {
		mirror, err := snapshot.NewS3Mirror(ctx, snapshot.S3Config{
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
		if err != nil {
			return nil, placeerrors.New(placeerrors.CodeMirrorSetup).WithField(config.KeyS3Bucket).Wrap(err)
		}
		logger.Info("snapshot mirror enabled", "bucket", mirror.Bucket(), "prefix", cfg.S3Prefix)
		opts = append(opts, snapshot.WithMirror(mirror))
	}

	file, err := snapshot.NewFile(cfg.SaveLocation, opts...)
	if err != nil {
		return nil, placeerrors.New(placeerrors.CodeUnsupportedFormat).WithField(config.KeySaveLocation).Wrap(err)
	}
	return file, nil
}

// serverConfig maps the resolved configuration onto the server's.
func serverConfig(cfg config.Config) *server.ServerConfig {
	sc := server.DefaultSessionConfig()
	sc.ReadTimeout = cfg.ReadTimeout
	sc.WriteTimeout = cfg.WriteTimeout
	sc.HeartbeatInterval = cfg.HeartbeatInterval
	sc.MaxMessageSize = cfg.MaxMessageSize
	sc.MaxOutboundQueue = cfg.MaxOutboundQueue

	c := server.DefaultServerConfig().
		WithAddress(cfg.Address).
		WithSessionConfig(sc).
		WithMaxSessions(cfg.MaxSessions).
		WithImagePath(cfg.ImagePath())
	c.ApplierQueue = cfg.ApplierQueue
	c.ShutdownTimeout = cfg.ShutdownTimeout
	return c
}
