// Package main provides the entry point for the brick detection service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brick-detector/internal/brick"
	"brick-detector/internal/config"
	"brick-detector/internal/logging"
	"brick-detector/internal/metrics"
	"brick-detector/internal/queue"
	"brick-detector/internal/reload"
	"brick-detector/internal/server"
	"brick-detector/internal/store"
	"brick-detector/internal/version"
	"brick-detector/internal/video"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	flagConfig       = "config"
	flagAddr         = "addr"
	flagPort         = "port"
	flagUploadDir    = "upload-dir"
	flagProcessedDir = "processed-dir"
	flagDB           = "db"
	flagQueueOrder   = "queue-order"
	flagDebug        = "debug"
	flagReload       = "reload"

	shutdownTimeout = 10 * time.Second
	reloadInterval  = 2 * time.Second
)

func main() {
	app := &cli.App{
		Name:    "brick-detector",
		Usage:   "detect and classify bricks in uploaded videos",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "YAML config file",
				EnvVars: []string{"BRICK_CONFIG"},
			},
			&cli.StringFlag{
				Name:  flagAddr,
				Usage: "listen address",
			},
			&cli.StringFlag{
				Name:    flagPort,
				Usage:   "listen port on all interfaces, overrides --addr",
				EnvVars: []string{"PORT"},
			},
			&cli.StringFlag{
				Name:  flagUploadDir,
				Usage: "directory for uploaded videos",
			},
			&cli.StringFlag{
				Name:  flagProcessedDir,
				Usage: "directory for annotated videos and detection logs",
			},
			&cli.StringFlag{
				Name:  flagDB,
				Usage: "path of the JSON record store",
			},
			&cli.StringFlag{
				Name:  flagQueueOrder,
				Usage: "lifo or fifo",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "log at debug level",
			},
			&cli.BoolFlag{
				Name:  flagReload,
				Usage: "restart when the binary is rebuilt (development)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig layers defaults, the config file and flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return nil, err
	}

	if c.IsSet(flagAddr) {
		cfg.Addr = c.String(flagAddr)
	}
	if c.IsSet(flagPort) {
		cfg.Addr = ":" + c.String(flagPort)
	}
	if c.IsSet(flagUploadDir) {
		cfg.UploadDir = c.String(flagUploadDir)
	}
	if c.IsSet(flagProcessedDir) {
		cfg.ProcessedDir = c.String(flagProcessedDir)
	}
	if c.IsSet(flagDB) {
		cfg.DBPath = c.String(flagDB)
	}
	if c.IsSet(flagQueueOrder) {
		cfg.QueueOrder = c.String(flagQueueOrder)
	}
	if c.IsSet(flagDebug) {
		cfg.Debug = c.Bool(flagDebug)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, err := logging.New("brick-detector", cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger.Infow("starting", "version", version.Version, "addr", cfg.Addr)

	for _, dir := range []string{cfg.UploadDir, cfg.ProcessedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	records, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}

	m := metrics.New()
	proc := video.NewProcessor(cfg.VideoOutput(), brick.NewDetector(cfg.Detection), m, logger.Named("video"))
	q := queue.New(proc, records,
		queue.WithOrder(cfg.Order()),
		queue.WithInfoPath(proc.LogPath),
		queue.WithMetrics(m),
		queue.WithLogger(logger.Named("queue")),
	)
	srv := server.New(cfg, records, q, proc.VideoPath, m, logger.Named("server"))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The one consumer, started before the listener accepts uploads.
	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		q.Run(runCtx)
	}()

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Infow("listening", "addr", cfg.Addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	watcher, reloadCh := watchBinary(runCtx, c.Bool(flagReload), logger)

	var runErr error
	restart := false
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case <-reloadCh:
		logger.Infow("binary rebuilt, restarting", "path", watcher.Path())
		restart = true
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	runErr = multierr.Append(runErr, httpServer.Shutdown(shutdownCtx))
	<-queueDone

	if restart && runErr == nil {
		logger.Sync()
		return watcher.Restart()
	}
	return runErr
}

// watchBinary starts the rebuild watcher when enabled. The returned channel
// is closed on a rebuild and never closed otherwise.
func watchBinary(ctx context.Context, enabled bool, logger *zap.SugaredLogger) (*reload.Watcher, <-chan struct{}) {
	ch := make(chan struct{})
	if !enabled {
		return nil, ch
	}

	w, err := reload.ForExecutable(reloadInterval)
	if err != nil {
		logger.Warnw("reload disabled", "error", err)
		return nil, ch
	}
	logger.Infow("watching binary", "path", w.Path(), "modified", w.Baseline().Format("15:04:05"))

	go func() {
		if w.Wait(ctx) == nil {
			close(ch)
		}
	}()
	return w, ch
}
