package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/visionstack/multicam/internal/aggregator"
	"github.com/visionstack/multicam/internal/camera"
	"github.com/visionstack/multicam/internal/infrastructure/config"
	"github.com/visionstack/multicam/internal/infrastructure/logging"
	"github.com/visionstack/multicam/internal/journal"
	"github.com/visionstack/multicam/internal/pipeline"
	"github.com/visionstack/multicam/internal/server"
	"github.com/visionstack/multicam/internal/source"
)

func main() {
	// Flags override the environment for the knobs operators reach for
	// most often.
	rigPath := flag.String("rig", "", "Rig calibration YAML path (default: synthetic rig)")
	cameras := flag.Int("cameras", 0, "Camera count for the synthetic rig")
	workers := flag.Int("workers", 0, "Worker pool size")
	port := flag.Int("port", 0, "Ops HTTP port")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *rigPath != "" {
		cfg.Aggregator.RigPath = *rigPath
	}
	if *cameras > 0 {
		cfg.Aggregator.Cameras = *cameras
	}
	if *workers > 0 {
		cfg.Aggregator.Workers = *workers
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("multicamd failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	rig, err := loadRig(cfg, logger)
	if err != nil {
		return err
	}

	producers := make([]pipeline.Producer, rig.NumCameras())
	for i := range producers {
		producers[i] = pipeline.NewNull(rig.Camera(i), false)
	}

	var observers []aggregator.Observer
	var jnl *journal.Journal
	if cfg.Journal.Enabled {
		jnl, err = journal.Open(cfg.Journal.Path, logger.Named("journal"))
		if err != nil {
			return err
		}
		defer jnl.Close()
		observers = append(observers, jnl)
		logger.Info("journal enabled", zap.String("path", cfg.Journal.Path))
	}

	agg, err := aggregator.New(aggregator.Config{
		Producers:   producers,
		InputRig:    rig,
		OutputRig:   rig,
		Workers:     cfg.Aggregator.Workers,
		ToleranceNs: cfg.Aggregator.ToleranceNs,
		Logger:      logger.Named("aggregator"),
		Observers:   observers,
	})
	if err != nil {
		return err
	}
	defer agg.Close()

	src, err := source.New(agg, source.Config{
		FPS:      cfg.Source.FPS,
		JitterNs: cfg.Source.JitterNs,
		Seed:     cfg.Source.Seed,
		Logger:   logger.Named("source"),
	})
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, agg, jnl, logger.Named("http"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 2)
	go func() { errChan <- srv.Run() }()
	go func() { _ = src.Run(ctx); errChan <- nil }()
	go consume(ctx, agg, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	cancel()
	agg.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// loadRig builds the camera rig from calibration YAML or, without one,
// a synthetic default.
func loadRig(cfg *config.Config, logger *logging.Logger) (*camera.Rig, error) {
	if cfg.Aggregator.RigPath != "" {
		rig, err := camera.LoadRig(cfg.Aggregator.RigPath)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded rig calibration",
			zap.String("path", cfg.Aggregator.RigPath),
			zap.String("rig", rig.Label()),
			zap.Int("cameras", rig.NumCameras()),
		)
		return rig, nil
	}

	rig, err := camera.DefaultRig("synthetic", cfg.Aggregator.Cameras)
	if err != nil {
		return nil, err
	}
	logger.Info("using synthetic rig", zap.Int("cameras", rig.NumCameras()))
	return rig, nil
}

// consume drains completed bundles so the table never grows without
// bound. The daemon has no downstream consumer; it logs a sample and
// drops the bundle.
func consume(ctx context.Context, agg *aggregator.Aggregator, logger *logging.Logger) {
	var count int64
	for {
		b, err := agg.WaitOneContext(ctx)
		if err != nil {
			return
		}
		count++
		if count%100 == 1 {
			logger.Info("bundle completed",
				zap.String("bundle", b.ID().String()),
				zap.Int64("anchor_ns", b.AnchorTimestamp()),
				zap.Int("frames", b.Len()),
				zap.Int64("total", count),
			)
		}
	}
}
