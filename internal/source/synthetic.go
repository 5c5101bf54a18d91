// Package source feeds the aggregation engine with frames. The only
// implementation is a synthetic generator that emulates N free-running
// cameras with per-camera timestamp jitter; it drives demos,
// benchmarks and soak runs without hardware.
package source

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/visionstack/multicam/internal/frame"
	"github.com/visionstack/multicam/internal/infrastructure/logging"
)

// Sink is where generated images go. Satisfied by the aggregation
// engine.
type Sink interface {
	Submit(cameraIndex int, img *frame.Image, systemStamp, hardwareStamp int64)
	NumCameras() int
}

// Config configures a synthetic camera array.
type Config struct {
	// FPS is the nominal frame rate of every camera.
	FPS float64
	// JitterNs is the maximum absolute per-frame timestamp jitter in
	// nanoseconds. Cameras stay synchronized when it is well below the
	// aggregation tolerance.
	JitterNs int64
	// Width and Height of the generated images. Zero values default to
	// VGA.
	Width, Height int
	// Seed makes runs reproducible. Zero seeds from the clock.
	Seed int64

	Logger *logging.Logger
}

// Synthetic generates frames for every camera of its sink until the
// run context is cancelled.
type Synthetic struct {
	sink   Sink
	cfg    Config
	logger *logging.Logger
}

// New creates a synthetic source over the sink's cameras.
func New(sink Sink, cfg Config) (*Synthetic, error) {
	if sink == nil {
		return nil, fmt.Errorf("source: nil sink")
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("source: fps %v must be positive", cfg.FPS)
	}
	if cfg.JitterNs < 0 {
		return nil, fmt.Errorf("source: jitter %d must be non-negative", cfg.JitterNs)
	}
	if cfg.Width <= 0 {
		cfg.Width = 640
	}
	if cfg.Height <= 0 {
		cfg.Height = 480
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	return &Synthetic{sink: sink, cfg: cfg, logger: cfg.Logger}, nil
}

// Run generates frames on all cameras until ctx is cancelled. Each
// camera runs its own goroutine paced at the configured rate; Run
// returns once all of them have stopped.
func (s *Synthetic) Run(ctx context.Context) error {
	numCameras := s.sink.NumCameras()
	s.logger.Info("synthetic source starting",
		zap.Int("cameras", numCameras),
		zap.Float64("fps", s.cfg.FPS),
		zap.Int64("jitter_ns", s.cfg.JitterNs),
		zap.Int64("seed", s.cfg.Seed),
	)

	var wg sync.WaitGroup
	for cam := 0; cam < numCameras; cam++ {
		wg.Add(1)
		go func(cam int) {
			defer wg.Done()
			s.runCamera(ctx, cam)
		}(cam)
	}
	wg.Wait()

	s.logger.Info("synthetic source stopped")
	return ctx.Err()
}

// runCamera emits one camera's stream. Frames share a nominal capture
// grid across cameras so bundles line up; jitter perturbs each stamp
// independently.
func (s *Synthetic) runCamera(ctx context.Context, cam int) {
	// Derive a distinct deterministic stream per camera.
	rng := rand.New(rand.NewSource(s.cfg.Seed + int64(cam)))
	limiter := rate.NewLimiter(rate.Limit(s.cfg.FPS), 1)
	periodNs := int64(float64(time.Second) / s.cfg.FPS)

	start := time.Now().UnixNano()
	for seq := int64(0); ; seq++ {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		nominal := start + seq*periodNs
		stamp := nominal
		if s.cfg.JitterNs > 0 {
			stamp += rng.Int63n(2*s.cfg.JitterNs+1) - s.cfg.JitterNs
		}

		s.sink.Submit(cam, s.render(cam, seq), stamp, nominal)
	}
}

// render draws a cheap moving gradient so frames are distinguishable
// in debug dumps. The pattern shifts with the sequence number and
// differs per camera.
func (s *Synthetic) render(cam int, seq int64) *frame.Image {
	img := frame.NewImage(s.cfg.Width, s.cfg.Height)
	shift := byte(seq) + byte(cam*64)
	for y := 0; y < img.Height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+img.Width]
		base := byte(y) + shift
		for x := range row {
			row[x] = base + byte(x)
		}
	}
	return img
}
