// Package aggregator assembles independently timed per-camera frames
// into time-synchronized multi-camera bundles.
//
// Images are submitted per camera and processed by a worker pool;
// finished frames are matched into bundles by capture timestamp under
// a single lock. Completed bundles are retrieved with PollOne (non
// blocking), WaitOne (blocking) or LatestAndClear (newest, dropping
// everything older).
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/visionstack/multicam/internal/camera"
	"github.com/visionstack/multicam/internal/frame"
	"github.com/visionstack/multicam/internal/infrastructure/logging"
	"github.com/visionstack/multicam/internal/infrastructure/monitoring"
	"github.com/visionstack/multicam/internal/infrastructure/resilience"
	"github.com/visionstack/multicam/internal/pipeline"
	"github.com/visionstack/multicam/internal/pool"
)

// ErrClosed is returned by blocking retrieval once the aggregator has
// been closed.
var ErrClosed = errors.New("aggregator: closed")

// Observer receives bundle lifecycle notifications outside the table
// lock. Observers must treat the bundle as read-only; ownership of
// completed bundles still transfers to the retrieving consumer.
type Observer interface {
	BundleCompleted(b *frame.Bundle)
	BundlesEvicted(count int)
}

// Config wires an Aggregator.
type Config struct {
	// Producers holds one frame producer per camera; slot order
	// matches the rigs.
	Producers []pipeline.Producer
	// InputRig and OutputRig are the N-camera calibration sets before
	// and after processing. Each producer's cameras must be the same
	// objects, by pointer, as the rig entries of its slot.
	InputRig  *camera.Rig
	OutputRig *camera.Rig

	// Workers is the worker pool size.
	Workers int
	// ToleranceNs is the maximum |anchor - timestamp| in nanoseconds
	// for a frame to join an existing bundle. Zero means exact match.
	ToleranceNs int64

	// Logger defaults to a no-op logger.
	Logger *logging.Logger
	// Metrics defaults to a collector with its own registry.
	Metrics *monitoring.Metrics
	// Observers are notified of completions and evictions.
	Observers []Observer
	// Breaker configures the per-camera producer circuit breakers.
	// Zero values give conservative defaults.
	Breaker resilience.Config
}

// Aggregator owns the worker pool and the bundle table and exposes the
// ingestion and retrieval API.
type Aggregator struct {
	producers   []pipeline.Producer
	inputRig    *camera.Rig
	outputRig   *camera.Rig
	toleranceNs int64

	pool      *pool.Pool
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	observers []Observer
	breakers  []*resilience.Breaker
	labels    []string // camera index as metric label, precomputed

	mu        sync.Mutex
	completed *sync.Cond // signaled when a bundle completes or on close
	table     *bundleTable
	closed    bool

	closeOnce sync.Once
}

// New validates the wiring and creates an aggregator. Validation
// failures are construction-time programming errors: the daemon treats
// them as fatal.
func New(cfg Config) (*Aggregator, error) {
	if len(cfg.Producers) == 0 {
		return nil, errors.New("aggregator: no producers")
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("aggregator: worker count %d must be positive", cfg.Workers)
	}
	if cfg.ToleranceNs < 0 {
		return nil, fmt.Errorf("aggregator: tolerance %d must be non-negative", cfg.ToleranceNs)
	}
	if cfg.InputRig == nil || cfg.OutputRig == nil {
		return nil, errors.New("aggregator: input and output rigs are required")
	}
	if cfg.InputRig.NumCameras() != len(cfg.Producers) {
		return nil, fmt.Errorf("aggregator: input rig has %d cameras for %d producers",
			cfg.InputRig.NumCameras(), len(cfg.Producers))
	}
	if cfg.OutputRig.NumCameras() != len(cfg.Producers) {
		return nil, fmt.Errorf("aggregator: output rig has %d cameras for %d producers",
			cfg.OutputRig.NumCameras(), len(cfg.Producers))
	}
	for i, p := range cfg.Producers {
		if p == nil {
			return nil, fmt.Errorf("aggregator: producer %d is nil", i)
		}
		// The calibration sets and the producers must reference the
		// same camera objects, not merely equal ones.
		if p.InputCamera() != cfg.InputRig.Camera(i) {
			return nil, fmt.Errorf("aggregator: producer %d input camera is not the rig camera", i)
		}
		if p.OutputCamera() != cfg.OutputRig.Camera(i) {
			return nil, fmt.Errorf("aggregator: producer %d output camera is not the rig camera", i)
		}
	}

	workers, err := pool.New(cfg.Workers)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = monitoring.New()
	}

	a := &Aggregator{
		producers:   cfg.Producers,
		inputRig:    cfg.InputRig,
		outputRig:   cfg.OutputRig,
		toleranceNs: cfg.ToleranceNs,
		pool:        workers,
		logger:      logger,
		metrics:     metrics,
		observers:   cfg.Observers,
		breakers:    make([]*resilience.Breaker, len(cfg.Producers)),
		labels:      make([]string, len(cfg.Producers)),
		table:       newBundleTable(len(cfg.Producers), cfg.ToleranceNs),
	}
	a.completed = sync.NewCond(&a.mu)

	breakerCfg := cfg.Breaker
	if breakerCfg.OnStateChange == nil {
		breakerCfg.OnStateChange = func(name string, from, to resilience.State) {
			logger.Warn("producer breaker state changed",
				zap.String("camera", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
	}
	for i := range cfg.Producers {
		a.labels[i] = strconv.Itoa(i)
		a.breakers[i] = resilience.New(a.labels[i], breakerCfg)
	}

	return a, nil
}

// NewPassthrough builds an aggregator over numCameras pass-through
// producers on a default rig. Used by tests and the synthetic source.
func NewPassthrough(numCameras, workers int, toleranceNs int64, logger *logging.Logger) (*Aggregator, error) {
	rig, err := camera.DefaultRig("passthrough", numCameras)
	if err != nil {
		return nil, err
	}
	producers := make([]pipeline.Producer, numCameras)
	for i := range producers {
		producers[i] = pipeline.NewNull(rig.Camera(i), false)
	}
	return New(Config{
		Producers:   producers,
		InputRig:    rig,
		OutputRig:   rig,
		Workers:     workers,
		ToleranceNs: toleranceNs,
		Logger:      logger,
	})
}

// InputRig returns the calibration set of the raw images.
func (a *Aggregator) InputRig() *camera.Rig { return a.inputRig }

// OutputRig returns the calibration set of the produced frames.
func (a *Aggregator) OutputRig() *camera.Rig { return a.outputRig }

// NumCameras returns the number of camera slots.
func (a *Aggregator) NumCameras() int { return len(a.producers) }

// Metrics returns the aggregator's metrics collector.
func (a *Aggregator) Metrics() *monitoring.Metrics { return a.metrics }

// Submit enqueues processing of one image for the given camera and
// returns immediately. Panics on an out-of-range camera index: slot
// wiring is fixed at construction and a bad index is a programming
// error, not a runtime condition.
func (a *Aggregator) Submit(cameraIndex int, img *frame.Image, systemStamp, hardwareStamp int64) {
	if cameraIndex < 0 || cameraIndex >= len(a.producers) {
		panic(fmt.Sprintf("aggregator: camera index %d out of range [0, %d)", cameraIndex, len(a.producers)))
	}

	a.metrics.RecordSubmit(a.labels[cameraIndex])
	err := a.pool.Submit(func() {
		a.work(cameraIndex, img, systemStamp, hardwareStamp)
	})
	if err != nil {
		a.metrics.RecordFailure(a.labels[cameraIndex], "closed")
		a.logger.Warn("dropping frame submitted after close",
			zap.Int("camera", cameraIndex),
			zap.Int64("timestamp_ns", systemStamp),
		)
	}
}

// work runs on a pool worker: produce the frame outside the lock, then
// take the lock once for the cheap matching step.
func (a *Aggregator) work(cameraIndex int, img *frame.Image, systemStamp, hardwareStamp int64) {
	label := a.labels[cameraIndex]

	defer func() {
		if r := recover(); r != nil {
			a.metrics.RecordFailure(label, "panic")
			a.logger.Error("frame producer panicked, dropping frame",
				zap.Int("camera", cameraIndex),
				zap.Int64("timestamp_ns", systemStamp),
				zap.Any("panic", r),
			)
		}
	}()

	var f *frame.Frame
	start := time.Now()
	err := a.breakers[cameraIndex].Execute(func() error {
		var perr error
		f, perr = a.producers[cameraIndex].Process(img, systemStamp, hardwareStamp)
		return perr
	})
	if err != nil {
		if errors.Is(err, resilience.ErrOpen) {
			a.metrics.RecordFailure(label, "breaker_open")
			a.logger.Warn("shedding frame, producer circuit open",
				zap.Int("camera", cameraIndex),
				zap.Int64("timestamp_ns", systemStamp),
			)
		} else {
			a.metrics.RecordFailure(label, "producer_error")
			a.logger.Warn("frame producer failed, dropping frame",
				zap.Int("camera", cameraIndex),
				zap.Int64("timestamp_ns", systemStamp),
				zap.Error(err),
			)
		}
		return
	}
	f.CameraIndex = cameraIndex
	a.metrics.RecordProcess(label, time.Since(start))

	a.mu.Lock()
	res := a.table.insert(cameraIndex, f)
	pending, ready := a.table.pendingLen(), a.table.completedLen()
	if res.completed {
		a.completed.Broadcast()
	}
	a.mu.Unlock()

	a.metrics.SetDepths(pending, ready)

	if res.displaced != nil {
		// Duplicate arrival for an already filled slot within
		// tolerance. Last write wins; the anomaly is logged, never
		// surfaced to the submitter.
		a.metrics.RecordDuplicate(label)
		a.logger.Warn("overwrote frame in bundle, same camera within tolerance",
			zap.Int("camera", cameraIndex),
			zap.Int64("bundle_anchor_ns", res.bundle.AnchorTimestamp()),
			zap.String("old_frame", res.displaced.ID.String()),
			zap.String("new_frame", f.ID.String()),
		)
	}

	if res.completed {
		a.metrics.RecordCompletion(time.Since(res.bundle.CreatedAt()))
		for _, o := range a.observers {
			o.BundleCompleted(res.bundle)
		}
	}
}

// PollOne returns and removes the oldest completed bundle, or nil when
// none is ready. Never blocks.
func (a *Aggregator) PollOne() *frame.Bundle {
	a.mu.Lock()
	b := a.table.popOldestCompleted()
	pending, ready := a.table.pendingLen(), a.table.completedLen()
	a.mu.Unlock()

	a.metrics.SetDepths(pending, ready)
	return b
}

// WaitOne blocks until a completed bundle is available and returns it.
// Concurrent waiters race for bundles; a waiter that wakes to an empty
// table goes back to waiting. Returns nil once the aggregator is
// closed.
func (a *Aggregator) WaitOne() *frame.Bundle {
	b, _ := a.waitOne(nil)
	return b
}

// WaitOneContext is WaitOne with a cancellation point. It returns
// ctx.Err() on cancellation and ErrClosed after Close.
func (a *Aggregator) WaitOneContext(ctx context.Context) (*frame.Bundle, error) {
	stop := context.AfterFunc(ctx, func() {
		a.mu.Lock()
		a.completed.Broadcast()
		a.mu.Unlock()
	})
	defer stop()

	return a.waitOne(ctx)
}

func (a *Aggregator) waitOne(ctx context.Context) (*frame.Bundle, error) {
	a.mu.Lock()
	for {
		if b := a.table.popOldestCompleted(); b != nil {
			pending, ready := a.table.pendingLen(), a.table.completedLen()
			a.mu.Unlock()
			a.metrics.SetDepths(pending, ready)
			return b, nil
		}
		if a.closed {
			a.mu.Unlock()
			return nil, ErrClosed
		}
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				a.mu.Unlock()
				return nil, err
			}
		}
		a.completed.Wait()
	}
}

// LatestAndClear returns the newest completed bundle and drops
// everything older: remaining completed bundles are discarded and
// in-progress bundles anchored at or before the returned one are
// evicted. Returns nil when no bundle has completed. This is the lossy
// low-latency retrieval mode; it trades completeness for bounded
// staleness and memory.
func (a *Aggregator) LatestAndClear() *frame.Bundle {
	a.mu.Lock()
	b, evicted := a.table.popLatestAndEvict()
	pending, ready := a.table.pendingLen(), a.table.completedLen()
	a.mu.Unlock()

	a.metrics.SetDepths(pending, ready)
	if evicted > 0 {
		a.metrics.RecordEvictions(evicted)
		a.logger.Debug("evicted stale in-progress bundles",
			zap.Int("count", evicted),
			zap.Int64("up_to_anchor_ns", b.AnchorTimestamp()),
		)
		for _, o := range a.observers {
			o.BundlesEvicted(evicted)
		}
	}
	return b
}

// PendingCount returns the instantaneous number of in-progress
// bundles. Racy by design; for observability only.
func (a *Aggregator) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.table.pendingLen()
}

// CompletedCount returns the instantaneous number of completed bundles
// awaiting retrieval. Racy by design; for observability only.
func (a *Aggregator) CompletedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.table.completedLen()
}

// WaitForIdle blocks until every submitted image has been processed
// into some bundle. The bundle may still be in progress when sibling
// cameras have not reported. Idempotent: with no work in flight it
// returns immediately.
func (a *Aggregator) WaitForIdle() {
	a.pool.Drain()
}

// Close stops the worker pool first, so no worker can observe a
// partially shut-down aggregator, then wakes all blocked waiters.
// Idempotent.
func (a *Aggregator) Close() {
	a.closeOnce.Do(func() {
		a.pool.Stop()

		a.mu.Lock()
		a.closed = true
		a.completed.Broadcast()
		a.mu.Unlock()

		a.logger.Info("aggregator closed")
	})
}
