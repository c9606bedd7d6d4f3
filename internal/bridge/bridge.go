// Package bridge runs the message sources, the capture worker pool and the
// ledger purge schedule as one process.
package bridge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/vocap/internal/capture"
	"github.com/hpungsan/vocap/internal/logging"
	"github.com/hpungsan/vocap/internal/source"
	"github.com/hpungsan/vocap/internal/utterance"
)

// DefaultWorkers is used when Options.Workers is unset.
const DefaultWorkers = 4

// queueSize is the buffer between sources and workers.
const queueSize = 256

// Capturer runs one raw utterance through the capture pipeline.
type Capturer interface {
	Capture(ctx context.Context, raw utterance.Raw) capture.Result
}

// Purger removes expired ledger entries.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Server is an optional HTTP surface run alongside the sources.
type Server interface {
	Run(ctx context.Context, addr string) error
}

// Recorder receives bridge-level measurements.
type Recorder interface {
	RecordPurge(n int64)
	RecordSourceError(source string)
}

// Options configures a Bridge.
type Options struct {
	Capturer Capturer
	Sources  []source.Source

	// Purger and PurgeInterval enable the purge schedule. A purge also runs at start.
	Purger        Purger
	PurgeInterval time.Duration

	Workers int

	// Server runs on ServerAddr when both are set.
	Server     Server
	ServerAddr string

	Recorder Recorder
	Logger   *zap.Logger
	Now      func() time.Time
}

// Bridge wires sources to the capture pipeline.
type Bridge struct {
	opts   Options
	logger *zap.Logger
}

// New creates a Bridge.
func New(opts Options) (*Bridge, error) {
	if opts.Capturer == nil {
		return nil, fmt.Errorf("bridge: capturer is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Bridge{opts: opts, logger: logging.OrNop(opts.Logger)}, nil
}

// Run blocks until ctx is cancelled or the HTTP server fails. Source errors
// and storage failures are logged and do not stop the bridge.
func (b *Bridge) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan utterance.Raw, queueSize)

	for _, src := range b.opts.Sources {
		g.Go(func() error {
			b.runSource(gctx, src, queue)
			return nil
		})
	}

	if b.opts.Server != nil && b.opts.ServerAddr != "" {
		g.Go(func() error {
			return b.opts.Server.Run(gctx, b.opts.ServerAddr)
		})
	}

	if b.opts.Purger != nil {
		g.Go(func() error {
			b.runPurge(gctx)
			return nil
		})
	}

	g.Go(func() error {
		b.dispatch(gctx, queue)
		return nil
	})

	b.logger.Info("bridge started",
		zap.Int("sources", len(b.opts.Sources)),
		zap.Int("workers", b.opts.Workers),
	)
	err := g.Wait()
	b.logger.Info("bridge stopped")
	return err
}

func (b *Bridge) runSource(ctx context.Context, src source.Source, out chan<- utterance.Raw) {
	logger := b.logger.With(zap.String("source", src.Name()))
	logger.Info("source started")
	if err := src.Run(ctx, out); err != nil {
		logger.Error("source stopped", zap.Error(err))
		if b.opts.Recorder != nil {
			b.opts.Recorder.RecordSourceError(src.Name())
		}
		return
	}
	logger.Info("source stopped")
}

// dispatch feeds queued utterances to a bounded worker pool and waits for
// in-flight captures before returning.
func (b *Bridge) dispatch(ctx context.Context, queue <-chan utterance.Raw) {
	var workers errgroup.Group
	workers.SetLimit(b.opts.Workers)
	defer workers.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-queue:
			workers.Go(func() error {
				b.capture(ctx, raw)
				return nil
			})
		}
	}
}

func (b *Bridge) capture(ctx context.Context, raw utterance.Raw) {
	res := b.opts.Capturer.Capture(ctx, raw)
	if res.Outcome == capture.OutcomeStorageFailure {
		b.logger.Warn("capture will be retried on the next observation",
			zap.String("source_id", res.SourceID),
			zap.Error(res.Err),
		)
	}
}

func (b *Bridge) runPurge(ctx context.Context) {
	b.purge(ctx)
	if b.opts.PurgeInterval <= 0 {
		return
	}

	ticker := time.NewTicker(b.opts.PurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.purge(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bridge) purge(ctx context.Context) {
	n, err := b.opts.Purger.PurgeExpired(ctx, b.opts.Now())
	if err != nil {
		b.logger.Error("ledger purge failed", zap.Error(err))
		return
	}
	if b.opts.Recorder != nil {
		b.opts.Recorder.RecordPurge(n)
	}
	if n > 0 {
		b.logger.Info("ledger purged", zap.Int64("removed", n))
	}
}
