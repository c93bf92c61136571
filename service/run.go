package service

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"l2book/domain/orderbook"
	"l2book/feed"
	"l2book/infra/clock"
	"l2book/infra/metrics"
	"l2book/infra/notify"
)

// Options configure a single run.
type Options struct {
	// Capacity bounds the notification channel. Must be positive.
	Capacity   int
	PinThreads bool
	// Sink is handed every notification; nil means latency accounting only.
	Sink    Sink
	Scale   orderbook.TickScale
	Log     zerolog.Logger
	Metrics *metrics.Metrics
	// Clock defaults to one calibrated at the start of the run.
	Clock *clock.Clock
	// TopLevels is how many levels per side the report keeps.
	TopLevels int
	// Expected sizes the latency buffer up front.
	Expected int
	// Source names the input in the report.
	Source string
}

// Run drives src through a fresh book on two goroutines and reports on
// the result. The report is filled in even when an error is returned.
func Run(ctx context.Context, src feed.Source, opts Options) (Report, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = 4096
	}

	book := orderbook.NewBook()
	ch := notify.New(capacity)
	engine := NewEngine(book, ch, clk, opts.Log, opts.Metrics, opts.PinThreads)
	consumer := NewConsumer(ch, clk, opts.Sink, opts.Log, opts.Metrics, opts.Expected)

	started := time.Now()
	var (
		stats       EngineStats
		engineErr   error
		consumerErr error
	)

	// Each side stops the other through the channel (close or disconnect),
	// so the group carries no shared cancellation.
	var g errgroup.Group
	g.Go(func() error {
		if opts.PinThreads {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
		}
		consumerErr = consumer.Run(ctx)
		return consumerErr
	})
	g.Go(func() error {
		stats, engineErr = engine.Run(ctx, src)
		return engineErr
	})
	// Wait keeps only the first failure. A consumer failure also stops the
	// engine with ErrConsumerDisconnected, and callers need both causes.
	err := g.Wait()
	if err != nil {
		err = errors.Join(engineErr, consumerErr)
	}

	rep := newReport(started, opts, stats, book, consumer)
	if sk, ok := src.(interface{ Skipped() int }); ok {
		rep.Skipped = sk.Skipped()
		opts.Metrics.Skipped(rep.Skipped)
	}
	opts.Metrics.Throughput(rep.Throughput)

	if err != nil {
		opts.Log.Error().Err(err).Uint64("last_seq", consumer.LastSeq()).Msg("run stopped early")
	}
	return rep, err
}
