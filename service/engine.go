package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"l2book/domain/orderbook"
	"l2book/feed"
	"l2book/infra/clock"
	"l2book/infra/metrics"
	"l2book/infra/notify"
)

// ErrConsumerDisconnected is returned by the engine when the consumer
// went away mid-run. The book keeps whatever was applied up to that point.
var ErrConsumerDisconnected = errors.New("service: consumer disconnected")

// EngineStats describes one engine run.
type EngineStats struct {
	Applied      int
	Snapshots    int
	Incrementals int
	Elapsed      time.Duration
}

// Throughput is updates per second, 0 for an instant run.
func (s EngineStats) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Applied) / s.Elapsed.Seconds()
}

// Engine is the producer. It is the only goroutine touching the book.
type Engine struct {
	book    *orderbook.Book
	ch      *notify.Channel
	clock   *clock.Clock
	log     zerolog.Logger
	metrics *metrics.Metrics
	pin     bool
}

func NewEngine(
	book *orderbook.Book,
	ch *notify.Channel,
	clk *clock.Clock,
	log zerolog.Logger,
	m *metrics.Metrics,
	pin bool,
) *Engine {
	return &Engine{
		book:    book,
		ch:      ch,
		clock:   clk,
		log:     log.With().Str("component", "engine").Logger(),
		metrics: m,
		pin:     pin,
	}
}

// Run applies every update from src in order and sends one notification
// per update. Send blocks while the channel is full. The channel is closed
// when Run returns, whatever the reason.
func (e *Engine) Run(ctx context.Context, src feed.Source) (stats EngineStats, err error) {
	defer e.ch.Close()
	if e.pin {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	e.log.Debug().Int("capacity", e.ch.Cap()).Bool("pinned", e.pin).Msg("engine started")

	start := e.clock.Nanos()
	defer func() {
		stats.Elapsed = time.Duration(e.clock.Since(start))
		e.metrics.Applied(orderbook.KindSnapshot.String(), stats.Snapshots)
		e.metrics.Applied(orderbook.KindIncremental.String(), stats.Incrementals)
		e.metrics.Depth(e.book.BidDepth(), e.book.AskDepth())
	}()

	for {
		u, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("engine: next update: %w", err)
		}

		n := e.book.Apply(u, e.clock.Nanos())
		stats.Applied++
		switch u.Kind {
		case orderbook.KindSnapshot:
			stats.Snapshots++
		case orderbook.KindIncremental:
			stats.Incrementals++
		}

		if err := e.ch.Send(ctx, n); err != nil {
			if errors.Is(err, notify.ErrDisconnected) {
				e.metrics.Disconnected()
				e.log.Warn().Uint64("seq", n.Seq).Msg("consumer disconnected, stopping engine")
				return stats, fmt.Errorf("%w at seq %d", ErrConsumerDisconnected, n.Seq)
			}
			return stats, fmt.Errorf("engine: send seq %d: %w", n.Seq, err)
		}
	}

	e.log.Debug().Int("applied", stats.Applied).Msg("feed exhausted")
	return stats, nil
}
