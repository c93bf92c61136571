package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"l2book/infra/clock"
	"l2book/infra/metrics"
	"l2book/infra/notify"
)

// Consumer drains the channel, measuring latency against the engine's
// clock and checking that sequence numbers arrive without gaps.
type Consumer struct {
	ch      *notify.Channel
	clock   *clock.Clock
	sink    Sink
	log     zerolog.Logger
	metrics *metrics.Metrics

	stats   *LatencyStats
	lastSeq uint64
	gaps    int
}

// NewConsumer builds a consumer. sink may be nil.
func NewConsumer(
	ch *notify.Channel,
	clk *clock.Clock,
	sink Sink,
	log zerolog.Logger,
	m *metrics.Metrics,
	expected int,
) *Consumer {
	return &Consumer{
		ch:      ch,
		clock:   clk,
		sink:    sink,
		log:     log.With().Str("component", "consumer").Logger(),
		metrics: m,
		stats:   NewLatencyStats(expected),
	}
}

// Run returns nil once the engine has closed the channel and every
// buffered notification was handled. On a sink failure or ctx
// cancellation it disconnects, which stops the engine at its next send.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		n, ok, err := c.ch.RecvContext(ctx)
		if err != nil {
			c.ch.Disconnect()
			return err
		}
		if !ok {
			return nil
		}

		lat := c.clock.Since(n.SendNanos)
		c.stats.Record(lat)
		c.metrics.Latency(lat)

		if n.Seq != c.lastSeq+1 {
			c.gaps++
			c.metrics.Gap()
			c.log.Warn().Uint64("seq", n.Seq).Uint64("prev", c.lastSeq).Msg("sequence gap")
		}
		c.lastSeq = n.Seq

		if c.sink == nil {
			continue
		}
		if err := c.sink.Handle(n, lat); err != nil {
			c.ch.Disconnect()
			return fmt.Errorf("consumer: sink at seq %d: %w", n.Seq, err)
		}
	}
}

func (c *Consumer) Stats() *LatencyStats { return c.stats }

func (c *Consumer) Gaps() int { return c.gaps }

// LastSeq is the sequence number of the last notification received.
func (c *Consumer) LastSeq() uint64 { return c.lastSeq }
