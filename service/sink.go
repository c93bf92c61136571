package service

import (
	"errors"

	"github.com/rs/zerolog"

	"l2book/domain/orderbook"
)

// Sink receives every notification the consumer takes off the channel,
// with its measured latency. An error ends the consumer and, through the
// channel, the engine.
type Sink interface {
	Handle(n orderbook.Notification, latencyNanos uint64) error
}

type SinkFunc func(orderbook.Notification, uint64) error

func (f SinkFunc) Handle(n orderbook.Notification, latencyNanos uint64) error {
	return f(n, latencyNanos)
}

// MultiSink fans out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Handle(n orderbook.Notification, latencyNanos uint64) error {
	var errs []error
	for _, s := range m {
		if err := s.Handle(n, latencyNanos); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes one info line per notification.
type LogSink struct {
	log   zerolog.Logger
	scale orderbook.TickScale
}

func NewLogSink(log zerolog.Logger, scale orderbook.TickScale) *LogSink {
	return &LogSink{log: log.With().Str("component", "consumer").Logger(), scale: scale}
}

func (s *LogSink) Handle(n orderbook.Notification, latencyNanos uint64) error {
	s.log.Info().
		Uint64("seq", n.Seq).
		Uint64("ts", n.UpdateTimestamp).
		Str("best_bid", s.level(n.Bid())).
		Str("best_ask", s.level(n.Ask())).
		Uint64("lat_ns", latencyNanos).
		Msg("top of book")
	return nil
}

func (s *LogSink) level(l orderbook.Level, ok bool) string {
	if !ok {
		return "EMPTY"
	}
	return s.scale.Format(l.Price) + " @ " + formatQty(l.Qty)
}
