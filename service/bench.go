package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"l2book/domain/orderbook"
	"l2book/feed"
	"l2book/infra/clock"
)

// BenchResult is the timing of repeated passes over the same updates.
type BenchResult struct {
	Updates    int
	Iterations int
	Min        time.Duration
	Mean       time.Duration
}

// PerUpdate is the best-run cost of one update.
func (r BenchResult) PerUpdate() time.Duration {
	if r.Updates == 0 {
		return 0
	}
	return r.Min / time.Duration(r.Updates)
}

// Throughput is updates per second of the best run.
func (r BenchResult) Throughput() float64 {
	if r.Min <= 0 {
		return 0
	}
	return float64(r.Updates) / r.Min.Seconds()
}

// BenchEngine applies updates to a fresh book per iteration, with no
// channel and no consumer. warmup passes are run first and not timed.
func BenchEngine(updates []orderbook.Update, warmup, iterations int) BenchResult {
	for i := 0; i < warmup; i++ {
		book := orderbook.NewBook()
		for _, u := range updates {
			book.Apply(u, 0)
		}
	}

	clk := clock.New()
	times := make([]time.Duration, 0, iterations)
	var sink orderbook.Notification
	for i := 0; i < iterations; i++ {
		book := orderbook.NewBook()
		start := clk.Nanos()
		for _, u := range updates {
			sink = book.Apply(u, 0)
		}
		times = append(times, time.Duration(clk.Since(start)))
	}
	_ = sink
	return summarise(len(updates), times)
}

// BenchEndToEnd times full runs: engine, channel and a consumer with no
// sink. The latency summary of the last run is returned alongside.
func BenchEndToEnd(ctx context.Context, updates []orderbook.Update, capacity, iterations int) (BenchResult, LatencySummary, error) {
	clk := clock.New()
	times := make([]time.Duration, 0, iterations)
	var last LatencySummary
	for i := 0; i < iterations; i++ {
		start := clk.Nanos()
		rep, err := Run(ctx, feed.NewSliceSource(updates), Options{
			Capacity: capacity,
			Clock:    clk,
			Log:      zerolog.Nop(),
			Expected: len(updates),
		})
		if err != nil {
			return BenchResult{}, last, err
		}
		times = append(times, time.Duration(clk.Since(start)))
		last = rep.Latency
	}
	return summarise(len(updates), times), last, nil
}

func summarise(updates int, times []time.Duration) BenchResult {
	r := BenchResult{Updates: updates, Iterations: len(times)}
	if len(times) == 0 {
		return r
	}
	var total time.Duration
	r.Min = times[0]
	for _, t := range times {
		total += t
		r.Min = min(r.Min, t)
	}
	r.Mean = total / time.Duration(len(times))
	return r
}
