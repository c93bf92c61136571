package service

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"l2book/domain/orderbook"
)

// LevelView is a display form of a level: exact decimal price.
type LevelView struct {
	Price decimal.Decimal `json:"price"`
	Qty   float64         `json:"qty"`
}

// Report summarises one run. It is what gets printed and what the run
// history stores.
type Report struct {
	StartedAt     time.Time      `json:"started_at"`
	Source        string         `json:"source,omitempty"`
	Updates       int            `json:"updates"`
	Snapshots     int            `json:"snapshots"`
	Incrementals  int            `json:"incrementals"`
	Skipped       int            `json:"skipped"`
	EngineElapsed time.Duration  `json:"engine_elapsed_ns"`
	Throughput    float64        `json:"throughput"`
	BidDepth      int            `json:"bid_depth"`
	AskDepth      int            `json:"ask_depth"`
	BestBid       *LevelView     `json:"best_bid,omitempty"`
	BestAsk       *LevelView     `json:"best_ask,omitempty"`
	TopBids       []LevelView    `json:"top_bids,omitempty"`
	TopAsks       []LevelView    `json:"top_asks,omitempty"`
	Received      uint64         `json:"received"`
	LastSeq       uint64         `json:"last_seq"`
	SequenceGaps  int            `json:"sequence_gaps"`
	Disconnected  bool           `json:"disconnected"`
	Latency       LatencySummary `json:"latency"`
}

func newReport(started time.Time, opts Options, stats EngineStats, book *orderbook.Book, c *Consumer) Report {
	rep := Report{
		StartedAt:     started,
		Source:        opts.Source,
		Updates:       stats.Applied,
		Snapshots:     stats.Snapshots,
		Incrementals:  stats.Incrementals,
		EngineElapsed: stats.Elapsed,
		Throughput:    stats.Throughput(),
		BidDepth:      book.BidDepth(),
		AskDepth:      book.AskDepth(),
		Received:      c.Stats().Count(),
		LastSeq:       c.LastSeq(),
		SequenceGaps:  c.Gaps(),
		Disconnected:  c.LastSeq() < book.Seq(),
		Latency:       c.Stats().Summary(),
	}
	if l, ok := book.BestBid(); ok {
		v := view(opts.Scale, l)
		rep.BestBid = &v
	}
	if l, ok := book.BestAsk(); ok {
		v := view(opts.Scale, l)
		rep.BestAsk = &v
	}
	if opts.TopLevels > 0 {
		rep.TopBids = views(opts.Scale, book.Levels(orderbook.Bid, opts.TopLevels))
		rep.TopAsks = views(opts.Scale, book.Levels(orderbook.Ask, opts.TopLevels))
	}
	return rep
}

func view(scale orderbook.TickScale, l orderbook.Level) LevelView {
	return LevelView{Price: scale.ToDecimal(l.Price), Qty: float64(l.Qty)}
}

func views(scale orderbook.TickScale, levels []orderbook.Level) []LevelView {
	out := make([]LevelView, len(levels))
	for i, l := range levels {
		out[i] = view(scale, l)
	}
	return out
}

func (v LevelView) String() string {
	return v.Price.StringFixed(max(-v.Price.Exponent(), 0)) + " @ " + strconv.FormatFloat(v.Qty, 'f', 4, 64)
}

func formatQty(q orderbook.Quantity) string {
	return strconv.FormatFloat(float64(q), 'f', 4, 64)
}

// WriteSummary prints the end-of-run summary.
func (r Report) WriteSummary(w io.Writer) error {
	us := float64(r.EngineElapsed.Nanoseconds()) / 1e3
	ms := float64(r.EngineElapsed.Nanoseconds()) / 1e6

	p := &printer{w: w}
	p.line("\n=== Engine Summary ===")
	p.line("Total updates:     %d (%d snapshots, %d incrementals)", r.Updates, r.Snapshots, r.Incrementals)
	if r.Skipped > 0 {
		p.line("Skipped records:   %d", r.Skipped)
	}
	p.line("Engine time:       %.2f ms (%.2f µs)", ms, us)
	p.line("Throughput:        %.0f updates/sec", r.Throughput)
	p.line("Final book depth:  %d bids, %d asks", r.BidDepth, r.AskDepth)
	if r.BestBid != nil {
		p.line("Final best bid:    %s", r.BestBid)
	}
	if r.BestAsk != nil {
		p.line("Final best ask:    %s", r.BestAsk)
	}
	if len(r.TopBids) > 0 || len(r.TopAsks) > 0 {
		p.line("\n=== Top of Book ===")
		for i := 0; i < max(len(r.TopBids), len(r.TopAsks)); i++ {
			var bid, ask string
			if i < len(r.TopBids) {
				bid = r.TopBids[i].String()
			}
			if i < len(r.TopAsks) {
				ask = r.TopAsks[i].String()
			}
			p.line("%-26s | %s", bid, ask)
		}
	}

	p.line("\n=== Consumer Latency (engine→consumer) ===")
	p.line("Updates received:  %d", r.Received)
	p.line("Min latency:       %d ns", r.Latency.Min)
	p.line("Max latency:       %d ns", r.Latency.Max)
	p.line("Avg latency:       %d ns", r.Latency.Mean)
	p.line("Median latency:    %d ns", r.Latency.P50)
	p.line("P90 latency:       %d ns", r.Latency.P90)
	p.line("P95 latency:       %d ns", r.Latency.P95)
	p.line("P99 latency:       %d ns", r.Latency.P99)
	p.line("P99.9 latency:     %d ns", r.Latency.P999)
	if r.SequenceGaps > 0 {
		p.line("Sequence gaps:     %d", r.SequenceGaps)
	}
	if r.Disconnected {
		p.line("Consumer disconnected after seq %d", r.LastSeq)
	}
	return p.err
}

// WriteComparison prints this run next to an earlier one.
func (r Report) WriteComparison(w io.Writer, prev Report) error {
	p := &printer{w: w}
	p.line("\n=== Previous Run (%s) ===", prev.StartedAt.Format(time.RFC3339))
	p.line("Throughput:        %.0f → %.0f updates/sec", prev.Throughput, r.Throughput)
	p.line("P99 latency:       %d → %d ns", prev.Latency.P99, r.Latency.P99)
	return p.err
}

// WriteHistory prints one line per stored run, oldest first.
func WriteHistory(w io.Writer, runs []Report) error {
	p := &printer{w: w}
	p.line("\n=== Run History (%d) ===", len(runs))
	for _, r := range runs {
		p.line("%s  %8d updates  %12.0f updates/sec  p99 %d ns",
			r.StartedAt.Format(time.RFC3339), r.Updates, r.Throughput, r.Latency.P99)
	}
	return p.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}
