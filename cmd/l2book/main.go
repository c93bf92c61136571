package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"l2book/config"
	"l2book/domain/orderbook"
	"l2book/feed"
	"l2book/infra/journal"
	"l2book/infra/kafka"
	applog "l2book/infra/log"
	"l2book/infra/metrics"
	"l2book/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "l2book:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML config file (default $L2BOOK_CONFIG)")
	recordDir := flag.String("record", "", "capture the decoded feed into this journal directory")
	benchIters := flag.Int("bench", 0, "run the benchmark suite with this many timed iterations instead of a single run")
	top := flag.Int("top", 5, "levels per side to print at the end of the run")
	history := flag.Bool("history", false, "print the stored run history and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if flag.NArg() > 0 {
		cfg.Feed.Path = flag.Arg(0)
	}
	if *recordDir != "" {
		cfg.Journal.RecordDir = *recordDir
	}

	logger := applog.NewLogger(cfg)

	if *history {
		if cfg.History.Dir == "" {
			return errors.New("-history needs history.dir (L2BOOK_HISTORY_DIR)")
		}
		return showHistory(cfg.History.Dir, os.Stdout)
	}

	scale := orderbook.TickScale(cfg.Feed.TickDigits)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- Metrics ----------------

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		reg := metrics.Init(m, logger)
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metrics.Handler(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer srv.Close()
		logger.Info().Str("addr", cfg.Metrics.Addr).Msg("serving metrics")
	}

	// ---------------- Feed ----------------

	fmt.Println("=== Orderbook System ===")
	fmt.Printf("Loading feed: %s\n", cfg.Feed.Path)

	updates, skipped, err := load(cfg.Feed.Path, scale, logger)
	if err != nil {
		return err
	}
	fmt.Printf("Parsed %d updates", len(updates))
	if skipped > 0 {
		fmt.Printf(" (%d malformed records skipped)", skipped)
	}
	fmt.Println()
	m.Skipped(skipped)

	if len(updates) == 0 {
		fmt.Fprintln(os.Stderr, "No updates found in feed. Exiting.")
		return nil
	}

	if cfg.Journal.RecordDir != "" {
		if err := record(cfg, updates); err != nil {
			return err
		}
		logger.Info().Str("dir", cfg.Journal.RecordDir).Int("updates", len(updates)).Msg("feed recorded")
	}

	if *benchIters > 0 {
		return bench(ctx, updates, cfg.Engine.ChannelCapacity, *benchIters)
	}

	// ---------------- Sinks ----------------

	var sinks service.MultiSink
	if cfg.Consumer.LogUpdates {
		sinks = append(sinks, service.NewLogSink(logger, scale))
	}
	var pub *kafka.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		pub = kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			Key:     cfg.Kafka.Key,
			Scale:   scale,
		})
		sinks = append(sinks, pub)
	}
	var sink service.Sink
	switch len(sinks) {
	case 0:
	case 1:
		sink = sinks[0]
	default:
		sink = sinks
	}

	// ---------------- Run ----------------

	src := feed.NewSliceSource(updates)
	rep, runErr := service.Run(ctx, src, service.Options{
		Capacity:   cfg.Engine.ChannelCapacity,
		PinThreads: cfg.Engine.PinThreads,
		Sink:       sink,
		Scale:      scale,
		Log:        logger,
		Metrics:    m,
		TopLevels:  *top,
		Expected:   src.Len(),
		Source:     cfg.Feed.Path,
	})
	rep.Skipped = skipped

	if pub != nil {
		if err := pub.Close(); err != nil {
			logger.Error().Err(err).Msg("kafka publisher close")
		}
	}

	if err := rep.WriteSummary(os.Stdout); err != nil {
		return err
	}

	if cfg.History.Dir != "" {
		if err := remember(cfg.History.Dir, cfg.History.Keep, rep, os.Stdout, logger); err != nil {
			logger.Error().Err(err).Msg("run history")
		}
	}

	if errors.Is(runErr, service.ErrConsumerDisconnected) {
		fmt.Fprintln(os.Stderr, "Consumer disconnected, engine stopped.")
	}
	return runErr
}

// load decodes the whole feed up front so engine timing excludes parsing.
// A directory is read as a journal.
func load(path string, scale orderbook.TickScale, logger applog.Logger) ([]orderbook.Update, int, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, 0, fmt.Errorf("feed: %w", err)
	}

	if fi.IsDir() {
		r, err := journal.OpenReader(path)
		if err != nil {
			return nil, 0, err
		}
		defer r.Close()
		updates, err := feed.ReadAll(r)
		if err == nil {
			logger.Info().Str("dir", path).Uint64("last_seq", r.LastSeq()).Msg("journal replayed")
		}
		return updates, 0, err
	}

	f, err := feed.Open(path, scale, feed.WithLogger(logger))
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	updates, err := feed.ReadAll(f)
	return updates, f.Skipped(), err
}

func record(cfg config.Config, updates []orderbook.Update) error {
	w, err := journal.Open(journal.Config{
		Dir:         cfg.Journal.RecordDir,
		SegmentSize: cfg.Journal.SegmentSize,
	})
	if err != nil {
		return err
	}
	for _, u := range updates {
		if err := w.Append(u); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}

const benchWarmup = 5

func bench(ctx context.Context, updates []orderbook.Update, capacity, iterations int) error {
	fmt.Println("\n── Orderbook Engine (isolated) ──────────────────────")
	eng := service.BenchEngine(updates, benchWarmup, iterations)
	fmt.Printf("  Updates:           %d\n", eng.Updates)
	fmt.Printf("  Avg engine time:   %.2f µs\n", float64(eng.Mean.Nanoseconds())/1e3)
	fmt.Printf("  Min engine time:   %.2f µs\n", float64(eng.Min.Nanoseconds())/1e3)
	fmt.Printf("  Per-update:        %d ns\n", eng.PerUpdate().Nanoseconds())
	fmt.Printf("  Engine throughput: %.0f updates/sec (best run)\n", eng.Throughput())

	fmt.Println("\n── End-to-End (engine + channel + consumer) ─────────")
	e2e, lat, err := service.BenchEndToEnd(ctx, updates, capacity, iterations)
	if err != nil {
		return err
	}
	fmt.Printf("  Avg total time:    %.2f µs\n", float64(e2e.Mean.Nanoseconds())/1e3)
	fmt.Printf("  Min total time:    %.2f µs\n", float64(e2e.Min.Nanoseconds())/1e3)
	fmt.Printf("  E2E throughput:    %.0f updates/sec (best run)\n", e2e.Throughput())
	fmt.Printf("  Latency p50/p99/p99.9: %d / %d / %d ns\n", lat.P50, lat.P99, lat.P999)
	return nil
}
