package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"l2book/domain/orderbook"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher forwards top-of-book notifications to a Kafka topic. Messages
// are batched and written synchronously once a batch fills, so a broker
// failure surfaces as an error from Handle.
type Publisher struct {
	writer    messageWriter
	key       []byte
	scale     orderbook.TickScale
	batch     []kafka.Message
	batchSize int
	timeout   time.Duration
}

type Config struct {
	Brokers   []string
	Topic     string
	Key       string
	Scale     orderbook.TickScale
	BatchSize int
}

func NewPublisher(cfg Config) *Publisher {
	return newPublisher(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}, cfg)
}

func newPublisher(w messageWriter, cfg Config) *Publisher {
	size := cfg.BatchSize
	if size <= 0 {
		size = 256
	}
	return &Publisher{
		writer:    w,
		key:       []byte(cfg.Key),
		scale:     cfg.Scale,
		batch:     make([]kafka.Message, 0, size),
		batchSize: size,
		timeout:   10 * time.Second,
	}
}

// message is the JSON value published per notification. Prices are
// decimal strings; a missing side is null.
type message struct {
	Seq    uint64           `json:"seq"`
	TS     uint64           `json:"ts"`
	SendNs uint64           `json:"send_ns"`
	BidPx  *decimal.Decimal `json:"bid_px"`
	BidQty *float64         `json:"bid_qty"`
	AskPx  *decimal.Decimal `json:"ask_px"`
	AskQty *float64         `json:"ask_qty"`
}

func encode(n orderbook.Notification, scale orderbook.TickScale) ([]byte, error) {
	m := message{Seq: n.Seq, TS: n.UpdateTimestamp, SendNs: n.SendNanos}
	if l, ok := n.Bid(); ok {
		px, qty := scale.ToDecimal(l.Price), float64(l.Qty)
		m.BidPx, m.BidQty = &px, &qty
	}
	if l, ok := n.Ask(); ok {
		px, qty := scale.ToDecimal(l.Price), float64(l.Qty)
		m.AskPx, m.AskQty = &px, &qty
	}
	return json.Marshal(m)
}

// Handle queues n and writes the batch when it is full.
func (p *Publisher) Handle(n orderbook.Notification, _ uint64) error {
	value, err := encode(n, p.scale)
	if err != nil {
		return fmt.Errorf("kafka: encode seq %d: %w", n.Seq, err)
	}
	p.batch = append(p.batch, kafka.Message{Key: p.key, Value: value})
	if len(p.batch) >= p.batchSize {
		return p.Flush(context.Background())
	}
	return nil
}

// Flush writes any queued messages.
func (p *Publisher) Flush(ctx context.Context) error {
	if len(p.batch) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, p.batch...); err != nil {
		return fmt.Errorf("kafka: write %d messages: %w", len(p.batch), err)
	}
	clear(p.batch)
	p.batch = p.batch[:0]
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	flushErr := p.Flush(context.Background())
	if err := p.writer.Close(); err != nil && flushErr == nil {
		return err
	}
	return flushErr
}
