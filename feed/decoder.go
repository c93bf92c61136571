// Package feed turns the recorded exchange feed into orderbook updates.
package feed

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"l2book/domain/orderbook"
)

// ErrMalformed marks a record the decoder could not interpret. It is only
// used internally; malformed records are skipped and counted.
var ErrMalformed = errors.New("feed: malformed record")

// Column layout of the feed:
//
//	type,exchange,symbol,timestamp,side,bids,asks,price,size
const (
	colType = iota
	colExchange
	colSymbol
	colTimestamp
	colSide
	colBids
	colAsks
	colPrice
	colSize
	numCols
)

// Decoder streams updates out of a CSV feed. Snapshot rows carry quoted
// JSON arrays of [price,size] pairs; incremental rows carry side, price
// and size.
type Decoder struct {
	r       *csv.Reader
	scale   orderbook.TickScale
	log     zerolog.Logger
	line    int
	skipped int
}

type Option func(*Decoder)

// WithLogger makes the decoder report skipped rows at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Decoder) { d.log = l.With().Str("component", "decoder").Logger() }
}

func NewDecoder(r io.Reader, scale orderbook.TickScale, opts ...Option) *Decoder {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	d := &Decoder{r: cr, scale: scale, log: zerolog.Nop()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Next returns the next well-formed update, or io.EOF when the feed is
// exhausted. Malformed rows never surface here.
func (d *Decoder) Next() (orderbook.Update, error) {
	for {
		rec, err := d.r.Read()
		d.line++
		if err == io.EOF {
			return orderbook.Update{}, io.EOF
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				d.skip(err)
				continue
			}
			return orderbook.Update{}, fmt.Errorf("read feed: %w", err)
		}
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}
		if rec[colType] == "type" {
			continue
		}

		u, err := d.decode(rec)
		if err != nil {
			d.skip(err)
			continue
		}
		return u, nil
	}
}

// Skipped is the number of malformed records dropped so far.
func (d *Decoder) Skipped() int { return d.skipped }

func (d *Decoder) skip(err error) {
	d.skipped++
	d.log.Debug().Err(err).Int("line", d.line).Msg("skipping record")
}

func (d *Decoder) decode(rec []string) (orderbook.Update, error) {
	if len(rec) < numCols {
		return orderbook.Update{}, fmt.Errorf("%w: %d fields", ErrMalformed, len(rec))
	}
	ts, err := strconv.ParseUint(strings.TrimSpace(rec[colTimestamp]), 10, 64)
	if err != nil {
		return orderbook.Update{}, fmt.Errorf("%w: timestamp: %v", ErrMalformed, err)
	}

	switch strings.TrimSpace(rec[colType]) {
	case "snapshot":
		bids, err := d.levels(rec[colBids])
		if err != nil {
			return orderbook.Update{}, fmt.Errorf("%w: bids: %v", ErrMalformed, err)
		}
		asks, err := d.levels(rec[colAsks])
		if err != nil {
			return orderbook.Update{}, fmt.Errorf("%w: asks: %v", ErrMalformed, err)
		}
		return orderbook.NewSnapshot(ts, bids, asks), nil

	case "incremental":
		side, err := parseSide(rec[colSide])
		if err != nil {
			return orderbook.Update{}, err
		}
		price, err := decimal.NewFromString(strings.TrimSpace(rec[colPrice]))
		if err != nil {
			return orderbook.Update{}, fmt.Errorf("%w: price: %v", ErrMalformed, err)
		}
		size, err := decimal.NewFromString(strings.TrimSpace(rec[colSize]))
		if err != nil {
			return orderbook.Update{}, fmt.Errorf("%w: size: %v", ErrMalformed, err)
		}
		return orderbook.NewIncremental(ts, side, orderbook.Level{
			Price: d.scale.FromDecimal(price),
			Qty:   orderbook.Quantity(size.InexactFloat64()),
		}), nil

	default:
		return orderbook.Update{}, fmt.Errorf("%w: type %q", ErrMalformed, rec[colType])
	}
}

// levels parses "[[price,size],...]". An empty field is an empty side.
func (d *Decoder) levels(field string) ([]orderbook.Level, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, nil
	}
	var pairs [][]decimal.Decimal
	if err := json.Unmarshal([]byte(field), &pairs); err != nil {
		return nil, err
	}
	out := make([]orderbook.Level, 0, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("pair %d has %d elements", i, len(p))
		}
		out = append(out, orderbook.Level{
			Price: d.scale.FromDecimal(p[0]),
			Qty:   orderbook.Quantity(p[1].InexactFloat64()),
		})
	}
	return out, nil
}

func parseSide(s string) (orderbook.Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bid", "buy":
		return orderbook.Bid, nil
	case "ask", "sell":
		return orderbook.Ask, nil
	}
	return 0, fmt.Errorf("%w: side %q", ErrMalformed, s)
}
