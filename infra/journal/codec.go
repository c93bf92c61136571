package journal

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"l2book/domain/orderbook"
)

// Update fields.
const (
	fieldTimestamp protowire.Number = 1
	fieldSide      protowire.Number = 2
	fieldLevel     protowire.Number = 3
	fieldBid       protowire.Number = 4
	fieldAsk       protowire.Number = 5
)

// Level fields.
const (
	fieldPrice protowire.Number = 1
	fieldQty   protowire.Number = 2
)

func appendUpdate(b []byte, u orderbook.Update) []byte {
	b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, u.Timestamp)

	switch u.Kind {
	case orderbook.KindIncremental:
		b = protowire.AppendTag(b, fieldSide, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(u.Side))
		b = appendLevel(b, fieldLevel, u.Level)
	case orderbook.KindSnapshot:
		for _, l := range u.Bids {
			b = appendLevel(b, fieldBid, l)
		}
		for _, l := range u.Asks {
			b = appendLevel(b, fieldAsk, l)
		}
	}
	return b
}

func appendLevel(b []byte, num protowire.Number, l orderbook.Level) []byte {
	// tag + zigzag varint + tag + fixed64
	var inner [1 + 10 + 1 + 8]byte
	m := inner[:0]
	m = protowire.AppendTag(m, fieldPrice, protowire.VarintType)
	m = protowire.AppendVarint(m, protowire.EncodeZigZag(int64(l.Price)))
	m = protowire.AppendTag(m, fieldQty, protowire.Fixed64Type)
	m = protowire.AppendFixed64(m, math.Float64bits(float64(l.Qty)))

	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

func decodeUpdate(t RecordType, b []byte) (orderbook.Update, error) {
	var u orderbook.Update
	switch t {
	case RecordSnapshot:
		u.Kind = orderbook.KindSnapshot
	case RecordIncremental:
		u.Kind = orderbook.KindIncremental
	default:
		return u, fmt.Errorf("journal: unknown record type %d", t)
	}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return u, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == fieldTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return u, protowire.ParseError(n)
			}
			u.Timestamp = v
			b = b[n:]

		case num == fieldSide && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return u, protowire.ParseError(n)
			}
			u.Side = orderbook.Side(v)
			b = b[n:]

		case (num == fieldLevel || num == fieldBid || num == fieldAsk) && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return u, protowire.ParseError(n)
			}
			b = b[n:]
			l, err := decodeLevel(raw)
			if err != nil {
				return u, err
			}
			switch num {
			case fieldLevel:
				u.Level = l
			case fieldBid:
				u.Bids = append(u.Bids, l)
			case fieldAsk:
				u.Asks = append(u.Asks, l)
			}

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return u, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return u, nil
}

func decodeLevel(b []byte) (orderbook.Level, error) {
	var l orderbook.Level
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return l, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == fieldPrice && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return l, protowire.ParseError(n)
			}
			l.Price = orderbook.Price(protowire.DecodeZigZag(v))
			b = b[n:]
		case num == fieldQty && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return l, protowire.ParseError(n)
			}
			l.Qty = orderbook.Quantity(math.Float64frombits(v))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return l, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return l, nil
}
