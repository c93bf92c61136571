package orderbook

import "l2book/infra/sequence"

// Book is single-writer and deterministic.
type Book struct {
	bids bookSide
	asks bookSide
	seq  sequence.Counter
}

// NewBook creates an empty book with sequence 0.
func NewBook() *Book {
	return &Book{
		bids: bookSide{side: Bid, levels: newLevelTree()},
		asks: bookSide{side: Ask, levels: newLevelTree()},
	}
}

// Apply mutates the book with u and returns the resulting notification.
// It is the only mutator. Input is assumed well-formed; there is no
// failure path.
func (b *Book) Apply(u Update, sendNanos uint64) Notification {
	switch u.Kind {
	case KindSnapshot:
		b.bids.replaceAll(u.Bids)
		b.asks.replaceAll(u.Asks)
	case KindIncremental:
		b.side(u.Side).upsert(u.Level)
	}

	return Notification{
		UpdateTimestamp: u.Timestamp,
		SendNanos:       sendNanos,
		BestBid:         b.bids.best,
		HasBid:          b.bids.hasBest,
		BestAsk:         b.asks.best,
		HasAsk:          b.asks.hasBest,
		Seq:             b.seq.Next(),
	}
}

// BestBid is an O(1) read of the cached highest bid.
func (b *Book) BestBid() (Level, bool) { return b.bids.best, b.bids.hasBest }

// BestAsk is an O(1) read of the cached lowest ask.
func (b *Book) BestAsk() (Level, bool) { return b.asks.best, b.asks.hasBest }

func (b *Book) BidDepth() int { return b.bids.levels.Len() }
func (b *Book) AskDepth() int { return b.asks.levels.Len() }

// Seq returns the sequence number of the last applied update.
func (b *Book) Seq() uint64 { return b.seq.Current() }

// Levels returns up to n levels of one side, best first. n <= 0 means all.
func (b *Book) Levels(side Side, n int) []Level {
	s := b.side(side)
	size := s.levels.Len()
	if n > 0 && n < size {
		size = n
	}
	out := make([]Level, 0, size)
	visit := func(l Level) bool {
		out = append(out, l)
		return n <= 0 || len(out) < n
	}
	if side == Bid {
		s.levels.Descend(visit)
	} else {
		s.levels.Ascend(visit)
	}
	return out
}

func (b *Book) side(s Side) *bookSide {
	if s == Bid {
		return &b.bids
	}
	return &b.asks
}

// ---- per-side store + cached extreme ----

type bookSide struct {
	side    Side
	levels  *levelTree
	best    Level
	hasBest bool
}

type cacheEffect uint8

const (
	keepCache cacheEffect = iota
	takeLevel
	recompute
)

// effect decides how a mutation at lvl changes the cached extreme C:
//
//	insert, C empty            → take
//	insert, price improves C   → take
//	insert, price equals C     → take (quantity at the extreme changed)
//	insert, price worse than C → keep
//	delete, price equals C     → recompute from the tree
//	delete, otherwise          → keep
func (s *bookSide) effect(lvl Level) cacheEffect {
	if lvl.Qty.IsZero() {
		if s.hasBest && lvl.Price == s.best.Price {
			return recompute
		}
		return keepCache
	}
	switch {
	case !s.hasBest:
		return takeLevel
	case lvl.Price == s.best.Price:
		return takeLevel
	case s.improves(lvl.Price, s.best.Price):
		return takeLevel
	default:
		return keepCache
	}
}

// improves reports whether p is strictly better than q on this side.
func (s *bookSide) improves(p, q Price) bool {
	if s.side == Bid {
		return p > q
	}
	return p < q
}

func (s *bookSide) upsert(lvl Level) {
	if lvl.Qty.IsZero() {
		s.levels.Delete(lvl.Price)
	} else {
		s.levels.Put(lvl.Price, lvl.Qty)
	}

	switch s.effect(lvl) {
	case takeLevel:
		s.best, s.hasBest = lvl, true
	case recompute:
		s.refresh()
	}
}

// replaceAll clears the side and loads every non-zero level.
func (s *bookSide) replaceAll(levels []Level) {
	s.levels.Clear()
	for _, l := range levels {
		if !l.Qty.IsZero() {
			s.levels.Put(l.Price, l.Qty)
		}
	}
	s.refresh()
}

// refresh recomputes the cached extreme from the tree.
func (s *bookSide) refresh() {
	if s.side == Bid {
		s.best, s.hasBest = s.levels.Max()
	} else {
		s.best, s.hasBest = s.levels.Min()
	}
}
