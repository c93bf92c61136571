package orderbook

type UpdateKind uint8

const (
	KindSnapshot UpdateKind = iota + 1
	KindIncremental
)

func (k UpdateKind) String() string {
	switch k {
	case KindSnapshot:
		return "snapshot"
	case KindIncremental:
		return "incremental"
	default:
		return "unknown"
	}
}

// Update is one decoded feed event.
//
// A snapshot carries the complete bid and ask ladders (Bids, Asks). An
// incremental carries a single level on Side: a non-zero quantity inserts
// or replaces the level, a zero quantity deletes it.
type Update struct {
	Kind      UpdateKind
	Timestamp uint64

	Bids []Level
	Asks []Level

	Side  Side
	Level Level
}

func NewSnapshot(ts uint64, bids, asks []Level) Update {
	return Update{Kind: KindSnapshot, Timestamp: ts, Bids: bids, Asks: asks}
}

func NewIncremental(ts uint64, side Side, lvl Level) Update {
	return Update{Kind: KindIncremental, Timestamp: ts, Side: side, Level: lvl}
}

// Notification is emitted once per applied update. It is a plain value:
// whoever holds it owns it.
type Notification struct {
	UpdateTimestamp uint64
	// SendNanos is the producer's monotonic clock reading at send time.
	SendNanos uint64

	BestBid Level
	HasBid  bool
	BestAsk Level
	HasAsk  bool

	Seq uint64
}

func (n Notification) Bid() (Level, bool) { return n.BestBid, n.HasBid }
func (n Notification) Ask() (Level, bool) { return n.BestAsk, n.HasAsk }
