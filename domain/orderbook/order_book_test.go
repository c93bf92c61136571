package orderbook

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func px(s string) Price {
	return DefaultScale.FromDecimal(decimal.RequireFromString(s))
}

func lvl(price string, qty float64) Level {
	return Level{Price: px(price), Qty: Quantity(qty)}
}

func seedBook(t *testing.T) *Book {
	t.Helper()
	b := NewBook()
	n := b.Apply(NewSnapshot(1,
		[]Level{lvl("100.00", 1.0), lvl("99.00", 2.0)},
		[]Level{lvl("101.00", 1.5), lvl("102.00", 3.0)},
	), 0)
	require.Equal(t, uint64(1), n.Seq)
	return b
}

func TestSnapshotSetsBothExtremes(t *testing.T) {
	b := seedBook(t)

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, lvl("100.00", 1.0), bid)

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, lvl("101.00", 1.5), ask)
}

func TestDeleteBestBidRecomputes(t *testing.T) {
	b := seedBook(t)
	n := b.Apply(NewIncremental(2, Bid, lvl("100.00", 0)), 0)

	bid, ok := n.Bid()
	require.True(t, ok)
	assert.Equal(t, lvl("99.00", 2.0), bid)
	assert.Equal(t, 1, b.BidDepth())
}

func TestReplaceQtyAtBestAsk(t *testing.T) {
	b := seedBook(t)
	n := b.Apply(NewIncremental(2, Ask, lvl("101.00", 0.5)), 0)

	ask, ok := n.Ask()
	require.True(t, ok)
	assert.Equal(t, lvl("101.00", 0.5), ask)
	assert.Equal(t, 2, b.AskDepth())
}

func TestBetterAskTakesCache(t *testing.T) {
	b := NewBook()
	b.Apply(NewSnapshot(1, []Level{lvl("100.00", 1)}, []Level{lvl("102.00", 1)}), 0)
	n := b.Apply(NewIncremental(2, Ask, lvl("101.00", 0.5)), 0)

	ask, ok := n.Ask()
	require.True(t, ok)
	assert.Equal(t, lvl("101.00", 0.5), ask)
	bid, _ := n.Bid()
	assert.Equal(t, lvl("100.00", 1), bid)
}

func TestIncrementalOnEmptyBook(t *testing.T) {
	b := NewBook()
	n := b.Apply(NewIncremental(7, Bid, lvl("105.00", 1.0)), 42)

	assert.Equal(t, uint64(1), n.Seq)
	assert.Equal(t, uint64(7), n.UpdateTimestamp)
	assert.Equal(t, uint64(42), n.SendNanos)
	bid, ok := n.Bid()
	require.True(t, ok)
	assert.Equal(t, lvl("105.00", 1.0), bid)
	_, ok = n.Ask()
	assert.False(t, ok)
}

func TestSnapshotDropsZeroLevels(t *testing.T) {
	b := NewBook()
	b.Apply(NewSnapshot(1,
		[]Level{lvl("100.00", 1), lvl("99.50", 0), lvl("99.00", 2)},
		[]Level{lvl("101.00", 0), lvl("102.00", 3)},
	), 0)

	assert.Equal(t, 2, b.BidDepth())
	assert.Equal(t, 1, b.AskDepth())
	ask, _ := b.BestAsk()
	assert.Equal(t, lvl("102.00", 3), ask)
}

// --- Edge Cases ---

func TestDeleteMissingPriceIsNoop(t *testing.T) {
	b := seedBook(t)
	beforeBids := b.Levels(Bid, 0)
	beforeAsks := b.Levels(Ask, 0)
	beforeBid, _ := b.BestBid()

	b.Apply(NewIncremental(2, Bid, lvl("98.00", 0)), 0)
	b.Apply(NewIncremental(3, Ask, lvl("150.00", 0)), 0)

	assert.Equal(t, beforeBids, b.Levels(Bid, 0))
	assert.Equal(t, beforeAsks, b.Levels(Ask, 0))
	bid, _ := b.BestBid()
	assert.Equal(t, beforeBid, bid)
	assert.Equal(t, uint64(3), b.Seq())
}

func TestSnapshotReplacesPriorLevels(t *testing.T) {
	b := seedBook(t)
	b.Apply(NewIncremental(2, Bid, lvl("95.00", 4)), 0)
	b.Apply(NewSnapshot(3, []Level{lvl("90.00", 1)}, nil), 0)

	assert.Equal(t, []Level{lvl("90.00", 1)}, b.Levels(Bid, 0))
	assert.Empty(t, b.Levels(Ask, 0))
	_, ok := b.BestAsk()
	assert.False(t, ok)
}

func TestEmptySnapshotClearsBook(t *testing.T) {
	b := seedBook(t)
	n := b.Apply(NewSnapshot(2, nil, nil), 0)
	assert.False(t, n.HasBid)
	assert.False(t, n.HasAsk)
	assert.Zero(t, b.BidDepth())
	assert.Zero(t, b.AskDepth())
}

func TestDeleteLastLevelEmptiesCache(t *testing.T) {
	b := NewBook()
	b.Apply(NewIncremental(1, Ask, lvl("10.00", 1)), 0)
	n := b.Apply(NewIncremental(2, Ask, lvl("10.00", 0)), 0)
	assert.False(t, n.HasAsk)
	assert.Zero(t, b.AskDepth())
}

func TestIncrementalLeavesOtherSideCache(t *testing.T) {
	b := seedBook(t)
	before, _ := b.BestAsk()
	b.Apply(NewIncremental(2, Bid, lvl("100.50", 9)), 0)
	after, _ := b.BestAsk()
	assert.Equal(t, before, after)
}

func TestSequenceCountsEveryApply(t *testing.T) {
	b := NewBook()
	kinds := []Update{
		NewSnapshot(1, nil, nil),
		NewIncremental(2, Bid, lvl("1.00", 0)),
		NewIncremental(3, Ask, lvl("2.00", 1)),
		{Kind: 0, Timestamp: 4},
		NewSnapshot(5, []Level{lvl("1.00", 1)}, nil),
	}
	for i, u := range kinds {
		n := b.Apply(u, 0)
		assert.Equal(t, uint64(i+1), n.Seq)
	}
	assert.Equal(t, uint64(len(kinds)), b.Seq())
}

func TestLevelsBestFirst(t *testing.T) {
	b := seedBook(t)
	b.Apply(NewIncremental(2, Bid, lvl("98.00", 1)), 0)

	assert.Equal(t, []Level{lvl("100.00", 1), lvl("99.00", 2)}, b.Levels(Bid, 2))
	assert.Equal(t, []Level{lvl("101.00", 1.5), lvl("102.00", 3)}, b.Levels(Ask, 5))
	assert.Len(t, b.Levels(Bid, 0), 3)
}

// TestCacheMatchesTreeExtreme drives a random update stream and checks
// the cached extremes against a full scan after every apply.
func TestCacheMatchesTreeExtreme(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	b := NewBook()

	randLevel := func(base int64) Level {
		q := Quantity(0)
		if rng.Intn(3) > 0 {
			q = Quantity(rng.Intn(10)+1) / 4
		}
		return Level{Price: Price(base + rng.Int63n(200)), Qty: q}
	}

	for i := 0; i < 50000; i++ {
		var u Update
		switch r := rng.Intn(1000); {
		case r == 0:
			bids := make([]Level, rng.Intn(20))
			asks := make([]Level, rng.Intn(20))
			for j := range bids {
				bids[j] = randLevel(9800)
			}
			for j := range asks {
				asks[j] = randLevel(10000)
			}
			u = NewSnapshot(uint64(i), bids, asks)
		case r%2 == 0:
			u = NewIncremental(uint64(i), Bid, randLevel(9800))
		default:
			u = NewIncremental(uint64(i), Ask, randLevel(10000))
		}

		n := b.Apply(u, uint64(i))
		require.Equal(t, uint64(i+1), n.Seq)

		wantBid, wantHasBid := b.bids.levels.Max()
		wantAsk, wantHasAsk := b.asks.levels.Min()
		require.Equal(t, wantHasBid, n.HasBid, "step %d", i)
		require.Equal(t, wantHasAsk, n.HasAsk, "step %d", i)
		if wantHasBid {
			require.Equal(t, wantBid, n.BestBid, "step %d", i)
		}
		if wantHasAsk {
			require.Equal(t, wantAsk, n.BestAsk, "step %d", i)
		}
	}
}

func TestApplyDoesNotAllocate(t *testing.T) {
	b := seedBook(t)
	inc := NewIncremental(2, Bid, lvl("99.50", 1))
	del := NewIncremental(3, Bid, lvl("99.50", 0))
	allocs := testing.AllocsPerRun(100, func() {
		b.Apply(inc, 0)
		b.Apply(del, 0)
	})
	assert.Zero(t, allocs)
}
