package journal

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"l2book/domain/orderbook"
)

func sampleUpdates() []orderbook.Update {
	return []orderbook.Update{
		orderbook.NewSnapshot(1700000000000,
			[]orderbook.Level{{Price: 9999999, Qty: 0.527}, {Price: 9999886, Qty: 3.1404}},
			[]orderbook.Level{{Price: 10000001, Qty: 1.25}},
		),
		orderbook.NewIncremental(1700000000100, orderbook.Bid, orderbook.Level{Price: 9999999, Qty: 0}),
		orderbook.NewIncremental(1700000000100, orderbook.Ask, orderbook.Level{Price: 10000002, Qty: 4.5}),
		orderbook.NewIncremental(1700000000200, orderbook.Bid, orderbook.Level{Price: -5, Qty: 1}),
	}
}

func readAll(t *testing.T, dir string) ([]orderbook.Update, error) {
	t.Helper()
	r, err := OpenReader(dir)
	require.NoError(t, err)
	defer r.Close()

	var out []orderbook.Update
	for {
		u, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, u)
	}
}

func TestAppendReplayRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)

	in := sampleUpdates()
	for _, u := range in {
		require.NoError(t, w.Append(u))
	}
	assert.Equal(t, uint64(len(in)), w.Seq())
	require.NoError(t, w.Close())

	out, err := readAll(t, dir)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRotationKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 64})
	require.NoError(t, err)

	var in []orderbook.Update
	for i := 0; i < 50; i++ {
		u := orderbook.NewIncremental(uint64(i), orderbook.Side(i%2), orderbook.Level{Price: orderbook.Price(i), Qty: 1})
		in = append(in, u)
		require.NoError(t, w.Append(u))
	}
	require.NoError(t, w.Close())

	files, err := segmentFiles(dir)
	require.NoError(t, err)
	assert.Greater(t, len(files), 1)

	out, err := readAll(t, dir)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReopenContinuesSequence(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleUpdates()[1]))
	require.NoError(t, w.Append(sampleUpdates()[2]))
	require.NoError(t, w.Close())

	w, err = Open(Config{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), w.Seq())
	require.NoError(t, w.Append(sampleUpdates()[3]))
	require.NoError(t, w.Close())

	r, err := OpenReader(dir)
	require.NoError(t, err)
	defer r.Close()
	var seqs []uint64
	for {
		rec, err := r.NextRecord()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		seqs = append(seqs, rec.Seq)
	}
	assert.Equal(t, []uint64{1, 2, 3}, seqs)
}

func recordedSeqs(t *testing.T, dir string) []uint64 {
	t.Helper()
	r, err := OpenReader(dir)
	require.NoError(t, err)
	defer r.Close()

	var seqs []uint64
	for {
		rec, err := r.NextRecord()
		if errors.Is(err, io.EOF) {
			return seqs
		}
		require.NoError(t, err)
		seqs = append(seqs, rec.Seq)
	}
}

func TestReopenAfterRotationContinuesSequence(t *testing.T) {
	dir := t.TempDir()
	// Every append rotates, so Close leaves an empty newest segment.
	w, err := Open(Config{Dir: dir, SegmentSize: 1})
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleUpdates()[1]))
	require.NoError(t, w.Close())

	w, err = Open(Config{Dir: dir, SegmentSize: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), w.Seq())
	require.NoError(t, w.Append(sampleUpdates()[2]))
	require.NoError(t, w.Close())

	assert.Equal(t, []uint64{1, 2}, recordedSeqs(t, dir))
}

func TestReopenWithoutAppendsContinuesSequence(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleUpdates()[1]))
	require.NoError(t, w.Close())

	for i := 0; i < 2; i++ {
		w, err = Open(Config{Dir: dir})
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}

	w, err = Open(Config{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), w.Seq())
	require.NoError(t, w.Append(sampleUpdates()[2]))
	require.NoError(t, w.Close())

	assert.Equal(t, []uint64{1, 2}, recordedSeqs(t, dir))
}

// --- Edge Cases ---

func TestCRCMismatchDetected(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleUpdates()[1]))
	require.NoError(t, w.Close())

	path := segmentPath(dir, 0)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[headerSize] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = readAll(t, dir)
	assert.ErrorIs(t, err, ErrCRCMismatch)
}

func TestOversizedLengthRejected(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleUpdates()[1]))
	require.NoError(t, w.Close())

	path := segmentPath(dir, 0)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	copy(data[17:21], []byte{0xFF, 0xFF, 0xFF, 0xFF})
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = readAll(t, dir)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestTornTailIsAnError(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleUpdates()[1]))
	require.NoError(t, w.Append(sampleUpdates()[2]))
	require.NoError(t, w.Close())

	path := segmentPath(dir, 0)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-3], 0o644))

	out, err := readAll(t, dir)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Len(t, out, 1)
}

func TestNonMonotonicRejected(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleUpdates()[1]))
	require.NoError(t, w.Close())

	// Duplicate the only segment under a later index.
	data, err := os.ReadFile(segmentPath(dir, 0))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(segmentPath(dir, 1), data, 0o644))

	_, err = readAll(t, dir)
	assert.ErrorIs(t, err, ErrNonMonotonic)
}

func TestEmptyJournal(t *testing.T) {
	out, err := readAll(t, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAppendRejectsUnknownKind(t *testing.T) {
	w, err := Open(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	defer w.Close()
	assert.Error(t, w.Append(orderbook.Update{}))
	assert.Zero(t, w.Seq())
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	u := sampleUpdates()[2]
	b := appendUpdate(nil, u)
	// field 15, varint 7
	b = append(b, 15<<3, 7)
	got, err := decodeUpdate(RecordIncremental, b)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}
