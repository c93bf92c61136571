package journal

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"l2book/domain/orderbook"
	"l2book/infra/sequence"
)

type Config struct {
	Dir string
	// SegmentSize is the byte size after which a new segment is started.
	// Zero disables rotation.
	SegmentSize int64
}

// Writer appends updates to a journal directory. It is not safe for
// concurrent use.
type Writer struct {
	dir      string
	segSize  int64
	current  *segment
	segIndex int
	seq      *sequence.Counter
	buf      []byte
	now      func() time.Time
}

// Open prepares dir for appending. An existing journal is continued: a
// fresh segment is started after the last one and sequence numbers carry
// on from the highest recorded.
func Open(cfg Config) (*Writer, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}

	files, err := segmentFiles(cfg.Dir)
	if err != nil {
		return nil, err
	}

	index := 0
	if len(files) > 0 {
		idx, err := segmentIndex(files[len(files)-1])
		if err != nil {
			return nil, err
		}
		index = idx + 1
	}

	lastSeq, err := lastRecordedSeq(files)
	if err != nil {
		return nil, err
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, fmt.Errorf("journal: open segment: %w", err)
	}

	return &Writer{
		dir:      cfg.Dir,
		segSize:  cfg.SegmentSize,
		current:  seg,
		segIndex: index,
		seq:      sequence.New(lastSeq),
		buf:      make([]byte, 0, 4096),
		now:      time.Now,
	}, nil
}

// lastRecordedSeq walks segments newest first and returns the highest
// sequence in the first one holding any record. Rotation and reopen leave
// empty segments behind, so the newest file alone is not enough.
func lastRecordedSeq(files []string) (uint64, error) {
	for i := len(files) - 1; i >= 0; i-- {
		seq, err := maxSeqInSegment(files[i])
		if err != nil {
			return 0, fmt.Errorf("journal: scan %s: %w", files[i], err)
		}
		if seq > 0 {
			return seq, nil
		}
	}
	return 0, nil
}

// Append frames u and writes it to the current segment.
func (w *Writer) Append(u orderbook.Update) error {
	var t RecordType
	switch u.Kind {
	case orderbook.KindSnapshot:
		t = RecordSnapshot
	case orderbook.KindIncremental:
		t = RecordIncremental
	default:
		return fmt.Errorf("journal: cannot record update kind %d", u.Kind)
	}

	// Frame:
	// [type:1][seq:8][time:8][len:4][payload][crc:4]
	buf := w.buf[:headerSize]
	buf = appendUpdate(buf, u)
	payloadLen := len(buf) - headerSize
	if payloadLen > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, payloadLen)
	}

	buf[0] = byte(t)
	binary.BigEndian.PutUint64(buf[1:9], w.seq.Next())
	binary.BigEndian.PutUint64(buf[9:17], uint64(w.now().UnixNano()))
	binary.BigEndian.PutUint32(buf[17:21], uint32(payloadLen))
	buf = binary.BigEndian.AppendUint32(buf, checksum(buf))
	w.buf = buf

	if err := w.current.append(buf); err != nil {
		return fmt.Errorf("journal: append: %w", err)
	}

	if w.segSize > 0 && w.current.offset >= w.segSize {
		return w.rotate()
	}
	return nil
}

// Seq is the sequence of the last appended record.
func (w *Writer) Seq() uint64 { return w.seq.Current() }

func (w *Writer) rotate() error {
	if err := w.current.close(); err != nil {
		return fmt.Errorf("journal: close segment: %w", err)
	}
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return fmt.Errorf("journal: open segment: %w", err)
	}
	w.current = seg
	return nil
}

// Close flushes and closes the current segment.
func (w *Writer) Close() error {
	return w.current.close()
}
