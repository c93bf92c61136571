package journal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"l2book/domain/orderbook"
)

// Reader replays a journal directory segment by segment. It satisfies
// feed.Source.
type Reader struct {
	files   []string
	next    int
	f       *os.File
	r       *bufio.Reader
	lastSeq uint64
	header  []byte
}

// OpenReader lists the segments in dir. Reading starts at the first.
func OpenReader(dir string) (*Reader, error) {
	files, err := segmentFiles(dir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	return &Reader{files: files, header: make([]byte, headerSize)}, nil
}

// Next decodes the next recorded update, or returns io.EOF after the last
// segment.
func (r *Reader) Next() (orderbook.Update, error) {
	rec, err := r.NextRecord()
	if err != nil {
		return orderbook.Update{}, err
	}
	u, err := decodeUpdate(rec.Type, rec.Data)
	if err != nil {
		return orderbook.Update{}, fmt.Errorf("journal: record %d: %w", rec.Seq, err)
	}
	return u, nil
}

// NextRecord returns the next raw frame after checking its CRC and that
// its sequence is strictly increasing.
func (r *Reader) NextRecord() (*Record, error) {
	for {
		if r.r == nil {
			if r.next >= len(r.files) {
				return nil, io.EOF
			}
			f, err := os.Open(r.files[r.next])
			if err != nil {
				return nil, err
			}
			r.next++
			r.f = f
			r.r = bufio.NewReaderSize(f, 64<<10)
		}

		rec, err := r.readRecord()
		if err == io.EOF {
			_ = r.f.Close()
			r.f, r.r = nil, nil
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("journal: %s: %w", r.files[r.next-1], err)
		}

		if rec.Seq <= r.lastSeq {
			return nil, fmt.Errorf("%w: %d after %d", ErrNonMonotonic, rec.Seq, r.lastSeq)
		}
		r.lastSeq = rec.Seq
		return rec, nil
	}
}

// LastSeq is the sequence of the last record returned.
func (r *Reader) LastSeq() uint64 { return r.lastSeq }

func (r *Reader) readRecord() (*Record, error) {
	header := r.header
	if _, err := io.ReadFull(r.r, header); err != nil {
		return nil, err
	}

	t := RecordType(header[0])
	seq := binary.BigEndian.Uint64(header[1:9])
	ts := binary.BigEndian.Uint64(header[9:17])
	l := binary.BigEndian.Uint32(header[17:21])
	if l > maxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes at seq %d", ErrFrameTooLarge, l, seq)
	}

	frame := make([]byte, headerSize+int(l)+trailerSize)
	copy(frame, header)
	if _, err := io.ReadFull(r.r, frame[headerSize:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	body := frame[:headerSize+int(l)]
	crc := binary.BigEndian.Uint32(frame[headerSize+int(l):])
	if !checksumValid(body, crc) {
		return nil, fmt.Errorf("%w at seq %d", ErrCRCMismatch, seq)
	}

	return &Record{
		Type: t,
		Seq:  seq,
		Time: int64(ts),
		Data: body[headerSize:],
	}, nil
}

// Close releases the open segment, if any.
func (r *Reader) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f, r.r = nil, nil
	return err
}
