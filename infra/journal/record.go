// Package journal captures a decoded feed to disk and replays it.
//
// A journal directory holds numbered segment files. Each record is framed
// as
//
//	[type:1][seq:8][time:8][len:4][payload][crc:4]
//
// big-endian, with a CRC32 (IEEE) over header and payload. The payload is
// the update in protobuf wire format.
package journal

import (
	"errors"
	"fmt"
	"path/filepath"

	"l2book/domain/orderbook"
)

const (
	headerSize  = 1 + 8 + 8 + 4
	trailerSize = 4

	// maxPayloadSize bounds a single frame. A larger length field is
	// treated as corruption.
	maxPayloadSize = 64 << 20

	segmentPattern = "segment-*.wal"
)

var (
	ErrCRCMismatch   = errors.New("journal: crc mismatch")
	ErrNonMonotonic  = errors.New("journal: non-monotonic sequence")
	ErrFrameTooLarge = errors.New("journal: frame too large")
)

type RecordType uint8

const (
	RecordSnapshot    = RecordType(orderbook.KindSnapshot)
	RecordIncremental = RecordType(orderbook.KindIncremental)
)

// Record is one frame as stored on disk.
type Record struct {
	Type RecordType
	Seq  uint64
	// Time is the capture wall-clock time in unix nanos.
	Time int64
	Data []byte
}

func segmentPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("segment-%06d.wal", index))
}

func segmentFiles(dir string) ([]string, error) {
	// Glob returns names sorted; the zero-padded index keeps that numeric.
	return filepath.Glob(filepath.Join(dir, segmentPattern))
}
