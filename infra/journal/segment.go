package journal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type segment struct {
	file   *os.File
	w      *bufio.Writer
	offset int64
}

func openSegment(dir string, index int) (*segment, error) {
	f, err := os.OpenFile(segmentPath(dir, index), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return &segment{file: f, w: bufio.NewWriterSize(f, 64<<10)}, nil
}

func (s *segment) append(b []byte) error {
	n, err := s.w.Write(b)
	s.offset += int64(n)
	return err
}

func (s *segment) close() error {
	if err := s.w.Flush(); err != nil {
		_ = s.file.Close()
		return err
	}
	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}

// segmentIndex parses the index out of a segment file name.
func segmentIndex(path string) (int, error) {
	var idx int
	if _, err := fmt.Sscanf(filepath.Base(path), "segment-%06d.wal", &idx); err != nil {
		return 0, fmt.Errorf("journal: bad segment name %q: %w", path, err)
	}
	return idx, nil
}

// maxSeqInSegment scans a segment's headers and returns the highest
// sequence found. A torn tail ends the scan.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var max uint64
	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return max, nil
			}
			return max, err
		}

		seq := binary.BigEndian.Uint64(header[1:9])
		if seq > max {
			max = seq
		}

		payloadLen := binary.BigEndian.Uint32(header[17:21])
		if _, err := r.Discard(int(payloadLen) + trailerSize); err != nil {
			if err == io.EOF {
				return max, nil
			}
			return max, err
		}
	}
}
