package feed

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"l2book/domain/orderbook"
)

// Source yields updates in feed order and returns io.EOF when done.
type Source interface {
	Next() (orderbook.Update, error)
}

// ReadAll drains src into memory so that engine timing excludes decoding.
func ReadAll(src Source) ([]orderbook.Update, error) {
	out := make([]orderbook.Update, 0, 4096)
	for {
		u, err := src.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, u)
	}
}

// SliceSource replays a decoded slice.
type SliceSource struct {
	updates []orderbook.Update
	pos     int
}

func NewSliceSource(updates []orderbook.Update) *SliceSource {
	return &SliceSource{updates: updates}
}

func (s *SliceSource) Next() (orderbook.Update, error) {
	if s.pos >= len(s.updates) {
		return orderbook.Update{}, io.EOF
	}
	u := s.updates[s.pos]
	s.pos++
	return u, nil
}

// Len is the total number of updates, consumed or not.
func (s *SliceSource) Len() int { return len(s.updates) }

// File is a Decoder reading from a file on disk.
type File struct {
	*Decoder
	f *os.File
}

// Open opens a CSV feed file for decoding.
func Open(path string, scale orderbook.TickScale, opts ...Option) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed %s: %w", path, err)
	}
	return &File{
		Decoder: NewDecoder(bufio.NewReaderSize(f, 1<<20), scale, opts...),
		f:       f,
	}, nil
}

func (f *File) Close() error { return f.f.Close() }
