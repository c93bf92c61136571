// Package notify is the bounded hand-off between the engine and its single
// consumer.
package notify

import (
	"context"
	"errors"

	"l2book/domain/orderbook"
)

var (
	// ErrDisconnected is returned by Send once the consumer has gone away.
	ErrDisconnected = errors.New("notify: consumer disconnected")
	// ErrClosed is returned by Send after the producer closed the channel.
	ErrClosed = errors.New("notify: channel closed")
)

// Channel is a single-producer/single-consumer FIFO with a fixed capacity.
// Send blocks while the channel holds Cap() unread notifications.
//
// Send and Close belong to the producer goroutine; Recv and Disconnect
// belong to the consumer goroutine.
type Channel struct {
	buf     chan orderbook.Notification
	gone    chan struct{}
	closed  bool // producer-owned
	dropped bool // consumer-owned
}

// New returns a channel with room for capacity unread notifications.
// capacity must be positive.
func New(capacity int) *Channel {
	if capacity <= 0 {
		panic("notify: capacity must be positive")
	}
	return &Channel{
		buf:  make(chan orderbook.Notification, capacity),
		gone: make(chan struct{}),
	}
}

// Send enqueues n, blocking while the channel is full. It fails with
// ErrDisconnected if the consumer has disconnected, even when space is
// available, and with ctx.Err() if ctx is done while waiting.
func (c *Channel) Send(ctx context.Context, n orderbook.Notification) error {
	if c.closed {
		return ErrClosed
	}
	select {
	case <-c.gone:
		return ErrDisconnected
	default:
	}

	select {
	case c.buf <- n:
		return nil
	case <-c.gone:
		return ErrDisconnected
	case <-ctx.Done():
		select {
		case <-c.gone:
			return ErrDisconnected
		default:
		}
		return ctx.Err()
	}
}

// Close marks the end of the stream. Buffered notifications are still
// delivered before Recv reports end-of-stream. Close is idempotent.
func (c *Channel) Close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.buf)
}

// Recv blocks until a notification is available. ok is false once the
// channel is closed and drained.
func (c *Channel) Recv() (n orderbook.Notification, ok bool) {
	n, ok = <-c.buf
	return n, ok
}

// RecvContext is Recv with cancellation.
func (c *Channel) RecvContext(ctx context.Context) (orderbook.Notification, bool, error) {
	select {
	case n, ok := <-c.buf:
		return n, ok, nil
	case <-ctx.Done():
		return orderbook.Notification{}, false, ctx.Err()
	}
}

// Disconnect drops the consumer side. Any blocked or later Send fails with
// ErrDisconnected. Safe to call more than once.
func (c *Channel) Disconnect() {
	if c.dropped {
		return
	}
	c.dropped = true
	close(c.gone)
}

// Len is the number of unread notifications.
func (c *Channel) Len() int { return len(c.buf) }

// Cap is the capacity given to New.
func (c *Channel) Cap() int { return cap(c.buf) }
