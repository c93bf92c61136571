// Package service runs the book: an engine goroutine that owns the
// orderbook and applies updates, and a consumer goroutine that receives
// top-of-book notifications over a bounded channel and measures latency.
//
// Nothing is shared between the two except the channel.
package service
