// Package orderbook maintains a single-symbol L2 book: two ordered
// price-level stores (bids, asks), a cached best level per side, and the
// update applicator that turns feed updates into top-of-book
// notifications.
//
// A Book is single-writer. It is created empty, mutated only through
// Apply, and never shared with another goroutine; readers receive
// Notification values instead of touching the book.
package orderbook
