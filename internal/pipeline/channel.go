package pipeline

import (
	"context"
	"errors"
	"sync"

	"TxLedger/internal/ledger"
)

// ErrChannelClosed is returned by Send after Close.
var ErrChannelClosed = errors.New("pipeline: channel closed")

// Channel is the bounded FIFO queue between the decode producer and the
// single engine consumer. A full channel blocks Send, which is the
// backpressure signal that slows decoding when the engine falls behind.
// Close ends intake; buffered records remain receivable until drained.
//
// Send and Close are safe to call from different goroutines: Close
// waits for in-flight Sends to finish before closing the underlying
// channel, and Sends that arrive later fail with ErrChannelClosed.
type Channel struct {
	ch     chan ledger.Record
	mu     sync.RWMutex
	closed bool
}

// NewChannel creates a channel with the given capacity. Capacity must
// be at least 1: an unbuffered channel gives no backpressure headroom.
func NewChannel(capacity int) *Channel {
	if capacity < 1 {
		capacity = 1
	}
	return &Channel{
		ch: make(chan ledger.Record, capacity),
	}
}

// Send enqueues a record, blocking while the channel is full. It fails
// once the channel is closed or ctx is cancelled.
func (c *Channel) Send(ctx context.Context, rec ledger.Record) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrChannelClosed
	}

	select {
	case c.ch <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends intake. It blocks until in-flight Sends complete, so the
// close never races a send. Safe to call more than once.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// Records exposes the receive side. The channel delivers records in
// exactly the order they were sent; after Close it drains and then
// yields the closed signal.
func (c *Channel) Records() <-chan ledger.Record {
	return c.ch
}

// Len returns the number of buffered records.
func (c *Channel) Len() int {
	return len(c.ch)
}

// Cap returns the channel capacity.
func (c *Channel) Cap() int {
	return cap(c.ch)
}
