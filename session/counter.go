package session

import "sync/atomic"

// atomicCounter is an atomically-updated uint64 used for the Session's four
// byte counters. bytesSent and bytesReceived are only ever added to.
// bytesPending and bytesSending are gauges: they are stored with the current
// size of the main and flush buffers, so they rise and fall as the queue
// fills and drains, and they are reset to zero on Disconnect.
type atomicCounter struct {
	v atomic.Uint64
}

func (c *atomicCounter) load() uint64    { return c.v.Load() }
func (c *atomicCounter) store(n uint64)  { c.v.Store(n) }
func (c *atomicCounter) add(n uint64)    { c.v.Add(n) }
