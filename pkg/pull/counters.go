package pull

import "sync/atomic"

// Counters mirrors the numeric half of pull-engine state:
// outstanding fetch/write counts per namespace, monotonic requested/
// fetched totals, and bytes transferred. Fields are atomics rather than
// plain uint64s behind a mutex because the progress reporter (pkg/pull/
// progress.go) polls them from a separate goroutine at 1 Hz while the
// engine goroutine updates them continuously — the one piece of state in
// this package that is genuinely touched from two goroutines at once.
type Counters struct {
	OutstandingMetadataFetches atomic.Uint64
	OutstandingContentFetches  atomic.Uint64
	OutstandingMetadataWrites  atomic.Uint64
	OutstandingContentWrites   atomic.Uint64

	RequestedMetadata atomic.Uint64
	RequestedContent  atomic.Uint64
	FetchedMetadata   atomic.Uint64
	FetchedContent    atomic.Uint64

	BytesTransferred atomic.Uint64
}

// allOutstandingZero reports whether every outstanding fetch/write
// counter is zero, the engine-side half of the termination condition.
func (c *Counters) allOutstandingZero() bool {
	return c.OutstandingMetadataFetches.Load() == 0 &&
		c.OutstandingContentFetches.Load() == 0 &&
		c.OutstandingMetadataWrites.Load() == 0 &&
		c.OutstandingContentWrites.Load() == 0
}

func inc(c *atomic.Uint64) { c.Add(1) }
func dec(c *atomic.Uint64) { c.Add(^uint64(0)) }
