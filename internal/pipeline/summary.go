package pipeline

import "sync/atomic"

// SourceSummary is the per-source attempt breakdown the pipeline returns
// when a region finishes.
type SourceSummary struct {
	Stored          int64
	Failed          int64
	TransientErrors int64
	Invalid         int64
	Empty           int64
	NotFound        int64
}

// sourceCounters holds the live, concurrently-updated counters backing one
// SourceSummary; workers across many goroutines increment these under no
// lock, using atomic.Int64.
type sourceCounters struct {
	stored          atomic.Int64
	failed          atomic.Int64
	transientErrors atomic.Int64
	invalid         atomic.Int64
	empty           atomic.Int64
	notFound        atomic.Int64
}

func (c *sourceCounters) snapshot() SourceSummary {
	return SourceSummary{
		Stored:          c.stored.Load(),
		Failed:          c.failed.Load(),
		TransientErrors: c.transientErrors.Load(),
		Invalid:         c.invalid.Load(),
		Empty:           c.empty.Load(),
		NotFound:        c.notFound.Load(),
	}
}
