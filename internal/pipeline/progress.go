package pipeline

import (
	"sync/atomic"
	"time"

	pb "gopkg.in/cheggaaa/pb.v1"
)

// Progress is a monotonic counter updated via atomic operations from many
// worker goroutines and read at a fixed interval for reporting.
type Progress struct {
	Attempted atomic.Int64
	Stored    atomic.Int64
	Failed    atomic.Int64
	Skipped   atomic.Int64
}

// Snapshot is a point-in-time, non-atomic copy suitable for logging.
type Snapshot struct {
	Attempted, Stored, Failed, Skipped int64
}

func (p *Progress) Snapshot() Snapshot {
	return Snapshot{
		Attempted: p.Attempted.Load(),
		Stored:    p.Stored.Load(),
		Failed:    p.Failed.Load(),
		Skipped:   p.Skipped.Load(),
	}
}

// reportProgress drives a cheggaaa/pb.v1 bar off the progress counters,
// ticking on a fixed interval until done is closed.
func reportProgress(total int64, progress *Progress, done <-chan struct{}) {
	if total <= 0 {
		return
	}
	bar := pb.New64(total)
	bar.SetRefreshRate(time.Second)
	bar.Start()
	defer bar.FinishPrint("region acquisition finished")

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			bar.Set64(progress.Attempted.Load())
		case <-done:
			bar.Set64(progress.Attempted.Load())
			return
		}
	}
}
