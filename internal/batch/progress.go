package batch

import (
	"sync"
	"time"
)

// tracker accumulates per-item outcomes into a Progress snapshot. It is
// written only by the job's collector goroutine but read from status queries,
// so all access goes through the mutex.
type tracker struct {
	mu sync.Mutex

	progress Progress

	// running mean of observed item durations, updated incrementally so the
	// estimate stays stable for long jobs.
	meanSeconds float64
	observed    int

	// in-flight items keyed by position; duplicate references in one job
	// stay distinct entries.
	current map[int]string
}

func newTracker(total int, startedAt time.Time) *tracker {
	t := &tracker{current: make(map[int]string)}
	t.progress.Total = total
	t.progress.StartedAt = &startedAt
	t.progress.recomputePercentage()
	return t
}

// itemStarted records an item as in flight. With concurrent workers the
// CurrentItem field shows one of them, preferring the most recent start.
func (t *tracker) itemStarted(position int, reference string) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current[position] = reference
	t.progress.CurrentItem = reference
	return t.snapshotLocked()
}

// itemFinished folds one settled item into the counters. Skipped items count
// as neither processed nor failed.
func (t *tracker) itemFinished(position int, status ItemStatus, elapsed time.Duration) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.current, position)
	if len(t.current) == 0 {
		t.progress.CurrentItem = ""
	} else {
		for _, ref := range t.current {
			t.progress.CurrentItem = ref
			break
		}
	}

	switch status {
	case ItemSuccess:
		t.progress.Processed++
	case ItemFailed:
		t.progress.Failed++
	}
	t.progress.recomputePercentage()

	if status == ItemSuccess || status == ItemFailed {
		t.observed++
		t.meanSeconds += (elapsed.Seconds() - t.meanSeconds) / float64(t.observed)
		remaining := t.progress.Total - t.progress.Processed - t.progress.Failed
		if remaining > 0 {
			eta := float64(remaining) * t.meanSeconds
			t.progress.ETASeconds = &eta
		} else {
			t.progress.ETASeconds = nil
		}
	}

	return t.snapshotLocked()
}

// snapshot returns the current progress without mutating it.
func (t *tracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// final clears transient fields for the terminal record.
func (t *tracker) final() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress.CurrentItem = ""
	t.progress.ETASeconds = nil
	t.current = map[int]string{}
	return t.snapshotLocked()
}

func (t *tracker) snapshotLocked() Progress {
	cp := t.progress
	if t.progress.ETASeconds != nil {
		eta := *t.progress.ETASeconds
		cp.ETASeconds = &eta
	}
	if t.progress.StartedAt != nil {
		ts := *t.progress.StartedAt
		cp.StartedAt = &ts
	}
	return cp
}
