package audio

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates one display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

// Task is a cancellable repeating job.
type Task interface {
	// Cancel stops future invocations. It never blocks and may be called
	// more than once. An invocation already in flight may still complete.
	Cancel()
}

// Scheduler runs fn repeatedly until the returned Task is cancelled.
type Scheduler interface {
	Every(fn func()) Task
}

// FrameScheduler ticks at a fixed interval on its own goroutine per task.
type FrameScheduler struct {
	interval time.Duration
}

// NewFrameScheduler returns a scheduler ticking every interval.
func NewFrameScheduler(interval time.Duration) *FrameScheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameScheduler{interval: interval}
}

func (s *FrameScheduler) Interval() time.Duration { return s.interval }

func (s *FrameScheduler) Every(fn func()) Task {
	t := &tickerTask{done: make(chan struct{})}
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.done:
				return
			case <-ticker.C:
				// Cancel may race the tick; prefer done
				select {
				case <-t.done:
					return
				default:
				}
				fn()
			}
		}
	}()
	return t
}

type tickerTask struct {
	once sync.Once
	done chan struct{}
}

func (t *tickerTask) Cancel() {
	t.once.Do(func() { close(t.done) })
}
