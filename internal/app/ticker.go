package app

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
)

// Ticker is a cancellable repeating task driving the session countdown.
type Ticker interface {
	Start(fn func()) error
	Stop()
	Ticks() int
}

// Timer is a pending one-shot callback.
type Timer interface {
	Stop() bool
}

// Clock abstracts wall time and one-shot delays.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// SystemClock is the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// IntervalTicker runs fn on a gocron scheduler every interval.
type IntervalTicker struct {
	interval time.Duration
	ticks    atomic.Int64

	mu        sync.Mutex
	scheduler *gocron.Scheduler
}

func NewIntervalTicker(interval time.Duration) *IntervalTicker {
	if interval <= 0 {
		interval = time.Second
	}
	return &IntervalTicker{interval: interval}
}

// Start is a no-op when the ticker is already running.
func (t *IntervalTicker) Start(fn func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.scheduler != nil {
		return nil
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	_, err := s.Every(t.interval).WaitForSchedule().Do(func() {
		if !t.owns(s) {
			return
		}
		t.ticks.Add(1)
		fn()
	})
	if err != nil {
		return err
	}
	t.scheduler = s
	s.StartAsync()
	return nil
}

// Stop may be called from inside fn; the scheduler is torn down asynchronously
// and a stopped scheduler never calls fn again.
func (t *IntervalTicker) Stop() {
	t.mu.Lock()
	s := t.scheduler
	t.scheduler = nil
	t.mu.Unlock()
	if s != nil {
		go s.Stop()
	}
}

func (t *IntervalTicker) owns(s *gocron.Scheduler) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scheduler == s
}

// Ticks counts callbacks fired since construction.
func (t *IntervalTicker) Ticks() int {
	return int(t.ticks.Load())
}
