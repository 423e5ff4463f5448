package services

import (
	"sync"
	"time"
)

// watchdog runs check on a fixed interval and once more at a deadline.
// Both triggers are replaced together on every arm.
type watchdog struct {
	interval time.Duration
	check    func()

	mu       sync.Mutex
	stop     chan struct{}
	deadline *time.Timer
	wg       sync.WaitGroup
}

func newWatchdog(interval time.Duration, check func()) *watchdog {
	return &watchdog{interval: interval, check: check}
}

// arm cancels any running triggers and starts new ones, with the one-shot
// firing after deadlineIn.
func (w *watchdog) arm(deadlineIn time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.disarmLocked()

	stop := make(chan struct{})
	w.stop = stop
	w.deadline = time.AfterFunc(deadlineIn, w.check)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				w.check()
			}
		}
	}()
}

func (w *watchdog) disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.disarmLocked()
}

func (w *watchdog) disarmLocked() {
	if w.deadline != nil {
		w.deadline.Stop()
		w.deadline = nil
	}
	if w.stop != nil {
		close(w.stop)
		w.stop = nil
	}
}

func (w *watchdog) armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stop != nil
}

// wait blocks until every ticker goroutine has exited. Must not be called
// from inside check.
func (w *watchdog) wait() {
	w.wg.Wait()
}
