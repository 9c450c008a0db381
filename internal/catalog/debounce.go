package catalog

import (
	"sync"
	"time"

	"github.com/fjod/go_pos/internal/clock"
)

// Debouncer runs only the last of a burst of triggers.
type Debouncer struct {
	sched clock.Scheduler
	delay time.Duration

	mu    sync.Mutex
	timer clock.Timer
}

func NewDebouncer(sched clock.Scheduler, delay time.Duration) *Debouncer {
	return &Debouncer{sched: sched, delay: delay}
}

func (d *Debouncer) Trigger(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.sched.AfterFunc(d.delay, f)
}

func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
