// internal/common/clock/fake.go
package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Timers fire synchronously inside
// Advance, in fire-time order, on the calling goroutine.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	timers map[int]*fakeTimer
}

type fakeTimer struct {
	id     int
	fireAt time.Time
	fn     func()
	fake   *Fake
}

// NewFake creates a Fake clock frozen at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start, timers: make(map[int]*fakeTimer)}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Schedule(d time.Duration, fn func()) TimerHandle {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	t := &fakeTimer{
		id:     f.nextID,
		fireAt: f.now.Add(d),
		fn:     fn,
		fake:   f,
	}
	f.timers[t.id] = t
	return t
}

// Advance moves the clock forward and fires every timer whose instant
// has been reached, earliest first.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	target := f.now

	var due []*fakeTimer
	for _, t := range f.timers {
		if !t.fireAt.After(target) {
			due = append(due, t)
		}
	}
	for _, t := range due {
		delete(f.timers, t.id)
	}
	f.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].fireAt.Before(due[j].fireAt) })
	for _, t := range due {
		t.fn()
	}
}

// Pending returns the number of timers that have not fired or been stopped.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

func (t *fakeTimer) Stop() bool {
	t.fake.mu.Lock()
	defer t.fake.mu.Unlock()

	_, pending := t.fake.timers[t.id]
	delete(t.fake.timers, t.id)
	return pending
}
