package hostfake

import (
	"sync"
	"time"

	"github.com/vbongda/vleague-auth/popup"
)

var _ popup.Clock = (*FakeClock)(nil)

// FakeClock hands out timers and tickers that only fire when the test says so.
type FakeClock struct {
	lock    sync.Mutex
	timers  []*fakeTimer
	tickers []*fakeTicker
}

func NewFakeClock() *FakeClock {
	return &FakeClock{}
}

func (c *FakeClock) NewTimer(d time.Duration) popup.Timer {
	c.lock.Lock()
	defer c.lock.Unlock()
	timer := &fakeTimer{ch: make(chan time.Time, 1)}
	c.timers = append(c.timers, timer)
	return timer
}

func (c *FakeClock) NewTicker(d time.Duration) popup.Ticker {
	c.lock.Lock()
	defer c.lock.Unlock()
	ticker := &fakeTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, ticker)
	return ticker
}

// FireTimer fires the most recently created timer.
func (c *FakeClock) FireTimer() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if len(c.timers) == 0 {
		return
	}
	c.timers[len(c.timers)-1].fire()
}

// Tick fires the most recently created ticker once.
func (c *FakeClock) Tick() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if len(c.tickers) == 0 {
		return
	}
	c.tickers[len(c.tickers)-1].fire()
}

// TimerCount reports how many timers have been created.
func (c *FakeClock) TimerCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.timers)
}

// TickerCount reports how many tickers have been created.
func (c *FakeClock) TickerCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.tickers)
}

// PendingTimers reports how many timers are armed and not yet stopped or fired.
func (c *FakeClock) PendingTimers() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	pending := 0
	for _, timer := range c.timers {
		if timer.pending() {
			pending++
		}
	}
	return pending
}

type fakeTimer struct {
	lock    sync.Mutex
	ch      chan time.Time
	stopped bool
	fired   bool
}

func (t *fakeTimer) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTimer) Stop() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (t *fakeTimer) fire() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.stopped || t.fired {
		return
	}
	t.fired = true
	t.ch <- time.Now()
}

func (t *fakeTimer) pending() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return !t.stopped && !t.fired
}

type fakeTicker struct {
	lock    sync.Mutex
	ch      chan time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTicker) Stop() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.stopped = true
}

func (t *fakeTicker) fire() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.stopped {
		return
	}
	t.ch <- time.Now()
}
