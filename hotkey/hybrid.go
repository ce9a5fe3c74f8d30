package hotkey

import (
	"sync"
	"sync/atomic"
	"time"
)

// Hybrid wraps a Hotkey so the same combo supports hold-to-talk and
// tap-to-latch. It is itself a Hotkey: Keydown fires when capture should
// start and Keyup when it should stop. A press held past longPress stops on
// release; a shorter tap latches and the next press+release stops.
type Hybrid struct {
	inner   Hotkey
	keydown chan struct{}
	keyup   chan struct{}
	stop    chan struct{}
	once    sync.Once
	toggle  atomic.Bool
}

// NewHybrid builds a Hybrid controller on top of an existing Hotkey.
func NewHybrid(hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		inner:   hk,
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	go h.run(longPress)
	return h
}

func (h *Hybrid) Register() error { return h.inner.Register() }

func (h *Hybrid) Unregister() {
	h.once.Do(func() {
		close(h.stop)
		h.inner.Unregister()
	})
}

func (h *Hybrid) Keydown() <-chan struct{} { return h.keydown }
func (h *Hybrid) Keyup() <-chan struct{}   { return h.keyup }

// IsToggle reports whether the current capture was latched by a tap.
func (h *Hybrid) IsToggle() bool { return h.toggle.Load() }

func (h *Hybrid) emit(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// wait blocks for one edge; false means the Hybrid was unregistered.
func (h *Hybrid) wait(ch <-chan struct{}) bool {
	select {
	case <-ch:
	case <-h.stop:
		return false
	}
	select {
	case <-h.stop:
		return false
	default:
		return true
	}
}

func (h *Hybrid) run(longPress time.Duration) {
	in := h.inner
	for {
		if !h.wait(in.Keydown()) {
			return
		}
		h.toggle.Store(false)
		h.emit(h.keydown)

		timer := time.NewTimer(longPress)
		select {
		case <-h.stop:
			timer.Stop()
			return
		case <-timer.C:
			// held: stop on release
			if !h.wait(in.Keyup()) {
				return
			}
		case <-in.Keyup():
			timer.Stop()
			// tapped: latched until the next press is released
			h.toggle.Store(true)
			if !h.wait(in.Keydown()) || !h.wait(in.Keyup()) {
				return
			}
		}
		h.emit(h.keyup)
	}
}
