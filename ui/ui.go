// Package ui provides the execution context that owns the presentation
// surfaces. Everything that touches a surface is posted here.
package ui

import (
	"sync"

	"murmur/log"
)

// Executor runs closures on the UI context, in the order they were posted.
// Post never blocks on the closure itself.
type Executor interface {
	Post(fn func())
}

// Inline runs closures immediately on the caller's goroutine.
type Inline struct{}

func (Inline) Post(fn func()) { safeRun(fn) }

const queueSize = 256

// Loop owns a goroutine that drains posted closures one at a time. Each
// closure is handed to run, which lets the closures land on a thread the
// toolkit insists on.
type Loop struct {
	run   func(func())
	queue chan func()
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewLoop(run func(func())) *Loop {
	if run == nil {
		run = func(fn func()) { fn() }
	}
	l := &Loop{
		run:   run,
		queue: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
	go l.drain()
	return l
}

func (l *Loop) drain() {
	defer close(l.done)
	for fn := range l.queue {
		l.run(func() { safeRun(fn) })
	}
}

// Post enqueues fn. Closures posted after Close are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	l.queue <- fn
}

// Sync blocks until everything posted before it has run.
func (l *Loop) Sync() {
	ch := make(chan struct{})
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return
	}
	l.queue <- func() { close(ch) }
	l.mu.RUnlock()
	<-ch
}

func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()
	<-l.done
}

func safeRun(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("ui closure panicked: %v", r)
		}
	}()
	fn()
}
