// Package detect polls the system for screen recording, streaming and
// conferencing software and signals when that answer changes.
package detect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"murmur/log"
)

const (
	DefaultInterval = time.Second
	joinTimeout     = time.Second
)

// State is the outcome of one evaluation.
type State struct {
	Suspected bool
	Match     string
	CheckedAt time.Time
}

// Evaluator answers "is something recording the screen right now".
type Evaluator interface {
	Evaluate(ctx context.Context) (suspected bool, match string, err error)
}

// Matcher ORs the process check and the visible window check. A window
// counts only through the name of its owning process.
type Matcher struct {
	Table *Table
	Enum  Enumerator
}

func NewMatcher(enum Enumerator, extra ...string) *Matcher {
	return &Matcher{Table: NewTable(extra...), Enum: enum}
}

func (m *Matcher) Evaluate(ctx context.Context) (bool, string, error) {
	procs, procErr := m.Enum.Processes(ctx)
	for _, p := range procs {
		if tool, ok := m.Table.Match(p.Name); ok {
			return true, tool, nil
		}
	}

	windows, winErr := m.Enum.Windows(ctx)
	if len(windows) > 0 {
		owners := make(map[int32]string, len(procs))
		for _, p := range procs {
			owners[p.PID] = p.Name
		}
		for _, w := range windows {
			if w.Cloaked {
				continue
			}
			owner := w.Owner
			if owner == "" {
				owner = owners[w.PID]
			}
			if tool, ok := m.Table.Match(owner); ok {
				return true, tool, nil
			}
		}
	}
	return false, "", errors.Join(procErr, winErr)
}

// Poller runs an Evaluator on a fixed interval and notifies subscribers
// only when the suspected flag flips.
type Poller struct {
	interval time.Duration
	eval     Evaluator

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	last   bool

	state atomic.Pointer[State]

	subsMu sync.Mutex
	subs   map[int]func(State)
	nextID int
}

func NewPoller(eval Evaluator, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	p := &Poller{
		interval: interval,
		eval:     eval,
		subs:     make(map[int]func(State)),
	}
	p.state.Store(&State{})
	return p
}

func (p *Poller) Interval() time.Duration { return p.interval }

// Subscribe registers fn for every transition. fn runs on the poller
// goroutine and must not block. The returned func removes it.
func (p *Poller) Subscribe(fn func(State)) (unsubscribe func()) {
	p.subsMu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.subsMu.Unlock()
	return func() {
		p.subsMu.Lock()
		delete(p.subs, id)
		p.subsMu.Unlock()
	}
}

// State returns the most recent evaluation.
func (p *Poller) State() State {
	return *p.state.Load()
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Start launches the loop. Calling it while running does nothing.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	go p.loop(ctx, done)
}

// Stop cancels the loop and waits for it to exit, giving up after a
// second. Safe to call when not running.
func (p *Poller) Stop() bool {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return true
	}
	cancel()
	select {
	case <-done:
		return true
	case <-time.After(joinTimeout):
		log.Warn("detection poller did not stop in time")
		return false
	}
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		p.tick(ctx)
		timer.Reset(p.interval)
	}
}

func (p *Poller) tick(ctx context.Context) {
	suspected, match, err := p.evaluate(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Warnf("detection check: %v", err)
	}
	st := State{Suspected: suspected, Match: match, CheckedAt: time.Now()}
	p.state.Store(&st)

	p.mu.Lock()
	changed := suspected != p.last
	p.last = suspected
	p.mu.Unlock()
	if !changed {
		return
	}

	log.DetectionChanged(suspected, match)
	p.subsMu.Lock()
	subs := make([]func(State), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.subsMu.Unlock()
	for _, fn := range subs {
		p.notify(fn, st)
	}
}

// evaluate treats errors and panics as "no match". A tick that matched
// before failing still counts as a match.
func (p *Poller) evaluate(ctx context.Context) (suspected bool, match string, err error) {
	defer func() {
		if r := recover(); r != nil {
			suspected, match, err = false, "", fmt.Errorf("panic: %v", r)
		}
	}()
	suspected, match, err = p.eval.Evaluate(ctx)
	if err != nil && !suspected {
		return false, "", err
	}
	return suspected, match, nil
}

func (p *Poller) notify(fn func(State), st State) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("detection subscriber panicked: %v", r)
		}
	}()
	fn(st)
}

// Manual is an Evaluator whose answer is set by hand.
type Manual struct {
	v atomic.Bool
}

func (m *Manual) Set(suspected bool) { m.v.Store(suspected) }

func (m *Manual) Evaluate(context.Context) (bool, string, error) {
	if m.v.Load() {
		return true, "manual", nil
	}
	return false, "", nil
}
