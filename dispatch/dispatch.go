// Package dispatch maps hotkey edges and UI clicks onto actions.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"murmur/hotkey"
	"murmur/log"
	"murmur/ui"
)

type Trigger string

// Action is what a trigger does. A plain action runs Press on key-down. A
// toggle action runs Press on key-down and Release on key-up, guarded so a
// second press while one is in progress is ignored.
type Action struct {
	Name    string
	Press   func() error
	Release func() error
	Toggle  bool
	// Guard keys the in-progress flag. Toggles that drive the same channel
	// share a guard; it defaults to the trigger.
	Guard string
	// OnUI marshals the action onto the UI executor.
	OnUI bool
}

func OnPress(name string, fn func() error) Action {
	return Action{Name: name, Press: fn}
}

func Toggle(name, guard string, start, stop func() error) Action {
	return Action{Name: name, Press: start, Release: stop, Toggle: true, Guard: guard}
}

// UI returns a copy of a that runs on the UI context.
func (a Action) UI() Action {
	a.OnUI = true
	return a
}

type Dispatcher struct {
	exec    ui.Executor
	onError func(Trigger, error)

	mu         sync.Mutex
	bindings   map[Trigger]Action
	inProgress map[string]bool
}

func New(exec ui.Executor) *Dispatcher {
	if exec == nil {
		exec = ui.Inline{}
	}
	return &Dispatcher{
		exec:       exec,
		bindings:   make(map[Trigger]Action),
		inProgress: make(map[string]bool),
	}
}

// OnError is called, after logging, for every error or panic an action
// produces.
func (d *Dispatcher) OnError(fn func(Trigger, error)) {
	d.mu.Lock()
	d.onError = fn
	d.mu.Unlock()
}

// Bind attaches a to t, replacing any earlier binding.
func (d *Dispatcher) Bind(t Trigger, a Action) {
	if a.Guard == "" {
		a.Guard = string(t)
	}
	d.mu.Lock()
	d.bindings[t] = a
	d.mu.Unlock()
}

func (d *Dispatcher) Unbind(t Trigger) {
	d.mu.Lock()
	delete(d.bindings, t)
	d.mu.Unlock()
}

func (d *Dispatcher) Bindings() []Trigger {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Trigger, 0, len(d.bindings))
	for t := range d.bindings {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// InProgress reports whether a toggle holding guard is pressed.
func (d *Dispatcher) InProgress(guard string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inProgress[guard]
}

// Press handles a key-down or click on t.
func (d *Dispatcher) Press(t Trigger) {
	d.mu.Lock()
	a, ok := d.bindings[t]
	if !ok {
		d.mu.Unlock()
		return
	}
	if a.Toggle {
		if d.inProgress[a.Guard] {
			d.mu.Unlock()
			log.Infof("%s ignored: already in progress", t)
			return
		}
		d.inProgress[a.Guard] = true
	}
	d.mu.Unlock()

	d.run(t, a, a.Press, nil)
}

// Release handles a key-up on t. Only toggles react to it.
func (d *Dispatcher) Release(t Trigger) {
	d.mu.Lock()
	a, ok := d.bindings[t]
	if !ok || !a.Toggle || !d.inProgress[a.Guard] {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	d.run(t, a, a.Release, func() {
		d.mu.Lock()
		delete(d.inProgress, a.Guard)
		d.mu.Unlock()
	})
}

func (d *Dispatcher) run(t Trigger, a Action, fn func() error, after func()) {
	if fn == nil {
		if after != nil {
			after()
		}
		return
	}
	call := func() {
		if after != nil {
			defer after()
		}
		defer func() {
			if r := recover(); r != nil {
				d.fail(t, a, fmt.Errorf("panic: %v", r))
			}
		}()
		if err := fn(); err != nil {
			d.fail(t, a, err)
		}
	}
	if a.OnUI {
		d.exec.Post(call)
		return
	}
	call()
}

func (d *Dispatcher) fail(t Trigger, a Action, err error) {
	name := a.Name
	if name == "" {
		name = string(t)
	}
	log.Errorf("action %s: %v", name, err)
	d.mu.Lock()
	fn := d.onError
	d.mu.Unlock()
	if fn != nil {
		fn(t, err)
	}
}

// Attach feeds hk's edges into t until ctx is cancelled.
func (d *Dispatcher) Attach(ctx context.Context, t Trigger, hk hotkey.Hotkey) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hk.Keydown():
				d.Press(t)
			case <-hk.Keyup():
				d.Release(t)
			}
		}
	}()
}
