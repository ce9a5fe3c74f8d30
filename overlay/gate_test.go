package overlay

import (
	"sync"
	"testing"
	"time"

	"murmur/detect"
	"murmur/ui"
)

type recordingSurface struct {
	mu      sync.Mutex
	visible bool
	shown   []Content
	hides   int
}

func (s *recordingSurface) Show(c Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = true
	s.shown = append(s.shown, c)
}

func (s *recordingSurface) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = false
	s.hides++
}

func (s *recordingSurface) IsVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

func (s *recordingSurface) Shown() []Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Content(nil), s.shown...)
}

// queueExec holds closures until run is called, standing in for a busy UI
// thread.
type queueExec struct {
	mu  sync.Mutex
	fns []func()
}

func (q *queueExec) Post(fn func()) {
	q.mu.Lock()
	q.fns = append(q.fns, fn)
	q.mu.Unlock()
}

func (q *queueExec) run() {
	q.mu.Lock()
	fns := q.fns
	q.fns = nil
	q.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func solution(text string) Request {
	return Request{Kind: KindSolution, Content: Content{Text: text}}
}

func newTestGate(exec ui.Executor, ttl time.Duration) (*Gate, *recordingSurface, *recordingSurface) {
	ov, notif := &recordingSurface{}, &recordingSurface{}
	g := NewGate(exec, ov, notif, Config{NotificationTTL: ttl, HideWhenRecording: true})
	return g, ov, notif
}

func TestShowWhenNotSuppressed(t *testing.T) {
	g, ov, notif := newTestGate(ui.Inline{}, time.Second)

	if !g.RequestShow(solution("use a hash map")) {
		t.Fatal("request dropped while not suppressed")
	}
	if !ov.IsVisible() || ov.Shown()[0].Text != "use a hash map" {
		t.Errorf("overlay shown = %v", ov.Shown())
	}
	if len(notif.Shown()) != 0 {
		t.Error("solution touched the notification surface")
	}
	last, ok := g.Last()
	if !ok || last.Content.Text != "use a hash map" {
		t.Errorf("Last = %v, %v", last, ok)
	}
}

func TestSuppressedRequestDropped(t *testing.T) {
	g, ov, notif := newTestGate(ui.Inline{}, time.Second)

	g.SetSuppressed(true)
	if g.RequestShow(solution("x")) {
		t.Error("request accepted while suppressed")
	}
	if g.Notify("Error", "y") {
		t.Error("notification accepted while suppressed")
	}
	if ov.IsVisible() || notif.IsVisible() || len(ov.Shown()) != 0 {
		t.Error("surface shown while suppressed")
	}
	if g.Dropped() != 2 {
		t.Errorf("dropped = %d, want 2", g.Dropped())
	}
}

func TestSuppressionHidesAndDoesNotReplay(t *testing.T) {
	g, ov, notif := newTestGate(ui.Inline{}, time.Hour)

	g.RequestShow(solution("a"))
	g.Notify("Status", "b")
	g.SetSuppressed(true)
	if ov.IsVisible() || notif.IsVisible() {
		t.Fatal("surfaces still visible after suppression")
	}

	g.RequestShow(solution("dropped"))
	g.SetSuppressed(false)
	if ov.IsVisible() {
		t.Error("lifting suppression re-showed the overlay")
	}
	if n := len(ov.Shown()); n != 1 {
		t.Errorf("overlay shows = %d, want 1", n)
	}
}

func TestRecheckOnUIContext(t *testing.T) {
	q := &queueExec{}
	g, ov, _ := newTestGate(q, time.Second)

	if !g.RequestShow(solution("late")) {
		t.Fatal("request dropped before suppression")
	}
	g.SetSuppressed(true)
	q.run()

	if len(ov.Shown()) != 0 {
		t.Error("queued show ran after suppression began")
	}
	if g.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", g.Dropped())
	}
}

func TestLatestSolutionWins(t *testing.T) {
	g, ov, _ := newTestGate(ui.Inline{}, time.Second)
	g.RequestShow(solution("first"))
	g.RequestShow(Request{Kind: KindExplanation, Content: Content{Text: "second"}})

	shown := ov.Shown()
	if len(shown) != 2 || shown[1].Text != "second" {
		t.Errorf("overlay shows = %v", shown)
	}
	if last, _ := g.Last(); last.Kind != KindExplanation {
		t.Errorf("Last kind = %s", last.Kind)
	}
}

func TestNotificationSelfDismisses(t *testing.T) {
	l := ui.NewLoop(nil)
	defer l.Close()
	g, _, notif := newTestGate(l, 20*time.Millisecond)

	g.Notify("Error", "network")
	l.Sync()
	if !notif.IsVisible() {
		t.Fatal("notification not shown")
	}

	deadline := time.After(time.Second)
	for notif.IsVisible() {
		select {
		case <-deadline:
			t.Fatal("notification still visible after its window")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNewerNotificationRestartsWindow(t *testing.T) {
	l := ui.NewLoop(nil)
	defer l.Close()
	g, _, notif := newTestGate(l, 60*time.Millisecond)

	g.Notify("1", "first")
	time.Sleep(40 * time.Millisecond)
	g.Notify("2", "second")
	time.Sleep(35 * time.Millisecond)
	l.Sync()
	// 75ms after the first notification, 35ms after the second.
	if !notif.IsVisible() {
		t.Error("older notification's timer hid the newer one")
	}
}

func TestDisabledSuppression(t *testing.T) {
	ov, notif := &recordingSurface{}, &recordingSurface{}
	g := NewGate(ui.Inline{}, ov, notif, Config{HideWhenRecording: false})
	g.SetSuppressed(true)
	if !g.RequestShow(solution("x")) || !ov.IsVisible() {
		t.Error("show blocked with hide-when-recording off")
	}
}

func TestWatchPoller(t *testing.T) {
	m := &detect.Manual{}
	p := detect.NewPoller(m, 2*time.Millisecond)
	g, ov, _ := newTestGate(ui.Inline{}, time.Second)
	g.Watch(p)
	g.RequestShow(solution("visible"))

	p.Start()
	defer p.Stop()
	m.Set(true)

	deadline := time.After(time.Second)
	for ov.IsVisible() {
		select {
		case <-deadline:
			t.Fatal("overlay visible after detection")
		case <-time.After(2 * time.Millisecond):
		}
	}
	if !g.Suppressed() {
		t.Error("gate not suppressed")
	}
}
