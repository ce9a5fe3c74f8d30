package detect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type scriptedEval struct {
	mu      sync.Mutex
	answers []bool
	calls   int
	panicAt int
	errAt   int
	block   chan struct{}
}

func (s *scriptedEval) Evaluate(ctx context.Context) (bool, string, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return false, "", ctx.Err()
		}
	}
	if s.panicAt > 0 && i+1 == s.panicAt {
		panic("enumeration blew up")
	}
	if s.errAt > 0 && i+1 == s.errAt {
		return false, "", errors.New("access denied")
	}
	if i >= len(s.answers) {
		return s.answers[len(s.answers)-1], "obs64", nil
	}
	return s.answers[i], "obs64", nil
}

func (s *scriptedEval) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type signalRecorder struct {
	mu      sync.Mutex
	signals []bool
	ch      chan bool
}

func newSignalRecorder() *signalRecorder {
	return &signalRecorder{ch: make(chan bool, 32)}
}

func (r *signalRecorder) record(st State) {
	r.mu.Lock()
	r.signals = append(r.signals, st.Suspected)
	r.mu.Unlock()
	r.ch <- st.Suspected
}

func (r *signalRecorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.signals...)
}

func waitCalls(t *testing.T, e *scriptedEval, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for e.Calls() < n {
		select {
		case <-deadline:
			t.Fatalf("evaluator called %d times, want %d", e.Calls(), n)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSignalsOnlyOnTransition(t *testing.T) {
	e := &scriptedEval{answers: []bool{false, false, true, true, true, false, false, true}}
	p := NewPoller(e, 5*time.Millisecond)
	rec := newSignalRecorder()
	p.Subscribe(rec.record)

	p.Start()
	waitCalls(t, e, 9)
	p.Stop()

	got := rec.snapshot()
	want := []bool{true, false, true}
	if len(got) != len(want) {
		t.Fatalf("signals = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("signals = %v, want %v", got, want)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i] == got[i-1] {
			t.Fatalf("consecutive equal signals: %v", got)
		}
	}
}

func TestAlternatingAnswersFromCleanStart(t *testing.T) {
	e := &scriptedEval{answers: []bool{true, false, false, true}}
	p := NewPoller(e, 5*time.Millisecond)
	rec := newSignalRecorder()
	p.Subscribe(rec.record)

	p.Start()
	waitCalls(t, e, 5)
	p.Stop()

	// the baseline is "not suspected", so the first true is an edge
	got := rec.snapshot()
	want := []bool{true, false, true}
	if len(got) != len(want) {
		t.Fatalf("signals = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("signals = %v, want %v", got, want)
		}
	}
	if !p.State().Suspected {
		t.Error("state should end suspected")
	}
}

func TestErrorsAndPanicsCountAsNoMatch(t *testing.T) {
	e := &scriptedEval{answers: []bool{true, true, true, true}, panicAt: 2, errAt: 3}
	p := NewPoller(e, 5*time.Millisecond)
	rec := newSignalRecorder()
	p.Subscribe(rec.record)

	p.Start()
	waitCalls(t, e, 5)
	p.Stop()

	got := rec.snapshot()
	// true, then the panic flips to false, the error keeps it false, then true again.
	want := []bool{true, false, true}
	if len(got) != len(want) {
		t.Fatalf("signals = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("signals = %v, want %v", got, want)
		}
	}
	if p.Running() {
		t.Error("poller still running after Stop")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	e := &scriptedEval{answers: []bool{false}}
	p := NewPoller(e, 5*time.Millisecond)

	if !p.Stop() {
		t.Fatal("Stop before Start should succeed")
	}
	p.Start()
	p.Start()
	waitCalls(t, e, 2)
	if !p.Stop() {
		t.Fatal("Stop timed out")
	}
	if !p.Stop() {
		t.Fatal("second Stop should succeed")
	}

	calls := e.Calls()
	time.Sleep(30 * time.Millisecond)
	if e.Calls() != calls {
		t.Errorf("evaluator still polled after Stop: %d -> %d", calls, e.Calls())
	}

	p.Start()
	waitCalls(t, e, calls+1)
	p.Stop()
}

func TestStopCancelsInFlightWait(t *testing.T) {
	e := &scriptedEval{answers: []bool{false}}
	p := NewPoller(e, time.Hour)
	p.Start()
	waitCalls(t, e, 1)

	start := time.Now()
	if !p.Stop() {
		t.Fatal("Stop timed out")
	}
	if d := time.Since(start); d > joinTimeout {
		t.Errorf("Stop took %v", d)
	}
}

func TestStopBoundedWhenEvaluatorHangs(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	p := NewPoller(hangingEval{block: block}, time.Millisecond)
	p.Start()
	time.Sleep(10 * time.Millisecond)

	start := time.Now()
	p.Stop()
	if d := time.Since(start); d > joinTimeout+200*time.Millisecond {
		t.Errorf("Stop took %v, want <= %v", d, joinTimeout)
	}
}

type hangingEval struct{ block chan struct{} }

func (h hangingEval) Evaluate(context.Context) (bool, string, error) {
	<-h.block
	return false, "", nil
}

func TestNoSignalAfterStop(t *testing.T) {
	m := &Manual{}
	p := NewPoller(m, 2*time.Millisecond)
	rec := newSignalRecorder()
	p.Subscribe(rec.record)

	p.Start()
	m.Set(true)
	select {
	case <-rec.ch:
	case <-time.After(time.Second):
		t.Fatal("no signal for true")
	}
	p.Stop()
	m.Set(false)
	time.Sleep(20 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 1 {
		t.Errorf("signals after Stop: %v", got)
	}
	if !p.State().Suspected {
		t.Error("State should keep the last evaluation")
	}
}

type fakeEnum struct {
	procs   []Process
	windows []Window
	procErr error
}

func (f fakeEnum) Processes(context.Context) ([]Process, error) { return f.procs, f.procErr }
func (f fakeEnum) Windows(context.Context) ([]Window, error)    { return f.windows, nil }

func TestMatcher(t *testing.T) {
	tests := []struct {
		name  string
		enum  fakeEnum
		want  bool
		match string
	}{
		{"nothing running", fakeEnum{procs: []Process{{1, "explorer.exe"}, {2, "code"}}}, false, ""},
		{"process name case-insensitive", fakeEnum{procs: []Process{{1, "OBS64.exe"}}}, true, "obs64"},
		{"substring", fakeEnum{procs: []Process{{1, "Zoom.us"}}}, true, "zoom"},
		{"window owner", fakeEnum{windows: []Window{{PID: 9, Owner: "Teams.exe", Title: "Meeting"}}}, true, "teams"},
		{"title alone never matches", fakeEnum{
			procs:   []Process{{10, "chrome.exe"}},
			windows: []Window{{PID: 10, Title: "Bank transaction history - Google Chrome"}},
		}, false, ""},
		{"title of unknown owner never matches", fakeEnum{windows: []Window{{PID: 11, Title: "Zoom pricing - Firefox"}}}, false, ""},
		{"cloaked window ignored", fakeEnum{windows: []Window{{PID: 9, Owner: "Discord.exe", Cloaked: true}}}, false, ""},
		{"process error falls through to windows", fakeEnum{procErr: errors.New("denied"), windows: []Window{{PID: 3, Owner: "AnyDesk.exe"}}}, true, "anydesk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(tt.enum)
			got, match, _ := m.Evaluate(context.Background())
			if got != tt.want || match != tt.match {
				t.Errorf("Evaluate = %v/%q, want %v/%q", got, match, tt.want, tt.match)
			}
		})
	}
}

func TestTableExtras(t *testing.T) {
	tbl := NewTable(" Loom ", "obs")
	if _, ok := tbl.Match("loom.exe"); !ok {
		t.Error("extra tool not matched")
	}
	n := 0
	for _, tool := range tbl.Tools() {
		if tool == "obs" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("obs listed %d times", n)
	}
	if _, ok := tbl.Match(""); ok {
		t.Error("empty name matched")
	}
}
