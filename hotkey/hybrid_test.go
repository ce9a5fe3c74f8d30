package hotkey

import (
	"testing"
	"time"
)

func waitStart(t *testing.T, hy *Hybrid) {
	t.Helper()
	select {
	case <-hy.Keydown():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for start")
	}
}

func waitStop(t *testing.T, hy *Hybrid) {
	t.Helper()
	select {
	case <-hy.Keyup():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stop")
	}
}

func TestHybridLongPress(t *testing.T) {
	fk := NewFake()
	threshold := 50 * time.Millisecond
	hy := NewHybrid(fk, threshold)
	defer hy.Unregister()

	fk.SimKeydown()
	waitStart(t, hy)

	time.Sleep(threshold + 20*time.Millisecond)
	if hy.IsToggle() {
		t.Error("expected hold (not toggle) after long press")
	}
	fk.SimKeyup()
	waitStop(t, hy)
}

func TestHybridShortTap(t *testing.T) {
	fk := NewFake()
	threshold := 200 * time.Millisecond
	hy := NewHybrid(fk, threshold)
	defer hy.Unregister()

	fk.SimKeydown()
	waitStart(t, hy)
	fk.SimKeyup() // release before threshold → toggle mode
	time.Sleep(10 * time.Millisecond)
	if !hy.IsToggle() {
		t.Error("expected toggle mode after short tap")
	}

	// Should NOT have stopped yet
	select {
	case <-hy.Keyup():
		t.Fatal("unexpected stop after short tap, should still be recording")
	case <-time.After(50 * time.Millisecond):
	}

	// Second press+release stops toggle recording
	fk.SimKeydown()
	fk.SimKeyup()
	waitStop(t, hy)
}

func TestHybridMultipleCycles(t *testing.T) {
	fk := NewFake()
	threshold := 50 * time.Millisecond
	hy := NewHybrid(fk, threshold)
	defer hy.Unregister()

	// Cycle 1: long press
	fk.SimKeydown()
	waitStart(t, hy)
	time.Sleep(threshold + 20*time.Millisecond)
	fk.SimKeyup()
	waitStop(t, hy)

	// Cycle 2: short tap (toggle)
	fk.SimKeydown()
	waitStart(t, hy)
	fk.SimKeyup()
	time.Sleep(20 * time.Millisecond) // let state machine settle
	fk.SimKeydown()
	fk.SimKeyup()
	waitStop(t, hy)

	// Cycle 3: long press again
	fk.SimKeydown()
	waitStart(t, hy)
	time.Sleep(threshold + 20*time.Millisecond)
	fk.SimKeyup()
	waitStop(t, hy)
}

func TestHybridUnregisterStopsLoop(t *testing.T) {
	fk := NewFake()
	hy := NewHybrid(fk, time.Second)
	hy.Unregister()
	hy.Unregister()
	fk.SimKeydown()
	select {
	case <-hy.Keydown():
		t.Error("edge forwarded after Unregister")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestParseCombo(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{"ctrl+shift+space", "ctrl+shift+space", false},
		{"Ctrl + Shift + Space", "ctrl+shift+space", false},
		{"F9", "f9", false},
		{"f12", "f12", false},
		{"PrintScreen", "printscreen", false},
		{"PrtSc", "printscreen", false},
		{"cmd+alt+h", "super+alt+h", false},
		{"ctrl+ctrl+c", "ctrl+c", false},
		{"f13", "", true},
		{"f0", "", true},
		{"hyper+x", "", true},
		{"ctrl+", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		c, err := ParseCombo(tt.in)
		if tt.err {
			if err == nil {
				t.Errorf("ParseCombo(%q) = %v, want error", tt.in, c)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCombo(%q): %v", tt.in, err)
			continue
		}
		if c.String() != tt.want {
			t.Errorf("ParseCombo(%q) = %q, want %q", tt.in, c.String(), tt.want)
		}
	}
}
