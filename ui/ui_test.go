package ui

import (
	"sync"
	"testing"
	"time"
)

func TestLoopPreservesOrder(t *testing.T) {
	l := NewLoop(nil)
	defer l.Close()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	l.Sync()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 50 {
		t.Fatalf("ran %d closures, want 50", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("closure %d ran at position %d", v, i)
		}
	}
}

func TestLoopSurvivesPanic(t *testing.T) {
	l := NewLoop(nil)
	defer l.Close()

	ran := make(chan struct{})
	l.Post(func() { panic("boom") })
	l.Post(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("loop stopped after a panicking closure")
	}
}

func TestLoopRunsOnOneGoroutine(t *testing.T) {
	var calls int
	l := NewLoop(func(fn func()) {
		calls++ // only touched by the drain goroutine
		fn()
	})
	l.Post(func() {})
	l.Post(func() {})
	l.Sync()
	l.Close()
	if calls != 3 {
		t.Errorf("runner calls = %d, want 3", calls)
	}
}

func TestPostAfterCloseDropped(t *testing.T) {
	l := NewLoop(nil)
	l.Close()
	l.Close()
	l.Post(func() { t.Error("closure ran after Close") })
	l.Sync()
}
