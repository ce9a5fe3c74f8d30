package recognizer

import (
	"context"
	"fmt"
	"sync"

	"murmur/capture"
)

type FakeRecognizer struct {
	text string
	err  error

	mu    sync.Mutex
	calls []capture.Artifact
	block chan struct{}
}

func NewFake(text string, err error) *FakeRecognizer {
	return &FakeRecognizer{text: text, err: err}
}

func (f *FakeRecognizer) Name() string { return "fake" }

// Hold makes Recognize wait until the returned func is called.
func (f *FakeRecognizer) Hold() (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.block = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *FakeRecognizer) Recognize(ctx context.Context, art capture.Artifact) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, art)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if f.err != nil {
		return Result{}, fmt.Errorf("fake recognizer error: %w", f.err)
	}
	if f.text == "" {
		return Result{}, ErrNoSpeech
	}
	return Result{Text: f.text, AudioLengthS: art.Duration.Seconds()}, nil
}

func (f *FakeRecognizer) Calls() []capture.Artifact {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capture.Artifact(nil), f.calls...)
}
