package reasoner

import (
	"context"
	"sync"
	"time"
)

type FakeReasoner struct {
	Reply string
	Err   error

	mu      sync.Mutex
	prompts []string
}

func NewFake(reply string, err error) *FakeReasoner {
	return &FakeReasoner{Reply: reply, Err: err}
}

func (f *FakeReasoner) Name() string { return "fake" }

func (f *FakeReasoner) Solve(ctx context.Context, text string, wantExplanation bool) (Answer, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, text)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return Answer{}, &Error{Provider: "fake", Kind: KindNetwork, Err: err}
	}
	if f.Err != nil {
		return Answer{}, f.Err
	}
	if f.Reply == "" {
		return Answer{}, &Error{Provider: "fake", Kind: KindEmpty}
	}
	a := Parse("fake", f.Reply, text, wantExplanation)
	a.Timestamp = time.Now()
	return a, nil
}

func (f *FakeReasoner) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}
