// Package pipeline wires the capture machine to recognition, reasoning and
// the presentation gate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"murmur/capture"
	"murmur/log"
	"murmur/overlay"
	"murmur/reasoner"
	"murmur/recognizer"
)

const DefaultHistorySize = 20

type Config struct {
	Capture         capture.Config
	WantExplanation bool
	HistorySize     int
	// KeepArtifacts leaves WAV recordings on disk after recognition.
	KeepArtifacts bool
}

type Deps struct {
	Devices    capture.DeviceFactory
	Sinks      capture.SinkFactory
	Recognizer recognizer.Recognizer
	Reasoner   reasoner.Reasoner
	Gate       *overlay.Gate
}

// Record is one answered question.
type Record struct {
	SessionID   string
	Channel     capture.Channel
	Question    string
	ProblemType string
	Answer      reasoner.Answer
	Shown       bool
	At          time.Time
	Metrics     log.PipelineMetrics
}

type Option func(*Orchestrator)

// OnStatus receives every status line. It runs on pipeline goroutines.
func OnStatus(fn func(string)) Option {
	return func(o *Orchestrator) { o.onStatus = fn }
}

// OnTransition forwards capture state changes.
func OnTransition(fn func(capture.Transition)) Option {
	return func(o *Orchestrator) { o.onTransition = fn }
}

// OnRecord is called after each answered question.
func OnRecord(fn func(Record)) Option {
	return func(o *Orchestrator) { o.onRecord = fn }
}

// OnFinish is called once per completed recording, after it has been fully
// handled. err is nil only when an answer was produced.
func OnFinish(fn func(capture.Result, error)) Option {
	return func(o *Orchestrator) { o.onFinish = fn }
}

type Orchestrator struct {
	machine *capture.Machine
	rec     recognizer.Recognizer
	rsn     reasoner.Reasoner
	gate    *overlay.Gate
	keep    bool
	histCap int

	onStatus     func(string)
	onTransition func(capture.Transition)
	onRecord     func(Record)
	onFinish     func(capture.Result, error)

	want atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	work   sync.WaitGroup

	mu      sync.Mutex
	status  string
	history []Record
}

func New(cfg Config, deps Deps, opts ...Option) *Orchestrator {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		rec:     deps.Recognizer,
		rsn:     deps.Reasoner,
		gate:    deps.Gate,
		keep:    cfg.KeepArtifacts,
		histCap: cfg.HistorySize,
		ctx:     ctx,
		cancel:  cancel,
		status:  "Ready",
	}
	for _, opt := range opts {
		opt(o)
	}
	o.want.Store(cfg.WantExplanation)
	o.machine = capture.NewMachine(cfg.Capture, deps.Devices, deps.Sinks,
		capture.OnComplete(o.complete),
		capture.OnTransition(o.transition),
	)
	return o
}

func (o *Orchestrator) Machine() *capture.Machine { return o.machine }

// Start begins capture on ch. A channel that is already busy is not an
// error.
func (o *Orchestrator) Start(ch capture.Channel) error {
	_, err := o.machine.Begin(ch)
	switch {
	case err == nil:
		o.setStatus(fmt.Sprintf("Recording %s...", ch))
		return nil
	case errors.Is(err, capture.ErrAlreadyActive):
		return nil
	}
	o.fail("Capture failed", err)
	return err
}

// Stop ends capture on ch. Without an active session it does nothing.
func (o *Orchestrator) Stop(ch capture.Channel) error {
	if o.machine.End(ch) {
		o.setStatus(fmt.Sprintf("Stopping %s...", ch))
	}
	return nil
}

func (o *Orchestrator) WantExplanation() bool { return o.want.Load() }

func (o *Orchestrator) SetWantExplanation(v bool) { o.want.Store(v) }

// ToggleExplanation flips the explanation flag and returns the new value.
func (o *Orchestrator) ToggleExplanation() bool {
	for {
		v := o.want.Load()
		if o.want.CompareAndSwap(v, !v) {
			o.setStatus(fmt.Sprintf("Explanations %s", onOff(!v)))
			return !v
		}
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func (o *Orchestrator) Status() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// History returns answered questions, oldest first.
func (o *Orchestrator) History() []Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Record(nil), o.history...)
}

func (o *Orchestrator) Last() (Record, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.history) == 0 {
		return Record{}, false
	}
	return o.history[len(o.history)-1], true
}

// Close stops capture on every channel and waits up to timeout for the
// pending answers. Whatever is still in flight afterwards is cancelled.
func (o *Orchestrator) Close(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ok := o.machine.Close(timeout)

	done := make(chan struct{})
	go func() {
		o.work.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Until(deadline)):
		ok = false
	}
	o.cancel()
	return ok
}

func (o *Orchestrator) transition(t capture.Transition) {
	if o.onTransition != nil {
		o.onTransition(t)
	}
}

// complete runs on the device goroutine; the answer is produced elsewhere so
// the backend is never held up by the network.
func (o *Orchestrator) complete(res capture.Result) {
	o.work.Add(1)
	go func() {
		defer o.work.Done()
		err := o.process(res)
		if o.onFinish != nil {
			o.onFinish(res, err)
		}
	}()
}

func (o *Orchestrator) process(res capture.Result) error {
	if res.Err != nil {
		if errors.Is(res.Err, capture.ErrTooShort) {
			log.Info("recording too short, skipped")
			o.setStatus("Recording too short")
			return res.Err
		}
		o.fail("Recording failed", res.Err)
		return res.Err
	}
	art := res.Artifact
	if !o.keep {
		defer func() {
			if err := art.Remove(); err != nil {
				log.Warnf("remove recording: %v", err)
			}
		}()
	}

	start := time.Now()
	metrics := log.PipelineMetrics{
		Channel:    string(res.Channel),
		Recognizer: o.rec.Name(),
		Reasoner:   o.rsn.Name(),
	}

	o.setStatus("Recognizing...")
	rr, err := o.rec.Recognize(o.ctx, art)
	metrics.RecognizeMs = msSince(start)
	if errors.Is(err, recognizer.ErrNoSpeech) {
		log.Info("no_speech")
		o.setStatus("No speech detected")
		o.gate.Notify("No speech", "Nothing was recognized in the recording")
		return err
	}
	if err != nil {
		o.fail("Recognition failed", err)
		return err
	}
	metrics.AudioLengthS = rr.AudioLengthS
	metrics.UploadKB = rr.UploadKB
	metrics.EncodeTimeMs = float64(rr.EncodeTime.Microseconds()) / 1000
	if m := rr.Metrics; m != nil {
		metrics.ConnReused = m.ConnReused
		metrics.TLSProto = m.TLSProtocol
		metrics.TTFBMs = float64(m.TTFB.Microseconds()) / 1000
	}
	if rr.RateLimit != "" && rr.RateLimit != "?/?" {
		log.Info("rate_limit: " + rr.RateLimit)
	}

	question := rr.Text
	kind := ProblemType(question)
	metrics.ProblemType = kind
	want := o.want.Load()
	o.setStatus(fmt.Sprintf("Solving (%s)...", kind))

	reasonStart := time.Now()
	ans, err := o.rsn.Solve(o.ctx, question, want)
	metrics.ReasonMs = msSince(reasonStart)
	if err != nil {
		o.fail("Solving failed", err)
		return err
	}

	shown := o.gate.RequestShow(overlay.Request{
		Kind:    overlay.KindSolution,
		Content: overlay.Content{Title: kind, Text: question, Code: ans.Solution},
	})
	if want && ans.Explanation != "" {
		shown = o.gate.RequestShow(overlay.Request{
			Kind:    overlay.KindExplanation,
			Content: overlay.Content{Title: kind, Text: ans.Explanation, Code: ans.Solution},
		}) && shown
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	metrics.MemoryAllocMB = float64(mem.Alloc) / 1024 / 1024
	metrics.TotalTimeMs = msSince(start)
	log.Pipeline(metrics)
	log.Answer(string(res.Channel), question, ans.Solution)

	o.remember(Record{
		SessionID:   res.SessionID,
		Channel:     res.Channel,
		Question:    question,
		ProblemType: kind,
		Answer:      ans,
		Shown:       shown,
		At:          time.Now(),
		Metrics:     metrics,
	})
	if shown {
		o.setStatus(fmt.Sprintf("Solution ready (%s)", kind))
	} else {
		o.setStatus("Solution ready, hidden while recording is suspected")
	}
	return nil
}

func (o *Orchestrator) remember(r Record) {
	o.mu.Lock()
	o.history = append(o.history, r)
	if len(o.history) > o.histCap {
		o.history = o.history[len(o.history)-o.histCap:]
	}
	o.mu.Unlock()
	if o.onRecord != nil {
		o.onRecord(r)
	}
}

// fail turns err into a status line and a notification.
func (o *Orchestrator) fail(title string, err error) {
	log.Errorf("%s: %v", title, err)
	msg := describe(err)
	o.setStatus("Error: " + msg)
	o.gate.Notify(title, msg)
}

func describe(err error) string {
	var devErr *capture.DeviceUnavailableError
	var flushErr *capture.FlushError
	var recErr *recognizer.Error
	switch {
	case errors.As(err, &devErr):
		return fmt.Sprintf("%s device unavailable", devErr.Channel)
	case errors.As(err, &flushErr):
		return fmt.Sprintf("could not save the %s recording", flushErr.Channel)
	case errors.As(err, &recErr) && recErr.Unauthorized():
		return recErr.Provider + " rejected the API key"
	case reasoner.IsKind(err, reasoner.KindAuth):
		return "check the reasoning API key"
	case reasoner.IsKind(err, reasoner.KindEmpty):
		return "the model returned an empty answer"
	case reasoner.IsKind(err, reasoner.KindNetwork):
		return "network error, try again"
	}
	return err.Error()
}

func (o *Orchestrator) setStatus(s string) {
	o.mu.Lock()
	o.status = s
	o.mu.Unlock()
	if o.onStatus != nil {
		o.onStatus(s)
	}
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
