package main

import (
	"context"
	"fmt"
	"time"

	"murmur/capture"
	"murmur/clipboard"
	"murmur/config"
	"murmur/detect"
	"murmur/dispatch"
	"murmur/hotkey"
	"murmur/log"
	"murmur/overlay"
	"murmur/pipeline"
	"murmur/reasoner"
	"murmur/recognizer"
	"murmur/ui"
)

const (
	trigMicrophone  dispatch.Trigger = "microphone"
	trigDesktop     dispatch.Trigger = "desktop"
	trigHide        dispatch.Trigger = "hide"
	trigCopyLast    dispatch.Trigger = "copy_last"
	trigExplanation dispatch.Trigger = "explanation"
)

type appDeps struct {
	Devices    capture.DeviceFactory
	Sinks      capture.SinkFactory
	Recognizer recognizer.Recognizer
	Reasoner   reasoner.Reasoner
	// Detector nil leaves the gate unsuppressed for the whole session.
	Detector     detect.Evaluator
	Exec         ui.Executor
	Overlay      overlay.Surface
	Notification overlay.Surface
	Events       EventSink
	// Copy defaults to the system clipboard.
	Copy func(string) error
}

// app is one running assistant: capture, answers, presentation and the
// hotkeys that drive them.
type app struct {
	cfg    config.Config
	events EventSink
	copy   func(string) error
	names  [2]string

	gate    *overlay.Gate
	orch    *pipeline.Orchestrator
	poller  *detect.Poller
	disp    *dispatch.Dispatcher
	unwatch func()
	hotkeys []hotkey.Hotkey
}

func newApp(cfg config.Config, deps appDeps, opts ...pipeline.Option) *app {
	if deps.Events == nil {
		deps.Events = nopSink{}
	}
	if deps.Copy == nil {
		deps.Copy = clipboard.Copy
	}
	if deps.Exec == nil {
		deps.Exec = ui.Inline{}
	}
	a := &app{
		cfg:    cfg,
		events: deps.Events,
		copy:   deps.Copy,
		names:  [2]string{deps.Recognizer.Name(), deps.Reasoner.Name()},
	}

	a.gate = overlay.NewGate(deps.Exec, deps.Overlay, deps.Notification, overlay.Config{
		NotificationTTL:   cfg.Overlay.NotificationTTL(),
		HideWhenRecording: cfg.Overlay.HideWhenRecording,
	})

	opts = append([]pipeline.Option{
		pipeline.OnStatus(a.events.Status),
		pipeline.OnTransition(func(t capture.Transition) {
			if t.From.Busy() != t.To.Busy() {
				a.events.Recording(t.Channel, t.To.Busy())
			}
		}),
		pipeline.OnRecord(a.events.Answered),
	}, opts...)
	a.orch = pipeline.New(pipeline.ConfigFrom(cfg), pipeline.Deps{
		Devices:    deps.Devices,
		Sinks:      deps.Sinks,
		Recognizer: deps.Recognizer,
		Reasoner:   deps.Reasoner,
		Gate:       a.gate,
	}, opts...)

	if deps.Detector != nil && cfg.Detection.Enabled {
		a.poller = detect.NewPoller(deps.Detector, cfg.Detection.Interval())
		a.unwatch = a.gate.Watch(a.poller)
		a.poller.Subscribe(func(st detect.State) {
			a.events.Detection(st.Suspected, st.Match)
		})
	}

	a.disp = dispatch.New(deps.Exec)
	a.bindActions()
	return a
}

func (a *app) bindActions() {
	for _, b := range []struct {
		t  dispatch.Trigger
		ch capture.Channel
	}{
		{trigMicrophone, capture.ChannelMicrophone},
		{trigDesktop, capture.ChannelDesktop},
	} {
		ch := b.ch
		a.disp.Bind(b.t, dispatch.Toggle("record "+string(ch), string(ch),
			func() error { return a.orch.Start(ch) },
			func() error { return a.orch.Stop(ch) },
		))
	}
	a.disp.Bind(trigHide, dispatch.OnPress("hide overlay", func() error {
		a.gate.Hide()
		return nil
	}))
	a.disp.Bind(trigCopyLast, dispatch.OnPress("copy last answer", a.copyLast))
	a.disp.Bind(trigExplanation, dispatch.OnPress("toggle explanation", func() error {
		state := "off"
		if a.orch.ToggleExplanation() {
			state = "on"
		}
		a.gate.Notify("Explanations "+state, "Applies to the next answer")
		return nil
	}))
}

// click is a menu or button press: it starts a recording on an idle
// channel and stops a running one.
func (a *app) click(t dispatch.Trigger) {
	guard := map[dispatch.Trigger]capture.Channel{
		trigMicrophone: capture.ChannelMicrophone,
		trigDesktop:    capture.ChannelDesktop,
	}[t]
	if guard != "" && a.disp.InProgress(string(guard)) {
		a.disp.Release(t)
		return
	}
	a.disp.Press(t)
}

func (a *app) copyLast() error {
	r, ok := a.orch.Last()
	if !ok {
		a.gate.Notify("Nothing to copy", "No answer yet")
		return nil
	}
	if err := a.copy(r.Answer.Solution); err != nil {
		a.gate.Notify("Copy failed", err.Error())
		return err
	}
	a.gate.Notify("Copied", "Last solution is on the clipboard")
	return nil
}

// attachHotkeys registers every configured combo and feeds it into the
// dispatcher until ctx is cancelled.
func (a *app) attachHotkeys(ctx context.Context, newHotkey func(hotkey.Combo) hotkey.Hotkey) error {
	hk := a.cfg.Hotkeys
	for _, b := range []struct {
		t     dispatch.Trigger
		combo string
		hold  bool
	}{
		{trigMicrophone, hk.Microphone, true},
		{trigDesktop, hk.Desktop, true},
		{trigHide, hk.Hide, false},
		{trigCopyLast, hk.CopyLast, false},
		{trigExplanation, hk.Explanation, false},
	} {
		if b.combo == "" {
			continue
		}
		c, err := hotkey.ParseCombo(b.combo)
		if err != nil {
			return err
		}
		h := newHotkey(c)
		if b.hold && hk.Hybrid {
			h = hotkey.NewHybrid(h, hk.LongPress())
		}
		if err := h.Register(); err != nil {
			return fmt.Errorf("register %s hotkey %s: %w", b.t, c, err)
		}
		a.hotkeys = append(a.hotkeys, h)
		a.disp.Attach(ctx, b.t, h)
		log.Infof("hotkey %s bound to %s", c, b.t)
	}
	return nil
}

func (a *app) start() {
	channels := make([]string, len(capture.Channels))
	for i, ch := range capture.Channels {
		channels[i] = string(ch)
	}
	log.SessionStart(a.names[0], a.names[1], channels)
	if a.poller != nil {
		a.poller.Start()
	}
	a.events.Status(a.orch.Status())
}

// stop releases the hotkeys, stops detection and waits up to timeout for
// the answers still in flight.
func (a *app) stop(timeout time.Duration) bool {
	for _, h := range a.hotkeys {
		h.Unregister()
	}
	a.hotkeys = nil
	if a.poller != nil {
		a.poller.Stop()
	}
	if a.unwatch != nil {
		a.unwatch()
	}
	ok := a.orch.Close(timeout)
	log.SessionEnd(len(a.orch.History()))
	return ok
}
