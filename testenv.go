package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"murmur/audio"
	"murmur/capture"
	"murmur/config"
	"murmur/detect"
	"murmur/dispatch"
	"murmur/hotkey"
	"murmur/overlay"
	"murmur/pipeline"
	"murmur/reasoner"
	"murmur/recognizer"
	"murmur/ui"
)

const waitTimeout = 60 * time.Second

// printer serializes output lines from the pipeline, UI and driver
// goroutines.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}

func oneLine(s string) string { return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\\n") }

type printSurface struct {
	out     *printer
	name    string
	visible bool
}

func (s *printSurface) Show(c overlay.Content) {
	s.visible = true
	if s.name == "notification" {
		s.out.line("NOTIFY %s: %s", c.Title, oneLine(c.Text))
		return
	}
	s.out.line("SHOW %s | %s | %s", c.Title, oneLine(c.Text), oneLine(c.Code))
}

func (s *printSurface) Hide() {
	if s.visible {
		s.out.line("HIDE %s", s.name)
	}
	s.visible = false
}

func (s *printSurface) IsVisible() bool { return s.visible }

type printSink struct{ out *printer }

func (p printSink) Status(text string) { p.out.line("STATUS %s", text) }

func (p printSink) Recording(ch capture.Channel, on bool) {
	state := "off"
	if on {
		state = "on"
	}
	p.out.line("REC %s %s", ch, state)
}

func (p printSink) Detection(suspected bool, match string) {
	if suspected {
		p.out.line("DETECT on %s", match)
		return
	}
	p.out.line("DETECT off")
}

func (p printSink) Answered(r pipeline.Record) {
	p.out.line("ANSWER %s %s", r.Channel, r.ProblemType)
}

// runTestMode drives the assistant from a line script instead of real
// hotkeys. Commands:
//
//	KEYDOWN [channel]    press a capture hotkey (default microphone)
//	KEYUP [channel]
//	PRESS <action>       hide, copy_last or explanation
//	RECORDING ON|OFF     what screen capture detection reports
//	WAIT                 block until the next recording has been handled
//	SLEEP <ms>
//	QUIT
func runTestMode(cfg config.Config, rec recognizer.Recognizer, rsn reasoner.Reasoner, src *audio.FakeContext, in io.Reader, w io.Writer) int {
	out := &printer{w: w}
	cfg.Detection.Enabled = true
	cfg.Detection.IntervalMS = 20

	finished := make(chan error, 16)
	manual := &detect.Manual{}
	loop := ui.NewLoop(nil)
	defer loop.Close()

	format := capture.Format{SampleRate: uint32(cfg.Capture.SampleRate), Channels: 1}
	a := newApp(cfg, appDeps{
		Devices:      capture.DevicesFrom(src, format, nil),
		Sinks:        pipeline.SinksFrom(cfg.Capture),
		Recognizer:   rec,
		Reasoner:     rsn,
		Detector:     manual,
		Exec:         loop,
		Overlay:      &printSurface{out: out, name: "overlay"},
		Notification: &printSurface{out: out, name: "notification"},
		Events:       printSink{out: out},
		Copy: func(text string) error {
			out.line("COPY %s", oneLine(text))
			return nil
		},
	}, pipeline.OnFinish(func(_ capture.Result, err error) { finished <- err }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fakes := make(map[string]*hotkey.FakeHotkey)
	err := a.attachHotkeys(ctx, func(c hotkey.Combo) hotkey.Hotkey {
		fk := hotkey.NewFake()
		fakes[c.String()] = fk
		return fk
	})
	if err != nil {
		out.line("ERROR %v", err)
		return 1
	}
	key := func(t dispatch.Trigger) *hotkey.FakeHotkey {
		combo := map[dispatch.Trigger]string{
			trigMicrophone:  cfg.Hotkeys.Microphone,
			trigDesktop:     cfg.Hotkeys.Desktop,
			trigHide:        cfg.Hotkeys.Hide,
			trigCopyLast:    cfg.Hotkeys.CopyLast,
			trigExplanation: cfg.Hotkeys.Explanation,
		}[t]
		c, err := hotkey.ParseCombo(combo)
		if err != nil {
			return nil
		}
		return fakes[c.String()]
	}
	a.start()

	code := 0
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		cmd, arg, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		switch cmd {
		case "":
		case "KEYDOWN", "KEYUP":
			t := trigMicrophone
			if arg == string(capture.ChannelDesktop) {
				t = trigDesktop
			}
			fk := key(t)
			if fk == nil {
				out.line("ERROR %s is not bound", t)
				code = 1
				continue
			}
			if cmd == "KEYDOWN" {
				fk.SimKeydown()
				waitBusy(a, t)
			} else {
				fk.SimKeyup()
			}
		case "PRESS":
			// presses from the script are clicks, not key edges
			a.disp.Press(dispatch.Trigger(arg))
		case "RECORDING":
			manual.Set(arg == "ON")
			time.Sleep(3 * cfg.Detection.Interval())
			loop.Sync()
		case "WAIT":
			select {
			case err := <-finished:
				loop.Sync()
				if err != nil {
					out.line("DONE %v", err)
				} else {
					out.line("DONE ok")
				}
			case <-time.After(waitTimeout):
				out.line("ERROR timeout waiting for the recording")
				code = 1
			}
		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "QUIT":
			a.stop(shutdownTimeout)
			return code
		default:
			out.line("ERROR unknown command %q", cmd)
			code = 1
		}
	}
	a.stop(shutdownTimeout)
	return code
}

// waitBusy gives the dispatcher time to act on a key-down before the script
// moves on, so a quick KEYUP is not seen first.
func waitBusy(a *app, t dispatch.Trigger) {
	ch := capture.ChannelMicrophone
	if t == trigDesktop {
		ch = capture.ChannelDesktop
	}
	deadline := time.Now().Add(2 * time.Second)
	for !a.orch.Machine().State(ch).Busy() && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
}
