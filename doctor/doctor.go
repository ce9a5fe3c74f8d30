package doctor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"murmur/audio"
	"murmur/capture"
	"murmur/clipboard"
	"murmur/config"
	"murmur/detect"
	"murmur/hotkey"
	"murmur/pipeline"
	"murmur/reasoner"
	"murmur/recognizer"
	"murmur/shutdown"
)

const (
	recordFor   = 3 * time.Second
	callTimeout = 60 * time.Second
)

type check struct {
	name string
	run  func(*doctor) bool
	// needs lists checks that must pass first
	needs []int
}

type doctor struct {
	cfg         config.Config
	interactive bool
	in          *bufio.Reader
	rec         recognizer.Recognizer
	rsn         reasoner.Reasoner
}

// Run executes the diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(cfg config.Config) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("murmur doctor - system diagnostics")
	fmt.Println("==================================")

	d := &doctor{
		cfg:         cfg,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
		in:          bufio.NewReader(os.Stdin),
	}

	checks := []check{
		{name: "Hotkeys", run: (*doctor).checkHotkey},
		{name: "Speech and answer services", run: (*doctor).checkClients},
		{name: "Microphone and recognition", run: (*doctor).checkMicrophone, needs: []int{1}},
		{name: "Desktop audio", run: (*doctor).checkDesktop},
		{name: "Answer generation", run: (*doctor).checkReasoner, needs: []int{1}},
		{name: "Screen capture detection", run: (*doctor).checkDetection},
		{name: "Clipboard", run: (*doctor).checkClipboard},
	}

	passed := make([]bool, len(checks))
	allPass := true
	for i, c := range checks {
		fmt.Println()
		fmt.Printf("[%d/%d] %s\n", i+1, len(checks), c.name)
		skip := false
		for _, n := range c.needs {
			if !passed[n] {
				skip = true
			}
		}
		if skip {
			fmt.Println("  SKIP: depends on a failed check")
			allPass = false
			continue
		}
		passed[i] = c.run(d)
		if !passed[i] {
			allPass = false
		}
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func setupInterruptHandler() {
	ch := make(chan os.Signal, 1)
	shutdown.Notify(ch)
	go func() {
		<-ch
		resetTerminal()
		fmt.Println("\ninterrupted")
		os.Exit(1)
	}()
}

func (d *doctor) confirm(question string) bool {
	if !d.interactive {
		return true
	}
	resetTerminal()
	fmt.Printf("%s [y/n]: ", question)
	answer, _ := d.in.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func (d *doctor) checkHotkey() bool {
	backend, err := hotkey.Diagnose()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  hotkey backend: %s\n", backend)

	hk := d.cfg.Hotkeys
	for _, b := range []struct{ action, combo string }{
		{"microphone", hk.Microphone},
		{"desktop", hk.Desktop},
		{"hide", hk.Hide},
		{"copy_last", hk.CopyLast},
		{"explanation", hk.Explanation},
	} {
		if b.combo == "" {
			fmt.Printf("  %-12s unbound\n", b.action)
			continue
		}
		if _, err := hotkey.ParseCombo(b.combo); err != nil {
			fmt.Printf("  FAIL: %s: %v\n", b.action, err)
			return false
		}
		fmt.Printf("  %-12s %s\n", b.action, b.combo)
	}

	if !d.interactive || hk.Microphone == "" {
		fmt.Println("  PASS: combos parse")
		return true
	}

	combo := hotkey.MustParse(hk.Microphone)
	fmt.Printf("Press %s...\n", combo)
	k := hotkey.New(combo)
	if err := k.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer k.Unregister()

	select {
	case <-k.Keydown():
		fmt.Println("  PASS: hotkey detected")
		// keyup would leak into the next step
		select {
		case <-k.Keyup():
		case <-time.After(5 * time.Second):
		}
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func (d *doctor) checkClients() bool {
	rec, rsn, err := pipeline.NewClients(d.cfg)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	d.rec, d.rsn = rec, rsn
	fmt.Printf("  PASS: recognizer %s, reasoner %s\n", rec.Name(), rsn.Name())
	return true
}

// record runs one capture session on ch that stops itself after recordFor.
func (d *doctor) record(ctx audio.Context, ch capture.Channel) (capture.Result, error) {
	format := capture.Format{SampleRate: uint32(d.cfg.Capture.SampleRate), Channels: 1}
	done := make(chan capture.Result, 1)
	m := capture.NewMachine(
		capture.Config{MaxDuration: recordFor, MinDuration: d.cfg.Capture.MinDuration(), Format: format},
		capture.DevicesFrom(ctx, format, nil),
		capture.NewMemorySink,
		capture.OnComplete(func(r capture.Result) { done <- r }),
	)
	defer m.Close(time.Second)

	if _, err := m.Begin(ch); err != nil {
		return capture.Result{}, err
	}
	fmt.Print("  Recording")
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(recordFor + 5*time.Second)
	for {
		select {
		case r := <-done:
			fmt.Println(" done")
			return r, r.Err
		case <-tick.C:
			fmt.Print(".")
		case <-deadline:
			fmt.Println()
			return capture.Result{}, fmt.Errorf("recording never finished")
		}
	}
}

func (d *doctor) checkMicrophone() bool {
	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer actx.Close()

	devices, err := actx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}
	for _, dev := range devices {
		tag := ""
		if audio.IsBluetooth(dev.Name) {
			tag = " [bluetooth]"
		}
		fmt.Printf("  device: %s%s\n", dev.Name, tag)
	}

	if d.interactive {
		fmt.Printf("Press Enter and speak for %d seconds...", int(recordFor.Seconds()))
		d.in.ReadString('\n')
	}
	res, err := d.record(actx, capture.ChannelMicrophone)
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}
	art := res.Artifact
	fmt.Printf("  Recorded %.1fs (%.1f KB), recognizing...\n", art.Duration.Seconds(), float64(len(art.PCM))/1024)

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	out, err := d.rec.Recognize(ctx, art)
	if err != nil && !errors.Is(err, recognizer.ErrNoSpeech) {
		fmt.Printf("  FAIL: recognition error: %v\n", err)
		return false
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		text = "(no speech detected)"
	}
	fmt.Printf("\n  Recognized text: %s\n\n", text)

	if d.confirm("Is this correct?") {
		fmt.Println("  PASS: recognition verified")
		return true
	}
	fmt.Println("  FAIL: recognition not confirmed")
	return false
}

func (d *doctor) checkDesktop() bool {
	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer actx.Close()

	res, err := d.record(actx, capture.ChannelDesktop)
	if err != nil {
		// many setups have no loopback device; the microphone still works
		fmt.Printf("  WARN: desktop capture unavailable: %v\n", err)
		return true
	}
	fmt.Printf("  PASS: captured %.1fs of desktop audio\n", res.Artifact.Duration.Seconds())
	return true
}

func (d *doctor) checkReasoner() bool {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	start := time.Now()
	ans, err := d.rsn.Solve(ctx, "Write a function that returns the sum of a list of integers.", false)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	if strings.TrimSpace(ans.Solution) == "" {
		fmt.Println("  FAIL: empty answer")
		return false
	}
	fmt.Printf("  PASS: %s answered in %s\n", ans.Provider, time.Since(start).Round(time.Millisecond))
	return true
}

func (d *doctor) checkDetection() bool {
	if !d.cfg.Detection.Enabled {
		fmt.Println("  SKIP: detection disabled")
		return true
	}
	m := detect.NewMatcher(detect.System{}, d.cfg.Detection.ExtraTools...)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	suspected, match, err := m.Evaluate(ctx)
	if err != nil {
		fmt.Printf("  FAIL: cannot scan processes: %v\n", err)
		return false
	}
	if suspected {
		fmt.Printf("  PASS: scan works, screen capture suspected (%s)\n", match)
	} else {
		fmt.Println("  PASS: scan works, no screen capture tools running")
	}
	return true
}

func (d *doctor) checkClipboard() bool {
	if !clipboard.Available() {
		fmt.Println("  FAIL: no clipboard backend (install xclip, xsel or wl-clipboard)")
		return false
	}
	prev, _ := clipboard.Read()

	const sentinel = "murmur-doctor-test"
	if err := clipboard.Copy(sentinel); err != nil {
		fmt.Printf("  FAIL: clipboard copy failed: %v\n", err)
		return false
	}
	got, err := clipboard.Read()
	if err != nil {
		fmt.Printf("  FAIL: could not read clipboard: %v\n", err)
		return false
	}
	if got != sentinel {
		fmt.Printf("  FAIL: clipboard roundtrip (got %q, want %q)\n", got, sentinel)
		return false
	}
	if prev != "" {
		clipboard.Copy(prev)
	}
	fmt.Println("  PASS: clipboard roundtrip")
	return true
}
