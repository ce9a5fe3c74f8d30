package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"murmur/audio"
	"murmur/capture"
	"murmur/config"
	"murmur/detect"
	"murmur/doctor"
	"murmur/hotkey"
	"murmur/log"
	"murmur/overlay"
	"murmur/pipeline"
	"murmur/shutdown"
	"murmur/ui"
)

var version = "dev"

const shutdownTimeout = 5 * time.Second

// display is what a windowing front end hands the core: the two surfaces,
// the event sink and a way to close it.
type display struct {
	overlay      overlay.Surface
	notification overlay.Surface
	events       EventSink
	quit         func()
	done         <-chan struct{}
	// bindMenu hooks the front end's own controls up to the app
	bindMenu func(*app)
}

// guiDisplay is set by initGUI before run starts.
var guiDisplay *display

// argValue reads a flag before flag.Parse has run.
func argValue(name string) string {
	args := os.Args[1:]
	for i, a := range args {
		a = strings.TrimLeft(a, "-")
		if v, ok := strings.CutPrefix(a, name+"="); ok {
			return v
		}
		if a == name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func hasArg(name string) bool {
	for _, a := range os.Args[1:] {
		if strings.TrimLeft(a, "-") == name {
			return true
		}
	}
	return false
}

// initCrashLog sends runtime crash output to crash_log.txt in the log
// directory. It runs before any cgo toolkit is touched.
func initCrashLog() {
	dir, err := log.ResolveDir(argValue("logpath"))
	if err != nil {
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}
	f, err := os.OpenFile(filepath.Join(dir, "crash_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(f, debug.CrashOptions{})
}

func run() {
	configFlag := flag.String("config", "", "config file (default: <user config dir>/murmur/config.yaml)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	sinkFlag := flag.String("sink", "", "Recording sink: memory or wav")
	explainFlag := flag.Bool("explain", false, "Ask for an explanation with every solution")
	hybridFlag := flag.Bool("hybrid", false, "Enable hybrid tap+hold recording mode")
	noDetectFlag := flag.Bool("nodetect", false, "Disable screen capture detection")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	flag.Bool("gui", false, "Run with the desktop overlay (requires -tags gui)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("murmur %s\n", version)
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Capture.Device = *deviceFlag
		case "sink":
			cfg.Capture.Sink = *sinkFlag
		case "explain":
			cfg.Answers.WantExplanation = *explainFlag
		case "hybrid":
			cfg.Hotkeys.Hybrid = *hybridFlag
		case "nodetect":
			cfg.Detection.Enabled = !*noDetectFlag
		}
	})
	if cfg.Capture.Sink == "wav" && cfg.Capture.SinkDir == "" {
		cfg.Capture.SinkDir = filepath.Join(log.Dir(), "recordings")
	}

	if *doctorFlag {
		os.Exit(doctor.Run(cfg))
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	rec, rsn, err := pipeline.NewClients(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: murmur -test <wav-file>")
			os.Exit(1)
		}
		src, err := audio.NewFakeContext(args[0], true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
			os.Exit(1)
		}
		code := runTestMode(cfg, rec, rsn, src, os.Stdin, os.Stdout)
		log.Close()
		os.Exit(code)
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	mic, err := selectMic(actx, cfg.Capture.Device, *setupFlag)
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: %v, using the default microphone\n", err)
	}
	format := capture.Format{SampleRate: uint32(cfg.Capture.SampleRate), Channels: 1}

	var exec *ui.Loop
	var disp display
	switch {
	case guiDisplay != nil:
		// fyne marshals onto its own thread
		exec = ui.NewLoop(nil)
		disp = *guiDisplay
	case *tuiFlag:
		exec = ui.MainThread()
		disp = display{
			overlay:      &tuiSurface{pane: paneOverlay},
			notification: &tuiSurface{pane: paneNotification},
			events:       tuiSink{},
		}
	default:
		exec = ui.MainThread()
		out := &printer{w: os.Stdout}
		disp = display{
			overlay:      &printSurface{out: out, name: "overlay"},
			notification: &printSurface{out: out, name: "notification"},
			events:       printSink{out: out},
		}
	}

	a := newApp(cfg, appDeps{
		Devices:      capture.DevicesFrom(actx, format, mic),
		Sinks:        pipeline.SinksFrom(cfg.Capture),
		Recognizer:   rec,
		Reasoner:     rsn,
		Detector:     detect.NewMatcher(detect.System{}, cfg.Detection.ExtraTools...),
		Exec:         exec,
		Overlay:      disp.overlay,
		Notification: disp.notification,
		Events:       disp.events,
	})

	if disp.bindMenu != nil {
		disp.bindMenu(a)
	}

	ctx, cancel := shutdown.Context(context.Background())
	defer cancel()

	tuiDone := make(chan struct{})
	if guiDisplay == nil && *tuiFlag {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram(helpLines(cfg.Hotkeys), a.click)
		tuiMu.Unlock()
		go func() {
			defer close(tuiDone)
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
		}()
	}

	if err := a.attachHotkeys(ctx, hotkey.New); err != nil {
		log.Errorf("hotkeys: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	a.start()

	select {
	case <-ctx.Done():
	case <-tuiDone:
	case <-disp.done:
	}
	gracefulShutdown(a, exec, disp)
}

var shutdownOnce sync.Once

func gracefulShutdown(a *app, exec *ui.Loop, disp display) {
	shutdownOnce.Do(func() {
		if !a.stop(shutdownTimeout) {
			log.Warn("shutdown timed out with answers in flight")
		}
		exec.Close()
		log.Close()
		if tuiProgram != nil {
			tuiProgram.Quit()
		}
		if disp.quit != nil {
			disp.quit()
		}
		os.Exit(0)
	})
}

// selectMic resolves the configured microphone. nil means the system
// default.
func selectMic(ctx audio.Context, name string, interactive bool) (*audio.DeviceInfo, error) {
	if name != "" {
		devices, err := ctx.Devices()
		if err != nil {
			return nil, fmt.Errorf("enumerating devices: %w", err)
		}
		for i := range devices {
			if devices[i].Name == name {
				return &devices[i], nil
			}
		}
		return nil, fmt.Errorf("device %q not found", name)
	}
	if interactive {
		return audio.SelectDevice(ctx)
	}
	return nil, nil
}

func helpLines(hk config.HotkeyConfig) []string {
	var out []string
	for _, b := range []struct{ combo, action string }{
		{hk.Microphone, "record microphone"},
		{hk.Desktop, "record desktop"},
		{hk.Hide, "hide overlay"},
		{hk.CopyLast, "copy last answer"},
		{hk.Explanation, "toggle explanation"},
	} {
		if b.combo != "" {
			out = append(out, b.combo+" "+b.action)
		}
	}
	return out
}
