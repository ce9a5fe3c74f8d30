package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points the default path at an empty directory and clears the
// provider keys.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("AppData", dir)
	for _, k := range []string{"GROQ_API_KEY", "OPENAI_API_KEY", "DEEPGRAM_API_KEY", "ANTHROPIC_API_KEY"} {
		t.Setenv(k, "")
	}
	return dir
}

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Capture.MaxDuration() != 20*time.Second || cfg.Capture.MinDuration() != 100*time.Millisecond {
		t.Errorf("capture = %+v", cfg.Capture)
	}
	if cfg.Detection.Interval() != time.Second || cfg.Overlay.NotificationTTL() != 3*time.Second {
		t.Errorf("detection/overlay = %+v %+v", cfg.Detection, cfg.Overlay)
	}
	if !cfg.Overlay.HideWhenRecording {
		t.Error("hide_when_recording off by default")
	}
	if cfg.Recognizer.Provider != "groq" || cfg.Reasoner.Provider != "groq" {
		t.Errorf("providers = %s/%s", cfg.Recognizer.Provider, cfg.Reasoner.Provider)
	}
}

func TestPrecedence(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, `
capture:
  max_duration_ms: 15000
  sink: wav
  sink_dir: /tmp/rec
detection:
  interval_ms: 500
  extra_tools: [loom]
hotkeys:
  microphone: F9
reasoner:
  provider: anthropic
  temperature: 0.5
`)
	t.Setenv("MURMUR_CAPTURE_MAX_DURATION_MS", "12000")
	t.Setenv("MURMUR_DETECTION_EXTRA_TOOLS", "vmix, ,bandicam")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Capture.MaxDurationMS != 12000 {
		t.Errorf("env did not override file: %d", cfg.Capture.MaxDurationMS)
	}
	if cfg.Capture.Sink != "wav" || cfg.Detection.IntervalMS != 500 || cfg.Hotkeys.Microphone != "F9" {
		t.Errorf("file values lost: %+v", cfg)
	}
	if cfg.Capture.MinDurationMS != 100 {
		t.Errorf("unset key lost its default: %d", cfg.Capture.MinDurationMS)
	}
	if got := strings.Join(cfg.Detection.ExtraTools, ","); got != "vmix,bandicam" {
		t.Errorf("extra tools = %q", got)
	}
	if cfg.Reasoner.APIKey != "sk-ant" || cfg.Reasoner.Temperature != 0.5 {
		t.Errorf("reasoner = %+v", cfg.Reasoner)
	}
}

func TestProviderPickedByKey(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Recognizer.Provider != "openai" || cfg.Recognizer.APIKey != "sk-openai" {
		t.Errorf("recognizer = %+v", cfg.Recognizer)
	}
	if cfg.Reasoner.Provider != "openai" {
		t.Errorf("reasoner provider = %s", cfg.Reasoner.Provider)
	}
}

func TestExplicitPathMustExist(t *testing.T) {
	dir := isolate(t)
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing explicit config accepted")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
		want string
	}{
		{"bad sink", "capture: {sink: s3}", nil, "capture.sink"},
		{"wav without dir", "capture: {sink: wav}", nil, "sink_dir"},
		{"min above max", "capture: {min_duration_ms: 30000}", nil, "min_duration_ms"},
		{"bad hotkey", "hotkeys: {hide: hyper+x}", nil, "hotkeys.hide"},
		{"shared hotkey", "hotkeys: {hide: ctrl+shift+space}", nil, "share"},
		{"bad provider", "recognizer: {provider: whisper}", nil, "recognizer.provider"},
		{"zero interval", "", map[string]string{"MURMUR_DETECTION_INTERVAL_MS": "0"}, "interval_ms"},
		{"hot temperature", "reasoner: {temperature: 3}", nil, "temperature"},
		{"garbage yaml", "capture: [", nil, "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeFile(t, dir, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestEmptyHotkeyUnbound(t *testing.T) {
	dir := isolate(t)
	cfg, err := Load(writeFile(t, dir, "hotkeys: {copy_last: \"\"}"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Hotkeys.CopyLast != "" {
		t.Errorf("copy_last = %q", cfg.Hotkeys.CopyLast)
	}
}

func TestEnvBool(t *testing.T) {
	isolate(t)
	t.Setenv("MURMUR_OVERLAY_HIDE_WHEN_RECORDING", "off")
	t.Setenv("MURMUR_WANT_EXPLANATION", "yes")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Overlay.HideWhenRecording || !cfg.Answers.WantExplanation {
		t.Errorf("bools = %v/%v", cfg.Overlay.HideWhenRecording, cfg.Answers.WantExplanation)
	}
}
