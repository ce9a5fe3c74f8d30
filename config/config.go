// Package config resolves settings from defaults, an optional YAML file
// and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"murmur/hotkey"
)

type Config struct {
	Capture    CaptureConfig    `yaml:"capture"`
	Detection  DetectionConfig  `yaml:"detection"`
	Overlay    OverlayConfig    `yaml:"overlay"`
	Hotkeys    HotkeyConfig     `yaml:"hotkeys"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Reasoner   ReasonerConfig   `yaml:"reasoner"`
	Answers    AnswersConfig    `yaml:"answers"`
}

type CaptureConfig struct {
	MaxDurationMS int    `yaml:"max_duration_ms"`
	MinDurationMS int    `yaml:"min_duration_ms"`
	SampleRate    int    `yaml:"sample_rate"`
	Sink          string `yaml:"sink"` // memory, wav
	SinkDir       string `yaml:"sink_dir"`
	Device        string `yaml:"device"`
}

func (c CaptureConfig) MaxDuration() time.Duration { return ms(c.MaxDurationMS) }
func (c CaptureConfig) MinDuration() time.Duration { return ms(c.MinDurationMS) }

type DetectionConfig struct {
	Enabled    bool     `yaml:"enabled"`
	IntervalMS int      `yaml:"interval_ms"`
	ExtraTools []string `yaml:"extra_tools"`
}

func (c DetectionConfig) Interval() time.Duration { return ms(c.IntervalMS) }

type OverlayConfig struct {
	HideWhenRecording bool `yaml:"hide_when_recording"`
	NotificationTTLMS int  `yaml:"notification_ttl_ms"`
}

func (c OverlayConfig) NotificationTTL() time.Duration { return ms(c.NotificationTTLMS) }

// HotkeyConfig holds one combo per action. An empty combo leaves the
// action unbound.
type HotkeyConfig struct {
	Microphone  string `yaml:"microphone"`
	Desktop     string `yaml:"desktop"`
	Hide        string `yaml:"hide"`
	CopyLast    string `yaml:"copy_last"`
	Explanation string `yaml:"explanation"`
	Hybrid      bool   `yaml:"hybrid"`
	LongPressMS int    `yaml:"long_press_ms"`
}

func (c HotkeyConfig) LongPress() time.Duration { return ms(c.LongPressMS) }

type RecognizerConfig struct {
	Provider string `yaml:"provider"` // groq, openai, deepgram
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	BaseURL  string `yaml:"base_url"`
}

type ReasonerConfig struct {
	Provider    string  `yaml:"provider"` // groq, openai, anthropic
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	BaseURL     string  `yaml:"base_url"`
}

type AnswersConfig struct {
	WantExplanation bool `yaml:"want_explanation"`
	HistorySize     int  `yaml:"history_size"`
	KeepRecordings  bool `yaml:"keep_recordings"`
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func Default() Config {
	return Config{
		Capture: CaptureConfig{
			MaxDurationMS: 20000,
			MinDurationMS: 100,
			SampleRate:    16000,
			Sink:          "memory",
		},
		Detection: DetectionConfig{
			Enabled:    true,
			IntervalMS: 1000,
		},
		Overlay: OverlayConfig{
			HideWhenRecording: true,
			NotificationTTLMS: 3000,
		},
		Hotkeys: HotkeyConfig{
			Microphone:  "ctrl+shift+space",
			Desktop:     "ctrl+shift+d",
			Hide:        "ctrl+shift+h",
			CopyLast:    "ctrl+shift+c",
			Explanation: "ctrl+shift+e",
			LongPressMS: 350,
		},
		Recognizer: RecognizerConfig{
			Language: "en",
		},
		Reasoner: ReasonerConfig{
			Temperature: 0.2,
			MaxTokens:   2500,
		},
		Answers: AnswersConfig{
			HistorySize: 20,
		},
	}
}

// DefaultPath is <user config dir>/murmur/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "murmur", "config.yaml")
}

// Load reads path over the defaults. An empty path means DefaultPath, which
// may be absent; a path given explicitly must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file: %w", err)
			}
		case os.IsNotExist(err) && !explicit:
		case os.IsNotExist(err):
			return cfg, fmt.Errorf("config file not found: %w", err)
		default:
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	resolveProviders(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideInt(&cfg.Capture.MaxDurationMS, "MURMUR_CAPTURE_MAX_DURATION_MS")
	overrideInt(&cfg.Capture.MinDurationMS, "MURMUR_CAPTURE_MIN_DURATION_MS")
	overrideInt(&cfg.Capture.SampleRate, "MURMUR_CAPTURE_SAMPLE_RATE")
	overrideString(&cfg.Capture.Sink, "MURMUR_CAPTURE_SINK")
	overrideString(&cfg.Capture.SinkDir, "MURMUR_CAPTURE_SINK_DIR")
	overrideString(&cfg.Capture.Device, "MURMUR_CAPTURE_DEVICE")
	overrideBool(&cfg.Detection.Enabled, "MURMUR_DETECTION_ENABLED")
	overrideInt(&cfg.Detection.IntervalMS, "MURMUR_DETECTION_INTERVAL_MS")
	overrideStringSlice(&cfg.Detection.ExtraTools, "MURMUR_DETECTION_EXTRA_TOOLS")
	overrideBool(&cfg.Overlay.HideWhenRecording, "MURMUR_OVERLAY_HIDE_WHEN_RECORDING")
	overrideInt(&cfg.Overlay.NotificationTTLMS, "MURMUR_OVERLAY_NOTIFICATION_TTL_MS")
	overrideString(&cfg.Hotkeys.Microphone, "MURMUR_HOTKEY_MICROPHONE")
	overrideString(&cfg.Hotkeys.Desktop, "MURMUR_HOTKEY_DESKTOP")
	overrideString(&cfg.Hotkeys.Hide, "MURMUR_HOTKEY_HIDE")
	overrideString(&cfg.Hotkeys.CopyLast, "MURMUR_HOTKEY_COPY_LAST")
	overrideString(&cfg.Hotkeys.Explanation, "MURMUR_HOTKEY_EXPLANATION")
	overrideBool(&cfg.Hotkeys.Hybrid, "MURMUR_HOTKEY_HYBRID")
	overrideInt(&cfg.Hotkeys.LongPressMS, "MURMUR_HOTKEY_LONG_PRESS_MS")
	overrideString(&cfg.Recognizer.Provider, "MURMUR_RECOGNIZER_PROVIDER")
	overrideString(&cfg.Recognizer.APIKey, "MURMUR_RECOGNIZER_API_KEY")
	overrideString(&cfg.Recognizer.Model, "MURMUR_RECOGNIZER_MODEL")
	overrideString(&cfg.Recognizer.Language, "MURMUR_RECOGNIZER_LANGUAGE")
	overrideString(&cfg.Recognizer.BaseURL, "MURMUR_RECOGNIZER_BASE_URL")
	overrideString(&cfg.Reasoner.Provider, "MURMUR_REASONER_PROVIDER")
	overrideString(&cfg.Reasoner.APIKey, "MURMUR_REASONER_API_KEY")
	overrideString(&cfg.Reasoner.Model, "MURMUR_REASONER_MODEL")
	overrideFloat(&cfg.Reasoner.Temperature, "MURMUR_REASONER_TEMPERATURE")
	overrideInt(&cfg.Reasoner.MaxTokens, "MURMUR_REASONER_MAX_TOKENS")
	overrideString(&cfg.Reasoner.BaseURL, "MURMUR_REASONER_BASE_URL")
	overrideBool(&cfg.Answers.WantExplanation, "MURMUR_WANT_EXPLANATION")
	overrideInt(&cfg.Answers.HistorySize, "MURMUR_HISTORY_SIZE")
	overrideBool(&cfg.Answers.KeepRecordings, "MURMUR_KEEP_RECORDINGS")
}

// providerKeys maps providers to the conventional key variables.
var providerKeys = map[string]string{
	"groq":      "GROQ_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"deepgram":  "DEEPGRAM_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// resolveProviders picks the first provider with a key when none is set,
// then fills the key from the provider's variable.
func resolveProviders(cfg *Config) {
	pick := func(provider, key *string, order ...string) {
		if *provider == "" {
			for _, p := range order {
				if envKey(p) != "" {
					*provider = p
					break
				}
			}
			if *provider == "" {
				*provider = order[0]
			}
		}
		if *key == "" {
			*key = envKey(*provider)
		}
	}
	pick(&cfg.Recognizer.Provider, &cfg.Recognizer.APIKey, "groq", "openai", "deepgram")
	pick(&cfg.Reasoner.Provider, &cfg.Reasoner.APIKey, "groq", "openai", "anthropic")
}

func envKey(provider string) string {
	return strings.TrimSpace(os.Getenv(providerKeys[provider]))
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	value, ok := os.LookupEnv(envKey)
	if !ok {
		return
	}
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "1", "true", "yes", "on":
		*target = true
	case "0", "false", "no", "off":
		*target = false
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		var trimmed []string
		for _, p := range strings.Split(value, ",") {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.Capture.MaxDurationMS <= 0 {
		return errors.New("capture.max_duration_ms must be positive")
	}
	if cfg.Capture.MinDurationMS < 0 || cfg.Capture.MinDurationMS >= cfg.Capture.MaxDurationMS {
		return errors.New("capture.min_duration_ms must be >= 0 and below max_duration_ms")
	}
	if cfg.Capture.SampleRate <= 0 {
		return errors.New("capture.sample_rate must be positive")
	}
	switch cfg.Capture.Sink {
	case "memory":
	case "wav":
		if cfg.Capture.SinkDir == "" {
			return errors.New("capture.sink_dir must be set when sink=wav")
		}
	default:
		return errors.New("capture.sink must be one of memory|wav")
	}
	if cfg.Detection.IntervalMS <= 0 {
		return errors.New("detection.interval_ms must be positive")
	}
	if cfg.Overlay.NotificationTTLMS <= 0 {
		return errors.New("overlay.notification_ttl_ms must be positive")
	}
	if cfg.Hotkeys.Hybrid && cfg.Hotkeys.LongPressMS <= 0 {
		return errors.New("hotkeys.long_press_ms must be positive when hybrid is enabled")
	}
	combos := []struct{ name, value string }{
		{"microphone", cfg.Hotkeys.Microphone},
		{"desktop", cfg.Hotkeys.Desktop},
		{"hide", cfg.Hotkeys.Hide},
		{"copy_last", cfg.Hotkeys.CopyLast},
		{"explanation", cfg.Hotkeys.Explanation},
	}
	seen := make(map[string]string)
	for _, c := range combos {
		if c.value == "" {
			continue
		}
		parsed, err := hotkey.ParseCombo(c.value)
		if err != nil {
			return fmt.Errorf("hotkeys.%s: %w", c.name, err)
		}
		if other, dup := seen[parsed.String()]; dup {
			return fmt.Errorf("hotkeys.%s and hotkeys.%s share %s", other, c.name, parsed)
		}
		seen[parsed.String()] = c.name
	}
	switch cfg.Recognizer.Provider {
	case "groq", "openai", "deepgram":
	default:
		return errors.New("recognizer.provider must be one of groq|openai|deepgram")
	}
	switch cfg.Reasoner.Provider {
	case "groq", "openai", "anthropic":
	default:
		return errors.New("reasoner.provider must be one of groq|openai|anthropic")
	}
	if cfg.Reasoner.Temperature < 0 || cfg.Reasoner.Temperature > 2 {
		return errors.New("reasoner.temperature must be between 0 and 2")
	}
	if cfg.Reasoner.MaxTokens <= 0 {
		return errors.New("reasoner.max_tokens must be positive")
	}
	if cfg.Answers.HistorySize <= 0 {
		return errors.New("answers.history_size must be positive")
	}
	return nil
}
