package pipeline

import (
	"fmt"

	"murmur/capture"
	"murmur/config"
	"murmur/reasoner"
	"murmur/recognizer"
)

// ConfigFrom maps the file and environment settings onto a pipeline Config.
func ConfigFrom(cfg config.Config) Config {
	return Config{
		Capture: capture.Config{
			MaxDuration: cfg.Capture.MaxDuration(),
			MinDuration: cfg.Capture.MinDuration(),
			Format:      capture.Format{SampleRate: uint32(cfg.Capture.SampleRate), Channels: 1},
		},
		WantExplanation: cfg.Answers.WantExplanation,
		HistorySize:     cfg.Answers.HistorySize,
		KeepArtifacts:   cfg.Answers.KeepRecordings,
	}
}

// SinksFrom picks the sink named in the capture settings.
func SinksFrom(cfg config.CaptureConfig) capture.SinkFactory {
	if cfg.Sink == "wav" {
		return capture.WAVSinkFactory(cfg.SinkDir)
	}
	return capture.NewMemorySink
}

// NewClients builds the recognizer and reasoner the settings select.
func NewClients(cfg config.Config) (recognizer.Recognizer, reasoner.Reasoner, error) {
	rc := cfg.Recognizer
	var ropts []recognizer.Option
	if rc.Model != "" {
		ropts = append(ropts, recognizer.WithModel(rc.Model))
	}
	if rc.BaseURL != "" {
		ropts = append(ropts, recognizer.WithBaseURL(rc.BaseURL))
	}
	ropts = append(ropts, recognizer.WithLanguage(rc.Language))
	rec, err := recognizer.New(rc.Provider, rc.APIKey, ropts...)
	if err != nil {
		return nil, nil, fmt.Errorf("recognizer: %w", err)
	}

	sc := cfg.Reasoner
	sopts := []reasoner.Option{
		reasoner.WithTemperature(sc.Temperature),
		reasoner.WithMaxTokens(sc.MaxTokens),
	}
	if sc.Model != "" {
		sopts = append(sopts, reasoner.WithModel(sc.Model))
	}
	if sc.BaseURL != "" {
		sopts = append(sopts, reasoner.WithBaseURL(sc.BaseURL))
	}
	rsn, err := reasoner.New(sc.Provider, sc.APIKey, sopts...)
	if err != nil {
		return nil, nil, fmt.Errorf("reasoner: %w", err)
	}
	return rec, rsn, nil
}
