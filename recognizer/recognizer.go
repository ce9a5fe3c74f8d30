// Package recognizer turns a finished capture artifact into text through
// a remote speech-to-text service.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"murmur/capture"
	"murmur/encoder"
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Result struct {
	Text         string
	Metrics      *NetworkMetrics
	RateLimit    string
	Confidence   float64
	NoSpeechProb float64
	AudioLengthS float64
	UploadKB     float64
	EncodeTime   time.Duration
}

type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, art capture.Artifact) (Result, error)
}

// ErrNoSpeech means the service answered but heard nothing usable.
var ErrNoSpeech = errors.New("no speech recognized")

// Error is a failed call to the speech service.
type Error struct {
	Provider   string
	StatusCode int // zero for transport failures
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return e.Provider + ": recognition failed"
}

func (e *Error) Unwrap() error { return e.Err }

// Unauthorized reports whether the service rejected the API key.
func (e *Error) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

type Option func(*base)

func WithBaseURL(u string) Option { return func(b *base) { b.apiURL = u } }
func WithModel(m string) Option   { return func(b *base) { b.model = m } }
func WithLanguage(l string) Option {
	return func(b *base) { b.lang = l }
}

type transcribeFunc func(ctx context.Context, audio []byte, format string) (*Result, error)

type base struct {
	name   string
	client *TracedClient
	apiURL string
	model  string
	lang   string
}

// recognize encodes the artifact to FLAC and hands it to fn.
func (b *base) recognize(ctx context.Context, art capture.Artifact, fn transcribeFunc) (Result, error) {
	samples, err := art.Samples()
	if err != nil {
		return Result{}, &Error{Provider: b.name, Err: err}
	}
	if len(samples) == 0 {
		return Result{}, ErrNoSpeech
	}

	enc, err := encoder.FLAC(samples, art.SampleRate)
	if err != nil {
		return Result{}, &Error{Provider: b.name, Err: err}
	}

	res, err := fn(ctx, enc.Data, enc.Format)
	if err != nil {
		var recErr *Error
		if errors.As(err, &recErr) {
			return Result{}, err
		}
		return Result{}, &Error{Provider: b.name, Err: err}
	}
	res.EncodeTime = enc.Took
	res.UploadKB = float64(len(enc.Data)) / 1024
	if art.SampleRate > 0 {
		res.AudioLengthS = float64(len(samples)) / float64(art.SampleRate)
	}
	res.Text = strings.TrimSpace(res.Text)
	if res.Text == "" || res.NoSpeechProb > 0.9 {
		return *res, ErrNoSpeech
	}
	return *res, nil
}

func (b *base) statusError(resp *TracedResponse) error {
	return &Error{Provider: b.name, StatusCode: resp.StatusCode, Body: string(resp.Body)}
}

// New builds the recognizer for provider.
func New(provider, apiKey string, opts ...Option) (Recognizer, error) {
	switch provider {
	case "groq":
		return NewGroq(apiKey, opts...), nil
	case "openai":
		return NewOpenAI(apiKey, opts...), nil
	case "deepgram":
		return NewDeepgram(apiKey, opts...), nil
	}
	return nil, fmt.Errorf("unknown recognizer %q (want groq, openai or deepgram)", provider)
}
