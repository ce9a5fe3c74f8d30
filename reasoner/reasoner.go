// Package reasoner asks a language model to solve the recognized
// interview question and splits the reply into code and explanation.
package reasoner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 2500
	requestTimeout     = 60 * time.Second
)

// Answer is one parsed reply.
type Answer struct {
	Provider       string
	Solution       string
	Explanation    string
	Timestamp      time.Time
	IsExplanation  bool
	OriginalPrompt string
}

type Reasoner interface {
	Name() string
	Solve(ctx context.Context, text string, wantExplanation bool) (Answer, error)
}

type Kind string

const (
	KindAuth    Kind = "auth"
	KindNetwork Kind = "network"
	KindEmpty   Kind = "empty"
	KindStatus  Kind = "status"
)

type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAuth:
		return fmt.Sprintf("%s: rejected API key", e.Provider)
	case KindEmpty:
		return fmt.Sprintf("%s: empty reply", e.Provider)
	case KindStatus:
		return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a reasoner error of kind k.
func IsKind(err error, k Kind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == k
}

func statusError(provider string, code int, body []byte) *Error {
	kind := KindStatus
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		kind = KindAuth
	}
	return &Error{Provider: provider, Kind: kind, StatusCode: code, Body: string(body)}
}

var codeBlock = regexp.MustCompile("```(?:[\\w\\-+#]*\\n)?([\\s\\S]*?)```")

// Prompt builds the request text for the question.
func Prompt(text string, wantExplanation bool) string {
	if wantExplanation {
		return "Solve this programming problem and explain the solution:\n" + text +
			"\n\nAnswer format:\n1. The solution code inside a ``` block\n2. A detailed explanation of the algorithm and the code"
	}
	return "Solve this programming problem (code only):\n" + text +
		"\n\nReturn ONLY the solution code inside a ``` block"
}

// Parse splits a model reply. The first fenced block is the solution;
// with an explanation requested, the text outside all fences is the
// explanation. A reply without fences is the solution as a whole.
func Parse(provider, reply, prompt string, wantExplanation bool) Answer {
	a := Answer{
		Provider:       provider,
		OriginalPrompt: prompt,
		IsExplanation:  wantExplanation,
		Timestamp:      time.Now(),
	}
	m := codeBlock.FindStringSubmatch(reply)
	if m == nil {
		a.Solution = strings.TrimSpace(reply)
		return a
	}
	a.Solution = strings.TrimSpace(m[1])
	if wantExplanation {
		a.Explanation = strings.TrimSpace(codeBlock.ReplaceAllString(reply, ""))
	}
	return a
}

type Option func(*base)

func WithBaseURL(u string) Option          { return func(b *base) { b.apiURL = u } }
func WithModel(m string) Option            { return func(b *base) { b.model = m } }
func WithTemperature(t float64) Option     { return func(b *base) { b.temperature = t } }
func WithMaxTokens(n int) Option           { return func(b *base) { b.maxTokens = n } }
func WithHTTPClient(c *http.Client) Option { return func(b *base) { b.client = c } }

type base struct {
	name        string
	apiKey      string
	apiURL      string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

func newBase(name, apiKey, apiURL, model string, opts []Option) base {
	b := base{
		name:        name,
		apiKey:      apiKey,
		apiURL:      apiURL,
		model:       model,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.client == nil {
		b.client = &http.Client{Timeout: requestTimeout}
	}
	return b
}

// New builds the reasoner for provider.
func New(provider, apiKey string, opts ...Option) (Reasoner, error) {
	switch provider {
	case "groq":
		return NewGroq(apiKey, opts...), nil
	case "openai":
		return NewOpenAI(apiKey, opts...), nil
	case "anthropic":
		return NewAnthropic(apiKey, opts...), nil
	}
	return nil, fmt.Errorf("unknown reasoner %q (want groq, openai or anthropic)", provider)
}
