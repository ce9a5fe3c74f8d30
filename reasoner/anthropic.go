package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicURL     = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

type Anthropic struct {
	base
}

func NewAnthropic(apiKey string, opts ...Option) *Anthropic {
	return &Anthropic{base: newBase("anthropic", apiKey, anthropicURL, "claude-3-5-haiku-latest", opts)}
}

func (a *Anthropic) Name() string { return a.name }

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (a *Anthropic) Solve(ctx context.Context, text string, wantExplanation bool) (Answer, error) {
	if a.apiKey == "" {
		return Answer{}, &Error{Provider: a.name, Kind: KindAuth}
	}
	payload, err := json.Marshal(chatRequest{
		Model:       a.model,
		Messages:    []chatMessage{{Role: "user", Content: Prompt(text, wantExplanation)}},
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		return Answer{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.apiURL, bytes.NewReader(payload))
	if err != nil {
		return Answer{}, err
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return Answer{}, &Error{Provider: a.name, Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Answer{}, &Error{Provider: a.name, Kind: KindNetwork, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return Answer{}, statusError(a.name, resp.StatusCode, body)
	}

	var ar anthropicResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return Answer{}, &Error{Provider: a.name, Kind: KindNetwork, Err: fmt.Errorf("response parse error: %w", err)}
	}
	var sb strings.Builder
	for _, c := range ar.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return Answer{}, &Error{Provider: a.name, Kind: KindEmpty}
	}
	return Parse(a.name, sb.String(), text, wantExplanation), nil
}
