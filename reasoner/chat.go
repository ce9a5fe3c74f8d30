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
	groqChatURL   = "https://api.groq.com/openai/v1/chat/completions"
	openaiChatURL = "https://api.openai.com/v1/chat/completions"
)

// Chat talks to an OpenAI-compatible chat completions endpoint.
type Chat struct {
	base
}

func NewGroq(apiKey string, opts ...Option) *Chat {
	return &Chat{base: newBase("groq", apiKey, groqChatURL, "llama-3.3-70b-versatile", opts)}
}

func NewOpenAI(apiKey string, opts ...Option) *Chat {
	return &Chat{base: newBase("openai", apiKey, openaiChatURL, "gpt-4o-mini", opts)}
}

func (c *Chat) Name() string { return c.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Chat) Solve(ctx context.Context, text string, wantExplanation bool) (Answer, error) {
	if c.apiKey == "" {
		return Answer{}, &Error{Provider: c.name, Kind: KindAuth}
	}
	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: Prompt(text, wantExplanation)}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return Answer{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return Answer{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Answer{}, &Error{Provider: c.name, Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Answer{}, &Error{Provider: c.name, Kind: KindNetwork, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return Answer{}, statusError(c.name, resp.StatusCode, body)
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return Answer{}, &Error{Provider: c.name, Kind: KindNetwork, Err: fmt.Errorf("response parse error: %w", err)}
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return Answer{}, &Error{Provider: c.name, Kind: KindEmpty}
	}
	return Parse(c.name, cr.Choices[0].Message.Content, text, wantExplanation), nil
}
