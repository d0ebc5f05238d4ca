// Package openaiutil is a minimal chat-completions client.
package openaiutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultModel    = "gpt-5-mini"
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"

	defaultSystemPrompt = "You are a concise technology news summarizer. Summarize the provided items without inventing facts."
	maxErrorBody        = 512
)

type Config struct {
	APIKey       string
	Model        string
	Endpoint     string
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
}

type request struct {
	Model               string            `json:"model"`
	MaxCompletionTokens int               `json:"max_completion_tokens,omitempty"`
	Temperature         float64           `json:"temperature,omitempty"`
	Messages            []message         `json:"messages"`
	ResponseFormat      map[string]string `json:"response_format,omitempty"`
	ReasoningEffort     string            `json:"reasoning_effort,omitempty"`
	Verbosity           string            `json:"verbosity,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Result is one completion.
type Result struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Client sends chat-completion requests. The zero HTTP client falls back to
// http.DefaultClient.
type Client struct {
	cfg  Config
	http *http.Client
}

// New validates cfg and fills in defaults.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key missing; set transform.api_key or OPENAI_API_KEY")
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.SystemPrompt = strings.TrimSpace(cfg.SystemPrompt)
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, http: httpClient}, nil
}

// Model reports the model requests are sent to.
func (c *Client) Model() string { return c.cfg.Model }

// Generate sends one system + user exchange and returns the trimmed reply.
func (c *Client) Generate(ctx context.Context, userContent string) (Result, error) {
	reqBody := request{
		Model:               c.cfg.Model,
		MaxCompletionTokens: c.cfg.MaxTokens,
		Messages: []message{
			{Role: "system", Content: c.cfg.SystemPrompt},
			{Role: "user", Content: userContent},
		},
	}
	// gpt-5 models reject a custom temperature.
	if strings.HasPrefix(c.cfg.Model, "gpt-5") {
		reqBody.ResponseFormat = map[string]string{"type": "text"}
		reqBody.ReasoningEffort = "minimal"
		reqBody.Verbosity = "low"
	} else if c.cfg.Temperature > 0 {
		reqBody.Temperature = c.cfg.Temperature
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, fmt.Errorf("marshal completion request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("call completion endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read completion response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("completion HTTP %s: %s", resp.Status, clip(string(body), maxErrorBody))
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return Result{}, fmt.Errorf("parse completion response: %w", err)
	}
	if out.Error != nil {
		return Result{}, fmt.Errorf("completion error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return Result{}, fmt.Errorf("completion response had no choices")
	}
	return Result{
		Text:             strings.TrimSpace(out.Choices[0].Message.Content),
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
	}, nil
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
