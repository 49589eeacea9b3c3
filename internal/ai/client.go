// Package ai wraps an OpenAI-compatible chat completions API for
// opportunity brainstorming, proposal drafting and embeddings.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultModel      = "gpt-4o-mini"
	defaultEmbedModel = "text-embedding-3-small"
	maxCompletionToks = 4096

	// Calls are spaced at least this far apart process-wide; the API's
	// burst limits are generous but drafting loops fire many requests
	// back to back.
	minCallInterval = time.Second

	maxRetries     = 5
	retryBaseDelay = 5 * time.Second
)

// ErrNoAPIKey is returned when no API key is configured. Handlers map it
// to a clear client error instead of a masked upstream 401.
var ErrNoAPIKey = errors.New("OPENAI_API_KEY is not set")

// Client talks to an OpenAI-compatible endpoint. The zero value is not
// usable; construct with NewClient or NewClientFromEnv.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	embedModel string

	mu           sync.Mutex
	lastCall     time.Time
	callInterval time.Duration
}

func NewClient(baseURL, apiKey, model string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		model:        model,
		embedModel:   defaultEmbedModel,
		callInterval: minCallInterval,
	}
}

// NewClientFromEnv reads OPENAI_API_KEY, OPENAI_BASE_URL and OPENAI_MODEL.
// A missing key yields a client whose calls fail with ErrNoAPIKey, so the
// server can start without AI features configured.
func NewClientFromEnv() *Client {
	return NewClient(os.Getenv("OPENAI_BASE_URL"), os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_MODEL"))
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *apiError `json:"error"`
}

// Generate sends a single-message chat completion and returns the model's
// reply. Rate-limit style failures are retried up to five times with
// doubling delays; other failures return immediately.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		c.throttle()
		text, err := c.chatOnce(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !isRateLimitError(err) || attempt == maxRetries-1 {
			return "", err
		}
		wait := retryBaseDelay * time.Duration(1<<attempt)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}

// throttle enforces the minimum spacing between API calls. The elapsed
// time is rechecked after every sleep: another caller may have claimed the
// slot while the lock was released, in which case this caller waits for
// the next one.
func (c *Client) throttle() {
	c.mu.Lock()
	for {
		since := time.Since(c.lastCall)
		if since >= c.callInterval {
			break
		}
		wait := c.callInterval - since
		c.mu.Unlock()
		time.Sleep(wait)
		c.mu.Lock()
	}
	c.lastCall = time.Now()
	c.mu.Unlock()
}

func (c *Client) chatOnce(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:     c.model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: maxCompletionToks,
	}
	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", reqBody, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("chat completion: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	c.throttle()

	reqBody := embeddingRequest{Model: c.embedModel, Input: []string{text}}
	var resp embeddingResponse
	if err := c.post(ctx, "/embeddings", reqBody, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("embedding: %s", resp.Error.Message)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Surface the API's message so rate-limit detection sees it.
		var e struct {
			Error *apiError `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != nil {
			return fmt.Errorf("api status %d: %s", resp.StatusCode, e.Error.Message)
		}
		return fmt.Errorf("api status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// isRateLimitError matches quota and throttling failures by message, the
// same way callers of the upstream API have to since status codes vary
// across compatible providers.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate") || strings.Contains(msg, "limit") || strings.Contains(msg, "quota")
}

const (
	summarizeInputHardLimit = 5000
	defaultSummaryLength    = 2000
)

// SummarizeForPrompt compresses text to fit inside a larger prompt. Text
// already within maxLength passes through. On summarization failure the
// text is truncated instead, so callers always get something usable.
func (c *Client) SummarizeForPrompt(ctx context.Context, text string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = defaultSummaryLength
	}
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}

	input := runes
	if len(input) > summarizeInputHardLimit {
		input = input[:summarizeInputHardLimit]
	}
	target := maxLength * 3 / 4

	prompt := fmt.Sprintf(`Summarize the following text concisely, retaining all critical information for a research proposal context. The summary should be approximately %d characters long.

Text to Summarize:
%s`, target, string(input))

	summary, err := c.Generate(ctx, prompt)
	if err != nil || summary == "" {
		return string(runes[:maxLength])
	}
	if sr := []rune(summary); len(sr) > maxLength {
		return string(sr[:maxLength])
	}
	return summary
}
