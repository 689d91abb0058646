// Package llmclient is a streaming chat-completions client for the
// openai-compatible wire shape: a Server-Sent-Events token stream with
// base_url/header overrides and the max_tokens / max_completion_tokens
// translation newer model families require.
package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// DefaultBaseURL is used when a session has not overridden it.
const DefaultBaseURL = "https://api.openai.com/v1"

// completionTokensFloor is the minimum cap applied when translation to
// max_completion_tokens would otherwise leave too little room to produce any
// visible output.
const completionTokensFloor = 20

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamRequest describes one streaming chat-completion call.
type StreamRequest struct {
	APIKey    string
	BaseURL   string // overrides DefaultBaseURL when non-empty
	Headers   map[string]string
	Model     string
	Messages  []Message
	MaxTokens int
}

// usesMaxCompletionTokens reports whether model's API expects
// max_completion_tokens instead of max_tokens. Reasoning-family models
// (o1/o3/o4, and gpt-5) are the known cases in the wild today.
func usesMaxCompletionTokens(model string) bool {
	m := strings.ToLower(model)
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

// Client is a minimal streaming HTTP client. The zero value is usable.
type Client struct {
	HTTPClient *http.Client
}

// New returns a Client using http.DefaultClient.
func New() *Client {
	return &Client{HTTPClient: http.DefaultClient}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// streamChunk mirrors the subset of the OpenAI streaming chat-completion
// frame this client cares about.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// Stream opens a streaming chat completion and invokes onToken for every
// non-empty content delta in arrival order. It returns the finish_reason of
// the final chunk that carried one (commonly "stop" or "length").
func (c *Client) Stream(ctx context.Context, req StreamRequest, onToken func(string)) (string, error) {
	baseURL := req.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	payload := map[string]any{
		"model":    req.Model,
		"messages": req.Messages,
		"stream":   true,
	}
	if req.MaxTokens > 0 {
		if usesMaxCompletionTokens(req.Model) {
			n := req.MaxTokens
			if n < completionTokensFloor {
				n = completionTokensFloor
			}
			payload["max_completion_tokens"] = n
		} else {
			payload["max_tokens"] = req.MaxTokens
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llmclient: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llmclient: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llmclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody bytes.Buffer
		errBody.ReadFrom(resp.Body)
		return "", &APIError{Status: resp.StatusCode, Message: errBody.String()}
	}

	finishReason := ""
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		if data == "" {
			continue
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				onToken(choice.Delta.Content)
			}
			if choice.FinishReason != nil {
				finishReason = *choice.FinishReason
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return finishReason, fmt.Errorf("llmclient: stream read: %w", err)
	}

	return finishReason, nil
}

// APIError carries the upstream status and raw body for narration.errors to
// wrap into an UpstreamError.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llmclient: status %d: %s", e.Status, e.Message)
}
