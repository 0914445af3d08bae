package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Wire types for the OpenAI-compatible /chat/completions endpoint.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	StreamOptions  *streamOptions  `json:"stream_options,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage chatUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

type chatStreamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage,omitempty"`
}

// chatResult is the internal outcome of one chat call.
type chatResult struct {
	content          string
	model            string
	promptTokens     int
	completionTokens int
	totalTokens      int
}

// doChat makes a non-streaming chat completion request with retries on
// transient failures.
func (c *Client) doChat(ctx context.Context, req chatRequest) (*chatResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, body, err := c.postChat(ctx, req)
		if err != nil {
			lastErr = err
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		if shouldRetryStatus(resp.StatusCode) {
			lastErr = fmt.Errorf("chat endpoint error (status %d): %s", resp.StatusCode, truncate(string(body), 512))
			c.sleepWithJitter(ctx, attempt)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("chat endpoint error (status %d): %s", resp.StatusCode, truncate(string(body), 512))
		}

		var parsed chatResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			lastErr = fmt.Errorf("failed to decode chat response: %w", err)
			c.sleepWithJitter(ctx, attempt)
			continue
		}
		if parsed.Error != nil {
			return nil, fmt.Errorf("chat API error: %s", parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			lastErr = fmt.Errorf("empty choices in chat response (model=%s)", parsed.Model)
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		return &chatResult{
			content:          parsed.Choices[0].Message.Content,
			model:            parsed.Model,
			promptTokens:     parsed.Usage.PromptTokens,
			completionTokens: parsed.Usage.CompletionTokens,
			totalTokens:      parsed.Usage.TotalTokens,
		}, nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// doChatStream makes a streaming chat completion request, delivering each
// content delta to onDelta. Transient failures before the stream starts are
// retried; once tokens flow, errors fail the call.
func (c *Client) doChatStream(ctx context.Context, req chatRequest, onDelta func(delta string)) (*chatResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req.Stream = true
	req.StreamOptions = &streamOptions{IncludeUsage: true}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := c.startChat(ctx, req)
		if err != nil {
			lastErr = err
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		if shouldRetryStatus(resp.StatusCode) {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			lastErr = fmt.Errorf("chat endpoint error (status %d): %s", resp.StatusCode, truncate(string(body), 512))
			c.sleepWithJitter(ctx, attempt)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, fmt.Errorf("chat endpoint error (status %d): %s", resp.StatusCode, truncate(string(body), 512))
		}

		result, err := readStream(resp.Body, onDelta)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// postChat does one request/response round trip.
func (c *Client) postChat(ctx context.Context, req chatRequest) (*http.Response, []byte, error) {
	resp, err := c.startChat(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read chat response: %w", err)
	}
	return resp, body, nil
}

// startChat sends the request and returns the raw response.
func (c *Client) startChat(ctx context.Context, req chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	return resp, nil
}

// readStream consumes SSE lines until [DONE], accumulating content and the
// usage the final chunk carries.
func readStream(body io.Reader, onDelta func(delta string)) (*chatResult, error) {
	result := &chatResult{}
	var content strings.Builder

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if data == "[DONE]" {
			break
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("failed to decode stream chunk: %w", err)
		}
		if chunk.Model != "" {
			result.model = chunk.Model
		}
		if chunk.Usage != nil {
			result.promptTokens = chunk.Usage.PromptTokens
			result.completionTokens = chunk.Usage.CompletionTokens
			result.totalTokens = chunk.Usage.TotalTokens
		}
		if len(chunk.Choices) > 0 {
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				content.WriteString(delta)
				if onDelta != nil {
					onDelta(delta)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("stream read failed: %w", err)
	}

	result.content = content.String()
	return result, nil
}

// shouldRetryStatus returns true for status codes worth retrying.
func shouldRetryStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity, http.StatusTooManyRequests:
		return true
	case 520, 521, 522, 523, 524:
		return true
	default:
		return statusCode >= 500
	}
}

// sleepWithJitter sleeps with exponential backoff and jitter, respecting
// context cancellation.
func (c *Client) sleepWithJitter(ctx context.Context, attempt int) {
	baseDelay := c.retryDelay * time.Duration(1<<attempt)
	if baseDelay > 10*time.Second {
		baseDelay = 10 * time.Second
	}

	// -20% to +30%
	jitter := time.Duration(float64(baseDelay) * (0.8 + 0.5*float64(time.Now().UnixNano()%1000)/1000))

	select {
	case <-ctx.Done():
	case <-time.After(jitter):
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
