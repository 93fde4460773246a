// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/autotagger/internal/httputil"
)

// Endpoints are package-level vars for test substitution.
var (
	claudeAPIURL = "https://api.anthropic.com/v1/messages"
	openAIAPIURL = "https://api.openai.com/v1/chat/completions"
)

const (
	defaultClaudeModel = "claude-sonnet-4-5-20250929"
	defaultOpenAIModel = "gpt-4o-mini"

	// maxResponseTokens is ample for ten short keyword lines.
	maxResponseTokens = 512
)

// ClaudeBackend calls the Anthropic Messages API.
type ClaudeBackend struct {
	APIKey  string
	Model   string
	BaseURL string

	transport *httputil.Client
}

type claudeRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends prompt as a single user message and returns the first
// text block of the reply.
func (c *ClaudeBackend) Complete(ctx context.Context, prompt string) (string, error) {
	model := c.Model
	if model == "" {
		model = defaultClaudeModel
	}
	body, err := json.Marshal(claudeRequest{
		Model:     model,
		MaxTokens: maxResponseTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := claudeAPIURL
	if c.BaseURL != "" {
		endpoint = c.BaseURL
	}
	resp, err := c.client().Post(ctx, endpoint, map[string]string{
		"Content-Type":      "application/json",
		"x-api-key":         c.APIKey,
		"anthropic-version": "2023-06-01",
	}, body)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}

	var cResp claudeResponse
	if err := json.Unmarshal(resp.Body, &cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}
	for _, block := range cResp.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}
	return "", ErrEmptyResponse
}

func (c *ClaudeBackend) client() *httputil.Client {
	if c.transport == nil {
		c.transport = &httputil.Client{}
	}
	return c.transport
}

// OpenAIBackend calls an OpenAI-compatible chat-completions endpoint.
type OpenAIBackend struct {
	APIKey  string
	Model   string
	BaseURL string

	transport *httputil.Client
}

type openAIRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends prompt as a single user message and returns the first
// choice's content.
func (c *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	model := c.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	body, err := json.Marshal(openAIRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := openAIAPIURL
	if c.BaseURL != "" {
		endpoint = c.BaseURL
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if c.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.APIKey
	}
	resp, err := c.client().Post(ctx, endpoint, headers, body)
	if err != nil {
		return "", fmt.Errorf("calling chat completions API: %w", err)
	}

	var payload openAIResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return "", fmt.Errorf("decoding chat completions response: %w", err)
	}
	if payload.Error != nil {
		return "", fmt.Errorf("chat completions error: %s", payload.Error.Message)
	}
	if len(payload.Choices) == 0 || strings.TrimSpace(payload.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return payload.Choices[0].Message.Content, nil
}

func (c *OpenAIBackend) client() *httputil.Client {
	if c.transport == nil {
		c.transport = &httputil.Client{}
	}
	return c.transport
}
