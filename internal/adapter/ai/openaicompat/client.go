// Package openaicompat implements domain.AIClient on any OpenAI-compatible
// chat completions endpoint.
package openaicompat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/mainalyze/internal/adapter/ai"
	"github.com/fairyhunter13/mainalyze/internal/domain"
)

// Client wraps a go-openai client.
type Client struct {
	api    *openai.Client
	hasKey bool
}

var _ domain.AIClient = (*Client)(nil)

// New creates a client for baseURL (empty means api.openai.com).
func New(baseURL, apiKey string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	return &Client{api: openai.NewClientWithConfig(cfg), hasKey: apiKey != ""}
}

func buildMessages(req domain.GenerateRequest) ([]openai.ChatCompletionMessage, error) {
	if len(req.Attachments) == 0 {
		return []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: req.Prompt}}, nil
	}
	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: req.Prompt}}
	for _, a := range req.Attachments {
		if !strings.HasPrefix(a.MIMEType, "image/") {
			return nil, fmt.Errorf("%w: %s attachments are not supported by the openai provider", domain.ErrUnsupportedMedia, a.MIMEType)
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:" + a.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(a.Data),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}
	return []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, MultiContent: parts}}, nil
}

// Generate performs one chat completion and returns the first choice.
func (c *Client) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	if !c.hasKey {
		return "", fmt.Errorf("%w: OPENAI_API_KEY missing", domain.ErrInvalidArgument)
	}
	msgs, err := buildMessages(req)
	if err != nil {
		return "", fmt.Errorf("op=openai.build: %w", err)
	}
	creq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxOutputTokens,
	}
	if req.JSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	resp, err := c.api.CreateChatCompletion(ctx, creq)
	if err != nil {
		return "", fmt.Errorf("op=openai.call: %w", mapError(err))
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("op=openai.call: %w: no choices", domain.ErrUpstream)
	}
	return resp.Choices[0].Message.Content, nil
}

func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return ai.StatusError("openai", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return ai.StatusError("openai", reqErr.HTTPStatusCode, reqErr.Error())
	}
	return err
}
