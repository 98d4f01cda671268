// Package gemini implements domain.AIClient against the Gemini
// generateContent REST endpoint.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/mainalyze/internal/adapter/ai"
	"github.com/fairyhunter13/mainalyze/internal/domain"
	obsctx "github.com/fairyhunter13/mainalyze/internal/observability"
)

const maxErrorBody = 512

// Client calls Gemini over plain HTTP. It performs exactly one request per
// Generate call; retries are the caller's decision.
type Client struct {
	apiKey  string
	baseURL string
	hc      *http.Client
}

var _ domain.AIClient = (*Client)(nil)

// New builds a client. The http.Client has no timeout of its own: every call
// is bounded by the caller's context deadline.
func New(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

// WithHTTPClient replaces the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.hc = hc
	return c
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      *float32 `json:"temperature,omitempty"`
	TopK             int      `json:"topK,omitempty"`
	TopP             *float32 `json:"topP,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

func buildRequest(req domain.GenerateRequest) generateRequest {
	parts := make([]part, 0, 1+len(req.Attachments))
	parts = append(parts, part{Text: req.Prompt})
	for _, a := range req.Attachments {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: a.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(a.Data),
		}})
	}
	gc := generationConfig{TopK: req.TopK, MaxOutputTokens: req.MaxOutputTokens}
	temp, topP := req.Temperature, req.TopP
	gc.Temperature = &temp
	if topP > 0 {
		gc.TopP = &topP
	}
	if req.JSON {
		gc.ResponseMimeType = "application/json"
	}
	return generateRequest{Contents: []content{{Role: "user", Parts: parts}}, GenerationConfig: gc}
}

// Generate sends one generateContent request and returns the first
// candidate's text.
func (c *Client) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: GEMINI_API_KEY missing", domain.ErrInvalidArgument)
	}
	if req.Model == "" {
		return "", fmt.Errorf("%w: model is required", domain.ErrInvalidArgument)
	}
	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return "", fmt.Errorf("op=gemini.encode: %w", err)
	}
	endpoint := c.baseURL + "/models/" + req.Model + ":generateContent"
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("op=gemini.request: %w", err)
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("x-goog-api-key", c.apiKey)

	lg := obsctx.LoggerFromContext(ctx)
	start := time.Now()
	resp, err := c.hc.Do(r)
	if err != nil {
		return "", fmt.Errorf("op=gemini.call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("op=gemini.read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(raw)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		lg.Warn("gemini non-2xx",
			slog.Int("status", resp.StatusCode),
			slog.String("model", req.Model),
			slog.Duration("duration", time.Since(start)),
			slog.String("body", snippet))
		return "", fmt.Errorf("op=gemini.call: %w", ai.StatusError("gemini", resp.StatusCode, snippet))
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("op=gemini.decode: %w: %v", domain.ErrUpstream, err)
	}
	if len(out.Candidates) == 0 {
		reason := ""
		if out.PromptFeedback != nil {
			reason = out.PromptFeedback.BlockReason
		}
		return "", fmt.Errorf("op=gemini.call: %w: no candidates (block_reason=%q)", domain.ErrUpstream, reason)
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("op=gemini.call: %w: empty candidate (finish_reason=%q)", domain.ErrUpstream, out.Candidates[0].FinishReason)
	}
	return text, nil
}
