// Package anthropic implements core.Client against the Claude Messages API.
package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/realfinder/verifier/src/ai/core"
	"github.com/realfinder/verifier/src/webclient"
)

const (
	anthropicEndpoint = "https://api.anthropic.com/v1/messages"
	apiVersion        = "2023-06-01"
	defaultMaxTokens  = 2048
)

func init() {
	core.RegisterProvider("sonnet45", func(cfg core.FactoryConfig) (core.Client, error) {
		return NewClient(cfg, core.DefaultModelForProvider("sonnet45"))
	}, "claude", "anthropic")
	core.RegisterProvider("haiku45", func(cfg core.FactoryConfig) (core.Client, error) {
		return NewClient(cfg, core.DefaultModelForProvider("haiku45"))
	}, "haiku")
}

type client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	defaults   core.Options
}

// NewClient constructs an Anthropic-backed implementation of core.Client with the
// provided default model name.
func NewClient(cfg core.FactoryConfig, defaultModel string) (core.Client, error) {
	if cfg.ClaudeKey == "" {
		return nil, fmt.Errorf("anthropic: API key not configured")
	}

	endpoint := anthropicEndpoint
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		endpoint = base + "/v1/messages"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	return &client{
		apiKey:     cfg.ClaudeKey,
		endpoint:   endpoint,
		httpClient: webclient.NewDefault(timeout),
		defaults: core.Options{
			Model:               valueOrDefault(cfg.Model, defaultModel),
			Temperature:         orFloat(cfg.Temperature, 0.1),
			MaxCompletionTokens: orInt(cfg.MaxCompletionTokens, defaultMaxTokens),
			SystemPrompt:        cfg.SystemPrompt,
		},
	}, nil
}

func (c *client) Generate(ctx context.Context, parts []core.Part, opts core.Options) (string, error) {
	merged := c.merge(opts)
	system := merged.SystemPrompt
	if merged.JSONResponse {
		system = strings.TrimSpace(system + "\nRespond with a single JSON object and nothing else.")
	}

	body := map[string]interface{}{
		"model":       merged.Model,
		"max_tokens":  merged.MaxCompletionTokens,
		"temperature": merged.Temperature,
		"messages": []map[string]interface{}{
			{"role": "user", "content": contentBlocks(parts)},
		},
	}
	if system != "" {
		body["system"] = system
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("anthropic: encode request: %w", err)
	}
	status, payload, err := webclient.PostJSON(ctx, c.httpClient, c.endpoint, bodyBytes, map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": apiVersion,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	if status != http.StatusOK {
		return "", &core.StatusError{Provider: "anthropic", StatusCode: status, Body: string(payload)}
	}

	var result anthropicResponse
	if err := json.Unmarshal(payload, &result); err != nil {
		return "", fmt.Errorf("anthropic: parse error: %w", err)
	}
	text := extractText(result.Content)
	if text == "" {
		return "", fmt.Errorf("anthropic: empty response")
	}
	return text, nil
}

// contentBlocks puts images first, which is how the Messages API prefers
// mixed content.
func contentBlocks(parts []core.Part) []map[string]interface{} {
	var media, text []map[string]interface{}
	for _, p := range parts {
		if len(p.Data) == 0 {
			text = append(text, map[string]interface{}{"type": "text", "text": p.Text})
			continue
		}
		blockType := "image"
		if p.MIMEType == "application/pdf" {
			blockType = "document"
		}
		media = append(media, map[string]interface{}{
			"type": blockType,
			"source": map[string]string{
				"type":       "base64",
				"media_type": p.MIMEType,
				"data":       base64.StdEncoding.EncodeToString(p.Data),
			},
		})
	}
	return append(media, text...)
}

func (c *client) merge(opts core.Options) core.Options {
	out := c.defaults
	if strings.TrimSpace(opts.Model) != "" {
		out.Model = opts.Model
	}
	if opts.Temperature != 0 {
		out.Temperature = opts.Temperature
	}
	if opts.MaxCompletionTokens > 0 {
		out.MaxCompletionTokens = opts.MaxCompletionTokens
	}
	if strings.TrimSpace(opts.SystemPrompt) != "" {
		out.SystemPrompt = opts.SystemPrompt
	}
	out.JSONResponse = opts.JSONResponse
	return out
}

func extractText(chunks []anthropicContent) string {
	var b strings.Builder
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(chunk.Text)
	}
	return strings.TrimSpace(b.String())
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
}

func valueOrDefault(val, def string) string {
	if strings.TrimSpace(val) != "" {
		return val
	}
	return def
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}
