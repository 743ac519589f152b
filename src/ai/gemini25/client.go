package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/realfinder/verifier/src/ai/core"
	"github.com/realfinder/verifier/src/webclient"
)

const (
	baseURL          = "https://generativelanguage.googleapis.com/v1beta"
	defaultModelName = "gemini-2.5-flash"
	defaultMaxTokens = 2048
)

func init() {
	core.RegisterProvider("gemini25", newClient, "gemini")
}

type client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	defaults   core.Options
}

func newClient(cfg core.FactoryConfig) (core.Client, error) {
	if cfg.GeminiKey == "" {
		return nil, fmt.Errorf("gemini: API key not configured")
	}

	model := cfg.Model
	if strings.TrimSpace(model) == "" {
		model = defaultModelName
	}
	endpoint := strings.TrimRight(cfg.BaseURL, "/")
	if endpoint == "" {
		endpoint = baseURL
	}

	return &client{
		apiKey:     cfg.GeminiKey,
		baseURL:    endpoint,
		httpClient: webclient.NewDefault(orDuration(cfg.Timeout, 120*time.Second)),
		defaults: core.Options{
			Model:               model,
			Temperature:         orFloat(cfg.Temperature, 0.2),
			MaxCompletionTokens: orInt(cfg.MaxCompletionTokens, defaultMaxTokens),
			SystemPrompt:        cfg.SystemPrompt,
		},
	}, nil
}

func (c *client) Generate(ctx context.Context, parts []core.Part, opts core.Options) (string, error) {
	merged := c.merge(opts)
	body := c.buildRequestBody(merged, parts)
	return c.send(ctx, merged.Model, body)
}

func (c *client) buildRequestBody(opts core.Options, parts []core.Part) map[string]interface{} {
	wireParts := make([]map[string]interface{}, 0, len(parts))
	for _, p := range parts {
		if len(p.Data) > 0 {
			wireParts = append(wireParts, map[string]interface{}{
				"inline_data": map[string]string{
					"mime_type": p.MIMEType,
					"data":      base64.StdEncoding.EncodeToString(p.Data),
				},
			})
			continue
		}
		wireParts = append(wireParts, map[string]interface{}{"text": p.Text})
	}

	generation := map[string]interface{}{
		"temperature":     opts.Temperature,
		"maxOutputTokens": maxTokens(opts.MaxCompletionTokens),
	}
	if opts.JSONResponse {
		generation["responseMimeType"] = "application/json"
	}

	body := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"role": "user", "parts": wireParts},
		},
		"generationConfig": generation,
	}

	if strings.TrimSpace(opts.SystemPrompt) != "" {
		body["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]string{
				{"text": opts.SystemPrompt},
			},
		}
	}
	return body
}

func (c *client) send(ctx context.Context, model string, payload map[string]interface{}) (string, error) {
	modelPath := normalizeModel(model)
	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, modelPath, url.QueryEscape(c.apiKey))
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("gemini: encode request: %w", err)
	}

	status, body, err := webclient.PostJSON(ctx, c.httpClient, endpoint, bodyBytes, nil)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}
	if status != http.StatusOK {
		return "", &core.StatusError{Provider: "gemini", StatusCode: status, Body: string(body)}
	}

	var result generateContentResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	if result.PromptFeedback.BlockReason != "" {
		return "", &core.StatusError{Provider: "gemini", StatusCode: http.StatusUnprocessableEntity, Body: "blocked: " + result.PromptFeedback.BlockReason}
	}
	text := result.FirstText()
	if text == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return text, nil
}

func (c *client) merge(opts core.Options) core.Options {
	out := c.defaults
	if strings.TrimSpace(opts.Model) != "" {
		out.Model = opts.Model
	}
	if opts.Temperature != 0 {
		out.Temperature = opts.Temperature
	}
	if opts.MaxCompletionTokens != 0 {
		out.MaxCompletionTokens = opts.MaxCompletionTokens
	}
	if strings.TrimSpace(opts.SystemPrompt) != "" {
		out.SystemPrompt = opts.SystemPrompt
	}
	if opts.JSONResponse {
		out.JSONResponse = true
	}
	return out
}

func maxTokens(requested int) int {
	if requested <= 0 {
		return defaultMaxTokens
	}
	return requested
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return "models/" + defaultModelName
	}
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (r generateContentResponse) FirstText() string {
	for _, candidate := range r.Candidates {
		for _, part := range candidate.Content.Parts {
			if strings.TrimSpace(part.Text) != "" {
				return part.Text
			}
		}
	}
	return ""
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

func orDuration(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}
