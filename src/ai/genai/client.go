// Package genai adapts the Google GenAI SDK to core.Client.
package genai

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/realfinder/verifier/src/ai/core"
)

const defaultMaxTokens = 2048

// sdkStatus pulls the HTTP status out of SDK error messages ("Error 429, Message: ...").
var sdkStatus = regexp.MustCompile(`Error (\d{3})\b`)

func init() {
	core.RegisterProvider("genai", newClient, "gemini-sdk")
}

type client struct {
	sdk      *genai.Client
	defaults core.Options
}

func newClient(cfg core.FactoryConfig) (core.Client, error) {
	if cfg.GeminiKey == "" {
		return nil, fmt.Errorf("genai: API key is required")
	}

	sdk, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.GeminiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	temp := cfg.Temperature
	if temp == 0 {
		temp = 0.2
	}
	maxTokens := cfg.MaxCompletionTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &client{
		sdk: sdk,
		defaults: core.Options{
			Model:               core.ResolveModelName("genai", cfg.Model),
			Temperature:         temp,
			MaxCompletionTokens: maxTokens,
			SystemPrompt:        cfg.SystemPrompt,
		},
	}, nil
}

func (c *client) Generate(ctx context.Context, parts []core.Part, opts core.Options) (string, error) {
	merged := c.defaults
	if strings.TrimSpace(opts.Model) != "" {
		merged.Model = opts.Model
	}
	if opts.Temperature != 0 {
		merged.Temperature = opts.Temperature
	}
	if opts.MaxCompletionTokens > 0 {
		merged.MaxCompletionTokens = opts.MaxCompletionTokens
	}
	if strings.TrimSpace(opts.SystemPrompt) != "" {
		merged.SystemPrompt = opts.SystemPrompt
	}

	contents := []*genai.Content{genai.NewContentFromParts(toSDKParts(parts), genai.RoleUser)}
	config := buildConfig(merged, opts.JSONResponse)

	resp, err := c.sdk.Models.GenerateContent(ctx, merged.Model, contents, config)
	if err != nil {
		return "", classify(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("genai: empty response")
	}
	return text, nil
}

func buildConfig(opts core.Options, jsonOnly bool) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(opts.Temperature)),
		MaxOutputTokens: int32(opts.MaxCompletionTokens),
	}
	if strings.TrimSpace(opts.SystemPrompt) != "" {
		config.SystemInstruction = genai.NewContentFromText(opts.SystemPrompt, genai.RoleUser)
	}
	if jsonOnly {
		config.ResponseMIMEType = "application/json"
	}
	return config
}

func toSDKParts(parts []core.Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if len(p.Data) > 0 {
			out = append(out, genai.NewPartFromBytes(p.Data, p.MIMEType))
			continue
		}
		out = append(out, genai.NewPartFromText(p.Text))
	}
	return out
}

// classify turns SDK failures carrying an HTTP status into core.StatusError so
// callers can tell transient from permanent failures.
func classify(err error) error {
	m := sdkStatus.FindStringSubmatch(err.Error())
	if len(m) != 2 {
		return fmt.Errorf("genai: %w", err)
	}
	status, convErr := strconv.Atoi(m[1])
	if convErr != nil || status < http.StatusBadRequest {
		return fmt.Errorf("genai: %w", err)
	}
	return &core.StatusError{Provider: "genai", StatusCode: status, Body: err.Error()}
}
