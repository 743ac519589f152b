package core

import (
	"context"
	"fmt"
)

// Part is one piece of multimodal input. Exactly one of Text or Data is set.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// TextPart wraps plain text.
func TextPart(text string) Part {
	return Part{Text: text}
}

// BlobPart wraps binary media such as an image or a scanned page.
func BlobPart(data []byte, mimeType string) Part {
	return Part{Data: data, MIMEType: mimeType}
}

// Options controls model behavior; fields are optional per provider.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int
	SystemPrompt        string
	// JSONResponse asks providers that support it for a JSON-only reply.
	JSONResponse bool
}

// Client is a provider-agnostic interface for the model calls the verifier
// needs. Implementations make exactly one attempt per call; retrying and
// pacing belong to the caller.
type Client interface {
	Generate(ctx context.Context, parts []Part, opts Options) (string, error)
}

// StatusError reports a non-2xx reply from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, body)
}
