package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realfinder/verifier/src/ai/core"
)

func TestGenerateSendsMultimodalRequest(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"score\":0.9}"}]}}]}`))
	}))
	defer srv.Close()

	c, err := core.NewClient(core.FactoryConfig{Provider: "gemini25", GeminiKey: "k", Model: "gemini-test", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), []core.Part{
		core.TextPart("describe"),
		core.BlobPart([]byte{0x89, 'P', 'N', 'G'}, "image/png"),
	}, core.Options{JSONResponse: true, SystemPrompt: "be strict"})
	require.NoError(t, err)
	assert.Equal(t, `{"score":0.9}`, out)

	contents := got["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "describe", parts[0].(map[string]any)["text"])
	inline := parts[1].(map[string]any)["inline_data"].(map[string]any)
	assert.Equal(t, "image/png", inline["mime_type"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'}), inline["data"])
	assert.Equal(t, "application/json", got["generationConfig"].(map[string]any)["responseMimeType"])
	assert.NotNil(t, got["systemInstruction"])
}

func TestGenerateReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	c, err := newClient(core.FactoryConfig{GeminiKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), []core.Part{core.TextPart("x")}, core.Options{})
	var se *core.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
}

func TestGenerateEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c, err := newClient(core.FactoryConfig{GeminiKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), []core.Part{core.TextPart("x")}, core.Options{})
	assert.Error(t, err)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := newClient(core.FactoryConfig{})
	assert.Error(t, err)
}

func TestNormalizeModel(t *testing.T) {
	assert.Equal(t, "models/gemini-2.5-flash", normalizeModel(""))
	assert.Equal(t, "models/x", normalizeModel("x"))
	assert.Equal(t, "models/x", normalizeModel("models/x"))
}
