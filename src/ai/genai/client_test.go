package genai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realfinder/verifier/src/ai/core"
)

func TestClassify(t *testing.T) {
	err := classify(errors.New("Error 429, Message: quota exceeded, Status: RESOURCE_EXHAUSTED"))
	var se *core.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 429, se.StatusCode)

	err = classify(errors.New("dial tcp: connection refused"))
	assert.False(t, errors.As(err, &se))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestToSDKParts(t *testing.T) {
	parts := toSDKParts([]core.Part{core.TextPart("hello"), core.BlobPart([]byte{1, 2}, "image/jpeg")})
	require.Len(t, parts, 2)
	assert.Equal(t, "hello", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MIMEType)
}

func TestBuildConfig(t *testing.T) {
	cfg := buildConfig(core.Options{Temperature: 0.1, MaxCompletionTokens: 100, SystemPrompt: "strict"}, true)
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	assert.Equal(t, int32(100), cfg.MaxOutputTokens)
	require.NotNil(t, cfg.SystemInstruction)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := newClient(core.FactoryConfig{})
	assert.Error(t, err)
}
