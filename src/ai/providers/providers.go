// Package providers links every model provider into the binary.
package providers

import (
	_ "github.com/realfinder/verifier/src/ai/anthropic"
	_ "github.com/realfinder/verifier/src/ai/gemini25"
	_ "github.com/realfinder/verifier/src/ai/genai"
)
