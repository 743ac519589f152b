package analysis

import (
	"fmt"
	"strings"

	"github.com/realfinder/verifier/src/ai/core"
)

// Kind selects the analysis prompt.
type Kind string

const (
	KindText              Kind = "text"
	KindImage             Kind = "image"
	KindDocument          Kind = "document"
	KindFraud             Kind = "fraud"
	KindConsistency       Kind = "consistency"
	KindMediaAuthenticity Kind = "media_authenticity"
	KindConflict          Kind = "conflict"
)

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{KindText, KindImage, KindDocument, KindFraud, KindConsistency, KindMediaAuthenticity, KindConflict}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := instructions[k]
	return ok
}

// Payload is what an evaluator hands to the adapter.
type Payload struct {
	Subject string
	Text    string
	Fields  map[string]string
	Media   []core.Part
}

// Issue is one problem reported by the provider.
type Issue struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Result is the parsed provider verdict.
type Result struct {
	Score     float64           `json:"score"`
	Issues    []Issue           `json:"issues,omitempty"`
	Summary   string            `json:"summary,omitempty"`
	Extracted map[string]string `json:"fields,omitempty"`
	Cached    bool              `json:"-"`
}

const systemPrompt = `You are a verification analyst for a real-estate marketplace.
You review listings, broker profiles and property records for accuracy, authenticity and fraud.
Always answer with one JSON object of the form
{"score": <number 0..1, 1 = fully trustworthy>, "issues": [{"code": "...", "severity": "info|low|medium|high|critical", "message": "..."}], "summary": "...", "fields": {"name": "value"}}
and nothing else.`

var instructions = map[Kind]string{
	KindText: "Assess the text below for quality, accuracy and policy compliance. " +
		"Flag contact details embedded in free text, misleading claims, spam and pressure tactics.",
	KindImage: "Assess the attached image. Check that it shows real estate relevant to the subject, " +
		"is of usable quality and carries no watermarks, contact details or unrelated content.",
	KindDocument: "Read the attached document. Extract the owner or holder name, document type, " +
		"registration or license number and issue date into fields, and flag signs of tampering or illegibility.",
	KindFraud: "Assess the fraud risk of the subject described below. Consider pricing far below market, " +
		"requests for advance payment, inconsistent identity details and known scam patterns.",
	KindConsistency: "Check the subject's attributes below for internal consistency: price versus area, " +
		"room counts versus area, location versus description.",
	KindMediaAuthenticity: "Assess whether the attached images are authentic photographs of the same property. " +
		"Flag stock photos, heavy editing, AI-generated content and images that clearly show different properties.",
	KindConflict: "Compare the declared identity below with the attached documents. " +
		"Flag any mismatch in names, numbers or addresses between what was declared and what the documents show.",
}

// BuildPrompt renders the user prompt for kind and payload.
func BuildPrompt(kind Kind, p Payload) (string, error) {
	instruction, ok := instructions[kind]
	if !ok {
		return "", fmt.Errorf("unknown analysis kind %q", kind)
	}

	var b strings.Builder
	b.WriteString(instruction)
	if p.Subject != "" {
		fmt.Fprintf(&b, "\n\nSubject type: %s", p.Subject)
	}
	if len(p.Fields) > 0 {
		b.WriteString("\n\nAttributes:")
		for _, k := range sortedKeys(p.Fields) {
			fmt.Fprintf(&b, "\n- %s: %s", k, p.Fields[k])
		}
	}
	if strings.TrimSpace(p.Text) != "" {
		b.WriteString("\n\nText:\n")
		b.WriteString(p.Text)
	}
	if n := len(p.Media); n > 0 {
		fmt.Fprintf(&b, "\n\n%d attachment(s) follow.", n)
	}
	return b.String(), nil
}
