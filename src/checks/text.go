package checks

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/realfinder/verifier/src/analysis"
	"github.com/realfinder/verifier/src/verification/types"
)

// TextEvaluator scores free text with the text rules and a provider review.
// A triggered rule scales the provider score down, so it cannot be
// overridden by a confident provider.
type TextEvaluator struct{ deps Deps }

func NewTextEvaluator(deps Deps) *TextEvaluator { return &TextEvaluator{deps: deps} }

func (e *TextEvaluator) Name() string    { return NameText }
func (e *TextEvaluator) Weight() float64 { return 0.30 }

func (e *TextEvaluator) Applies(req types.Request) bool {
	switch req.SubjectType {
	case types.SubjectListing:
		return req.Listing != nil
	default:
		return strings.TrimSpace(req.FreeText()) != ""
	}
}

func (e *TextEvaluator) Evaluate(ctx context.Context, req types.Request) types.CheckResult {
	start := time.Now()
	text := req.FreeText()
	report := e.deps.Rules.CheckText(text)

	res, err := e.deps.Analyzer.Analyze(ctx, analysis.KindText, analysis.Payload{
		Subject: string(req.SubjectType),
		Text:    e.deps.Rules.Sanitize(text),
	})
	if err != nil {
		e.deps.logger().Warn("text analysis failed", zap.String("request_id", req.ID), zap.Error(err))
		return failed(start, err, report.Findings)
	}

	findings := append(report.Findings, providerFindings(res, "text")...)
	return scored(start, res.Score*report.Score, findings)
}
