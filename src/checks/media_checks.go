package checks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/realfinder/verifier/src/ai/core"
	"github.com/realfinder/verifier/src/analysis"
	"github.com/realfinder/verifier/src/verification/types"
)

type itemOutcome struct {
	result *analysis.Result
	err    error
}

// analyzeEach fetches and analyzes every ref concurrently. Outcomes keep the
// input order.
func analyzeEach(ctx context.Context, deps Deps, kind analysis.Kind, subject string, refs []types.MediaRef) []itemOutcome {
	out := make([]itemOutcome, len(refs))
	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref types.MediaRef) {
			defer wg.Done()
			item, err := deps.fetch(ctx, ref)
			if err != nil {
				out[i] = itemOutcome{err: err}
				return
			}
			res, err := deps.Analyzer.Analyze(ctx, kind, analysis.Payload{
				Subject: subject,
				Text:    ref.Caption,
				Media:   []core.Part{item.Part()},
			})
			out[i] = itemOutcome{result: res, err: err}
		}(i, ref)
	}
	wg.Wait()
	return out
}

// meanOutcome averages successful items. Failed items become findings; if
// every item failed the last error is returned.
func meanOutcome(label, category string, outcomes []itemOutcome) (float64, []types.Finding, error) {
	var (
		sum      float64
		ok       int
		findings []types.Finding
		lastErr  error
	)
	for i, o := range outcomes {
		if o.err != nil {
			lastErr = o.err
			findings = append(findings, mediaFinding(label, i, o.err))
			continue
		}
		ok++
		sum += types.ClampScore(o.result.Score)
		for _, f := range providerFindings(o.result, category) {
			f.Message = fmt.Sprintf("%s %d: %s", label, i+1, f.Message)
			findings = append(findings, f)
		}
	}
	if ok == 0 {
		return 0, findings, orNoMedia(lastErr)
	}
	return sum / float64(ok), findings, nil
}

// ImageEvaluator scores every image of the subject and averages them.
type ImageEvaluator struct{ deps Deps }

func NewImageEvaluator(deps Deps) *ImageEvaluator { return &ImageEvaluator{deps: deps} }

func (e *ImageEvaluator) Name() string    { return NameImage }
func (e *ImageEvaluator) Weight() float64 { return 0.25 }

func (e *ImageEvaluator) Applies(req types.Request) bool { return len(req.Images()) > 0 }

func (e *ImageEvaluator) Evaluate(ctx context.Context, req types.Request) types.CheckResult {
	start := time.Now()
	outcomes := analyzeEach(ctx, e.deps, analysis.KindImage, string(req.SubjectType), withKind(req.Images(), types.MediaImage))
	score, findings, err := meanOutcome("image", "image", outcomes)
	if err != nil {
		e.deps.logger().Warn("image analysis failed", zap.String("request_id", req.ID), zap.Error(err))
		return failed(start, err, findings)
	}
	return scored(start, score, findings)
}

// DocumentEvaluator reads every supporting document and averages the scores.
// Extracted fields are reported as informational findings.
type DocumentEvaluator struct{ deps Deps }

func NewDocumentEvaluator(deps Deps) *DocumentEvaluator { return &DocumentEvaluator{deps: deps} }

func (e *DocumentEvaluator) Name() string    { return NameDocument }
func (e *DocumentEvaluator) Weight() float64 { return 0.35 }

func (e *DocumentEvaluator) Applies(req types.Request) bool { return len(req.Documents()) > 0 }

func (e *DocumentEvaluator) Evaluate(ctx context.Context, req types.Request) types.CheckResult {
	start := time.Now()
	outcomes := analyzeEach(ctx, e.deps, analysis.KindDocument, string(req.SubjectType), withKind(req.Documents(), types.MediaDocument))
	score, findings, err := meanOutcome("document", "document", outcomes)
	if err != nil {
		e.deps.logger().Warn("document analysis failed", zap.String("request_id", req.ID), zap.Error(err))
		return failed(start, err, findings)
	}
	for i, o := range outcomes {
		if o.err != nil || len(o.result.Extracted) == 0 {
			continue
		}
		findings = append(findings, types.Finding{
			Code:     "document.extracted",
			Category: "document",
			Severity: types.SeverityInfo,
			Message:  fmt.Sprintf("document %d: %s", i+1, joinFields(o.result.Extracted)),
			Source:   types.SourceProvider,
		})
	}
	return scored(start, score, findings)
}

// withKind fills in a missing kind so the fetcher applies the right MIME policy.
func withKind(refs []types.MediaRef, kind types.MediaKind) []types.MediaRef {
	out := make([]types.MediaRef, len(refs))
	for i, r := range refs {
		if r.Kind == "" {
			r.Kind = kind
		}
		out[i] = r
	}
	return out
}
