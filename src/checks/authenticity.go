package checks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/realfinder/verifier/src/ai/core"
	"github.com/realfinder/verifier/src/analysis"
	"github.com/realfinder/verifier/src/media"
	"github.com/realfinder/verifier/src/verification/types"
)

// duplicatePenalty is subtracted per repeated image.
const duplicatePenalty = 0.15

type fetched struct {
	items    []*media.Item
	index    []int
	findings []types.Finding
	lastErr  error
}

// fetchAll downloads refs concurrently and keeps the successful items in
// input order.
func fetchAll(ctx context.Context, deps Deps, label string, refs []types.MediaRef) fetched {
	items := make([]*media.Item, len(refs))
	errs := make([]error, len(refs))
	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref types.MediaRef) {
			defer wg.Done()
			items[i], errs[i] = deps.fetch(ctx, ref)
		}(i, ref)
	}
	wg.Wait()

	var out fetched
	for i := range refs {
		if errs[i] != nil {
			out.lastErr = errs[i]
			out.findings = append(out.findings, mediaFinding(label, i, errs[i]))
			continue
		}
		out.items = append(out.items, items[i])
		out.index = append(out.index, i)
	}
	return out
}

func (f fetched) parts() []core.Part {
	parts := make([]core.Part, 0, len(f.items))
	for _, it := range f.items {
		parts = append(parts, it.Part())
	}
	return parts
}

// MediaAuthenticityEvaluator looks for reused photos by content fingerprint
// and asks the provider whether the set is genuine.
type MediaAuthenticityEvaluator struct{ deps Deps }

func NewMediaAuthenticityEvaluator(deps Deps) *MediaAuthenticityEvaluator {
	return &MediaAuthenticityEvaluator{deps: deps}
}

func (e *MediaAuthenticityEvaluator) Name() string    { return NameMediaAuthenticity }
func (e *MediaAuthenticityEvaluator) Weight() float64 { return 0.10 }

func (e *MediaAuthenticityEvaluator) Applies(req types.Request) bool {
	return req.SubjectType != types.SubjectBroker && len(req.Images()) > 0
}

func (e *MediaAuthenticityEvaluator) Evaluate(ctx context.Context, req types.Request) types.CheckResult {
	start := time.Now()
	got := fetchAll(ctx, e.deps, "image", withKind(req.Images(), types.MediaImage))
	if len(got.items) == 0 {
		return failed(start, orNoMedia(got.lastErr), got.findings)
	}

	ruleScore := 1.0
	findings := got.findings
	seen := map[string]int{}
	for n, item := range got.items {
		idx := got.index[n]
		if first, dup := seen[item.Fingerprint]; dup {
			ruleScore -= duplicatePenalty
			findings = append(findings, types.Finding{
				Code:     "media.duplicate",
				Category: "media",
				Severity: types.SeverityMedium,
				Message:  fmt.Sprintf("image %d repeats image %d", idx+1, first+1),
				Source:   types.SourceRule,
			})
			continue
		}
		seen[item.Fingerprint] = idx
	}
	ruleScore = types.ClampScore(ruleScore)

	res, err := e.deps.Analyzer.Analyze(ctx, analysis.KindMediaAuthenticity, analysis.Payload{
		Subject: string(req.SubjectType),
		Fields:  declaredFields(req),
		Media:   got.parts(),
	})
	if err != nil {
		e.deps.logger().Warn("media authenticity analysis failed", zap.String("request_id", req.ID), zap.Error(err))
		return failed(start, err, findings)
	}
	findings = append(findings, providerFindings(res, "media")...)
	return scored(start, res.Score*ruleScore, findings)
}

// ConflictEvaluator compares the declared identity with supporting documents.
type ConflictEvaluator struct{ deps Deps }

func NewConflictEvaluator(deps Deps) *ConflictEvaluator { return &ConflictEvaluator{deps: deps} }

func (e *ConflictEvaluator) Name() string    { return NameConflictDetection }
func (e *ConflictEvaluator) Weight() float64 { return 0.25 }

func (e *ConflictEvaluator) Applies(req types.Request) bool {
	return req.SubjectType != types.SubjectListing && len(req.Documents()) > 0
}

func (e *ConflictEvaluator) Evaluate(ctx context.Context, req types.Request) types.CheckResult {
	start := time.Now()
	got := fetchAll(ctx, e.deps, "document", withKind(req.Documents(), types.MediaDocument))
	if len(got.items) == 0 {
		return failed(start, orNoMedia(got.lastErr), got.findings)
	}

	res, err := e.deps.Analyzer.Analyze(ctx, analysis.KindConflict, analysis.Payload{
		Subject: string(req.SubjectType),
		Fields:  declaredFields(req),
		Media:   got.parts(),
	})
	if err != nil {
		e.deps.logger().Warn("conflict analysis failed", zap.String("request_id", req.ID), zap.Error(err))
		return failed(start, err, got.findings)
	}
	findings := append(got.findings, providerFindings(res, "conflict")...)
	return scored(start, res.Score, findings)
}

func orNoMedia(err error) error {
	if err == nil {
		return errors.New("no media to analyze")
	}
	return err
}
