// Package checks holds the independent evaluators that score one aspect of a
// verification request each.
package checks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/realfinder/verifier/src/analysis"
	"github.com/realfinder/verifier/src/media"
	"github.com/realfinder/verifier/src/rules"
	"github.com/realfinder/verifier/src/verification/types"
)

// Check names as they appear in decisions.
const (
	NameText              = "text"
	NameImage             = "image"
	NameDocument          = "document"
	NameFormatValidation  = "format_validation"
	NameFraud             = "fraud"
	NameConsistency       = "consistency"
	NameMediaAuthenticity = "media_authenticity"
	NameConflictDetection = "conflict_detection"
)

// Evaluator scores one aspect of a request. Evaluate never returns an error:
// failures are reported as a CheckResult with status ERROR.
type Evaluator interface {
	Name() string
	Weight() float64
	Applies(req types.Request) bool
	Evaluate(ctx context.Context, req types.Request) types.CheckResult
}

// MediaFetcher resolves media references.
type MediaFetcher interface {
	Fetch(ctx context.Context, ref types.MediaRef) (*media.Item, error)
}

// Deps are shared by every evaluator.
type Deps struct {
	Analyzer analysis.Analyzer
	Rules    *rules.Checker
	Media    MediaFetcher
	Logger   *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func scored(start time.Time, score float64, findings []types.Finding) types.CheckResult {
	score = types.ClampScore(score)
	return types.CheckResult{
		Status:          types.StatusForScore(score),
		ConfidenceScore: score,
		Findings:        nonNil(findings),
		ExecutionTime:   types.Seconds(time.Since(start)),
	}
}

func failed(start time.Time, err error, findings []types.Finding) types.CheckResult {
	findings = append(findings, failureFinding(err))
	return types.CheckResult{
		Status:          types.StatusError,
		ConfidenceScore: 0,
		Findings:        findings,
		ExecutionTime:   types.Seconds(time.Since(start)),
	}
}

// FailureClass names the failure family of err for findings and logs.
func FailureClass(err error) string {
	switch {
	case errors.Is(err, analysis.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, analysis.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, analysis.ErrProviderTransient):
		return "transient"
	case errors.Is(err, analysis.ErrProviderPermanent):
		return "permanent"
	case errors.Is(err, media.ErrUnsafeURL), errors.Is(err, media.ErrTooLarge),
		errors.Is(err, media.ErrUnsupported), errors.Is(err, media.ErrEmpty):
		return "media"
	default:
		return "unavailable"
	}
}

func failureFinding(err error) types.Finding {
	return types.Finding{
		Code:     "provider." + FailureClass(err),
		Category: "provider",
		Severity: types.SeverityMedium,
		Message:  err.Error(),
		Source:   types.SourceSystem,
	}
}

func mediaFinding(kind string, idx int, err error) types.Finding {
	return types.Finding{
		Code:     kind + ".unavailable",
		Category: "media",
		Severity: types.SeverityLow,
		Message:  fmt.Sprintf("%s %d could not be analyzed: %v", kind, idx+1, err),
		Source:   types.SourceSystem,
	}
}

func providerFindings(res *analysis.Result, category string) []types.Finding {
	if res == nil {
		return nil
	}
	out := make([]types.Finding, 0, len(res.Issues))
	for _, is := range res.Issues {
		code := is.Code
		if code == "" {
			code = category + ".issue"
		}
		out = append(out, types.Finding{
			Code:     code,
			Category: category,
			Severity: types.ParseSeverity(is.Severity),
			Message:  is.Message,
			Source:   types.SourceProvider,
		})
	}
	return out
}

func nonNil(f []types.Finding) []types.Finding {
	if f == nil {
		return []types.Finding{}
	}
	return f
}
