package checks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/realfinder/verifier/src/analysis"
	"github.com/realfinder/verifier/src/rules"
	"github.com/realfinder/verifier/src/verification/types"
)

// FormatEvaluator checks structured fields with rules only.
type FormatEvaluator struct{ deps Deps }

func NewFormatEvaluator(deps Deps) *FormatEvaluator { return &FormatEvaluator{deps: deps} }

func (e *FormatEvaluator) Name() string                 { return NameFormatValidation }
func (e *FormatEvaluator) Weight() float64              { return 0.15 }
func (e *FormatEvaluator) Applies(_ types.Request) bool { return true }

func (e *FormatEvaluator) Evaluate(_ context.Context, req types.Request) types.CheckResult {
	start := time.Now()
	report := e.deps.Rules.CheckFormat(formatFields(req))
	return scored(start, report.Score, report.Findings)
}

// FraudEvaluator combines attribute red flags with a provider fraud review.
type FraudEvaluator struct{ deps Deps }

func NewFraudEvaluator(deps Deps) *FraudEvaluator { return &FraudEvaluator{deps: deps} }

func (e *FraudEvaluator) Name() string    { return NameFraud }
func (e *FraudEvaluator) Weight() float64 { return 0.20 }

func (e *FraudEvaluator) Applies(req types.Request) bool {
	return (req.SubjectType == types.SubjectListing && req.Listing != nil) ||
		(req.SubjectType == types.SubjectBroker && req.Broker != nil)
}

func (e *FraudEvaluator) Evaluate(ctx context.Context, req types.Request) types.CheckResult {
	start := time.Now()

	report := rules.Report{Score: 1}
	if req.SubjectType == types.SubjectListing {
		report = e.deps.Rules.CheckAttributes(listingAttributes(req.Listing))
	}
	textReport := e.deps.Rules.CheckText(req.FreeText())
	for _, f := range textReport.Findings {
		if f.Code == string(rules.RuleUrgency) {
			report.Findings = append(report.Findings, f)
			report.Score = types.ClampScore(report.Score - e.deps.Rules.Penalty(rules.RuleUrgency))
		}
	}

	res, err := e.deps.Analyzer.Analyze(ctx, analysis.KindFraud, analysis.Payload{
		Subject: string(req.SubjectType),
		Text:    e.deps.Rules.Sanitize(req.FreeText()),
		Fields:  declaredFields(req),
	})
	if err != nil {
		e.deps.logger().Warn("fraud analysis failed", zap.String("request_id", req.ID), zap.Error(err))
		return failed(start, err, report.Findings)
	}
	findings := append(report.Findings, providerFindings(res, "fraud")...)
	return scored(start, res.Score*report.Score, findings)
}

// ConsistencyEvaluator checks that attributes agree with each other.
type ConsistencyEvaluator struct{ deps Deps }

func NewConsistencyEvaluator(deps Deps) *ConsistencyEvaluator {
	return &ConsistencyEvaluator{deps: deps}
}

func (e *ConsistencyEvaluator) Name() string    { return NameConsistency }
func (e *ConsistencyEvaluator) Weight() float64 { return 0.15 }

func (e *ConsistencyEvaluator) Applies(req types.Request) bool {
	return (req.SubjectType == types.SubjectListing && req.Listing != nil) ||
		(req.SubjectType == types.SubjectProperty && req.Property != nil)
}

func (e *ConsistencyEvaluator) Evaluate(ctx context.Context, req types.Request) types.CheckResult {
	start := time.Now()

	report := rules.Report{Score: 1}
	if l := req.Listing; req.SubjectType == types.SubjectListing && l != nil {
		report = e.deps.Rules.PricePerSqftReport(l.Price.InexactFloat64(), l.AreaSqft)
	}

	res, err := e.deps.Analyzer.Analyze(ctx, analysis.KindConsistency, analysis.Payload{
		Subject: string(req.SubjectType),
		Text:    e.deps.Rules.Sanitize(req.FreeText()),
		Fields:  declaredFields(req),
	})
	if err != nil {
		e.deps.logger().Warn("consistency analysis failed", zap.String("request_id", req.ID), zap.Error(err))
		return failed(start, err, report.Findings)
	}
	findings := append(report.Findings, providerFindings(res, "consistency")...)
	return scored(start, res.Score*report.Score, findings)
}
