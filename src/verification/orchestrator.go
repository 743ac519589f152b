// Package verification runs every applicable check against a request and
// turns the results into a decision.
package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/realfinder/verifier/src/checks"
	"github.com/realfinder/verifier/src/decision"
	"github.com/realfinder/verifier/src/verification/types"
)

// DefaultTimeout bounds one verification request.
const DefaultTimeout = 45 * time.Second

// Publisher receives every decision after it is made.
type Publisher interface {
	Publish(ctx context.Context, d *types.Decision) error
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithPublisher attaches a decision publisher.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithThresholds overrides the decision thresholds.
func WithThresholds(t decision.Thresholds) Option {
	return func(o *Orchestrator) { o.thresholds = t }
}

// Orchestrator is safe for concurrent use; it holds no per-request state.
type Orchestrator struct {
	registry   *checks.Registry
	validator  *Validator
	thresholds decision.Thresholds
	timeout    time.Duration
	publisher  Publisher
	log        *zap.Logger

	newID func() (uuid.UUID, error)
	now   func() time.Time
}

// New builds an Orchestrator over registry.
func New(registry *checks.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:   registry,
		validator:  NewValidator(),
		thresholds: decision.DefaultThresholds(),
		timeout:    DefaultTimeout,
		log:        zap.NewNop(),
		newID:      uuid.NewRandom,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Validate checks req without running any evaluator.
func (o *Orchestrator) Validate(req types.Request) error {
	return o.validator.Validate(req)
}

type settled struct {
	name   string
	result types.CheckResult
}

// Verify validates req, runs the applicable checks concurrently and combines
// their results. It returns *ValidationError for unusable requests and
// *InternalFault when the service cannot produce a decision; every other
// failure is folded into the decision.
func (o *Orchestrator) Verify(ctx context.Context, req types.Request) (*types.Decision, error) {
	start := o.now()
	if err := o.Validate(req); err != nil {
		return nil, err
	}
	if o.registry == nil || o.registry.Len() == 0 {
		return nil, &InternalFault{Op: "select checks", Err: errors.New("no evaluators registered")}
	}

	log := o.log.With(zap.String("request_id", req.ID), zap.String("subject_type", string(req.SubjectType)))
	evaluators := o.registry.Applicable(req)
	results := o.run(ctx, req, evaluators, log)

	verdict := o.thresholds.Combine(results, o.registry.Weights())

	id, err := o.newID()
	if err != nil {
		return nil, &InternalFault{Op: "allocate decision id", Err: err}
	}
	d := &types.Decision{
		ID:            id.String(),
		SubjectType:   req.SubjectType,
		SubjectID:     req.ID,
		Decision:      verdict.Outcome,
		CombinedScore: verdict.Score,
		PerCheck:      results,
		Reasons:       verdict.Reasons,
		DecidedAt:     o.now().UTC(),
	}

	log.Info("verification decided",
		zap.String("decision_id", d.ID),
		zap.String("decision", string(d.Decision)),
		zap.Float64("combined_score", d.CombinedScore),
		zap.Int("checks", len(results)),
		zap.Duration("duration", o.now().Sub(start)))

	if o.publisher != nil {
		if err := o.publisher.Publish(ctx, d); err != nil {
			log.Warn("publish decision failed", zap.String("decision_id", d.ID), zap.Error(err))
		}
	}
	return d, nil
}

// run starts one goroutine per evaluator and collects results until all
// settle or the deadline passes. Unsettled checks are recorded as ERROR and
// their context is cancelled on return.
func (o *Orchestrator) run(ctx context.Context, req types.Request, evaluators []checks.Evaluator, log *zap.Logger) map[string]types.CheckResult {
	runCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	runCtx = checks.WithMediaMemo(runCtx)

	started := time.Now()
	ch := make(chan settled, len(evaluators))
	for _, e := range evaluators {
		go func(e checks.Evaluator) {
			begin := time.Now()
			defer func() {
				if r := recover(); r != nil {
					log.Error("check panicked", zap.String("check", e.Name()), zap.Any("panic", r))
					ch <- settled{name: e.Name(), result: systemError("check.panic",
						fmt.Sprintf("check %s panicked: %v", e.Name(), r), time.Since(begin))}
				}
			}()
			ch <- settled{name: e.Name(), result: e.Evaluate(runCtx, req)}
		}(e)
	}

	results := make(map[string]types.CheckResult, len(evaluators))
	for len(results) < len(evaluators) {
		select {
		case s := <-ch:
			results[s.name] = s.result
			log.Debug("check settled",
				zap.String("check", s.name),
				zap.String("status", string(s.result.Status)),
				zap.Float64("score", s.result.ConfidenceScore))
		case <-runCtx.Done():
			drain(ch, results)
			code, msg := "check.timeout", "check did not finish within "+o.timeout.String()
			if !errors.Is(runCtx.Err(), context.DeadlineExceeded) {
				code, msg = "check.cancelled", "request was cancelled before the check finished"
			}
			for _, e := range evaluators {
				if _, ok := results[e.Name()]; !ok {
					log.Warn("check unsettled at deadline", zap.String("check", e.Name()), zap.String("reason", code))
					results[e.Name()] = systemError(code, msg, time.Since(started))
				}
			}
		}
	}
	return results
}

// drain keeps results that were already delivered when the deadline fired.
func drain(ch <-chan settled, results map[string]types.CheckResult) {
	for {
		select {
		case s := <-ch:
			results[s.name] = s.result
		default:
			return
		}
	}
}

func systemError(code, msg string, elapsed time.Duration) types.CheckResult {
	return types.CheckResult{
		Status:          types.StatusError,
		ConfidenceScore: 0,
		Findings: []types.Finding{{
			Code:     code,
			Category: "system",
			Severity: types.SeverityMedium,
			Message:  msg,
			Source:   types.SourceSystem,
		}},
		ExecutionTime: types.Seconds(elapsed),
	}
}
