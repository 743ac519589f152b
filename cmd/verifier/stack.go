package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/realfinder/verifier/src/ai/core"
	_ "github.com/realfinder/verifier/src/ai/providers"
	"github.com/realfinder/verifier/src/analysis"
	"github.com/realfinder/verifier/src/checks"
	"github.com/realfinder/verifier/src/config"
	"github.com/realfinder/verifier/src/data"
	"github.com/realfinder/verifier/src/media"
	"github.com/realfinder/verifier/src/rules"
	"github.com/realfinder/verifier/src/verification"
)

// stack is everything one process shares across requests.
type stack struct {
	orchestrator *verification.Orchestrator
	registry     *checks.Registry
	gate         *analysis.Gate
	closers      []func() error
}

// buildStack wires the provider, adapter, evaluators and orchestrator. Redis
// is optional; without it results are neither cached nor published.
func buildStack(ctx context.Context, cfg config.Config, log *zap.Logger) (*stack, error) {
	client, err := core.NewClient(cfg.AIFactory())
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", cfg.Provider, err)
	}

	rulesCfg, err := rules.LoadConfig(cfg.RulesFile)
	if err != nil {
		return nil, err
	}

	s := &stack{gate: analysis.NewGate(cfg.MaxConcurrentCalls)}
	adapterOpts := []analysis.Option{analysis.WithLogger(log.Named("analysis"))}
	orchOpts := []verification.Option{
		verification.WithTimeout(cfg.RequestTimeout),
		verification.WithLogger(log.Named("verification")),
	}

	if cfg.RedisURL != "" {
		rdb, err := data.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, rdb.Close)
		adapterOpts = append(adapterOpts, analysis.WithCache(data.NewRedisCache(rdb)))
		orchOpts = append(orchOpts, verification.WithPublisher(data.NewStreamPublisher(rdb, cfg.EventsStream)))
	} else {
		log.Info("redis not configured; analysis cache and decision stream disabled")
	}

	adapter := analysis.New(client, s.gate, cfg.Analysis(), adapterOpts...)
	s.registry = checks.NewDefaultRegistry(checks.Deps{
		Analyzer: adapter,
		Rules:    rules.NewChecker(rulesCfg),
		Media:    media.NewFetcher(cfg.Media(), log.Named("media")),
		Logger:   log.Named("checks"),
	})
	s.orchestrator = verification.New(s.registry, orchOpts...)

	log.Info("verification stack ready",
		zap.String("provider", cfg.Provider),
		zap.Int("max_concurrent_calls", s.gate.Size()),
		zap.Int("checks", s.registry.Len()))
	return s, nil
}

// close drains in-flight provider calls before releasing connections.
func (s *stack) close() {
	s.gate.Close()
	for _, c := range s.closers {
		_ = c()
	}
}
