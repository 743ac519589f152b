// Package analysis wraps model providers with the call discipline every
// evaluator relies on: per-attempt timeout, bounded retry, a process-wide
// admission gate, quota pacing and an optional result cache.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OneOfOne/xxhash"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/realfinder/verifier/src/ai/core"
	"github.com/realfinder/verifier/src/logging"
	"github.com/realfinder/verifier/src/webclient"
)

// Analyzer is the contract evaluators depend on.
type Analyzer interface {
	Analyze(ctx context.Context, kind Kind, p Payload) (*Result, error)
}

// Cache stores serialized results. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config tunes an Adapter. Zero values fall back to defaults.
type Config struct {
	Timeout           time.Duration
	Retry             webclient.Policy
	RequestsPerMinute int
	CacheTTL          time.Duration
	Model             string
	Temperature       float64
}

// DefaultConfig returns the stock call discipline.
func DefaultConfig() Config {
	return Config{
		Timeout:  20 * time.Second,
		Retry:    webclient.Policy{Attempts: 3, InitialDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second},
		CacheTTL: 24 * time.Hour,
	}
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithCache enables result caching.
func WithCache(c Cache) Option {
	return func(a *Adapter) { a.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) { a.log = logging.OrNop(l) }
}

// Adapter implements Analyzer on top of a core.Client.
type Adapter struct {
	client  core.Client
	gate    *Gate
	limiter *rate.Limiter
	cache   Cache
	cfg     Config
	log     *zap.Logger
}

// New builds an Adapter. gate is shared across adapters; a nil gate admits
// one call at a time.
func New(client core.Client, gate *Gate, cfg Config, opts ...Option) *Adapter {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry.Attempts = def.Retry.Attempts
	}
	if cfg.Retry.InitialDelay <= 0 {
		cfg.Retry.InitialDelay = def.Retry.InitialDelay
	}
	if cfg.Retry.MaxDelay <= 0 {
		cfg.Retry.MaxDelay = def.Retry.MaxDelay
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if gate == nil {
		gate = NewGate(1)
	}

	a := &Adapter{client: client, gate: gate, cfg: cfg, log: zap.NewNop()}
	if cfg.RequestsPerMinute > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs one analysis of kind over p.
func (a *Adapter) Analyze(ctx context.Context, kind Kind, p Payload) (*Result, error) {
	prompt, err := BuildPrompt(kind, p)
	if err != nil {
		return nil, &ProviderError{Kind: kind, Class: ErrProviderPermanent, Err: err}
	}

	key := cacheKey(kind, prompt, p.Media)
	if res, ok := a.cached(ctx, key); ok {
		return res, nil
	}

	parts := make([]core.Part, 0, len(p.Media)+1)
	parts = append(parts, core.TextPart(prompt))
	parts = append(parts, p.Media...)
	opts := core.Options{
		Model:        a.cfg.Model,
		Temperature:  a.cfg.Temperature,
		SystemPrompt: systemPrompt,
		JSONResponse: true,
	}

	var res *Result
	attempts, err := webclient.Retry(ctx, a.cfg.Retry, retryable, func(ctx context.Context, attempt int) error {
		out, err := a.attempt(ctx, parts, opts)
		if err != nil {
			a.log.Debug("analysis attempt failed",
				zap.String("kind", string(kind)),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		res = out
		return nil
	})
	if err != nil {
		class, status := classify(err)
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.DeadlineExceeded) && class == ErrProviderTransient {
			class = ErrTimeout
		}
		a.log.Warn("analysis failed",
			zap.String("kind", string(kind)),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return nil, &ProviderError{Kind: kind, Attempts: attempts, StatusCode: status, Class: class, Err: err}
	}

	a.store(ctx, key, res)
	return res, nil
}

// attempt is one paced, gated, time-boxed provider call. The gate slot is
// released before the retry loop sleeps.
func (a *Adapter) attempt(ctx context.Context, parts []core.Part, opts core.Options) (*Result, error) {
	if err := a.pace(ctx); err != nil {
		return nil, err
	}

	release, err := a.gate.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	raw, err := a.client.Generate(callCtx, parts, opts)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return nil, err
	}
	return ParseReply(raw)
}

func (a *Adapter) pace(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}
	r := a.limiter.Reserve()
	if !r.OK() {
		return errQuotaWait
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
		r.Cancel()
		return errQuotaWait
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (a *Adapter) cached(ctx context.Context, key string) (*Result, bool) {
	if a.cache == nil {
		return nil, false
	}
	raw, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.log.Warn("analysis cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		a.log.Warn("analysis cache entry unreadable", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	res.Cached = true
	return &res, true
}

func (a *Adapter) store(ctx context.Context, key string, res *Result) {
	if a.cache == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, raw, a.cfg.CacheTTL); err != nil {
		a.log.Warn("analysis cache write failed", zap.Error(err))
	}
}

func cacheKey(kind Kind, prompt string, media []core.Part) string {
	h := xxhash.New64()
	h.Write([]byte(string(kind)))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	for _, m := range media {
		h.Write([]byte{0})
		h.Write([]byte(m.MIMEType))
		h.Write(m.Data)
		h.Write([]byte(m.Text))
	}
	return fmt.Sprintf("verifier:analysis:%s:%016x", kind, h.Sum64())
}
