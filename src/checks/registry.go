package checks

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/realfinder/verifier/src/verification/types"
)

// ErrUnknownCheck is returned when a caller asks for an unregistered check.
var ErrUnknownCheck = errors.New("checks: unknown check")

// Descriptor captures static metadata about a registered evaluator.
type Descriptor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Registry holds evaluators in registration order.
type Registry struct {
	mu         sync.RWMutex
	evaluators map[string]Evaluator
	order      []string
}

// NewRegistry returns an empty registry ready for registration.
func NewRegistry() *Registry {
	return &Registry{evaluators: map[string]Evaluator{}}
}

// NewDefaultRegistry registers the eight standard evaluators.
func NewDefaultRegistry(deps Deps) *Registry {
	r := NewRegistry()
	for _, e := range []Evaluator{
		NewTextEvaluator(deps),
		NewImageEvaluator(deps),
		NewDocumentEvaluator(deps),
		NewFormatEvaluator(deps),
		NewFraudEvaluator(deps),
		NewConsistencyEvaluator(deps),
		NewMediaAuthenticityEvaluator(deps),
		NewConflictEvaluator(deps),
	} {
		// names are distinct constants
		_ = r.Add(e)
	}
	return r
}

// Add registers an evaluator under its name.
func (r *Registry) Add(e Evaluator) error {
	if e == nil {
		return fmt.Errorf("checks.Registry: nil evaluator provided")
	}
	name := normalizeKey(e.Name())
	if name == "" {
		return fmt.Errorf("checks.Registry: evaluator missing name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.evaluators[name]; exists {
		return fmt.Errorf("checks.Registry: duplicate evaluator %q", name)
	}
	r.evaluators[name] = e
	r.order = append(r.order, name)
	return nil
}

// Get fetches a registered evaluator by name.
func (r *Registry) Get(name string) (Evaluator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.evaluators[normalizeKey(name)]
	if e == nil {
		return nil, ErrUnknownCheck
	}
	return e, nil
}

// Len is the number of registered evaluators.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Applicable returns the evaluators that apply to req, in registration order.
func (r *Registry) Applicable(req types.Request) []Evaluator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Evaluator, 0, len(r.order))
	for _, name := range r.order {
		if e := r.evaluators[name]; e.Applies(req) {
			out = append(out, e)
		}
	}
	return out
}

// Weights maps every registered check to its weight.
func (r *Registry) Weights() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]float64, len(r.order))
	for _, name := range r.order {
		e := r.evaluators[name]
		out[e.Name()] = e.Weight()
	}
	return out
}

// Describe returns metadata for all registered evaluators.
func (r *Registry) Describe() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		e := r.evaluators[name]
		out = append(out, Descriptor{Name: e.Name(), Weight: e.Weight()})
	}
	return out
}

func normalizeKey(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}
