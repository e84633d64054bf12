// Package strategy provides the named catalogue of signal strategies that can
// drive a simulation
package strategy

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/wonny/alphalab/internal/backtest"
)

// ErrUnknownStrategy is returned by Registry.New for an unregistered name
var ErrUnknownStrategy = errors.New("unknown strategy")

// Params carries numeric strategy parameters by name
type Params map[string]float64

// Get returns params[key], or def when the key is absent
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Int returns params[key] truncated to int, or def when the key is absent
func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok {
		return int(v)
	}
	return def
}

// Factory builds a fresh strategy instance for one simulation
type Factory func(params Params) (backtest.Strategy, error)

// Registry maps strategy names to factories
// ⭐ SSOT: 전략 이름 → 생성자 매핑은 여기서만
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Default returns a registry with every builtin strategy registered
func Default() *Registry {
	r := NewRegistry()
	r.MustRegister(EqualWeightName, NewEqualWeight)
	r.MustRegister(MomentumName, NewMomentum)
	r.MustRegister(MeanReversionName, NewMeanReversion)
	return r
}

// Register adds a factory under name
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return errors.New("strategy name is empty")
	}
	if f == nil {
		return fmt.Errorf("strategy %s: nil factory", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("strategy %s already registered", name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister is Register that panics on error
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// New builds the strategy registered under name
func (r *Registry) New(name string, params Params) (backtest.Strategy, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}

	s, err := f(params)
	if err != nil {
		return nil, fmt.Errorf("build strategy %s: %w", name, err)
	}
	return s, nil
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns every registered name, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
