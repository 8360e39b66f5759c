package source

import (
	"context"
	"fmt"
	"log/slog"

	"ReviewRelay/internal/domain"
	"ReviewRelay/internal/ports"
)

// Strategy fetches the current review list for one location from a concrete
// origin platform (API client, listing scraper, etc.).
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, loc domain.Location) ([]domain.Review, error)
}

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(s Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	r.strategies[s.Name()] = s
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Strategy, error) {
	if s, ok := r.strategies[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("origin strategy %s is not registered", name)
}

// Selector implements ports.ReviewSource by resolving each location's
// configured strategy, falling back to a default when the location does not
// name one.
type Selector struct {
	registry *Registry
	fallback string
	logger   *slog.Logger
}

var _ ports.ReviewSource = (*Selector)(nil)

// NewSelector wires the registry with the default strategy name.
func NewSelector(reg *Registry, fallback string, log *slog.Logger) *Selector {
	return &Selector{registry: reg, fallback: fallback, logger: log}
}

// FetchForLocation resolves the location's strategy and runs it.
func (s *Selector) FetchForLocation(ctx context.Context, loc domain.Location) ([]domain.Review, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("origin registry is not configured")
	}

	name := loc.Source
	if name == "" {
		name = s.fallback
	}

	strategy, err := s.registry.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("location %s: %w", loc.ID, err)
	}

	s.debug("fetch reviews", "location", loc.ID, "strategy", name)
	reviews, err := strategy.Fetch(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("fetch location %s via %s: %w", loc.ID, name, err)
	}

	s.debug("origin returned reviews", "location", loc.ID, "count", len(reviews))
	return reviews, nil
}

func (s *Selector) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
