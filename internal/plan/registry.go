package plan

import (
	"fmt"
	"sort"
	"sync"
)

// Registry provides in-memory access to plans
type Registry struct {
	mu     sync.RWMutex
	plans  map[string]*Plan
	loader *Loader
}

// NewRegistry creates a registry seeded with the built-in plans and any file overrides
func NewRegistry(loader *Loader) (*Registry, error) {
	r := &Registry{
		plans:  make(map[string]*Plan),
		loader: loader,
	}

	if err := r.Reload(); err != nil {
		return nil, fmt.Errorf("initial plan load: %w", err)
	}

	return r, nil
}

// DefaultRegistry returns a registry holding only the built-in plans
func DefaultRegistry() *Registry {
	r, _ := NewRegistry(NewLoader(""))
	return r
}

// Reload rebuilds the plan table from the defaults plus the loader's file
func (r *Registry) Reload() error {
	plans := make(map[string]*Plan)
	for _, p := range Defaults() {
		plans[p.ID] = p
	}

	if r.loader != nil {
		overrides, err := r.loader.LoadAll()
		if err != nil {
			return err
		}
		for _, p := range overrides {
			plans[p.ID] = p
		}
	}

	r.mu.Lock()
	r.plans = plans
	r.mu.Unlock()

	return nil
}

// Get returns the plan for an ID, falling back to the starter plan
func (r *Registry) Get(planID string) *Plan {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.plans[planID]; ok {
		return p
	}
	return r.plans[DefaultPlanID]
}

// List returns all plans ordered by monthly price
func (r *Registry) List() []*Plan {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plans := make([]*Plan, 0, len(r.plans))
	for _, p := range r.plans {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].PriceMonthly == plans[j].PriceMonthly {
			return plans[i].ID < plans[j].ID
		}
		return plans[i].PriceMonthly < plans[j].PriceMonthly
	})

	return plans
}

// Count returns the number of plans
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plans)
}
