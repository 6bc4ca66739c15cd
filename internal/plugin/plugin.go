// Package plugin defines the reservation provider interface for richeck.
package plugin

import (
	"context"
	"sort"
	"sync"

	"github.com/yairfalse/richeck/pkg/reservation"
)

// Provider supplies reservations and running resources for one family.
type Provider interface {
	// Family returns the resource family this provider covers.
	Family() reservation.Family

	// Reservations returns the currently active reservations.
	// Called once per check; the result is consumed by matching.
	Reservations(ctx context.Context) ([]reservation.Reservation, error)

	// Running returns the currently running resources.
	Running(ctx context.Context) ([]reservation.RunningResource, error)

	// DetailURL returns a console link for the resources, "" when empty.
	DetailURL(resources []reservation.RunningResource) string

	// Equivalence returns the secondary key rule for this family.
	Equivalence() reservation.Equivalence
}

// Registry holds registered providers.
var (
	registry = make(map[reservation.Family]Provider)
	mu       sync.RWMutex
)

// Register adds a provider to the registry, replacing any provider for the
// same family.
func Register(p Provider) {
	mu.Lock()
	defer mu.Unlock()
	registry[p.Family()] = p
}

// Get returns the provider for a family.
func Get(family reservation.Family) (Provider, bool) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := registry[family]
	return p, ok
}

// All returns all registered providers ordered by family name.
func All() []Provider {
	mu.RLock()
	defer mu.RUnlock()
	providers := make([]Provider, 0, len(registry))
	for _, p := range registry {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool {
		return providers[i].Family() < providers[j].Family()
	})
	return providers
}

// Names returns all registered family names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for family := range registry {
		names = append(names, string(family))
	}
	sort.Strings(names)
	return names
}

// Clear removes all providers from the registry. Used for testing.
func Clear() {
	mu.Lock()
	defer mu.Unlock()
	registry = make(map[reservation.Family]Provider)
}
