// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package entity caches long-lived wrappers around engine entities.
//
// Each category has its own Pool. Wrappers hold a Handle (category and
// session id) rather than a reference to their pool, and a pool never
// consults the engine while holding its lock.
package entity

import (
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/pluginhost/internal/native"
)

// CodeNoFactory marks a pool miss with no factory to build the wrapper.
const CodeNoFactory = "NO_ENTITY_FACTORY"

// Handle is the non-owning key of an engine entity.
type Handle struct {
	Category native.Category
	ID       int
}

// Entity is implemented by every wrapper type.
type Entity interface {
	Handle() Handle
}

// Factory builds a wrapper for a session id.
type Factory[W Entity] func(id int) W

// Pool maps session ids of one category to wrapper objects.
//
// A cached wrapper stays in the pool until Validate finds its id dead or
// Remove evicts it. Evicted wrappers are not invalidated; a later access to
// the same id builds a new, distinct wrapper.
type Pool[W Entity] struct {
	category native.Category
	oracle   native.Oracle
	factory  Factory[W]

	mu      sync.Mutex
	records map[int]W
}

// NewPool creates a pool. factory is the default used when GetOrCreate is
// called without one.
func NewPool[W Entity](category native.Category, oracle native.Oracle, factory Factory[W]) *Pool[W] {
	return &Pool[W]{
		category: category,
		oracle:   oracle,
		factory:  factory,
		records:  make(map[int]W),
	}
}

// Category returns the category this pool manages.
func (p *Pool[W]) Category() native.Category {
	return p.category
}

// Get returns the cached wrapper for id without creating one.
func (p *Pool[W]) Get(id int) (W, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.records[id]
	return w, ok
}

// GetOrCreate returns the cached wrapper for id, building one with factory
// on a miss. A nil factory selects the pool default; it is an error when
// there is none. The factory runs outside the lock; when two callers race,
// the first insert wins and both receive the same wrapper.
func (p *Pool[W]) GetOrCreate(id int, factory Factory[W]) (W, error) {
	if w, ok := p.Get(id); ok {
		return w, nil
	}

	if factory == nil {
		factory = p.factory
	}
	if factory == nil {
		var zero W
		return zero, oops.Code(CodeNoFactory).
			With("category", p.category).
			With("id", id).
			Errorf("no factory for %s wrappers", p.category)
	}
	created := factory(id)

	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.records[id]; ok {
		return w, nil
	}
	p.records[id] = created
	return created, nil
}

// Validate asks the engine whether w is still live. A dead wrapper is
// evicted, provided it is still the one cached under its id.
func (p *Pool[W]) Validate(w W) bool {
	id := w.Handle().ID
	if p.oracle.IsEntityValid(p.category, id) {
		return true
	}
	p.Remove(w)
	return false
}

// Remove evicts w regardless of liveness. It reports whether w was cached.
func (p *Pool[W]) Remove(w W) bool {
	id := w.Handle().ID

	p.mu.Lock()
	defer p.mu.Unlock()
	cached, ok := p.records[id]
	if !ok || any(cached) != any(w) {
		return false
	}
	delete(p.records, id)
	return true
}

// Evict drops whatever wrapper is cached under id.
func (p *Pool[W]) Evict(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.records, id)
}

// All returns a snapshot of the cached wrappers.
func (p *Pool[W]) All() []W {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]W, 0, len(p.records))
	for _, w := range p.records {
		out = append(out, w)
	}
	return out
}

// Len returns the number of cached wrappers.
func (p *Pool[W]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}
