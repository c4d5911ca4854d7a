// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry manages command registration and lookup.
// It is thread-safe for concurrent access.
//
// Names and aliases are case-insensitive. Registering a name that already
// exists shadows the earlier declaration without removing it; removing the
// newer owner's commands exposes the older one again.
type Registry struct {
	mu      sync.RWMutex
	entries map[string][]*Declaration
}

// NewRegistry creates a new command registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string][]*Declaration),
	}
}

// Register adds declarations. All of them are validated before any is
// added.
func (r *Registry) Register(decls ...Declaration) error {
	for i := range decls {
		if err := decls[i].Validate(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range decls {
		d := decls[i]
		if d.Owner == "" {
			d.Owner = OwnerCore
		}
		for _, key := range keysFor(&d) {
			if prev := r.entries[key]; len(prev) > 0 {
				slog.Debug("command shadowed",
					"command", key,
					"previous_owner", prev[len(prev)-1].Owner,
					"new_owner", d.Owner)
			}
			r.entries[key] = append(r.entries[key], &d)
		}
	}
	return nil
}

// RegisterProvider registers every command a provider exposes under owner.
func (r *Registry) RegisterProvider(owner string, p Provider) error {
	decls := p.Commands()
	for i := range decls {
		decls[i].Owner = owner
	}
	return r.Register(decls...)
}

// Unregister removes every declaration owned by owner and returns how many
// were removed.
func (r *Registry) Unregister(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make(map[*Declaration]struct{})
	for key, list := range r.entries {
		kept := list[:0]
		for _, d := range list {
			if d.Owner == owner {
				removed[d] = struct{}{}
				continue
			}
			kept = append(kept, d)
		}
		if len(kept) == 0 {
			delete(r.entries, key)
		} else {
			r.entries[key] = kept
		}
	}
	return len(removed)
}

// Get returns the most recently registered declaration for name or alias.
func (r *Registry) Get(name string) (*Declaration, bool) {
	key := foldName(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.entries[key]
	if len(list) == 0 {
		return nil, false
	}
	return list[len(list)-1], true
}

// All returns the visible declaration for every primary name, sorted by
// name.
func (r *Registry) All() []*Declaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Declaration, 0, len(r.entries))
	for key, list := range r.entries {
		d := list[len(list)-1]
		if foldName(d.Name) != key {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Owned returns the declarations registered by owner.
func (r *Registry) Owned(owner string) []*Declaration {
	var out []*Declaration
	for _, d := range r.All() {
		if d.Owner == owner {
			out = append(out, d)
		}
	}
	return out
}

func keysFor(d *Declaration) []string {
	keys := []string{foldName(d.Name)}
	seen := map[string]struct{}{keys[0]: {}}
	for _, alias := range d.Aliases {
		k := foldName(alias)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}
