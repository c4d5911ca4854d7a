// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// MaxExpansionDepth bounds alias expansion.
const MaxExpansionDepth = 10

// CodeAliasCycle marks an alias that would expand into itself.
const CodeAliasCycle = "ALIAS_CYCLE"

// Aliases expands the first word of a line through per-actor and
// server-wide aliases. Actor aliases shadow server aliases; registered
// command names shadow both. Safe for concurrent use.
type Aliases struct {
	mu     sync.RWMutex
	actors map[string]map[string]string
	system map[string]string
}

// NewAliases creates an empty alias table.
func NewAliases() *Aliases {
	return &Aliases{
		actors: make(map[string]map[string]string),
		system: make(map[string]string),
	}
}

// LoadSystem merges server-wide aliases, typically from configuration.
// Entries that would create a cycle are skipped and returned.
func (a *Aliases) LoadSystem(aliases map[string]string) []string {
	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var rejected []string
	for _, k := range keys {
		if err := a.SetSystem(k, aliases[k]); err != nil {
			rejected = append(rejected, k)
		}
	}
	return rejected
}

// SetSystem adds or replaces a server-wide alias.
func (a *Aliases) SetSystem(alias, expansion string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.set(a.system, "", alias, expansion)
}

// Set adds or replaces an alias for one actor.
func (a *Aliases) Set(actor, alias, expansion string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := foldName(actor)
	table := a.actors[key]
	if table == nil {
		table = make(map[string]string)
		a.actors[key] = table
	}
	return a.set(table, key, alias, expansion)
}

func (a *Aliases) set(table map[string]string, actor, alias, expansion string) error {
	if err := ValidateAliasName(alias); err != nil {
		return err
	}
	alias = foldName(alias)
	old, existed := table[alias]
	table[alias] = expansion
	if a.cyclicLocked(actor, alias) {
		if existed {
			table[alias] = old
		} else {
			delete(table, alias)
		}
		return oops.Code(CodeAliasCycle).
			With("alias", alias).
			With("expansion", expansion).
			Errorf("alias %s would expand into itself", alias)
	}
	return nil
}

// Remove drops an actor alias. It reports whether one existed.
func (a *Aliases) Remove(actor, alias string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	table := a.actors[foldName(actor)]
	alias = foldName(alias)
	if _, ok := table[alias]; !ok {
		return false
	}
	delete(table, alias)
	return true
}

// RemoveSystem drops a server-wide alias.
func (a *Aliases) RemoveSystem(alias string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.system, foldName(alias))
}

// Clear drops every alias of actor.
func (a *Aliases) Clear(actor string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.actors, foldName(actor))
}

// For returns a copy of the aliases visible to actor, actor aliases
// overriding server-wide ones.
func (a *Aliases) For(actor string) map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := maps.Clone(a.system)
	maps.Copy(out, a.actors[foldName(actor)])
	return out
}

// Resolve expands the first word of line for actor. A first word naming a
// registered command is never expanded. The second result reports whether
// an alias was applied.
func (a *Aliases) Resolve(actor, line string, registry *Registry) (string, bool) {
	first, rest := splitFirstWord(line)
	if first == "" {
		return line, false
	}
	if registry != nil {
		if _, ok := registry.Get(first); ok {
			return line, false
		}
	}

	a.mu.RLock()
	expanded, ok := a.expandLocked(foldName(actor), first)
	a.mu.RUnlock()
	if !ok {
		return line, false
	}
	if rest != "" {
		expanded += " " + rest
	}
	return expanded, true
}

// expandLocked follows aliases from word until a non-alias first word or
// the depth limit.
func (a *Aliases) expandLocked(actor, word string) (string, bool) {
	var tail []string
	cur := word
	expanded := false
	for range MaxExpansionDepth {
		next, ok := a.lookupLocked(actor, cur)
		if !ok {
			break
		}
		expanded = true
		first, rest := splitFirstWord(next)
		if rest != "" {
			tail = append([]string{rest}, tail...)
		}
		if first == "" {
			cur = ""
			break
		}
		cur = first
	}
	if !expanded {
		return word, false
	}
	return strings.TrimSpace(strings.Join(append([]string{cur}, tail...), " ")), true
}

func (a *Aliases) lookupLocked(actor, word string) (string, bool) {
	word = foldName(word)
	if v, ok := a.actors[actor][word]; ok {
		return v, true
	}
	v, ok := a.system[word]
	return v, ok
}

// cyclicLocked reports whether expanding alias revisits a word.
func (a *Aliases) cyclicLocked(actor, alias string) bool {
	seen := map[string]bool{alias: true}
	cur := alias
	for range MaxExpansionDepth {
		next, ok := a.lookupLocked(actor, cur)
		if !ok {
			return false
		}
		first, _ := splitFirstWord(next)
		if first == "" {
			return false
		}
		cur = foldName(first)
		if seen[cur] {
			return true
		}
		seen[cur] = true
	}
	return true
}

func splitFirstWord(input string) (first, rest string) {
	input = strings.TrimLeft(input, " \t")
	if input == "" {
		return "", ""
	}
	idx := strings.IndexAny(input, " \t")
	if idx == -1 {
		return input, ""
	}
	return input[:idx], strings.TrimLeft(input[idx+1:], " \t")
}
