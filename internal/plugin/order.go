// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import "sort"

// OrderResult is the outcome of dependency ordering.
type OrderResult struct {
	// Start lists the plugins that can start, dependencies first.
	Start []*Descriptor
	// Failed maps plugin ids excluded from Start to the reason.
	Failed map[string]error
}

// Stop returns the stop order, the exact reverse of Start.
func (r OrderResult) Stop() []*Descriptor {
	out := make([]*Descriptor, len(r.Start))
	for i, d := range r.Start {
		out[len(out)-1-i] = d
	}
	return out
}

// Order sorts descs so that every plugin follows its dependencies.
func Order(descs []*Descriptor) OrderResult {
	return OrderWith(descs, nil)
}

// OrderWith is Order where dependencies outside descs count as satisfied
// when available reports them so.
//
// Every plugin starts at priority 0. Each dependency edge raises the
// dependent above its dependency, and raises propagate until no edge is
// violated. Plugins are then sorted by ascending priority; equal
// priorities keep their input order. Plugins on a cycle fail with
// DEPENDENCY_CYCLE and plugins whose dependencies are missing or failed
// fail with MISSING_DEPENDENCY. Ids in descs must be unique; later
// duplicates are ignored.
func OrderWith(descs []*Descriptor, available func(id string) bool) OrderResult {
	var nodes []*Descriptor
	index := make(map[string]int, len(descs))
	for _, d := range descs {
		if _, dup := index[d.ID]; dup {
			continue
		}
		index[d.ID] = len(nodes)
		nodes = append(nodes, d)
	}

	failed := make(map[string]error)
	findCycles(nodes, index, failed)

	for changed := true; changed; {
		changed = false
		for _, d := range nodes {
			if _, bad := failed[d.ID]; bad {
				continue
			}
			if dep, ok := unmet(d, index, failed, available); ok {
				failed[d.ID] = ErrMissingDependency(d.ID, dep)
				changed = true
			}
		}
	}

	prio := make([]int, len(nodes))
	for changed := true; changed; {
		changed = false
		for i, d := range nodes {
			if _, bad := failed[d.ID]; bad {
				continue
			}
			for _, dep := range d.Dependencies {
				j, ok := index[dep]
				if ok && prio[i] <= prio[j] {
					prio[i] = prio[j] + 1
					changed = true
				}
			}
		}
	}

	order := make([]int, 0, len(nodes))
	for i, d := range nodes {
		if _, bad := failed[d.ID]; !bad {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return prio[order[a]] < prio[order[b]] })

	res := OrderResult{Start: make([]*Descriptor, len(order)), Failed: failed}
	for k, i := range order {
		res.Start[k] = nodes[i]
	}
	return res
}

// unmet returns the first dependency of d that is neither a healthy
// member of the batch nor available outside it.
func unmet(d *Descriptor, index map[string]int, failed map[string]error, available func(string) bool) (string, bool) {
	for _, dep := range d.Dependencies {
		if _, inBatch := index[dep]; inBatch {
			if _, bad := failed[dep]; bad {
				return dep, true
			}
			continue
		}
		if available == nil || !available(dep) {
			return dep, true
		}
	}
	return "", false
}

// findCycles marks every plugin that lies on a dependency cycle.
func findCycles(nodes []*Descriptor, index map[string]int, failed map[string]error) {
	const (
		white = iota
		grey
		black
	)
	color := make([]int, len(nodes))
	var stack []int

	var visit func(i int)
	visit = func(i int) {
		color[i] = grey
		stack = append(stack, i)
		for _, dep := range nodes[i].Dependencies {
			j, ok := index[dep]
			if !ok {
				continue
			}
			switch color[j] {
			case white:
				visit(j)
			case grey:
				pos := len(stack) - 1
				for stack[pos] != j {
					pos--
				}
				cycle := make([]string, 0, len(stack)-pos+1)
				for _, k := range stack[pos:] {
					cycle = append(cycle, nodes[k].ID)
				}
				cycle = append(cycle, nodes[j].ID)
				for _, k := range stack[pos:] {
					if _, seen := failed[nodes[k].ID]; !seen {
						failed[nodes[k].ID] = ErrDependencyCycle(nodes[k].ID, cycle)
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[i] = black
	}

	for i := range nodes {
		if color[i] == white {
			visit(i)
		}
	}
}
