// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides an in-process simulated engine. It backs the
// standalone server binary and the test suites.
package memory

import (
	"sort"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/pluginhost/internal/native"
)

// MessageFunc observes text delivered to a player.
type MessageFunc func(playerID int, text string)

type record struct {
	props map[string]any
}

// Engine is a simulated native engine. Ids are allocated per category,
// lowest free id first, so destroyed ids are reused.
type Engine struct {
	mu        sync.Mutex
	entities  map[native.Category]map[int]*record
	messages  map[int][]string
	onMessage MessageFunc
}

var _ native.Engine = (*Engine)(nil)

// New creates an empty engine.
func New() *Engine {
	return &Engine{
		entities: make(map[native.Category]map[int]*record),
		messages: make(map[int][]string),
	}
}

// OnMessage installs a callback invoked for every delivered message.
func (e *Engine) OnMessage(fn MessageFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onMessage = fn
}

// IsEntityValid implements native.Oracle.
func (e *Engine) IsEntityValid(category native.Category, id int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.entities[category][id]
	return ok
}

// CreateEntity allocates an id. For players the first argument is the
// name; for vehicles and objects it is the model id, followed by an
// optional position table.
func (e *Engine) CreateEntity(category native.Category, args native.Args) (int, error) {
	props := make(map[string]any)
	switch category {
	case native.CategoryPlayer:
		name := args.String(0)
		if name == "" {
			return 0, oops.Code("INVALID_ARGUMENT").
				With("category", category).
				Errorf("player name is required")
		}
		props["name"] = name
	case native.CategoryVehicle, native.CategoryObject:
		props["model"] = args.Int(0)
		if args.Len() > 1 {
			if pos, kind := args.At(1); kind == native.KindTable {
				props["pos"] = pos
			}
		}
	default:
		return 0, oops.Code("UNKNOWN_CATEGORY").With("category", category).Errorf("unknown category")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	byID := e.entities[category]
	if byID == nil {
		byID = make(map[int]*record)
		e.entities[category] = byID
	}
	id := 0
	for {
		if _, taken := byID[id]; !taken {
			break
		}
		id++
	}
	byID[id] = &record{props: props}
	return id, nil
}

// DestroyEntity implements native.Engine.
func (e *Engine) DestroyEntity(category native.Category, id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.entities[category][id]; !ok {
		return notFound(category, id)
	}
	delete(e.entities[category], id)
	if category == native.CategoryPlayer {
		delete(e.messages, id)
	}
	return nil
}

// Property implements native.Engine.
func (e *Engine) Property(category native.Category, id int, key string) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.entities[category][id]
	if !ok {
		return nil, notFound(category, id)
	}
	return rec.props[key], nil
}

// SetProperty implements native.Engine. Values go through the same
// validation as call arguments.
func (e *Engine) SetProperty(category native.Category, id int, key string, value any) error {
	args, err := native.NewArgs(value)
	if err != nil {
		return oops.With("key", key).Wrap(err)
	}
	normalized, _ := args.At(0)

	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.entities[category][id]
	if !ok {
		return notFound(category, id)
	}
	rec.props[key] = normalized
	return nil
}

// Entities implements native.Engine. Ids are returned in ascending order.
func (e *Engine) Entities(category native.Category) []int {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]int, 0, len(e.entities[category]))
	for id := range e.entities[category] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// SendMessage implements native.Engine.
func (e *Engine) SendMessage(playerID int, text string) error {
	e.mu.Lock()
	if _, ok := e.entities[native.CategoryPlayer][playerID]; !ok {
		e.mu.Unlock()
		return notFound(native.CategoryPlayer, playerID)
	}
	e.messages[playerID] = append(e.messages[playerID], text)
	fn := e.onMessage
	e.mu.Unlock()

	if fn != nil {
		fn(playerID, text)
	}
	return nil
}

// Messages returns the messages delivered to a player so far.
func (e *Engine) Messages(playerID int) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.messages[playerID]))
	copy(out, e.messages[playerID])
	return out
}

func notFound(category native.Category, id int) error {
	return oops.Code(native.CodeEntityNotFound).
		With("category", category).
		With("id", id).
		Errorf("%s %d does not exist", category, id)
}
