// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package native defines the boundary between the plugin runtime and the
// game engine that owns entity storage. Calls across this boundary are
// treated as fast and synchronous.
package native

// Error codes raised across the native boundary.
const (
	CodeTooManyArgs      = "TOO_MANY_ARGS"
	CodeUnsupportedValue = "UNSUPPORTED_VALUE"
	CodeEntityNotFound   = "ENTITY_NOT_FOUND"
)

// Category identifies a kind of engine-side entity.
type Category string

// Entity categories known to the runtime.
const (
	CategoryPlayer  Category = "player"
	CategoryVehicle Category = "vehicle"
	CategoryObject  Category = "object"
)

// String returns the category name.
func (c Category) String() string {
	return string(c)
}

// Oracle reports whether an entity id is currently live.
type Oracle interface {
	IsEntityValid(category Category, id int) bool
}

// Engine is the set of native calls the runtime consumes.
//
// Ids are session ids: unique among live entities of one category and
// reused by the engine after destruction.
type Engine interface {
	Oracle

	// CreateEntity creates an entity and returns its id.
	CreateEntity(category Category, args Args) (int, error)
	// DestroyEntity destroys a live entity.
	DestroyEntity(category Category, id int) error
	// Property returns a property value of a live entity.
	Property(category Category, id int, key string) (any, error)
	// SetProperty updates a property value of a live entity.
	SetProperty(category Category, id int, key string, value any) error
	// Entities lists the ids of every live entity in a category.
	Entities(category Category) []int
	// SendMessage delivers text to a connected player.
	SendMessage(playerID int, text string) error
}
