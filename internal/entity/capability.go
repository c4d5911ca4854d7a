// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package entity

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/oops"

	"github.com/holomush/pluginhost/internal/native"
)

// Positionable entities have a world position.
type Positionable interface {
	Entity
	Position() (mgl64.Vec3, error)
	SetPosition(pos mgl64.Vec3) error
}

// Destroyable entities can be removed from the world by a plugin.
type Destroyable interface {
	Entity
	Destroy() error
}

// Attachable entities can be attached to a vehicle.
type Attachable interface {
	Entity
	AttachTo(v *Vehicle, offset mgl64.Vec3) error
	Detach() error
}

// base carries the handle and engine every wrapper needs.
type base struct {
	engine native.Engine
	handle Handle
}

func (b base) Handle() Handle {
	return b.handle
}

// ID returns the session id.
func (b base) ID() int {
	return b.handle.ID
}

// Valid asks the engine whether the entity is still live.
func (b base) Valid() bool {
	return b.engine.IsEntityValid(b.handle.Category, b.handle.ID)
}

func (b base) property(key string) (any, error) {
	v, err := b.engine.Property(b.handle.Category, b.handle.ID, key)
	if err != nil {
		return nil, oops.With("key", key).Wrap(err)
	}
	return v, nil
}

func (b base) setProperty(key string, value any) error {
	if err := b.engine.SetProperty(b.handle.Category, b.handle.ID, key, value); err != nil {
		return oops.With("key", key).Wrap(err)
	}
	return nil
}

// Position reads the "pos" table property. An unset position is the origin.
func (b base) Position() (mgl64.Vec3, error) {
	v, err := b.property("pos")
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return vecFromTable(v), nil
}

// SetPosition writes the "pos" table property.
func (b base) SetPosition(pos mgl64.Vec3) error {
	return b.setProperty("pos", VecTable(pos))
}

// VecTable encodes a position as a boundary table value.
func VecTable(v mgl64.Vec3) map[string]any {
	return map[string]any{"x": v.X(), "y": v.Y(), "z": v.Z()}
}

func vecFromTable(v any) mgl64.Vec3 {
	table, ok := v.(map[string]any)
	if !ok {
		return mgl64.Vec3{}
	}
	return mgl64.Vec3{toFloat(table["x"]), toFloat(table["y"]), toFloat(table["z"])}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}
