// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package entity

import (
	"github.com/samber/oops"

	"github.com/holomush/pluginhost/internal/native"
)

// Vehicle wraps an engine vehicle.
type Vehicle struct {
	base
}

var (
	_ Positionable = (*Vehicle)(nil)
	_ Destroyable  = (*Vehicle)(nil)
)

// NewVehicle builds a vehicle wrapper.
func NewVehicle(engine native.Engine, id int) *Vehicle {
	return &Vehicle{base{engine: engine, handle: Handle{Category: native.CategoryVehicle, ID: id}}}
}

// Model returns the vehicle model id.
func (v *Vehicle) Model() (int64, error) {
	m, err := v.property("model")
	if err != nil {
		return 0, err
	}
	n, _ := m.(int64)
	return n, nil
}

// Destroy removes the vehicle from the engine.
func (v *Vehicle) Destroy() error {
	if err := v.engine.DestroyEntity(v.handle.Category, v.handle.ID); err != nil {
		return oops.With("operation", "destroy vehicle").Wrap(err)
	}
	return nil
}
