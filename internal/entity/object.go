// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package entity

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/oops"

	"github.com/holomush/pluginhost/internal/native"
)

// Object wraps an engine object.
type Object struct {
	base
}

var (
	_ Positionable = (*Object)(nil)
	_ Destroyable  = (*Object)(nil)
	_ Attachable   = (*Object)(nil)
)

// NewObject builds an object wrapper.
func NewObject(engine native.Engine, id int) *Object {
	return &Object{base{engine: engine, handle: Handle{Category: native.CategoryObject, ID: id}}}
}

// Destroy removes the object from the engine.
func (o *Object) Destroy() error {
	if err := o.engine.DestroyEntity(o.handle.Category, o.handle.ID); err != nil {
		return oops.With("operation", "destroy object").Wrap(err)
	}
	return nil
}

// AttachTo attaches the object to a vehicle at an offset.
func (o *Object) AttachTo(v *Vehicle, offset mgl64.Vec3) error {
	if !v.Valid() {
		return oops.Code("ENTITY_NOT_FOUND").
			With("vehicle", v.ID()).
			Errorf("cannot attach to a destroyed vehicle")
	}
	if err := o.setProperty("attached_to", int64(v.ID())); err != nil {
		return err
	}
	return o.setProperty("attach_offset", VecTable(offset))
}

// Detach releases the object from its vehicle.
func (o *Object) Detach() error {
	return o.setProperty("attached_to", int64(-1))
}

// AttachedTo returns the id of the vehicle the object is attached to.
func (o *Object) AttachedTo() (int, bool) {
	v, err := o.property("attached_to")
	if err != nil {
		return 0, false
	}
	id, ok := v.(int64)
	if !ok || id < 0 {
		return 0, false
	}
	return int(id), true
}
