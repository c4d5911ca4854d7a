// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package server

import (
	"context"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/oops"

	"github.com/holomush/pluginhost/internal/entity"
	"github.com/holomush/pluginhost/internal/native"
)

// Player returns the wrapper for a live player.
func (s *Server) Player(id int) (*entity.Player, bool) {
	if !s.engine.IsEntityValid(native.CategoryPlayer, id) {
		s.players.Evict(id)
		s.forget(id)
		return nil, false
	}
	w, err := s.players.GetOrCreate(id, nil)
	return w, err == nil
}

// PlayerByName finds a live player by name, case insensitively.
func (s *Server) PlayerByName(name string) (*entity.Player, bool) {
	for _, p := range s.Players() {
		if strings.EqualFold(p.Name(), name) {
			return p, true
		}
	}
	return nil, false
}

// Players returns every live player in id order.
func (s *Server) Players() []*entity.Player {
	ids := s.engine.Entities(native.CategoryPlayer)
	out := make([]*entity.Player, 0, len(ids))
	for _, id := range ids {
		if p, err := s.players.GetOrCreate(id, nil); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// Vehicle returns the wrapper for a live vehicle.
func (s *Server) Vehicle(id int) (*entity.Vehicle, bool) {
	if !s.engine.IsEntityValid(native.CategoryVehicle, id) {
		s.vehicles.Evict(id)
		return nil, false
	}
	w, err := s.vehicles.GetOrCreate(id, nil)
	return w, err == nil
}

// CreateVehicle spawns a vehicle of model at pos.
func (s *Server) CreateVehicle(ctx context.Context, model int64, pos mgl64.Vec3) (*entity.Vehicle, error) {
	id, err := s.create(ctx, native.CategoryVehicle, model, pos)
	if err != nil {
		return nil, err
	}
	return s.vehicles.GetOrCreate(id, nil)
}

// Object returns the wrapper for a live object.
func (s *Server) Object(id int) (*entity.Object, bool) {
	if !s.engine.IsEntityValid(native.CategoryObject, id) {
		s.objects.Evict(id)
		return nil, false
	}
	w, err := s.objects.GetOrCreate(id, nil)
	return w, err == nil
}

// CreateObject spawns an object of model at pos.
func (s *Server) CreateObject(ctx context.Context, model int64, pos mgl64.Vec3) (*entity.Object, error) {
	id, err := s.create(ctx, native.CategoryObject, model, pos)
	if err != nil {
		return nil, err
	}
	return s.objects.GetOrCreate(id, nil)
}

func (s *Server) create(ctx context.Context, category native.Category, model int64, pos mgl64.Vec3) (int, error) {
	errb := oops.In("server").With("category", category).With("model", model)
	if err := ctx.Err(); err != nil {
		return 0, errb.Wrap(err)
	}
	_, span := tracer.Start(ctx, "server.create_entity")
	defer span.End()

	args, err := native.NewArgs(model, entity.VecTable(pos))
	if err != nil {
		return 0, errb.Wrap(err)
	}
	id, err := s.engine.CreateEntity(category, args)
	if err != nil {
		return 0, errb.Wrapf(err, "create %s", category)
	}
	return id, nil
}

// Broadcast sends text to every live player.
func (s *Server) Broadcast(text string) {
	for _, p := range s.Players() {
		p.SendMessage(text)
	}
}
