// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginsdk

import (
	"context"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/holomush/pluginhost/internal/native"
	pluginv1 "github.com/holomush/pluginhost/internal/proto/plugin/v1"
)

type server struct {
	pluginv1.UnimplementedPluginServer
	plugin   Plugin
	commands map[string]Command
	desc     *structpb.Struct
}

// NewServer adapts p to the plugin service. Command names must be unique
// and every command needs a handler.
func NewServer(p Plugin) (pluginv1.PluginServer, error) {
	s := &server{plugin: p, commands: make(map[string]Command)}
	var desc pluginv1.Description
	for _, cmd := range p.Commands() {
		if cmd.Name == "" || cmd.Handler == nil {
			return nil, fmt.Errorf("pluginsdk: command %q needs a name and a handler", cmd.Name)
		}
		if _, dup := s.commands[cmd.Name]; dup {
			return nil, fmt.Errorf("pluginsdk: command %q declared twice", cmd.Name)
		}
		s.commands[cmd.Name] = cmd
		desc.Commands = append(desc.Commands, pluginv1.CommandSpec{
			Name:        cmd.Name,
			Description: cmd.Description,
			Permission:  cmd.Permission,
			Aliases:     cmd.Aliases,
			Params:      cmd.Params,
		})
	}
	encoded, err := pluginv1.Encode(desc)
	if err != nil {
		return nil, err
	}
	s.desc = encoded
	return s, nil
}

func (s *server) Describe(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return s.desc, nil
}

func (s *server) Start(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if st, ok := s.plugin.(Starter); ok {
		if err := st.OnStart(ctx); err != nil {
			return nil, status.Errorf(codes.FailedPrecondition, "start: %v", err)
		}
	}
	return &emptypb.Empty{}, nil
}

func (s *server) Stop(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if st, ok := s.plugin.(Stopper); ok {
		if err := st.OnStop(ctx); err != nil {
			return nil, status.Errorf(codes.FailedPrecondition, "stop: %v", err)
		}
	}
	return &emptypb.Empty{}, nil
}

func (s *server) Invoke(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pluginv1.InvokeRequest
	if err := pluginv1.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	cmd, ok := s.commands[req.Command]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no command %q", req.Command)
	}
	args, err := native.NewArgs(typedArgs(cmd.Params, req.Args)...)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	call := &Call{Command: req.Command, Actor: req.Actor, Args: args}
	result, err := cmd.Handler(ctx, call)
	if err != nil {
		return nil, status.Errorf(codes.Unknown, "%s: %v", req.Command, err)
	}
	return pluginv1.Encode(pluginv1.InvokeResponse{Result: result, Messages: call.replies})
}

// typedArgs restores integer parameters, which travel as JSON numbers.
func typedArgs(params []Param, values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if v == nil {
			v = ""
		}
		if f, ok := v.(float64); ok && i < len(params) {
			switch params[i].Type {
			case "int", "integer":
				v = int64(f)
			}
		}
		out[i] = v
	}
	return out
}
